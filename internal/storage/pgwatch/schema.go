package pgwatch

import (
	"context"

	"github.com/pkg/errors"
)

func (s *Storage) initSchema(ctx context.Context) error {
	stmts := []string{
		`
CREATE TABLE IF NOT EXISTS trackers (
  id BIGSERIAL PRIMARY KEY,
  user_id TEXT NOT NULL,
  name TEXT NOT NULL,
  status TEXT NOT NULL,
  location_code TEXT NOT NULL,
  visa_type TEXT NOT NULL,
  target_url TEXT NOT NULL,
  check_interval_minutes INT NOT NULL,
  last_checked_at TIMESTAMPTZ NULL,
  next_check_at TIMESTAMPTZ NOT NULL,
  preferred_date_from TEXT NULL,
  preferred_date_to TEXT NULL,
  excluded_dates TEXT[] NOT NULL DEFAULT '{}',
  notification_channels TEXT[] NOT NULL DEFAULT '{email}',
  notify_on_any_slot BOOLEAN NOT NULL DEFAULT TRUE,
  notify_only_preferred_dates BOOLEAN NOT NULL DEFAULT FALSE,
  total_checks BIGINT NOT NULL DEFAULT 0,
  total_slots_found BIGINT NOT NULL DEFAULT 0,
  total_notifications_sent BIGINT NOT NULL DEFAULT 0,
  last_slot_found_at TIMESTAMPTZ NULL,
  consecutive_errors INT NOT NULL DEFAULT 0,
  last_error_message TEXT NULL,
  last_error_at TIMESTAMPTZ NULL,
  days_purchased INT NOT NULL DEFAULT 0,
  days_remaining INT NOT NULL DEFAULT 0,
  created_at TIMESTAMPTZ NOT NULL,
  updated_at TIMESTAMPTZ NOT NULL
)`,
		`CREATE INDEX IF NOT EXISTS idx_trackers_due ON trackers(status, next_check_at)`,
		`CREATE INDEX IF NOT EXISTS idx_trackers_user_id ON trackers(user_id)`,
		`
CREATE TABLE IF NOT EXISTS location_configs (
  id BIGSERIAL PRIMARY KEY,
  code TEXT NOT NULL UNIQUE,
  country_code TEXT NOT NULL,
  city TEXT NOT NULL,
  name TEXT NOT NULL,
  booking_system TEXT NOT NULL,
  base_url TEXT NOT NULL,
  supported_visa_types TEXT[] NOT NULL DEFAULT '{}',
  requires_browser BOOLEAN NOT NULL DEFAULT FALSE,
  has_captcha BOOLEAN NOT NULL DEFAULT FALSE,
  rate_limit_per_hour INT NOT NULL DEFAULT 0,
  is_active BOOLEAN NOT NULL DEFAULT TRUE,
  created_at TIMESTAMPTZ NOT NULL,
  updated_at TIMESTAMPTZ NOT NULL
)`,
		`
CREATE TABLE IF NOT EXISTS check_results (
  id BIGSERIAL PRIMARY KEY,
  tracker_id BIGINT NOT NULL REFERENCES trackers(id) ON DELETE CASCADE,
  checked_at TIMESTAMPTZ NOT NULL,
  success BOOLEAN NOT NULL,
  slots_found BOOLEAN NOT NULL,
  slots JSONB NULL,
  total_slots_count INT NOT NULL DEFAULT 0,
  check_duration_ms BIGINT NOT NULL DEFAULT 0,
  http_status INT NULL,
  error_type TEXT NULL,
  error_message TEXT NULL,
  created_at TIMESTAMPTZ NOT NULL
)`,
		`CREATE INDEX IF NOT EXISTS idx_check_results_tracker_checked ON check_results(tracker_id, checked_at DESC)`,
		`
CREATE TABLE IF NOT EXISTS notifications (
  id BIGSERIAL PRIMARY KEY,
  tracker_id BIGINT NOT NULL REFERENCES trackers(id) ON DELETE CASCADE,
  user_id TEXT NOT NULL,
  channel TEXT NOT NULL,
  subject TEXT NOT NULL DEFAULT '',
  message TEXT NOT NULL,
  slots JSONB NULL,
  status TEXT NOT NULL,
  created_at TIMESTAMPTZ NOT NULL
)`,
		`CREATE INDEX IF NOT EXISTS idx_notifications_status ON notifications(status, created_at)`,
	}

	for _, q := range stmts {
		if _, err := s.db.Exec(ctx, q); err != nil {
			return errors.Wrap(err, "init schema")
		}
	}
	return nil
}
