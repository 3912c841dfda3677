package pgwatch

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/pkg/errors"
	"github.com/terminwatch/terminwatch/internal/models"
)

// ErrNotFound is returned when a tracker id does not exist.
var ErrNotFound = errors.New("tracker not found")

const trackerColumns = `
  id, user_id, name, status,
  location_code, visa_type, target_url,
  check_interval_minutes, last_checked_at, next_check_at,
  preferred_date_from, preferred_date_to, excluded_dates,
  notification_channels, notify_on_any_slot, notify_only_preferred_dates,
  total_checks, total_slots_found, total_notifications_sent, last_slot_found_at,
  consecutive_errors, last_error_message, last_error_at,
  days_purchased, days_remaining,
  created_at, updated_at`

func scanTracker(row pgx.Row) (*models.Tracker, error) {
	var t models.Tracker
	if err := row.Scan(
		&t.ID, &t.UserID, &t.Name, &t.Status,
		&t.LocationCode, &t.VisaType, &t.TargetURL,
		&t.CheckIntervalMinutes, &t.LastCheckedAt, &t.NextCheckAt,
		&t.PreferredDateFrom, &t.PreferredDateTo, &t.ExcludedDates,
		&t.NotificationChannels, &t.NotifyOnAnySlot, &t.NotifyOnlyPreferredDates,
		&t.TotalChecks, &t.TotalSlotsFound, &t.TotalNotificationsSent, &t.LastSlotFoundAt,
		&t.ConsecutiveErrors, &t.LastErrorMessage, &t.LastErrorAt,
		&t.DaysPurchased, &t.DaysRemaining,
		&t.CreatedAt, &t.UpdatedAt,
	); err != nil {
		return nil, err
	}
	return &t, nil
}

func (s *Storage) CreateTracker(ctx context.Context, in models.TrackerCreateInput) (*models.Tracker, error) {
	now := time.Now().UTC()

	excluded := in.ExcludedDates
	if excluded == nil {
		excluded = []string{}
	}
	channels := in.NotificationChannels
	if len(channels) == 0 {
		channels = []string{"email"}
	}

	row := s.db.QueryRow(ctx, `
INSERT INTO trackers (
  user_id, name, status,
  location_code, visa_type, target_url,
  check_interval_minutes, next_check_at,
  preferred_date_from, preferred_date_to, excluded_dates,
  notification_channels, notify_on_any_slot, notify_only_preferred_dates,
  days_purchased, days_remaining,
  created_at, updated_at
)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$15,$16,$16)
RETURNING `+trackerColumns,
		in.UserID, in.Name, models.TrackerStatusActive,
		in.LocationCode, in.VisaType, in.TargetURL,
		in.CheckIntervalMinutes, now,
		in.PreferredDateFrom, in.PreferredDateTo, excluded,
		channels, in.NotifyOnAnySlot, in.NotifyOnlyPreferredDates,
		in.DaysPurchased, now)

	t, err := scanTracker(row)
	if err != nil {
		return nil, errors.Wrap(err, "insert tracker")
	}
	return t, nil
}

func (s *Storage) GetTrackerByID(ctx context.Context, id uint64) (*models.Tracker, error) {
	row := s.db.QueryRow(ctx, `SELECT `+trackerColumns+` FROM trackers WHERE id = $1`, id)
	t, err := scanTracker(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, errors.Wrap(err, "select tracker")
	}
	return t, nil
}

func (s *Storage) CountUserTrackers(ctx context.Context, userID string) (int, error) {
	var n int
	err := s.db.QueryRow(ctx, `
SELECT count(*) FROM trackers
WHERE user_id = $1 AND status IN ($2, $3)
`, userID, models.TrackerStatusActive, models.TrackerStatusPaused).Scan(&n)
	if err != nil {
		return 0, errors.Wrap(err, "count trackers")
	}
	return n, nil
}

// ClaimDueTrackers выбирает пачку трекеров, готовых к проверке, и "бронирует"
// их, сдвигая next_check_at на lease вперёд. Пока проверка не завершилась и
// не записала настоящий next_check_at, трекер не попадёт в повторную выборку.
// Использует SELECT ... FOR UPDATE SKIP LOCKED.
func (s *Storage) ClaimDueTrackers(ctx context.Context, now time.Time, limit int, lease time.Duration) ([]*models.Tracker, error) {
	tx, err := s.db.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return nil, errors.Wrap(err, "begin tx")
	}
	defer func() { _ = tx.Rollback(ctx) }()

	rows, err := tx.Query(ctx, `
SELECT `+trackerColumns+`
FROM trackers
WHERE status = $1
  AND days_remaining > 0
  AND next_check_at <= $2
ORDER BY next_check_at ASC
LIMIT $3
FOR UPDATE SKIP LOCKED
`, models.TrackerStatusActive, now.UTC(), limit)
	if err != nil {
		return nil, errors.Wrap(err, "select due trackers")
	}

	var picked []*models.Tracker
	for rows.Next() {
		t, err := scanTracker(rows)
		if err != nil {
			rows.Close()
			return nil, errors.Wrap(err, "scan due tracker")
		}
		picked = append(picked, t)
	}
	rows.Close()
	if rows.Err() != nil {
		return nil, errors.Wrap(rows.Err(), "rows")
	}

	leaseUntil := now.UTC().Add(lease)
	for _, t := range picked {
		_, err := tx.Exec(ctx, `UPDATE trackers SET next_check_at = $2, updated_at = now() WHERE id = $1`, t.ID, leaseUntil)
		if err != nil {
			return nil, errors.Wrap(err, "lease tracker")
		}
		t.NextCheckAt = leaseUntil
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, errors.Wrap(err, "commit tx")
	}
	return picked, nil
}

// ExpireDepleted transitions active trackers whose day balance ran out.
// Runs at the start of every scheduling pass so a depleted tracker is never
// left selectable.
func (s *Storage) ExpireDepleted(ctx context.Context, now time.Time) (int64, error) {
	tag, err := s.db.Exec(ctx, `
UPDATE trackers
SET status = $1, updated_at = now()
WHERE status = $2 AND days_remaining <= 0
`, models.TrackerStatusExpired, models.TrackerStatusActive)
	if err != nil {
		return 0, errors.Wrap(err, "expire depleted trackers")
	}
	return tag.RowsAffected(), nil
}

// RecordCheckSuccess applies the counter updates of a successful check as
// atomic SQL increments: total_checks+1, error streak reset, and when slots
// were found the slot totals advance too.
func (s *Storage) RecordCheckSuccess(ctx context.Context, id uint64, checkedAt time.Time, slotsFound int) error {
	_, err := s.db.Exec(ctx, `
UPDATE trackers
SET
  total_checks = total_checks + 1,
  total_slots_found = total_slots_found + $3,
  last_slot_found_at = CASE WHEN $3 > 0 THEN $2 ELSE last_slot_found_at END,
  consecutive_errors = 0,
  last_error_message = NULL,
  last_error_at = NULL,
  last_checked_at = $2,
  updated_at = now()
WHERE id = $1
`, id, checkedAt.UTC(), slotsFound)
	return errors.Wrap(err, "record check success")
}

// RecordCheckFailure bumps the error streak atomically and returns its new
// value, so the caller can apply the error-threshold transition exactly once.
func (s *Storage) RecordCheckFailure(ctx context.Context, id uint64, checkedAt time.Time, message string) (int32, error) {
	var streak int32
	err := s.db.QueryRow(ctx, `
UPDATE trackers
SET
  total_checks = total_checks + 1,
  consecutive_errors = consecutive_errors + 1,
  last_error_message = $3,
  last_error_at = $2,
  last_checked_at = $2,
  updated_at = now()
WHERE id = $1
RETURNING consecutive_errors
`, id, checkedAt.UTC(), message).Scan(&streak)
	if err != nil {
		return 0, errors.Wrap(err, "record check failure")
	}
	return streak, nil
}

func (s *Storage) AddNotificationsSent(ctx context.Context, id uint64, n int) error {
	_, err := s.db.Exec(ctx, `
UPDATE trackers
SET total_notifications_sent = total_notifications_sent + $2, updated_at = now()
WHERE id = $1
`, id, n)
	return errors.Wrap(err, "add notifications sent")
}

func (s *Storage) UpdateTrackerStatus(ctx context.Context, id uint64, status string) error {
	_, err := s.db.Exec(ctx, `UPDATE trackers SET status = $2, updated_at = now() WHERE id = $1`, id, status)
	return errors.Wrap(err, "update tracker status")
}

func (s *Storage) UpdateTrackerNextCheck(ctx context.Context, id uint64, when time.Time) error {
	_, err := s.db.Exec(ctx, `UPDATE trackers SET next_check_at = $2, updated_at = now() WHERE id = $1`, id, when.UTC())
	return errors.Wrap(err, "update tracker next check")
}

// RefreshTracker makes the tracker due immediately (manual refresh, resume).
func (s *Storage) RefreshTracker(ctx context.Context, id uint64) error {
	_, err := s.db.Exec(ctx, `UPDATE trackers SET next_check_at = now(), updated_at = now() WHERE id = $1`, id)
	return errors.Wrap(err, "refresh tracker")
}
