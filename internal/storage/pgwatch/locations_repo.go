package pgwatch

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/pkg/errors"
	"github.com/terminwatch/terminwatch/internal/models"
)

const locationColumns = `
  id, code, country_code, city, name,
  booking_system, base_url, supported_visa_types,
  requires_browser, has_captcha, rate_limit_per_hour,
  is_active, created_at, updated_at`

func scanLocation(row pgx.Row) (*models.LocationConfig, error) {
	var l models.LocationConfig
	if err := row.Scan(
		&l.ID, &l.Code, &l.CountryCode, &l.City, &l.Name,
		&l.BookingSystem, &l.BaseURL, &l.SupportedVisaTypes,
		&l.RequiresBrowser, &l.HasCaptcha, &l.RateLimitPerHour,
		&l.IsActive, &l.CreatedAt, &l.UpdatedAt,
	); err != nil {
		return nil, err
	}
	return &l, nil
}

// GetLocationConfig returns nil (no error) for unknown codes; a missing
// config is an expected operational condition for the checker, not a storage
// failure.
func (s *Storage) GetLocationConfig(ctx context.Context, code string) (*models.LocationConfig, error) {
	row := s.db.QueryRow(ctx, `SELECT `+locationColumns+` FROM location_configs WHERE code = $1`, code)
	l, err := scanLocation(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrap(err, "select location config")
	}
	return l, nil
}

func (s *Storage) ListActiveLocations(ctx context.Context) ([]*models.LocationConfig, error) {
	rows, err := s.db.Query(ctx, `
SELECT `+locationColumns+`
FROM location_configs
WHERE is_active
ORDER BY name
`)
	if err != nil {
		return nil, errors.Wrap(err, "select locations")
	}
	defer rows.Close()

	var out []*models.LocationConfig
	for rows.Next() {
		l, err := scanLocation(rows)
		if err != nil {
			return nil, errors.Wrap(err, "scan location")
		}
		out = append(out, l)
	}
	if rows.Err() != nil {
		return nil, errors.Wrap(rows.Err(), "rows")
	}
	return out, nil
}

// UpsertLocationConfig exists for bootstrap/seed tooling; the admin process
// owns location data in production.
func (s *Storage) UpsertLocationConfig(ctx context.Context, l *models.LocationConfig) error {
	visaTypes := l.SupportedVisaTypes
	if visaTypes == nil {
		visaTypes = []string{}
	}

	_, err := s.db.Exec(ctx, `
INSERT INTO location_configs (
  code, country_code, city, name,
  booking_system, base_url, supported_visa_types,
  requires_browser, has_captcha, rate_limit_per_hour,
  is_active, created_at, updated_at
)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11, now(), now())
ON CONFLICT (code) DO UPDATE SET
  country_code = EXCLUDED.country_code,
  city = EXCLUDED.city,
  name = EXCLUDED.name,
  booking_system = EXCLUDED.booking_system,
  base_url = EXCLUDED.base_url,
  supported_visa_types = EXCLUDED.supported_visa_types,
  requires_browser = EXCLUDED.requires_browser,
  has_captcha = EXCLUDED.has_captcha,
  rate_limit_per_hour = EXCLUDED.rate_limit_per_hour,
  is_active = EXCLUDED.is_active,
  updated_at = now()
`, l.Code, l.CountryCode, l.City, l.Name,
		l.BookingSystem, l.BaseURL, visaTypes,
		l.RequiresBrowser, l.HasCaptcha, l.RateLimitPerHour, l.IsActive)
	return errors.Wrap(err, "upsert location config")
}
