package pgwatch

import (
	"context"
	"encoding/json"
	"time"

	"github.com/pkg/errors"
	"github.com/terminwatch/terminwatch/internal/models"
)

// InsertCheckResult appends one immutable check record.
func (s *Storage) InsertCheckResult(ctx context.Context, r *models.CheckResult) error {
	var slots any
	if len(r.Slots) > 0 {
		b, err := json.Marshal(r.Slots)
		if err != nil {
			return errors.Wrap(err, "marshal slots")
		}
		slots = b
	}

	err := s.db.QueryRow(ctx, `
INSERT INTO check_results (
  tracker_id, checked_at, success, slots_found,
  slots, total_slots_count, check_duration_ms,
  http_status, error_type, error_message, created_at
)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10, now())
RETURNING id
`, r.TrackerID, r.CheckedAt.UTC(), r.Success, r.SlotsFound,
		slots, r.TotalSlotsCount, r.CheckDurationMS,
		r.HTTPStatus, r.ErrorType, r.ErrorMessage).Scan(&r.ID)
	return errors.Wrap(err, "insert check result")
}

func (s *Storage) ListCheckResults(ctx context.Context, trackerID uint64, limit, offset int) ([]*models.CheckResult, error) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	if offset < 0 {
		offset = 0
	}

	rows, err := s.db.Query(ctx, `
SELECT
  id, tracker_id, checked_at, success, slots_found,
  slots, total_slots_count, check_duration_ms,
  http_status, error_type, error_message, created_at
FROM check_results
WHERE tracker_id = $1
ORDER BY checked_at DESC
LIMIT $2 OFFSET $3
`, trackerID, limit, offset)
	if err != nil {
		return nil, errors.Wrap(err, "select check results")
	}
	defer rows.Close()

	var out []*models.CheckResult
	for rows.Next() {
		var r models.CheckResult
		var slots []byte
		var checkedAt, createdAt time.Time
		if err := rows.Scan(
			&r.ID, &r.TrackerID, &checkedAt, &r.Success, &r.SlotsFound,
			&slots, &r.TotalSlotsCount, &r.CheckDurationMS,
			&r.HTTPStatus, &r.ErrorType, &r.ErrorMessage, &createdAt,
		); err != nil {
			return nil, errors.Wrap(err, "scan check result")
		}
		r.CheckedAt = checkedAt
		r.CreatedAt = createdAt
		if len(slots) > 0 {
			if err := json.Unmarshal(slots, &r.Slots); err != nil {
				return nil, errors.Wrap(err, "unmarshal slots")
			}
		}
		out = append(out, &r)
	}
	if rows.Err() != nil {
		return nil, errors.Wrap(rows.Err(), "rows")
	}
	return out, nil
}
