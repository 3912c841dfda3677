package pgwatch

import (
	"context"
	"encoding/json"

	"github.com/pkg/errors"
	"github.com/terminwatch/terminwatch/internal/models"
)

// InsertNotification enqueues one pending delivery request. The delivery
// service picks these up and owns all later status transitions.
func (s *Storage) InsertNotification(ctx context.Context, n *models.Notification) error {
	var slots any
	if len(n.Slots) > 0 {
		b, err := json.Marshal(n.Slots)
		if err != nil {
			return errors.Wrap(err, "marshal slots")
		}
		slots = b
	}

	status := n.Status
	if status == "" {
		status = models.NotificationStatusPending
	}

	err := s.db.QueryRow(ctx, `
INSERT INTO notifications (
  tracker_id, user_id, channel, subject, message, slots, status, created_at
)
VALUES ($1,$2,$3,$4,$5,$6,$7, now())
RETURNING id
`, n.TrackerID, n.UserID, n.Channel, n.Subject, n.Message, slots, status).Scan(&n.ID)
	return errors.Wrap(err, "insert notification")
}
