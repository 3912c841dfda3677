package messages

import (
	"time"

	"github.com/terminwatch/terminwatch/internal/models"
)

// SlotFound is published once per check that produced matching slots. The
// notification delivery service consumes it; the pending notification rows
// remain the source of truth.
type SlotFound struct {
	TrackerID uint64    `json:"tracker_id"`
	UserID    string    `json:"user_id"`
	CheckedAt time.Time `json:"checked_at"`

	Channels []string               `json:"channels"`
	Slots    []models.AvailableSlot `json:"slots"`
}
