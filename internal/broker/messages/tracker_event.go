package messages

import "time"

// Tracker lifecycle event types the worker reacts to.
const (
	TrackerEventCreated = "created"
	TrackerEventResumed = "resumed"
)

// TrackerEvent is emitted by the account/billing side when a tracker is
// created or resumed; the worker uses it to schedule an immediate pass
// instead of waiting out the poll interval.
type TrackerEvent struct {
	Type       string    `json:"type"`
	TrackerID  uint64    `json:"tracker_id"`
	OccurredAt time.Time `json:"occurred_at"`
}
