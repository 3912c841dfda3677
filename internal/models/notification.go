package models

import "time"

const NotificationStatusPending = "pending"

// Notification is a delivery request the core enqueues. The delivery service
// owns all later status transitions (sent/failed/delivered).
type Notification struct {
	ID        uint64
	TrackerID uint64
	UserID    string

	Channel string
	Subject string
	Message string

	Slots []AvailableSlot

	Status    string
	CreatedAt time.Time
}
