package models

import "time"

// Check failure classes. Everything except persistence failures ends up as
// one of these in a failed CheckResult.
const (
	CheckErrorNetwork   = "network"
	CheckErrorParsing   = "parsing"
	CheckErrorTimeout   = "timeout"
	CheckErrorCaptcha   = "captcha"
	CheckErrorRateLimit = "rate_limit"
)

// AvailableSlot is one discovered appointment date, pure data owned by its
// CheckResult.
type AvailableSlot struct {
	Date            string   `json:"date"`
	TimeSlots       []string `json:"time_slots,omitempty"`
	URL             string   `json:"url,omitempty"`
	AppointmentType string   `json:"appointment_type,omitempty"`
	Location        string   `json:"location,omitempty"`
}

// CheckResult is the append-only audit record of one check attempt.
type CheckResult struct {
	ID        uint64
	TrackerID uint64
	CheckedAt time.Time

	Success    bool
	SlotsFound bool

	Slots           []AvailableSlot
	TotalSlotsCount int

	CheckDurationMS int64
	HTTPStatus      *int

	ErrorType    *string
	ErrorMessage *string

	CreatedAt time.Time
}
