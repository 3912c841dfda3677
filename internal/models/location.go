package models

import "time"

// LocationConfig describes one monitored embassy/office. Owned by an external
// admin process; the core only reads it.
type LocationConfig struct {
	ID   uint64
	Code string

	CountryCode string
	City        string
	Name        string

	BookingSystem string
	BaseURL       string

	SupportedVisaTypes []string

	RequiresBrowser  bool
	HasCaptcha       bool
	RateLimitPerHour int

	IsActive bool

	CreatedAt time.Time
	UpdatedAt time.Time
}
