package models

import "time"

// Tracker lifecycle statuses.
const (
	TrackerStatusActive  = "active"
	TrackerStatusPaused  = "paused"
	TrackerStatusError   = "error"
	TrackerStatusExpired = "expired"
)

// Intervals users can pick from, in minutes.
var AllowedCheckIntervals = []int{1, 5, 15, 30, 60}

func ValidCheckInterval(minutes int) bool {
	for _, m := range AllowedCheckIntervals {
		if m == minutes {
			return true
		}
	}
	return false
}

// Tracker is a user's standing request to monitor one location for one
// visa/appointment type. All dates carried as strings are ISO "2006-01-02".
type Tracker struct {
	ID     uint64
	UserID string
	Name   string
	Status string

	LocationCode string
	VisaType     string
	TargetURL    string

	CheckIntervalMinutes int
	LastCheckedAt        *time.Time
	NextCheckAt          time.Time

	PreferredDateFrom *string
	PreferredDateTo   *string
	ExcludedDates     []string

	NotificationChannels     []string
	NotifyOnAnySlot          bool
	NotifyOnlyPreferredDates bool

	TotalChecks            int64
	TotalSlotsFound        int64
	TotalNotificationsSent int64
	LastSlotFoundAt        *time.Time

	ConsecutiveErrors int32
	LastErrorMessage  *string
	LastErrorAt       *time.Time

	DaysPurchased int
	DaysRemaining int

	CreatedAt time.Time
	UpdatedAt time.Time
}

// Channels returns the notification channels, defaulting to email when the
// user never picked any.
func (t *Tracker) Channels() []string {
	if len(t.NotificationChannels) == 0 {
		return []string{"email"}
	}
	return t.NotificationChannels
}

type TrackerCreateInput struct {
	UserID       string
	Name         string
	LocationCode string
	VisaType     string
	TargetURL    string

	CheckIntervalMinutes int

	PreferredDateFrom *string
	PreferredDateTo   *string
	ExcludedDates     []string

	NotificationChannels     []string
	NotifyOnAnySlot          bool
	NotifyOnlyPreferredDates bool

	DaysPurchased int
}

// PlanLimits are the subscription values the core reads; the entitlement
// store itself lives outside the core.
type PlanLimits struct {
	MaxTrackers             int
	MinCheckIntervalMinutes int
}
