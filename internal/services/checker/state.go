package checker

import (
	"time"

	"github.com/terminwatch/terminwatch/internal/models"
)

// DefaultErrorThreshold is how many back-to-back failed checks force a
// tracker into the error status.
const DefaultErrorThreshold = 10

// nextCheckAt schedules the follow-up check relative to when this one
// completed, success or not. The next interval IS the retry mechanism; there
// is no in-check retry.
func nextCheckAt(completedAt time.Time, intervalMinutes int) time.Time {
	if intervalMinutes <= 0 {
		intervalMinutes = 60
	}
	return completedAt.Add(time.Duration(intervalMinutes) * time.Minute)
}

// statusAfterFailure applies the error-streak transition. error/expired are
// never auto-recovered here; that takes an external action.
func statusAfterFailure(streak, threshold int32) string {
	if streak >= threshold {
		return models.TrackerStatusError
	}
	return models.TrackerStatusActive
}
