package checker

import (
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/terminwatch/terminwatch/internal/models"
)

func TestFormatSlotsMessage_FewSlots(t *testing.T) {
	tr := &models.Tracker{Name: "Berlin Schengen", TargetURL: "https://example.org/book"}
	slots := []models.AvailableSlot{
		{Date: "2026-10-01", TimeSlots: []string{"09:00", "11:30"}},
		{Date: "2026-10-03"},
	}

	msg := formatSlotsMessage(tr, slots)
	require.Contains(t, msg, "Great news! Appointment slots are now available for Berlin Schengen:")
	require.Contains(t, msg, "- 2026-10-01 at 09:00, 11:30")
	require.Contains(t, msg, "- 2026-10-03")
	require.NotContains(t, msg, "more slots")
	require.Contains(t, msg, "Book now before they're gone: https://example.org/book")
}

func TestFormatSlotsMessage_OverflowSummarized(t *testing.T) {
	tr := &models.Tracker{Name: "Paris", TargetURL: "https://example.org/book"}
	slots := slotsOn("2026-10-01", "2026-10-02", "2026-10-03", "2026-10-04", "2026-10-05", "2026-10-06", "2026-10-07")

	msg := formatSlotsMessage(tr, slots)
	require.Contains(t, msg, "- 2026-10-05")
	require.NotContains(t, msg, "- 2026-10-06")
	require.Contains(t, msg, "... and 2 more slots")
}

func TestFormatSlotsMessage_SlotURLWins(t *testing.T) {
	tr := &models.Tracker{Name: "Paris", TargetURL: "https://example.org/fallback"}
	slots := []models.AvailableSlot{{Date: "2026-10-01", URL: "https://example.org/direct"}}

	msg := formatSlotsMessage(tr, slots)
	require.Contains(t, msg, "Book now before they're gone: https://example.org/direct")
	require.NotContains(t, msg, "fallback")
}
