package checker

import (
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/terminwatch/terminwatch/internal/models"
)

func slotsOn(dates ...string) []models.AvailableSlot {
	out := make([]models.AvailableSlot, 0, len(dates))
	for _, d := range dates {
		out = append(out, models.AvailableSlot{Date: d})
	}
	return out
}

func strp(s string) *string { return &s }

func TestFilterSlots_Window(t *testing.T) {
	tr := &models.Tracker{
		PreferredDateFrom: strp("2026-10-01"),
		PreferredDateTo:   strp("2026-10-31"),
	}
	in := slotsOn("2026-09-30", "2026-10-01", "2026-10-15", "2026-10-31", "2026-11-01")

	got := FilterSlots(tr, in)
	require.Equal(t, slotsOn("2026-10-01", "2026-10-15", "2026-10-31"), got)
}

func TestFilterSlots_OpenEndedWindow(t *testing.T) {
	tr := &models.Tracker{PreferredDateFrom: strp("2026-10-15")}
	in := slotsOn("2026-10-01", "2026-10-15", "2026-10-20")

	got := FilterSlots(tr, in)
	require.Equal(t, slotsOn("2026-10-15", "2026-10-20"), got)
}

func TestFilterSlots_ExcludedDates(t *testing.T) {
	tr := &models.Tracker{ExcludedDates: []string{"2026-10-15"}}
	in := slotsOn("2026-10-14", "2026-10-15", "2026-10-16")

	got := FilterSlots(tr, in)
	require.Equal(t, slotsOn("2026-10-14", "2026-10-16"), got)
}

func TestFilterSlots_OrderPreserved(t *testing.T) {
	tr := &models.Tracker{}
	in := slotsOn("2026-10-20", "2026-10-01", "2026-10-15")

	got := FilterSlots(tr, in)
	require.Equal(t, in, got)
}

func TestFilterSlots_EmptyInput(t *testing.T) {
	tr := &models.Tracker{NotifyOnAnySlot: true}
	require.Empty(t, FilterSlots(tr, nil))
	require.Empty(t, FilterSlots(tr, []models.AvailableSlot{}))
}

func TestFilterSlots_OnlyPreferredAndNothingMatches(t *testing.T) {
	tr := &models.Tracker{
		PreferredDateFrom:        strp("2026-12-01"),
		NotifyOnlyPreferredDates: true,
	}
	got := FilterSlots(tr, slotsOn("2026-10-01", "2026-10-02"))
	require.Nil(t, got)
}

func TestFilterSlots_AnySlotFallbackReturnsOriginal(t *testing.T) {
	tr := &models.Tracker{
		PreferredDateFrom: strp("2026-12-01"),
		NotifyOnAnySlot:   true,
	}
	in := slotsOn("2026-10-01", "2026-10-02")

	got := FilterSlots(tr, in)
	require.Len(t, got, 2)
	// Именно исходный срез, не копия.
	require.Equal(t, &in[0], &got[0])
}

func TestFilterSlots_AnySlotWithMatchesKeepsOnlyMatches(t *testing.T) {
	tr := &models.Tracker{
		PreferredDateFrom: strp("2026-10-02"),
		NotifyOnAnySlot:   true,
	}
	got := FilterSlots(tr, slotsOn("2026-10-01", "2026-10-02"))
	require.Equal(t, slotsOn("2026-10-02"), got)
}
