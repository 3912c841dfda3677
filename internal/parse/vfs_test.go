package parse

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestVFS_AvailableDays(t *testing.T) {
	body := `
<td data-date="2026-10-01" class="day available"></td>
<td data-date="2026-10-02" class="day booked"></td>
<td data-date="2026-10-03" class="day available selected"></td>`

	slots := vfs{}.Parse(body, PageContext{VisaType: "tourist", LocationName: "Paris"})
	require.Len(t, slots, 2)
	require.Equal(t, "2026-10-01", slots[0].Date)
	require.Equal(t, "2026-10-03", slots[1].Date)
	require.Equal(t, "Paris", slots[0].Location)
}

func TestVFS_InvalidDateSkipped(t *testing.T) {
	body := `<td data-date="next week" class="day available"></td>`
	require.Empty(t, vfs{}.Parse(body, PageContext{}))
}

func TestVFS_NoMatches(t *testing.T) {
	require.Empty(t, vfs{}.Parse("<html>fully booked</html>", PageContext{}))
}
