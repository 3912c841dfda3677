package parse

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestUSTravelDocs_ObjectShape(t *testing.T) {
	body := `[
{"date":"2026-10-01","business_times":["09:00","10:30"]},
{"date":"2026-10-02"}
]`

	slots := usTravelDocs{}.Parse(body, PageContext{VisaType: "b1/b2"})
	require.Len(t, slots, 2)
	require.Equal(t, "2026-10-01", slots[0].Date)
	require.Equal(t, []string{"09:00", "10:30"}, slots[0].TimeSlots)
	require.Empty(t, slots[1].TimeSlots)
	require.Equal(t, "b1/b2", slots[0].AppointmentType)
}

func TestUSTravelDocs_BareDateArray(t *testing.T) {
	slots := usTravelDocs{}.Parse(`["2026-10-01","2026-10-05"]`, PageContext{})
	require.Len(t, slots, 2)
	require.Equal(t, "2026-10-05", slots[1].Date)
}

func TestUSTravelDocs_InvalidDateSkipped(t *testing.T) {
	slots := usTravelDocs{}.Parse(`["2026-10-01","soon"]`, PageContext{})
	require.Len(t, slots, 1)
}

func TestUSTravelDocs_MalformedJSON(t *testing.T) {
	require.Nil(t, usTravelDocs{}.Parse(`{"oops":`, PageContext{}))
	require.Nil(t, usTravelDocs{}.Parse(`<html>not json</html>`, PageContext{}))
}
