package parse

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParseBookingSystem(t *testing.T) {
	for _, name := range []string{"termin-online", "vfs", "ustraveldocs", "custom"} {
		s, err := ParseBookingSystem(name)
		require.NoError(t, err)
		require.Equal(t, name, s.String())
		require.NotNil(t, StrategyFor(s))
	}
}

func TestParseBookingSystem_Unknown(t *testing.T) {
	_, err := ParseBookingSystem("teleport")
	require.Error(t, err)
	require.Contains(t, err.Error(), "teleport")
}

func TestStrategyFor_UnregisteredPanics(t *testing.T) {
	require.Panics(t, func() {
		StrategyFor(BookingSystem(99))
	})
}
