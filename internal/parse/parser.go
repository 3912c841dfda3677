// Package parse extracts candidate appointment slots from raw booking pages.
// Each booking system gets its own strategy; unknown page shapes yield an
// empty slot list, never an error.
package parse

import (
	"fmt"

	"github.com/terminwatch/terminwatch/internal/models"
)

// BookingSystem is the closed set of supported booking platforms. Location
// configs carry the string form; converting an unsupported value is an error
// at load time, not a silent no-op parser.
type BookingSystem int

const (
	SystemTerminOnline BookingSystem = iota
	SystemVFS
	SystemUSTravelDocs
	SystemCustom
)

func (s BookingSystem) String() string {
	switch s {
	case SystemTerminOnline:
		return "termin-online"
	case SystemVFS:
		return "vfs"
	case SystemUSTravelDocs:
		return "ustraveldocs"
	case SystemCustom:
		return "custom"
	default:
		return fmt.Sprintf("booking-system(%d)", int(s))
	}
}

func ParseBookingSystem(v string) (BookingSystem, error) {
	switch v {
	case "termin-online":
		return SystemTerminOnline, nil
	case "vfs":
		return SystemVFS, nil
	case "ustraveldocs":
		return SystemUSTravelDocs, nil
	case "custom":
		return SystemCustom, nil
	default:
		return 0, fmt.Errorf("unsupported booking system %q", v)
	}
}

// PageContext carries the tracker/location fields strategies stamp onto the
// slots they produce.
type PageContext struct {
	VisaType     string
	LocationName string
	TargetURL    string
}

type Strategy interface {
	Parse(body string, pc PageContext) []models.AvailableSlot
}

// StrategyFor maps every enum value to its strategy. New booking systems are
// added here and in ParseBookingSystem; callers never change.
func StrategyFor(s BookingSystem) Strategy {
	switch s {
	case SystemTerminOnline:
		return terminOnline{}
	case SystemVFS:
		return vfs{}
	case SystemUSTravelDocs:
		return usTravelDocs{}
	case SystemCustom:
		return custom{}
	default:
		panic(fmt.Sprintf("no strategy registered for %s", s))
	}
}
