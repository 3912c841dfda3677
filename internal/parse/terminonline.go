package parse

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/terminwatch/terminwatch/internal/models"
)

// terminOnline handles the calendar grid the German missions render, e.g.
// <td class="nat_calendar_day_available">15</td> with the month name above
// the grid: <div class="calendar_month">März 2026</div>.
type terminOnline struct{}

var (
	terminAvailableDayRe = regexp.MustCompile(`class="nat_calendar_day_available[^"]*"[^>]*>(\d+)<`)
	terminMonthYearRe    = regexp.MustCompile(`calendar_month[^>]*>([^<]+)<`)
)

// Phrases the site shows when the calendar has nothing open. Their presence
// is a definitive empty result, not a failure.
var terminNoSlotsPhrases = []string{
	"Derzeit keine Termine",
	"keine Termine",
	"no appointments",
}

// Closed German month-name mapping; locale inference is deliberately avoided.
var germanMonths = map[string]int{
	"Januar":    1,
	"Februar":   2,
	"März":      3,
	"April":     4,
	"Mai":       5,
	"Juni":      6,
	"Juli":      7,
	"August":    8,
	"September": 9,
	"Oktober":   10,
	"November":  11,
	"Dezember":  12,
}

func (terminOnline) Parse(body string, pc PageContext) []models.AvailableSlot {
	for _, phrase := range terminNoSlotsPhrases {
		if strings.Contains(body, phrase) {
			return nil
		}
	}

	monthYear := ""
	if m := terminMonthYearRe.FindStringSubmatch(body); m != nil {
		monthYear = m[1]
	}

	var slots []models.AvailableSlot
	for _, m := range terminAvailableDayRe.FindAllStringSubmatch(body, -1) {
		date := constructGermanDate(m[1], monthYear)
		if date == "" {
			// Day without resolvable month/year context is dropped, not
			// propagated as a malformed slot.
			continue
		}
		slots = append(slots, models.AvailableSlot{
			Date:            date,
			AppointmentType: pc.VisaType,
			Location:        pc.LocationName,
			URL:             pc.TargetURL,
		})
	}
	return slots
}

// constructGermanDate resolves a bare day cell against "Monat JJJJ" context
// into ISO form. Returns "" when the context cannot be resolved.
func constructGermanDate(day, monthYear string) string {
	parts := strings.Fields(strings.TrimSpace(monthYear))
	if len(parts) != 2 {
		return ""
	}
	month, ok := germanMonths[parts[0]]
	if !ok {
		return ""
	}
	year, err := strconv.Atoi(parts[1])
	if err != nil {
		return ""
	}
	d, err := strconv.Atoi(day)
	if err != nil || d < 1 || d > 31 {
		return ""
	}
	return fmt.Sprintf("%04d-%02d-%02d", year, month, d)
}
