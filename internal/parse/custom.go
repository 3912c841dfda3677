package parse

import (
	"regexp"
	"strings"
	"time"

	"github.com/terminwatch/terminwatch/internal/models"
)

// custom is the catch-all for one-off booking pages: any element that both
// carries a data-date attribute and mentions availability counts. Pages
// without an availability marker parse to nothing.
type custom struct{}

var customDateRe = regexp.MustCompile(`data-date="(\d{4}-\d{2}-\d{2})"`)

func (custom) Parse(body string, pc PageContext) []models.AvailableSlot {
	if !strings.Contains(strings.ToLower(body), "available") {
		return nil
	}

	seen := make(map[string]struct{})
	var slots []models.AvailableSlot
	for _, m := range customDateRe.FindAllStringSubmatch(body, -1) {
		if _, ok := seen[m[1]]; ok {
			continue
		}
		if _, err := time.Parse("2006-01-02", m[1]); err != nil {
			continue
		}
		seen[m[1]] = struct{}{}
		slots = append(slots, models.AvailableSlot{
			Date:            m[1],
			AppointmentType: pc.VisaType,
			Location:        pc.LocationName,
			URL:             pc.TargetURL,
		})
	}
	return slots
}
