package parse

import (
	"regexp"
	"time"

	"github.com/terminwatch/terminwatch/internal/models"
)

// vfs handles VFS Global calendars, which mark open days with
// data-date="2026-03-05" on elements carrying an "available" class.
type vfs struct{}

var vfsAvailableRe = regexp.MustCompile(`data-date="([^"]+)"[^>]*class="[^"]*available`)

func (vfs) Parse(body string, pc PageContext) []models.AvailableSlot {
	var slots []models.AvailableSlot
	for _, m := range vfsAvailableRe.FindAllStringSubmatch(body, -1) {
		if _, err := time.Parse("2006-01-02", m[1]); err != nil {
			continue
		}
		slots = append(slots, models.AvailableSlot{
			Date:            m[1],
			AppointmentType: pc.VisaType,
			Location:        pc.LocationName,
			URL:             pc.TargetURL,
		})
	}
	return slots
}
