package parse

import (
	"encoding/json"
	"time"

	"github.com/terminwatch/terminwatch/internal/models"
)

// usTravelDocs handles the JSON the ustraveldocs appointment-date endpoint
// returns: either a bare array of dates or objects with a date field and
// optional business_times.
type usTravelDocs struct{}

type usTravelDocsEntry struct {
	Date          string   `json:"date"`
	BusinessTimes []string `json:"business_times"`
}

func (usTravelDocs) Parse(body string, pc PageContext) []models.AvailableSlot {
	var entries []usTravelDocsEntry

	if err := json.Unmarshal([]byte(body), &entries); err != nil {
		var dates []string
		if err := json.Unmarshal([]byte(body), &dates); err != nil {
			// Not a shape we know; empty result, not a crash.
			return nil
		}
		for _, d := range dates {
			entries = append(entries, usTravelDocsEntry{Date: d})
		}
	}

	var slots []models.AvailableSlot
	for _, e := range entries {
		if _, err := time.Parse("2006-01-02", e.Date); err != nil {
			continue
		}
		slots = append(slots, models.AvailableSlot{
			Date:            e.Date,
			TimeSlots:       e.BusinessTimes,
			AppointmentType: pc.VisaType,
			Location:        pc.LocationName,
			URL:             pc.TargetURL,
		})
	}
	return slots
}
