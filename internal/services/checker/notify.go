package checker

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/terminwatch/terminwatch/internal/broker/messages"
	"github.com/terminwatch/terminwatch/internal/models"
)

// How many slots a notification message spells out before summarizing.
const maxSlotsInMessage = 5

// enqueueNotifications writes one pending notification per channel and
// publishes a slot.found event for the delivery service. The notification
// rows are the source of truth; a broker hiccup is logged, not fatal.
func (c *Checker) enqueueNotifications(ctx context.Context, tr *models.Tracker, slots []models.AvailableSlot, checkedAt time.Time) error {
	channels := tr.Channels()
	message := formatSlotsMessage(tr, slots)
	subject := fmt.Sprintf("Appointment available: %s", tr.Name)

	for _, channel := range channels {
		n := &models.Notification{
			TrackerID: tr.ID,
			UserID:    tr.UserID,
			Channel:   channel,
			Subject:   subject,
			Message:   message,
			Slots:     slots,
			Status:    models.NotificationStatusPending,
		}
		if err := c.repo.InsertNotification(ctx, n); err != nil {
			return errors.Wrapf(err, "insert %s notification", channel)
		}
	}

	if err := c.repo.AddNotificationsSent(ctx, tr.ID, len(channels)); err != nil {
		return errors.Wrap(err, "count notifications")
	}

	c.publishSlotFound(ctx, tr, slots, channels, checkedAt)
	return nil
}

func (c *Checker) publishSlotFound(ctx context.Context, tr *models.Tracker, slots []models.AvailableSlot, channels []string, checkedAt time.Time) {
	if c.producer == nil || c.topic == "" {
		return
	}

	msg := messages.SlotFound{
		TrackerID: tr.ID,
		UserID:    tr.UserID,
		CheckedAt: checkedAt,
		Channels:  channels,
		Slots:     slots,
	}
	b, err := json.Marshal(msg)
	if err != nil {
		slog.Error("marshal slot.found", "tracker_id", tr.ID, "error", err.Error())
		return
	}

	key := []byte(fmt.Sprintf("%d", tr.ID))
	if err := c.producer.Publish(ctx, c.topic, key, b); err != nil {
		slog.Error("publish slot.found", "tracker_id", tr.ID, "error", err.Error())
	}
}

// formatSlotsMessage renders the first few slots plus an overflow note.
func formatSlotsMessage(tr *models.Tracker, slots []models.AvailableSlot) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Great news! Appointment slots are now available for %s:\n\n", tr.Name)

	shown := slots
	if len(shown) > maxSlotsInMessage {
		shown = shown[:maxSlotsInMessage]
	}
	for _, s := range shown {
		if len(s.TimeSlots) > 0 {
			fmt.Fprintf(&b, "- %s at %s\n", s.Date, strings.Join(s.TimeSlots, ", "))
		} else {
			fmt.Fprintf(&b, "- %s\n", s.Date)
		}
	}

	if len(slots) > maxSlotsInMessage {
		fmt.Fprintf(&b, "\n... and %d more slots\n", len(slots)-maxSlotsInMessage)
	}

	bookURL := tr.TargetURL
	if len(slots) > 0 && slots[0].URL != "" {
		bookURL = slots[0].URL
	}
	fmt.Fprintf(&b, "\nBook now before they're gone: %s\n", bookURL)

	return b.String()
}
