package checker

import "github.com/terminwatch/terminwatch/internal/models"

// FilterSlots narrows parsed slots by the tracker's date preferences. Pure
// and order-preserving. Slot dates are ISO "2006-01-02" strings, so plain
// string comparison is chronological.
//
// The notify_on_any_slot fallback is asymmetric on purpose: when the window
// filtered everything out but the page did have slots, the user asked to
// hear about anything, so the original list comes back unchanged. Do not
// "fix" this without a product decision.
func FilterSlots(tr *models.Tracker, slots []models.AvailableSlot) []models.AvailableSlot {
	if len(slots) == 0 {
		return slots
	}

	filtered := slots
	if tr.PreferredDateFrom != nil || tr.PreferredDateTo != nil {
		kept := make([]models.AvailableSlot, 0, len(filtered))
		for _, s := range filtered {
			if tr.PreferredDateFrom != nil && s.Date < *tr.PreferredDateFrom {
				continue
			}
			if tr.PreferredDateTo != nil && s.Date > *tr.PreferredDateTo {
				continue
			}
			kept = append(kept, s)
		}
		filtered = kept
	}

	if len(tr.ExcludedDates) > 0 {
		excluded := make(map[string]struct{}, len(tr.ExcludedDates))
		for _, d := range tr.ExcludedDates {
			excluded[d] = struct{}{}
		}
		kept := make([]models.AvailableSlot, 0, len(filtered))
		for _, s := range filtered {
			if _, ok := excluded[s.Date]; ok {
				continue
			}
			kept = append(kept, s)
		}
		filtered = kept
	}

	if tr.NotifyOnlyPreferredDates && len(filtered) == 0 {
		return nil
	}

	if tr.NotifyOnAnySlot && len(filtered) == 0 {
		return slots
	}

	return filtered
}
