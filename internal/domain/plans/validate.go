package plans

import (
	"fmt"
	"strings"

	"treatment-plans/internal/platform/clock"
)

func validateCreate(in CreateInput) error {
	title := strings.TrimSpace(in.Title)
	if title == "" {
		return invalid("title", "required")
	}
	if len(title) > maxTitleLen {
		return invalid("title", "must be at most %d characters", maxTitleLen)
	}
	if in.Source != "" && !in.Source.Valid() {
		return invalid("source", "must be one of manual, ocr, imported")
	}
	if in.StartAt != nil && in.EndAt != nil && in.EndAt.Before(*in.StartAt) {
		return invalid("end_at", "must be after or equal to start_at")
	}
	if len(in.Items) == 0 {
		return invalid("items", "at least one item is required")
	}

	for idx, it := range in.Items {
		if strings.TrimSpace(it.MedicationName) == "" && strings.TrimSpace(it.MedicationID) == "" {
			return invalid(itemField(idx, "medication_name"), "required without medication_id")
		}
		for _, f := range []struct{ name, v string }{
			{"medication_name", it.MedicationName},
			{"dosage", it.Dosage},
			{"route", it.Route},
		} {
			if len(strings.TrimSpace(f.v)) > maxTextLen {
				return invalid(itemField(idx, f.name), "must be at most %d characters", maxTextLen)
			}
		}
		if it.IntervalMinutes != nil && *it.IntervalMinutes < minIntervalMinutes {
			return invalid(itemField(idx, "interval_minutes"), "must be at least %d", minIntervalMinutes)
		}
		if it.TotalDoses != nil && *it.TotalDoses < 1 {
			return invalid(itemField(idx, "total_doses"), "must be at least 1")
		}
		if it.DurationDays != nil && *it.DurationDays < 1 {
			return invalid(itemField(idx, "duration_days"), "must be at least 1")
		}
		for _, t := range it.SpecificTimes {
			if !clock.IsClockTime(t) {
				return invalid(itemField(idx, "specific_times"), "%q is not HH:MM", t)
			}
		}
		if doseCount(it.IntervalMinutes, it.TotalDoses, it.DurationDays, it.SpecificTimes) > maxDosesPerItem {
			return invalid(itemField(idx, "total_doses"), "item would produce more than %d doses", maxDosesPerItem)
		}
	}
	return nil
}

func itemField(idx int, name string) string {
	return fmt.Sprintf("items[%d].%s", idx, name)
}
