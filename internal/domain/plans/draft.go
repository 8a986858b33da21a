package plans

import (
	"strings"
	"time"

	"treatment-plans/internal/platform/clock"
)

const (
	SuggestItemLimit      = 5
	PrescriptionItemLimit = 8

	defaultIntervalMinutes = 480
	defaultDosesPerDay     = 3
)

// normalizeDraftItems recorta a limit items y garantiza que cada uno tenga
// intervalo u horarios fijos resueltos. Items sin medicamento se descartan.
func normalizeDraftItems(items []ItemInput, limit int, startAt *time.Time) []ItemInput {
	if len(items) > limit {
		items = items[:limit]
	}

	out := make([]ItemInput, 0, len(items))
	for _, it := range items {
		n := ItemInput{
			MedicationID:    strings.TrimSpace(it.MedicationID),
			MedicationName:  strings.TrimSpace(it.MedicationName),
			Dosage:          strings.TrimSpace(it.Dosage),
			Route:           strings.TrimSpace(it.Route),
			Instructions:    strings.TrimSpace(it.Instructions),
			IntervalMinutes: atLeast(positive(it.IntervalMinutes), minIntervalMinutes),
			TotalDoses:      positive(it.TotalDoses),
			DurationDays:    positive(it.DurationDays),
			FirstDoseAt:     it.FirstDoseAt,
			SpecificTimes:   normalizeTimes(it.SpecificTimes),
		}
		if n.MedicationName == "" && n.MedicationID == "" {
			continue
		}
		if n.FirstDoseAt == nil && startAt != nil {
			t := *startAt
			n.FirstDoseAt = &t
		}

		if n.IntervalMinutes == nil && len(n.SpecificTimes) == 0 {
			interval := defaultIntervalMinutes
			n.IntervalMinutes = &interval

			if n.TotalDoses == nil && n.DurationDays != nil {
				total := max(1, *n.DurationDays*defaultDosesPerDay)
				n.TotalDoses = &total
			}
		}

		out = append(out, n)
	}
	return out
}

// normalizeTimes descarta horarios que no sean HH:MM, conservando orden y duplicados.
func normalizeTimes(in []string) []string {
	out := make([]string, 0, len(in))
	for _, raw := range in {
		t := strings.TrimSpace(raw)
		if clock.IsClockTime(t) {
			out = append(out, t)
		}
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

func positive(v *int) *int {
	if v == nil || *v <= 0 {
		return nil
	}
	n := *v
	return &n
}

func atLeast(v *int, floor int) *int {
	if v == nil || *v >= floor {
		return v
	}
	return &floor
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if s := strings.TrimSpace(v); s != "" {
			return s
		}
	}
	return ""
}
