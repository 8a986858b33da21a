package plans

import (
	"sort"
	"time"

	"treatment-plans/internal/platform/clock"
)

// DoseEvent es lo que reporta el paciente sobre una toma.
type DoseEvent struct {
	Status       DoseStatus
	TakenAt      *time.Time // taken; nil => ahora
	RescheduleTo *time.Time // rescheduled; obligatorio
	Notes        *string    // nil => conserva las notas actuales
}

// DoseOutcome es el resultado de aplicar un evento: la toma actualizada y las
// hermanas desplazadas (en orden cronológico original).
type DoseOutcome struct {
	Entry   ScheduleEntry
	Shifted []ScheduleEntry
}

// Changed devuelve todas las tomas que hay que persistir.
func (o DoseOutcome) Changed() []ScheduleEntry {
	out := make([]ScheduleEntry, 0, len(o.Shifted)+1)
	out = append(out, o.Entry)
	return append(out, o.Shifted...)
}

// ApplyDose aplica ev sobre la toma entryID del item. siblings son todas las
// tomas del item (incluida la propia). now es el instante de la solicitud.
func ApplyDose(item Item, siblings []ScheduleEntry, entryID string, ev DoseEvent, now time.Time) (DoseOutcome, error) {
	idx := -1
	for i := range siblings {
		if siblings[i].ID == entryID {
			idx = i
			break
		}
	}
	if idx < 0 {
		return DoseOutcome{}, ErrNotFound
	}

	entry := siblings[idx]
	original := entry.ScheduledAt

	var anchor *time.Time

	switch ev.Status {
	case DoseTaken:
		at := now
		if ev.TakenAt != nil {
			at = *ev.TakenAt
		}
		dev := clock.MinutesBetween(entry.ScheduledAt, at)
		entry.Status = ScheduleStatusTaken
		entry.TakenAt = &at
		entry.WasSkipped = false
		entry.DeviationMinutes = &dev
		anchor = &at

	case DoseSkipped:
		entry.Status = ScheduleStatusSkipped
		entry.WasSkipped = true
		entry.TakenAt = nil
		entry.DeviationMinutes = nil

	case DoseRescheduled:
		if ev.RescheduleTo == nil {
			return DoseOutcome{}, invalid("reschedule_to", "required when status=rescheduled")
		}
		to := *ev.RescheduleTo
		if !to.After(now) {
			return DoseOutcome{}, invalid("reschedule_to", "must be in the future")
		}
		entry.ScheduledAt = to
		entry.Status = ScheduleStatusScheduled
		entry.TakenAt = nil
		entry.WasSkipped = false
		entry.DeviationMinutes = nil
		anchor = &to

	default:
		return DoseOutcome{}, invalid("status", "must be one of taken, skipped, rescheduled")
	}

	if ev.Notes != nil {
		entry.Notes = *ev.Notes
	}
	entry.UpdatedAt = now

	out := DoseOutcome{Entry: entry}
	if anchor != nil {
		out.Shifted = ForwardShift(item, siblings, entryID, original, *anchor, now)
	}
	return out, nil
}

// ForwardShift recalcula las tomas del item posteriores (por horario original)
// a la toma registrada: anchor + k*intervalo, k = 1, 2, ...
// Solo aplica a items en modo intervalo; los de horario fijo no se mueven.
func ForwardShift(item Item, siblings []ScheduleEntry, entryID string, originalAt, anchor, now time.Time) []ScheduleEntry {
	if item.Mode() != ModeInterval {
		return nil
	}
	interval := item.interval()

	future := make([]ScheduleEntry, 0, len(siblings))
	for _, s := range siblings {
		if s.ID == entryID {
			continue
		}
		if s.ScheduledAt.After(originalAt) {
			future = append(future, s)
		}
	}

	// precondición del desplazamiento: orden ascendente por horario original
	sort.SliceStable(future, func(i, j int) bool {
		return future[i].ScheduledAt.Before(future[j].ScheduledAt)
	})

	current := anchor
	for i := range future {
		current = clock.AddMinutes(current, interval)
		future[i].ScheduledAt = current
		future[i].Status = ScheduleStatusScheduled
		future[i].WasSkipped = false
		future[i].DeviationMinutes = nil
		future[i].UpdatedAt = now
	}
	return future
}
