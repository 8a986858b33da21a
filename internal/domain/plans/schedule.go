package plans

import (
	"time"

	"treatment-plans/internal/platform/clock"
)

const (
	minutesPerDay = 1440

	// maxDosesPerItem acota las tomas que puede materializar un item.
	maxDosesPerItem = 2000
)

// Generator materializa las tomas de un item. Es puro salvo por la lectura de
// "ahora" cuando el item no trae first_dose_at.
type Generator struct {
	now func() time.Time
	loc *time.Location
}

// NewGenerator crea un generador. loc define el día calendario "local" para
// el modo de horarios fijos; nil => UTC.
func NewGenerator(now func() time.Time, loc *time.Location) *Generator {
	if now == nil {
		now = time.Now
	}
	if loc == nil {
		loc = time.UTC
	}
	return &Generator{now: now, loc: loc}
}

// Anchor es la primera toma del item, o "ahora" si no se informó.
func (g *Generator) Anchor(item Item) time.Time {
	if item.FirstDoseAt != nil {
		return *item.FirstDoseAt
	}
	return g.now()
}

// Generate devuelve las tomas ordenadas del item. Un item sin modo resoluble
// produce una lista vacía (p.ej. medicación "a demanda").
func (g *Generator) Generate(item Item) []ScheduleEntry {
	switch item.Mode() {
	case ModeFixedTime:
		return g.fixedTimes(item)
	case ModeInterval:
		return g.interval(item)
	default:
		return nil
	}
}

func (g *Generator) interval(item Item) []ScheduleEntry {
	interval := item.interval()
	count := TotalDoses(item)
	if interval <= 0 || count <= 0 {
		return nil
	}

	current := g.Anchor(item)
	out := make([]ScheduleEntry, 0, count)
	for i := 0; i < count; i++ {
		out = append(out, ScheduleEntry{
			ScheduledAt: current,
			Status:      ScheduleStatusScheduled,
		})
		current = clock.AddMinutes(current, interval)
	}
	return out
}

func (g *Generator) fixedTimes(item Item) []ScheduleEntry {
	days := 1
	if item.DurationDays != nil && *item.DurationDays > 0 {
		days = *item.DurationDays
	}

	times := make([]clock.ClockTime, 0, len(item.SpecificTimes))
	for _, raw := range item.SpecificTimes {
		ct, err := clock.ParseClockTime(raw)
		if err != nil {
			// la validación del input ya los rechaza; aquí solo se ignoran
			continue
		}
		times = append(times, ct)
	}
	if len(times) == 0 {
		return nil
	}
	// los horarios van en el orden informado, con duplicados
	days = min(days, maxDosesPerItem/len(times))
	if days == 0 {
		return nil
	}

	firstDay := clock.StartOfDay(g.Anchor(item), g.loc)
	out := make([]ScheduleEntry, 0, days*len(times))
	for d := 0; d < days; d++ {
		base := clock.AddDays(firstDay, d)
		for _, ct := range times {
			out = append(out, ScheduleEntry{
				ScheduledAt: clock.At(base, ct),
				Status:      ScheduleStatusScheduled,
			})
		}
	}
	return out
}

// TotalDoses resuelve la cantidad de tomas en modo intervalo:
// total explícito, o floor(1440/intervalo) * días (mínimo 1), o 0.
// Nunca supera maxDosesPerItem.
func TotalDoses(item Item) int {
	return min(doseCount(item.IntervalMinutes, item.TotalDoses, item.DurationDays, nil), maxDosesPerItem)
}

// doseCount cuenta las tomas que produciría un item sin materializarlas.
// Ante overflow devuelve maxDosesPerItem+1.
func doseCount(intervalMinutes, totalDoses, durationDays *int, specificTimes []string) int {
	days := 0
	if durationDays != nil && *durationDays > 0 {
		days = *durationDays
	}

	if k := len(specificTimes); k > 0 {
		days = max(days, 1)
		if days > maxDosesPerItem/k {
			return maxDosesPerItem + 1
		}
		return days * k
	}

	if totalDoses != nil && *totalDoses > 0 {
		return *totalDoses
	}
	if intervalMinutes == nil || *intervalMinutes <= 0 || days == 0 {
		return 0
	}
	perDay := minutesPerDay / *intervalMinutes
	if perDay > 0 && days > maxDosesPerItem/perDay {
		return maxDosesPerItem + 1
	}
	return max(1, perDay*days)
}
