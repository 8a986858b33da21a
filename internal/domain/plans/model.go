package plans

import "time"

// Plan es un tratamiento con nombre para un paciente.
type Plan struct {
	ID          string
	OwnerUserID string

	Title        string
	Instructions string

	Status   PlanStatus
	IsActive bool
	Source   Source

	StartAt *time.Time
	EndAt   *time.Time

	Items []Item

	CreatedAt time.Time
	UpdatedAt time.Time
}

// Item es un medicamento dentro del plan con su configuración de dosis.
type Item struct {
	ID     string
	PlanID string

	MedicationID   string // opcional, referencia al catálogo
	MedicationName string
	Dosage         string
	Route          string
	Instructions   string

	IntervalMinutes *int
	TotalDoses      *int
	DurationDays    *int
	FirstDoseAt     *time.Time
	SpecificTimes   []string // HH:MM

	Schedules []ScheduleEntry

	CreatedAt time.Time
	UpdatedAt time.Time
}

// Mode resuelve el modo de dosificación. Los horarios fijos tienen prioridad
// sobre el intervalo cuando ambos están presentes.
func (i Item) Mode() DosingMode {
	if len(i.SpecificTimes) > 0 {
		return ModeFixedTime
	}
	if i.interval() > 0 {
		return ModeInterval
	}
	return ModeNone
}

// HasDualMode reporta configuraciones con intervalo y horarios fijos a la vez.
func (i Item) HasDualMode() bool {
	return len(i.SpecificTimes) > 0 && i.interval() > 0
}

func (i Item) interval() int {
	if i.IntervalMinutes == nil {
		return 0
	}
	return *i.IntervalMinutes
}

// ScheduleEntry es una toma concreta con fecha y hora.
type ScheduleEntry struct {
	ID     string
	ItemID string

	ScheduledAt time.Time
	Status      ScheduleStatus

	TakenAt          *time.Time
	WasSkipped       bool
	DeviationMinutes *int // real - programado; solo con status taken

	Notes string

	CreatedAt time.Time
	UpdatedAt time.Time
}
