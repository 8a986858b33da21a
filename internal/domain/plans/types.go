package plans

type PlanStatus string

const (
	PlanStatusDraft  PlanStatus = "draft"
	PlanStatusActive PlanStatus = "active"
)

// Source indica cómo se originó el plan.
type Source string

const (
	SourceManual   Source = "manual"
	SourceOCR      Source = "ocr"
	SourceImported Source = "imported"
)

func (s Source) Valid() bool {
	switch s {
	case SourceManual, SourceOCR, SourceImported:
		return true
	default:
		return false
	}
}

type ScheduleStatus string

const (
	ScheduleStatusScheduled ScheduleStatus = "scheduled"
	ScheduleStatusTaken     ScheduleStatus = "taken"
	ScheduleStatusSkipped   ScheduleStatus = "skipped"
)

// DosingMode se deriva de la configuración del item; no se persiste.
type DosingMode string

const (
	ModeNone      DosingMode = "none"
	ModeInterval  DosingMode = "interval"
	ModeFixedTime DosingMode = "fixed_time"
)

// DoseStatus es el evento reportado por el paciente sobre una dosis.
type DoseStatus string

const (
	DoseTaken       DoseStatus = "taken"
	DoseSkipped     DoseStatus = "skipped"
	DoseRescheduled DoseStatus = "rescheduled"
)
