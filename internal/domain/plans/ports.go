package plans

import (
	"context"
	"time"
)

// PatientSnapshot es el contexto del paciente que se envía al redactor IA.
type PatientSnapshot struct {
	AllergiesCount    int
	ActiveMedications int
}

// PatientContext resuelve el snapshot de un paciente.
type PatientContext interface {
	Snapshot(ctx context.Context, ownerUserID string) (PatientSnapshot, error)
}

// MedicationLookup resuelve el nombre canónico de un medicamento del catálogo.
type MedicationLookup interface {
	NameByID(ctx context.Context, id string) (string, error)
}

type SummaryHints struct {
	Summary string
	StartAt *time.Time
	Title   string
	Patient PatientSnapshot
}

type PrescriptionHints struct {
	Items   []ItemInput
	RawText string
	StartAt *time.Time
	Patient PatientSnapshot
}

// Draft es la respuesta cruda del redactor; el servicio la normaliza.
type Draft struct {
	Title        string
	Instructions string
	Items        []ItemInput
	Usage        map[string]any
}

// Drafter es el colaborador IA que propone planes. Puede fallar o tardar;
// el servicio acota cada llamada con un timeout.
type Drafter interface {
	DraftFromSummary(ctx context.Context, hints SummaryHints) (Draft, error)
	DraftFromPrescription(ctx context.Context, hints PrescriptionHints) (Draft, error)
}
