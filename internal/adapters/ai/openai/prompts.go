package openai

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"treatment-plans/internal/domain/plans"
)

type promptPatient struct {
	AllergiesCount    int `json:"allergies_count"`
	ActiveMedications int `json:"active_medications"`
}

type promptItem struct {
	MedicationName string `json:"medication_name"`
	Dosage         string `json:"dosage"`
	Instructions   string `json:"instructions"`
}

type promptContext struct {
	Patient          promptPatient `json:"patient"`
	StartAt          *string       `json:"start_at"`
	PrescriptionText *string       `json:"prescription_text,omitempty"`
	Items            []promptItem  `json:"items,omitempty"`
}

func newPromptContext(p plans.PatientSnapshot, startAt *time.Time) promptContext {
	return promptContext{
		Patient: promptPatient{
			AllergiesCount:    p.AllergiesCount,
			ActiveMedications: p.ActiveMedications,
		},
		StartAt: formatStart(startAt),
	}
}

func formatStart(t *time.Time) *string {
	if t == nil {
		return nil
	}
	s := t.Format(time.RFC3339)
	return &s
}

func contextJSON(pc promptContext) string {
	b, err := json.MarshalIndent(pc, "", "  ")
	if err != nil {
		return "{}"
	}
	return string(b)
}

const summaryRules = `You build a pharmacological treatment plan from a few hints.
Answer **only** a JSON object with the fields: title, instructions, items (array).
Each item must contain: medication_name, dosage, route, instructions, interval_minutes (minutes), total_doses, duration_days, first_dose_at (ISO8601), specific_times (list of HH:MM daily times when it makes sense).
Rules:
- Prefer 3 to 4 daily times when no interval is given.
- If duration_days is present compute a coherent total_doses; otherwise give a basic total_doses.
- Use start_at from the context as the first dose reference when it makes sense.
- Be conservative and practical, never invent unusual dosing.
- Keep answers short to save tokens.`

const prescriptionRules = `You are a digital pharmacist converting prescriptions into a dosing plan.
Answer only a JSON object with fields: title, instructions, items (array).
Each item: medication_name, dosage, route, instructions, interval_minutes, total_doses, duration_days, first_dose_at (ISO8601), specific_times (HH:MM list when needed).
Rules:
- Avoid absorption conflicts: space medications that may interact by at least 2h when details are unknown.
- Keep regular intervals and realistic times (morning, lunch, afternoon, night) to maximize adherence.
- Never suggest dangerous combinations; when in doubt flag it in the item instructions (e.g. "check interaction with your doctor").
- Respect the prescribed dose and duration; when missing propose a conservative scheme.
- Be concise to save tokens.`

func summarySystemPrompt(pc promptContext) string {
	return summaryRules + "\n\nAuxiliary context:\n" + contextJSON(pc)
}

func prescriptionSystemPrompt(pc promptContext) string {
	return prescriptionRules + "\n\nPatient and prescription context:\n" + contextJSON(pc)
}

func summaryUserPrompt(h plans.SummaryHints) string {
	start := "No start date provided"
	if s := formatStart(h.StartAt); s != nil {
		start = "Suggested start date/time: " + *s
	}
	title := "No suggested title"
	if h.Title != "" {
		title = "Suggested title: " + h.Title
	}
	return fmt.Sprintf("Treatment summary: %s\n%s\n%s", h.Summary, start, title)
}

func prescriptionUserPrompt(h plans.PrescriptionHints) string {
	var b strings.Builder
	b.WriteString("Items identified in the prescription:\n")
	for _, it := range h.Items {
		name := it.MedicationName
		if name == "" {
			name = "Medication"
		}
		fmt.Fprintf(&b, "- %s %s %s\n", name, it.Dosage, it.Instructions)
	}
	if s := formatStart(h.StartAt); s != nil {
		b.WriteString("Start at: " + *s)
	} else {
		b.WriteString("No start date/time provided")
	}
	return b.String()
}
