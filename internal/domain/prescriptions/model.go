package prescriptions

import "time"

type Status string

const (
	StatusPending       Status = "pending"
	StatusProcessing    Status = "processing"
	StatusParsed        Status = "parsed"
	StatusTextExtracted Status = "text_extracted"
	StatusManualReview  Status = "manual_review"
	StatusFailed        Status = "failed"
)

// Plannable reporta si el resultado del OCR alcanza para generar un plan.
func (s Status) Plannable() bool {
	return s == StatusParsed || s == StatusTextExtracted
}

// Upload es una receta subida por el paciente y su resultado de OCR.
type Upload struct {
	ID          string
	OwnerUserID string

	OriginalName string
	FilePath     string
	ContentType  string
	Notes        string

	Status        Status
	ExtractedText string
	ParsedItems   []ParsedItem
	FailureReason string
	Attempts      int
	ProcessedAt   *time.Time

	CreatedAt time.Time
	UpdatedAt time.Time
}

// ParsedItem es una línea de medicación reconocida en el texto.
type ParsedItem struct {
	MedicationName string `json:"medication_name"`
	Dosage         string `json:"dosage"`
	Instructions   string `json:"instructions"`
}
