package medications

import "time"

// Medication es una entrada del catálogo canónico.
type Medication struct {
	ID           string
	Name         string
	Slug         string
	HumanSummary string
	Posology     string
	FetchedAt    *time.Time
	CreatedAt    time.Time
	UpdatedAt    time.Time
}
