package prescriptions

import (
	"context"
	"time"

	"treatment-plans/internal/domain/plans"
)

type Repository interface {
	Create(ctx context.Context, u Upload) error
	GetByID(ctx context.Context, id string) (Upload, error)
	// ListByOwner devuelve las más recientes primero, hasta limit.
	ListByOwner(ctx context.Context, ownerUserID string, limit int) ([]Upload, error)
	Update(ctx context.Context, u Upload) error
	Delete(ctx context.Context, id string) error
}

// FileStore guarda los archivos originales de las recetas.
type FileStore interface {
	Save(ctx context.Context, ownerUserID, name string, data []byte) (string, error)
	Read(ctx context.Context, path string) ([]byte, error)
	Remove(ctx context.Context, path string) error
}

type Job struct {
	UploadID   string    `json:"upload_id"`
	EnqueuedAt time.Time `json:"enqueued_at"`
}

// Queue entrega trabajos de OCR al worker.
// Dequeue bloquea hasta que haya un trabajo o ctx termine.
type Queue interface {
	Enqueue(ctx context.Context, job Job) error
	Dequeue(ctx context.Context) (Job, error)
}

// TextExtractor es el proveedor de OCR.
type TextExtractor interface {
	Enabled() bool
	ExtractText(ctx context.Context, data []byte, contentType string) (string, error)
}

// PlanCreator crea planes a partir de los items de una receta.
type PlanCreator interface {
	CreateFromPrescription(ctx context.Context, ownerUserID string, in plans.PrescriptionInput) (plans.Plan, error)
}
