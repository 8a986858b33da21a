package medications

import "context"

type Repository interface {
	Upsert(ctx context.Context, m Medication) error
	GetByID(ctx context.Context, id string) (Medication, error)
	GetBySlug(ctx context.Context, slug string) (Medication, error)
}
