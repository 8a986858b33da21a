package plans

import "context"

// Repository persiste planes con sus items y tomas.
// Create y MutateItemSchedules deben ser atómicos.
type Repository interface {
	// Create persiste plan, items y tomas en una sola unidad atómica.
	Create(ctx context.Context, p Plan) error
	GetByID(ctx context.Context, id string) (Plan, error)
	ListByOwner(ctx context.Context, ownerUserID string) ([]Plan, error)
	// Update solo toca los campos de cabecera del plan.
	Update(ctx context.Context, p Plan) error
	// Delete borra en cascada items y tomas.
	Delete(ctx context.Context, id string) error

	GetItem(ctx context.Context, itemID string) (Item, error)
	GetSchedule(ctx context.Context, scheduleID string) (ScheduleEntry, error)

	// MutateItemSchedules carga el item y todas sus tomas bajo un lock por item,
	// ejecuta fn y persiste las tomas devueltas, todo en una transacción.
	// Dos llamadas sobre el mismo item nunca se intercalan.
	MutateItemSchedules(ctx context.Context, itemID string, fn func(item Item, entries []ScheduleEntry) ([]ScheduleEntry, error)) error
}
