package postgres

import (
	"context"
	"database/sql"

	"treatment-plans/internal/domain/medications"
)

type MedicationsRepo struct {
	db *sql.DB
}

func NewMedicationsRepo(db *sql.DB) *MedicationsRepo {
	return &MedicationsRepo{db: db}
}

const medicationColumns = `id, name, slug, human_summary, posology, fetched_at, created_at, updated_at`

func (r *MedicationsRepo) Upsert(ctx context.Context, m medications.Medication) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO medications (`+medicationColumns+`)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name,
			slug = EXCLUDED.slug,
			human_summary = EXCLUDED.human_summary,
			posology = EXCLUDED.posology,
			fetched_at = EXCLUDED.fetched_at,
			updated_at = EXCLUDED.updated_at
	`,
		m.ID,
		m.Name,
		m.Slug,
		m.HumanSummary,
		m.Posology,
		nullTime(m.FetchedAt),
		m.CreatedAt,
		m.UpdatedAt,
	)
	return err
}

func (r *MedicationsRepo) GetByID(ctx context.Context, id string) (medications.Medication, error) {
	return r.getOne(ctx, `SELECT `+medicationColumns+` FROM medications WHERE id = $1`, id)
}

func (r *MedicationsRepo) GetBySlug(ctx context.Context, slug string) (medications.Medication, error) {
	return r.getOne(ctx, `SELECT `+medicationColumns+` FROM medications WHERE slug = $1`, slug)
}

func (r *MedicationsRepo) getOne(ctx context.Context, query, arg string) (medications.Medication, error) {
	var m medications.Medication
	var fetched sql.NullTime
	err := r.db.QueryRowContext(ctx, query, arg).Scan(
		&m.ID,
		&m.Name,
		&m.Slug,
		&m.HumanSummary,
		&m.Posology,
		&fetched,
		&m.CreatedAt,
		&m.UpdatedAt,
	)
	if err != nil {
		if isNoRows(err) {
			return medications.Medication{}, medications.ErrNotFound
		}
		return medications.Medication{}, err
	}
	m.FetchedAt = timePtr(fetched)
	return m, nil
}
