package postgres

import (
	"context"
	"database/sql"

	"treatment-plans/internal/domain/plans"
)

// Patients arma el snapshot de contexto desde las tablas clínicas del usuario.
type Patients struct {
	db *sql.DB
}

func NewPatients(db *sql.DB) *Patients {
	return &Patients{db: db}
}

func (p *Patients) Snapshot(ctx context.Context, ownerUserID string) (plans.PatientSnapshot, error) {
	var snap plans.PatientSnapshot
	err := p.db.QueryRowContext(ctx, `
		SELECT
			(SELECT COUNT(*) FROM user_allergies WHERE user_id = $1),
			(SELECT COUNT(*) FROM user_medication_courses WHERE user_id = $1 AND is_active)
	`, ownerUserID).Scan(&snap.AllergiesCount, &snap.ActiveMedications)
	if err != nil {
		return plans.PatientSnapshot{}, err
	}
	return snap, nil
}
