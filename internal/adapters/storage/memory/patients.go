package memory

import (
	"context"
	"sync"

	"treatment-plans/internal/domain/plans"
)

// Patients guarda snapshots sembrados a mano (modo dev y tests).
type Patients struct {
	mu    sync.RWMutex
	byUID map[string]plans.PatientSnapshot
}

func NewPatients() *Patients {
	return &Patients{byUID: make(map[string]plans.PatientSnapshot)}
}

func (p *Patients) Seed(ownerUserID string, snap plans.PatientSnapshot) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.byUID[ownerUserID] = snap
}

// Snapshot de un usuario desconocido es el valor cero.
func (p *Patients) Snapshot(ctx context.Context, ownerUserID string) (plans.PatientSnapshot, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.byUID[ownerUserID], nil
}
