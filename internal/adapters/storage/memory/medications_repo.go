package memory

import (
	"context"
	"errors"
	"strings"
	"sync"

	"treatment-plans/internal/domain/medications"
)

type medicationRepo struct {
	mu     sync.RWMutex
	byID   map[string]medications.Medication
	bySlug map[string]string
}

func NewMedicationRepo() medications.Repository {
	return &medicationRepo{
		byID:   make(map[string]medications.Medication),
		bySlug: make(map[string]string),
	}
}

// Upsert reemplaza por ID; el slug es único.
func (r *medicationRepo) Upsert(ctx context.Context, m medications.Medication) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if strings.TrimSpace(m.ID) == "" {
		return errors.New("medication id required")
	}
	if other, ok := r.bySlug[m.Slug]; ok && other != m.ID {
		return errors.New("medication slug already exists")
	}
	if cur, ok := r.byID[m.ID]; ok && cur.Slug != m.Slug {
		delete(r.bySlug, cur.Slug)
	}
	r.byID[m.ID] = m
	r.bySlug[m.Slug] = m.ID
	return nil
}

func (r *medicationRepo) GetByID(ctx context.Context, id string) (medications.Medication, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	m, ok := r.byID[id]
	if !ok {
		return medications.Medication{}, medications.ErrNotFound
	}
	return m, nil
}

func (r *medicationRepo) GetBySlug(ctx context.Context, slug string) (medications.Medication, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	id, ok := r.bySlug[slug]
	if !ok {
		return medications.Medication{}, medications.ErrNotFound
	}
	return r.byID[id], nil
}
