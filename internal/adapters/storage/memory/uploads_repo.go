package memory

import (
	"context"
	"errors"
	"sort"
	"strings"
	"sync"

	"treatment-plans/internal/domain/prescriptions"
)

type uploadRepo struct {
	mu   sync.RWMutex
	byID map[string]prescriptions.Upload
}

func NewUploadRepo() prescriptions.Repository {
	return &uploadRepo{byID: make(map[string]prescriptions.Upload)}
}

func cloneUpload(u prescriptions.Upload) prescriptions.Upload {
	u.ParsedItems = append([]prescriptions.ParsedItem(nil), u.ParsedItems...)
	return u
}

func (r *uploadRepo) Create(ctx context.Context, u prescriptions.Upload) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if strings.TrimSpace(u.ID) == "" {
		return errors.New("upload id required")
	}
	if _, exists := r.byID[u.ID]; exists {
		return errors.New("upload already exists")
	}
	r.byID[u.ID] = cloneUpload(u)
	return nil
}

func (r *uploadRepo) GetByID(ctx context.Context, id string) (prescriptions.Upload, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	u, ok := r.byID[id]
	if !ok {
		return prescriptions.Upload{}, prescriptions.ErrNotFound
	}
	return cloneUpload(u), nil
}

func (r *uploadRepo) ListByOwner(ctx context.Context, ownerUserID string, limit int) ([]prescriptions.Upload, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]prescriptions.Upload, 0)
	for _, u := range r.byID {
		if u.OwnerUserID == ownerUserID {
			out = append(out, cloneUpload(u))
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r *uploadRepo) Update(ctx context.Context, u prescriptions.Upload) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.byID[u.ID]; !ok {
		return prescriptions.ErrNotFound
	}
	r.byID[u.ID] = cloneUpload(u)
	return nil
}

func (r *uploadRepo) Delete(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.byID[id]; !ok {
		return prescriptions.ErrNotFound
	}
	delete(r.byID, id)
	return nil
}
