package memory

import (
	"context"
	"errors"
	"sort"
	"strings"
	"sync"

	"treatment-plans/internal/domain/plans"
)

type planRepo struct {
	mu        sync.RWMutex
	byID      map[string]plans.Plan
	itemPlan  map[string]string // item -> plan
	entryItem map[string]string // toma -> item

	lockMu    sync.Mutex
	itemLocks map[string]*sync.Mutex
}

func NewPlanRepo() plans.Repository {
	return &planRepo{
		byID:      make(map[string]plans.Plan),
		itemPlan:  make(map[string]string),
		entryItem: make(map[string]string),
		itemLocks: make(map[string]*sync.Mutex),
	}
}

func clonePlan(p plans.Plan) plans.Plan {
	items := make([]plans.Item, len(p.Items))
	for i, it := range p.Items {
		it.Schedules = append([]plans.ScheduleEntry(nil), it.Schedules...)
		it.SpecificTimes = append([]string(nil), it.SpecificTimes...)
		items[i] = it
	}
	p.Items = items
	return p
}

func (r *planRepo) Create(ctx context.Context, p plans.Plan) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if strings.TrimSpace(p.ID) == "" {
		return errors.New("plan id required")
	}
	if _, exists := r.byID[p.ID]; exists {
		return errors.New("plan already exists")
	}
	r.byID[p.ID] = clonePlan(p)
	for _, it := range p.Items {
		r.itemPlan[it.ID] = p.ID
		for _, e := range it.Schedules {
			r.entryItem[e.ID] = it.ID
		}
	}
	return nil
}

func (r *planRepo) GetByID(ctx context.Context, id string) (plans.Plan, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	p, ok := r.byID[id]
	if !ok {
		return plans.Plan{}, plans.ErrNotFound
	}
	return clonePlan(p), nil
}

func (r *planRepo) ListByOwner(ctx context.Context, ownerUserID string) ([]plans.Plan, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]plans.Plan, 0)
	for _, p := range r.byID {
		if p.OwnerUserID == ownerUserID {
			out = append(out, clonePlan(p))
		}
	}
	// más recientes primero
	sort.Slice(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out, nil
}

func (r *planRepo) Update(ctx context.Context, p plans.Plan) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	cur, ok := r.byID[p.ID]
	if !ok {
		return plans.ErrNotFound
	}
	cur.Title = p.Title
	cur.Instructions = p.Instructions
	cur.Status = p.Status
	cur.IsActive = p.IsActive
	cur.StartAt = p.StartAt
	cur.EndAt = p.EndAt
	cur.UpdatedAt = p.UpdatedAt
	r.byID[p.ID] = cur
	return nil
}

func (r *planRepo) Delete(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	p, ok := r.byID[id]
	if !ok {
		return plans.ErrNotFound
	}
	r.lockMu.Lock()
	for _, it := range p.Items {
		delete(r.itemPlan, it.ID)
		delete(r.itemLocks, it.ID)
		for _, e := range it.Schedules {
			delete(r.entryItem, e.ID)
		}
	}
	r.lockMu.Unlock()
	delete(r.byID, id)
	return nil
}

func (r *planRepo) GetItem(ctx context.Context, itemID string) (plans.Item, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	it, _, ok := r.findItem(itemID)
	if !ok {
		return plans.Item{}, plans.ErrNotFound
	}
	return it, nil
}

func (r *planRepo) GetSchedule(ctx context.Context, scheduleID string) (plans.ScheduleEntry, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	itemID, ok := r.entryItem[scheduleID]
	if !ok {
		return plans.ScheduleEntry{}, plans.ErrNotFound
	}
	it, _, ok := r.findItem(itemID)
	if !ok {
		return plans.ScheduleEntry{}, plans.ErrNotFound
	}
	for _, e := range it.Schedules {
		if e.ID == scheduleID {
			return e, nil
		}
	}
	return plans.ScheduleEntry{}, plans.ErrNotFound
}

// MutateItemSchedules toma el lock del item durante todo el ciclo
// leer-aplicar-escribir; items distintos no se bloquean entre sí.
func (r *planRepo) MutateItemSchedules(ctx context.Context, itemID string, fn func(plans.Item, []plans.ScheduleEntry) ([]plans.ScheduleEntry, error)) error {
	lock := r.itemLock(itemID)
	lock.Lock()
	defer lock.Unlock()

	if err := ctx.Err(); err != nil {
		return err
	}

	r.mu.RLock()
	item, _, ok := r.findItem(itemID)
	r.mu.RUnlock()
	if !ok {
		r.dropLock(itemID, lock)
		return plans.ErrNotFound
	}

	changed, err := fn(item, append([]plans.ScheduleEntry(nil), item.Schedules...))
	if err != nil {
		return err
	}
	if len(changed) == 0 {
		return nil
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	_, pos, ok := r.findItem(itemID)
	if !ok {
		return plans.ErrNotFound
	}
	p := r.byID[r.itemPlan[itemID]]
	entries := p.Items[pos].Schedules
	for _, c := range changed {
		for k := range entries {
			if entries[k].ID == c.ID {
				entries[k] = c
			}
		}
	}
	return nil
}

func (r *planRepo) itemLock(itemID string) *sync.Mutex {
	r.lockMu.Lock()
	defer r.lockMu.Unlock()

	l, ok := r.itemLocks[itemID]
	if !ok {
		l = &sync.Mutex{}
		r.itemLocks[itemID] = l
	}
	return l
}

// dropLock descarta el lock de un item que ya no existe.
func (r *planRepo) dropLock(itemID string, lock *sync.Mutex) {
	r.lockMu.Lock()
	defer r.lockMu.Unlock()
	if r.itemLocks[itemID] == lock {
		delete(r.itemLocks, itemID)
	}
}

// findItem requiere r.mu tomado. Devuelve una copia del item y su posición.
func (r *planRepo) findItem(itemID string) (plans.Item, int, bool) {
	planID, ok := r.itemPlan[itemID]
	if !ok {
		return plans.Item{}, 0, false
	}
	p, ok := r.byID[planID]
	if !ok {
		return plans.Item{}, 0, false
	}
	for i, it := range p.Items {
		if it.ID == itemID {
			it.Schedules = append([]plans.ScheduleEntry(nil), it.Schedules...)
			return it, i, true
		}
	}
	return plans.Item{}, 0, false
}
