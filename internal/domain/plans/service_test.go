package plans

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// -------------------------
// Test repo (in-memory)
// -------------------------

type testRepo struct {
	mu        sync.Mutex
	byID      map[string]Plan
	createErr error
}

func newTestRepo() *testRepo {
	return &testRepo{byID: map[string]Plan{}}
}

func clonePlan(p Plan) Plan {
	items := make([]Item, len(p.Items))
	for i, it := range p.Items {
		it.Schedules = append([]ScheduleEntry(nil), it.Schedules...)
		items[i] = it
	}
	p.Items = items
	return p
}

func (r *testRepo) Create(ctx context.Context, p Plan) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.createErr != nil {
		return r.createErr
	}
	r.byID[p.ID] = clonePlan(p)
	return nil
}

func (r *testRepo) GetByID(ctx context.Context, id string) (Plan, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.byID[id]
	if !ok {
		return Plan{}, ErrNotFound
	}
	return clonePlan(p), nil
}

func (r *testRepo) ListByOwner(ctx context.Context, ownerUserID string) ([]Plan, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Plan, 0)
	for _, p := range r.byID {
		if p.OwnerUserID == ownerUserID {
			out = append(out, clonePlan(p))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (r *testRepo) Update(ctx context.Context, p Plan) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cur, ok := r.byID[p.ID]
	if !ok {
		return ErrNotFound
	}
	p.Items = cur.Items
	r.byID[p.ID] = p
	return nil
}

func (r *testRepo) Delete(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.byID[id]; !ok {
		return ErrNotFound
	}
	delete(r.byID, id)
	return nil
}

func (r *testRepo) GetItem(ctx context.Context, itemID string) (Item, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, p := range r.byID {
		for _, it := range p.Items {
			if it.ID == itemID {
				return it, nil
			}
		}
	}
	return Item{}, ErrNotFound
}

func (r *testRepo) GetSchedule(ctx context.Context, scheduleID string) (ScheduleEntry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, p := range r.byID {
		for _, it := range p.Items {
			for _, e := range it.Schedules {
				if e.ID == scheduleID {
					return e, nil
				}
			}
		}
	}
	return ScheduleEntry{}, ErrNotFound
}

func (r *testRepo) MutateItemSchedules(ctx context.Context, itemID string, fn func(Item, []ScheduleEntry) ([]ScheduleEntry, error)) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for pid, p := range r.byID {
		for i, it := range p.Items {
			if it.ID != itemID {
				continue
			}
			changed, err := fn(it, append([]ScheduleEntry(nil), it.Schedules...))
			if err != nil {
				return err
			}
			for _, c := range changed {
				for k := range it.Schedules {
					if it.Schedules[k].ID == c.ID {
						it.Schedules[k] = c
					}
				}
			}
			p.Items[i] = it
			r.byID[pid] = p
			return nil
		}
	}
	return ErrNotFound
}

func (r *testRepo) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.byID)
}

// -------------------------
// Fakes de colaboradores
// -------------------------

type fakeDrafter struct {
	draft       Draft
	err         error
	block       bool
	gotSummary  SummaryHints
	gotPrescrip PrescriptionHints
}

func (f *fakeDrafter) DraftFromSummary(ctx context.Context, hints SummaryHints) (Draft, error) {
	f.gotSummary = hints
	return f.respond(ctx)
}

func (f *fakeDrafter) DraftFromPrescription(ctx context.Context, hints PrescriptionHints) (Draft, error) {
	f.gotPrescrip = hints
	return f.respond(ctx)
}

func (f *fakeDrafter) respond(ctx context.Context) (Draft, error) {
	if f.block {
		<-ctx.Done()
		return Draft{}, ctx.Err()
	}
	return f.draft, f.err
}

type fakePatients struct {
	snap PatientSnapshot
	err  error
}

func (f fakePatients) Snapshot(ctx context.Context, ownerUserID string) (PatientSnapshot, error) {
	return f.snap, f.err
}

type fakeMedications map[string]string

func (f fakeMedications) NameByID(ctx context.Context, id string) (string, error) {
	name, ok := f[id]
	if !ok {
		return "", ErrNotFound
	}
	return name, nil
}

func newTestService(t *testing.T, repo Repository, opts Options) *Service {
	t.Helper()
	svc := NewService(repo, opts)
	svc.now = func() time.Time { return ts(t, "2025-01-01T07:00:00Z") }
	return svc
}

// -------------------------
// CreatePlan
// -------------------------

func TestCreatePlan_GeneratesSchedulesAndStartAt(t *testing.T) {
	repo := newTestRepo()
	svc := newTestService(t, repo, Options{})
	first := ts(t, "2025-01-01T08:00:00Z")

	p, err := svc.CreatePlan(context.Background(), "u1", CreateInput{
		Title: "  Amoxicilina  ",
		Items: []ItemInput{
			{MedicationName: "Amoxicilina", IntervalMinutes: ptr(480), TotalDoses: ptr(3), FirstDoseAt: &first},
			{MedicationName: "Ibuprofeno", SpecificTimes: []string{"08:00", "20:00"}, DurationDays: ptr(2), FirstDoseAt: &first},
		},
	})
	require.NoError(t, err)

	assert.NotEmpty(t, p.ID)
	assert.Equal(t, "Amoxicilina", p.Title)
	assert.Equal(t, PlanStatusActive, p.Status)
	assert.True(t, p.IsActive)
	assert.Equal(t, SourceManual, p.Source)
	require.NotNil(t, p.StartAt)
	assert.Equal(t, first, *p.StartAt)

	require.Len(t, p.Items, 2)
	assert.Len(t, p.Items[0].Schedules, 3)
	assert.Len(t, p.Items[1].Schedules, 4)
	for _, it := range p.Items {
		assert.Equal(t, p.ID, it.PlanID)
		for _, e := range it.Schedules {
			assert.NotEmpty(t, e.ID)
			assert.Equal(t, it.ID, e.ItemID)
		}
	}

	stored, err := repo.GetByID(context.Background(), p.ID)
	require.NoError(t, err)
	assert.Len(t, stored.Items, 2)
}

func TestCreatePlan_StartAtIsEarliestAnchor(t *testing.T) {
	svc := newTestService(t, newTestRepo(), Options{})
	late := ts(t, "2025-01-03T08:00:00Z")
	early := ts(t, "2025-01-02T08:00:00Z")

	p, err := svc.CreatePlan(context.Background(), "u1", CreateInput{
		Title: "Plan",
		Items: []ItemInput{
			{MedicationName: "A", IntervalMinutes: ptr(60), TotalDoses: ptr(1), FirstDoseAt: &late},
			{MedicationName: "B", IntervalMinutes: ptr(60), TotalDoses: ptr(1), FirstDoseAt: &early},
		},
	})
	require.NoError(t, err)
	assert.Equal(t, early, *p.StartAt)

	explicit := ts(t, "2025-01-01T00:00:00Z")
	p, err = svc.CreatePlan(context.Background(), "u1", CreateInput{
		Title:   "Plan",
		StartAt: &explicit,
		Items:   []ItemInput{{MedicationName: "A", IntervalMinutes: ptr(60), TotalDoses: ptr(1), FirstDoseAt: &late}},
	})
	require.NoError(t, err)
	assert.Equal(t, explicit, *p.StartAt)
}

func TestCreatePlan_EmptySchedulesSucceed(t *testing.T) {
	svc := newTestService(t, newTestRepo(), Options{})

	p, err := svc.CreatePlan(context.Background(), "u1", CreateInput{
		Title: "A demanda",
		Items: []ItemInput{{MedicationName: "Paracetamol", DurationDays: ptr(3)}},
	})
	require.NoError(t, err)
	require.Len(t, p.Items, 1)
	assert.Empty(t, p.Items[0].Schedules)
	// sin first_dose_at el ancla es "ahora"
	assert.Equal(t, ts(t, "2025-01-01T07:00:00Z"), *p.StartAt)
}

func TestCreatePlan_PersistenceFailureLeavesNothing(t *testing.T) {
	repo := newTestRepo()
	repo.createErr = errors.New("db down")
	svc := newTestService(t, repo, Options{})

	_, err := svc.CreatePlan(context.Background(), "u1", CreateInput{
		Title: "Plan",
		Items: []ItemInput{{MedicationName: "A", IntervalMinutes: ptr(60), TotalDoses: ptr(2)}},
	})
	assert.ErrorIs(t, err, ErrPersistence)
	assert.Zero(t, repo.count())
}

func TestCreatePlan_DoseLimitBoundary(t *testing.T) {
	svc := newTestService(t, newTestRepo(), Options{})
	first := ts(t, "2025-01-01T08:00:00Z")

	p, err := svc.CreatePlan(context.Background(), "u1", CreateInput{
		Title: "P",
		Items: []ItemInput{{MedicationName: "A", IntervalMinutes: ptr(60), TotalDoses: ptr(maxDosesPerItem), FirstDoseAt: &first}},
	})
	require.NoError(t, err)
	assert.Len(t, p.Items[0].Schedules, maxDosesPerItem)

	_, err = svc.CreatePlan(context.Background(), "u1", CreateInput{
		Title: "P",
		Items: []ItemInput{{MedicationName: "A", IntervalMinutes: ptr(60), TotalDoses: ptr(maxDosesPerItem + 1), FirstDoseAt: &first}},
	})
	var ve *ValidationError
	require.ErrorAs(t, err, &ve)
	assert.Equal(t, "items[0].total_doses", ve.Field)
}

func TestCreatePlan_Validation(t *testing.T) {
	svc := newTestService(t, newTestRepo(), Options{})
	start := ts(t, "2025-01-02T00:00:00Z")
	end := ts(t, "2025-01-01T00:00:00Z")

	cases := []struct {
		name  string
		in    CreateInput
		field string
	}{
		{"title", CreateInput{Title: "  ", Items: []ItemInput{{MedicationName: "A"}}}, "title"},
		{"items", CreateInput{Title: "P"}, "items"},
		{"medication", CreateInput{Title: "P", Items: []ItemInput{{Dosage: "1"}}}, "items[0].medication_name"},
		{"interval", CreateInput{Title: "P", Items: []ItemInput{{MedicationName: "A", IntervalMinutes: ptr(0)}}}, "items[0].interval_minutes"},
		{"interval too short", CreateInput{Title: "P", Items: []ItemInput{{MedicationName: "A", IntervalMinutes: ptr(15), TotalDoses: ptr(2)}}}, "items[0].interval_minutes"},
		{"long name", CreateInput{Title: "P", Items: []ItemInput{{MedicationName: strings.Repeat("a", 256)}}}, "items[0].medication_name"},
		{"long dosage", CreateInput{Title: "P", Items: []ItemInput{{MedicationName: "A", Dosage: strings.Repeat("1", 256)}}}, "items[0].dosage"},
		{"long route", CreateInput{Title: "P", Items: []ItemInput{{MedicationName: "A", Route: strings.Repeat("v", 256)}}}, "items[0].route"},
		{"too many doses", CreateInput{Title: "P", Items: []ItemInput{{MedicationName: "A", IntervalMinutes: ptr(60), TotalDoses: ptr(math.MaxInt)}}}, "items[0].total_doses"},
		{"too many derived doses", CreateInput{Title: "P", Items: []ItemInput{{MedicationName: "A", IntervalMinutes: ptr(30), DurationDays: ptr(math.MaxInt)}}}, "items[0].total_doses"},
		{"too many fixed doses", CreateInput{Title: "P", Items: []ItemInput{{MedicationName: "A", SpecificTimes: []string{"08:00", "20:00"}, DurationDays: ptr(maxDosesPerItem)}}}, "items[0].total_doses"},
		{"total", CreateInput{Title: "P", Items: []ItemInput{{MedicationName: "A", TotalDoses: ptr(-1)}}}, "items[0].total_doses"},
		{"times", CreateInput{Title: "P", Items: []ItemInput{{MedicationName: "A"}, {MedicationName: "B", SpecificTimes: []string{"8:00"}}}}, "items[1].specific_times"},
		{"source", CreateInput{Title: "P", Source: "fax", Items: []ItemInput{{MedicationName: "A"}}}, "source"},
		{"dates", CreateInput{Title: "P", StartAt: &start, EndAt: &end, Items: []ItemInput{{MedicationName: "A"}}}, "end_at"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := svc.CreatePlan(context.Background(), "u1", tc.in)
			var ve *ValidationError
			require.ErrorAs(t, err, &ve)
			assert.Equal(t, tc.field, ve.Field)
			assert.ErrorIs(t, err, ErrInvalidInput)
		})
	}

	_, err := svc.CreatePlan(context.Background(), " ", CreateInput{Title: "P", Items: []ItemInput{{MedicationName: "A"}}})
	assert.ErrorIs(t, err, ErrInvalidInput)
}

func TestCreatePlan_MedicationLookup(t *testing.T) {
	svc := newTestService(t, newTestRepo(), Options{
		Medications: fakeMedications{"med-1": "Amoxicilina 500mg"},
	})

	p, err := svc.CreatePlan(context.Background(), "u1", CreateInput{
		Title: "P",
		Items: []ItemInput{
			{MedicationID: "med-1", MedicationName: "amoxi"},
			{MedicationID: "med-404", MedicationName: "Dipirona"},
		},
	})
	require.NoError(t, err)
	assert.Equal(t, "Amoxicilina 500mg", p.Items[0].MedicationName)
	assert.Equal(t, "med-1", p.Items[0].MedicationID)
	assert.Equal(t, "Dipirona", p.Items[1].MedicationName)
	assert.Empty(t, p.Items[1].MedicationID)

	_, err = svc.CreatePlan(context.Background(), "u1", CreateInput{
		Title: "P",
		Items: []ItemInput{{MedicationID: "med-404"}},
	})
	var ve *ValidationError
	require.ErrorAs(t, err, &ve)
	assert.Equal(t, "items[0].medication_name", ve.Field)
}

// -------------------------
// SuggestPlan
// -------------------------

func TestSuggestPlan_NormalizesDraft(t *testing.T) {
	start := ts(t, "2025-01-05T09:00:00Z")
	items := []ItemInput{
		{MedicationName: " Amoxicilina ", DurationDays: ptr(7)},
		{MedicationName: "Ibuprofeno", SpecificTimes: []string{"08:00", "bad", "20:00"}},
		{MedicationName: "", Dosage: "sin nombre"},
	}
	for i := 0; i < 5; i++ {
		items = append(items, ItemInput{MedicationName: fmt.Sprintf("Extra %d", i), IntervalMinutes: ptr(720)})
	}
	drafter := &fakeDrafter{draft: Draft{Items: items, Usage: map[string]any{"total_tokens": 42}}}
	svc := newTestService(t, newTestRepo(), Options{
		Drafter:  drafter,
		Patients: fakePatients{snap: PatientSnapshot{AllergiesCount: 2, ActiveMedications: 1}},
	})

	s, err := svc.SuggestPlan(context.Background(), "u1", SuggestInput{Summary: " dolor de garganta ", StartAt: &start})
	require.NoError(t, err)

	assert.Equal(t, "dolor de garganta", drafter.gotSummary.Summary)
	assert.Equal(t, 2, drafter.gotSummary.Patient.AllergiesCount)

	assert.Equal(t, "Suggested plan", s.Title)
	assert.Equal(t, "Review and adjust if needed.", s.Instructions)
	assert.Equal(t, &start, s.StartAt)
	assert.Equal(t, 42, s.Usage["total_tokens"])

	// se recorta a 5 y se descarta el item sin nombre
	require.Len(t, s.Items, 4)
	amox := s.Items[0]
	assert.Equal(t, "Amoxicilina", amox.MedicationName)
	assert.Equal(t, 480, *amox.IntervalMinutes)
	assert.Equal(t, 21, *amox.TotalDoses)
	assert.Equal(t, start, *amox.FirstDoseAt)

	ibu := s.Items[1]
	assert.Nil(t, ibu.IntervalMinutes)
	assert.Equal(t, []string{"08:00", "20:00"}, ibu.SpecificTimes)
}

func TestSuggestPlan_UpstreamFailures(t *testing.T) {
	ctx := context.Background()
	in := SuggestInput{Summary: "fiebre"}

	svc := newTestService(t, newTestRepo(), Options{})
	_, err := svc.SuggestPlan(ctx, "u1", in)
	assert.ErrorIs(t, err, ErrUpstream, "sin drafter")

	svc = newTestService(t, newTestRepo(), Options{Drafter: &fakeDrafter{}})
	_, err = svc.SuggestPlan(ctx, "u1", in)
	assert.ErrorIs(t, err, ErrUpstream, "cero items")

	svc = newTestService(t, newTestRepo(), Options{Drafter: &fakeDrafter{err: errors.New("429")}})
	_, err = svc.SuggestPlan(ctx, "u1", in)
	assert.ErrorIs(t, err, ErrUpstream, "error del proveedor")

	svc = newTestService(t, newTestRepo(), Options{Drafter: &fakeDrafter{block: true}, AITimeout: 20 * time.Millisecond})
	_, err = svc.SuggestPlan(ctx, "u1", in)
	assert.ErrorIs(t, err, ErrUpstream, "timeout")
}

func TestSuggestPlan_PatientContextFailureDegrades(t *testing.T) {
	drafter := &fakeDrafter{draft: Draft{Title: "Plan IA", Items: []ItemInput{{MedicationName: "A"}}}}
	svc := newTestService(t, newTestRepo(), Options{
		Drafter:  drafter,
		Patients: fakePatients{err: errors.New("db down")},
	})

	s, err := svc.SuggestPlan(context.Background(), "u1", SuggestInput{Summary: "x"})
	require.NoError(t, err)
	assert.Equal(t, "Plan IA", s.Title)
	assert.Equal(t, PatientSnapshot{}, drafter.gotSummary.Patient)
}

func TestSuggestPlan_SummaryValidation(t *testing.T) {
	svc := newTestService(t, newTestRepo(), Options{Drafter: &fakeDrafter{}})

	_, err := svc.SuggestPlan(context.Background(), "u1", SuggestInput{Summary: "   "})
	assert.ErrorIs(t, err, ErrInvalidInput)
}

// -------------------------
// CreateFromPrescription
// -------------------------

func TestCreateFromPrescription(t *testing.T) {
	repo := newTestRepo()
	start := ts(t, "2025-01-01T08:00:00Z")

	hints := make([]ItemInput, 0, 10)
	for i := 0; i < 10; i++ {
		hints = append(hints, ItemInput{MedicationName: fmt.Sprintf("Med %d", i)})
	}
	drafter := &fakeDrafter{draft: Draft{Items: []ItemInput{
		{MedicationName: "Amoxicilina", IntervalMinutes: ptr(480), TotalDoses: ptr(3)},
	}}}
	svc := newTestService(t, repo, Options{Drafter: drafter})

	p, err := svc.CreateFromPrescription(context.Background(), "u1", PrescriptionInput{
		Items:   hints,
		RawText: "Amoxicilina 500mg",
		StartAt: &start,
	})
	require.NoError(t, err)

	assert.Len(t, drafter.gotPrescrip.Items, PrescriptionItemLimit)
	assert.Equal(t, SourceOCR, p.Source)
	assert.Equal(t, "Prescription plan", p.Title)
	require.Len(t, p.Items, 1)
	assert.Equal(t, start, p.Items[0].Schedules[0].ScheduledAt)
	assert.Equal(t, 1, repo.count())
}

func TestCreateFromPrescription_FailureNeverPersists(t *testing.T) {
	repo := newTestRepo()
	svc := newTestService(t, repo, Options{Drafter: &fakeDrafter{err: errors.New("boom")}})

	_, err := svc.CreateFromPrescription(context.Background(), "u1", PrescriptionInput{RawText: "algo"})
	assert.ErrorIs(t, err, ErrUpstream)
	assert.Zero(t, repo.count())

	_, err = svc.CreateFromPrescription(context.Background(), "u1", PrescriptionInput{})
	assert.ErrorIs(t, err, ErrInvalidInput)
}

// -------------------------
// RecordDose y CRUD
// -------------------------

func seedIntervalPlan(t *testing.T, svc *Service) Plan {
	t.Helper()
	first := ts(t, "2025-01-01T08:00:00Z")
	p, err := svc.CreatePlan(context.Background(), "u1", CreateInput{
		Title: "Plan",
		Items: []ItemInput{{MedicationName: "A", IntervalMinutes: ptr(480), TotalDoses: ptr(3), FirstDoseAt: &first}},
	})
	require.NoError(t, err)
	return p
}

func TestRecordDose_PersistsShift(t *testing.T) {
	repo := newTestRepo()
	svc := newTestService(t, repo, Options{})
	p := seedIntervalPlan(t, svc)
	entries := p.Items[0].Schedules
	at := ts(t, "2025-01-01T09:00:00Z")

	updated, err := svc.RecordDose(context.Background(), entries[0].ID, DoseEvent{Status: DoseTaken, TakenAt: &at})
	require.NoError(t, err)
	assert.Equal(t, ScheduleStatusTaken, updated.Status)
	assert.Equal(t, 60, *updated.DeviationMinutes)

	stored, err := repo.GetByID(context.Background(), p.ID)
	require.NoError(t, err)
	got := scheduledTimes(stored.Items[0].Schedules)
	assert.Equal(t, []time.Time{
		ts(t, "2025-01-01T08:00:00Z"),
		ts(t, "2025-01-01T17:00:00Z"),
		ts(t, "2025-01-02T01:00:00Z"),
	}, got)
}

func TestRecordDose_Errors(t *testing.T) {
	repo := newTestRepo()
	svc := newTestService(t, repo, Options{})
	p := seedIntervalPlan(t, svc)
	id := p.Items[0].Schedules[1].ID

	_, err := svc.RecordDose(context.Background(), "missing", DoseEvent{Status: DoseTaken})
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = svc.RecordDose(context.Background(), id, DoseEvent{Status: "lost"})
	assert.ErrorIs(t, err, ErrInvalidInput)

	past := ts(t, "2025-01-01T06:00:00Z")
	_, err = svc.RecordDose(context.Background(), id, DoseEvent{Status: DoseRescheduled, RescheduleTo: &past})
	var ve *ValidationError
	require.ErrorAs(t, err, &ve)
	assert.Equal(t, "reschedule_to", ve.Field)

	// nada cambió
	stored, _ := repo.GetByID(context.Background(), p.ID)
	assert.Equal(t, ScheduleStatusScheduled, stored.Items[0].Schedules[1].Status)
}

func TestScheduleInPlan(t *testing.T) {
	svc := newTestService(t, newTestRepo(), Options{})
	a := seedIntervalPlan(t, svc)
	b := seedIntervalPlan(t, svc)

	assert.NoError(t, svc.ScheduleInPlan(context.Background(), a.ID, a.Items[0].Schedules[0].ID))
	assert.ErrorIs(t, svc.ScheduleInPlan(context.Background(), a.ID, b.Items[0].Schedules[0].ID), ErrNotFound)
	assert.ErrorIs(t, svc.ScheduleInPlan(context.Background(), a.ID, "nope"), ErrNotFound)
}

func TestGetUpdateDelete_Ownership(t *testing.T) {
	repo := newTestRepo()
	svc := newTestService(t, repo, Options{})
	p := seedIntervalPlan(t, svc)
	ctx := context.Background()

	_, err := svc.Get(ctx, "u2", p.ID)
	assert.ErrorIs(t, err, ErrForbidden)
	_, err = svc.Get(ctx, "u1", "missing")
	assert.ErrorIs(t, err, ErrNotFound)

	title := "Nuevo"
	inactive := false
	updated, err := svc.Update(ctx, "u1", p.ID, UpdateInput{Title: &title, IsActive: &inactive})
	require.NoError(t, err)
	assert.Equal(t, "Nuevo", updated.Title)
	assert.False(t, updated.IsActive)

	end := ts(t, "2024-12-01T00:00:00Z")
	_, err = svc.Update(ctx, "u1", p.ID, UpdateInput{EndAt: &end})
	assert.ErrorIs(t, err, ErrInvalidInput)

	assert.ErrorIs(t, svc.Delete(ctx, "u2", p.ID), ErrForbidden)
	require.NoError(t, svc.Delete(ctx, "u1", p.ID))
	assert.Zero(t, repo.count())

	list, err := svc.ListByOwner(ctx, "u1")
	require.NoError(t, err)
	assert.Empty(t, list)
}

func TestNormalizeDraftItems_RaisesShortInterval(t *testing.T) {
	out := normalizeDraftItems([]ItemInput{
		{MedicationName: "A", IntervalMinutes: ptr(10), TotalDoses: ptr(2)},
		{MedicationName: "B", IntervalMinutes: ptr(720), TotalDoses: ptr(2)},
	}, SuggestItemLimit, nil)

	require.Len(t, out, 2)
	assert.Equal(t, minIntervalMinutes, *out[0].IntervalMinutes)
	assert.Equal(t, 720, *out[1].IntervalMinutes)
}
