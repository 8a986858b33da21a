package prescriptions

import (
	"context"
	"encoding/base64"
	"errors"
	"sort"
	"sync"
	"testing"
	"time"

	"treatment-plans/internal/domain/plans"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// -------------------------
// Fakes
// -------------------------

type testRepo struct {
	mu   sync.Mutex
	byID map[string]Upload
}

func newTestRepo() *testRepo { return &testRepo{byID: map[string]Upload{}} }

func (r *testRepo) Create(ctx context.Context, u Upload) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.byID[u.ID] = u
	return nil
}

func (r *testRepo) GetByID(ctx context.Context, id string) (Upload, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.byID[id]
	if !ok {
		return Upload{}, ErrNotFound
	}
	return u, nil
}

func (r *testRepo) ListByOwner(ctx context.Context, owner string, limit int) ([]Upload, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := []Upload{}
	for _, u := range r.byID {
		if u.OwnerUserID == owner {
			out = append(out, u)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r *testRepo) Update(ctx context.Context, u Upload) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.byID[u.ID]; !ok {
		return ErrNotFound
	}
	r.byID[u.ID] = u
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

type testFiles struct {
	mu    sync.Mutex
	files map[string][]byte
}

func newTestFiles() *testFiles { return &testFiles{files: map[string][]byte{}} }

func (f *testFiles) Save(ctx context.Context, owner, name string, data []byte) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	p := owner + "/" + name
	f.files[p] = data
	return p, nil
}

func (f *testFiles) Read(ctx context.Context, path string) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	b, ok := f.files[path]
	if !ok {
		return nil, errors.New("no such file")
	}
	return b, nil
}

func (f *testFiles) Remove(ctx context.Context, path string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.files, path)
	return nil
}

func (f *testFiles) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.files)
}

type testQueue struct {
	jobs chan Job
	err  error
}

func newTestQueue() *testQueue { return &testQueue{jobs: make(chan Job, 16)} }

func (q *testQueue) Enqueue(ctx context.Context, job Job) error {
	if q.err != nil {
		return q.err
	}
	q.jobs <- job
	return nil
}

func (q *testQueue) Dequeue(ctx context.Context) (Job, error) {
	select {
	case <-ctx.Done():
		return Job{}, ctx.Err()
	case j := <-q.jobs:
		return j, nil
	}
}

type testExtractor struct {
	enabled bool
	text    string
	errs    []error // uno por intento; nil => éxito
	calls   int
}

func (e *testExtractor) Enabled() bool { return e.enabled }

func (e *testExtractor) ExtractText(ctx context.Context, data []byte, contentType string) (string, error) {
	e.calls++
	if len(e.errs) >= e.calls && e.errs[e.calls-1] != nil {
		return "", e.errs[e.calls-1]
	}
	return e.text, nil
}

type testPlans struct {
	got plans.PrescriptionInput
	err error
}

func (p *testPlans) CreateFromPrescription(ctx context.Context, owner string, in plans.PrescriptionInput) (plans.Plan, error) {
	p.got = in
	if p.err != nil {
		return plans.Plan{}, p.err
	}
	return plans.Plan{ID: "plan-1", OwnerUserID: owner, Title: in.Title, Source: plans.SourceOCR}, nil
}

var pngHeader = []byte("\x89PNG\r\n\x1a\n0000000000000000")

type fixture struct {
	repo  *testRepo
	files *testFiles
	queue *testQueue
	ext   *testExtractor
	plans *testPlans
	svc   *Service
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		repo:  newTestRepo(),
		files: newTestFiles(),
		queue: newTestQueue(),
		ext:   &testExtractor{enabled: true},
		plans: &testPlans{},
	}
	f.svc = NewService(f.repo, f.files, f.queue, Options{Extractor: f.ext, Plans: f.plans})
	f.svc.now = func() time.Time { return time.Date(2025, 3, 7, 10, 0, 0, 0, time.UTC) }
	return f
}

func (f *fixture) upload(t *testing.T) Upload {
	t.Helper()
	u, err := f.svc.Upload(context.Background(), "u1", UploadInput{OriginalName: "receta.png", Data: pngHeader})
	require.NoError(t, err)
	<-f.queue.jobs
	return u
}

// -------------------------
// Upload
// -------------------------

func TestUpload_StoresAndEnqueues(t *testing.T) {
	f := newFixture(t)

	u, err := f.svc.Upload(context.Background(), "u1", UploadInput{OriginalName: "../receta.png", Data: pngHeader, Notes: " tomar "})
	require.NoError(t, err)

	assert.Equal(t, StatusPending, u.Status)
	assert.Equal(t, "image/png", u.ContentType)
	assert.Equal(t, "receta.png", u.OriginalName)
	assert.Equal(t, "tomar", u.Notes)
	assert.Equal(t, 1, f.files.count())

	job := <-f.queue.jobs
	assert.Equal(t, u.ID, job.UploadID)
}

func TestUpload_Base64(t *testing.T) {
	f := newFixture(t)
	encoded := "data:image/png;base64," + base64.StdEncoding.EncodeToString(pngHeader)

	u, err := f.svc.Upload(context.Background(), "u1", UploadInput{ImageBase64: encoded})
	require.NoError(t, err)
	assert.Equal(t, "image/png", u.ContentType)

	_, err = f.svc.Upload(context.Background(), "u1", UploadInput{ImageBase64: "%%%"})
	assert.ErrorIs(t, err, ErrInvalidInput)
}

func TestUpload_Validation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.Upload(ctx, "u1", UploadInput{})
	assert.ErrorIs(t, err, ErrInvalidInput)

	_, err = f.svc.Upload(ctx, "u1", UploadInput{Data: []byte("hola, texto plano")})
	assert.ErrorIs(t, err, ErrInvalidInput)

	_, err = f.svc.Upload(ctx, "u1", UploadInput{Data: make([]byte, MaxFileBytes+1), ContentType: "image/png"})
	assert.ErrorIs(t, err, ErrInvalidInput)

	assert.Zero(t, f.files.count())
}

func TestUpload_QueueFailureMarksFailed(t *testing.T) {
	f := newFixture(t)
	f.queue.err = errors.New("redis down")

	u, err := f.svc.Upload(context.Background(), "u1", UploadInput{Data: pngHeader})
	assert.ErrorIs(t, err, ErrQueue)

	stored, err := f.repo.GetByID(context.Background(), u.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusFailed, stored.Status)
}

// -------------------------
// Process
// -------------------------

func TestProcess_Parsed(t *testing.T) {
	f := newFixture(t)
	u := f.upload(t)
	f.ext.text = "Amoxicilina 500mg 8/8h\nRepouso"

	require.NoError(t, f.svc.Process(context.Background(), u.ID, 1))

	got, _ := f.repo.GetByID(context.Background(), u.ID)
	assert.Equal(t, StatusParsed, got.Status)
	assert.Len(t, got.ParsedItems, 1)
	assert.Equal(t, 1, got.Attempts)
	assert.NotNil(t, got.ProcessedAt)
	assert.Empty(t, got.FailureReason)
}

func TestProcess_TextOnlyAndEmpty(t *testing.T) {
	f := newFixture(t)
	u := f.upload(t)

	f.ext.text = "Repouso por 3 dias"
	require.NoError(t, f.svc.Process(context.Background(), u.ID, 1))
	got, _ := f.repo.GetByID(context.Background(), u.ID)
	assert.Equal(t, StatusTextExtracted, got.Status)
	assert.Equal(t, "Repouso por 3 dias", got.ExtractedText)

	f.ext.text = "   "
	require.NoError(t, f.svc.Process(context.Background(), u.ID, 1))
	got, _ = f.repo.GetByID(context.Background(), u.ID)
	assert.Equal(t, StatusManualReview, got.Status)
}

func TestProcess_DisabledExtractor(t *testing.T) {
	f := newFixture(t)
	f.ext.enabled = false
	u := f.upload(t)

	require.NoError(t, f.svc.Process(context.Background(), u.ID, 1))
	got, _ := f.repo.GetByID(context.Background(), u.ID)
	assert.Equal(t, StatusManualReview, got.Status)
	assert.Zero(t, f.ext.calls)
}

func TestProcess_RetryableThenFinalFailure(t *testing.T) {
	f := newFixture(t)
	u := f.upload(t)
	f.ext.errs = []error{errors.New("timeout"), errors.New("403 PERMISSION_DENIED")}

	err := f.svc.Process(context.Background(), u.ID, 1)
	assert.ErrorIs(t, err, ErrExtraction)
	got, _ := f.repo.GetByID(context.Background(), u.ID)
	assert.Equal(t, StatusProcessing, got.Status)

	require.NoError(t, f.svc.Process(context.Background(), u.ID, 2))
	got, _ = f.repo.GetByID(context.Background(), u.ID)
	assert.Equal(t, StatusFailed, got.Status)
	assert.Contains(t, got.FailureReason, "denied")
}

func TestProcess_MissingFileFails(t *testing.T) {
	f := newFixture(t)
	u := f.upload(t)
	require.NoError(t, f.files.Remove(context.Background(), u.FilePath))

	require.NoError(t, f.svc.Process(context.Background(), u.ID, 1))
	got, _ := f.repo.GetByID(context.Background(), u.ID)
	assert.Equal(t, StatusFailed, got.Status)
}

// -------------------------
// CreatePlan
// -------------------------

func TestCreatePlan_FromParsedItems(t *testing.T) {
	f := newFixture(t)
	u := f.upload(t)
	f.ext.text = "Amoxicilina 500mg 8/8h"
	require.NoError(t, f.svc.Process(context.Background(), u.ID, 1))
	start := time.Date(2025, 3, 8, 8, 0, 0, 0, time.UTC)

	p, err := f.svc.CreatePlan(context.Background(), "u1", u.ID, PlanInput{StartAt: &start})
	require.NoError(t, err)
	assert.Equal(t, "plan-1", p.ID)

	assert.Equal(t, "Prescription plan 07/03", f.plans.got.Title)
	require.Len(t, f.plans.got.Items, 1)
	assert.Equal(t, "Amoxicilina", f.plans.got.Items[0].MedicationName)
	assert.Equal(t, "500mg", f.plans.got.Items[0].Dosage)
	assert.Equal(t, &start, f.plans.got.StartAt)

	// la receta y su archivo se descartan
	_, err = f.repo.GetByID(context.Background(), u.ID)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.Zero(t, f.files.count())
}

func TestCreatePlan_UnstructuredText(t *testing.T) {
	f := newFixture(t)
	u := f.upload(t)
	f.ext.text = "tomar um comprimido ao dia"
	require.NoError(t, f.svc.Process(context.Background(), u.ID, 1))
	start := time.Date(2025, 3, 8, 8, 0, 0, 0, time.UTC)

	_, err := f.svc.CreatePlan(context.Background(), "u1", u.ID, PlanInput{StartAt: &start, Title: "Mi receta"})
	require.NoError(t, err)
	require.Len(t, f.plans.got.Items, 1)
	assert.Equal(t, unstructuredName, f.plans.got.Items[0].MedicationName)
	assert.Equal(t, "tomar um comprimido ao dia", f.plans.got.Items[0].Instructions)
	assert.Equal(t, "Mi receta", f.plans.got.Title)
}

func TestCreatePlan_Guards(t *testing.T) {
	f := newFixture(t)
	u := f.upload(t)
	start := time.Now()
	ctx := context.Background()

	_, err := f.svc.CreatePlan(ctx, "u1", u.ID, PlanInput{StartAt: &start})
	assert.ErrorIs(t, err, ErrNotReady, "pending")

	f.ext.text = "Amoxicilina 500mg"
	require.NoError(t, f.svc.Process(ctx, u.ID, 1))

	_, err = f.svc.CreatePlan(ctx, "u2", u.ID, PlanInput{StartAt: &start})
	assert.ErrorIs(t, err, ErrForbidden)

	_, err = f.svc.CreatePlan(ctx, "u1", u.ID, PlanInput{})
	assert.ErrorIs(t, err, ErrInvalidInput)

	f.plans.err = plans.ErrUpstream
	_, err = f.svc.CreatePlan(ctx, "u1", u.ID, PlanInput{StartAt: &start})
	assert.ErrorIs(t, err, plans.ErrUpstream)
	// un fallo no descarta la receta
	_, err = f.repo.GetByID(ctx, u.ID)
	assert.NoError(t, err)
}

func TestListGetDelete(t *testing.T) {
	f := newFixture(t)
	u := f.upload(t)
	ctx := context.Background()

	list, err := f.svc.List(ctx, "u1")
	require.NoError(t, err)
	assert.Len(t, list, 1)

	_, err = f.svc.Get(ctx, "u2", u.ID)
	assert.ErrorIs(t, err, ErrForbidden)

	require.NoError(t, f.svc.Delete(ctx, "u1", u.ID))
	assert.Zero(t, f.files.count())
	_, err = f.svc.Get(ctx, "u1", u.ID)
	assert.ErrorIs(t, err, ErrNotFound)
}
