package postgres

import (
	"context"
	"os"
	"testing"
	"time"

	"treatment-plans/internal/domain/plans"
	"treatment-plans/internal/domain/prescriptions"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Requiere TEST_DB_DSN apuntando a una base descartable.
func openTestDB(t *testing.T) *PlansRepo {
	t.Helper()
	dsn := os.Getenv("TEST_DB_DSN")
	if dsn == "" {
		t.Skip("TEST_DB_DSN not set")
	}
	db, err := Open(context.Background(), dsn, Options{})
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	_, err = Migrate(context.Background(), db)
	require.NoError(t, err)
	return NewPlansRepo(db)
}

func TestPlansRepo_RoundTripAndMutate(t *testing.T) {
	repo := openTestDB(t)
	ctx := context.Background()

	svc := plans.NewService(repo, plans.Options{})
	first := time.Date(2025, 1, 1, 8, 0, 0, 0, time.UTC)
	interval, total := 480, 3
	p, err := svc.CreatePlan(ctx, "it-"+uuid.NewString(), plans.CreateInput{
		Title: "Integración",
		Items: []plans.ItemInput{
			{MedicationName: "Amoxicilina", IntervalMinutes: &interval, TotalDoses: &total, FirstDoseAt: &first},
			{MedicationName: "Vitamina D", SpecificTimes: []string{"21:00", "08:00"}, DurationDays: &total, FirstDoseAt: &first},
		},
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = repo.Delete(ctx, p.ID) })

	got, err := repo.GetByID(ctx, p.ID)
	require.NoError(t, err)
	require.Len(t, got.Items, 2)
	assert.Equal(t, "Amoxicilina", got.Items[0].MedicationName)
	assert.Len(t, got.Items[0].Schedules, 3)
	assert.Equal(t, []string{"21:00", "08:00"}, got.Items[1].SpecificTimes)
	assert.Len(t, got.Items[1].Schedules, 6)

	takenAt := first.Add(time.Hour)
	_, err = svc.RecordDose(ctx, got.Items[0].Schedules[0].ID, plans.DoseEvent{Status: plans.DoseTaken, TakenAt: &takenAt})
	require.NoError(t, err)

	got, err = repo.GetByID(ctx, p.ID)
	require.NoError(t, err)
	assert.True(t, got.Items[0].Schedules[1].ScheduledAt.Equal(takenAt.Add(8*time.Hour)))
}

func TestUploadsRepo_RoundTrip(t *testing.T) {
	plansRepo := openTestDB(t)
	repo := NewUploadsRepo(plansRepo.db)
	ctx := context.Background()

	now := time.Now().UTC().Truncate(time.Microsecond)
	u := prescriptions.Upload{
		ID:          uuid.NewString(),
		OwnerUserID: "it-user",
		FilePath:    "prescriptions/it-user/x.png",
		ContentType: "image/png",
		Status:      prescriptions.StatusPending,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	require.NoError(t, repo.Create(ctx, u))
	t.Cleanup(func() { _ = repo.Delete(ctx, u.ID) })

	u.Status = prescriptions.StatusParsed
	u.ParsedItems = []prescriptions.ParsedItem{{MedicationName: "Amoxicilina", Dosage: "500mg"}}
	u.ProcessedAt = &now
	require.NoError(t, repo.Update(ctx, u))

	got, err := repo.GetByID(ctx, u.ID)
	require.NoError(t, err)
	assert.Equal(t, prescriptions.StatusParsed, got.Status)
	assert.Equal(t, u.ParsedItems, got.ParsedItems)
	require.NotNil(t, got.ProcessedAt)
}
