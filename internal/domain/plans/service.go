package plans

import (
	"context"
	"errors"
	"strings"
	"time"

	"treatment-plans/internal/platform/clock"
	"treatment-plans/internal/platform/logger"

	"github.com/google/uuid"
)

const (
	DefaultAITimeout = 30 * time.Second

	maxTitleLen   = 255
	maxTextLen    = 255
	maxSummaryLen = 2000

	minIntervalMinutes = 30
)

type Service struct {
	repo        Repository
	drafter     Drafter
	patients    PatientContext
	medications MedicationLookup
	log         logger.Logger
	loc         *time.Location
	aiTimeout   time.Duration
	now         func() time.Time
}

// Options agrupa los colaboradores opcionales del servicio.
type Options struct {
	Drafter     Drafter          // nil => endpoints IA responden ErrUpstream
	Patients    PatientContext   // nil => snapshot vacío
	Medications MedicationLookup // nil => se usa el nombre informado
	Logger      logger.Logger
	Location    *time.Location // día calendario para horarios fijos; nil => UTC
	AITimeout   time.Duration
}

func NewService(repo Repository, opts Options) *Service {
	log := opts.Logger
	if log == nil {
		log = logger.Nop()
	}
	loc := opts.Location
	if loc == nil {
		loc = time.UTC
	}
	timeout := opts.AITimeout
	if timeout <= 0 {
		timeout = DefaultAITimeout
	}
	return &Service{
		repo:        repo,
		drafter:     opts.Drafter,
		patients:    opts.Patients,
		medications: opts.Medications,
		log:         log.With(map[string]any{"component": "plans"}),
		loc:         loc,
		aiTimeout:   timeout,
		now:         time.Now,
	}
}

type ItemInput struct {
	MedicationID   string
	MedicationName string
	Dosage         string
	Route          string
	Instructions   string

	IntervalMinutes *int
	TotalDoses      *int
	DurationDays    *int
	FirstDoseAt     *time.Time
	SpecificTimes   []string
}

type CreateInput struct {
	Title        string
	Instructions string
	StartAt      *time.Time
	EndAt        *time.Time
	Source       Source
	Items        []ItemInput
}

// CreatePlan crea el plan, sus items y todas las tomas generadas de forma
// atómica. Si StartAt no viene, se usa la primera toma más temprana.
func (s *Service) CreatePlan(ctx context.Context, ownerUserID string, in CreateInput) (Plan, error) {
	ownerUserID = strings.TrimSpace(ownerUserID)
	if ownerUserID == "" {
		return Plan{}, ErrInvalidInput
	}
	if err := validateCreate(in); err != nil {
		return Plan{}, err
	}

	// un solo "ahora" por operación
	now := s.now()
	gen := NewGenerator(func() time.Time { return now }, s.loc)

	src := in.Source
	if src == "" {
		src = SourceManual
	}

	p := Plan{
		ID:           uuid.NewString(),
		OwnerUserID:  ownerUserID,
		Title:        strings.TrimSpace(in.Title),
		Instructions: strings.TrimSpace(in.Instructions),
		Status:       PlanStatusActive,
		IsActive:     true,
		Source:       src,
		StartAt:      in.StartAt,
		EndAt:        in.EndAt,
		Items:        make([]Item, 0, len(in.Items)),
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	var earliest *time.Time
	for idx, itIn := range in.Items {
		item, err := s.buildItem(ctx, p.ID, idx, itIn, now)
		if err != nil {
			return Plan{}, err
		}

		if item.HasDualMode() {
			s.log.Info("item has interval and specific_times, using specific_times", map[string]any{
				"plan_id": p.ID,
				"item_id": item.ID,
			})
		}

		entries := gen.Generate(item)
		if len(entries) == 0 {
			s.log.Debug("item without schedule", map[string]any{
				"plan_id": p.ID,
				"item_id": item.ID,
			})
		}
		for i := range entries {
			entries[i].ID = uuid.NewString()
			entries[i].ItemID = item.ID
			entries[i].CreatedAt = now
			entries[i].UpdatedAt = now
		}
		item.Schedules = entries

		earliest = clock.Earliest(earliest, gen.Anchor(item))
		p.Items = append(p.Items, item)
	}

	if p.StartAt == nil && earliest != nil {
		p.StartAt = earliest
	}

	if err := s.repo.Create(ctx, p); err != nil {
		s.log.Error("create plan failed", map[string]any{"plan_id": p.ID, "error": err.Error()})
		return Plan{}, persistence(err)
	}

	s.log.Info("plan created", map[string]any{
		"plan_id": p.ID,
		"items":   len(p.Items),
		"source":  string(p.Source),
	})
	return p, nil
}

func (s *Service) buildItem(ctx context.Context, planID string, idx int, in ItemInput, now time.Time) (Item, error) {
	medID := strings.TrimSpace(in.MedicationID)
	name := strings.TrimSpace(in.MedicationName)

	if medID != "" && s.medications != nil {
		canonical, err := s.medications.NameByID(ctx, medID)
		switch {
		case err == nil && strings.TrimSpace(canonical) != "":
			name = strings.TrimSpace(canonical)
		default:
			// referencia opcional: se cae al nombre informado
			s.log.Warn("medication not resolved, using provided name", map[string]any{
				"medication_id": medID,
				"not_found":     errors.Is(err, ErrNotFound),
			})
			medID = ""
		}
	}
	if name == "" {
		return Item{}, invalid(itemField(idx, "medication_name"), "required when medication_id is absent or unknown")
	}

	var times []string
	if len(in.SpecificTimes) > 0 {
		times = append([]string(nil), in.SpecificTimes...)
	}

	return Item{
		ID:              uuid.NewString(),
		PlanID:          planID,
		MedicationID:    medID,
		MedicationName:  name,
		Dosage:          strings.TrimSpace(in.Dosage),
		Route:           strings.TrimSpace(in.Route),
		Instructions:    strings.TrimSpace(in.Instructions),
		IntervalMinutes: in.IntervalMinutes,
		TotalDoses:      in.TotalDoses,
		DurationDays:    in.DurationDays,
		FirstDoseAt:     in.FirstDoseAt,
		SpecificTimes:   times,
		CreatedAt:       now,
		UpdatedAt:       now,
	}, nil
}

type SuggestInput struct {
	Summary string
	StartAt *time.Time
	Title   string
}

// Suggestion es un borrador no persistido.
type Suggestion struct {
	Title        string
	Instructions string
	StartAt      *time.Time
	Items        []ItemInput
	Usage        map[string]any
}

// SuggestPlan pide al redactor IA un plan a partir de un resumen libre.
func (s *Service) SuggestPlan(ctx context.Context, ownerUserID string, in SuggestInput) (Suggestion, error) {
	ownerUserID = strings.TrimSpace(ownerUserID)
	if ownerUserID == "" {
		return Suggestion{}, ErrInvalidInput
	}
	summary := strings.TrimSpace(in.Summary)
	if summary == "" {
		return Suggestion{}, invalid("summary", "required")
	}
	if len(summary) > maxSummaryLen {
		return Suggestion{}, invalid("summary", "must be at most %d characters", maxSummaryLen)
	}
	if s.drafter == nil {
		return Suggestion{}, upstream("ai drafter not configured")
	}

	hints := SummaryHints{
		Summary: summary,
		StartAt: in.StartAt,
		Title:   strings.TrimSpace(in.Title),
		Patient: s.snapshot(ctx, ownerUserID),
	}

	dctx, cancel := context.WithTimeout(ctx, s.aiTimeout)
	defer cancel()

	draft, err := s.drafter.DraftFromSummary(dctx, hints)
	if err != nil {
		s.log.Warn("ai draft failed", map[string]any{"error": err.Error()})
		return Suggestion{}, upstream("%v", err)
	}

	items := normalizeDraftItems(draft.Items, SuggestItemLimit, in.StartAt)
	if len(items) == 0 {
		return Suggestion{}, upstream("ai returned no schedulable items")
	}

	return Suggestion{
		Title:        firstNonEmpty(draft.Title, hints.Title, "Suggested plan"),
		Instructions: firstNonEmpty(draft.Instructions, "Review and adjust if needed."),
		StartAt:      in.StartAt,
		Items:        items,
		Usage:        draft.Usage,
	}, nil
}

type PrescriptionInput struct {
	Items   []ItemInput
	RawText string
	StartAt *time.Time
	Title   string
}

// CreateFromPrescription convierte items leídos de una receta en un plan
// vía el redactor IA y luego lo crea con CreatePlan.
func (s *Service) CreateFromPrescription(ctx context.Context, ownerUserID string, in PrescriptionInput) (Plan, error) {
	ownerUserID = strings.TrimSpace(ownerUserID)
	if ownerUserID == "" {
		return Plan{}, ErrInvalidInput
	}
	rawText := strings.TrimSpace(in.RawText)
	if len(in.Items) == 0 && rawText == "" {
		return Plan{}, invalid("items", "prescription has no items nor text")
	}
	if s.drafter == nil {
		return Plan{}, upstream("ai drafter not configured")
	}

	hintItems := in.Items
	if len(hintItems) > PrescriptionItemLimit {
		hintItems = hintItems[:PrescriptionItemLimit]
	}

	dctx, cancel := context.WithTimeout(ctx, s.aiTimeout)
	defer cancel()

	draft, err := s.drafter.DraftFromPrescription(dctx, PrescriptionHints{
		Items:   hintItems,
		RawText: rawText,
		StartAt: in.StartAt,
		Patient: s.snapshot(ctx, ownerUserID),
	})
	if err != nil {
		s.log.Warn("ai prescription draft failed", map[string]any{"error": err.Error()})
		return Plan{}, upstream("%v", err)
	}

	items := normalizeDraftItems(draft.Items, PrescriptionItemLimit, in.StartAt)
	if len(items) == 0 {
		return Plan{}, upstream("ai returned no schedulable items for the prescription")
	}

	return s.CreatePlan(ctx, ownerUserID, CreateInput{
		Title:        firstNonEmpty(in.Title, draft.Title, "Prescription plan"),
		Instructions: firstNonEmpty(draft.Instructions, "Review the suggested dosing before saving."),
		StartAt:      in.StartAt,
		Source:       SourceOCR,
		Items:        items,
	})
}

// RecordDose aplica un evento de toma y desplaza las tomas futuras del mismo
// item cuando corresponde. Serializado por item en el repositorio.
func (s *Service) RecordDose(ctx context.Context, scheduleID string, ev DoseEvent) (ScheduleEntry, error) {
	scheduleID = strings.TrimSpace(scheduleID)
	if scheduleID == "" {
		return ScheduleEntry{}, ErrInvalidInput
	}
	switch ev.Status {
	case DoseTaken, DoseSkipped, DoseRescheduled:
	default:
		return ScheduleEntry{}, invalid("status", "must be one of taken, skipped, rescheduled")
	}

	entry, err := s.repo.GetSchedule(ctx, scheduleID)
	if err != nil {
		return ScheduleEntry{}, persistence(err)
	}

	now := s.now()
	var updated ScheduleEntry
	shifted := 0

	err = s.repo.MutateItemSchedules(ctx, entry.ItemID, func(item Item, entries []ScheduleEntry) ([]ScheduleEntry, error) {
		out, err := ApplyDose(item, entries, scheduleID, ev, now)
		if err != nil {
			return nil, err
		}
		updated = out.Entry
		shifted = len(out.Shifted)
		return out.Changed(), nil
	})
	if err != nil {
		if !errors.Is(err, ErrInvalidInput) {
			s.log.Error("record dose failed", map[string]any{"schedule_id": scheduleID, "error": err.Error()})
		}
		return ScheduleEntry{}, persistence(err)
	}

	s.log.Info("dose recorded", map[string]any{
		"schedule_id": scheduleID,
		"item_id":     entry.ItemID,
		"status":      string(ev.Status),
		"shifted":     shifted,
	})
	return updated, nil
}

// ScheduleInPlan verifica que la toma pertenezca a un item del plan.
func (s *Service) ScheduleInPlan(ctx context.Context, planID, scheduleID string) error {
	entry, err := s.repo.GetSchedule(ctx, strings.TrimSpace(scheduleID))
	if err != nil {
		return persistence(err)
	}
	item, err := s.repo.GetItem(ctx, entry.ItemID)
	if err != nil {
		return persistence(err)
	}
	if item.PlanID != strings.TrimSpace(planID) {
		return ErrNotFound
	}
	return nil
}

// Get devuelve el plan si pertenece al usuario.
func (s *Service) Get(ctx context.Context, ownerUserID, planID string) (Plan, error) {
	planID = strings.TrimSpace(planID)
	if planID == "" {
		return Plan{}, ErrInvalidInput
	}
	p, err := s.repo.GetByID(ctx, planID)
	if err != nil {
		return Plan{}, persistence(err)
	}
	if p.OwnerUserID != strings.TrimSpace(ownerUserID) {
		return Plan{}, ErrForbidden
	}
	return p, nil
}

func (s *Service) ListByOwner(ctx context.Context, ownerUserID string) ([]Plan, error) {
	ownerUserID = strings.TrimSpace(ownerUserID)
	if ownerUserID == "" {
		return nil, ErrInvalidInput
	}
	out, err := s.repo.ListByOwner(ctx, ownerUserID)
	if err != nil {
		return nil, persistence(err)
	}
	return out, nil
}

type UpdateInput struct {
	// Punteros: nil = no tocar.
	Title        *string
	Instructions *string
	StartAt      *time.Time
	EndAt        *time.Time
	IsActive     *bool
}

// Update modifica campos de cabecera. Las tomas no se regeneran.
func (s *Service) Update(ctx context.Context, ownerUserID, planID string, in UpdateInput) (Plan, error) {
	p, err := s.Get(ctx, ownerUserID, planID)
	if err != nil {
		return Plan{}, err
	}

	if in.Title != nil {
		title := strings.TrimSpace(*in.Title)
		if title == "" {
			return Plan{}, invalid("title", "must not be empty")
		}
		if len(title) > maxTitleLen {
			return Plan{}, invalid("title", "must be at most %d characters", maxTitleLen)
		}
		p.Title = title
	}
	if in.Instructions != nil {
		p.Instructions = strings.TrimSpace(*in.Instructions)
	}
	if in.StartAt != nil {
		p.StartAt = in.StartAt
	}
	if in.EndAt != nil {
		p.EndAt = in.EndAt
	}
	if in.IsActive != nil {
		p.IsActive = *in.IsActive
	}
	if p.StartAt != nil && p.EndAt != nil && p.EndAt.Before(*p.StartAt) {
		return Plan{}, invalid("end_at", "must be after or equal to start_at")
	}
	p.UpdatedAt = s.now()

	if err := s.repo.Update(ctx, p); err != nil {
		return Plan{}, persistence(err)
	}
	return p, nil
}

func (s *Service) Delete(ctx context.Context, ownerUserID, planID string) error {
	p, err := s.Get(ctx, ownerUserID, planID)
	if err != nil {
		return err
	}
	if err := s.repo.Delete(ctx, p.ID); err != nil {
		return persistence(err)
	}
	s.log.Info("plan deleted", map[string]any{"plan_id": p.ID})
	return nil
}

func (s *Service) snapshot(ctx context.Context, ownerUserID string) PatientSnapshot {
	if s.patients == nil {
		return PatientSnapshot{}
	}
	snap, err := s.patients.Snapshot(ctx, ownerUserID)
	if err != nil {
		s.log.Warn("patient context unavailable", map[string]any{"error": err.Error()})
		return PatientSnapshot{}
	}
	return snap
}
