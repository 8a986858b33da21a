package plans

import (
	"encoding/json"
	"errors"
	"net/http"
	"sort"
	"time"

	"treatment-plans/internal/middleware"

	"github.com/go-chi/chi/v5"
)

// listSchedulesLimit acota las tomas por item en el listado.
const listSchedulesLimit = 5

func RegisterRoutes(r chi.Router, svc *Service) {
	r.Route("/treatment-plans", func(pr chi.Router) {
		pr.Get("/", listPlansHandler(svc))
		pr.Post("/", createPlanHandler(svc))
		pr.Post("/suggest", suggestPlanHandler(svc))
		pr.Post("/from-prescription", createFromPrescriptionHandler(svc))

		pr.Get("/{planID}", getPlanHandler(svc))
		pr.Patch("/{planID}", updatePlanHandler(svc))
		pr.Delete("/{planID}", deletePlanHandler(svc))

		pr.Post("/{planID}/schedules/{scheduleID}/dose", recordDoseHandler(svc))
	})
}

type itemRequest struct {
	MedicationID    string     `json:"medication_id"`
	MedicationName  string     `json:"medication_name"`
	Dosage          string     `json:"dosage"`
	Route           string     `json:"route"`
	Instructions    string     `json:"instructions"`
	IntervalMinutes *int       `json:"interval_minutes"`
	TotalDoses      *int       `json:"total_doses"`
	DurationDays    *int       `json:"duration_days"`
	FirstDoseAt     *time.Time `json:"first_dose_at"`
	SpecificTimes   []string   `json:"specific_times"`
}

type createPlanRequest struct {
	Title        string        `json:"title"`
	Instructions string        `json:"instructions"`
	StartAt      *time.Time    `json:"start_at"`
	EndAt        *time.Time    `json:"end_at"`
	Source       string        `json:"source"`
	Items        []itemRequest `json:"items"`
}

type suggestPlanRequest struct {
	Summary string     `json:"summary"`
	StartAt *time.Time `json:"start_at"`
	Title   string     `json:"title"`
}

type prescriptionPlanRequest struct {
	Items   []itemRequest `json:"items"`
	RawText string        `json:"raw_text"`
	StartAt *time.Time    `json:"start_at"`
	Title   string        `json:"title"`
}

type updatePlanRequest struct {
	// Punteros para PATCH real: nil = no tocar.
	Title        *string    `json:"title"`
	Instructions *string    `json:"instructions"`
	StartAt      *time.Time `json:"start_at"`
	EndAt        *time.Time `json:"end_at"`
	IsActive     *bool      `json:"is_active"`
}

type recordDoseRequest struct {
	Status       string     `json:"status"` // taken|skipped|rescheduled
	TakenAt      *time.Time `json:"taken_at"`
	RescheduleTo *time.Time `json:"reschedule_to"`
	Notes        *string    `json:"notes"`
}

type scheduleResponse struct {
	ID               string     `json:"id"`
	ItemID           string     `json:"item_id"`
	ScheduledAt      time.Time  `json:"scheduled_at"`
	Status           string     `json:"status"`
	TakenAt          *time.Time `json:"taken_at,omitempty"`
	WasSkipped       bool       `json:"was_skipped"`
	DeviationMinutes *int       `json:"deviation_minutes,omitempty"`
	Notes            string     `json:"notes,omitempty"`
	UpdatedAt        time.Time  `json:"updated_at"`
}

type itemResponse struct {
	ID              string             `json:"id"`
	MedicationID    string             `json:"medication_id,omitempty"`
	MedicationName  string             `json:"medication_name"`
	Dosage          string             `json:"dosage"`
	Route           string             `json:"route"`
	Instructions    string             `json:"instructions"`
	IntervalMinutes *int               `json:"interval_minutes,omitempty"`
	TotalDoses      *int               `json:"total_doses,omitempty"`
	DurationDays    *int               `json:"duration_days,omitempty"`
	FirstDoseAt     *time.Time         `json:"first_dose_at,omitempty"`
	SpecificTimes   []string           `json:"specific_times,omitempty"`
	Schedules       []scheduleResponse `json:"schedules"`
}

type PlanResponse struct {
	ID           string         `json:"id"`
	OwnerUserID  string         `json:"owner_user_id"`
	Title        string         `json:"title"`
	Instructions string         `json:"instructions"`
	Status       string         `json:"status"`
	IsActive     bool           `json:"is_active"`
	Source       string         `json:"source"`
	StartAt      *time.Time     `json:"start_at,omitempty"`
	EndAt        *time.Time     `json:"end_at,omitempty"`
	Items        []itemResponse `json:"items"`
	CreatedAt    time.Time      `json:"created_at"`
	UpdatedAt    time.Time      `json:"updated_at"`
}

type suggestionResponse struct {
	Title        string         `json:"title"`
	Instructions string         `json:"instructions"`
	StartAt      *time.Time     `json:"start_at,omitempty"`
	Items        []itemRequest  `json:"items"`
	Usage        map[string]any `json:"usage,omitempty"`
}

// createPlanHandler godoc
// @Summary Crear plan de tratamiento
// @Description Crea el plan con sus items y genera todas las tomas. Un item con `specific_times` usa horarios fijos (tienen prioridad sobre `interval_minutes`). Un item sin intervalo ni horarios no genera tomas. Autenticación: `X-Debug-User-ID` (dev) o `Authorization: Bearer <token>` (prod).
// @Tags treatment-plans
// @Accept json
// @Produce json
// @Param X-Debug-User-ID header string false "Solo en modo dev, ID de usuario para depuración"
// @Param Authorization header string false "Bearer token en producción"
// @Param payload body createPlanRequest true "Plan; fechas en RFC3339, horarios HH:MM"
// @Success 201 {object} PlanResponse
// @Failure 400 {string} string "invalid json"
// @Failure 401 {string} string "unauthorized"
// @Failure 422 {string} string "campo inválido"
// @Router /treatment-plans [post]
func createPlanHandler(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID := middleware.UserID(r.Context())
		if userID == "" {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}

		var req createPlanRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "invalid json", http.StatusBadRequest)
			return
		}

		p, err := svc.CreatePlan(r.Context(), userID, CreateInput{
			Title:        req.Title,
			Instructions: req.Instructions,
			StartAt:      req.StartAt,
			EndAt:        req.EndAt,
			Source:       Source(req.Source),
			Items:        toItemInputs(req.Items),
		})
		if err != nil {
			writeError(w, err)
			return
		}

		writeJSON(w, http.StatusCreated, toPlanResponse(p, 0))
	}
}

// listPlansHandler godoc
// @Summary Listar planes
// @Description Planes del usuario, más recientes primero. Cada item trae sus próximas 5 tomas.
// @Tags treatment-plans
// @Produce json
// @Param X-Debug-User-ID header string false "Solo en modo dev, ID de usuario para depuración"
// @Param Authorization header string false "Bearer token en producción"
// @Success 200 {array} PlanResponse
// @Failure 401 {string} string "unauthorized"
// @Router /treatment-plans [get]
func listPlansHandler(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID := middleware.UserID(r.Context())
		if userID == "" {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}

		items, err := svc.ListByOwner(r.Context(), userID)
		if err != nil {
			writeError(w, err)
			return
		}

		out := make([]PlanResponse, 0, len(items))
		for _, p := range items {
			out = append(out, toPlanResponse(p, listSchedulesLimit))
		}
		writeJSON(w, http.StatusOK, out)
	}
}

// suggestPlanHandler godoc
// @Summary Sugerir plan con IA
// @Description Devuelve un borrador (no persistido) generado a partir de un resumen libre. Máximo 5 items.
// @Tags treatment-plans
// @Accept json
// @Produce json
// @Param X-Debug-User-ID header string false "Solo en modo dev, ID de usuario para depuración"
// @Param Authorization header string false "Bearer token en producción"
// @Param payload body suggestPlanRequest true "Resumen clínico"
// @Success 200 {object} suggestionResponse
// @Failure 401 {string} string "unauthorized"
// @Failure 422 {string} string "summary inválido"
// @Failure 502 {string} string "could not auto-generate plan"
// @Router /treatment-plans/suggest [post]
func suggestPlanHandler(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID := middleware.UserID(r.Context())
		if userID == "" {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}

		var req suggestPlanRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "invalid json", http.StatusBadRequest)
			return
		}

		s, err := svc.SuggestPlan(r.Context(), userID, SuggestInput{
			Summary: req.Summary,
			StartAt: req.StartAt,
			Title:   req.Title,
		})
		if err != nil {
			writeError(w, err)
			return
		}

		writeJSON(w, http.StatusOK, suggestionResponse{
			Title:        s.Title,
			Instructions: s.Instructions,
			StartAt:      s.StartAt,
			Items:        toItemRequests(s.Items),
			Usage:        s.Usage,
		})
	}
}

// createFromPrescriptionHandler godoc
// @Summary Crear plan desde receta
// @Description Normaliza con IA los items leídos de una receta (máximo 8) y crea el plan con source=ocr.
// @Tags treatment-plans
// @Accept json
// @Produce json
// @Param X-Debug-User-ID header string false "Solo en modo dev, ID de usuario para depuración"
// @Param Authorization header string false "Bearer token en producción"
// @Param payload body prescriptionPlanRequest true "Items y/o texto de la receta"
// @Success 201 {object} PlanResponse
// @Failure 401 {string} string "unauthorized"
// @Failure 422 {string} string "receta vacía"
// @Failure 502 {string} string "could not auto-generate plan"
// @Router /treatment-plans/from-prescription [post]
func createFromPrescriptionHandler(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID := middleware.UserID(r.Context())
		if userID == "" {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}

		var req prescriptionPlanRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "invalid json", http.StatusBadRequest)
			return
		}

		p, err := svc.CreateFromPrescription(r.Context(), userID, PrescriptionInput{
			Items:   toItemInputs(req.Items),
			RawText: req.RawText,
			StartAt: req.StartAt,
			Title:   req.Title,
		})
		if err != nil {
			writeError(w, err)
			return
		}

		writeJSON(w, http.StatusCreated, toPlanResponse(p, 0))
	}
}

// getPlanHandler godoc
// @Summary Ver plan
// @Description Plan completo con todas las tomas ordenadas por horario.
// @Tags treatment-plans
// @Produce json
// @Param X-Debug-User-ID header string false "Solo en modo dev, ID de usuario para depuración"
// @Param Authorization header string false "Bearer token en producción"
// @Param planID path string true "ID del plan"
// @Success 200 {object} PlanResponse
// @Failure 401 {string} string "unauthorized"
// @Failure 403 {string} string "forbidden"
// @Failure 404 {string} string "not found"
// @Router /treatment-plans/{planID} [get]
func getPlanHandler(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID := middleware.UserID(r.Context())
		if userID == "" {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}

		p, err := svc.Get(r.Context(), userID, chi.URLParam(r, "planID"))
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, toPlanResponse(p, 0))
	}
}

// updatePlanHandler godoc
// @Summary Actualizar plan
// @Description Modifica título, instrucciones, fechas o is_active. No regenera tomas.
// @Tags treatment-plans
// @Accept json
// @Produce json
// @Param X-Debug-User-ID header string false "Solo en modo dev, ID de usuario para depuración"
// @Param Authorization header string false "Bearer token en producción"
// @Param planID path string true "ID del plan"
// @Param payload body updatePlanRequest true "Campos a modificar"
// @Success 200 {object} PlanResponse
// @Failure 401 {string} string "unauthorized"
// @Failure 403 {string} string "forbidden"
// @Failure 404 {string} string "not found"
// @Failure 422 {string} string "campo inválido"
// @Router /treatment-plans/{planID} [patch]
func updatePlanHandler(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID := middleware.UserID(r.Context())
		if userID == "" {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}

		dec := json.NewDecoder(r.Body)
		dec.DisallowUnknownFields()

		var req updatePlanRequest
		if err := dec.Decode(&req); err != nil {
			http.Error(w, "invalid json", http.StatusBadRequest)
			return
		}

		p, err := svc.Update(r.Context(), userID, chi.URLParam(r, "planID"), UpdateInput{
			Title:        req.Title,
			Instructions: req.Instructions,
			StartAt:      req.StartAt,
			EndAt:        req.EndAt,
			IsActive:     req.IsActive,
		})
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, toPlanResponse(p, 0))
	}
}

// deletePlanHandler godoc
// @Summary Eliminar plan
// @Description Borra el plan con sus items y tomas.
// @Tags treatment-plans
// @Param X-Debug-User-ID header string false "Solo en modo dev, ID de usuario para depuración"
// @Param Authorization header string false "Bearer token en producción"
// @Param planID path string true "ID del plan"
// @Success 204 {string} string "no content"
// @Failure 401 {string} string "unauthorized"
// @Failure 403 {string} string "forbidden"
// @Failure 404 {string} string "not found"
// @Router /treatment-plans/{planID} [delete]
func deletePlanHandler(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID := middleware.UserID(r.Context())
		if userID == "" {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}

		if err := svc.Delete(r.Context(), userID, chi.URLParam(r, "planID")); err != nil {
			writeError(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

// recordDoseHandler godoc
// @Summary Registrar toma
// @Description Marca la toma como taken, skipped o rescheduled. En items por intervalo, taken y rescheduled desplazan las tomas siguientes; skipped nunca desplaza.
// @Tags treatment-plans
// @Accept json
// @Produce json
// @Param X-Debug-User-ID header string false "Solo en modo dev, ID de usuario para depuración"
// @Param Authorization header string false "Bearer token en producción"
// @Param planID path string true "ID del plan"
// @Param scheduleID path string true "ID de la toma"
// @Param payload body recordDoseRequest true "Evento; reschedule_to obligatorio y futuro para rescheduled"
// @Success 200 {object} scheduleResponse
// @Failure 401 {string} string "unauthorized"
// @Failure 403 {string} string "forbidden"
// @Failure 404 {string} string "la toma no pertenece al plan"
// @Failure 422 {string} string "campo inválido"
// @Router /treatment-plans/{planID}/schedules/{scheduleID}/dose [post]
func recordDoseHandler(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID := middleware.UserID(r.Context())
		if userID == "" {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}

		var req recordDoseRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "invalid json", http.StatusBadRequest)
			return
		}

		planID := chi.URLParam(r, "planID")
		scheduleID := chi.URLParam(r, "scheduleID")

		if _, err := svc.Get(r.Context(), userID, planID); err != nil {
			writeError(w, err)
			return
		}
		if err := svc.ScheduleInPlan(r.Context(), planID, scheduleID); err != nil {
			writeError(w, err)
			return
		}

		entry, err := svc.RecordDose(r.Context(), scheduleID, DoseEvent{
			Status:       DoseStatus(req.Status),
			TakenAt:      req.TakenAt,
			RescheduleTo: req.RescheduleTo,
			Notes:        req.Notes,
		})
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, toScheduleResponse(entry))
	}
}

// writeError traduce errores del dominio a status HTTP.
func writeError(w http.ResponseWriter, err error) {
	var ve *ValidationError
	switch {
	case errors.As(err, &ve):
		http.Error(w, ve.Error(), http.StatusUnprocessableEntity)
	case errors.Is(err, ErrInvalidInput):
		http.Error(w, err.Error(), http.StatusBadRequest)
	case errors.Is(err, ErrForbidden):
		http.Error(w, "forbidden", http.StatusForbidden)
	case errors.Is(err, ErrNotFound):
		http.Error(w, "not found", http.StatusNotFound)
	case errors.Is(err, ErrUpstream):
		http.Error(w, ErrUpstream.Error(), http.StatusBadGateway)
	default:
		http.Error(w, "internal error", http.StatusInternalServerError)
	}
}

func toItemInputs(in []itemRequest) []ItemInput {
	out := make([]ItemInput, 0, len(in))
	for _, it := range in {
		out = append(out, ItemInput{
			MedicationID:    it.MedicationID,
			MedicationName:  it.MedicationName,
			Dosage:          it.Dosage,
			Route:           it.Route,
			Instructions:    it.Instructions,
			IntervalMinutes: it.IntervalMinutes,
			TotalDoses:      it.TotalDoses,
			DurationDays:    it.DurationDays,
			FirstDoseAt:     it.FirstDoseAt,
			SpecificTimes:   it.SpecificTimes,
		})
	}
	return out
}

func toItemRequests(in []ItemInput) []itemRequest {
	out := make([]itemRequest, 0, len(in))
	for _, it := range in {
		out = append(out, itemRequest{
			MedicationID:    it.MedicationID,
			MedicationName:  it.MedicationName,
			Dosage:          it.Dosage,
			Route:           it.Route,
			Instructions:    it.Instructions,
			IntervalMinutes: it.IntervalMinutes,
			TotalDoses:      it.TotalDoses,
			DurationDays:    it.DurationDays,
			FirstDoseAt:     it.FirstDoseAt,
			SpecificTimes:   it.SpecificTimes,
		})
	}
	return out
}

// NewPlanResponse es la representación JSON completa de un plan.
func NewPlanResponse(p Plan) PlanResponse {
	return toPlanResponse(p, 0)
}

// toPlanResponse ordena las tomas por horario; limit > 0 las recorta.
func toPlanResponse(p Plan, limit int) PlanResponse {
	items := make([]itemResponse, 0, len(p.Items))
	for _, it := range p.Items {
		entries := append([]ScheduleEntry(nil), it.Schedules...)
		sort.SliceStable(entries, func(i, j int) bool {
			return entries[i].ScheduledAt.Before(entries[j].ScheduledAt)
		})
		if limit > 0 && len(entries) > limit {
			entries = entries[:limit]
		}

		schedules := make([]scheduleResponse, 0, len(entries))
		for _, e := range entries {
			schedules = append(schedules, toScheduleResponse(e))
		}

		items = append(items, itemResponse{
			ID:              it.ID,
			MedicationID:    it.MedicationID,
			MedicationName:  it.MedicationName,
			Dosage:          it.Dosage,
			Route:           it.Route,
			Instructions:    it.Instructions,
			IntervalMinutes: it.IntervalMinutes,
			TotalDoses:      it.TotalDoses,
			DurationDays:    it.DurationDays,
			FirstDoseAt:     it.FirstDoseAt,
			SpecificTimes:   it.SpecificTimes,
			Schedules:       schedules,
		})
	}

	return PlanResponse{
		ID:           p.ID,
		OwnerUserID:  p.OwnerUserID,
		Title:        p.Title,
		Instructions: p.Instructions,
		Status:       string(p.Status),
		IsActive:     p.IsActive,
		Source:       string(p.Source),
		StartAt:      p.StartAt,
		EndAt:        p.EndAt,
		Items:        items,
		CreatedAt:    p.CreatedAt,
		UpdatedAt:    p.UpdatedAt,
	}
}

func toScheduleResponse(e ScheduleEntry) scheduleResponse {
	return scheduleResponse{
		ID:               e.ID,
		ItemID:           e.ItemID,
		ScheduledAt:      e.ScheduledAt,
		Status:           string(e.Status),
		TakenAt:          e.TakenAt,
		WasSkipped:       e.WasSkipped,
		DeviationMinutes: e.DeviationMinutes,
		Notes:            e.Notes,
		UpdatedAt:        e.UpdatedAt,
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
