package medications

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
)

func RegisterRoutes(r chi.Router, svc *Service) {
	r.Get("/medications/{slug}", getMedicationHandler(svc))
}

type medicationResponse struct {
	ID           string     `json:"id"`
	Name         string     `json:"name"`
	Slug         string     `json:"slug"`
	HumanSummary string     `json:"human_summary,omitempty"`
	Posology     string     `json:"posology,omitempty"`
	FetchedAt    *time.Time `json:"fetched_at,omitempty"`
}

// getMedicationHandler godoc
// @Summary Ver medicación del catálogo
// @Description Busca una medicación por slug (p.ej. `amoxicilina-500mg`).
// @Tags medications
// @Produce json
// @Param slug path string true "Slug de la medicación"
// @Success 200 {object} medicationResponse
// @Failure 400 {string} string "slug inválido"
// @Failure 404 {string} string "medication not found"
// @Router /medications/{slug} [get]
func getMedicationHandler(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		m, err := svc.GetBySlug(r.Context(), chi.URLParam(r, "slug"))
		if err != nil {
			switch {
			case errors.Is(err, ErrInvalidInput):
				http.Error(w, "invalid slug", http.StatusBadRequest)
			case errors.Is(err, ErrNotFound):
				http.Error(w, "medication not found", http.StatusNotFound)
			default:
				http.Error(w, "internal error", http.StatusInternalServerError)
			}
			return
		}

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(medicationResponse{
			ID:           m.ID,
			Name:         m.Name,
			Slug:         m.Slug,
			HumanSummary: m.HumanSummary,
			Posology:     m.Posology,
			FetchedAt:    m.FetchedAt,
		})
	}
}
