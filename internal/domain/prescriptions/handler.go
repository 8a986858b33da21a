package prescriptions

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"treatment-plans/internal/domain/plans"
	"treatment-plans/internal/middleware"

	"github.com/go-chi/chi/v5"
)

func RegisterRoutes(r chi.Router, svc *Service) {
	r.Route("/prescriptions/uploads", func(pr chi.Router) {
		pr.Get("/", listUploadsHandler(svc))
		pr.Post("/", uploadHandler(svc))
		pr.Get("/{uploadID}", getUploadHandler(svc))
		pr.Delete("/{uploadID}", deleteUploadHandler(svc))
		pr.Post("/{uploadID}/plan", createPlanHandler(svc))
	})
}

type uploadBase64Request struct {
	ImageBase64 string `json:"image_base64"`
	Notes       string `json:"notes"`
}

type createPlanRequest struct {
	StartAt *time.Time `json:"start_at"`
	Title   string     `json:"title"`
}

type uploadResponse struct {
	ID            string       `json:"id"`
	OriginalName  string       `json:"original_name,omitempty"`
	ContentType   string       `json:"content_type"`
	Notes         string       `json:"notes,omitempty"`
	Status        string       `json:"status"`
	ExtractedText string       `json:"extracted_text,omitempty"`
	ParsedItems   []ParsedItem `json:"parsed_items,omitempty"`
	FailureReason string       `json:"failure_reason,omitempty"`
	Attempts      int          `json:"attempts"`
	ProcessedAt   *time.Time   `json:"processed_at,omitempty"`
	CreatedAt     time.Time    `json:"created_at"`
	UpdatedAt     time.Time    `json:"updated_at"`
}

// uploadHandler godoc
// @Summary Subir receta
// @Description Recibe la imagen de una receta (multipart `file`, o JSON con `image_base64`) y encola su OCR. Tipos: jpeg, png, webp, pdf; máximo 4MB.
// @Tags prescriptions
// @Accept multipart/form-data
// @Accept json
// @Produce json
// @Param X-Debug-User-ID header string false "Solo en modo dev, ID de usuario para depuración"
// @Param Authorization header string false "Bearer token en producción"
// @Param file formData file false "Imagen o PDF de la receta"
// @Param notes formData string false "Notas del paciente"
// @Success 201 {object} uploadResponse
// @Failure 401 {string} string "unauthorized"
// @Failure 422 {string} string "archivo inválido"
// @Failure 503 {string} string "cola no disponible"
// @Router /prescriptions/uploads [post]
func uploadHandler(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID := middleware.UserID(r.Context())
		if userID == "" {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}

		var in UploadInput
		if strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/") {
			if err := r.ParseMultipartForm(MaxFileBytes + 1<<20); err != nil {
				http.Error(w, "invalid multipart body", http.StatusBadRequest)
				return
			}
			file, header, err := r.FormFile("file")
			if err != nil {
				http.Error(w, "file is required", http.StatusUnprocessableEntity)
				return
			}
			defer file.Close()

			data, err := io.ReadAll(io.LimitReader(file, MaxFileBytes+1))
			if err != nil {
				http.Error(w, "could not read file", http.StatusBadRequest)
				return
			}
			in = UploadInput{
				OriginalName: header.Filename,
				ContentType:  header.Header.Get("Content-Type"),
				Data:         data,
				Notes:        r.FormValue("notes"),
			}
		} else {
			var req uploadBase64Request
			if err := json.NewDecoder(io.LimitReader(r.Body, 2*MaxFileBytes)).Decode(&req); err != nil {
				http.Error(w, "invalid json", http.StatusBadRequest)
				return
			}
			in = UploadInput{ImageBase64: req.ImageBase64, Notes: req.Notes}
		}

		u, err := svc.Upload(r.Context(), userID, in)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, toUploadResponse(u))
	}
}

// listUploadsHandler godoc
// @Summary Listar recetas
// @Description Las 20 recetas más recientes del usuario.
// @Tags prescriptions
// @Produce json
// @Param X-Debug-User-ID header string false "Solo en modo dev, ID de usuario para depuración"
// @Param Authorization header string false "Bearer token en producción"
// @Success 200 {array} uploadResponse
// @Failure 401 {string} string "unauthorized"
// @Router /prescriptions/uploads [get]
func listUploadsHandler(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID := middleware.UserID(r.Context())
		if userID == "" {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}

		items, err := svc.List(r.Context(), userID)
		if err != nil {
			writeError(w, err)
			return
		}
		out := make([]uploadResponse, 0, len(items))
		for _, u := range items {
			out = append(out, toUploadResponse(u))
		}
		writeJSON(w, http.StatusOK, out)
	}
}

// getUploadHandler godoc
// @Summary Ver receta
// @Description Estado del OCR, texto extraído e items reconocidos.
// @Tags prescriptions
// @Produce json
// @Param X-Debug-User-ID header string false "Solo en modo dev, ID de usuario para depuración"
// @Param Authorization header string false "Bearer token en producción"
// @Param uploadID path string true "ID de la receta"
// @Success 200 {object} uploadResponse
// @Failure 401 {string} string "unauthorized"
// @Failure 403 {string} string "forbidden"
// @Failure 404 {string} string "upload not found"
// @Router /prescriptions/uploads/{uploadID} [get]
func getUploadHandler(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID := middleware.UserID(r.Context())
		if userID == "" {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}

		u, err := svc.Get(r.Context(), userID, chi.URLParam(r, "uploadID"))
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, toUploadResponse(u))
	}
}

// deleteUploadHandler godoc
// @Summary Eliminar receta
// @Description Borra el registro y el archivo almacenado.
// @Tags prescriptions
// @Param X-Debug-User-ID header string false "Solo en modo dev, ID de usuario para depuración"
// @Param Authorization header string false "Bearer token en producción"
// @Param uploadID path string true "ID de la receta"
// @Success 204 {string} string "no content"
// @Failure 401 {string} string "unauthorized"
// @Failure 403 {string} string "forbidden"
// @Failure 404 {string} string "upload not found"
// @Router /prescriptions/uploads/{uploadID} [delete]
func deleteUploadHandler(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID := middleware.UserID(r.Context())
		if userID == "" {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}

		if err := svc.Delete(r.Context(), userID, chi.URLParam(r, "uploadID")); err != nil {
			writeError(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

// createPlanHandler godoc
// @Summary Crear plan desde receta procesada
// @Description Requiere status parsed o text_extracted. Si no hay items reconocidos se envía el texto como un item sin estructura. La receta se elimina al crear el plan.
// @Tags prescriptions
// @Accept json
// @Produce json
// @Param X-Debug-User-ID header string false "Solo en modo dev, ID de usuario para depuración"
// @Param Authorization header string false "Bearer token en producción"
// @Param uploadID path string true "ID de la receta"
// @Param payload body createPlanRequest true "start_at obligatorio (RFC3339)"
// @Success 201 {object} plans.PlanResponse
// @Failure 401 {string} string "unauthorized"
// @Failure 403 {string} string "forbidden"
// @Failure 404 {string} string "upload not found"
// @Failure 422 {string} string "receta no procesada / start_at faltante"
// @Failure 502 {string} string "could not auto-generate plan"
// @Router /prescriptions/uploads/{uploadID}/plan [post]
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

		p, err := svc.CreatePlan(r.Context(), userID, chi.URLParam(r, "uploadID"), PlanInput{
			StartAt: req.StartAt,
			Title:   req.Title,
		})
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, plans.NewPlanResponse(p))
	}
}

func writeError(w http.ResponseWriter, err error) {
	var ve *plans.ValidationError
	switch {
	case errors.Is(err, ErrInvalidInput), errors.Is(err, ErrNotReady):
		http.Error(w, err.Error(), http.StatusUnprocessableEntity)
	case errors.As(err, &ve):
		http.Error(w, ve.Error(), http.StatusUnprocessableEntity)
	case errors.Is(err, ErrForbidden), errors.Is(err, plans.ErrForbidden):
		http.Error(w, "forbidden", http.StatusForbidden)
	case errors.Is(err, ErrNotFound):
		http.Error(w, "upload not found", http.StatusNotFound)
	case errors.Is(err, ErrQueue):
		http.Error(w, ErrQueue.Error(), http.StatusServiceUnavailable)
	case errors.Is(err, plans.ErrUpstream):
		http.Error(w, plans.ErrUpstream.Error(), http.StatusBadGateway)
	default:
		http.Error(w, "internal error", http.StatusInternalServerError)
	}
}

func toUploadResponse(u Upload) uploadResponse {
	return uploadResponse{
		ID:            u.ID,
		OriginalName:  u.OriginalName,
		ContentType:   u.ContentType,
		Notes:         u.Notes,
		Status:        string(u.Status),
		ExtractedText: u.ExtractedText,
		ParsedItems:   u.ParsedItems,
		FailureReason: u.FailureReason,
		Attempts:      u.Attempts,
		ProcessedAt:   u.ProcessedAt,
		CreatedAt:     u.CreatedAt,
		UpdatedAt:     u.UpdatedAt,
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
