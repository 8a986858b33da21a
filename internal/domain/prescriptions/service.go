package prescriptions

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"net/http"
	"path/filepath"
	"strings"
	"time"

	"treatment-plans/internal/domain/plans"
	"treatment-plans/internal/platform/logger"

	"github.com/google/uuid"
)

var (
	ErrInvalidInput = errors.New("invalid input")
	ErrNotFound     = errors.New("upload not found")
	ErrForbidden    = errors.New("forbidden")
	ErrNotReady     = errors.New("prescription not processed yet")
	ErrQueue        = errors.New("could not enqueue prescription processing")
	ErrExtraction   = errors.New("ocr extraction failed")
)

const (
	ListLimit         = 20
	MaxFileBytes      = 4 << 20
	DefaultOCRTimeout = 90 * time.Second
	DefaultAttempts   = 2

	unstructuredName = "Unstructured prescription"
)

var allowedTypes = map[string]string{
	"image/jpeg":      ".jpg",
	"image/png":       ".png",
	"image/webp":      ".webp",
	"application/pdf": ".pdf",
}

type Service struct {
	repo      Repository
	files     FileStore
	queue     Queue
	extractor TextExtractor
	plans     PlanCreator
	log       logger.Logger

	ocrTimeout  time.Duration
	maxAttempts int
	now         func() time.Time
}

type Options struct {
	Extractor   TextExtractor // nil => todo queda en manual_review
	Plans       PlanCreator
	Logger      logger.Logger
	OCRTimeout  time.Duration
	MaxAttempts int
}

func NewService(repo Repository, files FileStore, queue Queue, opts Options) *Service {
	log := opts.Logger
	if log == nil {
		log = logger.Nop()
	}
	timeout := opts.OCRTimeout
	if timeout <= 0 {
		timeout = DefaultOCRTimeout
	}
	attempts := opts.MaxAttempts
	if attempts <= 0 {
		attempts = DefaultAttempts
	}
	return &Service{
		repo:        repo,
		files:       files,
		queue:       queue,
		extractor:   opts.Extractor,
		plans:       opts.Plans,
		log:         log.With(map[string]any{"component": "prescriptions"}),
		ocrTimeout:  timeout,
		maxAttempts: attempts,
		now:         time.Now,
	}
}

// MaxAttempts es la cantidad de intentos de OCR por receta.
func (s *Service) MaxAttempts() int { return s.maxAttempts }

type UploadInput struct {
	OriginalName string
	ContentType  string
	Data         []byte
	// ImageBase64 se usa cuando no viene archivo; acepta prefijo data:...;base64,
	ImageBase64 string
	Notes       string
}

// Upload guarda el archivo, crea el registro en pending y encola el OCR.
func (s *Service) Upload(ctx context.Context, ownerUserID string, in UploadInput) (Upload, error) {
	ownerUserID = strings.TrimSpace(ownerUserID)
	if ownerUserID == "" {
		return Upload{}, ErrInvalidInput
	}

	data := in.Data
	contentType := in.ContentType
	if len(data) == 0 && strings.TrimSpace(in.ImageBase64) != "" {
		decoded, err := decodeImage(in.ImageBase64)
		if err != nil {
			return Upload{}, fmt.Errorf("%w: image_base64 is not valid base64", ErrInvalidInput)
		}
		data = decoded
	}
	if len(data) == 0 {
		return Upload{}, fmt.Errorf("%w: file is required without image_base64", ErrInvalidInput)
	}
	if len(data) > MaxFileBytes {
		return Upload{}, fmt.Errorf("%w: file must be at most 4MB", ErrInvalidInput)
	}

	contentType = normalizeContentType(contentType, data)
	ext, ok := allowedTypes[contentType]
	if !ok {
		return Upload{}, fmt.Errorf("%w: unsupported file type %s", ErrInvalidInput, contentType)
	}

	id := uuid.NewString()
	path, err := s.files.Save(ctx, ownerUserID, id+ext, data)
	if err != nil {
		return Upload{}, fmt.Errorf("store file: %w", err)
	}

	now := s.now()
	u := Upload{
		ID:           id,
		OwnerUserID:  ownerUserID,
		OriginalName: strings.TrimSpace(filepath.Base(in.OriginalName)),
		FilePath:     path,
		ContentType:  contentType,
		Notes:        strings.TrimSpace(in.Notes),
		Status:       StatusPending,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if u.OriginalName == "." {
		u.OriginalName = ""
	}

	if err := s.repo.Create(ctx, u); err != nil {
		_ = s.files.Remove(ctx, path)
		return Upload{}, err
	}

	if err := s.queue.Enqueue(ctx, Job{UploadID: u.ID, EnqueuedAt: now}); err != nil {
		s.log.Error("enqueue ocr failed", map[string]any{"upload_id": u.ID, "error": err.Error()})
		_ = s.finish(ctx, &u, StatusFailed, "", nil, "Processing queue unavailable. Upload again later.")
		return u, fmt.Errorf("%w: %v", ErrQueue, err)
	}

	s.log.Info("prescription uploaded", map[string]any{
		"upload_id":    u.ID,
		"content_type": contentType,
		"bytes":        len(data),
	})
	return u, nil
}

func (s *Service) List(ctx context.Context, ownerUserID string) ([]Upload, error) {
	ownerUserID = strings.TrimSpace(ownerUserID)
	if ownerUserID == "" {
		return nil, ErrInvalidInput
	}
	return s.repo.ListByOwner(ctx, ownerUserID, ListLimit)
}

// Get devuelve la receta si pertenece al usuario.
func (s *Service) Get(ctx context.Context, ownerUserID, id string) (Upload, error) {
	u, err := s.repo.GetByID(ctx, strings.TrimSpace(id))
	if err != nil {
		return Upload{}, err
	}
	if u.OwnerUserID != strings.TrimSpace(ownerUserID) {
		return Upload{}, ErrForbidden
	}
	return u, nil
}

func (s *Service) Delete(ctx context.Context, ownerUserID, id string) error {
	u, err := s.Get(ctx, ownerUserID, id)
	if err != nil {
		return err
	}
	s.discard(ctx, u)
	return nil
}

// Process ejecuta un intento de OCR. Devuelve un error envolviendo
// ErrExtraction cuando el proveedor falla y quedan intentos; en el último
// intento persiste failed y devuelve nil.
func (s *Service) Process(ctx context.Context, uploadID string, attempt int) error {
	u, err := s.repo.GetByID(ctx, uploadID)
	if err != nil {
		return err
	}

	u.Status = StatusProcessing
	u.Attempts = attempt
	u.UpdatedAt = s.now()
	if err := s.repo.Update(ctx, u); err != nil {
		return err
	}

	if s.extractor == nil || !s.extractor.Enabled() {
		s.log.Info("ocr provider not configured, keeping upload for manual review", map[string]any{"upload_id": u.ID})
		return s.finish(ctx, &u, StatusManualReview, "", nil, "OCR unavailable. Manual entry required.")
	}

	data, err := s.files.Read(ctx, u.FilePath)
	if err != nil {
		s.log.Error("upload file missing", map[string]any{"upload_id": u.ID, "error": err.Error()})
		return s.finish(ctx, &u, StatusFailed, "", nil, fmt.Sprintf("File %s not found for OCR.", u.FilePath))
	}

	octx, cancel := context.WithTimeout(ctx, s.ocrTimeout)
	defer cancel()

	text, err := s.extractor.ExtractText(octx, data, u.ContentType)
	if err != nil {
		s.log.Warn("ocr extraction failed", map[string]any{
			"upload_id": u.ID,
			"attempt":   attempt,
			"error":     err.Error(),
		})
		if attempt < s.maxAttempts {
			return fmt.Errorf("%w: %v", ErrExtraction, err)
		}
		return s.finish(ctx, &u, StatusFailed, "", nil, friendlyOCRMessage(err))
	}

	text = strings.TrimSpace(text)
	if text == "" {
		return s.finish(ctx, &u, StatusManualReview, "", nil, "OCR returned no text for this image.")
	}

	items := ParseLines(text)
	if len(items) == 0 {
		return s.finish(ctx, &u, StatusTextExtracted, text, nil, "Text extracted. Awaiting enrichment.")
	}
	return s.finish(ctx, &u, StatusParsed, text, items, "")
}

// Fail marca la receta como failed. Lo usa el worker cuando agota reintentos
// por errores de infraestructura.
func (s *Service) Fail(ctx context.Context, uploadID, reason string) error {
	u, err := s.repo.GetByID(ctx, uploadID)
	if err != nil {
		return err
	}
	return s.finish(ctx, &u, StatusFailed, u.ExtractedText, u.ParsedItems, reason)
}

func (s *Service) finish(ctx context.Context, u *Upload, status Status, text string, items []ParsedItem, reason string) error {
	now := s.now()
	u.Status = status
	u.ExtractedText = text
	u.ParsedItems = items
	u.FailureReason = reason
	u.ProcessedAt = &now
	u.UpdatedAt = now

	if err := s.repo.Update(ctx, *u); err != nil {
		return err
	}
	s.log.Info("prescription processed", map[string]any{
		"upload_id": u.ID,
		"status":    string(status),
		"items":     len(items),
	})
	return nil
}

type PlanInput struct {
	StartAt *time.Time
	Title   string
}

// CreatePlan genera un plan desde una receta procesada y luego descarta la
// receta y su archivo.
func (s *Service) CreatePlan(ctx context.Context, ownerUserID, uploadID string, in PlanInput) (plans.Plan, error) {
	u, err := s.Get(ctx, ownerUserID, uploadID)
	if err != nil {
		return plans.Plan{}, err
	}
	if !u.Status.Plannable() {
		return plans.Plan{}, ErrNotReady
	}
	if in.StartAt == nil {
		return plans.Plan{}, fmt.Errorf("%w: start_at is required", ErrInvalidInput)
	}
	if s.plans == nil {
		return plans.Plan{}, fmt.Errorf("%w: plan creator not configured", plans.ErrUpstream)
	}

	items := make([]plans.ItemInput, 0, len(u.ParsedItems))
	for _, it := range u.ParsedItems {
		items = append(items, plans.ItemInput{
			MedicationName: it.MedicationName,
			Dosage:         it.Dosage,
			Instructions:   it.Instructions,
		})
	}
	if len(items) == 0 {
		if u.ExtractedText == "" {
			return plans.Plan{}, fmt.Errorf("%w: not enough data to generate a plan", ErrNotReady)
		}
		items = append(items, plans.ItemInput{
			MedicationName: unstructuredName,
			Instructions:   u.ExtractedText,
		})
	}

	title := strings.TrimSpace(in.Title)
	if title == "" {
		title = "Prescription plan " + u.CreatedAt.Format("02/01")
	}

	p, err := s.plans.CreateFromPrescription(ctx, u.OwnerUserID, plans.PrescriptionInput{
		Items:   items,
		RawText: u.ExtractedText,
		StartAt: in.StartAt,
		Title:   title,
	})
	if err != nil {
		return plans.Plan{}, err
	}

	s.discard(ctx, u)
	return p, nil
}

func (s *Service) discard(ctx context.Context, u Upload) {
	if err := s.files.Remove(ctx, u.FilePath); err != nil {
		s.log.Warn("remove upload file failed", map[string]any{"upload_id": u.ID, "error": err.Error()})
	}
	if err := s.repo.Delete(ctx, u.ID); err != nil && !errors.Is(err, ErrNotFound) {
		s.log.Error("delete upload failed", map[string]any{"upload_id": u.ID, "error": err.Error()})
	}
}

func decodeImage(s string) ([]byte, error) {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "data:") {
		if i := strings.Index(s, ";base64,"); i >= 0 {
			s = s[i+len(";base64,"):]
		}
	}
	return base64.StdEncoding.DecodeString(s)
}

func normalizeContentType(ct string, data []byte) string {
	ct = strings.ToLower(strings.TrimSpace(ct))
	if i := strings.Index(ct, ";"); i >= 0 {
		ct = strings.TrimSpace(ct[:i])
	}
	if ct == "" || ct == "application/octet-stream" {
		ct = http.DetectContentType(data)
		if i := strings.Index(ct, ";"); i >= 0 {
			ct = ct[:i]
		}
	}
	return ct
}
