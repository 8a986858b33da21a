package medications

import (
	"context"
	"errors"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
)

var (
	ErrInvalidInput = errors.New("invalid input")
	ErrNotFound     = errors.New("medication not found")
)

type Service struct {
	repo Repository
	now  func() time.Time
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo, now: time.Now}
}

// NameByID devuelve el nombre canónico; lo usan los planes para resolver
// medication_id.
func (s *Service) NameByID(ctx context.Context, id string) (string, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return "", ErrInvalidInput
	}
	m, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return "", err
	}
	return m.Name, nil
}

func (s *Service) GetBySlug(ctx context.Context, slug string) (Medication, error) {
	slug = Slugify(slug)
	if slug == "" {
		return Medication{}, ErrInvalidInput
	}
	return s.repo.GetBySlug(ctx, slug)
}

// Register agrega (o actualiza por slug) una medicación del catálogo.
func (s *Service) Register(ctx context.Context, name, summary, posology string) (Medication, error) {
	name = strings.TrimSpace(name)
	if name == "" || len(name) > 255 {
		return Medication{}, ErrInvalidInput
	}
	slug := Slugify(name)

	now := s.now()
	m, err := s.repo.GetBySlug(ctx, slug)
	switch {
	case errors.Is(err, ErrNotFound):
		m = Medication{ID: uuid.NewString(), Slug: slug, CreatedAt: now}
	case err != nil:
		return Medication{}, err
	}

	m.Name = name
	m.HumanSummary = strings.TrimSpace(summary)
	m.Posology = strings.TrimSpace(posology)
	m.UpdatedAt = now

	if err := s.repo.Upsert(ctx, m); err != nil {
		return Medication{}, err
	}
	return m, nil
}

var nonSlug = regexp.MustCompile(`[^a-z0-9]+`)

var accents = strings.NewReplacer(
	"á", "a", "à", "a", "â", "a", "ã", "a", "ä", "a",
	"é", "e", "ê", "e", "è", "e", "ë", "e",
	"í", "i", "ì", "i", "î", "i", "ï", "i",
	"ó", "o", "ò", "o", "ô", "o", "õ", "o", "ö", "o",
	"ú", "u", "ù", "u", "û", "u", "ü", "u",
	"ç", "c", "ñ", "n",
)

// Slugify normaliza un nombre a minúsculas ASCII separadas por guiones.
func Slugify(s string) string {
	s = accents.Replace(strings.ToLower(strings.TrimSpace(s)))
	return strings.Trim(nonSlug.ReplaceAllString(s, "-"), "-")
}
