package openai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"treatment-plans/internal/domain/plans"
	"treatment-plans/internal/platform/httpclient"
)

var (
	ErrNotConfigured = errors.New("openai api key is required")
	ErrUpstream      = errors.New("openai upstream error")
	ErrBadFormat     = errors.New("openai returned an unexpected plan format")
)

const (
	DefaultBaseURL = "https://api.openai.com/v1"
	DefaultModel   = "gpt-4.1"

	maxTokensCap = 1024
)

type Config struct {
	APIKey      string
	BaseURL     string
	Model       string
	Timeout     time.Duration
	MaxTokens   int
	Temperature float64
}

// Client implementa plans.Drafter sobre chat completions.
type Client struct {
	http        *httpclient.Client
	model       string
	maxTokens   int
	temperature float64
}

func NewClient(cfg Config) (*Client, error) {
	apiKey := strings.TrimSpace(cfg.APIKey)
	if apiKey == "" {
		return nil, ErrNotConfigured
	}
	base := strings.TrimSpace(cfg.BaseURL)
	if base == "" {
		base = DefaultBaseURL
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	hc, err := httpclient.NewWithBaseURL(base, timeout)
	if err != nil {
		return nil, err
	}
	hc.WithHeader("Authorization", "Bearer "+apiKey)

	model := strings.TrimSpace(cfg.Model)
	if model == "" {
		model = DefaultModel
	}
	maxTokens := cfg.MaxTokens
	if maxTokens <= 0 || maxTokens > maxTokensCap {
		maxTokens = maxTokensCap
	}

	return &Client{
		http:        hc,
		model:       model,
		maxTokens:   maxTokens,
		temperature: cfg.Temperature,
	}, nil
}

type message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model       string    `json:"model"`
	Temperature float64   `json:"temperature"`
	MaxTokens   int       `json:"max_tokens"`
	Messages    []message `json:"messages"`
}

type chatResponse struct {
	Choices []struct {
		Message message `json:"message"`
	} `json:"choices"`
	Usage map[string]any `json:"usage"`
}

func (c *Client) DraftFromSummary(ctx context.Context, hints plans.SummaryHints) (plans.Draft, error) {
	pc := newPromptContext(hints.Patient, hints.StartAt)
	return c.complete(ctx, summarySystemPrompt(pc), summaryUserPrompt(hints))
}

func (c *Client) DraftFromPrescription(ctx context.Context, hints plans.PrescriptionHints) (plans.Draft, error) {
	pc := newPromptContext(hints.Patient, hints.StartAt)
	text := hints.RawText
	pc.PrescriptionText = &text
	for _, it := range hints.Items {
		pc.Items = append(pc.Items, promptItem{
			MedicationName: it.MedicationName,
			Dosage:         it.Dosage,
			Instructions:   it.Instructions,
		})
	}
	return c.complete(ctx, prescriptionSystemPrompt(pc), prescriptionUserPrompt(hints))
}

func (c *Client) complete(ctx context.Context, system, user string) (plans.Draft, error) {
	req := chatRequest{
		Model:       c.model,
		Temperature: c.temperature,
		MaxTokens:   c.maxTokens,
		Messages: []message{
			{Role: "system", Content: system},
			{Role: "user", Content: user},
		},
	}

	var resp chatResponse
	if err := c.http.DoJSON(ctx, http.MethodPost, "/chat/completions", nil, req, &resp); err != nil {
		return plans.Draft{}, fmt.Errorf("%w: %v", ErrUpstream, err)
	}
	if len(resp.Choices) == 0 {
		return plans.Draft{}, fmt.Errorf("%w: no choices", ErrBadFormat)
	}

	d, err := decodeDraft(resp.Choices[0].Message.Content)
	if err != nil {
		return plans.Draft{}, err
	}
	d.Usage = resp.Usage
	return d, nil
}

type draftPayload struct {
	Title        string      `json:"title"`
	Instructions string      `json:"instructions"`
	Items        []draftItem `json:"items"`
}

type draftItem struct {
	MedicationID   string  `json:"medication_id"`
	MedicationName string  `json:"medication_name"`
	Dosage         string  `json:"dosage"`
	Route          string  `json:"route"`
	Instructions   string  `json:"instructions"`
	Interval       flexInt `json:"interval_minutes"`
	TotalDoses     flexInt `json:"total_doses"`
	DurationDays   flexInt `json:"duration_days"`
	FirstDoseAt    string  `json:"first_dose_at"`
	SpecificTimes  []any   `json:"specific_times"`
}

// decodeDraft interpreta el contenido del mensaje como JSON. Tolera el
// bloque ```json que algunos modelos agregan.
func decodeDraft(content string) (plans.Draft, error) {
	content = strings.TrimSpace(content)
	content = strings.TrimPrefix(content, "```json")
	content = strings.TrimPrefix(content, "```")
	content = strings.TrimSuffix(content, "```")
	content = strings.TrimSpace(content)

	var p draftPayload
	if err := json.Unmarshal([]byte(content), &p); err != nil {
		return plans.Draft{}, fmt.Errorf("%w: %v", ErrBadFormat, err)
	}

	d := plans.Draft{
		Title:        strings.TrimSpace(p.Title),
		Instructions: strings.TrimSpace(p.Instructions),
		Items:        make([]plans.ItemInput, 0, len(p.Items)),
	}
	for _, it := range p.Items {
		in := plans.ItemInput{
			MedicationID:    it.MedicationID,
			MedicationName:  it.MedicationName,
			Dosage:          it.Dosage,
			Route:           it.Route,
			Instructions:    it.Instructions,
			IntervalMinutes: it.Interval.ptr(),
			TotalDoses:      it.TotalDoses.ptr(),
			DurationDays:    it.DurationDays.ptr(),
		}
		if t, ok := parseTime(it.FirstDoseAt); ok {
			in.FirstDoseAt = &t
		}
		for _, v := range it.SpecificTimes {
			if s, ok := v.(string); ok {
				in.SpecificTimes = append(in.SpecificTimes, s)
			}
		}
		d.Items = append(d.Items, in)
	}
	return d, nil
}

// flexInt acepta números y strings numéricos; cualquier otra cosa queda vacía.
type flexInt struct {
	v  int
	ok bool
}

func (f *flexInt) UnmarshalJSON(b []byte) error {
	var raw any
	if err := json.Unmarshal(b, &raw); err != nil {
		return nil
	}
	switch x := raw.(type) {
	case float64:
		f.v, f.ok = int(x), true
	case string:
		if n, err := strconv.ParseFloat(strings.TrimSpace(x), 64); err == nil {
			f.v, f.ok = int(n), true
		}
	}
	return nil
}

func (f flexInt) ptr() *int {
	if !f.ok {
		return nil
	}
	v := f.v
	return &v
}

func parseTime(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range []string{time.RFC3339, "2006-01-02T15:04:05", "2006-01-02 15:04:05", "2006-01-02T15:04"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}
