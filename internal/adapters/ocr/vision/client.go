package vision

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"treatment-plans/internal/platform/httpclient"
)

var (
	ErrNotConfigured = errors.New("google vision api key is not configured")
	ErrUpstream      = errors.New("google vision upstream error")
)

const (
	DefaultEndpoint = "https://vision.googleapis.com/v1/images:annotate"
	DefaultFeature  = "DOCUMENT_TEXT_DETECTION"
)

type Config struct {
	APIKey   string
	Endpoint string
	Feature  string
	Timeout  time.Duration
}

// Client implementa prescriptions.TextExtractor sobre images:annotate.
type Client struct {
	http     *httpclient.Client
	apiKey   string
	endpoint string
	feature  string
}

func NewClient(cfg Config) (*Client, error) {
	endpoint := strings.TrimSpace(cfg.Endpoint)
	if endpoint == "" {
		endpoint = DefaultEndpoint
	}
	if _, err := url.ParseRequestURI(endpoint); err != nil {
		return nil, fmt.Errorf("invalid vision endpoint: %w", err)
	}
	feature := strings.TrimSpace(cfg.Feature)
	if feature == "" {
		feature = DefaultFeature
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		http:     httpclient.New(timeout),
		apiKey:   strings.TrimSpace(cfg.APIKey),
		endpoint: endpoint,
		feature:  feature,
	}, nil
}

// Enabled es false sin API key; las recetas quedan para carga manual.
func (c *Client) Enabled() bool {
	return c != nil && c.apiKey != ""
}

type annotateRequest struct {
	Requests []imageRequest `json:"requests"`
}

type imageRequest struct {
	Image    imageContent `json:"image"`
	Features []feature    `json:"features"`
}

type imageContent struct {
	Content string `json:"content"`
}

type feature struct {
	Type       string `json:"type"`
	MaxResults int    `json:"maxResults"`
}

type annotateResponse struct {
	Responses []struct {
		FullTextAnnotation *struct {
			Text string `json:"text"`
		} `json:"fullTextAnnotation"`
		Error *struct {
			Code    int    `json:"code"`
			Message string `json:"message"`
			Status  string `json:"status"`
		} `json:"error"`
	} `json:"responses"`
}

// ExtractText devuelve el texto completo detectado, o "" si no hay texto.
func (c *Client) ExtractText(ctx context.Context, data []byte, contentType string) (string, error) {
	if !c.Enabled() {
		return "", ErrNotConfigured
	}

	req := annotateRequest{Requests: []imageRequest{{
		Image:    imageContent{Content: base64.StdEncoding.EncodeToString(data)},
		Features: []feature{{Type: c.feature, MaxResults: 1}},
	}}}

	var resp annotateResponse
	if err := c.http.DoJSON(ctx, http.MethodPost, c.requestURL(), nil, req, &resp); err != nil {
		return "", fmt.Errorf("%w: %v", ErrUpstream, err)
	}
	if len(resp.Responses) == 0 {
		return "", nil
	}

	r := resp.Responses[0]
	if r.Error != nil {
		return "", fmt.Errorf("%w: %s %s", ErrUpstream, r.Error.Status, r.Error.Message)
	}
	if r.FullTextAnnotation == nil {
		return "", nil
	}
	return strings.TrimSpace(r.FullTextAnnotation.Text), nil
}

func (c *Client) requestURL() string {
	sep := "?"
	if strings.Contains(c.endpoint, "?") {
		sep = "&"
	}
	return c.endpoint + sep + "key=" + url.QueryEscape(c.apiKey)
}
