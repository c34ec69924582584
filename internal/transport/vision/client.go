// Package vision is the HTTP client for the inference sidecar hosting the
// fine-tuned leaf classifier and the treatment generation model.
package vision

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/phytodex/internal/domain"
	"github.com/kailas-cloud/phytodex/internal/metrics"
)

// Config holds the sidecar connection settings.
type Config struct {
	BaseURL string
	Timeout time.Duration
	Logger  *zap.Logger
}

// Client talks JSON over HTTP to the vision sidecar.
type Client struct {
	baseURL string
	http    *http.Client
	logger  *zap.Logger
}

// NewClient creates a sidecar client.
func NewClient(cfg Config) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{
		baseURL: cfg.BaseURL,
		http:    &http.Client{Timeout: timeout},
		logger:  logger,
	}
}

type classifyRequest struct {
	Image   string              `json:"image"` // base64 JPEG
	Prompts []classifyPromptDTO `json:"prompts"`
}

type classifyPromptDTO struct {
	Label string `json:"label"`
	Text  string `json:"text"`
}

type classifyResponse struct {
	Scores map[string]float64 `json:"scores"` // raw logits keyed by label
}

// Classify scores the image against one text prompt per label and returns raw logits.
func (c *Client) Classify(ctx context.Context, imageJPEG []byte, prompts []domain.LabelPrompt) (map[string]float64, error) {
	reqBody := classifyRequest{
		Image:   base64.StdEncoding.EncodeToString(imageJPEG),
		Prompts: make([]classifyPromptDTO, len(prompts)),
	}
	for i, p := range prompts {
		reqBody.Prompts[i] = classifyPromptDTO{Label: p.Label, Text: p.Prompt}
	}

	var resp classifyResponse
	if err := c.post(ctx, "classify", "/v1/classify", reqBody, &resp); err != nil {
		return nil, err
	}

	if len(resp.Scores) != len(prompts) {
		metrics.VisionRequestsTotal.WithLabelValues("classify", "error").Inc()
		return nil, fmt.Errorf("classify returned %d scores for %d prompts: %w",
			len(resp.Scores), len(prompts), domain.ErrVisionProviderError)
	}

	return resp.Scores, nil
}

type generateRequest struct {
	Prompt    string `json:"prompt"`
	MaxTokens int    `json:"max_tokens,omitempty"`
	NumBeams  int    `json:"num_beams,omitempty"`
}

type generateResponse struct {
	Text string `json:"text"`
}

// Generate completes a text-to-text prompt (treatment recommendation).
func (c *Client) Generate(ctx context.Context, prompt string, params domain.GenerateParams) (string, error) {
	reqBody := generateRequest{
		Prompt:    prompt,
		MaxTokens: params.MaxTokens,
		NumBeams:  params.NumBeams,
	}

	var resp generateResponse
	if err := c.post(ctx, "generate", "/v1/generate", reqBody, &resp); err != nil {
		return "", err
	}

	return resp.Text, nil
}

type healthResponse struct {
	Status string          `json:"status"`
	Models map[string]bool `json:"models"` // "classifier" / "generator" loaded flags
}

// HealthCheck probes the sidecar and verifies both checkpoints are loaded.
func (c *Client) HealthCheck(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/v1/health", nil)
	if err != nil {
		return fmt.Errorf("build health request: %w", err)
	}

	res, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("vision health: %w: %w", domain.ErrVisionProviderError, err)
	}
	defer res.Body.Close()

	if res.StatusCode != http.StatusOK {
		return fmt.Errorf("vision health status %d: %w", res.StatusCode, domain.ErrVisionProviderError)
	}

	var out healthResponse
	if err := json.NewDecoder(res.Body).Decode(&out); err != nil {
		return fmt.Errorf("decode health response: %w", err)
	}

	for name, loaded := range out.Models {
		if !loaded {
			return fmt.Errorf("model %s not loaded: %w", name, domain.ErrModelNotReady)
		}
	}

	return nil
}

// post sends the request and decodes the JSON response, recording transport metrics.
// The sidecar answers 503 while checkpoints are loading; that maps to ErrModelNotReady.
func (c *Client) post(ctx context.Context, operation, path string, in, out any) error {
	payload, err := json.Marshal(in)
	if err != nil {
		return fmt.Errorf("marshal %s request: %w", operation, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("build %s request: %w", operation, err)
	}
	req.Header.Set("Content-Type", "application/json")

	start := time.Now()

	res, err := c.http.Do(req)

	duration := time.Since(start)

	if err != nil {
		metrics.VisionRequestsTotal.WithLabelValues(operation, "error").Inc()
		return fmt.Errorf("vision %s: %w: %w", operation, domain.ErrVisionProviderError, err)
	}
	defer res.Body.Close()

	if res.StatusCode == http.StatusServiceUnavailable {
		metrics.VisionRequestsTotal.WithLabelValues(operation, "error").Inc()
		return fmt.Errorf("vision %s unavailable: %w", operation, domain.ErrModelNotReady)
	}

	if res.StatusCode != http.StatusOK {
		metrics.VisionRequestsTotal.WithLabelValues(operation, "error").Inc()
		body, _ := io.ReadAll(io.LimitReader(res.Body, 512))
		return fmt.Errorf("vision %s status %d: %s: %w",
			operation, res.StatusCode, string(body), domain.ErrVisionProviderError)
	}

	if err := json.NewDecoder(res.Body).Decode(out); err != nil {
		metrics.VisionRequestsTotal.WithLabelValues(operation, "error").Inc()
		return fmt.Errorf("decode %s response: %w: %w", operation, domain.ErrVisionProviderError, err)
	}

	metrics.VisionRequestsTotal.WithLabelValues(operation, "success").Inc()
	metrics.VisionRequestDuration.WithLabelValues(operation).Observe(duration.Seconds())

	return nil
}
