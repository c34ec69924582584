package phytodex

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"
)

const defaultTimeout = 60 * time.Second

// Error codes returned by the API in the "code" field of error responses.
const (
	CodeBadRequest             = "bad_request"
	CodeValidationFailed       = "validation_failed"
	CodeInvalidImage           = "invalid_image"
	CodeDocumentNotFound       = "document_not_found"
	CodePayloadTooLarge        = "payload_too_large"
	CodeRateLimited            = "rate_limited"
	CodeTokenQuotaExceeded     = "token_quota_exceeded"
	CodeEmbeddingProviderError = "embedding_provider_error"
	CodeChatProviderError      = "chat_provider_error"
	CodeVisionProviderError    = "vision_provider_error"
	CodeModelUnavailable       = "model_unavailable"
	CodeUnauthorized           = "unauthorized"
	CodeInternalError          = "internal_error"
)

// APIError is a non-2xx response from the API. Check the Code field (or
// use errors.As) to branch on the failure kind.
type APIError struct {
	StatusCode int
	Code       string
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("phytodex: %s (status %d): %s", e.Code, e.StatusCode, e.Message)
}

// Client talks to a phytodex API server over HTTP.
type Client struct {
	baseURL string
	apiKey  string
	http    *http.Client
}

// New creates a client for the API at baseURL.
func New(baseURL string, opts ...Option) (*Client, error) {
	if baseURL == "" {
		return nil, errors.New("phytodex: base URL is required")
	}
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: defaultTimeout},
	}
	for _, opt := range opts {
		opt.apply(c)
	}
	return c, nil
}

func (c *Client) getJSON(ctx context.Context, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return fmt.Errorf("phytodex: build request: %w", err)
	}
	_, err = c.send(req, out)
	return err
}

func (c *Client) postJSON(ctx context.Context, path string, in, out any) (http.Header, error) {
	payload, err := json.Marshal(in)
	if err != nil {
		return nil, fmt.Errorf("phytodex: encode request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("phytodex: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	return c.send(req, out)
}

// send executes the request, maps non-2xx responses to *APIError and
// decodes the body into out when it is non-nil.
func (c *Client) send(req *http.Request, out any) (http.Header, error) {
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}
	res, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("phytodex: %s %s: %w", req.Method, req.URL.Path, err)
	}
	defer res.Body.Close()

	if res.StatusCode < 200 || res.StatusCode > 299 {
		return nil, parseAPIError(res)
	}
	if out != nil {
		if err := json.NewDecoder(res.Body).Decode(out); err != nil {
			return nil, fmt.Errorf("phytodex: decode response: %w", err)
		}
	}
	return res.Header, nil
}

func parseAPIError(res *http.Response) error {
	apiErr := &APIError{StatusCode: res.StatusCode}

	body, err := io.ReadAll(io.LimitReader(res.Body, 64<<10))
	if err == nil {
		var wire struct {
			Code    string `json:"code"`
			Message string `json:"message"`
		}
		if json.Unmarshal(body, &wire) == nil && wire.Code != "" {
			apiErr.Code = wire.Code
			apiErr.Message = wire.Message
			return apiErr
		}
	}
	apiErr.Code = CodeInternalError
	apiErr.Message = http.StatusText(res.StatusCode)
	return apiErr
}

// tokensUsed reads the X-AI-Tokens response header. Zero means the
// request consumed no provider tokens or the header was absent.
func tokensUsed(h http.Header) int {
	n, err := strconv.Atoi(h.Get("X-AI-Tokens"))
	if err != nil {
		return 0
	}
	return n
}
