package phytodex

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
)

// Health reports the server's dependency health. A degraded server
// answers 503 with the same body, so that status is returned as a
// report rather than an error.
func (c *Client) Health(ctx context.Context) (Health, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/health", nil)
	if err != nil {
		return Health{}, fmt.Errorf("phytodex: build request: %w", err)
	}
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	res, err := c.http.Do(req)
	if err != nil {
		return Health{}, fmt.Errorf("phytodex: GET /health: %w", err)
	}
	defer res.Body.Close()

	if res.StatusCode != http.StatusOK && res.StatusCode != http.StatusServiceUnavailable {
		return Health{}, parseAPIError(res)
	}

	var out Health
	if err := json.NewDecoder(res.Body).Decode(&out); err != nil {
		return Health{}, fmt.Errorf("phytodex: decode response: %w", err)
	}
	return out, nil
}
