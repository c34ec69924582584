package phytodex

import (
	"net/http"
	"time"
)

// Option configures the Client.
type Option interface {
	apply(*Client)
}

type optionFunc func(*Client)

func (f optionFunc) apply(c *Client) {
	f(c)
}

// WithAPIKey sends the key as a bearer token on every request.
func WithAPIKey(key string) Option {
	return optionFunc(func(c *Client) {
		c.apiKey = key
	})
}

// WithHTTPClient replaces the underlying HTTP client, for example to add
// a custom transport. It overrides any timeout set before it.
func WithHTTPClient(h *http.Client) Option {
	return optionFunc(func(c *Client) {
		if h != nil {
			c.http = h
		}
	})
}

// WithTimeout sets the per-request timeout on the underlying HTTP client.
func WithTimeout(d time.Duration) Option {
	return optionFunc(func(c *Client) {
		c.http.Timeout = d
	})
}
