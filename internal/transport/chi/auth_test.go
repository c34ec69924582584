package chi

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

// doAuthRequest runs one request through the middleware and returns the recorder.
func doAuthRequest(t *testing.T, handler http.Handler, method, path, authHeader string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, http.NoBody)
	if authHeader != "" {
		req.Header.Set("Authorization", authHeader)
	}
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)
	return rr
}

func TestAuthMiddleware_NoConfiguredKeysDisablesAuth(t *testing.T) {
	for name, keys := range map[string][]string{
		"nil_keys":          nil,
		"empty_string_keys": {"", ""},
	} {
		t.Run(name, func(t *testing.T) {
			handler := BearerAuthMiddleware(keys)(okHandler())
			rr := doAuthRequest(t, handler, "POST", "/api/v1/chat", "")
			if rr.Code != http.StatusOK {
				t.Errorf("got %d, want %d", rr.Code, http.StatusOK)
			}
		})
	}
}

func TestAuthMiddleware_Rejections(t *testing.T) {
	handler := BearerAuthMiddleware([]string{"secret"})(okHandler())

	tests := []struct {
		name   string
		header string
	}{
		{"missing_header", ""},
		{"basic_scheme", "Basic dXNlcjpwYXNz"},
		{"no_token", "Bearer"},
		{"wrong_key", "Bearer wrong-key"},
		{"key_prefix_only", "Bearer sec"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			rr := doAuthRequest(t, handler, "POST", "/api/v1/chat", tc.header)
			if rr.Code != http.StatusUnauthorized {
				t.Fatalf("got %d, want %d", rr.Code, http.StatusUnauthorized)
			}
			if got := rr.Header().Get("WWW-Authenticate"); got == "" {
				t.Error("401 response must carry WWW-Authenticate")
			}

			var errResp ErrorResponse
			if err := json.NewDecoder(rr.Body).Decode(&errResp); err != nil {
				t.Fatalf("decode error response: %v", err)
			}
			if errResp.Code != CodeUnauthorized {
				t.Errorf("error code: got %s, want %s", errResp.Code, CodeUnauthorized)
			}
		})
	}
}

func TestAuthMiddleware_AcceptsConfiguredKeys(t *testing.T) {
	handler := BearerAuthMiddleware([]string{"key1", "key2"})(okHandler())

	for _, header := range []string{
		"Bearer key1",
		"Bearer key2",
		"bearer key1", // scheme is case-insensitive per RFC 6750
	} {
		rr := doAuthRequest(t, handler, "POST", "/api/v1/chat", header)
		if rr.Code != http.StatusOK {
			t.Errorf("header %q: got %d, want %d", header, rr.Code, http.StatusOK)
		}
	}
}

func TestAuthMiddleware_ExemptPaths(t *testing.T) {
	handler := BearerAuthMiddleware([]string{"secret"})(okHandler())

	for _, path := range []string{"/health", "/metrics"} {
		rr := doAuthRequest(t, handler, "GET", path, "")
		if rr.Code != http.StatusOK {
			t.Errorf("exempt path %s: got %d, want %d", path, rr.Code, http.StatusOK)
		}
	}
}
