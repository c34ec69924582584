package chi

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/kailas-cloud/phytodex/internal/domain"
	domusage "github.com/kailas-cloud/phytodex/internal/domain/usage"
	healthuc "github.com/kailas-cloud/phytodex/internal/usecase/health"
	ingestuc "github.com/kailas-cloud/phytodex/internal/usecase/ingest"
)

// --- Mocks ---

type mockDiagnoser struct {
	pred      domain.Prediction
	err       error
	calls     int
	lastImage []byte
}

func (m *mockDiagnoser) Diagnose(_ context.Context, imageData []byte) (domain.Prediction, error) {
	m.calls++
	m.lastImage = imageData
	return m.pred, m.err
}

type mockAsker struct {
	answer   domain.Answer
	err      error
	tokens   int
	calls    int
	lastQ    string
	lastTopK int
	lastCrop string
}

func (m *mockAsker) Ask(ctx context.Context, question string, topK int, crop string) (domain.Answer, error) {
	m.calls++
	m.lastQ = question
	m.lastTopK = topK
	m.lastCrop = crop
	if m.tokens > 0 {
		domain.UsageFromContext(ctx).AddCompletionTokens(m.tokens)
	}
	return m.answer, m.err
}

type mockKnowledge struct {
	ingestResult domain.IngestResult
	ingestErr    error
	stats        domain.KnowledgeStats
	statsErr     error
	deleted      int
	deleteErr    error
	lastDoc      ingestuc.Document
	lastSource   string
}

func (m *mockKnowledge) Ingest(_ context.Context, doc ingestuc.Document) (domain.IngestResult, error) {
	m.lastDoc = doc
	return m.ingestResult, m.ingestErr
}

func (m *mockKnowledge) Stats(_ context.Context) (domain.KnowledgeStats, error) {
	return m.stats, m.statsErr
}

func (m *mockKnowledge) Delete(_ context.Context, source string) (int, error) {
	m.lastSource = source
	return m.deleted, m.deleteErr
}

type mockUsageReporter struct {
	report     domusage.Report
	lastPeriod domusage.Period
}

func (m *mockUsageReporter) GetReport(_ context.Context, period domusage.Period) domusage.Report {
	m.lastPeriod = period
	return m.report
}

type mockHealthChecker struct {
	report healthuc.Report
}

func (m *mockHealthChecker) Check(_ context.Context) healthuc.Report {
	return m.report
}

// --- Harness ---

type testServer struct {
	diagnose  *mockDiagnoser
	chat      *mockAsker
	knowledge *mockKnowledge
	usage     *mockUsageReporter
	health    *mockHealthChecker
	handler   http.Handler
}

// newTestServer mounts a Server with fresh mocks on a chi router.
// maxUploadMB and aiMiddleware match the NewServer and Routes knobs.
func newTestServer(maxUploadMB int, aiMiddleware ...func(http.Handler) http.Handler) *testServer {
	ts := &testServer{
		diagnose:  &mockDiagnoser{},
		chat:      &mockAsker{},
		knowledge: &mockKnowledge{},
		usage:     &mockUsageReporter{},
		health: &mockHealthChecker{report: healthuc.Report{
			Status: healthuc.Healthy,
			Checks: map[string]healthuc.CheckResult{"database": healthuc.CheckOK},
		}},
	}

	srv := NewServer(ts.diagnose, ts.chat, ts.knowledge, ts.usage, ts.health, maxUploadMB, zap.NewNop())
	r := chi.NewRouter()
	srv.Routes(r, aiMiddleware...)
	ts.handler = r
	return ts
}

func (ts *testServer) doJSON(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("failed to encode request body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	ts.handler.ServeHTTP(rec, req)
	return rec
}

func (ts *testServer) doRaw(t *testing.T, method, path, contentType string, body []byte) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, bytes.NewReader(body))
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	rec := httptest.NewRecorder()
	ts.handler.ServeHTTP(rec, req)
	return rec
}

func decodeJSON(t *testing.T, rec *httptest.ResponseRecorder, v any) {
	t.Helper()
	if err := json.NewDecoder(rec.Body).Decode(v); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
}

func wantErrorCode(t *testing.T, rec *httptest.ResponseRecorder, status int, code ErrorCode) ErrorResponse {
	t.Helper()
	if rec.Code != status {
		t.Fatalf("expected status %d, got %d (body %s)", status, rec.Code, rec.Body.String())
	}
	var resp ErrorResponse
	decodeJSON(t, rec, &resp)
	if resp.Code != code {
		t.Errorf("expected error code %q, got %q", code, resp.Code)
	}
	return resp
}

// multipartImage builds a multipart body with the upload under the given field name.
func multipartImage(t *testing.T, field, filename string, data []byte) ([]byte, string) {
	t.Helper()
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	fw, err := w.CreateFormFile(field, filename)
	if err != nil {
		t.Fatalf("failed to create form file: %v", err)
	}
	if _, err := fw.Write(data); err != nil {
		t.Fatalf("failed to write form file: %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("failed to close multipart writer: %v", err)
	}
	return buf.Bytes(), w.FormDataContentType()
}
