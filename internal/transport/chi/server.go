// Package chi implements the phytodex HTTP API on the chi router.
package chi

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/kailas-cloud/phytodex/internal/domain"
	domusage "github.com/kailas-cloud/phytodex/internal/domain/usage"
	logpkg "github.com/kailas-cloud/phytodex/internal/logger"
	healthuc "github.com/kailas-cloud/phytodex/internal/usecase/health"
	ingestuc "github.com/kailas-cloud/phytodex/internal/usecase/ingest"
	"github.com/kailas-cloud/phytodex/internal/version"
)

// ErrorCode is a machine-readable error identifier returned to clients.
type ErrorCode string

// Error codes used in JSON error responses.
const (
	CodeBadRequest             ErrorCode = "bad_request"
	CodeValidationFailed       ErrorCode = "validation_failed"
	CodeInvalidImage           ErrorCode = "invalid_image"
	CodeDocumentNotFound       ErrorCode = "document_not_found"
	CodePayloadTooLarge        ErrorCode = "payload_too_large"
	CodeRateLimited            ErrorCode = "rate_limited"
	CodeTokenQuotaExceeded     ErrorCode = "token_quota_exceeded"
	CodeEmbeddingProviderError ErrorCode = "embedding_provider_error"
	CodeChatProviderError      ErrorCode = "chat_provider_error"
	CodeVisionProviderError    ErrorCode = "vision_provider_error"
	CodeModelUnavailable       ErrorCode = "model_unavailable"
	CodeUnauthorized           ErrorCode = "unauthorized"
	CodeInternalError          ErrorCode = "internal_error"
)

// ErrorResponse is the JSON error body.
type ErrorResponse struct {
	Code    ErrorCode `json:"code"`
	Message string    `json:"message"`
}

// Diagnoser runs the leaf image diagnosis pipeline.
type Diagnoser interface {
	Diagnose(ctx context.Context, imageData []byte) (domain.Prediction, error)
}

// Asker answers plant-pathology questions over the knowledge base.
type Asker interface {
	Ask(ctx context.Context, question string, topK int, crop string) (domain.Answer, error)
}

// Knowledge manages knowledge-base documents.
type Knowledge interface {
	Ingest(ctx context.Context, doc ingestuc.Document) (domain.IngestResult, error)
	Stats(ctx context.Context) (domain.KnowledgeStats, error)
	Delete(ctx context.Context, source string) (int, error)
}

// UsageReporter builds AI token usage reports.
type UsageReporter interface {
	GetReport(ctx context.Context, period domusage.Period) domusage.Report
}

// HealthChecker aggregates component health.
type HealthChecker interface {
	Check(ctx context.Context) healthuc.Report
}

// errorHandler tries to handle a domain error. Returns true if handled.
type errorHandler func(w http.ResponseWriter, err error, msg string) bool

// Server implements the phytodex HTTP API.
type Server struct {
	diagnose       Diagnoser
	chat           Asker
	knowledge      Knowledge
	usage          UsageReporter
	health         HealthChecker
	maxUploadBytes int64
	logger         *zap.Logger
	errorHandlers  []errorHandler
}

// NewServer creates an HTTP API server. maxUploadMB caps multipart upload size.
func NewServer(
	diagnose Diagnoser,
	chat Asker,
	knowledge Knowledge,
	usage UsageReporter,
	health HealthChecker,
	maxUploadMB int,
	logger *zap.Logger,
) *Server {
	s := &Server{
		diagnose:       diagnose,
		chat:           chat,
		knowledge:      knowledge,
		usage:          usage,
		health:         health,
		maxUploadBytes: int64(maxUploadMB) << 20,
		logger:         logger,
	}
	s.errorHandlers = []errorHandler{
		sentinelHandler(domain.ErrValidation, http.StatusBadRequest, CodeValidationFailed),
		sentinelHandler(domain.ErrInvalidImage, http.StatusBadRequest, CodeInvalidImage),
		sentinelHandler(domain.ErrDocumentNotFound, http.StatusNotFound, CodeDocumentNotFound),
		sentinelHandler(domain.ErrRateLimited, http.StatusTooManyRequests, CodeRateLimited),
		sentinelHandler(domain.ErrTokenQuotaExceeded, http.StatusPaymentRequired, CodeTokenQuotaExceeded),
		sentinelHandler(domain.ErrModelNotReady, http.StatusServiceUnavailable, CodeModelUnavailable),
		sentinelHandler(domain.ErrEmbeddingProviderError, http.StatusBadGateway, CodeEmbeddingProviderError),
		sentinelHandler(domain.ErrChatProviderError, http.StatusBadGateway, CodeChatProviderError),
		sentinelHandler(domain.ErrVisionProviderError, http.StatusBadGateway, CodeVisionProviderError),
	}
	return s
}

// Routes mounts all API routes on the given router. aiMiddleware wraps
// the model inference endpoints only (rate limiting goes here, so that
// knowledge management and reporting stay unthrottled).
func (s *Server) Routes(r chi.Router, aiMiddleware ...func(http.Handler) http.Handler) {
	r.Get("/health", s.HealthCheck)
	r.Get("/metrics", s.Metrics)

	r.Route("/api/v1", func(r chi.Router) {
		r.Group(func(r chi.Router) {
			for _, mw := range aiMiddleware {
				r.Use(mw)
			}
			r.Post("/predict", s.Predict)
			r.Post("/chat", s.Chat)
		})

		r.Post("/knowledge/documents", s.IngestDocument)
		r.Get("/knowledge/stats", s.KnowledgeStats)
		r.Delete("/knowledge/documents/{source}", s.DeleteDocument)
		r.Get("/usage", s.GetUsage)
	})
}

// --- Wire types ---

type predictionResponse struct {
	Disease          string             `json:"disease"`
	Confidence       float64            `json:"confidence"`
	AllProbabilities map[string]float64 `json:"all_probabilities"`
	Recommendation   string             `json:"recommendation"`
}

type chatRequest struct {
	Question string `json:"question"`
	TopK     int    `json:"top_k"`
	Crop     string `json:"crop"`
}

type chatSource struct {
	ID     string  `json:"id"`
	Title  string  `json:"title,omitempty"`
	Source string  `json:"source"`
	Crop   string  `json:"crop,omitempty"`
	Chunk  int     `json:"chunk"`
	Score  float64 `json:"score"`
}

type chatResponse struct {
	Question string       `json:"question"`
	Answer   string       `json:"answer"`
	Sources  []chatSource `json:"sources"`
}

type ingestRequest struct {
	Title   string `json:"title"`
	Source  string `json:"source"`
	Crop    string `json:"crop"`
	Content string `json:"content"`
}

type ingestResponse struct {
	DocumentID string   `json:"document_id"`
	PassageIDs []string `json:"passage_ids"`
	Chunks     int      `json:"chunks"`
	Tokens     int      `json:"tokens"`
}

type statsResponse struct {
	Passages int64  `json:"passages"`
	Index    string `json:"index"`
	Model    string `json:"model"`
}

type deleteResponse struct {
	Source  string `json:"source"`
	Deleted int    `json:"deleted"`
}

type budgetStatus struct {
	TokensLimit     int        `json:"tokens_limit"`
	TokensRemaining int        `json:"tokens_remaining"`
	IsExhausted     bool       `json:"is_exhausted"`
	ResetsAt        *time.Time `json:"resets_at,omitempty"`
}

type providerUsage struct {
	Provider string       `json:"provider"`
	Tokens   int          `json:"tokens"`
	Budget   budgetStatus `json:"budget"`
}

type usageResponse struct {
	Period        string          `json:"period"`
	PeriodStartAt *time.Time      `json:"period_start_at,omitempty"`
	PeriodEndAt   *time.Time      `json:"period_end_at,omitempty"`
	Providers     []providerUsage `json:"providers"`
}

type healthResponse struct {
	Status  string            `json:"status"`
	Version string            `json:"version"`
	Checks  map[string]string `json:"checks"`
}

// --- Handlers ---

// Predict handles POST /api/v1/predict: multipart leaf photo in, diagnosis out.
func (s *Server) Predict(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, s.maxUploadBytes)
	if err := r.ParseMultipartForm(s.maxUploadBytes); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			writeError(w, http.StatusRequestEntityTooLarge, CodePayloadTooLarge,
				"upload exceeds "+strconv.FormatInt(maxErr.Limit, 10)+" bytes")
			return
		}
		writeError(w, http.StatusBadRequest, CodeBadRequest, "Invalid multipart form: "+err.Error())
		return
	}

	file, _, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, CodeValidationFailed, "No image provided")
		return
	}
	defer func() { _ = file.Close() }()

	data, err := io.ReadAll(file)
	if err != nil {
		writeError(w, http.StatusBadRequest, CodeBadRequest, "Failed to read upload: "+err.Error())
		return
	}

	ctx, usage := domain.NewContextWithUsage(r.Context())
	pred, err := s.diagnose.Diagnose(ctx, data)
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}

	setAITokensHeader(w, usage)
	writeJSON(w, http.StatusOK, predictionResponse{
		Disease:          pred.Disease,
		Confidence:       pred.Confidence,
		AllProbabilities: pred.Probabilities,
		Recommendation:   pred.Recommendation,
	})
}

// Chat handles POST /api/v1/chat: retrieval-augmented question answering.
func (s *Server) Chat(w http.ResponseWriter, r *http.Request) {
	var req chatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, CodeBadRequest, "Invalid request body: "+err.Error())
		return
	}

	ctx, usage := domain.NewContextWithUsage(r.Context())
	ans, err := s.chat.Ask(ctx, req.Question, req.TopK, req.Crop)
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}

	sources := make([]chatSource, len(ans.Passages))
	for i, p := range ans.Passages {
		sources[i] = chatSource{
			ID:     p.ID,
			Title:  p.Title,
			Source: p.Source,
			Crop:   p.Crop,
			Chunk:  p.Chunk,
			Score:  p.Score,
		}
	}

	setAITokensHeader(w, usage)
	writeJSON(w, http.StatusOK, chatResponse{
		Question: ans.Question,
		Answer:   ans.Answer,
		Sources:  sources,
	})
}

// IngestDocument handles POST /api/v1/knowledge/documents.
func (s *Server) IngestDocument(w http.ResponseWriter, r *http.Request) {
	var req ingestRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, CodeBadRequest, "Invalid request body: "+err.Error())
		return
	}

	ctx, usage := domain.NewContextWithUsage(r.Context())
	res, err := s.knowledge.Ingest(ctx, ingestuc.Document{
		Title:   req.Title,
		Source:  req.Source,
		Crop:    req.Crop,
		Content: req.Content,
	})
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}

	setAITokensHeader(w, usage)
	writeJSON(w, http.StatusCreated, ingestResponse{
		DocumentID: res.DocumentID,
		PassageIDs: res.PassageIDs,
		Chunks:     res.Chunks,
		Tokens:     res.Tokens,
	})
}

// KnowledgeStats handles GET /api/v1/knowledge/stats.
func (s *Server) KnowledgeStats(w http.ResponseWriter, r *http.Request) {
	stats, err := s.knowledge.Stats(r.Context())
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, statsResponse{
		Passages: stats.Passages,
		Index:    stats.IndexName,
		Model:    stats.Model,
	})
}

// DeleteDocument handles DELETE /api/v1/knowledge/documents/{source}.
func (s *Server) DeleteDocument(w http.ResponseWriter, r *http.Request) {
	source := chi.URLParam(r, "source")

	deleted, err := s.knowledge.Delete(r.Context(), source)
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, deleteResponse{
		Source:  source,
		Deleted: deleted,
	})
}

// GetUsage handles GET /api/v1/usage.
func (s *Server) GetUsage(w http.ResponseWriter, r *http.Request) {
	period := domusage.PeriodMonth
	switch r.URL.Query().Get("period") {
	case "", "month":
	case "day":
		period = domusage.PeriodDay
	case "total":
		period = domusage.PeriodTotal
	default:
		writeError(w, http.StatusBadRequest, CodeValidationFailed, "period must be day, month or total")
		return
	}

	report := s.usage.GetReport(r.Context(), period)

	providers := make([]providerUsage, 0, len(report.Providers()))
	for _, pu := range report.Providers() {
		b := budgetStatus{
			TokensLimit:     pu.Budget().TokensLimit(),
			TokensRemaining: pu.Budget().TokensRemaining(),
			IsExhausted:     pu.Budget().IsExhausted(),
		}
		if pu.Budget().ResetsAt() > 0 {
			resetsAt := time.UnixMilli(pu.Budget().ResetsAt()).UTC()
			b.ResetsAt = &resetsAt
		}
		providers = append(providers, providerUsage{
			Provider: string(pu.Provider()),
			Tokens:   pu.Tokens(),
			Budget:   b,
		})
	}

	resp := usageResponse{
		Period:    string(report.Period()),
		Providers: providers,
	}
	if report.PeriodStart() > 0 {
		start := time.UnixMilli(report.PeriodStart()).UTC()
		end := time.UnixMilli(report.PeriodEnd()).UTC()
		resp.PeriodStartAt = &start
		resp.PeriodEndAt = &end
	}

	writeJSON(w, http.StatusOK, resp)
}

// HealthCheck handles GET /health.
func (s *Server) HealthCheck(w http.ResponseWriter, r *http.Request) {
	report := s.health.Check(r.Context())

	checks := make(map[string]string, len(report.Checks))
	for k, v := range report.Checks {
		checks[k] = string(v)
	}

	httpStatus := http.StatusOK
	if report.Status != healthuc.Healthy {
		httpStatus = http.StatusServiceUnavailable
	}

	writeJSON(w, httpStatus, healthResponse{
		Status:  string(report.Status),
		Version: version.Version,
		Checks:  checks,
	})
}

// Metrics handles GET /metrics.
func (s *Server) Metrics(w http.ResponseWriter, r *http.Request) {
	promhttp.Handler().ServeHTTP(w, r)
}

// --- Helpers ---

func setAITokensHeader(w http.ResponseWriter, usage *domain.AIUsage) {
	if usage != nil && usage.Used {
		w.Header().Set("X-AI-Tokens", strconv.Itoa(usage.TotalTokens()))
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code ErrorCode, message string) {
	writeJSON(w, status, ErrorResponse{
		Code:    code,
		Message: message,
	})
}

// safeDomainMessage returns a sentinel error message for the client without exposing internals.
func safeDomainMessage(err error) string {
	sentinels := []error{
		domain.ErrValidation,
		domain.ErrInvalidImage,
		domain.ErrDocumentNotFound,
		domain.ErrRateLimited,
		domain.ErrTokenQuotaExceeded,
		domain.ErrModelNotReady,
		domain.ErrEmbeddingProviderError,
		domain.ErrChatProviderError,
		domain.ErrVisionProviderError,
	}
	for _, s := range sentinels {
		if errors.Is(err, s) {
			return s.Error()
		}
	}
	return "internal error"
}

// sentinelHandler returns an errorHandler that matches a single sentinel error.
func sentinelHandler(sentinel error, status int, code ErrorCode) errorHandler {
	return func(w http.ResponseWriter, err error, msg string) bool {
		if !errors.Is(err, sentinel) {
			return false
		}
		writeError(w, status, code, msg)
		return true
	}
}

func (s *Server) handleDomainError(w http.ResponseWriter, r *http.Request, err error) {
	// Request-scoped logger carries the request_id, so error lines correlate
	// with the canonical http_request line.
	log := logpkg.FromContext(r.Context(), s.logger)

	log.Warn("domain error", zap.Error(err))
	msg := safeDomainMessage(err)
	for _, h := range s.errorHandlers {
		if h(w, err, msg) {
			return
		}
	}
	log.Error("internal error", zap.Error(err))
	writeError(w, http.StatusInternalServerError, CodeInternalError, "internal error")
}
