package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"

	"github.com/kailas-cloud/phytodex/internal/config"
	"github.com/kailas-cloud/phytodex/internal/db"
	dbRedis "github.com/kailas-cloud/phytodex/internal/db/redis"
	dbValkey "github.com/kailas-cloud/phytodex/internal/db/valkey"
	"github.com/kailas-cloud/phytodex/internal/domain"
	domusage "github.com/kailas-cloud/phytodex/internal/domain/usage"
	imageproc "github.com/kailas-cloud/phytodex/internal/image"
	logpkg "github.com/kailas-cloud/phytodex/internal/logger"
	"github.com/kailas-cloud/phytodex/internal/metrics"
	budgetrepo "github.com/kailas-cloud/phytodex/internal/repository/budget"
	"github.com/kailas-cloud/phytodex/internal/repository/embcache"
	passagerepo "github.com/kailas-cloud/phytodex/internal/repository/passage"
	chiTransport "github.com/kailas-cloud/phytodex/internal/transport/chi"
	openaiTransport "github.com/kailas-cloud/phytodex/internal/transport/openai"
	"github.com/kailas-cloud/phytodex/internal/transport/vision"
	budgetuc "github.com/kailas-cloud/phytodex/internal/usecase/budget"
	chatuc "github.com/kailas-cloud/phytodex/internal/usecase/chat"
	diagnoseuc "github.com/kailas-cloud/phytodex/internal/usecase/diagnose"
	embeddinguc "github.com/kailas-cloud/phytodex/internal/usecase/embedding"
	healthuc "github.com/kailas-cloud/phytodex/internal/usecase/health"
	ingestuc "github.com/kailas-cloud/phytodex/internal/usecase/ingest"
	usageuc "github.com/kailas-cloud/phytodex/internal/usecase/usage"
	"github.com/kailas-cloud/phytodex/internal/version"
)

func main() {
	// Load configuration based on ENV
	env := config.GetEnv()

	cfg, err := config.Load(env)
	if err != nil {
		panic("failed to load config: " + err.Error())
	}

	logger, err := logpkg.New(env, cfg.Logging.Level)
	if err != nil {
		panic("failed to create logger: " + err.Error())
	}
	defer func() { _ = logger.Sync() }()

	logger.Info("Starting phytodex API server",
		zap.String("version", version.Version),
		zap.String("commit", version.Commit),
		zap.String("env", env),
		zap.Int("http_port", cfg.HTTP.Port),
		zap.String("db_driver", cfg.Database.Driver),
		zap.Strings("db_addrs", cfg.Database.Addrs),
		zap.String("vision_url", cfg.Vision.BaseURL),
	)

	// Create database store based on driver
	var store db.Store
	switch cfg.Database.Driver {
	case "valkey":
		store, err = dbValkey.NewStore(dbValkey.Config{
			Addrs:    cfg.Database.Addrs,
			Password: cfg.Database.Password,
		})
	case "redis":
		store, err = dbRedis.NewStore(dbRedis.Config{
			Addrs:    cfg.Database.Addrs,
			Password: cfg.Database.Password,
		})
	default:
		logger.Fatal("Unknown database driver", zap.String("driver", cfg.Database.Driver))
	}
	if err != nil {
		logger.Fatal("Failed to create database store", zap.Error(err))
	}
	defer store.Close()

	// Wait for database to be ready
	ctx := context.Background()
	if err := store.WaitForReady(ctx, time.Duration(cfg.Database.ReadinessTimeout)*time.Second); err != nil {
		logger.Fatal("Database not ready", zap.Error(err))
	}
	logger.Info("Connected to database")

	// Register AI metrics explicitly (no init())
	metrics.RegisterAIMetrics()

	// Knowledge-base settings shared by the embedder chains, the passage
	// repository and the chat/ingest services.
	knowCfg := knowledgeConfig(cfg)

	// Budget trackers are always created, one per provider, so /usage can
	// report even with unlimited budgets. Counters persist across restarts.
	budgetStore := budgetrepo.New(store, budgetrepo.DefaultDailyTTL, budgetrepo.DefaultMonthTTL)
	embedBudget := newBudgetTracker(ctx, domusage.ProviderEmbedding, cfg.Embedding.Budget, budgetStore, logger)
	chatBudget := newBudgetTracker(ctx, domusage.ProviderChat, cfg.Chat.Budget, budgetStore, logger)

	// Embedder chains. One provider client; the query and document sides
	// differ only in their instruction prefix (and therefore their cache
	// entries).
	baseEmbedder := openaiTransport.NewEmbedder(&openaiTransport.EmbedderConfig{
		APIKey:     cfg.Embedding.APIKey,
		BaseURL:    cfg.Embedding.BaseURL,
		Model:      cfg.Embedding.Model,
		Dimensions: cfg.Embedding.Dimensions,
		Provider:   string(domusage.ProviderEmbedding),
		Logger:     logger,
	})
	queryEmbedder := buildEmbedder(baseEmbedder, knowCfg.QueryInstruction, store, embedBudget, knowCfg.Model, logger)
	docEmbedder := buildEmbedder(baseEmbedder, knowCfg.DocumentInstruction, store, embedBudget, knowCfg.Model, logger)
	logger.Info("Embedders created",
		zap.String("model", knowCfg.Model),
		zap.Int("dimensions", knowCfg.Dimensions),
	)

	chatClient := openaiTransport.NewChatClient(&openaiTransport.ChatConfig{
		APIKey:      cfg.Chat.APIKey,
		BaseURL:     cfg.Chat.BaseURL,
		Model:       cfg.Chat.Model,
		Temperature: cfg.Chat.Temperature,
		MaxTokens:   cfg.Chat.MaxTokens,
		Provider:    string(domusage.ProviderChat),
		Logger:      logger,
	})

	visionClient := vision.NewClient(vision.Config{
		BaseURL: cfg.Vision.BaseURL,
		Timeout: time.Duration(cfg.Vision.TimeoutSec) * time.Second,
		Logger:  logger,
	})

	// Passage repository owns the vector index; create it at boot so the
	// first chat works even before any document is ingested.
	passageRepo := passagerepo.New(store, knowCfg)
	if err := passageRepo.EnsureIndex(ctx); err != nil {
		logger.Fatal("Failed to ensure passage index", zap.Error(err))
	}
	logger.Info("Passage index ready", zap.String("index", knowCfg.IndexName))

	// Use case services
	diagnoseSvc := diagnoseuc.New(
		imageproc.NewProcessor(imageproc.Config{
			MaxWidth:    cfg.Classifier.Image.MaxWidth,
			MaxHeight:   cfg.Classifier.Image.MaxHeight,
			JPEGQuality: cfg.Classifier.Image.JPEGQuality,
		}),
		visionClient,
		labelPrompts(cfg.Classifier.Labels),
		domain.GenerateParams{
			MaxTokens: cfg.Vision.Generate.MaxTokens,
			NumBeams:  cfg.Vision.Generate.NumBeams,
		},
		logger,
	)
	chatSvc := chatuc.New(queryEmbedder, passageRepo, chatClient, chatBudget, knowCfg, logger)
	ingestSvc := ingestuc.New(ingestuc.NewChunker(knowCfg), docEmbedder, passageRepo, knowCfg, logger)
	usageSvc := usageuc.New(embedBudget, chatBudget)
	healthSvc := healthuc.New(store, visionClient, baseEmbedder, chatClient)

	// Create chi server
	server := chiTransport.NewServer(
		diagnoseSvc, chatSvc, ingestSvc, usageSvc, healthSvc,
		cfg.HTTP.MaxUploadMB, logger,
	)

	r := chi.NewRouter()
	r.Use(jsonRecoverer(logger))
	r.Use(chiMiddleware.RequestID)
	r.Use(wideEventMiddleware(logger))
	if len(cfg.CORS.AllowedOrigins) > 0 {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins: cfg.CORS.AllowedOrigins,
			AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodDelete, http.MethodOptions},
			AllowedHeaders: []string{"Authorization", "Content-Type"},
			ExposedHeaders: []string{"X-Request-ID", "X-AI-Tokens"},
			MaxAge:         300,
		}))
	}
	r.Use(chiTransport.BearerAuthMiddleware(cfg.Auth.APIKeys))
	r.Use(metrics.Middleware())
	server.Routes(r, chiTransport.RateLimitMiddleware(cfg.RateLimit.RPS, cfg.RateLimit.Burst))

	addr := fmt.Sprintf(":%d", cfg.HTTP.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      r,
		ReadTimeout:  time.Duration(cfg.HTTP.ReadTimeoutSec) * time.Second,
		WriteTimeout: time.Duration(cfg.HTTP.WriteTimeoutSec) * time.Second,
	}

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)

	go func() {
		logger.Info("Starting HTTP server", zap.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("HTTP server error", zap.Error(err))
		}
	}()

	<-quit
	logger.Info("Received shutdown signal")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Duration(cfg.HTTP.ShutdownSec)*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Error during shutdown", zap.Error(err))
	}

	logger.Info("Server stopped gracefully")
}

// knowledgeConfig maps the YAML knowledge/embedding sections onto the
// domain settings. Distance metric and algorithm are fixed (cosine HNSW).
func knowledgeConfig(cfg config.Config) domain.KnowledgeConfig {
	kc := domain.DefaultKnowledgeConfig()
	kc.IndexName = domain.KeyPrefix + cfg.Knowledge.Collection
	kc.Model = cfg.Embedding.Model
	kc.Dimensions = cfg.Knowledge.Dimensions
	kc.HNSWM = cfg.Knowledge.HNSWM
	kc.HNSWEFConstruct = cfg.Knowledge.HNSWEFConstruct
	kc.QueryInstruction = cfg.Embedding.QueryInstruction
	kc.DocumentInstruction = cfg.Embedding.DocumentInstruction
	kc.ChunkSize = cfg.Knowledge.ChunkSize
	kc.ChunkOverlap = cfg.Knowledge.ChunkOverlap
	kc.MinChunkSize = cfg.Knowledge.MinChunkChars
	kc.MaxBatchSize = cfg.Knowledge.MaxBatchSize
	kc.TopK = cfg.Knowledge.TopK
	kc.MaxTopK = cfg.Knowledge.MaxTopK
	return kc
}

// labelPrompts converts configured classifier labels. Empty config falls
// back to the built-in potato classes inside the diagnose service.
func labelPrompts(labels []config.LabelConfig) []domain.LabelPrompt {
	out := make([]domain.LabelPrompt, len(labels))
	for i, l := range labels {
		out[i] = domain.LabelPrompt{Label: l.Name, Prompt: l.Prompt}
	}
	return out
}

// newBudgetTracker creates a provider budget tracker backed by the store,
// so counters survive restarts.
func newBudgetTracker(
	ctx context.Context,
	provider domusage.Provider,
	cfg config.BudgetConfig,
	store budgetuc.Store,
	logger *zap.Logger,
) *budgetuc.Tracker {
	action := budgetuc.ActionWarn
	if cfg.Action == "reject" {
		action = budgetuc.ActionReject
	}
	t := budgetuc.NewTracker(provider, cfg.DailyTokenLimit, cfg.MonthlyTokenLimit, action, logger)
	return t.WithStore(ctx, store)
}

// embedderChain is one full embedding pipeline: single queries for chat,
// batches for ingestion.
type embedderChain interface {
	domain.Embedder
	domain.BatchEmbedder
}

// buildEmbedder assembles the decorator chain: provider -> Cached -> Instrumented -> Instruction
func buildEmbedder(
	base embedderChain,
	instruction string,
	store db.Store,
	budget embeddinguc.BudgetChecker,
	model string,
	logger *zap.Logger,
) embedderChain {
	// Cached
	var embedder embedderChain = base
	if store != nil {
		embedder = embcache.New(base, store, metrics.EmbeddingCacheTotal, logger)
	}

	// Instrumented (budget + usage accounting)
	embedder = embeddinguc.NewInstrumentedEmbedder(
		embedder, string(domusage.ProviderEmbedding), model, budget, logger,
	)

	// Instruction prefix goes outermost so the cache key includes it
	if instruction != "" {
		return domain.NewInstructionEmbedder(embedder, instruction)
	}

	return embedder
}

// jsonRecoverer is a recovery middleware that returns JSON instead of a plain text stacktrace.
func jsonRecoverer(logger *zap.Logger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if rvr := recover(); rvr != nil {
					logger.Error("panic recovered",
						zap.Any("panic", rvr),
						zap.Stack("stacktrace"),
					)
					w.Header().Set("Content-Type", "application/json")
					w.WriteHeader(http.StatusInternalServerError)
					_ = json.NewEncoder(w).Encode(map[string]string{
						"code":    "internal_error",
						"message": "internal error",
					})
				}
			}()
			next.ServeHTTP(w, r)
		})
	}
}

// wideEventMiddleware emits a canonical log line per request and propagates X-Request-ID.
func wideEventMiddleware(logger *zap.Logger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			// chi.middleware.RequestID already placed request_id in context
			requestID := chiMiddleware.GetReqID(r.Context())

			// Set X-Request-ID in response header
			if requestID != "" {
				w.Header().Set("X-Request-ID", requestID)
			}

			// Per-request logger with request_id
			reqLogger := logger.With(zap.String("request_id", requestID))
			ctx := logpkg.ContextWithLogger(r.Context(), reqLogger)

			ww := chiMiddleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r.WithContext(ctx))

			// Canonical log line, one per request
			reqLogger.Info("http_request",
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", ww.Status()),
				zap.Duration("latency", time.Since(start)),
				zap.String("ip", r.RemoteAddr),
				zap.Int64("content_length", r.ContentLength),
				zap.String("user_agent", r.UserAgent()),
				zap.Int("response_bytes", ww.BytesWritten()),
			)
		})
	}
}
