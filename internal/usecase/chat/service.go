// Package chat answers plant-pathology questions with a fixed
// retrieve-then-generate pipeline over the knowledge base.
package chat

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/phytodex/internal/domain"
)

// cropTag is the passage tag used for crop pre-filtering.
const cropTag = "crop"

// Service runs the retrieval-augmented QA pipeline: embed the question,
// fetch the nearest passages, build the pathologist prompt, complete it.
type Service struct {
	embed    domain.Embedder
	passages Retriever
	llm      domain.Completer
	budget   BudgetChecker
	cfg      domain.KnowledgeConfig
	logger   *zap.Logger
}

// New creates a chat service. The embedder is expected to be the full
// query-side chain (cache, budget, instruction prefix); budget here
// guards the chat provider only and may be nil.
func New(
	embed domain.Embedder, passages Retriever, llm domain.Completer,
	budget BudgetChecker, cfg domain.KnowledgeConfig, logger *zap.Logger,
) *Service {
	return &Service{
		embed:    embed,
		passages: passages,
		llm:      llm,
		budget:   budget,
		cfg:      cfg,
		logger:   logger,
	}
}

// Ask answers a question against the knowledge base. topK <= 0 falls back
// to the configured default; values above the configured maximum are
// clamped. Empty crop means no pre-filter.
func (s *Service) Ask(ctx context.Context, question string, topK int, crop string) (domain.Answer, error) {
	question = strings.TrimSpace(question)
	if question == "" {
		return domain.Answer{}, fmt.Errorf("question is required: %w", domain.ErrValidation)
	}

	topK = s.clampTopK(topK)
	start := time.Now()

	embResult, err := s.embed.Embed(ctx, question)
	if err != nil {
		return domain.Answer{}, fmt.Errorf("vectorize question: %w", err)
	}

	var tags map[string]string
	if crop != "" {
		tags = map[string]string{cropTag: crop}
	}

	retrieved, err := s.passages.SearchKNN(ctx, embResult.Embedding, tags, topK)
	if err != nil {
		return domain.Answer{}, fmt.Errorf("retrieve passages: %w", err)
	}

	if s.budget != nil {
		if err := s.budget.Check(ctx); err != nil {
			s.logger.Error("Chat budget exceeded",
				zap.Int("passages", len(retrieved)),
				zap.Error(err),
			)
			return domain.Answer{}, fmt.Errorf("budget check: %w", err)
		}
	}

	result, err := s.llm.Complete(ctx, domain.AnswerPrompt(question, retrieved))
	if err != nil {
		return domain.Answer{}, fmt.Errorf("generate answer: %w", err)
	}

	s.recordUsage(ctx, result.TotalTokens)

	s.logger.Info("Chat turn completed",
		zap.Int("top_k", topK),
		zap.String("crop", crop),
		zap.Int("passages", len(retrieved)),
		zap.Int("completion_tokens", result.CompletionTokens),
		zap.Int("total_tokens", result.TotalTokens),
		zap.Duration("duration", time.Since(start)),
	)

	return domain.Answer{
		Question: question,
		Answer:   result.Text,
		Passages: retrieved,
	}, nil
}

// clampTopK bounds the requested passage count to [1, MaxTopK],
// defaulting to the configured TopK.
func (s *Service) clampTopK(topK int) int {
	if topK <= 0 {
		topK = s.cfg.TopK
	}
	if topK < 1 {
		topK = 1
	}
	if s.cfg.MaxTopK > 0 && topK > s.cfg.MaxTopK {
		topK = s.cfg.MaxTopK
	}
	return topK
}

// recordUsage feeds the chat budget tracker and the request-scoped counters.
func (s *Service) recordUsage(ctx context.Context, totalTokens int) {
	if totalTokens <= 0 {
		return
	}
	if s.budget != nil {
		s.budget.Record(int64(totalTokens))
	}
	domain.UsageFromContext(ctx).AddCompletionTokens(totalTokens)
}
