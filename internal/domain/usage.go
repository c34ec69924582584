package domain

import "context"

type aiUsageKey struct{}

// AIUsage collects token usage for a single HTTP request.
// The handler puts a mutable pointer into the context before calling the service;
// the service writes after each provider call; the handler reads it for response headers.
type AIUsage struct {
	EmbeddingTokens  int
	CompletionTokens int
	Used             bool // true if any provider was called, even on a cache hit with 0 tokens
}

// NewContextWithUsage returns a context with an embedded usage collector.
func NewContextWithUsage(ctx context.Context) (context.Context, *AIUsage) {
	u := &AIUsage{}
	return context.WithValue(ctx, aiUsageKey{}, u), u
}

// UsageFromContext extracts the usage collector from context. Returns nil if not set.
func UsageFromContext(ctx context.Context) *AIUsage {
	u, _ := ctx.Value(aiUsageKey{}).(*AIUsage)
	return u
}

// AddEmbeddingTokens records tokens consumed by the embedding provider.
func (u *AIUsage) AddEmbeddingTokens(n int) {
	if u != nil {
		u.EmbeddingTokens += n
		u.Used = true
	}
}

// AddCompletionTokens records tokens consumed by the chat provider.
func (u *AIUsage) AddCompletionTokens(n int) {
	if u != nil {
		u.CompletionTokens += n
		u.Used = true
	}
}

// TotalTokens returns combined usage across providers.
func (u *AIUsage) TotalTokens() int {
	if u == nil {
		return 0
	}
	return u.EmbeddingTokens + u.CompletionTokens
}
