package domain

import "context"

// CompletionResult carries one generated answer and its token usage.
type CompletionResult struct {
	Text             string
	PromptTokens     int
	CompletionTokens int
	TotalTokens      int
}

// Completer produces chat completions from a single prompt.
type Completer interface {
	Complete(ctx context.Context, prompt string) (CompletionResult, error)
}
