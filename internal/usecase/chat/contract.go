package chat

import (
	"context"

	"github.com/kailas-cloud/phytodex/internal/domain"
)

// Retriever finds the knowledge-base passages nearest to a query vector,
// optionally pre-filtered by tag equality.
type Retriever interface {
	SearchKNN(ctx context.Context, vector []float32, tags map[string]string, topK int) ([]domain.Passage, error)
}

// BudgetChecker enforces the chat provider token budget.
type BudgetChecker interface {
	Check(ctx context.Context) error
	Record(tokens int64)
}
