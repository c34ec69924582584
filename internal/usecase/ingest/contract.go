package ingest

import (
	"context"

	"github.com/kailas-cloud/phytodex/internal/domain"
)

// Embedder vectorizes chunk batches through the document-side chain.
type Embedder interface {
	BatchEmbed(ctx context.Context, texts []string) (domain.BatchEmbeddingResult, error)
}

// Repository persists passages and their vector index.
type Repository interface {
	EnsureIndex(ctx context.Context) error
	UpsertBatch(ctx context.Context, passages []domain.Passage, vectors [][]float32) error
	Count(ctx context.Context) (int, error)
	DeleteBySource(ctx context.Context, source string) (int, error)
}
