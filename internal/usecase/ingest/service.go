// Package ingest turns research documents into embedded knowledge-base
// passages: chunk, batch-embed, store.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/kailas-cloud/phytodex/internal/domain"
)

// Document is one ingestion request: a source document to chunk and index.
type Document struct {
	Title   string
	Source  string
	Crop    string
	Content string
}

// Service handles knowledge-base writes: ingestion, stats, deletion.
type Service struct {
	chunker *Chunker
	embed   Embedder
	repo    Repository
	cfg     domain.KnowledgeConfig
	logger  *zap.Logger
}

// New creates an ingest service. The embedder is expected to be the
// document-side chain (budget, instruction prefix).
func New(
	chunker *Chunker, embed Embedder, repo Repository,
	cfg domain.KnowledgeConfig, logger *zap.Logger,
) *Service {
	return &Service{
		chunker: chunker,
		embed:   embed,
		repo:    repo,
		cfg:     cfg,
		logger:  logger,
	}
}

// Ingest chunks a document, embeds every chunk in one batched call, and
// upserts the passages. All-or-nothing: an embedding or storage failure
// leaves no partial document behind.
func (s *Service) Ingest(ctx context.Context, doc Document) (domain.IngestResult, error) {
	if strings.TrimSpace(doc.Source) == "" {
		return domain.IngestResult{}, fmt.Errorf("source is required: %w", domain.ErrValidation)
	}
	content := strings.TrimSpace(doc.Content)
	if content == "" {
		return domain.IngestResult{}, fmt.Errorf("content is required: %w", domain.ErrValidation)
	}

	chunks := s.chunker.Split(content)
	if len(chunks) == 0 {
		// Shorter than the minimum chunk size: index the document whole.
		chunks = []string{content}
	}
	if s.cfg.MaxBatchSize > 0 && len(chunks) > s.cfg.MaxBatchSize {
		return domain.IngestResult{}, fmt.Errorf(
			"document yields %d chunks, max %d per request: %w",
			len(chunks), s.cfg.MaxBatchSize, domain.ErrValidation,
		)
	}

	embResult, err := s.embed.BatchEmbed(ctx, chunks)
	if err != nil {
		return domain.IngestResult{}, fmt.Errorf("vectorize %d chunks: %w", len(chunks), err)
	}
	if len(embResult.Embeddings) != len(chunks) {
		return domain.IngestResult{}, fmt.Errorf(
			"embedding count mismatch: got %d, want %d: %w",
			len(embResult.Embeddings), len(chunks), domain.ErrEmbeddingProviderError,
		)
	}

	docID := uuid.NewString()
	passages := make([]domain.Passage, len(chunks))
	ids := make([]string, len(chunks))
	for i, chunk := range chunks {
		ids[i] = uuid.NewString()
		passages[i] = domain.Passage{
			ID:      ids[i],
			Title:   doc.Title,
			Source:  doc.Source,
			Crop:    doc.Crop,
			Chunk:   i,
			Content: chunk,
		}
	}

	// The index may have been dropped out of band; recreate before writing.
	if err := s.repo.EnsureIndex(ctx); err != nil {
		return domain.IngestResult{}, fmt.Errorf("ensure index: %w", err)
	}

	// Re-ingesting a source replaces its previous passages.
	replaced, err := s.repo.DeleteBySource(ctx, doc.Source)
	if err != nil && !errors.Is(err, domain.ErrDocumentNotFound) {
		return domain.IngestResult{}, fmt.Errorf("replace source %q: %w", doc.Source, err)
	}
	if replaced > 0 {
		s.logger.Debug("Replacing previously ingested source",
			zap.String("source", doc.Source),
			zap.Int("old_chunks", replaced),
		)
	}

	if err := s.repo.UpsertBatch(ctx, passages, embResult.Embeddings); err != nil {
		return domain.IngestResult{}, fmt.Errorf("store passages: %w", err)
	}

	s.logger.Info("Document ingested",
		zap.String("document_id", docID),
		zap.String("source", doc.Source),
		zap.String("crop", doc.Crop),
		zap.Int("chunks", len(chunks)),
		zap.Int("tokens", embResult.TotalTokens),
	)

	return domain.IngestResult{
		DocumentID: docID,
		PassageIDs: ids,
		Chunks:     len(chunks),
		Tokens:     embResult.TotalTokens,
	}, nil
}

// Stats reports the knowledge-base state.
func (s *Service) Stats(ctx context.Context) (domain.KnowledgeStats, error) {
	n, err := s.repo.Count(ctx)
	if err != nil {
		return domain.KnowledgeStats{}, fmt.Errorf("count passages: %w", err)
	}
	return domain.KnowledgeStats{
		Passages:  int64(n),
		IndexName: s.cfg.IndexName,
		Model:     s.cfg.Model,
	}, nil
}

// Delete removes every passage ingested from a source and returns the
// number of deleted chunks.
func (s *Service) Delete(ctx context.Context, source string) (int, error) {
	source = strings.TrimSpace(source)
	if source == "" {
		return 0, fmt.Errorf("source is required: %w", domain.ErrValidation)
	}

	deleted, err := s.repo.DeleteBySource(ctx, source)
	if err != nil {
		return 0, fmt.Errorf("delete source %q: %w", source, err)
	}

	s.logger.Info("Document deleted",
		zap.String("source", source),
		zap.Int("chunks", deleted),
	)
	return deleted, nil
}
