// Package passage persists knowledge-base passages as hashes with an FT
// vector index over them.
package passage

import (
	"context"
	"errors"
	"fmt"

	"github.com/kailas-cloud/phytodex/internal/db"
	"github.com/kailas-cloud/phytodex/internal/domain"
)

// deletePageSize bounds one SearchKeys page while collecting keys to delete.
const deletePageSize = 200

// store is the consumer interface for passage persistence (ISP).
type store interface {
	HSetMulti(ctx context.Context, items []db.HashSetItem) error
	DelMulti(ctx context.Context, keys []string) error
	SearchKNN(ctx context.Context, q *db.KNNQuery) (*db.SearchResult, error)
	SearchKeys(ctx context.Context, index string, tags map[string]string, offset, limit int) ([]string, int, error)
	SearchCount(ctx context.Context, index, query string) (int, error)
	CreateIndex(ctx context.Context, def *db.IndexDefinition) error
	IndexExists(ctx context.Context, name string) (bool, error)
}

// Repo implements the knowledge-base passage repository.
type Repo struct {
	store store
	cfg   domain.KnowledgeConfig
}

// New creates a passage repository.
func New(s store, cfg domain.KnowledgeConfig) *Repo {
	return &Repo{store: s, cfg: cfg}
}

// EnsureIndex creates the passage vector index if it does not exist.
// Safe to call on every boot.
func (r *Repo) EnsureIndex(ctx context.Context) error {
	exists, err := r.store.IndexExists(ctx, r.cfg.IndexName)
	if err != nil {
		return fmt.Errorf("check index %s: %w", r.cfg.IndexName, err)
	}
	if exists {
		return nil
	}

	def := &db.IndexDefinition{
		Name:     r.cfg.IndexName,
		Prefixes: []string{r.keyPrefix()},
		Fields: []db.IndexField{
			{Name: fieldSource, Type: db.IndexFieldTag},
			{Name: fieldCrop, Type: db.IndexFieldTag},
			{Name: fieldChunk, Type: db.IndexFieldNumeric},
			{
				Name:              fieldVector,
				Type:              db.IndexFieldVector,
				VectorAlgo:        algoToDB(r.cfg.Algorithm),
				VectorDim:         r.cfg.Dimensions,
				VectorDistance:    metricToDB(r.cfg.DistanceMetric),
				VectorM:           r.cfg.HNSWM,
				VectorEFConstruct: r.cfg.HNSWEFConstruct,
			},
		},
	}

	if err := r.store.CreateIndex(ctx, def); err != nil {
		// Concurrent boot may have won the race.
		if errors.Is(err, db.ErrIndexExists) {
			return nil
		}
		return fmt.Errorf("create index %s: %w", r.cfg.IndexName, err)
	}
	return nil
}

// UpsertBatch writes passages and their embeddings in one pipelined call.
func (r *Repo) UpsertBatch(ctx context.Context, passages []domain.Passage, vectors [][]float32) error {
	if len(passages) != len(vectors) {
		return fmt.Errorf("passage/vector count mismatch: %d vs %d", len(passages), len(vectors))
	}
	if len(passages) == 0 {
		return nil
	}

	items := make([]db.HashSetItem, len(passages))
	for i, p := range passages {
		items[i] = db.HashSetItem{
			Key:    r.keyPrefix() + p.ID,
			Fields: passageToHash(p, vectors[i]),
		}
	}

	if err := r.store.HSetMulti(ctx, items); err != nil {
		return fmt.Errorf("upsert %d passages: %w", len(items), err)
	}
	return nil
}

// SearchKNN returns the topK passages nearest to the query vector,
// optionally pre-filtered by tag equality (e.g. crop).
func (r *Repo) SearchKNN(ctx context.Context, vector []float32, tags map[string]string, topK int) ([]domain.Passage, error) {
	q := &db.KNNQuery{
		IndexName:    r.cfg.IndexName,
		Tags:         tags,
		Vector:       vector,
		K:            topK,
		ReturnFields: returnFields,
	}

	sr, err := r.store.SearchKNN(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("search knn %s: %w", r.cfg.IndexName, err)
	}
	if sr == nil || sr.Total == 0 {
		return nil, nil
	}

	passages := make([]domain.Passage, 0, len(sr.Entries))
	for _, entry := range sr.Entries {
		passages = append(passages, passageFromEntry(entry, r.keyPrefix()))
	}
	return passages, nil
}

// Count returns the number of indexed passages.
func (r *Repo) Count(ctx context.Context) (int, error) {
	n, err := r.store.SearchCount(ctx, r.cfg.IndexName, "*")
	if err != nil {
		return 0, fmt.Errorf("count passages: %w", err)
	}
	return n, nil
}

// DeleteBySource removes every passage ingested from the given source and
// returns the number of deleted chunks. Missing source yields ErrDocumentNotFound.
func (r *Repo) DeleteBySource(ctx context.Context, source string) (int, error) {
	tags := map[string]string{fieldSource: source}

	var keys []string
	offset := 0
	for {
		page, total, err := r.store.SearchKeys(ctx, r.cfg.IndexName, tags, offset, deletePageSize)
		if err != nil {
			return 0, fmt.Errorf("list passages for source %q: %w", source, err)
		}
		keys = append(keys, page...)
		offset += len(page)
		if len(page) == 0 || offset >= total {
			break
		}
	}

	if len(keys) == 0 {
		return 0, domain.ErrDocumentNotFound
	}

	if err := r.store.DelMulti(ctx, keys); err != nil {
		return 0, fmt.Errorf("delete %d passages: %w", len(keys), err)
	}
	return len(keys), nil
}

func (r *Repo) keyPrefix() string {
	return r.cfg.IndexName + ":"
}
