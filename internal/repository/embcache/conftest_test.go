package embcache

import (
	"context"
	"testing"

	"go.uber.org/zap"

	"github.com/kailas-cloud/phytodex/internal/db"
	"github.com/kailas-cloud/phytodex/internal/domain"
)

// mockEmbedder plays the provider side of the chain. Batch vectors are
// copies of the single-embed result unless batchResult is set, and token
// counts scale with the number of texts.
type mockEmbedder struct {
	result      domain.EmbeddingResult
	err         error
	calls       int
	batchResult domain.BatchEmbeddingResult
	batchErr    error
	batchCalls  int
	batchTexts  []string
}

func (m *mockEmbedder) Embed(_ context.Context, _ string) (domain.EmbeddingResult, error) {
	m.calls++
	return m.result, m.err
}

func (m *mockEmbedder) BatchEmbed(_ context.Context, texts []string) (domain.BatchEmbeddingResult, error) {
	m.batchCalls++
	m.batchTexts = texts
	if m.batchErr != nil {
		return domain.BatchEmbeddingResult{}, m.batchErr
	}
	if m.batchResult.Embeddings != nil {
		return m.batchResult, nil
	}
	embeddings := make([][]float32, len(texts))
	for i := range texts {
		embeddings[i] = m.result.Embedding
	}
	return domain.BatchEmbeddingResult{
		Embeddings:   embeddings,
		PromptTokens: m.result.PromptTokens * len(texts),
		TotalTokens:  m.result.TotalTokens * len(texts),
	}, nil
}

// fakeKVStore backs the cache with a plain map, so tests seed hits by key
// and read puts back out. getFn/setFn, when set, replace the map behavior
// for error injection.
type fakeKVStore struct {
	entries map[string][]byte
	getFn   func(ctx context.Context, key string) ([]byte, error)
	setFn   func(ctx context.Context, key string, value []byte) error
	sets    int
}

func (f *fakeKVStore) Get(ctx context.Context, key string) ([]byte, error) {
	if f.getFn != nil {
		return f.getFn(ctx, key)
	}
	if v, ok := f.entries[key]; ok {
		return v, nil
	}
	return nil, db.ErrKeyNotFound
}

func (f *fakeKVStore) Set(ctx context.Context, key string, value []byte) error {
	f.sets++
	if f.setFn != nil {
		return f.setFn(ctx, key, value)
	}
	f.entries[key] = value
	return nil
}

func newTestCachedEmbedder(t *testing.T, inner *mockEmbedder) (*CachedEmbedder, *fakeKVStore) {
	t.Helper()
	fs := &fakeKVStore{entries: make(map[string][]byte)}
	ce := New(inner, fs, nil, zap.NewNop())
	return ce, fs
}
