// Package valkey adapts the Redis store for Valkey with valkey-search.
// The wire protocol is identical, but valkey-search rejects FT.SEARCH
// queries without a KNN clause, so match-all operations fall back to
// SCAN over the index key prefix.
package valkey

import (
	"context"
	"fmt"
	"sort"

	"github.com/kailas-cloud/phytodex/internal/db"
	"github.com/kailas-cloud/phytodex/internal/db/redis"
)

// Compile-time check: Store implements db.Store.
var _ db.Store = (*Store)(nil)

// Config holds connection parameters for a Valkey store.
type Config struct {
	Addrs    []string
	Password string
}

// Store implements db.Store for Valkey servers. Valkey speaks RESP, so
// everything except the match-all search paths is shared with the
// Redis driver.
type Store struct {
	*redis.Store
}

// NewStore creates a Valkey store.
func NewStore(cfg Config) (*Store, error) {
	inner, err := redis.NewStore(redis.Config(cfg))
	if err != nil {
		return nil, err
	}
	return &Store{Store: inner}, nil
}

// SearchCount returns the document count. Match-all counting goes
// through SCAN because valkey-search cannot run FT.SEARCH on "*".
func (s *Store) SearchCount(ctx context.Context, index, query string) (int, error) {
	if query != "*" {
		return s.Store.SearchCount(ctx, index, query)
	}

	keys, err := s.Scan(ctx, keyPrefix(index)+"*")
	if err != nil {
		return 0, fmt.Errorf("scan for count: %w", err)
	}
	return len(keys), nil
}

// SearchKeys pages keys matching the tag conditions. Without tags it
// falls back to SCAN, sorted so pagination is deterministic.
func (s *Store) SearchKeys(
	ctx context.Context, index string, tags map[string]string, offset, limit int,
) ([]string, int, error) {
	if len(tags) > 0 {
		return s.Store.SearchKeys(ctx, index, tags, offset, limit)
	}

	keys, err := s.Scan(ctx, keyPrefix(index)+"*")
	if err != nil {
		return nil, 0, fmt.Errorf("scan for keys: %w", err)
	}
	sort.Strings(keys)

	total := len(keys)
	if offset >= total {
		return nil, total, nil
	}
	end := offset + limit
	if end > total {
		end = total
	}
	return keys[offset:end], total, nil
}

// keyPrefix converts an index name to its SCAN prefix. Passages are
// stored under "<index>:<id>".
func keyPrefix(index string) string {
	return index + ":"
}
