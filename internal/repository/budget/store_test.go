package budget

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/kailas-cloud/phytodex/internal/db"
)

// mockKV implements the consumer interface for tests.
type mockKV struct {
	getFn    func(ctx context.Context, key string) ([]byte, error)
	incrByFn func(ctx context.Context, key string, val int64) error
	expireFn func(ctx context.Context, key string, ttl time.Duration, nx bool) error
}

func (m *mockKV) Get(ctx context.Context, key string) ([]byte, error) {
	if m.getFn != nil {
		return m.getFn(ctx, key)
	}
	return nil, db.ErrKeyNotFound
}

func (m *mockKV) IncrBy(ctx context.Context, key string, val int64) error {
	if m.incrByFn != nil {
		return m.incrByFn(ctx, key, val)
	}
	return nil
}

func (m *mockKV) Expire(ctx context.Context, key string, ttl time.Duration, nx bool) error {
	if m.expireFn != nil {
		return m.expireFn(ctx, key, ttl, nx)
	}
	return nil
}

func TestIncrBy_SetsDailyTTL(t *testing.T) {
	kv := &mockKV{}
	s := New(kv, 0, 0)

	var gotTTL time.Duration
	var gotNX bool
	kv.expireFn = func(_ context.Context, _ string, ttl time.Duration, nx bool) error {
		gotTTL = ttl
		gotNX = nx
		return nil
	}

	err := s.IncrBy(context.Background(), "phytodex:budget:embedding:daily:2026-08-25", 100)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if gotTTL != DefaultDailyTTL {
		t.Errorf("expected daily TTL %v, got %v", DefaultDailyTTL, gotTTL)
	}
	if !gotNX {
		t.Error("expected NX expire")
	}
}

func TestIncrBy_SetsMonthlyTTL(t *testing.T) {
	kv := &mockKV{}
	s := New(kv, 0, 0)

	var gotTTL time.Duration
	kv.expireFn = func(_ context.Context, _ string, ttl time.Duration, _ bool) error {
		gotTTL = ttl
		return nil
	}

	err := s.IncrBy(context.Background(), "phytodex:budget:chat:monthly:2026-08", 100)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if gotTTL != DefaultMonthTTL {
		t.Errorf("expected monthly TTL %v, got %v", DefaultMonthTTL, gotTTL)
	}
}

func TestIncrBy_IncrError(t *testing.T) {
	kv := &mockKV{
		incrByFn: func(_ context.Context, _ string, _ int64) error {
			return errors.New("connection refused")
		},
	}
	s := New(kv, 0, 0)

	if err := s.IncrBy(context.Background(), "k", 1); err == nil {
		t.Fatal("expected error")
	}
}

func TestGet_MissingKeyIsZero(t *testing.T) {
	kv := &mockKV{}
	s := New(kv, 0, 0)

	val, err := s.Get(context.Background(), "phytodex:budget:embedding:daily:2026-08-25")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if val != 0 {
		t.Errorf("expected 0, got %d", val)
	}
}

func TestGet_ParsesValue(t *testing.T) {
	kv := &mockKV{
		getFn: func(_ context.Context, _ string) ([]byte, error) {
			return []byte("12345"), nil
		},
	}
	s := New(kv, 0, 0)

	val, err := s.Get(context.Background(), "k")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if val != 12345 {
		t.Errorf("expected 12345, got %d", val)
	}
}

func TestGet_GarbageValue(t *testing.T) {
	kv := &mockKV{
		getFn: func(_ context.Context, _ string) ([]byte, error) {
			return []byte("not-a-number"), nil
		},
	}
	s := New(kv, 0, 0)

	if _, err := s.Get(context.Background(), "k"); err == nil {
		t.Fatal("expected parse error")
	}
}
