package valkey

import (
	"context"
	"testing"

	"github.com/redis/rueidis/mock"
	"go.uber.org/mock/gomock"

	"github.com/kailas-cloud/phytodex/internal/db"
)

// --- match-all fallbacks ---

func TestSearchCount_WildcardFallsBackToScan(t *testing.T) {
	ctrl := gomock.NewController(t)
	c := mock.NewClient(ctrl)

	c.EXPECT().
		Do(gomock.Any(), mock.MatchFn(func(cmd []string) bool {
			return cmd[0] == "SCAN" && cmd[3] == "phytodex:passages:*"
		})).
		Return(mock.Result(mock.RedisArray(
			mock.RedisInt64(0),
			mock.RedisArray(
				mock.RedisString("phytodex:passages:p1"),
				mock.RedisString("phytodex:passages:p2"),
				mock.RedisString("phytodex:passages:p3"),
			),
		)))

	s := NewStoreForTest(c)
	n, err := s.SearchCount(context.Background(), "phytodex:passages", "*")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if n != 3 {
		t.Errorf("expected 3, got %d", n)
	}
}

func TestSearchCount_QueryDelegatesToFT(t *testing.T) {
	ctrl := gomock.NewController(t)
	c := mock.NewClient(ctrl)

	c.EXPECT().
		Do(gomock.Any(), mock.MatchFn(func(cmd []string) bool {
			return cmd[0] == "FT.SEARCH" && cmd[2] == "@source:{blight\\.pdf}"
		})).
		Return(mock.Result(mock.RedisArray(mock.RedisInt64(7))))

	s := NewStoreForTest(c)
	n, err := s.SearchCount(context.Background(), "phytodex:passages", "@source:{blight\\.pdf}")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if n != 7 {
		t.Errorf("expected 7, got %d", n)
	}
}

func TestSearchCount_ScanError(t *testing.T) {
	ctrl := gomock.NewController(t)
	c := mock.NewClient(ctrl)

	c.EXPECT().
		Do(gomock.Any(), mock.MatchFn(func(cmd []string) bool {
			return cmd[0] == "SCAN"
		})).
		Return(mock.ErrorResult(context.DeadlineExceeded))

	s := NewStoreForTest(c)
	if _, err := s.SearchCount(context.Background(), "phytodex:passages", "*"); err == nil {
		t.Fatal("expected error")
	}
}

func TestSearchKeys_NoTagsFallsBackToScan(t *testing.T) {
	ctrl := gomock.NewController(t)
	c := mock.NewClient(ctrl)

	// Unsorted SCAN reply; pagination must see sorted keys.
	c.EXPECT().
		Do(gomock.Any(), mock.MatchFn(func(cmd []string) bool {
			return cmd[0] == "SCAN"
		})).
		Return(mock.Result(mock.RedisArray(
			mock.RedisInt64(0),
			mock.RedisArray(
				mock.RedisString("phytodex:passages:c"),
				mock.RedisString("phytodex:passages:a"),
				mock.RedisString("phytodex:passages:b"),
			),
		)))

	s := NewStoreForTest(c)
	keys, total, err := s.SearchKeys(context.Background(), "phytodex:passages", nil, 1, 1)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if total != 3 {
		t.Errorf("expected total 3, got %d", total)
	}
	if len(keys) != 1 || keys[0] != "phytodex:passages:b" {
		t.Errorf("expected page [phytodex:passages:b], got %v", keys)
	}
}

func TestSearchKeys_OffsetPastEnd(t *testing.T) {
	ctrl := gomock.NewController(t)
	c := mock.NewClient(ctrl)

	c.EXPECT().
		Do(gomock.Any(), mock.MatchFn(func(cmd []string) bool {
			return cmd[0] == "SCAN"
		})).
		Return(mock.Result(mock.RedisArray(
			mock.RedisInt64(0),
			mock.RedisArray(mock.RedisString("phytodex:passages:a")),
		)))

	s := NewStoreForTest(c)
	keys, total, err := s.SearchKeys(context.Background(), "phytodex:passages", nil, 5, 10)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if total != 1 {
		t.Errorf("expected total 1, got %d", total)
	}
	if len(keys) != 0 {
		t.Errorf("expected empty page, got %v", keys)
	}
}

func TestSearchKeys_TagsDelegateToFT(t *testing.T) {
	ctrl := gomock.NewController(t)
	c := mock.NewClient(ctrl)

	c.EXPECT().
		Do(gomock.Any(), mock.MatchFn(func(cmd []string) bool {
			return cmd[0] == "FT.SEARCH" && cmd[3] == "NOCONTENT"
		})).
		Return(mock.Result(mock.RedisArray(
			mock.RedisInt64(2),
			mock.RedisString("phytodex:passages:p1"),
			mock.RedisString("phytodex:passages:p2"),
		)))

	s := NewStoreForTest(c)
	keys, total, err := s.SearchKeys(
		context.Background(), "phytodex:passages",
		map[string]string{"source": "blight.pdf"}, 0, 10,
	)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if total != 2 || len(keys) != 2 {
		t.Errorf("expected 2 keys, got total=%d keys=%v", total, keys)
	}
}

// --- shared driver paths ---

func TestSearchKNN_UsesFTSearch(t *testing.T) {
	ctrl := gomock.NewController(t)
	c := mock.NewClient(ctrl)

	c.EXPECT().
		Do(gomock.Any(), mock.MatchFn(func(cmd []string) bool {
			return cmd[0] == "FT.SEARCH" && cmd[2] == "*=>[KNN 2 @vector $BLOB]"
		})).
		Return(mock.Result(mock.RedisArray(
			mock.RedisInt64(1),
			mock.RedisString("phytodex:passages:p1"),
			mock.RedisArray(
				mock.RedisString("__vector_score"), mock.RedisString("0.25"),
				mock.RedisString("content"), mock.RedisString("late blight"),
			),
		)))

	s := NewStoreForTest(c)
	res, err := s.SearchKNN(context.Background(), &db.KNNQuery{
		IndexName: "phytodex:passages",
		Vector:    []float32{0.1, 0.2},
		K:         2,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Total != 1 || len(res.Entries) != 1 {
		t.Fatalf("expected 1 entry, got %+v", res)
	}
	if res.Entries[0].Score != 0.75 {
		t.Errorf("expected similarity 0.75, got %f", res.Entries[0].Score)
	}
}

func TestPing_SharedWithRedisDriver(t *testing.T) {
	ctrl := gomock.NewController(t)
	c := mock.NewClient(ctrl)

	c.EXPECT().
		Do(gomock.Any(), mock.Match("PING")).
		Return(mock.Result(mock.RedisString("PONG")))

	s := NewStoreForTest(c)
	if err := s.Ping(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestNewStore_RequiresAddrs(t *testing.T) {
	if _, err := NewStore(Config{}); err == nil {
		t.Fatal("expected error for empty addrs")
	}
}
