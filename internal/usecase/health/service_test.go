package health

import (
	"context"
	"errors"
	"testing"
)

// --- Mocks ---

type mockDBPinger struct {
	err error
}

func (m *mockDBPinger) Ping(_ context.Context) error { return m.err }

type mockChecker struct {
	err error
}

func (m *mockChecker) HealthCheck(_ context.Context) error { return m.err }

// --- Tests ---

func TestCheck_AllHealthy(t *testing.T) {
	svc := New(&mockDBPinger{}, &mockChecker{}, &mockChecker{}, &mockChecker{})
	r := svc.Check(context.Background())

	if r.Status != Healthy {
		t.Errorf("expected %q, got %q", Healthy, r.Status)
	}
	for _, name := range []string{"database", "vision", "embedding", "chat"} {
		if r.Checks[name] != CheckOK {
			t.Errorf("expected %s %q, got %q", name, CheckOK, r.Checks[name])
		}
	}
}

func TestCheck_DBError(t *testing.T) {
	svc := New(&mockDBPinger{err: errors.New("conn refused")}, &mockChecker{}, &mockChecker{}, &mockChecker{})
	r := svc.Check(context.Background())

	if r.Status != Unhealthy {
		t.Errorf("expected %q, got %q", Unhealthy, r.Status)
	}
	if r.Checks["database"] != CheckError {
		t.Errorf("expected database %q, got %q", CheckError, r.Checks["database"])
	}
	if r.Checks["vision"] != CheckOK {
		t.Errorf("expected vision %q, got %q", CheckOK, r.Checks["vision"])
	}
}

func TestCheck_VisionError(t *testing.T) {
	svc := New(&mockDBPinger{}, &mockChecker{err: errors.New("model loading")}, &mockChecker{}, &mockChecker{})
	r := svc.Check(context.Background())

	if r.Status != Degraded {
		t.Errorf("expected %q, got %q", Degraded, r.Status)
	}
	if r.Checks["vision"] != CheckError {
		t.Errorf("expected vision %q, got %q", CheckError, r.Checks["vision"])
	}
	if r.Checks["database"] != CheckOK {
		t.Errorf("expected database %q, got %q", CheckOK, r.Checks["database"])
	}
}

func TestCheck_ChatError(t *testing.T) {
	svc := New(&mockDBPinger{}, &mockChecker{}, &mockChecker{}, &mockChecker{err: errors.New("timeout")})
	r := svc.Check(context.Background())

	if r.Status != Degraded {
		t.Errorf("expected %q, got %q", Degraded, r.Status)
	}
	if r.Checks["chat"] != CheckError {
		t.Errorf("expected chat %q, got %q", CheckError, r.Checks["chat"])
	}
}

func TestCheck_AllFail(t *testing.T) {
	boom := errors.New("down")
	svc := New(&mockDBPinger{err: boom}, &mockChecker{err: boom}, &mockChecker{err: boom}, &mockChecker{err: boom})
	r := svc.Check(context.Background())

	if r.Status != Unhealthy {
		t.Errorf("expected %q, got %q", Unhealthy, r.Status)
	}
	for _, name := range []string{"database", "vision", "embedding", "chat"} {
		if r.Checks[name] != CheckError {
			t.Errorf("expected %s error", name)
		}
	}
}

func TestCheck_NilCheckersSkipped(t *testing.T) {
	svc := New(&mockDBPinger{}, nil, nil, nil)
	r := svc.Check(context.Background())

	if r.Status != Healthy {
		t.Errorf("expected %q, got %q", Healthy, r.Status)
	}
	if r.Checks["database"] != CheckOK {
		t.Errorf("expected database %q, got %q", CheckOK, r.Checks["database"])
	}
	for _, name := range []string{"vision", "embedding", "chat"} {
		if _, ok := r.Checks[name]; ok {
			t.Errorf("%s check should be absent when its checker is nil", name)
		}
	}
}
