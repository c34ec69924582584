// Package budget enforces per-provider token budgets with daily and
// monthly windows.
package budget

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/phytodex/internal/domain"
	"github.com/kailas-cloud/phytodex/internal/domain/usage"
	"github.com/kailas-cloud/phytodex/internal/metrics"
)

// Action defines behavior when the token budget is exceeded.
type Action string

const (
	// ActionWarn logs a warning but allows the request.
	ActionWarn Action = "warn"
	// ActionReject blocks the request.
	ActionReject Action = "reject"
)

// Store is the persistence interface for budget counters.
// Implementations must be idempotent (IncrBy can be called repeatedly).
type Store interface {
	IncrBy(ctx context.Context, key string, val int64) error
	Get(ctx context.Context, key string) (int64, error)
}

// Tracker is an in-memory token budget with optional persistence.
// The hot path (Check) never does a store round-trip; Record updates
// memory first, then writes behind to the store.
type Tracker struct {
	mu             sync.Mutex
	dailyUsed      int64
	monthlyUsed    int64
	dailyLimit     int64
	monthlyLimit   int64
	action         Action
	provider       usage.Provider
	lastDayReset   time.Time
	lastMonthReset time.Time
	store          Store
	logger         *zap.Logger
}

// NewTracker creates a budget tracker for one provider. A zero limit
// means unlimited for that window.
func NewTracker(
	provider usage.Provider, dailyLimit, monthlyLimit int64,
	action Action, logger *zap.Logger,
) *Tracker {
	now := time.Now().UTC()
	t := &Tracker{
		dailyLimit:     dailyLimit,
		monthlyLimit:   monthlyLimit,
		action:         action,
		provider:       provider,
		lastDayReset:   truncateToDay(now),
		lastMonthReset: truncateToMonth(now),
		logger:         logger,
	}
	t.publishGauges()
	return t
}

// WithStore attaches a persistence store and loads current counters.
func (t *Tracker) WithStore(ctx context.Context, store Store) *Tracker {
	t.store = store
	t.loadFromStore(ctx)
	return t
}

// Provider returns the provider this tracker guards.
func (t *Tracker) Provider() usage.Provider { return t.provider }

func (t *Tracker) loadFromStore(ctx context.Context) {
	t.mu.Lock()
	defer t.mu.Unlock()

	now := time.Now().UTC()

	if val, err := t.store.Get(ctx, t.dailyKey(now)); err == nil {
		t.dailyUsed = val
	} else {
		t.logger.Warn("Failed to load daily budget from store", zap.Error(err))
	}

	if val, err := t.store.Get(ctx, t.monthlyKey(now)); err == nil {
		t.monthlyUsed = val
	} else {
		t.logger.Warn("Failed to load monthly budget from store", zap.Error(err))
	}

	t.publishGauges()

	t.logger.Info("Budget loaded from store",
		zap.String("provider", string(t.provider)),
		zap.Int64("daily_used", t.dailyUsed),
		zap.Int64("monthly_used", t.monthlyUsed),
	)
}

func (t *Tracker) dailyKey(ts time.Time) string {
	return fmt.Sprintf("%sbudget:%s:daily:%s", domain.KeyPrefix, t.provider, ts.Format("2006-01-02"))
}

func (t *Tracker) monthlyKey(ts time.Time) string {
	return fmt.Sprintf("%sbudget:%s:monthly:%s", domain.KeyPrefix, t.provider, ts.Format("2006-01"))
}

// Check verifies the budget allows a new request. In-memory only (hot path).
func (t *Tracker) Check(_ context.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.resetIfNeeded()

	dailyExceeded := t.dailyLimit > 0 && t.dailyUsed >= t.dailyLimit
	monthlyExceeded := t.monthlyLimit > 0 && t.monthlyUsed >= t.monthlyLimit

	if !dailyExceeded && !monthlyExceeded {
		return nil
	}

	if t.action == ActionReject {
		return fmt.Errorf("%s budget: %w", t.provider, domain.ErrTokenQuotaExceeded)
	}

	// action=warn: log but allow the request through
	t.logger.Warn("Token budget exceeded",
		zap.String("provider", string(t.provider)),
		zap.Int64("daily_used", t.dailyUsed),
		zap.Int64("daily_limit", t.dailyLimit),
		zap.Int64("monthly_used", t.monthlyUsed),
		zap.Int64("monthly_limit", t.monthlyLimit),
	)
	return nil
}

// Record registers consumed tokens after a request.
// Updates in-memory counters, then write-behind to store (if attached).
func (t *Tracker) Record(tokens int64) {
	t.mu.Lock()
	t.resetIfNeeded()
	t.dailyUsed += tokens
	t.monthlyUsed += tokens
	t.publishGauges()
	store := t.store
	now := time.Now().UTC()
	dailyKey := t.dailyKey(now)
	monthlyKey := t.monthlyKey(now)
	t.mu.Unlock()

	if store == nil {
		return
	}

	// Write-behind: background context so store writes never block the caller.
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	if err := store.IncrBy(ctx, dailyKey, tokens); err != nil {
		t.logger.Warn("Failed to persist daily budget", zap.String("key", dailyKey), zap.Error(err))
	}
	if err := store.IncrBy(ctx, monthlyKey, tokens); err != nil {
		t.logger.Warn("Failed to persist monthly budget", zap.String("key", monthlyKey), zap.Error(err))
	}
}

// RemainingDaily returns tokens left in the daily budget (-1 if unlimited).
func (t *Tracker) RemainingDaily() int64 {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.resetIfNeeded()
	return remaining(t.dailyLimit, t.dailyUsed)
}

// RemainingMonthly returns tokens left in the monthly budget (-1 if unlimited).
func (t *Tracker) RemainingMonthly() int64 {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.resetIfNeeded()
	return remaining(t.monthlyLimit, t.monthlyUsed)
}

// DailyLimit returns the daily token cap.
func (t *Tracker) DailyLimit() int64 { return t.dailyLimit }

// MonthlyLimit returns the monthly token cap.
func (t *Tracker) MonthlyLimit() int64 { return t.monthlyLimit }

// DailyUsed returns tokens consumed today.
func (t *Tracker) DailyUsed() int64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.resetIfNeeded()
	return t.dailyUsed
}

// MonthlyUsed returns tokens consumed this month.
func (t *Tracker) MonthlyUsed() int64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.resetIfNeeded()
	return t.monthlyUsed
}

func remaining(limit, used int64) int64 {
	if limit == 0 {
		return -1 // unlimited
	}
	r := limit - used
	if r < 0 {
		return 0
	}
	return r
}

// publishGauges exports remaining-token gauges. Caller holds the lock.
// Unlimited windows are not exported.
func (t *Tracker) publishGauges() {
	if t.dailyLimit > 0 {
		metrics.BudgetTokensRemaining.
			WithLabelValues(string(t.provider), "daily").
			Set(float64(remaining(t.dailyLimit, t.dailyUsed)))
	}
	if t.monthlyLimit > 0 {
		metrics.BudgetTokensRemaining.
			WithLabelValues(string(t.provider), "monthly").
			Set(float64(remaining(t.monthlyLimit, t.monthlyUsed)))
	}
}

// resetIfNeeded zeroes counters when the day or month rolls over.
func (t *Tracker) resetIfNeeded() {
	now := time.Now().UTC()
	today := truncateToDay(now)
	thisMonth := truncateToMonth(now)

	if today.After(t.lastDayReset) {
		t.dailyUsed = 0
		t.lastDayReset = today
	}
	if thisMonth.After(t.lastMonthReset) {
		t.monthlyUsed = 0
		t.lastMonthReset = thisMonth
	}
}

func truncateToDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

func truncateToMonth(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, time.UTC)
}
