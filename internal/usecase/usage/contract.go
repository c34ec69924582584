package usage

import domusage "github.com/kailas-cloud/phytodex/internal/domain/usage"

// BudgetReader provides read-only access to one provider's token budget state.
type BudgetReader interface {
	Provider() domusage.Provider
	DailyLimit() int64
	MonthlyLimit() int64
	DailyUsed() int64
	MonthlyUsed() int64
	RemainingDaily() int64
	RemainingMonthly() int64
}
