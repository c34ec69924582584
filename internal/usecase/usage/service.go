package usage

import (
	"context"
	"time"

	domusage "github.com/kailas-cloud/phytodex/internal/domain/usage"
)

// Service handles usage reporting across AI providers.
type Service struct {
	readers []BudgetReader
}

// New creates a Service. Readers may be empty (nothing tracked).
func New(readers ...BudgetReader) *Service {
	return &Service{readers: readers}
}

// GetReport builds a usage report for the given period.
func (s *Service) GetReport(_ context.Context, period domusage.Period) domusage.Report {
	now := time.Now().UTC()
	var start, end int64

	switch period {
	case domusage.PeriodDay:
		dayStart := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
		start = dayStart.UnixMilli()
		end = dayStart.Add(24 * time.Hour).UnixMilli()
	case domusage.PeriodMonth:
		monthStart := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC)
		start = monthStart.UnixMilli()
		end = monthStart.AddDate(0, 1, 0).UnixMilli()
	default:
		// total has no period boundaries
	}

	providers := make([]domusage.ProviderUsage, 0, len(s.readers))
	for _, r := range s.readers {
		providers = append(providers, providerLine(r, period, end))
	}

	return domusage.NewReport(period, start, end, providers)
}

func providerLine(r BudgetReader, period domusage.Period, resetsAt int64) domusage.ProviderUsage {
	var limit, used, remaining int64

	switch period {
	case domusage.PeriodDay:
		limit = r.DailyLimit()
		used = r.DailyUsed()
		remaining = r.RemainingDaily()
	default:
		// month and total both report against the monthly window
		limit = r.MonthlyLimit()
		used = r.MonthlyUsed()
		remaining = r.RemainingMonthly()
	}

	exhausted := limit > 0 && remaining <= 0
	b := domusage.NewBudget(int(limit), int(remaining), exhausted, resetsAt)
	return domusage.NewProviderUsage(r.Provider(), int(used), b)
}
