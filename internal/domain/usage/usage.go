package usage

// Period is the aggregation granularity.
type Period string

// Aggregation period constants.
const (
	PeriodDay   Period = "day"
	PeriodMonth Period = "month"
	PeriodTotal Period = "total"
)

// Provider identifies which AI provider a usage line belongs to.
type Provider string

// Tracked providers.
const (
	ProviderEmbedding Provider = "embedding"
	ProviderChat      Provider = "chat"
)

// Budget tracks token budget state for one provider.
type Budget struct {
	tokensLimit     int
	tokensRemaining int
	isExhausted     bool
	resetsAt        int64 // unix millis, converted to ISO 8601 at transport layer
}

// NewBudget creates a Budget snapshot.
func NewBudget(limit, remaining int, isExhausted bool, resetsAt int64) Budget {
	return Budget{
		tokensLimit:     limit,
		tokensRemaining: remaining,
		isExhausted:     isExhausted,
		resetsAt:        resetsAt,
	}
}

// TokensLimit returns the token cap.
func (b Budget) TokensLimit() int { return b.tokensLimit }

// TokensRemaining returns tokens left.
func (b Budget) TokensRemaining() int { return b.tokensRemaining }

// IsExhausted reports whether the budget is spent.
func (b Budget) IsExhausted() bool { return b.isExhausted }

// ResetsAt returns the reset timestamp (unix millis).
func (b Budget) ResetsAt() int64 { return b.resetsAt }

// ProviderUsage holds token consumption and budget state for one provider.
type ProviderUsage struct {
	provider Provider
	tokens   int
	budget   Budget
}

// NewProviderUsage creates a ProviderUsage snapshot.
func NewProviderUsage(p Provider, tokens int, b Budget) ProviderUsage {
	return ProviderUsage{provider: p, tokens: tokens, budget: b}
}

// Provider returns the provider identifier.
func (u ProviderUsage) Provider() Provider { return u.provider }

// Tokens returns the tokens consumed in the period.
func (u ProviderUsage) Tokens() int { return u.tokens }

// Budget returns the budget status.
func (u ProviderUsage) Budget() Budget { return u.budget }

// Report is an AI token usage report for a time period.
type Report struct {
	period      Period
	periodStart int64
	periodEnd   int64
	providers   []ProviderUsage
}

// NewReport creates a usage report.
func NewReport(period Period, start, end int64, providers []ProviderUsage) Report {
	return Report{
		period:      period,
		periodStart: start,
		periodEnd:   end,
		providers:   providers,
	}
}

// Period returns the aggregation granularity.
func (r *Report) Period() Period { return r.period }

// PeriodStart returns the period start timestamp (unix millis).
func (r *Report) PeriodStart() int64 { return r.periodStart }

// PeriodEnd returns the period end timestamp (unix millis).
func (r *Report) PeriodEnd() int64 { return r.periodEnd }

// Providers returns per-provider usage lines.
func (r *Report) Providers() []ProviderUsage { return r.providers }
