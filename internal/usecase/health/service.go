package health

import "context"

// Status represents the aggregated health status.
type Status string

const (
	// Healthy indicates all components are operational.
	Healthy Status = "ok"
	// Degraded indicates an AI provider is failing; retrieval still works.
	Degraded Status = "degraded"
	// Unhealthy indicates the knowledge store is unreachable.
	Unhealthy Status = "error"
)

// CheckResult represents an individual component health check outcome.
type CheckResult string

const (
	// CheckOK indicates a passing health check.
	CheckOK CheckResult = "ok"
	// CheckError indicates a failing health check.
	CheckError CheckResult = "error"
)

// Report aggregates health check results.
type Report struct {
	Status Status
	Checks map[string]CheckResult
}

// Service coordinates health checks.
type Service struct {
	db        DBPinger
	vision    Checker
	embedding Checker
	chat      Checker
}

// New creates a Service. Any checker can be nil; its component is then
// omitted from the report.
func New(db DBPinger, vision, embedding, chat Checker) *Service {
	return &Service{db: db, vision: vision, embedding: embedding, chat: chat}
}

// Check runs health checks against all components. A failing provider
// degrades the service; a failing store makes it unhealthy, since every
// operation reads or writes the knowledge base.
func (s *Service) Check(ctx context.Context) Report {
	checks := make(map[string]CheckResult)
	status := Healthy

	if err := s.db.Ping(ctx); err != nil {
		checks["database"] = CheckError
		status = Unhealthy
	} else {
		checks["database"] = CheckOK
	}

	probe(ctx, checks, "vision", s.vision)
	probe(ctx, checks, "embedding", s.embedding)
	probe(ctx, checks, "chat", s.chat)

	if status == Healthy {
		for _, v := range checks {
			if v == CheckError {
				status = Degraded
				break
			}
		}
	}

	return Report{Status: status, Checks: checks}
}

func probe(ctx context.Context, checks map[string]CheckResult, name string, c Checker) {
	if c == nil {
		return
	}
	if err := c.HealthCheck(ctx); err != nil {
		checks[name] = CheckError
	} else {
		checks[name] = CheckOK
	}
}
