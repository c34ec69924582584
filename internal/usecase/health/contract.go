package health

import "context"

// DBPinger checks knowledge store availability.
type DBPinger interface {
	Ping(ctx context.Context) error
}

// Checker probes one upstream AI dependency.
type Checker interface {
	HealthCheck(ctx context.Context) error
}
