package ports

import "context"

// HealthProber performs one liveness probe of the host.
type HealthProber interface {
	// Probe reports whether the host answered healthy within the probe budget.
	Probe(ctx context.Context) bool
}
