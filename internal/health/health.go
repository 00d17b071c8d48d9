// Package health provides readiness checks for the engine's external
// dependencies. Each checker reports whether its dependency can serve
// traffic right now.
package health

import "context"

// Checker is implemented by anything that can report dependency health.
type Checker interface {
	HealthCheck(ctx context.Context) error
}
