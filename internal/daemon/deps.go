// Package daemon owns the process lifecycle: the HTTP listener, background
// workers and ordered shutdown.
package daemon

import (
	"context"
	"net/http"

	"github.com/rs/zerolog"
)

// Deps contains dependencies required by the daemon Manager.
type Deps struct {
	// Logger is the structured logger for the daemon
	Logger zerolog.Logger

	// APIHandler serves every HTTP route, including /metrics.
	APIHandler http.Handler
}

// Validate checks if the dependencies are valid.
func (d *Deps) Validate() error {
	if d.Logger.GetLevel() == zerolog.Disabled {
		return ErrMissingLogger
	}
	if d.APIHandler == nil {
		return ErrMissingAPIHandler
	}
	return nil
}

// Worker is a background subsystem. Run blocks until ctx is cancelled and
// returns after the worker has drained.
type Worker struct {
	Name string
	Run  func(ctx context.Context) error
}
