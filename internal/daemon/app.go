// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package daemon

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

// App runs the manager and the background workers as one group. The first
// failure cancels the rest.
type App struct {
	logger  zerolog.Logger
	manager Manager
	workers []Worker
}

// NewApp creates a new App orchestrator.
func NewApp(logger zerolog.Logger, manager Manager, workers ...Worker) *App {
	return &App{logger: logger, manager: manager, workers: workers}
}

// Run blocks until ctx is cancelled or a member of the group fails.
func (a *App) Run(ctx context.Context) error {
	if a.manager == nil {
		return ErrMissingManager
	}

	g, ctx := errgroup.WithContext(ctx)
	for _, w := range a.workers {
		g.Go(func() error {
			a.logger.Info().Str("worker", w.Name).Msg("worker starting")
			if err := w.Run(ctx); err != nil {
				a.logger.Error().Err(err).Str("worker", w.Name).Msg("worker failed")
				return fmt.Errorf("worker %s: %w", w.Name, err)
			}
			a.logger.Info().Str("worker", w.Name).Msg("worker stopped")
			return nil
		})
	}
	g.Go(func() error {
		return a.manager.Start(ctx)
	})
	return g.Wait()
}
