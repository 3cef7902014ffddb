// Package app wires the pipeline components together and manages their
// lifecycle for the long-running mode.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"github.com/amanuel-c/telepharm/internal/api"
	"github.com/amanuel-c/telepharm/internal/scraper"
)

// App orchestrates the scraper, scheduler, and API server under one
// lifecycle. Any nil component is simply not run.
type App struct {
	logger    *slog.Logger
	scraper   *scraper.Scraper
	scheduler *Scheduler
	server    *api.Server
}

func New(logger *slog.Logger, scr *scraper.Scraper, sched *Scheduler, server *api.Server) *App {
	return &App{
		logger:    logger.With("component", "orchestrator"),
		scraper:   scr,
		scheduler: sched,
		server:    server,
	}
}

// Run starts every configured component and blocks until ctx is cancelled
// or a component fails. Remaining components are shut down either way.
func (a *App) Run(ctx context.Context) error {
	a.logger.Info("Starting pipeline orchestrator...")

	g, gCtx := errgroup.WithContext(ctx)

	if a.scraper != nil {
		g.Go(func() error {
			if err := a.scraper.Run(gCtx); err != nil {
				a.logger.Error("Scraper stopped with error", "error", err)
				return fmt.Errorf("scraper failed: %w", err)
			}
			if gCtx.Err() == nil {
				return fmt.Errorf("scraper stopped unexpectedly")
			}
			return nil
		})
	}

	if a.scheduler != nil {
		g.Go(func() error {
			if err := a.scheduler.Start(); err != nil {
				a.logger.Error("Failed to start scheduler", "error", err)
				return fmt.Errorf("failed to start scheduler: %w", err)
			}

			<-gCtx.Done()
			a.logger.Info("Shutdown signal received, stopping scheduler...")

			if err := a.scheduler.Stop(); err != nil {
				a.logger.Error("Error stopping scheduler", "error", err)
			}
			return nil
		})
	}

	if a.server != nil {
		g.Go(func() error {
			if err := a.server.Run(gCtx); err != nil {
				a.logger.Error("API server stopped with error", "error", err)
				return fmt.Errorf("api server failed: %w", err)
			}
			return nil
		})
	}

	a.logger.Info("Pipeline orchestrator running. Waiting for shutdown signal or error...")
	err := g.Wait()

	if err != nil && !errors.Is(err, context.Canceled) {
		a.logger.Error("Pipeline orchestrator stopped due to error", "error", err)
		return err
	}

	a.logger.Info("Pipeline orchestrator stopped gracefully.")
	return nil
}
