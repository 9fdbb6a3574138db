// Package server holds the long-running commands: the webhook API and the
// background worker.
package server

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/felixgeelhaar/talentreach/adapter/api"
	internalApp "github.com/felixgeelhaar/talentreach/internal/app"
	"golang.org/x/sync/errgroup"
)

// ServeCmd and WorkerCmd are registered on the root command by main.
var (
	ServeCmd  = serveCmd
	WorkerCmd = workerCmd
)

var statsInterval = time.Minute

// runGroup runs every runner until ctx is canceled or one of them fails.
// A failure cancels the others.
func runGroup(ctx context.Context, logger *slog.Logger, runners []internalApp.Runner) error {
	g, groupCtx := errgroup.WithContext(ctx)
	for _, r := range runners {
		g.Go(func() error {
			logger.Info("starting runner", "runner", r.Name)
			err := r.Run(groupCtx)
			if err != nil && !errors.Is(err, context.Canceled) {
				logger.Error("runner failed", "runner", r.Name, "error", err)
				return err
			}
			logger.Info("runner stopped", "runner", r.Name)
			return nil
		})
	}
	return g.Wait()
}

// healthRunner serves /health and /metrics on addr.
func healthRunner(c *internalApp.Container, addr string, logger *slog.Logger) internalApp.Runner {
	cfg := api.DefaultServerConfig()
	cfg.Addr = addr
	srv := api.NewServer(cfg, nil, c.Health, c.MetricsHandler, logger)
	return internalApp.Runner{Name: "health_server", Run: srv.Run}
}

// statsRunner logs outbox processor statistics periodically.
func statsRunner(c *internalApp.Container, logger *slog.Logger) internalApp.Runner {
	return internalApp.Runner{Name: "outbox_stats", Run: func(ctx context.Context) error {
		ticker := time.NewTicker(statsInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return nil
			case <-ticker.C:
				stats := c.OutboxProcessor.GetStats()
				logger.Info("outbox stats",
					"running", stats.IsRunning,
					"published", stats.PublishedCount,
					"failed", stats.FailedCount,
					"dead", stats.DeadCount,
					"lag_seconds", stats.LagSeconds,
					"oldest_message_at", stats.OldestMessageAt,
					"last_processed_at", stats.LastProcessedAt,
					"last_error_at", stats.LastErrorAt,
					"last_error", stats.LastError,
				)
			}
		}
	}}
}
