package workers

import (
	"context"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/felixgeelhaar/talentreach/internal/outreach/application/services"
)

// DefaultPollInterval is the default interval between follow-up cycles.
const DefaultPollInterval = 5 * time.Minute

// DueProcessor handles everything due at the current time.
type DueProcessor interface {
	ProcessDue(ctx context.Context) (services.FollowUpStats, error)
}

// FollowUpWorker periodically sends due pitches and follow-ups.
type FollowUpWorker struct {
	processor DueProcessor
	interval  time.Duration
	logger    *slog.Logger
	running   atomic.Bool
	stopCh    chan struct{}
}

// NewFollowUpWorker creates a new follow-up worker.
func NewFollowUpWorker(processor DueProcessor, interval time.Duration, logger *slog.Logger) *FollowUpWorker {
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &FollowUpWorker{
		processor: processor,
		interval:  interval,
		logger:    logger.With("component", "follow_up_worker"),
		stopCh:    make(chan struct{}),
	}
}

// Run starts the worker and blocks until ctx is canceled or Stop is called.
func (w *FollowUpWorker) Run(ctx context.Context) error {
	if w.processor == nil {
		w.logger.Warn("follow-up processor not configured, worker will not start")
		return nil
	}

	w.running.Store(true)
	defer w.running.Store(false)
	w.logger.InfoContext(ctx, "follow-up worker started", "interval", w.interval)

	w.RunOnce(ctx)

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			w.logger.Info("follow-up worker stopped (context cancelled)")
			return ctx.Err()
		case <-w.stopCh:
			w.logger.Info("follow-up worker stopped (stop signal)")
			return nil
		case <-ticker.C:
			w.RunOnce(ctx)
		}
	}
}

// Stop signals the worker to stop gracefully.
func (w *FollowUpWorker) Stop() {
	if w.running.Load() {
		close(w.stopCh)
	}
}

// IsRunning returns true if the worker is currently running.
func (w *FollowUpWorker) IsRunning() bool {
	return w.running.Load()
}

// RunOnce runs a single cycle and logs its result.
func (w *FollowUpWorker) RunOnce(ctx context.Context) {
	stats, err := w.processor.ProcessDue(ctx)
	if err != nil {
		w.logger.ErrorContext(ctx, "follow-up cycle failed", "error", err)
		return
	}
	if stats == (services.FollowUpStats{}) {
		w.logger.DebugContext(ctx, "nothing due")
		return
	}
	w.logger.InfoContext(ctx, "follow-up cycle completed",
		"pitches_sent", stats.PitchesSent,
		"sent", stats.Sent,
		"replied", stats.Replied,
		"no_response", stats.NoResponse,
		"postponed", stats.Postponed,
		"failed", stats.Failed,
	)
}
