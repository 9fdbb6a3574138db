package outbox

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/felixgeelhaar/talentreach/internal/shared/infrastructure/eventbus"
	"github.com/felixgeelhaar/talentreach/pkg/observability"
)

// cleanupEvery spaces retention sweeps; they piggyback on poll ticks.
const cleanupEvery = time.Hour

// ProcessorConfig tunes the outbox processor.
type ProcessorConfig struct {
	PollInterval     time.Duration
	BatchSize        int
	MaxRetries       int
	RetryBackoffBase time.Duration
	RetryBackoffMax  time.Duration
	// RetentionDays controls cleanup of published rows; zero keeps them.
	RetentionDays int
	// Metrics receives the published counter and the lag gauge.
	Metrics observability.Metrics
}

// DefaultProcessorConfig polls every second, retries five times with
// exponential backoff capped at a minute and keeps a week of history.
func DefaultProcessorConfig() ProcessorConfig {
	return ProcessorConfig{
		PollInterval:     time.Second,
		BatchSize:        100,
		MaxRetries:       5,
		RetryBackoffBase: time.Second,
		RetryBackoffMax:  time.Minute,
		RetentionDays:    7,
	}
}

// Processor relays outbox rows to the event bus. Delivery is at least once:
// a row is marked published only after Publish returns, so consumers must
// tolerate duplicates.
type Processor struct {
	repo      Repository
	publisher eventbus.Publisher
	cfg       ProcessorConfig
	metrics   observability.Metrics
	logger    *slog.Logger
	now       func() time.Time

	lastCleanup time.Time
	stats       statsRecorder
}

// NewProcessor creates a processor. Zero poll interval, batch size and
// backoff settings fall back to DefaultProcessorConfig.
func NewProcessor(repo Repository, publisher eventbus.Publisher, cfg ProcessorConfig, logger *slog.Logger) *Processor {
	if logger == nil {
		logger = slog.Default()
	}
	defaults := DefaultProcessorConfig()
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = defaults.PollInterval
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = defaults.BatchSize
	}
	if cfg.RetryBackoffBase <= 0 {
		cfg.RetryBackoffBase = defaults.RetryBackoffBase
	}
	if cfg.RetryBackoffMax <= 0 {
		cfg.RetryBackoffMax = defaults.RetryBackoffMax
	}
	metrics := cfg.Metrics
	if metrics == nil {
		metrics = observability.NoopMetrics{}
	}
	p := &Processor{
		repo:      repo,
		publisher: publisher,
		cfg:       cfg,
		metrics:   metrics,
		logger:    logger.With("component", "outbox_processor"),
		now:       time.Now,
	}
	p.stats.now = func() time.Time { return p.now() }
	return p
}

// Run polls until ctx is canceled.
func (p *Processor) Run(ctx context.Context) error {
	p.stats.running(true)
	defer p.stats.running(false)

	p.logger.Info("outbox processor started",
		"poll_interval", p.cfg.PollInterval,
		"batch_size", p.cfg.BatchSize,
	)
	p.lastCleanup = p.now()

	ticker := time.NewTicker(p.cfg.PollInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			p.logger.Info("outbox processor stopped")
			return nil
		case <-ticker.C:
			if err := p.processBatch(ctx); err != nil {
				p.logger.Error("outbox batch failed", "error", err)
			}
			if p.now().Sub(p.lastCleanup) >= cleanupEvery {
				p.cleanup(ctx)
				p.lastCleanup = p.now()
			}
		}
	}
}

// ProcessOnce relays one batch synchronously.
func (p *Processor) ProcessOnce(ctx context.Context) error {
	return p.processBatch(ctx)
}

func (p *Processor) processBatch(ctx context.Context) error {
	messages, err := p.repo.GetUnpublished(ctx, p.cfg.BatchSize)
	if err != nil {
		p.stats.failure(nil, err)
		return err
	}

	lag := p.stats.polled(messages)
	p.metrics.Gauge(observability.MetricOutboxLag, lag)

	for _, msg := range messages {
		p.relay(ctx, msg)
	}
	return nil
}

// relay publishes one message and records the result on its row.
func (p *Processor) relay(ctx context.Context, msg *Message) {
	log := p.logger.With("id", msg.ID, "event_id", msg.EventID, "routing_key", msg.RoutingKey)

	body, err := msg.Envelope()
	if err != nil {
		// A row that cannot be encoded never will be.
		p.deadLetter(ctx, log, msg, fmt.Errorf("encode envelope: %w", err))
		return
	}

	if err := p.publisher.Publish(ctx, msg.RoutingKey, body); err != nil {
		log.Warn("publish failed", "retry_count", msg.RetryCount, "error", err)
		if msg.FinalAttempt(p.cfg.MaxRetries) {
			p.deadLetter(ctx, log, msg, err)
			return
		}
		p.stats.failure(&p.stats.failed, err)
		next := p.now().Add(p.backoff(msg.RetryCount + 1))
		if markErr := p.repo.MarkFailed(ctx, msg.ID, err.Error(), next); markErr != nil {
			log.Error("failed to record publish failure", "error", markErr)
		}
		return
	}

	if err := p.repo.MarkPublished(ctx, msg.ID); err != nil {
		// The row is relayed again on the next poll.
		log.Error("failed to mark published", "error", err)
		return
	}
	p.stats.count(&p.stats.published)
	p.metrics.Counter(observability.MetricOutboxPublished, 1)
}

func (p *Processor) deadLetter(ctx context.Context, log *slog.Logger, msg *Message, cause error) {
	p.stats.failure(&p.stats.dead, cause)
	log.Error("outbox message dead-lettered", "error", cause)
	if err := p.repo.MarkDead(ctx, msg.ID, cause.Error()); err != nil {
		log.Error("failed to dead-letter message", "error", err)
	}
}

// backoff doubles from RetryBackoffBase for each attempt, capped at
// RetryBackoffMax.
func (p *Processor) backoff(attempt int) time.Duration {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = p.cfg.RetryBackoffBase
	b.MaxInterval = p.cfg.RetryBackoffMax
	b.Multiplier = 2
	b.RandomizationFactor = 0
	b.MaxElapsedTime = 0
	b.Reset()

	delay := b.NextBackOff()
	for i := 1; i < attempt && delay < p.cfg.RetryBackoffMax; i++ {
		delay = b.NextBackOff()
	}
	return delay
}

func (p *Processor) cleanup(ctx context.Context) {
	if p.cfg.RetentionDays <= 0 {
		return
	}
	deleted, err := p.repo.DeleteOld(ctx, p.cfg.RetentionDays)
	if err != nil {
		p.logger.Warn("outbox cleanup failed", "error", err)
		return
	}
	if deleted > 0 {
		p.logger.Debug("outbox cleaned up", "deleted", deleted)
	}
}

// Stats reports what the processor has done since it was created.
type Stats struct {
	IsRunning       bool
	PublishedCount  uint64
	FailedCount     uint64
	DeadCount       uint64
	LagSeconds      float64
	LastError       string
	LastErrorAt     *time.Time
	LastProcessedAt *time.Time
	OldestMessageAt *time.Time
}

// GetStats returns a snapshot of the counters.
func (p *Processor) GetStats() Stats {
	return p.stats.snapshot()
}

// statsRecorder guards Stats for the CLI stats logger, which reads it from
// another goroutine.
type statsRecorder struct {
	mu        sync.Mutex
	s         Stats
	published uint64
	failed    uint64
	dead      uint64
	now       func() time.Time
}

func (r *statsRecorder) running(on bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.s.IsRunning = on
}

func (r *statsRecorder) count(counter *uint64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	*counter++
}

// failure bumps counter, when given, and records err as the last error.
func (r *statsRecorder) failure(counter *uint64, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if counter != nil {
		*counter++
	}
	at := r.now()
	r.s.LastError = err.Error()
	r.s.LastErrorAt = &at
}

// polled records a poll and returns the age in seconds of the oldest
// waiting message.
func (r *statsRecorder) polled(messages []*Message) float64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	at := r.now()
	r.s.LastProcessedAt = &at
	r.s.OldestMessageAt = nil
	r.s.LagSeconds = 0
	for _, msg := range messages {
		if r.s.OldestMessageAt == nil || msg.CreatedAt.Before(*r.s.OldestMessageAt) {
			oldest := msg.CreatedAt
			r.s.OldestMessageAt = &oldest
		}
	}
	if r.s.OldestMessageAt != nil {
		r.s.LagSeconds = at.Sub(*r.s.OldestMessageAt).Seconds()
	}
	return r.s.LagSeconds
}

func (r *statsRecorder) snapshot() Stats {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := r.s
	out.PublishedCount = r.published
	out.FailedCount = r.failed
	out.DeadCount = r.dead
	return out
}
