package external

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/felixgeelhaar/talentreach/pkg/observability"
	"github.com/sony/gobreaker/v2"
)

// BreakerConfig configures a circuit breaker around one capability.
type BreakerConfig struct {
	Name        string
	MaxFailures uint32
	OpenTimeout time.Duration
}

// Breaker runs capability calls through a gobreaker circuit breaker and
// records the outcome as metrics.
type Breaker struct {
	name    string
	cb      *gobreaker.CircuitBreaker[struct{}]
	metrics observability.Metrics
}

// NewBreaker creates a breaker. Only transient failures count towards
// tripping it; a not-found or unauthorized answer means the remote side is up.
func NewBreaker(cfg BreakerConfig, metrics observability.Metrics, logger *slog.Logger) *Breaker {
	if logger == nil {
		logger = slog.Default()
	}
	if metrics == nil {
		metrics = observability.NoopMetrics{}
	}
	if cfg.MaxFailures == 0 {
		cfg.MaxFailures = 5
	}
	if cfg.OpenTimeout <= 0 {
		cfg.OpenTimeout = 30 * time.Second
	}

	settings := gobreaker.Settings{
		Name:        cfg.Name,
		MaxRequests: 1,
		Timeout:     cfg.OpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= cfg.MaxFailures
		},
		IsSuccessful: func(err error) bool {
			return err == nil || !IsTransient(err)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("circuit breaker state changed",
				"breaker", name,
				"from", from.String(),
				"to", to.String(),
			)
		},
	}

	return &Breaker{
		name:    cfg.Name,
		cb:      gobreaker.NewCircuitBreaker[struct{}](settings),
		metrics: metrics,
	}
}

// Do runs fn under the breaker. The returned error is always classified; an
// open breaker surfaces as KindUnknown wrapping gobreaker.ErrOpenState.
func (b *Breaker) Do(ctx context.Context, op string, fn func(ctx context.Context) error) error {
	start := time.Now()
	_, err := b.cb.Execute(func() (struct{}, error) {
		return struct{}{}, fn(ctx)
	})
	b.metrics.Timing(observability.MetricExternalCallDuration, time.Since(start), observability.T("op", op))

	if err != nil && isBreakerRejection(err) {
		err = &Error{Op: op, Kind: KindUnknown, Err: err}
	}
	err = Classify(op, err)

	kind := "ok"
	if err != nil {
		kind = string(KindOf(err))
	}
	b.metrics.Counter(observability.MetricExternalCalls, 1, observability.T("op", op), observability.T("kind", kind))
	return err
}

// State returns the current breaker state name.
func (b *Breaker) State() string {
	return b.cb.State().String()
}

// IsOpen reports whether err came from a rejected call.
func IsOpen(err error) bool {
	return errors.Is(err, gobreaker.ErrOpenState)
}
