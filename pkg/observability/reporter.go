package observability

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/getsentry/sentry-go"
)

// ErrorReporter surfaces failures that need an operator's attention.
type ErrorReporter interface {
	Report(ctx context.Context, err error, kind string, fields map[string]string)
}

// NoopReporter only logs at debug level.
type NoopReporter struct {
	Logger *slog.Logger
}

// Report implements ErrorReporter.
func (r NoopReporter) Report(ctx context.Context, err error, kind string, _ map[string]string) {
	if r.Logger != nil {
		r.Logger.DebugContext(ctx, "error report suppressed", "kind", kind, "error", err)
	}
}

// SentryConfig configures the Sentry reporter.
type SentryConfig struct {
	DSN         string
	Environment string
	Release     string
}

// SentryReporter sends reports to Sentry.
type SentryReporter struct{}

// NewSentryReporter initializes the global Sentry client.
func NewSentryReporter(cfg SentryConfig) (*SentryReporter, error) {
	err := sentry.Init(sentry.ClientOptions{
		Dsn:         cfg.DSN,
		Environment: cfg.Environment,
		Release:     cfg.Release,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize sentry: %w", err)
	}
	return &SentryReporter{}, nil
}

// Report captures err with kind as a tag and fields as extras.
func (r *SentryReporter) Report(ctx context.Context, err error, kind string, fields map[string]string) {
	sentry.WithScope(func(scope *sentry.Scope) {
		scope.SetTag("error_type", kind)
		if id := CorrelationIDFromContext(ctx); id != "" {
			scope.SetTag(CorrelationIDKey, id)
		}
		for k, v := range fields {
			scope.SetExtra(k, v)
		}
		sentry.CaptureException(err)
	})
}

// Flush waits for buffered events to be sent.
func (r *SentryReporter) Flush(timeout time.Duration) bool {
	return sentry.Flush(timeout)
}

// RecordingReporter keeps reports in memory. Tests assert against it.
type RecordingReporter struct {
	mu      sync.Mutex
	reports []CapturedReport
}

// CapturedReport is one error seen by a RecordingReporter.
type CapturedReport struct {
	Err    error
	Kind   string
	Fields map[string]string
}

// Report implements ErrorReporter.
func (r *RecordingReporter) Report(_ context.Context, err error, kind string, fields map[string]string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.reports = append(r.reports, CapturedReport{Err: err, Kind: kind, Fields: fields})
}

// Reports returns a copy of everything captured so far.
func (r *RecordingReporter) Reports() []CapturedReport {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]CapturedReport(nil), r.reports...)
}
