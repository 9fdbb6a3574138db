// Package observability provides structured logging, metrics, health checks
// and operator error reporting for talentreach.
package observability

import (
	"context"
	"io"
	"log/slog"
	"os"
	"strings"
)

// LogFormat selects the slog handler.
type LogFormat string

const (
	LogFormatText LogFormat = "text"
	LogFormatJSON LogFormat = "json"
)

// LogLevel is a slog level name. Offsets such as "info+2" are accepted.
type LogLevel string

const (
	LogLevelDebug LogLevel = "debug"
	LogLevelInfo  LogLevel = "info"
	LogLevelWarn  LogLevel = "warn"
	LogLevelError LogLevel = "error"
)

// LogConfig configures NewLogger.
type LogConfig struct {
	Level          LogLevel
	Format         LogFormat
	Output         io.Writer
	AddSource      bool
	ServiceName    string
	ServiceVersion string
}

// DefaultLogConfig logs text at info level to stderr.
func DefaultLogConfig() LogConfig {
	return LogConfig{
		Level:          LogLevelInfo,
		Format:         LogFormatText,
		Output:         os.Stderr,
		ServiceName:    "talentreach",
		ServiceVersion: "dev",
	}
}

// LogConfigFor derives logger settings from APP_ENV, LOG_LEVEL and
// LOG_FORMAT. Production logs JSON with source locations to stdout unless
// level or format say otherwise.
func LogConfigFor(env, level, format, version string) LogConfig {
	cfg := DefaultLogConfig()
	if env == "production" {
		cfg.Format, cfg.Output, cfg.AddSource = LogFormatJSON, os.Stdout, true
	}
	if level != "" {
		cfg.Level = LogLevel(strings.ToLower(level))
	}
	if format != "" {
		cfg.Format = LogFormat(strings.ToLower(format))
	}
	if version != "" {
		cfg.ServiceVersion = version
	}
	return cfg
}

// NewLogger builds the process logger. Records carry the service name and
// version, and the correlation and request ids found on the context.
func NewLogger(cfg LogConfig) *slog.Logger {
	out := cfg.Output
	if out == nil {
		out = os.Stderr
	}
	opts := &slog.HandlerOptions{Level: parseSlogLevel(cfg.Level), AddSource: cfg.AddSource}

	var h slog.Handler = slog.NewTextHandler(out, opts)
	if cfg.Format == LogFormatJSON {
		h = slog.NewJSONHandler(out, opts)
	}

	var static []slog.Attr
	for _, attr := range []slog.Attr{
		slog.String("service", cfg.ServiceName),
		slog.String("version", cfg.ServiceVersion),
	} {
		if attr.Value.String() != "" {
			static = append(static, attr)
		}
	}
	if len(static) > 0 {
		h = h.WithAttrs(static)
	}
	return slog.New(contextHandler{next: h})
}

// parseSlogLevel falls back to info for names slog does not know.
func parseSlogLevel(level LogLevel) slog.Level {
	var l slog.Level
	if err := l.UnmarshalText([]byte(level)); err != nil {
		return slog.LevelInfo
	}
	return l
}

// contextHandler appends the ids carried by the context to every record.
type contextHandler struct {
	next slog.Handler
}

func (h contextHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.next.Enabled(ctx, level)
}

func (h contextHandler) Handle(ctx context.Context, r slog.Record) error {
	ids := idsFrom(ctx)
	if ids.correlation != "" {
		r.AddAttrs(slog.String(CorrelationIDKey, ids.correlation))
	}
	if ids.request != "" {
		r.AddAttrs(slog.String(RequestIDKey, ids.request))
	}
	return h.next.Handle(ctx, r)
}

func (h contextHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return contextHandler{next: h.next.WithAttrs(attrs)}
}

func (h contextHandler) WithGroup(name string) slog.Handler {
	return contextHandler{next: h.next.WithGroup(name)}
}

// DiscardLogger drops everything. Tests use it.
func DiscardLogger() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}
