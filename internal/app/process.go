package app

import (
	"context"
	"fmt"
	"log/slog"
	"os/signal"
	"syscall"

	"github.com/felixgeelhaar/talentreach/pkg/config"
	"github.com/felixgeelhaar/talentreach/pkg/observability"
)

// Process is what every binary sets up before building the container.
type Process struct {
	// Ctx is canceled on SIGINT or SIGTERM, or by Stop.
	Ctx    context.Context
	Config *config.Config
	Logger *slog.Logger

	stop context.CancelFunc
}

// StartProcess loads the config and installs the process logger as the slog
// default. A non-empty name is added to every record as "process".
func StartProcess(name, version string) (*Process, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	logger := observability.NewLogger(observability.LogConfigFor(cfg.AppEnv, cfg.LogLevel, cfg.LogFormat, version))
	if name != "" {
		logger = logger.With("process", name)
	}
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	return &Process{Ctx: ctx, Config: cfg, Logger: logger, stop: stop}, nil
}

// Stop releases the signal handler and cancels Ctx.
func (p *Process) Stop() {
	p.stop()
}
