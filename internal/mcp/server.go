// Package mcp runs the operator MCP server over HTTP.
package mcp

import (
	"context"
	"errors"
	"log/slog"

	mcpgo "github.com/felixgeelhaar/mcp-go"
	"github.com/felixgeelhaar/mcp-go/middleware"
	"github.com/felixgeelhaar/talentreach/adapter/cli"
	mcplocal "github.com/felixgeelhaar/talentreach/adapter/mcp"
	"github.com/felixgeelhaar/talentreach/pkg/config"
)

// operatorIdentity is attached to requests that present MCP_AUTH_TOKEN.
var operatorIdentity = &middleware.Identity{ID: "operator", Name: "operator"}

// NewServer registers the tools, resources and prompts against cliApp.
func NewServer(cliApp *cli.App) (*mcpgo.Server, error) {
	if cliApp == nil {
		return nil, errors.New("CLI app is required")
	}

	srv := mcpgo.NewServer(mcpgo.ServerInfo{
		Name:    "talentreach-mcp",
		Version: cli.Version,
		Capabilities: mcpgo.Capabilities{
			Tools:     true,
			Resources: true,
			Prompts:   true,
		},
	})

	deps := mcplocal.ToolDependencies{App: cliApp}
	for _, register := range []func(*mcpgo.Server, mcplocal.ToolDependencies) error{
		mcplocal.RegisterCLITools,
		mcplocal.RegisterResources,
		mcplocal.RegisterPrompts,
	} {
		if err := register(srv, deps); err != nil {
			return nil, err
		}
	}
	return srv, nil
}

// Serve listens on cfg.MCPAddr until ctx is canceled.
func Serve(ctx context.Context, cfg *config.Config, cliApp *cli.App, logger *slog.Logger) error {
	if cfg == nil {
		return errors.New("config is required")
	}
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "mcp_server")

	srv, err := NewServer(cliApp)
	if err != nil {
		return err
	}
	if cfg.MCPAuthToken == "" {
		logger.Warn("MCP_AUTH_TOKEN not set, requests are unauthenticated")
	}

	logger.Info("mcp server listening", "addr", cfg.MCPAddr)
	return mcpgo.ServeHTTPWithMiddleware(ctx, srv, cfg.MCPAddr, nil,
		mcpgo.WithMiddleware(middlewareStack(cfg.MCPAuthToken, logger)...))
}

// middlewareStack is the default stack, behind bearer auth when token is set.
func middlewareStack(token string, logger *slog.Logger) []middleware.Middleware {
	log := mcpLogger{logger: logger}
	stack := middleware.DefaultStack(log)
	if token == "" {
		return stack
	}
	auth := middleware.Auth(
		middleware.BearerTokenAuthenticator(middleware.StaticTokens(map[string]*middleware.Identity{token: operatorIdentity})),
		middleware.WithAuthLogger(log),
	)
	return append([]middleware.Middleware{auth}, stack...)
}

// mcpLogger adapts slog to the middleware logger.
type mcpLogger struct {
	logger *slog.Logger
}

func (l mcpLogger) Debug(msg string, fields ...middleware.Field) { l.log(slog.LevelDebug, msg, fields) }
func (l mcpLogger) Info(msg string, fields ...middleware.Field)  { l.log(slog.LevelInfo, msg, fields) }
func (l mcpLogger) Warn(msg string, fields ...middleware.Field)  { l.log(slog.LevelWarn, msg, fields) }
func (l mcpLogger) Error(msg string, fields ...middleware.Field) { l.log(slog.LevelError, msg, fields) }

func (l mcpLogger) log(level slog.Level, msg string, fields []middleware.Field) {
	args := make([]any, 0, 2*len(fields))
	for _, f := range fields {
		args = append(args, f.Key, f.Value)
	}
	l.logger.Log(context.Background(), level, msg, args...)
}
