// Package mcp registers the operator tools, resources and prompts on an MCP
// server. Every handler goes through the same application handlers the CLI
// uses.
package mcp

import (
	"context"
	"errors"

	"github.com/felixgeelhaar/mcp-go"
	"github.com/felixgeelhaar/talentreach/adapter/cli"
	"github.com/felixgeelhaar/talentreach/pkg/observability"
)

// ToolDependencies is what the tool handlers run against.
type ToolDependencies struct {
	App *cli.App
}

type registrar func(*mcp.Server, ToolDependencies) error

// RegisterCLITools registers the system, conversation and resource tools.
func RegisterCLITools(srv *mcp.Server, deps ToolDependencies) error {
	if srv == nil {
		return errors.New("server is required")
	}
	if deps.App == nil {
		return errors.New("app is required")
	}

	for _, register := range []registrar{
		registerSystemTools,
		registerConversationTools,
		registerResourceTools,
	} {
		if err := register(srv, deps); err != nil {
			return err
		}
	}
	return nil
}

type systemTools struct {
	app *cli.App
}

func registerSystemTools(srv *mcp.Server, deps ToolDependencies) error {
	tools := systemTools{app: deps.App}

	srv.Tool("system.health").
		Description("Report database, cache and broker health").
		Handler(tools.health)

	srv.Tool("system.version").
		Description("Report the server build").
		Handler(tools.version)

	return nil
}

// health reports healthy in limited mode, where no dependencies are wired.
func (t systemTools) health(ctx context.Context, _ struct{}) (observability.OverallHealth, error) {
	if t.app.Container == nil {
		return observability.OverallHealth{Status: observability.HealthStatusHealthy}, nil
	}
	return t.app.Container.Health.Check(ctx), nil
}

func (t systemTools) version(context.Context, struct{}) (cli.BuildInfo, error) {
	return cli.CurrentBuild(), nil
}
