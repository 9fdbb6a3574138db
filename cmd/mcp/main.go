// Command talentreach-mcp serves the operator MCP tools on their own.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/felixgeelhaar/talentreach/adapter/cli"
	"github.com/felixgeelhaar/talentreach/internal/app"
	mcpinternal "github.com/felixgeelhaar/talentreach/internal/mcp"
)

func main() {
	os.Exit(run())
}

func run() int {
	proc, err := app.StartProcess("mcp", cli.Version)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	defer proc.Stop()

	container, err := app.NewContainer(proc.Ctx, proc.Config, proc.Logger)
	if err != nil {
		proc.Logger.Error("failed to initialize container", "error", err)
		return 1
	}
	defer container.Close()

	err = mcpinternal.Serve(proc.Ctx, proc.Config, cli.NewApp(container), proc.Logger)
	if err != nil && !errors.Is(err, context.Canceled) {
		proc.Logger.Error("mcp server failed", "error", err)
		return 1
	}
	return 0
}
