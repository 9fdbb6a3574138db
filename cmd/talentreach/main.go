// Command talentreach is the operator CLI. It also runs the webhook server
// and the worker loops.
package main

import (
	"fmt"
	"os"

	"github.com/felixgeelhaar/talentreach/adapter/cli"
	"github.com/felixgeelhaar/talentreach/adapter/cli/escalation"
	"github.com/felixgeelhaar/talentreach/adapter/cli/mcp"
	"github.com/felixgeelhaar/talentreach/adapter/cli/outreach"
	"github.com/felixgeelhaar/talentreach/adapter/cli/reply"
	"github.com/felixgeelhaar/talentreach/adapter/cli/resource"
	"github.com/felixgeelhaar/talentreach/adapter/cli/server"
	"github.com/felixgeelhaar/talentreach/internal/app"
)

func main() {
	os.Exit(run())
}

func run() int {
	proc, err := app.StartProcess("", cli.Version)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	defer proc.Stop()
	cli.SetLogger(proc.Logger)

	// Development falls back to limited mode so version, health and
	// migrate still run without a database.
	container, err := app.NewContainer(proc.Ctx, proc.Config, proc.Logger)
	switch {
	case err == nil:
		defer container.Close()
		cli.SetApp(cli.NewApp(container))
	case proc.Config.IsDevelopment():
		proc.Logger.Warn("failed to initialize container, running in limited mode", "error", err)
	default:
		proc.Logger.Error("failed to initialize container", "error", err)
		return 1
	}

	cli.AddCommand(
		resource.Cmd,
		outreach.Cmd,
		escalation.Cmd,
		reply.Cmd,
		mcp.Cmd,
		server.ServeCmd,
		server.WorkerCmd,
	)

	if err := cli.ExecuteContext(proc.Ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	return 0
}
