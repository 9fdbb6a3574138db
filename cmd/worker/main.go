// Command talentreach-worker runs only the background loops, for
// deployments that scale them apart from the webhook API.
package main

import (
	"fmt"
	"os"

	"github.com/felixgeelhaar/talentreach/adapter/cli"
	"github.com/felixgeelhaar/talentreach/adapter/cli/server"
	"github.com/felixgeelhaar/talentreach/internal/app"
)

func main() {
	os.Exit(run())
}

func run() int {
	proc, err := app.StartProcess("worker", cli.Version)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	defer proc.Stop()
	cli.SetLogger(proc.Logger)

	container, err := app.NewContainer(proc.Ctx, proc.Config, proc.Logger)
	if err != nil {
		proc.Logger.Error("failed to initialize container", "error", err)
		return 1
	}
	defer container.Close()
	cli.SetApp(cli.NewApp(container))

	server.WorkerCmd.SetArgs([]string{})
	if err := server.WorkerCmd.ExecuteContext(proc.Ctx); err != nil {
		proc.Logger.Error("worker failed", "error", err)
		return 1
	}
	return 0
}
