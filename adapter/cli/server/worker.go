package server

import (
	"fmt"

	"github.com/felixgeelhaar/talentreach/adapter/cli"
	"github.com/spf13/cobra"
)

var workerCmd = &cobra.Command{
	Use:   "worker",
	Short: "Run the background worker",
	Long: `Run the outbox processor, the follow-up scheduler, the broker consumer
and the CalDAV poller. Health and metrics are served on WORKER_HEALTH_ADDR.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		app := cli.GetApp()
		if app == nil || app.Container == nil {
			return fmt.Errorf("application not initialized - database connection required")
		}
		c := app.Container
		logger := cli.Logger()

		runners := c.Runners()
		if c.Config.OutboxProcessorEnabled {
			runners = append(runners, statsRunner(c, logger))
		}
		if c.Config.WorkerHealthAddr != "" {
			runners = append(runners, healthRunner(c, c.Config.WorkerHealthAddr, logger))
		}

		logger.Info("starting worker", "runners", len(runners))
		err := runGroup(cmd.Context(), logger, runners)
		logger.Info("worker stopped")
		return err
	},
}
