package server

import (
	"context"
	"fmt"

	"github.com/felixgeelhaar/talentreach/adapter/api"
	"github.com/felixgeelhaar/talentreach/adapter/cli"
	internalApp "github.com/felixgeelhaar/talentreach/internal/app"
	mcpinternal "github.com/felixgeelhaar/talentreach/internal/mcp"
	"github.com/spf13/cobra"
)

var (
	withWorker bool
	withMCP    bool
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve provider webhooks",
	Long: `Serve the webhook endpoints, /health and /metrics on HTTP_ADDR.

With --worker the background loops run in the same process, which is the
usual setup for local mode. With --mcp the operator MCP server listens on
MCP_ADDR as well.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		app := cli.GetApp()
		if app == nil || app.Container == nil {
			return fmt.Errorf("application not initialized - database connection required")
		}
		c := app.Container
		cfg := c.Config
		logger := cli.Logger()

		webhooks := api.NewWebhookHandler(api.WebhookHandlerConfig{
			Dispatcher: c.Dispatcher,
			Secrets: api.WebhookSecrets{
				Messaging: cfg.WebhookMessagingSecret,
				Calendar:  cfg.WebhookCalendarSecret,
				Delivery:  cfg.WebhookDeliverySecret,
			},
			Metrics: c.Metrics,
			Logger:  logger,
		})
		if cfg.WebhookMessagingSecret == "" || cfg.WebhookCalendarSecret == "" || cfg.WebhookDeliverySecret == "" {
			logger.Warn("webhook secret missing; signature checks are disabled for that source")
		}

		serverCfg := api.DefaultServerConfig()
		serverCfg.Addr = cfg.HTTPAddr
		srv := api.NewServer(serverCfg, webhooks, c.Health, c.MetricsHandler, logger)

		runners := []internalApp.Runner{{Name: "api_server", Run: srv.Run}}
		if withWorker {
			runners = append(runners, c.Runners()...)
		}
		if withMCP {
			runners = append(runners, internalApp.Runner{Name: "mcp_server", Run: func(ctx context.Context) error {
				return mcpinternal.Serve(ctx, cfg, app, logger)
			}})
		}

		return runGroup(cmd.Context(), logger, runners)
	},
}

func init() {
	serveCmd.Flags().BoolVar(&withWorker, "worker", false, "also run the background worker loops")
	serveCmd.Flags().BoolVar(&withMCP, "mcp", false, "also serve the operator MCP interface")
}
