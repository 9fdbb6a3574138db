// Package mcp exposes the operator MCP server on the command line.
package mcp

import (
	"context"
	"errors"
	"fmt"

	"github.com/felixgeelhaar/talentreach/adapter/cli"
	mcpinternal "github.com/felixgeelhaar/talentreach/internal/mcp"
	"github.com/spf13/cobra"
)

// Cmd is the MCP command group.
var Cmd = &cobra.Command{
	Use:   "mcp",
	Short: "Operator tools over the Model Context Protocol",
	Long: `The MCP server lets an agent list escalations, read transcripts,
resolve escalations, retry parked replies and manage scheduling resources.`,
}

var addr string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the MCP server",
	Long: `Serve the operator tools over HTTP. Set MCP_AUTH_TOKEN to require a
bearer token.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		app := cli.GetApp()
		if app == nil || app.Container == nil {
			return fmt.Errorf("application not initialized - database connection required")
		}

		cfg := *app.Container.Config
		if addr != "" {
			cfg.MCPAddr = addr
		}

		err := mcpinternal.Serve(cmd.Context(), &cfg, app, cli.Logger())
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return err
	},
}

func init() {
	serveCmd.Flags().StringVar(&addr, "addr", "", "listen address (defaults to MCP_ADDR)")
	Cmd.AddCommand(serveCmd)
}
