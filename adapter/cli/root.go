// Package cli is the operator command line. Subcommand packages register on
// the root command through AddCommand and reach the application through
// GetApp.
package cli

import (
	"context"
	"encoding/json"
	"log/slog"
	"os"
	"time"

	"github.com/felixgeelhaar/talentreach/pkg/observability"
	"github.com/spf13/cobra"
)

var (
	jsonOutput bool
	logger     *slog.Logger
)

type startedAtKey struct{}

var rootCmd = &cobra.Command{
	Use:   "talentreach",
	Short: "talentreach - candidate outreach automation",
	Long: `talentreach runs recruiting outreach end to end: connection invites,
pitches and follow-ups, AI-drafted replies to candidates, escalation to a
human when a conversation needs one, and fair rotation of scheduling links.

Run "talentreach serve" for the webhook API, workers and MCP server, or use
the subcommands to operate resources, escalations and parked replies.`,
	SilenceErrors: true,
	// Every command runs under its own correlation id, which the logger
	// picks up from the context.
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		ctx := observability.WithCorrelationID(cmd.Context(), "")
		ctx = context.WithValue(ctx, startedAtKey{}, time.Now())
		cmd.SetContext(ctx)
		Logger().InfoContext(ctx, "command start", "command", cmd.CommandPath())
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		ctx := cmd.Context()
		startedAt, ok := ctx.Value(startedAtKey{}).(time.Time)
		if !ok {
			return
		}
		Logger().InfoContext(ctx, "command end",
			"command", cmd.CommandPath(),
			"duration_ms", time.Since(startedAt).Milliseconds(),
		)
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "print results as JSON")
}

// ExecuteContext runs the command line under ctx.
func ExecuteContext(ctx context.Context) error {
	return rootCmd.ExecuteContext(ctx)
}

// AddCommand registers top-level commands.
func AddCommand(cmds ...*cobra.Command) {
	rootCmd.AddCommand(cmds...)
}

// JSONOutput reports whether --json was given.
func JSONOutput() bool {
	return jsonOutput
}

// PrintJSON writes v to stdout as indented JSON.
func PrintJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// SetLogger replaces the command logger.
func SetLogger(l *slog.Logger) {
	logger = l
}

// Logger returns the command logger, or slog.Default when none was set.
func Logger() *slog.Logger {
	if logger == nil {
		return slog.Default()
	}
	return logger
}
