package reply

import (
	"fmt"

	"github.com/felixgeelhaar/talentreach/adapter/cli"
	"github.com/spf13/cobra"
)

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List replies waiting for a resend",
	RunE: func(cmd *cobra.Command, args []string) error {
		app := cli.GetApp()
		if app == nil || app.ListPendingRepliesHandler == nil {
			return fmt.Errorf("application not initialized - database connection required")
		}

		replies, err := app.ListPendingRepliesHandler.Handle(cmd.Context(), app.TenantID)
		if err != nil {
			return fmt.Errorf("failed to list pending replies: %w", err)
		}

		if cli.JSONOutput() {
			return cli.PrintJSON(replies)
		}
		if len(replies) == 0 {
			fmt.Println("No pending replies.")
			return nil
		}

		for _, r := range replies {
			fmt.Printf("%s  conversation %s  attempts %d\n", r.ID, r.ConversationID, r.Attempts)
			fmt.Printf("    last error: %s\n", r.LastError)
		}
		return nil
	},
}
