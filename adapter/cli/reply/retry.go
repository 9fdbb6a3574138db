package reply

import (
	"fmt"

	"github.com/felixgeelhaar/talentreach/adapter/cli"
	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

var retryCmd = &cobra.Command{
	Use:   "retry [pending-reply-id]",
	Short: "Resend a reply that failed to send",
	Long: `Resend the stored text of a parked reply. On success the message is
recorded on the conversation and the stage it was meant to reach is applied.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		app := cli.GetApp()
		if app == nil || app.Orchestrator == nil {
			return fmt.Errorf("application not initialized - database connection required")
		}

		replyID, err := uuid.Parse(args[0])
		if err != nil {
			return fmt.Errorf("invalid pending reply ID: %w", err)
		}

		outcome, err := app.Orchestrator.RetryPendingReply(cmd.Context(), app.TenantID, replyID)
		if err != nil {
			return fmt.Errorf("failed to retry reply: %w", err)
		}

		fmt.Printf("Reply delivered on conversation %s\n", outcome.ConversationID)
		if outcome.NewStage != "" {
			fmt.Printf("  stage: %s\n", outcome.NewStage)
		}
		return nil
	},
}
