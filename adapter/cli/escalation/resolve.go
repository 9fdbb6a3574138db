package escalation

import (
	"fmt"

	"github.com/felixgeelhaar/talentreach/adapter/cli"
	"github.com/felixgeelhaar/talentreach/internal/conversations/application/commands"
	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

var resolveCmd = &cobra.Command{
	Use:   "resolve [conversation-id]",
	Short: "Hand an escalated conversation back to automation",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		app := cli.GetApp()
		if app == nil || app.ResolveEscalationHandler == nil {
			return fmt.Errorf("application not initialized - database connection required")
		}

		conversationID, err := uuid.Parse(args[0])
		if err != nil {
			return fmt.Errorf("invalid conversation ID: %w", err)
		}

		conv, err := app.ResolveEscalationHandler.Handle(cmd.Context(), commands.ResolveEscalationCommand{
			TenantID:       app.TenantID,
			ConversationID: conversationID,
		})
		if err != nil {
			return fmt.Errorf("failed to resolve escalation: %w", err)
		}

		fmt.Printf("Escalation resolved: %s (status %s)\n", conv.ID(), conv.Status())
		return nil
	},
}
