package escalation

import (
	"fmt"

	"github.com/felixgeelhaar/talentreach/adapter/cli"
	"github.com/felixgeelhaar/talentreach/internal/conversations/application/queries"
	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

var showCmd = &cobra.Command{
	Use:   "show [conversation-id|channel-id]",
	Short: "Show a conversation with its transcript",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		app := cli.GetApp()
		if app == nil || app.GetConversationHandler == nil {
			return fmt.Errorf("application not initialized - database connection required")
		}

		query := queries.GetConversationQuery{TenantID: app.TenantID}
		if id, err := uuid.Parse(args[0]); err == nil {
			query.ConversationID = id
		} else {
			query.ExternalChannelID = args[0]
		}

		conv, err := app.GetConversationHandler.Handle(cmd.Context(), query)
		if err != nil {
			return fmt.Errorf("failed to load conversation: %w", err)
		}

		if cli.JSONOutput() {
			return cli.PrintJSON(conv)
		}
		fmt.Printf("Conversation %s\n", conv.ID)
		fmt.Printf("  channel:   %s\n", conv.ExternalChannelID)
		fmt.Printf("  candidate: %s %s\n", conv.CandidateExternalID, conv.CandidateName)
		fmt.Printf("  stage:     %s\n", conv.Stage)
		fmt.Printf("  status:    %s\n", conv.Status)
		if conv.EscalationReason != "" {
			fmt.Printf("  reason:    %s\n", conv.EscalationReason)
		}
		fmt.Println()
		for _, m := range conv.Messages {
			fmt.Printf("[%s] %-9s %s\n", m.CreatedAt.Format("2006-01-02 15:04"), m.Role, m.Content)
		}
		return nil
	},
}
