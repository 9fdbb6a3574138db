package reply

import (
	"fmt"
	"strings"

	"github.com/felixgeelhaar/talentreach/adapter/cli"
	"github.com/felixgeelhaar/talentreach/internal/conversations/application/commands"
	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

var sendCmd = &cobra.Command{
	Use:   "send [conversation-id] [text...]",
	Short: "Send an operator-written reply",
	Long: `Send text on a conversation as the operator. The conversation keeps
its status, so an escalated conversation stays with the human.`,
	Args: cobra.MinimumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		app := cli.GetApp()
		if app == nil || app.SendManualReplyHandler == nil {
			return fmt.Errorf("application not initialized - database connection required")
		}

		conversationID, err := uuid.Parse(args[0])
		if err != nil {
			return fmt.Errorf("invalid conversation ID: %w", err)
		}

		conv, err := app.SendManualReplyHandler.Handle(cmd.Context(), commands.SendManualReplyCommand{
			TenantID:       app.TenantID,
			ConversationID: conversationID,
			Text:           strings.Join(args[1:], " "),
		})
		if err != nil {
			return fmt.Errorf("failed to send reply: %w", err)
		}

		fmt.Printf("Reply sent on conversation %s\n", conv.ID())
		return nil
	},
}
