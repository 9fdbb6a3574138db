package escalation

import (
	"fmt"

	"github.com/felixgeelhaar/talentreach/adapter/cli"
	"github.com/felixgeelhaar/talentreach/internal/conversations/application/queries"
	"github.com/spf13/cobra"
)

var limit int

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List escalated conversations",
	RunE: func(cmd *cobra.Command, args []string) error {
		app := cli.GetApp()
		if app == nil || app.ListEscalationsHandler == nil {
			return fmt.Errorf("application not initialized - database connection required")
		}

		escalations, err := app.ListEscalationsHandler.Handle(cmd.Context(), queries.ListEscalationsQuery{
			TenantID: app.TenantID,
			Limit:    limit,
		})
		if err != nil {
			return fmt.Errorf("failed to list escalations: %w", err)
		}

		if cli.JSONOutput() {
			return cli.PrintJSON(escalations)
		}
		if len(escalations) == 0 {
			fmt.Println("No escalated conversations.")
			return nil
		}

		for _, c := range escalations {
			name := c.CandidateName
			if name == "" {
				name = c.CandidateExternalID
			}
			fmt.Printf("%s  %-20s  %-14s  %s\n", c.ID, name, c.Stage, c.EscalationReason)
		}
		return nil
	},
}

func init() {
	listCmd.Flags().IntVarP(&limit, "limit", "l", 50, "maximum number of conversations")
}
