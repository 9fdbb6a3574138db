package outreach

import (
	"fmt"

	"github.com/felixgeelhaar/talentreach/adapter/cli"
	"github.com/felixgeelhaar/talentreach/internal/outreach/application/commands"
	"github.com/spf13/cobra"
)

var (
	candidateName string
	campaignRef   string
	jobRef        string
	note          string
)

var startCmd = &cobra.Command{
	Use:   "start [candidate-id]",
	Short: "Send a connection invite to a candidate",
	Long: `Create an outreach attempt for a candidate in a campaign and send the
connection invite. Running it again for the same campaign resends the invite
only while the attempt has not progressed.

Examples:
  talentreach outreach start ACoAAB123 --name "Jane Doe" --campaign backend-q3
  talentreach outreach start ACoAAB123 --campaign backend-q3 --job JOB-42 --note "Loved your talk"`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		app := cli.GetApp()
		if app == nil || app.StartOutreachHandler == nil {
			return fmt.Errorf("application not initialized - database connection required")
		}

		attempt, err := app.StartOutreachHandler.Handle(cmd.Context(), commands.StartOutreachCommand{
			TenantID:            app.TenantID,
			CandidateExternalID: args[0],
			CandidateName:       candidateName,
			CampaignRef:         campaignRef,
			JobRef:              jobRef,
			Note:                note,
		})
		if err != nil {
			if attempt != nil {
				fmt.Printf("Attempt %s recorded, invite not sent\n", attempt.ID())
			}
			return fmt.Errorf("failed to start outreach: %w", err)
		}

		if cli.JSONOutput() {
			return cli.PrintJSON(map[string]any{
				"attempt_id": attempt.ID(),
				"candidate":  attempt.CandidateExternalID(),
				"campaign":   attempt.CampaignRef(),
				"status":     attempt.Status(),
			})
		}
		fmt.Printf("Outreach started: %s\n", attempt.ID())
		fmt.Printf("  candidate: %s\n", attempt.CandidateExternalID())
		fmt.Printf("  campaign:  %s\n", attempt.CampaignRef())
		fmt.Printf("  status:    %s\n", attempt.Status())
		return nil
	},
}

func init() {
	startCmd.Flags().StringVarP(&candidateName, "name", "n", "", "candidate display name")
	startCmd.Flags().StringVarP(&campaignRef, "campaign", "c", "", "campaign reference")
	startCmd.Flags().StringVar(&jobRef, "job", "", "job reference")
	startCmd.Flags().StringVar(&note, "note", "", "note attached to the invite")
	_ = startCmd.MarkFlagRequired("campaign")
}
