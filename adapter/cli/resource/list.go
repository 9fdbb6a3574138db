package resource

import (
	"fmt"

	"github.com/felixgeelhaar/talentreach/adapter/cli"
	"github.com/felixgeelhaar/talentreach/internal/resources/application/queries"
	"github.com/spf13/cobra"
)

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List scheduling resources",
	RunE: func(cmd *cobra.Command, args []string) error {
		app := cli.GetApp()
		if app == nil || app.ListResourcesHandler == nil {
			return fmt.Errorf("application not initialized - database connection required")
		}

		resources, err := app.ListResourcesHandler.Handle(cmd.Context(), queries.ListResourcesQuery{TenantID: app.TenantID})
		if err != nil {
			return fmt.Errorf("failed to list resources: %w", err)
		}

		if cli.JSONOutput() {
			return cli.PrintJSON(resources)
		}
		if len(resources) == 0 {
			fmt.Println("No resources registered.")
			return nil
		}

		for _, r := range resources {
			state := "active"
			if !r.Active {
				state = "inactive"
			}
			last := "never"
			if r.LastAssignedAt != nil {
				last = r.LastAssignedAt.Format("2006-01-02 15:04")
			}
			fmt.Printf("%s  %-8s  %-20s  assigned %d (last %s)\n", r.ID, state, r.OwnerName, r.AssignmentCount, last)
			fmt.Printf("    %s\n", r.ResourceURL)
		}
		return nil
	},
}
