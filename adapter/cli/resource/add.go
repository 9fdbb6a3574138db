package resource

import (
	"fmt"

	"github.com/felixgeelhaar/talentreach/adapter/cli"
	"github.com/felixgeelhaar/talentreach/internal/resources/application/commands"
	"github.com/felixgeelhaar/talentreach/internal/resources/application/queries"
	"github.com/spf13/cobra"
)

var ownerName string

var addCmd = &cobra.Command{
	Use:   "add [url]",
	Short: "Register a scheduling link",
	Long: `Register a booking link and put it into the rotation.

Examples:
  talentreach resource add https://cal.example.com/sam/intro --owner "Sam Recruiter"`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		app := cli.GetApp()
		if app == nil || app.RegisterResourceHandler == nil {
			return fmt.Errorf("application not initialized - database connection required")
		}

		resource, err := app.RegisterResourceHandler.Handle(cmd.Context(), commands.RegisterResourceCommand{
			TenantID:    app.TenantID,
			OwnerName:   ownerName,
			ResourceURL: args[0],
		})
		if err != nil {
			return fmt.Errorf("failed to register resource: %w", err)
		}

		if cli.JSONOutput() {
			return cli.PrintJSON(queries.ToResourceDTO(resource))
		}
		fmt.Printf("Resource registered: %s\n", resource.ID())
		fmt.Printf("  owner: %s\n", resource.OwnerName())
		fmt.Printf("  url:   %s\n", resource.ResourceURL())
		return nil
	},
}

func init() {
	addCmd.Flags().StringVarP(&ownerName, "owner", "o", "", "name of the person who owns the calendar")
	_ = addCmd.MarkFlagRequired("owner")
}
