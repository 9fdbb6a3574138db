package resource

import (
	"fmt"

	"github.com/felixgeelhaar/talentreach/adapter/cli"
	"github.com/felixgeelhaar/talentreach/internal/resources/application/commands"
	"github.com/felixgeelhaar/talentreach/internal/resources/application/queries"
	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

var activateCmd = &cobra.Command{
	Use:   "activate [resource-id]",
	Short: "Put a resource back into the rotation",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return setActive(cmd, args[0], true)
	},
}

var deactivateCmd = &cobra.Command{
	Use:   "deactivate [resource-id]",
	Short: "Take a resource out of the rotation",
	Long: `Take a resource out of the rotation. Existing assignments keep
pointing at it and can still be confirmed by bookings.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return setActive(cmd, args[0], false)
	},
}

func setActive(cmd *cobra.Command, rawID string, active bool) error {
	app := cli.GetApp()
	if app == nil || app.SetResourceActiveHandler == nil {
		return fmt.Errorf("application not initialized - database connection required")
	}

	resourceID, err := uuid.Parse(rawID)
	if err != nil {
		return fmt.Errorf("invalid resource ID: %w", err)
	}

	resource, err := app.SetResourceActiveHandler.Handle(cmd.Context(), commands.SetResourceActiveCommand{
		TenantID:   app.TenantID,
		ResourceID: resourceID,
		Active:     active,
	})
	if err != nil {
		return fmt.Errorf("failed to update resource: %w", err)
	}

	if cli.JSONOutput() {
		return cli.PrintJSON(queries.ToResourceDTO(resource))
	}
	if active {
		fmt.Printf("Resource activated: %s\n", resource.ID())
	} else {
		fmt.Printf("Resource deactivated: %s\n", resource.ID())
	}
	return nil
}
