package resource

import (
	"github.com/spf13/cobra"
)

// Cmd is the resource command group
var Cmd = &cobra.Command{
	Use:   "resource",
	Short: "Manage scheduling resources",
	Long:  `Register booking links and take them in or out of the rotation.`,
}

func init() {
	Cmd.AddCommand(addCmd)
	Cmd.AddCommand(listCmd)
	Cmd.AddCommand(activateCmd)
	Cmd.AddCommand(deactivateCmd)
}
