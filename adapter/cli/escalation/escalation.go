package escalation

import (
	"github.com/spf13/cobra"
)

// Cmd is the escalation command group
var Cmd = &cobra.Command{
	Use:   "escalation",
	Short: "Work the escalation queue",
	Long:  `List conversations waiting for a human, read their transcripts and hand them back to automation.`,
}

func init() {
	Cmd.AddCommand(listCmd)
	Cmd.AddCommand(showCmd)
	Cmd.AddCommand(resolveCmd)
}
