package outreach

import (
	"github.com/spf13/cobra"
)

// Cmd is the outreach command group
var Cmd = &cobra.Command{
	Use:   "outreach",
	Short: "Run candidate outreach",
	Long:  `Start outreach attempts. Follow-ups and pitches are driven by the worker.`,
}

func init() {
	Cmd.AddCommand(startCmd)
}
