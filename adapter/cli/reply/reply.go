package reply

import (
	"github.com/spf13/cobra"
)

// Cmd is the reply command group
var Cmd = &cobra.Command{
	Use:   "reply",
	Short: "Manage outbound replies",
	Long:  `List replies that failed to send, resend them, or send an operator-written reply.`,
}

func init() {
	Cmd.AddCommand(listCmd)
	Cmd.AddCommand(retryCmd)
	Cmd.AddCommand(sendCmd)
}
