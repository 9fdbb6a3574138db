package cli

import (
	"fmt"
	"sort"

	"github.com/felixgeelhaar/talentreach/pkg/observability"
	"github.com/spf13/cobra"
)

var healthCmd = &cobra.Command{
	Use:   "health",
	Short: "Check database, cache and broker health",
	RunE: func(cmd *cobra.Command, args []string) error {
		app := GetApp()
		if app == nil || app.Container == nil {
			return fmt.Errorf("application not initialized - database connection required")
		}

		health := app.Container.Health.Check(cmd.Context())
		if JSONOutput() {
			if err := PrintJSON(health); err != nil {
				return err
			}
		} else {
			names := make([]string, 0, len(health.Checks))
			for name := range health.Checks {
				names = append(names, name)
			}
			sort.Strings(names)

			fmt.Printf("status: %s\n", health.Status)
			for _, name := range names {
				check := health.Checks[name]
				if check.Message != "" {
					fmt.Printf("  %-10s %s (%s)\n", name, check.Status, check.Message)
					continue
				}
				fmt.Printf("  %-10s %s\n", name, check.Status)
			}
		}

		if health.Status == observability.HealthStatusUnhealthy {
			return fmt.Errorf("unhealthy")
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(healthCmd)
}
