package cli

import (
	"database/sql"
	"fmt"

	"github.com/felixgeelhaar/talentreach/internal/shared/infrastructure/database"
	"github.com/felixgeelhaar/talentreach/internal/shared/infrastructure/migrations"
	_ "github.com/lib/pq"
	"github.com/spf13/cobra"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply database migrations",
	Long: `Apply the embedded schema migrations to the configured database.

SQLite databases are migrated when they are opened. PostgreSQL databases
are only migrated by this command.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		app := GetApp()
		if app == nil || app.Container == nil {
			return fmt.Errorf("application not initialized - database connection required")
		}

		driver := app.Container.DBDriver
		if driver == database.DriverPostgres {
			db, err := sql.Open("postgres", app.Container.Config.DatabaseURL)
			if err != nil {
				return fmt.Errorf("failed to open postgres: %w", err)
			}
			defer db.Close()

			if err := migrations.RunPostgresMigrations(cmd.Context(), db); err != nil {
				return err
			}
		}

		files, err := migrations.Files(driver.String())
		if err != nil {
			return err
		}
		Logger().Info("migrations applied", "driver", driver.String(), "count", len(files))

		fmt.Printf("Applied %d migrations (%s)\n", len(files), driver)
		for _, f := range files {
			fmt.Printf("  %s\n", f)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(migrateCmd)
}
