// Package migrations embeds the schema for both supported database drivers.
package migrations

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"io/fs"
	"sort"
	"strings"
)

//go:embed sqlite/*.sql postgres/*.sql
var schemaFS embed.FS

// Execer is the subset of *sql.DB needed to apply migrations.
type Execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// RunSQLiteMigrations executes all SQLite migrations in order.
func RunSQLiteMigrations(ctx context.Context, db Execer) error {
	return run(ctx, db, "sqlite")
}

// RunPostgresMigrations executes all PostgreSQL migrations in order.
func RunPostgresMigrations(ctx context.Context, db Execer) error {
	return run(ctx, db, "postgres")
}

// Files returns the ordered migration file names for a dialect.
func Files(dialect string) ([]string, error) {
	entries, err := fs.ReadDir(schemaFS, dialect)
	if err != nil {
		return nil, fmt.Errorf("failed to read migrations directory: %w", err)
	}

	var upFiles []string
	for _, entry := range entries {
		if strings.HasSuffix(entry.Name(), ".up.sql") {
			upFiles = append(upFiles, entry.Name())
		}
	}
	sort.Strings(upFiles)
	return upFiles, nil
}

func run(ctx context.Context, db Execer, dialect string) error {
	upFiles, err := Files(dialect)
	if err != nil {
		return err
	}

	for _, file := range upFiles {
		migration, err := schemaFS.ReadFile(dialect + "/" + file)
		if err != nil {
			return fmt.Errorf("failed to read migration %s: %w", file, err)
		}

		// Every statement uses IF NOT EXISTS, so re-running is safe.
		if _, err := db.ExecContext(ctx, string(migration)); err != nil {
			return fmt.Errorf("failed to execute migration %s: %w", file, err)
		}
	}

	return nil
}
