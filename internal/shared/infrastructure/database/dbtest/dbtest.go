// Package dbtest opens throwaway databases with the full schema applied.
package dbtest

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/felixgeelhaar/talentreach/internal/shared/infrastructure/database"
	"github.com/felixgeelhaar/talentreach/internal/shared/infrastructure/database/sqlite"
	"github.com/felixgeelhaar/talentreach/internal/shared/infrastructure/migrations"
	"github.com/stretchr/testify/require"
)

// OpenSQLite returns a migrated SQLite connection in a temp dir. It is closed
// when the test finishes.
func OpenSQLite(t testing.TB) database.Connection {
	t.Helper()

	ctx := context.Background()
	conn, err := sqlite.NewConnection(ctx, database.Config{
		Driver:     database.DriverSQLite,
		SQLitePath: filepath.Join(t.TempDir(), "talentreach.db"),
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })

	sqliteConn, ok := conn.(*sqlite.Connection)
	require.True(t, ok, "expected *sqlite.Connection")
	require.NoError(t, migrations.RunSQLiteMigrations(ctx, sqliteConn.DB()))

	return conn
}
