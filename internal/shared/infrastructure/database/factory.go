package database

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// Config selects and configures the backing store.
type Config struct {
	// Driver is detected from URL when empty or "auto".
	Driver Driver

	// URL is a postgres:// DSN, or a sqlite:// path.
	URL string

	// SQLitePath wins over URL for SQLite. Use InMemoryPath for a private
	// in-memory database.
	SQLitePath string

	// MaxConns caps the PostgreSQL pool. Zero keeps the pgxpool default.
	MaxConns int
}

// InMemoryPath selects a private in-memory SQLite database.
const InMemoryPath = ":memory:"

// Opener opens a connection for one driver.
type Opener func(ctx context.Context, cfg Config) (Connection, error)

var (
	openersMu sync.RWMutex
	openers   = map[Driver]Opener{}
)

// Register makes a driver available to Open. The driver packages call it
// from init, so importing them for side effects is enough.
func Register(d Driver, open Opener) {
	openersMu.Lock()
	defer openersMu.Unlock()
	openers[d] = open
}

// Open connects using the driver named by cfg, detecting it from the URL
// when unset.
func Open(ctx context.Context, cfg Config) (Connection, error) {
	d := cfg.Driver
	if d == "" || d == "auto" {
		d = DetectDriver(cfg.URL)
	}
	if !d.IsValid() {
		return nil, fmt.Errorf("unsupported database driver: %s", d)
	}

	openersMu.RLock()
	open, ok := openers[d]
	openersMu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%s driver not registered", d)
	}
	return open(ctx, cfg)
}

// DefaultSQLitePath is ~/.talentreach/talentreach.db, or a relative path when
// the home directory is unknown.
func DefaultSQLitePath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		home = "."
	}
	return filepath.Join(home, ".talentreach", "talentreach.db")
}

// EnsureDirectory creates the parent directory of a database file.
func EnsureDirectory(path string) error {
	if path == InMemoryPath {
		return nil
	}
	return os.MkdirAll(filepath.Dir(path), 0o755)
}
