// Package apptest builds configurations for containers backed by a
// throwaway SQLite database.
package apptest

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/felixgeelhaar/talentreach/pkg/config"
	"github.com/google/uuid"
)

// LocalConfig returns a configuration for local mode with the database in a
// temp dir. External capabilities are left unconfigured.
func LocalConfig(t testing.TB) *config.Config {
	t.Helper()
	return &config.Config{
		AppEnv:                 "test",
		LogLevel:               "error",
		TenantID:               uuid.MustParse(config.DefaultTenantID),
		DatabaseDriver:         "sqlite",
		SQLitePath:             filepath.Join(t.TempDir(), "talentreach.db"),
		LocalMode:              true,
		CacheTTL:               time.Minute,
		OutboxPollInterval:     time.Second,
		OutboxBatchSize:        10,
		OutboxMaxRetries:       3,
		OutboxProcessorEnabled: true,
		ComposerTimeout:        time.Second,
		BreakerMaxFailures:     5,
		BreakerOpenTimeout:     time.Second,
		AutoPitchEnabled:       true,
		FollowUpOffsetsDays:    []int{3, 7, 14},
		FollowUpMax:            3,
		NoResponseGrace:        72 * time.Hour,
		FollowUpPollInterval:   time.Minute,
		FollowUpRetryDelay:     time.Hour,
		BookingMatchWindow:     72 * time.Hour,
		MetricsEnabled:         true,
	}
}
