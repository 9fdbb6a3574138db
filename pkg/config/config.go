package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/joho/godotenv"
)

// DefaultTenantID is used when TENANT_ID is not set.
const DefaultTenantID = "00000000-0000-0000-0000-000000000001"

// Config holds application configuration.
type Config struct {
	// Application
	AppEnv    string
	LogLevel  string
	LogFormat string
	TenantID  uuid.UUID

	// Database. An empty DatabaseURL selects SQLite at SQLitePath.
	DatabaseURL      string
	DatabaseDriver   string
	SQLitePath       string
	DatabaseMaxConns int
	LocalMode        bool

	// Redis. Empty disables the channel index cache.
	RedisURL string
	CacheTTL time.Duration

	// RabbitMQ. Empty keeps events in process.
	RabbitMQURL string

	// Outbox
	OutboxPollInterval     time.Duration
	OutboxBatchSize        int
	OutboxMaxRetries       int
	OutboxRetentionDays    int
	OutboxProcessorEnabled bool

	// HTTP
	HTTPAddr         string
	WorkerHealthAddr string
	MCPAddr          string
	MCPAuthToken     string

	// Webhook secrets per source. Empty disables the signature check.
	WebhookMessagingSecret string
	WebhookCalendarSecret  string
	WebhookDeliverySecret  string

	// Messaging provider
	ProviderBaseURL      string
	ProviderAPIKey       string
	ProviderClientID     string
	ProviderClientSecret string
	ProviderTokenURL     string
	ProviderTimeout      time.Duration
	ProviderMaxRetries   int

	// Composer
	ComposerURL     string
	ComposerAPIKey  string
	ComposerTimeout time.Duration

	// Circuit breaker shared by capability clients
	BreakerMaxFailures int
	BreakerOpenTimeout time.Duration

	// Outreach
	AutoPitchEnabled     bool
	PitchDelay           time.Duration
	FollowUpOffsetsDays  []int
	FollowUpMax          int
	NoResponseGrace      time.Duration
	FollowUpPollInterval time.Duration
	FollowUpRetryDelay   time.Duration

	// Booking
	BookingMatchWindow time.Duration

	// CalDAV. Empty URL disables the booking poller.
	CalDAVURL          string
	CalDAVUsername     string
	CalDAVPassword     string
	CalDAVCalendarPath string
	CalDAVPollInterval time.Duration

	// Escalation
	EscalationRulesPath string

	// Observability
	SentryDSN      string
	MetricsEnabled bool
}

// Load loads configuration from environment variables. A .env file in the
// working directory is read first when present.
func Load() (*Config, error) {
	_ = godotenv.Load()

	var errs []error

	tenantID, err := uuid.Parse(getEnv("TENANT_ID", DefaultTenantID))
	if err != nil {
		errs = append(errs, fmt.Errorf("TENANT_ID: %w", err))
	}
	offsets, err := getIntListEnv("FOLLOW_UP_OFFSETS_DAYS", []int{3, 7, 14})
	if err != nil {
		errs = append(errs, err)
	}

	databaseURL := getEnv("DATABASE_URL", "")
	driver := getEnv("DATABASE_DRIVER", "")
	if driver == "" {
		driver = "postgres"
		if databaseURL == "" {
			driver = "sqlite"
		}
	}

	cfg := &Config{
		AppEnv:    getEnv("APP_ENV", "development"),
		LogLevel:  getEnv("LOG_LEVEL", "info"),
		LogFormat: getEnv("LOG_FORMAT", ""),
		TenantID:  tenantID,

		DatabaseURL:      databaseURL,
		DatabaseDriver:   driver,
		SQLitePath:       getEnv("SQLITE_PATH", ""),
		DatabaseMaxConns: getIntEnv("DATABASE_MAX_CONNS", 10),
		LocalMode:        driver == "sqlite",

		RedisURL: getEnv("REDIS_URL", ""),
		CacheTTL: getDurationEnv("CACHE_TTL", 10*time.Minute),

		RabbitMQURL: getEnv("RABBITMQ_URL", ""),

		OutboxPollInterval:     getDurationEnv("OUTBOX_POLL_INTERVAL", time.Second),
		OutboxBatchSize:        getIntEnv("OUTBOX_BATCH_SIZE", 100),
		OutboxMaxRetries:       getIntEnv("OUTBOX_MAX_RETRIES", 5),
		OutboxRetentionDays:    getIntEnv("OUTBOX_RETENTION_DAYS", 14),
		OutboxProcessorEnabled: getBoolEnv("OUTBOX_PROCESSOR_ENABLED", true),

		HTTPAddr:         getEnv("HTTP_ADDR", "0.0.0.0:8080"),
		WorkerHealthAddr: getEnv("WORKER_HEALTH_ADDR", "0.0.0.0:8081"),
		MCPAddr:          getEnv("MCP_ADDR", "0.0.0.0:8082"),
		MCPAuthToken:     getEnv("MCP_AUTH_TOKEN", ""),

		WebhookMessagingSecret: getEnv("WEBHOOK_MESSAGING_SECRET", ""),
		WebhookCalendarSecret:  getEnv("WEBHOOK_CALENDAR_SECRET", ""),
		WebhookDeliverySecret:  getEnv("WEBHOOK_DELIVERY_SECRET", ""),

		ProviderBaseURL:      getEnv("PROVIDER_BASE_URL", ""),
		ProviderAPIKey:       getEnv("PROVIDER_API_KEY", ""),
		ProviderClientID:     getEnv("PROVIDER_CLIENT_ID", ""),
		ProviderClientSecret: getEnv("PROVIDER_CLIENT_SECRET", ""),
		ProviderTokenURL:     getEnv("PROVIDER_TOKEN_URL", ""),
		ProviderTimeout:      getDurationEnv("PROVIDER_TIMEOUT", 10*time.Second),
		ProviderMaxRetries:   getIntEnv("PROVIDER_MAX_RETRIES", 3),

		ComposerURL:     getEnv("COMPOSER_URL", ""),
		ComposerAPIKey:  getEnv("COMPOSER_API_KEY", ""),
		ComposerTimeout: getDurationEnv("COMPOSER_TIMEOUT", 30*time.Second),

		BreakerMaxFailures: getIntEnv("BREAKER_MAX_FAILURES", 5),
		BreakerOpenTimeout: getDurationEnv("BREAKER_OPEN_TIMEOUT", 30*time.Second),

		AutoPitchEnabled:     getBoolEnv("AUTO_PITCH_ENABLED", true),
		PitchDelay:           getDurationEnv("PITCH_DELAY", 0),
		FollowUpOffsetsDays:  offsets,
		FollowUpMax:          getIntEnv("FOLLOW_UP_MAX", 3),
		NoResponseGrace:      getDurationEnv("NO_RESPONSE_GRACE", 72*time.Hour),
		FollowUpPollInterval: getDurationEnv("FOLLOW_UP_POLL_INTERVAL", 5*time.Minute),
		FollowUpRetryDelay:   getDurationEnv("FOLLOW_UP_RETRY_DELAY", time.Hour),

		BookingMatchWindow: getDurationEnv("BOOKING_MATCH_WINDOW", 72*time.Hour),

		CalDAVURL:          getEnv("CALDAV_URL", ""),
		CalDAVUsername:     getEnv("CALDAV_USERNAME", ""),
		CalDAVPassword:     getEnv("CALDAV_PASSWORD", ""),
		CalDAVCalendarPath: getEnv("CALDAV_CALENDAR_PATH", ""),
		CalDAVPollInterval: getDurationEnv("CALDAV_POLL_INTERVAL", 5*time.Minute),

		EscalationRulesPath: getEnv("ESCALATION_RULES_PATH", ""),

		SentryDSN:      getEnv("SENTRY_DSN", ""),
		MetricsEnabled: getBoolEnv("METRICS_ENABLED", true),
	}

	if cfg.FollowUpMax < 0 {
		errs = append(errs, fmt.Errorf("FOLLOW_UP_MAX must not be negative, got %d", cfg.FollowUpMax))
	}
	if cfg.ProviderClientID != "" && cfg.ProviderTokenURL == "" {
		errs = append(errs, errors.New("PROVIDER_TOKEN_URL is required with PROVIDER_CLIENT_ID"))
	}
	if err := errors.Join(errs...); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// IsDevelopment returns true if running in development mode.
func (c *Config) IsDevelopment() bool {
	return c.AppEnv == "development"
}

// IsProduction returns true if running in production mode.
func (c *Config) IsProduction() bool {
	return c.AppEnv == "production"
}

// FollowUpOffsets returns the follow-up offsets as durations.
func (c *Config) FollowUpOffsets() []time.Duration {
	offsets := make([]time.Duration, 0, len(c.FollowUpOffsetsDays))
	for _, d := range c.FollowUpOffsetsDays {
		offsets = append(offsets, time.Duration(d)*24*time.Hour)
	}
	return offsets
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getIntEnv(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}

func getDurationEnv(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}

func getBoolEnv(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

func getListEnv(key string) []string {
	value := os.Getenv(key)
	if value == "" {
		return nil
	}
	var items []string
	for _, item := range strings.Split(value, ",") {
		if item = strings.TrimSpace(item); item != "" {
			items = append(items, item)
		}
	}
	return items
}

// getIntListEnv parses a comma separated list of positive integers. Unlike
// the scalar helpers it reports a malformed value.
func getIntListEnv(key string, defaultValue []int) ([]int, error) {
	items := getListEnv(key)
	if len(items) == 0 {
		return defaultValue, nil
	}
	values := make([]int, 0, len(items))
	for _, item := range items {
		v, err := strconv.Atoi(item)
		if err != nil || v <= 0 {
			return nil, fmt.Errorf("%s: %q is not a positive integer", key, item)
		}
		values = append(values, v)
	}
	return values, nil
}
