package app

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/felixgeelhaar/talentreach/internal/composer"
	conversationCommands "github.com/felixgeelhaar/talentreach/internal/conversations/application/commands"
	conversationQueries "github.com/felixgeelhaar/talentreach/internal/conversations/application/queries"
	conversationServices "github.com/felixgeelhaar/talentreach/internal/conversations/application/services"
	conversationSubs "github.com/felixgeelhaar/talentreach/internal/conversations/application/subscribers"
	conversationsDomain "github.com/felixgeelhaar/talentreach/internal/conversations/domain"
	"github.com/felixgeelhaar/talentreach/internal/conversations/infrastructure/cache"
	conversationsPersistence "github.com/felixgeelhaar/talentreach/internal/conversations/infrastructure/persistence"
	"github.com/felixgeelhaar/talentreach/internal/conversations/infrastructure/rules"
	ingestionServices "github.com/felixgeelhaar/talentreach/internal/ingestion/application/services"
	ingestionPersistence "github.com/felixgeelhaar/talentreach/internal/ingestion/infrastructure/persistence"
	"github.com/felixgeelhaar/talentreach/internal/messaging"
	outreachCommands "github.com/felixgeelhaar/talentreach/internal/outreach/application/commands"
	outreachServices "github.com/felixgeelhaar/talentreach/internal/outreach/application/services"
	outreachWorkers "github.com/felixgeelhaar/talentreach/internal/outreach/application/workers"
	outreachDomain "github.com/felixgeelhaar/talentreach/internal/outreach/domain"
	outreachPersistence "github.com/felixgeelhaar/talentreach/internal/outreach/infrastructure/persistence"
	resourceCommands "github.com/felixgeelhaar/talentreach/internal/resources/application/commands"
	resourceQueries "github.com/felixgeelhaar/talentreach/internal/resources/application/queries"
	resourceServices "github.com/felixgeelhaar/talentreach/internal/resources/application/services"
	resourcesDomain "github.com/felixgeelhaar/talentreach/internal/resources/domain"
	"github.com/felixgeelhaar/talentreach/internal/resources/infrastructure/caldav"
	resourcesPersistence "github.com/felixgeelhaar/talentreach/internal/resources/infrastructure/persistence"
	sharedApplication "github.com/felixgeelhaar/talentreach/internal/shared/application"
	sharedDomain "github.com/felixgeelhaar/talentreach/internal/shared/domain"
	"github.com/felixgeelhaar/talentreach/internal/shared/infrastructure/database"
	_ "github.com/felixgeelhaar/talentreach/internal/shared/infrastructure/database/postgres" // Register PostgreSQL driver
	_ "github.com/felixgeelhaar/talentreach/internal/shared/infrastructure/database/sqlite"   // Register SQLite driver
	"github.com/felixgeelhaar/talentreach/internal/shared/infrastructure/eventbus"
	"github.com/felixgeelhaar/talentreach/internal/shared/infrastructure/external"
	"github.com/felixgeelhaar/talentreach/internal/shared/infrastructure/migrations"
	"github.com/felixgeelhaar/talentreach/internal/shared/infrastructure/outbox"
	"github.com/felixgeelhaar/talentreach/pkg/config"
	"github.com/felixgeelhaar/talentreach/pkg/observability"
	"github.com/redis/go-redis/v9"
)

// Container holds all application dependencies.
type Container struct {
	Config *config.Config
	Logger *slog.Logger
	Clock  sharedDomain.Clock

	// Database
	DBConn   database.Connection
	DBDriver database.Driver

	// Redis
	RedisClient *redis.Client

	// Observability
	Metrics        observability.Metrics
	MetricsHandler http.Handler
	Reporter       observability.ErrorReporter
	Health         *observability.HealthRegistry

	// Repositories
	ResourceRepo     *resourcesPersistence.ResourceRepository
	AssignmentRepo   *resourcesPersistence.AssignmentRepository
	ConversationRepo conversationsDomain.Repository
	PendingReplyRepo *conversationsPersistence.PendingReplyRepository
	AttemptRepo      *outreachPersistence.AttemptRepository
	DeliveryLedger   *ingestionPersistence.DeliveryLedger
	OutboxRepo       outbox.Repository

	// Unit of Work
	UnitOfWork sharedApplication.UnitOfWork

	// External capabilities
	Messaging messaging.Client
	Composer  composer.Composer

	// Events
	EventRegistry   *eventbus.ConsumerRegistry
	EventPublisher  eventbus.Publisher
	EventConsumer   *eventbus.RabbitMQConsumer
	OutboxProcessor *outbox.Processor

	// Resources
	Rotator                  *resourceServices.Rotator
	RegisterResourceHandler  *resourceCommands.RegisterResourceHandler
	SetResourceActiveHandler *resourceCommands.SetResourceActiveHandler
	ListResourcesHandler     *resourceQueries.ListResourcesHandler
	CalDAVPoller             *caldav.Poller

	// Conversations
	Orchestrator                 *conversationServices.Orchestrator
	MoveStageHandler             *conversationCommands.MoveStageHandler
	RecordOutboundMessageHandler *conversationCommands.RecordOutboundMessageHandler
	ResolveEscalationHandler     *conversationCommands.ResolveEscalationHandler
	PauseConversationHandler     *conversationCommands.PauseConversationHandler
	CloseConversationHandler     *conversationCommands.CloseConversationHandler
	SendManualReplyHandler       *conversationCommands.SendManualReplyHandler
	ListEscalationsHandler       *conversationQueries.ListEscalationsHandler
	GetConversationHandler       *conversationQueries.GetConversationHandler
	ListPendingRepliesHandler    *conversationQueries.ListPendingRepliesHandler

	// Outreach
	StartOutreachHandler    *outreachCommands.StartOutreachHandler
	AcceptConnectionHandler *outreachCommands.AcceptConnectionHandler
	MarkRepliedHandler      *outreachCommands.MarkRepliedHandler
	MarkBouncedHandler      *outreachCommands.MarkBouncedHandler
	RecordDeliveryHandler   *outreachCommands.RecordDeliveryHandler
	PitchDispatcher         *outreachServices.PitchDispatcher
	FollowUpScheduler       *outreachServices.FollowUpScheduler
	FollowUpWorker          *outreachWorkers.FollowUpWorker

	// Ingestion
	Dispatcher *ingestionServices.Dispatcher
}

// Runner is a named background loop owned by the container.
type Runner struct {
	Name string
	Run  func(ctx context.Context) error
}

// NewContainer wires every component from cfg. Without DATABASE_URL it runs
// in local mode on a migrated SQLite file; Redis, RabbitMQ, CalDAV, Sentry
// and the external capabilities are optional.
func NewContainer(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Container, error) {
	if logger == nil {
		logger = slog.Default()
	}
	c := &Container{
		Config: cfg,
		Logger: logger,
		Clock:  sharedDomain.SystemClock{},
		Health: observability.NewHealthRegistry(),
	}

	conn, err := openConnection(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}
	c.DBConn = conn
	c.DBDriver = conn.Driver()
	c.Health.Register("database", observability.PingChecker("database", conn.Ping, observability.HealthStatusUnhealthy))

	if err := c.initObservability(cfg); err != nil {
		c.Close()
		return nil, err
	}
	if err := c.initRedis(ctx, cfg); err != nil {
		c.Close()
		return nil, err
	}

	// Create repositories
	factory := NewRepositoryFactory(conn)
	var index cache.ChannelIndex
	if c.RedisClient != nil {
		index = cache.NewRedisChannelIndex(c.RedisClient, cfg.CacheTTL)
	}
	c.ResourceRepo = factory.ResourceRepository()
	c.AssignmentRepo = factory.AssignmentRepository()
	c.ConversationRepo = factory.ConversationRepository(index, logger)
	c.PendingReplyRepo = factory.PendingReplyRepository()
	c.AttemptRepo = factory.AttemptRepository()
	c.DeliveryLedger = factory.DeliveryLedger()
	c.OutboxRepo = factory.OutboxRepository()
	c.UnitOfWork = factory.UnitOfWork()

	if err := c.initCapabilities(cfg); err != nil {
		c.Close()
		return nil, err
	}
	if err := c.initEvents(cfg); err != nil {
		c.Close()
		return nil, err
	}

	detector, err := rules.LoadDetector(cfg.EscalationRulesPath)
	if err != nil {
		c.Close()
		return nil, err
	}

	c.initResources(cfg)
	c.initConversations(cfg, detector)
	c.initOutreach(cfg)

	c.Dispatcher = ingestionServices.NewDispatcher(ingestionServices.DispatcherConfig{
		TenantID:    cfg.TenantID,
		Inbound:     c.Orchestrator,
		Outbound:    c.RecordOutboundMessageHandler,
		Channels:    c.ConversationRepo,
		Replies:     c.MarkRepliedHandler,
		Connections: c.AcceptConnectionHandler,
		Bounces:     c.MarkBouncedHandler,
		Deliveries:  c.RecordDeliveryHandler,
		Bookings:    c.Rotator,
		Ledger:      c.DeliveryLedger,
		UnitOfWork:  c.UnitOfWork,
		Clock:       c.Clock,
		Reporter:    c.Reporter,
		Metrics:     c.Metrics,
		Logger:      logger,
	})

	if cfg.CalDAVURL != "" {
		poller, err := caldav.NewPoller(caldav.Config{
			BaseURL:      cfg.CalDAVURL,
			Username:     cfg.CalDAVUsername,
			Password:     cfg.CalDAVPassword,
			CalendarPath: cfg.CalDAVCalendarPath,
			Interval:     cfg.CalDAVPollInterval,
			Window:       cfg.BookingMatchWindow,
		}, c.Rotator, cfg.TenantID, c.Clock, logger)
		if err != nil {
			c.Close()
			return nil, err
		}
		c.CalDAVPoller = poller
	}

	logger.Info("container initialized",
		"driver", c.DBDriver,
		"tenant_id", cfg.TenantID,
		"redis", c.RedisClient != nil,
		"rabbitmq", cfg.RabbitMQURL != "",
		"caldav", c.CalDAVPoller != nil,
	)
	return c, nil
}

func (c *Container) initObservability(cfg *config.Config) error {
	c.Metrics = observability.NoopMetrics{}
	if cfg.MetricsEnabled {
		prom := observability.NewPrometheusMetrics()
		c.Metrics = prom
		c.MetricsHandler = prom.Handler()
	}

	c.Reporter = observability.NoopReporter{Logger: c.Logger}
	if cfg.SentryDSN != "" {
		reporter, err := observability.NewSentryReporter(observability.SentryConfig{
			DSN:         cfg.SentryDSN,
			Environment: cfg.AppEnv,
		})
		if err != nil {
			return err
		}
		c.Reporter = reporter
	}
	return nil
}

// initRedis connects the channel index cache. Redis is optional in
// development; elsewhere a configured but unreachable Redis is fatal.
func (c *Container) initRedis(ctx context.Context, cfg *config.Config) error {
	if cfg.RedisURL == "" {
		return nil
	}
	opt, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		if !cfg.IsDevelopment() {
			return fmt.Errorf("failed to parse Redis URL: %w", err)
		}
		c.Logger.Warn("invalid Redis URL, channel lookups will hit the database", "error", err)
		return nil
	}
	client := redis.NewClient(opt)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		if !cfg.IsDevelopment() {
			return fmt.Errorf("failed to connect to Redis: %w", err)
		}
		c.Logger.Warn("Redis not available, channel lookups will hit the database", "error", err)
		return nil
	}
	c.RedisClient = client
	c.Health.Register("redis", observability.PingChecker("redis", func(ctx context.Context) error {
		return client.Ping(ctx).Err()
	}, observability.HealthStatusDegraded))
	c.Logger.Info("connected to Redis")
	return nil
}

func (c *Container) initCapabilities(cfg *config.Config) error {
	breaker := func(name string) external.BreakerConfig {
		return external.BreakerConfig{
			Name:        name,
			MaxFailures: uint32(max(cfg.BreakerMaxFailures, 1)),
			OpenTimeout: cfg.BreakerOpenTimeout,
		}
	}

	c.Messaging = messaging.Disabled{}
	if cfg.ProviderBaseURL != "" {
		retry := external.DefaultRetryPolicy()
		retry.MaxAttempts = cfg.ProviderMaxRetries
		client, err := messaging.NewHTTPClient(messaging.Config{
			BaseURL:      cfg.ProviderBaseURL,
			APIKey:       cfg.ProviderAPIKey,
			ClientID:     cfg.ProviderClientID,
			ClientSecret: cfg.ProviderClientSecret,
			TokenURL:     cfg.ProviderTokenURL,
			Timeout:      cfg.ProviderTimeout,
			Retry:        retry,
			Breaker:      breaker("messaging"),
		}, c.Metrics, c.Logger)
		if err != nil {
			return fmt.Errorf("failed to create messaging client: %w", err)
		}
		c.Messaging = client
	} else {
		c.Logger.Warn("messaging provider not configured, outbound messages will fail")
	}

	c.Composer = composer.Disabled{}
	if cfg.ComposerURL != "" {
		drafter, err := composer.NewHTTPComposer(composer.Config{
			URL:     cfg.ComposerURL,
			APIKey:  cfg.ComposerAPIKey,
			Timeout: cfg.ComposerTimeout,
			Breaker: breaker("composer"),
		}, c.Metrics, c.Logger)
		if err != nil {
			return fmt.Errorf("failed to create composer: %w", err)
		}
		c.Composer = drafter
	} else {
		c.Logger.Warn("composer not configured, inbound messages will escalate")
	}
	return nil
}

// initEvents sets up the outbox processor and where it publishes. With
// RabbitMQ configured events go to the broker and the worker consumes them;
// otherwise they are dispatched in process.
func (c *Container) initEvents(cfg *config.Config) error {
	c.EventRegistry = eventbus.NewConsumerRegistry(c.Logger)
	c.EventRegistry.Register(conversationSubs.NewEscalationNotifier(c.Reporter, c.Logger))
	c.EventRegistry.Register(eventbus.ConsumerFunc(c.countEvent, consumedRoutingKeys...))

	if cfg.RabbitMQURL == "" {
		c.EventPublisher = eventbus.NewInProcessPublisher(c.EventRegistry, c.Logger)
	} else {
		publisher, err := eventbus.NewRabbitMQPublisher(cfg.RabbitMQURL, c.Logger)
		if err != nil {
			if !cfg.IsDevelopment() {
				return fmt.Errorf("failed to connect to RabbitMQ: %w", err)
			}
			c.Logger.Warn("RabbitMQ not available, dispatching events in process", "error", err)
			c.EventPublisher = eventbus.NewInProcessPublisher(c.EventRegistry, c.Logger)
		} else {
			c.EventPublisher = publisher
			consumer, err := eventbus.NewRabbitMQConsumer(cfg.RabbitMQURL, eventbus.DefaultQueueName, c.EventRegistry, c.Logger)
			if err != nil {
				return fmt.Errorf("failed to create RabbitMQ consumer: %w", err)
			}
			c.EventConsumer = consumer
		}
	}

	processorConfig := outbox.DefaultProcessorConfig()
	processorConfig.PollInterval = cfg.OutboxPollInterval
	processorConfig.BatchSize = cfg.OutboxBatchSize
	processorConfig.MaxRetries = cfg.OutboxMaxRetries
	processorConfig.RetentionDays = cfg.OutboxRetentionDays
	processorConfig.Metrics = c.Metrics
	c.OutboxProcessor = outbox.NewProcessor(c.OutboxRepo, c.EventPublisher, processorConfig, c.Logger)
	return nil
}

// consumedRoutingKeys are counted as they reach the registry, so the
// events_consumed_total series shows the bus is flowing.
var consumedRoutingKeys = []string{
	conversationsDomain.RoutingKeyStarted,
	conversationsDomain.RoutingKeyEscalated,
	conversationsDomain.RoutingKeyEscalationResolved,
	conversationsDomain.RoutingKeyClosed,
	conversationsDomain.RoutingKeyReplySendFailed,
	outreachDomain.RoutingKeyAttemptCreated,
	outreachDomain.RoutingKeyConnectionRequested,
	outreachDomain.RoutingKeyConnectionAccepted,
	outreachDomain.RoutingKeyPitchQueued,
	outreachDomain.RoutingKeyPitchSent,
	outreachDomain.RoutingKeyReplied,
	outreachDomain.RoutingKeyNoResponse,
	outreachDomain.RoutingKeyBounced,
	outreachDomain.RoutingKeyFollowUpSent,
	resourcesDomain.RoutingKeyAssignmentCreated,
	resourcesDomain.RoutingKeyBookingConfirmed,
}

func (c *Container) countEvent(_ context.Context, event *eventbus.Envelope) error {
	c.Metrics.Counter(observability.MetricEventsConsumed, 1, observability.T("routing_key", event.RoutingKey))
	return nil
}

func (c *Container) initResources(cfg *config.Config) {
	c.MoveStageHandler = conversationCommands.NewMoveStageHandler(c.ConversationRepo, c.OutboxRepo, c.UnitOfWork, c.Clock, c.Logger)
	c.Rotator = resourceServices.NewRotator(
		c.ResourceRepo,
		c.AssignmentRepo,
		c.OutboxRepo,
		c.UnitOfWork,
		c.MoveStageHandler,
		c.Clock,
		resourceServices.RotatorConfig{MatchWindow: cfg.BookingMatchWindow},
		c.Metrics,
		c.Logger,
	)
	c.RegisterResourceHandler = resourceCommands.NewRegisterResourceHandler(c.ResourceRepo, c.UnitOfWork, c.Clock)
	c.SetResourceActiveHandler = resourceCommands.NewSetResourceActiveHandler(c.ResourceRepo, c.UnitOfWork, c.Clock)
	c.ListResourcesHandler = resourceQueries.NewListResourcesHandler(c.ResourceRepo)
}

func (c *Container) initConversations(cfg *config.Config, detector *conversationsDomain.Detector) {
	c.Orchestrator = conversationServices.NewOrchestrator(
		c.ConversationRepo,
		c.PendingReplyRepo,
		c.OutboxRepo,
		c.UnitOfWork,
		detector,
		c.Composer,
		c.Messaging,
		c.Rotator,
		c.Reporter,
		c.Clock,
		conversationServices.OrchestratorConfig{ComposeTimeout: cfg.ComposerTimeout},
		c.Metrics,
		c.Logger,
	)
	c.RecordOutboundMessageHandler = conversationCommands.NewRecordOutboundMessageHandler(c.ConversationRepo, c.OutboxRepo, c.UnitOfWork, c.Clock)
	c.ResolveEscalationHandler = conversationCommands.NewResolveEscalationHandler(c.ConversationRepo, c.OutboxRepo, c.UnitOfWork, c.Clock)
	c.PauseConversationHandler = conversationCommands.NewPauseConversationHandler(c.ConversationRepo, c.OutboxRepo, c.UnitOfWork, c.Clock)
	c.CloseConversationHandler = conversationCommands.NewCloseConversationHandler(c.ConversationRepo, c.OutboxRepo, c.UnitOfWork, c.Clock)
	c.SendManualReplyHandler = conversationCommands.NewSendManualReplyHandler(c.ConversationRepo, c.OutboxRepo, c.UnitOfWork, c.Messaging, c.Clock)
	c.ListEscalationsHandler = conversationQueries.NewListEscalationsHandler(c.ConversationRepo)
	c.GetConversationHandler = conversationQueries.NewGetConversationHandler(c.ConversationRepo)
	c.ListPendingRepliesHandler = conversationQueries.NewListPendingRepliesHandler(c.PendingReplyRepo)
}

func (c *Container) initOutreach(cfg *config.Config) {
	writer := outreachServices.EventWriter{
		Attempts:      c.AttemptRepo,
		Conversations: c.ConversationRepo,
		Outbox:        c.OutboxRepo,
	}
	policy := outreachDomain.FollowUpPolicy{
		Offsets: cfg.FollowUpOffsets(),
		Max:     cfg.FollowUpMax,
		Grace:   cfg.NoResponseGrace,
	}

	c.PitchDispatcher = outreachServices.NewPitchDispatcher(
		writer,
		c.UnitOfWork,
		c.Composer,
		c.Messaging,
		c.Clock,
		outreachServices.PitchConfig{
			ComposeTimeout: cfg.ComposerTimeout,
			RetryDelay:     cfg.FollowUpRetryDelay,
			Policy:         policy,
		},
		c.Logger,
	)
	c.FollowUpScheduler = outreachServices.NewFollowUpScheduler(
		writer,
		c.UnitOfWork,
		c.PitchDispatcher,
		c.Composer,
		c.Messaging,
		c.Clock,
		outreachServices.FollowUpConfig{
			Policy:         policy,
			RetryDelay:     cfg.FollowUpRetryDelay,
			ComposeTimeout: cfg.ComposerTimeout,
		},
		c.Metrics,
		c.Logger,
	)
	c.FollowUpWorker = outreachWorkers.NewFollowUpWorker(c.FollowUpScheduler, cfg.FollowUpPollInterval, c.Logger)

	c.StartOutreachHandler = outreachCommands.NewStartOutreachHandler(writer, c.UnitOfWork, c.Messaging, c.Clock, c.Logger)
	c.AcceptConnectionHandler = outreachCommands.NewAcceptConnectionHandler(
		writer,
		c.UnitOfWork,
		c.Messaging,
		c.PitchDispatcher,
		outreachCommands.AcceptConnectionConfig{
			AutoPitch:  cfg.AutoPitchEnabled,
			PitchDelay: cfg.PitchDelay,
		},
		c.Clock,
		c.Logger,
	)
	c.MarkRepliedHandler = outreachCommands.NewMarkRepliedHandler(writer, c.UnitOfWork, c.Clock)
	c.MarkBouncedHandler = outreachCommands.NewMarkBouncedHandler(writer, c.UnitOfWork, c.Clock)
	c.RecordDeliveryHandler = outreachCommands.NewRecordDeliveryHandler(writer, c.UnitOfWork, c.Clock)
}

// Runners returns the background loops of the worker process: the outbox
// processor, the follow-up worker, the broker consumer and the CalDAV poller
// when each is enabled.
func (c *Container) Runners() []Runner {
	var runners []Runner
	if c.Config.OutboxProcessorEnabled {
		runners = append(runners, Runner{Name: "outbox_processor", Run: c.OutboxProcessor.Run})
	}
	runners = append(runners, Runner{Name: "follow_up_worker", Run: c.FollowUpWorker.Run})
	if c.EventConsumer != nil {
		runners = append(runners, Runner{Name: "event_consumer", Run: c.EventConsumer.Run})
	}
	if c.CalDAVPoller != nil {
		runners = append(runners, Runner{Name: "caldav_poller", Run: c.CalDAVPoller.Run})
	}
	return runners
}

// Close cleans up all resources.
func (c *Container) Close() {
	if c.FollowUpWorker != nil {
		c.FollowUpWorker.Stop()
	}

	if c.EventConsumer != nil {
		if err := c.EventConsumer.Close(); err != nil {
			c.Logger.Warn("error closing event consumer", "error", err)
		}
	}

	if c.EventPublisher != nil {
		if err := c.EventPublisher.Close(); err != nil {
			c.Logger.Warn("error closing event publisher", "error", err)
		}
	}

	if reporter, ok := c.Reporter.(*observability.SentryReporter); ok {
		reporter.Flush(2 * time.Second)
	}

	if c.RedisClient != nil {
		if err := c.RedisClient.Close(); err != nil {
			c.Logger.Warn("error closing Redis connection", "error", err)
		} else {
			c.Logger.Info("Redis connection closed")
		}
	}

	if c.DBConn != nil {
		if err := c.DBConn.Close(); err != nil {
			c.Logger.Warn("error closing database connection", "error", err, "driver", c.DBDriver)
		} else {
			c.Logger.Info("database connection closed", "driver", c.DBDriver)
		}
	}
}

// sqliteConnection is a type that implements database.Connection and exposes DB()
type sqliteConnection interface {
	database.Connection
	DB() *sql.DB
}

// openConnection connects to the configured database. SQLite databases are
// migrated on open; PostgreSQL is migrated with `talentreach migrate`.
func openConnection(ctx context.Context, cfg *config.Config, logger *slog.Logger) (database.Connection, error) {
	dbCfg := database.Config{
		Driver:     database.Driver(cfg.DatabaseDriver),
		URL:        cfg.DatabaseURL,
		SQLitePath: cfg.SQLitePath,
		MaxConns:   cfg.DatabaseMaxConns,
	}
	if dbCfg.Driver == database.DriverSQLite && dbCfg.SQLitePath == "" {
		dbCfg.SQLitePath = database.DefaultSQLitePath()
	}

	conn, err := database.Open(ctx, dbCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	if err := conn.Ping(ctx); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	if conn.Driver() == database.DriverSQLite {
		sqliteConn, ok := conn.(sqliteConnection)
		if !ok {
			_ = conn.Close()
			return nil, fmt.Errorf("expected SQLite connection with DB() method, got %T", conn)
		}
		if err := runSQLiteMigrations(ctx, sqliteConn.DB(), logger); err != nil {
			_ = conn.Close()
			return nil, fmt.Errorf("failed to run migrations: %w", err)
		}
	}

	logger.Info("connected to database", "driver", conn.Driver())
	return conn, nil
}

// runSQLiteMigrations applies SQLite schema migrations.
func runSQLiteMigrations(ctx context.Context, db *sql.DB, logger *slog.Logger) error {
	logger.Info("running SQLite migrations")
	if err := migrations.RunSQLiteMigrations(ctx, db); err != nil {
		return err
	}
	logger.Info("SQLite migrations completed successfully")
	return nil
}
