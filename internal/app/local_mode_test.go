package app

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/felixgeelhaar/talentreach/internal/app/apptest"
	"github.com/felixgeelhaar/talentreach/internal/composer"
	ingestionServices "github.com/felixgeelhaar/talentreach/internal/ingestion/application/services"
	ingestionDomain "github.com/felixgeelhaar/talentreach/internal/ingestion/domain"
	"github.com/felixgeelhaar/talentreach/internal/messaging"
	resourceCommands "github.com/felixgeelhaar/talentreach/internal/resources/application/commands"
	resourceQueries "github.com/felixgeelhaar/talentreach/internal/resources/application/queries"
	resourcesDomain "github.com/felixgeelhaar/talentreach/internal/resources/domain"
	"github.com/felixgeelhaar/talentreach/internal/shared/infrastructure/database"
	"github.com/felixgeelhaar/talentreach/pkg/observability"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupLocalContainer(t *testing.T) *Container {
	t.Helper()
	container, err := NewContainer(context.Background(), apptest.LocalConfig(t), observability.DiscardLogger())
	require.NoError(t, err)
	t.Cleanup(container.Close)
	return container
}

func TestLocalModeContainer(t *testing.T) {
	container := setupLocalContainer(t)

	assert.Equal(t, database.DriverSQLite, container.DBDriver)
	assert.Nil(t, container.RedisClient)
	assert.Nil(t, container.EventConsumer)
	assert.Nil(t, container.CalDAVPoller)
	assert.NotNil(t, container.MetricsHandler)

	// Capabilities fall back to disabled clients without configuration
	assert.IsType(t, messaging.Disabled{}, container.Messaging)
	assert.IsType(t, composer.Disabled{}, container.Composer)

	assert.NotNil(t, container.Orchestrator)
	assert.NotNil(t, container.Rotator)
	assert.NotNil(t, container.Dispatcher)
	assert.NotNil(t, container.FollowUpScheduler)
	assert.NotNil(t, container.ListEscalationsHandler)

	var names []string
	for _, r := range container.Runners() {
		names = append(names, r.Name)
	}
	assert.Equal(t, []string{"outbox_processor", "follow_up_worker"}, names)

	health := container.Health.Check(context.Background())
	assert.Equal(t, observability.HealthStatusHealthy, health.Status)
}

func TestLocalModeContainer_InvalidRulesFile(t *testing.T) {
	cfg := apptest.LocalConfig(t)
	cfg.EscalationRulesPath = filepath.Join(t.TempDir(), "missing.yaml")

	_, err := NewContainer(context.Background(), cfg, observability.DiscardLogger())
	require.Error(t, err)
}

func TestLocalModeBookingWorkflow(t *testing.T) {
	container := setupLocalContainer(t)
	ctx := context.Background()
	tenantID := container.Config.TenantID

	resource, err := container.RegisterResourceHandler.Handle(ctx, resourceCommands.RegisterResourceCommand{
		TenantID:    tenantID,
		OwnerName:   "Sam Recruiter",
		ResourceURL: "https://cal.example.com/sam/intro",
	})
	require.NoError(t, err)

	listed, err := container.ListResourcesHandler.Handle(ctx, resourceQueries.ListResourcesQuery{TenantID: tenantID})
	require.NoError(t, err)
	require.Len(t, listed, 1)
	assert.Equal(t, resource.ID(), listed[0].ID)

	assignment, assigned, err := container.Rotator.Assign(ctx, resourcesDomain.AssignRequest{
		TenantID:            tenantID,
		CandidateExternalID: "cand-1",
		CandidateName:       "Jane Doe",
	})
	require.NoError(t, err)
	assert.Equal(t, resource.ID(), assigned.ID())

	booking := ingestionServices.CalendarEvent{
		EventID:     "booking-1",
		Type:        ingestionDomain.TypeBookingCreated,
		InviteeName: "Jane Doe",
		ResourceURL: "https://cal.example.com/sam/intro",
	}
	result := container.Dispatcher.HandleCalendar(ctx, booking)
	assert.True(t, result.Processed)
	assert.Equal(t, ingestionDomain.OutcomeConfirmed, result.Outcome)

	confirmed, err := container.AssignmentRepo.FindByBookingEventID(ctx, tenantID, "booking-1")
	require.NoError(t, err)
	assert.Equal(t, assignment.ID(), confirmed.ID())

	replay := container.Dispatcher.HandleCalendar(ctx, booking)
	assert.False(t, replay.Processed)
	assert.Equal(t, ingestionDomain.OutcomeDuplicate, replay.Outcome)
}

func TestLocalModeUnknownChannelIsAcknowledged(t *testing.T) {
	container := setupLocalContainer(t)

	result := container.Dispatcher.HandleMessaging(context.Background(), ingestionServices.MessagingEvent{
		Type:      ingestionDomain.TypeMessageReceived,
		ChannelID: "chat-unknown",
		MessageID: "m-1",
		Text:      "Hello?",
	})
	assert.False(t, result.Processed)
	assert.Equal(t, ingestionDomain.OutcomeIgnored, result.Outcome)
	assert.Equal(t, ingestionDomain.ReasonUnknownChannel, result.Reason)
}

func TestLocalModeOutboxCountsConsumedEvents(t *testing.T) {
	container := setupLocalContainer(t)
	ctx := context.Background()
	tenantID := container.Config.TenantID

	_, err := container.RegisterResourceHandler.Handle(ctx, resourceCommands.RegisterResourceCommand{
		TenantID:    tenantID,
		OwnerName:   "Sam Recruiter",
		ResourceURL: "https://cal.example.com/sam/intro",
	})
	require.NoError(t, err)
	_, _, err = container.Rotator.Assign(ctx, resourcesDomain.AssignRequest{
		TenantID:            tenantID,
		CandidateExternalID: "cand-1",
		CandidateName:       "Jane Doe",
	})
	require.NoError(t, err)

	require.NoError(t, container.OutboxProcessor.ProcessOnce(ctx))

	prom, ok := container.Metrics.(*observability.PrometheusMetrics)
	require.True(t, ok)
	families, err := prom.Registry().Gather()
	require.NoError(t, err)

	consumed := map[string]float64{}
	for _, family := range families {
		if family.GetName() != "talentreach_events_consumed_total" {
			continue
		}
		for _, metric := range family.GetMetric() {
			consumed[metric.GetLabel()[0].GetValue()] = metric.GetCounter().GetValue()
		}
	}
	assert.Equal(t, 1.0, consumed[resourcesDomain.RoutingKeyAssignmentCreated])
}
