package app

import (
	"context"
	"testing"
	"time"

	conversationsDomain "github.com/felixgeelhaar/talentreach/internal/conversations/domain"
	"github.com/felixgeelhaar/talentreach/internal/conversations/infrastructure/cache"
	conversationsPersistence "github.com/felixgeelhaar/talentreach/internal/conversations/infrastructure/persistence"
	"github.com/felixgeelhaar/talentreach/internal/shared/infrastructure/database"
	"github.com/felixgeelhaar/talentreach/internal/shared/infrastructure/database/dbtest"
	"github.com/felixgeelhaar/talentreach/pkg/observability"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRepositoryFactory_Driver(t *testing.T) {
	factory := NewRepositoryFactory(dbtest.OpenSQLite(t))
	assert.Equal(t, database.DriverSQLite, factory.Driver())
	assert.NotNil(t, factory.UnitOfWork())
	assert.NotNil(t, factory.OutboxRepository())
	assert.NotNil(t, factory.ResourceRepository())
	assert.NotNil(t, factory.AssignmentRepository())
	assert.NotNil(t, factory.PendingReplyRepository())
	assert.NotNil(t, factory.AttemptRepository())
	assert.NotNil(t, factory.DeliveryLedger())
}

func TestRepositoryFactory_ConversationRepository(t *testing.T) {
	factory := NewRepositoryFactory(dbtest.OpenSQLite(t))

	t.Run("without index", func(t *testing.T) {
		repo := factory.ConversationRepository(nil, nil)
		assert.IsType(t, &conversationsPersistence.ConversationRepository{}, repo)
	})

	t.Run("with index resolves channels through it", func(t *testing.T) {
		ctx := context.Background()
		index := cache.NewInMemoryChannelIndex()
		repo := factory.ConversationRepository(index, observability.DiscardLogger())
		require.IsType(t, &cache.Repository{}, repo)

		tenantID := uuid.New()
		conv, err := conversationsDomain.Start(conversationsDomain.StartParams{
			TenantID:            tenantID,
			ExternalChannelID:   "chat-1",
			CandidateExternalID: "cand-1",
			CandidateName:       "Jane Doe",
			FirstMessage:        "Hi Jane, are you open to a new role?",
		}, time.Now())
		require.NoError(t, err)
		require.NoError(t, repo.Create(ctx, conv))

		id, ok, err := index.Lookup(ctx, tenantID, "chat-1")
		require.NoError(t, err)
		require.True(t, ok)
		assert.Equal(t, conv.ID(), id)

		found, err := repo.FindByChannelID(ctx, tenantID, "chat-1")
		require.NoError(t, err)
		assert.Equal(t, conv.ID(), found.ID())
	})
}
