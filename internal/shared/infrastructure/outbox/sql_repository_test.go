package outbox

import (
	"context"
	"testing"
	"time"

	"github.com/felixgeelhaar/talentreach/internal/shared/domain"
	"github.com/felixgeelhaar/talentreach/internal/shared/infrastructure/database"
	"github.com/felixgeelhaar/talentreach/internal/shared/infrastructure/database/dbtest"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSQLRepository_Lifecycle(t *testing.T) {
	conn := dbtest.OpenSQLite(t)
	repo := NewSQLRepository(conn)
	now := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
	repo.now = func() time.Time { return now }
	ctx := context.Background()

	event := newTestEvent(uuid.New(), "first")
	require.NoError(t, SaveEvents(ctx, repo, nil))

	uow := database.NewUnitOfWork(conn)
	txCtx, err := uow.Begin(ctx)
	require.NoError(t, err)
	require.NoError(t, SaveEvents(txCtx, repo, []domain.DomainEvent{event}))
	require.NoError(t, uow.Commit(txCtx))

	msgs, err := repo.GetUnpublished(ctx, 10)
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	msg := msgs[0]
	assert.Equal(t, event.EventID(), msg.EventID)
	assert.Equal(t, event.AggregateID(), msg.AggregateID)
	assert.JSONEq(t, `{"data":"first"}`, string(msg.Payload))
	assert.True(t, event.OccurredAt().Equal(msg.CreatedAt))

	t.Run("failed message waits for its retry time", func(t *testing.T) {
		require.NoError(t, repo.MarkFailed(ctx, msg.ID, "broker down", now.Add(time.Minute)))

		due, err := repo.GetUnpublished(ctx, 10)
		require.NoError(t, err)
		assert.Empty(t, due)

		now = now.Add(2 * time.Minute)
		due, err = repo.GetUnpublished(ctx, 10)
		require.NoError(t, err)
		require.Len(t, due, 1)
		assert.Equal(t, 1, due[0].RetryCount)
		require.NotNil(t, due[0].LastError)
		assert.Equal(t, "broker down", *due[0].LastError)
	})

	t.Run("published message is no longer returned and ages out", func(t *testing.T) {
		require.NoError(t, repo.MarkPublished(ctx, msg.ID))

		due, err := repo.GetUnpublished(ctx, 10)
		require.NoError(t, err)
		assert.Empty(t, due)

		now = now.AddDate(0, 0, 8)
		deleted, err := repo.DeleteOld(ctx, 7)
		require.NoError(t, err)
		assert.Equal(t, int64(1), deleted)
	})
}

func TestSQLRepository_RollbackDiscardsMessages(t *testing.T) {
	conn := dbtest.OpenSQLite(t)
	repo := NewSQLRepository(conn)
	ctx := context.Background()

	uow := database.NewUnitOfWork(conn)
	txCtx, err := uow.Begin(ctx)
	require.NoError(t, err)
	require.NoError(t, SaveEvents(txCtx, repo, []domain.DomainEvent{newTestEvent(uuid.New(), "discarded")}))
	require.NoError(t, uow.Rollback(txCtx))

	msgs, err := repo.GetUnpublished(ctx, 10)
	require.NoError(t, err)
	assert.Empty(t, msgs)
}

func TestSQLRepository_MarkDead(t *testing.T) {
	conn := dbtest.OpenSQLite(t)
	repo := NewSQLRepository(conn)
	ctx := context.Background()

	msg, err := NewMessage(newTestEvent(uuid.New(), "poison"))
	require.NoError(t, err)
	require.NoError(t, repo.Save(ctx, msg))
	require.NotZero(t, msg.ID)

	require.NoError(t, repo.MarkDead(ctx, msg.ID, "unroutable"))

	msgs, err := repo.GetUnpublished(ctx, 10)
	require.NoError(t, err)
	assert.Empty(t, msgs)
}
