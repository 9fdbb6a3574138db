package persistence

import (
	"context"
	"testing"
	"time"

	"github.com/felixgeelhaar/talentreach/internal/resources/domain"
	"github.com/felixgeelhaar/talentreach/internal/shared/infrastructure/database"
	"github.com/felixgeelhaar/talentreach/internal/shared/infrastructure/database/dbtest"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testNow = time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)

func TestResourceRepository_SQLite(t *testing.T) {
	ctx := context.Background()
	conn := dbtest.OpenSQLite(t)
	repo := NewResourceRepository(conn)
	tenant := uuid.New()

	alex, err := domain.NewResource(tenant, "Alex", "https://cal.example.com/alex", testNow)
	require.NoError(t, err)
	require.NoError(t, repo.Save(ctx, alex))

	bea, err := domain.NewResource(tenant, "Bea", "https://cal.example.com/bea", testNow)
	require.NoError(t, err)
	require.NoError(t, repo.Save(ctx, bea))

	t.Run("duplicate url is rejected", func(t *testing.T) {
		dup, err := domain.NewResource(tenant, "Other", "https://cal.example.com/alex", testNow)
		require.NoError(t, err)
		assert.ErrorIs(t, repo.Save(ctx, dup), domain.ErrDuplicateResourceURL)
	})

	t.Run("increment survives a later save", func(t *testing.T) {
		require.NoError(t, repo.IncrementAssignment(ctx, alex.ID(), testNow.Add(time.Minute)))
		require.NoError(t, repo.IncrementAssignment(ctx, alex.ID(), testNow.Add(2*time.Minute)))

		alex.Deactivate(testNow.Add(3 * time.Minute))
		require.NoError(t, repo.Save(ctx, alex))

		got, err := repo.FindByID(ctx, tenant, alex.ID())
		require.NoError(t, err)
		assert.False(t, got.IsActive())
		assert.Equal(t, 2, got.AssignmentCount())
		require.NotNil(t, got.LastAssignedAt())
		assert.True(t, testNow.Add(2*time.Minute).Equal(*got.LastAssignedAt()))
	})

	t.Run("active listing skips inactive", func(t *testing.T) {
		active, err := repo.ListActiveForUpdate(ctx, tenant)
		require.NoError(t, err)
		require.Len(t, active, 1)
		assert.Equal(t, bea.ID(), active[0].ID())

		all, err := repo.List(ctx, tenant)
		require.NoError(t, err)
		require.Len(t, all, 2)
		assert.Equal(t, bea.ID(), all[0].ID(), "active first")
	})

	t.Run("other tenants see nothing", func(t *testing.T) {
		_, err := repo.FindByID(ctx, uuid.New(), bea.ID())
		assert.ErrorIs(t, err, domain.ErrResourceNotFound)
	})

	t.Run("increment of unknown resource", func(t *testing.T) {
		assert.ErrorIs(t, repo.IncrementAssignment(ctx, uuid.New(), testNow), domain.ErrResourceNotFound)
	})
}

func TestAssignmentRepository_SQLite(t *testing.T) {
	ctx := context.Background()
	conn := dbtest.OpenSQLite(t)
	resources := NewResourceRepository(conn)
	repo := NewAssignmentRepository(conn)
	tenant := uuid.New()

	res, err := domain.NewResource(tenant, "Alex", "https://cal.example.com/alex", testNow)
	require.NoError(t, err)
	require.NoError(t, resources.Save(ctx, res))

	conversationID := uuid.New()
	recent, err := domain.NewAssignment(res, "cand-1", "Jane Doe", &conversationID, testNow.Add(-10*time.Hour))
	require.NoError(t, err)
	require.NoError(t, repo.Create(ctx, recent))

	old, err := domain.NewAssignment(res, "cand-2", "Jane D.", nil, testNow.Add(-100*time.Hour))
	require.NoError(t, err)
	require.NoError(t, repo.Create(ctx, old))

	t.Run("unconfirmed within window", func(t *testing.T) {
		resourceID := res.ID()
		list, err := repo.ListUnconfirmedSince(ctx, tenant, &resourceID, testNow.Add(-72*time.Hour))
		require.NoError(t, err)
		require.Len(t, list, 1)
		assert.Equal(t, recent.ID(), list[0].ID())
		require.NotNil(t, list[0].ConversationID())
		assert.Equal(t, conversationID, *list[0].ConversationID())

		global, err := repo.ListUnconfirmedSince(ctx, tenant, nil, testNow.Add(-200*time.Hour))
		require.NoError(t, err)
		assert.Len(t, global, 2)
	})

	t.Run("confirm exactly once", func(t *testing.T) {
		require.True(t, recent.Confirm("evt-1", testNow))
		ok, err := repo.Confirm(ctx, recent)
		require.NoError(t, err)
		assert.True(t, ok)

		stale := domain.RehydrateAssignment(recent.ID(), tenant, res.ID(), "cand-1", "Jane Doe", nil,
			recent.SentAt(), false, nil, "")
		require.True(t, stale.Confirm("evt-2", testNow))
		ok, err = repo.Confirm(ctx, stale)
		require.NoError(t, err)
		assert.False(t, ok, "already confirmed rows are left alone")

		got, err := repo.FindByBookingEventID(ctx, tenant, "evt-1")
		require.NoError(t, err)
		assert.True(t, got.IsConfirmed())
		assert.Equal(t, recent.ID(), got.ID())

		_, err = repo.FindByBookingEventID(ctx, tenant, "evt-2")
		assert.ErrorIs(t, err, domain.ErrAssignmentNotFound)
	})

	t.Run("by candidate", func(t *testing.T) {
		list, err := repo.ListByCandidate(ctx, tenant, "cand-2")
		require.NoError(t, err)
		require.Len(t, list, 1)
		assert.Equal(t, "Jane D.", list[0].CandidateName())
		assert.Nil(t, list[0].ConversationID())
	})
}

func TestResourceRepository_RollbackKeepsCount(t *testing.T) {
	ctx := context.Background()
	conn := dbtest.OpenSQLite(t)
	repo := NewResourceRepository(conn)
	tenant := uuid.New()

	res, err := domain.NewResource(tenant, "Alex", "https://cal.example.com/alex", testNow)
	require.NoError(t, err)
	require.NoError(t, repo.Save(ctx, res))

	uow := database.NewUnitOfWork(conn)
	txCtx, err := uow.Begin(ctx)
	require.NoError(t, err)
	require.NoError(t, repo.IncrementAssignment(txCtx, res.ID(), testNow))
	require.NoError(t, uow.Rollback(txCtx))

	got, err := repo.FindByID(ctx, tenant, res.ID())
	require.NoError(t, err)
	assert.Equal(t, 0, got.AssignmentCount())
}

func rehydrateUnconfirmed(tenant uuid.UUID) *domain.Assignment {
	return domain.RehydrateAssignment(uuid.New(), tenant, uuid.New(), "cand-1", "Jane Doe", nil,
		testNow.Add(-time.Hour), false, nil, "")
}
