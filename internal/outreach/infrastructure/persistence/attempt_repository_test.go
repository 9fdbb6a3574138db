package persistence

import (
	"context"
	"testing"
	"time"

	"github.com/felixgeelhaar/talentreach/internal/outreach/domain"
	sharedDomain "github.com/felixgeelhaar/talentreach/internal/shared/domain"
	"github.com/felixgeelhaar/talentreach/internal/shared/infrastructure/database/dbtest"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testNow = time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)

func newAttempt(t *testing.T, tenant uuid.UUID, candidate, campaign string) *domain.Attempt {
	t.Helper()
	a, err := domain.NewAttempt(domain.AttemptParams{
		TenantID:            tenant,
		CandidateExternalID: candidate,
		CandidateName:       "Jane Doe",
		CampaignRef:         campaign,
		JobRef:              "job-42",
	}, testNow)
	require.NoError(t, err)
	return a
}

func TestAttemptRepository_SQLite(t *testing.T) {
	ctx := context.Background()
	conn := dbtest.OpenSQLite(t)
	repo := NewAttemptRepository(conn)
	tenant := uuid.New()

	a := newAttempt(t, tenant, "cand-1", "backend-q2")
	require.NoError(t, repo.Create(ctx, a))
	assert.Equal(t, 1, a.Version())

	t.Run("one attempt per candidate and campaign", func(t *testing.T) {
		dup := newAttempt(t, tenant, "cand-1", "backend-q2")
		assert.ErrorIs(t, repo.Create(ctx, dup), domain.ErrDuplicateAttempt)

		other := newAttempt(t, tenant, "cand-1", "frontend-q2")
		require.NoError(t, repo.Create(ctx, other))
	})

	t.Run("round trip", func(t *testing.T) {
		got, err := repo.FindByCampaign(ctx, tenant, "cand-1", "backend-q2")
		require.NoError(t, err)
		assert.Equal(t, a.ID(), got.ID())
		assert.Equal(t, "job-42", got.JobRef())
		assert.Equal(t, domain.StatusSent, got.Status())
		assert.Nil(t, got.ConversationID())
	})

	t.Run("save persists transitions", func(t *testing.T) {
		_, err := a.RequestConnection(testNow.Add(time.Hour))
		require.NoError(t, err)
		_, err = a.AcceptConnection(testNow.Add(time.Hour))
		require.NoError(t, err)
		convID := uuid.New()
		next := testNow.Add(3 * domain.Day)
		_, err = a.MarkPitchSent(convID, testNow.Add(2*time.Hour), &next)
		require.NoError(t, err)
		require.NoError(t, repo.Save(ctx, a))
		assert.Equal(t, 2, a.Version())

		got, err := repo.FindByConversationID(ctx, tenant, convID)
		require.NoError(t, err)
		assert.Equal(t, domain.StatusPitchSent, got.Status())
		require.NotNil(t, got.NextFollowUpAt())
		assert.True(t, next.Equal(*got.NextFollowUpAt()))
		require.NotNil(t, got.PitchSentAt())
		assert.True(t, testNow.Add(2*time.Hour).Equal(*got.PitchSentAt()))
	})

	t.Run("stale version is rejected", func(t *testing.T) {
		stale, err := repo.FindByID(ctx, tenant, a.ID())
		require.NoError(t, err)

		_, err = a.RecordDeliveryStatus("delivered", testNow)
		require.NoError(t, err)
		require.NoError(t, repo.Save(ctx, a))

		_, err = stale.MarkReplied(testNow)
		require.NoError(t, err)
		assert.ErrorIs(t, repo.Save(ctx, stale), sharedDomain.ErrOptimisticLocking)
	})

	t.Run("latest open attempt by candidate", func(t *testing.T) {
		got, err := repo.FindLatestByCandidate(ctx, tenant, "cand-1",
			[]domain.Status{domain.StatusSent, domain.StatusConnectionRequested})
		require.NoError(t, err)
		assert.Equal(t, "frontend-q2", got.CampaignRef())

		_, err = repo.FindLatestByCandidate(ctx, tenant, "cand-1", []domain.Status{domain.StatusBounced})
		assert.ErrorIs(t, err, domain.ErrAttemptNotFound)
	})

	t.Run("other tenants see nothing", func(t *testing.T) {
		_, err := repo.FindByID(ctx, uuid.New(), a.ID())
		assert.ErrorIs(t, err, domain.ErrAttemptNotFound)
	})
}

func TestAttemptRepository_DueQueries(t *testing.T) {
	ctx := context.Background()
	conn := dbtest.OpenSQLite(t)
	repo := NewAttemptRepository(conn)
	tenant := uuid.New()

	pending := newAttempt(t, tenant, "cand-pending", "c")
	_, err := pending.RequestConnection(testNow)
	require.NoError(t, err)
	_, err = pending.AcceptConnection(testNow)
	require.NoError(t, err)
	_, err = pending.QueuePitch(testNow.Add(time.Hour), testNow)
	require.NoError(t, err)
	require.NoError(t, repo.Create(ctx, pending))

	pitched := newAttempt(t, tenant, "cand-pitched", "c")
	_, err = pitched.RequestConnection(testNow)
	require.NoError(t, err)
	_, err = pitched.AcceptConnection(testNow)
	require.NoError(t, err)
	next := testNow.Add(3 * domain.Day)
	_, err = pitched.MarkPitchSent(uuid.New(), testNow, &next)
	require.NoError(t, err)
	require.NoError(t, repo.Create(ctx, pitched))

	quiet := newAttempt(t, tenant, "cand-quiet", "c")
	require.NoError(t, repo.Create(ctx, quiet))

	due, err := repo.ListPitchDue(ctx, testNow, 10)
	require.NoError(t, err)
	assert.Empty(t, due)

	due, err = repo.ListPitchDue(ctx, testNow.Add(time.Hour), 10)
	require.NoError(t, err)
	require.Len(t, due, 1)
	assert.Equal(t, pending.ID(), due[0].ID())

	followUps, err := repo.ListFollowUpDue(ctx, testNow.Add(2*domain.Day), 10)
	require.NoError(t, err)
	assert.Empty(t, followUps)

	followUps, err = repo.ListFollowUpDue(ctx, testNow.Add(3*domain.Day), 10)
	require.NoError(t, err)
	require.Len(t, followUps, 1)
	assert.Equal(t, pitched.ID(), followUps[0].ID())
}
