package persistence

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/felixgeelhaar/talentreach/internal/conversations/domain"
	sharedDomain "github.com/felixgeelhaar/talentreach/internal/shared/domain"
	"github.com/felixgeelhaar/talentreach/internal/shared/infrastructure/database/dbtest"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testNow = time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)

func startConversation(t *testing.T, tenant uuid.UUID, channel string) *domain.Conversation {
	t.Helper()
	attempt := uuid.New()
	c, err := domain.Start(domain.StartParams{
		TenantID:            tenant,
		ExternalChannelID:   channel,
		CandidateExternalID: "cand-" + channel,
		CandidateName:       "Jane Doe",
		AttemptID:           &attempt,
		FirstMessage:        "Hi Jane, are you open to a chat?",
		ExternalMessageID:   "m-0",
	}, testNow)
	require.NoError(t, err)
	return c
}

func TestConversationRepository_SQLite(t *testing.T) {
	ctx := context.Background()
	conn := dbtest.OpenSQLite(t)
	repo := NewConversationRepository(conn)
	tenant := uuid.New()

	c := startConversation(t, tenant, "chat-1")
	require.NoError(t, repo.Create(ctx, c))
	assert.Equal(t, 1, c.Version())
	assert.Empty(t, c.UnsavedMessages())

	t.Run("duplicate channel is rejected", func(t *testing.T) {
		dup := startConversation(t, tenant, "chat-1")
		assert.ErrorIs(t, repo.Create(ctx, dup), domain.ErrDuplicateChannel)
	})

	t.Run("finds by channel with transcript", func(t *testing.T) {
		got, err := repo.FindByChannelID(ctx, tenant, "chat-1")
		require.NoError(t, err)
		assert.Equal(t, c.ID(), got.ID())
		assert.Equal(t, domain.StageAwaitingResponse, got.Stage())
		require.NotNil(t, got.AttemptID())
		assert.Equal(t, *c.AttemptID(), *got.AttemptID())
		require.Len(t, got.Transcript(), 1)
		assert.Equal(t, domain.RoleSystem, got.Transcript()[0].Role)
		assert.Positive(t, got.Transcript()[0].Seq)
	})

	t.Run("transcript follows arrival order", func(t *testing.T) {
		got, err := repo.FindByID(ctx, tenant, c.ID())
		require.NoError(t, err)

		late := testNow.Add(-time.Hour)
		got.ReceiveCandidateMessage("second sent, first received", "m-2", &late, testNow.Add(time.Minute))
		got.ReceiveCandidateMessage("first sent, second received", "m-1", nil, testNow.Add(2*time.Minute))
		require.NoError(t, repo.Save(ctx, got))
		assert.Equal(t, 2, got.Version())

		reloaded, err := repo.FindByID(ctx, tenant, c.ID())
		require.NoError(t, err)
		transcript := reloaded.Transcript()
		require.Len(t, transcript, 3)
		assert.Equal(t, "second sent, first received", transcript[1].Content)
		assert.Equal(t, "first sent, second received", transcript[2].Content)
		assert.Less(t, transcript[1].Seq, transcript[2].Seq)
		require.NotNil(t, transcript[1].ExternalCreatedAt)
		assert.True(t, late.Equal(*transcript[1].ExternalCreatedAt))
		assert.Equal(t, domain.StageInConversation, reloaded.Stage())
		assert.Equal(t, domain.RoleCandidate, reloaded.LastMessageBy())
	})

	t.Run("stale version fails", func(t *testing.T) {
		first, err := repo.FindByID(ctx, tenant, c.ID())
		require.NoError(t, err)
		second, err := repo.FindByID(ctx, tenant, c.ID())
		require.NoError(t, err)

		_, err = first.Escalate(domain.ReasonLegal, testNow.Add(3*time.Minute))
		require.NoError(t, err)
		require.NoError(t, repo.Save(ctx, first))

		second.ReceiveCandidateMessage("racing message", "m-3", nil, testNow.Add(3*time.Minute))
		err = repo.Save(ctx, second)
		assert.True(t, errors.Is(err, sharedDomain.ErrOptimisticLocking))

		reloaded, err := repo.FindByID(ctx, tenant, c.ID())
		require.NoError(t, err)
		assert.Equal(t, domain.StatusEscalated, reloaded.Status())
		assert.Equal(t, domain.ReasonLegal, reloaded.EscalationReason())
		assert.Len(t, reloaded.Transcript(), 3)
	})

	t.Run("redelivered message is stored once", func(t *testing.T) {
		a, err := repo.FindByID(ctx, tenant, c.ID())
		require.NoError(t, err)
		a.RecordSystemMessage("operator note", "m-4", nil, testNow.Add(4*time.Minute))
		require.NoError(t, repo.Save(ctx, a))

		b, err := repo.FindByID(ctx, tenant, c.ID())
		require.NoError(t, err)
		stale := domain.RehydrateConversation(b.ID(), b.TenantID(), b.ExternalChannelID(), b.CandidateExternalID(),
			b.CandidateName(), b.AttemptID(), b.Stage(), b.Status(), b.EscalationReason(), b.LastMessageBy(),
			b.LastMessageAt(), nil, b.Version(), b.CreatedAt(), b.UpdatedAt())
		stale.RecordSystemMessage("operator note", "m-4", nil, testNow.Add(5*time.Minute))
		require.NoError(t, repo.Save(ctx, stale))

		reloaded, err := repo.FindByID(ctx, tenant, c.ID())
		require.NoError(t, err)
		assert.Len(t, reloaded.Transcript(), 4)
	})

	t.Run("lists by status", func(t *testing.T) {
		other := startConversation(t, tenant, "chat-2")
		require.NoError(t, repo.Create(ctx, other))

		escalated, err := repo.ListByStatus(ctx, tenant, domain.StatusEscalated, 10)
		require.NoError(t, err)
		require.Len(t, escalated, 1)
		assert.Equal(t, c.ID(), escalated[0].ID())
		assert.NotEmpty(t, escalated[0].Transcript())

		active, err := repo.ListByStatus(ctx, tenant, domain.StatusActive, 0)
		require.NoError(t, err)
		require.Len(t, active, 1)
		assert.Equal(t, other.ID(), active[0].ID())
	})

	t.Run("other tenant sees nothing", func(t *testing.T) {
		_, err := repo.FindByID(ctx, uuid.New(), c.ID())
		assert.ErrorIs(t, err, domain.ErrConversationNotFound)
	})
}

func TestPendingReplyRepository_SQLite(t *testing.T) {
	ctx := context.Background()
	conn := dbtest.OpenSQLite(t)
	conversations := NewConversationRepository(conn)
	repo := NewPendingReplyRepository(conn)
	tenant := uuid.New()

	c := startConversation(t, tenant, "chat-9")
	require.NoError(t, conversations.Create(ctx, c))

	reply := domain.NewPendingReply(c, "Here is my calendar", "https://cal.example.com/alex",
		domain.StageScheduling, errors.New("provider unavailable"), testNow)
	require.NoError(t, repo.Save(ctx, reply))

	open, err := repo.ListOpen(ctx, tenant)
	require.NoError(t, err)
	require.Len(t, open, 1)
	assert.Equal(t, "provider unavailable", open[0].LastError())
	assert.Equal(t, "https://cal.example.com/alex", open[0].ResourceRef())
	assert.Equal(t, domain.StageScheduling, open[0].TargetStage())

	got, err := repo.FindByID(ctx, tenant, reply.ID())
	require.NoError(t, err)
	got.RecordFailure(errors.New("still down"), testNow.Add(time.Minute))
	require.NoError(t, got.Resolve(testNow.Add(2*time.Minute)))
	require.NoError(t, repo.Save(ctx, got))

	resolved, err := repo.FindByID(ctx, tenant, reply.ID())
	require.NoError(t, err)
	assert.True(t, resolved.IsResolved())
	assert.Equal(t, 3, resolved.Attempts())
	assert.Equal(t, "still down", resolved.LastError())

	open, err = repo.ListOpen(ctx, tenant)
	require.NoError(t, err)
	assert.Empty(t, open)

	_, err = repo.FindByID(ctx, tenant, uuid.New())
	assert.ErrorIs(t, err, domain.ErrPendingReplyNotFound)
}
