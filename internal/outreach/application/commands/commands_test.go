package commands

import (
	"context"
	"errors"
	"testing"
	"time"

	conversationsDomain "github.com/felixgeelhaar/talentreach/internal/conversations/domain"
	conversationsPersistence "github.com/felixgeelhaar/talentreach/internal/conversations/infrastructure/persistence"
	"github.com/felixgeelhaar/talentreach/internal/messaging"
	"github.com/felixgeelhaar/talentreach/internal/outreach/application/services"
	"github.com/felixgeelhaar/talentreach/internal/outreach/domain"
	"github.com/felixgeelhaar/talentreach/internal/outreach/infrastructure/persistence"
	sharedApplication "github.com/felixgeelhaar/talentreach/internal/shared/application"
	sharedDomain "github.com/felixgeelhaar/talentreach/internal/shared/domain"
	"github.com/felixgeelhaar/talentreach/internal/shared/infrastructure/database"
	"github.com/felixgeelhaar/talentreach/internal/shared/infrastructure/database/dbtest"
	"github.com/felixgeelhaar/talentreach/internal/shared/infrastructure/outbox"
	"github.com/felixgeelhaar/talentreach/pkg/observability"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

var testNow = time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)

type mockProvider struct {
	mock.Mock
}

func (m *mockProvider) SendInvite(ctx context.Context, targetID, note string) (messaging.Invite, error) {
	args := m.Called(ctx, targetID, note)
	return args.Get(0).(messaging.Invite), args.Error(1)
}

func (m *mockProvider) FetchProfile(ctx context.Context, targetID string) (messaging.Profile, error) {
	args := m.Called(ctx, targetID)
	return args.Get(0).(messaging.Profile), args.Error(1)
}

type mockDispatcher struct {
	mock.Mock
}

func (m *mockDispatcher) Dispatch(ctx context.Context, tenantID, attemptID uuid.UUID) (bool, error) {
	args := m.Called(ctx, tenantID, attemptID)
	return args.Bool(0), args.Error(1)
}

type commandFixture struct {
	writer        services.EventWriter
	attempts      *persistence.AttemptRepository
	conversations *conversationsPersistence.ConversationRepository
	outbox        *outbox.SQLRepository
	uow           sharedApplication.UnitOfWork
	provider      *mockProvider
	clock         *sharedDomain.FixedClock
	tenant        uuid.UUID
}

func newCommandFixture(t *testing.T) *commandFixture {
	t.Helper()
	conn := dbtest.OpenSQLite(t)
	f := &commandFixture{
		attempts:      persistence.NewAttemptRepository(conn),
		conversations: conversationsPersistence.NewConversationRepository(conn),
		outbox:        outbox.NewSQLRepository(conn),
		uow:           database.NewUnitOfWork(conn),
		provider:      &mockProvider{},
		clock:         sharedDomain.NewFixedClock(testNow),
		tenant:        uuid.New(),
	}
	f.writer = services.EventWriter{Attempts: f.attempts, Conversations: f.conversations, Outbox: f.outbox}
	return f
}

func (f *commandFixture) requested(t *testing.T, candidate, name string) *domain.Attempt {
	t.Helper()
	a, err := domain.NewAttempt(domain.AttemptParams{TenantID: f.tenant, CandidateExternalID: candidate, CandidateName: name}, f.clock.Now())
	require.NoError(t, err)
	_, err = a.RequestConnection(f.clock.Now())
	require.NoError(t, err)
	require.NoError(t, f.attempts.Create(context.Background(), a))
	return a
}

// pitched stores an attempt in PITCH_SENT with its conversation.
func (f *commandFixture) pitched(t *testing.T, candidate, channel string) (*domain.Attempt, *conversationsDomain.Conversation) {
	t.Helper()
	ctx := context.Background()
	a, err := domain.NewAttempt(domain.AttemptParams{TenantID: f.tenant, CandidateExternalID: candidate}, f.clock.Now())
	require.NoError(t, err)
	id := a.ID()
	conv, err := conversationsDomain.Start(conversationsDomain.StartParams{
		TenantID:            f.tenant,
		ExternalChannelID:   channel,
		CandidateExternalID: candidate,
		AttemptID:           &id,
		FirstMessage:        "Hi, are you open to new roles?",
		ExternalMessageID:   "out-" + channel,
	}, f.clock.Now())
	require.NoError(t, err)
	require.NoError(t, f.conversations.Create(ctx, conv))

	_, err = a.RequestConnection(f.clock.Now())
	require.NoError(t, err)
	_, err = a.AcceptConnection(f.clock.Now())
	require.NoError(t, err)
	_, err = a.MarkPitchSent(conv.ID(), f.clock.Now(), nil)
	require.NoError(t, err)
	require.NoError(t, f.attempts.Create(ctx, a))
	return a, conv
}

func (f *commandFixture) reload(t *testing.T, a *domain.Attempt) *domain.Attempt {
	t.Helper()
	got, err := f.attempts.FindByID(context.Background(), f.tenant, a.ID())
	require.NoError(t, err)
	return got
}

func TestStartOutreach(t *testing.T) {
	ctx := context.Background()
	f := newCommandFixture(t)
	h := NewStartOutreachHandler(f.writer, f.uow, f.provider, f.clock, observability.DiscardLogger())
	cmd := StartOutreachCommand{
		TenantID:            f.tenant,
		CandidateExternalID: "cand-1",
		CandidateName:       "Jane Doe",
		CampaignRef:         "backend-q2",
		Note:                "Hi Jane, let's connect.",
	}

	f.provider.On("SendInvite", mock.Anything, "cand-1", "Hi Jane, let's connect.").
		Return(messaging.Invite{}, errors.New("provider unavailable")).Once()
	a, err := h.Handle(ctx, cmd)
	require.Error(t, err)
	require.NotNil(t, a)
	assert.Equal(t, domain.StatusSent, f.reload(t, a).Status())

	t.Run("retry sends the invite again", func(t *testing.T) {
		f.provider.On("SendInvite", mock.Anything, "cand-1", "Hi Jane, let's connect.").
			Return(messaging.Invite{ID: "inv-1"}, nil).Once()
		again, err := h.Handle(ctx, cmd)
		require.NoError(t, err)
		assert.Equal(t, a.ID(), again.ID())
		assert.Equal(t, domain.StatusConnectionRequested, again.Status())
	})

	t.Run("existing attempt is returned unchanged", func(t *testing.T) {
		again, err := h.Handle(ctx, cmd)
		require.NoError(t, err)
		assert.Equal(t, a.ID(), again.ID())
		assert.Equal(t, domain.StatusConnectionRequested, again.Status())
	})

	f.provider.AssertNumberOfCalls(t, "SendInvite", 2)

	msgs, err := f.outbox.GetUnpublished(ctx, 100)
	require.NoError(t, err)
	require.Len(t, msgs, 2)
	assert.Equal(t, domain.RoutingKeyAttemptCreated, msgs[0].RoutingKey)
	assert.Equal(t, domain.RoutingKeyConnectionRequested, msgs[1].RoutingKey)
}

func TestAcceptConnection(t *testing.T) {
	ctx := context.Background()

	t.Run("unknown candidate", func(t *testing.T) {
		f := newCommandFixture(t)
		h := NewAcceptConnectionHandler(f.writer, f.uow, nil, nil, AcceptConnectionConfig{}, f.clock, observability.DiscardLogger())

		_, err := h.Handle(ctx, AcceptConnectionCommand{TenantID: f.tenant, CandidateExternalID: "nobody"})
		assert.ErrorIs(t, err, domain.ErrAttemptNotFound)
	})

	t.Run("profile fills a missing name and the pitch is delayed", func(t *testing.T) {
		f := newCommandFixture(t)
		a := f.requested(t, "cand-1", "")
		f.provider.On("FetchProfile", mock.Anything, "cand-1").Return(messaging.Profile{ID: "cand-1", Name: "Jane Doe"}, nil).Once()
		h := NewAcceptConnectionHandler(f.writer, f.uow, f.provider, nil,
			AcceptConnectionConfig{AutoPitch: true, PitchDelay: 2 * time.Hour}, f.clock, observability.DiscardLogger())

		result, err := h.Handle(ctx, AcceptConnectionCommand{TenantID: f.tenant, CandidateExternalID: "cand-1"})
		require.NoError(t, err)
		assert.False(t, result.PitchSent)

		got := f.reload(t, a)
		assert.Equal(t, "Jane Doe", got.CandidateName())
		assert.Equal(t, domain.StatusPitchPending, got.Status())
		require.NotNil(t, got.PitchDueAt())
		assert.True(t, testNow.Add(2*time.Hour).Equal(*got.PitchDueAt()))

		_, err = h.Handle(ctx, AcceptConnectionCommand{TenantID: f.tenant, CandidateExternalID: "cand-1"})
		assert.ErrorIs(t, err, domain.ErrAttemptNotFound, "replayed acceptance finds no open attempt")
		f.provider.AssertExpectations(t)
	})

	t.Run("immediate pitch goes through the dispatcher", func(t *testing.T) {
		f := newCommandFixture(t)
		a := f.requested(t, "cand-1", "Jane Doe")
		dispatcher := &mockDispatcher{}
		dispatcher.On("Dispatch", mock.Anything, f.tenant, a.ID()).Return(true, nil).Once()
		h := NewAcceptConnectionHandler(f.writer, f.uow, f.provider, dispatcher,
			AcceptConnectionConfig{AutoPitch: true}, f.clock, observability.DiscardLogger())

		result, err := h.Handle(ctx, AcceptConnectionCommand{TenantID: f.tenant, CandidateExternalID: "cand-1"})
		require.NoError(t, err)
		assert.True(t, result.PitchSent)
		assert.Equal(t, domain.StatusConnectionAccepted, result.Attempt.Status())
		dispatcher.AssertExpectations(t)
		f.provider.AssertNotCalled(t, "FetchProfile", mock.Anything, mock.Anything)
	})

	t.Run("auto pitch disabled", func(t *testing.T) {
		f := newCommandFixture(t)
		a := f.requested(t, "cand-1", "Jane Doe")
		dispatcher := &mockDispatcher{}
		h := NewAcceptConnectionHandler(f.writer, f.uow, nil, dispatcher, AcceptConnectionConfig{}, f.clock, observability.DiscardLogger())

		_, err := h.Handle(ctx, AcceptConnectionCommand{TenantID: f.tenant, CandidateExternalID: "cand-1"})
		require.NoError(t, err)
		assert.Equal(t, domain.StatusConnectionAccepted, f.reload(t, a).Status())
		dispatcher.AssertNotCalled(t, "Dispatch", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("attempt whose invite looked failed records the request first", func(t *testing.T) {
		f := newCommandFixture(t)
		a, err := domain.NewAttempt(domain.AttemptParams{TenantID: f.tenant, CandidateExternalID: "cand-1", CandidateName: "Jane Doe"}, f.clock.Now())
		require.NoError(t, err)
		require.NoError(t, f.attempts.Create(ctx, a))
		h := NewAcceptConnectionHandler(f.writer, f.uow, nil, nil, AcceptConnectionConfig{}, f.clock, observability.DiscardLogger())

		_, err = h.Handle(ctx, AcceptConnectionCommand{TenantID: f.tenant, CandidateExternalID: "cand-1"})
		require.NoError(t, err)
		assert.Equal(t, domain.StatusConnectionAccepted, f.reload(t, a).Status())

		msgs, err := f.outbox.GetUnpublished(ctx, 100)
		require.NoError(t, err)
		var keys []string
		for _, msg := range msgs {
			keys = append(keys, msg.RoutingKey)
		}
		assert.Equal(t, []string{domain.RoutingKeyConnectionRequested, domain.RoutingKeyConnectionAccepted}, keys)
	})
}

func TestMarkReplied(t *testing.T) {
	ctx := context.Background()
	f := newCommandFixture(t)
	a, conv := f.pitched(t, "cand-1", "chat-1")
	h := NewMarkRepliedHandler(f.writer, f.uow, f.clock)

	got, err := h.Handle(ctx, MarkRepliedCommand{TenantID: f.tenant, ConversationID: conv.ID()})
	require.NoError(t, err)
	assert.Equal(t, domain.StatusReplied, got.Status())

	again, err := h.Handle(ctx, MarkRepliedCommand{TenantID: f.tenant, ConversationID: conv.ID()})
	require.NoError(t, err)
	assert.Equal(t, got.Version(), again.Version(), "replay writes nothing")

	_, err = h.Handle(ctx, MarkRepliedCommand{TenantID: f.tenant, ConversationID: uuid.New()})
	assert.ErrorIs(t, err, domain.ErrAttemptNotFound)
	assert.Equal(t, domain.StatusReplied, f.reload(t, a).Status())
}

func TestMarkBounced(t *testing.T) {
	ctx := context.Background()
	f := newCommandFixture(t)
	a, conv := f.pitched(t, "cand-1", "chat-1")
	h := NewMarkBouncedHandler(f.writer, f.uow, f.clock)

	got, err := h.Handle(ctx, MarkBouncedCommand{
		Ref:    AttemptRef{TenantID: f.tenant, CandidateExternalID: "cand-1"},
		Reason: "recipient unreachable",
	})
	require.NoError(t, err)
	assert.Equal(t, domain.StatusBounced, got.Status())
	assert.Equal(t, "recipient unreachable", got.BounceReason())

	closed, err := f.conversations.FindByID(ctx, f.tenant, conv.ID())
	require.NoError(t, err)
	assert.Equal(t, conversationsDomain.StageClosedBounced, closed.Stage())
	assert.Equal(t, conversationsDomain.StatusCompleted, closed.Status())

	t.Run("by conversation after the fact is a no-op", func(t *testing.T) {
		id := conv.ID()
		again, err := h.Handle(ctx, MarkBouncedCommand{Ref: AttemptRef{TenantID: f.tenant, ConversationID: &id}})
		require.NoError(t, err)
		assert.Equal(t, "recipient unreachable", again.BounceReason())
		assert.Equal(t, a.ID(), again.ID())
	})

	t.Run("no reference", func(t *testing.T) {
		_, err := h.Handle(ctx, MarkBouncedCommand{Ref: AttemptRef{TenantID: f.tenant}})
		assert.ErrorIs(t, err, domain.ErrAttemptNotFound)
	})
}

func TestRecordDelivery(t *testing.T) {
	ctx := context.Background()
	f := newCommandFixture(t)
	_, conv := f.pitched(t, "cand-1", "chat-1")
	h := NewRecordDeliveryHandler(f.writer, f.uow, f.clock)
	id := conv.ID()

	got, err := h.Handle(ctx, RecordDeliveryCommand{Ref: AttemptRef{TenantID: f.tenant, ConversationID: &id}, Status: "read"})
	require.NoError(t, err)
	assert.Equal(t, "read", got.LastDeliveryStatus())
	assert.Equal(t, domain.StatusPitchSent, got.Status())
}
