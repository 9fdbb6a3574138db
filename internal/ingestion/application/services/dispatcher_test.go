package services

import (
	"context"
	"errors"
	"testing"
	"time"

	conversationCommands "github.com/felixgeelhaar/talentreach/internal/conversations/application/commands"
	conversationServices "github.com/felixgeelhaar/talentreach/internal/conversations/application/services"
	conversationsDomain "github.com/felixgeelhaar/talentreach/internal/conversations/domain"
	"github.com/felixgeelhaar/talentreach/internal/ingestion/domain"
	"github.com/felixgeelhaar/talentreach/internal/ingestion/infrastructure/persistence"
	outreachCommands "github.com/felixgeelhaar/talentreach/internal/outreach/application/commands"
	outreachDomain "github.com/felixgeelhaar/talentreach/internal/outreach/domain"
	resourceServices "github.com/felixgeelhaar/talentreach/internal/resources/application/services"
	resourcesDomain "github.com/felixgeelhaar/talentreach/internal/resources/domain"
	sharedDomain "github.com/felixgeelhaar/talentreach/internal/shared/domain"
	"github.com/felixgeelhaar/talentreach/internal/shared/infrastructure/database"
	"github.com/felixgeelhaar/talentreach/internal/shared/infrastructure/database/dbtest"
	"github.com/felixgeelhaar/talentreach/pkg/observability"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

var testNow = time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)

type mockInbound struct{ mock.Mock }

func (m *mockInbound) Handle(ctx context.Context, msg conversationServices.InboundMessage) (conversationServices.Outcome, error) {
	args := m.Called(ctx, msg)
	return args.Get(0).(conversationServices.Outcome), args.Error(1)
}

type mockOutbound struct{ mock.Mock }

func (m *mockOutbound) Handle(ctx context.Context, cmd conversationCommands.RecordOutboundMessageCommand) (conversationCommands.RecordOutboundMessageResult, error) {
	args := m.Called(ctx, cmd)
	return args.Get(0).(conversationCommands.RecordOutboundMessageResult), args.Error(1)
}

type mockChannels struct{ mock.Mock }

func (m *mockChannels) FindByChannelID(ctx context.Context, tenantID uuid.UUID, channelID string) (*conversationsDomain.Conversation, error) {
	args := m.Called(ctx, tenantID, channelID)
	c, _ := args.Get(0).(*conversationsDomain.Conversation)
	return c, args.Error(1)
}

type mockReplies struct{ mock.Mock }

func (m *mockReplies) Handle(ctx context.Context, cmd outreachCommands.MarkRepliedCommand) (*outreachDomain.Attempt, error) {
	args := m.Called(ctx, cmd)
	return nil, args.Error(0)
}

type mockConnections struct{ mock.Mock }

func (m *mockConnections) Handle(ctx context.Context, cmd outreachCommands.AcceptConnectionCommand) (outreachCommands.AcceptConnectionResult, error) {
	args := m.Called(ctx, cmd)
	return args.Get(0).(outreachCommands.AcceptConnectionResult), args.Error(1)
}

type mockBounces struct{ mock.Mock }

func (m *mockBounces) Handle(ctx context.Context, cmd outreachCommands.MarkBouncedCommand) (*outreachDomain.Attempt, error) {
	args := m.Called(ctx, cmd)
	return nil, args.Error(0)
}

type mockDeliveries struct{ mock.Mock }

func (m *mockDeliveries) Handle(ctx context.Context, cmd outreachCommands.RecordDeliveryCommand) (*outreachDomain.Attempt, error) {
	args := m.Called(ctx, cmd)
	return nil, args.Error(0)
}

type mockBookings struct{ mock.Mock }

func (m *mockBookings) ConfirmBooking(ctx context.Context, tenantID uuid.UUID, booking resourcesDomain.Booking) (resourceServices.ConfirmResult, error) {
	args := m.Called(ctx, tenantID, booking)
	return args.Get(0).(resourceServices.ConfirmResult), args.Error(1)
}

type dispatcherFixture struct {
	tenant      uuid.UUID
	inbound     *mockInbound
	outbound    *mockOutbound
	channels    *mockChannels
	replies     *mockReplies
	connections *mockConnections
	bounces     *mockBounces
	deliveries  *mockDeliveries
	bookings    *mockBookings
	metrics     *observability.InMemoryMetrics
	reporter    *observability.RecordingReporter
	dispatcher  *Dispatcher
}

func newDispatcherFixture(t *testing.T) *dispatcherFixture {
	t.Helper()
	conn := dbtest.OpenSQLite(t)
	f := &dispatcherFixture{
		tenant:      uuid.New(),
		inbound:     &mockInbound{},
		outbound:    &mockOutbound{},
		channels:    &mockChannels{},
		replies:     &mockReplies{},
		connections: &mockConnections{},
		bounces:     &mockBounces{},
		deliveries:  &mockDeliveries{},
		bookings:    &mockBookings{},
		metrics:     observability.NewInMemoryMetrics(),
		reporter:    &observability.RecordingReporter{},
	}
	f.dispatcher = NewDispatcher(DispatcherConfig{
		TenantID:    f.tenant,
		Inbound:     f.inbound,
		Outbound:    f.outbound,
		Channels:    f.channels,
		Replies:     f.replies,
		Connections: f.connections,
		Bounces:     f.bounces,
		Deliveries:  f.deliveries,
		Bookings:    f.bookings,
		Ledger:      persistence.NewDeliveryLedger(conn),
		UnitOfWork:  database.NewUnitOfWork(conn),
		Clock:       sharedDomain.NewFixedClock(testNow),
		Reporter:    f.reporter,
		Metrics:     f.metrics,
		Logger:      observability.DiscardLogger(),
	})
	t.Cleanup(func() {
		f.inbound.AssertExpectations(t)
		f.outbound.AssertExpectations(t)
		f.replies.AssertExpectations(t)
		f.connections.AssertExpectations(t)
		f.bounces.AssertExpectations(t)
		f.deliveries.AssertExpectations(t)
		f.bookings.AssertExpectations(t)
	})
	return f
}

func (f *dispatcherFixture) conversation(t *testing.T, channel string) *conversationsDomain.Conversation {
	t.Helper()
	c, err := conversationsDomain.Start(conversationsDomain.StartParams{
		TenantID:            f.tenant,
		ExternalChannelID:   channel,
		CandidateExternalID: "cand-1",
		FirstMessage:        "Hi Jane",
	}, testNow)
	require.NoError(t, err)
	return c
}

func TestDispatcher_Messaging(t *testing.T) {
	ctx := context.Background()

	t.Run("unknown type is acknowledged", func(t *testing.T) {
		f := newDispatcherFixture(t)
		res := f.dispatcher.HandleMessaging(ctx, MessagingEvent{Type: "chat.typing", ChannelID: "chat-1"})
		assert.Equal(t, domain.Ignored(domain.ReasonUnknownType), res)
		assert.Equal(t, int64(1), f.metrics.GetCounter(observability.MetricWebhookEvents,
			observability.T("source", "messaging"), observability.T("outcome", domain.OutcomeIgnored)))
	})

	t.Run("missing channel is dropped", func(t *testing.T) {
		f := newDispatcherFixture(t)
		res := f.dispatcher.HandleMessaging(ctx, MessagingEvent{Type: domain.TypeMessageReceived, MessageID: "m-1", Text: "hi"})
		assert.Equal(t, domain.Ignored(domain.ReasonMissingCorrelation), res)
	})

	t.Run("candidate message is answered and ends the sequence", func(t *testing.T) {
		f := newDispatcherFixture(t)
		convID := uuid.New()
		f.inbound.On("Handle", mock.Anything, conversationServices.InboundMessage{
			TenantID:          f.tenant,
			ExternalChannelID: "chat-1",
			ExternalMessageID: "m-1",
			Content:           "Sounds interesting",
		}).Return(conversationServices.Outcome{Action: conversationServices.ActionRespond, Delivered: true, ConversationID: convID}, nil).Once()
		f.replies.On("Handle", mock.Anything, outreachCommands.MarkRepliedCommand{TenantID: f.tenant, ConversationID: convID}).Return(nil).Once()

		res := f.dispatcher.HandleMessaging(ctx, MessagingEvent{
			Type:      domain.TypeMessageReceived,
			ChannelID: "chat-1",
			MessageID: "m-1",
			ContactID: "cand-1",
			Text:      "Sounds interesting",
		})
		assert.Equal(t, domain.Result{Processed: true, Outcome: "respond"}, res)
	})

	t.Run("unknown conversation is never engaged", func(t *testing.T) {
		f := newDispatcherFixture(t)
		f.inbound.On("Handle", mock.Anything, mock.Anything).
			Return(conversationServices.Outcome{Action: conversationServices.ActionIgnore, Reason: conversationServices.ReasonUnknownConversation}, nil).Once()

		res := f.dispatcher.HandleMessaging(ctx, MessagingEvent{Type: domain.TypeMessageReceived, ChannelID: "stranger", MessageID: "m-1", Text: "hey"})
		assert.Equal(t, domain.Ignored(domain.ReasonUnknownChannel), res)
		f.replies.AssertNotCalled(t, "Handle", mock.Anything, mock.Anything)
	})

	t.Run("duplicate still repairs the attempt", func(t *testing.T) {
		f := newDispatcherFixture(t)
		convID := uuid.New()
		f.inbound.On("Handle", mock.Anything, mock.Anything).Return(conversationServices.Outcome{
			Action:         conversationServices.ActionIgnore,
			Reason:         conversationServices.ReasonDuplicateMessage,
			ConversationID: convID,
		}, nil).Once()
		f.replies.On("Handle", mock.Anything, mock.Anything).Return(nil).Once()

		res := f.dispatcher.HandleMessaging(ctx, MessagingEvent{Type: domain.TypeMessageReceived, ChannelID: "chat-1", MessageID: "m-1"})
		assert.False(t, res.Processed)
		assert.Equal(t, domain.OutcomeDuplicate, res.Outcome)
	})

	t.Run("reply on closed attempt is tolerated", func(t *testing.T) {
		f := newDispatcherFixture(t)
		f.inbound.On("Handle", mock.Anything, mock.Anything).Return(conversationServices.Outcome{
			Action:         conversationServices.ActionIgnore,
			Reason:         conversationServices.ReasonNotActive,
			ConversationID: uuid.New(),
		}, nil).Once()
		f.replies.On("Handle", mock.Anything, mock.Anything).Return(outreachDomain.ErrInvalidTransition).Once()

		res := f.dispatcher.HandleMessaging(ctx, MessagingEvent{Type: domain.TypeMessageReceived, ChannelID: "chat-1", MessageID: "m-2"})
		assert.True(t, res.Processed)
		assert.Equal(t, conversationServices.ReasonNotActive, res.Reason)
		assert.Empty(t, f.reporter.Reports())
	})

	t.Run("downstream failure is acknowledged and reported", func(t *testing.T) {
		f := newDispatcherFixture(t)
		f.inbound.On("Handle", mock.Anything, mock.Anything).Return(conversationServices.Outcome{}, errors.New("database locked")).Once()

		res := f.dispatcher.HandleMessaging(ctx, MessagingEvent{EventID: "e-1", Type: domain.TypeMessageReceived, ChannelID: "chat-1", MessageID: "m-1"})
		assert.Equal(t, domain.Result{Outcome: domain.OutcomeFailed, Reason: domain.ReasonProcessingFailed}, res)
		reports := f.reporter.Reports()
		require.Len(t, reports, 1)
		assert.Equal(t, "messaging", reports[0].Fields["source"])
		assert.Equal(t, "e-1", reports[0].Fields["event_id"])
	})

	t.Run("own account message is recorded", func(t *testing.T) {
		f := newDispatcherFixture(t)
		cmd := conversationCommands.RecordOutboundMessageCommand{
			TenantID:          f.tenant,
			ExternalChannelID: "chat-1",
			ExternalMessageID: "own-1",
			Content:           "Following up manually",
		}
		f.outbound.On("Handle", mock.Anything, cmd).Return(conversationCommands.RecordOutboundMessageResult{Recorded: true}, nil).Once()
		f.outbound.On("Handle", mock.Anything, cmd).Return(conversationCommands.RecordOutboundMessageResult{}, nil).Once()

		ev := MessagingEvent{Type: domain.TypeMessageReceived, ChannelID: "chat-1", MessageID: "own-1", FromSelf: true, Text: "Following up manually"}
		assert.Equal(t, domain.Processed(domain.OutcomeRecorded), f.dispatcher.HandleMessaging(ctx, ev))
		assert.Equal(t, domain.OutcomeDuplicate, f.dispatcher.HandleMessaging(ctx, ev).Outcome)
		f.inbound.AssertNotCalled(t, "Handle", mock.Anything, mock.Anything)
	})

	t.Run("own message on unknown channel", func(t *testing.T) {
		f := newDispatcherFixture(t)
		f.outbound.On("Handle", mock.Anything, mock.Anything).
			Return(conversationCommands.RecordOutboundMessageResult{}, conversationsDomain.ErrConversationNotFound).Once()

		res := f.dispatcher.HandleMessaging(ctx, MessagingEvent{Type: domain.TypeMessageReceived, ChannelID: "other", MessageID: "own-1", FromSelf: true})
		assert.Equal(t, domain.Ignored(domain.ReasonUnknownChannel), res)
	})
}

func TestDispatcher_RelationCreated(t *testing.T) {
	ctx := context.Background()

	t.Run("accepts the open attempt", func(t *testing.T) {
		f := newDispatcherFixture(t)
		f.connections.On("Handle", mock.Anything, outreachCommands.AcceptConnectionCommand{
			TenantID:            f.tenant,
			CandidateExternalID: "cand-1",
			CandidateName:       "Jane Doe",
		}).Return(outreachCommands.AcceptConnectionResult{PitchSent: true}, nil).Once()

		res := f.dispatcher.HandleMessaging(ctx, MessagingEvent{Type: domain.TypeRelationCreated, ContactID: "cand-1", ContactName: "Jane Doe"})
		assert.True(t, res.Processed)
		assert.Equal(t, domain.OutcomeAccepted, res.Outcome)
		assert.Equal(t, "pitch sent", res.Reason)
	})

	t.Run("relation we did not initiate is dropped", func(t *testing.T) {
		f := newDispatcherFixture(t)
		f.connections.On("Handle", mock.Anything, mock.Anything).
			Return(outreachCommands.AcceptConnectionResult{}, outreachDomain.ErrAttemptNotFound).Once()

		res := f.dispatcher.HandleMessaging(ctx, MessagingEvent{Type: domain.TypeRelationCreated, ContactID: "cand-9"})
		assert.Equal(t, domain.Ignored(domain.ReasonNoOpenAttempt), res)
		assert.Empty(t, f.reporter.Reports())
	})

	t.Run("missing contact", func(t *testing.T) {
		f := newDispatcherFixture(t)
		res := f.dispatcher.HandleMessaging(ctx, MessagingEvent{Type: domain.TypeRelationCreated})
		assert.Equal(t, domain.Ignored(domain.ReasonMissingCorrelation), res)
	})
}

func TestDispatcher_Calendar(t *testing.T) {
	ctx := context.Background()
	assignmentID := uuid.New()
	link := "https://cal.example.com/alex?ref=" + assignmentID.String()

	tests := []struct {
		name    string
		outcome resourceServices.ConfirmOutcome
		want    domain.Result
	}{
		{"confirmed", resourceServices.ConfirmOutcomeConfirmed, domain.Processed(domain.OutcomeConfirmed)},
		{"replayed", resourceServices.ConfirmOutcomeDuplicate, domain.Result{Outcome: domain.OutcomeDuplicate, Reason: domain.ReasonAlreadyProcessed}},
		{"no match", resourceServices.ConfirmOutcomeNoMatch, domain.Ignored(domain.ReasonNoMatch)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newDispatcherFixture(t)
			f.bookings.On("ConfirmBooking", mock.Anything, f.tenant, mock.MatchedBy(func(b resourcesDomain.Booking) bool {
				return b.ExternalEventID == "bk-1" && b.InviteeName == "Jane Doe" &&
					b.AssignmentID != nil && *b.AssignmentID == assignmentID
			})).Return(resourceServices.ConfirmResult{Outcome: tt.outcome}, nil).Once()

			res := f.dispatcher.HandleCalendar(ctx, CalendarEvent{
				EventID:     "bk-1",
				Type:        domain.TypeBookingCreated,
				InviteeName: "Jane Doe",
				ResourceURL: link,
			})
			assert.Equal(t, tt.want, res)
		})
	}

	t.Run("missing correlation", func(t *testing.T) {
		f := newDispatcherFixture(t)
		res := f.dispatcher.HandleCalendar(ctx, CalendarEvent{EventID: "bk-2", Type: domain.TypeBookingCreated})
		assert.Equal(t, domain.Ignored(domain.ReasonMissingCorrelation), res)
	})

	t.Run("cancellations are not handled", func(t *testing.T) {
		f := newDispatcherFixture(t)
		res := f.dispatcher.HandleCalendar(ctx, CalendarEvent{EventID: "bk-3", Type: "booking.canceled", InviteeName: "Jane"})
		assert.Equal(t, domain.Ignored(domain.ReasonUnknownType), res)
	})
}

func TestDispatcher_Delivery(t *testing.T) {
	ctx := context.Background()

	t.Run("status ping is recorded once", func(t *testing.T) {
		f := newDispatcherFixture(t)
		conv := f.conversation(t, "chat-1")
		convID := conv.ID()
		f.channels.On("FindByChannelID", mock.Anything, f.tenant, "chat-1").Return(conv, nil).Once()
		f.deliveries.On("Handle", mock.Anything, outreachCommands.RecordDeliveryCommand{
			Ref:    outreachCommands.AttemptRef{TenantID: f.tenant, ConversationID: &convID},
			Status: "read",
		}).Return(nil).Once()

		ev := DeliveryEvent{EventID: "d-1", Type: domain.TypeMessageRead, ChannelID: "chat-1", MessageID: "m-1"}
		assert.Equal(t, domain.Processed(domain.OutcomeRecorded), f.dispatcher.HandleDelivery(ctx, ev))

		again := f.dispatcher.HandleDelivery(ctx, ev)
		assert.Equal(t, domain.OutcomeDuplicate, again.Outcome)
		assert.False(t, again.Processed)
	})

	t.Run("bounce closes the attempt", func(t *testing.T) {
		f := newDispatcherFixture(t)
		f.bounces.On("Handle", mock.Anything, outreachCommands.MarkBouncedCommand{
			Ref:    outreachCommands.AttemptRef{TenantID: f.tenant, CandidateExternalID: "cand-1"},
			Reason: "recipient blocked",
		}).Return(nil).Once()

		res := f.dispatcher.HandleDelivery(ctx, DeliveryEvent{EventID: "d-2", Type: domain.TypeMessageBounced, RecipientID: "cand-1", Reason: "recipient blocked"})
		assert.Equal(t, domain.Processed(domain.OutcomeBounced), res)
	})

	t.Run("permanent failure counts as bounce", func(t *testing.T) {
		f := newDispatcherFixture(t)
		f.bounces.On("Handle", mock.Anything, mock.MatchedBy(func(cmd outreachCommands.MarkBouncedCommand) bool {
			return cmd.Reason == domain.TypeMessageFailed
		})).Return(nil).Once()

		res := f.dispatcher.HandleDelivery(ctx, DeliveryEvent{EventID: "d-3", Type: domain.TypeMessageFailed, RecipientID: "cand-1", Permanent: true})
		assert.Equal(t, domain.OutcomeBounced, res.Outcome)
	})

	t.Run("transient failure is only recorded", func(t *testing.T) {
		f := newDispatcherFixture(t)
		f.deliveries.On("Handle", mock.Anything, mock.MatchedBy(func(cmd outreachCommands.RecordDeliveryCommand) bool {
			return cmd.Status == "failed"
		})).Return(nil).Once()

		res := f.dispatcher.HandleDelivery(ctx, DeliveryEvent{EventID: "d-4", Type: domain.TypeMessageFailed, RecipientID: "cand-1"})
		assert.Equal(t, domain.OutcomeRecorded, res.Outcome)
	})

	t.Run("failed effect is retried on redelivery", func(t *testing.T) {
		f := newDispatcherFixture(t)
		f.deliveries.On("Handle", mock.Anything, mock.Anything).Return(errors.New("database locked")).Once()
		f.deliveries.On("Handle", mock.Anything, mock.Anything).Return(nil).Once()

		ev := DeliveryEvent{EventID: "d-5", Type: domain.TypeMessageDelivered, RecipientID: "cand-1"}
		assert.Equal(t, domain.OutcomeFailed, f.dispatcher.HandleDelivery(ctx, ev).Outcome)
		assert.Equal(t, domain.Processed(domain.OutcomeRecorded), f.dispatcher.HandleDelivery(ctx, ev))
	})

	t.Run("unknown channel without recipient", func(t *testing.T) {
		f := newDispatcherFixture(t)
		f.channels.On("FindByChannelID", mock.Anything, f.tenant, "other").Return(nil, conversationsDomain.ErrConversationNotFound).Once()

		res := f.dispatcher.HandleDelivery(ctx, DeliveryEvent{EventID: "d-6", Type: domain.TypeMessageDelivered, ChannelID: "other"})
		assert.Equal(t, domain.Ignored(domain.ReasonUnknownChannel), res)
	})

	t.Run("no open attempt", func(t *testing.T) {
		f := newDispatcherFixture(t)
		f.bounces.On("Handle", mock.Anything, mock.Anything).Return(outreachDomain.ErrAttemptNotFound).Once()

		res := f.dispatcher.HandleDelivery(ctx, DeliveryEvent{EventID: "d-7", Type: domain.TypeMessageBounced, RecipientID: "cand-x"})
		assert.Equal(t, domain.Ignored(domain.ReasonNoOpenAttempt), res)
	})

	t.Run("missing event id", func(t *testing.T) {
		f := newDispatcherFixture(t)
		res := f.dispatcher.HandleDelivery(ctx, DeliveryEvent{Type: domain.TypeMessageDelivered, RecipientID: "cand-1"})
		assert.Equal(t, domain.Ignored(domain.ReasonMissingCorrelation), res)
	})
}
