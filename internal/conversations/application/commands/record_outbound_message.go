package commands

import (
	"context"
	"time"

	"github.com/felixgeelhaar/talentreach/internal/conversations/domain"
	sharedApplication "github.com/felixgeelhaar/talentreach/internal/shared/application"
	sharedDomain "github.com/felixgeelhaar/talentreach/internal/shared/domain"
	"github.com/felixgeelhaar/talentreach/internal/shared/infrastructure/outbox"
	"github.com/google/uuid"
)

// RecordOutboundMessageCommand records a message our own account sent on a
// channel, typically echoed back by the provider or typed by a recruiter
// directly in the provider's inbox.
type RecordOutboundMessageCommand struct {
	TenantID          uuid.UUID
	ExternalChannelID string
	ExternalMessageID string
	Content           string
	SentAt            *time.Time
}

// RecordOutboundMessageResult reports whether the message was new.
type RecordOutboundMessageResult struct {
	Conversation *domain.Conversation
	Recorded     bool
}

// RecordOutboundMessageHandler handles RecordOutboundMessageCommand.
type RecordOutboundMessageHandler struct {
	mutator conversationMutator
	clock   sharedDomain.Clock
}

// NewRecordOutboundMessageHandler creates a new RecordOutboundMessageHandler.
func NewRecordOutboundMessageHandler(repo domain.Repository, outboxRepo outbox.Repository, uow sharedApplication.UnitOfWork, clock sharedDomain.Clock) *RecordOutboundMessageHandler {
	if clock == nil {
		clock = sharedDomain.SystemClock{}
	}
	return &RecordOutboundMessageHandler{
		mutator: conversationMutator{repo: repo, outboxRepo: outboxRepo, uow: uow},
		clock:   clock,
	}
}

// Handle returns domain.ErrConversationNotFound for a channel this system
// never started. A message id already in the transcript is a no-op.
func (h *RecordOutboundMessageHandler) Handle(ctx context.Context, cmd RecordOutboundMessageCommand) (RecordOutboundMessageResult, error) {
	conv, err := h.mutator.repo.FindByChannelID(ctx, cmd.TenantID, cmd.ExternalChannelID)
	if err != nil {
		return RecordOutboundMessageResult{}, err
	}

	var recorded bool
	conv, err = h.mutator.mutate(ctx, cmd.TenantID, conv.ID(), func(c *domain.Conversation) (bool, error) {
		recorded = c.RecordSystemMessage(cmd.Content, cmd.ExternalMessageID, cmd.SentAt, h.clock.Now())
		return recorded, nil
	})
	if err != nil {
		return RecordOutboundMessageResult{}, err
	}
	return RecordOutboundMessageResult{Conversation: conv, Recorded: recorded}, nil
}
