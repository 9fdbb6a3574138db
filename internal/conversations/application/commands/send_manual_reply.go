package commands

import (
	"context"
	"fmt"
	"strings"

	"github.com/felixgeelhaar/talentreach/internal/conversations/domain"
	"github.com/felixgeelhaar/talentreach/internal/messaging"
	sharedApplication "github.com/felixgeelhaar/talentreach/internal/shared/application"
	sharedDomain "github.com/felixgeelhaar/talentreach/internal/shared/domain"
	"github.com/felixgeelhaar/talentreach/internal/shared/infrastructure/outbox"
	"github.com/google/uuid"
)

// Sender delivers text into a chat.
type Sender interface {
	SendMessage(ctx context.Context, channelID, text string) (messaging.SentMessage, error)
}

// SendManualReplyCommand sends operator-written text on a conversation.
// Status is untouched, so an escalated conversation stays with the human.
type SendManualReplyCommand struct {
	TenantID       uuid.UUID
	ConversationID uuid.UUID
	Text           string
}

// SendManualReplyHandler handles SendManualReplyCommand.
type SendManualReplyHandler struct {
	mutator conversationMutator
	sender  Sender
	clock   sharedDomain.Clock
}

// NewSendManualReplyHandler creates a new SendManualReplyHandler.
func NewSendManualReplyHandler(repo domain.Repository, outboxRepo outbox.Repository, uow sharedApplication.UnitOfWork, sender Sender, clock sharedDomain.Clock) *SendManualReplyHandler {
	if clock == nil {
		clock = sharedDomain.SystemClock{}
	}
	return &SendManualReplyHandler{mutator: conversationMutator{repo, outboxRepo, uow}, sender: sender, clock: clock}
}

// Handle sends first and records the message only once the provider
// accepted it.
func (h *SendManualReplyHandler) Handle(ctx context.Context, cmd SendManualReplyCommand) (*domain.Conversation, error) {
	text := strings.TrimSpace(cmd.Text)
	if text == "" {
		return nil, domain.ErrEmptyMessage
	}

	conv, err := h.mutator.repo.FindByID(ctx, cmd.TenantID, cmd.ConversationID)
	if err != nil {
		return nil, err
	}
	if conv.Stage().IsClosed() {
		return nil, domain.ErrConversationClosed
	}

	sent, err := h.sender.SendMessage(ctx, conv.ExternalChannelID(), text)
	if err != nil {
		return nil, fmt.Errorf("failed to send manual reply: %w", err)
	}

	return h.mutator.mutate(ctx, cmd.TenantID, cmd.ConversationID, func(c *domain.Conversation) (bool, error) {
		return c.RecordSystemMessage(text, sent.ID, sent.CreatedAt, h.clock.Now()), nil
	})
}
