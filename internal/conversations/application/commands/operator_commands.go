package commands

import (
	"context"

	"github.com/felixgeelhaar/talentreach/internal/conversations/domain"
	sharedApplication "github.com/felixgeelhaar/talentreach/internal/shared/application"
	sharedDomain "github.com/felixgeelhaar/talentreach/internal/shared/domain"
	"github.com/felixgeelhaar/talentreach/internal/shared/infrastructure/outbox"
	"github.com/google/uuid"
)

// ResolveEscalationCommand returns an escalated conversation to automation.
type ResolveEscalationCommand struct {
	TenantID       uuid.UUID
	ConversationID uuid.UUID
}

// ResolveEscalationHandler handles ResolveEscalationCommand.
type ResolveEscalationHandler struct {
	mutator conversationMutator
	clock   sharedDomain.Clock
}

// NewResolveEscalationHandler creates a new ResolveEscalationHandler.
func NewResolveEscalationHandler(repo domain.Repository, outboxRepo outbox.Repository, uow sharedApplication.UnitOfWork, clock sharedDomain.Clock) *ResolveEscalationHandler {
	if clock == nil {
		clock = sharedDomain.SystemClock{}
	}
	return &ResolveEscalationHandler{mutator: conversationMutator{repo, outboxRepo, uow}, clock: clock}
}

// Handle fails with domain.ErrNotEscalated unless the conversation is escalated.
func (h *ResolveEscalationHandler) Handle(ctx context.Context, cmd ResolveEscalationCommand) (*domain.Conversation, error) {
	return h.mutator.mutate(ctx, cmd.TenantID, cmd.ConversationID, func(c *domain.Conversation) (bool, error) {
		return true, c.ResolveEscalation(h.clock.Now())
	})
}

// PauseConversationCommand stops or restarts automation.
type PauseConversationCommand struct {
	TenantID       uuid.UUID
	ConversationID uuid.UUID
	Resume         bool
}

// PauseConversationHandler handles PauseConversationCommand.
type PauseConversationHandler struct {
	mutator conversationMutator
	clock   sharedDomain.Clock
}

// NewPauseConversationHandler creates a new PauseConversationHandler.
func NewPauseConversationHandler(repo domain.Repository, outboxRepo outbox.Repository, uow sharedApplication.UnitOfWork, clock sharedDomain.Clock) *PauseConversationHandler {
	if clock == nil {
		clock = sharedDomain.SystemClock{}
	}
	return &PauseConversationHandler{mutator: conversationMutator{repo, outboxRepo, uow}, clock: clock}
}

// Handle pauses, or resumes when cmd.Resume is set.
func (h *PauseConversationHandler) Handle(ctx context.Context, cmd PauseConversationCommand) (*domain.Conversation, error) {
	return h.mutator.mutate(ctx, cmd.TenantID, cmd.ConversationID, func(c *domain.Conversation) (bool, error) {
		if cmd.Resume {
			return c.Resume(h.clock.Now())
		}
		return c.Pause(h.clock.Now())
	})
}

// CloseConversationCommand ends a conversation. Stage defaults to CLOSED_MANUAL.
type CloseConversationCommand struct {
	TenantID       uuid.UUID
	ConversationID uuid.UUID
	Stage          domain.Stage
}

// CloseConversationHandler handles CloseConversationCommand.
type CloseConversationHandler struct {
	mutator conversationMutator
	clock   sharedDomain.Clock
}

// NewCloseConversationHandler creates a new CloseConversationHandler.
func NewCloseConversationHandler(repo domain.Repository, outboxRepo outbox.Repository, uow sharedApplication.UnitOfWork, clock sharedDomain.Clock) *CloseConversationHandler {
	if clock == nil {
		clock = sharedDomain.SystemClock{}
	}
	return &CloseConversationHandler{mutator: conversationMutator{repo, outboxRepo, uow}, clock: clock}
}

// Handle closes the conversation. Closing a closed conversation is a no-op.
func (h *CloseConversationHandler) Handle(ctx context.Context, cmd CloseConversationCommand) (*domain.Conversation, error) {
	stage := cmd.Stage
	if stage == "" {
		stage = domain.StageClosedManual
	}
	return h.mutator.mutate(ctx, cmd.TenantID, cmd.ConversationID, func(c *domain.Conversation) (bool, error) {
		return c.Close(stage, h.clock.Now())
	})
}
