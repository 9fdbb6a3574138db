package commands

import (
	"context"
	"errors"
	"log/slog"

	"github.com/felixgeelhaar/talentreach/internal/conversations/domain"
	sharedApplication "github.com/felixgeelhaar/talentreach/internal/shared/application"
	sharedDomain "github.com/felixgeelhaar/talentreach/internal/shared/domain"
	"github.com/felixgeelhaar/talentreach/internal/shared/infrastructure/outbox"
	"github.com/google/uuid"
)

// MoveStageCommand moves a conversation to a non-closed stage.
type MoveStageCommand struct {
	TenantID       uuid.UUID
	ConversationID uuid.UUID
	Stage          domain.Stage
}

// MoveStageHandler handles MoveStageCommand. It joins the caller's unit of
// work when there is one.
type MoveStageHandler struct {
	mutator conversationMutator
	clock   sharedDomain.Clock
	logger  *slog.Logger
}

// NewMoveStageHandler creates a new MoveStageHandler.
func NewMoveStageHandler(repo domain.Repository, outboxRepo outbox.Repository, uow sharedApplication.UnitOfWork, clock sharedDomain.Clock, logger *slog.Logger) *MoveStageHandler {
	if clock == nil {
		clock = sharedDomain.SystemClock{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &MoveStageHandler{
		mutator: conversationMutator{repo, outboxRepo, uow},
		clock:   clock,
		logger:  logger.With("component", "conversation_stage"),
	}
}

// Handle moves the stage. A closed conversation is left alone.
func (h *MoveStageHandler) Handle(ctx context.Context, cmd MoveStageCommand) error {
	_, err := h.mutator.mutate(ctx, cmd.TenantID, cmd.ConversationID, func(c *domain.Conversation) (bool, error) {
		changed, err := c.MoveTo(cmd.Stage, h.clock.Now())
		if errors.Is(err, domain.ErrConversationClosed) {
			return false, nil
		}
		return changed, err
	})
	return err
}

// MarkScheduled moves the conversation behind a confirmed booking to
// SCHEDULED. A conversation that no longer exists is logged and skipped.
func (h *MoveStageHandler) MarkScheduled(ctx context.Context, tenantID, conversationID uuid.UUID) error {
	err := h.Handle(ctx, MoveStageCommand{TenantID: tenantID, ConversationID: conversationID, Stage: domain.StageScheduled})
	if errors.Is(err, domain.ErrConversationNotFound) {
		h.logger.WarnContext(ctx, "booked conversation not found", "conversation_id", conversationID)
		return nil
	}
	return err
}
