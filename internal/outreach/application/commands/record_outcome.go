package commands

import (
	"context"
	"errors"

	conversationsDomain "github.com/felixgeelhaar/talentreach/internal/conversations/domain"
	"github.com/felixgeelhaar/talentreach/internal/outreach/application/services"
	"github.com/felixgeelhaar/talentreach/internal/outreach/domain"
	sharedApplication "github.com/felixgeelhaar/talentreach/internal/shared/application"
	sharedDomain "github.com/felixgeelhaar/talentreach/internal/shared/domain"
	"github.com/google/uuid"
)

// AttemptRef names an attempt by the conversation its pitch started or, when
// that is unknown, by the candidate's most recent open attempt.
type AttemptRef struct {
	TenantID            uuid.UUID
	ConversationID      *uuid.UUID
	CandidateExternalID string
}

func findAttempt(ctx context.Context, repo domain.AttemptRepository, ref AttemptRef) (*domain.Attempt, error) {
	if ref.ConversationID != nil {
		return repo.FindByConversationID(ctx, ref.TenantID, *ref.ConversationID)
	}
	if ref.CandidateExternalID == "" {
		return nil, domain.ErrAttemptNotFound
	}
	return repo.FindLatestByCandidate(ctx, ref.TenantID, ref.CandidateExternalID, domain.OpenStatuses())
}

// MarkRepliedCommand ends the sequence of the attempt behind a conversation.
type MarkRepliedCommand struct {
	TenantID       uuid.UUID
	ConversationID uuid.UUID
}

// MarkRepliedHandler handles MarkRepliedCommand.
type MarkRepliedHandler struct {
	mutator attemptMutator
	clock   sharedDomain.Clock
}

// NewMarkRepliedHandler creates a new MarkRepliedHandler.
func NewMarkRepliedHandler(writer services.EventWriter, uow sharedApplication.UnitOfWork, clock sharedDomain.Clock) *MarkRepliedHandler {
	if clock == nil {
		clock = sharedDomain.SystemClock{}
	}
	return &MarkRepliedHandler{mutator: attemptMutator{writer: writer, uow: uow}, clock: clock}
}

// Handle is a no-op for an attempt already REPLIED.
func (h *MarkRepliedHandler) Handle(ctx context.Context, cmd MarkRepliedCommand) (*domain.Attempt, error) {
	attempt, err := h.mutator.writer.Attempts.FindByConversationID(ctx, cmd.TenantID, cmd.ConversationID)
	if err != nil {
		return nil, err
	}
	return h.mutator.mutate(ctx, cmd.TenantID, attempt.ID(), func(_ context.Context, a *domain.Attempt) (bool, error) {
		return a.MarkReplied(h.clock.Now())
	})
}

// MarkBouncedCommand records a permanent delivery failure.
type MarkBouncedCommand struct {
	Ref    AttemptRef
	Reason string
}

// MarkBouncedHandler handles MarkBouncedCommand.
type MarkBouncedHandler struct {
	mutator attemptMutator
	clock   sharedDomain.Clock
}

// NewMarkBouncedHandler creates a new MarkBouncedHandler.
func NewMarkBouncedHandler(writer services.EventWriter, uow sharedApplication.UnitOfWork, clock sharedDomain.Clock) *MarkBouncedHandler {
	if clock == nil {
		clock = sharedDomain.SystemClock{}
	}
	return &MarkBouncedHandler{mutator: attemptMutator{writer: writer, uow: uow}, clock: clock}
}

// Handle moves the attempt to BOUNCED and closes its conversation as
// CLOSED_BOUNCED in the same transaction.
func (h *MarkBouncedHandler) Handle(ctx context.Context, cmd MarkBouncedCommand) (*domain.Attempt, error) {
	attempt, err := findAttempt(ctx, h.mutator.writer.Attempts, cmd.Ref)
	if err != nil {
		return nil, err
	}
	return h.mutator.mutate(ctx, cmd.Ref.TenantID, attempt.ID(), func(txCtx context.Context, a *domain.Attempt) (bool, error) {
		now := h.clock.Now()
		changed, err := a.MarkBounced(cmd.Reason, now)
		if err != nil || !changed || a.ConversationID() == nil {
			return changed, err
		}

		conv, err := h.mutator.writer.Conversations.FindByID(txCtx, a.TenantID(), *a.ConversationID())
		if errors.Is(err, conversationsDomain.ErrConversationNotFound) {
			return true, nil
		}
		if err != nil {
			return false, err
		}
		closed, err := conv.Close(conversationsDomain.StageClosedBounced, now)
		if err != nil || !closed {
			return true, err
		}
		return true, h.mutator.writer.SaveConversation(txCtx, conv)
	})
}

// RecordDeliveryCommand keeps the latest delivery status of an attempt.
type RecordDeliveryCommand struct {
	Ref    AttemptRef
	Status string
}

// RecordDeliveryHandler handles RecordDeliveryCommand.
type RecordDeliveryHandler struct {
	mutator attemptMutator
	clock   sharedDomain.Clock
}

// NewRecordDeliveryHandler creates a new RecordDeliveryHandler.
func NewRecordDeliveryHandler(writer services.EventWriter, uow sharedApplication.UnitOfWork, clock sharedDomain.Clock) *RecordDeliveryHandler {
	if clock == nil {
		clock = sharedDomain.SystemClock{}
	}
	return &RecordDeliveryHandler{mutator: attemptMutator{writer: writer, uow: uow}, clock: clock}
}

// Handle never changes the attempt status.
func (h *RecordDeliveryHandler) Handle(ctx context.Context, cmd RecordDeliveryCommand) (*domain.Attempt, error) {
	attempt, err := findAttempt(ctx, h.mutator.writer.Attempts, cmd.Ref)
	if err != nil {
		return nil, err
	}
	return h.mutator.mutate(ctx, cmd.Ref.TenantID, attempt.ID(), func(_ context.Context, a *domain.Attempt) (bool, error) {
		return a.RecordDeliveryStatus(cmd.Status, h.clock.Now())
	})
}
