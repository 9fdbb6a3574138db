package commands

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/felixgeelhaar/talentreach/internal/messaging"
	"github.com/felixgeelhaar/talentreach/internal/outreach/application/services"
	"github.com/felixgeelhaar/talentreach/internal/outreach/domain"
	sharedApplication "github.com/felixgeelhaar/talentreach/internal/shared/application"
	sharedDomain "github.com/felixgeelhaar/talentreach/internal/shared/domain"
	"github.com/google/uuid"
)

// Inviter sends connection invitations.
type Inviter interface {
	SendInvite(ctx context.Context, targetID, note string) (messaging.Invite, error)
}

// StartOutreachCommand begins outreach to one candidate in one campaign.
type StartOutreachCommand struct {
	TenantID            uuid.UUID
	CandidateExternalID string
	CandidateName       string
	CampaignRef         string
	JobRef              string
	Note                string
}

// StartOutreachHandler handles StartOutreachCommand.
type StartOutreachHandler struct {
	mutator attemptMutator
	inviter Inviter
	clock   sharedDomain.Clock
	logger  *slog.Logger
}

// NewStartOutreachHandler creates a new StartOutreachHandler.
func NewStartOutreachHandler(writer services.EventWriter, uow sharedApplication.UnitOfWork, inviter Inviter, clock sharedDomain.Clock, logger *slog.Logger) *StartOutreachHandler {
	if clock == nil {
		clock = sharedDomain.SystemClock{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &StartOutreachHandler{
		mutator: attemptMutator{writer: writer, uow: uow},
		inviter: inviter,
		clock:   clock,
		logger:  logger.With("component", "start_outreach"),
	}
}

// Handle creates the attempt and sends the invite. An attempt that already
// exists past SENT is returned unchanged; one still in SENT gets the invite
// again.
func (h *StartOutreachHandler) Handle(ctx context.Context, cmd StartOutreachCommand) (*domain.Attempt, error) {
	attempt, err := h.findOrCreate(ctx, cmd)
	if err != nil {
		return nil, err
	}
	if attempt.Status() != domain.StatusSent {
		return attempt, nil
	}

	invite, err := h.inviter.SendInvite(ctx, attempt.CandidateExternalID(), cmd.Note)
	if err != nil {
		return attempt, fmt.Errorf("failed to send connection invite: %w", err)
	}

	attempt, err = h.mutator.mutate(ctx, attempt.TenantID(), attempt.ID(), func(_ context.Context, a *domain.Attempt) (bool, error) {
		return a.RequestConnection(h.clock.Now())
	})
	if err != nil {
		return nil, err
	}

	h.logger.InfoContext(ctx, "connection requested",
		"attempt_id", attempt.ID(),
		"candidate_id", attempt.CandidateExternalID(),
		"invitation_id", invite.ID,
	)
	return attempt, nil
}

func (h *StartOutreachHandler) findOrCreate(ctx context.Context, cmd StartOutreachCommand) (*domain.Attempt, error) {
	repo := h.mutator.writer.Attempts
	existing, err := repo.FindByCampaign(ctx, cmd.TenantID, cmd.CandidateExternalID, cmd.CampaignRef)
	if err == nil {
		return existing, nil
	}
	if !errors.Is(err, domain.ErrAttemptNotFound) {
		return nil, err
	}

	attempt, err := domain.NewAttempt(domain.AttemptParams{
		TenantID:            cmd.TenantID,
		CandidateExternalID: cmd.CandidateExternalID,
		CandidateName:       cmd.CandidateName,
		CampaignRef:         cmd.CampaignRef,
		JobRef:              cmd.JobRef,
	}, h.clock.Now())
	if err != nil {
		return nil, err
	}

	err = sharedApplication.WithUnitOfWork(ctx, h.mutator.uow, func(txCtx context.Context) error {
		return h.mutator.writer.CreateAttempt(txCtx, attempt)
	})
	if errors.Is(err, domain.ErrDuplicateAttempt) {
		return repo.FindByCampaign(ctx, cmd.TenantID, attempt.CandidateExternalID(), attempt.CampaignRef())
	}
	if err != nil {
		return nil, err
	}
	return attempt, nil
}
