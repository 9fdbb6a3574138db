package commands

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/felixgeelhaar/talentreach/internal/messaging"
	"github.com/felixgeelhaar/talentreach/internal/outreach/application/services"
	"github.com/felixgeelhaar/talentreach/internal/outreach/domain"
	sharedApplication "github.com/felixgeelhaar/talentreach/internal/shared/application"
	sharedDomain "github.com/felixgeelhaar/talentreach/internal/shared/domain"
	"github.com/google/uuid"
)

// ProfileFetcher looks up the public profile of a candidate.
type ProfileFetcher interface {
	FetchProfile(ctx context.Context, targetID string) (messaging.Profile, error)
}

// PitchDispatcher sends the pitch of an accepted attempt.
type PitchDispatcher interface {
	Dispatch(ctx context.Context, tenantID, attemptID uuid.UUID) (bool, error)
}

// AcceptConnectionConfig controls what happens after a candidate accepts.
type AcceptConnectionConfig struct {
	AutoPitch  bool
	PitchDelay time.Duration
}

// AcceptConnectionCommand records that a candidate accepted the invite.
type AcceptConnectionCommand struct {
	TenantID            uuid.UUID
	CandidateExternalID string
	CandidateName       string
}

// AcceptConnectionResult is the attempt after acceptance.
type AcceptConnectionResult struct {
	Attempt   *domain.Attempt
	PitchSent bool
}

// AcceptConnectionHandler handles AcceptConnectionCommand.
type AcceptConnectionHandler struct {
	mutator    attemptMutator
	profiles   ProfileFetcher
	dispatcher PitchDispatcher
	config     AcceptConnectionConfig
	clock      sharedDomain.Clock
	logger     *slog.Logger
}

// NewAcceptConnectionHandler creates a new AcceptConnectionHandler. profiles
// and dispatcher may be nil.
func NewAcceptConnectionHandler(
	writer services.EventWriter,
	uow sharedApplication.UnitOfWork,
	profiles ProfileFetcher,
	dispatcher PitchDispatcher,
	config AcceptConnectionConfig,
	clock sharedDomain.Clock,
	logger *slog.Logger,
) *AcceptConnectionHandler {
	if clock == nil {
		clock = sharedDomain.SystemClock{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &AcceptConnectionHandler{
		mutator:    attemptMutator{writer: writer, uow: uow},
		profiles:   profiles,
		dispatcher: dispatcher,
		config:     config,
		clock:      clock,
		logger:     logger.With("component", "accept_connection"),
	}
}

// Handle matches the open attempt of the candidate. With no open attempt it
// returns domain.ErrAttemptNotFound, which callers log and drop.
func (h *AcceptConnectionHandler) Handle(ctx context.Context, cmd AcceptConnectionCommand) (AcceptConnectionResult, error) {
	attempt, err := h.mutator.writer.Attempts.FindLatestByCandidate(ctx, cmd.TenantID, cmd.CandidateExternalID,
		[]domain.Status{domain.StatusConnectionRequested, domain.StatusSent})
	if err != nil {
		return AcceptConnectionResult{}, err
	}

	name := strings.TrimSpace(cmd.CandidateName)
	if attempt.CandidateName() == "" && name == "" && h.profiles != nil {
		profile, err := h.profiles.FetchProfile(ctx, attempt.CandidateExternalID())
		if err != nil {
			h.logger.WarnContext(ctx, "profile lookup failed", "candidate_id", attempt.CandidateExternalID(), "error", err)
		} else {
			name = profile.Name
		}
	}

	queue := h.config.AutoPitch && h.config.PitchDelay > 0
	attempt, err = h.mutator.mutate(ctx, cmd.TenantID, attempt.ID(), func(_ context.Context, a *domain.Attempt) (bool, error) {
		now := h.clock.Now()
		named := a.SetCandidateName(name, now)
		requested := false
		if a.Status() == domain.StatusSent {
			// An invite whose send reported an error can still reach the
			// candidate. The acceptance proves it did.
			var err error
			if requested, err = a.RequestConnection(now); err != nil {
				return false, err
			}
		}
		accepted, err := a.AcceptConnection(now)
		if err != nil {
			return false, err
		}
		if queue {
			if _, err := a.QueuePitch(now.Add(h.config.PitchDelay), now); err != nil {
				return false, err
			}
		}
		return named || requested || accepted, nil
	})
	if err != nil {
		return AcceptConnectionResult{}, err
	}

	h.logger.InfoContext(ctx, "connection accepted",
		"attempt_id", attempt.ID(),
		"candidate_id", attempt.CandidateExternalID(),
		"pitch_due_at", attempt.PitchDueAt(),
	)

	result := AcceptConnectionResult{Attempt: attempt}
	if !h.config.AutoPitch || queue || h.dispatcher == nil {
		return result, nil
	}

	sent, err := h.dispatcher.Dispatch(ctx, cmd.TenantID, attempt.ID())
	if err != nil {
		return result, err
	}
	result.PitchSent = sent
	if refreshed, err := h.mutator.writer.Attempts.FindByID(ctx, cmd.TenantID, attempt.ID()); err == nil {
		result.Attempt = refreshed
	}
	return result, nil
}
