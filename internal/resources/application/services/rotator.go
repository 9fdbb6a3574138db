package services

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/felixgeelhaar/talentreach/internal/resources/domain"
	sharedApplication "github.com/felixgeelhaar/talentreach/internal/shared/application"
	sharedDomain "github.com/felixgeelhaar/talentreach/internal/shared/domain"
	"github.com/felixgeelhaar/talentreach/internal/shared/infrastructure/outbox"
	"github.com/felixgeelhaar/talentreach/pkg/observability"
	"github.com/google/uuid"
)

// ConversationScheduler moves the conversation linked to a confirmed
// assignment into its scheduled stage. It runs inside the caller's unit of
// work.
type ConversationScheduler interface {
	MarkScheduled(ctx context.Context, tenantID, conversationID uuid.UUID) error
}

// ConfirmOutcome describes what ConfirmBooking did.
type ConfirmOutcome string

const (
	ConfirmOutcomeConfirmed ConfirmOutcome = "confirmed"
	ConfirmOutcomeDuplicate ConfirmOutcome = "duplicate"
	ConfirmOutcomeNoMatch   ConfirmOutcome = "no_match"
)

// ConfirmResult is returned by ConfirmBooking.
type ConfirmResult struct {
	Outcome    ConfirmOutcome
	Assignment *domain.Assignment
}

// RotatorConfig tunes the rotator.
type RotatorConfig struct {
	MatchWindow time.Duration
}

// Rotator hands out scheduling resources fairly and credits bookings to the
// assignments they came from.
type Rotator struct {
	resources   domain.ResourceRepository
	assignments domain.AssignmentRepository
	outboxRepo  outbox.Repository
	uow         sharedApplication.UnitOfWork
	scheduler   ConversationScheduler
	clock       sharedDomain.Clock
	config      RotatorConfig
	metrics     observability.Metrics
	logger      *slog.Logger
}

// NewRotator creates a rotator. scheduler may be nil when no conversation
// store is wired.
func NewRotator(
	resources domain.ResourceRepository,
	assignments domain.AssignmentRepository,
	outboxRepo outbox.Repository,
	uow sharedApplication.UnitOfWork,
	scheduler ConversationScheduler,
	clock sharedDomain.Clock,
	config RotatorConfig,
	metrics observability.Metrics,
	logger *slog.Logger,
) *Rotator {
	if clock == nil {
		clock = sharedDomain.SystemClock{}
	}
	if config.MatchWindow <= 0 {
		config.MatchWindow = domain.DefaultMatchWindow
	}
	if metrics == nil {
		metrics = observability.NoopMetrics{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Rotator{
		resources:   resources,
		assignments: assignments,
		outboxRepo:  outboxRepo,
		uow:         uow,
		scheduler:   scheduler,
		clock:       clock,
		config:      config,
		metrics:     metrics,
		logger:      logger.With("component", "resource_rotator"),
	}
}

// Assign selects a resource, bumps its counter and records the assignment
// in one transaction. Without an active resource it returns
// domain.ErrNoActiveResource and writes nothing.
func (r *Rotator) Assign(ctx context.Context, req domain.AssignRequest) (*domain.Assignment, *domain.Resource, error) {
	var (
		assignment *domain.Assignment
		selected   *domain.Resource
	)

	err := sharedApplication.WithUnitOfWork(ctx, r.uow, func(txCtx context.Context) error {
		active, err := r.resources.ListActiveForUpdate(txCtx, req.TenantID)
		if err != nil {
			return err
		}

		selected = domain.SelectResource(active)
		if selected == nil {
			return domain.ErrNoActiveResource
		}

		now := r.clock.Now()
		assignment, err = domain.NewAssignment(selected, req.CandidateExternalID, req.CandidateName, req.ConversationID, now)
		if err != nil {
			return err
		}

		if err := r.resources.IncrementAssignment(txCtx, selected.ID(), now); err != nil {
			return err
		}
		selected.RecordAssignment(now)

		if err := r.assignments.Create(txCtx, assignment); err != nil {
			return err
		}

		return r.saveEvents(txCtx, req.TenantID, assignment)
	})
	if err != nil {
		return nil, nil, err
	}

	r.metrics.Counter(observability.MetricResourceAssignments, 1)
	r.logger.InfoContext(ctx, "scheduling resource assigned",
		"resource_id", selected.ID(),
		"assignment_id", assignment.ID(),
		"candidate_id", req.CandidateExternalID,
		"assignment_count", selected.AssignmentCount(),
	)
	return assignment, selected, nil
}

// ConfirmBooking credits a booking to at most one assignment. Replaying the
// same booking event is a no-op; a booking nobody matches is logged and
// dropped.
func (r *Rotator) ConfirmBooking(ctx context.Context, tenantID uuid.UUID, booking domain.Booking) (ConfirmResult, error) {
	var result ConfirmResult

	err := sharedApplication.WithUnitOfWork(ctx, r.uow, func(txCtx context.Context) error {
		result = ConfirmResult{}

		if booking.ExternalEventID != "" {
			existing, err := r.assignments.FindByBookingEventID(txCtx, tenantID, booking.ExternalEventID)
			switch {
			case err == nil:
				result = ConfirmResult{Outcome: ConfirmOutcomeDuplicate, Assignment: existing}
				return nil
			case !errors.Is(err, domain.ErrAssignmentNotFound):
				return err
			}
		}

		now := r.clock.Now()
		resourceID, err := r.resourceFor(txCtx, tenantID, booking.ResourceURL)
		if err != nil {
			return err
		}

		candidates, err := r.assignments.ListUnconfirmedSince(txCtx, tenantID, resourceID, now.Add(-r.config.MatchWindow))
		if err != nil {
			return err
		}

		match := domain.MatchBooking(candidates, booking, r.config.MatchWindow, now)
		if match == nil || !match.Confirm(booking.ExternalEventID, now) {
			result.Outcome = ConfirmOutcomeNoMatch
			return nil
		}

		ok, err := r.assignments.Confirm(txCtx, match)
		if err != nil {
			return err
		}
		if !ok {
			result.Outcome = ConfirmOutcomeNoMatch
			return nil
		}

		if r.scheduler != nil && match.ConversationID() != nil {
			if err := r.scheduler.MarkScheduled(txCtx, tenantID, *match.ConversationID()); err != nil {
				return err
			}
		}

		result = ConfirmResult{Outcome: ConfirmOutcomeConfirmed, Assignment: match}
		return r.saveEvents(txCtx, tenantID, match)
	})
	if err != nil {
		return ConfirmResult{}, err
	}

	switch result.Outcome {
	case ConfirmOutcomeConfirmed:
		r.metrics.Counter(observability.MetricBookingsConfirmed, 1)
		r.logger.InfoContext(ctx, "booking confirmed",
			"assignment_id", result.Assignment.ID(),
			"candidate_id", result.Assignment.CandidateExternalID(),
			"booking_event_id", booking.ExternalEventID,
		)
	case ConfirmOutcomeNoMatch:
		r.logger.WarnContext(ctx, "booking matched no assignment",
			"booking_event_id", booking.ExternalEventID,
			"invitee", booking.InviteeName,
			"resource_url", booking.ResourceURL,
		)
	}
	return result, nil
}

// resourceFor scopes matching to the resource the booking came through. An
// unknown or empty URL searches every resource.
func (r *Rotator) resourceFor(ctx context.Context, tenantID uuid.UUID, url string) (*uuid.UUID, error) {
	if url == "" {
		return nil, nil
	}
	resources, err := r.resources.List(ctx, tenantID)
	if err != nil {
		return nil, err
	}
	for _, res := range resources {
		if sameResourceURL(res.ResourceURL(), url) {
			id := res.ID()
			return &id, nil
		}
	}
	return nil, nil
}

func (r *Rotator) saveEvents(ctx context.Context, tenantID uuid.UUID, a *domain.Assignment) error {
	events := a.PullDomainEvents()
	sharedApplication.StampEvents(ctx, tenantID, events)
	return outbox.SaveEvents(ctx, r.outboxRepo, events)
}
