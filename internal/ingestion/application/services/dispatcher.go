// Package services routes authenticated provider events to the component
// that owns their effect.
package services

import (
	"context"
	"errors"
	"log/slog"

	conversationCommands "github.com/felixgeelhaar/talentreach/internal/conversations/application/commands"
	conversationServices "github.com/felixgeelhaar/talentreach/internal/conversations/application/services"
	conversationsDomain "github.com/felixgeelhaar/talentreach/internal/conversations/domain"
	"github.com/felixgeelhaar/talentreach/internal/ingestion/domain"
	outreachCommands "github.com/felixgeelhaar/talentreach/internal/outreach/application/commands"
	outreachDomain "github.com/felixgeelhaar/talentreach/internal/outreach/domain"
	resourceServices "github.com/felixgeelhaar/talentreach/internal/resources/application/services"
	resourcesDomain "github.com/felixgeelhaar/talentreach/internal/resources/domain"
	sharedApplication "github.com/felixgeelhaar/talentreach/internal/shared/application"
	sharedDomain "github.com/felixgeelhaar/talentreach/internal/shared/domain"
	"github.com/felixgeelhaar/talentreach/pkg/observability"
	"github.com/google/uuid"
)

// InboundHandler decides how to answer a candidate message.
type InboundHandler interface {
	Handle(ctx context.Context, msg conversationServices.InboundMessage) (conversationServices.Outcome, error)
}

// OutboundRecorder stores messages our own account sent outside this system.
type OutboundRecorder interface {
	Handle(ctx context.Context, cmd conversationCommands.RecordOutboundMessageCommand) (conversationCommands.RecordOutboundMessageResult, error)
}

// ChannelLookup resolves a provider channel to its conversation.
type ChannelLookup interface {
	FindByChannelID(ctx context.Context, tenantID uuid.UUID, channelID string) (*conversationsDomain.Conversation, error)
}

// ReplyMarker ends the outreach sequence behind a conversation.
type ReplyMarker interface {
	Handle(ctx context.Context, cmd outreachCommands.MarkRepliedCommand) (*outreachDomain.Attempt, error)
}

// ConnectionAccepter advances the attempt of a candidate who accepted.
type ConnectionAccepter interface {
	Handle(ctx context.Context, cmd outreachCommands.AcceptConnectionCommand) (outreachCommands.AcceptConnectionResult, error)
}

// BounceMarker records a permanent delivery failure.
type BounceMarker interface {
	Handle(ctx context.Context, cmd outreachCommands.MarkBouncedCommand) (*outreachDomain.Attempt, error)
}

// DeliveryRecorder keeps the latest delivery status of an attempt.
type DeliveryRecorder interface {
	Handle(ctx context.Context, cmd outreachCommands.RecordDeliveryCommand) (*outreachDomain.Attempt, error)
}

// BookingConfirmer credits a booking to an assignment.
type BookingConfirmer interface {
	ConfirmBooking(ctx context.Context, tenantID uuid.UUID, booking resourcesDomain.Booking) (resourceServices.ConfirmResult, error)
}

// DispatcherConfig holds the dispatcher's collaborators. TenantID is the
// tenant every webhook is processed for.
type DispatcherConfig struct {
	TenantID    uuid.UUID
	Inbound     InboundHandler
	Outbound    OutboundRecorder
	Channels    ChannelLookup
	Replies     ReplyMarker
	Connections ConnectionAccepter
	Bounces     BounceMarker
	Deliveries  DeliveryRecorder
	Bookings    BookingConfirmer
	Ledger      domain.Ledger
	UnitOfWork  sharedApplication.UnitOfWork
	Clock       sharedDomain.Clock
	Reporter    observability.ErrorReporter
	Metrics     observability.Metrics
	Logger      *slog.Logger
}

// Dispatcher classifies provider events and hands them to their owner.
// Downstream failures never escape: they are logged, reported and turned
// into a failed Result so the provider still gets an acknowledgment.
type Dispatcher struct {
	cfg    DispatcherConfig
	logger *slog.Logger
}

// NewDispatcher creates a dispatcher.
func NewDispatcher(cfg DispatcherConfig) *Dispatcher {
	if cfg.Clock == nil {
		cfg.Clock = sharedDomain.SystemClock{}
	}
	if cfg.Reporter == nil {
		cfg.Reporter = observability.NoopReporter{}
	}
	if cfg.Metrics == nil {
		cfg.Metrics = observability.NoopMetrics{}
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Dispatcher{cfg: cfg, logger: cfg.Logger.With("component", "webhook_dispatcher")}
}

// HandleMessaging processes a messaging webhook.
func (d *Dispatcher) HandleMessaging(ctx context.Context, ev MessagingEvent) domain.Result {
	result, err := d.messaging(ctx, ev)
	return d.finish(ctx, domain.SourceMessaging, ev.Type, ev.EventID, result, err)
}

// HandleCalendar processes a booking webhook.
func (d *Dispatcher) HandleCalendar(ctx context.Context, ev CalendarEvent) domain.Result {
	result, err := d.calendar(ctx, ev)
	return d.finish(ctx, domain.SourceCalendar, ev.Type, ev.EventID, result, err)
}

// HandleDelivery processes a delivery-status webhook.
func (d *Dispatcher) HandleDelivery(ctx context.Context, ev DeliveryEvent) domain.Result {
	result, err := d.delivery(ctx, ev)
	return d.finish(ctx, domain.SourceDelivery, ev.Type, ev.EventID, result, err)
}

func (d *Dispatcher) messaging(ctx context.Context, ev MessagingEvent) (domain.Result, error) {
	switch ev.Type {
	case domain.TypeMessageReceived:
		if ev.ChannelID == "" || ev.MessageID == "" {
			return domain.Ignored(domain.ReasonMissingCorrelation), nil
		}
		if ev.FromSelf {
			return d.recordOutbound(ctx, ev)
		}
		return d.receive(ctx, ev)
	case domain.TypeRelationCreated:
		if ev.ContactID == "" {
			return domain.Ignored(domain.ReasonMissingCorrelation), nil
		}
		return d.acceptConnection(ctx, ev)
	default:
		return domain.Ignored(domain.ReasonUnknownType), nil
	}
}

// receive runs the orchestrator and then ends the outreach sequence of the
// conversation. Replies to duplicates repeat the second step so a failed
// first try is repaired by the provider's redelivery.
func (d *Dispatcher) receive(ctx context.Context, ev MessagingEvent) (domain.Result, error) {
	outcome, err := d.cfg.Inbound.Handle(ctx, conversationServices.InboundMessage{
		TenantID:          d.cfg.TenantID,
		ExternalChannelID: ev.ChannelID,
		ExternalMessageID: ev.MessageID,
		Content:           ev.Text,
		SentAt:            ev.SentAt,
	})
	if err != nil {
		return domain.Result{}, err
	}

	result := resultFor(outcome)
	if outcome.ConversationID == uuid.Nil || d.cfg.Replies == nil {
		return result, nil
	}

	_, err = d.cfg.Replies.Handle(ctx, outreachCommands.MarkRepliedCommand{
		TenantID:       d.cfg.TenantID,
		ConversationID: outcome.ConversationID,
	})
	switch {
	case err == nil:
	case errors.Is(err, outreachDomain.ErrAttemptNotFound):
		d.logger.DebugContext(ctx, "conversation has no outreach attempt", "conversation_id", outcome.ConversationID)
	case errors.Is(err, outreachDomain.ErrInvalidTransition):
		d.logger.WarnContext(ctx, "reply on a closed outreach attempt", "conversation_id", outcome.ConversationID)
	default:
		return result, err
	}
	return result, nil
}

func resultFor(o conversationServices.Outcome) domain.Result {
	if o.Action == conversationServices.ActionIgnore {
		switch o.Reason {
		case conversationServices.ReasonUnknownConversation:
			return domain.Ignored(domain.ReasonUnknownChannel)
		case conversationServices.ReasonDuplicateMessage:
			return domain.Result{Outcome: domain.OutcomeDuplicate, Reason: domain.ReasonAlreadyProcessed}
		}
	}
	return domain.Result{Processed: true, Outcome: string(o.Action), Reason: o.Reason}
}

func (d *Dispatcher) recordOutbound(ctx context.Context, ev MessagingEvent) (domain.Result, error) {
	res, err := d.cfg.Outbound.Handle(ctx, conversationCommands.RecordOutboundMessageCommand{
		TenantID:          d.cfg.TenantID,
		ExternalChannelID: ev.ChannelID,
		ExternalMessageID: ev.MessageID,
		Content:           ev.Text,
		SentAt:            ev.SentAt,
	})
	if errors.Is(err, conversationsDomain.ErrConversationNotFound) {
		return domain.Ignored(domain.ReasonUnknownChannel), nil
	}
	if err != nil {
		return domain.Result{}, err
	}
	if !res.Recorded {
		return domain.Result{Outcome: domain.OutcomeDuplicate, Reason: domain.ReasonAlreadyProcessed}, nil
	}
	return domain.Processed(domain.OutcomeRecorded), nil
}

func (d *Dispatcher) acceptConnection(ctx context.Context, ev MessagingEvent) (domain.Result, error) {
	res, err := d.cfg.Connections.Handle(ctx, outreachCommands.AcceptConnectionCommand{
		TenantID:            d.cfg.TenantID,
		CandidateExternalID: ev.ContactID,
		CandidateName:       ev.ContactName,
	})
	if errors.Is(err, outreachDomain.ErrAttemptNotFound) {
		d.logger.InfoContext(ctx, "relation not initiated by us", "candidate_id", ev.ContactID)
		return domain.Ignored(domain.ReasonNoOpenAttempt), nil
	}
	if err != nil {
		return domain.Result{}, err
	}

	result := domain.Processed(domain.OutcomeAccepted)
	if res.PitchSent {
		result.Reason = "pitch sent"
	}
	return result, nil
}

func (d *Dispatcher) calendar(ctx context.Context, ev CalendarEvent) (domain.Result, error) {
	if ev.Type != domain.TypeBookingCreated {
		return domain.Ignored(domain.ReasonUnknownType), nil
	}
	if ev.EventID == "" || (ev.InviteeName == "" && ev.ResourceURL == "") {
		return domain.Ignored(domain.ReasonMissingCorrelation), nil
	}

	res, err := d.cfg.Bookings.ConfirmBooking(ctx, d.cfg.TenantID, resourcesDomain.Booking{
		ExternalEventID: ev.EventID,
		InviteeName:     ev.InviteeName,
		ResourceURL:     ev.ResourceURL,
		ScheduledAt:     ev.ScheduledAt,
		AssignmentID:    resourcesDomain.AssignmentRefFromURL(ev.ResourceURL),
	})
	if err != nil {
		return domain.Result{}, err
	}

	switch res.Outcome {
	case resourceServices.ConfirmOutcomeConfirmed:
		return domain.Processed(domain.OutcomeConfirmed), nil
	case resourceServices.ConfirmOutcomeDuplicate:
		return domain.Result{Outcome: domain.OutcomeDuplicate, Reason: domain.ReasonAlreadyProcessed}, nil
	default:
		return domain.Ignored(domain.ReasonNoMatch), nil
	}
}

// delivery records the ping in the ledger and applies its effect in one
// unit of work. A rolled back effect leaves no ledger entry, so the
// provider's retry is processed again.
func (d *Dispatcher) delivery(ctx context.Context, ev DeliveryEvent) (domain.Result, error) {
	switch ev.Type {
	case domain.TypeMessageDelivered, domain.TypeMessageRead, domain.TypeMessageFailed, domain.TypeMessageBounced:
	default:
		return domain.Ignored(domain.ReasonUnknownType), nil
	}
	if ev.EventID == "" || (ev.ChannelID == "" && ev.RecipientID == "") {
		return domain.Ignored(domain.ReasonMissingCorrelation), nil
	}

	var result domain.Result
	err := sharedApplication.WithUnitOfWork(ctx, d.cfg.UnitOfWork, func(txCtx context.Context) error {
		err := d.cfg.Ledger.Record(txCtx, domain.DeliveryRecord{
			TenantID:        d.cfg.TenantID,
			ExternalEventID: ev.EventID,
			Type:            ev.Type,
			ProcessedAt:     d.cfg.Clock.Now(),
		})
		if errors.Is(err, domain.ErrDuplicateDelivery) {
			result = domain.Result{Outcome: domain.OutcomeDuplicate, Reason: domain.ReasonAlreadyProcessed}
			return nil
		}
		if err != nil {
			return err
		}

		ref, ok, err := d.attemptRef(txCtx, ev)
		if err != nil {
			return err
		}
		if !ok {
			result = domain.Ignored(domain.ReasonUnknownChannel)
			return nil
		}

		result, err = d.applyDelivery(txCtx, ev, ref)
		return err
	})
	if err != nil {
		return domain.Result{}, err
	}
	return result, nil
}

// attemptRef prefers the conversation behind the channel and falls back to
// the recipient's latest open attempt.
func (d *Dispatcher) attemptRef(ctx context.Context, ev DeliveryEvent) (outreachCommands.AttemptRef, bool, error) {
	ref := outreachCommands.AttemptRef{TenantID: d.cfg.TenantID, CandidateExternalID: ev.RecipientID}
	if ev.ChannelID == "" {
		return ref, true, nil
	}

	conv, err := d.cfg.Channels.FindByChannelID(ctx, d.cfg.TenantID, ev.ChannelID)
	switch {
	case err == nil:
		id := conv.ID()
		ref.ConversationID = &id
		return ref, true, nil
	case errors.Is(err, conversationsDomain.ErrConversationNotFound):
		return ref, ev.RecipientID != "", nil
	default:
		return ref, false, err
	}
}

func (d *Dispatcher) applyDelivery(ctx context.Context, ev DeliveryEvent, ref outreachCommands.AttemptRef) (domain.Result, error) {
	var err error
	outcome := domain.OutcomeRecorded

	if ev.Type == domain.TypeMessageBounced || (ev.Type == domain.TypeMessageFailed && ev.Permanent) {
		outcome = domain.OutcomeBounced
		_, err = d.cfg.Bounces.Handle(ctx, outreachCommands.MarkBouncedCommand{Ref: ref, Reason: bounceReason(ev)})
	} else {
		_, err = d.cfg.Deliveries.Handle(ctx, outreachCommands.RecordDeliveryCommand{Ref: ref, Status: deliveryStatus(ev.Type)})
	}

	switch {
	case err == nil:
		return domain.Processed(outcome), nil
	case errors.Is(err, outreachDomain.ErrAttemptNotFound):
		return domain.Ignored(domain.ReasonNoOpenAttempt), nil
	case errors.Is(err, outreachDomain.ErrInvalidTransition):
		d.logger.WarnContext(ctx, "bounce for a closed outreach attempt", "event_id", ev.EventID)
		return domain.Ignored(domain.ReasonNoOpenAttempt), nil
	default:
		return domain.Result{}, err
	}
}

func deliveryStatus(eventType string) string {
	switch eventType {
	case domain.TypeMessageDelivered:
		return "delivered"
	case domain.TypeMessageRead:
		return "read"
	default:
		return "failed"
	}
}

func bounceReason(ev DeliveryEvent) string {
	if ev.Reason != "" {
		return ev.Reason
	}
	return ev.Type
}

func (d *Dispatcher) finish(ctx context.Context, source domain.Source, eventType, eventID string, result domain.Result, err error) domain.Result {
	if err != nil {
		d.logger.ErrorContext(ctx, "webhook processing failed",
			"source", string(source),
			"type", eventType,
			"event_id", eventID,
			"error", err,
		)
		d.cfg.Reporter.Report(ctx, err, "webhook_processing", map[string]string{
			"source":   string(source),
			"type":     eventType,
			"event_id": eventID,
		})
		result = domain.Result{Outcome: domain.OutcomeFailed, Reason: domain.ReasonProcessingFailed}
	} else {
		d.logger.InfoContext(ctx, "webhook processed",
			"source", string(source),
			"type", eventType,
			"event_id", eventID,
			"processed", result.Processed,
			"outcome", result.Outcome,
			"reason", result.Reason,
		)
	}

	d.cfg.Metrics.Counter(observability.MetricWebhookEvents, 1,
		observability.T("source", string(source)),
		observability.T("outcome", result.Outcome),
	)
	return result
}
