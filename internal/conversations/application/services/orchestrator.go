package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/felixgeelhaar/talentreach/internal/composer"
	"github.com/felixgeelhaar/talentreach/internal/conversations/domain"
	"github.com/felixgeelhaar/talentreach/internal/messaging"
	resourcesDomain "github.com/felixgeelhaar/talentreach/internal/resources/domain"
	sharedApplication "github.com/felixgeelhaar/talentreach/internal/shared/application"
	sharedDomain "github.com/felixgeelhaar/talentreach/internal/shared/domain"
	"github.com/felixgeelhaar/talentreach/internal/shared/infrastructure/outbox"
	"github.com/felixgeelhaar/talentreach/pkg/observability"
	"github.com/google/uuid"
)

// MessageSender delivers text into an existing chat.
type MessageSender interface {
	SendMessage(ctx context.Context, channelID, text string) (messaging.SentMessage, error)
}

// ResourceAssigner hands out a scheduling resource for a candidate.
type ResourceAssigner interface {
	Assign(ctx context.Context, req resourcesDomain.AssignRequest) (*resourcesDomain.Assignment, *resourcesDomain.Resource, error)
}

// Action is what the orchestrator decided for an inbound message.
type Action string

const (
	ActionIgnore   Action = "ignore"
	ActionEscalate Action = "escalate"
	ActionRespond  Action = "respond"
)

// Ignore reasons.
const (
	ReasonUnknownConversation = "unknown conversation"
	ReasonDuplicateMessage    = "duplicate message"
	ReasonNotActive           = "conversation not active"
)

// InboundMessage is a candidate message on a provider channel.
type InboundMessage struct {
	TenantID          uuid.UUID
	ExternalChannelID string
	ExternalMessageID string
	Content           string
	SentAt            *time.Time
}

// Outcome reports what Handle did.
type Outcome struct {
	Action         Action
	Reason         string
	Text           string
	ResourceRef    string
	NewStage       domain.Stage
	Delivered      bool
	ConversationID uuid.UUID
	PendingReplyID uuid.UUID
}

// OrchestratorConfig tunes the orchestrator.
type OrchestratorConfig struct {
	ComposeTimeout  time.Duration
	ConflictRetries int
}

// Orchestrator decides how to answer inbound candidate messages.
type Orchestrator struct {
	conversations  domain.Repository
	pendingReplies domain.PendingReplyRepository
	outboxRepo     outbox.Repository
	uow            sharedApplication.UnitOfWork
	detector       *domain.Detector
	composer       composer.Composer
	sender         MessageSender
	assigner       ResourceAssigner
	reporter       observability.ErrorReporter
	clock          sharedDomain.Clock
	config         OrchestratorConfig
	metrics        observability.Metrics
	logger         *slog.Logger
}

// NewOrchestrator creates an orchestrator. assigner may be nil, in which
// case booking intent escalates for lack of a resource.
func NewOrchestrator(
	conversations domain.Repository,
	pendingReplies domain.PendingReplyRepository,
	outboxRepo outbox.Repository,
	uow sharedApplication.UnitOfWork,
	detector *domain.Detector,
	drafter composer.Composer,
	sender MessageSender,
	assigner ResourceAssigner,
	reporter observability.ErrorReporter,
	clock sharedDomain.Clock,
	config OrchestratorConfig,
	metrics observability.Metrics,
	logger *slog.Logger,
) *Orchestrator {
	if detector == nil {
		detector = domain.NewDefaultDetector()
	}
	if reporter == nil {
		reporter = observability.NoopReporter{}
	}
	if clock == nil {
		clock = sharedDomain.SystemClock{}
	}
	if config.ComposeTimeout <= 0 {
		config.ComposeTimeout = 30 * time.Second
	}
	if config.ConflictRetries <= 0 {
		config.ConflictRetries = sharedApplication.DefaultConflictRetries
	}
	if metrics == nil {
		metrics = observability.NoopMetrics{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Orchestrator{
		conversations:  conversations,
		pendingReplies: pendingReplies,
		outboxRepo:     outboxRepo,
		uow:            uow,
		detector:       detector,
		composer:       drafter,
		sender:         sender,
		assigner:       assigner,
		reporter:       reporter,
		clock:          clock,
		config:         config,
		metrics:        metrics,
		logger:         logger.With("component", "orchestrator"),
	}
}

// Handle processes one inbound candidate message. Only conversations this
// system started are engaged; everything else is ignored without writes.
func (o *Orchestrator) Handle(ctx context.Context, msg InboundMessage) (Outcome, error) {
	outcome, conv, err := o.receive(ctx, msg)
	if err != nil {
		return Outcome{}, err
	}
	if conv == nil {
		return o.finish(ctx, msg, outcome), nil
	}

	outcome, err = o.respond(ctx, conv)
	if err != nil {
		// The message is already in the transcript, so a redelivery would be
		// ignored as a duplicate. An operator has to take it from here.
		outcome, err = o.handOff(ctx, conv, err)
		if err != nil {
			return Outcome{}, err
		}
	}
	return o.finish(ctx, msg, outcome), nil
}

// handOff escalates a conversation whose recorded message could not be
// answered. The escalation survives cancellation of ctx.
func (o *Orchestrator) handOff(ctx context.Context, conv *domain.Conversation, cause error) (Outcome, error) {
	o.logger.ErrorContext(ctx, "auto-response failed, escalating", "conversation_id", conv.ID(), "error", cause)
	o.reporter.Report(ctx, cause, "auto_response_failed", map[string]string{
		"conversation_id": conv.ID().String(),
		"channel_id":      conv.ExternalChannelID(),
	})
	outcome, err := o.escalate(context.WithoutCancel(ctx), conv, domain.ReasonComposerFailed)
	if err != nil {
		return Outcome{}, errors.Join(cause, err)
	}
	return outcome, nil
}

// receive records the message and runs the checks that need no external
// call. It returns the conversation only when a reply should be drafted.
func (o *Orchestrator) receive(ctx context.Context, msg InboundMessage) (Outcome, *domain.Conversation, error) {
	var (
		outcome Outcome
		conv    *domain.Conversation
	)

	err := sharedApplication.RetryOnConflict(ctx, o.uow, o.config.ConflictRetries, func(txCtx context.Context) error {
		outcome, conv = Outcome{}, nil

		c, err := o.conversations.FindByChannelID(txCtx, msg.TenantID, msg.ExternalChannelID)
		if errors.Is(err, domain.ErrConversationNotFound) {
			outcome = Outcome{Action: ActionIgnore, Reason: ReasonUnknownConversation}
			return nil
		}
		if err != nil {
			return err
		}
		outcome.ConversationID = c.ID()

		now := o.clock.Now()
		if !c.ReceiveCandidateMessage(msg.Content, msg.ExternalMessageID, msg.SentAt, now) {
			outcome.Action, outcome.Reason = ActionIgnore, ReasonDuplicateMessage
			return nil
		}

		if !c.IsActive() {
			outcome.Action, outcome.Reason = ActionIgnore, ReasonNotActive
			return o.save(txCtx, c)
		}

		if class := o.detector.Classify(msg.Content); class.NeedsHuman {
			if _, err := c.Escalate(class.Reason, now); err != nil {
				return err
			}
			outcome.Action, outcome.Reason = ActionEscalate, class.Reason
			return o.save(txCtx, c)
		}

		if err := o.save(txCtx, c); err != nil {
			return err
		}
		conv = c
		return nil
	})
	if err != nil {
		return Outcome{}, nil, fmt.Errorf("failed to record inbound message: %w", err)
	}
	return outcome, conv, nil
}

// respond drafts, optionally attaches a scheduling resource, and sends.
func (o *Orchestrator) respond(ctx context.Context, conv *domain.Conversation) (Outcome, error) {
	outcome := Outcome{ConversationID: conv.ID()}

	draftCtx, cancel := context.WithTimeout(ctx, o.config.ComposeTimeout)
	draft, err := o.composer.Draft(draftCtx, composer.DraftRequest{
		Purpose:       composer.PurposeReply,
		CandidateName: conv.CandidateName(),
		CandidateID:   conv.CandidateExternalID(),
		Stage:         string(conv.Stage()),
		Transcript:    Turns(conv.Transcript()),
	})
	cancel()
	if err != nil {
		o.logger.WarnContext(ctx, "composer failed, escalating", "conversation_id", conv.ID(), "error", err)
		return o.escalate(ctx, conv, domain.ReasonComposerFailed)
	}
	if strings.TrimSpace(draft.Text) == "" || draft.Uncertain {
		return o.escalate(ctx, conv, domain.ReasonComposerUncertain)
	}

	outcome.Text = draft.Text
	if draft.NotInterested {
		outcome.NewStage = domain.StageClosedNotInterested
	}

	if draft.BookingIntent && conv.Stage() != domain.StageScheduling && conv.Stage() != domain.StageScheduled {
		resource, err := o.assign(ctx, conv)
		if errors.Is(err, resourcesDomain.ErrNoActiveResource) {
			return o.escalate(ctx, conv, domain.ReasonNoResource)
		}
		if err != nil {
			return Outcome{}, err
		}
		outcome.ResourceRef = resource.ResourceURL()
		outcome.Text = WithResourceLink(draft.Text, outcome.ResourceRef)
		outcome.NewStage = domain.StageScheduling
	}

	outcome.Action = ActionRespond
	return o.deliver(ctx, conv, outcome)
}

func (o *Orchestrator) assign(ctx context.Context, conv *domain.Conversation) (*resourcesDomain.Resource, error) {
	if o.assigner == nil {
		return nil, resourcesDomain.ErrNoActiveResource
	}
	id := conv.ID()
	_, resource, err := o.assigner.Assign(ctx, resourcesDomain.AssignRequest{
		TenantID:            conv.TenantID(),
		CandidateExternalID: conv.CandidateExternalID(),
		CandidateName:       conv.CandidateName(),
		ConversationID:      &id,
	})
	if err != nil {
		return nil, err
	}
	return resource, nil
}

// deliver sends outcome.Text. A conversation that left ACTIVE while the
// reply was drafted belongs to a human and gets nothing. A failed send parks
// the reply for manual retry and still returns a Respond outcome with
// Delivered=false.
func (o *Orchestrator) deliver(ctx context.Context, conv *domain.Conversation, outcome Outcome) (Outcome, error) {
	current, err := o.conversations.FindByID(ctx, conv.TenantID(), conv.ID())
	if err != nil {
		return Outcome{}, fmt.Errorf("failed to reload conversation: %w", err)
	}
	if !current.IsActive() {
		o.logger.InfoContext(ctx, "conversation no longer active, reply dropped",
			"conversation_id", conv.ID(),
			"status", current.Status(),
			"resource_ref", outcome.ResourceRef,
		)
		return Outcome{Action: ActionIgnore, Reason: ReasonNotActive, ConversationID: conv.ID()}, nil
	}

	sent, sendErr := o.sender.SendMessage(ctx, current.ExternalChannelID(), outcome.Text)
	if sendErr != nil {
		reply, err := o.parkReply(ctx, conv, outcome, sendErr)
		if err != nil {
			return Outcome{}, err
		}
		outcome.PendingReplyID = reply.ID()
		o.reporter.Report(ctx, sendErr, "reply_send_failed", map[string]string{
			"conversation_id":  conv.ID().String(),
			"channel_id":       conv.ExternalChannelID(),
			"pending_reply_id": reply.ID().String(),
		})
		o.logger.ErrorContext(ctx, "reply send failed, parked for retry",
			"conversation_id", conv.ID(),
			"pending_reply_id", reply.ID(),
			"error", sendErr,
		)
		return outcome, nil
	}

	if err := o.recordSent(ctx, conv.TenantID(), conv.ID(), outcome.Text, sent, outcome.NewStage); err != nil {
		return Outcome{}, err
	}
	outcome.Delivered = true
	return outcome, nil
}

func (o *Orchestrator) parkReply(ctx context.Context, conv *domain.Conversation, outcome Outcome, sendErr error) (*domain.PendingReply, error) {
	var reply *domain.PendingReply
	err := sharedApplication.WithUnitOfWork(ctx, o.uow, func(txCtx context.Context) error {
		reply = domain.NewPendingReply(conv, outcome.Text, outcome.ResourceRef, outcome.NewStage, sendErr, o.clock.Now())
		if err := o.pendingReplies.Save(txCtx, reply); err != nil {
			return err
		}
		return o.saveEvents(txCtx, conv.TenantID(), reply.PullDomainEvents())
	})
	if err != nil {
		return nil, fmt.Errorf("failed to park reply: %w", err)
	}
	o.metrics.Counter(observability.MetricPendingRepliesCreated, 1)
	return reply, nil
}

// recordSent appends a delivered SYSTEM message and applies the stage the
// reply was meant to move to. A conversation a human took over in the
// meantime keeps its stage.
func (o *Orchestrator) recordSent(ctx context.Context, tenantID, conversationID uuid.UUID, text string, sent messaging.SentMessage, stage domain.Stage) error {
	err := sharedApplication.RetryOnConflict(ctx, o.uow, o.config.ConflictRetries, func(txCtx context.Context) error {
		c, err := o.conversations.FindByID(txCtx, tenantID, conversationID)
		if err != nil {
			return err
		}
		now := o.clock.Now()
		c.RecordSystemMessage(text, sent.ID, sent.CreatedAt, now)
		if c.IsActive() {
			if err := applyStage(c, stage, now); err != nil {
				return err
			}
		}
		return o.save(txCtx, c)
	})
	if err != nil {
		return fmt.Errorf("failed to record sent reply: %w", err)
	}
	return nil
}

func applyStage(c *domain.Conversation, stage domain.Stage, now time.Time) error {
	switch {
	case stage == "":
		return nil
	case stage.IsClosed():
		_, err := c.Close(stage, now)
		return err
	default:
		_, err := c.MoveTo(stage, now)
		if errors.Is(err, domain.ErrConversationClosed) {
			return nil
		}
		return err
	}
}

func (o *Orchestrator) escalate(ctx context.Context, conv *domain.Conversation, reason string) (Outcome, error) {
	err := sharedApplication.RetryOnConflict(ctx, o.uow, o.config.ConflictRetries, func(txCtx context.Context) error {
		c, err := o.conversations.FindByID(txCtx, conv.TenantID(), conv.ID())
		if err != nil {
			return err
		}
		changed, err := c.Escalate(reason, o.clock.Now())
		if errors.Is(err, domain.ErrConversationClosed) || (err == nil && !changed) {
			return nil
		}
		if err != nil {
			return err
		}
		return o.save(txCtx, c)
	})
	if err != nil {
		return Outcome{}, fmt.Errorf("failed to escalate conversation: %w", err)
	}
	return Outcome{Action: ActionEscalate, Reason: reason, ConversationID: conv.ID()}, nil
}

// RetryPendingReply resends a parked reply. On success the reply is
// resolved and recorded in the transcript; on failure the attempt is
// counted and the send error returned.
func (o *Orchestrator) RetryPendingReply(ctx context.Context, tenantID, replyID uuid.UUID) (Outcome, error) {
	reply, err := o.pendingReplies.FindByID(ctx, tenantID, replyID)
	if err != nil {
		return Outcome{}, err
	}
	if reply.IsResolved() {
		return Outcome{}, domain.ErrPendingReplyResolved
	}
	conv, err := o.conversations.FindByID(ctx, tenantID, reply.ConversationID())
	if err != nil {
		return Outcome{}, err
	}

	outcome := Outcome{
		Action:         ActionRespond,
		Text:           reply.Content(),
		ResourceRef:    reply.ResourceRef(),
		NewStage:       reply.TargetStage(),
		ConversationID: conv.ID(),
		PendingReplyID: reply.ID(),
	}

	sent, sendErr := o.sender.SendMessage(ctx, conv.ExternalChannelID(), reply.Content())
	if sendErr != nil {
		reply.RecordFailure(sendErr, o.clock.Now())
		if err := o.pendingReplies.Save(ctx, reply); err != nil {
			return Outcome{}, err
		}
		o.logger.WarnContext(ctx, "pending reply retry failed",
			"pending_reply_id", reply.ID(),
			"attempts", reply.Attempts(),
			"error", sendErr,
		)
		return outcome, fmt.Errorf("resend failed: %w", sendErr)
	}

	err = sharedApplication.RetryOnConflict(ctx, o.uow, o.config.ConflictRetries, func(txCtx context.Context) error {
		c, err := o.conversations.FindByID(txCtx, tenantID, conv.ID())
		if err != nil {
			return err
		}
		now := o.clock.Now()
		c.RecordSystemMessage(reply.Content(), sent.ID, sent.CreatedAt, now)
		if err := applyStage(c, reply.TargetStage(), now); err != nil {
			return err
		}
		if err := o.save(txCtx, c); err != nil {
			return err
		}
		r, err := o.pendingReplies.FindByID(txCtx, tenantID, reply.ID())
		if err != nil {
			return err
		}
		if err := r.Resolve(now); err != nil {
			return err
		}
		return o.pendingReplies.Save(txCtx, r)
	})
	if err != nil {
		return Outcome{}, fmt.Errorf("failed to record resent reply: %w", err)
	}

	o.logger.InfoContext(ctx, "pending reply delivered", "pending_reply_id", reply.ID(), "conversation_id", conv.ID())
	outcome.Delivered = true
	return outcome, nil
}

func (o *Orchestrator) save(ctx context.Context, c *domain.Conversation) error {
	if err := o.conversations.Save(ctx, c); err != nil {
		return err
	}
	return o.saveEvents(ctx, c.TenantID(), c.PullDomainEvents())
}

func (o *Orchestrator) saveEvents(ctx context.Context, tenantID uuid.UUID, events []sharedDomain.DomainEvent) error {
	sharedApplication.StampEvents(ctx, tenantID, events)
	return outbox.SaveEvents(ctx, o.outboxRepo, events)
}

func (o *Orchestrator) finish(ctx context.Context, msg InboundMessage, outcome Outcome) Outcome {
	o.metrics.Counter(observability.MetricOrchestratorOutcomes, 1, observability.T("action", string(outcome.Action)))
	o.logger.InfoContext(ctx, "inbound message handled",
		"channel_id", msg.ExternalChannelID,
		"message_id", msg.ExternalMessageID,
		"action", string(outcome.Action),
		"reason", outcome.Reason,
		"delivered", outcome.Delivered,
	)
	return outcome
}

// Turns converts a transcript for the composer.
func Turns(messages []domain.Message) []composer.Turn {
	turns := make([]composer.Turn, 0, len(messages))
	for _, m := range messages {
		turns = append(turns, composer.Turn{Role: string(m.Role), Content: m.Content, At: m.CreatedAt})
	}
	return turns
}

// WithResourceLink appends a scheduling link to a reply.
func WithResourceLink(text, resourceURL string) string {
	return strings.TrimRight(text, " \n") + "\n\n" + resourceURL
}
