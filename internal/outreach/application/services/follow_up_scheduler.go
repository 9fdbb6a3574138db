package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/felixgeelhaar/talentreach/internal/composer"
	conversationServices "github.com/felixgeelhaar/talentreach/internal/conversations/application/services"
	conversationsDomain "github.com/felixgeelhaar/talentreach/internal/conversations/domain"
	"github.com/felixgeelhaar/talentreach/internal/messaging"
	"github.com/felixgeelhaar/talentreach/internal/outreach/domain"
	sharedApplication "github.com/felixgeelhaar/talentreach/internal/shared/application"
	sharedDomain "github.com/felixgeelhaar/talentreach/internal/shared/domain"
	"github.com/felixgeelhaar/talentreach/pkg/observability"
)

// MessageSender delivers text into an existing chat.
type MessageSender interface {
	SendMessage(ctx context.Context, channelID, text string) (messaging.SentMessage, error)
}

// Follow-up results.
const (
	FollowUpSent       = "sent"
	FollowUpReplied    = "replied"
	FollowUpNoResponse = "no_response"
	FollowUpPostponed  = "postponed"
	FollowUpSkipped    = "skipped"
)

// FollowUpConfig tunes the scheduler.
type FollowUpConfig struct {
	Policy         domain.FollowUpPolicy
	RetryDelay     time.Duration
	ComposeTimeout time.Duration
	BatchSize      int
}

// FollowUpStats counts what one ProcessDue run did.
type FollowUpStats struct {
	PitchesSent int
	Sent        int
	Replied     int
	NoResponse  int
	Postponed   int
	Failed      int
}

// FollowUpScheduler sends due pitches and follow-ups and closes sequences
// that ran out.
type FollowUpScheduler struct {
	writer     EventWriter
	uow        sharedApplication.UnitOfWork
	dispatcher *PitchDispatcher
	composer   composer.Composer
	sender     MessageSender
	clock      sharedDomain.Clock
	config     FollowUpConfig
	metrics    observability.Metrics
	logger     *slog.Logger
}

// NewFollowUpScheduler creates a follow-up scheduler. dispatcher may be nil
// when pending pitches are handled elsewhere.
func NewFollowUpScheduler(
	writer EventWriter,
	uow sharedApplication.UnitOfWork,
	dispatcher *PitchDispatcher,
	drafter composer.Composer,
	sender MessageSender,
	clock sharedDomain.Clock,
	config FollowUpConfig,
	metrics observability.Metrics,
	logger *slog.Logger,
) *FollowUpScheduler {
	if clock == nil {
		clock = sharedDomain.SystemClock{}
	}
	if config.Policy.Offsets == nil {
		config.Policy = domain.DefaultFollowUpPolicy()
	}
	if config.RetryDelay <= 0 {
		config.RetryDelay = time.Hour
	}
	if config.ComposeTimeout <= 0 {
		config.ComposeTimeout = 30 * time.Second
	}
	if config.BatchSize <= 0 {
		config.BatchSize = 50
	}
	if metrics == nil {
		metrics = observability.NoopMetrics{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &FollowUpScheduler{
		writer:     writer,
		uow:        uow,
		dispatcher: dispatcher,
		composer:   drafter,
		sender:     sender,
		clock:      clock,
		config:     config,
		metrics:    metrics,
		logger:     logger.With("component", "follow_up_scheduler"),
	}
}

// ProcessDue handles everything due at the current time. A failure on one
// attempt is logged and counted; the run continues with the next.
func (s *FollowUpScheduler) ProcessDue(ctx context.Context) (FollowUpStats, error) {
	var stats FollowUpStats
	now := s.clock.Now()

	if s.dispatcher != nil {
		pending, err := s.writer.Attempts.ListPitchDue(ctx, now, s.config.BatchSize)
		if err != nil {
			return stats, fmt.Errorf("failed to list due pitches: %w", err)
		}
		for _, a := range pending {
			if err := ctx.Err(); err != nil {
				return stats, err
			}
			sent, err := s.dispatcher.Dispatch(ctx, a.TenantID(), a.ID())
			if err != nil {
				stats.Failed++
				s.logger.ErrorContext(ctx, "pending pitch failed", "attempt_id", a.ID(), "error", err)
				continue
			}
			if sent {
				stats.PitchesSent++
			}
		}
	}

	due, err := s.writer.Attempts.ListFollowUpDue(ctx, now, s.config.BatchSize)
	if err != nil {
		return stats, fmt.Errorf("failed to list due follow-ups: %w", err)
	}
	for _, a := range due {
		if err := ctx.Err(); err != nil {
			return stats, err
		}
		result, err := s.FollowUp(ctx, a)
		if err != nil {
			stats.Failed++
			s.logger.ErrorContext(ctx, "follow-up failed", "attempt_id", a.ID(), "error", err)
			continue
		}
		switch result {
		case FollowUpSent:
			stats.Sent++
		case FollowUpReplied:
			stats.Replied++
		case FollowUpNoResponse:
			stats.NoResponse++
		case FollowUpPostponed:
			stats.Postponed++
		}
	}
	return stats, nil
}

// FollowUp advances the sequence of one pitched attempt.
func (s *FollowUpScheduler) FollowUp(ctx context.Context, a *domain.Attempt) (string, error) {
	if a.Status() != domain.StatusPitchSent || a.ConversationID() == nil || a.PitchSentAt() == nil {
		return FollowUpSkipped, nil
	}

	conv, err := s.writer.Conversations.FindByID(ctx, a.TenantID(), *a.ConversationID())
	if err != nil {
		return "", fmt.Errorf("failed to load conversation: %w", err)
	}
	if conv.HasCandidateMessageSince(*a.PitchSentAt()) {
		return s.markReplied(ctx, a)
	}
	if s.config.Policy.Exhausted(a.SequencePosition()) {
		return s.markNoResponse(ctx, a)
	}
	if !conv.IsActive() {
		return s.postpone(ctx, a, "conversation not active")
	}

	number := a.SequencePosition() + 1
	draftCtx, cancel := context.WithTimeout(ctx, s.config.ComposeTimeout)
	draft, err := s.composer.Draft(draftCtx, composer.DraftRequest{
		Purpose:        composer.PurposeFollowUp,
		CandidateName:  conv.CandidateName(),
		CandidateID:    conv.CandidateExternalID(),
		Stage:          string(conv.Stage()),
		Transcript:     conversationServices.Turns(conv.Transcript()),
		FollowUpNumber: number,
		JobRef:         a.JobRef(),
	})
	cancel()
	if err != nil {
		return s.postpone(ctx, a, err.Error())
	}
	text := strings.TrimSpace(draft.Text)
	if text == "" {
		return s.postpone(ctx, a, errEmptyDraft.Error())
	}

	// The candidate may have answered while the draft was being written.
	conv, err = s.writer.Conversations.FindByID(ctx, a.TenantID(), *a.ConversationID())
	if err != nil {
		return "", fmt.Errorf("failed to reload conversation: %w", err)
	}
	if conv.HasCandidateMessageSince(*a.PitchSentAt()) {
		return s.markReplied(ctx, a)
	}

	sent, err := s.sender.SendMessage(ctx, conv.ExternalChannelID(), text)
	if err != nil {
		return s.postpone(ctx, a, err.Error())
	}

	// The message went out, so it is recorded even when the attempt moved on
	// (a reply landed) between the send and this transaction.
	superseded := false
	err = sharedApplication.RetryOnConflict(ctx, s.uow, sharedApplication.DefaultConflictRetries, func(txCtx context.Context) error {
		now := s.clock.Now()
		superseded = false
		current, err := s.writer.Attempts.FindByID(txCtx, a.TenantID(), a.ID())
		if err != nil {
			return err
		}
		next := s.config.Policy.NextDue(*current.PitchSentAt(), current.SequencePosition()+1)
		_, err = current.RecordFollowUp(now, &next)
		switch {
		case errors.Is(err, domain.ErrInvalidTransition):
			superseded = true
		case err != nil:
			return err
		}

		c, err := s.writer.Conversations.FindByID(txCtx, a.TenantID(), conv.ID())
		if err != nil {
			return err
		}
		c.RecordSystemMessage(text, sent.ID, sent.CreatedAt, now)
		if !superseded {
			if _, err := c.MoveTo(conversationsDomain.StageFollowUp, now); err != nil && !errors.Is(err, conversationsDomain.ErrConversationClosed) {
				return err
			}
		}
		if err := s.writer.SaveConversation(txCtx, c); err != nil {
			return err
		}
		if superseded {
			return nil
		}
		return s.writer.SaveAttempt(txCtx, current)
	})
	if err != nil {
		return "", fmt.Errorf("failed to record follow-up: %w", err)
	}
	if superseded {
		s.logger.WarnContext(ctx, "follow-up sent after the sequence ended",
			"attempt_id", a.ID(),
			"conversation_id", conv.ID(),
			"follow_up_number", number,
		)
	}

	s.metrics.Counter(observability.MetricFollowUpsSent, 1)
	s.logger.InfoContext(ctx, "follow-up sent",
		"attempt_id", a.ID(),
		"conversation_id", conv.ID(),
		"follow_up_number", number,
	)
	return FollowUpSent, nil
}

// markReplied ends the sequence and moves the conversation on.
func (s *FollowUpScheduler) markReplied(ctx context.Context, a *domain.Attempt) (string, error) {
	err := s.closeSequence(ctx, a, func(current *domain.Attempt, c *conversationsDomain.Conversation, now time.Time) error {
		if _, err := current.MarkReplied(now); err != nil {
			return err
		}
		_, err := c.MoveTo(conversationsDomain.StageInConversation, now)
		if errors.Is(err, conversationsDomain.ErrConversationClosed) {
			return nil
		}
		return err
	})
	if err != nil {
		return "", err
	}
	s.logger.InfoContext(ctx, "candidate replied, follow-ups canceled", "attempt_id", a.ID())
	return FollowUpReplied, nil
}

// markNoResponse closes an exhausted sequence.
func (s *FollowUpScheduler) markNoResponse(ctx context.Context, a *domain.Attempt) (string, error) {
	err := s.closeSequence(ctx, a, func(current *domain.Attempt, c *conversationsDomain.Conversation, now time.Time) error {
		if _, err := current.MarkNoResponse(now); err != nil {
			return err
		}
		_, err := c.Close(conversationsDomain.StageClosedNoResponse, now)
		return err
	})
	if err != nil {
		return "", err
	}
	s.logger.InfoContext(ctx, "no response after follow-ups", "attempt_id", a.ID(), "follow_ups", a.SequencePosition())
	return FollowUpNoResponse, nil
}

func (s *FollowUpScheduler) closeSequence(ctx context.Context, a *domain.Attempt, fn func(*domain.Attempt, *conversationsDomain.Conversation, time.Time) error) error {
	err := sharedApplication.RetryOnConflict(ctx, s.uow, sharedApplication.DefaultConflictRetries, func(txCtx context.Context) error {
		current, err := s.writer.Attempts.FindByID(txCtx, a.TenantID(), a.ID())
		if err != nil {
			return err
		}
		if current.Status() != domain.StatusPitchSent {
			return nil
		}
		c, err := s.writer.Conversations.FindByID(txCtx, a.TenantID(), *current.ConversationID())
		if err != nil {
			return err
		}
		if err := fn(current, c, s.clock.Now()); err != nil {
			return err
		}
		if err := s.writer.SaveConversation(txCtx, c); err != nil {
			return err
		}
		return s.writer.SaveAttempt(txCtx, current)
	})
	if err != nil {
		return fmt.Errorf("failed to close follow-up sequence: %w", err)
	}
	return nil
}

// postpone pushes the next check out by the retry delay.
func (s *FollowUpScheduler) postpone(ctx context.Context, a *domain.Attempt, reason string) (string, error) {
	retryAt := s.clock.Now().Add(s.config.RetryDelay)
	err := sharedApplication.RetryOnConflict(ctx, s.uow, sharedApplication.DefaultConflictRetries, func(txCtx context.Context) error {
		current, err := s.writer.Attempts.FindByID(txCtx, a.TenantID(), a.ID())
		if err != nil {
			return err
		}
		changed, err := current.PostponeFollowUp(retryAt, s.clock.Now())
		if errors.Is(err, domain.ErrInvalidTransition) || (err == nil && !changed) {
			return nil
		}
		if err != nil {
			return err
		}
		return s.writer.SaveAttempt(txCtx, current)
	})
	if err != nil {
		return "", fmt.Errorf("failed to postpone follow-up: %w", err)
	}
	s.logger.WarnContext(ctx, "follow-up postponed", "attempt_id", a.ID(), "retry_at", retryAt, "reason", reason)
	return FollowUpPostponed, nil
}
