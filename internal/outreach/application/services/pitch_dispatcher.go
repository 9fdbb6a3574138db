package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/felixgeelhaar/talentreach/internal/composer"
	conversationsDomain "github.com/felixgeelhaar/talentreach/internal/conversations/domain"
	"github.com/felixgeelhaar/talentreach/internal/messaging"
	"github.com/felixgeelhaar/talentreach/internal/outreach/domain"
	sharedApplication "github.com/felixgeelhaar/talentreach/internal/shared/application"
	sharedDomain "github.com/felixgeelhaar/talentreach/internal/shared/domain"
	"github.com/google/uuid"
)

var errEmptyDraft = errors.New("composer returned an empty draft")

// ChatCreator opens a chat with a first message.
type ChatCreator interface {
	CreateChat(ctx context.Context, targetIDs []string, initialText string) (messaging.Chat, error)
}

// PitchConfig tunes pitch dispatch.
type PitchConfig struct {
	ComposeTimeout time.Duration
	// RetryDelay is how long a failed pitch waits in PITCH_PENDING.
	RetryDelay time.Duration
	Policy     domain.FollowUpPolicy
}

// PitchDispatcher sends the first message to an accepted candidate and
// starts the conversation it opens.
type PitchDispatcher struct {
	writer   EventWriter
	uow      sharedApplication.UnitOfWork
	composer composer.Composer
	chats    ChatCreator
	clock    sharedDomain.Clock
	config   PitchConfig
	logger   *slog.Logger
}

// NewPitchDispatcher creates a pitch dispatcher.
func NewPitchDispatcher(
	writer EventWriter,
	uow sharedApplication.UnitOfWork,
	drafter composer.Composer,
	chats ChatCreator,
	clock sharedDomain.Clock,
	config PitchConfig,
	logger *slog.Logger,
) *PitchDispatcher {
	if clock == nil {
		clock = sharedDomain.SystemClock{}
	}
	if config.ComposeTimeout <= 0 {
		config.ComposeTimeout = 30 * time.Second
	}
	if config.RetryDelay <= 0 {
		config.RetryDelay = time.Hour
	}
	if config.Policy.Offsets == nil {
		config.Policy = domain.DefaultFollowUpPolicy()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &PitchDispatcher{
		writer:   writer,
		uow:      uow,
		composer: drafter,
		chats:    chats,
		clock:    clock,
		config:   config,
		logger:   logger.With("component", "pitch_dispatcher"),
	}
}

func pitchable(a *domain.Attempt) bool {
	return a.Status() == domain.StatusConnectionAccepted || a.Status() == domain.StatusPitchPending
}

// Dispatch pitches one attempt. It reports whether the pitch went out. A
// composer or provider failure parks the attempt in PITCH_PENDING and is
// not returned as an error.
func (d *PitchDispatcher) Dispatch(ctx context.Context, tenantID, attemptID uuid.UUID) (bool, error) {
	a, err := d.writer.Attempts.FindByID(ctx, tenantID, attemptID)
	if err != nil {
		return false, err
	}
	if !pitchable(a) {
		d.logger.DebugContext(ctx, "attempt not pitchable", "attempt_id", a.ID(), "status", string(a.Status()))
		return false, nil
	}

	text, err := d.draft(ctx, a)
	if err != nil {
		return false, d.park(ctx, a, err)
	}
	chat, err := d.chats.CreateChat(ctx, []string{a.CandidateExternalID()}, text)
	if err != nil {
		return false, d.park(ctx, a, err)
	}

	var conversationID uuid.UUID
	err = sharedApplication.RetryOnConflict(ctx, d.uow, sharedApplication.DefaultConflictRetries, func(txCtx context.Context) error {
		current, err := d.writer.Attempts.FindByID(txCtx, tenantID, attemptID)
		if err != nil {
			return err
		}
		if !pitchable(current) {
			return nil
		}

		now := d.clock.Now()
		id := current.ID()
		conv, err := conversationsDomain.Start(conversationsDomain.StartParams{
			TenantID:            current.TenantID(),
			ExternalChannelID:   chat.ID,
			CandidateExternalID: current.CandidateExternalID(),
			CandidateName:       current.CandidateName(),
			AttemptID:           &id,
			FirstMessage:        text,
			ExternalMessageID:   chat.MessageID,
		}, now)
		if err != nil {
			return err
		}
		if err := d.writer.CreateConversation(txCtx, conv); err != nil {
			return err
		}

		next := d.config.Policy.NextDue(now, 0)
		if _, err := current.MarkPitchSent(conv.ID(), now, &next); err != nil {
			return err
		}
		conversationID = conv.ID()
		return d.writer.SaveAttempt(txCtx, current)
	})
	if err != nil {
		return false, fmt.Errorf("failed to record pitch: %w", err)
	}
	if conversationID == uuid.Nil {
		d.logger.WarnContext(ctx, "attempt changed while pitching", "attempt_id", attemptID, "channel_id", chat.ID)
		return false, nil
	}

	d.logger.InfoContext(ctx, "pitch sent",
		"attempt_id", attemptID,
		"conversation_id", conversationID,
		"channel_id", chat.ID,
	)
	return true, nil
}

func (d *PitchDispatcher) draft(ctx context.Context, a *domain.Attempt) (string, error) {
	draftCtx, cancel := context.WithTimeout(ctx, d.config.ComposeTimeout)
	defer cancel()

	draft, err := d.composer.Draft(draftCtx, composer.DraftRequest{
		Purpose:       composer.PurposePitch,
		CandidateName: a.CandidateName(),
		CandidateID:   a.CandidateExternalID(),
		JobRef:        a.JobRef(),
	})
	if err != nil {
		return "", err
	}
	text := strings.TrimSpace(draft.Text)
	if text == "" {
		return "", errEmptyDraft
	}
	return text, nil
}

// park queues the pitch for another try after the retry delay.
func (d *PitchDispatcher) park(ctx context.Context, a *domain.Attempt, cause error) error {
	retryAt := d.clock.Now().Add(d.config.RetryDelay)
	err := sharedApplication.RetryOnConflict(ctx, d.uow, sharedApplication.DefaultConflictRetries, func(txCtx context.Context) error {
		current, err := d.writer.Attempts.FindByID(txCtx, a.TenantID(), a.ID())
		if err != nil {
			return err
		}
		changed, err := current.QueuePitch(retryAt, d.clock.Now())
		if errors.Is(err, domain.ErrInvalidTransition) || (err == nil && !changed) {
			return nil
		}
		if err != nil {
			return err
		}
		return d.writer.SaveAttempt(txCtx, current)
	})
	if err != nil {
		return fmt.Errorf("failed to park pitch: %w", err)
	}

	d.logger.WarnContext(ctx, "pitch failed, parked for retry",
		"attempt_id", a.ID(),
		"retry_at", retryAt,
		"error", cause,
	)
	return nil
}
