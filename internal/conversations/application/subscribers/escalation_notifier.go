package subscribers

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"

	"github.com/felixgeelhaar/talentreach/internal/conversations/domain"
	"github.com/felixgeelhaar/talentreach/internal/shared/infrastructure/eventbus"
	"github.com/felixgeelhaar/talentreach/pkg/observability"
)

// EscalationNotifier tells operators about conversations that need them:
// escalations and replies that could not be delivered.
type EscalationNotifier struct {
	reporter observability.ErrorReporter
	logger   *slog.Logger
}

// NewEscalationNotifier creates a new escalation notifier.
func NewEscalationNotifier(reporter observability.ErrorReporter, logger *slog.Logger) *EscalationNotifier {
	if reporter == nil {
		reporter = observability.NoopReporter{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &EscalationNotifier{reporter: reporter, logger: logger.With("component", "escalation_notifier")}
}

// EventTypes returns the event types this subscriber handles.
func (n *EscalationNotifier) EventTypes() []string {
	return []string{
		domain.RoutingKeyEscalated,
		domain.RoutingKeyReplySendFailed,
	}
}

// Handle reports the event. Undecodable payloads are logged and dropped.
func (n *EscalationNotifier) Handle(ctx context.Context, event *eventbus.Envelope) error {
	switch event.RoutingKey {
	case domain.RoutingKeyEscalated:
		var payload domain.ConversationEscalated
		if err := json.Unmarshal(event.Payload, &payload); err != nil {
			n.logger.ErrorContext(ctx, "failed to decode escalation", "event_id", event.EventID, "error", err)
			return nil
		}
		n.logger.WarnContext(ctx, "conversation needs a human",
			"conversation_id", payload.ConversationID,
			"channel_id", payload.ExternalChannelID,
			"reason", payload.Reason,
		)
		n.reporter.Report(ctx, errors.New("conversation escalated: "+payload.Reason), "escalation", map[string]string{
			"conversation_id": payload.ConversationID.String(),
			"channel_id":      payload.ExternalChannelID,
			"candidate":       payload.CandidateName,
			"reason":          payload.Reason,
		})

	case domain.RoutingKeyReplySendFailed:
		var payload domain.ReplySendFailed
		if err := json.Unmarshal(event.Payload, &payload); err != nil {
			n.logger.ErrorContext(ctx, "failed to decode send failure", "event_id", event.EventID, "error", err)
			return nil
		}
		n.logger.WarnContext(ctx, "reply waiting for manual retry",
			"pending_reply_id", payload.PendingReplyID,
			"conversation_id", payload.ConversationID,
		)
		n.reporter.Report(ctx, errors.New("reply not delivered: "+payload.Error), "pending_reply", map[string]string{
			"pending_reply_id": payload.PendingReplyID.String(),
			"conversation_id":  payload.ConversationID.String(),
			"channel_id":       payload.ExternalChannelID,
		})
	}
	return nil
}
