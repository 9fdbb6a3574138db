package domain

import (
	sharedDomain "github.com/felixgeelhaar/talentreach/internal/shared/domain"
	"github.com/google/uuid"
)

const aggregateType = "Conversation"

// Routing keys for conversation events.
const (
	RoutingKeyStarted            = "conversations.conversation.started"
	RoutingKeyEscalated          = "conversations.conversation.escalated"
	RoutingKeyEscalationResolved = "conversations.conversation.escalation_resolved"
	RoutingKeyClosed             = "conversations.conversation.closed"
	RoutingKeyReplySendFailed    = "conversations.reply.send_failed"
)

// ConversationStarted is emitted when the first outbound message creates a
// conversation.
type ConversationStarted struct {
	sharedDomain.BaseEvent
	ConversationID      uuid.UUID  `json:"conversation_id"`
	ExternalChannelID   string     `json:"external_channel_id"`
	CandidateExternalID string     `json:"candidate_external_id"`
	AttemptID           *uuid.UUID `json:"attempt_id,omitempty"`
}

func NewConversationStarted(c *Conversation) *ConversationStarted {
	return &ConversationStarted{
		BaseEvent:           sharedDomain.NewBaseEvent(c.ID(), aggregateType, RoutingKeyStarted, c.UpdatedAt()),
		ConversationID:      c.ID(),
		ExternalChannelID:   c.ExternalChannelID(),
		CandidateExternalID: c.CandidateExternalID(),
		AttemptID:           c.AttemptID(),
	}
}

// ConversationEscalated is emitted when a human must take over.
type ConversationEscalated struct {
	sharedDomain.BaseEvent
	ConversationID      uuid.UUID `json:"conversation_id"`
	ExternalChannelID   string    `json:"external_channel_id"`
	CandidateExternalID string    `json:"candidate_external_id"`
	CandidateName       string    `json:"candidate_name"`
	Reason              string    `json:"reason"`
}

func NewConversationEscalated(c *Conversation) *ConversationEscalated {
	return &ConversationEscalated{
		BaseEvent:           sharedDomain.NewBaseEvent(c.ID(), aggregateType, RoutingKeyEscalated, c.UpdatedAt()),
		ConversationID:      c.ID(),
		ExternalChannelID:   c.ExternalChannelID(),
		CandidateExternalID: c.CandidateExternalID(),
		CandidateName:       c.CandidateName(),
		Reason:              c.EscalationReason(),
	}
}

// EscalationResolved is emitted when an operator hands a conversation back.
type EscalationResolved struct {
	sharedDomain.BaseEvent
	ConversationID uuid.UUID `json:"conversation_id"`
}

func NewEscalationResolved(c *Conversation) *EscalationResolved {
	return &EscalationResolved{
		BaseEvent:      sharedDomain.NewBaseEvent(c.ID(), aggregateType, RoutingKeyEscalationResolved, c.UpdatedAt()),
		ConversationID: c.ID(),
	}
}

// ConversationClosed is emitted when a conversation reaches a closed stage.
type ConversationClosed struct {
	sharedDomain.BaseEvent
	ConversationID uuid.UUID `json:"conversation_id"`
	Stage          Stage     `json:"stage"`
}

func NewConversationClosed(c *Conversation) *ConversationClosed {
	return &ConversationClosed{
		BaseEvent:      sharedDomain.NewBaseEvent(c.ID(), aggregateType, RoutingKeyClosed, c.UpdatedAt()),
		ConversationID: c.ID(),
		Stage:          c.Stage(),
	}
}

// ReplySendFailed is emitted when an approved reply could not be delivered
// and was parked for manual retry.
type ReplySendFailed struct {
	sharedDomain.BaseEvent
	PendingReplyID    uuid.UUID `json:"pending_reply_id"`
	ConversationID    uuid.UUID `json:"conversation_id"`
	ExternalChannelID string    `json:"external_channel_id"`
	Error             string    `json:"error"`
}

func NewReplySendFailed(r *PendingReply, channelID string) *ReplySendFailed {
	return &ReplySendFailed{
		BaseEvent:         sharedDomain.NewBaseEvent(r.ConversationID(), aggregateType, RoutingKeyReplySendFailed, r.UpdatedAt()),
		PendingReplyID:    r.ID(),
		ConversationID:    r.ConversationID(),
		ExternalChannelID: channelID,
		Error:             r.LastError(),
	}
}
