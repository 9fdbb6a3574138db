package domain

import (
	"strings"
	"time"

	sharedDomain "github.com/felixgeelhaar/talentreach/internal/shared/domain"
	"github.com/google/uuid"
)

const aggregateType = "OutreachAttempt"

// Routing keys for attempt events.
const (
	RoutingKeyAttemptCreated      = "outreach.attempt.created"
	RoutingKeyConnectionRequested = "outreach.attempt.connection_requested"
	RoutingKeyConnectionAccepted  = "outreach.attempt.connection_accepted"
	RoutingKeyPitchQueued         = "outreach.attempt.pitch_pending"
	RoutingKeyPitchSent           = "outreach.attempt.pitch_sent"
	RoutingKeyReplied             = "outreach.attempt.replied"
	RoutingKeyNoResponse          = "outreach.attempt.no_response"
	RoutingKeyBounced             = "outreach.attempt.bounced"
	RoutingKeyFollowUpSent        = "outreach.attempt.follow_up_sent"
)

func routingKeyFor(s Status) string {
	return "outreach.attempt." + strings.ToLower(string(s))
}

// AttemptStatusChanged is emitted for every status change of an attempt.
type AttemptStatusChanged struct {
	sharedDomain.BaseEvent
	AttemptID           uuid.UUID  `json:"attempt_id"`
	CandidateExternalID string     `json:"candidate_external_id"`
	CampaignRef         string     `json:"campaign_ref,omitempty"`
	From                Status     `json:"from,omitempty"`
	To                  Status     `json:"to"`
	ConversationID      *uuid.UUID `json:"conversation_id,omitempty"`
	BounceReason        string     `json:"bounce_reason,omitempty"`
}

func NewAttemptStatusChanged(a *Attempt, from Status, routingKey string) *AttemptStatusChanged {
	return &AttemptStatusChanged{
		BaseEvent:           sharedDomain.NewBaseEvent(a.ID(), aggregateType, routingKey, a.UpdatedAt()),
		AttemptID:           a.ID(),
		CandidateExternalID: a.CandidateExternalID(),
		CampaignRef:         a.CampaignRef(),
		From:                from,
		To:                  a.Status(),
		ConversationID:      a.ConversationID(),
		BounceReason:        a.BounceReason(),
	}
}

// FollowUpSent is emitted when a follow-up message went out.
type FollowUpSent struct {
	sharedDomain.BaseEvent
	AttemptID        uuid.UUID  `json:"attempt_id"`
	ConversationID   *uuid.UUID `json:"conversation_id,omitempty"`
	SequencePosition int        `json:"sequence_position"`
	NextFollowUpAt   *time.Time `json:"next_follow_up_at,omitempty"`
}

func NewFollowUpSent(a *Attempt, at time.Time) *FollowUpSent {
	return &FollowUpSent{
		BaseEvent:        sharedDomain.NewBaseEvent(a.ID(), aggregateType, RoutingKeyFollowUpSent, at),
		AttemptID:        a.ID(),
		ConversationID:   a.ConversationID(),
		SequencePosition: a.SequencePosition(),
		NextFollowUpAt:   a.NextFollowUpAt(),
	}
}
