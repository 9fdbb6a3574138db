package domain

import (
	"errors"
	"strings"
	"time"

	sharedDomain "github.com/felixgeelhaar/talentreach/internal/shared/domain"
	"github.com/google/uuid"
)

var (
	ErrConversationNotFound = errors.New("conversation not found")
	ErrDuplicateChannel     = errors.New("conversation already exists for channel")
	ErrEmptyChannelID       = errors.New("external channel id cannot be empty")
	ErrEmptyCandidateID     = errors.New("candidate external id cannot be empty")
	ErrEmptyMessage         = errors.New("message content cannot be empty")
	ErrConversationClosed   = errors.New("conversation is closed")
	ErrInvalidStage         = errors.New("invalid conversation stage")
	ErrNotEscalated         = errors.New("conversation is not escalated")
)

// Stage is where the conversation stands in the recruiting flow.
type Stage string

const (
	StageInitialOutreach     Stage = "INITIAL_OUTREACH"
	StageAwaitingResponse    Stage = "AWAITING_RESPONSE"
	StageInConversation      Stage = "IN_CONVERSATION"
	StageScheduling          Stage = "SCHEDULING"
	StageScheduled           Stage = "SCHEDULED"
	StageFollowUp            Stage = "FOLLOW_UP"
	StageClosedNoResponse    Stage = "CLOSED_NO_RESPONSE"
	StageClosedBounced       Stage = "CLOSED_BOUNCED"
	StageClosedNotInterested Stage = "CLOSED_NOT_INTERESTED"
	StageClosedManual        Stage = "CLOSED_MANUAL"
)

// IsValid returns true if the stage is known.
func (s Stage) IsValid() bool {
	switch s {
	case StageInitialOutreach, StageAwaitingResponse, StageInConversation, StageScheduling,
		StageScheduled, StageFollowUp, StageClosedNoResponse, StageClosedBounced,
		StageClosedNotInterested, StageClosedManual:
		return true
	}
	return false
}

// IsClosed returns true for the CLOSED_* stages.
func (s Stage) IsClosed() bool {
	return strings.HasPrefix(string(s), "CLOSED_")
}

// Status says who owns the conversation right now.
type Status string

const (
	StatusActive    Status = "ACTIVE"
	StatusPaused    Status = "PAUSED"
	StatusEscalated Status = "ESCALATED"
	StatusCompleted Status = "COMPLETED"
)

// IsValid returns true if the status is known.
func (s Status) IsValid() bool {
	switch s {
	case StatusActive, StatusPaused, StatusEscalated, StatusCompleted:
		return true
	}
	return false
}

// Role identifies the author of a transcript entry.
type Role string

const (
	RoleSystem    Role = "SYSTEM"
	RoleCandidate Role = "CANDIDATE"
)

// Message is one transcript entry. Seq is assigned by the store and defines
// transcript order; ExternalCreatedAt is the provider's timestamp, kept for
// audit only.
type Message struct {
	ID                uuid.UUID
	Seq               int64
	Role              Role
	Content           string
	ExternalMessageID string
	ExternalCreatedAt *time.Time
	CreatedAt         time.Time
}

// Conversation is one external message thread this system started.
type Conversation struct {
	sharedDomain.BaseAggregateRoot
	tenantID            uuid.UUID
	externalChannelID   string
	candidateExternalID string
	candidateName       string
	attemptID           *uuid.UUID
	stage               Stage
	status              Status
	escalationReason    string
	lastMessageBy       Role
	lastMessageAt       *time.Time
	messages            []Message
	unsaved             int
}

// StartParams describes the first outbound message of a conversation.
type StartParams struct {
	TenantID            uuid.UUID
	ExternalChannelID   string
	CandidateExternalID string
	CandidateName       string
	AttemptID           *uuid.UUID
	FirstMessage        string
	ExternalMessageID   string
}

// Start creates a conversation from the first message this system sent.
func Start(p StartParams, at time.Time) (*Conversation, error) {
	channelID := strings.TrimSpace(p.ExternalChannelID)
	if channelID == "" {
		return nil, ErrEmptyChannelID
	}
	if strings.TrimSpace(p.CandidateExternalID) == "" {
		return nil, ErrEmptyCandidateID
	}
	if strings.TrimSpace(p.FirstMessage) == "" {
		return nil, ErrEmptyMessage
	}

	c := &Conversation{
		BaseAggregateRoot:   sharedDomain.NewBaseAggregateRoot(at),
		tenantID:            p.TenantID,
		externalChannelID:   channelID,
		candidateExternalID: strings.TrimSpace(p.CandidateExternalID),
		candidateName:       strings.TrimSpace(p.CandidateName),
		attemptID:           p.AttemptID,
		stage:               StageInitialOutreach,
		status:              StatusActive,
	}
	c.append(RoleSystem, p.FirstMessage, p.ExternalMessageID, nil, at)
	c.stage = StageAwaitingResponse
	c.AddDomainEvent(NewConversationStarted(c))
	return c, nil
}

func (c *Conversation) TenantID() uuid.UUID         { return c.tenantID }
func (c *Conversation) ExternalChannelID() string   { return c.externalChannelID }
func (c *Conversation) CandidateExternalID() string { return c.candidateExternalID }
func (c *Conversation) CandidateName() string       { return c.candidateName }
func (c *Conversation) AttemptID() *uuid.UUID       { return c.attemptID }
func (c *Conversation) Stage() Stage                { return c.stage }
func (c *Conversation) Status() Status              { return c.status }
func (c *Conversation) EscalationReason() string    { return c.escalationReason }
func (c *Conversation) LastMessageBy() Role         { return c.lastMessageBy }
func (c *Conversation) LastMessageAt() *time.Time   { return c.lastMessageAt }
func (c *Conversation) IsActive() bool              { return c.status == StatusActive }

// Transcript returns a copy of the messages in arrival order.
func (c *Conversation) Transcript() []Message {
	out := make([]Message, len(c.messages))
	copy(out, c.messages)
	return out
}

// UnsavedMessages returns messages appended since the last save.
func (c *Conversation) UnsavedMessages() []Message {
	out := make([]Message, c.unsaved)
	copy(out, c.messages[len(c.messages)-c.unsaved:])
	return out
}

// MarkSaved records that the store assigned sequence numbers to the unsaved
// messages.
func (c *Conversation) MarkSaved(seqs []int64) {
	start := len(c.messages) - c.unsaved
	for i, seq := range seqs {
		if start+i < len(c.messages) {
			c.messages[start+i].Seq = seq
		}
	}
	c.unsaved = 0
}

// HasMessage reports whether an entry with the given external id exists.
func (c *Conversation) HasMessage(externalMessageID string) bool {
	if externalMessageID == "" {
		return false
	}
	for _, m := range c.messages {
		if m.ExternalMessageID == externalMessageID {
			return true
		}
	}
	return false
}

// HasCandidateMessageSince reports whether the candidate wrote after t.
func (c *Conversation) HasCandidateMessageSince(t time.Time) bool {
	for _, m := range c.messages {
		if m.Role == RoleCandidate && m.CreatedAt.After(t) {
			return true
		}
	}
	return false
}

// ReceiveCandidateMessage appends an inbound message. It returns false when
// the external id is already in the transcript.
func (c *Conversation) ReceiveCandidateMessage(content, externalMessageID string, externalAt *time.Time, now time.Time) bool {
	if c.HasMessage(externalMessageID) {
		return false
	}
	c.append(RoleCandidate, content, externalMessageID, externalAt, now)
	switch c.stage {
	case StageInitialOutreach, StageAwaitingResponse, StageFollowUp:
		c.stage = StageInConversation
	}
	return true
}

// RecordSystemMessage appends a message this system (or an operator on its
// account) sent. Duplicate external ids are ignored.
func (c *Conversation) RecordSystemMessage(content, externalMessageID string, externalAt *time.Time, now time.Time) bool {
	if c.HasMessage(externalMessageID) {
		return false
	}
	c.append(RoleSystem, content, externalMessageID, externalAt, now)
	return true
}

func (c *Conversation) append(role Role, content, externalMessageID string, externalAt *time.Time, at time.Time) {
	at = at.UTC()
	c.messages = append(c.messages, Message{
		ID:                uuid.New(),
		Role:              role,
		Content:           content,
		ExternalMessageID: externalMessageID,
		ExternalCreatedAt: externalAt,
		CreatedAt:         at,
	})
	c.unsaved++
	c.lastMessageBy = role
	c.lastMessageAt = &at
	c.Touch(at)
}

// Escalate hands the conversation to a human. Escalating twice keeps the
// first reason.
func (c *Conversation) Escalate(reason string, now time.Time) (bool, error) {
	if c.status == StatusCompleted {
		return false, ErrConversationClosed
	}
	if c.status == StatusEscalated {
		return false, nil
	}
	c.status = StatusEscalated
	c.escalationReason = reason
	c.Touch(now)
	c.AddDomainEvent(NewConversationEscalated(c))
	return true, nil
}

// ResolveEscalation returns an escalated conversation to automation.
func (c *Conversation) ResolveEscalation(now time.Time) error {
	if c.status != StatusEscalated {
		return ErrNotEscalated
	}
	c.status = StatusActive
	c.escalationReason = ""
	c.Touch(now)
	c.AddDomainEvent(NewEscalationResolved(c))
	return nil
}

// Pause stops automation without escalating.
func (c *Conversation) Pause(now time.Time) (bool, error) {
	switch c.status {
	case StatusCompleted:
		return false, ErrConversationClosed
	case StatusActive:
		c.status = StatusPaused
		c.Touch(now)
		return true, nil
	}
	return false, nil
}

// Resume restarts automation on a paused conversation.
func (c *Conversation) Resume(now time.Time) (bool, error) {
	switch c.status {
	case StatusCompleted:
		return false, ErrConversationClosed
	case StatusPaused:
		c.status = StatusActive
		c.Touch(now)
		return true, nil
	}
	return false, nil
}

// MoveTo changes the stage. Closed stages go through Close.
func (c *Conversation) MoveTo(stage Stage, now time.Time) (bool, error) {
	if !stage.IsValid() || stage.IsClosed() {
		return false, ErrInvalidStage
	}
	if c.stage.IsClosed() {
		return false, ErrConversationClosed
	}
	if c.stage == stage {
		return false, nil
	}
	c.stage = stage
	c.Touch(now)
	return true, nil
}

// Close ends the conversation in the given closed stage.
func (c *Conversation) Close(stage Stage, now time.Time) (bool, error) {
	if !stage.IsClosed() || !stage.IsValid() {
		return false, ErrInvalidStage
	}
	if c.stage.IsClosed() {
		return false, nil
	}
	c.stage = stage
	c.status = StatusCompleted
	c.Touch(now)
	c.AddDomainEvent(NewConversationClosed(c))
	return true, nil
}

// RehydrateConversation recreates a conversation from persisted state.
func RehydrateConversation(
	id, tenantID uuid.UUID,
	externalChannelID, candidateExternalID, candidateName string,
	attemptID *uuid.UUID,
	stage Stage,
	status Status,
	escalationReason string,
	lastMessageBy Role,
	lastMessageAt *time.Time,
	messages []Message,
	version int,
	createdAt, updatedAt time.Time,
) *Conversation {
	entity := sharedDomain.RehydrateBaseEntity(id, createdAt, updatedAt)
	return &Conversation{
		BaseAggregateRoot:   sharedDomain.RehydrateBaseAggregateRoot(entity, version),
		tenantID:            tenantID,
		externalChannelID:   externalChannelID,
		candidateExternalID: candidateExternalID,
		candidateName:       candidateName,
		attemptID:           attemptID,
		stage:               stage,
		status:              status,
		escalationReason:    escalationReason,
		lastMessageBy:       lastMessageBy,
		lastMessageAt:       lastMessageAt,
		messages:            messages,
	}
}
