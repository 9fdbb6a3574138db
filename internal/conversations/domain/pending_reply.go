package domain

import (
	"errors"
	"time"

	sharedDomain "github.com/felixgeelhaar/talentreach/internal/shared/domain"
	"github.com/google/uuid"
)

var (
	ErrPendingReplyNotFound = errors.New("pending reply not found")
	ErrPendingReplyResolved = errors.New("pending reply already resolved")
)

// PendingReply is an approved outbound reply whose send failed. It stays
// out of the transcript until an operator retry succeeds.
type PendingReply struct {
	sharedDomain.BaseAggregateRoot
	tenantID       uuid.UUID
	conversationID uuid.UUID
	content        string
	resourceRef    string
	targetStage    Stage
	lastError      string
	attempts       int
	resolvedAt     *time.Time
}

// NewPendingReply parks a reply after its first failed send.
func NewPendingReply(c *Conversation, content, resourceRef string, targetStage Stage, sendErr error, at time.Time) *PendingReply {
	r := &PendingReply{
		BaseAggregateRoot: sharedDomain.NewBaseAggregateRoot(at),
		tenantID:          c.TenantID(),
		conversationID:    c.ID(),
		content:           content,
		resourceRef:       resourceRef,
		targetStage:       targetStage,
		attempts:          1,
	}
	if sendErr != nil {
		r.lastError = sendErr.Error()
	}
	r.AddDomainEvent(NewReplySendFailed(r, c.ExternalChannelID()))
	return r
}

func (r *PendingReply) TenantID() uuid.UUID       { return r.tenantID }
func (r *PendingReply) ConversationID() uuid.UUID { return r.conversationID }
func (r *PendingReply) Content() string           { return r.content }
func (r *PendingReply) ResourceRef() string       { return r.resourceRef }
func (r *PendingReply) TargetStage() Stage        { return r.targetStage }
func (r *PendingReply) LastError() string         { return r.lastError }
func (r *PendingReply) Attempts() int             { return r.attempts }
func (r *PendingReply) ResolvedAt() *time.Time    { return r.resolvedAt }
func (r *PendingReply) IsResolved() bool          { return r.resolvedAt != nil }

// RecordFailure notes another failed retry.
func (r *PendingReply) RecordFailure(err error, at time.Time) {
	r.attempts++
	if err != nil {
		r.lastError = err.Error()
	}
	r.Touch(at)
}

// Resolve marks the reply delivered.
func (r *PendingReply) Resolve(at time.Time) error {
	if r.resolvedAt != nil {
		return ErrPendingReplyResolved
	}
	at = at.UTC()
	r.attempts++
	r.resolvedAt = &at
	r.Touch(at)
	return nil
}

// RehydratePendingReply recreates a pending reply from persisted state.
func RehydratePendingReply(
	id, tenantID, conversationID uuid.UUID,
	content, resourceRef string,
	targetStage Stage,
	lastError string,
	attempts int,
	createdAt time.Time,
	resolvedAt *time.Time,
) *PendingReply {
	updatedAt := createdAt
	if resolvedAt != nil {
		updatedAt = *resolvedAt
	}
	return &PendingReply{
		BaseAggregateRoot: sharedDomain.RehydrateBaseAggregateRoot(sharedDomain.RehydrateBaseEntity(id, createdAt, updatedAt), 0),
		tenantID:          tenantID,
		conversationID:    conversationID,
		content:           content,
		resourceRef:       resourceRef,
		targetStage:       targetStage,
		lastError:         lastError,
		attempts:          attempts,
		resolvedAt:        resolvedAt,
	}
}
