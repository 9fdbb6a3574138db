package domain

import (
	"errors"
	"strings"
	"time"

	sharedDomain "github.com/felixgeelhaar/talentreach/internal/shared/domain"
	"github.com/google/uuid"
)

var (
	ErrAssignmentEmptyCandidate = errors.New("assignment requires a candidate id and name")
	ErrAssignmentNotFound       = errors.New("resource assignment not found")
)

// Assignment records that a resource was sent to a candidate. It is
// confirmed at most once, when a matching booking arrives.
type Assignment struct {
	sharedDomain.BaseAggregateRoot
	tenantID            uuid.UUID
	resourceID          uuid.UUID
	candidateExternalID string
	candidateName       string
	conversationID      *uuid.UUID
	sentAt              time.Time
	bookingConfirmed    bool
	confirmedAt         *time.Time
	bookingEventID      string
}

// NewAssignment creates an unconfirmed assignment for a resource.
func NewAssignment(resource *Resource, candidateExternalID, candidateName string, conversationID *uuid.UUID, sentAt time.Time) (*Assignment, error) {
	candidateExternalID = strings.TrimSpace(candidateExternalID)
	candidateName = strings.TrimSpace(candidateName)
	if candidateExternalID == "" || candidateName == "" {
		return nil, ErrAssignmentEmptyCandidate
	}

	a := &Assignment{
		BaseAggregateRoot:   sharedDomain.NewBaseAggregateRoot(sentAt),
		tenantID:            resource.TenantID(),
		resourceID:          resource.ID(),
		candidateExternalID: candidateExternalID,
		candidateName:       candidateName,
		conversationID:      conversationID,
		sentAt:              sentAt.UTC(),
	}
	a.AddDomainEvent(NewAssignmentCreated(a, resource))
	return a, nil
}

func (a *Assignment) TenantID() uuid.UUID         { return a.tenantID }
func (a *Assignment) ResourceID() uuid.UUID       { return a.resourceID }
func (a *Assignment) CandidateExternalID() string { return a.candidateExternalID }
func (a *Assignment) CandidateName() string       { return a.candidateName }
func (a *Assignment) ConversationID() *uuid.UUID  { return a.conversationID }
func (a *Assignment) SentAt() time.Time           { return a.sentAt }
func (a *Assignment) IsConfirmed() bool           { return a.bookingConfirmed }
func (a *Assignment) ConfirmedAt() *time.Time     { return a.confirmedAt }
func (a *Assignment) BookingEventID() string      { return a.bookingEventID }

// Confirm flips bookingConfirmed from false to true. It reports false when
// the assignment was already confirmed, whatever booking did it.
func (a *Assignment) Confirm(bookingEventID string, at time.Time) bool {
	if a.bookingConfirmed {
		return false
	}
	at = at.UTC()
	a.bookingConfirmed = true
	a.confirmedAt = &at
	a.bookingEventID = bookingEventID
	a.Touch(at)
	a.AddDomainEvent(NewBookingConfirmed(a))
	return true
}

// RehydrateAssignment recreates an assignment from persisted state.
func RehydrateAssignment(
	id, tenantID, resourceID uuid.UUID,
	candidateExternalID, candidateName string,
	conversationID *uuid.UUID,
	sentAt time.Time,
	bookingConfirmed bool,
	confirmedAt *time.Time,
	bookingEventID string,
) *Assignment {
	entity := sharedDomain.RehydrateBaseEntity(id, sentAt, sentAt)
	if confirmedAt != nil {
		entity.Touch(*confirmedAt)
	}
	return &Assignment{
		BaseAggregateRoot:   sharedDomain.RehydrateBaseAggregateRoot(entity, 0),
		tenantID:            tenantID,
		resourceID:          resourceID,
		candidateExternalID: candidateExternalID,
		candidateName:       candidateName,
		conversationID:      conversationID,
		sentAt:              sentAt,
		bookingConfirmed:    bookingConfirmed,
		confirmedAt:         confirmedAt,
		bookingEventID:      bookingEventID,
	}
}
