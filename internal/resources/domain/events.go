package domain

import (
	sharedDomain "github.com/felixgeelhaar/talentreach/internal/shared/domain"
	"github.com/google/uuid"
)

const aggregateType = "ResourceAssignment"

// Routing keys published by the resource rotator.
const (
	RoutingKeyAssignmentCreated = "resources.assignment.created"
	RoutingKeyBookingConfirmed  = "resources.assignment.confirmed"
)

// AssignmentCreated is emitted when a resource is handed to a candidate.
type AssignmentCreated struct {
	sharedDomain.BaseEvent
	AssignmentID        uuid.UUID  `json:"assignment_id"`
	ResourceID          uuid.UUID  `json:"resource_id"`
	OwnerName           string     `json:"owner_name"`
	CandidateExternalID string     `json:"candidate_external_id"`
	ConversationID      *uuid.UUID `json:"conversation_id,omitempty"`
}

// NewAssignmentCreated creates an AssignmentCreated event.
func NewAssignmentCreated(a *Assignment, r *Resource) *AssignmentCreated {
	return &AssignmentCreated{
		BaseEvent:           sharedDomain.NewBaseEvent(a.ID(), aggregateType, RoutingKeyAssignmentCreated, a.SentAt()),
		AssignmentID:        a.ID(),
		ResourceID:          r.ID(),
		OwnerName:           r.OwnerName(),
		CandidateExternalID: a.CandidateExternalID(),
		ConversationID:      a.ConversationID(),
	}
}

// BookingConfirmed is emitted when a booking is matched to an assignment.
type BookingConfirmed struct {
	sharedDomain.BaseEvent
	AssignmentID        uuid.UUID  `json:"assignment_id"`
	ResourceID          uuid.UUID  `json:"resource_id"`
	CandidateExternalID string     `json:"candidate_external_id"`
	ConversationID      *uuid.UUID `json:"conversation_id,omitempty"`
	BookingEventID      string     `json:"booking_event_id"`
}

// NewBookingConfirmed creates a BookingConfirmed event.
func NewBookingConfirmed(a *Assignment) *BookingConfirmed {
	return &BookingConfirmed{
		BaseEvent:           sharedDomain.NewBaseEvent(a.ID(), aggregateType, RoutingKeyBookingConfirmed, *a.ConfirmedAt()),
		AssignmentID:        a.ID(),
		ResourceID:          a.ResourceID(),
		CandidateExternalID: a.CandidateExternalID(),
		ConversationID:      a.ConversationID(),
		BookingEventID:      a.BookingEventID(),
	}
}
