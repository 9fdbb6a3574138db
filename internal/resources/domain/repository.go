package domain

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// AssignRequest asks the rotator for a resource on behalf of a candidate.
type AssignRequest struct {
	TenantID            uuid.UUID
	CandidateExternalID string
	CandidateName       string
	ConversationID      *uuid.UUID
}

// ResourceRepository persists scheduling resources.
type ResourceRepository interface {
	Save(ctx context.Context, resource *Resource) error
	FindByID(ctx context.Context, tenantID, id uuid.UUID) (*Resource, error)
	List(ctx context.Context, tenantID uuid.UUID) ([]*Resource, error)
	// ListActiveForUpdate returns active resources locked for the rest of
	// the current transaction.
	ListActiveForUpdate(ctx context.Context, tenantID uuid.UUID) ([]*Resource, error)
	// IncrementAssignment bumps the counter of one resource by exactly one.
	IncrementAssignment(ctx context.Context, id uuid.UUID, at time.Time) error
}

// AssignmentRepository persists resource assignments.
type AssignmentRepository interface {
	Create(ctx context.Context, assignment *Assignment) error
	// Confirm flips booking_confirmed for an unconfirmed row. It reports
	// false when another writer confirmed it first.
	Confirm(ctx context.Context, assignment *Assignment) (bool, error)
	FindByBookingEventID(ctx context.Context, tenantID uuid.UUID, bookingEventID string) (*Assignment, error)
	// ListUnconfirmedSince returns unconfirmed assignments sent at or after
	// since, optionally restricted to one resource.
	ListUnconfirmedSince(ctx context.Context, tenantID uuid.UUID, resourceID *uuid.UUID, since time.Time) ([]*Assignment, error)
	ListByCandidate(ctx context.Context, tenantID uuid.UUID, candidateExternalID string) ([]*Assignment, error)
}
