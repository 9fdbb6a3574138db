package domain

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// AttemptRepository persists outreach attempts.
type AttemptRepository interface {
	// Create inserts a new attempt. A second attempt for the same candidate
	// and campaign fails with ErrDuplicateAttempt.
	Create(ctx context.Context, attempt *Attempt) error
	// Save writes a changed attempt if its version still matches.
	Save(ctx context.Context, attempt *Attempt) error
	FindByID(ctx context.Context, tenantID, id uuid.UUID) (*Attempt, error)
	FindByCampaign(ctx context.Context, tenantID uuid.UUID, candidateExternalID, campaignRef string) (*Attempt, error)
	FindByConversationID(ctx context.Context, tenantID, conversationID uuid.UUID) (*Attempt, error)
	// FindLatestByCandidate returns the most recent attempt of the candidate
	// in one of the given statuses.
	FindLatestByCandidate(ctx context.Context, tenantID uuid.UUID, candidateExternalID string, statuses []Status) (*Attempt, error)
	// ListPitchDue returns PITCH_PENDING attempts due at or before now.
	ListPitchDue(ctx context.Context, now time.Time, limit int) ([]*Attempt, error)
	// ListFollowUpDue returns PITCH_SENT attempts whose next check is due.
	ListFollowUpDue(ctx context.Context, now time.Time, limit int) ([]*Attempt, error)
}
