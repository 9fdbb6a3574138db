package domain

import (
	"context"

	"github.com/google/uuid"
)

// Repository persists conversations with their transcripts.
type Repository interface {
	// Create stores a new conversation. A second conversation for the same
	// external channel fails with ErrDuplicateChannel.
	Create(ctx context.Context, c *Conversation) error
	// Save writes state and unsaved messages if the stored version still
	// matches, otherwise it fails with sharedDomain.ErrOptimisticLocking.
	Save(ctx context.Context, c *Conversation) error
	FindByID(ctx context.Context, tenantID, id uuid.UUID) (*Conversation, error)
	FindByChannelID(ctx context.Context, tenantID uuid.UUID, externalChannelID string) (*Conversation, error)
	ListByStatus(ctx context.Context, tenantID uuid.UUID, status Status, limit int) ([]*Conversation, error)
}

// PendingReplyRepository persists replies awaiting manual retry.
type PendingReplyRepository interface {
	Save(ctx context.Context, r *PendingReply) error
	FindByID(ctx context.Context, tenantID, id uuid.UUID) (*PendingReply, error)
	ListOpen(ctx context.Context, tenantID uuid.UUID) ([]*PendingReply, error)
}
