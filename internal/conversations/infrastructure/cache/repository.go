package cache

import (
	"context"
	"errors"
	"log/slog"

	"github.com/felixgeelhaar/talentreach/internal/conversations/domain"
	"github.com/google/uuid"
)

// Repository puts a channel index in front of a conversation repository.
// The index only saves the channel lookup query; conversations are always
// loaded from the store so version checks see current state. Index
// failures fall back to the store.
type Repository struct {
	domain.Repository
	index  ChannelIndex
	logger *slog.Logger
}

// NewRepository wraps inner with a channel index.
func NewRepository(inner domain.Repository, index ChannelIndex, logger *slog.Logger) *Repository {
	if logger == nil {
		logger = slog.Default()
	}
	return &Repository{
		Repository: inner,
		index:      index,
		logger:     logger.With("component", "conversation_cache"),
	}
}

// Create stores the conversation and indexes its channel.
func (r *Repository) Create(ctx context.Context, c *domain.Conversation) error {
	if err := r.Repository.Create(ctx, c); err != nil {
		return err
	}
	r.remember(ctx, c)
	return nil
}

// FindByChannelID resolves the channel through the index when possible.
func (r *Repository) FindByChannelID(ctx context.Context, tenantID uuid.UUID, channelID string) (*domain.Conversation, error) {
	id, ok, err := r.index.Lookup(ctx, tenantID, channelID)
	if err != nil {
		r.logger.WarnContext(ctx, "channel index lookup failed", "channel_id", channelID, "error", err)
	}
	if ok {
		c, err := r.Repository.FindByID(ctx, tenantID, id)
		if err == nil {
			return c, nil
		}
		if !errors.Is(err, domain.ErrConversationNotFound) {
			return nil, err
		}
		if err := r.index.Forget(ctx, tenantID, channelID); err != nil {
			r.logger.WarnContext(ctx, "channel index forget failed", "channel_id", channelID, "error", err)
		}
	}

	c, err := r.Repository.FindByChannelID(ctx, tenantID, channelID)
	if err != nil {
		return nil, err
	}
	r.remember(ctx, c)
	return c, nil
}

func (r *Repository) remember(ctx context.Context, c *domain.Conversation) {
	if err := r.index.Store(ctx, c.TenantID(), c.ExternalChannelID(), c.ID()); err != nil {
		r.logger.WarnContext(ctx, "channel index store failed", "channel_id", c.ExternalChannelID(), "error", err)
	}
}
