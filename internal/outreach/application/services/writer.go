package services

import (
	"context"

	conversationsDomain "github.com/felixgeelhaar/talentreach/internal/conversations/domain"
	"github.com/felixgeelhaar/talentreach/internal/outreach/domain"
	sharedApplication "github.com/felixgeelhaar/talentreach/internal/shared/application"
	sharedDomain "github.com/felixgeelhaar/talentreach/internal/shared/domain"
	"github.com/felixgeelhaar/talentreach/internal/shared/infrastructure/outbox"
	"github.com/google/uuid"
)

// EventWriter persists attempts and conversations and queues their events
// in the transaction carried by ctx.
type EventWriter struct {
	Attempts      domain.AttemptRepository
	Conversations conversationsDomain.Repository
	Outbox        outbox.Repository
}

func (w EventWriter) CreateAttempt(ctx context.Context, a *domain.Attempt) error {
	if err := w.Attempts.Create(ctx, a); err != nil {
		return err
	}
	return w.events(ctx, a.TenantID(), a.PullDomainEvents())
}

func (w EventWriter) SaveAttempt(ctx context.Context, a *domain.Attempt) error {
	if err := w.Attempts.Save(ctx, a); err != nil {
		return err
	}
	return w.events(ctx, a.TenantID(), a.PullDomainEvents())
}

func (w EventWriter) CreateConversation(ctx context.Context, c *conversationsDomain.Conversation) error {
	if err := w.Conversations.Create(ctx, c); err != nil {
		return err
	}
	return w.events(ctx, c.TenantID(), c.PullDomainEvents())
}

func (w EventWriter) SaveConversation(ctx context.Context, c *conversationsDomain.Conversation) error {
	if err := w.Conversations.Save(ctx, c); err != nil {
		return err
	}
	return w.events(ctx, c.TenantID(), c.PullDomainEvents())
}

func (w EventWriter) events(ctx context.Context, tenantID uuid.UUID, events []sharedDomain.DomainEvent) error {
	sharedApplication.StampEvents(ctx, tenantID, events)
	return outbox.SaveEvents(ctx, w.Outbox, events)
}
