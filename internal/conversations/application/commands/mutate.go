package commands

import (
	"context"

	"github.com/felixgeelhaar/talentreach/internal/conversations/domain"
	sharedApplication "github.com/felixgeelhaar/talentreach/internal/shared/application"
	"github.com/felixgeelhaar/talentreach/internal/shared/infrastructure/outbox"
	"github.com/google/uuid"
)

// conversationMutator runs load-mutate-save cycles with compare-and-set
// retries and writes the raised events to the outbox.
type conversationMutator struct {
	repo       domain.Repository
	outboxRepo outbox.Repository
	uow        sharedApplication.UnitOfWork
}

// mutate reloads the conversation on every attempt. fn returns false when
// nothing changed, in which case nothing is written.
func (m conversationMutator) mutate(ctx context.Context, tenantID, id uuid.UUID, fn func(c *domain.Conversation) (bool, error)) (*domain.Conversation, error) {
	var conv *domain.Conversation
	err := sharedApplication.RetryOnConflict(ctx, m.uow, sharedApplication.DefaultConflictRetries, func(txCtx context.Context) error {
		c, err := m.repo.FindByID(txCtx, tenantID, id)
		if err != nil {
			return err
		}
		conv = c

		changed, err := fn(c)
		if err != nil || !changed {
			return err
		}
		if err := m.repo.Save(txCtx, c); err != nil {
			return err
		}
		events := c.PullDomainEvents()
		sharedApplication.StampEvents(txCtx, tenantID, events)
		return outbox.SaveEvents(txCtx, m.outboxRepo, events)
	})
	if err != nil {
		return nil, err
	}
	return conv, nil
}
