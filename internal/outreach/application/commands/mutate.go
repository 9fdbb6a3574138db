package commands

import (
	"context"

	"github.com/felixgeelhaar/talentreach/internal/outreach/application/services"
	"github.com/felixgeelhaar/talentreach/internal/outreach/domain"
	sharedApplication "github.com/felixgeelhaar/talentreach/internal/shared/application"
	"github.com/google/uuid"
)

// attemptMutator runs load-mutate-save cycles on one attempt with
// compare-and-set retries.
type attemptMutator struct {
	writer services.EventWriter
	uow    sharedApplication.UnitOfWork
}

// mutate reloads the attempt on every try. fn returns false when nothing
// changed, in which case nothing is written.
func (m attemptMutator) mutate(ctx context.Context, tenantID, id uuid.UUID, fn func(txCtx context.Context, a *domain.Attempt) (bool, error)) (*domain.Attempt, error) {
	var attempt *domain.Attempt
	err := sharedApplication.RetryOnConflict(ctx, m.uow, sharedApplication.DefaultConflictRetries, func(txCtx context.Context) error {
		a, err := m.writer.Attempts.FindByID(txCtx, tenantID, id)
		if err != nil {
			return err
		}
		attempt = a

		changed, err := fn(txCtx, a)
		if err != nil || !changed {
			return err
		}
		return m.writer.SaveAttempt(txCtx, a)
	})
	if err != nil {
		return nil, err
	}
	return attempt, nil
}
