package application

import (
	"context"
	"errors"

	"github.com/felixgeelhaar/talentreach/internal/shared/domain"
)

// UnitOfWork provides transactional support for aggregating multiple operations.
type UnitOfWork interface {
	Begin(ctx context.Context) (context.Context, error)
	Commit(ctx context.Context) error
	Rollback(ctx context.Context) error
}

// UnitOfWorkFunc is a function that executes within a unit of work.
type UnitOfWorkFunc func(ctx context.Context) error

// WithUnitOfWork executes the given function within a unit of work.
func WithUnitOfWork(ctx context.Context, uow UnitOfWork, fn UnitOfWorkFunc) error {
	txCtx, err := uow.Begin(ctx)
	if err != nil {
		return err
	}

	if err := fn(txCtx); err != nil {
		_ = uow.Rollback(txCtx)
		return err
	}

	return uow.Commit(txCtx)
}

// DefaultConflictRetries bounds how often a load-mutate-save cycle is
// repeated after losing a compare-and-set race.
const DefaultConflictRetries = 3

// RetryOnConflict runs fn inside a fresh unit of work until it succeeds or
// fails with something other than domain.ErrOptimisticLocking. fn must reload
// the entity it mutates on every call.
func RetryOnConflict(ctx context.Context, uow UnitOfWork, attempts int, fn UnitOfWorkFunc) error {
	if attempts < 1 {
		attempts = 1
	}
	var err error
	for i := 0; i < attempts; i++ {
		err = WithUnitOfWork(ctx, uow, fn)
		if !errors.Is(err, domain.ErrOptimisticLocking) {
			return err
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
	}
	return err
}
