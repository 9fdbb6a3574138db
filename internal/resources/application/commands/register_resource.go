package commands

import (
	"context"

	"github.com/felixgeelhaar/talentreach/internal/resources/domain"
	sharedApplication "github.com/felixgeelhaar/talentreach/internal/shared/application"
	sharedDomain "github.com/felixgeelhaar/talentreach/internal/shared/domain"
	"github.com/google/uuid"
)

// RegisterResourceCommand adds a scheduling link to the rotation.
type RegisterResourceCommand struct {
	TenantID    uuid.UUID
	OwnerName   string
	ResourceURL string
}

// RegisterResourceHandler handles RegisterResourceCommand.
type RegisterResourceHandler struct {
	repo  domain.ResourceRepository
	uow   sharedApplication.UnitOfWork
	clock sharedDomain.Clock
}

// NewRegisterResourceHandler creates a new RegisterResourceHandler.
func NewRegisterResourceHandler(repo domain.ResourceRepository, uow sharedApplication.UnitOfWork, clock sharedDomain.Clock) *RegisterResourceHandler {
	if clock == nil {
		clock = sharedDomain.SystemClock{}
	}
	return &RegisterResourceHandler{repo: repo, uow: uow, clock: clock}
}

// Handle registers the resource and returns it.
func (h *RegisterResourceHandler) Handle(ctx context.Context, cmd RegisterResourceCommand) (*domain.Resource, error) {
	resource, err := domain.NewResource(cmd.TenantID, cmd.OwnerName, cmd.ResourceURL, h.clock.Now())
	if err != nil {
		return nil, err
	}

	err = sharedApplication.WithUnitOfWork(ctx, h.uow, func(txCtx context.Context) error {
		return h.repo.Save(txCtx, resource)
	})
	if err != nil {
		return nil, err
	}
	return resource, nil
}

// SetResourceActiveCommand takes a resource in or out of rotation.
type SetResourceActiveCommand struct {
	TenantID   uuid.UUID
	ResourceID uuid.UUID
	Active     bool
}

// SetResourceActiveHandler handles SetResourceActiveCommand.
type SetResourceActiveHandler struct {
	repo  domain.ResourceRepository
	uow   sharedApplication.UnitOfWork
	clock sharedDomain.Clock
}

// NewSetResourceActiveHandler creates a new SetResourceActiveHandler.
func NewSetResourceActiveHandler(repo domain.ResourceRepository, uow sharedApplication.UnitOfWork, clock sharedDomain.Clock) *SetResourceActiveHandler {
	if clock == nil {
		clock = sharedDomain.SystemClock{}
	}
	return &SetResourceActiveHandler{repo: repo, uow: uow, clock: clock}
}

// Handle flips the active flag. Repeating the current state is a no-op.
func (h *SetResourceActiveHandler) Handle(ctx context.Context, cmd SetResourceActiveCommand) (*domain.Resource, error) {
	var resource *domain.Resource
	err := sharedApplication.WithUnitOfWork(ctx, h.uow, func(txCtx context.Context) error {
		var err error
		resource, err = h.repo.FindByID(txCtx, cmd.TenantID, cmd.ResourceID)
		if err != nil {
			return err
		}

		var changed bool
		if cmd.Active {
			changed = resource.Activate(h.clock.Now())
		} else {
			changed = resource.Deactivate(h.clock.Now())
		}
		if !changed {
			return nil
		}
		return h.repo.Save(txCtx, resource)
	})
	if err != nil {
		return nil, err
	}
	return resource, nil
}
