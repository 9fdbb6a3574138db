package queries

import (
	"context"
	"time"

	"github.com/felixgeelhaar/talentreach/internal/resources/domain"
	"github.com/google/uuid"
)

// ResourceDTO is the read model of a scheduling resource.
type ResourceDTO struct {
	ID              uuid.UUID  `json:"id"`
	OwnerName       string     `json:"owner_name"`
	ResourceURL     string     `json:"resource_url"`
	Active          bool       `json:"active"`
	AssignmentCount int        `json:"assignment_count"`
	LastAssignedAt  *time.Time `json:"last_assigned_at,omitempty"`
}

// ListResourcesQuery lists the resources of a tenant.
type ListResourcesQuery struct {
	TenantID uuid.UUID
}

// ListResourcesHandler handles ListResourcesQuery.
type ListResourcesHandler struct {
	repo domain.ResourceRepository
}

// NewListResourcesHandler creates a new ListResourcesHandler.
func NewListResourcesHandler(repo domain.ResourceRepository) *ListResourcesHandler {
	return &ListResourcesHandler{repo: repo}
}

// Handle returns active resources first.
func (h *ListResourcesHandler) Handle(ctx context.Context, q ListResourcesQuery) ([]ResourceDTO, error) {
	resources, err := h.repo.List(ctx, q.TenantID)
	if err != nil {
		return nil, err
	}

	dtos := make([]ResourceDTO, 0, len(resources))
	for _, r := range resources {
		dtos = append(dtos, ToResourceDTO(r))
	}
	return dtos, nil
}

// ToResourceDTO converts a resource to its read model.
func ToResourceDTO(r *domain.Resource) ResourceDTO {
	return ResourceDTO{
		ID:              r.ID(),
		OwnerName:       r.OwnerName(),
		ResourceURL:     r.ResourceURL(),
		Active:          r.IsActive(),
		AssignmentCount: r.AssignmentCount(),
		LastAssignedAt:  r.LastAssignedAt(),
	}
}
