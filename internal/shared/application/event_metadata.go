package application

import (
	"context"

	"github.com/felixgeelhaar/talentreach/internal/shared/domain"
	"github.com/felixgeelhaar/talentreach/pkg/observability"
	"github.com/google/uuid"
)

// StampEvents tags the events raised by one command with tenantID and the
// correlation id carried by ctx, starting a new chain when ctx has none.
// Events raised together share one causation id.
func StampEvents(ctx context.Context, tenantID uuid.UUID, events []domain.DomainEvent) {
	if len(events) == 0 {
		return
	}
	correlationID := observability.CorrelationUUID(ctx)
	if correlationID == uuid.Nil {
		correlationID = uuid.New()
	}
	metadata := domain.EventMetadata{
		CorrelationID: correlationID,
		CausationID:   uuid.New(),
		TenantID:      tenantID,
	}
	for _, event := range events {
		if stamped, ok := event.(interface{ SetMetadata(domain.EventMetadata) }); ok {
			stamped.SetMetadata(metadata)
		}
	}
}
