package persistence

import (
	"context"
	"fmt"

	"github.com/felixgeelhaar/talentreach/internal/ingestion/domain"
	"github.com/felixgeelhaar/talentreach/internal/shared/infrastructure/database"
)

// DeliveryLedger implements domain.Ledger on the delivery_events table.
type DeliveryLedger struct {
	conn database.Connection
}

// NewDeliveryLedger creates a delivery ledger.
func NewDeliveryLedger(conn database.Connection) *DeliveryLedger {
	return &DeliveryLedger{conn: conn}
}

// Record inserts the entry unless the event id is already known. Both
// SQLite and Postgres report zero affected rows for the skipped insert.
func (l *DeliveryLedger) Record(ctx context.Context, rec domain.DeliveryRecord) error {
	query := l.conn.Driver().Rebind(`
		INSERT INTO delivery_events (external_event_id, tenant_id, type, processed_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT (external_event_id) DO NOTHING
	`)

	res, err := database.ExecutorFromContext(ctx, l.conn).Exec(ctx, query,
		rec.ExternalEventID,
		rec.TenantID.String(),
		rec.Type,
		rec.ProcessedAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("failed to record delivery event: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read delivery event result: %w", err)
	}
	if n == 0 {
		return domain.ErrDuplicateDelivery
	}
	return nil
}
