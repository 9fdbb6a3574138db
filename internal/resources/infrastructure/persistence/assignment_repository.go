package persistence

import (
	"context"
	"fmt"
	"time"

	"github.com/felixgeelhaar/talentreach/internal/resources/domain"
	"github.com/felixgeelhaar/talentreach/internal/shared/infrastructure/database"
	"github.com/google/uuid"
)

const assignmentColumns = `id, tenant_id, resource_id, candidate_external_id, candidate_name,
	conversation_id, sent_at, booking_confirmed, confirmed_at, booking_event_id`

// AssignmentRepository implements domain.AssignmentRepository.
type AssignmentRepository struct {
	conn database.Connection
}

// NewAssignmentRepository creates an assignment repository.
func NewAssignmentRepository(conn database.Connection) *AssignmentRepository {
	return &AssignmentRepository{conn: conn}
}

func (r *AssignmentRepository) exec(ctx context.Context) database.Executor {
	return database.ExecutorFromContext(ctx, r.conn)
}

// Create inserts a new, unconfirmed assignment.
func (r *AssignmentRepository) Create(ctx context.Context, a *domain.Assignment) error {
	query := r.conn.Driver().Rebind(`
		INSERT INTO resource_assignments (id, tenant_id, resource_id, candidate_external_id, candidate_name,
			conversation_id, sent_at, booking_confirmed)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`)

	_, err := r.exec(ctx).Exec(ctx, query,
		a.ID(),
		a.TenantID().String(),
		a.ResourceID(),
		a.CandidateExternalID(),
		a.CandidateName(),
		nullUUID(a.ConversationID()),
		a.SentAt().UTC(),
		false,
	)
	if err != nil {
		return fmt.Errorf("failed to create resource assignment: %w", err)
	}
	return nil
}

// Confirm records the booking on a still-unconfirmed row.
func (r *AssignmentRepository) Confirm(ctx context.Context, a *domain.Assignment) (bool, error) {
	if !a.IsConfirmed() || a.ConfirmedAt() == nil {
		return false, fmt.Errorf("assignment %s is not confirmed", a.ID())
	}
	query := r.conn.Driver().Rebind(`
		UPDATE resource_assignments
		SET booking_confirmed = ?, confirmed_at = ?, booking_event_id = ?
		WHERE id = ? AND booking_confirmed = ?
	`)

	result, err := r.exec(ctx).Exec(ctx, query, true, a.ConfirmedAt().UTC(), a.BookingEventID(), a.ID(), false)
	if err != nil {
		return false, fmt.Errorf("failed to confirm resource assignment: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

// FindByBookingEventID returns the assignment a booking already confirmed,
// or domain.ErrAssignmentNotFound.
func (r *AssignmentRepository) FindByBookingEventID(ctx context.Context, tenantID uuid.UUID, bookingEventID string) (*domain.Assignment, error) {
	query := r.conn.Driver().Rebind(`SELECT ` + assignmentColumns + `
		FROM resource_assignments
		WHERE tenant_id = ? AND booking_event_id = ?`)

	a, err := scanAssignment(r.exec(ctx).QueryRow(ctx, query, tenantID.String(), bookingEventID))
	if err != nil {
		if database.IsNoRows(err) {
			return nil, domain.ErrAssignmentNotFound
		}
		return nil, err
	}
	return a, nil
}

// ListUnconfirmedSince returns unconfirmed assignments, newest first.
func (r *AssignmentRepository) ListUnconfirmedSince(ctx context.Context, tenantID uuid.UUID, resourceID *uuid.UUID, since time.Time) ([]*domain.Assignment, error) {
	query := `SELECT ` + assignmentColumns + `
		FROM resource_assignments
		WHERE tenant_id = ? AND booking_confirmed = ? AND sent_at >= ?`
	args := []any{tenantID.String(), false, since.UTC()}
	if resourceID != nil {
		query += ` AND resource_id = ?`
		args = append(args, *resourceID)
	}
	query += ` ORDER BY sent_at DESC`

	return r.query(ctx, r.conn.Driver().Rebind(query), args...)
}

// ListByCandidate returns every assignment made for a candidate, newest first.
func (r *AssignmentRepository) ListByCandidate(ctx context.Context, tenantID uuid.UUID, candidateExternalID string) ([]*domain.Assignment, error) {
	query := r.conn.Driver().Rebind(`SELECT ` + assignmentColumns + `
		FROM resource_assignments
		WHERE tenant_id = ? AND candidate_external_id = ?
		ORDER BY sent_at DESC`)

	return r.query(ctx, query, tenantID.String(), candidateExternalID)
}

func (r *AssignmentRepository) query(ctx context.Context, query string, args ...any) ([]*domain.Assignment, error) {
	rows, err := r.exec(ctx).Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query resource assignments: %w", err)
	}
	defer rows.Close()

	var assignments []*domain.Assignment
	for rows.Next() {
		a, err := scanAssignment(rows)
		if err != nil {
			return nil, err
		}
		assignments = append(assignments, a)
	}
	return assignments, rows.Err()
}

func scanAssignment(row database.Row) (*domain.Assignment, error) {
	var (
		id, tenantID, resourceID uuid.UUID
		candidateID, name        string
		conversationID           uuid.NullUUID
		sentAt                   time.Time
		confirmed                bool
		confirmedAt              *time.Time
		bookingEventID           *string
	)
	if err := row.Scan(&id, &tenantID, &resourceID, &candidateID, &name,
		&conversationID, &sentAt, &confirmed, &confirmedAt, &bookingEventID); err != nil {
		if database.IsNoRows(err) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to scan resource assignment: %w", err)
	}

	var convID *uuid.UUID
	if conversationID.Valid {
		convID = &conversationID.UUID
	}
	var eventID string
	if bookingEventID != nil {
		eventID = *bookingEventID
	}
	return domain.RehydrateAssignment(id, tenantID, resourceID, candidateID, name, convID,
		sentAt.UTC(), confirmed, utcPtr(confirmedAt), eventID), nil
}

func nullUUID(id *uuid.UUID) uuid.NullUUID {
	if id == nil {
		return uuid.NullUUID{}
	}
	return uuid.NullUUID{UUID: *id, Valid: true}
}
