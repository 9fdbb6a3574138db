package persistence

import (
	"context"
	"fmt"
	"time"

	"github.com/felixgeelhaar/talentreach/internal/conversations/domain"
	"github.com/felixgeelhaar/talentreach/internal/shared/infrastructure/database"
	"github.com/google/uuid"
)

const pendingReplyColumns = `id, tenant_id, conversation_id, content, resource_ref, target_stage,
	last_error, attempts, created_at, resolved_at`

// PendingReplyRepository implements domain.PendingReplyRepository.
type PendingReplyRepository struct {
	conn database.Connection
}

// NewPendingReplyRepository creates a pending reply repository.
func NewPendingReplyRepository(conn database.Connection) *PendingReplyRepository {
	return &PendingReplyRepository{conn: conn}
}

// Save upserts a pending reply.
func (r *PendingReplyRepository) Save(ctx context.Context, p *domain.PendingReply) error {
	query := r.conn.Driver().Rebind(`
		INSERT INTO pending_replies (` + pendingReplyColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET
			last_error = excluded.last_error,
			attempts = excluded.attempts,
			resolved_at = excluded.resolved_at
	`)

	_, err := database.ExecutorFromContext(ctx, r.conn).Exec(ctx, query,
		p.ID(),
		p.TenantID().String(),
		p.ConversationID(),
		p.Content(),
		nullString(p.ResourceRef()),
		string(p.TargetStage()),
		p.LastError(),
		p.Attempts(),
		p.CreatedAt().UTC(),
		utcPtr(p.ResolvedAt()),
	)
	if err != nil {
		return fmt.Errorf("failed to save pending reply: %w", err)
	}
	return nil
}

// FindByID returns a pending reply.
func (r *PendingReplyRepository) FindByID(ctx context.Context, tenantID, id uuid.UUID) (*domain.PendingReply, error) {
	query := r.conn.Driver().Rebind(`SELECT ` + pendingReplyColumns + `
		FROM pending_replies WHERE tenant_id = ? AND id = ?`)

	p, err := scanPendingReply(database.ExecutorFromContext(ctx, r.conn).QueryRow(ctx, query, tenantID.String(), id))
	if err != nil {
		if database.IsNoRows(err) {
			return nil, domain.ErrPendingReplyNotFound
		}
		return nil, err
	}
	return p, nil
}

// ListOpen returns unresolved replies, oldest first.
func (r *PendingReplyRepository) ListOpen(ctx context.Context, tenantID uuid.UUID) ([]*domain.PendingReply, error) {
	query := r.conn.Driver().Rebind(`SELECT ` + pendingReplyColumns + `
		FROM pending_replies
		WHERE tenant_id = ? AND resolved_at IS NULL
		ORDER BY created_at, id`)

	rows, err := database.ExecutorFromContext(ctx, r.conn).Query(ctx, query, tenantID.String())
	if err != nil {
		return nil, fmt.Errorf("failed to list pending replies: %w", err)
	}
	defer rows.Close()

	var replies []*domain.PendingReply
	for rows.Next() {
		p, err := scanPendingReply(rows)
		if err != nil {
			return nil, err
		}
		replies = append(replies, p)
	}
	return replies, rows.Err()
}

func scanPendingReply(row database.Row) (*domain.PendingReply, error) {
	var (
		id, tenantID, conversationID uuid.UUID
		content, targetStage         string
		resourceRef                  *string
		lastError                    string
		attempts                     int
		createdAt                    time.Time
		resolvedAt                   *time.Time
	)
	err := row.Scan(&id, &tenantID, &conversationID, &content, &resourceRef, &targetStage,
		&lastError, &attempts, &createdAt, &resolvedAt)
	if err != nil {
		if database.IsNoRows(err) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to scan pending reply: %w", err)
	}
	return domain.RehydratePendingReply(id, tenantID, conversationID, content, deref(resourceRef),
		domain.Stage(targetStage), lastError, attempts, createdAt.UTC(), utcPtr(resolvedAt)), nil
}
