package persistence

import (
	"context"
	"fmt"
	"time"

	"github.com/felixgeelhaar/talentreach/internal/conversations/domain"
	sharedDomain "github.com/felixgeelhaar/talentreach/internal/shared/domain"
	"github.com/felixgeelhaar/talentreach/internal/shared/infrastructure/database"
	"github.com/google/uuid"
)

const conversationColumns = `id, tenant_id, external_channel_id, candidate_external_id, candidate_name,
	attempt_id, stage, status, escalation_reason, last_message_by, last_message_at, version,
	created_at, updated_at`

// ConversationRepository implements domain.Repository. Transcript order is
// the store-assigned seq, never the provider timestamp.
type ConversationRepository struct {
	conn database.Connection
}

// NewConversationRepository creates a conversation repository.
func NewConversationRepository(conn database.Connection) *ConversationRepository {
	return &ConversationRepository{conn: conn}
}

func (r *ConversationRepository) exec(ctx context.Context) database.Executor {
	return database.ExecutorFromContext(ctx, r.conn)
}

func (r *ConversationRepository) q(query string) string {
	return r.conn.Driver().Rebind(query)
}

// Create inserts a conversation and its first messages.
func (r *ConversationRepository) Create(ctx context.Context, c *domain.Conversation) error {
	query := r.q(`
		INSERT INTO conversations (id, tenant_id, external_channel_id, candidate_external_id, candidate_name,
			attempt_id, stage, status, escalation_reason, last_message_by, last_message_at, version,
			created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, 1, ?, ?)
	`)

	_, err := r.exec(ctx).Exec(ctx, query,
		c.ID(),
		c.TenantID().String(),
		c.ExternalChannelID(),
		c.CandidateExternalID(),
		c.CandidateName(),
		nullUUID(c.AttemptID()),
		string(c.Stage()),
		string(c.Status()),
		nullString(c.EscalationReason()),
		nullString(string(c.LastMessageBy())),
		utcPtr(c.LastMessageAt()),
		c.CreatedAt().UTC(),
		c.UpdatedAt().UTC(),
	)
	if err != nil {
		if database.IsUniqueViolation(err) {
			return domain.ErrDuplicateChannel
		}
		return fmt.Errorf("failed to create conversation: %w", err)
	}

	if err := r.insertMessages(ctx, c); err != nil {
		return err
	}
	c.SetVersion(1)
	return nil
}

// Save compares and sets on version, then appends unsaved messages.
func (r *ConversationRepository) Save(ctx context.Context, c *domain.Conversation) error {
	query := r.q(`
		UPDATE conversations
		SET candidate_name = ?, stage = ?, status = ?, escalation_reason = ?, last_message_by = ?,
			last_message_at = ?, version = version + 1, updated_at = ?
		WHERE id = ? AND version = ?
	`)

	result, err := r.exec(ctx).Exec(ctx, query,
		c.CandidateName(),
		string(c.Stage()),
		string(c.Status()),
		nullString(c.EscalationReason()),
		nullString(string(c.LastMessageBy())),
		utcPtr(c.LastMessageAt()),
		c.UpdatedAt().UTC(),
		c.ID(),
		c.Version(),
	)
	if err != nil {
		return fmt.Errorf("failed to update conversation: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return sharedDomain.ErrOptimisticLocking
	}

	if err := r.insertMessages(ctx, c); err != nil {
		return err
	}
	c.SetVersion(c.Version() + 1)
	return nil
}

// insertMessages writes unsaved messages. A message whose external id is
// already stored is skipped and gets seq 0.
func (r *ConversationRepository) insertMessages(ctx context.Context, c *domain.Conversation) error {
	unsaved := c.UnsavedMessages()
	if len(unsaved) == 0 {
		return nil
	}

	query := r.q(`
		INSERT INTO conversation_messages (id, conversation_id, role, content, external_message_id,
			external_created_at, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (conversation_id, external_message_id) DO NOTHING
		RETURNING seq
	`)

	seqs := make([]int64, len(unsaved))
	for i, m := range unsaved {
		err := r.exec(ctx).QueryRow(ctx, query,
			m.ID,
			c.ID(),
			string(m.Role),
			m.Content,
			nullString(m.ExternalMessageID),
			utcPtr(m.ExternalCreatedAt),
			m.CreatedAt.UTC(),
		).Scan(&seqs[i])
		if err != nil && !database.IsNoRows(err) {
			return fmt.Errorf("failed to append conversation message: %w", err)
		}
	}
	c.MarkSaved(seqs)
	return nil
}

// FindByID loads a conversation with its transcript.
func (r *ConversationRepository) FindByID(ctx context.Context, tenantID, id uuid.UUID) (*domain.Conversation, error) {
	return r.findOne(ctx, `tenant_id = ? AND id = ?`, tenantID.String(), id)
}

// FindByChannelID loads the conversation bound to an external channel.
func (r *ConversationRepository) FindByChannelID(ctx context.Context, tenantID uuid.UUID, externalChannelID string) (*domain.Conversation, error) {
	return r.findOne(ctx, `tenant_id = ? AND external_channel_id = ?`, tenantID.String(), externalChannelID)
}

// ListByStatus returns the most recently updated conversations in a status.
func (r *ConversationRepository) ListByStatus(ctx context.Context, tenantID uuid.UUID, status domain.Status, limit int) ([]*domain.Conversation, error) {
	if limit <= 0 {
		limit = 100
	}
	query := r.q(`SELECT ` + conversationColumns + `
		FROM conversations
		WHERE tenant_id = ? AND status = ?
		ORDER BY updated_at DESC, id
		LIMIT ?`)

	rows, err := r.exec(ctx).Query(ctx, query, tenantID.String(), string(status), limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list conversations: %w", err)
	}

	var states []conversationRow
	for rows.Next() {
		state, err := scanConversation(rows)
		if err != nil {
			_ = rows.Close()
			return nil, err
		}
		states = append(states, state)
	}
	if err := rows.Err(); err != nil {
		_ = rows.Close()
		return nil, err
	}
	_ = rows.Close()

	conversations := make([]*domain.Conversation, 0, len(states))
	for _, state := range states {
		c, err := r.withMessages(ctx, state)
		if err != nil {
			return nil, err
		}
		conversations = append(conversations, c)
	}
	return conversations, nil
}

func (r *ConversationRepository) findOne(ctx context.Context, where string, args ...any) (*domain.Conversation, error) {
	query := r.q(`SELECT ` + conversationColumns + ` FROM conversations WHERE ` + where)

	state, err := scanConversation(r.exec(ctx).QueryRow(ctx, query, args...))
	if err != nil {
		if database.IsNoRows(err) {
			return nil, domain.ErrConversationNotFound
		}
		return nil, err
	}
	return r.withMessages(ctx, state)
}

func (r *ConversationRepository) withMessages(ctx context.Context, state conversationRow) (*domain.Conversation, error) {
	query := r.q(`
		SELECT seq, id, role, content, external_message_id, external_created_at, created_at
		FROM conversation_messages
		WHERE conversation_id = ?
		ORDER BY seq
	`)

	rows, err := r.exec(ctx).Query(ctx, query, state.id)
	if err != nil {
		return nil, fmt.Errorf("failed to load transcript: %w", err)
	}
	defer rows.Close()

	var messages []domain.Message
	for rows.Next() {
		var (
			m          domain.Message
			role       string
			externalID *string
			externalAt *time.Time
		)
		if err := rows.Scan(&m.Seq, &m.ID, &role, &m.Content, &externalID, &externalAt, &m.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan message: %w", err)
		}
		m.Role = domain.Role(role)
		if externalID != nil {
			m.ExternalMessageID = *externalID
		}
		m.ExternalCreatedAt = utcPtr(externalAt)
		m.CreatedAt = m.CreatedAt.UTC()
		messages = append(messages, m)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return domain.RehydrateConversation(
		state.id, state.tenantID,
		state.channelID, state.candidateID, state.candidateName,
		state.attemptID,
		domain.Stage(state.stage),
		domain.Status(state.status),
		deref(state.escalationReason),
		domain.Role(deref(state.lastMessageBy)),
		utcPtr(state.lastMessageAt),
		messages,
		state.version,
		state.createdAt.UTC(), state.updatedAt.UTC(),
	), nil
}

type conversationRow struct {
	id               uuid.UUID
	tenantID         uuid.UUID
	channelID        string
	candidateID      string
	candidateName    string
	attemptID        *uuid.UUID
	stage            string
	status           string
	escalationReason *string
	lastMessageBy    *string
	lastMessageAt    *time.Time
	version          int
	createdAt        time.Time
	updatedAt        time.Time
}

func scanConversation(row database.Row) (conversationRow, error) {
	var (
		s         conversationRow
		attemptID uuid.NullUUID
	)
	err := row.Scan(&s.id, &s.tenantID, &s.channelID, &s.candidateID, &s.candidateName,
		&attemptID, &s.stage, &s.status, &s.escalationReason, &s.lastMessageBy, &s.lastMessageAt,
		&s.version, &s.createdAt, &s.updatedAt)
	if err != nil {
		if database.IsNoRows(err) {
			return s, err
		}
		return s, fmt.Errorf("failed to scan conversation: %w", err)
	}
	if attemptID.Valid {
		s.attemptID = &attemptID.UUID
	}
	return s, nil
}
