package persistence

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/felixgeelhaar/talentreach/internal/outreach/domain"
	sharedDomain "github.com/felixgeelhaar/talentreach/internal/shared/domain"
	"github.com/felixgeelhaar/talentreach/internal/shared/infrastructure/database"
	"github.com/google/uuid"
)

const attemptColumns = `id, tenant_id, candidate_external_id, candidate_name, campaign_ref, job_ref,
	status, conversation_id, sequence_position, pitch_due_at, pitch_sent_at, next_follow_up_at,
	last_delivery_status, bounce_reason, closed_at, version, created_at, updated_at`

// AttemptRepository implements domain.AttemptRepository.
type AttemptRepository struct {
	conn database.Connection
}

// NewAttemptRepository creates an attempt repository.
func NewAttemptRepository(conn database.Connection) *AttemptRepository {
	return &AttemptRepository{conn: conn}
}

func (r *AttemptRepository) exec(ctx context.Context) database.Executor {
	return database.ExecutorFromContext(ctx, r.conn)
}

func (r *AttemptRepository) q(query string) string {
	return r.conn.Driver().Rebind(query)
}

// Create inserts a new attempt at version 1.
func (r *AttemptRepository) Create(ctx context.Context, a *domain.Attempt) error {
	query := r.q(`
		INSERT INTO outreach_attempts (` + attemptColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, 1, ?, ?)
	`)

	_, err := r.exec(ctx).Exec(ctx, query,
		a.ID(),
		a.TenantID().String(),
		a.CandidateExternalID(),
		a.CandidateName(),
		a.CampaignRef(),
		nullString(a.JobRef()),
		string(a.Status()),
		nullUUID(a.ConversationID()),
		a.SequencePosition(),
		utcPtr(a.PitchDueAt()),
		utcPtr(a.PitchSentAt()),
		utcPtr(a.NextFollowUpAt()),
		nullString(a.LastDeliveryStatus()),
		nullString(a.BounceReason()),
		utcPtr(a.ClosedAt()),
		a.CreatedAt().UTC(),
		a.UpdatedAt().UTC(),
	)
	if err != nil {
		if database.IsUniqueViolation(err) {
			return domain.ErrDuplicateAttempt
		}
		return fmt.Errorf("failed to create outreach attempt: %w", err)
	}
	a.SetVersion(1)
	return nil
}

// Save compares and sets on version.
func (r *AttemptRepository) Save(ctx context.Context, a *domain.Attempt) error {
	query := r.q(`
		UPDATE outreach_attempts
		SET candidate_name = ?, status = ?, conversation_id = ?, sequence_position = ?,
			pitch_due_at = ?, pitch_sent_at = ?, next_follow_up_at = ?, last_delivery_status = ?,
			bounce_reason = ?, closed_at = ?, version = version + 1, updated_at = ?
		WHERE id = ? AND version = ?
	`)

	result, err := r.exec(ctx).Exec(ctx, query,
		a.CandidateName(),
		string(a.Status()),
		nullUUID(a.ConversationID()),
		a.SequencePosition(),
		utcPtr(a.PitchDueAt()),
		utcPtr(a.PitchSentAt()),
		utcPtr(a.NextFollowUpAt()),
		nullString(a.LastDeliveryStatus()),
		nullString(a.BounceReason()),
		utcPtr(a.ClosedAt()),
		a.UpdatedAt().UTC(),
		a.ID(),
		a.Version(),
	)
	if err != nil {
		return fmt.Errorf("failed to update outreach attempt: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return sharedDomain.ErrOptimisticLocking
	}
	a.SetVersion(a.Version() + 1)
	return nil
}

// FindByID loads one attempt.
func (r *AttemptRepository) FindByID(ctx context.Context, tenantID, id uuid.UUID) (*domain.Attempt, error) {
	return r.findOne(ctx, `tenant_id = ? AND id = ?`, tenantID.String(), id)
}

// FindByCampaign loads the attempt of a candidate within a campaign.
func (r *AttemptRepository) FindByCampaign(ctx context.Context, tenantID uuid.UUID, candidateExternalID, campaignRef string) (*domain.Attempt, error) {
	return r.findOne(ctx, `tenant_id = ? AND candidate_external_id = ? AND campaign_ref = ?`,
		tenantID.String(), candidateExternalID, campaignRef)
}

// FindByConversationID loads the attempt whose pitch started a conversation.
func (r *AttemptRepository) FindByConversationID(ctx context.Context, tenantID, conversationID uuid.UUID) (*domain.Attempt, error) {
	return r.findOne(ctx, `tenant_id = ? AND conversation_id = ?`, tenantID.String(), conversationID)
}

// FindLatestByCandidate returns the newest attempt of a candidate in one of
// the given statuses.
func (r *AttemptRepository) FindLatestByCandidate(ctx context.Context, tenantID uuid.UUID, candidateExternalID string, statuses []domain.Status) (*domain.Attempt, error) {
	if len(statuses) == 0 {
		return nil, domain.ErrAttemptNotFound
	}
	args := []any{tenantID.String(), candidateExternalID}
	for _, s := range statuses {
		args = append(args, string(s))
	}
	where := `tenant_id = ? AND candidate_external_id = ? AND status IN (` + placeholders(len(statuses)) + `)
		ORDER BY created_at DESC, id LIMIT 1`
	return r.findOne(ctx, where, args...)
}

// ListPitchDue returns pending pitches due at or before now, oldest first.
func (r *AttemptRepository) ListPitchDue(ctx context.Context, now time.Time, limit int) ([]*domain.Attempt, error) {
	return r.list(ctx, `status = ? AND pitch_due_at <= ? ORDER BY pitch_due_at, id LIMIT ?`,
		string(domain.StatusPitchPending), now.UTC(), defaultLimit(limit))
}

// ListFollowUpDue returns pitched attempts whose next check is due.
func (r *AttemptRepository) ListFollowUpDue(ctx context.Context, now time.Time, limit int) ([]*domain.Attempt, error) {
	return r.list(ctx, `status = ? AND next_follow_up_at <= ? ORDER BY next_follow_up_at, id LIMIT ?`,
		string(domain.StatusPitchSent), now.UTC(), defaultLimit(limit))
}

func (r *AttemptRepository) findOne(ctx context.Context, where string, args ...any) (*domain.Attempt, error) {
	query := r.q(`SELECT ` + attemptColumns + ` FROM outreach_attempts WHERE ` + where)

	a, err := scanAttempt(r.exec(ctx).QueryRow(ctx, query, args...))
	if err != nil {
		if database.IsNoRows(err) {
			return nil, domain.ErrAttemptNotFound
		}
		return nil, err
	}
	return a, nil
}

func (r *AttemptRepository) list(ctx context.Context, where string, args ...any) ([]*domain.Attempt, error) {
	query := r.q(`SELECT ` + attemptColumns + ` FROM outreach_attempts WHERE ` + where)

	rows, err := r.exec(ctx).Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list outreach attempts: %w", err)
	}
	defer rows.Close()

	var attempts []*domain.Attempt
	for rows.Next() {
		a, err := scanAttempt(rows)
		if err != nil {
			return nil, err
		}
		attempts = append(attempts, a)
	}
	return attempts, rows.Err()
}

func scanAttempt(row database.Row) (*domain.Attempt, error) {
	var (
		s              domain.AttemptState
		status         string
		jobRef         *string
		conversationID uuid.NullUUID
		deliveryStatus *string
		bounceReason   *string
	)
	err := row.Scan(&s.ID, &s.TenantID, &s.CandidateExternalID, &s.CandidateName, &s.CampaignRef, &jobRef,
		&status, &conversationID, &s.SequencePosition, &s.PitchDueAt, &s.PitchSentAt, &s.NextFollowUpAt,
		&deliveryStatus, &bounceReason, &s.ClosedAt, &s.Version, &s.CreatedAt, &s.UpdatedAt)
	if err != nil {
		if database.IsNoRows(err) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to scan outreach attempt: %w", err)
	}

	s.Status = domain.Status(status)
	s.JobRef = deref(jobRef)
	s.LastDeliveryStatus = deref(deliveryStatus)
	s.BounceReason = deref(bounceReason)
	if conversationID.Valid {
		s.ConversationID = &conversationID.UUID
	}
	s.PitchDueAt = utcPtr(s.PitchDueAt)
	s.PitchSentAt = utcPtr(s.PitchSentAt)
	s.NextFollowUpAt = utcPtr(s.NextFollowUpAt)
	s.ClosedAt = utcPtr(s.ClosedAt)
	s.CreatedAt = s.CreatedAt.UTC()
	s.UpdatedAt = s.UpdatedAt.UTC()
	return domain.RehydrateAttempt(s), nil
}

func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?, ", n), ", ")
}

func defaultLimit(limit int) int {
	if limit <= 0 {
		return 100
	}
	return limit
}
