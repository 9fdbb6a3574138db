package persistence

import (
	"context"
	"fmt"
	"time"

	"github.com/felixgeelhaar/talentreach/internal/resources/domain"
	"github.com/felixgeelhaar/talentreach/internal/shared/infrastructure/database"
	"github.com/google/uuid"
)

const resourceColumns = `id, tenant_id, owner_name, resource_url, is_active, assignment_count,
	last_assigned_at, created_at, updated_at`

// ResourceRepository implements domain.ResourceRepository on the shared
// database abstraction.
type ResourceRepository struct {
	conn database.Connection
}

// NewResourceRepository creates a resource repository.
func NewResourceRepository(conn database.Connection) *ResourceRepository {
	return &ResourceRepository{conn: conn}
}

func (r *ResourceRepository) exec(ctx context.Context) database.Executor {
	return database.ExecutorFromContext(ctx, r.conn)
}

// Save inserts or updates a resource. assignment_count and last_assigned_at
// are owned by IncrementAssignment and never overwritten here.
func (r *ResourceRepository) Save(ctx context.Context, resource *domain.Resource) error {
	query := r.conn.Driver().Rebind(`
		INSERT INTO scheduling_resources (id, tenant_id, owner_name, resource_url, is_active, assignment_count, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET
			owner_name = excluded.owner_name,
			is_active = excluded.is_active,
			updated_at = excluded.updated_at
	`)

	_, err := r.exec(ctx).Exec(ctx, query,
		resource.ID(),
		resource.TenantID().String(),
		resource.OwnerName(),
		resource.ResourceURL(),
		resource.IsActive(),
		resource.AssignmentCount(),
		resource.CreatedAt().UTC(),
		resource.UpdatedAt().UTC(),
	)
	if err != nil {
		if database.IsUniqueViolation(err) {
			return domain.ErrDuplicateResourceURL
		}
		return fmt.Errorf("failed to save scheduling resource: %w", err)
	}
	return nil
}

// FindByID returns a resource or domain.ErrResourceNotFound.
func (r *ResourceRepository) FindByID(ctx context.Context, tenantID, id uuid.UUID) (*domain.Resource, error) {
	query := r.conn.Driver().Rebind(`SELECT ` + resourceColumns + `
		FROM scheduling_resources
		WHERE tenant_id = ? AND id = ?`)

	resource, err := scanResource(r.exec(ctx).QueryRow(ctx, query, tenantID.String(), id))
	if err != nil {
		if database.IsNoRows(err) {
			return nil, domain.ErrResourceNotFound
		}
		return nil, err
	}
	return resource, nil
}

// List returns every resource of the tenant, active ones first.
func (r *ResourceRepository) List(ctx context.Context, tenantID uuid.UUID) ([]*domain.Resource, error) {
	query := r.conn.Driver().Rebind(`SELECT ` + resourceColumns + `
		FROM scheduling_resources
		WHERE tenant_id = ?
		ORDER BY is_active DESC, owner_name, id`)

	return r.query(ctx, query, tenantID.String())
}

// ListActiveForUpdate returns the active resources of the tenant. On
// Postgres the rows stay locked until the transaction ends, so concurrent
// assigners queue behind each other.
func (r *ResourceRepository) ListActiveForUpdate(ctx context.Context, tenantID uuid.UUID) ([]*domain.Resource, error) {
	query := r.conn.Driver().Rebind(`SELECT ` + resourceColumns + `
		FROM scheduling_resources
		WHERE tenant_id = ? AND is_active = ?
		ORDER BY id` + r.conn.Driver().ForUpdate())

	return r.query(ctx, query, tenantID.String(), true)
}

// IncrementAssignment adds one to the counter in SQL so a stale in-memory
// count can never be written back.
func (r *ResourceRepository) IncrementAssignment(ctx context.Context, id uuid.UUID, at time.Time) error {
	query := r.conn.Driver().Rebind(`
		UPDATE scheduling_resources
		SET assignment_count = assignment_count + 1, last_assigned_at = ?, updated_at = ?
		WHERE id = ?
	`)

	result, err := r.exec(ctx).Exec(ctx, query, at.UTC(), at.UTC(), id)
	if err != nil {
		return fmt.Errorf("failed to increment assignment count: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return domain.ErrResourceNotFound
	}
	return nil
}

func (r *ResourceRepository) query(ctx context.Context, query string, args ...any) ([]*domain.Resource, error) {
	rows, err := r.exec(ctx).Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query scheduling resources: %w", err)
	}
	defer rows.Close()

	var resources []*domain.Resource
	for rows.Next() {
		resource, err := scanResource(rows)
		if err != nil {
			return nil, err
		}
		resources = append(resources, resource)
	}
	return resources, rows.Err()
}

func scanResource(row database.Row) (*domain.Resource, error) {
	var (
		id, tenantID         uuid.UUID
		owner, url           string
		active               bool
		count                int
		lastAssignedAt       *time.Time
		createdAt, updatedAt time.Time
	)
	if err := row.Scan(&id, &tenantID, &owner, &url, &active, &count, &lastAssignedAt, &createdAt, &updatedAt); err != nil {
		if database.IsNoRows(err) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to scan scheduling resource: %w", err)
	}
	return domain.RehydrateResource(id, tenantID, owner, url, active, count, utcPtr(lastAssignedAt), createdAt.UTC(), updatedAt.UTC()), nil
}

func utcPtr(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	u := t.UTC()
	return &u
}
