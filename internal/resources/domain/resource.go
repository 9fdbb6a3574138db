package domain

import (
	"errors"
	"net/url"
	"strings"
	"time"

	sharedDomain "github.com/felixgeelhaar/talentreach/internal/shared/domain"
	"github.com/google/uuid"
)

var (
	ErrResourceEmptyOwner   = errors.New("resource owner name cannot be empty")
	ErrResourceInvalidURL   = errors.New("resource url must be an absolute http(s) url")
	ErrResourceNotFound     = errors.New("scheduling resource not found")
	ErrNoActiveResource     = errors.New("no active scheduling resource")
	ErrDuplicateResourceURL = errors.New("scheduling resource url already registered")
)

// Resource is one shared scheduling link (a booking page) handed to candidates
// in turn.
type Resource struct {
	sharedDomain.BaseEntity
	tenantID        uuid.UUID
	ownerName       string
	resourceURL     string
	active          bool
	assignmentCount int
	lastAssignedAt  *time.Time
}

// NewResource registers a new active resource.
func NewResource(tenantID uuid.UUID, ownerName, resourceURL string, now time.Time) (*Resource, error) {
	ownerName = strings.TrimSpace(ownerName)
	if ownerName == "" {
		return nil, ErrResourceEmptyOwner
	}
	resourceURL = strings.TrimSpace(resourceURL)
	u, err := url.Parse(resourceURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return nil, ErrResourceInvalidURL
	}

	return &Resource{
		BaseEntity:  sharedDomain.NewBaseEntityAt(uuid.New(), now),
		tenantID:    tenantID,
		ownerName:   ownerName,
		resourceURL: resourceURL,
		active:      true,
	}, nil
}

func (r *Resource) TenantID() uuid.UUID        { return r.tenantID }
func (r *Resource) OwnerName() string          { return r.ownerName }
func (r *Resource) ResourceURL() string        { return r.resourceURL }
func (r *Resource) IsActive() bool             { return r.active }
func (r *Resource) AssignmentCount() int       { return r.assignmentCount }
func (r *Resource) LastAssignedAt() *time.Time { return r.lastAssignedAt }

// Deactivate takes the resource out of rotation. It keeps its history.
func (r *Resource) Deactivate(now time.Time) bool {
	if !r.active {
		return false
	}
	r.active = false
	r.Touch(now)
	return true
}

// Activate puts the resource back into rotation.
func (r *Resource) Activate(now time.Time) bool {
	if r.active {
		return false
	}
	r.active = true
	r.Touch(now)
	return true
}

// RecordAssignment counts one more hand-out. The count only ever grows.
func (r *Resource) RecordAssignment(at time.Time) {
	at = at.UTC()
	r.assignmentCount++
	r.lastAssignedAt = &at
	r.Touch(at)
}

// RehydrateResource recreates a resource from persisted state.
func RehydrateResource(
	id, tenantID uuid.UUID,
	ownerName, resourceURL string,
	active bool,
	assignmentCount int,
	lastAssignedAt *time.Time,
	createdAt, updatedAt time.Time,
) *Resource {
	return &Resource{
		BaseEntity:      sharedDomain.RehydrateBaseEntity(id, createdAt, updatedAt),
		tenantID:        tenantID,
		ownerName:       ownerName,
		resourceURL:     resourceURL,
		active:          active,
		assignmentCount: assignmentCount,
		lastAssignedAt:  lastAssignedAt,
	}
}
