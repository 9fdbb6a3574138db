package domain

import (
	"errors"
	"slices"
	"time"

	"github.com/google/uuid"
)

// ErrOptimisticLocking is returned by repositories when a compare-and-set on
// the aggregate version fails because another writer got there first.
var ErrOptimisticLocking = errors.New("optimistic locking conflict")

// BaseEntity carries identity and UTC audit timestamps.
type BaseEntity struct {
	id        uuid.UUID
	createdAt time.Time
	updatedAt time.Time
}

// NewBaseEntityAt creates an entity created and last updated at at.
func NewBaseEntityAt(id uuid.UUID, at time.Time) BaseEntity {
	at = at.UTC()
	return BaseEntity{id: id, createdAt: at, updatedAt: at}
}

// RehydrateBaseEntity restores an entity from persisted columns.
func RehydrateBaseEntity(id uuid.UUID, createdAt, updatedAt time.Time) BaseEntity {
	return BaseEntity{id: id, createdAt: createdAt, updatedAt: updatedAt}
}

func (e BaseEntity) ID() uuid.UUID        { return e.id }
func (e BaseEntity) CreatedAt() time.Time { return e.createdAt }
func (e BaseEntity) UpdatedAt() time.Time { return e.updatedAt }

// Touch advances updatedAt. It never moves backwards, so late webhooks do
// not rewind an aggregate.
func (e *BaseEntity) Touch(at time.Time) {
	if at = at.UTC(); at.After(e.updatedAt) {
		e.updatedAt = at
	}
}

// BaseAggregateRoot adds the pending event list and the store version to an
// entity. Repositories write with compare-and-set on the version and the
// application layer moves pulled events into the outbox in the same
// transaction.
type BaseAggregateRoot struct {
	BaseEntity
	pending []DomainEvent
	version int
}

// NewBaseAggregateRoot starts a new aggregate with a fresh id at version 0.
func NewBaseAggregateRoot(at time.Time) BaseAggregateRoot {
	return BaseAggregateRoot{BaseEntity: NewBaseEntityAt(uuid.New(), at)}
}

// RehydrateBaseAggregateRoot restores an aggregate at its stored version.
func RehydrateBaseAggregateRoot(entity BaseEntity, version int) BaseAggregateRoot {
	return BaseAggregateRoot{BaseEntity: entity, version: version}
}

// AddDomainEvent records an event for the next save.
func (a *BaseAggregateRoot) AddDomainEvent(event DomainEvent) {
	a.pending = append(a.pending, event)
}

// DomainEvents returns a copy of the recorded events.
func (a *BaseAggregateRoot) DomainEvents() []DomainEvent {
	return slices.Clone(a.pending)
}

// PullDomainEvents hands the recorded events to the caller and forgets them.
func (a *BaseAggregateRoot) PullDomainEvents() []DomainEvent {
	events := a.pending
	a.pending = nil
	return events
}

// ClearDomainEvents drops the recorded events.
func (a *BaseAggregateRoot) ClearDomainEvents() {
	a.pending = nil
}

// Version is the stored version the next compare-and-set expects.
func (a *BaseAggregateRoot) Version() int {
	return a.version
}

// SetVersion records the version the store returned after a write.
func (a *BaseAggregateRoot) SetVersion(version int) {
	a.version = version
}
