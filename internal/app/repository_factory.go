package app

import (
	"log/slog"

	conversationsDomain "github.com/felixgeelhaar/talentreach/internal/conversations/domain"
	"github.com/felixgeelhaar/talentreach/internal/conversations/infrastructure/cache"
	conversationsPersistence "github.com/felixgeelhaar/talentreach/internal/conversations/infrastructure/persistence"
	ingestionPersistence "github.com/felixgeelhaar/talentreach/internal/ingestion/infrastructure/persistence"
	outreachPersistence "github.com/felixgeelhaar/talentreach/internal/outreach/infrastructure/persistence"
	resourcesPersistence "github.com/felixgeelhaar/talentreach/internal/resources/infrastructure/persistence"
	sharedApplication "github.com/felixgeelhaar/talentreach/internal/shared/application"
	"github.com/felixgeelhaar/talentreach/internal/shared/infrastructure/database"
	"github.com/felixgeelhaar/talentreach/internal/shared/infrastructure/outbox"
)

// RepositoryFactory creates repositories on one connection. Every repository
// rebinds its statements for the connection's driver, so the same types
// serve PostgreSQL and SQLite.
type RepositoryFactory struct {
	conn   database.Connection
	driver database.Driver
}

// NewRepositoryFactory creates a new repository factory.
func NewRepositoryFactory(conn database.Connection) *RepositoryFactory {
	return &RepositoryFactory{
		conn:   conn,
		driver: conn.Driver(),
	}
}

// Driver returns the driver of the underlying connection.
func (f *RepositoryFactory) Driver() database.Driver {
	return f.driver
}

// UnitOfWork creates a unit of work on the connection.
func (f *RepositoryFactory) UnitOfWork() sharedApplication.UnitOfWork {
	return database.NewUnitOfWork(f.conn)
}

// OutboxRepository creates the transactional outbox repository.
func (f *RepositoryFactory) OutboxRepository() outbox.Repository {
	return outbox.NewSQLRepository(f.conn)
}

// ResourceRepository creates the scheduling resource repository.
func (f *RepositoryFactory) ResourceRepository() *resourcesPersistence.ResourceRepository {
	return resourcesPersistence.NewResourceRepository(f.conn)
}

// AssignmentRepository creates the assignment repository.
func (f *RepositoryFactory) AssignmentRepository() *resourcesPersistence.AssignmentRepository {
	return resourcesPersistence.NewAssignmentRepository(f.conn)
}

// ConversationRepository creates the conversation store. A non-nil index
// puts the channel lookup cache in front of it.
func (f *RepositoryFactory) ConversationRepository(index cache.ChannelIndex, logger *slog.Logger) conversationsDomain.Repository {
	repo := conversationsPersistence.NewConversationRepository(f.conn)
	if index == nil {
		return repo
	}
	return cache.NewRepository(repo, index, logger)
}

// PendingReplyRepository creates the pending reply queue.
func (f *RepositoryFactory) PendingReplyRepository() *conversationsPersistence.PendingReplyRepository {
	return conversationsPersistence.NewPendingReplyRepository(f.conn)
}

// AttemptRepository creates the outreach attempt repository.
func (f *RepositoryFactory) AttemptRepository() *outreachPersistence.AttemptRepository {
	return outreachPersistence.NewAttemptRepository(f.conn)
}

// DeliveryLedger creates the webhook delivery ledger.
func (f *RepositoryFactory) DeliveryLedger() *ingestionPersistence.DeliveryLedger {
	return ingestionPersistence.NewDeliveryLedger(f.conn)
}
