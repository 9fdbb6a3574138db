package outbox

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/felixgeelhaar/talentreach/internal/shared/domain"
	"github.com/felixgeelhaar/talentreach/internal/shared/infrastructure/eventbus"
	"github.com/google/uuid"
)

// Message is one row of the outbox table: a domain event captured in the
// transaction that raised it, plus its relay state.
type Message struct {
	ID            int64
	EventID       uuid.UUID
	AggregateType string
	AggregateID   uuid.UUID
	EventType     string
	RoutingKey    string
	Payload       json.RawMessage
	Metadata      json.RawMessage
	CreatedAt     time.Time

	// Relay state, owned by the processor.
	PublishedAt      *time.Time
	NextRetryAt      *time.Time
	RetryCount       int
	LastError        *string
	DeadLetteredAt   *time.Time
	DeadLetterReason *string
}

// NewMessage captures event for the outbox. The payload is the event's own
// JSON encoding, so only exported event fields travel.
func NewMessage(event domain.DomainEvent) (*Message, error) {
	msg := &Message{
		EventID:       event.EventID(),
		AggregateType: event.AggregateType(),
		AggregateID:   event.AggregateID(),
		EventType:     event.RoutingKey(),
		RoutingKey:    event.RoutingKey(),
		CreatedAt:     event.OccurredAt().UTC(),
	}
	var err error
	if msg.Payload, err = json.Marshal(event); err != nil {
		return nil, fmt.Errorf("payload: %w", err)
	}
	if msg.Metadata, err = json.Marshal(event.Metadata()); err != nil {
		return nil, fmt.Errorf("metadata: %w", err)
	}
	return msg, nil
}

// Envelope is the body published to the bus.
func (m *Message) Envelope() ([]byte, error) {
	envelope := eventbus.Envelope{
		EventID:       m.EventID,
		AggregateID:   m.AggregateID,
		AggregateType: m.AggregateType,
		RoutingKey:    m.RoutingKey,
		OccurredAt:    m.CreatedAt,
		Payload:       m.Payload,
	}
	if len(m.Metadata) > 0 {
		if err := json.Unmarshal(m.Metadata, &envelope.Metadata); err != nil {
			return nil, err
		}
	}
	return json.Marshal(envelope)
}

// FinalAttempt reports whether a failure of the publish now in flight uses
// up the last of maxRetries. A non-positive budget allows no retries.
func (m *Message) FinalAttempt(maxRetries int) bool {
	return maxRetries <= 0 || m.RetryCount+1 >= maxRetries
}
