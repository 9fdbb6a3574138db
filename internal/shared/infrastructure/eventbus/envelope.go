package eventbus

import (
	"encoding/json"
	"time"

	"github.com/felixgeelhaar/talentreach/internal/shared/domain"
	"github.com/google/uuid"
)

// Envelope is the wire form of a domain event on the bus. Consumers decode
// it without knowing the concrete event type and unmarshal Payload themselves.
type Envelope struct {
	EventID       uuid.UUID            `json:"event_id"`
	AggregateID   uuid.UUID            `json:"aggregate_id"`
	AggregateType string               `json:"aggregate_type"`
	RoutingKey    string               `json:"routing_key"`
	OccurredAt    time.Time            `json:"occurred_at"`
	Payload       json.RawMessage      `json:"payload"`
	Metadata      domain.EventMetadata `json:"metadata"`
}

// DecodeEnvelope parses a published body. The routing key from the transport
// wins when the body does not carry one.
func DecodeEnvelope(routingKey string, body []byte) (*Envelope, error) {
	event := &Envelope{}
	if err := json.Unmarshal(body, event); err != nil {
		return nil, err
	}
	if event.RoutingKey == "" {
		event.RoutingKey = routingKey
	}
	return event, nil
}
