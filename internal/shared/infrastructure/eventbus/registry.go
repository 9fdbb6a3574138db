package eventbus

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"
)

// ConsumerRegistry routes envelopes to consumers by routing key. Both the
// in-process publisher and the RabbitMQ consumer dispatch through it.
type ConsumerRegistry struct {
	mu     sync.RWMutex
	routes map[string][]EventConsumer
	logger *slog.Logger
}

// NewConsumerRegistry creates an empty registry.
func NewConsumerRegistry(logger *slog.Logger) *ConsumerRegistry {
	if logger == nil {
		logger = slog.Default()
	}
	return &ConsumerRegistry{
		routes: map[string][]EventConsumer{},
		logger: logger.With("component", "event_registry"),
	}
}

// Register subscribes consumer to each of its routing keys.
func (r *ConsumerRegistry) Register(consumer EventConsumer) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, key := range consumer.EventTypes() {
		r.routes[key] = append(r.routes[key], consumer)
	}
}

// Consumers returns a snapshot of the consumers for routingKey.
func (r *ConsumerRegistry) Consumers(routingKey string) []EventConsumer {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return slices.Clone(r.routes[routingKey])
}

// EventTypes returns the subscribed routing keys in sorted order. The
// RabbitMQ consumer binds its queue to exactly these.
func (r *ConsumerRegistry) EventTypes() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	keys := make([]string, 0, len(r.routes))
	for key := range r.routes {
		keys = append(keys, key)
	}
	slices.Sort(keys)
	return keys
}

// Dispatch runs every consumer of the envelope's routing key, in
// registration order. A failing or panicking consumer does not stop the
// rest; all failures come back joined.
func (r *ConsumerRegistry) Dispatch(ctx context.Context, event *Envelope) error {
	consumers := r.Consumers(event.RoutingKey)
	if len(consumers) == 0 {
		r.logger.Debug("no consumers for routing key", "routing_key", event.RoutingKey)
		return nil
	}

	var errs []error
	for _, consumer := range consumers {
		if err := r.deliver(ctx, consumer, event); err != nil {
			r.logger.Error("consumer failed",
				"consumer", fmt.Sprintf("%T", consumer),
				"routing_key", event.RoutingKey,
				"event_id", event.EventID,
				"error", err,
			)
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (r *ConsumerRegistry) deliver(ctx context.Context, consumer EventConsumer, event *Envelope) (err error) {
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("consumer panicked: %v", p)
		}
	}()
	return consumer.Handle(ctx, event)
}
