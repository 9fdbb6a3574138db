package eventbus

import (
	"context"
	"log/slog"
)

// InProcessPublisher dispatches published events straight to local
// consumers. It replaces RabbitMQ in local mode. Consumer failures are
// logged and never fail the publish, so the outbox row is still marked done.
type InProcessPublisher struct {
	registry *ConsumerRegistry
	logger   *slog.Logger
}

// NewInProcessPublisher creates a publisher backed by the given registry.
func NewInProcessPublisher(registry *ConsumerRegistry, logger *slog.Logger) *InProcessPublisher {
	if logger == nil {
		logger = slog.Default()
	}
	return &InProcessPublisher{registry: registry, logger: logger}
}

// Publish decodes the envelope and dispatches it synchronously.
func (p *InProcessPublisher) Publish(ctx context.Context, routingKey string, payload []byte) error {
	event, err := DecodeEnvelope(routingKey, payload)
	if err != nil {
		p.logger.Error("failed to decode event envelope", "routing_key", routingKey, "error", err)
		return nil
	}

	if err := p.registry.Dispatch(ctx, event); err != nil {
		p.logger.Warn("local event dispatch failed",
			"routing_key", routingKey,
			"event_id", event.EventID,
			"error", err,
		)
	}
	return nil
}

// Close is a no-op.
func (p *InProcessPublisher) Close() error {
	return nil
}
