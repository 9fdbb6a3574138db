package eventbus

import "context"

// Publisher hands an encoded Envelope to the transport. The outbox processor
// is its only caller.
type Publisher interface {
	Publish(ctx context.Context, routingKey string, payload []byte) error
	Close() error
}

// EventConsumer reacts to the routing keys it lists, for example
// "conversations.conversation.escalated".
type EventConsumer interface {
	EventTypes() []string
	Handle(ctx context.Context, event *Envelope) error
}

// ConsumerFunc adapts a function to EventConsumer for the given keys.
func ConsumerFunc(fn func(ctx context.Context, event *Envelope) error, routingKeys ...string) EventConsumer {
	return funcConsumer{keys: routingKeys, fn: fn}
}

type funcConsumer struct {
	keys []string
	fn   func(ctx context.Context, event *Envelope) error
}

func (c funcConsumer) EventTypes() []string { return c.keys }

func (c funcConsumer) Handle(ctx context.Context, event *Envelope) error { return c.fn(ctx, event) }
