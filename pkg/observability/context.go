package observability

import (
	"context"

	"github.com/google/uuid"
)

// Attribute keys shared by logs and error reports.
const (
	CorrelationIDKey = "correlation_id"
	RequestIDKey     = "request_id"
	ErrorKey         = "error"
)

type idsKey struct{}

// ids travel together so adding one keeps the other.
type ids struct {
	correlation string
	request     string
}

func idsFrom(ctx context.Context) ids {
	if ctx == nil {
		return ids{}
	}
	v, _ := ctx.Value(idsKey{}).(ids)
	return v
}

func withIDs(ctx context.Context, update func(*ids)) context.Context {
	v := idsFrom(ctx)
	update(&v)
	return context.WithValue(ctx, idsKey{}, v)
}

// WithCorrelationID tags ctx with the id that ties a webhook, its domain
// events and their consumers together. An empty id starts a new chain.
func WithCorrelationID(ctx context.Context, id string) context.Context {
	if id == "" {
		id = uuid.NewString()
	}
	return withIDs(ctx, func(v *ids) { v.correlation = id })
}

// CorrelationIDFromContext returns the correlation id, or "".
func CorrelationIDFromContext(ctx context.Context) string {
	return idsFrom(ctx).correlation
}

// WithRequestID tags ctx with the id of the inbound HTTP request.
func WithRequestID(ctx context.Context, id string) context.Context {
	if id == "" {
		id = uuid.NewString()
	}
	return withIDs(ctx, func(v *ids) { v.request = id })
}

// RequestIDFromContext returns the request id, or "".
func RequestIDFromContext(ctx context.Context) string {
	return idsFrom(ctx).request
}

// CorrelationUUID returns the correlation id as a UUID, or uuid.Nil when it
// is missing or not a UUID. Event metadata stores it in this form.
func CorrelationUUID(ctx context.Context) uuid.UUID {
	id, err := uuid.Parse(CorrelationIDFromContext(ctx))
	if err != nil {
		return uuid.Nil
	}
	return id
}
