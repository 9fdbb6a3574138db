// Package domain holds the vocabulary of inbound provider events.
package domain

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

// Source names the provider category that delivered an event.
type Source string

const (
	SourceMessaging Source = "messaging"
	SourceCalendar  Source = "calendar"
	SourceDelivery  Source = "delivery"
)

// Event types understood per source. Anything else is acknowledged and
// ignored.
const (
	TypeMessageReceived  = "message.received"
	TypeRelationCreated  = "relation.created"
	TypeBookingCreated   = "booking.created"
	TypeMessageDelivered = "message.delivered"
	TypeMessageRead      = "message.read"
	TypeMessageFailed    = "message.failed"
	TypeMessageBounced   = "message.bounced"
)

// Outcomes reported back to the provider.
const (
	OutcomeIgnored   = "ignored"
	OutcomeDuplicate = "duplicate"
	OutcomeRecorded  = "recorded"
	OutcomeAccepted  = "accepted"
	OutcomeConfirmed = "confirmed"
	OutcomeBounced   = "bounced"
	OutcomeFailed    = "failed"
)

// Reasons for events that were acknowledged without effect.
const (
	ReasonUnknownType        = "unknown event type"
	ReasonMissingCorrelation = "missing correlation key"
	ReasonUnknownChannel     = "unknown conversation"
	ReasonNoOpenAttempt      = "no open outreach attempt"
	ReasonNoMatch            = "no matching assignment"
	ReasonAlreadyProcessed   = "already processed"
	ReasonProcessingFailed   = "processing failed"
)

// Result is what ingestion reports for one event. Processed is true only
// when the event changed state.
type Result struct {
	Processed bool
	Outcome   string
	Reason    string
}

// Ignored builds an acknowledged-without-effect result.
func Ignored(reason string) Result {
	return Result{Outcome: OutcomeIgnored, Reason: reason}
}

// Processed builds a result for an event that changed state.
func Processed(outcome string) Result {
	return Result{Processed: true, Outcome: outcome}
}

// ErrDuplicateDelivery is returned by a Ledger that has seen the event id.
var ErrDuplicateDelivery = errors.New("delivery event already processed")

// DeliveryRecord is one entry in the delivery-status idempotency ledger.
// Status pings carry no natural key in the entities they touch, so the
// provider event id is recorded instead.
type DeliveryRecord struct {
	TenantID        uuid.UUID
	ExternalEventID string
	Type            string
	ProcessedAt     time.Time
}

// Ledger records processed delivery events. Record returns
// ErrDuplicateDelivery when the event id is already present. It joins the
// unit of work on ctx so the entry commits with its effect.
type Ledger interface {
	Record(ctx context.Context, rec DeliveryRecord) error
}
