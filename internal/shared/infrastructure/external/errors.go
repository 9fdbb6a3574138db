// Package external classifies failures of outbound capabilities (messaging
// provider, composer, calendar) and wraps calls in breakers and retries.
package external

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"

	"github.com/sony/gobreaker/v2"
)

// Kind is the category of a capability failure.
type Kind string

const (
	KindTimeout      Kind = "timeout"
	KindRateLimited  Kind = "rate_limited"
	KindNotFound     Kind = "not_found"
	KindUnauthorized Kind = "unauthorized"
	KindUnknown      Kind = "unknown"
)

// Error is a classified capability failure.
type Error struct {
	Op     string
	Kind   Kind
	Status int
	Err    error
}

func (e *Error) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("%s: %s (status %d): %v", e.Op, e.Kind, e.Status, e.Err)
	}
	return fmt.Sprintf("%s: %s: %v", e.Op, e.Kind, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// New creates a classified error.
func New(op string, kind Kind, err error) *Error {
	return &Error{Op: op, Kind: kind, Err: err}
}

// KindOf returns the kind of err. Unclassified errors are classified on the
// fly: deadlines and network timeouts are Timeout, an open breaker and
// everything else is Unknown.
func KindOf(err error) Kind {
	if err == nil {
		return ""
	}
	var extErr *Error
	if errors.As(err, &extErr) {
		return extErr.Kind
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return KindTimeout
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return KindTimeout
	}
	return KindUnknown
}

// Classify wraps err as an *Error unless it already is one.
func Classify(op string, err error) error {
	if err == nil {
		return nil
	}
	var extErr *Error
	if errors.As(err, &extErr) {
		return err
	}
	return New(op, KindOf(err), err)
}

// IsTransient reports whether retrying later may succeed. A breaker in the
// open state is not transient for the caller: the breaker owns the backoff.
func IsTransient(err error) bool {
	if err == nil || isBreakerRejection(err) {
		return false
	}
	switch KindOf(err) {
	case KindTimeout, KindRateLimited:
		return true
	}
	var extErr *Error
	if errors.As(err, &extErr) && extErr.Status >= 500 {
		return true
	}
	return false
}

// IsPermanent reports failures that will not change on retry.
func IsPermanent(err error) bool {
	return KindOf(err) == KindNotFound
}

// IsConfiguration reports failures an operator must fix (credentials, scopes).
func IsConfiguration(err error) bool {
	return KindOf(err) == KindUnauthorized
}

func isBreakerRejection(err error) bool {
	return errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests)
}

// FromStatus maps an HTTP response status to a classified error. 2xx returns nil.
func FromStatus(op string, status int, body string) error {
	if status >= 200 && status < 300 {
		return nil
	}
	kind := KindUnknown
	switch {
	case status == http.StatusTooManyRequests:
		kind = KindRateLimited
	case status == http.StatusNotFound || status == http.StatusGone:
		kind = KindNotFound
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		kind = KindUnauthorized
	case status == http.StatusRequestTimeout || status == http.StatusGatewayTimeout:
		kind = KindTimeout
	}
	if len(body) > 256 {
		body = body[:256]
	}
	return &Error{Op: op, Kind: kind, Status: status, Err: errors.New(http.StatusText(status) + ": " + body)}
}
