// Package composer drafts outbound text through the external text
// generation capability.
package composer

import (
	"context"
	"errors"
	"time"
)

// Purpose tells the composer what kind of text is wanted.
type Purpose string

const (
	PurposeReply    Purpose = "reply"
	PurposePitch    Purpose = "pitch"
	PurposeFollowUp Purpose = "follow_up"
)

// Turn is one transcript entry shown to the composer.
type Turn struct {
	Role    string    `json:"role"`
	Content string    `json:"content"`
	At      time.Time `json:"at"`
}

// DraftRequest is the conversation context handed to the composer.
type DraftRequest struct {
	Purpose        Purpose `json:"purpose"`
	CandidateName  string  `json:"candidate_name,omitempty"`
	CandidateID    string  `json:"candidate_id"`
	Stage          string  `json:"stage,omitempty"`
	Transcript     []Turn  `json:"transcript,omitempty"`
	FollowUpNumber int     `json:"follow_up_number,omitempty"`
	JobRef         string  `json:"job_ref,omitempty"`
}

// Draft is the proposed text plus intent signals.
type Draft struct {
	Text          string `json:"text"`
	BookingIntent bool   `json:"booking_intent"`
	Uncertain     bool   `json:"uncertain"`
	NotInterested bool   `json:"not_interested"`
}

// Composer produces drafts. Implementations return an error on timeout or
// failure; callers never fall back to canned text.
type Composer interface {
	Draft(ctx context.Context, req DraftRequest) (Draft, error)
}

// ErrNotConfigured is returned by Disabled.
var ErrNotConfigured = errors.New("composer not configured")

// Disabled is the Composer used when no endpoint is configured. Every draft
// fails, so inbound messages escalate.
type Disabled struct{}

func (Disabled) Draft(context.Context, DraftRequest) (Draft, error) {
	return Draft{}, ErrNotConfigured
}
