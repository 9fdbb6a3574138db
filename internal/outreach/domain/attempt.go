package domain

import (
	"errors"
	"strings"
	"time"

	sharedDomain "github.com/felixgeelhaar/talentreach/internal/shared/domain"
	"github.com/google/uuid"
)

var (
	ErrAttemptNotFound     = errors.New("outreach attempt not found")
	ErrDuplicateAttempt    = errors.New("outreach attempt already exists for candidate and campaign")
	ErrInvalidTransition   = errors.New("invalid outreach status transition")
	ErrEmptyCandidateID    = errors.New("candidate external id cannot be empty")
	ErrMissingConversation = errors.New("pitch requires a conversation")
)

// Status is the position of an attempt in the outreach funnel.
type Status string

const (
	StatusSent                Status = "SENT"
	StatusConnectionRequested Status = "CONNECTION_REQUESTED"
	StatusConnectionAccepted  Status = "CONNECTION_ACCEPTED"
	StatusPitchPending        Status = "PITCH_PENDING"
	StatusPitchSent           Status = "PITCH_SENT"
	StatusReplied             Status = "REPLIED"
	StatusNoResponse          Status = "NO_RESPONSE"
	StatusBounced             Status = "BOUNCED"
)

// transitions lists the statuses reachable from each status. Terminal
// statuses have no entry.
var transitions = map[Status][]Status{
	StatusSent:                {StatusConnectionRequested, StatusReplied, StatusBounced},
	StatusConnectionRequested: {StatusConnectionAccepted, StatusReplied, StatusBounced},
	StatusConnectionAccepted:  {StatusPitchPending, StatusPitchSent, StatusReplied, StatusBounced},
	StatusPitchPending:        {StatusPitchSent, StatusReplied, StatusBounced},
	StatusPitchSent:           {StatusReplied, StatusNoResponse, StatusBounced},
}

// IsValid returns true if the status is known.
func (s Status) IsValid() bool {
	switch s {
	case StatusSent, StatusConnectionRequested, StatusConnectionAccepted, StatusPitchPending,
		StatusPitchSent, StatusReplied, StatusNoResponse, StatusBounced:
		return true
	}
	return false
}

// IsTerminal returns true when no transition leaves the status.
func (s Status) IsTerminal() bool {
	return s == StatusReplied || s == StatusNoResponse || s == StatusBounced
}

// CanMoveTo reports whether next is a legal successor of s.
func (s Status) CanMoveTo(next Status) bool {
	for _, candidate := range transitions[s] {
		if candidate == next {
			return true
		}
	}
	return false
}

// OpenStatuses are the statuses of attempts still in progress.
func OpenStatuses() []Status {
	return []Status{StatusSent, StatusConnectionRequested, StatusConnectionAccepted, StatusPitchPending, StatusPitchSent}
}

// Attempt is the outreach record of one candidate within one campaign.
type Attempt struct {
	sharedDomain.BaseAggregateRoot
	tenantID            uuid.UUID
	candidateExternalID string
	candidateName       string
	campaignRef         string
	jobRef              string
	status              Status
	conversationID      *uuid.UUID
	sequencePosition    int
	pitchDueAt          *time.Time
	pitchSentAt         *time.Time
	nextFollowUpAt      *time.Time
	lastDeliveryStatus  string
	bounceReason        string
	closedAt            *time.Time
}

// AttemptParams describes a new outreach attempt.
type AttemptParams struct {
	TenantID            uuid.UUID
	CandidateExternalID string
	CandidateName       string
	CampaignRef         string
	JobRef              string
}

// NewAttempt creates an attempt in SENT.
func NewAttempt(p AttemptParams, now time.Time) (*Attempt, error) {
	candidateID := strings.TrimSpace(p.CandidateExternalID)
	if candidateID == "" {
		return nil, ErrEmptyCandidateID
	}

	a := &Attempt{
		BaseAggregateRoot:   sharedDomain.NewBaseAggregateRoot(now),
		tenantID:            p.TenantID,
		candidateExternalID: candidateID,
		candidateName:       strings.TrimSpace(p.CandidateName),
		campaignRef:         strings.TrimSpace(p.CampaignRef),
		jobRef:              strings.TrimSpace(p.JobRef),
		status:              StatusSent,
	}
	a.AddDomainEvent(NewAttemptStatusChanged(a, "", RoutingKeyAttemptCreated))
	return a, nil
}

func (a *Attempt) TenantID() uuid.UUID         { return a.tenantID }
func (a *Attempt) CandidateExternalID() string { return a.candidateExternalID }
func (a *Attempt) CandidateName() string       { return a.candidateName }
func (a *Attempt) CampaignRef() string         { return a.campaignRef }
func (a *Attempt) JobRef() string              { return a.jobRef }
func (a *Attempt) Status() Status              { return a.status }
func (a *Attempt) ConversationID() *uuid.UUID  { return a.conversationID }
func (a *Attempt) SequencePosition() int       { return a.sequencePosition }
func (a *Attempt) PitchDueAt() *time.Time      { return a.pitchDueAt }
func (a *Attempt) PitchSentAt() *time.Time     { return a.pitchSentAt }
func (a *Attempt) NextFollowUpAt() *time.Time  { return a.nextFollowUpAt }
func (a *Attempt) LastDeliveryStatus() string  { return a.lastDeliveryStatus }
func (a *Attempt) BounceReason() string        { return a.bounceReason }
func (a *Attempt) ClosedAt() *time.Time        { return a.closedAt }

// SetCandidateName fills a missing name. A known name is kept.
func (a *Attempt) SetCandidateName(name string, now time.Time) bool {
	name = strings.TrimSpace(name)
	if name == "" || a.candidateName != "" {
		return false
	}
	a.candidateName = name
	a.Touch(now)
	return true
}

// moveTo applies a status change. Re-applying the current status is a no-op
// and anything outside the graph leaves the attempt untouched.
func (a *Attempt) moveTo(next Status, now time.Time) (bool, error) {
	if a.status == next {
		return false, nil
	}
	if !a.status.CanMoveTo(next) {
		return false, ErrInvalidTransition
	}
	from := a.status
	a.status = next
	if next.IsTerminal() {
		at := now.UTC()
		a.closedAt = &at
		a.nextFollowUpAt = nil
		a.pitchDueAt = nil
	}
	a.Touch(now)
	a.AddDomainEvent(NewAttemptStatusChanged(a, from, routingKeyFor(next)))
	return true, nil
}

// RequestConnection records that the connection invite went out.
func (a *Attempt) RequestConnection(now time.Time) (bool, error) {
	return a.moveTo(StatusConnectionRequested, now)
}

// AcceptConnection records that the candidate accepted the invite.
func (a *Attempt) AcceptConnection(now time.Time) (bool, error) {
	return a.moveTo(StatusConnectionAccepted, now)
}

// QueuePitch parks the pitch until dueAt. On an attempt already waiting it
// moves the due time.
func (a *Attempt) QueuePitch(dueAt, now time.Time) (bool, error) {
	due := dueAt.UTC()
	if a.status == StatusPitchPending {
		if a.pitchDueAt != nil && a.pitchDueAt.Equal(due) {
			return false, nil
		}
		a.pitchDueAt = &due
		a.Touch(now)
		return true, nil
	}
	changed, err := a.moveTo(StatusPitchPending, now)
	if err != nil || !changed {
		return changed, err
	}
	a.pitchDueAt = &due
	return true, nil
}

// MarkPitchSent links the conversation the pitch started and schedules the
// first follow-up. A nil nextFollowUpAt leaves the attempt with no sequence.
func (a *Attempt) MarkPitchSent(conversationID uuid.UUID, sentAt time.Time, nextFollowUpAt *time.Time) (bool, error) {
	if conversationID == uuid.Nil {
		return false, ErrMissingConversation
	}
	if a.status == StatusPitchSent {
		return false, nil
	}
	if !a.status.CanMoveTo(StatusPitchSent) {
		return false, ErrInvalidTransition
	}
	sent := sentAt.UTC()
	a.conversationID = &conversationID
	a.pitchSentAt = &sent
	a.pitchDueAt = nil
	a.sequencePosition = 0
	a.nextFollowUpAt = utc(nextFollowUpAt)
	return a.moveTo(StatusPitchSent, sentAt)
}

// RecordFollowUp advances the sequence after a follow-up went out.
func (a *Attempt) RecordFollowUp(sentAt time.Time, nextFollowUpAt *time.Time) (bool, error) {
	if a.status != StatusPitchSent {
		return false, ErrInvalidTransition
	}
	a.sequencePosition++
	a.nextFollowUpAt = utc(nextFollowUpAt)
	a.Touch(sentAt)
	a.AddDomainEvent(NewFollowUpSent(a, sentAt))
	return true, nil
}

// PostponeFollowUp moves the next follow-up check to at.
func (a *Attempt) PostponeFollowUp(at, now time.Time) (bool, error) {
	if a.status != StatusPitchSent {
		return false, ErrInvalidTransition
	}
	next := at.UTC()
	if a.nextFollowUpAt != nil && a.nextFollowUpAt.Equal(next) {
		return false, nil
	}
	a.nextFollowUpAt = &next
	a.Touch(now)
	return true, nil
}

// MarkReplied ends the sequence because the candidate answered.
func (a *Attempt) MarkReplied(now time.Time) (bool, error) {
	return a.moveTo(StatusReplied, now)
}

// MarkNoResponse ends an exhausted sequence.
func (a *Attempt) MarkNoResponse(now time.Time) (bool, error) {
	return a.moveTo(StatusNoResponse, now)
}

// MarkBounced ends the attempt because the provider could not deliver.
func (a *Attempt) MarkBounced(reason string, now time.Time) (bool, error) {
	if a.status == StatusBounced {
		return false, nil
	}
	if !a.status.CanMoveTo(StatusBounced) {
		return false, ErrInvalidTransition
	}
	a.bounceReason = strings.TrimSpace(reason)
	return a.moveTo(StatusBounced, now)
}

// RecordDeliveryStatus keeps the latest delivery ping. It never changes the
// status.
func (a *Attempt) RecordDeliveryStatus(status string, now time.Time) (bool, error) {
	status = strings.TrimSpace(status)
	if status == "" || status == a.lastDeliveryStatus {
		return false, nil
	}
	a.lastDeliveryStatus = status
	a.Touch(now)
	return true, nil
}

func utc(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := t.UTC()
	return &v
}

// AttemptState carries persisted attempt fields.
type AttemptState struct {
	ID                  uuid.UUID
	TenantID            uuid.UUID
	CandidateExternalID string
	CandidateName       string
	CampaignRef         string
	JobRef              string
	Status              Status
	ConversationID      *uuid.UUID
	SequencePosition    int
	PitchDueAt          *time.Time
	PitchSentAt         *time.Time
	NextFollowUpAt      *time.Time
	LastDeliveryStatus  string
	BounceReason        string
	ClosedAt            *time.Time
	Version             int
	CreatedAt           time.Time
	UpdatedAt           time.Time
}

// RehydrateAttempt recreates an attempt from persisted state.
func RehydrateAttempt(s AttemptState) *Attempt {
	entity := sharedDomain.RehydrateBaseEntity(s.ID, s.CreatedAt, s.UpdatedAt)
	return &Attempt{
		BaseAggregateRoot:   sharedDomain.RehydrateBaseAggregateRoot(entity, s.Version),
		tenantID:            s.TenantID,
		candidateExternalID: s.CandidateExternalID,
		candidateName:       s.CandidateName,
		campaignRef:         s.CampaignRef,
		jobRef:              s.JobRef,
		status:              s.Status,
		conversationID:      s.ConversationID,
		sequencePosition:    s.SequencePosition,
		pitchDueAt:          s.PitchDueAt,
		pitchSentAt:         s.PitchSentAt,
		nextFollowUpAt:      s.NextFollowUpAt,
		lastDeliveryStatus:  s.LastDeliveryStatus,
		bounceReason:        s.BounceReason,
		closedAt:            s.ClosedAt,
	}
}
