package domain

import (
	"net/url"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
)

// DefaultMatchWindow bounds how old an assignment may be and still be
// credited with a booking.
const DefaultMatchWindow = 72 * time.Hour

// minMatchLength keeps one- and two-letter names from matching everyone.
const minMatchLength = 3

// Booking is a calendar event reported by the booking provider. It carries
// no internal id, only what the invitee typed and the link they used.
type Booking struct {
	ExternalEventID string
	InviteeName     string
	ResourceURL     string
	ScheduledAt     *time.Time
	// AssignmentID is set when the provider echoes an id embedded in the
	// resource link. It takes precedence over name matching.
	AssignmentID *uuid.UUID
}

// SelectResource picks the active resource with the fewest assignments.
// Ties go to the least recently assigned, never-assigned first, then to the
// lowest id. Returns nil when no resource is active.
func SelectResource(resources []*Resource) *Resource {
	var best *Resource
	for _, r := range resources {
		if !r.IsActive() {
			continue
		}
		if best == nil || lessLoaded(r, best) {
			best = r
		}
	}
	return best
}

func lessLoaded(a, b *Resource) bool {
	if a.AssignmentCount() != b.AssignmentCount() {
		return a.AssignmentCount() < b.AssignmentCount()
	}
	la, lb := a.LastAssignedAt(), b.LastAssignedAt()
	switch {
	case la == nil && lb != nil:
		return true
	case la != nil && lb == nil:
		return false
	case la != nil && lb != nil && !la.Equal(*lb):
		return la.Before(*lb)
	}
	return a.ID().String() < b.ID().String()
}

// MatchBooking finds the unconfirmed assignment a booking belongs to.
//
// Names are compared after NormalizeName; either side may contain the other
// as a run of whole words, so "Ann" never matches "Joanna". Both must be at
// least three characters. Only assignments sent within
// window before now are considered, most recent first. It returns nil rather
// than guess when nothing qualifies.
func MatchBooking(candidates []*Assignment, booking Booking, window time.Duration, now time.Time) *Assignment {
	if window <= 0 {
		window = DefaultMatchWindow
	}
	cutoff := now.Add(-window)

	open := make([]*Assignment, 0, len(candidates))
	for _, a := range candidates {
		if a.IsConfirmed() || a.SentAt().Before(cutoff) || a.SentAt().After(now) {
			continue
		}
		open = append(open, a)
	}

	if booking.AssignmentID != nil {
		for _, a := range open {
			if a.ID() == *booking.AssignmentID {
				return a
			}
		}
	}

	invitee := NormalizeName(booking.InviteeName)
	if len(invitee) < minMatchLength {
		return nil
	}

	sort.SliceStable(open, func(i, j int) bool {
		return open[i].SentAt().After(open[j].SentAt())
	})
	for _, a := range open {
		name := NormalizeName(a.CandidateName())
		if len(name) < minMatchLength {
			continue
		}
		if containsWords(name, invitee) || containsWords(invitee, name) {
			return a
		}
	}
	return nil
}

// containsWords reports whether the normalized name part occurs in whole as
// a word sequence of whole.
func containsWords(whole, part string) bool {
	return strings.Contains(" "+whole+" ", " "+part+" ")
}

// NormalizeName lowercases, trims and collapses inner whitespace.
func NormalizeName(name string) string {
	return strings.Join(strings.Fields(strings.ToLower(name)), " ")
}

// AssignmentRefParam is the query parameter a booking link may carry to
// identify the assignment it was sent for.
const AssignmentRefParam = "ref"

// AssignmentRefFromURL extracts the assignment id embedded in a booking link,
// or nil when there is none.
func AssignmentRefFromURL(raw string) *uuid.UUID {
	u, err := url.Parse(raw)
	if err != nil {
		return nil
	}
	id, err := uuid.Parse(u.Query().Get(AssignmentRefParam))
	if err != nil {
		return nil
	}
	return &id
}
