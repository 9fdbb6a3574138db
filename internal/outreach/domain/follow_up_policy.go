package domain

import "time"

// Day is the unit follow-up offsets are configured in.
const Day = 24 * time.Hour

// FollowUpPolicy decides when follow-ups are due after a pitch.
type FollowUpPolicy struct {
	// Offsets are measured from the pitch, in send order.
	Offsets []time.Duration
	// Max caps how many offsets are used. Zero means all of them.
	Max int
	// Grace is how long to wait after the last follow-up before giving up.
	Grace time.Duration
}

// DefaultFollowUpPolicy follows up after 3, 7 and 14 days.
func DefaultFollowUpPolicy() FollowUpPolicy {
	return FollowUpPolicy{
		Offsets: []time.Duration{3 * Day, 7 * Day, 14 * Day},
		Max:     3,
		Grace:   3 * Day,
	}
}

// Steps returns the offsets in use.
func (p FollowUpPolicy) Steps() []time.Duration {
	if p.Max > 0 && p.Max < len(p.Offsets) {
		return p.Offsets[:p.Max]
	}
	return p.Offsets
}

// Exhausted reports whether position follow-ups complete the sequence.
func (p FollowUpPolicy) Exhausted(position int) bool {
	return position >= len(p.Steps())
}

// NextDue returns when the attempt needs attention after position
// follow-ups: the next follow-up, or the final no-response check.
func (p FollowUpPolicy) NextDue(pitchSentAt time.Time, position int) time.Time {
	steps := p.Steps()
	if position < len(steps) {
		return pitchSentAt.Add(steps[position])
	}
	var last time.Duration
	if len(steps) > 0 {
		last = steps[len(steps)-1]
	}
	return pitchSentAt.Add(last + p.Grace)
}
