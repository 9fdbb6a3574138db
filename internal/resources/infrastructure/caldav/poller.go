// Package caldav polls a CalDAV calendar for bookings made through shared
// scheduling links and hands them to the resource rotator.
package caldav

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/emersion/go-ical"
	"github.com/emersion/go-webdav"
	"github.com/emersion/go-webdav/caldav"
	"github.com/felixgeelhaar/talentreach/internal/resources/application/services"
	"github.com/felixgeelhaar/talentreach/internal/resources/domain"
	sharedDomain "github.com/felixgeelhaar/talentreach/internal/shared/domain"
	"github.com/google/uuid"
)

// lookahead bounds how far into the future booked slots are fetched.
const lookahead = 60 * 24 * time.Hour

// Config configures the poller.
type Config struct {
	BaseURL      string
	Username     string
	Password     string
	CalendarPath string
	Interval     time.Duration
	Window       time.Duration
}

// BookingConfirmer credits a booking to an assignment.
type BookingConfirmer interface {
	ConfirmBooking(ctx context.Context, tenantID uuid.UUID, booking domain.Booking) (services.ConfirmResult, error)
}

type calendarQuerier interface {
	QueryCalendar(ctx context.Context, calendar string, query *caldav.CalendarQuery) ([]caldav.CalendarObject, error)
}

// Poller turns calendar events into bookings.
type Poller struct {
	client    calendarQuerier
	path      string
	confirmer BookingConfirmer
	tenantID  uuid.UUID
	interval  time.Duration
	window    time.Duration
	clock     sharedDomain.Clock
	logger    *slog.Logger

	mu   sync.Mutex
	seen map[string]time.Time
}

// NewPoller connects to the CalDAV server with basic auth.
func NewPoller(cfg Config, confirmer BookingConfirmer, tenantID uuid.UUID, clock sharedDomain.Clock, logger *slog.Logger) (*Poller, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("caldav base url is required")
	}
	httpClient := &http.Client{Timeout: 30 * time.Second}
	client, err := caldav.NewClient(webdav.HTTPClientWithBasicAuth(httpClient, cfg.Username, cfg.Password), cfg.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to create caldav client: %w", err)
	}
	return newPoller(client, cfg, confirmer, tenantID, clock, logger), nil
}

func newPoller(client calendarQuerier, cfg Config, confirmer BookingConfirmer, tenantID uuid.UUID, clock sharedDomain.Clock, logger *slog.Logger) *Poller {
	if cfg.Interval <= 0 {
		cfg.Interval = 5 * time.Minute
	}
	if cfg.Window <= 0 {
		cfg.Window = domain.DefaultMatchWindow
	}
	if clock == nil {
		clock = sharedDomain.SystemClock{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Poller{
		client:    client,
		path:      cfg.CalendarPath,
		confirmer: confirmer,
		tenantID:  tenantID,
		interval:  cfg.Interval,
		window:    cfg.Window,
		clock:     clock,
		logger:    logger.With("component", "caldav_poller"),
		seen:      make(map[string]time.Time),
	}
}

// Run polls until ctx is canceled.
func (p *Poller) Run(ctx context.Context) error {
	p.logger.Info("caldav poller started", "interval", p.interval, "calendar", p.path)

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		if _, err := p.PollOnce(ctx); err != nil && ctx.Err() == nil {
			p.logger.Error("caldav poll failed", "error", err)
		}
		select {
		case <-ctx.Done():
			p.logger.Info("caldav poller stopped")
			return nil
		case <-ticker.C:
		}
	}
}

// PollOnce fetches events once and confirms the new ones. It returns how
// many bookings were confirmed.
func (p *Poller) PollOnce(ctx context.Context) (int, error) {
	now := p.clock.Now()
	objects, err := p.client.QueryCalendar(ctx, p.path, eventQuery(now.Add(-p.window), now.Add(lookahead)))
	if err != nil {
		return 0, fmt.Errorf("failed to query calendar: %w", err)
	}

	confirmed := 0
	for i := range objects {
		booking, ok := parseBooking(&objects[i])
		if !ok || p.alreadySeen(booking.ExternalEventID) {
			continue
		}

		result, err := p.confirmer.ConfirmBooking(ctx, p.tenantID, booking)
		if err != nil {
			p.logger.Warn("booking confirmation failed", "booking_event_id", booking.ExternalEventID, "error", err)
			continue
		}
		p.markSeen(booking.ExternalEventID, now)
		if result.Outcome == services.ConfirmOutcomeConfirmed {
			confirmed++
		}
	}
	p.prune(now)
	return confirmed, nil
}

func (p *Poller) alreadySeen(uid string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	_, ok := p.seen[uid]
	return ok
}

func (p *Poller) markSeen(uid string, at time.Time) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.seen[uid] = at
}

func (p *Poller) prune(now time.Time) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for uid, at := range p.seen {
		if now.Sub(at) > p.window+lookahead {
			delete(p.seen, uid)
		}
	}
}

func eventQuery(start, end time.Time) *caldav.CalendarQuery {
	return &caldav.CalendarQuery{
		CompRequest: caldav.CalendarCompRequest{
			Name:  "VCALENDAR",
			Props: []string{"VERSION"},
			Comps: []caldav.CalendarCompRequest{
				{
					Name:  "VEVENT",
					Props: []string{"UID", "SUMMARY", "DTSTART", "URL", "LOCATION", "DESCRIPTION", "ORGANIZER", "ATTENDEE"},
				},
			},
		},
		CompFilter: caldav.CompFilter{
			Name: "VCALENDAR",
			Comps: []caldav.CompFilter{
				{Name: "VEVENT", Start: start, End: end},
			},
		},
	}
}

// parseBooking reads the first VEVENT of an object. The invitee is the
// first attendee that is not the organizer, falling back to the summary.
func parseBooking(obj *caldav.CalendarObject) (domain.Booking, bool) {
	if obj == nil || obj.Data == nil {
		return domain.Booking{}, false
	}

	for _, child := range obj.Data.Children {
		if child.Name != ical.CompEvent {
			continue
		}

		var booking domain.Booking
		booking.ExternalEventID = propValue(child, ical.PropUID)
		if booking.ExternalEventID == "" {
			return domain.Booking{}, false
		}

		booking.InviteeName = inviteeName(child)
		if booking.InviteeName == "" {
			booking.InviteeName = propValue(child, ical.PropSummary)
		}

		for _, name := range []string{ical.PropURL, ical.PropLocation, ical.PropDescription} {
			if link := firstLink(propValue(child, name)); link != "" {
				booking.ResourceURL = link
				booking.AssignmentID = domain.AssignmentRefFromURL(link)
				break
			}
		}

		event := &ical.Event{Component: child}
		if start, err := event.DateTimeStart(time.UTC); err == nil && !start.IsZero() {
			booking.ScheduledAt = &start
		}
		return booking, true
	}
	return domain.Booking{}, false
}

func inviteeName(c *ical.Component) string {
	organizer := ""
	if org := c.Props.Get(ical.PropOrganizer); org != nil {
		organizer = strings.ToLower(org.Value)
	}
	for _, attendee := range c.Props[ical.PropAttendee] {
		if strings.ToLower(attendee.Value) == organizer {
			continue
		}
		if cn := attendee.Params.Get(ical.ParamCommonName); cn != "" {
			return cn
		}
	}
	return ""
}

func propValue(c *ical.Component, name string) string {
	if prop := c.Props.Get(name); prop != nil {
		return strings.TrimSpace(prop.Value)
	}
	return ""
}

func firstLink(text string) string {
	for _, field := range strings.Fields(text) {
		if strings.HasPrefix(field, "https://") || strings.HasPrefix(field, "http://") {
			return field
		}
	}
	return ""
}
