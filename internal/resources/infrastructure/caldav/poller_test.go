package caldav

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/emersion/go-ical"
	"github.com/emersion/go-webdav/caldav"
	"github.com/felixgeelhaar/talentreach/internal/resources/application/services"
	"github.com/felixgeelhaar/talentreach/internal/resources/domain"
	sharedDomain "github.com/felixgeelhaar/talentreach/internal/shared/domain"
	"github.com/felixgeelhaar/talentreach/pkg/observability"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

var testNow = time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)

type fakeQuerier struct {
	objects []caldav.CalendarObject
	err     error
	queries []*caldav.CalendarQuery
}

func (f *fakeQuerier) QueryCalendar(_ context.Context, _ string, q *caldav.CalendarQuery) ([]caldav.CalendarObject, error) {
	f.queries = append(f.queries, q)
	return f.objects, f.err
}

type mockConfirmer struct {
	mock.Mock
}

func (m *mockConfirmer) ConfirmBooking(ctx context.Context, tenantID uuid.UUID, booking domain.Booking) (services.ConfirmResult, error) {
	args := m.Called(ctx, tenantID, booking)
	return args.Get(0).(services.ConfirmResult), args.Error(1)
}

func bookingObject(uid, organizer, invitee, summary, location string, start time.Time) caldav.CalendarObject {
	event := ical.NewEvent()
	event.Props.SetText(ical.PropUID, uid)
	event.Props.SetDateTime(ical.PropDateTimeStart, start)
	if summary != "" {
		event.Props.SetText(ical.PropSummary, summary)
	}
	if location != "" {
		event.Props.SetText(ical.PropLocation, location)
	}
	if organizer != "" {
		org := ical.NewProp(ical.PropOrganizer)
		org.Value = organizer
		event.Props.Add(org)
	}
	if invitee != "" {
		att := ical.NewProp(ical.PropAttendee)
		att.Value = "mailto:invitee@example.com"
		att.Params.Set(ical.ParamCommonName, invitee)
		event.Props.Add(att)
	}

	cal := ical.NewCalendar()
	cal.Children = append(cal.Children, event.Component)
	return caldav.CalendarObject{Path: "/cal/" + uid + ".ics", Data: cal}
}

func TestParseBooking(t *testing.T) {
	ref := uuid.New()
	start := testNow.Add(48 * time.Hour)

	t.Run("attendee name and link", func(t *testing.T) {
		obj := bookingObject("evt-1", "mailto:alex@example.com", "Jane Doe", "Intro call",
			"Join at https://cal.example.com/alex?ref="+ref.String(), start)

		booking, ok := parseBooking(&obj)
		require.True(t, ok)
		assert.Equal(t, "evt-1", booking.ExternalEventID)
		assert.Equal(t, "Jane Doe", booking.InviteeName)
		assert.Equal(t, "https://cal.example.com/alex?ref="+ref.String(), booking.ResourceURL)
		require.NotNil(t, booking.AssignmentID)
		assert.Equal(t, ref, *booking.AssignmentID)
		require.NotNil(t, booking.ScheduledAt)
		assert.True(t, start.Equal(*booking.ScheduledAt))
	})

	t.Run("summary fallback", func(t *testing.T) {
		obj := bookingObject("evt-2", "", "", "Sam Lee", "", start)

		booking, ok := parseBooking(&obj)
		require.True(t, ok)
		assert.Equal(t, "Sam Lee", booking.InviteeName)
		assert.Empty(t, booking.ResourceURL)
		assert.Nil(t, booking.AssignmentID)
	})

	t.Run("nil and empty objects", func(t *testing.T) {
		_, ok := parseBooking(nil)
		assert.False(t, ok)
		_, ok = parseBooking(&caldav.CalendarObject{})
		assert.False(t, ok)
	})
}

func TestPoller_PollOnce(t *testing.T) {
	tenant := uuid.New()
	querier := &fakeQuerier{objects: []caldav.CalendarObject{
		bookingObject("evt-1", "", "Jane Doe", "", "", testNow.Add(24*time.Hour)),
		bookingObject("evt-2", "", "Mark Smith", "", "", testNow.Add(24*time.Hour)),
	}}
	confirmer := &mockConfirmer{}
	confirmer.On("ConfirmBooking", mock.Anything, tenant, mock.MatchedBy(func(b domain.Booking) bool { return b.ExternalEventID == "evt-1" })).
		Return(services.ConfirmResult{Outcome: services.ConfirmOutcomeConfirmed}, nil).Once()
	confirmer.On("ConfirmBooking", mock.Anything, tenant, mock.MatchedBy(func(b domain.Booking) bool { return b.ExternalEventID == "evt-2" })).
		Return(services.ConfirmResult{Outcome: services.ConfirmOutcomeNoMatch}, nil).Once()

	poller := newPoller(querier, Config{CalendarPath: "/cal/"}, confirmer, tenant,
		sharedDomain.NewFixedClock(testNow), observability.DiscardLogger())

	confirmed, err := poller.PollOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, confirmed)

	confirmed, err = poller.PollOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, confirmed, "seen events are not confirmed twice")

	confirmer.AssertExpectations(t)
	require.Len(t, querier.queries, 2)
	assert.True(t, testNow.Add(-domain.DefaultMatchWindow).Equal(querier.queries[0].CompFilter.Comps[0].Start))
}

func TestPoller_RetriesAfterConfirmError(t *testing.T) {
	tenant := uuid.New()
	querier := &fakeQuerier{objects: []caldav.CalendarObject{
		bookingObject("evt-1", "", "Jane Doe", "", "", testNow),
	}}
	confirmer := &mockConfirmer{}
	confirmer.On("ConfirmBooking", mock.Anything, tenant, mock.Anything).
		Return(services.ConfirmResult{}, errors.New("database is locked")).Once()
	confirmer.On("ConfirmBooking", mock.Anything, tenant, mock.Anything).
		Return(services.ConfirmResult{Outcome: services.ConfirmOutcomeConfirmed}, nil).Once()

	poller := newPoller(querier, Config{}, confirmer, tenant, sharedDomain.NewFixedClock(testNow), observability.DiscardLogger())

	n, err := poller.PollOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, n)

	n, err = poller.PollOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	confirmer.AssertExpectations(t)
}

func TestPoller_QueryError(t *testing.T) {
	poller := newPoller(&fakeQuerier{err: errors.New("401 unauthorized")}, Config{}, &mockConfirmer{}, uuid.New(), nil, observability.DiscardLogger())

	_, err := poller.PollOnce(context.Background())
	assert.Error(t, err)
}
