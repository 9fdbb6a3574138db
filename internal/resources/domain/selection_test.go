package domain

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func rehydrated(id string, active bool, count int, last *time.Time) *Resource {
	return RehydrateResource(uuid.MustParse(id), uuid.Nil, "owner", "https://cal.example.com/"+id, active, count, last, testNow, testNow)
}

func TestSelectResource(t *testing.T) {
	earlier := testNow.Add(-2 * time.Hour)
	later := testNow.Add(-time.Hour)

	idA := "00000000-0000-0000-0000-00000000000a"
	idB := "00000000-0000-0000-0000-00000000000b"
	idC := "00000000-0000-0000-0000-00000000000c"

	tests := []struct {
		name      string
		resources []*Resource
		want      string
	}{
		{
			name:      "fewest assignments wins",
			resources: []*Resource{rehydrated(idA, true, 3, &earlier), rehydrated(idB, true, 1, &later)},
			want:      idB,
		},
		{
			name:      "tie goes to least recently assigned",
			resources: []*Resource{rehydrated(idA, true, 2, &later), rehydrated(idB, true, 2, &earlier)},
			want:      idB,
		},
		{
			name:      "never assigned beats assigned",
			resources: []*Resource{rehydrated(idA, true, 0, &earlier), rehydrated(idB, true, 0, nil)},
			want:      idB,
		},
		{
			name:      "full tie goes to lowest id",
			resources: []*Resource{rehydrated(idC, true, 0, nil), rehydrated(idA, true, 0, nil), rehydrated(idB, true, 0, nil)},
			want:      idA,
		},
		{
			name:      "inactive resources are skipped",
			resources: []*Resource{rehydrated(idA, false, 0, nil), rehydrated(idB, true, 9, &later)},
			want:      idB,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := SelectResource(tt.resources)
			require.NotNil(t, got)
			assert.Equal(t, tt.want, got.ID().String())
		})
	}

	t.Run("no active resource", func(t *testing.T) {
		assert.Nil(t, SelectResource([]*Resource{rehydrated(idA, false, 0, nil)}))
		assert.Nil(t, SelectResource(nil))
	})
}

func TestSelectResource_RoundRobinFairness(t *testing.T) {
	resources := []*Resource{
		rehydrated("00000000-0000-0000-0000-000000000001", true, 0, nil),
		rehydrated("00000000-0000-0000-0000-000000000002", true, 0, nil),
		rehydrated("00000000-0000-0000-0000-000000000003", true, 0, nil),
	}

	at := testNow
	for i := 0; i < 10; i++ {
		at = at.Add(time.Minute)
		SelectResource(resources).RecordAssignment(at)
	}

	counts := []int{resources[0].AssignmentCount(), resources[1].AssignmentCount(), resources[2].AssignmentCount()}
	assert.ElementsMatch(t, []int{4, 3, 3}, counts)
}

func assignmentFor(name string, sentAt time.Time) *Assignment {
	return RehydrateAssignment(uuid.New(), uuid.Nil, uuid.Nil, "cand-"+name, name, nil, sentAt, false, nil, "")
}

func TestMatchBooking(t *testing.T) {
	now := testNow

	t.Run("confirms the recent exact candidate and leaves the older near-miss alone", func(t *testing.T) {
		janeDoe := assignmentFor("Jane Doe", now.Add(-10*time.Hour))
		janeD := assignmentFor("Jane D.", now.Add(-40*time.Hour))

		got := MatchBooking([]*Assignment{janeD, janeDoe}, Booking{InviteeName: "Jane Doe"}, DefaultMatchWindow, now)

		require.NotNil(t, got)
		assert.Equal(t, janeDoe.ID(), got.ID())
	})

	t.Run("most recent wins when both match", func(t *testing.T) {
		older := assignmentFor("Sam Lee", now.Add(-30*time.Hour))
		newer := assignmentFor("Sam Lee", now.Add(-3*time.Hour))

		got := MatchBooking([]*Assignment{older, newer}, Booking{InviteeName: "sam  lee "}, DefaultMatchWindow, now)

		require.NotNil(t, got)
		assert.Equal(t, newer.ID(), got.ID())
	})

	t.Run("first name against full name either direction", func(t *testing.T) {
		a := assignmentFor("Priya", now.Add(-time.Hour))
		got := MatchBooking([]*Assignment{a}, Booking{InviteeName: "Priya Raman"}, DefaultMatchWindow, now)
		assert.Equal(t, a, got)

		b := assignmentFor("Priya Raman", now.Add(-time.Hour))
		got = MatchBooking([]*Assignment{b}, Booking{InviteeName: "PRIYA"}, DefaultMatchWindow, now)
		assert.Equal(t, b, got)
	})

	t.Run("partial words never match", func(t *testing.T) {
		joanna := assignmentFor("Joanna Smith", now.Add(-time.Hour))
		assert.Nil(t, MatchBooking([]*Assignment{joanna}, Booking{InviteeName: "Ann"}, DefaultMatchWindow, now))

		jordan := assignmentFor("Jordan", now.Add(-time.Hour))
		assert.Nil(t, MatchBooking([]*Assignment{jordan}, Booking{InviteeName: "Dan"}, DefaultMatchWindow, now))

		dan := assignmentFor("Dan", now.Add(-time.Hour))
		assert.Nil(t, MatchBooking([]*Assignment{dan}, Booking{InviteeName: "Jordan Blake"}, DefaultMatchWindow, now))
	})

	t.Run("whole words match in either direction", func(t *testing.T) {
		ann := assignmentFor("Ann", now.Add(-time.Hour))
		got := MatchBooking([]*Assignment{ann}, Booking{InviteeName: "Ann Lee"}, DefaultMatchWindow, now)
		assert.Equal(t, ann, got)

		full := assignmentFor("Mary Ann Lee", now.Add(-time.Hour))
		got = MatchBooking([]*Assignment{full}, Booking{InviteeName: "ann lee"}, DefaultMatchWindow, now)
		assert.Equal(t, full, got)
	})

	t.Run("outside window is ignored", func(t *testing.T) {
		a := assignmentFor("Jane Doe", now.Add(-73*time.Hour))
		assert.Nil(t, MatchBooking([]*Assignment{a}, Booking{InviteeName: "Jane Doe"}, DefaultMatchWindow, now))
	})

	t.Run("confirmed assignments are ignored", func(t *testing.T) {
		a := assignmentFor("Jane Doe", now.Add(-time.Hour))
		a.Confirm("evt-0", now)
		assert.Nil(t, MatchBooking([]*Assignment{a}, Booking{InviteeName: "Jane Doe"}, DefaultMatchWindow, now))
	})

	t.Run("short names never match", func(t *testing.T) {
		a := assignmentFor("Jo", now.Add(-time.Hour))
		assert.Nil(t, MatchBooking([]*Assignment{a}, Booking{InviteeName: "Jo"}, DefaultMatchWindow, now))

		b := assignmentFor("Jonathan", now.Add(-time.Hour))
		assert.Nil(t, MatchBooking([]*Assignment{b}, Booking{InviteeName: " j "}, DefaultMatchWindow, now))
	})

	t.Run("no match returns nil", func(t *testing.T) {
		a := assignmentFor("Jane Doe", now.Add(-time.Hour))
		assert.Nil(t, MatchBooking([]*Assignment{a}, Booking{InviteeName: "Mark Smith"}, DefaultMatchWindow, now))
	})

	t.Run("embedded assignment id takes precedence", func(t *testing.T) {
		byName := assignmentFor("Jane Doe", now.Add(-time.Hour))
		byID := assignmentFor("Someone Else", now.Add(-5*time.Hour))
		id := byID.ID()

		got := MatchBooking([]*Assignment{byName, byID}, Booking{InviteeName: "Jane Doe", AssignmentID: &id}, DefaultMatchWindow, now)

		require.NotNil(t, got)
		assert.Equal(t, byID.ID(), got.ID())
	})
}

func TestNormalizeName(t *testing.T) {
	tests := map[string]string{
		"  Jane   Doe ": "jane doe",
		"JANE\tDOE":     "jane doe",
		"Jane D.":       "jane d.",
		"":              "",
	}
	for in, want := range tests {
		t.Run(in, func(t *testing.T) {
			assert.Equal(t, want, NormalizeName(in))
		})
	}
}

func TestAssignmentRefFromURL(t *testing.T) {
	id := uuid.New()

	got := AssignmentRefFromURL("https://cal.example.com/alex?ref=" + id.String())
	require.NotNil(t, got)
	assert.Equal(t, id, *got)

	assert.Nil(t, AssignmentRefFromURL("https://cal.example.com/alex"))
	assert.Nil(t, AssignmentRefFromURL("https://cal.example.com/alex?ref=nope"))
}
