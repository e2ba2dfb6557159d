package reservation

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestNextOccurrence(t *testing.T) {
	now := time.Date(2026, 8, 30, 14, 30, 0, 0, time.UTC)

	ahead, err := NextOccurrence(18, 0, now)
	require.NoError(t, err)
	require.Equal(t, time.Date(2026, 8, 30, 18, 0, 0, 0, time.UTC), ahead)

	// Already passed today; lands on tomorrow.
	behind, err := NextOccurrence(9, 0, now)
	require.NoError(t, err)
	require.Equal(t, time.Date(2026, 8, 31, 9, 0, 0, 0, time.UTC), behind)

	// The exact current minute counts as passed.
	same, err := NextOccurrence(14, 30, now)
	require.NoError(t, err)
	require.Equal(t, time.Date(2026, 8, 31, 14, 30, 0, 0, time.UTC), same)

	_, err = NextOccurrence(24, 0, now)
	require.Error(t, err)
}

func TestParseTimeOfDay(t *testing.T) {
	h, m, err := ParseTimeOfDay(" 18:30 ")
	require.NoError(t, err)
	require.Equal(t, 18, h)
	require.Equal(t, 30, m)

	_, _, err = ParseTimeOfDay("6pm")
	require.Error(t, err)
	_, _, err = ParseTimeOfDay("")
	require.Error(t, err)
}

func TestStopIDIsDeterministic(t *testing.T) {
	require.Equal(t, StopID("u1"), StopID(" u1 "))
	require.Equal(t, "stop_u1", StopID("u1"))
}

func TestBreakIDsDoNotCollide(t *testing.T) {
	a := NewBreakID("u1")
	b := NewBreakID("u1")
	require.NotEqual(t, a, b)
	require.True(t, strings.HasPrefix(a, "break_u1_"))
}

func TestReservationValidate(t *testing.T) {
	valid := Reservation{
		ID:            StopID("u1"),
		UserID:        "u1",
		Action:        ActionStop,
		ScheduledTime: time.Date(2026, 8, 30, 18, 0, 0, 0, time.UTC),
		Status:        StateReserved,
	}
	require.NoError(t, valid.Validate())

	missing := valid
	missing.UserID = ""
	require.Error(t, missing.Validate())

	badAction := valid
	badAction.Action = "nap"
	require.Error(t, badAction.Validate())

	noTime := valid
	noTime.ScheduledTime = time.Time{}
	require.Error(t, noTime.Validate())
}
