package reservation

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Action is what a reservation does to the user's status when due.
type Action string

const (
	// ActionBreak switches the user onto the break marker task.
	ActionBreak Action = "break"
	// ActionStop checks the user out entirely.
	ActionStop Action = "stop"
)

// State of a reservation. A reservation moves reserved -> executed at most
// once; once executed the scheduler never reinterprets it.
type State string

const (
	StateReserved State = "reserved"
	StateExecuted State = "executed"
)

// Reservation is a user-scheduled, time-of-day-triggered request to
// auto-transition their work status.
type Reservation struct {
	ID            string    `json:"id"`
	UserID        string    `json:"user_id"`
	UserName      string    `json:"user_name,omitempty"`
	Action        Action    `json:"action"`
	ScheduledTime time.Time `json:"scheduled_time"`
	Status        State     `json:"status"`
}

func (r Reservation) Validate() error {
	if strings.TrimSpace(r.ID) == "" {
		return errors.New("id is required")
	}
	if strings.TrimSpace(r.UserID) == "" {
		return errors.New("user_id is required")
	}
	switch r.Action {
	case ActionBreak, ActionStop:
	default:
		return fmt.Errorf("unknown action: %s", r.Action)
	}
	if r.ScheduledTime.IsZero() {
		return errors.New("scheduled_time is required")
	}
	return nil
}

// StopID is the deterministic id for a user's single stop reservation, so
// re-saving replaces rather than duplicates.
func StopID(userID string) string {
	return "stop_" + strings.TrimSpace(userID)
}

// NewBreakID is a time-qualified id for break reservations; a user may hold
// several per day, so ids must not collide on re-save.
func NewBreakID(userID string) string {
	return fmt.Sprintf("break_%s_%s", strings.TrimSpace(userID), uuid.NewString())
}

// NextOccurrence resolves a wall-clock HH:MM into the next time it occurs:
// today if still ahead, otherwise tomorrow.
func NextOccurrence(hour, minute int, now time.Time) (time.Time, error) {
	if hour < 0 || hour > 23 || minute < 0 || minute > 59 {
		return time.Time{}, fmt.Errorf("invalid time of day: %02d:%02d", hour, minute)
	}
	at := time.Date(now.Year(), now.Month(), now.Day(), hour, minute, 0, 0, now.Location())
	if !at.After(now) {
		at = at.AddDate(0, 0, 1)
	}
	return at, nil
}

// ParseTimeOfDay parses "HH:MM".
func ParseTimeOfDay(raw string) (hour, minute int, err error) {
	text := strings.TrimSpace(raw)
	t, err := time.Parse("15:04", text)
	if err != nil {
		return 0, 0, fmt.Errorf("parse time of day %q: expected HH:MM", raw)
	}
	return t.Hour(), t.Minute(), nil
}
