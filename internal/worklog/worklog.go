package worklog

import (
	"errors"
	"strings"
	"time"
)

// Source tags how an entry came to be written.
type Source string

const (
	// SourceManual marks entries written by direct user action.
	SourceManual Source = "manual"
	// SourceWorkerReservation marks entries the scheduler wrote on the
	// user's behalf when a reservation interrupted an open interval.
	SourceWorkerReservation Source = "worker_reservation"
)

// ErrNonPositiveDuration rejects entries that would record a zero or
// negative interval; such entries are never written.
var ErrNonPositiveDuration = errors.New("worklog: duration must be positive")

// Entry is one completed work interval. Entries are immutable once written.
type Entry struct {
	ID        string    `json:"id,omitempty"`
	UserID    string    `json:"user_id"`
	UserName  string    `json:"user_name,omitempty"`
	Task      string    `json:"task"`
	GoalID    string    `json:"goal_id,omitempty"`
	GoalTitle string    `json:"goal_title,omitempty"`
	Date      string    `json:"date"` // YYYY-MM-DD of the interval's end
	StartTime time.Time `json:"start_time"`
	EndTime   time.Time `json:"end_time"`
	Duration  int64     `json:"duration"` // seconds, always end - start
	Memo      string    `json:"memo,omitempty"`
	Source    Source    `json:"source"`
}

func (e Entry) Validate() error {
	if strings.TrimSpace(e.UserID) == "" {
		return errors.New("user_id is required")
	}
	if strings.TrimSpace(e.Task) == "" {
		return errors.New("task is required")
	}
	if e.StartTime.IsZero() || e.EndTime.IsZero() {
		return errors.New("start_time and end_time are required")
	}
	if e.Duration != int64(e.EndTime.Sub(e.StartTime)/time.Second) {
		return errors.New("duration does not match the interval")
	}
	if e.Duration <= 0 {
		return ErrNonPositiveDuration
	}
	return nil
}

// CloseInterval builds the entry for an interval running from start to end.
// The entry is dated by the day the interval closed, so a session crossing
// midnight lands on the day the work finished. The caller is expected to
// drop ErrNonPositiveDuration results.
func CloseInterval(userID, userName, task, goalID, goalTitle string, start, end time.Time, memo string, src Source) (Entry, error) {
	e := Entry{
		UserID:    userID,
		UserName:  userName,
		Task:      task,
		GoalID:    goalID,
		GoalTitle: goalTitle,
		Date:      end.Format("2006-01-02"),
		StartTime: start,
		EndTime:   end,
		Duration:  int64(end.Sub(start) / time.Second),
		Memo:      memo,
		Source:    src,
	}
	if err := e.Validate(); err != nil {
		return Entry{}, err
	}
	return e, nil
}
