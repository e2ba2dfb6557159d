package status

import (
	"strings"
	"time"
)

// BreakMarker is the task name a worker-driven break transition writes into
// CurrentTask. Clients and the scheduler compare against it to tell a break
// apart from a regular task.
const BreakMarker = "on break"

// UpdatedBy identifies which side of the system last wrote a status record.
type UpdatedBy string

const (
	UpdatedByUser    UpdatedBy = "user"
	UpdatedByWorker  UpdatedBy = "worker"
	UpdatedByAdmin   UpdatedBy = "admin"
	UpdatedByUnknown UpdatedBy = ""
)

// PreBreakTask is the snapshot of the task a user was on before a break
// transition, kept so the client can offer "return to previous task".
type PreBreakTask struct {
	Task      string `json:"task"`
	GoalID    string `json:"goal_id,omitempty"`
	GoalTitle string `json:"goal_title,omitempty"`
}

// WorkStatus is the single mutable per-user record describing the current
// working/break state. It is owned jointly by the user's own client and the
// reservation scheduler; writers never merge field by field, every write
// replaces the whole record.
type WorkStatus struct {
	UserID   string `json:"user_id"`
	UserName string `json:"user_name,omitempty"`

	IsWorking        bool   `json:"is_working"`
	CurrentTask      string `json:"current_task,omitempty"`
	CurrentGoalID    string `json:"current_goal_id,omitempty"`
	CurrentGoalTitle string `json:"current_goal_title,omitempty"`

	StartTime    *time.Time    `json:"start_time,omitempty"`
	PreBreakTask *PreBreakTask `json:"pre_break_task,omitempty"`

	UpdatedAt     time.Time `json:"updated_at"`
	LastUpdatedBy UpdatedBy `json:"last_updated_by,omitempty"`

	NeedsCheckoutCorrection bool `json:"needs_checkout_correction,omitempty"`
}

// OnBreak reports whether the record describes the break state.
func (s *WorkStatus) OnBreak() bool {
	return s != nil && s.IsWorking && s.CurrentTask == BreakMarker
}

// Valid reports whether the record satisfies the working-state invariant:
// a working record must carry a task and a start time.
func (s *WorkStatus) Valid() bool {
	if s == nil {
		return false
	}
	if !s.IsWorking {
		return true
	}
	return strings.TrimSpace(s.CurrentTask) != "" && s.StartTime != nil && !s.StartTime.IsZero()
}

// WorkerDriven reports whether the record was last written by the scheduler.
// An absent writer tag is treated permissively as worker-driven; records
// written before the tag existed carry none.
func (s *WorkStatus) WorkerDriven() bool {
	if s == nil {
		return false
	}
	return s.LastUpdatedBy == UpdatedByWorker || s.LastUpdatedBy == UpdatedByUnknown
}

// EventTime returns the stable identifier timestamp for a worker-driven
// transition: UpdatedAt when present, otherwise StartTime.
func (s *WorkStatus) EventTime() time.Time {
	if s == nil {
		return time.Time{}
	}
	if !s.UpdatedAt.IsZero() {
		return s.UpdatedAt
	}
	if s.StartTime != nil {
		return *s.StartTime
	}
	return time.Time{}
}
