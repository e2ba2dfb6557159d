package scheduler

import (
	"strings"
	"time"

	"kintai/internal/reservation"
	"kintai/internal/status"
	"kintai/internal/worklog"
)

const autoMemo = "auto-executed by reservation"

// outcome is what executing one reservation decided, recorded by the
// transition closure so the runner can log and append the closed interval
// after the transaction commits.
type outcome struct {
	decision reservation.Decision
	closed   *worklog.Entry
	skipped  string
}

// transition implements the due-reservation state change. It runs on the
// fresh copies re-read inside the store transaction.
//
// Break and stop have distinct bodies: a break switches the user onto the
// break marker with the prior task snapshotted into pre_break_task, a stop
// checks the user out with every working field cleared.
func transition(res reservation.Reservation, cur *status.WorkStatus, execTime time.Time) outcome {
	if res.ScheduledTime.After(execTime) {
		// Not due yet despite the lookahead query; reconsider next cycle.
		return outcome{skipped: "not yet due", decision: reservation.Decision{Disposition: reservation.DispositionNone}}
	}

	working := cur != nil && cur.IsWorking && strings.TrimSpace(cur.CurrentTask) != "" && cur.StartTime != nil

	if res.Action == reservation.ActionBreak {
		// A break reservation is a daily repeating intent. When the user
		// is already on break or not working there is nothing to switch;
		// roll it forward to tomorrow and leave it reserved.
		if cur.OnBreak() || !working {
			return outcome{skipped: "user not on a task", decision: reservation.Decision{Disposition: reservation.DispositionRollForward}}
		}
	}

	var closed *worklog.Entry
	if working && cur.CurrentTask != status.BreakMarker {
		entry, err := worklog.CloseInterval(
			cur.UserID, cur.UserName, cur.CurrentTask, cur.CurrentGoalID, cur.CurrentGoalTitle,
			*cur.StartTime, execTime, autoMemo, worklog.SourceWorkerReservation,
		)
		// Non-positive intervals are dropped, the transition still applies.
		if err == nil {
			closed = &entry
		}
	}

	next := &status.WorkStatus{
		UserID:        res.UserID,
		UserName:      res.UserName,
		UpdatedAt:     execTime,
		LastUpdatedBy: status.UpdatedByWorker,
	}
	if cur != nil && strings.TrimSpace(cur.UserName) != "" {
		next.UserName = cur.UserName
	}

	switch res.Action {
	case reservation.ActionBreak:
		start := execTime
		next.IsWorking = true
		next.CurrentTask = status.BreakMarker
		next.StartTime = &start
		next.PreBreakTask = &status.PreBreakTask{
			Task:      cur.CurrentTask,
			GoalID:    cur.CurrentGoalID,
			GoalTitle: cur.CurrentGoalTitle,
		}
	case reservation.ActionStop:
		// Checkout: not working, every working field cleared together,
		// pre-break residue included.
	}

	return outcome{
		closed: closed,
		decision: reservation.Decision{
			Status:      next,
			Disposition: reservation.DispositionExecuted,
		},
	}
}
