package client

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"kintai/internal/status"
	"kintai/internal/worklog"
)

// Actions performs the user-initiated operations: start or change a task,
// stop for the day, start a break, return from one. Each writes the whole
// status record through the gateway with last_updated_by=user and mirrors
// the result into the local cache, closing the open interval into the work
// log the same way the scheduler does.
type Actions struct {
	engine *Engine
	gw     Gateway
	log    zerolog.Logger
}

func NewActions(engine *Engine, gw Gateway, log zerolog.Logger) *Actions {
	return &Actions{engine: engine, gw: gw, log: log}
}

// StartTask begins or changes the current task.
func (a *Actions) StartTask(ctx context.Context, task, goalID, goalTitle string) error {
	name := strings.TrimSpace(task)
	if name == "" {
		return errors.New("task is required")
	}
	now := time.Now()
	if err := a.closeOpenInterval(ctx, now, ""); err != nil {
		return err
	}

	start := now
	st := &status.WorkStatus{
		UserID:           a.engine.userID,
		UserName:         a.engine.userName,
		IsWorking:        true,
		CurrentTask:      name,
		CurrentGoalID:    strings.TrimSpace(goalID),
		CurrentGoalTitle: strings.TrimSpace(goalTitle),
		StartTime:        &start,
		UpdatedAt:        now,
		LastUpdatedBy:    status.UpdatedByUser,
	}
	if err := a.gw.WriteStatus(ctx, st); err != nil {
		return err
	}
	a.engine.cache.SetWorking(st.CurrentTask, st.CurrentGoalID, st.CurrentGoalTitle, start, nil)
	a.engine.render()
	return nil
}

// Stop checks the user out for the day and cancels their reservations; a
// deliberate checkout makes the scheduled ones moot.
func (a *Actions) Stop(ctx context.Context, memo string) error {
	if err := a.stop(ctx, memo, false); err != nil {
		return err
	}
	a.cancelReservations(ctx)
	return nil
}

func (a *Actions) stop(ctx context.Context, memo string, needsCorrection bool) error {
	now := time.Now()
	if err := a.closeOpenInterval(ctx, now, memo); err != nil {
		return err
	}
	st := &status.WorkStatus{
		UserID:                  a.engine.userID,
		UserName:                a.engine.userName,
		IsWorking:               false,
		UpdatedAt:               now,
		LastUpdatedBy:           status.UpdatedByUser,
		NeedsCheckoutCorrection: needsCorrection,
	}
	if err := a.gw.WriteStatus(ctx, st); err != nil {
		return err
	}
	a.engine.cache.Clear()
	a.engine.render()
	return nil
}

// StartBreak snapshots the current task and switches onto the break marker.
func (a *Actions) StartBreak(ctx context.Context) error {
	cur := a.engine.cache.Snapshot()
	if !cur.IsWorking {
		return errors.New("not working")
	}
	if cur.OnBreak() {
		return errors.New("already on break")
	}
	now := time.Now()
	if err := a.closeOpenInterval(ctx, now, ""); err != nil {
		return err
	}

	pre := &status.PreBreakTask{Task: cur.Task, GoalID: cur.GoalID, GoalTitle: cur.GoalTitle}
	start := now
	st := &status.WorkStatus{
		UserID:        a.engine.userID,
		UserName:      a.engine.userName,
		IsWorking:     true,
		CurrentTask:   status.BreakMarker,
		StartTime:     &start,
		PreBreakTask:  pre,
		UpdatedAt:     now,
		LastUpdatedBy: status.UpdatedByUser,
	}
	if err := a.gw.WriteStatus(ctx, st); err != nil {
		return err
	}
	a.engine.cache.SetWorking(status.BreakMarker, "", "", start, pre)
	a.engine.render()
	return nil
}

// EndBreak returns to the pre-break task. A missing or corrupt snapshot
// falls back to a checkout rather than leaving the user in limbo.
func (a *Actions) EndBreak(ctx context.Context) error {
	cur := a.engine.cache.Snapshot()
	if !cur.OnBreak() {
		return errors.New("not on break")
	}
	pre := cur.PreBreak
	if pre == nil || strings.TrimSpace(pre.Task) == "" {
		a.log.Warn().Str("user", a.engine.userID).Msg("client: pre-break task missing, checking out instead")
		return a.stop(ctx, "", false)
	}
	return a.StartTask(ctx, pre.Task, pre.GoalID, pre.GoalTitle)
}

// closeOpenInterval writes the work log entry for whatever is running.
// Non-positive intervals are dropped silently, matching the scheduler.
func (a *Actions) closeOpenInterval(ctx context.Context, end time.Time, memo string) error {
	cur := a.engine.cache.Snapshot()
	if !cur.IsWorking || strings.TrimSpace(cur.Task) == "" || cur.StartTime.IsZero() {
		return nil
	}
	entry, err := worklog.CloseInterval(
		a.engine.userID, a.engine.userName, cur.Task, cur.GoalID, cur.GoalTitle,
		cur.StartTime, end, memo, worklog.SourceManual,
	)
	if errors.Is(err, worklog.ErrNonPositiveDuration) {
		return nil
	}
	if err != nil {
		return err
	}
	if err := a.gw.AppendLog(ctx, entry); err != nil {
		return err
	}
	return nil
}

func (a *Actions) cancelReservations(ctx context.Context) {
	list, err := a.gw.Reservations(ctx, a.engine.userID)
	if err != nil {
		a.log.Warn().Err(err).Msg("client: listing reservations for cancel failed")
		return
	}
	for _, res := range list {
		if err := a.gw.DeleteReservation(ctx, res.ID); err != nil {
			a.log.Warn().Err(err).Str("reservation", res.ID).Msg("client: cancel failed")
		}
	}
}
