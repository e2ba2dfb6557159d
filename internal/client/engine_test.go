package client

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"kintai/internal/notify"
	"kintai/internal/status"
)

type countingRenderer struct {
	mu     sync.Mutex
	count  int
	last   State
	states []State
}

func (r *countingRenderer) Render(s State) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.count++
	r.last = s
	r.states = append(r.states, s)
}

type countingNotifier struct {
	mu     sync.Mutex
	titles []string
}

func (n *countingNotifier) Notify(_ context.Context, title, _ string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.titles = append(n.titles, title)
	return nil
}

func newTestEngine(t *testing.T, now time.Time) (*Engine, *countingRenderer, *countingNotifier) {
	t.Helper()
	renderer := &countingRenderer{}
	notifier := &countingNotifier{}
	e, err := NewEngine(EngineOptions{
		UserID:   "u1",
		UserName: "Aoi",
		Renderer: renderer,
		Notifier: notifier,
		Logger:   zerolog.Nop(),
	})
	require.NoError(t, err)
	e.now = func() time.Time { return now }
	return e, renderer, notifier
}

func workingSnapshot(task string, start, updated time.Time) *status.WorkStatus {
	return &status.WorkStatus{
		UserID:        "u1",
		IsWorking:     true,
		CurrentTask:   task,
		StartTime:     &start,
		UpdatedAt:     updated,
		LastUpdatedBy: status.UpdatedByUser,
	}
}

func TestApplyIdenticalSnapshotRendersOnce(t *testing.T) {
	now := time.Date(2026, 8, 30, 10, 0, 0, 0, time.UTC)
	e, renderer, _ := newTestEngine(t, now)

	snap := workingSnapshot("write report", now.Add(-time.Hour), now)

	require.True(t, e.Apply(snap))
	require.False(t, e.Apply(snap), "second identical delivery must be a no-op")
	require.Equal(t, 1, renderer.count)
	require.Equal(t, "write report", renderer.last.Task)
}

func TestApplyIgnoresOtherUsers(t *testing.T) {
	now := time.Date(2026, 8, 30, 10, 0, 0, 0, time.UTC)
	e, renderer, _ := newTestEngine(t, now)

	snap := workingSnapshot("write report", now.Add(-time.Hour), now)
	snap.UserID = "someone-else"

	require.False(t, e.Apply(snap))
	require.Zero(t, renderer.count)
}

func TestApplyDropsInvalidWorkingSnapshot(t *testing.T) {
	now := time.Date(2026, 8, 30, 10, 0, 0, 0, time.UTC)
	e, renderer, _ := newTestEngine(t, now)

	snap := &status.WorkStatus{
		UserID:        "u1",
		IsWorking:     true,
		UpdatedAt:     now,
		LastUpdatedBy: status.UpdatedByUser,
	}

	require.False(t, e.Apply(snap))
	require.Zero(t, renderer.count)
	require.False(t, e.Cache().Snapshot().IsWorking)
}

func TestApplyTaskChangeRerenders(t *testing.T) {
	now := time.Date(2026, 8, 30, 10, 0, 0, 0, time.UTC)
	e, renderer, _ := newTestEngine(t, now)

	start := now.Add(-time.Hour)
	require.True(t, e.Apply(workingSnapshot("write report", start, now)))
	require.True(t, e.Apply(workingSnapshot("review code", start, now.Add(time.Minute))))
	require.Equal(t, 2, renderer.count)
	require.Equal(t, "review code", renderer.last.Task)
}

func TestApplyClearDropsEverything(t *testing.T) {
	now := time.Date(2026, 8, 30, 10, 0, 0, 0, time.UTC)
	e, renderer, _ := newTestEngine(t, now)

	start := now.Add(-time.Hour)
	snap := workingSnapshot("write report", start, now)
	snap.PreBreakTask = &status.PreBreakTask{Task: "old"}
	require.True(t, e.Apply(snap))

	off := &status.WorkStatus{UserID: "u1", UpdatedAt: now, LastUpdatedBy: status.UpdatedByUser}
	require.True(t, e.Apply(off))

	got := e.Cache().Snapshot()
	require.False(t, got.IsWorking)
	require.Empty(t, got.Task)
	require.Nil(t, got.PreBreak)
	require.Equal(t, 2, renderer.count)
}

func TestApplyConcurrentDeliveriesRenderOnce(t *testing.T) {
	now := time.Date(2026, 8, 30, 10, 0, 0, 0, time.UTC)
	e, renderer, _ := newTestEngine(t, now)

	// Both channels delivering the same snapshot at once must not both
	// pass the guard.
	snap := workingSnapshot("write report", now.Add(-time.Hour), now)
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			e.Apply(snap)
		}()
	}
	wg.Wait()

	require.Equal(t, 1, renderer.count)
}

func TestNotifyDeliversThroughNotifier(t *testing.T) {
	now := time.Date(2026, 8, 30, 10, 0, 0, 0, time.UTC)
	e, _, notifier := newTestEngine(t, now)

	title, body := notify.MidnightCheckout()
	e.Notify(title, body)

	require.Equal(t, []string{title}, notifier.titles)
}
