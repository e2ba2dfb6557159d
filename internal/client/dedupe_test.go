package client

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"kintai/internal/status"
)

func workerStop(updated time.Time) *status.WorkStatus {
	return &status.WorkStatus{
		UserID:        "u1",
		IsWorking:     false,
		UpdatedAt:     updated,
		LastUpdatedBy: status.UpdatedByWorker,
	}
}

func workerBreak(updated time.Time) *status.WorkStatus {
	start := updated
	return &status.WorkStatus{
		UserID:        "u1",
		IsWorking:     true,
		CurrentTask:   status.BreakMarker,
		StartTime:     &start,
		UpdatedAt:     updated,
		LastUpdatedBy: status.UpdatedByWorker,
	}
}

func TestWorkerStopNotifiesOncePerEvent(t *testing.T) {
	now := time.Date(2026, 8, 30, 18, 0, 10, 0, time.UTC)
	e, _, notifier := newTestEngine(t, now)

	event := now.Add(-10 * time.Second)
	e.Apply(workerStop(event))
	// Same event, delivered again by the other channel.
	e.Apply(workerStop(event))

	require.Len(t, notifier.titles, 1)
}

func TestWorkerBreakNotifies(t *testing.T) {
	now := time.Date(2026, 8, 30, 12, 0, 5, 0, time.UTC)
	e, renderer, notifier := newTestEngine(t, now)

	e.Apply(workerBreak(now.Add(-5 * time.Second)))

	require.Len(t, notifier.titles, 1)
	require.Equal(t, 1, renderer.count)
	require.True(t, renderer.last.OnBreak())
}

func TestDistinctWorkerEventsNotifySeparately(t *testing.T) {
	now := time.Date(2026, 8, 30, 18, 0, 0, 0, time.UTC)
	e, _, notifier := newTestEngine(t, now)

	e.Apply(workerBreak(now.Add(-2 * time.Minute)))
	e.Apply(workerStop(now.Add(-1 * time.Minute)))

	require.Len(t, notifier.titles, 2)
}

func TestStaleWorkerEventUpdatesCacheSilently(t *testing.T) {
	now := time.Date(2026, 8, 30, 18, 0, 0, 0, time.UTC)
	e, renderer, notifier := newTestEngine(t, now)

	// First put the user on a task so the stop changes the cache.
	e.Apply(workingSnapshot("write report", now.Add(-2*time.Hour), now.Add(-2*time.Hour)))

	stale := workerStop(now.Add(-StaleAfter - time.Minute))
	e.Apply(stale)

	require.Empty(t, notifier.titles)
	require.False(t, e.Cache().Snapshot().IsWorking)
	require.Equal(t, 2, renderer.count)
	// The event is still recorded so a later duplicate cannot fire either.
	require.Equal(t, stale.UpdatedAt, e.Cache().LastNotified())
}

func TestWorkerEventFallsBackToStartTime(t *testing.T) {
	now := time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC)
	e, _, notifier := newTestEngine(t, now)

	start := now.Add(-30 * time.Second)
	snap := &status.WorkStatus{
		UserID:        "u1",
		IsWorking:     true,
		CurrentTask:   status.BreakMarker,
		StartTime:     &start,
		LastUpdatedBy: status.UpdatedByWorker,
	}
	e.Apply(snap)
	e.Apply(snap)

	require.Len(t, notifier.titles, 1)
	require.Equal(t, start, e.Cache().LastNotified())
}

func TestWorkerEventWithoutIdentifierNeverNotifies(t *testing.T) {
	now := time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC)
	e, _, notifier := newTestEngine(t, now)

	snap := &status.WorkStatus{
		UserID:        "u1",
		IsWorking:     false,
		LastUpdatedBy: status.UpdatedByWorker,
	}
	e.Apply(snap)

	require.Empty(t, notifier.titles)
	require.True(t, e.Cache().LastNotified().IsZero())
}

func TestUserDrivenUpdatesNeverNotify(t *testing.T) {
	now := time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC)
	e, _, notifier := newTestEngine(t, now)

	e.Apply(workingSnapshot("write report", now.Add(-time.Hour), now))

	require.Empty(t, notifier.titles)
	require.True(t, e.Cache().LastNotified().IsZero())
}
