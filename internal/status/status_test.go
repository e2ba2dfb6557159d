package status

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestOnBreak(t *testing.T) {
	start := time.Now()
	require.True(t, (&WorkStatus{IsWorking: true, CurrentTask: BreakMarker, StartTime: &start}).OnBreak())
	require.False(t, (&WorkStatus{IsWorking: true, CurrentTask: "write report", StartTime: &start}).OnBreak())
	require.False(t, (&WorkStatus{IsWorking: false, CurrentTask: BreakMarker}).OnBreak())

	var nilStatus *WorkStatus
	require.False(t, nilStatus.OnBreak())
}

func TestValid(t *testing.T) {
	start := time.Now()
	require.True(t, (&WorkStatus{IsWorking: false}).Valid())
	require.True(t, (&WorkStatus{IsWorking: true, CurrentTask: "task", StartTime: &start}).Valid())
	require.False(t, (&WorkStatus{IsWorking: true, StartTime: &start}).Valid())
	require.False(t, (&WorkStatus{IsWorking: true, CurrentTask: "task"}).Valid())
	require.False(t, (&WorkStatus{IsWorking: true, CurrentTask: "  ", StartTime: &start}).Valid())
}

func TestWorkerDriven(t *testing.T) {
	require.True(t, (&WorkStatus{LastUpdatedBy: UpdatedByWorker}).WorkerDriven())
	// Records predating the writer tag carry none and are treated as
	// worker-driven so their transitions are still surfaced.
	require.True(t, (&WorkStatus{}).WorkerDriven())
	require.False(t, (&WorkStatus{LastUpdatedBy: UpdatedByUser}).WorkerDriven())
	require.False(t, (&WorkStatus{LastUpdatedBy: UpdatedByAdmin}).WorkerDriven())
}

func TestEventTime(t *testing.T) {
	updated := time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC)
	start := updated.Add(-time.Hour)

	require.Equal(t, updated, (&WorkStatus{UpdatedAt: updated, StartTime: &start}).EventTime())
	require.Equal(t, start, (&WorkStatus{StartTime: &start}).EventTime())
	require.True(t, (&WorkStatus{}).EventTime().IsZero())
}
