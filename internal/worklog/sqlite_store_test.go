package worklog

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func openTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	s, err := OpenSQLiteStore(filepath.Join(t.TempDir(), "kintai.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestAppendAndListByUser(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	start := time.Date(2026, 8, 30, 9, 0, 0, 0, time.UTC)
	first, err := CloseInterval("u1", "Aoi", "write report", "g1", "", start, start.Add(time.Hour), "", SourceManual)
	require.NoError(t, err)
	second, err := CloseInterval("u1", "Aoi", "review code", "", "", start.Add(2*time.Hour), start.Add(3*time.Hour), "auto", SourceWorkerReservation)
	require.NoError(t, err)
	other, err := CloseInterval("u2", "", "other work", "", "", start, start.Add(time.Hour), "", SourceManual)
	require.NoError(t, err)

	for _, e := range []Entry{first, second, other} {
		id, err := s.Append(ctx, e)
		require.NoError(t, err)
		require.NotEmpty(t, id)
	}

	got, err := s.ListByUser(ctx, "u1", "2026-08-30", "2026-08-30")
	require.NoError(t, err)
	require.Len(t, got, 2)
	// Newest first.
	require.Equal(t, "review code", got[0].Task)
	require.Equal(t, "write report", got[1].Task)
	require.Equal(t, int64(3600), got[0].Duration)
	require.Equal(t, SourceWorkerReservation, got[0].Source)
}

func TestListByUserDateWindow(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	start := time.Date(2026, 8, 29, 9, 0, 0, 0, time.UTC)
	e, err := CloseInterval("u1", "", "yesterday work", "", "", start, start.Add(time.Hour), "", SourceManual)
	require.NoError(t, err)
	_, err = s.Append(ctx, e)
	require.NoError(t, err)

	got, err := s.ListByUser(ctx, "u1", "2026-08-30", "2026-08-31")
	require.NoError(t, err)
	require.Empty(t, got)

	got, err = s.ListByUser(ctx, "u1", "2026-08-29", "2026-08-29")
	require.NoError(t, err)
	require.Len(t, got, 1)
}

func TestAppendRejectsInvalidEntries(t *testing.T) {
	s := openTestStore(t)

	at := time.Date(2026, 8, 30, 9, 0, 0, 0, time.UTC)
	bad := Entry{
		UserID: "u1", Task: "task", Date: "2026-08-30",
		StartTime: at, EndTime: at, Duration: 0, Source: SourceManual,
	}
	_, err := s.Append(context.Background(), bad)
	require.ErrorIs(t, err, ErrNonPositiveDuration)
}
