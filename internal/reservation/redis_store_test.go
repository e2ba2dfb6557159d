package reservation

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"kintai/internal/status"
)

func newTestStore(t *testing.T) (*RedisStore, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewRedisStore(client), client
}

func reservedAt(id, userID string, at time.Time) Reservation {
	return Reservation{
		ID:            id,
		UserID:        userID,
		Action:        ActionStop,
		ScheduledTime: at,
		Status:        StateReserved,
	}
}

func TestListDueUpperBoundIsInclusive(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()
	before := time.Date(2026, 8, 30, 18, 1, 0, 0, time.UTC)

	require.NoError(t, s.Save(ctx, reservedAt("past", "u1", before.Add(-time.Minute))))
	require.NoError(t, s.Save(ctx, reservedAt("exact", "u2", before)))
	require.NoError(t, s.Save(ctx, reservedAt("just_after", "u3", before.Add(time.Second))))
	require.NoError(t, s.Save(ctx, reservedAt("beyond", "u4", before.Add(70*time.Second))))

	due, err := s.ListDue(ctx, before)
	require.NoError(t, err)

	ids := make([]string, 0, len(due))
	for _, res := range due {
		ids = append(ids, res.ID)
	}
	require.ElementsMatch(t, []string{"past", "exact"}, ids)
}

func TestListDueSkipsExecutedAndDeleted(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()
	now := time.Date(2026, 8, 30, 18, 0, 0, 0, time.UTC)

	require.NoError(t, s.Save(ctx, reservedAt("r1", "u1", now)))
	require.NoError(t, s.Save(ctx, reservedAt("r2", "u1", now)))

	require.NoError(t, s.ExecuteDue(ctx, "r1", func(res Reservation, cur *status.WorkStatus) Decision {
		return Decision{Disposition: DispositionExecuted}
	}))
	require.NoError(t, s.Delete(ctx, "r2"))

	due, err := s.ListDue(ctx, now.Add(time.Minute))
	require.NoError(t, err)
	require.Empty(t, due)
}

func TestListDueHealsOrphanedIndexMembers(t *testing.T) {
	s, client := newTestStore(t)
	ctx := context.Background()
	now := time.Date(2026, 8, 30, 18, 0, 0, 0, time.UTC)

	// An index member whose record is gone, as a partial delete leaves it.
	require.NoError(t, client.ZAdd(ctx, dueIndexKey, redis.Z{
		Score: float64(now.Unix()), Member: "ghost",
	}).Err())

	due, err := s.ListDue(ctx, now.Add(time.Minute))
	require.NoError(t, err)
	require.Empty(t, due)

	err = client.ZScore(ctx, dueIndexKey, "ghost").Err()
	require.ErrorIs(t, err, redis.Nil)
}

func TestExecuteDueAppliesOnce(t *testing.T) {
	s, client := newTestStore(t)
	ctx := context.Background()
	now := time.Date(2026, 8, 30, 18, 0, 0, 0, time.UTC)
	start := now.Add(-time.Hour)

	states := status.NewRedisStoreWith(client)
	require.NoError(t, states.Set(ctx, &status.WorkStatus{
		UserID:      "u1",
		IsWorking:   true,
		CurrentTask: "write report",
		StartTime:   &start,
		UpdatedAt:   start,
	}))
	require.NoError(t, s.Save(ctx, reservedAt("r1", "u1", now)))

	calls := 0
	exec := func(res Reservation, cur *status.WorkStatus) Decision {
		calls++
		require.Equal(t, StateReserved, res.Status)
		require.NotNil(t, cur)
		return Decision{
			Status: &status.WorkStatus{
				UserID:        "u1",
				UpdatedAt:     now,
				LastUpdatedBy: status.UpdatedByWorker,
			},
			Disposition: DispositionExecuted,
		}
	}

	require.NoError(t, s.ExecuteDue(ctx, "r1", exec))
	require.Equal(t, 1, calls)

	got, err := s.Get(ctx, "r1")
	require.NoError(t, err)
	require.Equal(t, StateExecuted, got.Status)

	st, err := states.Get(ctx, "u1")
	require.NoError(t, err)
	require.False(t, st.IsWorking)
	require.Equal(t, status.UpdatedByWorker, st.LastUpdatedBy)

	// Replay: already consumed, the transition must not run again.
	require.NoError(t, s.ExecuteDue(ctx, "r1", exec))
	require.Equal(t, 1, calls)
}

func TestExecuteDueRollForwardKeepsReserved(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()
	now := time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC)

	res := reservedAt("b1", "u1", now)
	res.Action = ActionBreak
	require.NoError(t, s.Save(ctx, res))

	require.NoError(t, s.ExecuteDue(ctx, "b1", func(Reservation, *status.WorkStatus) Decision {
		return Decision{Disposition: DispositionRollForward}
	}))

	got, err := s.Get(ctx, "b1")
	require.NoError(t, err)
	require.Equal(t, StateReserved, got.Status)
	require.Equal(t, now.AddDate(0, 0, 1).Unix(), got.ScheduledTime.Unix())

	// Rolled a day ahead, so it is out of today's window but inside
	// tomorrow's.
	due, err := s.ListDue(ctx, now.Add(time.Minute))
	require.NoError(t, err)
	require.Empty(t, due)
	due, err = s.ListDue(ctx, now.AddDate(0, 0, 1))
	require.NoError(t, err)
	require.Len(t, due, 1)
}
