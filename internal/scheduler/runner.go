package scheduler

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"

	"kintai/internal/reservation"
	"kintai/internal/status"
	"kintai/internal/worklog"
)

const (
	// Lookahead widens the due query so trigger jitter and clock skew do
	// not push a reservation into the next cycle.
	Lookahead = 60 * time.Second
	// MaxAlignWait bounds the sleep that aligns execution with a
	// reservation due slightly in the future. Anything further out is
	// simply left for a later invocation.
	MaxAlignWait = 15 * time.Second
)

// ReservationStore is what the runner needs from the reservation store.
type ReservationStore interface {
	ListDue(ctx context.Context, before time.Time) ([]reservation.Reservation, error)
	ExecuteDue(ctx context.Context, id string, fn reservation.ExecFunc) error
}

// LogStore receives the intervals closed by executed reservations.
type LogStore interface {
	Append(ctx context.Context, e worklog.Entry) (string, error)
}

// WakeMarkerStore clears the external trigger's bookkeeping key after a
// run. Optional; the runner works without one.
type WakeMarkerStore interface {
	ClearWakeMarker(ctx context.Context) error
}

// Runner converts due reservations into status transitions and work log
// entries. It holds no cross-invocation lock: overlapping or retried
// invocations are safe because every reservation is re-read and checked
// inside the store transaction before it is applied.
type Runner struct {
	resv   ReservationStore
	logs   LogStore
	marker WakeMarkerStore
	log    zerolog.Logger

	now   func() time.Time
	sleep func(context.Context, time.Duration)
}

type RunnerOptions struct {
	Reservations ReservationStore
	Logs         LogStore
	Marker       WakeMarkerStore
	Logger       zerolog.Logger
}

func NewRunner(opts RunnerOptions) (*Runner, error) {
	if opts.Reservations == nil {
		return nil, errors.New("reservation store is required")
	}
	if opts.Logs == nil {
		return nil, errors.New("log store is required")
	}
	return &Runner{
		resv:   opts.Reservations,
		logs:   opts.Logs,
		marker: opts.Marker,
		log:    opts.Logger,
		now:    time.Now,
		sleep:  sleepCtx,
	}, nil
}

func sleepCtx(ctx context.Context, d time.Duration) {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}

// RunOnce is the scheduler entry point, invoked on the external trigger's
// cadence. Errors are logged rather than returned to the trigger so a bad
// cycle does not cause a retry storm; the next cycle re-attempts whatever
// is still reserved.
func (r *Runner) RunOnce(ctx context.Context) {
	if r == nil {
		return
	}
	now := r.now()

	due, err := r.resv.ListDue(ctx, now.Add(Lookahead))
	if err != nil {
		r.log.Error().Err(err).Msg("scheduler: due query failed")
		return
	}
	if len(due) == 0 {
		return
	}

	// Align with the furthest-out reservation in this batch. The trigger
	// can fire early; without this wait a reservation due in a few
	// seconds would be executed ahead of its time.
	var maxWait time.Duration
	candidates := due[:0]
	for _, res := range due {
		wait := res.ScheduledTime.Sub(now)
		if wait > MaxAlignWait {
			// Beyond the alignment bound; a later invocation picks it up.
			continue
		}
		if wait > maxWait {
			maxWait = wait
		}
		candidates = append(candidates, res)
	}
	if len(candidates) == 0 {
		return
	}
	if maxWait > 0 {
		r.sleep(ctx, maxWait)
		if ctx.Err() != nil {
			return
		}
	}

	execTime := r.now()
	for _, res := range candidates {
		r.executeOne(ctx, res.ID, execTime)
	}

	if r.marker != nil {
		if err := r.marker.ClearWakeMarker(ctx); err != nil {
			r.log.Warn().Err(err).Msg("scheduler: clear wake marker failed")
		}
	}
}

func (r *Runner) executeOne(ctx context.Context, id string, execTime time.Time) {
	var out outcome
	ran := false
	err := r.resv.ExecuteDue(ctx, id, func(res reservation.Reservation, cur *status.WorkStatus) reservation.Decision {
		ran = true
		if cur == nil && res.Action == reservation.ActionStop {
			// Integrity gap: nothing to transition, but the time window
			// held. Mark executed so the record is not reprocessed forever.
			r.log.Warn().Str("reservation", id).Str("user", res.UserID).
				Msg("scheduler: no status record for due stop reservation, marking executed")
		}
		out = transition(res, cur, execTime)
		return out.decision
	})
	if err != nil {
		// Left reserved; the re-read inside the transaction makes the
		// retry on the next cycle idempotent.
		r.log.Error().Err(err).Str("reservation", id).Msg("scheduler: execution failed")
		return
	}

	if !ran {
		// Deleted or consumed by a concurrent invocation since the due
		// query; nothing happened.
		r.log.Debug().Str("reservation", id).Msg("scheduler: reservation gone or already executed")
		return
	}

	if out.skipped != "" {
		r.log.Debug().Str("reservation", id).Str("reason", out.skipped).Msg("scheduler: skipped")
		return
	}

	if out.closed != nil {
		if _, err := r.logs.Append(ctx, *out.closed); err != nil {
			// The transition is already committed; losing the log entry is
			// preferred over replaying the transition.
			r.log.Error().Err(err).Str("reservation", id).Str("user", out.closed.UserID).
				Msg("scheduler: work log append failed, interval lost")
		}
	}

	r.log.Info().Str("reservation", id).Time("exec_time", execTime).Msg("scheduler: reservation executed")
}
