package client

import (
	"context"
	"time"

	"kintai/internal/notify"
)

const breakReminderEvery = 30 * time.Minute

// Reminders emits the elapsed-time notifications: a reminder every half
// hour of break, and an optional encouragement on a configured interval
// while working. These are locally originated, keyed by elapsed bucket,
// so they bypass the worker-event dedup gate.
type Reminders struct {
	engine *Engine

	// Encouragement interval; zero disables it.
	EncourageEvery time.Duration

	lastBreakBucket     int64
	lastEncourageBucket int64
	anchoredAt          time.Time

	now func() time.Time
}

func NewReminders(engine *Engine, encourageEvery time.Duration) *Reminders {
	return &Reminders{engine: engine, EncourageEvery: encourageEvery, now: time.Now}
}

// Run checks the cache twice a minute; notification granularity is in
// minutes, so a coarse check loses nothing.
func (r *Reminders) Run(ctx context.Context) {
	if r == nil {
		return
	}
	tick := time.NewTicker(30 * time.Second)
	defer tick.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-tick.C:
			r.check()
		}
	}
}

func (r *Reminders) check() {
	st := r.engine.cache.Snapshot()
	if !st.IsWorking || st.StartTime.IsZero() {
		r.anchoredAt = time.Time{}
		return
	}
	if !st.StartTime.Equal(r.anchoredAt) {
		// New interval; restart the buckets.
		r.anchoredAt = st.StartTime
		r.lastBreakBucket = 0
		r.lastEncourageBucket = 0
	}
	elapsed := r.now().Sub(st.StartTime)
	if elapsed <= 0 {
		return
	}

	if st.OnBreak() {
		bucket := int64(elapsed / breakReminderEvery)
		if bucket > 0 && bucket != r.lastBreakBucket {
			r.lastBreakBucket = bucket
			title, body := notify.BreakElapsed(elapsed)
			r.engine.Notify(title, body)
		}
		return
	}

	if r.EncourageEvery > 0 {
		bucket := int64(elapsed / r.EncourageEvery)
		if bucket > 0 && bucket != r.lastEncourageBucket {
			r.lastEncourageBucket = bucket
			title, body := notify.Encouragement(st.Task, elapsed)
			r.engine.Notify(title, body)
		}
	}
}
