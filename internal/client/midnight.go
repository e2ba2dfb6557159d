package client

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"kintai/internal/notify"
)

// MidnightGuard is the end-of-day safety net: a user still clocked in at
// local midnight is stopped on their own behalf, with the status record
// flagged for explicit correction the next morning.
type MidnightGuard struct {
	engine  *Engine
	actions *Actions
	log     zerolog.Logger

	now func() time.Time
}

func NewMidnightGuard(engine *Engine, actions *Actions, log zerolog.Logger) *MidnightGuard {
	return &MidnightGuard{engine: engine, actions: actions, log: log, now: time.Now}
}

// Run blocks until ctx is cancelled, firing once per local day.
func (g *MidnightGuard) Run(ctx context.Context) {
	if g == nil {
		return
	}
	for {
		now := g.now()
		endOfDay := time.Date(now.Year(), now.Month(), now.Day(), 23, 59, 59, 999_000_000, now.Location())
		wait := endOfDay.Sub(now)
		if wait <= 0 {
			wait = time.Second
		}
		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
		}
		g.fire(ctx)

		// Past midnight now; the next loop waits for tomorrow's boundary.
		select {
		case <-ctx.Done():
			return
		case <-time.After(2 * time.Second):
		}
	}
}

func (g *MidnightGuard) fire(ctx context.Context) {
	if !g.engine.cache.Snapshot().IsWorking {
		return
	}
	stopCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()
	if err := g.actions.stop(stopCtx, "stopped by midnight safety net", true); err != nil {
		g.log.Error().Err(err).Msg("client: midnight stop failed")
		return
	}
	title, body := notify.MidnightCheckout()
	g.engine.Notify(title, body)
}
