package client

import (
	"context"
	"time"

	"github.com/rs/zerolog"
)

// Poller drives the poll channel: on every tick it fetches the user's
// status over the request/response channel and hands it to the engine.
// It has no visibility guard; it is what guarantees eventual convergence
// when the push channel is suspended or broken.
type Poller struct {
	engine *Engine
	gw     Gateway
	ticker *Ticker
	log    zerolog.Logger
}

func NewPoller(engine *Engine, gw Gateway, interval time.Duration, log zerolog.Logger) *Poller {
	return &Poller{
		engine: engine,
		gw:     gw,
		ticker: NewTicker(interval),
		log:    log,
	}
}

// Run blocks until ctx is cancelled. Fetch failures are logged and
// swallowed; the next tick re-attempts, which is safe because Apply is
// idempotent per state triple.
func (p *Poller) Run(ctx context.Context) {
	if p == nil {
		return
	}
	defer p.ticker.Stop()

	// One immediate fetch so a fresh client converges without waiting a
	// full interval.
	p.fetchOnce(ctx)

	for {
		select {
		case <-ctx.Done():
			return
		case <-p.ticker.C:
			p.fetchOnce(ctx)
		}
	}
}

func (p *Poller) fetchOnce(ctx context.Context) {
	fetchCtx, cancel := context.WithTimeout(ctx, 15*time.Second)
	defer cancel()
	snap, err := p.gw.Status(fetchCtx, p.engine.userID)
	if err != nil {
		p.log.Warn().Err(err).Msg("client: poll fetch failed")
		return
	}
	p.engine.Apply(snap)
}
