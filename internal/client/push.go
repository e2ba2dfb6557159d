package client

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"

	"kintai/internal/status"
)

// PushSubscriber drives the push channel: a live websocket subscription to
// the user's status record, active only while the display is foregrounded.
// Suspending drops the connection to save cost; resuming reconnects
// immediately. Convergence while suspended is the poll channel's job.
type PushSubscriber struct {
	engine *Engine
	url    string
	log    zerolog.Logger

	retryWait time.Duration

	mu         sync.Mutex
	foreground bool
	resumeCh   chan struct{}
	dropConn   context.CancelFunc
}

func NewPushSubscriber(engine *Engine, wsURL string, log zerolog.Logger) *PushSubscriber {
	return &PushSubscriber{
		engine:     engine,
		url:        wsURL,
		log:        log,
		retryWait:  5 * time.Second,
		foreground: true,
		resumeCh:   make(chan struct{}, 1),
	}
}

// Suspend drops the subscription (display backgrounded).
func (p *PushSubscriber) Suspend() {
	if p == nil {
		return
	}
	p.mu.Lock()
	p.foreground = false
	drop := p.dropConn
	p.mu.Unlock()
	if drop != nil {
		drop()
	}
}

// Resume re-establishes the subscription (display refocused).
func (p *PushSubscriber) Resume() {
	if p == nil {
		return
	}
	p.mu.Lock()
	p.foreground = true
	p.mu.Unlock()
	select {
	case p.resumeCh <- struct{}{}:
	default:
	}
}

func (p *PushSubscriber) isForeground() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.foreground
}

// Run blocks until ctx is cancelled, reconnecting on failure. Errors are
// logged and swallowed; a broken push channel only costs latency, never
// correctness.
func (p *PushSubscriber) Run(ctx context.Context) {
	if p == nil {
		return
	}
	for {
		if ctx.Err() != nil {
			return
		}
		if !p.isForeground() {
			select {
			case <-ctx.Done():
				return
			case <-p.resumeCh:
				continue
			}
		}
		if err := p.connectAndRead(ctx); err != nil && ctx.Err() == nil {
			p.log.Warn().Err(err).Msg("client: push channel dropped")
			select {
			case <-ctx.Done():
				return
			case <-time.After(p.retryWait):
			}
		}
	}
}

func (p *PushSubscriber) connectAndRead(ctx context.Context) error {
	connCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	p.mu.Lock()
	p.dropConn = cancel
	p.mu.Unlock()

	dialCtx, dialCancel := context.WithTimeout(connCtx, 10*time.Second)
	conn, _, err := websocket.Dial(dialCtx, p.url, nil)
	dialCancel()
	if err != nil {
		return err
	}
	defer conn.Close(websocket.StatusNormalClosure, "")

	for {
		var snap status.WorkStatus
		if err := wsjson.Read(connCtx, conn, &snap); err != nil {
			if connCtx.Err() != nil {
				return nil // suspended or shut down, not a failure
			}
			return err
		}
		p.engine.Apply(&snap)
	}
}
