package client

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"kintai/internal/notify"
	"kintai/internal/status"
)

// StaleAfter is how old a worker-driven event may be and still produce a
// notification. Older events are marked handled silently so a client waking
// up from a long background stretch does not burst stale notices.
const StaleAfter = 600 * time.Second

// Renderer is whatever draws the local timer display. Render is called on
// every accepted snapshot; the renderer restarts its elapsed timer anchored
// at the state's StartTime.
type Renderer interface {
	Render(State)
}

// RendererFunc adapts a function to Renderer.
type RendererFunc func(State)

func (f RendererFunc) Render(s State) { f(s) }

// Engine merges inbound status snapshots, from either channel, into the
// local cache and decides whether to re-render and whether to notify.
//
// Ordering across channels is last-delivered-wins, not last-written-wins:
// no logical clock is carried, so a slow poll response can in principle
// overwrite a newer push delivery with older state. Both channels read the
// same authoritative record and differences stay within one poll interval.
type Engine struct {
	userID   string
	userName string

	// Serializes Apply across the push and poll goroutines; the flicker
	// guard is a compare-then-write and must not interleave.
	mu sync.Mutex

	cache    *Cache
	renderer Renderer
	notifier notify.Notifier
	log      zerolog.Logger

	now func() time.Time
}

type EngineOptions struct {
	UserID   string
	UserName string
	Renderer Renderer
	Notifier notify.Notifier
	Logger   zerolog.Logger
}

func NewEngine(opts EngineOptions) (*Engine, error) {
	id := strings.TrimSpace(opts.UserID)
	if id == "" {
		return nil, errors.New("user_id is required")
	}
	return &Engine{
		userID:   id,
		userName: strings.TrimSpace(opts.UserName),
		cache:    NewCache(),
		renderer: opts.Renderer,
		notifier: opts.Notifier,
		log:      opts.Logger,
		now:      time.Now,
	}, nil
}

func (e *Engine) Cache() *Cache { return e.cache }

// Apply merges one inbound snapshot. It is safe for concurrent use,
// idempotent per distinct state triple and at-most-once per event
// identifier, so the push subscription and the poll fetch may race
// arbitrarily. Returns whether the cache changed (and the display
// re-rendered).
func (e *Engine) Apply(snap *status.WorkStatus) bool {
	if e == nil || snap == nil {
		return false
	}
	if snap.UserID != "" && snap.UserID != e.userID {
		return false
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if snap.WorkerDriven() {
		e.observeWorkerUpdate(snap)
	}

	// Both channels deliver the same records. An identical triple means
	// the display is already right; re-rendering it would flicker.
	cur := e.cache.Snapshot()
	if cur.IsWorking == snap.IsWorking && cur.Task == snap.CurrentTask && cur.GoalID == snap.CurrentGoalID {
		return false
	}

	if snap.IsWorking {
		if !snap.Valid() {
			// Malformed delivery; leave the cache untouched rather than
			// corrupt it with partial data.
			e.log.Warn().Str("user", e.userID).Msg("client: dropping invalid working snapshot")
			return false
		}
		e.cache.SetWorking(snap.CurrentTask, snap.CurrentGoalID, snap.CurrentGoalTitle, *snap.StartTime, snap.PreBreakTask)
	} else {
		e.cache.Clear()
	}

	e.render()
	return true
}

func (e *Engine) render() {
	if e.renderer != nil {
		e.renderer.Render(e.cache.Snapshot())
	}
}

// Notify pushes a locally-originated notification (elapsed reminders, the
// midnight stop). Worker-driven transitions go through the dedup gate
// instead; see observeWorkerUpdate.
func (e *Engine) Notify(title, body string) {
	if e == nil || e.notifier == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.notifier.Notify(ctx, title, body); err != nil {
		e.log.Warn().Err(err).Str("title", title).Msg("client: notification delivery failed")
	}
}
