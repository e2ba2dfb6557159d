package client

import (
	"sync"
	"time"

	"kintai/internal/status"
)

// State is a renderable snapshot of the local cache.
type State struct {
	IsWorking bool
	Task      string
	GoalID    string
	GoalTitle string
	StartTime time.Time
	PreBreak  *status.PreBreakTask
}

func (s State) OnBreak() bool { return s.IsWorking && s.Task == status.BreakMarker }

// Cache is the per-device mirror of the user's WorkStatus used for instant
// rendering, plus the reconciliation bookkeeping. It is owned exclusively
// by the engine; rendering code only ever sees snapshots.
type Cache struct {
	mu           sync.Mutex
	state        State
	lastNotified time.Time
}

func NewCache() *Cache { return &Cache{} }

func (c *Cache) Snapshot() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// SetWorking overwrites every working field together.
func (c *Cache) SetWorking(task, goalID, goalTitle string, start time.Time, preBreak *status.PreBreakTask) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.state = State{
		IsWorking: true,
		Task:      task,
		GoalID:    goalID,
		GoalTitle: goalTitle,
		StartTime: start,
		PreBreak:  preBreak,
	}
}

// Clear resets to not-working. All working fields are dropped together,
// pre-break residue included.
func (c *Cache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.state = State{}
}

// MarkNotified records id as the last-notified worker event. It returns
// false when id was already recorded, so a caller that wins this check owns
// the single notification for the event; duplicate deliveries of the same
// event lose it no matter how quickly they arrive.
func (c *Cache) MarkNotified(id time.Time) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.lastNotified.Equal(id) {
		return false
	}
	c.lastNotified = id
	return true
}

func (c *Cache) LastNotified() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastNotified
}
