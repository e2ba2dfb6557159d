package client

import (
	"sync"
	"time"
)

// Ticker posts wake signals from its own goroutine. It performs no I/O, so
// a slow or failed fetch never disturbs the cadence, and it keeps ticking
// regardless of whether the display is foregrounded: it is the durability
// backstop for the poll channel.
type Ticker struct {
	C <-chan struct{}

	stop chan struct{}
	once sync.Once
}

func NewTicker(every time.Duration) *Ticker {
	if every <= 0 {
		every = 30 * time.Second
	}
	c := make(chan struct{}, 1)
	t := &Ticker{C: c, stop: make(chan struct{})}
	go func() {
		tick := time.NewTicker(every)
		defer tick.Stop()
		for {
			select {
			case <-t.stop:
				return
			case <-tick.C:
				// Drop the tick if the consumer is still busy; ticks
				// carry no payload, one pending is enough.
				select {
				case c <- struct{}{}:
				default:
				}
			}
		}
	}()
	return t
}

func (t *Ticker) Stop() {
	if t == nil {
		return
	}
	t.once.Do(func() { close(t.stop) })
}
