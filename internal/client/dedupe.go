package client

import (
	"kintai/internal/notify"
	"kintai/internal/status"
)

// observeWorkerUpdate runs before any cache mutation for snapshots the
// scheduler wrote. A worker transition may be delivered by both channels
// and re-evaluated on every delivery; the identifier check makes it notify
// exactly once per logical event.
func (e *Engine) observeWorkerUpdate(snap *status.WorkStatus) {
	id := snap.EventTime()
	if id.IsZero() {
		// No identifier to dedup on; do not notify rather than risk
		// firing on every delivery.
		return
	}

	// Persist the identifier before emitting anything, so this event is
	// never reconsidered even if delivery below fails or a duplicate
	// arrives mid-flight.
	if !e.cache.MarkNotified(id) {
		return
	}

	if e.now().Sub(id) > StaleAfter {
		// Client was offline or backgrounded past the event; marking it
		// handled without a notification avoids a wake-up burst.
		e.log.Debug().Time("event", id).Msg("client: stale worker event, notification suppressed")
		return
	}

	switch {
	case snap.CurrentTask == status.BreakMarker:
		title, body := notify.BreakStarted()
		e.Notify(title, body)
	case !snap.IsWorking:
		title, body := notify.AutoCheckout()
		e.Notify(title, body)
	}
}
