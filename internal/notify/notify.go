package notify

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"
)

// Notifier delivers a local notification. Delivery is fire-and-forget: the
// engine only decides whether to call and with what dedup key; failures are
// the notifier's problem to log.
type Notifier interface {
	Notify(ctx context.Context, title, body string) error
}

// Func adapts a function to the Notifier interface.
type Func func(ctx context.Context, title, body string) error

func (f Func) Notify(ctx context.Context, title, body string) error { return f(ctx, title, body) }

// LogNotifier writes notifications to the log. It is the default delivery
// when nothing richer is configured.
type LogNotifier struct {
	Log zerolog.Logger
}

func (n *LogNotifier) Notify(_ context.Context, title, body string) error {
	n.Log.Info().Str("title", title).Str("body", body).Msg("notification")
	return nil
}

// Multi fans one notification out to several notifiers. The first error is
// returned after every notifier has been tried.
type Multi []Notifier

func (m Multi) Notify(ctx context.Context, title, body string) error {
	var first error
	for _, n := range m {
		if n == nil {
			continue
		}
		if err := n.Notify(ctx, title, body); err != nil && first == nil {
			first = err
		}
	}
	return first
}

// BreakStarted is the worker-driven break transition notification.
func BreakStarted() (title, body string) {
	return "Break time", "Your reservation switched you to break. Take it easy."
}

// AutoCheckout is the worker-driven checkout notification.
func AutoCheckout() (title, body string) {
	return "Checked out automatically", "Your reservation checked you out. Good work today."
}

// MidnightCheckout is the end-of-day safety-net notification.
func MidnightCheckout() (title, body string) {
	return "Checked out at midnight", "You were still clocked in at end of day. Please correct the checkout time."
}

// BreakElapsed reminds a user how long the current break has run.
func BreakElapsed(elapsed time.Duration) (title, body string) {
	return "On break", fmt.Sprintf("On break for %d minutes.", int(elapsed.Minutes()))
}

// Encouragement is the periodic keep-going notification for a long task.
func Encouragement(task string, elapsed time.Duration) (title, body string) {
	h := int(elapsed.Hours())
	m := int(elapsed.Minutes()) % 60
	span := fmt.Sprintf("%dm", m)
	if h > 0 {
		span = fmt.Sprintf("%dh%02dm", h, m)
	}
	return "Still at it", fmt.Sprintf("%s for %s now. Maybe time for a breather?", task, span)
}
