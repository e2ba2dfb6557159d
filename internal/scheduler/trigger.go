package scheduler

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/robfig/cron/v3"
)

// StartTrigger runs the runner on a fixed cadence described by a cron spec
// (for example "* * * * *" or "@every 1m"). It returns a stop function.
func StartTrigger(ctx context.Context, r *Runner, spec string) (func(), error) {
	if r == nil {
		return nil, errors.New("runner is nil")
	}
	expr := strings.TrimSpace(spec)
	if expr == "" {
		expr = "@every 1m"
	}
	parser := cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)
	if _, err := parser.Parse(expr); err != nil {
		return nil, fmt.Errorf("parse trigger spec %q: %w", expr, err)
	}

	c := cron.New(cron.WithParser(parser))
	if _, err := c.AddFunc(expr, func() {
		runCtx, cancel := context.WithTimeout(ctx, 55*time.Second)
		defer cancel()
		r.RunOnce(runCtx)
	}); err != nil {
		return nil, err
	}
	c.Start()

	var once sync.Once
	stop := func() {
		once.Do(func() { <-c.Stop().Done() })
	}
	go func() {
		<-ctx.Done()
		stop()
	}()
	return stop, nil
}

const wakeMarkerKey = "kintai:scheduler:next_wake"

// RedisWakeMarker is the trigger infrastructure's bookkeeping key; the
// runner clears it after each cycle.
type RedisWakeMarker struct {
	client *redis.Client
}

func NewRedisWakeMarker(client *redis.Client) *RedisWakeMarker {
	return &RedisWakeMarker{client: client}
}

func (m *RedisWakeMarker) ClearWakeMarker(ctx context.Context) error {
	if m == nil || m.client == nil {
		return nil
	}
	return m.client.Del(ctx, wakeMarkerKey).Err()
}
