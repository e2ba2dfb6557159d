package status

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

// ErrNotFound is returned when a user has no status record.
var ErrNotFound = errors.New("status: not found")

const (
	keyPrefix     = "kintai:status:"
	channelPrefix = "kintai:status:ch:"
)

// Key returns the redis key holding a user's status record.
func Key(userID string) string { return keyPrefix + strings.TrimSpace(userID) }

// Channel returns the pub/sub channel a user's status writes are published on.
func Channel(userID string) string { return channelPrefix + strings.TrimSpace(userID) }

// RedisStore keeps one JSON status record per user and publishes every write
// on the user's channel so subscribed clients see changes without polling.
type RedisStore struct {
	client *redis.Client
}

func NewRedisStore(redisURL string) (*RedisStore, error) {
	url := strings.TrimSpace(redisURL)
	if url == "" {
		return nil, errors.New("redis url is required")
	}
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, err
	}
	client := redis.NewClient(opts)
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, err
	}
	return &RedisStore{client: client}, nil
}

// NewRedisStoreWith wraps an existing client. The caller keeps ownership of
// the client's lifecycle.
func NewRedisStoreWith(client *redis.Client) *RedisStore {
	return &RedisStore{client: client}
}

// Client exposes the underlying connection so sibling stores on the same
// instance can share it.
func (s *RedisStore) Client() *redis.Client {
	if s == nil {
		return nil
	}
	return s.client
}

func (s *RedisStore) Get(ctx context.Context, userID string) (*WorkStatus, error) {
	if s == nil || s.client == nil {
		return nil, errors.New("status store is not initialized")
	}
	id := strings.TrimSpace(userID)
	if id == "" {
		return nil, errors.New("user_id is required")
	}
	data, err := s.client.Get(ctx, Key(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	var st WorkStatus
	if err := json.Unmarshal(data, &st); err != nil {
		return nil, fmt.Errorf("decode status %s: %w", id, err)
	}
	return &st, nil
}

// All returns every status record in the store.
func (s *RedisStore) All(ctx context.Context) ([]WorkStatus, error) {
	if s == nil || s.client == nil {
		return nil, errors.New("status store is not initialized")
	}
	var out []WorkStatus
	iter := s.client.Scan(ctx, 0, keyPrefix+"*", 100).Iterator()
	for iter.Next(ctx) {
		key := iter.Val()
		if strings.HasPrefix(key, channelPrefix) {
			continue
		}
		data, err := s.client.Get(ctx, key).Bytes()
		if errors.Is(err, redis.Nil) {
			continue
		}
		if err != nil {
			return nil, err
		}
		var st WorkStatus
		if err := json.Unmarshal(data, &st); err != nil {
			continue
		}
		out = append(out, st)
	}
	if err := iter.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// Set replaces the user's record and publishes it in one pipeline. Every
// write is whole-record; readers never observe a partially updated record.
func (s *RedisStore) Set(ctx context.Context, st *WorkStatus) error {
	if s == nil || s.client == nil {
		return errors.New("status store is not initialized")
	}
	if st == nil {
		return errors.New("status is nil")
	}
	id := strings.TrimSpace(st.UserID)
	if id == "" {
		return errors.New("user_id is required")
	}
	if !st.Valid() {
		return errors.New("working status requires current_task and start_time")
	}
	data, err := json.Marshal(st)
	if err != nil {
		return err
	}
	pipe := s.client.Pipeline()
	pipe.Set(ctx, Key(id), data, 0)
	pipe.Publish(ctx, Channel(id), data)
	_, err = pipe.Exec(ctx)
	return err
}

// Subscribe streams status records for one user until ctx is cancelled.
// Malformed payloads are dropped rather than delivered partially decoded.
func (s *RedisStore) Subscribe(ctx context.Context, userID string) (<-chan WorkStatus, error) {
	if s == nil || s.client == nil {
		return nil, errors.New("status store is not initialized")
	}
	id := strings.TrimSpace(userID)
	if id == "" {
		return nil, errors.New("user_id is required")
	}
	sub := s.client.Subscribe(ctx, Channel(id))
	if _, err := sub.Receive(ctx); err != nil {
		_ = sub.Close()
		return nil, err
	}
	out := make(chan WorkStatus, 8)
	go func() {
		defer close(out)
		defer sub.Close()
		ch := sub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}
				var st WorkStatus
				if err := json.Unmarshal([]byte(msg.Payload), &st); err != nil {
					continue
				}
				select {
				case out <- st:
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return out, nil
}

func (s *RedisStore) Close() error {
	if s == nil || s.client == nil {
		return nil
	}
	return s.client.Close()
}
