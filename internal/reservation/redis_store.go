package reservation

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"kintai/internal/status"
)

// ErrNotFound is returned when a reservation id has no record.
var ErrNotFound = errors.New("reservation: not found")

const (
	keyPrefix     = "kintai:resv:"
	dueIndexKey   = "kintai:resv:due"
	userSetPrefix = "kintai:resv:user:"
)

func key(id string) string         { return keyPrefix + strings.TrimSpace(id) }
func userSet(userID string) string { return userSetPrefix + strings.TrimSpace(userID) }

// Disposition is what ExecuteDue does to the reservation record after the
// transition function has decided.
type Disposition int

const (
	// DispositionNone leaves the reservation untouched; a later cycle
	// reconsiders it.
	DispositionNone Disposition = iota
	// DispositionExecuted flips the reservation to executed and drops it
	// from the due index.
	DispositionExecuted
	// DispositionRollForward keeps the reservation reserved and advances
	// its scheduled time by one day.
	DispositionRollForward
)

// Decision is the outcome of a transition function: the status record to
// write (nil for no status write) and the reservation disposition.
type Decision struct {
	Status      *status.WorkStatus
	Disposition Disposition
}

// ExecFunc decides the transition for a reservation that is still reserved
// at execution time. cur is nil when the user has no status record.
type ExecFunc func(res Reservation, cur *status.WorkStatus) Decision

// RedisStore keeps one JSON record per reservation, a ZSET indexed by due
// unix time for the scheduler's lookahead query, and a per-user id set for
// listing.
type RedisStore struct {
	client *redis.Client
}

// NewRedisStore wraps an existing client. Status records must live on the
// same redis instance so ExecuteDue can watch and write both records in one
// transaction.
func NewRedisStore(client *redis.Client) *RedisStore {
	return &RedisStore{client: client}
}

// Save creates or replaces a reservation and resets it to reserved. The
// record, due index and user index are written in one pipeline.
func (s *RedisStore) Save(ctx context.Context, res Reservation) error {
	if s == nil || s.client == nil {
		return errors.New("reservation store is not initialized")
	}
	res.Status = StateReserved
	if err := res.Validate(); err != nil {
		return err
	}
	data, err := json.Marshal(res)
	if err != nil {
		return err
	}
	pipe := s.client.Pipeline()
	pipe.Set(ctx, key(res.ID), data, 0)
	pipe.ZAdd(ctx, dueIndexKey, redis.Z{Score: float64(res.ScheduledTime.Unix()), Member: res.ID})
	pipe.SAdd(ctx, userSet(res.UserID), res.ID)
	_, err = pipe.Exec(ctx)
	return err
}

func (s *RedisStore) Get(ctx context.Context, id string) (Reservation, error) {
	if s == nil || s.client == nil {
		return Reservation{}, errors.New("reservation store is not initialized")
	}
	data, err := s.client.Get(ctx, key(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return Reservation{}, ErrNotFound
	}
	if err != nil {
		return Reservation{}, err
	}
	var res Reservation
	if err := json.Unmarshal(data, &res); err != nil {
		return Reservation{}, fmt.Errorf("decode reservation %s: %w", id, err)
	}
	return res, nil
}

// Delete cancels a reservation. Deleting an id that does not exist is not
// an error; an in-flight scheduler cycle that already read it will fail its
// re-read inside the transaction and skip it.
func (s *RedisStore) Delete(ctx context.Context, id string) error {
	if s == nil || s.client == nil {
		return errors.New("reservation store is not initialized")
	}
	res, err := s.Get(ctx, id)
	if errors.Is(err, ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	pipe := s.client.Pipeline()
	pipe.Del(ctx, key(id))
	pipe.ZRem(ctx, dueIndexKey, id)
	pipe.SRem(ctx, userSet(res.UserID), id)
	_, err = pipe.Exec(ctx)
	return err
}

// ListByUser returns the user's reservations that are still reserved.
func (s *RedisStore) ListByUser(ctx context.Context, userID string) ([]Reservation, error) {
	if s == nil || s.client == nil {
		return nil, errors.New("reservation store is not initialized")
	}
	ids, err := s.client.SMembers(ctx, userSet(userID)).Result()
	if err != nil {
		return nil, err
	}
	var out []Reservation
	for _, id := range ids {
		res, err := s.Get(ctx, id)
		if errors.Is(err, ErrNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}
		if res.Status != StateReserved {
			continue
		}
		out = append(out, res)
	}
	return out, nil
}

// ListDue returns reserved reservations with scheduled_time <= before.
// The bound is inclusive; anything scheduled past it is never returned.
func (s *RedisStore) ListDue(ctx context.Context, before time.Time) ([]Reservation, error) {
	if s == nil || s.client == nil {
		return nil, errors.New("reservation store is not initialized")
	}
	ids, err := s.client.ZRangeByScore(ctx, dueIndexKey, &redis.ZRangeBy{
		Min: "-inf",
		Max: fmt.Sprintf("%d", before.Unix()),
	}).Result()
	if err != nil {
		return nil, err
	}
	var out []Reservation
	for _, id := range ids {
		res, err := s.Get(ctx, id)
		if errors.Is(err, ErrNotFound) {
			// Record gone but its index member survived (partial delete);
			// drop the member so the index heals instead of re-skipping
			// the id every cycle.
			s.client.ZRem(ctx, dueIndexKey, id)
			continue
		}
		if err != nil {
			return nil, err
		}
		if res.Status != StateReserved {
			continue
		}
		out = append(out, res)
	}
	return out, nil
}

// ExecuteDue re-reads the reservation and its user's status inside an
// optimistic transaction, calls fn on the fresh copies, and applies fn's
// decision. The pre-transaction snapshot the scheduler selected from is
// never trusted: a reservation already consumed by a concurrent invocation
// fails the reserved check here and is skipped, which is what makes the
// scheduler safe to invoke more often than necessary.
//
// A concurrent write to either watched key aborts the transaction with
// redis.TxFailedErr; the caller leaves the reservation for the next cycle.
func (s *RedisStore) ExecuteDue(ctx context.Context, id string, fn ExecFunc) error {
	if s == nil || s.client == nil {
		return errors.New("reservation store is not initialized")
	}
	if fn == nil {
		return errors.New("exec func is nil")
	}
	rid := strings.TrimSpace(id)
	if rid == "" {
		return errors.New("id is required")
	}

	txn := func(tx *redis.Tx) error {
		data, err := tx.Get(ctx, key(rid)).Bytes()
		if errors.Is(err, redis.Nil) {
			return nil // cancelled since the lookahead query
		}
		if err != nil {
			return err
		}
		var res Reservation
		if err := json.Unmarshal(data, &res); err != nil {
			return fmt.Errorf("decode reservation %s: %w", rid, err)
		}
		if res.Status != StateReserved {
			return nil // already consumed, at-most-once apply
		}

		var cur *status.WorkStatus
		raw, err := tx.Get(ctx, status.Key(res.UserID)).Bytes()
		switch {
		case errors.Is(err, redis.Nil):
		case err != nil:
			return err
		default:
			var st status.WorkStatus
			if err := json.Unmarshal(raw, &st); err == nil {
				cur = &st
			}
		}

		dec := fn(res, cur)

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			if dec.Status != nil {
				stData, err := json.Marshal(dec.Status)
				if err != nil {
					return err
				}
				pipe.Set(ctx, status.Key(dec.Status.UserID), stData, 0)
				pipe.Publish(ctx, status.Channel(dec.Status.UserID), stData)
			}
			switch dec.Disposition {
			case DispositionExecuted:
				res.Status = StateExecuted
				resData, err := json.Marshal(res)
				if err != nil {
					return err
				}
				pipe.Set(ctx, key(rid), resData, 0)
				pipe.ZRem(ctx, dueIndexKey, rid)
			case DispositionRollForward:
				res.ScheduledTime = res.ScheduledTime.AddDate(0, 0, 1)
				resData, err := json.Marshal(res)
				if err != nil {
					return err
				}
				pipe.Set(ctx, key(rid), resData, 0)
				pipe.ZAdd(ctx, dueIndexKey, redis.Z{Score: float64(res.ScheduledTime.Unix()), Member: rid})
			}
			return nil
		})
		return err
	}

	err := s.client.Watch(ctx, txn, key(rid), statusKeyFor(ctx, s, rid))
	if errors.Is(err, redis.TxFailedErr) {
		return fmt.Errorf("reservation %s: concurrent write, left for retry: %w", rid, err)
	}
	return err
}

// statusKeyFor resolves the status key to watch alongside the reservation.
// Reading the record outside the WATCH is fine here: only the user id is
// taken from it, and a reservation's user never changes.
func statusKeyFor(ctx context.Context, s *RedisStore, id string) string {
	res, err := s.Get(ctx, id)
	if err != nil {
		return status.Key("none")
	}
	return status.Key(res.UserID)
}
