// Package idempotency guards side effects that must run once per key, such as
// handing one notification to a provider, across workers sharing a Redis.
package idempotency

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

// ErrInvalidState is returned when the stored guard holds an unknown value.
var ErrInvalidState = errors.New("idempotency: invalid state")

type State string

const (
	StateNone       State = "none"        // guard taken, first run
	StateInProgress State = "in_progress" // another worker holds the guard
	StateCompleted  State = "completed"   // done before, skip
	StateFailed     State = "failed"      // guard taken over from a failed run
	StateError      State = "error"       // guard unavailable
)

func (s State) String() string {
	return string(s)
}

// Idempotency is the guard contract used by delivery workers.
type Idempotency interface {
	// Acquire takes the guard for lockDuration when it is free or left failed.
	// StateInProgress and StateCompleted mean the caller must not proceed.
	Acquire(ctx context.Context, key string, lockDuration time.Duration) (State, error)
	MarkCompleted(ctx context.Context, key string, ttl time.Duration) error
	MarkFailed(ctx context.Context, key string, ttl time.Duration) error
}

// acquireScript takes the guard when it is missing or failed and returns the
// previous value, "" when there was none.
var acquireScript = redis.NewScript(`
local cur = redis.call('GET', KEYS[1])
if not cur or cur == ARGV[2] then
  redis.call('SET', KEYS[1], ARGV[3], 'PX', ARGV[1])
end
return cur or ''
`)

// StateTracker is the Redis implementation of Idempotency.
type StateTracker struct {
	client *redis.Client
	prefix string
}

func New(client *redis.Client) *StateTracker {
	return &StateTracker{client: client, prefix: "idempotency:"}
}

func (s *StateTracker) Acquire(ctx context.Context, key string, lockDuration time.Duration) (State, error) {
	prev, err := acquireScript.Run(ctx, s.client, []string{s.prefix + key},
		lockDuration.Milliseconds(), StateFailed.String(), StateInProgress.String(),
	).Text()
	if err != nil {
		return StateError, err
	}

	switch State(prev) {
	case "":
		return StateNone, nil
	case StateInProgress, StateCompleted, StateFailed:
		return State(prev), nil
	default:
		return StateError, ErrInvalidState
	}
}

func (s *StateTracker) MarkCompleted(ctx context.Context, key string, ttl time.Duration) error {
	return s.client.Set(ctx, s.prefix+key, StateCompleted.String(), ttl).Err()
}

func (s *StateTracker) MarkFailed(ctx context.Context, key string, ttl time.Duration) error {
	return s.client.Set(ctx, s.prefix+key, StateFailed.String(), ttl).Err()
}
