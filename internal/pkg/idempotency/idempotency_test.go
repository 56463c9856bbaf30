package idempotency

import (
	"context"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/testcontainers/testcontainers-go"
	tcredis "github.com/testcontainers/testcontainers-go/modules/redis"
)

func newTestTracker(t *testing.T) (*StateTracker, *redis.Client) {
	t.Helper()

	if testing.Short() {
		t.Skip("redis container test skipped in short mode")
	}

	ctx := context.Background()
	ctr, err := tcredis.Run(ctx, "redis:7-alpine")
	if err != nil {
		t.Skipf("redis container unavailable: %v", err)
	}
	t.Cleanup(func() {
		if err := testcontainers.TerminateContainer(ctr); err != nil {
			t.Logf("terminate redis container: %v", err)
		}
	})

	uri, err := ctr.ConnectionString(ctx)
	if err != nil {
		t.Fatalf("connection string: %v", err)
	}
	opt, err := redis.ParseURL(uri)
	if err != nil {
		t.Fatalf("parse url: %v", err)
	}

	client := redis.NewClient(opt)
	t.Cleanup(func() { _ = client.Close() })
	return New(client), client
}

func TestStateTracker(t *testing.T) {
	tracker, client := newTestTracker(t)
	ctx := context.Background()

	t.Run("second acquire sees in progress", func(t *testing.T) {
		// Act
		first, err := tracker.Acquire(ctx, "n:1", time.Minute)
		if err != nil {
			t.Fatalf("Acquire() error = %v", err)
		}
		second, err := tracker.Acquire(ctx, "n:1", time.Minute)
		if err != nil {
			t.Fatalf("Acquire() error = %v", err)
		}

		// Assert
		if first != StateNone || second != StateInProgress {
			t.Fatalf("states = %s, %s", first, second)
		}
	})

	t.Run("completed stays completed", func(t *testing.T) {
		// Arrange
		if _, err := tracker.Acquire(ctx, "n:2", time.Minute); err != nil {
			t.Fatalf("Acquire() error = %v", err)
		}
		if err := tracker.MarkCompleted(ctx, "n:2", time.Hour); err != nil {
			t.Fatalf("MarkCompleted() error = %v", err)
		}

		// Act
		got, err := tracker.Acquire(ctx, "n:2", time.Minute)

		// Assert
		if err != nil || got != StateCompleted {
			t.Fatalf("Acquire() = %s, %v", got, err)
		}
	})

	t.Run("failed run is taken over once", func(t *testing.T) {
		// Arrange
		if err := tracker.MarkFailed(ctx, "n:3", time.Hour); err != nil {
			t.Fatalf("MarkFailed() error = %v", err)
		}

		// Act
		retry, err := tracker.Acquire(ctx, "n:3", time.Minute)
		if err != nil {
			t.Fatalf("Acquire() error = %v", err)
		}
		duplicate, err := tracker.Acquire(ctx, "n:3", time.Minute)
		if err != nil {
			t.Fatalf("Acquire() error = %v", err)
		}

		// Assert
		if retry != StateFailed || duplicate != StateInProgress {
			t.Fatalf("states = %s, %s", retry, duplicate)
		}
	})

	t.Run("unknown value is invalid", func(t *testing.T) {
		if err := client.Set(ctx, "idempotency:n:4", "weird", time.Minute).Err(); err != nil {
			t.Fatalf("seed: %v", err)
		}

		got, err := tracker.Acquire(ctx, "n:4", time.Minute)

		if got != StateError || err == nil {
			t.Fatalf("Acquire() = %s, %v", got, err)
		}
	})
}
