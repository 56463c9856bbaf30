package goroutine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime"
	"sync"

	"github.com/shandysiswandi/gonotify/internal/pkg/stacktrace"
)

// DefaultMaxGoroutine is multiplied by NumCPU when NewManager receives a non-positive limit.
const DefaultMaxGoroutine int = 100

var (
	// ErrClosed is returned by Go after Wait has been called.
	ErrClosed = errors.New("goroutine: manager is closed")
	// ErrLimitReached is returned by Go when every slot is taken.
	ErrLimitReached = errors.New("goroutine: maximum goroutine limit reached")
)

// Manager runs long-lived tasks (consumers, schedulers) under a concurrency
// limit and collects their errors for shutdown.
type Manager struct {
	mu   sync.Mutex
	errs []error
	wg   sync.WaitGroup
	sema chan struct{}

	stateMu sync.RWMutex
	closed  bool
}

// NewManager creates a new Manager with the provided maximum concurrency.
func NewManager(maxGoroutine int) *Manager {
	if maxGoroutine < 1 {
		maxGoroutine = runtime.NumCPU() * DefaultMaxGoroutine
	}

	return &Manager{sema: make(chan struct{}, maxGoroutine)}
}

// Go starts f in a goroutine when a slot is free. A panic in f is logged and
// recorded as an error; a cancellation error is not recorded.
func (g *Manager) Go(ctx context.Context, name string, f func(ctx context.Context) error) error {
	g.stateMu.RLock()
	defer g.stateMu.RUnlock()

	if g.closed {
		return ErrClosed
	}

	select {
	case g.sema <- struct{}{}:
	default:
		return ErrLimitReached
	}

	g.wg.Go(func() {
		defer func() { <-g.sema }()
		g.record(name, g.run(ctx, name, f))
	})

	return nil
}

func (g *Manager) run(ctx context.Context, name string, f func(ctx context.Context) error) (err error) {
	defer func() {
		if rvr := recover(); rvr != nil {
			stacktrace.LogPanic(ctx, "panic occurred in goroutine", rvr, "task", name)
			err = fmt.Errorf("panic: %v", rvr)
		}
	}()

	if ctx.Err() != nil {
		slog.WarnContext(ctx, "goroutine canceled before start", "task", name, "because", ctx.Err())
		return nil
	}

	return f(ctx)
}

func (g *Manager) record(name string, err error) {
	if err == nil || errors.Is(err, context.Canceled) {
		return
	}

	g.mu.Lock()
	g.errs = append(g.errs, fmt.Errorf("%s: %w", name, err))
	g.mu.Unlock()
}

// Wait closes the manager, blocks until every task returns and joins their errors.
func (g *Manager) Wait() error {
	g.stateMu.Lock()
	g.closed = true
	g.stateMu.Unlock()

	g.wg.Wait()

	g.mu.Lock()
	defer g.mu.Unlock()
	return errors.Join(g.errs...)
}
