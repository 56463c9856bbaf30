package app

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"time"
)

const defaultShutdownTimeout = 10 * time.Second

// Run serves HTTP until ctx is done or the server fails, then shuts down.
// The returned error is the server failure, if any.
func (a *App) Run(ctx context.Context) error {
	l, err := net.Listen("tcp", a.httpServer.Addr)
	if err != nil {
		a.shutdown()
		return err
	}

	return a.serve(ctx, l)
}

func (a *App) serve(ctx context.Context, l net.Listener) error {
	serveErr := make(chan error, 1)
	go func() {
		slog.Info("http server listening", "address", l.Addr().String())
		serveErr <- a.httpServer.Serve(l)
	}()

	var err error
	select {
	case <-ctx.Done():
		slog.Info("shutdown signal received")
	case err = <-serveErr:
		if errors.Is(err, http.ErrServerClosed) {
			err = nil
		}
	}

	a.shutdown()
	return err
}

func (a *App) shutdown() {
	timeout := a.config.GetSecond("app.server.shutdown_timeout_seconds")
	if timeout <= 0 {
		timeout = defaultShutdownTimeout
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	a.Stop(ctx)
}

// Stop stops intake first (HTTP, then consumers), waits for in-flight work
// and releases resources newest first.
func (a *App) Stop(ctx context.Context) {
	if err := a.httpServer.Shutdown(ctx); err != nil {
		slog.ErrorContext(ctx, "failed to shutdown http server", "error", err)
	}

	a.cancel()

	slog.InfoContext(ctx, "waiting for background tasks")
	if err := a.goroutine.Wait(); err != nil {
		slog.ErrorContext(ctx, "background tasks ended with errors", "error", err)
	}

	for i := len(a.closers) - 1; i >= 0; i-- {
		c := a.closers[i]
		if err := c.fn(ctx); err != nil {
			slog.ErrorContext(ctx, "failed to close resource", "name", c.name, "error", err)
		}
	}

	slog.Info("application stopped")
}
