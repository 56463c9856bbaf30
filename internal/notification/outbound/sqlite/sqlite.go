// Package sqlite stores preferences and notification records in an embedded
// SQLite database. Timestamps are unix milliseconds.
package sqlite

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"time"

	"github.com/shandysiswandi/gonotify/internal/pkg/goerror"
	"github.com/shandysiswandi/gonotify/internal/pkg/instrument"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	driver "modernc.org/sqlite"
	sqlitelib "modernc.org/sqlite/lib"
)

//go:embed schema.sql
var schema string

type DB struct {
	conn *sql.DB
	ins  instrument.Instrumentation
	now  func() time.Time
}

// Open opens the database at dsn (":memory:" for an ephemeral one) and
// creates the schema.
func Open(ctx context.Context, dsn string, busyTimeout time.Duration, ins instrument.Instrumentation) (*DB, error) {
	conn, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, err
	}
	// one writer; also keeps ":memory:" on a single connection
	conn.SetMaxOpenConns(1)
	conn.SetMaxIdleConns(1)

	pragmas := []string{"PRAGMA journal_mode = WAL", "PRAGMA synchronous = NORMAL"}
	if busyTimeout > 0 {
		pragmas = append(pragmas, fmt.Sprintf("PRAGMA busy_timeout = %d", busyTimeout.Milliseconds()))
	}
	for _, p := range pragmas {
		if _, err := conn.ExecContext(ctx, p); err != nil {
			//nolint:errcheck,gosec // already failing
			conn.Close()
			return nil, fmt.Errorf("sqlite %q: %w", p, err)
		}
	}

	if _, err := conn.ExecContext(ctx, schema); err != nil {
		//nolint:errcheck,gosec // already failing
		conn.Close()
		return nil, fmt.Errorf("sqlite migrate: %w", err)
	}

	return &DB{conn: conn, ins: ins, now: time.Now}, nil
}

func (s *DB) Ping(ctx context.Context) error {
	return s.conn.PingContext(ctx)
}

func (s *DB) Close() error {
	return s.conn.Close()
}

func (s *DB) mapError(err error) error {
	if err == nil {
		return nil
	}

	if errors.Is(err, sql.ErrNoRows) {
		return goerror.ErrNotFound
	}

	var se *driver.Error
	if errors.As(err, &se) {
		switch se.Code() {
		case sqlitelib.SQLITE_CONSTRAINT_PRIMARYKEY, sqlitelib.SQLITE_CONSTRAINT_UNIQUE:
			return goerror.ErrConflict
		}
	}

	return err
}

func (s *DB) startSpan(ctx context.Context, name string) (context.Context, trace.Span) {
	return s.ins.Tracer("notification.outbound.sqlite").Start(ctx, name)
}

func (s *DB) endSpan(span trace.Span, err error) {
	if err != nil && !errors.Is(err, goerror.ErrNotFound) && !errors.Is(err, goerror.ErrConflict) {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}

func toMillis(t time.Time) int64 { return t.UnixMilli() }

func fromMillis(ms int64) time.Time { return time.UnixMilli(ms).UTC() }
