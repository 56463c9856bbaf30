package db

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/shandysiswandi/gonotify/internal/notification/entity"
)

const notificationColumns = `id, user_id, subject, message, channel, recipient, status, send_at, sent_at, created_at, updated_at`

const createNotification = `
INSERT INTO notification_records (` + notificationColumns + `)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, NULL, $9, $9)`

const getNotification = `SELECT ` + notificationColumns + ` FROM notification_records WHERE id = $1`

const listNotifications = `
SELECT ` + notificationColumns + `
FROM notification_records
WHERE user_id = $1 AND ($2::SMALLINT = 0 OR status = $2)
ORDER BY created_at DESC, id DESC
LIMIT $3 OFFSET $4`

const markNotification = `
UPDATE notification_records
SET status = $2, sent_at = $3, updated_at = NOW()
WHERE id = $1 AND status = $4`

// CreateNotifications inserts every record in one transaction. Nothing is
// stored when any insert fails.
func (s *DB) CreateNotifications(ctx context.Context, items []entity.Notification) (err error) {
	ctx, span := s.startSpan(ctx, "CreateNotifications")
	defer func() { s.endSpan(span, err) }()

	if len(items) == 0 {
		return nil
	}

	tx, err := s.conn.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer func() {
		if rErr := tx.Rollback(ctx); rErr != nil && !errors.Is(rErr, pgx.ErrTxClosed) {
			slog.ErrorContext(ctx, "failed to rolback", "error", rErr)
		}
	}()

	batch := &pgx.Batch{}
	for _, n := range items {
		createdAt := n.CreatedAt
		if createdAt.IsZero() {
			createdAt = time.Now()
		}
		batch.Queue(createNotification,
			n.ID, n.UserID, n.Subject, n.Message, n.Channel, n.Recipient, n.Status, n.SendAt, createdAt,
		)
	}

	br := tx.SendBatch(ctx, batch)
	for range items {
		if _, err = br.Exec(); err != nil {
			//nolint:errcheck,gosec // already failing
			br.Close()
			return s.mapError(err)
		}
	}
	if err = br.Close(); err != nil {
		return s.mapError(err)
	}

	return tx.Commit(ctx)
}

func (s *DB) GetNotification(ctx context.Context, id int64) (_ *entity.Notification, err error) {
	ctx, span := s.startSpan(ctx, "GetNotification")
	defer func() { s.endSpan(span, err) }()

	n, err := scanNotification(s.conn.QueryRow(ctx, getNotification, id))
	if err != nil {
		return nil, s.mapError(err)
	}

	return n, nil
}

func (s *DB) ListNotifications(ctx context.Context, f entity.ListNotificationsFilter) (_ []entity.Notification, err error) {
	ctx, span := s.startSpan(ctx, "ListNotifications")
	defer func() { s.endSpan(span, err) }()

	rows, err := s.conn.Query(ctx, listNotifications, f.UserID, f.Status, f.Limit, f.Offset)
	if err != nil {
		return nil, s.mapError(err)
	}

	items, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (entity.Notification, error) {
		n, err := scanNotification(row)
		if err != nil {
			return entity.Notification{}, err
		}
		return *n, nil
	})
	if err != nil {
		return nil, s.mapError(err)
	}

	return items, nil
}

// MarkNotificationSent moves a pending record to sent. It reports false when
// the record was no longer pending.
func (s *DB) MarkNotificationSent(ctx context.Context, id int64, sentAt time.Time) (_ bool, err error) {
	ctx, span := s.startSpan(ctx, "MarkNotificationSent")
	defer func() { s.endSpan(span, err) }()

	tag, err := s.conn.Exec(ctx, markNotification, id, entity.StatusSent, sentAt, entity.StatusPending)
	if err != nil {
		return false, s.mapError(err)
	}

	return tag.RowsAffected() == 1, nil
}

// MarkNotificationFailed moves a pending record to failed, leaving sent_at
// null. It reports false when the record was no longer pending.
func (s *DB) MarkNotificationFailed(ctx context.Context, id int64) (_ bool, err error) {
	ctx, span := s.startSpan(ctx, "MarkNotificationFailed")
	defer func() { s.endSpan(span, err) }()

	tag, err := s.conn.Exec(ctx, markNotification, id, entity.StatusFailed, nil, entity.StatusPending)
	if err != nil {
		return false, s.mapError(err)
	}

	return tag.RowsAffected() == 1, nil
}

func scanNotification(row pgx.Row) (*entity.Notification, error) {
	var (
		n      entity.Notification
		sentAt pgtype.Timestamptz
	)

	if err := row.Scan(
		&n.ID, &n.UserID, &n.Subject, &n.Message, &n.Channel, &n.Recipient, &n.Status,
		&n.SendAt, &sentAt, &n.CreatedAt, &n.UpdatedAt,
	); err != nil {
		return nil, err
	}

	if sentAt.Valid {
		t := sentAt.Time
		n.SentAt = &t
	}

	return &n, nil
}
