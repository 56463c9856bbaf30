package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"time"

	"github.com/shandysiswandi/gonotify/internal/notification/entity"
)

const notificationColumns = `id, user_id, subject, message, channel, recipient, status, send_at, sent_at, created_at, updated_at`

const createNotification = `
INSERT INTO notification_records (` + notificationColumns + `)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, NULL, ?, ?)`

const getNotification = `SELECT ` + notificationColumns + ` FROM notification_records WHERE id = ?`

const listNotifications = `
SELECT ` + notificationColumns + `
FROM notification_records
WHERE user_id = ? AND (? = 0 OR status = ?)
ORDER BY created_at DESC, id DESC
LIMIT ? OFFSET ?`

const markNotification = `
UPDATE notification_records
SET status = ?, sent_at = ?, updated_at = ?
WHERE id = ? AND status = ?`

func (s *DB) CreateNotifications(ctx context.Context, items []entity.Notification) (err error) {
	ctx, span := s.startSpan(ctx, "CreateNotifications")
	defer func() { s.endSpan(span, err) }()

	if len(items) == 0 {
		return nil
	}

	tx, err := s.conn.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		if rErr := tx.Rollback(); rErr != nil && !errors.Is(rErr, sql.ErrTxDone) {
			slog.ErrorContext(ctx, "failed to rolback", "error", rErr)
		}
	}()

	stmt, err := tx.PrepareContext(ctx, createNotification)
	if err != nil {
		return err
	}
	//nolint:errcheck // closed with the transaction
	defer stmt.Close()

	for _, n := range items {
		createdAt := n.CreatedAt
		if createdAt.IsZero() {
			createdAt = s.now()
		}
		if _, err = stmt.ExecContext(ctx,
			n.ID, n.UserID, n.Subject, n.Message, int16(n.Channel), n.Recipient, int16(n.Status),
			toMillis(n.SendAt), toMillis(createdAt), toMillis(createdAt),
		); err != nil {
			return s.mapError(err)
		}
	}

	return tx.Commit()
}

func (s *DB) GetNotification(ctx context.Context, id int64) (_ *entity.Notification, err error) {
	ctx, span := s.startSpan(ctx, "GetNotification")
	defer func() { s.endSpan(span, err) }()

	n, err := scanNotification(s.conn.QueryRowContext(ctx, getNotification, id))
	if err != nil {
		return nil, s.mapError(err)
	}

	return n, nil
}

func (s *DB) ListNotifications(ctx context.Context, f entity.ListNotificationsFilter) (_ []entity.Notification, err error) {
	ctx, span := s.startSpan(ctx, "ListNotifications")
	defer func() { s.endSpan(span, err) }()

	rows, err := s.conn.QueryContext(ctx, listNotifications,
		f.UserID, int16(f.Status), int16(f.Status), f.Limit, f.Offset,
	)
	if err != nil {
		return nil, s.mapError(err)
	}
	//nolint:errcheck // read-only
	defer rows.Close()

	var items []entity.Notification
	for rows.Next() {
		n, err := scanNotification(rows)
		if err != nil {
			return nil, s.mapError(err)
		}
		items = append(items, *n)
	}
	if err := rows.Err(); err != nil {
		return nil, s.mapError(err)
	}

	return items, nil
}

func (s *DB) MarkNotificationSent(ctx context.Context, id int64, sentAt time.Time) (_ bool, err error) {
	ctx, span := s.startSpan(ctx, "MarkNotificationSent")
	defer func() { s.endSpan(span, err) }()

	return s.mark(ctx, id, entity.StatusSent, toMillis(sentAt))
}

func (s *DB) MarkNotificationFailed(ctx context.Context, id int64) (_ bool, err error) {
	ctx, span := s.startSpan(ctx, "MarkNotificationFailed")
	defer func() { s.endSpan(span, err) }()

	return s.mark(ctx, id, entity.StatusFailed, nil)
}

func (s *DB) mark(ctx context.Context, id int64, status entity.Status, sentAt any) (bool, error) {
	res, err := s.conn.ExecContext(ctx, markNotification,
		int16(status), sentAt, toMillis(s.now()), id, int16(entity.StatusPending),
	)
	if err != nil {
		return false, s.mapError(err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}

	return n == 1, nil
}

func scanNotification(row rowScanner) (*entity.Notification, error) {
	var (
		n                            entity.Notification
		channel, status              int16
		sendAt, createdAt, updatedAt int64
		sentAt                       sql.NullInt64
	)

	if err := row.Scan(
		&n.ID, &n.UserID, &n.Subject, &n.Message, &channel, &n.Recipient, &status,
		&sendAt, &sentAt, &createdAt, &updatedAt,
	); err != nil {
		return nil, err
	}

	n.Channel = entity.Channel(channel)
	n.Status = entity.Status(status)
	n.SendAt = fromMillis(sendAt)
	n.CreatedAt = fromMillis(createdAt)
	n.UpdatedAt = fromMillis(updatedAt)
	if sentAt.Valid {
		t := fromMillis(sentAt.Int64)
		n.SentAt = &t
	}

	return &n, nil
}
