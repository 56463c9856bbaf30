package sqlite

import (
	"context"

	"github.com/shandysiswandi/gonotify/internal/notification/entity"
)

const getPreference = `
SELECT user_id, email_enabled, sms_enabled, COALESCE(email, ''), COALESCE(phone_number, ''), created_at, updated_at
FROM notification_preferences
WHERE user_id = ?`

const upsertPreference = `
INSERT INTO notification_preferences (user_id, email_enabled, sms_enabled, email, phone_number, created_at, updated_at)
VALUES (?1, COALESCE(?2, 1), COALESCE(?3, 1), NULLIF(?4, ''), NULLIF(?5, ''), ?6, ?7)
ON CONFLICT (user_id) DO UPDATE SET
    email_enabled = COALESCE(?2, notification_preferences.email_enabled),
    sms_enabled   = COALESCE(?3, notification_preferences.sms_enabled),
    email         = COALESCE(excluded.email, notification_preferences.email),
    phone_number  = COALESCE(excluded.phone_number, notification_preferences.phone_number),
    updated_at    = excluded.updated_at
RETURNING user_id, email_enabled, sms_enabled, COALESCE(email, ''), COALESCE(phone_number, ''), created_at, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func (s *DB) GetPreference(ctx context.Context, userID string) (_ *entity.Preference, err error) {
	ctx, span := s.startSpan(ctx, "GetPreference")
	defer func() { s.endSpan(span, err) }()

	p, err := scanPreference(s.conn.QueryRowContext(ctx, getPreference, userID))
	if err != nil {
		return nil, s.mapError(err)
	}

	return p, nil
}

func (s *DB) UpsertPreference(ctx context.Context, in entity.PreferenceUpdate) (_ *entity.Preference, err error) {
	ctx, span := s.startSpan(ctx, "UpsertPreference")
	defer func() { s.endSpan(span, err) }()

	now := toMillis(s.now())
	p, err := scanPreference(s.conn.QueryRowContext(ctx, upsertPreference,
		in.UserID, in.EmailEnabled, in.SMSEnabled, in.Email, in.PhoneNumber, now, now,
	))
	if err != nil {
		return nil, s.mapError(err)
	}

	return p, nil
}

func scanPreference(row rowScanner) (*entity.Preference, error) {
	var (
		p                    entity.Preference
		createdAt, updatedAt int64
	)

	if err := row.Scan(&p.UserID, &p.EmailEnabled, &p.SMSEnabled, &p.Email, &p.PhoneNumber, &createdAt, &updatedAt); err != nil {
		return nil, err
	}
	p.CreatedAt = fromMillis(createdAt)
	p.UpdatedAt = fromMillis(updatedAt)

	return &p, nil
}
