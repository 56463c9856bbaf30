package db

import (
	"context"

	"github.com/shandysiswandi/gonotify/internal/notification/entity"
)

const getPreference = `
SELECT user_id, email_enabled, sms_enabled, COALESCE(email, ''), COALESCE(phone_number, ''), created_at, updated_at
FROM notification_preferences
WHERE user_id = $1`

// Empty addresses are stored as NULL on insert and keep the stored value on
// conflict. Null flags are enabled on insert and keep the stored value on
// conflict.
const upsertPreference = `
INSERT INTO notification_preferences (user_id, email_enabled, sms_enabled, email, phone_number, created_at, updated_at)
VALUES ($1, COALESCE($2::boolean, TRUE), COALESCE($3::boolean, TRUE), NULLIF($4, ''), NULLIF($5, ''), NOW(), NOW())
ON CONFLICT (user_id) DO UPDATE SET
    email_enabled = COALESCE($2::boolean, notification_preferences.email_enabled),
    sms_enabled   = COALESCE($3::boolean, notification_preferences.sms_enabled),
    email         = COALESCE(EXCLUDED.email, notification_preferences.email),
    phone_number  = COALESCE(EXCLUDED.phone_number, notification_preferences.phone_number),
    updated_at    = NOW()
RETURNING user_id, email_enabled, sms_enabled, COALESCE(email, ''), COALESCE(phone_number, ''), created_at, updated_at`

func (s *DB) GetPreference(ctx context.Context, userID string) (_ *entity.Preference, err error) {
	ctx, span := s.startSpan(ctx, "GetPreference")
	defer func() { s.endSpan(span, err) }()

	var p entity.Preference
	err = s.conn.QueryRow(ctx, getPreference, userID).Scan(
		&p.UserID, &p.EmailEnabled, &p.SMSEnabled, &p.Email, &p.PhoneNumber, &p.CreatedAt, &p.UpdatedAt,
	)
	if err != nil {
		return nil, s.mapError(err)
	}

	return &p, nil
}

func (s *DB) UpsertPreference(ctx context.Context, in entity.PreferenceUpdate) (_ *entity.Preference, err error) {
	ctx, span := s.startSpan(ctx, "UpsertPreference")
	defer func() { s.endSpan(span, err) }()

	var p entity.Preference
	err = s.conn.QueryRow(ctx, upsertPreference,
		in.UserID, in.EmailEnabled, in.SMSEnabled, in.Email, in.PhoneNumber,
	).Scan(&p.UserID, &p.EmailEnabled, &p.SMSEnabled, &p.Email, &p.PhoneNumber, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return nil, s.mapError(err)
	}

	return &p, nil
}
