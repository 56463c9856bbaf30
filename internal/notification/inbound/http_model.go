package inbound

import (
	"time"

	"github.com/samber/lo"
	"github.com/shandysiswandi/gonotify/internal/notification/entity"
)

type UpsertPreferenceRequest struct {
	EmailEnabled *bool  `json:"email_enabled"`
	SMSEnabled   *bool  `json:"sms_enabled"`
	Email        string `json:"email"`
	PhoneNumber  string `json:"phone_number"`
}

type PreferenceResponse struct {
	UserID       string    `json:"user_id"`
	EmailEnabled bool      `json:"email_enabled"`
	SMSEnabled   bool      `json:"sms_enabled"`
	Email        *string   `json:"email"`
	PhoneNumber  *string   `json:"phone_number"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

func newPreferenceResponse(p *entity.Preference) PreferenceResponse {
	return PreferenceResponse{
		UserID:       p.UserID,
		EmailEnabled: p.EmailEnabled,
		SMSEnabled:   p.SMSEnabled,
		Email:        lo.EmptyableToPtr(p.Email),
		PhoneNumber:  lo.EmptyableToPtr(p.PhoneNumber),
		CreatedAt:    p.CreatedAt,
		UpdatedAt:    p.UpdatedAt,
	}
}

type CreateNotificationRequest struct {
	UserID  string     `json:"user_id"`
	Subject string     `json:"subject"`
	Message string     `json:"message"`
	SendAt  *time.Time `json:"send_at"`
}

type QueuedResponse struct {
	Status string    `json:"status" example:"queued"`
	SendAt time.Time `json:"send_at"`
	Count  *int      `json:"count,omitempty"`
}

func (QueuedResponse) Message() string { return "notification queued" }

type NotificationResponse struct {
	ID        string     `json:"id"`
	UserID    string     `json:"user_id"`
	Subject   string     `json:"subject"`
	Message   string     `json:"message"`
	Channel   string     `json:"channel"`
	Recipient string     `json:"recipient"`
	Status    string     `json:"status"`
	SendAt    time.Time  `json:"send_at"`
	SentAt    *time.Time `json:"sent_at"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
}

type NotificationsResponse struct {
	Notifications []NotificationResponse `json:"notifications"`

	limit  int32
	offset int32
}

func (r NotificationsResponse) Meta() map[string]any {
	return map[string]any{
		"limit":  r.limit,
		"offset": r.offset,
		"count":  len(r.Notifications),
	}
}

type TriggerAlertRequest struct {
	Subject      string     `json:"subject"`
	Message      string     `json:"message"`
	Emails       []string   `json:"emails"`
	PhoneNumbers []string   `json:"phone_numbers"`
	SendAt       *time.Time `json:"send_at"`
}
