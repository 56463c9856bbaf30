package entity

import "time"

// Notification is one per-channel delivery attempt of a logical request.
// Recipient is a snapshot taken at creation time.
type Notification struct {
	ID        int64
	UserID    string
	Subject   string
	Message   string
	Channel   Channel
	Recipient string
	Status    Status
	SendAt    time.Time
	SentAt    *time.Time
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Job is the unit of work handed to the worker tier for one Notification.
type Job struct {
	NotificationID int64
	UserID         string
	Channel        Channel
	Recipient      string
	Subject        string
	Message        string
	SendAt         time.Time
}

// NewJob builds the job correlated to n.
func NewJob(n Notification) Job {
	return Job{
		NotificationID: n.ID,
		UserID:         n.UserID,
		Channel:        n.Channel,
		Recipient:      n.Recipient,
		Subject:        n.Subject,
		Message:        n.Message,
		SendAt:         n.SendAt,
	}
}

type ListNotificationsFilter struct {
	UserID string
	Status Status
	Limit  int32
	Offset int32
}
