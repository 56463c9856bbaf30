package event

import "time"

const DeliveryEmailDestination string = "notification.dispatch.email"
const DeliveryEmailConsumer string = "notification_dispatch_email_worker"

const DeliverySMSDestination string = "notification.dispatch.sms"
const DeliverySMSConsumer string = "notification_dispatch_sms_worker"

// DeliveryJobMessage is the payload of one delivery job. The worker treats
// the stored record as authoritative; the other fields are for tracing and
// the early-arrival check.
type DeliveryJobMessage struct {
	NotificationID int64     `json:"notification_id"`
	UserID         string    `json:"user_id"`
	Channel        string    `json:"channel"`
	Recipient      string    `json:"recipient"`
	Subject        string    `json:"subject"`
	Message        string    `json:"message"`
	SendAt         time.Time `json:"send_at"`
}
