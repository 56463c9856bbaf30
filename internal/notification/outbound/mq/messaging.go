package mq

import (
	"context"
	"encoding/json"
	"strconv"
	"time"

	"github.com/shandysiswandi/gonotify/internal/notification/entity"
	"github.com/shandysiswandi/gonotify/internal/pkg/config"
	"github.com/shandysiswandi/gonotify/internal/pkg/instrument"
	"github.com/shandysiswandi/gonotify/internal/pkg/messaging"
	"github.com/shandysiswandi/gonotify/internal/shared/event"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

const keyOfCorrelationID string = "cID"

type Messaging struct {
	client messaging.Messaging
	cfg    config.Config
	ins    instrument.Instrumentation
}

func NewMessaging(client messaging.Messaging, cfg config.Config, ins instrument.Instrumentation) *Messaging {
	return &Messaging{client: client, cfg: cfg, ins: ins}
}

// Destination returns the topic of ch, falling back to the built-in name
// when modules.notification.topics.<channel> is unset.
func Destination(cfg config.Config, ch entity.Channel) string {
	if topic := cfg.GetString("modules.notification.topics." + ch.String()); topic != "" {
		return topic
	}

	switch ch {
	case entity.ChannelEmail:
		return event.DeliveryEmailDestination
	case entity.ChannelSMS:
		return event.DeliverySMSDestination
	default:
		return "notification.dispatch." + ch.String()
	}
}

// PublishJob enqueues job on its channel topic. A positive delay is passed
// to the broker as the activation hint.
func (m *Messaging) PublishJob(ctx context.Context, job entity.Job, delay time.Duration) error {
	ctx, span := m.ins.Tracer("notification.outbound.mq").Start(ctx, "PublishJob")
	defer span.End()

	span.SetAttributes(
		attribute.Int64("notification.id", job.NotificationID),
		attribute.String("notification.channel", job.Channel.String()),
		attribute.Int64("notification.delay_ms", delay.Milliseconds()),
	)

	body, err := json.Marshal(event.DeliveryJobMessage{
		NotificationID: job.NotificationID,
		UserID:         job.UserID,
		Channel:        job.Channel.String(),
		Recipient:      job.Recipient,
		Subject:        job.Subject,
		Message:        job.Message,
		SendAt:         job.SendAt,
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return err
	}

	cID := instrument.GetCorrelationID(ctx)
	if _, err := m.client.Publish(ctx, Destination(m.cfg, job.Channel), messaging.OutgoingMessage{
		Body:    body,
		Key:     []byte(strconv.FormatInt(job.NotificationID, 10)),
		Headers: []messaging.Header{{Key: keyOfCorrelationID, Value: []byte(cID)}},
		Delay:   delay,
	}); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return err
	}

	return nil
}
