package inbound

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/shandysiswandi/gonotify/internal/notification/entity"
	"github.com/shandysiswandi/gonotify/internal/notification/usecase"
	"github.com/shandysiswandi/gonotify/internal/pkg/instrument"
	"github.com/shandysiswandi/gonotify/internal/pkg/messaging"
	"github.com/shandysiswandi/gonotify/internal/pkg/uid"
	"github.com/shandysiswandi/gonotify/internal/shared/event"
)

const keyOfCorrelationID string = "cID"

type MQHandler struct {
	uc   ucConsumer
	uuid uid.StringID
	ins  instrument.Instrumentation
}

func (h *MQHandler) ensureCorrelationID(ctx context.Context, headers []messaging.Header) context.Context {
	if cID := messaging.HeaderValue(headers, keyOfCorrelationID); cID != "" {
		return instrument.SetCorrelationID(ctx, cID)
	}
	return instrument.SetCorrelationID(ctx, h.uuid.Generate())
}

func (h *MQHandler) DeliveryEmail(ctx context.Context, msg messaging.Message) error {
	return h.delivery(ctx, "DeliveryEmail", entity.ChannelEmail, msg)
}

func (h *MQHandler) DeliverySMS(ctx context.Context, msg messaging.Message) error {
	return h.delivery(ctx, "DeliverySMS", entity.ChannelSMS, msg)
}

// delivery acks malformed jobs and nacks only when the usecase could not
// store the outcome.
func (h *MQHandler) delivery(ctx context.Context, name string, topicChannel entity.Channel, msg messaging.Message) error {
	ctx = h.ensureCorrelationID(ctx, msg.Headers())

	ctx, span := h.ins.Tracer("notification.inbound.mq").Start(ctx, name)
	defer span.End()

	body := msg.Body()
	slog.InfoContext(ctx, "consume: delivery job", "channel", topicChannel.String(), "msg_id", msg.ID(), "attempt", msg.Attempt())

	var payload event.DeliveryJobMessage
	if err := json.Unmarshal(body, &payload); err != nil {
		slog.ErrorContext(ctx, "failed to parse message body of delivery job", "msg_body", string(body), "error", err)
		return nil
	}

	ch := entity.ChannelFromString(payload.Channel)
	if ch == entity.ChannelUnknown {
		ch = topicChannel
	}

	if err := h.uc.ProcessDelivery(ctx, usecase.ProcessDeliveryInput{
		NotificationID: payload.NotificationID,
		Channel:        ch,
		SendAt:         payload.SendAt,
	}); err != nil {
		slog.ErrorContext(ctx, "failed to consume delivery job", "notification_id", payload.NotificationID, "error", err)
		return err
	}

	return nil
}
