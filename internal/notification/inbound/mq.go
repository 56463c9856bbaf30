package inbound

import (
	"context"
	"log/slog"
	"slices"

	"github.com/shandysiswandi/gonotify/internal/notification/entity"
	"github.com/shandysiswandi/gonotify/internal/notification/outbound/mq"
	"github.com/shandysiswandi/gonotify/internal/pkg/config"
	"github.com/shandysiswandi/gonotify/internal/pkg/goroutine"
	"github.com/shandysiswandi/gonotify/internal/pkg/instrument"
	"github.com/shandysiswandi/gonotify/internal/pkg/messaging"
	"github.com/shandysiswandi/gonotify/internal/pkg/uid"
	"github.com/shandysiswandi/gonotify/internal/shared/event"
)

const defaultWorkerConcurrency = 10

func RegisterMQConsumer(
	ctx context.Context,
	cfg config.Config,
	routine *goroutine.Manager,
	messenger messaging.Messaging,
	uuid uid.StringID,
	uc ucConsumer,
	ins instrument.Instrumentation,
) {
	mqHanlder := &MQHandler{uc: uc, uuid: uuid, ins: ins}

	enableConsumerNames := cfg.GetArray("modules.notification.consumer_names")

	concurrency := cfg.GetInt("modules.notification.worker.concurrency")
	if concurrency <= 0 {
		concurrency = defaultWorkerConcurrency
	}
	maxAttempts := cfg.GetInt("modules.notification.worker.max_attempts")

	var consumers = []struct {
		name    string
		topic   string // destination where publisher sent message
		handler messaging.Handler
	}{
		{
			name:    event.DeliveryEmailConsumer,
			topic:   mq.Destination(cfg, entity.ChannelEmail),
			handler: mqHanlder.DeliveryEmail,
		},
		{
			name:    event.DeliverySMSConsumer,
			topic:   mq.Destination(cfg, entity.ChannelSMS),
			handler: mqHanlder.DeliverySMS,
		},
	}

	for _, consumer := range consumers {
		if !slices.Contains(enableConsumerNames, consumer.name) {
			continue
		}

		err := routine.Go(ctx, consumer.name, func(pCtx context.Context) error {
			slog.InfoContext(pCtx, "Running job for handling consumer", "consumer", consumer.name, "topic", consumer.topic)
			return messenger.Consume(pCtx,
				consumer.topic,
				consumer.handler,
				messaging.WithGroup(consumer.name),
				messaging.WithAutoAck(true),
				messaging.WithConcurrency(concurrency),
				messaging.WithMaxInFlight(concurrency),
				messaging.WithMaxAttempts(maxAttempts),
			)
		})
		if err != nil {
			slog.ErrorContext(ctx, "failed to start consumer", "consumer", consumer.name, "error", err)
		}
	}
}
