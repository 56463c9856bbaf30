package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/sethvargo/go-retry"
	"github.com/shandysiswandi/gonotify/internal/notification/entity"
	"github.com/shandysiswandi/gonotify/internal/pkg/goerror"
	"github.com/shandysiswandi/gonotify/internal/pkg/idempotency"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const (
	defaultStatusRetryMax  = 3
	defaultStatusRetryBase = 100 * time.Millisecond
	defaultDeliveryLock    = time.Minute
	defaultDeliveryTTL     = 24 * time.Hour
)

type ProcessDeliveryInput struct {
	NotificationID int64
	Channel        entity.Channel
	SendAt         time.Time
}

// ProcessDelivery drives one delivery job through the record state machine.
//
// A nil return means the job is done and may be acked: delivered, failed,
// dropped, skipped, or deferred. An error is returned only when the terminal
// status could not be stored, so the broker redelivers.
func (s *Usecase) ProcessDelivery(ctx context.Context, in ProcessDeliveryInput) error {
	ctx, span := s.startSpan(ctx, "ProcessDelivery")
	defer span.End()

	if in.NotificationID <= 0 {
		slog.WarnContext(ctx, "delivery job without notification id, dropped")
		return nil
	}

	if deferred, err := s.deferEarlyJob(ctx, in); deferred || err != nil {
		return err
	}

	if s.idemp == nil {
		return s.deliver(ctx, in)
	}

	key := "notification:delivery:" + strconv.FormatInt(in.NotificationID, 10)
	state, err := s.idemp.Acquire(ctx, key, s.cfgDuration("modules.notification.worker.lock_seconds", defaultDeliveryLock))
	if err != nil {
		slog.WarnContext(ctx, "failed to acquire delivery guard, continuing without it",
			"notification_id", in.NotificationID,
			"error", err,
		)
		return s.deliver(ctx, in)
	}

	switch state {
	case idempotency.StateInProgress, idempotency.StateCompleted:
		slog.InfoContext(ctx, "duplicate delivery job dropped",
			"notification_id", in.NotificationID,
			"state", state.String(),
		)
		return nil
	}

	ttl := s.cfgDuration("modules.notification.worker.guard_ttl_seconds", defaultDeliveryTTL)
	if err := s.deliver(ctx, in); err != nil {
		if mErr := s.idemp.MarkFailed(ctx, key, ttl); mErr != nil {
			slog.WarnContext(ctx, "failed to mark delivery guard failed", "notification_id", in.NotificationID, "error", mErr)
		}
		return err
	}

	if mErr := s.idemp.MarkCompleted(ctx, key, ttl); mErr != nil {
		slog.WarnContext(ctx, "failed to mark delivery guard completed", "notification_id", in.NotificationID, "error", mErr)
	}

	return nil
}

// deferEarlyJob puts a job that arrived before its activation time back on
// the queue with the remaining delay.
func (s *Usecase) deferEarlyJob(ctx context.Context, in ProcessDeliveryInput) (bool, error) {
	if in.SendAt.IsZero() {
		return false, nil
	}

	now := s.clock.Now()
	tolerance := s.cfg.GetSecond("modules.notification.worker.early_tolerance_seconds")
	if !in.SendAt.After(now.Add(tolerance)) {
		return false, nil
	}

	rec, err := s.repoDB.GetNotification(ctx, in.NotificationID)
	if err != nil {
		// let deliver report missing records and storage errors
		return false, nil
	}
	if rec.Status.IsTerminal() {
		return false, nil
	}

	delay := rec.SendAt.Sub(now)
	if delay <= tolerance {
		return false, nil
	}

	if err := s.repoJob.PublishJob(ctx, entity.NewJob(*rec), delay); err != nil {
		slog.ErrorContext(ctx, "failed to repo republish early delivery job", "notification_id", rec.ID, "error", err)
		return true, err
	}

	slog.InfoContext(ctx, "early delivery job deferred", "notification_id", rec.ID, "delay", delay.String())
	return true, nil
}

func (s *Usecase) deliver(ctx context.Context, in ProcessDeliveryInput) error {
	rec, err := s.repoDB.GetNotification(ctx, in.NotificationID)
	if errors.Is(err, goerror.ErrNotFound) {
		slog.WarnContext(ctx, "delivery job dropped",
			"notification_id", in.NotificationID,
			"error", entity.ErrRecordNotFound,
		)
		return nil
	}
	if err != nil {
		slog.ErrorContext(ctx, "failed to repo get notification", "notification_id", in.NotificationID, "error", err)
		return err
	}

	if rec.Status.IsTerminal() {
		slog.InfoContext(ctx, "notification already finished, delivery skipped",
			"notification_id", rec.ID,
			"status", rec.Status.String(),
		)
		return nil
	}

	if in.Channel != entity.ChannelUnknown && in.Channel != rec.Channel {
		slog.WarnContext(ctx, "delivery job channel differs from record, using record",
			"notification_id", rec.ID,
			"job_channel", in.Channel.String(),
			"record_channel", rec.Channel.String(),
		)
	}

	n, ok := s.notifierFor(rec.Channel)
	if !ok {
		slog.WarnContext(ctx, "notification marked failed", "notification_id", rec.ID, "error", entity.ErrUnknownChannel)
		return s.finish(ctx, rec, entity.StatusFailed)
	}

	if !n.Validate(rec.Recipient) {
		slog.WarnContext(ctx, "notification marked failed",
			"notification_id", rec.ID,
			"channel", rec.Channel.String(),
			"error", entity.ErrInvalidRecipient,
		)
		return s.finish(ctx, rec, entity.StatusFailed)
	}

	if err := safeSend(ctx, n, rec); err != nil {
		slog.ErrorContext(ctx, "failed to send notification",
			"notification_id", rec.ID,
			"channel", rec.Channel.String(),
			"error", err,
		)
		return s.finish(ctx, rec, entity.StatusFailed)
	}

	return s.finish(ctx, rec, entity.StatusSent)
}

// safeSend turns a panicking transport into a delivery error so the record
// still reaches a terminal status.
func safeSend(ctx context.Context, n Notifier, rec *entity.Notification) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: panic: %v", entity.ErrDelivery, r)
		}
	}()
	return n.Send(ctx, rec.Recipient, rec.Subject, rec.Message)
}

// finish stores the terminal status with a conditional write, retrying
// storage errors with exponential backoff.
func (s *Usecase) finish(ctx context.Context, rec *entity.Notification, status entity.Status) error {
	var (
		changed bool
		sentAt  = s.clock.Now()
	)

	err := retry.Do(ctx, s.statusBackoff(), func(ctx context.Context) error {
		var err error
		if status == entity.StatusSent {
			changed, err = s.repoDB.MarkNotificationSent(ctx, rec.ID, sentAt)
		} else {
			changed, err = s.repoDB.MarkNotificationFailed(ctx, rec.ID)
		}
		if err != nil {
			slog.WarnContext(ctx, "failed to repo update notification status, retrying",
				"notification_id", rec.ID,
				"status", status.String(),
				"error", err,
			)
			return retry.RetryableError(err)
		}
		return nil
	})
	if err != nil {
		slog.ErrorContext(ctx, "failed to repo update notification status",
			"notification_id", rec.ID,
			"status", status.String(),
			"error", err,
		)
		return err
	}

	if !changed {
		slog.InfoContext(ctx, "notification already finished, status update skipped",
			"notification_id", rec.ID,
			"status", status.String(),
		)
		return nil
	}

	if s.deliveryCounter != nil {
		s.deliveryCounter.Add(ctx, 1, metric.WithAttributes(
			attribute.String("channel", rec.Channel.String()),
			attribute.String("status", status.String()),
		))
	}

	slog.InfoContext(ctx, "notification delivery finished",
		"notification_id", rec.ID,
		"channel", rec.Channel.String(),
		"status", status.String(),
	)

	return nil
}

func (s *Usecase) statusBackoff() retry.Backoff {
	maxRetries := s.cfg.GetInt("modules.notification.worker.status_retry_max")
	if maxRetries <= 0 {
		maxRetries = defaultStatusRetryMax
	}

	b := retry.NewExponential(defaultStatusRetryBase)
	b = retry.WithCappedDuration(2*time.Second, b)
	return retry.WithMaxRetries(uint64(maxRetries), b)
}

func (s *Usecase) cfgDuration(key string, def time.Duration) time.Duration {
	if d := s.cfg.GetSecond(key); d > 0 {
		return d
	}
	return def
}
