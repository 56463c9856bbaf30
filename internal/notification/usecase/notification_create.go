package usecase

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/samber/lo"
	"github.com/shandysiswandi/gonotify/internal/notification/entity"
	"github.com/shandysiswandi/gonotify/internal/pkg/goerror"
)

// StatusQueued is the only acknowledgement a dispatch returns.
const StatusQueued = "queued"

type CreateNotificationInput struct {
	UserID  string `validate:"required,userid"`
	Subject string `validate:"required,max=255"`
	Message string `validate:"required"`
	SendAt  *time.Time
}

type CreateNotificationOutput struct {
	Status string
	SendAt time.Time
}

// CreateNotification fans a request out to every enabled and addressed
// channel of the user. The output is "queued" even when no channel qualifies.
func (s *Usecase) CreateNotification(ctx context.Context, in CreateNotificationInput) (*CreateNotificationOutput, error) {
	ctx, span := s.startSpan(ctx, "CreateNotification")
	defer span.End()

	in.UserID = strings.TrimSpace(in.UserID)
	in.Subject = strings.TrimSpace(in.Subject)
	if err := s.validator.Validate(in); err != nil {
		return nil, goerror.NewInvalidInput(err)
	}

	pref, err := s.repoDB.GetPreference(ctx, in.UserID)
	if errors.Is(err, goerror.ErrNotFound) {
		return nil, entity.ErrPreferenceNotFound
	}
	if err != nil {
		slog.ErrorContext(ctx, "failed to repo get preference", "user_id", in.UserID, "error", err)
		return nil, goerror.NewServer(err)
	}

	now := s.clock.Now()
	sendAt := effectiveSendAt(in.SendAt, now)

	records := lo.FilterMap(entity.Channels(), func(ch entity.Channel, _ int) (entity.Notification, bool) {
		recipient, ok := pref.Recipient(ch)
		if !ok {
			return entity.Notification{}, false
		}
		return s.newPendingRecord(in.UserID, in.Subject, in.Message, ch, recipient, sendAt, now), true
	})

	if err := s.dispatch(ctx, records, now); err != nil {
		return nil, err
	}

	return &CreateNotificationOutput{Status: StatusQueued, SendAt: sendAt}, nil
}

func effectiveSendAt(sendAt *time.Time, now time.Time) time.Time {
	if sendAt == nil || sendAt.IsZero() {
		return now
	}
	return *sendAt
}

func (s *Usecase) newPendingRecord(
	userID, subject, message string,
	ch entity.Channel,
	recipient string,
	sendAt, now time.Time,
) entity.Notification {
	return entity.Notification{
		ID:        s.uid.Generate(),
		UserID:    userID,
		Subject:   subject,
		Message:   message,
		Channel:   ch,
		Recipient: recipient,
		Status:    entity.StatusPending,
		SendAt:    sendAt,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// dispatch commits records in one transaction and only then enqueues one job
// per record. A failed enqueue leaves its record pending and does not fail
// the request.
func (s *Usecase) dispatch(ctx context.Context, records []entity.Notification, now time.Time) error {
	if err := s.repoDB.CreateNotifications(ctx, records); err != nil {
		slog.ErrorContext(ctx, "failed to repo create notifications", "count", len(records), "error", err)
		return goerror.NewServer(err)
	}

	for _, n := range records {
		var delay time.Duration
		if n.SendAt.After(now) {
			delay = n.SendAt.Sub(now)
		}

		if err := s.repoJob.PublishJob(ctx, entity.NewJob(n), delay); err != nil {
			slog.ErrorContext(ctx, "failed to repo publish delivery job",
				"notification_id", n.ID,
				"channel", n.Channel.String(),
				"error", err,
			)
		}
	}

	return nil
}
