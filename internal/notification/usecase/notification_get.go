package usecase

import (
	"context"
	"errors"
	"log/slog"

	"github.com/shandysiswandi/gonotify/internal/notification/entity"
	"github.com/shandysiswandi/gonotify/internal/pkg/goerror"
)

type GetNotificationInput struct {
	ID int64 `validate:"required,gt=0"`
}

func (s *Usecase) GetNotification(ctx context.Context, in GetNotificationInput) (*entity.Notification, error) {
	ctx, span := s.startSpan(ctx, "GetNotification")
	defer span.End()

	if err := s.validator.Validate(in); err != nil {
		return nil, goerror.NewInvalidInput(err)
	}

	n, err := s.repoDB.GetNotification(ctx, in.ID)
	if errors.Is(err, goerror.ErrNotFound) {
		return nil, entity.ErrRecordNotFound
	}
	if err != nil {
		slog.ErrorContext(ctx, "failed to repo get notification", "notification_id", in.ID, "error", err)
		return nil, goerror.NewServer(err)
	}

	return n, nil
}
