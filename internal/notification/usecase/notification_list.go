package usecase

import (
	"context"
	"log/slog"
	"strings"

	"github.com/shandysiswandi/gonotify/internal/notification/entity"
	"github.com/shandysiswandi/gonotify/internal/pkg/goerror"
)

const defaultListLimit = 20

type ListNotificationsInput struct {
	UserID string `validate:"required,userid"`
	Status string `validate:"omitempty,oneof=pending sent failed"`
	Limit  int32  `validate:"gte=0,lte=100"`
	Offset int32  `validate:"gte=0"`
}

// ListNotifications returns the user's records newest first, optionally
// narrowed to one status.
func (s *Usecase) ListNotifications(ctx context.Context, in ListNotificationsInput) ([]entity.Notification, error) {
	ctx, span := s.startSpan(ctx, "ListNotifications")
	defer span.End()

	in.UserID = strings.TrimSpace(in.UserID)
	in.Status = strings.ToLower(strings.TrimSpace(in.Status))
	if err := s.validator.Validate(in); err != nil {
		return nil, goerror.NewInvalidInput(err)
	}

	if in.Limit == 0 {
		in.Limit = defaultListLimit
	}

	items, err := s.repoDB.ListNotifications(ctx, entity.ListNotificationsFilter{
		UserID: in.UserID,
		Status: entity.StatusFromString(in.Status),
		Limit:  in.Limit,
		Offset: in.Offset,
	})
	if err != nil {
		slog.ErrorContext(ctx, "failed to repo list notifications", "user_id", in.UserID, "error", err)
		return nil, goerror.NewServer(err)
	}

	return items, nil
}
