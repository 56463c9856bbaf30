package usecase

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"github.com/shandysiswandi/gonotify/internal/notification/entity"
	"github.com/shandysiswandi/gonotify/internal/pkg/goerror"
)

type GetPreferenceInput struct {
	UserID string `validate:"required,userid"`
}

func (s *Usecase) GetPreference(ctx context.Context, in GetPreferenceInput) (*entity.Preference, error) {
	ctx, span := s.startSpan(ctx, "GetPreference")
	defer span.End()

	in.UserID = strings.TrimSpace(in.UserID)
	if err := s.validator.Validate(in); err != nil {
		return nil, goerror.NewInvalidInput(err)
	}

	pref, err := s.repoDB.GetPreference(ctx, in.UserID)
	if errors.Is(err, goerror.ErrNotFound) {
		slog.WarnContext(ctx, "preference not found", "user_id", in.UserID)
		return nil, entity.ErrPreferenceNotFound
	}
	if err != nil {
		slog.ErrorContext(ctx, "failed to repo get preference", "user_id", in.UserID, "error", err)
		return nil, goerror.NewServer(err)
	}

	return pref, nil
}
