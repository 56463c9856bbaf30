package usecase

import (
	"context"
	"log/slog"
	"strings"

	"github.com/shandysiswandi/gonotify/internal/notification/entity"
	"github.com/shandysiswandi/gonotify/internal/pkg/goerror"
)

// UpsertPreferenceInput carries a preference write. Nil flags and empty
// addresses keep the stored value; a new preference starts with both
// channels enabled.
type UpsertPreferenceInput struct {
	UserID       string `validate:"required,userid"`
	EmailEnabled *bool
	SMSEnabled   *bool
	Email        string `validate:"max=255"`
	PhoneNumber  string `validate:"max=32"`
}

func (s *Usecase) UpsertPreference(ctx context.Context, in UpsertPreferenceInput) (*entity.Preference, error) {
	ctx, span := s.startSpan(ctx, "UpsertPreference")
	defer span.End()

	in.UserID = strings.TrimSpace(in.UserID)
	in.Email = strings.TrimSpace(in.Email)
	in.PhoneNumber = strings.TrimSpace(in.PhoneNumber)
	if err := s.validator.Validate(in); err != nil {
		return nil, goerror.NewInvalidInput(err)
	}

	pref, err := s.repoDB.UpsertPreference(ctx, entity.PreferenceUpdate{
		UserID:       in.UserID,
		EmailEnabled: in.EmailEnabled,
		SMSEnabled:   in.SMSEnabled,
		Email:        in.Email,
		PhoneNumber:  in.PhoneNumber,
	})
	if err != nil {
		slog.ErrorContext(ctx, "failed to repo upsert preference", "user_id", in.UserID, "error", err)
		return nil, goerror.NewServer(err)
	}

	return pref, nil
}
