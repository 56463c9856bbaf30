package usecase

import (
	"context"
	"errors"
	"testing"

	"github.com/samber/lo"
	"github.com/shandysiswandi/gonotify/internal/notification/entity"
	"github.com/shandysiswandi/gonotify/internal/pkg/goerror"
)

func TestUsecase_GetPreference(t *testing.T) {
	t.Run("not found", func(t *testing.T) {
		uc := newTestUsecase(t, newTestDeps())

		_, err := uc.GetPreference(context.Background(), GetPreferenceInput{UserID: "ghost"})

		if !errors.Is(err, entity.ErrPreferenceNotFound) {
			t.Fatalf("expected ErrPreferenceNotFound, got %v", err)
		}
	})

	t.Run("storage failure", func(t *testing.T) {
		d := newTestDeps()
		d.repo.getPrefErr = errors.New("db down")
		uc := newTestUsecase(t, d)

		_, err := uc.GetPreference(context.Background(), GetPreferenceInput{UserID: "u1"})

		assertErrCode(t, err, goerror.CodeInternal)
	})

	t.Run("found", func(t *testing.T) {
		d := newTestDeps()
		d.repo.prefs["u1"] = entity.Preference{UserID: "u1", EmailEnabled: true, Email: "a@b.com"}
		uc := newTestUsecase(t, d)

		got, err := uc.GetPreference(context.Background(), GetPreferenceInput{UserID: " u1 "})

		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if got.Email != "a@b.com" {
			t.Fatalf("unexpected preference: %+v", got)
		}
	})
}

func TestUsecase_UpsertPreference(t *testing.T) {
	tests := []struct {
		name      string
		stored    *entity.Preference
		in        UpsertPreferenceInput
		wantEmail bool
		wantSMS   bool
		wantCode  *goerror.Code
	}{
		{
			name:      "absent flags enable both channels on create",
			in:        UpsertPreferenceInput{UserID: "u1", Email: "a@b.com"},
			wantEmail: true,
			wantSMS:   true,
		},
		{
			name:      "explicit false is kept",
			in:        UpsertPreferenceInput{UserID: "u1", EmailEnabled: lo.ToPtr(false), SMSEnabled: lo.ToPtr(false)},
			wantEmail: false,
			wantSMS:   false,
		},
		{
			name:      "absent flags keep stored values on update",
			stored:    &entity.Preference{UserID: "u1", EmailEnabled: true, SMSEnabled: false, PhoneNumber: "+12345678901"},
			in:        UpsertPreferenceInput{UserID: "u1", Email: "c@d.com"},
			wantEmail: true,
			wantSMS:   false,
		},
		{
			name:      "supplied flag overrides only itself",
			stored:    &entity.Preference{UserID: "u1", EmailEnabled: false, SMSEnabled: false},
			in:        UpsertPreferenceInput{UserID: "u1", SMSEnabled: lo.ToPtr(true)},
			wantEmail: false,
			wantSMS:   true,
		},
		{
			name:     "user id with spaces inside is rejected",
			in:       UpsertPreferenceInput{UserID: "u 1"},
			wantCode: func() *goerror.Code { c := goerror.CodeInvalidInput; return &c }(),
		},
		{
			name:      "address format is not checked here",
			in:        UpsertPreferenceInput{UserID: "u1", PhoneNumber: "not-a-number"},
			wantEmail: true,
			wantSMS:   true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			// Arrange
			d := newTestDeps()
			if tt.stored != nil {
				d.repo.prefs[tt.stored.UserID] = *tt.stored
			}
			uc := newTestUsecase(t, d)

			// Act
			got, err := uc.UpsertPreference(context.Background(), tt.in)

			// Assert
			if tt.wantCode != nil {
				assertErrCode(t, err, *tt.wantCode)
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got.EmailEnabled != tt.wantEmail || got.SMSEnabled != tt.wantSMS {
				t.Fatalf("got email=%v sms=%v, want email=%v sms=%v", got.EmailEnabled, got.SMSEnabled, tt.wantEmail, tt.wantSMS)
			}
		})
	}
}

func TestUsecase_UpsertPreference_DisabledChannelStaysOff(t *testing.T) {
	// Arrange
	d := newTestDeps()
	uc := newTestUsecase(t, d)
	ctx := context.Background()
	if _, err := uc.UpsertPreference(ctx, UpsertPreferenceInput{
		UserID: "u1", SMSEnabled: lo.ToPtr(false), PhoneNumber: "+12345678901",
	}); err != nil {
		t.Fatalf("first upsert: %v", err)
	}
	if _, err := uc.UpsertPreference(ctx, UpsertPreferenceInput{UserID: "u1", Email: "c@d.com"}); err != nil {
		t.Fatalf("address-only upsert: %v", err)
	}

	// Act
	_, err := uc.CreateNotification(ctx, CreateNotificationInput{UserID: "u1", Subject: "S", Message: "M"})

	// Assert
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	for _, job := range d.jobs.jobs {
		if job.job.Channel == entity.ChannelSMS {
			t.Fatalf("sms job dispatched for a disabled channel: %+v", job)
		}
	}
	if len(d.jobs.jobs) != 1 {
		t.Fatalf("jobs = %d, want 1 (email)", len(d.jobs.jobs))
	}
}
