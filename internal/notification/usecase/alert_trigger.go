package usecase

import (
	"context"
	"strings"
	"time"

	"github.com/samber/lo"
	"github.com/shandysiswandi/gonotify/internal/notification/entity"
	"github.com/shandysiswandi/gonotify/internal/pkg/goerror"
)

// AlertUserID owns every record created by an alert broadcast. The leading
// '#' is outside the user id alphabet, so no real user can share it.
const AlertUserID = "#alert"

type TriggerAlertInput struct {
	Subject      string   `validate:"required,max=255"`
	Message      string   `validate:"required"`
	Emails       []string `validate:"max=1000,dive,max=255"`
	PhoneNumbers []string `validate:"max=1000,dive,max=32"`
	SendAt       *time.Time
}

type TriggerAlertOutput struct {
	Status string
	SendAt time.Time
	Count  int
}

// TriggerAlert broadcasts to explicit recipients without a preference
// lookup. Duplicate and blank addresses are dropped; format is checked at
// delivery like any other record.
func (s *Usecase) TriggerAlert(ctx context.Context, in TriggerAlertInput) (*TriggerAlertOutput, error) {
	ctx, span := s.startSpan(ctx, "TriggerAlert")
	defer span.End()

	in.Subject = strings.TrimSpace(in.Subject)
	if err := s.validator.Validate(in); err != nil {
		return nil, goerror.NewInvalidInput(err)
	}

	now := s.clock.Now()
	sendAt := effectiveSendAt(in.SendAt, now)

	toRecords := func(ch entity.Channel, addrs []string) []entity.Notification {
		addrs = lo.Uniq(lo.Compact(lo.Map(addrs, func(a string, _ int) string {
			return strings.TrimSpace(a)
		})))
		return lo.Map(addrs, func(addr string, _ int) entity.Notification {
			return s.newPendingRecord(AlertUserID, in.Subject, in.Message, ch, addr, sendAt, now)
		})
	}

	records := append(
		toRecords(entity.ChannelEmail, in.Emails),
		toRecords(entity.ChannelSMS, in.PhoneNumbers)...,
	)

	if err := s.dispatch(ctx, records, now); err != nil {
		return nil, err
	}

	return &TriggerAlertOutput{Status: StatusQueued, SendAt: sendAt, Count: len(records)}, nil
}
