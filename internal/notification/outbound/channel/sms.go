package channel

import (
	"context"
	"fmt"
	"regexp"

	"github.com/shandysiswandi/gonotify/internal/notification/entity"
	"github.com/shandysiswandi/gonotify/internal/pkg/instrument"
	"github.com/shandysiswandi/gonotify/internal/pkg/sms"
)

// E.164 with a leading plus and 10 to 15 digits.
var phonePattern = regexp.MustCompile(`^\+\d{10,15}$`)

type SMS struct {
	client   sms.SMS
	ins      instrument.Instrumentation
	throttle throttle
}

func NewSMS(client sms.SMS, ins instrument.Instrumentation, opts ...Option) *SMS {
	return &SMS{client: client, ins: ins, throttle: newThrottle(opts)}
}

func (*SMS) Channel() entity.Channel { return entity.ChannelSMS }

func (*SMS) Validate(recipient string) bool {
	return phonePattern.MatchString(recipient)
}

// Send delivers body only; SMS has no subject line.
func (s *SMS) Send(ctx context.Context, recipient, _, body string) (err error) {
	ctx, span := startSpan(ctx, s.ins, entity.ChannelSMS)
	defer func() { endSpan(span, err) }()

	if err := s.throttle.wait(ctx, entity.ChannelSMS); err != nil {
		return err
	}

	if err := s.client.Send(ctx, sms.Message{To: recipient, Body: body}); err != nil {
		return fmt.Errorf("%w: sms: %w", entity.ErrDelivery, err)
	}

	return nil
}
