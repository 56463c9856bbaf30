package channel

import (
	"context"
	"fmt"
	"regexp"

	"github.com/shandysiswandi/gonotify/internal/notification/entity"
	"github.com/shandysiswandi/gonotify/internal/pkg/instrument"
	"github.com/shandysiswandi/gonotify/internal/pkg/mail"
)

var emailPattern = regexp.MustCompile(`^[a-zA-Z0-9_.+-]+@[a-zA-Z0-9-]+\.[a-zA-Z0-9-.]+$`)

type Email struct {
	client   mail.Mail
	ins      instrument.Instrumentation
	throttle throttle
}

func NewEmail(client mail.Mail, ins instrument.Instrumentation, opts ...Option) *Email {
	return &Email{client: client, ins: ins, throttle: newThrottle(opts)}
}

func (*Email) Channel() entity.Channel { return entity.ChannelEmail }

func (*Email) Validate(recipient string) bool {
	return emailPattern.MatchString(recipient)
}

func (e *Email) Send(ctx context.Context, recipient, subject, body string) (err error) {
	ctx, span := startSpan(ctx, e.ins, entity.ChannelEmail)
	defer func() { endSpan(span, err) }()

	if err := e.throttle.wait(ctx, entity.ChannelEmail); err != nil {
		return err
	}

	if err := e.client.Send(ctx, mail.Message{
		To:      []string{recipient},
		Subject: subject,
		Body:    body,
	}); err != nil {
		return fmt.Errorf("%w: email: %w", entity.ErrDelivery, err)
	}

	return nil
}
