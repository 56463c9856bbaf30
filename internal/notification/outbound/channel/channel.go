// Package channel holds the closed set of delivery channels. Each notifier
// checks a recipient address and hands the message to its transport.
package channel

import (
	"context"
	"fmt"

	"github.com/shandysiswandi/gonotify/internal/notification/entity"
	"github.com/shandysiswandi/gonotify/internal/pkg/instrument"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/time/rate"
)

type Notifier interface {
	Channel() entity.Channel
	// Validate reports whether recipient is deliverable on this channel.
	Validate(recipient string) bool
	// Send is only called after Validate returned true.
	Send(ctx context.Context, recipient, subject, body string) error
}

// Option tunes a notifier.
type Option func(*throttle)

// WithRateLimit caps calls into the provider at perSecond with the given
// burst. A non-positive rate leaves the notifier unthrottled.
func WithRateLimit(perSecond float64, burst int) Option {
	return func(t *throttle) {
		if perSecond <= 0 {
			return
		}
		t.limiter = rate.NewLimiter(rate.Limit(perSecond), max(burst, 1))
	}
}

type throttle struct {
	limiter *rate.Limiter
}

func newThrottle(opts []Option) throttle {
	var t throttle
	for _, opt := range opts {
		opt(&t)
	}
	return t
}

// wait blocks until the provider may be called. Running out of time while
// queued counts as a failed delivery.
func (t throttle) wait(ctx context.Context, ch entity.Channel) error {
	if t.limiter == nil {
		return nil
	}
	if err := t.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("%w: %s throttled: %w", entity.ErrDelivery, ch, err)
	}
	return nil
}

func startSpan(ctx context.Context, ins instrument.Instrumentation, ch entity.Channel) (context.Context, trace.Span) {
	ctx, span := ins.Tracer("notification.outbound.channel").Start(ctx, "Send")
	span.SetAttributes(attribute.String("notification.channel", ch.String()))
	return ctx, span
}

func endSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}
