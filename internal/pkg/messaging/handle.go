package messaging

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"

	"github.com/shandysiswandi/gonotify/internal/pkg/stacktrace"
)

// responder guards a message against a second ack/nack.
type responder struct {
	done atomic.Bool
}

func (r *responder) claim() bool { return !r.done.Swap(true) }

func (r *responder) responded() bool { return r.done.Load() }

type handledMessage interface {
	Message
	responded() bool
}

// handle runs handler with panic recovery and, with auto-ack, answers the
// broker from its result. The returned error is the handler's.
func handle(ctx context.Context, kind string, msg handledMessage, handler Handler, autoAck bool) error {
	herr := callHandler(ctx, kind, msg, handler)
	if msg.responded() || !autoAck {
		return herr
	}

	var rerr error
	if herr == nil {
		rerr = msg.Ack(ctx)
	} else {
		rerr = msg.Nack(ctx)
	}
	if rerr != nil {
		return fmt.Errorf("pkgmessage: %s respond: %w", kind, rerr)
	}
	return herr
}

func callHandler(ctx context.Context, kind string, msg Message, handler Handler) (err error) {
	defer func() {
		if rvr := recover(); rvr != nil {
			stacktrace.LogPanic(ctx, "panic in messaging handler", rvr, "kind", kind, "topic", msg.Topic())
			err = fmt.Errorf("pkgmessage: panic in %s handler: %v", kind, rvr)
		}
	}()

	return handler(ctx, msg)
}

// requeue republishes msg under its next attempt number. Past maxAttempts the
// message is dropped and logged; the caller still acks the original.
func requeue(ctx context.Context, pub Publisher, kind string, msg Message, maxAttempts int) error {
	next := msg.Attempt() + 1
	if next > maxAttempts {
		slog.ErrorContext(ctx, "message dropped after max attempts", "kind", kind, "topic", msg.Topic(), "msg_id", msg.ID(), "attempts", msg.Attempt())
		return nil
	}

	if _, err := pub.Publish(ctx, msg.Topic(), OutgoingMessage{
		Body:    msg.Body(),
		Key:     msg.Key(),
		Headers: withAttempt(msg.Headers(), next),
	}); err != nil {
		return fmt.Errorf("pkgmessage: %s requeue: %w", kind, err)
	}
	return nil
}
