package mail

import (
	"context"
	"log/slog"
)

// Log writes the message to the logger instead of sending it. It is the
// default outside production.
type Log struct{}

func NewLog() *Log { return &Log{} }

func (*Log) Send(ctx context.Context, msg Message) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if len(msg.To) == 0 {
		return ErrNoRecipients
	}

	slog.InfoContext(ctx, "mock email sent", "emails", msg.To, "subject", msg.Subject, "body", msg.Body)
	return nil
}

func (*Log) Close() error { return nil }
