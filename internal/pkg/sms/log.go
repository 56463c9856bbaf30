package sms

import (
	"context"
	"log/slog"
)

// Log is an SMS implementation that only writes the message to the logger.
type Log struct{}

func NewLog() *Log {
	return &Log{}
}

func (*Log) Send(ctx context.Context, msg Message) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if msg.To == "" {
		return ErrNoRecipient
	}

	slog.InfoContext(ctx, "mock sms sent", "to", msg.To, "body", msg.Body)
	return nil
}

func (*Log) Close() error { return nil }
