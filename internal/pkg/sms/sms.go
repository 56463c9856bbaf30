// Package sms sends text messages. Callers depend on SMS; the Twilio client
// or the logging fake is chosen at wiring time.
package sms

import (
	"context"
	"errors"
	"io"
)

var (
	// ErrNoRecipient is returned when Message.To is empty.
	ErrNoRecipient = errors.New("sms recipient is required")
	// ErrNoSender is returned when neither Message.From nor the configured default sender is set.
	ErrNoSender = errors.New("sms sender is required")
)

// Message is a single text message.
type Message struct {
	// From is an optional explicit sender number; fallback depends on implementation.
	From string
	// To is the E.164 destination number.
	To string
	// Body is the text content.
	Body string
}

// SMS abstracts a text message carrier.
type SMS interface {
	io.Closer
	// Send hands msg to the carrier.
	Send(ctx context.Context, msg Message) error
}
