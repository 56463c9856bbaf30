// Package mail sends plain-text email. Callers depend on Mail; SMTP or the
// logging fake is chosen at wiring time.
package mail

import (
	"context"
	"errors"
	"io"
)

var (
	ErrNoRecipients = errors.New("mail: no recipients provided")
	ErrNoSender     = errors.New("mail: no sender provided")
)

// Message is a plain-text email.
type Message struct {
	// From falls back to the sender configured on the implementation.
	From    string
	To      []string
	Subject string
	Body    string
}

type Mail interface {
	io.Closer
	Send(ctx context.Context, msg Message) error
}
