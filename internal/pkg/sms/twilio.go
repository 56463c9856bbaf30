package sms

import (
	"context"
	"errors"
	"fmt"

	"github.com/twilio/twilio-go"
	twilioApi "github.com/twilio/twilio-go/rest/api/v2010"
)

// ErrTwilioCredentialsRequired is returned when the account SID or auth token is missing.
var ErrTwilioCredentialsRequired = errors.New("twilio account sid and auth token are required")

// TwilioConfig configures the Twilio implementation.
type TwilioConfig struct {
	// AccountSID is the Twilio account identifier.
	AccountSID string
	// AuthToken is the Twilio auth token.
	AuthToken string
	// From is the default sender number when Message.From is empty.
	From string
}

// Twilio is an SMS implementation backed by the Twilio REST API.
type Twilio struct {
	client      *twilio.RestClient
	defaultFrom string
}

func NewTwilio(cfg TwilioConfig) (*Twilio, error) {
	if cfg.AccountSID == "" || cfg.AuthToken == "" {
		return nil, ErrTwilioCredentialsRequired
	}

	client := twilio.NewRestClientWithParams(twilio.ClientParams{
		Username: cfg.AccountSID,
		Password: cfg.AuthToken,
	})

	return &Twilio{client: client, defaultFrom: cfg.From}, nil
}

// Send creates a message resource. The REST client does not take a context,
// so cancellation is only checked before the call.
func (t *Twilio) Send(ctx context.Context, msg Message) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if msg.To == "" {
		return ErrNoRecipient
	}

	from := msg.From
	if from == "" {
		from = t.defaultFrom
	}
	if from == "" {
		return ErrNoSender
	}

	params := &twilioApi.CreateMessageParams{}
	params.SetTo(msg.To)
	params.SetFrom(from)
	params.SetBody(msg.Body)

	if _, err := t.client.Api.CreateMessage(params); err != nil {
		return fmt.Errorf("twilio create message: %w", err)
	}

	return nil
}

func (*Twilio) Close() error { return nil }
