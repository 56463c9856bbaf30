package messaging

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/nats-io/nats.go"
)

var (
	// ErrNATSSubjectRequired is returned when the subject is empty.
	ErrNATSSubjectRequired = errors.New("pkgmessage: nats subject is required")
	// ErrNATSURLRequired is returned when the NATS server URL is missing.
	ErrNATSURLRequired = errors.New("pkgmessage: nats url is required")
)

// NATSConfig configures the NATS implementation.
type NATSConfig struct {
	URL     string
	Options []nats.Option
}

// NATS is a messaging implementation backed by core NATS. Core NATS has no
// redelivery, so a nack republishes the message with the next attempt number.
type NATS struct {
	conn *nats.Conn

	mu     sync.Mutex
	subs   []*nats.Subscription
	closed bool
}

// NewNATS connects to the NATS server.
func NewNATS(cfg NATSConfig) (*NATS, error) {
	if cfg.URL == "" {
		return nil, ErrNATSURLRequired
	}

	conn, err := nats.Connect(cfg.URL, cfg.Options...)
	if err != nil {
		return nil, fmt.Errorf("pkgmessage: nats connect: %w", err)
	}

	return &NATS{conn: conn}, nil
}

// Close drains subscriptions and the connection.
func (n *NATS) Close() error {
	n.mu.Lock()
	if n.closed {
		n.mu.Unlock()
		return nil
	}
	n.closed = true
	subs := n.subs
	n.subs = nil
	n.mu.Unlock()

	var errs []error
	for _, sub := range subs {
		if err := sub.Drain(); err != nil && !errors.Is(err, nats.ErrConnectionClosed) {
			errs = append(errs, err)
		}
	}
	if err := n.conn.Drain(); err != nil && !errors.Is(err, nats.ErrConnectionClosed) {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// Publish sends msg to a subject and flushes.
func (n *NATS) Publish(ctx context.Context, destination string, msg OutgoingMessage) (PublishResult, error) {
	if err := ctx.Err(); err != nil {
		return PublishResult{}, err
	}
	if destination == "" {
		return PublishResult{}, ErrNATSSubjectRequired
	}
	if msg.Delay > 0 {
		return PublishResult{}, ErrUnsupported
	}

	nmsg := nats.NewMsg(destination)
	nmsg.Data = msg.Body
	for _, h := range msg.Headers {
		if h.Key != "" {
			nmsg.Header.Add(h.Key, string(h.Value))
		}
	}

	if err := n.conn.PublishMsg(nmsg); err != nil {
		return PublishResult{}, fmt.Errorf("pkgmessage: nats publish: %w", err)
	}
	if err := n.conn.FlushWithContext(ctx); err != nil {
		return PublishResult{}, fmt.Errorf("pkgmessage: nats flush: %w", err)
	}

	return PublishResult{MessageID: string(msg.Key), Topic: destination, Timestamp: time.Now()}, nil
}

// Consume joins the queue group named by WithGroup (plain subscription when
// empty) and dispatches to a fixed worker pool until ctx is done.
func (n *NATS) Consume(ctx context.Context, source string, handler Handler, opts ...ConsumeOption) error {
	if source == "" {
		return ErrNATSSubjectRequired
	}
	co := newConsumeOptions(opts...)

	msgCh := make(chan *nats.Msg, co.maxInFlight)
	sub, err := n.conn.ChanQueueSubscribe(source, co.group, msgCh)
	if err != nil {
		return fmt.Errorf("pkgmessage: nats subscribe: %w", err)
	}
	if err := n.track(sub); err != nil {
		//nolint:errcheck,gosec // already failing
		sub.Unsubscribe()
		return err
	}

	var wg sync.WaitGroup
	for range co.concurrency {
		wg.Go(func() {
			for {
				select {
				case <-ctx.Done():
					return
				case m := <-msgCh:
					//nolint:errcheck // failures are logged by the handler
					handle(ctx, "nats", n.newMessage(m, co.maxAttempts), handler, co.autoAck)
				}
			}
		})
	}

	<-ctx.Done()
	uerr := sub.Unsubscribe()
	wg.Wait()
	if uerr != nil && !errors.Is(uerr, nats.ErrConnectionClosed) && !errors.Is(uerr, nats.ErrBadSubscription) {
		return errors.Join(ctx.Err(), uerr)
	}
	return ctx.Err()
}

func (n *NATS) track(sub *nats.Subscription) error {
	n.mu.Lock()
	defer n.mu.Unlock()

	if n.closed {
		return io.ErrClosedPipe
	}
	n.subs = append(n.subs, sub)
	return nil
}

func (n *NATS) newMessage(m *nats.Msg, maxAttempts int) *natsMessage {
	headers := make([]Header, 0, len(m.Header))
	for k, values := range m.Header {
		for _, v := range values {
			headers = append(headers, Header{Key: k, Value: []byte(v)})
		}
	}
	return &natsMessage{
		pub:         n,
		msg:         m,
		headers:     headers,
		receivedAt:  time.Now(),
		maxAttempts: maxAttempts,
	}
}

type natsMessage struct {
	responder

	pub         Publisher
	msg         *nats.Msg
	headers     []Header
	receivedAt  time.Time
	maxAttempts int
}

func (m *natsMessage) Body() []byte         { return m.msg.Data }
func (m *natsMessage) Key() []byte          { return nil }
func (m *natsMessage) Headers() []Header    { return m.headers }
func (m *natsMessage) ID() string           { return "" }
func (m *natsMessage) Topic() string        { return m.msg.Subject }
func (m *natsMessage) Timestamp() time.Time { return m.receivedAt }
func (m *natsMessage) Attempt() int         { return attemptOf(m.headers) }

// Ack is a no-op: core NATS delivers at most once.
func (m *natsMessage) Ack(context.Context) error {
	m.claim()
	return nil
}

func (m *natsMessage) Nack(ctx context.Context) error {
	if !m.claim() {
		return nil
	}
	return requeue(ctx, m.pub, "nats", m, m.maxAttempts)
}
