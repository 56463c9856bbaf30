package messaging

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"cloud.google.com/go/pubsub/v2"
	"google.golang.org/api/option"
)

var (
	// ErrPubSubProjectIDRequired is returned when a ProjectID is required but missing.
	ErrPubSubProjectIDRequired = errors.New("pkgmessage: pubsub project id is required")
	// ErrPubSubTopicRequired is returned when the publish topic is empty.
	ErrPubSubTopicRequired = errors.New("pkgmessage: pubsub topic is required")
)

// pubsubKeyAttribute carries OutgoingMessage.Key, since ordering keys need
// ordering enabled on the topic.
const pubsubKeyAttribute = "x-key"

// PubSubConfig configures the Google Pub/Sub implementation.
type PubSubConfig struct {
	ProjectID     string
	ClientOptions []option.ClientOption
}

// PubSub is a messaging implementation backed by Google Pub/Sub. Consume reads
// from the subscription named by WithGroup, or by source when no group is set.
type PubSub struct {
	client *pubsub.Client

	mu         sync.Mutex
	closed     bool
	publishers map[string]*pubsub.Publisher
}

// NewPubSub constructs a PubSub messaging client.
func NewPubSub(ctx context.Context, cfg PubSubConfig) (*PubSub, error) {
	if cfg.ProjectID == "" {
		return nil, ErrPubSubProjectIDRequired
	}

	c, err := pubsub.NewClient(ctx, cfg.ProjectID, cfg.ClientOptions...)
	if err != nil {
		return nil, fmt.Errorf("pkgmessage: pubsub new client: %w", err)
	}

	return &PubSub{client: c, publishers: map[string]*pubsub.Publisher{}}, nil
}

// Close stops publishers and closes the Pub/Sub client.
func (p *PubSub) Close() error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil
	}
	p.closed = true
	pubs := p.publishers
	p.publishers = nil
	p.mu.Unlock()

	for _, pub := range pubs {
		pub.Stop()
	}
	return p.client.Close()
}

// Publish sends a message to a Pub/Sub topic and waits for the server id.
func (p *PubSub) Publish(ctx context.Context, destination string, msg OutgoingMessage) (PublishResult, error) {
	if err := ctx.Err(); err != nil {
		return PublishResult{}, err
	}
	if destination == "" {
		return PublishResult{}, ErrPubSubTopicRequired
	}
	if msg.Delay > 0 {
		return PublishResult{}, ErrUnsupported
	}

	pub, err := p.publisher(destination)
	if err != nil {
		return PublishResult{}, err
	}

	attrs := make(map[string]string, len(msg.Headers)+1)
	for _, h := range msg.Headers {
		if h.Key != "" {
			attrs[h.Key] = string(h.Value)
		}
	}
	if len(msg.Key) > 0 {
		attrs[pubsubKeyAttribute] = string(msg.Key)
	}

	id, err := pub.Publish(ctx, &pubsub.Message{Data: msg.Body, Attributes: attrs}).Get(ctx)
	if err != nil {
		return PublishResult{}, fmt.Errorf("pkgmessage: pubsub publish: %w", err)
	}

	return PublishResult{MessageID: id, Topic: destination, Timestamp: time.Now()}, nil
}

// Consume receives from a subscription until ctx is done. Nacked messages are
// redelivered by Pub/Sub under the subscription's retry policy.
func (p *PubSub) Consume(ctx context.Context, source string, handler Handler, opts ...ConsumeOption) error {
	co := newConsumeOptions(opts...)
	subscription := co.group
	if subscription == "" {
		subscription = source
	}
	if subscription == "" {
		return ErrPubSubTopicRequired
	}

	p.mu.Lock()
	closed := p.closed
	p.mu.Unlock()
	if closed {
		return io.ErrClosedPipe
	}

	sub := p.client.Subscriber(subscription)
	sub.ReceiveSettings.NumGoroutines = co.concurrency
	sub.ReceiveSettings.MaxOutstandingMessages = co.maxInFlight

	return sub.Receive(ctx, func(ctx context.Context, m *pubsub.Message) {
		//nolint:errcheck // failures are logged by the handler
		handle(ctx, "pubsub", newPubSubMessage(source, m), handler, co.autoAck)
	})
}

func (p *PubSub) publisher(topic string) (*pubsub.Publisher, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return nil, io.ErrClosedPipe
	}
	if pub, ok := p.publishers[topic]; ok {
		return pub, nil
	}
	pub := p.client.Publisher(topic)
	p.publishers[topic] = pub
	return pub, nil
}

type pubSubMessage struct {
	responder

	topic   string
	msg     *pubsub.Message
	headers []Header
}

func newPubSubMessage(topic string, m *pubsub.Message) *pubSubMessage {
	headers := make([]Header, 0, len(m.Attributes))
	for k, v := range m.Attributes {
		if k != pubsubKeyAttribute {
			headers = append(headers, Header{Key: k, Value: []byte(v)})
		}
	}
	return &pubSubMessage{topic: topic, msg: m, headers: headers}
}

func (m *pubSubMessage) Body() []byte         { return m.msg.Data }
func (m *pubSubMessage) Key() []byte          { return []byte(m.msg.Attributes[pubsubKeyAttribute]) }
func (m *pubSubMessage) Headers() []Header    { return m.headers }
func (m *pubSubMessage) ID() string           { return m.msg.ID }
func (m *pubSubMessage) Topic() string        { return m.topic }
func (m *pubSubMessage) Timestamp() time.Time { return m.msg.PublishTime }

// Attempt is only known when the subscription has a dead-letter policy.
func (m *pubSubMessage) Attempt() int {
	if m.msg.DeliveryAttempt == nil {
		return 0
	}
	return *m.msg.DeliveryAttempt
}

func (m *pubSubMessage) Ack(context.Context) error {
	if m.claim() {
		m.msg.Ack()
	}
	return nil
}

func (m *pubSubMessage) Nack(context.Context) error {
	if m.claim() {
		m.msg.Nack()
	}
	return nil
}
