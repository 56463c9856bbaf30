package messaging

import (
	"context"
	"errors"
	"io"
	"time"
)

// ErrUnsupported is returned when a feature is not supported by the selected broker.
//
// NATS, Kafka and Pub/Sub answer it for delayed publishes unless wrapped by Delayed.
var ErrUnsupported = errors.New("pkgmessage: unsupported operation")

// Messaging is a broker-agnostic client that can publish and consume messages.
type Messaging interface {
	io.Closer

	Publisher
	Consumer
}

// Publisher publishes messages to a destination (topic/subject/queue).
type Publisher interface {
	Publish(ctx context.Context, destination string, msg OutgoingMessage) (PublishResult, error)
}

// Consumer consumes messages from a source and blocks until ctx is done.
type Consumer interface {
	Consume(ctx context.Context, source string, handler Handler, opts ...ConsumeOption) error
}

// Handler processes a received message. With auto-ack a nil error acks and a
// non-nil error nacks; a handler that acked or nacked itself is left alone.
type Handler func(ctx context.Context, msg Message) error

// OutgoingMessage is a message to be published.
type OutgoingMessage struct {
	Body []byte

	// Key is the partition key on Kafka and the message id elsewhere.
	Key []byte

	Headers []Header

	// Delay defers delivery. NSQ and RabbitMQ honor it natively.
	Delay time.Duration
}

// Header is a key/value pair carried next to the body.
type Header struct {
	Key   string
	Value []byte
}

// PublishResult carries what the broker reported back.
type PublishResult struct {
	MessageID string
	Topic     string
	Timestamp time.Time
}

// Message is a received message.
type Message interface {
	Body() []byte
	Key() []byte
	Headers() []Header

	ID() string
	Topic() string
	Timestamp() time.Time

	// Attempt is the 1-based delivery attempt, 0 when the broker does not track it.
	Attempt() int

	Ack(ctx context.Context) error
	// Nack asks for redelivery.
	Nack(ctx context.Context) error
}

// HeaderValue returns the first value stored under key.
func HeaderValue(headers []Header, key string) string {
	for _, h := range headers {
		if h.Key == key && len(h.Value) > 0 {
			return string(h.Value)
		}
	}
	return ""
}
