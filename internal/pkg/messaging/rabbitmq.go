package messaging

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sort"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
)

var (
	// ErrRabbitMQURLRequired is returned when the broker URL is missing.
	ErrRabbitMQURLRequired = errors.New("pkgmessage: rabbitmq url is required")
	// ErrRabbitMQQueueRequired is returned when the destination/source queue is empty.
	ErrRabbitMQQueueRequired = errors.New("pkgmessage: rabbitmq queue is required")
)

// delayQueueGrace keeps an idle delay queue alive a little longer than its TTL.
const delayQueueGrace = time.Minute

// RabbitMQConfig configures the RabbitMQ implementation.
type RabbitMQConfig struct {
	// URL is the AMQP connection string.
	URL string
	// Prefetch is the default QoS prefetch count for consumers.
	Prefetch int
	// LazyQueues declares queues with x-queue-mode=lazy.
	LazyQueues bool
}

// RabbitMQ is a messaging implementation backed by RabbitMQ (AMQP 0-9-1).
//
// Destinations are queue names on the default exchange. Delayed publishes go
// through a per-delay TTL queue that dead-letters into the destination queue.
// A nack republishes with the next attempt number and acks the original, so
// MaxAttempts bounds redelivery the same way as on NATS and Kafka.
type RabbitMQ struct {
	conn     *amqp.Connection
	prefetch int
	lazy     bool

	pubMu sync.Mutex
	pubCh *amqp.Channel

	mu       sync.Mutex
	channels []*amqp.Channel
	declared map[string]struct{}
	closed   bool
}

// NewRabbitMQ dials the broker and opens the publishing channel.
func NewRabbitMQ(cfg RabbitMQConfig) (*RabbitMQ, error) {
	if cfg.URL == "" {
		return nil, ErrRabbitMQURLRequired
	}

	conn, err := amqp.Dial(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("pkgmessage: rabbitmq dial: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		//nolint:errcheck,gosec // already failing
		conn.Close()
		return nil, fmt.Errorf("pkgmessage: rabbitmq open channel: %w", err)
	}

	return &RabbitMQ{
		conn:     conn,
		prefetch: cfg.Prefetch,
		lazy:     cfg.LazyQueues,
		pubCh:    ch,
		declared: map[string]struct{}{},
	}, nil
}

// Close closes consumer channels, the publishing channel and the connection.
func (r *RabbitMQ) Close() error {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return nil
	}
	r.closed = true
	channels := append([]*amqp.Channel{}, r.channels...)
	r.mu.Unlock()

	var errs []error
	for _, ch := range channels {
		if err := ch.Close(); err != nil && !errors.Is(err, amqp.ErrClosed) {
			errs = append(errs, err)
		}
	}

	r.pubMu.Lock()
	if err := r.pubCh.Close(); err != nil && !errors.Is(err, amqp.ErrClosed) {
		errs = append(errs, err)
	}
	r.pubMu.Unlock()

	if err := r.conn.Close(); err != nil && !errors.Is(err, amqp.ErrClosed) {
		errs = append(errs, err)
	}

	return errors.Join(errs...)
}

// Publish sends a persistent message to a queue, honoring msg.Delay.
func (r *RabbitMQ) Publish(ctx context.Context, destination string, msg OutgoingMessage) (PublishResult, error) {
	if err := ctx.Err(); err != nil {
		return PublishResult{}, err
	}
	if destination == "" {
		return PublishResult{}, ErrRabbitMQQueueRequired
	}
	if r.isClosed() {
		return PublishResult{}, io.ErrClosedPipe
	}

	r.pubMu.Lock()
	defer r.pubMu.Unlock()

	if err := r.declareQueue(r.pubCh, destination); err != nil {
		return PublishResult{}, err
	}

	routingKey := destination
	if msg.Delay > 0 {
		q, err := r.declareDelayQueue(destination, msg.Delay)
		if err != nil {
			return PublishResult{}, err
		}
		routingKey = q
	}

	now := time.Now()
	pub := amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Timestamp:    now,
		MessageId:    string(msg.Key),
		Body:         msg.Body,
		Headers:      amqpHeaders(msg.Headers),
	}

	if err := r.pubCh.PublishWithContext(ctx, "", routingKey, false, false, pub); err != nil {
		return PublishResult{}, fmt.Errorf("pkgmessage: rabbitmq publish: %w", err)
	}

	return PublishResult{
		MessageID: pub.MessageId,
		Topic:     destination,
		Timestamp: now,
	}, nil
}

// Consume starts consuming messages from a queue until ctx is canceled.
func (r *RabbitMQ) Consume(ctx context.Context, source string, handler Handler, opts ...ConsumeOption) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if source == "" {
		return ErrRabbitMQQueueRequired
	}

	co := newConsumeOptions(opts...)

	ch, err := r.openConsumerChannel()
	if err != nil {
		return err
	}

	if err := r.declareQueue(ch, source); err != nil {
		return err
	}

	prefetch := max(r.prefetch, co.maxInFlight)
	if err := ch.Qos(prefetch, 0, false); err != nil {
		return fmt.Errorf("pkgmessage: rabbitmq qos: %w", err)
	}

	deliveries, err := ch.Consume(source, co.group, false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("pkgmessage: rabbitmq consume: %w", err)
	}

	var wg sync.WaitGroup
	for range co.concurrency {
		wg.Go(func() {
			for d := range deliveries {
				msg := &rabbitMQMessage{pub: r, queue: source, d: d, maxAttempts: co.maxAttempts}
				//nolint:errcheck // failures are logged by the handler
				handle(ctx, "rabbitmq", msg, handler, co.autoAck)
			}
		})
	}

	<-ctx.Done()
	//nolint:errcheck,gosec // closing the channel ends the deliveries range
	ch.Close()
	wg.Wait()

	return ctx.Err()
}

func (r *RabbitMQ) openConsumerChannel() (*amqp.Channel, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return nil, io.ErrClosedPipe
	}

	ch, err := r.conn.Channel()
	if err != nil {
		return nil, fmt.Errorf("pkgmessage: rabbitmq open channel: %w", err)
	}
	r.channels = append(r.channels, ch)

	return ch, nil
}

func (r *RabbitMQ) declareQueue(ch *amqp.Channel, name string) error {
	r.mu.Lock()
	_, ok := r.declared[name]
	r.mu.Unlock()
	if ok {
		return nil
	}

	var args amqp.Table
	if r.lazy {
		args = amqp.Table{"x-queue-mode": "lazy"}
	}

	if _, err := ch.QueueDeclare(name, true, false, false, false, args); err != nil {
		return fmt.Errorf("pkgmessage: rabbitmq declare queue %s: %w", name, err)
	}

	r.mu.Lock()
	r.declared[name] = struct{}{}
	r.mu.Unlock()

	return nil
}

// declareDelayQueue returns a queue whose messages expire after delay (rounded
// up to the second) and are dead-lettered into destination. Messages with the
// same rounded delay share a queue, so expiry order matches publish order.
func (r *RabbitMQ) declareDelayQueue(destination string, delay time.Duration) (string, error) {
	secs := int64((delay + time.Second - 1) / time.Second)
	ttl := secs * int64(time.Second/time.Millisecond)
	name := fmt.Sprintf("%s.delay.%ds", destination, secs)

	_, err := r.pubCh.QueueDeclare(name, true, false, false, false, amqp.Table{
		"x-message-ttl":             ttl,
		"x-dead-letter-exchange":    "",
		"x-dead-letter-routing-key": destination,
		"x-expires":                 ttl + delayQueueGrace.Milliseconds(),
	})
	if err != nil {
		return "", fmt.Errorf("pkgmessage: rabbitmq declare delay queue %s: %w", name, err)
	}

	return name, nil
}

func (r *RabbitMQ) isClosed() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.closed
}

func amqpHeaders(headers []Header) amqp.Table {
	if len(headers) == 0 {
		return nil
	}

	t := make(amqp.Table, len(headers))
	for _, h := range headers {
		if h.Key != "" {
			t[h.Key] = string(h.Value)
		}
	}
	return t
}

type rabbitMQMessage struct {
	responder

	pub         Publisher
	queue       string
	d           amqp.Delivery
	maxAttempts int
}

func (m *rabbitMQMessage) Body() []byte         { return m.d.Body }
func (m *rabbitMQMessage) Key() []byte          { return []byte(m.d.MessageId) }
func (m *rabbitMQMessage) ID() string           { return m.d.MessageId }
func (m *rabbitMQMessage) Topic() string        { return m.queue }
func (m *rabbitMQMessage) Timestamp() time.Time { return m.d.Timestamp }
func (m *rabbitMQMessage) Attempt() int         { return attemptOf(m.Headers()) }

func (m *rabbitMQMessage) Headers() []Header {
	if len(m.d.Headers) == 0 {
		return nil
	}

	keys := make([]string, 0, len(m.d.Headers))
	for k := range m.d.Headers {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	headers := make([]Header, 0, len(keys))
	for _, k := range keys {
		switch v := m.d.Headers[k].(type) {
		case string:
			headers = append(headers, Header{Key: k, Value: []byte(v)})
		case []byte:
			headers = append(headers, Header{Key: k, Value: v})
		default:
			headers = append(headers, Header{Key: k, Value: fmt.Append(nil, v)})
		}
	}
	return headers
}

func (m *rabbitMQMessage) Ack(context.Context) error {
	if !m.claim() {
		return nil
	}
	return m.d.Ack(false)
}

func (m *rabbitMQMessage) Nack(ctx context.Context) error {
	if !m.claim() {
		return nil
	}
	if err := requeue(ctx, m.pub, "rabbitmq", m, m.maxAttempts); err != nil {
		// let the broker redeliver the original instead
		return errors.Join(err, m.d.Nack(false, true))
	}
	return m.d.Ack(false)
}
