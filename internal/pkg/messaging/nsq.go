package messaging

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	nsq "github.com/nsqio/go-nsq"
)

var (
	// ErrNSQTopicRequired is returned when the topic is empty.
	ErrNSQTopicRequired = errors.New("pkgmessage: nsq topic is required")
	// ErrNSQChannelRequired is returned when Consume has no group.
	ErrNSQChannelRequired = errors.New("pkgmessage: nsq channel is required")
	// ErrNSQProducerAddrRequired is returned when publishing without a producer address.
	ErrNSQProducerAddrRequired = errors.New("pkgmessage: nsq producer address is required")
	// ErrNSQConsumerAddrsRequired is returned when no NSQD/lookupd consumer addresses are configured.
	ErrNSQConsumerAddrsRequired = errors.New("pkgmessage: nsq consumer nsqd/lookupd addresses are required")
)

// defaultNSQMaxDefer matches nsqd's default --max-req-timeout.
const defaultNSQMaxDefer = time.Hour

// NSQConfig configures the NSQ implementation.
type NSQConfig struct {
	// ProducerAddr is the nsqd address for publishing. Empty means consume-only.
	ProducerAddr string

	// ConsumerLookupdAddrs wins over ConsumerNSQDAddrs when both are set.
	ConsumerNSQDAddrs    []string
	ConsumerLookupdAddrs []string

	ProducerConfig *nsq.Config
	ConsumerConfig *nsq.Config

	// MaxDefer caps the delay of a deferred publish; nsqd rejects anything
	// above its --max-req-timeout. Longer delays are published at the cap and
	// the consumer is expected to re-defer the remainder. Defaults to one hour.
	MaxDefer time.Duration
}

// nsqProducer is the part of *nsq.Producer used for publishing.
type nsqProducer interface {
	Publish(topic string, body []byte) error
	DeferredPublish(topic string, delay time.Duration, body []byte) error
	Stop()
}

// NSQ is a messaging implementation backed by NSQ. Delay maps to deferred
// publish; headers travel inside a JSON envelope.
type NSQ struct {
	producer nsqProducer
	maxDefer time.Duration

	nsqdAddrs    []string
	lookupdAddrs []string
	consumerCfg  *nsq.Config

	mu        sync.Mutex
	consumers []*nsq.Consumer
	closed    bool
}

// NewNSQ constructs an NSQ messaging client.
func NewNSQ(cfg NSQConfig) (*NSQ, error) {
	n := &NSQ{
		nsqdAddrs:    nonEmpty(cfg.ConsumerNSQDAddrs),
		lookupdAddrs: nonEmpty(cfg.ConsumerLookupdAddrs),
		consumerCfg:  cfg.ConsumerConfig,
		maxDefer:     cfg.MaxDefer,
	}
	if n.maxDefer <= 0 {
		n.maxDefer = defaultNSQMaxDefer
	}
	if n.consumerCfg == nil {
		n.consumerCfg = nsq.NewConfig()
	}

	if cfg.ProducerAddr != "" {
		pcfg := cfg.ProducerConfig
		if pcfg == nil {
			pcfg = nsq.NewConfig()
		}
		p, err := nsq.NewProducer(cfg.ProducerAddr, pcfg)
		if err != nil {
			return nil, fmt.Errorf("pkgmessage: nsq new producer: %w", err)
		}
		p.SetLoggerLevel(nsq.LogLevelError)
		n.producer = p
	}

	return n, nil
}

// Close stops consumers, waiting for in-flight handlers, then the producer.
func (n *NSQ) Close() error {
	n.mu.Lock()
	if n.closed {
		n.mu.Unlock()
		return nil
	}
	n.closed = true
	consumers := n.consumers
	n.consumers = nil
	n.mu.Unlock()

	for _, c := range consumers {
		stopNSQConsumer(c)
	}
	if n.producer != nil {
		n.producer.Stop()
	}
	return nil
}

// Publish sends msg to an NSQ topic.
func (n *NSQ) Publish(ctx context.Context, destination string, msg OutgoingMessage) (PublishResult, error) {
	if err := ctx.Err(); err != nil {
		return PublishResult{}, err
	}
	if destination == "" {
		return PublishResult{}, ErrNSQTopicRequired
	}
	if n.producer == nil {
		return PublishResult{}, ErrNSQProducerAddrRequired
	}

	body, err := encodeEnvelope(msg)
	if err != nil {
		return PublishResult{}, fmt.Errorf("pkgmessage: nsq encode: %w", err)
	}

	if msg.Delay > 0 {
		err = n.producer.DeferredPublish(destination, min(msg.Delay, n.maxDefer), body)
	} else {
		err = n.producer.Publish(destination, body)
	}
	if err != nil {
		return PublishResult{}, fmt.Errorf("pkgmessage: nsq publish: %w", err)
	}

	return PublishResult{MessageID: string(msg.Key), Topic: destination, Timestamp: time.Now()}, nil
}

// Consume reads topic on the channel named by WithGroup until ctx is done.
func (n *NSQ) Consume(ctx context.Context, source string, handler Handler, opts ...ConsumeOption) error {
	co := newConsumeOptions(opts...)
	switch {
	case source == "":
		return ErrNSQTopicRequired
	case co.group == "":
		return ErrNSQChannelRequired
	case len(n.nsqdAddrs) == 0 && len(n.lookupdAddrs) == 0:
		return ErrNSQConsumerAddrsRequired
	}

	ccfg := *n.consumerCfg
	ccfg.MaxInFlight = co.maxInFlight

	consumer, err := nsq.NewConsumer(source, co.group, &ccfg)
	if err != nil {
		return fmt.Errorf("pkgmessage: nsq new consumer: %w", err)
	}
	consumer.SetLoggerLevel(nsq.LogLevelError)
	consumer.AddConcurrentHandlers(nsq.HandlerFunc(func(m *nsq.Message) error {
		m.DisableAutoResponse()
		//nolint:errcheck // the broker redelivers an unanswered message
		handle(ctx, "nsq", newNSQMessage(source, m), handler, co.autoAck)
		return nil
	}), co.concurrency)

	if err := n.track(consumer); err != nil {
		stopNSQConsumer(consumer)
		return err
	}

	if len(n.lookupdAddrs) > 0 {
		err = consumer.ConnectToNSQLookupds(n.lookupdAddrs)
	} else {
		err = consumer.ConnectToNSQDs(n.nsqdAddrs)
	}
	if err != nil {
		stopNSQConsumer(consumer)
		return fmt.Errorf("pkgmessage: nsq connect: %w", err)
	}

	select {
	case <-ctx.Done():
		stopNSQConsumer(consumer)
		return ctx.Err()
	case <-consumer.StopChan:
		return nil
	}
}

func (n *NSQ) track(c *nsq.Consumer) error {
	n.mu.Lock()
	defer n.mu.Unlock()

	if n.closed {
		return io.ErrClosedPipe
	}
	n.consumers = append(n.consumers, c)
	return nil
}

func stopNSQConsumer(c *nsq.Consumer) {
	c.Stop()
	<-c.StopChan
}

// nonEmpty drops blank entries left by comma-split config values.
func nonEmpty(addrs []string) []string {
	out := make([]string, 0, len(addrs))
	for _, a := range addrs {
		if a != "" {
			out = append(out, a)
		}
	}
	return out
}

type nsqMessage struct {
	responder

	topic   string
	msg     *nsq.Message
	body    []byte
	headers []Header
}

func newNSQMessage(topic string, m *nsq.Message) *nsqMessage {
	body, headers := decodeEnvelope(m.Body)
	return &nsqMessage{topic: topic, msg: m, body: body, headers: headers}
}

func (m *nsqMessage) Body() []byte         { return m.body }
func (m *nsqMessage) Key() []byte          { return nil }
func (m *nsqMessage) Headers() []Header    { return m.headers }
func (m *nsqMessage) ID() string           { return fmt.Sprintf("%x", m.msg.ID) }
func (m *nsqMessage) Topic() string        { return m.topic }
func (m *nsqMessage) Timestamp() time.Time { return time.Unix(0, m.msg.Timestamp) }
func (m *nsqMessage) Attempt() int         { return int(m.msg.Attempts) }

func (m *nsqMessage) Ack(context.Context) error {
	if m.claim() {
		m.msg.Finish()
	}
	return nil
}

// Nack requeues with backoff; go-nsq gives up after the consumer MaxAttempts.
func (m *nsqMessage) Nack(context.Context) error {
	if m.claim() {
		m.msg.Requeue(-1)
	}
	return nil
}
