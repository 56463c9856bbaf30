package messaging

const defaultMaxAttempts = 5

type consumeOptions struct {
	// group names the shared consumer: NSQ channel, NATS queue group, Kafka
	// group, Pub/Sub subscription, RabbitMQ consumer tag.
	group string

	concurrency int
	maxInFlight int
	autoAck     bool

	// maxAttempts bounds client-side requeues on brokers without native redelivery.
	maxAttempts int
}

// ConsumeOption configures consumer behavior.
type ConsumeOption func(*consumeOptions)

func newConsumeOptions(opts ...ConsumeOption) consumeOptions {
	co := consumeOptions{maxAttempts: defaultMaxAttempts}
	for _, opt := range opts {
		if opt != nil {
			opt(&co)
		}
	}
	if co.concurrency <= 0 {
		co.concurrency = 1
	}
	if co.maxInFlight < co.concurrency {
		co.maxInFlight = co.concurrency
	}
	return co
}

// WithGroup sets the name under which replicas share the work.
func WithGroup(group string) ConsumeOption {
	return func(o *consumeOptions) { o.group = group }
}

// WithConcurrency sets how many handler goroutines process messages in parallel.
func WithConcurrency(n int) ConsumeOption {
	return func(o *consumeOptions) { o.concurrency = n }
}

// WithMaxInFlight limits unacknowledged messages; never below concurrency.
func WithMaxInFlight(n int) ConsumeOption {
	return func(o *consumeOptions) { o.maxInFlight = n }
}

// WithAutoAck acks or nacks from the handler result.
func WithAutoAck(autoAck bool) ConsumeOption {
	return func(o *consumeOptions) { o.autoAck = autoAck }
}

// WithMaxAttempts caps republish-on-nack for NATS, Kafka and RabbitMQ.
func WithMaxAttempts(n int) ConsumeOption {
	return func(o *consumeOptions) {
		if n > 0 {
			o.maxAttempts = n
		}
	}
}
