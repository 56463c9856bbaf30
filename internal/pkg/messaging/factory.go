package messaging

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/samber/lo"
)

const (
	DriverNSQ          = "nsq"
	DriverNATS         = "nats"
	DriverKafka        = "kafka"
	DriverGooglePubSub = "google-pubsub"
	DriverRabbitMQ     = "rabbitmq"
)

var (
	ErrUnknownDriver = errors.New("pkgmessage: unknown driver")
	ErrDelayRequired = errors.New("pkgmessage: delayed publish unavailable")
)

// FactoryOptions carries the settings of every backend; only the selected
// driver's section is read.
type FactoryOptions struct {
	NSQ      NSQConfig
	Kafka    KafkaConfig
	NATS     NATSConfig
	PubSub   PubSubConfig
	RabbitMQ RabbitMQConfig
}

type constructor func(ctx context.Context, opts FactoryOptions) (Messaging, error)

type driver struct {
	open constructor
	// nativeDelay reports whether Publish honors OutgoingMessage.Delay
	// without the Delayed decorator.
	nativeDelay bool
}

var drivers = map[string]driver{
	DriverNSQ: {
		open:        func(_ context.Context, o FactoryOptions) (Messaging, error) { return NewNSQ(o.NSQ) },
		nativeDelay: true,
	},
	DriverNATS: {
		open: func(_ context.Context, o FactoryOptions) (Messaging, error) { return NewNATS(o.NATS) },
	},
	DriverKafka: {
		open: func(_ context.Context, o FactoryOptions) (Messaging, error) { return NewKafka(o.Kafka) },
	},
	DriverGooglePubSub: {
		open: func(ctx context.Context, o FactoryOptions) (Messaging, error) { return NewPubSub(ctx, o.PubSub) },
	},
	DriverRabbitMQ: {
		open:        func(_ context.Context, o FactoryOptions) (Messaging, error) { return NewRabbitMQ(o.RabbitMQ) },
		nativeDelay: true,
	},
}

// Drivers lists the accepted driver names in sorted order.
func Drivers() []string {
	names := lo.Keys(drivers)
	slices.Sort(names)
	return names
}

func lookupDriver(name string) (driver, error) {
	d, ok := drivers[strings.ToLower(strings.TrimSpace(name))]
	if !ok {
		return driver{}, fmt.Errorf("%w: %q (want one of %s)", ErrUnknownDriver, name, strings.Join(Drivers(), ", "))
	}
	return d, nil
}

// RequireDelay fails when the driver cannot defer delivery on its own and
// the Delayed decorator is not in front of it. Scheduled jobs published to
// such a broker would be rejected with ErrUnsupported.
func RequireDelay(name string, decorated bool) error {
	d, err := lookupDriver(name)
	if err != nil {
		return err
	}
	if !d.nativeDelay && !decorated {
		return fmt.Errorf("%w: %s has no native delay, enable the delayed decorator", ErrDelayRequired, name)
	}
	return nil
}

// NewFromDriver opens the backend registered under driver.
func NewFromDriver(ctx context.Context, name string, opts FactoryOptions) (Messaging, error) {
	d, err := lookupDriver(name)
	if err != nil {
		return nil, err
	}
	return d.open(ctx, opts)
}
