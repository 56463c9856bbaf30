package messaging

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/robfig/cron/v3"
)

const (
	defaultDelayedKey       = "messaging:delayed"
	defaultDelayedSchedule  = "@every 1s"
	defaultDelayedBatchSize = 100
)

// ErrDelayedClientRequired is returned when the Redis client is missing.
var ErrDelayedClientRequired = errors.New("pkgmessage: delayed redis client is required")

// DelayedConfig configures the Redis-backed delay decorator.
type DelayedConfig struct {
	// Client is the Redis client holding the parked messages.
	Client *redis.Client
	// Key is the sorted set name.
	Key string
	// Schedule is the cron spec of the promoter (seconds field optional).
	Schedule string
	// BatchSize caps how many due messages are promoted per tick.
	BatchSize int64
}

// Delayed decorates a Messaging whose broker cannot defer delivery.
//
// Publishes with Delay > 0 are first offered to the inner broker. When it
// answers ErrUnsupported, the message is parked in a Redis sorted set scored
// by due time and promoted by a cron schedule once due. Promotion claims each
// entry with ZREM, so several replicas can run the promoter concurrently.
type Delayed struct {
	Messaging

	client   *redis.Client
	key      string
	schedule string
	batch    int64
	cron     *cron.Cron
	now      func() time.Time
}

type parkedMessage struct {
	ID          string   `json:"id"`
	Destination string   `json:"destination"`
	Body        []byte   `json:"body"`
	Key         []byte   `json:"key,omitempty"`
	Headers     []Header `json:"headers,omitempty"`
}

// NewDelayed wraps inner with Redis-backed deferred delivery.
func NewDelayed(inner Messaging, cfg DelayedConfig) (*Delayed, error) {
	if cfg.Client == nil {
		return nil, ErrDelayedClientRequired
	}

	d := &Delayed{
		Messaging: inner,
		client:    cfg.Client,
		key:       cfg.Key,
		schedule:  cfg.Schedule,
		batch:     cfg.BatchSize,
		now:       time.Now,
	}
	if d.key == "" {
		d.key = defaultDelayedKey
	}
	if d.schedule == "" {
		d.schedule = defaultDelayedSchedule
	}
	if d.batch <= 0 {
		d.batch = defaultDelayedBatchSize
	}

	return d, nil
}

// Publish forwards to the inner broker, parking the message in Redis when the
// broker cannot honor msg.Delay.
func (d *Delayed) Publish(ctx context.Context, destination string, msg OutgoingMessage) (PublishResult, error) {
	if msg.Delay <= 0 {
		return d.Messaging.Publish(ctx, destination, msg)
	}

	res, err := d.Messaging.Publish(ctx, destination, msg)
	if !errors.Is(err, ErrUnsupported) {
		return res, err
	}

	parked := parkedMessage{
		ID:          uuid.NewString(),
		Destination: destination,
		Body:        msg.Body,
		Key:         msg.Key,
		Headers:     msg.Headers,
	}
	member, err := json.Marshal(parked)
	if err != nil {
		return PublishResult{}, fmt.Errorf("pkgmessage: delayed marshal: %w", err)
	}

	due := d.now().Add(msg.Delay)
	if err := d.client.ZAdd(ctx, d.key, redis.Z{
		Score:  float64(due.UnixMilli()),
		Member: member,
	}).Err(); err != nil {
		return PublishResult{}, fmt.Errorf("pkgmessage: delayed park: %w", err)
	}

	return PublishResult{
		MessageID: parked.ID,
		Topic:     destination,
		Timestamp: due,
	}, nil
}

// Start runs the promoter on its cron schedule until Close.
func (d *Delayed) Start(ctx context.Context) error {
	parser := cron.NewParser(cron.SecondOptional | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)
	c := cron.New(cron.WithParser(parser), cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger)))

	if _, err := c.AddFunc(d.schedule, func() {
		n, err := d.Promote(ctx)
		if err != nil {
			slog.ErrorContext(ctx, "failed to promote delayed messages", "key", d.key, "error", err)
			return
		}
		if n > 0 {
			slog.DebugContext(ctx, "delayed messages promoted", "key", d.key, "count", n)
		}
	}); err != nil {
		return fmt.Errorf("pkgmessage: delayed schedule %q: %w", d.schedule, err)
	}

	c.Start()
	d.cron = c

	return nil
}

// Promote publishes every parked message that is due and returns how many
// were handed to the inner broker.
func (d *Delayed) Promote(ctx context.Context) (int, error) {
	members, err := d.client.ZRangeByScore(ctx, d.key, &redis.ZRangeBy{
		Min:   "-inf",
		Max:   strconv.FormatInt(d.now().UnixMilli(), 10),
		Count: d.batch,
	}).Result()
	if err != nil {
		return 0, err
	}

	promoted := 0
	for _, member := range members {
		claimed, err := d.client.ZRem(ctx, d.key, member).Result()
		if err != nil {
			return promoted, err
		}
		if claimed == 0 {
			continue
		}

		var pm parkedMessage
		if err := json.Unmarshal([]byte(member), &pm); err != nil {
			slog.ErrorContext(ctx, "failed to parse delayed message, dropped", "key", d.key, "error", err)
			continue
		}

		if _, err := d.Messaging.Publish(ctx, pm.Destination, OutgoingMessage{
			Body:    pm.Body,
			Key:     pm.Key,
			Headers: pm.Headers,
		}); err != nil {
			slog.ErrorContext(ctx, "failed to publish delayed message, parked again", "destination", pm.Destination, "error", err)
			if rErr := d.client.ZAdd(ctx, d.key, redis.Z{
				Score:  float64(d.now().UnixMilli()),
				Member: member,
			}).Err(); rErr != nil {
				return promoted, errors.Join(err, rErr)
			}
			continue
		}

		promoted++
	}

	return promoted, nil
}

// Close stops the promoter and closes the inner broker.
func (d *Delayed) Close() error {
	if d.cron != nil {
		<-d.cron.Stop().Done()
	}
	return d.Messaging.Close()
}
