package usecase

import (
	"context"
	"log/slog"
	"time"

	"github.com/shandysiswandi/gonotify/internal/notification/entity"
	"github.com/shandysiswandi/gonotify/internal/pkg/clock"
	"github.com/shandysiswandi/gonotify/internal/pkg/config"
	"github.com/shandysiswandi/gonotify/internal/pkg/idempotency"
	"github.com/shandysiswandi/gonotify/internal/pkg/instrument"
	"github.com/shandysiswandi/gonotify/internal/pkg/uid"
	"github.com/shandysiswandi/gonotify/internal/pkg/validator"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

type repoDB interface {
	GetPreference(ctx context.Context, userID string) (*entity.Preference, error)
	UpsertPreference(ctx context.Context, in entity.PreferenceUpdate) (*entity.Preference, error)

	CreateNotifications(ctx context.Context, items []entity.Notification) error
	GetNotification(ctx context.Context, id int64) (*entity.Notification, error)
	ListNotifications(ctx context.Context, f entity.ListNotificationsFilter) ([]entity.Notification, error)
	MarkNotificationSent(ctx context.Context, id int64, sentAt time.Time) (bool, error)
	MarkNotificationFailed(ctx context.Context, id int64) (bool, error)
}

type repoJob interface {
	PublishJob(ctx context.Context, job entity.Job, delay time.Duration) error
}

// Notifier delivers on one channel. Send is only called after Validate
// accepted the recipient.
type Notifier interface {
	Channel() entity.Channel
	Validate(recipient string) bool
	Send(ctx context.Context, recipient, subject, body string) error
}

type Usecase struct {
	repoDB    repoDB
	repoJob   repoJob
	notifiers map[entity.Channel]Notifier
	idemp     idempotency.Idempotency
	cfg       config.Config
	uid       uid.NumberID
	clock     clock.Clocker
	validator validator.Validator
	ins       instrument.Instrumentation

	deliveryCounter metric.Int64Counter
}

type Dependency struct {
	RepoDB    repoDB
	RepoJob   repoJob
	Notifiers []Notifier
	// Idempotency is optional; without it the conditional status write is the only duplicate guard.
	Idempotency idempotency.Idempotency
	Config      config.Config
	UID         uid.NumberID
	Clock       clock.Clocker
	Validator   validator.Validator
	Instrument  instrument.Instrumentation
}

func NewNotification(dep Dependency) *Usecase {
	uc := &Usecase{
		repoDB:    dep.RepoDB,
		repoJob:   dep.RepoJob,
		notifiers: make(map[entity.Channel]Notifier, len(dep.Notifiers)),
		idemp:     dep.Idempotency,
		cfg:       dep.Config,
		uid:       dep.UID,
		clock:     dep.Clock,
		validator: dep.Validator,
		ins:       dep.Instrument,
	}

	for _, n := range dep.Notifiers {
		uc.notifiers[n.Channel()] = n
	}

	counter, err := dep.Instrument.Meter("notification.usecase").Int64Counter(
		"notification.delivery.result",
		metric.WithDescription("Number of processed deliveries by channel and terminal status"),
	)
	if err != nil {
		slog.Error("failed to create delivery result counter", "error", err)
	}
	uc.deliveryCounter = counter

	return uc
}

func (s *Usecase) startSpan(ctx context.Context, name string) (context.Context, trace.Span) {
	return s.ins.Tracer("notification.usecase").Start(ctx, name)
}

func (s *Usecase) notifierFor(ch entity.Channel) (Notifier, bool) {
	n, ok := s.notifiers[ch]
	return n, ok
}
