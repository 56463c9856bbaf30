package notification

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shandysiswandi/gonotify/internal/notification/inbound"
	"github.com/shandysiswandi/gonotify/internal/notification/outbound/channel"
	"github.com/shandysiswandi/gonotify/internal/notification/outbound/db"
	"github.com/shandysiswandi/gonotify/internal/notification/outbound/mq"
	"github.com/shandysiswandi/gonotify/internal/notification/outbound/sqlite"
	"github.com/shandysiswandi/gonotify/internal/notification/usecase"
	"github.com/shandysiswandi/gonotify/internal/pkg/clock"
	"github.com/shandysiswandi/gonotify/internal/pkg/config"
	"github.com/shandysiswandi/gonotify/internal/pkg/goroutine"
	"github.com/shandysiswandi/gonotify/internal/pkg/idempotency"
	"github.com/shandysiswandi/gonotify/internal/pkg/instrument"
	"github.com/shandysiswandi/gonotify/internal/pkg/mail"
	"github.com/shandysiswandi/gonotify/internal/pkg/messaging"
	"github.com/shandysiswandi/gonotify/internal/pkg/router"
	"github.com/shandysiswandi/gonotify/internal/pkg/sms"
	"github.com/shandysiswandi/gonotify/internal/pkg/uid"
	"github.com/shandysiswandi/gonotify/internal/pkg/validator"
)

var errNoStore = errors.New("notification: no database configured")

type Dependency struct {
	Ctx context.Context
	// DBConn and SQLite are alternatives; SQLite wins when both are set.
	DBConn      *pgxpool.Pool
	SQLite      *sqlite.DB
	Messaging   messaging.Messaging
	Config      config.Config
	Instrument  instrument.Instrumentation
	UID         uid.NumberID
	UUID        uid.StringID
	Clock       clock.Clocker
	Goroutine   *goroutine.Manager
	Validator   validator.Validator
	Router      *router.Router
	Mail        mail.Mail
	SMS         sms.SMS
	Idempotency idempotency.Idempotency
}

func New(dep Dependency) error {
	ucDep := usecase.Dependency{
		RepoJob: mq.NewMessaging(dep.Messaging, dep.Config, dep.Instrument),
		Notifiers: []usecase.Notifier{
			channel.NewEmail(dep.Mail, dep.Instrument, channel.WithRateLimit(
				dep.Config.GetFloat64("mail.rate_per_second"), dep.Config.GetInt("mail.rate_burst"),
			)),
			channel.NewSMS(dep.SMS, dep.Instrument, channel.WithRateLimit(
				dep.Config.GetFloat64("sms.rate_per_second"), dep.Config.GetInt("sms.rate_burst"),
			)),
		},
		Idempotency: dep.Idempotency,
		Config:      dep.Config,
		UID:         dep.UID,
		Clock:       dep.Clock,
		Validator:   dep.Validator,
		Instrument:  dep.Instrument,
	}

	switch {
	case dep.SQLite != nil:
		ucDep.RepoDB = dep.SQLite
	case dep.DBConn != nil:
		dbNotif := db.NewDB(dep.DBConn, dep.Instrument)
		if dep.Config.GetBool("database.auto_migrate") {
			ctx := dep.Ctx
			if ctx == nil {
				ctx = context.Background()
			}
			if err := dbNotif.Migrate(ctx); err != nil {
				return err
			}
		}
		ucDep.RepoDB = dbNotif
	default:
		return errNoStore
	}

	uc := usecase.NewNotification(ucDep)

	inbound.RegisterHTTPEndpoint(dep.Router, uc)
	if dep.Ctx != nil {
		inbound.RegisterMQConsumer(dep.Ctx, dep.Config, dep.Goroutine, dep.Messaging, dep.UUID, uc, dep.Instrument)
	}

	return nil
}
