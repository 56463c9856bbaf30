// Package app builds the process: it reads configuration, opens every
// backing resource, registers the notification module and owns shutdown.
package app

import (
	"context"
	"net/http"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/shandysiswandi/gonotify/internal/notification/outbound/sqlite"
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

type App struct {
	// ctx is canceled when shutdown starts; consumers and the delayed
	// scheduler run under it.
	ctx    context.Context
	cancel context.CancelFunc

	config config.Config
	ins    instrument.Instrumentation

	goroutine *goroutine.Manager
	validator validator.Validator
	clock     clock.Clocker
	uid       uid.NumberID
	uuid      uid.StringID

	dbConn    *pgxpool.Pool
	sqliteDB  *sqlite.DB
	cacheConn *redis.Client
	idemp     idempotency.Idempotency
	mail      mail.Mail
	sms       sms.SMS
	messaging messaging.Messaging

	router     *router.Router
	httpServer *http.Server

	closers []closer
}

type closer struct {
	name string
	fn   func(context.Context) error
}

// New wires the application. Any failure while opening a resource is fatal.
func New(parent context.Context) *App {
	ctx, cancel := context.WithCancel(parent)
	a := &App{ctx: ctx, cancel: cancel}

	for _, step := range []func(){
		a.initConfig,
		a.initInstrument,
		a.initLibraries,
		a.initDatabase,
		a.initCache,
		a.initMail,
		a.initSMS,
		a.initMessaging,
		a.initHTTPServer,
		a.initModules,
	} {
		step()
	}

	return a
}

// onClose registers a release step. Steps run in reverse registration order,
// so a resource is closed before whatever it was built on.
func (a *App) onClose(name string, fn func(context.Context) error) {
	a.closers = append(a.closers, closer{name: name, fn: fn})
}
