package app

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/nats-io/nats.go"
	"github.com/nsqio/go-nsq"
	"github.com/redis/go-redis/v9"
	"github.com/rs/cors"
	"github.com/segmentio/kafka-go"
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
	"golang.org/x/oauth2/google"
	"google.golang.org/api/option"
)

const (
	driverPostgres = "postgres"
	driverSQLite   = "sqlite"
	driverSMTP     = "smtp"
	driverTwilio   = "twilio"

	pubsubScope = "https://www.googleapis.com/auth/pubsub"

	defaultConfigPath = "./config/config.yaml"
)

// initConfig loads the YAML named by GONOTIFY_CONFIG_PATH; GONOTIFY_* env
// vars override any key.
func (a *App) initConfig() {
	path := os.Getenv("GONOTIFY_CONFIG_PATH")
	if path == "" {
		path = defaultConfigPath
	}

	cfg, err := config.NewViper(path)
	if err != nil {
		slog.Error("failed to init config", "path", path, "error", err)
		os.Exit(1)
	}

	if tz := strings.TrimSpace(cfg.GetString("app.tz")); tz != "" {
		loc, err := time.LoadLocation(tz)
		if err != nil {
			slog.Warn("unknown app.tz, keeping system local time", "tz", tz, "error", err)
		} else {
			time.Local = loc
		}
	}

	a.config = cfg
	a.onClose("config", func(context.Context) error { return cfg.Close() })
}

func (a *App) initInstrument() {
	ins, err := instrument.New(context.Background(), instrument.Config{
		Enabled:          a.config.GetBool("instrument.enabled"),
		ServiceName:      a.config.GetString("instrument.service_name"),
		ServiceVersion:   a.config.GetString("instrument.service_version"),
		Environment:      a.config.GetString("instrument.env"),
		OTLPEndpoint:     a.config.GetString("instrument.otlp_endpoint"),
		OTLPSecure:       a.config.GetBool("instrument.otlp_secure"),
		TraceSampleRatio: a.config.GetFloat64("instrument.trace_sample_ratio"),
		MetricsInterval:  a.config.GetSecond("instrument.metric_interval_seconds"),
		LogLevel:         a.config.GetString("instrument.log_level"),
		MaskFields:       a.config.GetArray("instrument.log_mask_fields"),
	})
	if err != nil {
		slog.Error("failed to init instrumentation", "error", err)
		os.Exit(1)
	}
	a.ins = ins
	a.onClose("instrument", ins.Shutdown)
}

func (a *App) initLibraries() {
	a.clock = clock.New()
	a.uuid = uid.NewUUID()
	a.goroutine = goroutine.NewManager(a.config.GetInt("app.server.max_goroutine"))

	validator, err := validator.NewV10Validator()
	if err != nil {
		slog.Error("failed to init validation v10 validator", "error", err)
		os.Exit(1)
	}
	a.validator = validator

	snow, err := uid.NewSnowflake()
	if err != nil {
		slog.Error("failed to init uid number snowflake", "error", err)
		os.Exit(1)
	}
	a.uid = snow
}

func (a *App) initDatabase() {
	driver := strings.TrimSpace(a.config.GetString("database.driver"))
	if driver == "" {
		driver = driverPostgres
	}

	switch driver {
	case driverSQLite:
		db, err := sqlite.Open(a.ctx,
			a.config.GetString("database.sqlite.dsn"),
			a.config.GetSecond("database.sqlite.busy_timeout_seconds"),
			a.ins,
		)
		if err != nil {
			slog.Error("failed to open sqlite database", "error", err)
			os.Exit(1)
		}
		a.sqliteDB = db
		a.onClose("database", func(context.Context) error { return db.Close() })
		return
	case driverPostgres:
	default:
		slog.Error("failed to init database, unknown driver", "driver", driver)
		os.Exit(1)
	}

	config, err := pgxpool.ParseConfig(a.config.GetString("database.url"))
	if err != nil {
		slog.Error("failed to parse DB connection string.", "error", err)
		os.Exit(1)
	}

	config.MaxConns = a.config.GetInt32("database.pool.max_conns")
	config.MinConns = a.config.GetInt32("database.pool.min_conns")
	config.MaxConnLifetime = a.config.GetSecond("database.pool.max_conn_lifetime_seconds")
	config.MaxConnIdleTime = a.config.GetSecond("database.pool.max_conn_idle_seconds")
	config.HealthCheckPeriod = a.config.GetSecond("database.pool.health_check_period_seconds")

	pool, err := pgxpool.NewWithConfig(a.ctx, config)
	if err != nil {
		slog.Error("failed to create DB connection pool", "error", err)
		os.Exit(1)
	}

	pingCtx, cancel := context.WithTimeout(a.ctx, 5*time.Second)
	defer cancel()
	if err := pool.Ping(pingCtx); err != nil {
		slog.Error("failed to ping DB", "error", err)
		os.Exit(1)
	}

	a.dbConn = pool
	a.onClose("database", func(context.Context) error {
		pool.Close()
		return nil
	})
}

// initCache connects Redis when enabled. Redis backs the delivery guard and
// the delayed messaging decorator; both are skipped without it.
func (a *App) initCache() {
	if !a.config.GetBool("redis.enabled") {
		return
	}

	opt, err := redis.ParseURL(a.config.GetString("redis.url"))
	if err != nil {
		slog.Error("failed to parse redis url", "error", err)
		os.Exit(1)
	}

	rdb := redis.NewClient(opt)

	pingCtx, cancel := context.WithTimeout(a.ctx, 5*time.Second)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		slog.Error("failed to init redis", "error", err)
		os.Exit(1)
	}

	a.cacheConn = rdb
	a.onClose("redis", func(context.Context) error { return rdb.Close() })
	a.idemp = idempotency.New(a.cacheConn)
}

func (a *App) initMail() {
	defer func() { a.onClose("mail", func(context.Context) error { return a.mail.Close() }) }()

	if strings.TrimSpace(a.config.GetString("mail.driver")) != driverSMTP {
		a.mail = mail.NewLog()
		return
	}

	client, err := mail.NewSMTP(mail.SMTPConfig{
		Host:     a.config.GetString("mail.host"),
		Port:     a.config.GetInt("mail.port"),
		Username: a.config.GetString("mail.username"),
		Password: a.config.GetString("mail.password"),
		From:     a.config.GetString("mail.from"),
		Timeout:  a.config.GetSecond("mail.timeout_seconds"),
	})
	if err != nil {
		slog.Error("failed to init mail", "error", err)
		os.Exit(1)
	}

	a.mail = client
}

func (a *App) initSMS() {
	defer func() { a.onClose("sms", func(context.Context) error { return a.sms.Close() }) }()

	if strings.TrimSpace(a.config.GetString("sms.driver")) != driverTwilio {
		a.sms = sms.NewLog()
		return
	}

	client, err := sms.NewTwilio(sms.TwilioConfig{
		AccountSID: a.config.GetString("sms.twilio.account_sid"),
		AuthToken:  a.config.GetString("sms.twilio.auth_token"),
		From:       a.config.GetString("sms.twilio.from"),
	})
	if err != nil {
		slog.Error("failed to init sms", "error", err)
		os.Exit(1)
	}

	a.sms = client
}

func (a *App) initMessaging() {
	driver := a.config.GetString("messaging.driver")
	delayedEnabled := a.config.GetBool("messaging.delayed.enabled")
	if err := messaging.RequireDelay(driver, delayedEnabled); err != nil {
		slog.Error("failed to init messaging, scheduled delivery needs a delaying broker", "error", err, "driver", driver)
		os.Exit(1)
	}

	client, err := messaging.NewFromDriver(a.ctx, driver, messaging.FactoryOptions{
		NSQ: messaging.NSQConfig{
			ProducerAddr:         a.config.GetString("messaging.nsq.producer_addr"),
			ConsumerNSQDAddrs:    a.config.GetArray("messaging.nsq.consumer_nsqd_addrs"),
			ConsumerLookupdAddrs: a.config.GetArray("messaging.nsq.consumer_lookupd_addrs"),
			MaxDefer:             a.config.GetSecond("messaging.nsq.max_defer_seconds"),
			ProducerConfig: func() *nsq.Config {
				cfg := nsq.NewConfig()
				cfg.MaxInFlight = a.config.GetInt("messaging.nsq.producer_config.max_in_flight")
				cfg.DialTimeout = a.config.GetSecond("messaging.nsq.producer_config.dial_timeout_seconds")
				cfg.ReadTimeout = a.config.GetSecond("messaging.nsq.producer_config.read_timeout_seconds")
				cfg.WriteTimeout = a.config.GetSecond("messaging.nsq.producer_config.write_timeout_seconds")
				return cfg
			}(),
			ConsumerConfig: func() *nsq.Config {
				cfg := nsq.NewConfig()
				cfg.MaxInFlight = a.config.GetInt("messaging.nsq.consumer_config.max_in_flight")
				cfg.MaxAttempts = a.config.GetUint16("messaging.nsq.consumer_config.max_attempts")
				cfg.LookupdPollInterval = a.config.GetSecond("messaging.nsq.consumer_config.lookupd_poll_interval_seconds")
				cfg.DialTimeout = a.config.GetSecond("messaging.nsq.consumer_config.dial_timeout_seconds")
				cfg.ReadTimeout = a.config.GetSecond("messaging.nsq.consumer_config.read_timeout_seconds")
				cfg.WriteTimeout = a.config.GetSecond("messaging.nsq.consumer_config.write_timeout_seconds")
				cfg.DefaultRequeueDelay = a.config.GetSecond("messaging.nsq.consumer_config.default_requeue_delay_seconds")
				cfg.MaxRequeueDelay = a.config.GetSecond("messaging.nsq.consumer_config.max_requeue_delay_seconds")
				return cfg
			}(),
		},
		NATS: messaging.NATSConfig{
			URL: a.config.GetString("messaging.nats.url"),
			Options: []nats.Option{
				nats.Name(a.config.GetString("messaging.nats.name")),
				nats.MaxReconnects(a.config.GetInt("messaging.nats.max_reconnects")),
				nats.Timeout(a.config.GetSecond("messaging.nats.timeout_seconds")),
				nats.ReconnectWait(a.config.GetSecond("messaging.nats.reconnect_wait_seconds")),
				nats.PingInterval(a.config.GetSecond("messaging.nats.ping_interval_seconds")),
				nats.MaxPingsOutstanding(a.config.GetInt("messaging.nats.max_pings_outstanding")),
				nats.RetryOnFailedConnect(a.config.GetBool("messaging.nats.retry_on_failed_connect")),
			},
		},
		Kafka: messaging.KafkaConfig{
			Brokers: a.config.GetArray("messaging.kafka.brokers"),
			Dialer: &kafka.Dialer{
				ClientID:  a.config.GetString("messaging.kafka.client_id"),
				Timeout:   a.config.GetSecond("messaging.kafka.dial_timeout_seconds"),
				DualStack: true,
			},
		},
		PubSub: messaging.PubSubConfig{
			ProjectID:     a.config.GetString("messaging.pubsub.project_id"),
			ClientOptions: a.pubsubOptions(),
		},
		RabbitMQ: messaging.RabbitMQConfig{
			URL:        a.config.GetString("messaging.rabbitmq.url"),
			Prefetch:   a.config.GetInt("messaging.rabbitmq.prefetch"),
			LazyQueues: a.config.GetBool("messaging.rabbitmq.lazy_queues"),
		},
	})
	if err != nil {
		slog.Error("failed to init messaging", "error", err, "driver", driver)
		os.Exit(1)
	}

	defer func() { a.onClose("messaging", func(context.Context) error { return a.messaging.Close() }) }()

	if !delayedEnabled {
		a.messaging = client
		return
	}

	delayed, err := messaging.NewDelayed(client, messaging.DelayedConfig{
		Client:    a.cacheConn,
		Key:       a.config.GetString("messaging.delayed.key"),
		Schedule:  a.config.GetString("messaging.delayed.schedule"),
		BatchSize: a.config.GetInt64("messaging.delayed.batch_size"),
	})
	if err != nil {
		slog.Error("failed to init delayed messaging, redis.enabled is required", "error", err)
		os.Exit(1)
	}
	if err := delayed.Start(a.ctx); err != nil {
		slog.Error("failed to start delayed messaging", "error", err)
		os.Exit(1)
	}

	a.messaging = delayed
}

// pubsubOptions builds Pub/Sub client options. Without any of them the client
// falls back to application default credentials.
func (a *App) pubsubOptions() []option.ClientOption {
	opts := []option.ClientOption{}
	if a.config.GetBool("messaging.pubsub.without_auth") {
		opts = append(opts, option.WithoutAuthentication())
	}
	if v := strings.TrimSpace(a.config.GetString("messaging.pubsub.credentials_file")); v != "" {
		// #nosec G304 -- path is from trusted config file.
		credsJSON, err := os.ReadFile(v)
		if err != nil {
			slog.Error("failed to read pubsub credentials file", "error", err)
			os.Exit(1)
		}
		creds, err := google.CredentialsFromJSON(a.ctx, credsJSON, pubsubScope)
		if err != nil {
			slog.Error("failed to parse pubsub credentials file", "error", err)
			os.Exit(1)
		}
		opts = append(opts, option.WithCredentials(creds))
	}
	if v := a.config.GetBinary("messaging.pubsub.credentials_json"); len(v) > 0 {
		creds, err := google.CredentialsFromJSON(a.ctx, v, pubsubScope)
		if err != nil {
			slog.Error("failed to parse pubsub credentials json", "error", err)
			os.Exit(1)
		}
		opts = append(opts, option.WithCredentials(creds))
	}
	if v := strings.TrimSpace(a.config.GetString("messaging.pubsub.endpoint")); v != "" {
		opts = append(opts, option.WithEndpoint(v))
	}

	return opts
}

func (a *App) initHTTPServer() {
	probes := map[string]router.Probe{}
	if a.sqliteDB != nil {
		probes["database"] = a.sqliteDB.Ping
	}
	if a.dbConn != nil {
		probes["database"] = a.dbConn.Ping
	}
	if a.cacheConn != nil {
		probes["redis"] = func(ctx context.Context) error { return a.cacheConn.Ping(ctx).Err() }
	}

	a.router = router.NewRouter(router.Config{
		Config:     a.config,
		UUID:       a.uuid,
		Instrument: a.ins,
		Probes:     probes,
	})

	routerWithCORS := cors.New(cors.Options{
		AllowedOrigins: a.config.GetArray("app.server.cors"),
		AllowedMethods: []string{
			http.MethodGet,
			http.MethodPost,
			http.MethodPut,
			http.MethodOptions,
		},
		AllowedHeaders:   []string{"*"},
		AllowCredentials: true,
	}).Handler(a.router)

	a.httpServer = &http.Server{
		Addr:              a.config.GetString("app.server.http.address"),
		Handler:           routerWithCORS,
		ReadTimeout:       a.config.GetSecond("app.server.http.read_timeout_seconds"),
		ReadHeaderTimeout: a.config.GetSecond("app.server.http.read_header_timeout_seconds"),
		WriteTimeout:      a.config.GetSecond("app.server.http.write_timeout_seconds"),
		IdleTimeout:       a.config.GetSecond("app.server.http.idle_timeout_seconds"),
	}
}
