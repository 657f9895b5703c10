package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"
	"time"
	_ "time/tzdata"

	"raccordement_backend/internal/activity"
	"raccordement_backend/internal/adapters/storage"
	"raccordement_backend/internal/assistant"
	"raccordement_backend/internal/auth"
	"raccordement_backend/internal/email"
	"raccordement_backend/internal/events"
	"raccordement_backend/internal/leads"
	leadsservice "raccordement_backend/internal/leads/service"
	"raccordement_backend/internal/notification"
	"raccordement_backend/internal/notification/outbox"
	"raccordement_backend/internal/notification/ws"
	"raccordement_backend/internal/payments"
	"raccordement_backend/internal/payments/processor"
	"raccordement_backend/internal/requests"
	"raccordement_backend/internal/scheduler"
	"raccordement_backend/internal/settings"
	"raccordement_backend/internal/tasks"
	"raccordement_backend/internal/users"
	"raccordement_backend/platform/config"
	"raccordement_backend/platform/db"
	"raccordement_backend/platform/logger"
	"raccordement_backend/platform/validator"

	"github.com/jackc/pgx/v5/pgxpool"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic("failed to load config: " + err.Error())
	}

	log := logger.New(cfg.Env)
	log.Info("starting scheduler", "env", cfg.Env)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var pool *pgxpool.Pool
	if err := withRetry(ctx, log, "database connection", 5, 2*time.Second, func() error {
		p, err := db.NewPool(ctx, cfg)
		if err != nil {
			return err
		}
		pool = p
		return nil
	}); err != nil {
		log.Error("failed to connect to database", "error", err)
		panic("failed to connect to database: " + err.Error())
	}
	defer pool.Close()

	eventBus := events.NewInMemoryBus(log)
	val := validator.New()

	var transport email.Transport = email.NoopTransport{Log: log}
	if cfg.GetEmailEnabled() {
		transport = email.NewSMTPTransport(cfg.GetSMTPHost(), cfg.GetSMTPPort(), cfg.GetSMTPUsername(), cfg.GetSMTPPassword(), cfg.GetEmailFromAddress(), cfg.GetEmailFromName())
	}

	// Worker-side services: no HTTP handlers are mounted here.
	activityModule := activity.NewModule(pool, val, log)
	recorder := activityModule.Recorder()
	authModule := auth.NewModule(pool, cfg, eventBus, val, log)
	usersModule := users.NewModule(pool, authModule.Service(), eventBus, recorder, val, log)
	settingsModule, err := settings.NewModule(pool, transport, usersModule.Service(), recorder, val, log)
	if err != nil {
		log.Error("failed to initialize settings module", "error", err)
		panic("failed to initialize settings module: " + err.Error())
	}
	mailer := email.NewMailer(settingsModule.Service(), settingsModule.Service(), transport, log)

	requestsModule := requests.NewModule(pool, settingsModule.Service(), usersModule.Service(), eventBus, recorder, val, log)
	paymentsModule := payments.NewModule(payments.Deps{
		Pool:          pool,
		Processor:     processor.New(cfg),
		Requests:      requestsModule.Service(),
		Branding:      settingsModule.Service(),
		PublicSiteURL: cfg.GetPublicSiteURL(),
		EventBus:      eventBus,
		Audit:         recorder,
		Validator:     val,
		Logger:        log,
	})
	leadsModule := leads.NewModule(
		pool,
		requestsModule.Service(),
		usersModule.Service(),
		assistant.NewService(nil, log),
		leadsservice.Documents{Store: storage.Disabled{}},
		eventBus,
		recorder,
		val,
		log,
	)
	tasksModule := tasks.NewModule(pool, usersModule.Service(), eventBus, recorder, val, log)

	redisClient, err := scheduler.NewRedisClient(cfg)
	if err != nil {
		log.Error("failed to configure redis", "error", err)
		panic("failed to configure redis: " + err.Error())
	}
	var relay *ws.Publisher
	if redisClient != nil {
		defer func() { _ = redisClient.Close() }()
		relay = ws.NewPublisher(redisClient, log)
	} else {
		log.Warn("REDIS_URL not configured; live updates from jobs disabled")
	}

	notificationModule := notification.New(notification.Deps{
		Pool:     pool,
		Sender:   mailer,
		Relay:    relay,
		Staff:    usersModule.Service(),
		Alerts:   settingsModule.Service(),
		Receipts: paymentsModule.Service(),
		Config:   cfg,
		Logger:   log,
	})
	notificationModule.RegisterHandlers(eventBus)

	client, err := scheduler.NewClient(cfg)
	if err != nil {
		log.Error("failed to initialize scheduler client", "error", err)
		panic("failed to initialize scheduler client: " + err.Error())
	}
	defer func() { _ = client.Close() }()

	outboxRepo := outbox.New(pool)
	dispatcher := scheduler.NewNotificationOutboxDispatcher(client, outboxRepo, log)
	go dispatcher.Run(ctx)

	periodic, err := scheduler.NewPeriodic(client, scheduler.DefaultPeriodicJobs, log)
	if err != nil {
		log.Error("failed to initialize periodic jobs", "error", err)
		panic("failed to initialize periodic jobs: " + err.Error())
	}
	go periodic.Run(ctx)
	log.Info("periodic jobs scheduled", "count", periodic.Entries())

	worker, err := scheduler.NewWorker(cfg, scheduler.Jobs{
		Payments:          paymentsModule.Service(),
		Leads:             leadsModule.Service(),
		Tasks:             tasksModule.Service(),
		Activity:          activityModule.Service(),
		Outbox:            outboxRepo,
		ActivityRetention: cfg.GetActivityRetention(),
		LeadAbandonAfter:  cfg.GetLeadAbandonAfter(),
	}, eventBus, log)
	if err != nil {
		log.Error("failed to initialize scheduler worker", "error", err)
		panic("failed to initialize scheduler worker: " + err.Error())
	}

	worker.Run(ctx)

	drainCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := eventBus.Drain(drainCtx); err != nil {
		log.Warn("event handlers still running at shutdown", "error", err)
	}
}

func withRetry(ctx context.Context, log *logger.Logger, name string, attempts int, baseDelay time.Duration, fn func() error) error {
	if attempts < 1 {
		return errors.New(name + ": invalid retry attempts")
	}

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		err := fn()
		if err == nil {
			return nil
		}
		lastErr = err
		log.Warn("retryable operation failed", "operation", name, "attempt", attempt, "error", err)

		if attempt < attempts {
			delay := time.Duration(attempt*attempt) * baseDelay
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(delay):
			}
		}
	}

	return errors.New(name + ": " + lastErr.Error())
}
