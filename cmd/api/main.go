package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"
	_ "time/tzdata"

	"raccordement_backend/internal/activity"
	"raccordement_backend/internal/adapters/storage"
	"raccordement_backend/internal/assistant"
	"raccordement_backend/internal/auth"
	"raccordement_backend/internal/company"
	"raccordement_backend/internal/contacts"
	"raccordement_backend/internal/dashboard"
	"raccordement_backend/internal/email"
	"raccordement_backend/internal/events"
	"raccordement_backend/internal/exports"
	apphttp "raccordement_backend/internal/http"
	"raccordement_backend/internal/http/router"
	"raccordement_backend/internal/leads"
	leadsservice "raccordement_backend/internal/leads/service"
	"raccordement_backend/internal/mailbox"
	"raccordement_backend/internal/notification"
	"raccordement_backend/internal/notification/ws"
	"raccordement_backend/internal/partner"
	"raccordement_backend/internal/payments"
	"raccordement_backend/internal/payments/processor"
	"raccordement_backend/internal/requests"
	"raccordement_backend/internal/scheduler"
	"raccordement_backend/internal/settings"
	"raccordement_backend/internal/tasks"
	"raccordement_backend/internal/users"
	"raccordement_backend/platform/config"
	"raccordement_backend/platform/db"
	"raccordement_backend/platform/httpkit"
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
	log.Info("starting server", "env", cfg.Env, "addr", cfg.HTTPAddr)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// ========================================================================
	// Infrastructure Layer
	// ========================================================================

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
	log.Info("database connection established")

	if cfg.GetAutoMigrate() {
		if err := withRetry(ctx, log, "database migrations", 5, 2*time.Second, func() error {
			return db.RunMigrations(ctx, pool, log)
		}); err != nil {
			log.Error("failed to run database migrations", "error", err)
			panic("failed to run database migrations: " + err.Error())
		}
		log.Info("database migrations complete")
	}

	redisClient, err := scheduler.NewRedisClient(cfg)
	if err != nil {
		log.Error("failed to configure redis", "error", err)
		panic("failed to configure redis: " + err.Error())
	}
	if redisClient != nil {
		defer func() { _ = redisClient.Close() }()
	} else {
		log.Warn("REDIS_URL not configured; webhook dedup and partner quotas disabled")
	}

	eventBus := events.NewInMemoryBus(log)
	val := validator.New()

	var storageSvc storage.Store = storage.Disabled{}
	if cfg.IsMinIOEnabled() {
		minio, err := storage.NewMinIO(cfg)
		if err != nil {
			log.Error("failed to initialize storage service", "error", err)
			panic("failed to initialize storage service: " + err.Error())
		}
		ensureBucket(ctx, log, minio, cfg.GetMinIOBucketLeadDocuments())
		storageSvc = minio
		log.Info("storage service initialized", "bucket", cfg.GetMinIOBucketLeadDocuments())
	} else {
		log.Warn("MinIO not configured; lead documents disabled")
	}

	var transport email.Transport = email.NoopTransport{Log: log}
	if cfg.GetEmailEnabled() {
		transport = email.NewSMTPTransport(cfg.GetSMTPHost(), cfg.GetSMTPPort(), cfg.GetSMTPUsername(), cfg.GetSMTPPassword(), cfg.GetEmailFromAddress(), cfg.GetEmailFromName())
	}

	// ========================================================================
	// Domain Modules (Composition Root)
	// ========================================================================

	activityModule := activity.NewModule(pool, val, log)
	recorder := activityModule.Recorder()

	authModule := auth.NewModule(pool, cfg, eventBus, val, log)
	usersModule := users.NewModule(pool, authModule.Service(), eventBus, recorder, val, log)
	if err := usersModule.Bootstrap(ctx, cfg.GetBootstrapAdminEmail(), cfg.GetBootstrapAdminPassword()); err != nil {
		log.Error("failed to bootstrap admin", "error", err)
	}

	settingsModule, err := settings.NewModule(pool, transport, usersModule.Service(), recorder, val, log)
	if err != nil {
		log.Error("failed to initialize settings module", "error", err)
		panic("failed to initialize settings module: " + err.Error())
	}
	if err := settingsModule.Seed(ctx); err != nil {
		log.Error("failed to seed settings", "error", err)
		panic("failed to seed settings: " + err.Error())
	}
	mailer := email.NewMailer(settingsModule.Service(), settingsModule.Service(), transport, log)

	requestsModule := requests.NewModule(pool, settingsModule.Service(), usersModule.Service(), eventBus, recorder, val, log)
	paymentsModule := payments.NewModule(payments.Deps{
		Pool:          pool,
		Redis:         redisClient,
		Processor:     processor.New(cfg),
		Requests:      requestsModule.Service(),
		Branding:      settingsModule.Service(),
		PublicSiteURL: cfg.GetPublicSiteURL(),
		EventBus:      eventBus,
		Audit:         recorder,
		Validator:     val,
		Logger:        log,
	})

	assistantModule := assistant.NewModule(ctx, cfg, val, log)
	leadsModule := leads.NewModule(
		pool,
		requestsModule.Service(),
		usersModule.Service(),
		assistantModule.Service(),
		leadsservice.Documents{Store: storageSvc, Bucket: cfg.GetMinIOBucketLeadDocuments(), MaxFileSize: cfg.GetMinIOMaxFileSize()},
		eventBus,
		recorder,
		val,
		log,
	)

	hub := ws.NewHub(func(token string) (httpkit.Identity, error) {
		claims, err := httpkit.ParseAccessToken(token, cfg)
		if err != nil {
			return nil, err
		}
		return httpkit.NewIdentity(claims.UserID, claims.Roles), nil
	}, cfg.GetCORSOrigins(), log)
	defer hub.Close()
	if redisClient != nil {
		go hub.Relay(ctx, redisClient)
	}

	notificationModule := notification.New(notification.Deps{
		Pool:     pool,
		Sender:   mailer,
		Hub:      hub,
		Staff:    usersModule.Service(),
		Alerts:   settingsModule.Service(),
		Receipts: paymentsModule.Service(),
		Config:   cfg,
		Logger:   log,
	})
	notificationModule.RegisterHandlers(eventBus)

	partnerModule := partner.NewModule(partner.Deps{
		Pool:      pool,
		Redis:     redisClient,
		Leads:     leadsModule.Service(),
		Requests:  requestsModule.Service(),
		Payments:  paymentsModule.Service(),
		Config:    cfg,
		Validator: val,
		Logger:    log,
	})

	// ========================================================================
	// HTTP Layer
	// ========================================================================

	app := &apphttp.App{
		Config: cfg,
		Logger: log,
		Health: pool,
		Modules: []apphttp.Module{
			authModule,
			usersModule,
			leadsModule,
			requestsModule,
			paymentsModule,
			contacts.NewModule(pool, mailer, eventBus, recorder, val, log),
			tasks.NewModule(pool, usersModule.Service(), eventBus, recorder, val, log),
			activityModule,
			settingsModule,
			notificationModule,
			partnerModule,
			mailbox.NewModule(cfg, val, log),
			assistantModule,
			exports.NewModule(pool, val, log),
			company.NewModule(cfg, log),
			dashboard.NewModule(pool),
		},
	}

	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           router.New(app),
		ReadHeaderTimeout: 10 * time.Second,
	}

	srvErr := make(chan error, 1)
	go func() {
		log.Info("server listening", "addr", cfg.HTTPAddr)
		srvErr <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		log.Info("shutdown signal received, gracefully shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Error("graceful shutdown failed", "error", err)
		}
		if err := eventBus.Drain(shutdownCtx); err != nil {
			log.Warn("event handlers still running at shutdown", "error", err)
		}
	case err := <-srvErr:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("server error", "error", err)
			panic("server error: " + err.Error())
		}
	}
}

// ensureBucket waits for MinIO to come up and creates the bucket if needed.
func ensureBucket(ctx context.Context, log *logger.Logger, store *storage.MinIO, bucket string) {
	if err := withRetry(ctx, log, "ensure "+bucket+" bucket", 5, 2*time.Second, func() error {
		return store.EnsureBucket(ctx, bucket)
	}); err != nil {
		log.Error("failed to ensure storage bucket exists", "error", err, "bucket", bucket)
		panic("failed to ensure storage bucket exists: " + err.Error())
	}
}

func withRetry(ctx context.Context, log *logger.Logger, name string, attempts int, baseDelay time.Duration, fn func() error) error {
	if attempts < 1 {
		return fmt.Errorf("%s: invalid retry attempts", name)
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
