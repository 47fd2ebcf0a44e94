package main

import (
	"context"
	"database/sql"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/sesv2"
	"github.com/jackc/pgx/v5/pgxpool"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"github.com/wolfman30/clinic-booking-platform/internal/api/router"
	"github.com/wolfman30/clinic-booking-platform/internal/appointments"
	"github.com/wolfman30/clinic-booking-platform/internal/audit"
	appconfig "github.com/wolfman30/clinic-booking-platform/internal/config"
	"github.com/wolfman30/clinic-booking-platform/internal/events"
	"github.com/wolfman30/clinic-booking-platform/internal/gcal"
	"github.com/wolfman30/clinic-booking-platform/internal/leads"
	"github.com/wolfman30/clinic-booking-platform/internal/notify"
	"github.com/wolfman30/clinic-booking-platform/internal/observability/metrics"
	"github.com/wolfman30/clinic-booking-platform/internal/payments"
	"github.com/wolfman30/clinic-booking-platform/internal/referrals"
	"github.com/wolfman30/clinic-booking-platform/internal/users"
	"github.com/wolfman30/clinic-booking-platform/internal/video"
	"github.com/wolfman30/clinic-booking-platform/pkg/logging"
)

func main() {
	_ = godotenv.Load()

	cfg, err := appconfig.Load()
	if err != nil {
		logging.Default().Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	logger := logging.New(cfg.LogLevel)
	logger.Info("starting clinic booking platform API server",
		"env", cfg.Env,
		"port", cfg.Port,
	)

	ctx := context.Background()

	pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
	if err != nil {
		logger.Error("failed to create database pool", "error", err)
		os.Exit(1)
	}
	defer pool.Close()

	// Separate database/sql handle for the audit trail.
	auditDB, err := sql.Open("pgx", cfg.DatabaseURL)
	if err != nil {
		logger.Error("failed to open audit database handle", "error", err)
		os.Exit(1)
	}
	defer func() { _ = auditDB.Close() }()

	// Metrics
	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector())
	registry.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	bookingMetrics := metrics.NewBookingMetrics(registry)

	// Distributed slot lock, when Redis is configured. Without it the
	// database exclusion constraint is the only double-booking guard.
	var locker appointments.SlotLocker
	if cfg.RedisAddr != "" {
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
		})
		defer func() { _ = rdb.Close() }()
		locker = appointments.NewRedisSlotLocker(rdb, cfg.BookingLockTTL)
		logger.Info("redis slot locking enabled", "addr", cfg.RedisAddr)
	} else {
		logger.Warn("REDIS_ADDR not set, booking relies on the database constraint alone")
	}

	// Stores
	apptRepo := appointments.NewRepository(pool)
	userRepo := users.NewRepository(pool)
	referralRepo := referrals.NewRepository(pool)
	leadRepo := leads.NewRepository(pool)
	ledger := events.NewLedger(pool)
	auditStore := audit.NewStore(auditDB, logger.Component("audit"))

	// Email: SendGrid primary, SES fallback when AWS credentials are present.
	var senders []notify.EmailSender
	if sg := notify.NewSendGridSender(notify.SendGridConfig{
		APIKey:    cfg.SendGridAPIKey,
		FromEmail: cfg.EmailFrom,
		FromName:  cfg.EmailFromName,
	}, logger.Component("sendgrid")); sg != nil {
		senders = append(senders, sg)
	}
	if cfg.AWSAccessKeyID != "" && cfg.AWSSecretAccessKey != "" {
		awsCfg, err := awsconfig.LoadDefaultConfig(ctx,
			awsconfig.WithRegion(cfg.AWSRegion),
			awsconfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
				cfg.AWSAccessKeyID, cfg.AWSSecretAccessKey, "")))
		if err != nil {
			logger.Error("failed to load AWS config", "error", err)
			os.Exit(1)
		}
		if ses := notify.NewSESSender(sesv2.NewFromConfig(awsCfg), notify.SESConfig{
			FromEmail: cfg.EmailFrom,
			FromName:  cfg.EmailFromName,
		}, logger.Component("ses")); ses != nil {
			senders = append(senders, ses)
		}
	}
	var emailSender notify.EmailSender
	if len(senders) > 0 {
		emailSender = notify.NewFallbackSender(logger.Component("email"), senders...)
	} else {
		logger.Warn("no email provider configured, confirmations disabled")
	}
	notifySvc := notify.NewService(emailSender, cfg.ClinicEmail, logger.Component("notify"))

	// Booking service
	svc := appointments.NewService(apptRepo, userRepo, locker, appointments.ServiceConfig{
		SlotMinutes:    cfg.SlotMinutes,
		WorkingHours:   appointments.WorkingHours{StartHour: cfg.WorkingHourStart, EndHour: cfg.WorkingHourEnd},
		Location:       cfg.Location(),
		ClinicName:     cfg.ClinicName,
		RequirePayment: cfg.RequirePayment,
	}, logger.Component("appointments")).
		WithNotifier(notifySvc).
		WithAudit(auditStore).
		WithReferrals(referralRepo).
		WithMetrics(bookingMetrics)

	if cfg.DailyAPIKey != "" {
		svc.WithVideo(video.NewClient(cfg.DailyAPIKey, cfg.DailyBaseURL))
		logger.Info("video room provisioning enabled")
	}
	if cfg.GoogleCalendarCredentials != "" && cfg.GoogleCalendarID != "" {
		scheduler, err := gcal.NewScheduler(ctx, cfg.GoogleCalendarID, []byte(cfg.GoogleCalendarCredentials))
		if err != nil {
			logger.Error("failed to init calendar scheduler", "error", err)
			os.Exit(1)
		}
		svc.WithCalendar(scheduler)
		logger.Info("calendar scheduling enabled", "calendar_id", cfg.GoogleCalendarID)
	}

	// Payments
	checkout := payments.NewStripeCheckoutService(
		cfg.StripeSecretKey, cfg.StripeSuccessURL, cfg.StripeCancelURL, logger.Component("stripe"))
	if cfg.StripeSecretKey == "" {
		checkout = checkout.WithDryRun(true)
		logger.Warn("STRIPE_SECRET_KEY not set, checkout runs in dry-run mode")
	}

	// Handlers
	apptHandler := appointments.NewHandler(svc, logger.Component("appointments"))
	checkoutHandler := payments.NewCheckoutHandler(apptRepo, checkout, logger.Component("payments"))
	stripeWebhook := payments.NewStripeWebhookHandler(
		cfg.StripeWebhookSecret, apptRepo, ledger, auditStore, bookingMetrics, logger.Component("webhooks"))
	referralsHandler := referrals.NewHandler(referralRepo, cfg.PublicBaseURL, logger.Component("referrals"))
	leadsHandler := leads.NewHandler(leadRepo, notifySvc, logger.Component("leads"))

	r := router.New(&router.Config{
		Logger:              logger,
		AppointmentsHandler: apptHandler,
		CheckoutHandler:     checkoutHandler,
		StripeWebhook:       stripeWebhook,
		ReferralsHandler:    referralsHandler,
		LeadsHandler:        leadsHandler,
		JWTSecret:           cfg.JWTSecret,
		MetricsHandler:      promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
		CORSAllowedOrigins:  cfg.CORSAllowedOrigins,
		PublicRateLimit:     5,
	})

	srv := &http.Server{
		Addr:         ":" + strconv.Itoa(cfg.Port),
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server forced to shutdown", "error", err)
		os.Exit(1)
	}

	logger.Info("server stopped")
}
