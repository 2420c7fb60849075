package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/getsentry/sentry-go"
	sentryfiber "github.com/getsentry/sentry-go/fiber"
	"github.com/gofiber/fiber/v2"
	fiberlogger "github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"gorm.io/gorm"

	"github.com/recebimentosmart/billing-backend/internal/config"
	"github.com/recebimentosmart/billing-backend/internal/database"
	"github.com/recebimentosmart/billing-backend/internal/events"
	"github.com/recebimentosmart/billing-backend/internal/handlers"
	"github.com/recebimentosmart/billing-backend/internal/logging"
	"github.com/recebimentosmart/billing-backend/internal/middleware"
	"github.com/recebimentosmart/billing-backend/internal/notify"
	"github.com/recebimentosmart/billing-backend/internal/payments"
	"github.com/recebimentosmart/billing-backend/internal/providers/mercadopago"
	"github.com/recebimentosmart/billing-backend/internal/providers/pagarme"
	"github.com/recebimentosmart/billing-backend/internal/routes"
	"github.com/recebimentosmart/billing-backend/internal/services"
	"github.com/recebimentosmart/billing-backend/internal/validator"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	// Structured logging (JSON to stdout)
	logging.Setup(cfg.AppEnv)

	if cfg.JWTSecret == "" {
		slog.Error("JWT_SECRET environment variable is required")
		os.Exit(1)
	}
	if cfg.DatabaseURL == "" && cfg.DBPassword == "" {
		slog.Error("DATABASE_URL or DB_PASSWORD environment variable is required")
		os.Exit(1)
	}
	if cfg.MercadoPagoAccessToken == "" && cfg.PagarmeAPIKey == "" {
		slog.Warn("no payment provider credentials configured, payment generation will fail")
	}

	// Database
	db, err := database.Connect(cfg)
	if err != nil {
		slog.Error("database connection failed", "error", err)
		os.Exit(1)
	}
	if err := database.AutoMigrate(db); err != nil {
		slog.Error("auto migration failed", "error", err)
		os.Exit(1)
	}
	if err := database.RunMigrations(cfg); err != nil {
		slog.Error("sql migrations failed", "error", err)
		os.Exit(1)
	}

	// PostgreSQL log handler (ERROR+ async batch)
	pgLogHandler := logging.NewPGHandler(db)
	slog.SetDefault(slog.New(logging.NewMultiHandler(
		logging.NewStdoutHandler(slog.LevelInfo),
		pgLogHandler,
	)))

	cleanupDone := make(chan struct{})
	logging.StartCleanup(db, cfg.LogRetentionDays, cleanupDone)

	// Sentry error tracking
	if cfg.SentryDSN != "" {
		if err := sentry.Init(sentry.ClientOptions{
			Dsn:              cfg.SentryDSN,
			EnableTracing:    true,
			TracesSampleRate: 0.2,
			Environment:      cfg.AppEnv,
		}); err != nil {
			slog.Error("sentry init failed", "error", err)
		}
	}

	// Providers
	mpClient := mercadopago.NewClient(cfg.MercadoPagoBaseURL, cfg.MercadoPagoAccessToken, cfg.ProviderTimeout)
	mpVerifier := mercadopago.NewSignatureVerifier(cfg.MercadoPagoWebhookSecret, cfg.MercadoPagoWebhookTolerance)
	pgClient := pagarme.NewClient(cfg.PagarmeBaseURL, cfg.PagarmeAPIKey, cfg.ProviderTimeout)
	pgSecret := cfg.PagarmeWebhookSecret
	if pgSecret == "" {
		pgSecret = cfg.PagarmeAPIKey
	}
	pgVerifier := pagarme.NewSignatureVerifier(pgSecret)
	if !mpVerifier.Enabled() {
		slog.Warn("MERCADO_PAGO_WEBHOOK_SECRET not set, webhook signatures will not be verified")
	}

	// Side-effect sinks
	publisher := newPublisher(cfg)
	notifier := newNotifier(cfg)

	// Services
	repo := services.NewGormRepository(db)
	ledger := services.NewLedger(repo)
	referralService := services.NewReferralService(repo, repo, cfg.SubscriptionDefaultPrice)
	subscriptionService := services.NewSubscriptionService(repo, notifier, cfg.SubscriptionDefaultPlan)

	paymentService := services.NewPaymentService(ledger, validator.New(), mpClient, pgClient)
	paymentService.SetNotificationURL(payments.ProviderMercadoPago, cfg.WebhookURL)

	mpReconciler := services.NewReconciliationService(mpClient, ledger, repo, referralService, subscriptionService, publisher)
	pgReconciler := services.NewReconciliationService(pgClient, ledger, repo, referralService, subscriptionService, publisher)
	mpReconciler.SetSideEffectTimeout(cfg.SideEffectTimeout)
	pgReconciler.SetSideEffectTimeout(cfg.SideEffectTimeout)

	// Handlers
	h := routes.Handlers{
		Health: handlers.NewHealthHandler(
			func(ctx context.Context) error { return database.Ping(ctx, db) },
			map[string]bool{
				payments.ProviderMercadoPago: cfg.MercadoPagoAccessToken != "",
				payments.ProviderPagarme:     cfg.PagarmeAPIKey != "",
			},
		),
		Payment:  handlers.NewPaymentHandler(paymentService, ledger, referralService, repo, subscriptionService),
		Webhook:  handlers.NewWebhookHandler(mpReconciler, mpVerifier, pgReconciler, pgVerifier),
		Settings: handlers.NewSettingsHandler(repo, validator.New()),
	}

	// Fiber app
	app := fiber.New(fiber.Config{
		BodyLimit:    1 * 1024 * 1024,
		ErrorHandler: customErrorHandler,
	})

	app.Use(sentryfiber.New(sentryfiber.Options{
		Repanic:         true,
		WaitForDelivery: false,
	}))
	app.Use(recover.New())
	app.Use(requestid.New())
	app.Use(fiberlogger.New(fiberlogger.Config{
		Format: "${time} | ${status} | ${latency} | ${ip} | ${method} | ${path}\n",
	}))
	app.Use(middleware.CORS(cfg))
	app.Use(middleware.SecurityHeaders())

	routes.Setup(app, cfg, routes.LimiterStorage(cfg), h)

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		slog.Info("server starting", "port", cfg.Port)
		if err := app.Listen(":" + cfg.Port); err != nil {
			slog.Error("server failed to start", "error", err)
			os.Exit(1)
		}
	}()

	<-quit
	slog.Info("shutting down server...")

	if err := app.ShutdownWithTimeout(10 * time.Second); err != nil {
		slog.Error("server shutdown error", "error", err)
	}

	publisher.Close()
	close(cleanupDone)
	pgLogHandler.Stop()
	sentry.Flush(2 * time.Second)

	closeDB(db)
	slog.Info("server stopped")
}

func newPublisher(cfg *config.Config) events.Publisher {
	if !cfg.KafkaEnabled() {
		slog.Info("kafka not configured, payment events disabled")
		return events.NoopPublisher{}
	}
	p, err := events.NewKafkaPublisher(cfg.KafkaBootstrapServers, cfg.KafkaTopic, cfg.KafkaDeliveryTimeout)
	if err != nil {
		slog.Error("kafka producer init failed, payment events disabled", "error", err)
		return events.NoopPublisher{}
	}
	slog.Info("kafka producer ready", "topic", cfg.KafkaTopic)
	return p
}

func newNotifier(cfg *config.Config) notify.FirstSubscriptionNotifier {
	if !cfg.SMTPEnabled() {
		slog.Info("smtp not configured, first subscription emails disabled")
		return notify.NoopNotifier{}
	}
	return notify.NewEmailNotifier(cfg.SMTPHost, cfg.SMTPPort, cfg.SMTPUser, cfg.SMTPPassword, cfg.MailFrom, cfg.FinanceEmail, cfg.SMTPTimeout)
}

func closeDB(db *gorm.DB) {
	if err := database.Close(db); err != nil {
		slog.Error("database close error", "error", err)
	}
}

func customErrorHandler(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	message := "Internal server error"
	if e, ok := err.(*fiber.Error); ok {
		code = e.Code
		message = e.Message
	}

	// Only expose error details for client errors (4xx), not server errors (5xx)
	if code >= 500 {
		slog.Error("unhandled server error", "method", c.Method(), "path", c.Path(), "error", err.Error())
		message = "Internal server error"
	}

	return c.Status(code).JSON(fiber.Map{
		"error":   true,
		"message": message,
	})
}
