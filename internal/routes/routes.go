package routes

import (
	"log/slog"
	"net"
	"strconv"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	"github.com/gofiber/storage/redis"

	"github.com/recebimentosmart/billing-backend/internal/config"
	"github.com/recebimentosmart/billing-backend/internal/handlers"
	"github.com/recebimentosmart/billing-backend/internal/middleware"
)

const webhookPrefix = "/api/webhooks/"

type Handlers struct {
	Health   *handlers.HealthHandler
	Payment  *handlers.PaymentHandler
	Webhook  *handlers.WebhookHandler
	Settings *handlers.SettingsHandler
}

// LimiterStorage returns Redis storage for the rate limiters when REDIS_ADDR is
// set, so every instance shares the counters. nil means in-memory.
func LimiterStorage(cfg *config.Config) fiber.Storage {
	if cfg.RedisAddr == "" {
		return nil
	}
	host, portStr, err := net.SplitHostPort(cfg.RedisAddr)
	if err != nil {
		slog.Warn("invalid REDIS_ADDR, using in-memory rate limiting", "addr", cfg.RedisAddr, "error", err.Error())
		return nil
	}
	port, err := strconv.Atoi(portStr)
	if err != nil {
		slog.Warn("invalid REDIS_ADDR port, using in-memory rate limiting", "addr", cfg.RedisAddr)
		return nil
	}
	return redis.New(redis.Config{
		Host:     host,
		Port:     port,
		Password: cfg.RedisPass,
		Database: 0,
		Reset:    false,
	})
}

func rateLimit(limit int, storage fiber.Storage, next func(*fiber.Ctx) bool) fiber.Handler {
	return limiter.New(limiter.Config{
		Next:              next,
		Max:               limit,
		Expiration:        1 * time.Minute,
		LimiterMiddleware: limiter.SlidingWindow{},
		KeyGenerator:      func(c *fiber.Ctx) string { return c.IP() },
		Storage:           storage,
	})
}

func Setup(app *fiber.App, cfg *config.Config, storage fiber.Storage, h Handlers) {
	api := app.Group("/api")

	// General API rate limiter: 60 req/min per IP. Webhooks are exempt: a 429
	// would make the provider retry a notification that was never rejected.
	api.Use(rateLimit(60, storage, func(c *fiber.Ctx) bool {
		return strings.HasPrefix(c.Path(), webhookPrefix)
	}))

	api.Get("/health", h.Health.Check)
	api.Get("/settings", h.Settings.List)

	// Checkout: stricter limit on payment creation
	pay := api.Group("/payments")
	pay.Post("/generate", rateLimit(10, storage, nil), h.Payment.Generate)
	pay.Get("/status/:reference", h.Payment.Status)
	pay.Get("/details", middleware.JWTProtected(cfg), h.Payment.Details)
	pay.Get("/history", middleware.JWTProtected(cfg), h.Payment.History)

	api.Get("/subscriptions/current", middleware.JWTProtected(cfg), h.Payment.CurrentSubscription)

	// Admin (admin token header, or JWT of a listed admin)
	admin := api.Group("/admin", middleware.AdminJWT(cfg), middleware.AdminRequired(cfg))
	admin.Put("/settings/:key", h.Settings.Set)
	admin.Delete("/settings/:key", h.Settings.Delete)

	// Webhooks: authenticated by provider signature, never by JWT
	webhooks := api.Group("/webhooks")
	webhooks.Post("/mercadopago", h.Webhook.HandleMercadoPago)
	webhooks.All("/mercadopago", h.Webhook.MethodNotAllowed)
	webhooks.Post("/pagarme", h.Webhook.HandlePagarme)
	webhooks.All("/pagarme", h.Webhook.MethodNotAllowed)
}
