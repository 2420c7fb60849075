package config

import (
	"fmt"
	"log/slog"
	"net/url"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

type Config struct {
	// Database
	DatabaseURL string `env:"DATABASE_URL"`
	DBHost      string `env:"DB_HOST" envDefault:"localhost"`
	DBPort      string `env:"DB_PORT" envDefault:"5432"`
	DBUser      string `env:"DB_USER" envDefault:"postgres"`
	DBPassword  string `env:"DB_PASSWORD"`
	DBName      string `env:"DB_NAME" envDefault:"postgres"`
	DBSSLMode   string `env:"DB_SSLMODE" envDefault:"require"`

	// JWT secret of the auth backend; tokens are verified, never issued here.
	JWTSecret string `env:"JWT_SECRET"`

	// Mercado Pago
	MercadoPagoAccessToken      string        `env:"MERCADO_PAGO_ACCESS_TOKEN"`
	MercadoPagoBaseURL          string        `env:"MERCADO_PAGO_BASE_URL" envDefault:"https://api.mercadopago.com"`
	MercadoPagoWebhookSecret    string        `env:"MERCADO_PAGO_WEBHOOK_SECRET"`
	MercadoPagoWebhookTolerance time.Duration `env:"MERCADO_PAGO_WEBHOOK_TOLERANCE" envDefault:"0s"`
	WebhookURL                  string        `env:"WEBHOOK_URL"`

	// Pagar.me
	PagarmeAPIKey        string `env:"PAGARME_API_KEY"`
	PagarmeBaseURL       string `env:"PAGARME_BASE_URL" envDefault:"https://api.pagar.me/core/v5"`
	PagarmeWebhookSecret string `env:"PAGARME_WEBHOOK_SECRET"`

	ProviderTimeout time.Duration `env:"PROVIDER_TIMEOUT" envDefault:"15s"`

	// Upper bound for the work done after an approved webhook (credits, subscription,
	// event, email) before the provider gets its ACK.
	SideEffectTimeout time.Duration `env:"SIDE_EFFECT_TIMEOUT" envDefault:"10s"`

	// Billing
	SubscriptionDefaultPlan  string  `env:"SUBSCRIPTION_DEFAULT_PLAN" envDefault:"monthly_plan"`
	SubscriptionDefaultPrice float64 `env:"SUBSCRIPTION_DEFAULT_PRICE" envDefault:"35"`

	// Events
	KafkaBootstrapServers string        `env:"KAFKA_BOOTSTRAP_SERVERS"`
	KafkaTopic            string        `env:"KAFKA_TOPIC" envDefault:"successful_payments"`
	KafkaDeliveryTimeout  time.Duration `env:"KAFKA_DELIVERY_TIMEOUT" envDefault:"5s"`

	// Mail
	SMTPHost     string        `env:"SMTP_HOST"`
	SMTPPort     string        `env:"SMTP_PORT" envDefault:"587"`
	SMTPUser     string        `env:"SMTP_USER"`
	SMTPPassword string        `env:"SMTP_PASSWORD"`
	MailFrom     string        `env:"MAIL_FROM" envDefault:"no-reply@recebimentosmart.com.br"`
	FinanceEmail string        `env:"FINANCE_EMAIL" envDefault:"financeiro@recebimentosmart.com.br"`
	SMTPTimeout  time.Duration `env:"SMTP_TIMEOUT" envDefault:"10s"`

	// Admin
	AdminEmails  string `env:"ADMIN_EMAILS"`
	AdminUserIDs string `env:"ADMIN_USER_IDS"`
	AdminToken   string `env:"ADMIN_TOKEN"`

	// Server
	Port        string `env:"PORT" envDefault:"8080"`
	CORSOrigins string `env:"CORS_ORIGINS" envDefault:"*"`
	RedisAddr   string `env:"REDIS_ADDR"`
	RedisPass   string `env:"REDIS_PASSWORD"`

	SentryDSN        string `env:"SENTRY_DSN"`
	AppEnv           string `env:"APP_ENV" envDefault:"development"`
	LogRetentionDays int    `env:"LOG_RETENTION_DAYS" envDefault:"30"`
}

// Load reads an optional .env file and then the process environment.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		slog.Debug("no .env file loaded", "error", err)
	}

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("failed to parse environment: %w", err)
	}
	return cfg, nil
}

func (c *Config) DSN() string {
	if c.DatabaseURL != "" {
		return c.DatabaseURL
	}
	return "host=" + c.DBHost +
		" user=" + c.DBUser +
		" password=" + c.DBPassword +
		" dbname=" + c.DBName +
		" port=" + c.DBPort +
		" sslmode=" + c.DBSSLMode +
		" TimeZone=UTC"
}

// MigrationURL is the URL form of the DSN expected by golang-migrate.
func (c *Config) MigrationURL() string {
	if c.DatabaseURL != "" {
		return c.DatabaseURL
	}
	u := url.URL{
		Scheme: "postgres",
		User:   url.UserPassword(c.DBUser, c.DBPassword),
		Host:   c.DBHost + ":" + c.DBPort,
		Path:   "/" + c.DBName,
	}
	q := u.Query()
	q.Set("sslmode", c.DBSSLMode)
	u.RawQuery = q.Encode()
	return u.String()
}

func (c *Config) KafkaEnabled() bool {
	return c.KafkaBootstrapServers != ""
}

func (c *Config) SMTPEnabled() bool {
	return c.SMTPHost != "" && c.SMTPUser != "" && c.SMTPPassword != ""
}
