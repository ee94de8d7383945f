package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Port       string
	CORSOrigin string

	DBDriver string
	DBURL    string

	JWTSecret    string
	OIDCIssuer   string
	OIDCAudience string

	RazorpayKeyID         string
	RazorpayKeySecret     string
	RazorpayWebhookSecret string
	PaymentCurrency       string
	PaymentMinAmountMinor int64
	GatewayFetchTimeout   time.Duration

	RedisAddr      string
	CourseCacheTTL time.Duration

	RabbitMQURL    string
	EventsExchange string

	StripeSecretKey string

	RateLimitRPS    float64
	RateLimitBurst  int
	WebhookMaxBytes int64
	JSONMaxBytes    int64

	RepairInterval time.Duration
	RepairBatch    int
}

// LoadEnv reads .env when present and then the process environment.
func LoadEnv() {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found. Using system environment variables.")
	}
}

// Load builds the Config from the environment. Every missing or malformed
// value is reported in one error.
func Load() (*Config, error) {
	r := &reader{}
	cfg := &Config{
		Port:       r.getEnv("PORT", "8080"),
		CORSOrigin: r.getEnv("CORS_ORIGIN", "http://localhost:3000"),

		DBDriver: strings.ToLower(r.getEnv("DB_DRIVER", "postgres")),
		DBURL:    r.mustEnv("DB_URL"),

		JWTSecret:    r.getEnv("JWT_SECRET", ""),
		OIDCIssuer:   r.getEnv("OIDC_ISSUER", ""),
		OIDCAudience: r.getEnv("OIDC_AUDIENCE", ""),

		RazorpayKeyID:         r.mustEnv("RAZORPAY_KEY_ID"),
		RazorpayKeySecret:     r.mustEnv("RAZORPAY_KEY_SECRET"),
		RazorpayWebhookSecret: r.getEnv("RAZORPAY_WEBHOOK_SECRET", ""),
		PaymentCurrency:       strings.ToUpper(r.getEnv("PAYMENT_CURRENCY", "INR")),
		PaymentMinAmountMinor: r.int64Env("PAYMENT_MIN_AMOUNT_MINOR", 100),
		GatewayFetchTimeout:   r.durationEnv("GATEWAY_FETCH_TIMEOUT", 3*time.Second),

		RedisAddr:      r.getEnv("REDIS_ADDR", ""),
		CourseCacheTTL: r.durationEnv("COURSE_CACHE_TTL", time.Minute),

		RabbitMQURL:    r.getEnv("RABBITMQ_URL", ""),
		EventsExchange: r.getEnv("EVENTS_EXCHANGE", "checkout.exchange"),

		StripeSecretKey: r.getEnv("STRIPE_SECRET_KEY", ""),

		RateLimitRPS:    r.floatEnv("RATE_LIMIT_RPS", 5),
		RateLimitBurst:  int(r.int64Env("RATE_LIMIT_BURST", 10)),
		WebhookMaxBytes: r.int64Env("WEBHOOK_MAX_BYTES", 65536),
		JSONMaxBytes:    r.int64Env("JSON_MAX_BYTES", 65536),

		RepairInterval: r.durationEnv("REPAIR_INTERVAL", time.Minute),
		RepairBatch:    int(r.int64Env("REPAIR_BATCH", 100)),
	}

	if cfg.JWTSecret == "" && cfg.OIDCIssuer == "" {
		r.problems = append(r.problems, "one of JWT_SECRET or OIDC_ISSUER is required")
	}
	if cfg.OIDCIssuer != "" && cfg.OIDCAudience == "" {
		r.problems = append(r.problems, "OIDC_AUDIENCE is required with OIDC_ISSUER")
	}
	if cfg.DBDriver != "postgres" && cfg.DBDriver != "mysql" {
		r.problems = append(r.problems, fmt.Sprintf("DB_DRIVER must be postgres or mysql, got %q", cfg.DBDriver))
	}

	if len(r.problems) > 0 {
		return nil, fmt.Errorf("invalid configuration: %s", strings.Join(r.problems, "; "))
	}
	if cfg.RazorpayWebhookSecret == "" {
		log.Println("RAZORPAY_WEBHOOK_SECRET not set: payment webhooks will be rejected")
	}
	return cfg, nil
}

type reader struct {
	problems []string
}

func (r *reader) mustEnv(key string) string {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		r.problems = append(r.problems, "missing required environment variable: "+key)
	}
	return v
}

func (r *reader) getEnv(key string, fallback string) string {
	if value, exists := os.LookupEnv(key); exists && value != "" {
		return value
	}
	return fallback
}

func (r *reader) int64Env(key string, fallback int64) int64 {
	raw := r.getEnv(key, "")
	if raw == "" {
		return fallback
	}
	n, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || n < 0 {
		r.problems = append(r.problems, fmt.Sprintf("%s must be a non-negative integer", key))
		return fallback
	}
	return n
}

func (r *reader) floatEnv(key string, fallback float64) float64 {
	raw := r.getEnv(key, "")
	if raw == "" {
		return fallback
	}
	f, err := strconv.ParseFloat(raw, 64)
	if err != nil || f <= 0 {
		r.problems = append(r.problems, fmt.Sprintf("%s must be a positive number", key))
		return fallback
	}
	return f
}

func (r *reader) durationEnv(key string, fallback time.Duration) time.Duration {
	raw := r.getEnv(key, "")
	if raw == "" {
		return fallback
	}
	d, err := time.ParseDuration(raw)
	if err != nil || d <= 0 {
		r.problems = append(r.problems, fmt.Sprintf("%s must be a positive duration", key))
		return fallback
	}
	return d
}
