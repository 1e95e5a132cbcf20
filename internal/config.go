package internal

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Env         string
	Port        int
	LogLevel    string
	DatabaseUrl string

	// Bearer token verification
	JWTSecret string
	JWTIssuer string

	// Origins allowed to call the API from a browser
	CORSAllowedOrigins []string

	// Premium usage
	PremiumLimitsCacheTTL     time.Duration
	PremiumRateLimitPerMinute int
	PremiumRateLimitBurst     int

	// Stripe Billing Configuration
	// The webhook endpoint acknowledges and ignores events if these are empty.
	StripeSecretKey     string // Stripe API secret key (sk_test_... or sk_live_...)
	StripeWebhookSecret string // Stripe webhook signing secret (whsec_...)

	// Stripe Price IDs that grant a paid role
	StripeProMonthlyPriceID      string
	StripeProYearlyPriceID       string
	StripeBusinessMonthlyPriceID string
	StripeBusinessYearlyPriceID  string

	// Metrics endpoint authentication
	// If both are empty, the /metrics endpoint will be unprotected (not recommended)
	MetricsUsername string
	MetricsPassword string
}

// IsDevelopment reports whether the service runs in the development environment.
func (c *Config) IsDevelopment() bool {
	return c.Env == "development"
}

// BillingEnabled reports whether Stripe webhooks can be verified.
func (c *Config) BillingEnabled() bool {
	return c.StripeWebhookSecret != ""
}

func NewConfig() (*Config, error) {
	// Load .env file if it exists (ignored in production)
	_ = godotenv.Load()

	cfg := &Config{
		Env:      getEnv("ENV", "development"),
		Port:     getEnvInt("PORT", 8080),
		LogLevel: getEnv("LOG_LEVEL", "debug"),

		JWTIssuer: getEnv("JWT_ISSUER", "linksight"),

		CORSAllowedOrigins: getEnvList("CORS_ALLOWED_ORIGINS"),

		PremiumLimitsCacheTTL:     getEnvDuration("PREMIUM_LIMITS_CACHE_TTL", 5*time.Minute),
		PremiumRateLimitPerMinute: getEnvInt("PREMIUM_RATE_LIMIT_PER_MINUTE", 30),
		PremiumRateLimitBurst:     getEnvInt("PREMIUM_RATE_LIMIT_BURST", 5),

		StripeSecretKey:     getEnv("STRIPE_SECRET_KEY", ""),
		StripeWebhookSecret: getEnv("STRIPE_WEBHOOK_SECRET", ""),

		StripeProMonthlyPriceID:      getEnv("STRIPE_PRO_MONTHLY_PRICE_ID", ""),
		StripeProYearlyPriceID:       getEnv("STRIPE_PRO_YEARLY_PRICE_ID", ""),
		StripeBusinessMonthlyPriceID: getEnv("STRIPE_BUSINESS_MONTHLY_PRICE_ID", ""),
		StripeBusinessYearlyPriceID:  getEnv("STRIPE_BUSINESS_YEARLY_PRICE_ID", ""),

		MetricsUsername: getEnv("METRICS_USERNAME", ""),
		MetricsPassword: getEnv("METRICS_PASSWORD", ""),
	}

	// Required
	cfg.DatabaseUrl = os.Getenv("DATABASE_URL")
	if cfg.DatabaseUrl == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}

	cfg.JWTSecret = os.Getenv("JWT_SECRET")
	if cfg.JWTSecret == "" {
		return nil, fmt.Errorf("JWT_SECRET is required")
	}
	if !cfg.IsDevelopment() && len(cfg.JWTSecret) < 32 {
		return nil, fmt.Errorf("JWT_SECRET must be at least 32 bytes outside development")
	}

	if cfg.PremiumLimitsCacheTTL <= 0 {
		return nil, fmt.Errorf("PREMIUM_LIMITS_CACHE_TTL must be positive, got: %s", cfg.PremiumLimitsCacheTTL)
	}
	if cfg.PremiumRateLimitPerMinute <= 0 {
		return nil, fmt.Errorf("PREMIUM_RATE_LIMIT_PER_MINUTE must be positive, got: %d", cfg.PremiumRateLimitPerMinute)
	}
	if cfg.PremiumRateLimitBurst <= 0 {
		return nil, fmt.Errorf("PREMIUM_RATE_LIMIT_BURST must be positive, got: %d", cfg.PremiumRateLimitBurst)
	}

	if cfg.StripeSecretKey != "" && cfg.StripeWebhookSecret == "" {
		return nil, fmt.Errorf("STRIPE_WEBHOOK_SECRET is required when STRIPE_SECRET_KEY is set")
	}

	return cfg, nil
}

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return fallback
}

// getEnvList splits a comma-separated variable, dropping empty entries.
func getEnvList(key string) []string {
	var out []string
	for _, part := range strings.Split(os.Getenv(key), ",") {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
