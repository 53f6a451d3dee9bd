// Package config handles application configuration from environment variables
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all application configuration
type Config struct {
	// Server settings
	Port     string
	Env      string // "development", "staging", "production"
	LogLevel string

	// Database
	DatabaseURL string // PostgreSQL connection string (optional, uses in-memory if not set)

	// Payment gateway (hash-signed redirect PSP)
	GatewayMerchantKey  string
	GatewayMerchantSalt string
	GatewayBaseURL      string // PSP endpoint the payer is redirected to
	CallbackBaseURL     string // Public base URL for gateway callbacks
	PaymentSuccessURL   string // Frontend redirect after a successful payment
	PaymentFailureURL   string // Frontend redirect after a failed payment

	// Settlement
	CommissionRateBps int64         // Platform cut in basis points (1500 = 15%)
	AutoPayInterval   time.Duration // Worklog auto-settlement sweep interval
	DisputeWindowDays int           // Days after worklog approval before auto-pay

	// Observability
	OTLPEndpoint string // OTLP gRPC endpoint; empty disables tracing

	// Security
	AdminSecret  string // Admin API secret
	RateLimitRPS int
}

const (
	DefaultPort              = "8080"
	DefaultEnv               = "development"
	DefaultLogLevel          = "info"
	DefaultGatewayBaseURL    = "https://secure.payu.in/_payment"
	DefaultCommissionBps     = 1500
	DefaultAutoPayInterval   = 5 * time.Minute
	DefaultDisputeWindowDays = 7
	DefaultRateLimit         = 100
)

// Load reads configuration from environment variables.
// It loads .env file if present (for local development).
func Load() (*Config, error) {
	// Load .env file if it exists (ignore error if not present)
	_ = godotenv.Load()

	cfg := &Config{
		Port:                getEnv("PORT", DefaultPort),
		Env:                 getEnv("ENV", DefaultEnv),
		LogLevel:            getEnv("LOG_LEVEL", DefaultLogLevel),
		DatabaseURL:         os.Getenv("DATABASE_URL"), // Optional, uses in-memory if not set
		GatewayMerchantKey:  os.Getenv("GATEWAY_MERCHANT_KEY"),
		GatewayMerchantSalt: os.Getenv("GATEWAY_MERCHANT_SALT"),
		GatewayBaseURL:      getEnv("GATEWAY_BASE_URL", DefaultGatewayBaseURL),
		CallbackBaseURL:     getEnv("CALLBACK_BASE_URL", "http://localhost:8080"),
		PaymentSuccessURL:   getEnv("PAYMENT_SUCCESS_URL", "http://localhost:3000/payments/success"),
		PaymentFailureURL:   getEnv("PAYMENT_FAILURE_URL", "http://localhost:3000/payments/failure"),
		CommissionRateBps:   getEnvInt64("COMMISSION_RATE_BPS", DefaultCommissionBps),
		AutoPayInterval:     getEnvDuration("AUTOPAY_INTERVAL", DefaultAutoPayInterval),
		DisputeWindowDays:   int(getEnvInt64("DISPUTE_WINDOW_DAYS", DefaultDisputeWindowDays)),
		OTLPEndpoint:        os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT"),
		AdminSecret:         os.Getenv("ADMIN_SECRET"),
		RateLimitRPS:        int(getEnvInt64("RATE_LIMIT_RPS", int64(DefaultRateLimit))),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks that all required configuration is present
func (c *Config) Validate() error {
	if c.GatewayMerchantKey == "" {
		return fmt.Errorf("GATEWAY_MERCHANT_KEY is required")
	}
	if c.GatewayMerchantSalt == "" {
		return fmt.Errorf("GATEWAY_MERCHANT_SALT is required")
	}
	if c.CommissionRateBps < 0 || c.CommissionRateBps > 10000 {
		return fmt.Errorf("COMMISSION_RATE_BPS must be between 0 and 10000")
	}
	if c.AutoPayInterval < time.Second {
		return fmt.Errorf("AUTOPAY_INTERVAL must be at least 1s")
	}
	if c.DisputeWindowDays < 0 {
		return fmt.Errorf("DISPUTE_WINDOW_DAYS must not be negative")
	}
	return nil
}

// IsDevelopment returns true if running in development mode
func (c *Config) IsDevelopment() bool {
	return c.Env == "development"
}

// IsProduction returns true if running in production mode
func (c *Config) IsProduction() bool {
	return c.Env == "production"
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt64(key string, fallback int64) int64 {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			return n
		}
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}
