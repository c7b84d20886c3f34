package internal

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all runtime configuration for the HomeworkAI backend.
//
// Everything is read once at startup and injected into components;
// no package reads the environment after this point.
type Config struct {
	Env         string
	Port        int
	LogLevel    string
	DatabaseUrl string

	// Public application base URL (checkout redirects, storage URLs)
	BaseURL string

	// AI Provider Configuration
	AIProvider       string // "gemini" or "mock"
	GeminiAPIKey     string
	GeminiModel      string
	AIRequestTimeout time.Duration

	// Daily free-tier credit ceiling. Premium is unlimited.
	DailyCredits int

	// Admin access control: these emails bypass the usage gate entirely.
	AdminEmails []string

	// Stripe Billing Configuration
	// In development, billing handlers function as stubs if these are empty.
	StripeSecretKey     string // Stripe API secret key (sk_test_... or sk_live_...)
	StripeWebhookSecret string // Stripe webhook signing secret (whsec_...)

	// Premium subscription pricing (inline price_data on checkout)
	PremiumPriceCents int64  // e.g. 999 = 9.99
	PremiumCurrency   string // ISO currency code, e.g. "eur"

	// Upload archive configuration
	StorageProvider string // "local" or "r2"

	// Local storage (development)
	LocalStoragePath string

	// R2 storage (production)
	R2AccountID       string
	R2AccessKeyID     string
	R2SecretAccessKey string
	R2BucketName      string

	// Metrics endpoint authentication.
	// If both are empty, /metrics is unprotected (not recommended).
	MetricsUsername string
	MetricsPassword string
}

func NewConfig() (*Config, error) {
	// Load .env file if it exists (ignored in production)
	_ = godotenv.Load()

	cfg := &Config{
		Env:      getEnv("ENV", "development"),
		Port:     getEnvInt("PORT", 8080),
		LogLevel: getEnv("LOG_LEVEL", "debug"),

		BaseURL: getEnv("BASE_URL", "http://localhost:8080"),

		AIProvider:       getEnv("AI_PROVIDER", "mock"),
		GeminiAPIKey:     getEnv("GEMINI_API_KEY", ""),
		GeminiModel:      getEnv("GEMINI_MODEL", "gemini-1.5-flash"),
		AIRequestTimeout: getEnvDuration("AI_REQUEST_TIMEOUT", 60*time.Second),

		DailyCredits: getEnvInt("DAILY_CREDITS", 10),

		StripeSecretKey:     getEnv("STRIPE_SECRET_KEY", ""),
		StripeWebhookSecret: getEnv("STRIPE_WEBHOOK_SECRET", ""),
		PremiumPriceCents:   int64(getEnvInt("PREMIUM_PRICE_CENTS", 999)),
		PremiumCurrency:     getEnv("PREMIUM_CURRENCY", "eur"),

		StorageProvider:  getEnv("STORAGE_PROVIDER", "local"),
		LocalStoragePath: getEnv("LOCAL_STORAGE_PATH", "./storage"),

		R2AccountID:       getEnv("R2_ACCOUNT_ID", ""),
		R2AccessKeyID:     getEnv("R2_ACCESS_KEY_ID", ""),
		R2SecretAccessKey: getEnv("R2_SECRET_ACCESS_KEY", ""),
		R2BucketName:      getEnv("R2_BUCKET_NAME", ""),

		MetricsUsername: getEnv("METRICS_USERNAME", ""),
		MetricsPassword: getEnv("METRICS_PASSWORD", ""),
	}

	// Parse admin emails from comma-separated environment variable
	adminEmailsStr := getEnv("ADMIN_EMAILS", "")
	if adminEmailsStr != "" {
		for _, email := range strings.Split(adminEmailsStr, ",") {
			trimmed := strings.TrimSpace(strings.ToLower(email))
			if trimmed != "" {
				cfg.AdminEmails = append(cfg.AdminEmails, trimmed)
			}
		}
	}

	// Required
	cfg.DatabaseUrl = os.Getenv("DATABASE_URL")
	if cfg.DatabaseUrl == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}

	// Validate AI provider configuration
	if cfg.AIProvider == "gemini" {
		if cfg.GeminiAPIKey == "" {
			return nil, fmt.Errorf("GEMINI_API_KEY is required when AI_PROVIDER is 'gemini'")
		}
	} else if cfg.AIProvider != "mock" {
		return nil, fmt.Errorf("AI_PROVIDER must be either 'gemini' or 'mock', got: %s", cfg.AIProvider)
	}

	// Validate storage configuration
	if cfg.StorageProvider == "r2" {
		for key, val := range map[string]string{
			"R2_ACCOUNT_ID":        cfg.R2AccountID,
			"R2_ACCESS_KEY_ID":     cfg.R2AccessKeyID,
			"R2_SECRET_ACCESS_KEY": cfg.R2SecretAccessKey,
			"R2_BUCKET_NAME":       cfg.R2BucketName,
		} {
			if val == "" {
				return nil, fmt.Errorf("%s is required when STORAGE_PROVIDER is 'r2'", key)
			}
		}
	} else if cfg.StorageProvider != "local" {
		return nil, fmt.Errorf("STORAGE_PROVIDER must be either 'local' or 'r2', got: %s", cfg.StorageProvider)
	}

	if cfg.DailyCredits < 1 {
		return nil, fmt.Errorf("DAILY_CREDITS must be at least 1, got: %d", cfg.DailyCredits)
	}

	return cfg, nil
}

// IsAdminEmail reports whether the given email is on the admin override list.
// Matching is case-insensitive.
func (c *Config) IsAdminEmail(email string) bool {
	lowered := strings.ToLower(strings.TrimSpace(email))
	for _, admin := range c.AdminEmails {
		if admin == lowered {
			return true
		}
	}
	return false
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
