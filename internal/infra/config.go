package infra

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Store drivers accepted by STORE_DRIVER.
const (
	StoreDriverPostgres = "postgres"
	StoreDriverMemory   = "memory"
)

// Config represents application configuration loaded from environment variables.
type Config struct {
	AppEnv      string
	Port        string
	AppURL      string
	DatabaseURL string
	StoreDriver string

	JWTSecret    string
	OIDCIssuer   string
	OIDCClientID string

	StripeSecretKey      string
	StripeWebhookSecret  string
	StripePremiumPriceID string

	OpenAIAPIKey          string
	OpenAIBaseURL         string
	StabilityAPIKey       string
	StabilityBaseURL      string
	StabilityEngine       string
	ReplicateAPIToken     string
	ReplicateBaseURL      string
	ReplicateModelVersion string
	DefaultProvider       string
	ProviderTimeout       time.Duration
	ProviderMaxAttempts   int

	UsageLocation  *time.Location
	StoragePath    string
	StorageBaseURL string

	CORSAllowedOrigins []string
	HTTPReadTimeout    time.Duration
	HTTPWriteTimeout   time.Duration
	HTTPIdleTimeout    time.Duration
	RateLimitPerMin    int
}

// LoadConfig loads configuration from environment variables and applies defaults where needed.
func LoadConfig() (*Config, error) {
	port := getEnv("PORT", "8080")
	cfg := &Config{
		AppEnv:                getEnv("APP_ENV", "development"),
		Port:                  port,
		AppURL:                strings.TrimRight(getEnv("APP_URL", "http://localhost:3000"), "/"),
		DatabaseURL:           os.Getenv("DATABASE_URL"),
		StoreDriver:           strings.ToLower(getEnv("STORE_DRIVER", StoreDriverPostgres)),
		JWTSecret:             os.Getenv("JWT_SECRET"),
		OIDCIssuer:            strings.TrimSpace(os.Getenv("OIDC_ISSUER")),
		OIDCClientID:          strings.TrimSpace(os.Getenv("OIDC_CLIENT_ID")),
		StripeSecretKey:       strings.TrimSpace(os.Getenv("STRIPE_SECRET_KEY")),
		StripeWebhookSecret:   strings.TrimSpace(os.Getenv("STRIPE_WEBHOOK_SECRET")),
		StripePremiumPriceID:  strings.TrimSpace(os.Getenv("STRIPE_PREMIUM_PRICE_ID")),
		OpenAIAPIKey:          strings.TrimSpace(os.Getenv("OPENAI_API_KEY")),
		OpenAIBaseURL:         getEnv("OPENAI_BASE_URL", "https://api.openai.com/v1"),
		StabilityAPIKey:       strings.TrimSpace(os.Getenv("STABILITY_API_KEY")),
		StabilityBaseURL:      getEnv("STABILITY_BASE_URL", "https://api.stability.ai/v1"),
		StabilityEngine:       getEnv("STABILITY_ENGINE", "stable-diffusion-xl-1024-v1-0"),
		ReplicateAPIToken:     strings.TrimSpace(os.Getenv("REPLICATE_API_TOKEN")),
		ReplicateBaseURL:      getEnv("REPLICATE_BASE_URL", "https://api.replicate.com/v1"),
		ReplicateModelVersion: getEnv("REPLICATE_MODEL_VERSION", "9ca0cfecea8cd5645b3bb8ae328b2c4ce6e7c6df88bd9ce15b85b95d80e73c80"),
		DefaultProvider:       strings.ToLower(getEnv("DEFAULT_PROVIDER", "mock")),
		ProviderTimeout:       time.Second * time.Duration(getEnvInt("PROVIDER_TIMEOUT_SECONDS", 60)),
		ProviderMaxAttempts:   getEnvInt("PROVIDER_MAX_ATTEMPTS", 1),
		StoragePath:           strings.TrimSpace(os.Getenv("STORAGE_PATH")),
		StorageBaseURL:        strings.TrimRight(getEnv("STORAGE_BASE_URL", "http://localhost:"+port+"/static"), "/"),
		CORSAllowedOrigins:    splitList(getEnv("CORS_ALLOWED_ORIGINS", "http://localhost:3000")),
		HTTPReadTimeout:       time.Second * time.Duration(getEnvInt("HTTP_READ_TIMEOUT_SECONDS", 15)),
		HTTPWriteTimeout:      time.Second * time.Duration(getEnvInt("HTTP_WRITE_TIMEOUT_SECONDS", 120)),
		HTTPIdleTimeout:       time.Second * time.Duration(getEnvInt("HTTP_IDLE_TIMEOUT_SECONDS", 60)),
		RateLimitPerMin:       getEnvInt("RATE_LIMIT_PER_MINUTE", 30),
	}

	loc, err := UsageLocation()
	if err != nil {
		return nil, err
	}
	cfg.UsageLocation = loc

	switch cfg.StoreDriver {
	case StoreDriverPostgres:
		if cfg.DatabaseURL == "" {
			return nil, fmt.Errorf("DATABASE_URL is required")
		}
	case StoreDriverMemory:
	default:
		return nil, fmt.Errorf("unsupported STORE_DRIVER %q", cfg.StoreDriver)
	}

	if cfg.JWTSecret == "" && cfg.OIDCIssuer == "" {
		return nil, fmt.Errorf("JWT_SECRET or OIDC_ISSUER is required")
	}
	if cfg.OIDCIssuer != "" && cfg.OIDCClientID == "" {
		return nil, fmt.Errorf("OIDC_CLIENT_ID is required when OIDC_ISSUER is set")
	}
	if cfg.ProviderMaxAttempts < 1 {
		cfg.ProviderMaxAttempts = 1
	}

	return cfg, nil
}

// BillingEnabled reports whether Stripe credentials are present.
func (c *Config) BillingEnabled() bool {
	return c.StripeSecretKey != ""
}

func getEnv(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return fallback
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if v := strings.TrimSpace(part); v != "" {
			out = append(out, v)
		}
	}
	return out
}

// UsageLocation resolves USAGE_TIMEZONE, the zone quota windows are cut in.
func UsageLocation() (*time.Location, error) {
	tz := getEnv("USAGE_TIMEZONE", "UTC")
	loc, err := time.LoadLocation(tz)
	if err != nil {
		return nil, fmt.Errorf("USAGE_TIMEZONE %q: %w", tz, err)
	}
	return loc, nil
}
