package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// Config holds all runtime configuration for the server and admin tooling.
type Config struct {
	Port        string
	Environment string
	FrontendURL string

	// Store
	DatabaseDriver string // "postgres" or "sqlite"
	DatabaseURL    string

	// Auth
	JWTSecret string

	// Redis (optional: OTP store and distributed rate limiting)
	RedisHost     string
	RedisPort     string
	RedisPassword string

	// AWS (optional: SES mail and S3 avatars)
	AWSRegion     string
	EmailFrom     string
	EmailFromName string
	AWSBucket     string
	CDNBaseURL    string

	// Logging
	LogLevel string
	LogFile  string

	// Tracing
	OTelEnabled      bool
	OTelEndpoint     string
	OTelSamplingRate float64
	OTelInsecure     bool
	OTelHeaders      map[string]string

	// Optional backends that must pass a startup check ("redis", "s3", "ses").
	RequiredServices []string
}

// Load reads .env (if present) and builds a Config from the environment.
// The returned bool reports whether a .env file was found.
func Load() (*Config, bool) {
	envLoaded := godotenv.Load() == nil
	return FromEnv(), envLoaded
}

// FromEnv builds a Config from the current process environment.
func FromEnv() *Config {
	cfg := &Config{
		Port:           getEnvOrDefault("PORT", "8787"),
		Environment:    getEnvOrDefault("ENVIRONMENT", "development"),
		FrontendURL:    getEnvOrDefault("FRONTEND_URL", "http://localhost:5173"),
		DatabaseDriver: strings.ToLower(getEnvOrDefault("DATABASE_DRIVER", "postgres")),
		DatabaseURL:    os.Getenv("DATABASE_URL"),
		JWTSecret:      os.Getenv("JWT_SECRET"),
		RedisHost:      os.Getenv("REDIS_HOST"),
		RedisPort:      getEnvOrDefault("REDIS_PORT", "6379"),
		RedisPassword:  os.Getenv("REDIS_PASSWORD"),
		AWSRegion:      os.Getenv("AWS_REGION"),
		EmailFrom:      firstNonEmpty(os.Getenv("EMAIL_FROM"), os.Getenv("EMAIL_USER")),
		EmailFromName:  getEnvOrDefault("EMAIL_FROM_NAME", "Sports Social"),
		AWSBucket:      os.Getenv("AWS_BUCKET"),
		CDNBaseURL:     os.Getenv("CDN_BASE_URL"),
		LogLevel:       getEnvOrDefault("LOG_LEVEL", "info"),
		LogFile:        getEnvOrDefault("LOG_FILE", "server.log"),
		OTelEnabled:    os.Getenv("OTEL_ENABLED") == "true",
		OTelEndpoint:   getEnvOrDefault("OTEL_EXPORTER_OTLP_ENDPOINT", "localhost:4318"),

		RequiredServices: splitList(os.Getenv("REQUIRE_SERVICES")),
	}

	cfg.OTelSamplingRate = 1.0
	if raw := os.Getenv("OTEL_SAMPLING_RATE"); raw != "" {
		if rate, err := strconv.ParseFloat(raw, 64); err == nil && rate >= 0 && rate <= 1 {
			cfg.OTelSamplingRate = rate
		}
	}

	// Plain HTTP to the collector unless running in production.
	cfg.OTelInsecure = !cfg.IsProduction()
	if raw := os.Getenv("OTEL_INSECURE"); raw != "" {
		if insecure, err := strconv.ParseBool(raw); err == nil {
			cfg.OTelInsecure = insecure
		}
	}
	cfg.OTelHeaders = parseHeaders(os.Getenv("OTEL_EXPORTER_OTLP_HEADERS"))

	if cfg.DatabaseURL == "" && cfg.DatabaseDriver == "postgres" {
		cfg.DatabaseURL = fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
			getEnvOrDefault("DB_HOST", "localhost"),
			getEnvOrDefault("DB_PORT", "5432"),
			getEnvOrDefault("DB_USER", "postgres"),
			os.Getenv("DB_PASSWORD"),
			getEnvOrDefault("DB_NAME", "sports_social"),
			getEnvOrDefault("DB_SSLMODE", "disable"),
		)
	}
	if cfg.DatabaseURL == "" && cfg.DatabaseDriver == "sqlite" {
		cfg.DatabaseURL = "sports_social.db"
	}

	return cfg
}

// Validate reports the required keys that are missing or malformed.
func (c *Config) Validate() error {
	var missing []string
	if c.JWTSecret == "" {
		missing = append(missing, "JWT_SECRET")
	}
	if c.DatabaseURL == "" {
		missing = append(missing, "DATABASE_URL")
	}
	if len(missing) > 0 {
		return fmt.Errorf("missing required environment variables: %s", strings.Join(missing, ", "))
	}
	if c.DatabaseDriver != "postgres" && c.DatabaseDriver != "sqlite" {
		return fmt.Errorf("unsupported DATABASE_DRIVER %q (want postgres or sqlite)", c.DatabaseDriver)
	}
	return nil
}

// RedisEnabled reports whether a Redis host was configured.
func (c *Config) RedisEnabled() bool {
	return c.RedisHost != ""
}

// SESEnabled reports whether outgoing mail should go through SES.
func (c *Config) SESEnabled() bool {
	return c.AWSRegion != "" && c.EmailFrom != ""
}

// S3Enabled reports whether avatar uploads can be stored in S3.
func (c *Config) S3Enabled() bool {
	return c.AWSRegion != "" && c.AWSBucket != ""
}

// IsProduction reports whether the server runs in production mode.
func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}

// LegacyStoreKeys lists the hosted-store keys that older deployments still set.
// They are accepted but unused: the store is reached through DATABASE_URL.
func LegacyStoreKeys() []string {
	var present []string
	for _, key := range []string{"SUPABASE_URL", "SUPABASE_SERVICE_ROLE_KEY", "EMAIL_PASSWORD"} {
		if os.Getenv(key) != "" {
			present = append(present, key)
		}
	}
	return present
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.ToLower(strings.TrimSpace(part)); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// parseHeaders reads the OTLP "key=value,key2=value2" header list.
func parseHeaders(raw string) map[string]string {
	headers := make(map[string]string)
	for _, pair := range strings.Split(raw, ",") {
		key, value, ok := strings.Cut(pair, "=")
		key = strings.TrimSpace(key)
		if !ok || key == "" {
			continue
		}
		headers[key] = strings.TrimSpace(value)
	}
	return headers
}
