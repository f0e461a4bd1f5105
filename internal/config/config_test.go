package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFromEnvDefaults(t *testing.T) {
	t.Setenv("PORT", "")
	t.Setenv("DATABASE_URL", "")
	t.Setenv("DATABASE_DRIVER", "")
	t.Setenv("DB_HOST", "db.internal")
	t.Setenv("DB_PASSWORD", "secret")
	t.Setenv("OTEL_SAMPLING_RATE", "")

	cfg := FromEnv()

	assert.Equal(t, "8787", cfg.Port)
	assert.Equal(t, "postgres", cfg.DatabaseDriver)
	assert.Contains(t, cfg.DatabaseURL, "host=db.internal")
	assert.Contains(t, cfg.DatabaseURL, "password=secret")
	assert.Equal(t, 1.0, cfg.OTelSamplingRate)
}

func TestFromEnvSQLiteDriver(t *testing.T) {
	t.Setenv("DATABASE_DRIVER", "SQLite")
	t.Setenv("DATABASE_URL", "")

	cfg := FromEnv()

	assert.Equal(t, "sqlite", cfg.DatabaseDriver)
	assert.Equal(t, "sports_social.db", cfg.DatabaseURL)
}

func TestEmailUserFallsBackForSender(t *testing.T) {
	t.Setenv("EMAIL_FROM", "")
	t.Setenv("EMAIL_USER", "noreply@sportsocial.app")
	t.Setenv("AWS_REGION", "us-east-1")

	cfg := FromEnv()

	assert.Equal(t, "noreply@sportsocial.app", cfg.EmailFrom)
	assert.True(t, cfg.SESEnabled())
}

func TestValidate(t *testing.T) {
	cfg := &Config{DatabaseDriver: "postgres", DatabaseURL: "postgres://x"}
	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "JWT_SECRET")

	cfg.JWTSecret = "s3cret"
	assert.NoError(t, cfg.Validate())

	cfg.DatabaseDriver = "mysql"
	assert.Error(t, cfg.Validate())
}

func TestInvalidSamplingRateIgnored(t *testing.T) {
	t.Setenv("OTEL_SAMPLING_RATE", "7")
	assert.Equal(t, 1.0, FromEnv().OTelSamplingRate)

	t.Setenv("OTEL_SAMPLING_RATE", "0.25")
	assert.Equal(t, 0.25, FromEnv().OTelSamplingRate)
}

func TestRequiredServicesList(t *testing.T) {
	t.Setenv("REQUIRE_SERVICES", " Redis, ,s3 ")
	assert.Equal(t, []string{"redis", "s3"}, FromEnv().RequiredServices)

	t.Setenv("REQUIRE_SERVICES", "")
	assert.Empty(t, FromEnv().RequiredServices)
}

func TestOTelTransportSettings(t *testing.T) {
	t.Setenv("ENVIRONMENT", "production")
	t.Setenv("OTEL_INSECURE", "")
	t.Setenv("OTEL_EXPORTER_OTLP_HEADERS", "x-api-key=abc, broken ,tenant = sports")

	cfg := FromEnv()
	assert.False(t, cfg.OTelInsecure)
	assert.Equal(t, map[string]string{"x-api-key": "abc", "tenant": "sports"}, cfg.OTelHeaders)

	t.Setenv("OTEL_INSECURE", "true")
	assert.True(t, FromEnv().OTelInsecure)

	t.Setenv("ENVIRONMENT", "development")
	t.Setenv("OTEL_INSECURE", "")
	assert.True(t, FromEnv().OTelInsecure)
}
