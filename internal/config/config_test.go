package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLoad_Defaults(t *testing.T) {
	for _, key := range []string{"HOST", "PORT", "WORKERS", "LOG_LEVEL", "YIELDS_API_URL", "UPSTREAM_RETRY_MAX", "ENABLE_CIRCUIT_BREAKER", "CIRCUIT_SUCCESS_THRESHOLD", "CORS_ALLOWED_ORIGINS", "REFRESH_WEBHOOK_URL", "REFRESH_WEBHOOK_BATCH_SIZE"} {
		t.Setenv(key, "")
	}

	cfg := Load()
	assert.Equal(t, "0.0.0.0", cfg.Host)
	assert.Equal(t, "8000", cfg.Port)
	assert.Equal(t, 1, cfg.Workers)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, "https://yields.llama.fi/pools", cfg.YieldsAPIURL)
	assert.Equal(t, 0, cfg.UpstreamRetryMax, "nothing is retried unless configured")
	assert.False(t, cfg.EnableCircuitBreaker)
	assert.Equal(t, 1, cfg.CircuitSuccessThreshold)
	assert.True(t, cfg.EnableMetrics)
	assert.Equal(t, []string{"*"}, cfg.CORSAllowedOrigins)
	assert.Empty(t, cfg.RefreshWebhookURL)
	assert.Equal(t, 10, cfg.RefreshWebhookBatchSize)
	assert.Equal(t, "0.0.0.0:8000", cfg.Addr())
}

func TestLoad_FromEnvironment(t *testing.T) {
	t.Setenv("HOST", "127.0.0.1")
	t.Setenv("PORT", "9090")
	t.Setenv("WORKERS", "4")
	t.Setenv("LOG_LEVEL", "DEBUG")
	t.Setenv("REFRESH_TIMEOUT", "45s")
	t.Setenv("ENABLE_CIRCUIT_BREAKER", "true")
	t.Setenv("CIRCUIT_FAILURE_THRESHOLD", "3")
	t.Setenv("CIRCUIT_SUCCESS_THRESHOLD", "2")

	cfg := Load()
	assert.Equal(t, "127.0.0.1:9090", cfg.Addr())
	assert.Equal(t, 4, cfg.Workers)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, 45*time.Second, cfg.RefreshTimeout)
	assert.True(t, cfg.EnableCircuitBreaker)
	assert.Equal(t, 3, cfg.CircuitFailureThreshold)
	assert.Equal(t, 2, cfg.CircuitSuccessThreshold)
}

func TestGetEnvHelpers_InvalidValuesFallBack(t *testing.T) {
	tests := []struct {
		name  string
		value string
		check func(t *testing.T)
	}{
		{
			name:  "int",
			value: "many",
			check: func(t *testing.T) { assert.Equal(t, 7, GetEnvAsInt("TEST_VALUE", 7)) },
		},
		{
			name:  "bool",
			value: "maybe",
			check: func(t *testing.T) { assert.True(t, GetEnvAsBool("TEST_VALUE", true)) },
		},
		{
			name:  "duration",
			value: "soon",
			check: func(t *testing.T) { assert.Equal(t, time.Second, GetEnvAsDuration("TEST_VALUE", time.Second)) },
		},
		{
			name:  "blank string",
			value: "   ",
			check: func(t *testing.T) { assert.Equal(t, "fallback", GetEnvOrDefault("TEST_VALUE", "fallback")) },
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("TEST_VALUE", tt.value)
			tt.check(t)
		})
	}
}

func TestGetEnvAsSlice(t *testing.T) {
	t.Setenv("TEST_LIST", " https://a.example , ,https://b.example")
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, GetEnvAsSlice("TEST_LIST", nil))

	t.Setenv("TEST_LIST", " , ")
	assert.Equal(t, []string{"*"}, GetEnvAsSlice("TEST_LIST", []string{"*"}))
}
