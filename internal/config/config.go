// Package config provides configuration loading and management for the application.
package config

import (
	"net"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all application configuration
type Config struct {
	// Bind address and listen port
	Host string
	Port string

	// Worker count; applied as GOMAXPROCS when positive
	Workers int

	// Logging setup
	LogLevel  string
	LogFormat string

	// Upstream yield pool endpoint
	YieldsAPIURL string

	// Timeouts for upstream calls, detached refreshes and the startup probe
	RequestTimeout time.Duration
	RefreshTimeout time.Duration
	ProbeTimeout   time.Duration

	// Transport-level retries against the upstream; zero disables them
	UpstreamRetryMax int

	// Prometheus endpoint exposure
	EnableMetrics bool

	// Origins allowed by the CORS middleware; "*" allows any
	CORSAllowedOrigins []string

	// Optional fail-fast guard in front of the upstream
	EnableCircuitBreaker    bool
	CircuitFailureThreshold int
	CircuitResetDelay       time.Duration
	CircuitSuccessThreshold int

	// Optional webhook receiving batched refresh summaries
	RefreshWebhookURL       string
	RefreshWebhookAPIKey    string
	RefreshWebhookBatchSize int
	RefreshWebhookInterval  time.Duration

	// OpenTelemetry endpoint for observability
	OtelEndpoint string

	// Grace period for in-flight requests on shutdown
	ShutdownTimeout time.Duration
}

// Load creates a new Config from environment variables
func Load() Config {
	return Config{
		Host:                    GetEnvOrDefault("HOST", "0.0.0.0"),
		Port:                    GetEnvOrDefault("PORT", "8000"),
		Workers:                 GetEnvAsInt("WORKERS", 1),
		LogLevel:                strings.ToLower(GetEnvOrDefault("LOG_LEVEL", "info")),
		LogFormat:               strings.ToLower(GetEnvOrDefault("LOG_FORMAT", "text")),
		YieldsAPIURL:            GetEnvOrDefault("YIELDS_API_URL", "https://yields.llama.fi/pools"),
		RequestTimeout:          GetEnvAsDuration("REQUEST_TIMEOUT", 30*time.Second),
		RefreshTimeout:          GetEnvAsDuration("REFRESH_TIMEOUT", 2*time.Minute),
		ProbeTimeout:            GetEnvAsDuration("PROBE_TIMEOUT", 10*time.Second),
		UpstreamRetryMax:        GetEnvAsInt("UPSTREAM_RETRY_MAX", 0),
		EnableMetrics:           GetEnvAsBool("ENABLE_METRICS", true),
		CORSAllowedOrigins:      GetEnvAsSlice("CORS_ALLOWED_ORIGINS", []string{"*"}),
		EnableCircuitBreaker:    GetEnvAsBool("ENABLE_CIRCUIT_BREAKER", false),
		CircuitFailureThreshold: GetEnvAsInt("CIRCUIT_FAILURE_THRESHOLD", 5),
		CircuitResetDelay:       GetEnvAsDuration("CIRCUIT_RESET_DELAY", 30*time.Second),
		CircuitSuccessThreshold: GetEnvAsInt("CIRCUIT_SUCCESS_THRESHOLD", 1),
		RefreshWebhookURL:       GetEnvOrDefault("REFRESH_WEBHOOK_URL", ""),
		RefreshWebhookAPIKey:    GetEnvOrDefault("REFRESH_WEBHOOK_API_KEY", ""),
		RefreshWebhookBatchSize: GetEnvAsInt("REFRESH_WEBHOOK_BATCH_SIZE", 10),
		RefreshWebhookInterval:  GetEnvAsDuration("REFRESH_WEBHOOK_INTERVAL", time.Minute),
		OtelEndpoint:            GetEnvOrDefault("OTEL_EXPORTER_OTLP_ENDPOINT", ""),
		ShutdownTimeout:         GetEnvAsDuration("SHUTDOWN_TIMEOUT", 30*time.Second),
	}
}

// Addr returns the host:port pair the HTTP server binds to
func (c Config) Addr() string {
	return net.JoinHostPort(c.Host, c.Port)
}

// GetEnv retrieves an environment variable and whether it is set to a non-empty value
func GetEnv(key string) (string, bool) {
	value, exists := os.LookupEnv(key)
	if !exists || strings.TrimSpace(value) == "" {
		return "", false
	}
	return strings.TrimSpace(value), true
}

// GetEnvOrDefault retrieves an environment variable or returns the default value if not set
func GetEnvOrDefault(key, defaultValue string) string {
	if value, exists := GetEnv(key); exists {
		return value
	}
	return defaultValue
}

// GetEnvAsInt retrieves an environment variable as an integer with a default value
func GetEnvAsInt(key string, defaultValue int) int {
	if value, exists := GetEnv(key); exists {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

// GetEnvAsBool retrieves an environment variable as a boolean with a default value
func GetEnvAsBool(key string, defaultValue bool) bool {
	if value, exists := GetEnv(key); exists {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}

// GetEnvAsDuration retrieves an environment variable as a duration with a default value
func GetEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value, exists := GetEnv(key); exists {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

// GetEnvAsSlice splits a comma-separated environment variable, dropping blank items
func GetEnvAsSlice(key string, defaultValue []string) []string {
	value, exists := GetEnv(key)
	if !exists {
		return defaultValue
	}
	var out []string
	for _, item := range strings.Split(value, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	if len(out) == 0 {
		return defaultValue
	}
	return out
}
