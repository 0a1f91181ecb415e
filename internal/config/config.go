package config

import (
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"inventory-console/internal/logging"
)

// Config holds all configuration for the console
type Config struct {
	Port        string
	LogLevel    string
	Environment string

	BackendBaseURL string
	BackendAPIKey  string
	BackendTimeout string

	AdminAPIKey string

	PageSize     string
	StatusPolicy string

	SessionTTL           string
	LookupCacheTTL       string
	CacheCleanupInterval string
	NotificationBuffer   string

	RateLimitEnabled                string
	RateLimitType                   string
	RateLimitRequestsPerMinute      string
	RateLimitWindowMinutes          string
	RateLimitAdminRequestsPerMinute string

	MetricsExporter string
	MetricsAddr     string

	DevBackendPort     string
	DevBackendDataPath string
	DevBackendPersist  string
	DevBackendLatency  string
	DevBackendAPIKey   string
}

// LoadConfig loads configuration from .env file and environment variables and
// configures the global logger
func LoadConfig() *Config {
	// Does not override variables already set in the environment
	err := godotenv.Load()

	config := FromEnv()
	logging.Setup(config.LogLevel)

	if err != nil {
		slog.Debug("No .env file loaded, using system environment variables only", "error", err)
	} else {
		slog.Info("Successfully loaded .env file")
	}

	slog.Info("Configuration loaded",
		"port", config.Port,
		"environment", config.Environment,
		"log_level", config.LogLevel,
		"backend_base_url", config.BackendBaseURL,
		"backend_timeout", config.BackendTimeout,
		"page_size", config.PageSize,
		"status_policy", config.StatusPolicy,
		"session_ttl", config.SessionTTL,
		"lookup_cache_ttl", config.LookupCacheTTL,
		"notification_buffer", config.NotificationBuffer,
		"admin_api_enabled", config.AdminAPIKey != "",
		"metrics_exporter", config.MetricsExporter)

	return config
}

// FromEnv reads the configuration from the environment without touching .env or logging
func FromEnv() *Config {
	return &Config{
		Port:        getEnvWithDefault("PORT", "8080"),
		LogLevel:    getEnvWithDefault("LOG_LEVEL", "info"),
		Environment: getEnvWithDefault("ENVIRONMENT", "development"),

		BackendBaseURL: getEnvWithDefault("BACKEND_BASE_URL", "http://localhost:3001"),
		BackendAPIKey:  getEnvWithDefault("BACKEND_API_KEY", ""),
		BackendTimeout: getEnvWithDefault("BACKEND_TIMEOUT", "5s"),

		AdminAPIKey: getEnvWithDefault("ADMIN_API_KEY", ""),

		PageSize:     getEnvWithDefault("PAGE_SIZE", "10"),
		StatusPolicy: getEnvWithDefault("STATUS_POLICY", "prefer_backend"),

		SessionTTL:           getEnvWithDefault("SESSION_TTL", "30m"),
		LookupCacheTTL:       getEnvWithDefault("LOOKUP_CACHE_TTL", "5m"),
		CacheCleanupInterval: getEnvWithDefault("CACHE_CLEANUP_INTERVAL", "1m"),
		NotificationBuffer:   getEnvWithDefault("NOTIFICATION_BUFFER", "100"),

		RateLimitEnabled:                getEnvWithDefault("RATE_LIMIT_ENABLED", "true"),
		RateLimitType:                   getEnvWithDefault("RATE_LIMIT_TYPE", "ip"),
		RateLimitRequestsPerMinute:      getEnvWithDefault("RATE_LIMIT_REQUESTS_PER_MINUTE", "300"),
		RateLimitWindowMinutes:          getEnvWithDefault("RATE_LIMIT_WINDOW_MINUTES", "1"),
		RateLimitAdminRequestsPerMinute: getEnvWithDefault("RATE_LIMIT_ADMIN_REQUESTS_PER_MINUTE", "50"),

		MetricsExporter: getEnvWithDefault("METRICS_EXPORTER", "scraper"),
		MetricsAddr:     getEnvWithDefault("METRICS_ADDR", ":9080"),

		DevBackendPort:     getEnvWithDefault("DEVBACKEND_PORT", "3001"),
		DevBackendDataPath: getEnvWithDefault("DEVBACKEND_DATA_PATH", "data/inventory_seed.json"),
		DevBackendPersist:  getEnvWithDefault("DEVBACKEND_PERSIST", "false"),
		DevBackendLatency:  getEnvWithDefault("DEVBACKEND_LATENCY", ""),
		DevBackendAPIKey:   getEnvWithDefault("DEVBACKEND_API_KEY", ""),
	}
}

// getEnvWithDefault gets an environment variable with a default fallback
func getEnvWithDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// IsDevelopment returns true if running in development environment
func (c *Config) IsDevelopment() bool {
	return c.Environment == "development"
}

// IsProduction returns true if running in production environment
func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}

// BackendTimeoutDuration returns BACKEND_TIMEOUT, 5s when invalid
func (c *Config) BackendTimeoutDuration() time.Duration {
	return ParseDuration(c.BackendTimeout, 5*time.Second)
}

// PageSizeInt returns PAGE_SIZE, 10 when invalid
func (c *Config) PageSizeInt() int {
	return ParsePositiveInt(c.PageSize, 10)
}

// SessionTTLDuration returns SESSION_TTL, 30m when invalid
func (c *Config) SessionTTLDuration() time.Duration {
	return ParseDuration(c.SessionTTL, 30*time.Minute)
}

// LookupCacheTTLDuration returns LOOKUP_CACHE_TTL, 5m when invalid
func (c *Config) LookupCacheTTLDuration() time.Duration {
	return ParseDuration(c.LookupCacheTTL, 5*time.Minute)
}

// CacheCleanupIntervalDuration returns CACHE_CLEANUP_INTERVAL, 1m when invalid
func (c *Config) CacheCleanupIntervalDuration() time.Duration {
	return ParseDuration(c.CacheCleanupInterval, time.Minute)
}

// NotificationBufferInt returns NOTIFICATION_BUFFER, 100 when invalid
func (c *Config) NotificationBufferInt() int {
	return ParsePositiveInt(c.NotificationBuffer, 100)
}

// DevBackendLatencyDuration returns DEVBACKEND_LATENCY, no delay when unset or invalid
func (c *Config) DevBackendLatencyDuration() time.Duration {
	return ParseDuration(c.DevBackendLatency, 0)
}

// DevBackendPersistEnabled reports whether the fixture backend writes changes back to its data file
func (c *Config) DevBackendPersistEnabled() bool {
	return ParseBool(c.DevBackendPersist, false)
}

// ParseBool parses a string to bool with a default value
func ParseBool(value string, defaultValue bool) bool {
	if value == "" {
		return defaultValue
	}

	switch strings.ToLower(value) {
	case "true", "1", "yes", "on", "enabled":
		return true
	case "false", "0", "no", "off", "disabled":
		return false
	default:
		slog.Warn("Invalid boolean value, using default",
			"value", value, "default", defaultValue)
		return defaultValue
	}
}

// ParsePositiveInt parses a string to an int greater than zero with a default value
func ParsePositiveInt(value string, defaultValue int) int {
	if value == "" {
		return defaultValue
	}

	parsed, err := strconv.Atoi(value)
	if err != nil || parsed <= 0 {
		slog.Warn("Invalid integer value, using default",
			"value", value, "default", defaultValue, "error", err)
		return defaultValue
	}

	return parsed
}

// ParseDuration parses a Go duration string with a default value
func ParseDuration(value string, defaultValue time.Duration) time.Duration {
	if value == "" {
		return defaultValue
	}

	parsed, err := time.ParseDuration(value)
	if err != nil || parsed <= 0 {
		slog.Warn("Invalid duration value, using default",
			"value", value, "default", defaultValue, "error", err)
		return defaultValue
	}

	return parsed
}
