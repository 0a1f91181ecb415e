package middleware

import (
	"log/slog"
	"strings"

	"inventory-console/internal/config"
)

// ParseRateLimitConfig builds the rate limiter configuration from RATE_LIMIT_* settings
func ParseRateLimitConfig(cfg *config.Config) RateLimitConfig {
	rateLimitConfig := RateLimitConfig{
		Enabled:                config.ParseBool(cfg.RateLimitEnabled, true),
		Type:                   parseRateLimitType(cfg.RateLimitType),
		RequestsPerMinute:      config.ParsePositiveInt(cfg.RateLimitRequestsPerMinute, 300),
		WindowMinutes:          config.ParsePositiveInt(cfg.RateLimitWindowMinutes, 1),
		AdminRequestsPerMinute: config.ParsePositiveInt(cfg.RateLimitAdminRequestsPerMinute, 50),
	}

	slog.Info("Rate limiting configuration parsed",
		"enabled", rateLimitConfig.Enabled,
		"type", rateLimitConfig.Type,
		"requests_per_minute", rateLimitConfig.RequestsPerMinute,
		"window_minutes", rateLimitConfig.WindowMinutes,
		"admin_requests_per_minute", rateLimitConfig.AdminRequestsPerMinute)

	return rateLimitConfig
}

func parseRateLimitType(value string) RateLimitType {
	switch strings.ToLower(value) {
	case "", "ip":
		return RateLimitTypeIP
	case "global":
		return RateLimitTypeGlobal
	case "both":
		return RateLimitTypeBoth
	default:
		slog.Warn("Invalid rate limit type, using default", "value", value, "default", "ip")
		return RateLimitTypeIP
	}
}
