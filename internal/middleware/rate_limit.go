package middleware

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"inventory-console/internal/models"
)

// RateLimitType defines what a limit is counted against
type RateLimitType string

const (
	RateLimitTypeIP     RateLimitType = "ip"
	RateLimitTypeGlobal RateLimitType = "global"
	RateLimitTypeBoth   RateLimitType = "both"
)

// RateLimitConfig holds rate limiting configuration
type RateLimitConfig struct {
	Enabled                bool
	Type                   RateLimitType
	RequestsPerMinute      int
	WindowMinutes          int
	AdminRequestsPerMinute int
}

// window is a fixed counting window
type window struct {
	count     int
	resetTime time.Time
}

// RateLimiter counts requests per client IP and/or globally in fixed windows
type RateLimiter struct {
	config        RateLimitConfig
	mutex         sync.Mutex
	ipLimits      map[string]*window
	globalLimit   window
	now           func() time.Time
	cleanupTicker *time.Ticker
	stopCleanup   chan struct{}
	stopOnce      sync.Once
}

// RateLimitInfo feeds the X-RateLimit-* response headers. Limit -1 means unlimited.
type RateLimitInfo struct {
	Limit     int
	Remaining int
	ResetTime time.Time
}

// RateLimitStats is the body of GET /v1/admin/rate-limit/status
type RateLimitStats struct {
	Enabled                bool       `json:"enabled"`
	Type                   string     `json:"type"`
	RequestsPerMinute      int        `json:"requests_per_minute"`
	WindowMinutes          int        `json:"window_minutes"`
	AdminRequestsPerMinute int        `json:"admin_requests_per_minute"`
	ActiveIPLimits         int        `json:"active_ip_limits"`
	GlobalCount            *int       `json:"global_count,omitempty"`
	GlobalResetTime        *time.Time `json:"global_reset_time,omitempty"`
}

// NewRateLimiter creates a rate limiter and starts its cleanup goroutine
func NewRateLimiter(config RateLimitConfig) *RateLimiter {
	rl := &RateLimiter{
		config:        config,
		ipLimits:      make(map[string]*window),
		now:           time.Now,
		cleanupTicker: time.NewTicker(time.Minute),
		stopCleanup:   make(chan struct{}),
	}
	go rl.cleanupExpiredEntries()

	slog.Info("Rate limiter initialized",
		"enabled", config.Enabled,
		"type", config.Type,
		"requests_per_minute", config.RequestsPerMinute,
		"window_minutes", config.WindowMinutes,
		"admin_requests_per_minute", config.AdminRequestsPerMinute)

	return rl
}

// Stop stops the cleanup goroutine
func (rl *RateLimiter) Stop() {
	rl.stopOnce.Do(func() {
		rl.cleanupTicker.Stop()
		close(rl.stopCleanup)
	})
}

func (rl *RateLimiter) cleanupExpiredEntries() {
	for {
		select {
		case <-rl.cleanupTicker.C:
			rl.mutex.Lock()
			now := rl.now()
			for ip, w := range rl.ipLimits {
				if now.After(w.resetTime) {
					delete(rl.ipLimits, ip)
				}
			}
			rl.mutex.Unlock()
		case <-rl.stopCleanup:
			return
		}
	}
}

// IsAllowed counts one request and reports whether it fits in the current window.
// Admin requests use the admin limit. With type both the more restrictive result wins.
func (rl *RateLimiter) IsAllowed(clientIP string, isAdmin bool) (bool, RateLimitInfo) {
	if !rl.config.Enabled {
		return true, RateLimitInfo{Limit: -1, Remaining: -1}
	}

	limit := rl.config.RequestsPerMinute
	if isAdmin && rl.config.AdminRequestsPerMinute > 0 {
		limit = rl.config.AdminRequestsPerMinute
	}
	windowDuration := time.Duration(rl.config.WindowMinutes) * time.Minute

	rl.mutex.Lock()
	defer rl.mutex.Unlock()
	now := rl.now()

	switch rl.config.Type {
	case RateLimitTypeGlobal:
		return take(&rl.globalLimit, limit, windowDuration, now)
	case RateLimitTypeBoth:
		ipAllowed, ipInfo := take(rl.ipWindow(clientIP), limit, windowDuration, now)
		globalAllowed, globalInfo := take(&rl.globalLimit, limit, windowDuration, now)
		info := ipInfo
		if globalInfo.Remaining < ipInfo.Remaining {
			info = globalInfo
		}
		return ipAllowed && globalAllowed, info
	default:
		return take(rl.ipWindow(clientIP), limit, windowDuration, now)
	}
}

func (rl *RateLimiter) ipWindow(clientIP string) *window {
	w, ok := rl.ipLimits[clientIP]
	if !ok {
		w = &window{}
		rl.ipLimits[clientIP] = w
	}
	return w
}

func take(w *window, limit int, windowDuration time.Duration, now time.Time) (bool, RateLimitInfo) {
	if now.After(w.resetTime) {
		w.count = 0
		w.resetTime = now.Add(windowDuration)
	}

	if w.count >= limit {
		return false, RateLimitInfo{Limit: limit, Remaining: 0, ResetTime: w.resetTime}
	}

	w.count++
	return true, RateLimitInfo{Limit: limit, Remaining: limit - w.count, ResetTime: w.resetTime}
}

// Stats returns the current configuration and counters
func (rl *RateLimiter) Stats() RateLimitStats {
	rl.mutex.Lock()
	defer rl.mutex.Unlock()

	stats := RateLimitStats{
		Enabled:                rl.config.Enabled,
		Type:                   string(rl.config.Type),
		RequestsPerMinute:      rl.config.RequestsPerMinute,
		WindowMinutes:          rl.config.WindowMinutes,
		AdminRequestsPerMinute: rl.config.AdminRequestsPerMinute,
		ActiveIPLimits:         len(rl.ipLimits),
	}
	if rl.config.Type == RateLimitTypeGlobal || rl.config.Type == RateLimitTypeBoth {
		count := rl.globalLimit.count
		reset := rl.globalLimit.resetTime
		stats.GlobalCount = &count
		stats.GlobalResetTime = &reset
	}
	return stats
}

// Reset clears all counters
func (rl *RateLimiter) Reset() {
	rl.mutex.Lock()
	defer rl.mutex.Unlock()

	rl.ipLimits = make(map[string]*window)
	rl.globalLimit = window{}
	slog.Info("Rate limits reset")
}

// RateLimitMiddleware rejects requests over the limit with 429. /health is never limited.
func RateLimitMiddleware(rateLimiter *RateLimiter) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Path == "/health" {
				next.ServeHTTP(w, r)
				return
			}

			clientIP := ClientIP(r)
			isAdmin := strings.HasPrefix(r.URL.Path, "/v1/admin")

			allowed, info := rateLimiter.IsAllowed(clientIP, isAdmin)
			setRateLimitHeaders(w, info)

			if !allowed {
				slog.Warn("Rate limit exceeded",
					"client_ip", clientIP,
					"path", r.URL.Path,
					"method", r.Method,
					"is_admin", isAdmin,
					"limit", info.Limit,
					"reset_time", info.ResetTime.Format(time.RFC3339))

				writeRateLimitErrorResponse(w, info)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

func setRateLimitHeaders(w http.ResponseWriter, info RateLimitInfo) {
	if info.Limit < 0 {
		return
	}
	w.Header().Set("X-RateLimit-Limit", strconv.Itoa(info.Limit))
	w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(info.Remaining))
	if !info.ResetTime.IsZero() {
		w.Header().Set("X-RateLimit-Reset", strconv.FormatInt(info.ResetTime.Unix(), 10))
	}
}

func writeRateLimitErrorResponse(w http.ResponseWriter, info RateLimitInfo) {
	retryAfter := "0"
	if !info.ResetTime.IsZero() {
		retryAfter = fmt.Sprintf("%.0f", time.Until(info.ResetTime).Seconds())
	}
	w.Header().Set("Retry-After", retryAfter)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusTooManyRequests)

	errorResp := models.ErrorResponse{
		Code:    "rate_limit_exceeded",
		Message: "Rate limit exceeded. Please try again later.",
		Details: []models.ErrorDetail{
			{Field: "rate_limit", Issue: fmt.Sprintf("Exceeded %d requests per window", info.Limit)},
			{Field: "retry_after", Issue: fmt.Sprintf("Retry after %s seconds", retryAfter)},
		},
	}

	if err := json.NewEncoder(w).Encode(errorResp); err != nil {
		slog.Error("Failed to encode rate limit response", "error", err)
	}
}
