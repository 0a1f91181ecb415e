package handlers

import (
	"log/slog"
	"net/http"
	"time"

	"inventory-console/internal/middleware"
)

// RateLimitStatusHandler handles rate limiting status requests
type RateLimitStatusHandler struct {
	rateLimiter *middleware.RateLimiter
}

// NewRateLimitStatusHandler creates a new rate limit status handler
func NewRateLimitStatusHandler(rateLimiter *middleware.RateLimiter) *RateLimitStatusHandler {
	return &RateLimitStatusHandler{rateLimiter: rateLimiter}
}

// GetRateLimitStatus handles GET /v1/admin/rate-limit/status
func (h *RateLimitStatusHandler) GetRateLimitStatus(w http.ResponseWriter, r *http.Request) {
	if h.rateLimiter == nil {
		writeErrorResponse(w, http.StatusServiceUnavailable, "rate_limiter_unavailable", "Rate limiter not available", nil)
		return
	}
	writeJSONResponse(w, http.StatusOK, h.rateLimiter.Stats())
}

// ResetRateLimits handles POST /v1/admin/rate-limit/reset
func (h *RateLimitStatusHandler) ResetRateLimits(w http.ResponseWriter, r *http.Request) {
	if h.rateLimiter == nil {
		writeErrorResponse(w, http.StatusServiceUnavailable, "rate_limiter_unavailable", "Rate limiter not available", nil)
		return
	}

	slog.Info("Resetting rate limits", "client_ip", middleware.ClientIP(r))
	h.rateLimiter.Reset()

	writeJSONResponse(w, http.StatusOK, map[string]string{
		"message":   "Rate limits reset successfully",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}
