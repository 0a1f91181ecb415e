package handlers

import (
	"net/http"

	"inventory-console/internal/cache"
)

// HealthHandler handles health check requests
type HealthHandler struct {
	activeSessions func() int
	caches         []func() cache.Stats
}

// NewHealthHandler creates a new health handler. activeSessions may be nil.
func NewHealthHandler(activeSessions func() int, caches ...func() cache.Stats) *HealthHandler {
	return &HealthHandler{activeSessions: activeSessions, caches: caches}
}

// Health handles GET /health - Health check endpoint
func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	body := map[string]any{"status": "healthy"}
	if h.activeSessions != nil {
		body["active_sessions"] = h.activeSessions()
	}
	if len(h.caches) > 0 {
		stats := make([]cache.Stats, 0, len(h.caches))
		for _, s := range h.caches {
			stats = append(stats, s())
		}
		body["caches"] = stats
	}
	writeJSONResponse(w, http.StatusOK, body)
}
