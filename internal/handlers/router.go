package handlers

import (
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"inventory-console/internal/cache"
	"inventory-console/internal/middleware"
	"inventory-console/internal/models"
	"inventory-console/internal/session"
	"inventory-console/internal/telemetry"
)

// Backend is the inventory backend as seen by the pass-through handlers
type Backend interface {
	ItemBackend
	LookupBackend
}

// RouterConfig wires the console routes. RateLimiter and Telemetry are optional.
// With no AdminAPIKeys the /v1/admin routes refuse every request.
type RouterConfig struct {
	Sessions      *session.Store
	Backend       Backend
	LookupCache   *cache.TTLCache[[]models.Lookup]
	RateLimiter   *middleware.RateLimiter
	Telemetry     *telemetry.ConsoleTelemetry
	PageSize      int
	SessionTTL    time.Duration
	SecureCookies bool
	AdminAPIKeys  []string
}

// NewRouter builds the console's HTTP surface
func NewRouter(cfg RouterConfig) *mux.Router {
	validate := NewValidator()

	var metrics OperationMetrics
	if cfg.Telemetry != nil {
		metrics = cfg.Telemetry
	}

	cacheStats := []func() cache.Stats{cfg.Sessions.Stats}
	if cfg.LookupCache != nil {
		cacheStats = append(cacheStats, cfg.LookupCache.Stats)
	}
	healthHandler := NewHealthHandler(cfg.Sessions.Active, cacheStats...)
	viewHandler := NewViewHandler(cfg.Sessions, validate, cfg.PageSize)
	notificationsHandler := NewNotificationsHandler(cfg.Sessions)
	lookupHandler := NewLookupHandler(cfg.Backend, cfg.LookupCache, cfg.Sessions, validate, metrics)
	itemHandler := NewItemHandler(cfg.Backend, cfg.Sessions, validate, metrics)
	rateLimitHandler := NewRateLimitStatusHandler(cfg.RateLimiter)

	router := mux.NewRouter()
	if cfg.Telemetry != nil {
		router.Use(cfg.Telemetry.Middleware)
	}
	if cfg.RateLimiter != nil {
		router.Use(middleware.RateLimitMiddleware(cfg.RateLimiter))
	}

	router.HandleFunc("/health", healthHandler.Health).Methods(http.MethodGet)

	// Registered ahead of /v1 so the session subrouter never sees admin paths.
	adminV1 := router.PathPrefix("/v1/admin").Subrouter()
	adminV1.Use(middleware.AdminAPIKeyMiddleware(cfg.AdminAPIKeys))
	adminV1.HandleFunc("/rate-limit/status", rateLimitHandler.GetRateLimitStatus).Methods(http.MethodGet)
	adminV1.HandleFunc("/rate-limit/reset", rateLimitHandler.ResetRateLimits).Methods(http.MethodPost)

	api := router.PathPrefix("/v1").Subrouter()
	api.Use(middleware.SessionMiddleware(cfg.SessionTTL, cfg.SecureCookies))

	api.HandleFunc("/view", viewHandler.GetView).Methods(http.MethodGet)
	api.HandleFunc("/view/search", viewHandler.Search).Methods(http.MethodPost)
	api.HandleFunc("/view/filter", viewHandler.SetFilter).Methods(http.MethodPost)
	api.HandleFunc("/view/sort", viewHandler.ToggleSort).Methods(http.MethodPost)
	api.HandleFunc("/view/page", viewHandler.GoToPage).Methods(http.MethodPost)
	api.HandleFunc("/view/refresh", viewHandler.Refresh).Methods(http.MethodPost)

	api.HandleFunc("/notifications", notificationsHandler.GetNotifications).Methods(http.MethodGet)
	api.HandleFunc("/notifications/{id}/dismiss", notificationsHandler.Dismiss).Methods(http.MethodPost)

	api.HandleFunc("/lookups/{kind:categories|manufacturers}", lookupHandler.ListLookups).Methods(http.MethodGet)
	api.HandleFunc("/lookups/{kind:categories|manufacturers}", lookupHandler.CreateLookup).Methods(http.MethodPost)

	api.HandleFunc("/items", itemHandler.CreateItem).Methods(http.MethodPost)
	api.HandleFunc("/items/{id}", itemHandler.GetItem).Methods(http.MethodGet)
	api.HandleFunc("/items/{id}", itemHandler.UpdateItem).Methods(http.MethodPut)
	api.HandleFunc("/usage", itemHandler.RecordUsage).Methods(http.MethodPost)

	return router
}
