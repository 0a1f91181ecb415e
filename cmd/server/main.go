package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"inventory-console/internal/cache"
	"inventory-console/internal/client"
	"inventory-console/internal/config"
	"inventory-console/internal/handlers"
	"inventory-console/internal/middleware"
	"inventory-console/internal/models"
	"inventory-console/internal/normalize"
	"inventory-console/internal/session"
	"inventory-console/internal/status"
	"inventory-console/internal/telemetry"
)

func main() {
	// Load configuration from .env file and environment variables
	cfg := config.LoadConfig()

	slog.Info("Starting inventory console", "version", "1.0.0")

	ctx := context.Background()
	otelTelemetry, err := telemetry.Init(ctx, cfg.MetricsExporter, cfg.MetricsAddr)
	if err != nil {
		slog.Error("Failed to initialize telemetry", "error", err)
		os.Exit(1)
	}

	consoleTelemetry, err := telemetry.NewConsoleTelemetry(otelTelemetry.Meter("inventory-console"))
	if err != nil {
		slog.Error("Failed to initialize console telemetry", "error", err)
		os.Exit(1)
	}
	slog.Info("Telemetry initialized", "exporter", cfg.MetricsExporter)

	normalizer, err := normalize.New(status.ParsePolicy(cfg.StatusPolicy))
	if err != nil {
		slog.Error("Failed to compile item normalizer", "error", err)
		os.Exit(1)
	}

	backend := client.NewInventoryClient(cfg.BackendBaseURL, cfg.BackendAPIKey, cfg.BackendTimeoutDuration(), normalizer)

	sessions := session.NewStore(session.StoreConfig{
		Fetcher:            backend,
		TTL:                cfg.SessionTTLDuration(),
		CleanupInterval:    cfg.CacheCleanupIntervalDuration(),
		PageSize:           cfg.PageSizeInt(),
		NotificationBuffer: cfg.NotificationBufferInt(),
		Metrics:            consoleTelemetry,
		Logger:             slog.Default(),
	})
	lookupCache := cache.NewTTLCache[[]models.Lookup]("lookups", cfg.LookupCacheTTLDuration(), cfg.CacheCleanupIntervalDuration())

	rateLimitConfig := middleware.ParseRateLimitConfig(cfg)
	var rateLimiter *middleware.RateLimiter
	if rateLimitConfig.Enabled {
		rateLimiter = middleware.NewRateLimiter(rateLimitConfig)
		slog.Info("Rate limiting middleware enabled",
			"type", rateLimitConfig.Type,
			"requests_per_minute", rateLimitConfig.RequestsPerMinute)
	} else {
		slog.Info("Rate limiting middleware disabled")
	}

	router := handlers.NewRouter(handlers.RouterConfig{
		Sessions:      sessions,
		Backend:       backend,
		LookupCache:   lookupCache,
		RateLimiter:   rateLimiter,
		Telemetry:     consoleTelemetry,
		PageSize:      cfg.PageSizeInt(),
		SessionTTL:    cfg.SessionTTLDuration(),
		SecureCookies: cfg.IsProduction(),
		AdminAPIKeys:  middleware.ParseAPIKeys(cfg.AdminAPIKey),
	})

	slog.Debug("Available endpoints",
		"view_endpoints", []string{
			"GET /v1/view",
			"POST /v1/view/search",
			"POST /v1/view/filter",
			"POST /v1/view/sort",
			"POST /v1/view/page",
			"POST /v1/view/refresh",
		},
		"notification_endpoints", []string{
			"GET /v1/notifications?offset=&limit=&wait=",
			"POST /v1/notifications/{id}/dismiss",
		},
		"backend_endpoints", []string{
			"GET|POST /v1/lookups/{categories|manufacturers}",
			"POST /v1/items",
			"GET|PUT /v1/items/{id}",
			"POST /v1/usage",
		},
		"system_endpoints", []string{
			"GET /health",
			"GET /v1/admin/rate-limit/status",
			"POST /v1/admin/rate-limit/reset",
		})

	server := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		slog.Info("Server ready to accept connections",
			"address", server.Addr,
			"backend", cfg.BackendBaseURL,
			"environment", cfg.Environment)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("Server failed to start", "error", err)
			os.Exit(1)
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	slog.Info("Shutting down server...")

	// Long-polling notification requests hold connections for up to a minute
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		slog.Error("Server forced to shutdown", "error", err)
	}

	if rateLimiter != nil {
		rateLimiter.Stop()
	}
	lookupCache.Stop()
	sessions.Close()

	if err := otelTelemetry.Shutdown(shutdownCtx); err != nil {
		slog.Error("Error shutting down telemetry", "error", err)
	}

	slog.Info("Server exited")
}
