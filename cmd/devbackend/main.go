package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"inventory-console/internal/config"
	"inventory-console/internal/devbackend"
	"inventory-console/internal/middleware"
)

func main() {
	cfg := config.LoadConfig()

	store, err := devbackend.LoadStore(cfg.DevBackendDataPath, cfg.DevBackendPersistEnabled())
	if err != nil {
		slog.Error("Failed to load fixture dataset", "path", cfg.DevBackendDataPath, "error", err)
		os.Exit(1)
	}

	backend := devbackend.NewServer(store, devbackend.ServerOptions{
		Latency: cfg.DevBackendLatencyDuration(),
		APIKeys: middleware.ParseAPIKeys(cfg.DevBackendAPIKey),
	})

	server := &http.Server{
		Addr:              ":" + cfg.DevBackendPort,
		Handler:           backend.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		slog.Info("Fixture backend ready",
			"address", server.Addr,
			"latency", cfg.DevBackendLatencyDuration(),
			"persist", cfg.DevBackendPersistEnabled())
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("Fixture backend failed to start", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	slog.Info("Shutting down fixture backend...")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		slog.Error("Fixture backend forced to shutdown", "error", err)
	}
	backend.Close()

	slog.Info("Fixture backend exited")
}
