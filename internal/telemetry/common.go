package telemetry

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/exporters/prometheus"
	api "go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/sdk/metric"
)

// Metrics exporters selectable with METRICS_EXPORTER
const (
	ExporterScraper = "scraper"
	ExporterGRPC    = "grpc"
	ExporterNone    = "none"
)

// Telemetry owns the meter provider and, for the scraper exporter, the /metrics server
type Telemetry struct {
	server   *http.Server          // only for the scraper exporter
	Provider *metric.MeterProvider // nil when metrics are disabled
}

// Init sets up the global meter provider. The scraper exporter serves a Prometheus
// page at addr/metrics; grpc pushes to OTEL_EXPORTER_OTLP_METRICS_ENDPOINT
// (localhost:4317 when unset); none leaves the global no-op provider in place.
func Init(ctx context.Context, exporter, addr string) (*Telemetry, error) {
	t := &Telemetry{}

	switch strings.ToLower(exporter) {
	case ExporterScraper:
		slog.Info("Starting metrics with scraper exporter", "addr", addr)
		if err := t.initScrapeMetrics(addr); err != nil {
			return nil, err
		}
	case ExporterGRPC:
		slog.Info("Starting metrics with grpc exporter")
		if err := t.initGRPCMetrics(ctx); err != nil {
			return nil, err
		}
	case ExporterNone, "":
		slog.Info("Metrics disabled")
	default:
		return nil, fmt.Errorf("unknown metrics exporter %q", exporter)
	}

	return t, nil
}

// Meter returns a meter from the configured provider, or the global one
func (t *Telemetry) Meter(name string) api.Meter {
	if t == nil || t.Provider == nil {
		return otel.Meter(name)
	}
	return t.Provider.Meter(name)
}

// Shutdown flushes pending metrics and stops the scraper server
func (t *Telemetry) Shutdown(ctx context.Context) error {
	if t == nil {
		return nil
	}

	var errs []error
	if t.server != nil {
		slog.Info("Shutting down metrics server")
		errs = append(errs, t.server.Shutdown(ctx))
	}
	if t.Provider != nil {
		errs = append(errs, t.Provider.Shutdown(ctx))
	}
	return errors.Join(errs...)
}

func (t *Telemetry) initGRPCMetrics(ctx context.Context) error {
	exporter, err := otlpmetricgrpc.New(ctx)
	if err != nil {
		return fmt.Errorf("failed to create grpc metrics exporter: %w", err)
	}

	t.Provider = metric.NewMeterProvider(metric.WithReader(metric.NewPeriodicReader(exporter)))
	otel.SetMeterProvider(t.Provider)
	return nil
}

func (t *Telemetry) initScrapeMetrics(addr string) error {
	// The exporter is both a Reader and a prometheus.Collector registered with the default registry
	exporter, err := prometheus.New()
	if err != nil {
		return fmt.Errorf("failed to create prometheus exporter: %w", err)
	}

	t.Provider = metric.NewMeterProvider(metric.WithReader(exporter))
	otel.SetMeterProvider(t.Provider)

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	t.server = &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		slog.Info("Serving metrics", "addr", addr, "path", "/metrics")
		if err := t.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("Metrics server exited", "error", err)
		}
	}()
	return nil
}
