package telemetry

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// ConsoleTelemetry holds the instruments of the inventory console
type ConsoleTelemetry struct {
	requestCounter    metric.Int64Counter
	errorCounter      metric.Int64Counter
	durationHistogram metric.Float64Histogram

	fetchCounter       metric.Int64Counter
	fetchDuration      metric.Float64Histogram
	backendOperations  metric.Int64Counter
	notificationsShown metric.Int64Counter
}

// RequestMetrics describes one handled BFF request
type RequestMetrics struct {
	Method       string
	Endpoint     string // route template, never the raw path
	StatusCode   int
	Duration     time.Duration
	ErrorMessage string
	ClientIP     string // logged only
	ClientIPType string // internal|external|localhost|invalid|unknown
}

// NewConsoleTelemetry creates all instruments on meter
func NewConsoleTelemetry(meter metric.Meter) (*ConsoleTelemetry, error) {
	t := &ConsoleTelemetry{}
	var err error

	if t.requestCounter, err = meter.Int64Counter(
		"inventory_console_requests_total",
		metric.WithDescription("Total number of requests handled by the console"),
		metric.WithUnit("1"),
	); err != nil {
		return nil, fmt.Errorf("failed to create request counter: %w", err)
	}

	if t.errorCounter, err = meter.Int64Counter(
		"inventory_console_errors_total",
		metric.WithDescription("Total number of console requests answered with an error status"),
		metric.WithUnit("1"),
	); err != nil {
		return nil, fmt.Errorf("failed to create error counter: %w", err)
	}

	if t.durationHistogram, err = meter.Float64Histogram(
		"inventory_console_request_duration_seconds",
		metric.WithDescription("Duration of console requests"),
		metric.WithUnit("s"),
	); err != nil {
		return nil, fmt.Errorf("failed to create duration histogram: %w", err)
	}

	if t.fetchCounter, err = meter.Int64Counter(
		"inventory_view_fetches_total",
		metric.WithDescription("Inventory list fetches by outcome (applied, discarded, failed)"),
		metric.WithUnit("1"),
	); err != nil {
		return nil, fmt.Errorf("failed to create fetch counter: %w", err)
	}

	if t.fetchDuration, err = meter.Float64Histogram(
		"inventory_view_fetch_duration_seconds",
		metric.WithDescription("Round trip time of inventory list fetches"),
		metric.WithUnit("s"),
	); err != nil {
		return nil, fmt.Errorf("failed to create fetch duration histogram: %w", err)
	}

	if t.backendOperations, err = meter.Int64Counter(
		"inventory_console_backend_operations_total",
		metric.WithDescription("Write operations forwarded to the inventory backend"),
		metric.WithUnit("1"),
	); err != nil {
		return nil, fmt.Errorf("failed to create backend operation counter: %w", err)
	}

	if t.notificationsShown, err = meter.Int64Counter(
		"inventory_console_notifications_total",
		metric.WithDescription("Notifications pushed to users by level"),
		metric.WithUnit("1"),
	); err != nil {
		return nil, fmt.Errorf("failed to create notification counter: %w", err)
	}

	slog.Debug("Console telemetry initialized")
	return t, nil
}

// RecordFetch records one inventory list fetch
func (t *ConsoleTelemetry) RecordFetch(ctx context.Context, outcome string, duration time.Duration) {
	attrs := metric.WithAttributes(attribute.String("outcome", outcome))
	t.fetchCounter.Add(ctx, 1, attrs)
	t.fetchDuration.Record(ctx, duration.Seconds(), attrs)
}

// RecordBackendOperation records a forwarded write such as create_item or record_usage
func (t *ConsoleTelemetry) RecordBackendOperation(ctx context.Context, operation string, err error) {
	outcome := "success"
	if err != nil {
		outcome = "error"
	}
	t.backendOperations.Add(ctx, 1, metric.WithAttributes(
		attribute.String("operation", operation),
		attribute.String("outcome", outcome),
	))
}

// RecordNotification counts a notification pushed to a user
func (t *ConsoleTelemetry) RecordNotification(ctx context.Context, level string) {
	t.notificationsShown.Add(ctx, 1, metric.WithAttributes(attribute.String("level", level)))
}

// RegisterRequest records the counters and duration of one handled request
func (t *ConsoleTelemetry) RegisterRequest(ctx context.Context, m RequestMetrics) {
	attrs := []attribute.KeyValue{
		attribute.String("method", m.Method),
		attribute.String("endpoint", m.Endpoint),
		attribute.Int("status_code", m.StatusCode),
	}
	if m.ClientIPType != "" {
		attrs = append(attrs, attribute.String("client_ip_type", m.ClientIPType))
	}

	t.requestCounter.Add(ctx, 1, metric.WithAttributes(attrs...))
	t.durationHistogram.Record(ctx, m.Duration.Seconds(), metric.WithAttributes(attrs...))

	if m.StatusCode >= 400 {
		errAttrs := append(attrs, attribute.String("error_type", categorizeStatus(m.StatusCode)))
		t.errorCounter.Add(ctx, 1, metric.WithAttributes(errAttrs...))

		slog.Debug("Recorded request error",
			"method", m.Method,
			"endpoint", m.Endpoint,
			"status_code", m.StatusCode,
			"client_ip", m.ClientIP,
			"error", m.ErrorMessage)
	}
}

// categorizeStatus groups error statuses to keep cardinality low
func categorizeStatus(statusCode int) string {
	switch {
	case statusCode == 400 || statusCode == 422:
		return "bad_request"
	case statusCode == 404:
		return "not_found"
	case statusCode == 429:
		return "rate_limited"
	case statusCode == 502 || statusCode == 504:
		return "backend"
	case statusCode >= 500:
		return "internal_error"
	default:
		return "other"
	}
}

// NormalizeClientIP categorizes client IPs to control cardinality
func NormalizeClientIP(clientIP string) string {
	if clientIP == "" {
		return "unknown"
	}

	ip := net.ParseIP(strings.TrimSpace(clientIP))
	if ip == nil {
		return "invalid"
	}

	switch {
	case ip.IsLoopback():
		return "localhost"
	case ip.IsPrivate(), ip.IsLinkLocalUnicast():
		return "internal"
	default:
		return "external"
	}
}
