package telemetry

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// HTTPMetrics records outbound HTTP calls made to external read APIs.
type HTTPMetrics struct {
	latency  metric.Float64Histogram
	requests metric.Int64Counter
}

// NewHTTPMetrics creates HTTP client instruments on the global meter provider.
// meterName should typically be the adapter package name.
func NewHTTPMetrics(meterName string) (*HTTPMetrics, error) {
	return NewHTTPMetricsWithProvider(otel.GetMeterProvider(), meterName)
}

// NewHTTPMetricsWithProvider creates HTTP client instruments on mp.
func NewHTTPMetricsWithProvider(mp metric.MeterProvider, meterName string) (*HTTPMetrics, error) {
	meter := mp.Meter(meterName)

	latency, err := meter.Float64Histogram(
		"http.client.request.duration",
		metric.WithDescription("Duration of outbound HTTP requests"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create http.client.request.duration histogram: %w", err)
	}

	requests, err := meter.Int64Counter(
		"http.client.requests.total",
		metric.WithDescription("Total number of outbound HTTP requests"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create http.client.requests.total counter: %w", err)
	}

	return &HTTPMetrics{latency: latency, requests: requests}, nil
}

// ObserveRequest records one round trip. status 0 means no response.
// Its signature matches httpclient.ObserveFunc.
func (m *HTTPMetrics) ObserveRequest(ctx context.Context, rawURL string, status int, duration time.Duration) {
	attrs := metric.WithAttributes(
		attribute.String("http.route", Route(rawURL)),
		attribute.String("http.status", statusLabel(status)),
	)
	m.latency.Record(ctx, duration.Seconds(), attrs)
	m.requests.Add(ctx, 1, attrs)
}

// Route reduces a request URL to a low-cardinality route by replacing the
// final path segment (an id or hash) with a placeholder.
func Route(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "unknown"
	}
	path := strings.TrimRight(u.Path, "/")
	idx := strings.LastIndex(path, "/")
	if idx <= 0 {
		return path
	}
	return path[:idx] + "/{id}"
}

func statusLabel(status int) string {
	if status == 0 {
		return "error"
	}
	return strconv.Itoa(status)
}
