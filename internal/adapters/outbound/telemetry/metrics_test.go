package telemetry

import (
	"context"
	"testing"
	"time"

	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

func TestRoute(t *testing.T) {
	tests := []struct {
		url  string
		want string
	}{
		{"https://testnet.mirrornode.hedera.com/api/v1/transactions/0.0.1-1-1", "/api/v1/transactions/{id}"},
		{"http://127.0.0.1:1234/api/v1/contracts/results/0xabc/", "/api/v1/contracts/results/{id}"},
		{"http://host/health", "/health"},
		{"://bad", "unknown"},
	}
	for _, tt := range tests {
		if got := Route(tt.url); got != tt.want {
			t.Errorf("Route(%q) = %q, want %q", tt.url, got, tt.want)
		}
	}
}

func TestHTTPMetrics_ObserveRequest(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))

	m, err := NewHTTPMetricsWithProvider(mp, "test")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	ctx := context.Background()
	m.ObserveRequest(ctx, "http://h/api/v1/transactions/a", 200, 10*time.Millisecond)
	m.ObserveRequest(ctx, "http://h/api/v1/transactions/b", 200, 20*time.Millisecond)
	m.ObserveRequest(ctx, "http://h/api/v1/transactions/c", 0, time.Millisecond)

	var rm metricdata.ResourceMetrics
	if err := reader.Collect(ctx, &rm); err != nil {
		t.Fatalf("collect: %v", err)
	}

	var total int64
	found := false
	for _, sm := range rm.ScopeMetrics {
		for _, metric := range sm.Metrics {
			if metric.Name != "http.client.requests.total" {
				continue
			}
			found = true
			sum, ok := metric.Data.(metricdata.Sum[int64])
			if !ok {
				t.Fatalf("unexpected data type %T", metric.Data)
			}
			if len(sum.DataPoints) != 2 {
				t.Errorf("expected 2 series (200 and error), got %d", len(sum.DataPoints))
			}
			for _, dp := range sum.DataPoints {
				total += dp.Value
			}
		}
	}
	if !found {
		t.Fatal("requests counter not exported")
	}
	if total != 3 {
		t.Errorf("expected 3 requests, got %d", total)
	}
}

func TestInitTracer_NoExporterIsNoop(t *testing.T) {
	shutdown, err := InitTracer(context.Background(), TracerConfig{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := shutdown(context.Background()); err != nil {
		t.Errorf("shutdown: %v", err)
	}
}

func TestInitMetrics_NoEndpointIsNoop(t *testing.T) {
	shutdown, err := InitMetrics(context.Background(), MetricConfig{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := shutdown(context.Background()); err != nil {
		t.Errorf("shutdown: %v", err)
	}
}
