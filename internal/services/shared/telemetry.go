// Package shared provides shared utilities and instrumentation for application services.
package shared

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/ideomind/unreal-dashboard/internal/ports/outbound"
)

// Compile-time assertion that AppTelemetry implements MetricsRecorder.
var _ outbound.MetricsRecorder = (*AppTelemetry)(nil)

const (
	// instrumentationName is the name used for OpenTelemetry instrumentation.
	instrumentationName = "github.com/ideomind/unreal-dashboard/internal/services"
)

// AppTelemetry provides OpenTelemetry metrics for payment verification and billing.
// This is separate from adapter-level telemetry (telemetry.HTTPMetrics) which
// tracks infrastructure concerns like outbound HTTP requests.
type AppTelemetry struct {
	verificationsTotal   metric.Int64Counter
	verificationDuration metric.Float64Histogram
	lookupAttempts       metric.Int64Histogram
	lookupRetriesTotal   metric.Int64Counter
	creditsTotal         metric.Int64Counter
}

// NewAppTelemetry creates a new AppTelemetry instance with OpenTelemetry instrumentation.
// Uses the global meter provider by default.
func NewAppTelemetry() (*AppTelemetry, error) {
	return NewAppTelemetryWithProvider(otel.GetMeterProvider())
}

// NewAppTelemetryWithProvider creates a new AppTelemetry instance with a custom meter provider.
func NewAppTelemetryWithProvider(mp metric.MeterProvider) (*AppTelemetry, error) {
	meter := mp.Meter(instrumentationName)
	t := &AppTelemetry{}

	var err error
	t.verificationsTotal, err = meter.Int64Counter(
		"payment.verifications.total",
		metric.WithDescription("Total number of payment verifications by outcome and final stage"),
	)
	if err != nil {
		return nil, err
	}

	t.verificationDuration, err = meter.Float64Histogram(
		"payment.verification.duration",
		metric.WithDescription("Wall time of a payment verification including retries"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, err
	}

	t.lookupAttempts, err = meter.Int64Histogram(
		"payment.lookup.attempts",
		metric.WithDescription("Number of transaction lookups per verification"),
	)
	if err != nil {
		return nil, err
	}

	t.lookupRetriesTotal, err = meter.Int64Counter(
		"payment.lookup.retries.total",
		metric.WithDescription("Total number of retried transaction lookups"),
	)
	if err != nil {
		return nil, err
	}

	t.creditsTotal, err = meter.Int64Counter(
		"billing.credits.total",
		metric.WithDescription("Total number of credits granted by verified top-ups"),
	)
	if err != nil {
		return nil, err
	}

	return t, nil
}

// RecordVerification records a finished verification.
func (t *AppTelemetry) RecordVerification(ctx context.Context, stage string, verified bool, attempts int, duration time.Duration) {
	attrs := metric.WithAttributes(
		attribute.Bool("payment.verified", verified),
		attribute.String("payment.stage", stage),
	)
	t.verificationsTotal.Add(ctx, 1, attrs)
	t.verificationDuration.Record(ctx, duration.Seconds(), attrs)
	t.lookupAttempts.Record(ctx, int64(attempts))
}

// RecordLookupRetry records a retried lookup.
func (t *AppTelemetry) RecordLookupRetry(ctx context.Context, attempt int) {
	t.lookupRetriesTotal.Add(ctx, 1, metric.WithAttributes(attribute.Int("lookup.attempt", attempt)))
}

// RecordCredited records credits added by a top-up.
func (t *AppTelemetry) RecordCredited(ctx context.Context, credits int64) {
	t.creditsTotal.Add(ctx, credits)
}
