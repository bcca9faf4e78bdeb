// Package outbound defines the outbound port interfaces.
package outbound

import (
	"context"
	"time"
)

// MetricsRecorder provides an interface for recording application metrics.
// This allows the application layer to record metrics without depending on
// specific telemetry implementations.
type MetricsRecorder interface {
	// RecordVerification records a finished verification.
	// stage is the last stage reached and attempts the number of lookups made.
	RecordVerification(ctx context.Context, stage string, verified bool, attempts int, duration time.Duration)

	// RecordLookupRetry records a retried lookup. attempt is the attempt about to run.
	RecordLookupRetry(ctx context.Context, attempt int)

	// RecordCredited records credits added by a top-up.
	RecordCredited(ctx context.Context, credits int64)
}
