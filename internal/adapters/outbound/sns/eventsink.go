// Package sns implements the EventSink interface using AWS SNS.
//
// The adapter publishes credit events to a single SNS topic so downstream
// consumers (receipts, analytics, notifications) can react to top-ups without
// polling the database. Events are serialized as JSON messages.
//
// Message Attributes:
//   - eventType: e.g. "payment_credited"
//   - wallet: the credited wallet address
//
// When the topic is a FIFO topic (ARN ends in ".fifo") messages are grouped
// per wallet and deduplicated by the event's deduplication key.
//
// For testing, use the memory.EventSink adapter instead.
package sns

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sns"
	"github.com/aws/aws-sdk-go-v2/service/sns/types"
	"github.com/aws/smithy-go"

	"github.com/ideomind/unreal-dashboard/internal/pkg/retry"
	"github.com/ideomind/unreal-dashboard/internal/ports/outbound"
)

// Compile-time check that EventSink implements outbound.EventSink
var _ outbound.EventSink = (*EventSink)(nil)

// ErrSinkClosed is returned by Publish after Close.
var ErrSinkClosed = errors.New("event sink is closed")

// SNSPublisher defines the subset of SNS client methods used by EventSink.
// This interface allows for easy mocking in tests.
type SNSPublisher interface {
	Publish(ctx context.Context, params *sns.PublishInput, optFns ...func(*sns.Options)) (*sns.PublishOutput, error)
}

// Config holds configuration for the SNS event sink.
type Config struct {
	// TopicARN is the topic every event is published to.
	TopicARN string

	// Retry bounds the attempts made for transient publish failures.
	Retry retry.Policy

	// Logger is the structured logger for the sink.
	Logger *slog.Logger
}

// ConfigDefaults returns a config with default values.
func ConfigDefaults() Config {
	policy := retry.Exponential(3, 100*time.Millisecond, 5*time.Second)
	policy.AttemptTimeout = 10 * time.Second
	return Config{
		Retry:  policy,
		Logger: slog.Default(),
	}
}

// EventSink publishes events to AWS SNS.
type EventSink struct {
	client SNSPublisher
	config Config
	fifo   bool
	logger *slog.Logger

	mu        sync.RWMutex
	closed    bool
	closeOnce sync.Once
}

// NewEventSink creates a new SNS event sink.
func NewEventSink(client SNSPublisher, config Config) (*EventSink, error) {
	if client == nil {
		return nil, fmt.Errorf("SNS client is required")
	}
	if strings.TrimSpace(config.TopicARN) == "" {
		return nil, fmt.Errorf("topic ARN is required")
	}

	defaults := ConfigDefaults()
	if config.Retry.MaxAttempts == 0 {
		config.Retry = defaults.Retry
	}
	if config.Logger == nil {
		config.Logger = defaults.Logger
	}

	return &EventSink{
		client: client,
		config: config,
		fifo:   strings.HasSuffix(config.TopicARN, ".fifo"),
		logger: config.Logger.With("component", "sns-sink"),
	}, nil
}

// Publish serializes the event and publishes it to the configured topic,
// retrying throttling and server-side failures.
func (s *EventSink) Publish(ctx context.Context, event outbound.Event) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return ErrSinkClosed
	}

	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal %s event: %w", event.EventType(), err)
	}

	input := &sns.PublishInput{
		TopicArn: aws.String(s.config.TopicARN),
		Message:  aws.String(string(body)),
		MessageAttributes: map[string]types.MessageAttributeValue{
			"eventType": {
				DataType:    aws.String("String"),
				StringValue: aws.String(string(event.EventType())),
			},
			"wallet": {
				DataType:    aws.String("String"),
				StringValue: aws.String(event.GetWallet()),
			},
		},
	}
	if s.fifo {
		input.MessageGroupId = aws.String(event.GetWallet())
		input.MessageDeduplicationId = aws.String(event.GetDeduplicationKey())
	}

	isRetryable := func(err error) bool {
		return isRetryableError(err, ctx.Err() != nil)
	}
	onRetry := func(attempt int, err error, backoff time.Duration) {
		s.logger.Warn("retrying SNS publish",
			"eventType", event.EventType(),
			"attempt", attempt,
			"backoff", backoff,
			"error", err)
	}

	out, err := retry.Do(ctx, s.config.Retry, isRetryable, onRetry,
		func(ctx context.Context, _ int) (*sns.PublishOutput, error) {
			return s.client.Publish(ctx, input)
		})
	if err != nil {
		return fmt.Errorf("failed to publish %s event: %w", event.EventType(), err)
	}

	s.logger.Debug("published event",
		"eventType", event.EventType(),
		"wallet", event.GetWallet(),
		"messageId", aws.ToString(out.MessageId))
	return nil
}

// isRetryableError reports whether a publish error is worth another attempt.
// parentCanceled is true when the caller's context is done, in which case
// nothing is retried.
func isRetryableError(err error, parentCanceled bool) bool {
	if err == nil || parentCanceled {
		return false
	}
	if errors.Is(err, context.Canceled) {
		return false
	}
	// The per-attempt timeout fired while the caller is still waiting.
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}

	var throttled *types.ThrottledException
	if errors.As(err, &throttled) {
		return true
	}
	var internal *types.InternalErrorException
	if errors.As(err, &internal) {
		return true
	}
	var kmsThrottled *types.KMSThrottlingException
	if errors.As(err, &kmsThrottled) {
		return true
	}

	var invalid *types.InvalidParameterException
	if errors.As(err, &invalid) {
		return false
	}
	var notFound *types.NotFoundException
	if errors.As(err, &notFound) {
		return false
	}
	var authz *types.AuthorizationErrorException
	if errors.As(err, &authz) {
		return false
	}

	// Other service errors: client faults are not fixed by retrying,
	// except throttling codes the SDK does not model.
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.ErrorCode() {
		case "Throttling", "ThrottlingException", "RequestLimitExceeded":
			return true
		}
		return apiErr.ErrorFault() != smithy.FaultClient
	}

	// Network errors and unclassified failures.
	return true
}

// Close marks the sink closed. The SNS client holds no resources of its own.
func (s *EventSink) Close() error {
	s.closeOnce.Do(func() {
		s.mu.Lock()
		s.closed = true
		s.mu.Unlock()
	})
	return nil
}
