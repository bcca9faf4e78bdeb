// Package payment_verifier decides whether an on-chain stablecoin transfer
// satisfies an expected payment.
//
// A verification runs Resolving → LookingUp → ValidatingStatus →
// MatchingTransfers and ends Verified or Unverified. Only the lookup is
// retried, and only for transient failures: every other failure is
// deterministic and returns immediately.
package payment_verifier

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/ideomind/unreal-dashboard/internal/domain/entity"
	"github.com/ideomind/unreal-dashboard/internal/pkg/hederaid"
	"github.com/ideomind/unreal-dashboard/internal/pkg/retry"
	"github.com/ideomind/unreal-dashboard/internal/ports/inbound"
	"github.com/ideomind/unreal-dashboard/internal/ports/outbound"
)

// Compile-time check that Service implements inbound.PaymentVerifier.
var _ inbound.PaymentVerifier = (*Service)(nil)

const tracerName = "github.com/ideomind/unreal-dashboard/internal/services/payment_verifier"

// Config holds configuration for the verifier.
type Config struct {
	// TokenID is the only token whose transfers are considered.
	// Defaults to USDC on Hedera testnet (0.0.429274) together with TokenDecimals.
	TokenID string

	// TokenDecimals is the token's number of decimals. Only defaulted when
	// TokenID is also unset.
	TokenDecimals int32

	// MaxAttempts is the total number of lookups, including the first one.
	// Defaults to 3.
	MaxAttempts int

	// Backoff is the fixed pause between lookups. Defaults to 2s.
	// Use a negative value to retry without pausing.
	Backoff time.Duration

	// AttemptTimeout bounds a single lookup. Defaults to 10s.
	AttemptTimeout time.Duration

	// Logger is the structured logger for the service.
	Logger *slog.Logger
}

// ConfigDefaults returns a config with default values.
func ConfigDefaults() Config {
	return Config{
		TokenID:        "0.0.429274",
		TokenDecimals:  6,
		MaxAttempts:    3,
		Backoff:        2 * time.Second,
		AttemptTimeout: 10 * time.Second,
		Logger:         slog.Default(),
	}
}

// Service verifies payments against a TransactionLookup.
// It holds no per-call state and is safe for concurrent use.
type Service struct {
	tokenID  string
	shard    uint32
	realm    uint64
	decimals int32
	policy   retry.Policy
	lookup   outbound.TransactionLookup
	metrics  outbound.MetricsRecorder
	logger   *slog.Logger
}

// NewService creates a new verifier. metrics may be nil.
func NewService(config Config, lookup outbound.TransactionLookup, metrics outbound.MetricsRecorder) (*Service, error) {
	if lookup == nil {
		return nil, fmt.Errorf("lookup cannot be nil")
	}
	if config.MaxAttempts < 0 {
		return nil, fmt.Errorf("maxAttempts must be non-negative, got %d", config.MaxAttempts)
	}

	defaults := ConfigDefaults()
	if config.TokenID == "" {
		config.TokenID = defaults.TokenID
		config.TokenDecimals = defaults.TokenDecimals
	}
	if config.MaxAttempts == 0 {
		config.MaxAttempts = defaults.MaxAttempts
	}
	if config.Backoff == 0 {
		config.Backoff = defaults.Backoff
	}
	if config.AttemptTimeout == 0 {
		config.AttemptTimeout = defaults.AttemptTimeout
	}
	if config.Logger == nil {
		config.Logger = defaults.Logger
	}

	tokenID, err := hederaid.ParseID(config.TokenID)
	if err != nil {
		return nil, fmt.Errorf("tokenID: %w", err)
	}
	if config.TokenDecimals < 0 {
		return nil, fmt.Errorf("tokenDecimals must be non-negative, got %d", config.TokenDecimals)
	}

	backoff := config.Backoff
	if backoff < 0 {
		backoff = 0
	}

	return &Service{
		tokenID:  tokenID.String(),
		shard:    tokenID.Shard,
		realm:    tokenID.Realm,
		decimals: config.TokenDecimals,
		policy:   retry.Fixed(config.MaxAttempts, backoff, config.AttemptTimeout),
		lookup:   lookup,
		metrics:  metrics,
		logger:   config.Logger.With("component", "payment-verifier", "tokenId", tokenID.String()),
	}, nil
}

// progress tracks how far a single verification got.
type progress struct {
	stage    entity.VerificationStage
	attempts int
}

// Verify checks the payment and always returns a result; failures, including
// panics in collaborators, are reported as unverified results.
func (s *Service) Verify(ctx context.Context, req entity.PaymentRequest) (result *entity.VerificationResult) {
	start := time.Now()
	p := &progress{stage: entity.StageResolving}

	ctx, span := otel.Tracer(tracerName).Start(ctx, "payment.verify",
		trace.WithAttributes(
			attribute.String("payment.reference", req.TransactionReference),
			attribute.String("payment.amount", req.ExpectedAmount.String()),
		),
	)

	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("verification panicked",
				"reference", req.TransactionReference,
				"stage", p.stage,
				"panic", r,
			)
			result = entity.Unverified(p.stage, fmt.Sprintf("verification failed: %v", r), p.attempts)
		}

		span.SetAttributes(
			attribute.Bool("payment.verified", result.Verified),
			attribute.String("payment.stage", string(result.Stage)),
			attribute.Int("payment.attempts", result.Attempts),
		)
		if !result.Verified {
			span.SetStatus(codes.Error, result.Reason)
		}
		span.End()

		if s.metrics != nil {
			s.metrics.RecordVerification(ctx, string(result.Stage), result.Verified, result.Attempts, time.Since(start))
		}
	}()

	result = s.verify(ctx, req, p)
	if result.Verified {
		s.logger.Info("payment verified",
			"reference", req.TransactionReference,
			"transactionId", result.Transaction.ID,
			"amount", req.ExpectedAmount.String(),
			"attempts", result.Attempts,
		)
	} else {
		s.logger.Info("payment not verified",
			"reference", req.TransactionReference,
			"stage", result.Stage,
			"reason", result.Reason,
			"attempts", result.Attempts,
		)
	}
	return result
}

func (s *Service) verify(ctx context.Context, req entity.PaymentRequest, p *progress) *entity.VerificationResult {
	// Accounts live in the token's shard and realm.
	sender, senderErr := hederaid.ParseLongZeroAddress(req.SenderAddress, s.shard, s.realm)
	receiver, receiverErr := hederaid.ParseLongZeroAddress(req.ReceiverAddress, s.shard, s.realm)
	if senderErr != nil || receiverErr != nil {
		s.logger.Debug("rejecting account addresses", "senderError", senderErr, "receiverError", receiverErr)
		return entity.Unverified(p.stage, entity.ReasonInvalidAccounts, 0)
	}

	expected, err := entity.ToSmallestUnit(req.ExpectedAmount, s.decimals)
	if err != nil {
		s.logger.Debug("rejecting expected amount", "amount", req.ExpectedAmount.String(), "error", err)
		return entity.Unverified(p.stage, entity.ReasonInvalidAmount, 0)
	}

	p.stage = entity.StageLookingUp
	tx, err := s.lookupWithRetry(ctx, req.TransactionReference, p)
	if err != nil {
		return entity.Unverified(p.stage, s.lookupFailureReason(req.TransactionReference, err), p.attempts)
	}

	p.stage = entity.StageValidatingStatus
	if tx.Result != entity.TransactionResultSuccess {
		return entity.Unverified(p.stage, entity.FailedStatusReason(tx.Result), p.attempts)
	}

	p.stage = entity.StageMatchingTransfers
	transfers := filterByToken(tx.TokenTransfers, s.tokenID)
	if len(transfers) == 0 {
		return entity.Unverified(p.stage, entity.ReasonNoTransfers, p.attempts)
	}

	senderID, receiverID := sender.String(), receiver.String()
	senderMatches, receiverMatches := matchLegs(transfers, senderID, receiverID, expected)
	if !senderMatches || !receiverMatches {
		res := entity.Unverified(p.stage, entity.ReasonMismatch, p.attempts)
		res.Details = &entity.MismatchDetails{
			SenderMatches:   senderMatches,
			ReceiverMatches: receiverMatches,
			FoundTransfers:  transfers,
		}
		return res
	}

	p.stage = entity.StageVerified
	return entity.Verified(&entity.ConfirmedTransaction{
		ID:        tx.TransactionID,
		Timestamp: tx.ConsensusTimestamp,
		Sender:    senderID,
		Receiver:  receiverID,
		Amount:    req.ExpectedAmount,
		TokenID:   s.tokenID,
	}, p.attempts)
}

func (s *Service) lookupWithRetry(ctx context.Context, reference string, p *progress) (*outbound.MirrorTransaction, error) {
	onRetry := func(attempt int, err error, backoff time.Duration) {
		s.logger.Warn("transaction lookup failed, retrying",
			"reference", reference,
			"attempt", attempt,
			"maxAttempts", s.policy.MaxAttempts,
			"backoff", backoff,
			"error", err,
		)
		if s.metrics != nil {
			s.metrics.RecordLookupRetry(ctx, attempt)
		}
	}

	return retry.Do(ctx, s.policy, isTransient, onRetry, func(ctx context.Context, attempt int) (*outbound.MirrorTransaction, error) {
		p.attempts = attempt
		tx, err := s.lookup.LookupTransaction(ctx, reference)
		if err == nil && tx == nil {
			return nil, fmt.Errorf("%w: empty lookup result", outbound.ErrMalformedResponse)
		}
		return tx, err
	})
}

func (s *Service) lookupFailureReason(reference string, err error) string {
	switch {
	case errors.Is(err, retry.ErrExhausted) && errors.Is(err, outbound.ErrTransactionNotFound):
		return entity.ReasonNotFound
	case errors.Is(err, retry.ErrExhausted):
		s.logger.Warn("transaction lookup exhausted retries", "reference", reference, "error", err)
		return entity.ReasonMaxRetries
	case errors.Is(err, outbound.ErrMalformedResponse):
		s.logger.Error("malformed lookup response", "reference", reference, "error", err)
		return entity.ReasonMalformed
	default:
		s.logger.Warn("transaction lookup failed", "reference", reference, "error", err)
		return "verification failed: " + err.Error()
	}
}

// isTransient reports whether a lookup error may succeed on another attempt.
// Not-found is retried because the read replica lags consensus.
func isTransient(err error) bool {
	return !errors.Is(err, outbound.ErrLookupRejected) &&
		!errors.Is(err, outbound.ErrMalformedResponse)
}

func filterByToken(transfers []entity.TokenTransfer, tokenID string) []entity.TokenTransfer {
	var out []entity.TokenTransfer
	for _, t := range transfers {
		if t.TokenID == tokenID {
			out = append(out, t)
		}
	}
	return out
}

// matchLegs finds the first debit of sender and the first credit of receiver
// and compares their magnitudes with expected.
func matchLegs(transfers []entity.TokenTransfer, sender, receiver string, expected int64) (senderMatches, receiverMatches bool) {
	var senderLeg, receiverLeg *entity.TokenTransfer
	for i := range transfers {
		t := &transfers[i]
		if senderLeg == nil && t.Account == sender && t.Amount < 0 {
			senderLeg = t
		}
		if receiverLeg == nil && t.Account == receiver && t.Amount > 0 {
			receiverLeg = t
		}
	}

	senderMatches = senderLeg != nil && senderLeg.Amount == -expected
	receiverMatches = receiverLeg != nil && receiverLeg.Amount == expected
	return senderMatches, receiverMatches
}
