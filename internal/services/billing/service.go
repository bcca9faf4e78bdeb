// Package billing credits users for verified on-chain payments.
//
// A top-up is credited at most once per transaction, however the client
// spells its reference. Three layers guard that: a ledger lookup before any
// work, a short-lived lock on the reference while the payment is verified,
// and the unique tx_hash and transaction_id constraints on the billing ledger
// inside the crediting transaction. transaction_id holds the canonical id the
// mirror node reported, so an EVM hash, a ledger hash and a native id of the
// same payment all collide there.
package billing

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/ideomind/unreal-dashboard/internal/domain/entity"
	"github.com/ideomind/unreal-dashboard/internal/pkg/hederaid"
	"github.com/ideomind/unreal-dashboard/internal/ports/inbound"
	"github.com/ideomind/unreal-dashboard/internal/ports/outbound"
	"github.com/ideomind/unreal-dashboard/internal/services/shared"
)

// Compile-time check that Service implements inbound.BillingService.
var _ inbound.BillingService = (*Service)(nil)

const tracerName = "github.com/ideomind/unreal-dashboard/internal/services/billing"

// Config holds configuration for the billing service.
type Config struct {
	// TreasuryAddress receives every top-up payment. Required.
	// Accepts an EVM address or a dotted entity ID.
	TreasuryAddress string

	// CreditsPerUSD is the number of credits granted per USD paid. Defaults to 100.
	CreditsPerUSD int64

	// LockPrefix namespaces in-flight lock keys. Defaults to "topup".
	LockPrefix string

	// ReleaseTimeout bounds releasing the in-flight lock after the request
	// context is gone. Defaults to 5s.
	ReleaseTimeout time.Duration

	// Metrics records credited top-ups. Optional.
	Metrics outbound.MetricsRecorder

	// Logger is the structured logger for the service.
	Logger *slog.Logger
}

// ConfigDefaults returns a config with default values.
func ConfigDefaults() Config {
	return Config{
		CreditsPerUSD:  100,
		LockPrefix:     "topup",
		ReleaseTimeout: 5 * time.Second,
		Logger:         slog.Default(),
	}
}

// Service implements the top-up flow.
type Service struct {
	config   Config
	verifier inbound.PaymentVerifier
	txm      outbound.TxManager
	users    outbound.UserRepository
	ledger   outbound.BillingRepository
	lock     outbound.ReferenceLock
	events   outbound.EventSink
	logger   *slog.Logger
}

// NewService creates a new billing service. lock and events may be nil: the
// ledger's unique constraint still prevents double credits without a lock,
// and no events are published without a sink.
func NewService(
	config Config,
	verifier inbound.PaymentVerifier,
	txm outbound.TxManager,
	users outbound.UserRepository,
	ledger outbound.BillingRepository,
	lock outbound.ReferenceLock,
	events outbound.EventSink,
) (*Service, error) {
	if verifier == nil {
		return nil, fmt.Errorf("verifier is required")
	}
	if txm == nil {
		return nil, fmt.Errorf("tx manager is required")
	}
	if users == nil {
		return nil, fmt.Errorf("user repository is required")
	}
	if ledger == nil {
		return nil, fmt.Errorf("billing repository is required")
	}
	if strings.TrimSpace(config.TreasuryAddress) == "" {
		return nil, fmt.Errorf("treasury address is required")
	}
	treasury, err := normalizeTreasury(config.TreasuryAddress)
	if err != nil {
		return nil, err
	}
	config.TreasuryAddress = treasury
	if config.CreditsPerUSD < 0 {
		return nil, fmt.Errorf("creditsPerUSD must be positive, got %d", config.CreditsPerUSD)
	}

	defaults := ConfigDefaults()
	if config.CreditsPerUSD == 0 {
		config.CreditsPerUSD = defaults.CreditsPerUSD
	}
	if config.LockPrefix == "" {
		config.LockPrefix = defaults.LockPrefix
	}
	if config.ReleaseTimeout <= 0 {
		config.ReleaseTimeout = defaults.ReleaseTimeout
	}
	if config.Logger == nil {
		config.Logger = defaults.Logger
	}

	return &Service{
		config:   config,
		verifier: verifier,
		txm:      txm,
		users:    users,
		ledger:   ledger,
		lock:     lock,
		events:   events,
		logger:   config.Logger.With("component", "billing"),
	}, nil
}

// normalizeTreasury returns the long-zero EVM form of addr, which may be
// given as an EVM address or a dotted entity ID.
func normalizeTreasury(addr string) (string, error) {
	addr = strings.TrimSpace(addr)
	id, err := hederaid.ParseID(addr)
	if err != nil {
		id, err = hederaid.ParseEVMAddress(addr)
		if err != nil {
			return "", fmt.Errorf("treasury address: %w", err)
		}
	}
	return strings.ToLower(id.EVMAddress().Hex()), nil
}

// TopUp verifies the payment behind req and credits the wallet.
//
// Returns inbound.ErrInvalidTopUp for bad input, inbound.ErrAlreadyCredited
// when the reference was credited before, inbound.ErrVerificationInProgress
// when another request holds the reference, and *inbound.VerificationFailedError
// when the payment does not match.
func (s *Service) TopUp(ctx context.Context, req inbound.TopUpRequest) (_ *inbound.TopUpResult, err error) {
	ctx, span := otel.Tracer(tracerName).Start(ctx, "billing.topUp")
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
	}()

	wallet, reference, credits, err := s.validate(req)
	if err != nil {
		return nil, err
	}
	span.SetAttributes(
		attribute.String("billing.wallet", wallet),
		attribute.String("billing.reference", reference),
		attribute.Int64("billing.credits", credits),
	)
	logger := s.logger.With("wallet", wallet, "reference", reference)

	if err := s.ensureNotCredited(ctx, reference); err != nil {
		return nil, err
	}

	release, err := s.acquire(ctx, reference)
	if err != nil {
		return nil, err
	}
	defer release()

	// A concurrent request may have committed between the first check and the lock.
	if err := s.ensureNotCredited(ctx, reference); err != nil {
		return nil, err
	}

	result := s.verifier.Verify(ctx, entity.PaymentRequest{
		TransactionReference: reference,
		SenderAddress:        wallet,
		ReceiverAddress:      s.config.TreasuryAddress,
		ExpectedAmount:       req.Amount,
	})
	if !result.Verified {
		logger.Info("top-up payment not verified", "reason", result.Reason)
		return nil, &inbound.VerificationFailedError{Result: result}
	}
	transactionID := canonicalTransactionID(result.Transaction, reference)
	span.SetAttributes(attribute.String("billing.transaction_id", transactionID))

	var (
		record  *entity.BillingRecord
		user    *entity.User
		balance int64
	)
	err = s.txm.WithTransaction(ctx, func(tx pgx.Tx) error {
		var err error
		user, err = s.users.GetOrCreateByWallet(ctx, tx, wallet)
		if err != nil {
			return err
		}

		record, err = entity.NewBillingRecord(user.ID, credits, req.Amount, reference, entity.BillingStatusCompleted)
		if err != nil {
			return err
		}
		record.TransactionID = transactionID
		if url := strings.TrimSpace(req.ReceiptURL); url != "" {
			record.ReceiptURL = &url
		}
		record.PurchaseData = result.Transaction

		if err := s.ledger.SaveBillingRecord(ctx, tx, record); err != nil {
			return err
		}

		balance, err = s.users.AddCredits(ctx, tx, user.ID, credits)
		return err
	})
	if errors.Is(err, outbound.ErrDuplicateTxHash) {
		logger.Info("top-up already credited", "transactionId", transactionID)
		return nil, fmt.Errorf("%w: %s", inbound.ErrAlreadyCredited, reference)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to credit top-up %s: %w", reference, err)
	}

	if s.config.Metrics != nil {
		s.config.Metrics.RecordCredited(ctx, credits)
	}
	logger.Info("top-up credited", "credits", credits, "balance", balance, "recordId", record.ID)

	s.publish(ctx, outbound.PaymentCreditedEvent{
		UserID:               user.ID,
		Wallet:               wallet,
		TransactionReference: reference,
		TransactionID:        transactionID,
		Credits:              credits,
		Balance:              balance,
		AmountUSD:            req.Amount,
		CreditedAt:           record.CreatedAt,
	})

	return &inbound.TopUpResult{Record: record, Balance: balance}, nil
}

// History returns the wallet's billing records, newest first. Unknown wallets
// have an empty history.
func (s *Service) History(ctx context.Context, wallet string) ([]*entity.BillingRecord, error) {
	normalized, err := entity.NormalizeWallet(wallet)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", inbound.ErrInvalidWallet, err)
	}

	user, err := s.users.GetByWallet(ctx, normalized)
	if errors.Is(err, outbound.ErrUserNotFound) {
		return []*entity.BillingRecord{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load user %s: %w", normalized, err)
	}

	records, err := s.ledger.ListByUser(ctx, user.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to load billing history for %s: %w", normalized, err)
	}
	return records, nil
}

func (s *Service) validate(req inbound.TopUpRequest) (wallet, reference string, credits int64, err error) {
	wallet, err = entity.NormalizeWallet(req.Wallet)
	if err != nil {
		return "", "", 0, fmt.Errorf("%w: %v", inbound.ErrInvalidTopUp, err)
	}

	reference = entity.NormalizeReference(req.TransactionReference)
	if reference == "" {
		return "", "", 0, fmt.Errorf("%w: transaction reference is required", inbound.ErrInvalidTopUp)
	}

	if !req.Amount.IsPositive() {
		return "", "", 0, fmt.Errorf("%w: amount must be positive, got %s", inbound.ErrInvalidTopUp, req.Amount)
	}

	credits, err = entity.CreditsFor(req.Amount, s.config.CreditsPerUSD)
	if err != nil {
		return "", "", 0, fmt.Errorf("%w: %v", inbound.ErrInvalidTopUp, err)
	}
	return wallet, reference, credits, nil
}

func (s *Service) ensureNotCredited(ctx context.Context, reference string) error {
	exists, err := s.ledger.ExistsByTxHash(ctx, reference)
	if err != nil {
		return fmt.Errorf("failed to check ledger for %s: %w", reference, err)
	}
	if exists {
		return fmt.Errorf("%w: %s", inbound.ErrAlreadyCredited, reference)
	}
	return nil
}

// canonicalTransactionID returns the normalized id of the verified
// transaction, falling back to the submitted reference when the verifier did
// not report one.
func canonicalTransactionID(tx *entity.ConfirmedTransaction, reference string) string {
	if tx != nil {
		if id := entity.NormalizeReference(tx.ID); id != "" {
			return id
		}
	}
	return reference
}

// acquire takes the in-flight lock for reference. The returned func releases
// it and never fails; release errors are logged since the lock expires anyway.
func (s *Service) acquire(ctx context.Context, reference string) (func(), error) {
	if s.lock == nil {
		return func() {}, nil
	}

	key := shared.LockKey(s.config.LockPrefix, reference)
	release, err := s.lock.Acquire(ctx, key)
	if errors.Is(err, outbound.ErrLockHeld) {
		return nil, fmt.Errorf("%w: %s", inbound.ErrVerificationInProgress, reference)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to lock %s: %w", reference, err)
	}

	return func() {
		releaseCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.config.ReleaseTimeout)
		defer cancel()
		if err := release(releaseCtx); err != nil {
			s.logger.Warn("failed to release in-flight lock", "key", key, "error", err)
		}
	}, nil
}

// publish sends the event best effort. The credit is already committed.
func (s *Service) publish(ctx context.Context, event outbound.PaymentCreditedEvent) {
	if s.events == nil {
		return
	}
	if err := s.events.Publish(ctx, event); err != nil {
		s.logger.Error("failed to publish credited event",
			"wallet", event.Wallet,
			"reference", event.TransactionReference,
			"error", err)
	}
}

// CreditsFor reports how many credits a payment of amountUSD buys.
func (s *Service) CreditsFor(amountUSD decimal.Decimal) (int64, error) {
	return entity.CreditsFor(amountUSD, s.config.CreditsPerUSD)
}
