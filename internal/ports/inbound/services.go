// Package inbound contains the primary/inbound ports.
// These interfaces define the use cases that the application exposes.
package inbound

import (
	"context"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/ideomind/unreal-dashboard/internal/domain/entity"
)

// PaymentVerifier checks an on-chain stablecoin transfer against an expected payment.
type PaymentVerifier interface {
	// Verify never fails: every outcome, including unexpected errors, is
	// reported through the returned result.
	Verify(ctx context.Context, req entity.PaymentRequest) *entity.VerificationResult
}

// Top-up failures callers may branch on.
var (
	ErrInvalidTopUp           = errors.New("invalid top-up request")
	ErrInvalidWallet          = errors.New("invalid wallet address")
	ErrAlreadyCredited        = errors.New("transaction already credited")
	ErrVerificationInProgress = errors.New("verification already in progress for transaction")
)

// VerificationFailedError is returned by TopUp when the payment did not verify.
type VerificationFailedError struct {
	Result *entity.VerificationResult
}

func (e *VerificationFailedError) Error() string {
	return fmt.Sprintf("payment verification failed: %s", e.Result.Reason)
}

// TopUpRequest is a credit purchase paid by an on-chain transfer to the treasury.
type TopUpRequest struct {
	Wallet               string
	TransactionReference string
	Amount               decimal.Decimal
	ReceiptURL           string
}

// TopUpResult describes a credited purchase.
type TopUpResult struct {
	Record  *entity.BillingRecord `json:"record"`
	Balance int64                 `json:"balance"`
}

// BillingService credits users for verified payments exactly once.
type BillingService interface {
	TopUp(ctx context.Context, req TopUpRequest) (*TopUpResult, error)

	// History returns the wallet's billing records, newest first.
	History(ctx context.Context, wallet string) ([]*entity.BillingRecord, error)

	// CreditsFor reports how many credits a payment of amountUSD buys.
	CreditsFor(amountUSD decimal.Decimal) (int64, error)
}

// HealthChecker defines the interface for services that can report readiness and liveness.
type HealthChecker interface {
	// IsReady returns true when the service is ready to handle traffic.
	// Used by ECS/Kubernetes readiness probes during rolling deployments.
	IsReady() bool

	// IsHealthy returns true when the service is operating normally.
	// Used by ECS/Kubernetes liveness probes to detect stuck services.
	IsHealthy() bool
}
