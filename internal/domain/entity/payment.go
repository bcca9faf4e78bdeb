package entity

import (
	"errors"
	"fmt"
	"math"
	"regexp"
	"strings"

	"github.com/shopspring/decimal"
)

// Reasons reported on unverified results.
const (
	ReasonInvalidAccounts = "invalid account addresses"
	ReasonInvalidAmount   = "invalid expected amount"
	ReasonNotFound        = "transaction not found"
	ReasonMaxRetries      = "max retries exceeded"
	ReasonNoTransfers     = "no transfers found for this token"
	ReasonMismatch        = "transfer amounts or accounts do not match"
	ReasonMalformed       = "malformed mirror node response"
)

// TransactionResultSuccess is the mirror node result code of a successful transaction.
const TransactionResultSuccess = "SUCCESS"

// ErrMissingFields is returned by PaymentRequest.Validate.
var ErrMissingFields = errors.New("missing required fields")

var (
	// 0.0.1234@1700000000.000000001
	atTransactionID = regexp.MustCompile(`^(\d+\.\d+\.\d+)@(\d+)\.(\d+)$`)
	bareEVMHash     = regexp.MustCompile(`^[0-9a-fA-F]{64}$`)
)

// NormalizeReference returns the canonical form of a transaction reference:
// hex hashes are lowercased, a bare 64-hex EVM hash gains its 0x prefix and
// ledger-native ids use the 0.0.1234-1700000000-000000001 form. Two references to the same transaction
// normalize to the same string.
func NormalizeReference(ref string) string {
	ref = strings.TrimSpace(ref)
	if m := atTransactionID.FindStringSubmatch(ref); m != nil {
		return m[1] + "-" + m[2] + "-" + m[3]
	}
	if strings.HasPrefix(ref, "0x") || strings.HasPrefix(ref, "0X") {
		return "0x" + strings.ToLower(ref[2:])
	}
	if bareEVMHash.MatchString(ref) {
		return "0x" + strings.ToLower(ref)
	}
	return ref
}

// PaymentRequest describes a stablecoin transfer a caller expects to find on-chain.
type PaymentRequest struct {
	TransactionReference string
	SenderAddress        string
	ReceiverAddress      string
	ExpectedAmount       decimal.Decimal
}

// Validate checks that every field is present. Address and amount semantics
// are checked by the verifier so they surface as verification reasons.
func (r PaymentRequest) Validate() error {
	if strings.TrimSpace(r.TransactionReference) == "" ||
		strings.TrimSpace(r.SenderAddress) == "" ||
		strings.TrimSpace(r.ReceiverAddress) == "" ||
		r.ExpectedAmount.IsZero() {
		return ErrMissingFields
	}
	return nil
}

// ToSmallestUnit converts a human-readable token amount to its integer base
// unit (amount * 10^decimals). The conversion is exact: amounts with more
// fractional digits than the token supports, non-positive amounts and amounts
// beyond int64 are rejected.
func ToSmallestUnit(amount decimal.Decimal, decimals int32) (int64, error) {
	if !amount.IsPositive() {
		return 0, fmt.Errorf("amount must be positive, got %s", amount)
	}
	if decimals < 0 {
		return 0, fmt.Errorf("decimals must be non-negative, got %d", decimals)
	}

	units := amount.Shift(decimals)
	if !units.Equal(units.Truncate(0)) {
		return 0, fmt.Errorf("amount %s has more than %d decimal places", amount, decimals)
	}
	if units.GreaterThan(decimal.NewFromInt(math.MaxInt64)) {
		return 0, fmt.Errorf("amount %s overflows int64 base units", amount)
	}
	return units.IntPart(), nil
}

// TokenTransfer is one leg of a token movement attached to a transaction.
// Amount is signed and expressed in the token's smallest unit.
type TokenTransfer struct {
	TokenID    string `json:"token_id"`
	Account    string `json:"account"`
	Amount     int64  `json:"amount"`
	IsApproval bool   `json:"is_approval"`
}

// ConfirmedTransaction is the snapshot returned for a verified payment.
type ConfirmedTransaction struct {
	ID        string          `json:"id"`
	Timestamp string          `json:"timestamp"`
	Sender    string          `json:"sender"`
	Receiver  string          `json:"receiver"`
	Amount    decimal.Decimal `json:"amount"`
	TokenID   string          `json:"tokenId"`
}

// MismatchDetails carries the diagnostic data of a failed match.
type MismatchDetails struct {
	SenderMatches   bool            `json:"senderMatches"`
	ReceiverMatches bool            `json:"receiverMatches"`
	FoundTransfers  []TokenTransfer `json:"foundTransfers"`
}

// VerificationStage names the step a verification ended in.
type VerificationStage string

// Stages of a verification, in order.
const (
	StageResolving         VerificationStage = "resolving"
	StageLookingUp         VerificationStage = "looking_up"
	StageValidatingStatus  VerificationStage = "validating_status"
	StageMatchingTransfers VerificationStage = "matching_transfers"
	StageVerified          VerificationStage = "verified"
)

// VerificationResult is the outcome of a single verification call.
// Verified=false with a nil Transaction is the uniform failure signal;
// Reason and Details are for messaging only.
type VerificationResult struct {
	Verified    bool                  `json:"verified"`
	Transaction *ConfirmedTransaction `json:"transaction,omitempty"`
	Reason      string                `json:"error,omitempty"`
	Details     *MismatchDetails      `json:"details,omitempty"`

	// Stage is the last stage reached.
	Stage VerificationStage `json:"-"`
	// Attempts is the number of lookups performed.
	Attempts int `json:"-"`
}

// Verified builds a successful result.
func Verified(tx *ConfirmedTransaction, attempts int) *VerificationResult {
	return &VerificationResult{
		Verified:    true,
		Transaction: tx,
		Stage:       StageVerified,
		Attempts:    attempts,
	}
}

// Unverified builds a failed result.
func Unverified(stage VerificationStage, reason string, attempts int) *VerificationResult {
	return &VerificationResult{
		Reason:   reason,
		Stage:    stage,
		Attempts: attempts,
	}
}

// FailedStatusReason formats the reason for a transaction that did not succeed.
func FailedStatusReason(status string) string {
	return "transaction failed with status: " + status
}
