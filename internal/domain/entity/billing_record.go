package entity

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// BillingStatus is the lifecycle state of a billing record.
type BillingStatus string

// Billing statuses.
const (
	BillingStatusCompleted BillingStatus = "completed"
	BillingStatusPending   BillingStatus = "pending"
	BillingStatusFailed    BillingStatus = "failed"
)

// Valid reports whether s is a known status.
func (s BillingStatus) Valid() bool {
	switch s {
	case BillingStatusCompleted, BillingStatusPending, BillingStatusFailed:
		return true
	default:
		return false
	}
}

// BillingRecord is one credit purchase in a user's billing history.
// TxHash is the reference the client submitted. TransactionID is the
// canonical id of the verified transaction. Both are unique across all
// records, so a transaction is credited at most once whichever way it was
// referenced.
type BillingRecord struct {
	ID            int64                 `json:"id"`
	UserID        int64                 `json:"user"`
	Credits       int64                 `json:"credits"`
	AmountUSD     decimal.Decimal       `json:"amount_usd"`
	TxHash        string                `json:"tx_hash"`
	TransactionID string                `json:"transaction_id,omitempty"`
	ReceiptURL    *string               `json:"receipt_url"`
	PurchaseData  *ConfirmedTransaction `json:"purchase_data"`
	Status        BillingStatus         `json:"status"`
	CreatedAt     time.Time             `json:"created_at"`
}

// NewBillingRecord creates a BillingRecord with validation.
func NewBillingRecord(userID, credits int64, amountUSD decimal.Decimal, txHash string, status BillingStatus) (*BillingRecord, error) {
	r := &BillingRecord{
		UserID:    userID,
		Credits:   credits,
		AmountUSD: amountUSD,
		TxHash:    txHash,
		Status:    status,
	}
	if err := r.validate(); err != nil {
		return nil, err
	}
	return r, nil
}

func (r *BillingRecord) validate() error {
	if r.UserID <= 0 {
		return fmt.Errorf("userID must be positive, got %d", r.UserID)
	}
	if r.Credits <= 0 {
		return fmt.Errorf("credits must be positive, got %d", r.Credits)
	}
	if !r.AmountUSD.IsPositive() {
		return fmt.Errorf("amountUSD must be positive, got %s", r.AmountUSD)
	}
	if r.TxHash == "" {
		return fmt.Errorf("txHash must not be empty")
	}
	if !r.Status.Valid() {
		return fmt.Errorf("unknown billing status %q", r.Status)
	}
	return nil
}

// CreditsFor converts a USD amount to whole credits at the given rate.
// Fractions of a credit are dropped.
func CreditsFor(amountUSD decimal.Decimal, creditsPerUSD int64) (int64, error) {
	if creditsPerUSD <= 0 {
		return 0, fmt.Errorf("creditsPerUSD must be positive, got %d", creditsPerUSD)
	}
	credits := amountUSD.Mul(decimal.NewFromInt(creditsPerUSD)).Floor()
	if !credits.IsPositive() {
		return 0, fmt.Errorf("amount %s buys no credits", amountUSD)
	}
	return credits.IntPart(), nil
}
