package outbound

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

// EventType represents the type of event.
type EventType string

// Event type constants.
const (
	EventTypePaymentCredited EventType = "payment_credited"
)

// Event is the interface that all event types implement.
type Event interface {
	// EventType returns the type of the event.
	EventType() EventType
	// GetWallet returns the wallet the event concerns.
	GetWallet() string
	// GetDeduplicationKey returns a key unique per logical event.
	GetDeduplicationKey() string
}

// PaymentCreditedEvent is published after a verified top-up was credited.
type PaymentCreditedEvent struct {
	// UserID is the credited user.
	UserID int64 `json:"userId"`

	// Wallet is the user's wallet address.
	Wallet string `json:"wallet"`

	// TransactionReference is the reference the user submitted.
	TransactionReference string `json:"transactionReference"`

	// TransactionID is the ledger-native transaction id.
	TransactionID string `json:"transactionId"`

	// Credits is the number of credits added.
	Credits int64 `json:"credits"`

	// Balance is the user's credit balance after the top-up.
	Balance int64 `json:"balance"`

	// AmountUSD is the verified payment amount.
	AmountUSD decimal.Decimal `json:"amountUsd"`

	// CreditedAt is when the ledger entry was written.
	CreditedAt time.Time `json:"creditedAt"`
}

func (e PaymentCreditedEvent) EventType() EventType        { return EventTypePaymentCredited }
func (e PaymentCreditedEvent) GetWallet() string           { return e.Wallet }
func (e PaymentCreditedEvent) GetDeduplicationKey() string { return e.TransactionReference }

// EventSink defines the interface for publishing domain events.
type EventSink interface {
	// Publish publishes an event.
	Publish(ctx context.Context, event Event) error

	// Close closes the sink and releases any resources.
	Close() error
}
