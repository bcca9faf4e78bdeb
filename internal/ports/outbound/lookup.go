package outbound

import (
	"context"
	"errors"

	"github.com/ideomind/unreal-dashboard/internal/domain/entity"
)

// Lookup failure kinds. Errors not matching any of these are transient.
var (
	// ErrTransactionNotFound means the read replica does not know the reference (yet).
	ErrTransactionNotFound = errors.New("transaction not found")

	// ErrLookupRejected means the API refused the request (4xx other than 404 and 429).
	ErrLookupRejected = errors.New("lookup rejected")

	// ErrMalformedResponse means the API answered with a body that does not match its schema.
	ErrMalformedResponse = errors.New("malformed response")
)

// MirrorTransaction is a finalized transaction as reported by the mirror node.
type MirrorTransaction struct {
	// TransactionID is the ledger-native id, e.g. "0.0.1234-1700000000-000000001".
	TransactionID string

	// Result is the execution status code, "SUCCESS" for a successful transaction.
	Result string

	// ConsensusTimestamp is the finalization time in "seconds.nanoseconds" form.
	ConsensusTimestamp string

	// TokenTransfers holds every token transfer leg of the transaction, for all tokens.
	TokenTransfers []entity.TokenTransfer
}

// TransactionLookup retrieves transaction details from a ledger read API.
type TransactionLookup interface {
	// LookupTransaction fetches a transaction by reference. The reference may
	// be an EVM transaction hash or a ledger-native transaction id.
	// Performs a single attempt; callers own retries.
	LookupTransaction(ctx context.Context, reference string) (*MirrorTransaction, error)
}
