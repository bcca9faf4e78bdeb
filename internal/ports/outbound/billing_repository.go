package outbound

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"

	"github.com/ideomind/unreal-dashboard/internal/domain/entity"
)

// ErrDuplicateTxHash is returned when a billing record for the same
// transaction reference already exists.
var ErrDuplicateTxHash = errors.New("billing record already exists for transaction")

// BillingRepository defines the interface for the billing ledger.
type BillingRepository interface {
	// SaveBillingRecord inserts rec inside tx and fills its ID and CreatedAt.
	// Returns ErrDuplicateTxHash if rec.TxHash or a non-empty
	// rec.TransactionID was recorded before.
	SaveBillingRecord(ctx context.Context, tx pgx.Tx, rec *entity.BillingRecord) error

	// ExistsByTxHash reports whether the reference was already recorded,
	// either as a submitted reference or as a canonical transaction id.
	ExistsByTxHash(ctx context.Context, txHash string) (bool, error)

	// ListByUser returns the user's records, newest first.
	ListByUser(ctx context.Context, userID int64) ([]*entity.BillingRecord, error)

	// DeleteByUser removes the user's records and returns how many were deleted.
	DeleteByUser(ctx context.Context, userID int64) (int64, error)
}
