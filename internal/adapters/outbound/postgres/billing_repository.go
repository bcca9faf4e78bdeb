package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/ideomind/unreal-dashboard/internal/domain/entity"
	"github.com/ideomind/unreal-dashboard/internal/ports/outbound"
)

// Compile-time check that BillingRepository implements outbound.BillingRepository
var _ outbound.BillingRepository = (*BillingRepository)(nil)

const (
	billingTxHashConstraint        = "billing_history_tx_hash_key"
	billingTransactionIDConstraint = "billing_history_transaction_id_key"
)

// BillingRepository is a PostgreSQL implementation of the outbound.BillingRepository port.
// Amounts travel as text so NUMERIC precision is never rounded through float64.
type BillingRepository struct {
	pool   *pgxpool.Pool
	logger *slog.Logger
}

// NewBillingRepository creates a new PostgreSQL billing repository.
func NewBillingRepository(pool *pgxpool.Pool, logger *slog.Logger) (*BillingRepository, error) {
	if pool == nil {
		return nil, fmt.Errorf("database pool cannot be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &BillingRepository{
		pool:   pool,
		logger: logger.With("component", "billing-repository"),
	}, nil
}

// SaveBillingRecord inserts rec inside tx and fills its ID and CreatedAt.
// A second record for the same reference or the same canonical transaction id
// returns outbound.ErrDuplicateTxHash.
func (r *BillingRepository) SaveBillingRecord(ctx context.Context, tx pgx.Tx, rec *entity.BillingRecord) error {
	if rec == nil {
		return fmt.Errorf("billing record is nil")
	}

	var purchaseData []byte
	if rec.PurchaseData != nil {
		data, err := marshalJSONB(rec.PurchaseData)
		if err != nil {
			return err
		}
		purchaseData = data
	}

	err := tx.QueryRow(ctx,
		`INSERT INTO billing_history (user_id, credits, amount_usd, tx_hash, transaction_id, receipt_url, purchase_data, status)
		 VALUES ($1, $2, $3::numeric, $4, NULLIF($5, ''), $6, $7, $8)
		 RETURNING id, created_at`,
		rec.UserID, rec.Credits, rec.AmountUSD.String(), rec.TxHash, rec.TransactionID, rec.ReceiptURL, purchaseData, string(rec.Status),
	).Scan(&rec.ID, &rec.CreatedAt)

	if isUniqueViolation(err) {
		switch constraintName(err) {
		case "", billingTxHashConstraint:
			return fmt.Errorf("%w: %s", outbound.ErrDuplicateTxHash, rec.TxHash)
		case billingTransactionIDConstraint:
			return fmt.Errorf("%w: %s", outbound.ErrDuplicateTxHash, rec.TransactionID)
		}
	}
	if isForeignKeyViolation(err) {
		return fmt.Errorf("user %d: %w", rec.UserID, outbound.ErrUserNotFound)
	}
	if err != nil {
		return fmt.Errorf("failed to save billing record for %s: %w", rec.TxHash, err)
	}

	r.logger.Debug("billing record saved", "id", rec.ID, "userId", rec.UserID, "txHash", rec.TxHash)
	return nil
}

// ExistsByTxHash reports whether the reference was already recorded as a
// submitted reference or as a canonical transaction id.
func (r *BillingRepository) ExistsByTxHash(ctx context.Context, txHash string) (bool, error) {
	var exists bool
	err := r.pool.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM billing_history WHERE tx_hash = $1 OR transaction_id = $1)`, txHash,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check billing record for %s: %w", txHash, err)
	}
	return exists, nil
}

// ListByUser returns the user's records, newest first.
func (r *BillingRepository) ListByUser(ctx context.Context, userID int64) ([]*entity.BillingRecord, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, user_id, credits, amount_usd::text, tx_hash, COALESCE(transaction_id, ''), receipt_url, purchase_data, status, created_at
		 FROM billing_history
		 WHERE user_id = $1
		 ORDER BY created_at DESC, id DESC`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list billing records for user %d: %w", userID, err)
	}

	records, err := pgx.CollectRows(rows, scanBillingRecord)
	if err != nil {
		return nil, fmt.Errorf("failed to scan billing records for user %d: %w", userID, err)
	}
	return records, nil
}

// DeleteByUser removes the user's records and returns how many were deleted.
func (r *BillingRepository) DeleteByUser(ctx context.Context, userID int64) (int64, error) {
	tag, err := r.pool.Exec(ctx, `DELETE FROM billing_history WHERE user_id = $1`, userID)
	if err != nil {
		return 0, fmt.Errorf("failed to delete billing records for user %d: %w", userID, err)
	}
	return tag.RowsAffected(), nil
}

func scanBillingRecord(row pgx.CollectableRow) (*entity.BillingRecord, error) {
	var (
		rec          entity.BillingRecord
		amount       string
		purchaseData []byte
		status       string
	)
	if err := row.Scan(&rec.ID, &rec.UserID, &rec.Credits, &amount, &rec.TxHash, &rec.TransactionID,
		&rec.ReceiptURL, &purchaseData, &status, &rec.CreatedAt); err != nil {
		return nil, err
	}

	parsed, err := decimal.NewFromString(amount)
	if err != nil {
		return nil, fmt.Errorf("invalid amount_usd %q for record %d: %w", amount, rec.ID, err)
	}
	rec.AmountUSD = parsed
	rec.Status = entity.BillingStatus(status)

	if len(purchaseData) > 0 {
		var tx entity.ConfirmedTransaction
		if err := json.Unmarshal(purchaseData, &tx); err != nil {
			return nil, fmt.Errorf("invalid purchase_data for record %d: %w", rec.ID, err)
		}
		rec.PurchaseData = &tx
	}
	return &rec, nil
}
