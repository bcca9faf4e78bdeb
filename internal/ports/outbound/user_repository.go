package outbound

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"

	"github.com/ideomind/unreal-dashboard/internal/domain/entity"
)

// ErrUserNotFound is returned when no user exists for a wallet.
var ErrUserNotFound = errors.New("user not found")

// UserRepository defines the interface for user persistence.
type UserRepository interface {
	// GetOrCreateByWallet returns the user owning wallet, creating it with a
	// zero balance if needed. Runs inside tx.
	GetOrCreateByWallet(ctx context.Context, tx pgx.Tx, wallet string) (*entity.User, error)

	// GetByWallet returns ErrUserNotFound when the wallet is unknown.
	GetByWallet(ctx context.Context, wallet string) (*entity.User, error)

	// AddCredits increments the user's balance and returns the new balance.
	AddCredits(ctx context.Context, tx pgx.Tx, userID int64, credits int64) (int64, error)
}
