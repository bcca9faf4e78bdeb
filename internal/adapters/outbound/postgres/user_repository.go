package postgres

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ideomind/unreal-dashboard/internal/domain/entity"
	"github.com/ideomind/unreal-dashboard/internal/ports/outbound"
)

// Compile-time check that UserRepository implements outbound.UserRepository
var _ outbound.UserRepository = (*UserRepository)(nil)

const userColumns = `id, wallet, email, username, credits, created_at, updated_at`

// UserRepository is a PostgreSQL implementation of the outbound.UserRepository port.
type UserRepository struct {
	pool   *pgxpool.Pool
	logger *slog.Logger
}

// NewUserRepository creates a new PostgreSQL User repository.
func NewUserRepository(pool *pgxpool.Pool, logger *slog.Logger) (*UserRepository, error) {
	if pool == nil {
		return nil, fmt.Errorf("database pool cannot be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &UserRepository{
		pool:   pool,
		logger: logger.With("component", "user-repository"),
	}, nil
}

// GetOrCreateByWallet returns the user owning wallet, creating it with a zero
// balance if needed. The no-op DO UPDATE makes RETURNING yield the existing
// row on conflict.
func (r *UserRepository) GetOrCreateByWallet(ctx context.Context, tx pgx.Tx, wallet string) (*entity.User, error) {
	u, err := entity.NewUser(wallet)
	if err != nil {
		return nil, err
	}

	row := tx.QueryRow(ctx,
		`INSERT INTO users (wallet)
		 VALUES ($1)
		 ON CONFLICT (wallet) DO UPDATE SET wallet = EXCLUDED.wallet
		 RETURNING `+userColumns,
		u.Wallet)

	user, err := scanUser(row)
	if err != nil {
		return nil, fmt.Errorf("failed to get or create user %s: %w", u.Wallet, err)
	}
	return user, nil
}

// GetByWallet returns outbound.ErrUserNotFound when the wallet is unknown.
func (r *UserRepository) GetByWallet(ctx context.Context, wallet string) (*entity.User, error) {
	normalized, err := entity.NormalizeWallet(wallet)
	if err != nil {
		return nil, err
	}

	row := r.pool.QueryRow(ctx,
		`SELECT `+userColumns+` FROM users WHERE wallet = $1`, normalized)

	user, err := scanUser(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, outbound.ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get user %s: %w", normalized, err)
	}
	return user, nil
}

// AddCredits increments the user's balance and returns the new balance.
// The credits >= 0 check constraint rejects overdrafts.
func (r *UserRepository) AddCredits(ctx context.Context, tx pgx.Tx, userID int64, credits int64) (int64, error) {
	var balance int64
	err := tx.QueryRow(ctx,
		`UPDATE users
		 SET credits = credits + $2, updated_at = NOW()
		 WHERE id = $1
		 RETURNING credits`,
		userID, credits).Scan(&balance)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, fmt.Errorf("user %d: %w", userID, outbound.ErrUserNotFound)
	}
	if err != nil {
		return 0, fmt.Errorf("failed to add %d credits to user %d: %w", credits, userID, err)
	}

	r.logger.Debug("credits added", "userId", userID, "credits", credits, "balance", balance)
	return balance, nil
}

func scanUser(row pgx.Row) (*entity.User, error) {
	var u entity.User
	if err := row.Scan(&u.ID, &u.Wallet, &u.Email, &u.Username, &u.Credits, &u.CreatedAt, &u.UpdatedAt); err != nil {
		return nil, err
	}
	return &u, nil
}
