package outbound

import (
	"context"

	"github.com/jackc/pgx/v5"
)

// TxManager runs a function inside a database transaction.
// Services use it to write the billing record and the credit balance
// atomically across repositories.
type TxManager interface {
	// WithTransaction commits if fn returns nil and rolls back otherwise.
	WithTransaction(ctx context.Context, fn func(tx pgx.Tx) error) error
}
