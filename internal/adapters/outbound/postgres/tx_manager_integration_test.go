//go:build integration

package postgres

import (
	"context"
	"errors"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"github.com/ideomind/unreal-dashboard/internal/domain/entity"
	"github.com/ideomind/unreal-dashboard/internal/ports/outbound"
)

const txWallet = "0x0000000000000000000000000000000000000bee"

func balanceOf(t *testing.T, r repos, wallet string) int64 {
	t.Helper()
	u, err := r.users.GetByWallet(context.Background(), wallet)
	if err != nil {
		t.Fatalf("GetByWallet: %v", err)
	}
	return u.Credits
}

func countRecords(t *testing.T, r repos, txHash string) int {
	t.Helper()
	var n int
	if err := r.pool.QueryRow(context.Background(),
		"SELECT COUNT(*) FROM billing_history WHERE tx_hash = $1", txHash).Scan(&n); err != nil {
		t.Fatalf("count records: %v", err)
	}
	return n
}

// creditInTx performs the ledger writes of a top-up inside tx.
func creditInTx(ctx context.Context, r repos, tx pgx.Tx, txHash string, credits int64) error {
	user, err := r.users.GetOrCreateByWallet(ctx, tx, txWallet)
	if err != nil {
		return err
	}
	rec, err := entity.NewBillingRecord(user.ID, credits, decimal.NewFromInt(credits).Shift(-2), txHash, entity.BillingStatusCompleted)
	if err != nil {
		return err
	}
	if err := r.billing.SaveBillingRecord(ctx, tx, rec); err != nil {
		return err
	}
	_, err = r.users.AddCredits(ctx, tx, user.ID, credits)
	return err
}

func TestTxManager_CommitsLedgerAndBalanceTogether(t *testing.T) {
	r := setupRepos(t)
	ctx := context.Background()

	err := r.txm.WithTransaction(ctx, func(tx pgx.Tx) error {
		return creditInTx(ctx, r, tx, "0.0.1-1-1", 500)
	})
	if err != nil {
		t.Fatalf("WithTransaction failed: %v", err)
	}

	if got := balanceOf(t, r, txWallet); got != 500 {
		t.Errorf("expected balance 500, got %d", got)
	}
	if n := countRecords(t, r, "0.0.1-1-1"); n != 1 {
		t.Errorf("expected 1 record, got %d", n)
	}
}

func TestTxManager_RollbackOnError(t *testing.T) {
	r := setupRepos(t)
	ctx := context.Background()
	createUser(t, r, txWallet)

	errAfterWrites := errors.New("event encoding failed")
	err := r.txm.WithTransaction(ctx, func(tx pgx.Tx) error {
		if err := creditInTx(ctx, r, tx, "0.0.1-2-1", 300); err != nil {
			return err
		}
		return errAfterWrites
	})
	if !errors.Is(err, errAfterWrites) {
		t.Fatalf("expected wrapped error, got %v", err)
	}

	if got := balanceOf(t, r, txWallet); got != 0 {
		t.Errorf("expected balance 0 after rollback, got %d", got)
	}
	if n := countRecords(t, r, "0.0.1-2-1"); n != 0 {
		t.Errorf("expected no record after rollback, got %d", n)
	}
}

func TestTxManager_DuplicateRollsBackCredits(t *testing.T) {
	r := setupRepos(t)
	ctx := context.Background()

	if err := r.txm.WithTransaction(ctx, func(tx pgx.Tx) error {
		return creditInTx(ctx, r, tx, "0.0.1-3-1", 100)
	}); err != nil {
		t.Fatalf("first credit: %v", err)
	}

	err := r.txm.WithTransaction(ctx, func(tx pgx.Tx) error {
		return creditInTx(ctx, r, tx, "0.0.1-3-1", 100)
	})
	if !errors.Is(err, outbound.ErrDuplicateTxHash) {
		t.Fatalf("expected duplicate tx hash, got %v", err)
	}
	if got := balanceOf(t, r, txWallet); got != 100 {
		t.Errorf("expected balance 100, got %d", got)
	}
}

func TestTxManager_PanicRollsBackAndRepanics(t *testing.T) {
	r := setupRepos(t)
	ctx := context.Background()
	createUser(t, r, txWallet)

	func() {
		defer func() {
			if rec := recover(); rec == nil {
				t.Fatal("expected panic to be re-raised")
			}
		}()
		_ = r.txm.WithTransaction(ctx, func(tx pgx.Tx) error {
			if err := creditInTx(ctx, r, tx, "0.0.1-4-1", 700); err != nil {
				return err
			}
			panic("handler bug")
		})
	}()

	if got := balanceOf(t, r, txWallet); got != 0 {
		t.Errorf("expected balance 0 after panic, got %d", got)
	}
	if n := countRecords(t, r, "0.0.1-4-1"); n != 0 {
		t.Errorf("expected no record after panic, got %d", n)
	}
}

func TestTxManager_ReadOnlyRejectsWrites(t *testing.T) {
	r := setupRepos(t)
	ctx := context.Background()
	createUser(t, r, txWallet)

	var exists bool
	err := r.txm.WithTransactionOptions(ctx, &TxOptions{AccessMode: pgx.ReadOnly}, func(tx pgx.Tx) error {
		return tx.QueryRow(ctx, "SELECT EXISTS(SELECT 1 FROM users WHERE wallet = $1)", txWallet).Scan(&exists)
	})
	if err != nil {
		t.Fatalf("read-only read failed: %v", err)
	}
	if !exists {
		t.Error("expected user to exist")
	}

	err = r.txm.WithTransactionOptions(ctx, &TxOptions{AccessMode: pgx.ReadOnly}, func(tx pgx.Tx) error {
		return creditInTx(ctx, r, tx, "0.0.1-5-1", 1)
	})
	if err == nil {
		t.Fatal("expected error for write in read-only transaction")
	}
}

func TestTxManager_SerializableIsolation(t *testing.T) {
	r := setupRepos(t)
	ctx := context.Background()

	err := r.txm.WithTransactionOptions(ctx, &TxOptions{IsoLevel: pgx.Serializable}, func(tx pgx.Tx) error {
		var level string
		if err := tx.QueryRow(ctx, "SHOW transaction_isolation").Scan(&level); err != nil {
			return err
		}
		if level != "serializable" {
			t.Errorf("expected serializable, got %q", level)
		}
		return creditInTx(ctx, r, tx, "0.0.1-6-1", 42)
	})
	if err != nil {
		t.Fatalf("serializable transaction failed: %v", err)
	}
	if got := balanceOf(t, r, txWallet); got != 42 {
		t.Errorf("expected balance 42, got %d", got)
	}
}

func TestTxManager_CanceledContext(t *testing.T) {
	r := setupRepos(t)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	called := false
	err := r.txm.WithTransaction(ctx, func(tx pgx.Tx) error {
		called = true
		return nil
	})
	if err == nil {
		t.Fatal("expected error for canceled context")
	}
	if called {
		t.Error("fn must not run when the transaction cannot begin")
	}
}
