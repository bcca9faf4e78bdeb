// store.go provides in-memory implementations of the user and billing
// repositories plus a TxManager over them.
//
// Transactions are serialized: WithTransaction holds an exclusive lock for the
// duration of fn, snapshots the data first, and restores the snapshot when fn
// fails. The pgx.Tx handed to fn is nil and ignored by the repositories.
//
// Data is lost on process restart. For production use, see the postgres adapter.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/ideomind/unreal-dashboard/internal/domain/entity"
	"github.com/ideomind/unreal-dashboard/internal/ports/outbound"
)

// Compile-time checks that Store implements the persistence ports.
var (
	_ outbound.UserRepository    = (*Store)(nil)
	_ outbound.BillingRepository = (*Store)(nil)
	_ outbound.TxManager         = (*Store)(nil)
)

// Store holds users and billing records in memory.
type Store struct {
	txMu sync.Mutex // serializes WithTransaction

	mu         sync.RWMutex
	users      map[string]entity.User // keyed by wallet
	records    []entity.BillingRecord
	nextUserID int64
	nextRecID  int64
	now        func() time.Time
}

// NewStore creates an empty store.
func NewStore() *Store {
	return &Store{
		users: make(map[string]entity.User),
		now:   func() time.Time { return time.Now().UTC() },
	}
}

type snapshot struct {
	users      map[string]entity.User
	records    []entity.BillingRecord
	nextUserID int64
	nextRecID  int64
}

// WithTransaction runs fn and discards its writes if it returns an error.
func (s *Store) WithTransaction(ctx context.Context, fn func(tx pgx.Tx) error) error {
	s.txMu.Lock()
	defer s.txMu.Unlock()

	if err := ctx.Err(); err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	snap := s.snapshot()
	if err := fn(nil); err != nil {
		s.restore(snap)
		return err
	}
	return nil
}

func (s *Store) snapshot() snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()

	users := make(map[string]entity.User, len(s.users))
	for k, v := range s.users {
		users[k] = v
	}
	return snapshot{
		users:      users,
		records:    append([]entity.BillingRecord(nil), s.records...),
		nextUserID: s.nextUserID,
		nextRecID:  s.nextRecID,
	}
}

func (s *Store) restore(snap snapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.users = snap.users
	s.records = snap.records
	s.nextUserID = snap.nextUserID
	s.nextRecID = snap.nextRecID
}

// GetOrCreateByWallet returns the user owning wallet, creating it if needed.
func (s *Store) GetOrCreateByWallet(ctx context.Context, _ pgx.Tx, wallet string) (*entity.User, error) {
	u, err := entity.NewUser(wallet)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if existing, ok := s.users[u.Wallet]; ok {
		return &existing, nil
	}

	s.nextUserID++
	now := s.now()
	u.ID = s.nextUserID
	u.CreatedAt = now
	u.UpdatedAt = now
	s.users[u.Wallet] = *u
	return u, nil
}

// GetByWallet returns outbound.ErrUserNotFound when the wallet is unknown.
func (s *Store) GetByWallet(ctx context.Context, wallet string) (*entity.User, error) {
	normalized, err := entity.NormalizeWallet(wallet)
	if err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	u, ok := s.users[normalized]
	if !ok {
		return nil, outbound.ErrUserNotFound
	}
	return &u, nil
}

// AddCredits increments the user's balance and returns the new balance.
func (s *Store) AddCredits(ctx context.Context, _ pgx.Tx, userID int64, credits int64) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for wallet, u := range s.users {
		if u.ID != userID {
			continue
		}
		if u.Credits+credits < 0 {
			return 0, fmt.Errorf("insufficient credits for user %d", userID)
		}
		u.Credits += credits
		u.UpdatedAt = s.now()
		s.users[wallet] = u
		return u.Credits, nil
	}
	return 0, fmt.Errorf("user %d: %w", userID, outbound.ErrUserNotFound)
}

// SaveBillingRecord stores rec and fills its ID and CreatedAt.
func (s *Store) SaveBillingRecord(ctx context.Context, _ pgx.Tx, rec *entity.BillingRecord) error {
	if rec == nil {
		return fmt.Errorf("billing record is nil")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, r := range s.records {
		if r.TxHash == rec.TxHash {
			return fmt.Errorf("%w: %s", outbound.ErrDuplicateTxHash, rec.TxHash)
		}
		if rec.TransactionID != "" && r.TransactionID == rec.TransactionID {
			return fmt.Errorf("%w: %s", outbound.ErrDuplicateTxHash, rec.TransactionID)
		}
	}

	s.nextRecID++
	rec.ID = s.nextRecID
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = s.now()
	}
	s.records = append(s.records, *rec)
	return nil
}

// ExistsByTxHash reports whether the reference was already recorded as a
// submitted reference or as a canonical transaction id.
func (s *Store) ExistsByTxHash(ctx context.Context, txHash string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, r := range s.records {
		if r.TxHash == txHash || r.TransactionID == txHash {
			return true, nil
		}
	}
	return false, nil
}

// ListByUser returns the user's records, newest first.
func (s *Store) ListByUser(ctx context.Context, userID int64) ([]*entity.BillingRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]*entity.BillingRecord, 0)
	for _, r := range s.records {
		if r.UserID == userID {
			rc := r
			result = append(result, &rc)
		}
	}
	sort.SliceStable(result, func(i, j int) bool {
		if result[i].CreatedAt.Equal(result[j].CreatedAt) {
			return result[i].ID > result[j].ID
		}
		return result[i].CreatedAt.After(result[j].CreatedAt)
	})
	return result, nil
}

// DeleteByUser removes the user's records and returns how many were deleted.
func (s *Store) DeleteByUser(ctx context.Context, userID int64) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	kept := s.records[:0]
	var deleted int64
	for _, r := range s.records {
		if r.UserID == userID {
			deleted++
			continue
		}
		kept = append(kept, r)
	}
	s.records = kept
	return deleted, nil
}
