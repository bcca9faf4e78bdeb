package memory

import (
	"context"
	"fmt"
	"sync"

	"github.com/ideomind/unreal-dashboard/internal/domain/entity"
	"github.com/ideomind/unreal-dashboard/internal/ports/outbound"
)

// Compile-time check that TransactionLookup implements outbound.TransactionLookup
var _ outbound.TransactionLookup = (*TransactionLookup)(nil)

// TransactionLookup serves transactions from a map keyed by normalized
// reference. Unknown references return outbound.ErrTransactionNotFound.
type TransactionLookup struct {
	mu     sync.RWMutex
	txs    map[string]outbound.MirrorTransaction
	errs   map[string]error
	lookup map[string]int
}

// NewTransactionLookup creates an empty in-memory lookup.
func NewTransactionLookup() *TransactionLookup {
	return &TransactionLookup{
		txs:    make(map[string]outbound.MirrorTransaction),
		errs:   make(map[string]error),
		lookup: make(map[string]int),
	}
}

// Add registers tx under each of the given references. When no reference is
// given the transaction id is used.
func (l *TransactionLookup) Add(tx outbound.MirrorTransaction, references ...string) {
	if len(references) == 0 {
		references = []string{tx.TransactionID}
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	for _, ref := range references {
		key := entity.NormalizeReference(ref)
		l.txs[key] = tx
		delete(l.errs, key)
	}
}

// Fail makes lookups of reference return err.
func (l *TransactionLookup) Fail(reference string, err error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.errs[entity.NormalizeReference(reference)] = err
}

// LookupTransaction returns the registered transaction or error for reference.
func (l *TransactionLookup) LookupTransaction(ctx context.Context, reference string) (*outbound.MirrorTransaction, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	key := entity.NormalizeReference(reference)

	l.mu.Lock()
	defer l.mu.Unlock()
	l.lookup[key]++

	if err, ok := l.errs[key]; ok {
		return nil, err
	}
	tx, ok := l.txs[key]
	if !ok {
		return nil, fmt.Errorf("%w: %s", outbound.ErrTransactionNotFound, reference)
	}

	tx.TokenTransfers = append([]entity.TokenTransfer(nil), tx.TokenTransfers...)
	return &tx, nil
}

// Calls returns how many lookups were made for reference.
func (l *TransactionLookup) Calls(reference string) int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.lookup[entity.NormalizeReference(reference)]
}
