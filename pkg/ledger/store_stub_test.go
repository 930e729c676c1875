package ledger

import (
	"context"
	"sync"
	"testing"
)

// stubStore is an in-memory Store. The unique (account, transaction) insert
// is guarded by a mutex, mirroring the conditional write the real store gets
// from its unique constraint.
type stubStore struct {
	mu           sync.Mutex
	accounts     map[string]bool
	transactions []Transaction
	applied      map[string]bool

	failEnsure bool
	failSum    bool
	failInsert error
}

func newStubStore() *stubStore {
	return &stubStore{
		accounts: make(map[string]bool),
		applied:  make(map[string]bool),
	}
}

func (store *stubStore) WithTx(ctx context.Context, fn func(ctx context.Context, txStore Store) error) error {
	return fn(ctx, store)
}

func (store *stubStore) EnsureAccount(ctx context.Context, accountID AccountID) error {
	if store.failEnsure {
		return WrapError("store", "account", "lookup", errStubFailure)
	}
	store.mu.Lock()
	defer store.mu.Unlock()
	store.accounts[accountID.String()] = true
	return nil
}

func (store *stubStore) TransactionApplied(ctx context.Context, accountID AccountID, transactionID TransactionID) (bool, error) {
	store.mu.Lock()
	defer store.mu.Unlock()
	return store.applied[appliedKey(accountID, transactionID)], nil
}

func (store *stubStore) SumDeltas(ctx context.Context, accountID AccountID) (int64, error) {
	if store.failSum {
		return 0, WrapError("store", "balance", "sum_deltas", errStubFailure)
	}
	store.mu.Lock()
	defer store.mu.Unlock()
	var total int64
	for _, transaction := range store.transactions {
		if transaction.AccountID == accountID {
			total += transaction.Delta.Int64()
		}
	}
	return total, nil
}

func (store *stubStore) InsertTransaction(ctx context.Context, transaction Transaction) error {
	if store.failInsert != nil {
		return store.failInsert
	}
	store.mu.Lock()
	defer store.mu.Unlock()
	key := appliedKey(transaction.AccountID, transaction.TransactionID)
	if store.applied[key] {
		return WrapError("store", "transaction", "duplicate", ErrDuplicateTransaction)
	}
	store.applied[key] = true
	store.transactions = append(store.transactions, transaction)
	return nil
}

func (store *stubStore) ListTransactions(ctx context.Context, accountID AccountID, beforeUnixUTC int64, limit int) ([]Transaction, error) {
	store.mu.Lock()
	defer store.mu.Unlock()
	listed := make([]Transaction, 0, limit)
	for index := len(store.transactions) - 1; index >= 0 && len(listed) < limit; index-- {
		transaction := store.transactions[index]
		if transaction.AccountID != accountID {
			continue
		}
		if beforeUnixUTC != 0 && transaction.AppliedAtUnixUTC >= beforeUnixUTC {
			continue
		}
		listed = append(listed, transaction)
	}
	return listed, nil
}

func appliedKey(accountID AccountID, transactionID TransactionID) string {
	return accountID.String() + "\x00" + transactionID.String()
}

func mustNewService(test *testing.T, store Store, options ...ServiceOption) *Service {
	test.Helper()
	service, err := NewService(store, func() int64 { return 1700000000 }, options...)
	if err != nil {
		test.Fatalf("new service: %v", err)
	}
	return service
}

func mustAccountID(test *testing.T, raw string) AccountID {
	test.Helper()
	accountID, err := NewAccountID(raw)
	if err != nil {
		test.Fatalf("account id %q: %v", raw, err)
	}
	return accountID
}

func mustTransactionID(test *testing.T, raw string) TransactionID {
	test.Helper()
	transactionID, err := NewTransactionID(raw)
	if err != nil {
		test.Fatalf("transaction id %q: %v", raw, err)
	}
	return transactionID
}

func mustCreditDelta(test *testing.T, raw int64) CreditDelta {
	test.Helper()
	delta, err := NewCreditDelta(raw)
	if err != nil {
		test.Fatalf("credit delta %d: %v", raw, err)
	}
	return delta
}

func mustMetadata(test *testing.T, raw string) MetadataJSON {
	test.Helper()
	metadata, err := NewMetadataJSON(raw)
	if err != nil {
		test.Fatalf("metadata %q: %v", raw, err)
	}
	return metadata
}
