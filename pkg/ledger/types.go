package ledger

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
)

// AccountID identifies an account owner. The value comes from the identity
// provider and is trusted as-is.
type AccountID struct {
	value string
}

// TransactionID identifies one logical balance-changing event and scopes
// duplicate detection. Grants carry the payment-session identifier, debits
// carry the practice-session identifier.
type TransactionID struct {
	value string
}

// CreditDelta is a signed, non-zero number of credits.
type CreditDelta int64

// Balance is a non-negative credit count.
type Balance int64

// MetadataJSON stores arbitrary request metadata.
type MetadataJSON struct {
	value string
}

// NewAccountID validates and normalizes an account id.
func NewAccountID(raw string) (AccountID, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return AccountID{}, fmt.Errorf("%w: empty value", ErrInvalidAccountID)
	}
	return AccountID{value: trimmed}, nil
}

// String returns the normalized identifier.
func (id AccountID) String() string {
	return id.value
}

// NewTransactionID validates and normalizes a transaction id.
func NewTransactionID(raw string) (TransactionID, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return TransactionID{}, fmt.Errorf("%w: empty value", ErrInvalidTransactionID)
	}
	return TransactionID{value: trimmed}, nil
}

// String returns the normalized identifier.
func (id TransactionID) String() string {
	return id.value
}

// NewCreditDelta validates a delta and ensures it is non-zero.
func NewCreditDelta(raw int64) (CreditDelta, error) {
	if raw == 0 {
		return 0, fmt.Errorf("%w: must be non-zero", ErrInvalidCreditDelta)
	}
	return CreditDelta(raw), nil
}

// Int64 returns the raw delta.
func (delta CreditDelta) Int64() int64 {
	return int64(delta)
}

// Int64 returns the raw credit count.
func (balance Balance) Int64() int64 {
	return int64(balance)
}

// NewMetadataJSON validates metadata string (defaulting to "{}" for empty inputs).
func NewMetadataJSON(raw string) (MetadataJSON, error) {
	normalized := strings.TrimSpace(raw)
	if normalized == "" {
		normalized = "{}"
	}
	if !json.Valid([]byte(normalized)) {
		return MetadataJSON{}, fmt.Errorf("%w: must be valid json", ErrInvalidMetadataJSON)
	}
	return MetadataJSON{value: normalized}, nil
}

// String returns the normalized JSON blob.
func (metadata MetadataJSON) String() string {
	return metadata.value
}

// A single immutable applied transaction. The balance of an account is the
// sum of its applied deltas, so inserting a transaction and mutating the
// balance are one write.
type Transaction struct {
	TransactionID    TransactionID
	AccountID        AccountID
	Delta            CreditDelta
	Metadata         MetadataJSON
	AppliedAtUnixUTC int64
}

// Store is the persistence contract used by Service. InsertTransaction must
// reject a replayed (account, transaction) pair atomically, returning
// ErrDuplicateTransaction, even under concurrent identical calls.
type Store interface {
	WithTx(ctx context.Context, fn func(ctx context.Context, txStore Store) error) error
	EnsureAccount(ctx context.Context, accountID AccountID) error
	TransactionApplied(ctx context.Context, accountID AccountID, transactionID TransactionID) (bool, error)
	SumDeltas(ctx context.Context, accountID AccountID) (int64, error)
	InsertTransaction(ctx context.Context, transaction Transaction) error
	ListTransactions(ctx context.Context, accountID AccountID, beforeUnixUTC int64, limit int) ([]Transaction, error)
}
