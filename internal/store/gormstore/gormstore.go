package gormstore

import (
	"context"
	"errors"
	"time"

	"github.com/admitcoach/admitcoach/pkg/ledger"
	gosqlite "github.com/glebarez/go-sqlite"
	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const (
	constraintAccountTransaction = "uniq_account_transaction"
	defaultMetadataJSON          = "{}"
	pgUniqueViolationCode        = "23505"
	sqliteConstraintCode         = 19
	errorOperationStore          = "store"
	errorSubjectAccount          = "account"
	errorSubjectBalance          = "balance"
	errorSubjectTransaction      = "transaction"
	errorCodeDuplicate           = "duplicate"
	errorCodeEnsure              = "ensure"
	errorCodeInsert              = "insert"
	errorCodeInvalid             = "invalid"
	errorCodeList                = "list"
	errorCodeLookup              = "lookup"
	errorCodeSumDeltas           = "sum_deltas"
)

// Store implements ledger.Store and recorder.DocumentStore using GORM.
type Store struct {
	db               *gorm.DB
	maxDocumentBytes int
}

// New returns a Store backed by gorm.DB enforcing the given per-document
// byte ceiling.
func New(db *gorm.DB, maxDocumentBytes int) *Store {
	return &Store{db: db, maxDocumentBytes: maxDocumentBytes}
}

// WithTx executes fn within a transaction.
func (store *Store) WithTx(ctx context.Context, fn func(ctx context.Context, txStore ledger.Store) error) error {
	return store.db.WithContext(ctx).Transaction(func(transaction *gorm.DB) error {
		return fn(ctx, &Store{db: transaction, maxDocumentBytes: store.maxDocumentBytes})
	})
}

// EnsureAccount provisions the account row if it is not present.
func (store *Store) EnsureAccount(ctx context.Context, accountID ledger.AccountID) error {
	account := Account{AccountID: accountID.String()}
	err := store.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(&account).Error
	if err != nil && !isUniqueViolation(err) {
		return wrapStoreError(errorSubjectAccount, errorCodeEnsure, err)
	}
	return nil
}

// TransactionApplied reports whether the transaction id was already applied
// for the account.
func (store *Store) TransactionApplied(ctx context.Context, accountID ledger.AccountID, transactionID ledger.TransactionID) (bool, error) {
	var count int64
	err := store.db.WithContext(ctx).
		Model(&CreditTransaction{}).
		Where("account_id = ? AND transaction_id = ?", accountID.String(), transactionID.String()).
		Count(&count).Error
	if err != nil {
		return false, wrapStoreError(errorSubjectTransaction, errorCodeLookup, err)
	}
	return count > 0, nil
}

// SumDeltas returns the sum of applied deltas, zero for unknown accounts.
func (store *Store) SumDeltas(ctx context.Context, accountID ledger.AccountID) (int64, error) {
	var sum sqlSum
	err := store.db.WithContext(ctx).
		Model(&CreditTransaction{}).
		Select("coalesce(sum(delta_credits),0) as total").
		Where("account_id = ?", accountID.String()).
		Scan(&sum).Error
	if err != nil {
		return 0, wrapStoreError(errorSubjectBalance, errorCodeSumDeltas, err)
	}
	return sum.Total, nil
}

// InsertTransaction appends an applied transaction. A replayed
// (account, transaction) pair trips the unique index and surfaces as
// ledger.ErrDuplicateTransaction.
func (store *Store) InsertTransaction(ctx context.Context, transaction ledger.Transaction) error {
	row := CreditTransaction{
		AccountID:     transaction.AccountID.String(),
		TransactionID: transaction.TransactionID.String(),
		DeltaCredits:  transaction.Delta.Int64(),
		Metadata:      datatypesJSON(transaction.Metadata.String()),
		AppliedAt:     time.Unix(transaction.AppliedAtUnixUTC, 0).UTC(),
	}
	if row.AppliedAt.IsZero() {
		row.AppliedAt = time.Now().UTC()
	}
	err := store.db.WithContext(ctx).Create(&row).Error
	if isDuplicateTransaction(err) {
		return wrapStoreError(errorSubjectTransaction, errorCodeDuplicate, ledger.ErrDuplicateTransaction)
	}
	if err != nil {
		return wrapStoreError(errorSubjectTransaction, errorCodeInsert, err)
	}
	return nil
}

// ListTransactions lists applied transactions for an account before a cutoff
// time, newest first.
func (store *Store) ListTransactions(ctx context.Context, accountID ledger.AccountID, beforeUnixUTC int64, limit int) ([]ledger.Transaction, error) {
	before := time.Unix(beforeUnixUTC, 0).UTC()
	if beforeUnixUTC == 0 {
		before = time.Now().UTC().Add(time.Second)
	}

	var rows []CreditTransaction
	err := store.db.WithContext(ctx).
		Where("account_id = ? AND applied_at < ?", accountID.String(), before).
		Order("applied_at DESC").
		Limit(limit).
		Find(&rows).Error
	if err != nil {
		return nil, wrapStoreError(errorSubjectTransaction, errorCodeList, err)
	}

	transactions := make([]ledger.Transaction, 0, len(rows))
	for _, row := range rows {
		transaction, err := mapCreditTransaction(row)
		if err != nil {
			return nil, wrapStoreError(errorSubjectTransaction, errorCodeInvalid, err)
		}
		transactions = append(transactions, transaction)
	}
	return transactions, nil
}

func wrapStoreError(subject string, code string, err error) error {
	return ledger.WrapError(errorOperationStore, subject, code, err)
}

type sqlSum struct {
	Total int64
}

func mapCreditTransaction(row CreditTransaction) (ledger.Transaction, error) {
	accountID, err := ledger.NewAccountID(row.AccountID)
	if err != nil {
		return ledger.Transaction{}, err
	}
	transactionID, err := ledger.NewTransactionID(row.TransactionID)
	if err != nil {
		return ledger.Transaction{}, err
	}
	delta, err := ledger.NewCreditDelta(row.DeltaCredits)
	if err != nil {
		return ledger.Transaction{}, err
	}
	metadata, err := ledger.NewMetadataJSON(string(row.Metadata))
	if err != nil {
		return ledger.Transaction{}, err
	}
	return ledger.Transaction{
		TransactionID:    transactionID,
		AccountID:        accountID,
		Delta:            delta,
		Metadata:         metadata,
		AppliedAtUnixUTC: row.AppliedAt.Unix(),
	}, nil
}

func datatypesJSON(raw string) datatypes.JSON {
	if raw == "" {
		return datatypes.JSON([]byte(defaultMetadataJSON))
	}
	return datatypes.JSON([]byte(raw))
}

func isDuplicateTransaction(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == pgUniqueViolationCode && pgErr.ConstraintName == constraintAccountTransaction
	}
	return isSQLiteConstraint(err)
}

func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == pgUniqueViolationCode
	}
	return isSQLiteConstraint(err)
}

func isSQLiteConstraint(err error) bool {
	var sqliteErr *gosqlite.Error
	if errors.As(err, &sqliteErr) {
		return sqliteErr.Code()&0xFF == sqliteConstraintCode
	}
	return false
}
