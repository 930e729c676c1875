package ledger

import (
	"context"
	"errors"
	"fmt"
)

// Service contains the domain logic over a Store.
type Service struct {
	store  Store
	nowFn  func() int64
	logger OperationLogger
}

// NewService wires a Service.
func NewService(store Store, now func() int64, options ...ServiceOption) (*Service, error) {
	if store == nil {
		return nil, fmt.Errorf("%w: store dependency is nil", ErrInvalidServiceConfig)
	}
	if now == nil {
		return nil, fmt.Errorf("%w: clock dependency is nil", ErrInvalidServiceConfig)
	}
	service := &Service{store: store, nowFn: now}
	for _, option := range options {
		if option != nil {
			option(service)
		}
	}
	return service, nil
}

// ApplyDelta applies a signed credit delta exactly once per transaction id.
// A replayed transaction id is a no-op that returns the current balance. A
// debit that would push the balance below zero fails with
// ErrInsufficientBalance and applies nothing.
func (service *Service) ApplyDelta(ctx context.Context, accountID AccountID, transactionID TransactionID, delta CreditDelta, metadata MetadataJSON) (Balance, error) {
	var balance Balance
	operationError := service.store.WithTx(ctx, func(ctx context.Context, transactionStore Store) error {
		if err := transactionStore.EnsureAccount(ctx, accountID); err != nil {
			return err
		}
		applied, err := transactionStore.TransactionApplied(ctx, accountID, transactionID)
		if err != nil {
			return err
		}
		if applied {
			return ErrDuplicateTransaction
		}
		total, err := transactionStore.SumDeltas(ctx, accountID)
		if err != nil {
			return err
		}
		next := total + delta.Int64()
		if next < 0 {
			return ErrInsufficientBalance
		}
		transaction := Transaction{
			TransactionID:    transactionID,
			AccountID:        accountID,
			Delta:            delta,
			Metadata:         metadata,
			AppliedAtUnixUTC: service.nowFn(),
		}
		if err := transactionStore.InsertTransaction(ctx, transaction); err != nil {
			return err
		}
		balance = Balance(next)
		return nil
	})
	status := ""
	if errors.Is(operationError, ErrDuplicateTransaction) {
		// Replay of an already-applied transaction: resolve to the current
		// balance and report success. The lost leg of a concurrent duplicate
		// delivery lands here via the store's unique-insert conflict.
		operationError = nil
		status = operationStatusDuplicate
		current, err := service.GetBalance(ctx, accountID)
		if err != nil {
			operationError = err
			status = ""
		} else {
			balance = current
		}
	}
	service.logOperation(ctx, OperationLog{
		Operation:     operationApplyDelta,
		AccountID:     accountID,
		TransactionID: transactionID,
		Delta:         delta,
		Balance:       balance,
		Metadata:      metadata,
		Status:        status,
		Error:         operationError,
	})
	return balance, operationError
}

// GetBalance returns the current balance, zero for unknown accounts.
func (service *Service) GetBalance(ctx context.Context, accountID AccountID) (Balance, error) {
	total, err := service.store.SumDeltas(ctx, accountID)
	if err != nil {
		return 0, err
	}
	if total < 0 {
		return 0, WrapError("service", "balance", "negative_total", ErrInvalidBalance)
	}
	return Balance(total), nil
}

// ListTransactions lists applied transactions for an account before a cutoff time.
func (service *Service) ListTransactions(ctx context.Context, accountID AccountID, beforeUnixUTC int64, limit int) ([]Transaction, error) {
	return service.store.ListTransactions(ctx, accountID, beforeUnixUTC, limit)
}

func (service *Service) logOperation(ctx context.Context, entry OperationLog) {
	if service.logger == nil {
		return
	}
	if entry.Status == "" {
		if entry.Error != nil {
			entry.Status = operationStatusError
		} else {
			entry.Status = operationStatusOK
		}
	}
	service.logger.LogOperation(ctx, entry)
}
