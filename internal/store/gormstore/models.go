package gormstore

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Account represents the accounts table. The id comes from the identity
// provider; rows are provisioned implicitly on first use.
type Account struct {
	AccountID string    `gorm:"primaryKey"`
	CreatedAt time.Time `gorm:"not null"`
}

func (Account) TableName() string { return "accounts" }

// CreditTransaction mirrors the credit_transactions table. The unique
// (account_id, transaction_id) index is the idempotency guard.
type CreditTransaction struct {
	EntryID       string         `gorm:"type:uuid;primaryKey"`
	AccountID     string         `gorm:"not null;index:uniq_account_transaction,unique,priority:1;index:idx_transactions_account_applied,priority:1"`
	TransactionID string         `gorm:"not null;index:uniq_account_transaction,unique,priority:2"`
	DeltaCredits  int64          `gorm:"not null"`
	Metadata      datatypes.JSON `gorm:"type:jsonb;not null"`
	AppliedAt     time.Time      `gorm:"not null;index:idx_transactions_account_applied,priority:2"`
}

func (CreditTransaction) TableName() string { return "credit_transactions" }

func (transaction *CreditTransaction) BeforeCreate(tx *gorm.DB) error {
	if transaction.EntryID == "" {
		transaction.EntryID = uuid.NewString()
	}
	return nil
}

// SessionDocument mirrors the session_documents table holding the serialized
// practice-session projection.
type SessionDocument struct {
	SessionID string         `gorm:"primaryKey"`
	AccountID string         `gorm:"not null;index:idx_sessions_account_created,priority:1"`
	Tier      string         `gorm:"not null"`
	Payload   datatypes.JSON `gorm:"type:jsonb;not null"`
	CreatedAt time.Time      `gorm:"not null;index:idx_sessions_account_created,priority:2"`
}

func (SessionDocument) TableName() string { return "session_documents" }
