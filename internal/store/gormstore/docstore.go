package gormstore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/admitcoach/admitcoach/pkg/recorder"
	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const (
	errorSubjectSession = "session"
	errorCodeDelete     = "delete"
	errorCodeGet        = "get"
	errorCodePut        = "put"
	errorCodeTooLarge   = "too_large"
)

// MaxDocumentBytes reports the per-document ceiling the store enforces.
func (store *Store) MaxDocumentBytes() int {
	return store.maxDocumentBytes
}

// PutSession stores a serialized session projection, rejecting payloads over
// the ceiling.
func (store *Store) PutSession(ctx context.Context, sessionID string, accountID string, tier recorder.StorageTier, payload []byte) error {
	if len(payload) > store.maxDocumentBytes {
		return wrapStoreError(errorSubjectSession, errorCodeTooLarge,
			fmt.Errorf("%w: %d bytes over %d ceiling", recorder.ErrRecordTooLarge, len(payload), store.maxDocumentBytes))
	}
	document := SessionDocument{
		SessionID: sessionID,
		AccountID: accountID,
		Tier:      tier.String(),
		Payload:   datatypes.JSON(payload),
		CreatedAt: time.Now().UTC(),
	}
	err := store.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "session_id"}},
			DoUpdates: clause.AssignmentColumns([]string{"tier", "payload"}),
		}).
		Create(&document).Error
	if err != nil {
		return wrapStoreError(errorSubjectSession, errorCodePut, err)
	}
	return nil
}

// GetSession fetches a serialized session by id.
func (store *Store) GetSession(ctx context.Context, sessionID string) ([]byte, recorder.StorageTier, error) {
	var document SessionDocument
	err := store.db.WithContext(ctx).
		Where("session_id = ?", sessionID).
		Take(&document).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, "", wrapStoreError(errorSubjectSession, errorCodeGet, recorder.ErrUnknownSession)
		}
		return nil, "", wrapStoreError(errorSubjectSession, errorCodeGet, err)
	}
	tier, err := recorder.ParseStorageTier(document.Tier)
	if err != nil {
		return nil, "", wrapStoreError(errorSubjectSession, errorCodeInvalid, err)
	}
	return []byte(document.Payload), tier, nil
}

// ListSessions returns the serialized sessions of an account, newest first.
func (store *Store) ListSessions(ctx context.Context, accountID string) ([][]byte, error) {
	var documents []SessionDocument
	err := store.db.WithContext(ctx).
		Where("account_id = ?", accountID).
		Order("created_at DESC").
		Find(&documents).Error
	if err != nil {
		return nil, wrapStoreError(errorSubjectSession, errorCodeList, err)
	}
	payloads := make([][]byte, 0, len(documents))
	for _, document := range documents {
		payloads = append(payloads, []byte(document.Payload))
	}
	return payloads, nil
}

// DeleteSession removes a stored session.
func (store *Store) DeleteSession(ctx context.Context, sessionID string) error {
	err := store.db.WithContext(ctx).
		Where("session_id = ?", sessionID).
		Delete(&SessionDocument{}).Error
	if err != nil {
		return wrapStoreError(errorSubjectSession, errorCodeDelete, err)
	}
	return nil
}
