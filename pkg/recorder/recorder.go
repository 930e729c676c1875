package recorder

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
)

// Recorder persists practice sessions under the document store's byte
// ceiling, degrading content tier by tier rather than failing outright.
type Recorder struct {
	store DocumentStore
}

// NewRecorder wires a Recorder.
func NewRecorder(store DocumentStore) (*Recorder, error) {
	if store == nil {
		return nil, fmt.Errorf("%w: store dependency is nil", ErrInvalidRecorderConfig)
	}
	if store.MaxDocumentBytes() <= 0 {
		return nil, fmt.Errorf("%w: store reports non-positive document ceiling", ErrInvalidRecorderConfig)
	}
	return &Recorder{store: store}, nil
}

// Persist serializes the session and stores the largest projection that fits
// the store's ceiling. The returned tier tells the caller whether detail was
// lost. If even the minimal projection exceeds the ceiling the session is not
// stored and ErrRecordTooLarge is returned.
func (recorder *Recorder) Persist(ctx context.Context, session PracticeSession) (StorageTier, error) {
	if err := session.Validate(); err != nil {
		return "", err
	}
	sizeLimit := recorder.store.MaxDocumentBytes()

	projections := []struct {
		tier    StorageTier
		session PracticeSession
	}{
		{TierFull, session},
		{TierCompressed, compressedProjection(session)},
		{TierCompressed, truncatedProjection(session)},
		{TierMinimal, minimalProjection(session)},
	}
	for _, projection := range projections {
		payload, err := json.Marshal(projection.session)
		if err != nil {
			return "", fmt.Errorf("%w: %v", ErrInvalidSession, err)
		}
		if len(payload) > sizeLimit {
			continue
		}
		if err := recorder.store.PutSession(ctx, session.SessionID, session.AccountID, projection.tier, payload); err != nil {
			return "", err
		}
		return projection.tier, nil
	}
	return "", fmt.Errorf("%w: minimal projection exceeds %d bytes", ErrRecordTooLarge, sizeLimit)
}

// Load fetches a persisted session by id.
func (recorder *Recorder) Load(ctx context.Context, sessionID string) (PracticeSession, StorageTier, error) {
	payload, tier, err := recorder.store.GetSession(ctx, sessionID)
	if err != nil {
		return PracticeSession{}, "", err
	}
	var session PracticeSession
	if err := json.Unmarshal(payload, &session); err != nil {
		return PracticeSession{}, "", fmt.Errorf("%w: %v", ErrInvalidSession, err)
	}
	return session, tier, nil
}

// ListByAccount returns an account's sessions, newest first.
func (recorder *Recorder) ListByAccount(ctx context.Context, accountID string) ([]PracticeSession, error) {
	payloads, err := recorder.store.ListSessions(ctx, accountID)
	if err != nil {
		return nil, err
	}
	sessions := make([]PracticeSession, 0, len(payloads))
	for _, payload := range payloads {
		var session PracticeSession
		if err := json.Unmarshal(payload, &session); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidSession, err)
		}
		sessions = append(sessions, session)
	}
	sort.Slice(sessions, func(left, right int) bool {
		return sessions[left].CreatedAtUnixUTC > sessions[right].CreatedAtUnixUTC
	})
	return sessions, nil
}

// Delete removes a persisted session.
func (recorder *Recorder) Delete(ctx context.Context, sessionID string) error {
	return recorder.store.DeleteSession(ctx, sessionID)
}
