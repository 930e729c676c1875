package recorder

import (
	"context"
	"fmt"
	"strings"
)

// StorageTier names the persisted representation of a session, from the full
// record down to the header-only projection used when nothing else fits.
type StorageTier string

const (
	TierFull       StorageTier = "full"
	TierCompressed StorageTier = "compressed"
	TierMinimal    StorageTier = "minimal"
)

// String returns the tier name.
func (tier StorageTier) String() string {
	return string(tier)
}

// ParseStorageTier validates a stored tier name.
func ParseStorageTier(raw string) (StorageTier, error) {
	switch StorageTier(raw) {
	case TierFull, TierCompressed, TierMinimal:
		return StorageTier(raw), nil
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidStorageTier, raw)
}

// Feedback is a fully-populated grading result: four 0-10 sub-scores plus
// free text. A pending answer carries no Feedback at all.
type Feedback struct {
	Text           string   `json:"text"`
	ContentScore   int      `json:"contentScore"`
	DeliveryScore  int      `json:"deliveryScore"`
	StructureScore int      `json:"structureScore"`
	OverallScore   int      `json:"overallScore"`
	Strengths      []string `json:"strengths,omitempty"`
	Weaknesses     []string `json:"weaknesses,omitempty"`
	Suggestions    []string `json:"suggestions,omitempty"`
}

// ResponseMedia references a recorded answer. Payload holds the inline
// encoded audio and is the first thing dropped under size pressure; the URL
// and shape metadata survive into the compressed tier.
type ResponseMedia struct {
	AudioURL        string  `json:"audioUrl,omitempty"`
	MimeType        string  `json:"mimeType,omitempty"`
	DurationSeconds float64 `json:"durationSeconds,omitempty"`
	SizeBytes       int64   `json:"sizeBytes,omitempty"`
	Payload         []byte  `json:"payload,omitempty"`
}

// Item is one question/answer/feedback tuple in display order.
type Item struct {
	QuestionID   int            `json:"questionId"`
	QuestionText string         `json:"questionText"`
	Media        *ResponseMedia `json:"media,omitempty"`
	Feedback     *Feedback      `json:"feedback,omitempty"`
}

// PracticeSession is one completed interview sitting.
type PracticeSession struct {
	SessionID          string `json:"sessionId"`
	AccountID          string `json:"accountId"`
	ProgramCategory    string `json:"programCategory"`
	CreatedAtUnixUTC   int64  `json:"createdAtUnixUTC"`
	TotalQuestions     int    `json:"totalQuestions"`
	CompletedQuestions int    `json:"completedQuestions"`
	Items              []Item `json:"items"`
}

// Validate checks the session invariants before persistence.
func (session PracticeSession) Validate() error {
	if strings.TrimSpace(session.SessionID) == "" {
		return fmt.Errorf("%w: empty session id", ErrInvalidSession)
	}
	if strings.TrimSpace(session.AccountID) == "" {
		return fmt.Errorf("%w: empty account id", ErrInvalidSession)
	}
	if session.TotalQuestions <= 0 {
		return fmt.Errorf("%w: total questions must be positive", ErrInvalidSession)
	}
	if len(session.Items) > session.TotalQuestions {
		return fmt.Errorf("%w: %d items exceed total of %d", ErrInvalidSession, len(session.Items), session.TotalQuestions)
	}
	if session.CompletedQuestions > session.TotalQuestions {
		return fmt.Errorf("%w: completed count exceeds total", ErrInvalidSession)
	}
	return nil
}

// DocumentStore persists serialized sessions under a hard per-document byte
// ceiling, which it reports via MaxDocumentBytes.
type DocumentStore interface {
	MaxDocumentBytes() int
	PutSession(ctx context.Context, sessionID string, accountID string, tier StorageTier, payload []byte) error
	GetSession(ctx context.Context, sessionID string) ([]byte, StorageTier, error)
	ListSessions(ctx context.Context, accountID string) ([][]byte, error)
	DeleteSession(ctx context.Context, sessionID string) error
}
