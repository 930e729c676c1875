// Package interview orchestrates practice-session lifecycle: starting a
// sitting against the question bank and completing it with an exactly-once
// credit debit.
package interview

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"strings"
	"time"

	"github.com/admitcoach/admitcoach/internal/questions"
	"github.com/admitcoach/admitcoach/pkg/ledger"
	"github.com/admitcoach/admitcoach/pkg/recorder"
	"github.com/google/uuid"
)

const (
	// One credit buys one practice session.
	sessionCreditCost = 1

	defaultQuestionCount = 2
)

var ErrInvalidServiceConfig = errors.New("invalid interview service config")

// DebitOutcome reports what happened to the session's credit debit,
// independently of whether the session record was saved.
type DebitOutcome string

const (
	DebitApplied      DebitOutcome = "applied"
	DebitInsufficient DebitOutcome = "insufficient_balance"
)

// StartedInterview is a freshly dealt sitting.
type StartedInterview struct {
	SessionID       string               `json:"sessionId"`
	ProgramCategory string               `json:"programCategory"`
	Questions       []questions.Question `json:"questions"`
}

// CompletionResult carries the two independent outcomes of completing a
// session: how the record was stored and whether the debit landed.
type CompletionResult struct {
	SessionID string               `json:"sessionId"`
	Tier      recorder.StorageTier `json:"storedTier"`
	Degraded  bool                 `json:"degraded"`
	Debit     DebitOutcome         `json:"debit"`
	Balance   ledger.Balance       `json:"balance"`
}

// Service wires the ledger and recorder behind the interview flow.
type Service struct {
	ledger   *ledger.Service
	recorder *recorder.Recorder
	nowFn    func() int64
}

// NewService wires a Service.
func NewService(ledgerService *ledger.Service, sessionRecorder *recorder.Recorder, now func() int64) (*Service, error) {
	if ledgerService == nil || sessionRecorder == nil {
		return nil, fmt.Errorf("%w: nil dependency", ErrInvalidServiceConfig)
	}
	if now == nil {
		now = func() int64 { return time.Now().UTC().Unix() }
	}
	return &Service{ledger: ledgerService, recorder: sessionRecorder, nowFn: now}, nil
}

// Start verifies the account holds at least one credit and deals a random
// question set for the program. No credit is consumed until completion.
func (service *Service) Start(ctx context.Context, accountID string, program string, questionCount int) (StartedInterview, error) {
	account, err := ledger.NewAccountID(accountID)
	if err != nil {
		return StartedInterview{}, err
	}
	balance, err := service.ledger.GetBalance(ctx, account)
	if err != nil {
		return StartedInterview{}, err
	}
	if balance.Int64() < sessionCreditCost {
		return StartedInterview{}, ledger.ErrInsufficientBalance
	}
	if questionCount <= 0 {
		questionCount = defaultQuestionCount
	}
	rng := rand.New(rand.NewSource(time.Now().UnixNano()))
	dealt, err := questions.Deal(program, questionCount, rng)
	if err != nil {
		return StartedInterview{}, err
	}
	return StartedInterview{
		SessionID:       newSessionID(service.nowFn()),
		ProgramCategory: program,
		Questions:       dealt,
	}, nil
}

// Complete persists the session record and then debits one credit keyed on
// the session id. Persistence failure aborts before any debit; an
// insufficient balance never fails completion — the user keeps their
// practice data and the result reports the failed debit.
func (service *Service) Complete(ctx context.Context, session recorder.PracticeSession) (CompletionResult, error) {
	tier, err := service.recorder.Persist(ctx, session)
	if err != nil {
		return CompletionResult{}, err
	}
	result := CompletionResult{
		SessionID: session.SessionID,
		Tier:      tier,
		Degraded:  tier != recorder.TierFull,
	}

	account, err := ledger.NewAccountID(session.AccountID)
	if err != nil {
		return result, err
	}
	transactionID, err := ledger.NewTransactionID(session.SessionID)
	if err != nil {
		return result, err
	}
	delta, err := ledger.NewCreditDelta(-sessionCreditCost)
	if err != nil {
		return result, err
	}
	metadata, err := ledger.NewMetadataJSON(fmt.Sprintf(`{"action":"session_debit","program":%q}`, session.ProgramCategory))
	if err != nil {
		return result, err
	}

	balance, err := service.ledger.ApplyDelta(ctx, account, transactionID, delta, metadata)
	if errors.Is(err, ledger.ErrInsufficientBalance) {
		result.Debit = DebitInsufficient
		current, balanceErr := service.ledger.GetBalance(ctx, account)
		if balanceErr == nil {
			result.Balance = current
		}
		return result, nil
	}
	if err != nil {
		return result, err
	}
	result.Debit = DebitApplied
	result.Balance = balance
	return result, nil
}

// Sessions lists an account's persisted sessions, newest first.
func (service *Service) Sessions(ctx context.Context, accountID string) ([]recorder.PracticeSession, error) {
	return service.recorder.ListByAccount(ctx, accountID)
}

// Session loads one persisted session.
func (service *Service) Session(ctx context.Context, sessionID string) (recorder.PracticeSession, recorder.StorageTier, error) {
	return service.recorder.Load(ctx, sessionID)
}

// DeleteSession removes a persisted session record.
func (service *Service) DeleteSession(ctx context.Context, sessionID string) error {
	return service.recorder.Delete(ctx, sessionID)
}

func newSessionID(nowUnixUTC int64) string {
	suffix := strings.Split(uuid.NewString(), "-")[0]
	return fmt.Sprintf("session_%d_%s", nowUnixUTC, suffix)
}
