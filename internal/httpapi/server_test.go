package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/admitcoach/admitcoach/internal/interview"
	"github.com/admitcoach/admitcoach/internal/payments"
	"github.com/admitcoach/admitcoach/pkg/ledger"
	"github.com/admitcoach/admitcoach/pkg/recorder"
)

const testWebhookSecret = "whsec_test"

type memoryLedgerStore struct {
	mu           sync.Mutex
	transactions []ledger.Transaction
	applied      map[string]bool
}

func newMemoryLedgerStore() *memoryLedgerStore {
	return &memoryLedgerStore{applied: make(map[string]bool)}
}

func (store *memoryLedgerStore) WithTx(ctx context.Context, fn func(ctx context.Context, txStore ledger.Store) error) error {
	return fn(ctx, store)
}

func (store *memoryLedgerStore) EnsureAccount(ctx context.Context, accountID ledger.AccountID) error {
	return nil
}

func (store *memoryLedgerStore) TransactionApplied(ctx context.Context, accountID ledger.AccountID, transactionID ledger.TransactionID) (bool, error) {
	store.mu.Lock()
	defer store.mu.Unlock()
	return store.applied[accountID.String()+"\x00"+transactionID.String()], nil
}

func (store *memoryLedgerStore) SumDeltas(ctx context.Context, accountID ledger.AccountID) (int64, error) {
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

func (store *memoryLedgerStore) InsertTransaction(ctx context.Context, transaction ledger.Transaction) error {
	store.mu.Lock()
	defer store.mu.Unlock()
	key := transaction.AccountID.String() + "\x00" + transaction.TransactionID.String()
	if store.applied[key] {
		return ledger.ErrDuplicateTransaction
	}
	store.applied[key] = true
	store.transactions = append(store.transactions, transaction)
	return nil
}

func (store *memoryLedgerStore) ListTransactions(ctx context.Context, accountID ledger.AccountID, beforeUnixUTC int64, limit int) ([]ledger.Transaction, error) {
	store.mu.Lock()
	defer store.mu.Unlock()
	matched := make([]ledger.Transaction, 0, limit)
	for index := len(store.transactions) - 1; index >= 0 && len(matched) < limit; index-- {
		transaction := store.transactions[index]
		if transaction.AccountID == accountID && transaction.AppliedAtUnixUTC < beforeUnixUTC {
			matched = append(matched, transaction)
		}
	}
	return matched, nil
}

type memoryDocumentStore struct {
	mu        sync.Mutex
	maxBytes  int
	documents map[string][]byte
	accounts  map[string]string
}

func newMemoryDocumentStore(maxBytes int) *memoryDocumentStore {
	return &memoryDocumentStore{
		maxBytes:  maxBytes,
		documents: make(map[string][]byte),
		accounts:  make(map[string]string),
	}
}

func (store *memoryDocumentStore) MaxDocumentBytes() int {
	return store.maxBytes
}

func (store *memoryDocumentStore) PutSession(ctx context.Context, sessionID string, accountID string, tier recorder.StorageTier, payload []byte) error {
	store.mu.Lock()
	defer store.mu.Unlock()
	store.documents[sessionID] = payload
	store.accounts[sessionID] = accountID
	return nil
}

func (store *memoryDocumentStore) GetSession(ctx context.Context, sessionID string) ([]byte, recorder.StorageTier, error) {
	store.mu.Lock()
	defer store.mu.Unlock()
	payload, ok := store.documents[sessionID]
	if !ok {
		return nil, "", recorder.ErrUnknownSession
	}
	return payload, recorder.TierFull, nil
}

func (store *memoryDocumentStore) ListSessions(ctx context.Context, accountID string) ([][]byte, error) {
	store.mu.Lock()
	defer store.mu.Unlock()
	payloads := make([][]byte, 0, len(store.documents))
	for sessionID, payload := range store.documents {
		if store.accounts[sessionID] == accountID {
			payloads = append(payloads, payload)
		}
	}
	return payloads, nil
}

func (store *memoryDocumentStore) DeleteSession(ctx context.Context, sessionID string) error {
	store.mu.Lock()
	defer store.mu.Unlock()
	delete(store.documents, sessionID)
	return nil
}

type testServer struct {
	router        *gin.Engine
	ledgerService *ledger.Service
	validator     *sessionValidator
}

func newTestServer(test *testing.T) *testServer {
	test.Helper()
	cfg := Config{
		SessionSigningKey: "test-signing-key",
		WebhookSecret:     testWebhookSecret,
	}
	if err := cfg.Validate(); err != nil {
		test.Fatalf("config: %v", err)
	}

	clock := func() int64 { return time.Now().UTC().Unix() }
	ledgerService, err := ledger.NewService(newMemoryLedgerStore(), clock)
	if err != nil {
		test.Fatalf("ledger service: %v", err)
	}
	sessionRecorder, err := recorder.NewRecorder(newMemoryDocumentStore(cfg.MaxDocumentBytes))
	if err != nil {
		test.Fatalf("recorder: %v", err)
	}
	interviewService, err := interview.NewService(ledgerService, sessionRecorder, clock)
	if err != nil {
		test.Fatalf("interview service: %v", err)
	}

	handler := &httpHandler{
		logger:        zap.NewNop(),
		ledger:        ledgerService,
		interview:     interviewService,
		webhookSecret: []byte(cfg.WebhookSecret),
	}
	validator := newSessionValidator([]byte(cfg.SessionSigningKey), cfg.SessionIssuer, cfg.SessionCookieName)
	limiter := NewRateLimiter(1000, time.Minute)

	return &testServer{
		router:        setupRouter(cfg, handler, validator, limiter),
		ledgerService: ledgerService,
		validator:     validator,
	}
}

func (server *testServer) bearerToken(test *testing.T, userID string) string {
	test.Helper()
	token, err := server.validator.IssueToken(userID, userID+"@example.com", time.Hour)
	if err != nil {
		test.Fatalf("issue token: %v", err)
	}
	return token
}

func (server *testServer) balance(test *testing.T, userID string) int64 {
	test.Helper()
	accountID, err := ledger.NewAccountID(userID)
	if err != nil {
		test.Fatalf("account id: %v", err)
	}
	balance, err := server.ledgerService.GetBalance(context.Background(), accountID)
	if err != nil {
		test.Fatalf("balance: %v", err)
	}
	return balance.Int64()
}

func signedWebhookRequest(payload []byte) *http.Request {
	request := httptest.NewRequest(http.MethodPost, "/webhooks/payment", bytes.NewReader(payload))
	request.Header.Set("Content-Type", "application/json")
	request.Header.Set(payments.SignatureHeader, payments.SignatureHeaderValue([]byte(testWebhookSecret), time.Now().UTC().Unix(), payload))
	return request
}

func checkoutEventPayload(transactionID string, accountID string, credits int64) []byte {
	return []byte(fmt.Sprintf(`{"type":"checkout.completed","transactionId":%q,"accountId":%q,"creditsGranted":%d}`, transactionID, accountID, credits))
}

func TestWebhookGrantsCredits(test *testing.T) {
	server := newTestServer(test)
	payload := checkoutEventPayload("txn_1", "u1", 5)

	response := httptest.NewRecorder()
	server.router.ServeHTTP(response, signedWebhookRequest(payload))

	if response.Code != http.StatusOK {
		test.Fatalf("status %d body %s", response.Code, response.Body.String())
	}
	if balance := server.balance(test, "u1"); balance != 5 {
		test.Fatalf("balance %d, want 5", balance)
	}
}

func TestWebhookReplayGrantsOnce(test *testing.T) {
	server := newTestServer(test)
	payload := checkoutEventPayload("txn_replay", "u1", 5)

	for attempt := 0; attempt < 3; attempt++ {
		response := httptest.NewRecorder()
		server.router.ServeHTTP(response, signedWebhookRequest(payload))
		if response.Code != http.StatusOK {
			test.Fatalf("attempt %d status %d", attempt, response.Code)
		}
	}
	if balance := server.balance(test, "u1"); balance != 5 {
		test.Fatalf("balance %d after replays, want 5", balance)
	}
}

func TestWebhookRejectsBadSignature(test *testing.T) {
	server := newTestServer(test)
	payload := checkoutEventPayload("txn_bad", "u1", 5)

	request := httptest.NewRequest(http.MethodPost, "/webhooks/payment", bytes.NewReader(payload))
	request.Header.Set(payments.SignatureHeader, payments.SignatureHeaderValue([]byte("wrong-secret"), time.Now().UTC().Unix(), payload))

	response := httptest.NewRecorder()
	server.router.ServeHTTP(response, request)

	if response.Code != http.StatusBadRequest {
		test.Fatalf("status %d, want 400", response.Code)
	}
	if balance := server.balance(test, "u1"); balance != 0 {
		test.Fatalf("balance %d after rejected delivery, want 0", balance)
	}
}

func TestWebhookIgnoresUnknownEventTypes(test *testing.T) {
	server := newTestServer(test)
	payload := []byte(`{"type":"checkout.expired","transactionId":"txn_x","accountId":"u1","creditsGranted":5}`)

	response := httptest.NewRecorder()
	server.router.ServeHTTP(response, signedWebhookRequest(payload))

	if response.Code != http.StatusOK {
		test.Fatalf("status %d, want 200", response.Code)
	}
	if balance := server.balance(test, "u1"); balance != 0 {
		test.Fatalf("balance %d after ignored event, want 0", balance)
	}
}

func TestWebhookRejectsMalformedEvent(test *testing.T) {
	server := newTestServer(test)
	payload := []byte(`{"type":"checkout.completed","accountId":"u1"}`)

	response := httptest.NewRecorder()
	server.router.ServeHTTP(response, signedWebhookRequest(payload))

	if response.Code != http.StatusBadRequest {
		test.Fatalf("status %d, want 400", response.Code)
	}
}

func TestWalletRequiresSession(test *testing.T) {
	server := newTestServer(test)

	response := httptest.NewRecorder()
	server.router.ServeHTTP(response, httptest.NewRequest(http.MethodGet, "/api/wallet", nil))

	if response.Code != http.StatusUnauthorized {
		test.Fatalf("status %d, want 401", response.Code)
	}
}

func TestWalletReturnsBalanceAndHistory(test *testing.T) {
	server := newTestServer(test)
	payload := checkoutEventPayload("txn_wallet", "u1", 10)
	server.router.ServeHTTP(httptest.NewRecorder(), signedWebhookRequest(payload))

	request := httptest.NewRequest(http.MethodGet, "/api/wallet", nil)
	request.Header.Set("Authorization", "Bearer "+server.bearerToken(test, "u1"))

	response := httptest.NewRecorder()
	server.router.ServeHTTP(response, request)

	if response.Code != http.StatusOK {
		test.Fatalf("status %d body %s", response.Code, response.Body.String())
	}
	var body struct {
		Wallet struct {
			BalanceCredits int64 `json:"balance_credits"`
			Entries        []struct {
				TransactionID string `json:"transaction_id"`
				DeltaCredits  int64  `json:"delta_credits"`
			} `json:"entries"`
		} `json:"wallet"`
	}
	if err := json.Unmarshal(response.Body.Bytes(), &body); err != nil {
		test.Fatalf("decode wallet: %v", err)
	}
	if body.Wallet.BalanceCredits != 10 {
		test.Fatalf("balance %d, want 10", body.Wallet.BalanceCredits)
	}
	if len(body.Wallet.Entries) != 1 || body.Wallet.Entries[0].TransactionID != "txn_wallet" {
		test.Fatalf("unexpected entries %+v", body.Wallet.Entries)
	}
}

func TestStartInterviewDealsQuestions(test *testing.T) {
	server := newTestServer(test)
	server.router.ServeHTTP(httptest.NewRecorder(), signedWebhookRequest(checkoutEventPayload("txn_start", "u1", 2)))

	request := httptest.NewRequest(http.MethodPost, "/api/interviews", strings.NewReader(`{"programCategory":"Medical School"}`))
	request.Header.Set("Content-Type", "application/json")
	request.Header.Set("Authorization", "Bearer "+server.bearerToken(test, "u1"))

	response := httptest.NewRecorder()
	server.router.ServeHTTP(response, request)

	if response.Code != http.StatusOK {
		test.Fatalf("status %d body %s", response.Code, response.Body.String())
	}
	var started interview.StartedInterview
	if err := json.Unmarshal(response.Body.Bytes(), &started); err != nil {
		test.Fatalf("decode: %v", err)
	}
	if len(started.Questions) != InterviewQuestionCount() {
		test.Fatalf("questions %d, want %d", len(started.Questions), InterviewQuestionCount())
	}
}

func TestStartInterviewRequiresCredits(test *testing.T) {
	server := newTestServer(test)

	request := httptest.NewRequest(http.MethodPost, "/api/interviews", strings.NewReader(`{"programCategory":"Medical School"}`))
	request.Header.Set("Content-Type", "application/json")
	request.Header.Set("Authorization", "Bearer "+server.bearerToken(test, "broke"))

	response := httptest.NewRecorder()
	server.router.ServeHTTP(response, request)

	if response.Code != http.StatusPaymentRequired {
		test.Fatalf("status %d, want 402", response.Code)
	}
}

func TestCompleteInterviewDebitsOnce(test *testing.T) {
	server := newTestServer(test)
	server.router.ServeHTTP(httptest.NewRecorder(), signedWebhookRequest(checkoutEventPayload("txn_complete", "u1", 5)))

	sessionBody := `{"programCategory":"Medical School","createdAtUnixUTC":1700000000,"totalQuestions":1,"completedQuestions":1,"items":[{"questionId":1,"questionText":"Why medicine?"}]}`
	token := server.bearerToken(test, "u1")

	for attempt := 0; attempt < 2; attempt++ {
		request := httptest.NewRequest(http.MethodPost, "/api/interviews/session_1_abc/complete", strings.NewReader(sessionBody))
		request.Header.Set("Content-Type", "application/json")
		request.Header.Set("Authorization", "Bearer "+token)
		response := httptest.NewRecorder()
		server.router.ServeHTTP(response, request)
		if response.Code != http.StatusOK {
			test.Fatalf("attempt %d status %d body %s", attempt, response.Code, response.Body.String())
		}
	}
	if balance := server.balance(test, "u1"); balance != 4 {
		test.Fatalf("balance %d after retried completion, want 4", balance)
	}
}

func TestCheckoutResolvesPackage(test *testing.T) {
	server := newTestServer(test)

	request := httptest.NewRequest(http.MethodPost, "/api/checkout", strings.NewReader(`{"packageId":"credits_10"}`))
	request.Header.Set("Content-Type", "application/json")
	request.Header.Set("Authorization", "Bearer "+server.bearerToken(test, "u1"))

	response := httptest.NewRecorder()
	server.router.ServeHTTP(response, request)

	if response.Code != http.StatusOK {
		test.Fatalf("status %d body %s", response.Code, response.Body.String())
	}
	var body struct {
		TransactionID string `json:"transactionId"`
		AccountID     string `json:"accountId"`
	}
	if err := json.Unmarshal(response.Body.Bytes(), &body); err != nil {
		test.Fatalf("decode: %v", err)
	}
	if !strings.HasPrefix(body.TransactionID, "txn_") || body.AccountID != "u1" {
		test.Fatalf("unexpected checkout body %+v", body)
	}

	unknown := httptest.NewRequest(http.MethodPost, "/api/checkout", strings.NewReader(`{"packageId":"credits_999"}`))
	unknown.Header.Set("Content-Type", "application/json")
	unknown.Header.Set("Authorization", "Bearer "+server.bearerToken(test, "u1"))
	unknownResponse := httptest.NewRecorder()
	server.router.ServeHTTP(unknownResponse, unknown)
	if unknownResponse.Code != http.StatusBadRequest {
		test.Fatalf("status %d for unknown package, want 400", unknownResponse.Code)
	}
}

func TestGradeUnavailableWithoutGrader(test *testing.T) {
	server := newTestServer(test)
	server.router.ServeHTTP(httptest.NewRecorder(), signedWebhookRequest(checkoutEventPayload("txn_grade", "u1", 1)))

	request := httptest.NewRequest(http.MethodPost, "/api/grade", nil)
	request.Header.Set("Authorization", "Bearer "+server.bearerToken(test, "u1"))

	response := httptest.NewRecorder()
	server.router.ServeHTTP(response, request)

	if response.Code != http.StatusServiceUnavailable {
		test.Fatalf("status %d, want 503", response.Code)
	}
}

func TestRateLimiterBlocksOverBudget(test *testing.T) {
	test.Parallel()
	limiter := NewRateLimiter(2, time.Minute)

	if !limiter.Allow("1.2.3.4") || !limiter.Allow("1.2.3.4") {
		test.Fatalf("first two requests must pass")
	}
	if limiter.Allow("1.2.3.4") {
		test.Fatalf("third request must be rejected")
	}
	if !limiter.Allow("5.6.7.8") {
		test.Fatalf("other clients keep their own budget")
	}
}

func TestConfigValidation(test *testing.T) {
	test.Parallel()
	cfg := Config{SessionSigningKey: "k", WebhookSecret: "s"}
	if err := cfg.Validate(); err != nil {
		test.Fatalf("validate: %v", err)
	}
	if cfg.ListenAddr != defaultListenAddr || cfg.RateLimit != defaultRateLimit || cfg.MaxDocumentBytes != defaultMaxDocumentBytes {
		test.Fatalf("defaults not applied: %+v", cfg)
	}

	missingKey := Config{WebhookSecret: "s"}
	if err := missingKey.Validate(); err == nil {
		test.Fatalf("expected error for missing signing key")
	}
	missingSecret := Config{SessionSigningKey: "k"}
	if err := missingSecret.Validate(); err == nil {
		test.Fatalf("expected error for missing webhook secret")
	}
}
