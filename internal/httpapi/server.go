package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/admitcoach/admitcoach/internal/grading"
	"github.com/admitcoach/admitcoach/internal/interview"
	"github.com/admitcoach/admitcoach/internal/payments"
	"github.com/admitcoach/admitcoach/internal/questions"
	"github.com/admitcoach/admitcoach/pkg/ledger"
	"github.com/admitcoach/admitcoach/pkg/recorder"
)

const maxGradeUploadBytes = 16 << 20

// Dependencies carries the wired services the HTTP façade exposes.
type Dependencies struct {
	Logger    *zap.Logger
	Ledger    *ledger.Service
	Interview *interview.Service
	Grader    grading.Grader
}

// Run boots the HTTP façade using the supplied configuration.
func Run(ctx context.Context, cfg Config, deps Dependencies) error {
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	if deps.Logger == nil || deps.Ledger == nil || deps.Interview == nil {
		return errors.New("logger, ledger, and interview dependencies are required")
	}

	handler := &httpHandler{
		logger:        deps.Logger,
		ledger:        deps.Ledger,
		interview:     deps.Interview,
		grader:        deps.Grader,
		webhookSecret: []byte(cfg.WebhookSecret),
	}
	validator := newSessionValidator([]byte(cfg.SessionSigningKey), cfg.SessionIssuer, cfg.SessionCookieName)
	limiter := NewRateLimiter(cfg.RateLimit, cfg.RateWindow)

	go func() {
		ticker := time.NewTicker(cfg.RateWindow)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				limiter.Sweep()
			}
		}
	}()

	router := setupRouter(cfg, handler, validator, limiter)

	server := &http.Server{
		Addr:    cfg.ListenAddr,
		Handler: router,
	}

	errCh := make(chan error, 1)
	go func() {
		deps.Logger.Info("httpapi listening", zap.String("addr", cfg.ListenAddr))
		errCh <- server.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if shutdownErr := server.Shutdown(shutdownCtx); shutdownErr != nil {
			deps.Logger.Warn("server shutdown error", zap.Error(shutdownErr))
		}
		return nil
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}

func setupRouter(cfg Config, handler *httpHandler, validator *sessionValidator, limiter *RateLimiter) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(cors.New(cors.Config{
		AllowOrigins:     cfg.AllowedOrigins,
		AllowMethods:     []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Content-Type", "Origin", "Accept", "Authorization"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	router.GET("/healthz", func(ctx *gin.Context) {
		ctx.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	router.POST("/webhooks/payment", handler.handlePaymentWebhook)

	api := router.Group("/api")
	api.Use(limiter.GinMiddleware())
	api.Use(validator.GinMiddleware())

	api.GET("/session", handler.handleSession)
	api.GET("/wallet", handler.handleWallet)
	api.GET("/packages", handler.handlePackages)
	api.POST("/checkout", handler.handleCheckout)
	api.GET("/programs", handler.handlePrograms)
	api.POST("/interviews", handler.handleStartInterview)
	api.POST("/interviews/:id/complete", handler.handleCompleteInterview)
	api.GET("/interviews", handler.handleListSessions)
	api.GET("/interviews/:id", handler.handleGetSession)
	api.DELETE("/interviews/:id", handler.handleDeleteSession)
	api.POST("/grade", handler.handleGrade)

	return router
}

type httpHandler struct {
	logger        *zap.Logger
	ledger        *ledger.Service
	interview     *interview.Service
	grader        grading.Grader
	webhookSecret []byte
}

func (handler *httpHandler) handleSession(ctx *gin.Context) {
	claims := getClaims(ctx)
	if claims == nil {
		ctx.JSON(http.StatusUnauthorized, errorResponse("unauthorized", "missing session"))
		return
	}
	ctx.JSON(http.StatusOK, gin.H{
		"user_id": claims.UserID,
		"email":   claims.Email,
		"display": claims.DisplayName,
		"expires": claims.ExpiresAt.Unix(),
	})
}

func (handler *httpHandler) handleWallet(ctx *gin.Context) {
	claims := getClaims(ctx)
	if claims == nil {
		ctx.JSON(http.StatusUnauthorized, errorResponse("unauthorized", "missing session"))
		return
	}
	handler.respondWithWallet(ctx, claims.UserID)
}

func (handler *httpHandler) handlePackages(ctx *gin.Context) {
	ctx.JSON(http.StatusOK, gin.H{"packages": payments.Packages()})
}

type checkoutRequest struct {
	PackageID string `json:"packageId"`
}

// handleCheckout resolves a credit package and mints the transaction id the
// payment gateway will echo back in its webhook. The grant itself only
// happens when that webhook arrives.
func (handler *httpHandler) handleCheckout(ctx *gin.Context) {
	claims := getClaims(ctx)
	if claims == nil {
		ctx.JSON(http.StatusUnauthorized, errorResponse("unauthorized", "missing session"))
		return
	}
	var request checkoutRequest
	if err := ctx.ShouldBindJSON(&request); err != nil {
		ctx.JSON(http.StatusBadRequest, errorResponse("invalid_payload", "expected JSON body"))
		return
	}
	creditPackage, ok := payments.PackageByID(request.PackageID)
	if !ok {
		ctx.JSON(http.StatusBadRequest, errorResponse("unknown_package", "no such credit package"))
		return
	}
	ctx.JSON(http.StatusOK, gin.H{
		"package":       creditPackage,
		"accountId":     claims.UserID,
		"transactionId": "txn_" + uuid.NewString(),
	})
}

func (handler *httpHandler) handlePrograms(ctx *gin.Context) {
	ctx.JSON(http.StatusOK, gin.H{"programs": questions.Programs()})
}

// handlePaymentWebhook verifies the gateway signature, decodes the event,
// and grants credits keyed on the gateway transaction id. Replays resolve
// to the same balance and are acknowledged identically.
func (handler *httpHandler) handlePaymentWebhook(ctx *gin.Context) {
	payload, err := io.ReadAll(io.LimitReader(ctx.Request.Body, 1<<20))
	if err != nil {
		webhookDeliveries.WithLabelValues("malformed").Inc()
		ctx.JSON(http.StatusBadRequest, errorResponse("invalid_payload", "unreadable body"))
		return
	}
	header := ctx.GetHeader(payments.SignatureHeader)
	if err := payments.VerifySignature(payload, header, handler.webhookSecret, time.Now().UTC()); err != nil {
		webhookDeliveries.WithLabelValues("invalid_signature").Inc()
		handler.logger.Warn("webhook signature rejected", zap.Error(err))
		ctx.JSON(http.StatusBadRequest, errorResponse("invalid_signature", "signature verification failed"))
		return
	}

	event, err := payments.ParseEvent(payload)
	if err != nil {
		webhookDeliveries.WithLabelValues("malformed").Inc()
		ctx.JSON(http.StatusBadRequest, errorResponse("invalid_payload", "malformed event"))
		return
	}
	if !event.GrantsCredits() {
		webhookDeliveries.WithLabelValues("ignored").Inc()
		ctx.JSON(http.StatusOK, gin.H{"received": true})
		return
	}

	accountID, err := ledger.NewAccountID(event.AccountID)
	if err != nil {
		webhookDeliveries.WithLabelValues("malformed").Inc()
		ctx.JSON(http.StatusBadRequest, errorResponse("invalid_payload", "bad account id"))
		return
	}
	transactionID, err := ledger.NewTransactionID(event.TransactionID)
	if err != nil {
		webhookDeliveries.WithLabelValues("malformed").Inc()
		ctx.JSON(http.StatusBadRequest, errorResponse("invalid_payload", "bad transaction id"))
		return
	}
	delta, err := ledger.NewCreditDelta(event.Credits)
	if err != nil {
		webhookDeliveries.WithLabelValues("malformed").Inc()
		ctx.JSON(http.StatusBadRequest, errorResponse("invalid_payload", "bad credit amount"))
		return
	}
	metadata, err := ledger.NewMetadataJSON(marshalMetadata(map[string]string{
		"action": "purchase_grant",
		"event":  event.Type,
	}))
	if err != nil {
		webhookDeliveries.WithLabelValues("error").Inc()
		ctx.JSON(http.StatusInternalServerError, errorResponse("internal", "metadata encoding failed"))
		return
	}

	if _, err := handler.ledger.ApplyDelta(ctx.Request.Context(), accountID, transactionID, delta, metadata); err != nil {
		webhookDeliveries.WithLabelValues("error").Inc()
		handler.logger.Error("webhook grant failed", zap.Error(err), zap.String("transaction_id", event.TransactionID))
		ctx.JSON(http.StatusBadGateway, errorResponse("ledger_error", "grant failed"))
		return
	}
	webhookDeliveries.WithLabelValues("applied").Inc()
	ctx.JSON(http.StatusOK, gin.H{"received": true})
}

type startInterviewRequest struct {
	ProgramCategory string `json:"programCategory"`
	QuestionCount   int    `json:"questionCount"`
}

func (handler *httpHandler) handleStartInterview(ctx *gin.Context) {
	claims := getClaims(ctx)
	if claims == nil {
		ctx.JSON(http.StatusUnauthorized, errorResponse("unauthorized", "missing session"))
		return
	}
	var request startInterviewRequest
	if err := ctx.ShouldBindJSON(&request); err != nil && !errors.Is(err, io.EOF) {
		ctx.JSON(http.StatusBadRequest, errorResponse("invalid_payload", "expected JSON body"))
		return
	}
	if request.QuestionCount <= 0 {
		request.QuestionCount = InterviewQuestionCount()
	}

	started, err := handler.interview.Start(ctx.Request.Context(), claims.UserID, request.ProgramCategory, request.QuestionCount)
	if err != nil {
		if errors.Is(err, ledger.ErrInsufficientBalance) {
			ctx.JSON(http.StatusPaymentRequired, errorResponse("insufficient_credits", "no credits available"))
			return
		}
		handler.logger.Error("start interview failed", zap.Error(err))
		ctx.JSON(http.StatusBadGateway, errorResponse("ledger_error", "start failed"))
		return
	}
	ctx.JSON(http.StatusOK, started)
}

func (handler *httpHandler) handleCompleteInterview(ctx *gin.Context) {
	claims := getClaims(ctx)
	if claims == nil {
		ctx.JSON(http.StatusUnauthorized, errorResponse("unauthorized", "missing session"))
		return
	}
	var session recorder.PracticeSession
	if err := ctx.ShouldBindJSON(&session); err != nil {
		ctx.JSON(http.StatusBadRequest, errorResponse("invalid_payload", "expected session JSON"))
		return
	}
	session.SessionID = ctx.Param("id")
	session.AccountID = claims.UserID

	result, err := handler.interview.Complete(ctx.Request.Context(), session)
	if err != nil {
		switch {
		case errors.Is(err, recorder.ErrRecordTooLarge):
			ctx.JSON(http.StatusRequestEntityTooLarge, errorResponse("record_too_large", "session exceeds storage ceiling"))
		case errors.Is(err, recorder.ErrInvalidSession):
			ctx.JSON(http.StatusBadRequest, errorResponse("invalid_payload", "invalid session record"))
		default:
			handler.logger.Error("complete interview failed", zap.Error(err), zap.String("session_id", session.SessionID))
			ctx.JSON(http.StatusBadGateway, errorResponse("storage_error", "completion failed"))
		}
		return
	}
	sessionDebits.WithLabelValues(string(result.Debit)).Inc()
	ctx.JSON(http.StatusOK, result)
}

func (handler *httpHandler) handleListSessions(ctx *gin.Context) {
	claims := getClaims(ctx)
	if claims == nil {
		ctx.JSON(http.StatusUnauthorized, errorResponse("unauthorized", "missing session"))
		return
	}
	sessions, err := handler.interview.Sessions(ctx.Request.Context(), claims.UserID)
	if err != nil {
		handler.logger.Error("list sessions failed", zap.Error(err))
		ctx.JSON(http.StatusBadGateway, errorResponse("storage_error", "listing failed"))
		return
	}
	ctx.JSON(http.StatusOK, gin.H{"sessions": sessions})
}

func (handler *httpHandler) handleGetSession(ctx *gin.Context) {
	claims := getClaims(ctx)
	if claims == nil {
		ctx.JSON(http.StatusUnauthorized, errorResponse("unauthorized", "missing session"))
		return
	}
	session, tier, err := handler.interview.Session(ctx.Request.Context(), ctx.Param("id"))
	if err != nil {
		if errors.Is(err, recorder.ErrUnknownSession) {
			ctx.JSON(http.StatusNotFound, errorResponse("not_found", "unknown session"))
			return
		}
		handler.logger.Error("load session failed", zap.Error(err))
		ctx.JSON(http.StatusBadGateway, errorResponse("storage_error", "load failed"))
		return
	}
	if session.AccountID != claims.UserID {
		ctx.JSON(http.StatusNotFound, errorResponse("not_found", "unknown session"))
		return
	}
	ctx.JSON(http.StatusOK, gin.H{"session": session, "storedTier": tier})
}

func (handler *httpHandler) handleDeleteSession(ctx *gin.Context) {
	claims := getClaims(ctx)
	if claims == nil {
		ctx.JSON(http.StatusUnauthorized, errorResponse("unauthorized", "missing session"))
		return
	}
	session, _, err := handler.interview.Session(ctx.Request.Context(), ctx.Param("id"))
	if err != nil {
		if errors.Is(err, recorder.ErrUnknownSession) {
			ctx.JSON(http.StatusNotFound, errorResponse("not_found", "unknown session"))
			return
		}
		handler.logger.Error("load session failed", zap.Error(err))
		ctx.JSON(http.StatusBadGateway, errorResponse("storage_error", "load failed"))
		return
	}
	if session.AccountID != claims.UserID {
		ctx.JSON(http.StatusNotFound, errorResponse("not_found", "unknown session"))
		return
	}
	if err := handler.interview.DeleteSession(ctx.Request.Context(), ctx.Param("id")); err != nil {
		handler.logger.Error("delete session failed", zap.Error(err))
		ctx.JSON(http.StatusBadGateway, errorResponse("storage_error", "delete failed"))
		return
	}
	ctx.JSON(http.StatusOK, gin.H{"deleted": true})
}

// handleGrade accepts a multipart form with the recorded answer under
// "audio" and the question text under "question".
func (handler *httpHandler) handleGrade(ctx *gin.Context) {
	claims := getClaims(ctx)
	if claims == nil {
		ctx.JSON(http.StatusUnauthorized, errorResponse("unauthorized", "missing session"))
		return
	}
	if handler.grader == nil {
		ctx.JSON(http.StatusServiceUnavailable, errorResponse("grading_unavailable", "grading is not configured"))
		return
	}

	question := ctx.PostForm("question")
	fileHeader, err := ctx.FormFile("audio")
	if err != nil {
		ctx.JSON(http.StatusBadRequest, errorResponse("invalid_payload", "audio file is required"))
		return
	}
	if fileHeader.Size > maxGradeUploadBytes {
		ctx.JSON(http.StatusRequestEntityTooLarge, errorResponse("audio_too_large", "audio exceeds upload ceiling"))
		return
	}
	file, err := fileHeader.Open()
	if err != nil {
		ctx.JSON(http.StatusBadRequest, errorResponse("invalid_payload", "unreadable audio file"))
		return
	}
	defer file.Close()
	audio, err := io.ReadAll(io.LimitReader(file, maxGradeUploadBytes))
	if err != nil {
		ctx.JSON(http.StatusBadRequest, errorResponse("invalid_payload", "unreadable audio file"))
		return
	}
	mimeType := fileHeader.Header.Get("Content-Type")
	if mimeType == "" {
		mimeType = "audio/webm"
	}

	started := time.Now()
	result, err := handler.grader.Grade(ctx.Request.Context(), audio, mimeType, question)
	gradingDuration.Observe(time.Since(started).Seconds())
	if err != nil {
		gradingRequests.WithLabelValues("error").Inc()
		handler.logger.Error("grading failed", zap.Error(err))
		if errors.Is(err, grading.ErrUpstreamUnavailable) {
			ctx.JSON(http.StatusBadGateway, errorResponse("grading_unavailable", "grading upstream unavailable"))
			return
		}
		ctx.JSON(http.StatusBadGateway, errorResponse("grading_error", "grading failed"))
		return
	}

	if result.Scored {
		gradingRequests.WithLabelValues("scored").Inc()
		ctx.JSON(http.StatusOK, gin.H{"scored": true, "feedback": result.Feedback})
		return
	}
	gradingRequests.WithLabelValues("unscored").Inc()
	ctx.JSON(http.StatusOK, gin.H{"scored": false, "feedback": gin.H{"text": result.RawText}})
}

func (handler *httpHandler) respondWithWallet(ctx *gin.Context, userID string) {
	accountID, err := ledger.NewAccountID(userID)
	if err != nil {
		ctx.JSON(http.StatusBadRequest, errorResponse("invalid_account", "bad account id"))
		return
	}
	requestCtx := ctx.Request.Context()
	balance, err := handler.ledger.GetBalance(requestCtx, accountID)
	if err != nil {
		handler.logger.Error("balance fetch failed", zap.Error(err))
		ctx.JSON(http.StatusBadGateway, errorResponse("ledger_error", "wallet unavailable"))
		return
	}
	transactions, err := handler.ledger.ListTransactions(requestCtx, accountID, time.Now().UTC().Add(time.Second).Unix(), WalletHistoryLimit())
	if err != nil {
		handler.logger.Error("history fetch failed", zap.Error(err))
		ctx.JSON(http.StatusBadGateway, errorResponse("ledger_error", "wallet unavailable"))
		return
	}

	entries := make([]entryPayload, 0, len(transactions))
	for _, transaction := range transactions {
		entries = append(entries, entryPayload{
			TransactionID:  transaction.TransactionID.String(),
			DeltaCredits:   transaction.Delta.Int64(),
			Metadata:       json.RawMessage(transaction.Metadata.String()),
			AppliedUnixUTC: transaction.AppliedAtUnixUTC,
		})
	}
	ctx.JSON(http.StatusOK, gin.H{"wallet": walletResponse{
		BalanceCredits: balance.Int64(),
		Entries:        entries,
	}})
}

func marshalMetadata(metadata any) string {
	raw, err := json.Marshal(metadata)
	if err != nil {
		return "{}"
	}
	return string(raw)
}

func errorResponse(code string, message string) gin.H {
	return gin.H{
		"error": gin.H{
			"code":    code,
			"message": message,
		},
	}
}

type walletResponse struct {
	BalanceCredits int64          `json:"balance_credits"`
	Entries        []entryPayload `json:"entries"`
}

type entryPayload struct {
	TransactionID  string          `json:"transaction_id"`
	DeltaCredits   int64           `json:"delta_credits"`
	Metadata       json.RawMessage `json:"metadata"`
	AppliedUnixUTC int64           `json:"applied_unix_utc"`
}
