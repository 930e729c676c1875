package main

import (
	"context"
	"fmt"
	"net/url"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"github.com/admitcoach/admitcoach/internal/grading"
	"github.com/admitcoach/admitcoach/internal/httpapi"
	"github.com/admitcoach/admitcoach/internal/interview"
	"github.com/admitcoach/admitcoach/internal/store/gormstore"
	"github.com/admitcoach/admitcoach/pkg/ledger"
	"github.com/admitcoach/admitcoach/pkg/recorder"
)

const (
	flagDatabaseURL       = "database-url"
	flagListenAddr        = "listen-addr"
	flagAllowedOrigins    = "allowed-origins"
	flagSessionSigningKey = "session-signing-key"
	flagSessionIssuer     = "session-issuer"
	flagSessionCookieName = "session-cookie-name"
	flagWebhookSecret     = "webhook-secret"
	flagGeminiAPIKey      = "gemini-api-key"
	flagMaxDocumentBytes  = "max-document-bytes"
	envPrefix             = "ADMITCOACH"

	defaultDatabaseURL = "sqlite:///tmp/admitcoach.db"
)

type runtimeConfig struct {
	DatabaseURL string
	API         httpapi.Config
}

func main() {
	rootCmd := newRootCommand()
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "admitcoachd: %v\n", err)
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	cfg := &runtimeConfig{}
	cmd := &cobra.Command{
		Use:           "admitcoachd",
		Short:         "Mock-interview coaching backend",
		SilenceUsage:  true,
		SilenceErrors: true,
		PreRunE: func(cmd *cobra.Command, args []string) error {
			return loadConfig(cmd, cfg)
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return runServer(ctx, cfg)
		},
	}

	cmd.Flags().String(flagDatabaseURL, defaultDatabaseURL, "PostgreSQL connection string or sqlite path")
	cmd.Flags().String(flagListenAddr, "", "HTTP listen address")
	cmd.Flags().String(flagAllowedOrigins, "", "comma-separated list of allowed CORS origins")
	cmd.Flags().String(flagSessionSigningKey, "", "JWT session signing key (required)")
	cmd.Flags().String(flagSessionIssuer, "", "expected JWT issuer")
	cmd.Flags().String(flagSessionCookieName, "", "session cookie name")
	cmd.Flags().String(flagWebhookSecret, "", "payment webhook signing secret (required)")
	cmd.Flags().String(flagGeminiAPIKey, "", "Gemini API key; grading is disabled when empty")
	cmd.Flags().Int(flagMaxDocumentBytes, 0, "per-session document size ceiling in bytes")

	return cmd
}

func loadConfig(cmd *cobra.Command, cfg *runtimeConfig) error {
	v := viper.New()
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	flagNames := []string{
		flagDatabaseURL,
		flagListenAddr,
		flagAllowedOrigins,
		flagSessionSigningKey,
		flagSessionIssuer,
		flagSessionCookieName,
		flagWebhookSecret,
		flagGeminiAPIKey,
		flagMaxDocumentBytes,
	}
	for _, flagName := range flagNames {
		if err := v.BindPFlag(flagName, cmd.Flags().Lookup(flagName)); err != nil {
			return err
		}
	}

	cfg.DatabaseURL = strings.TrimSpace(v.GetString(flagDatabaseURL))
	if cfg.DatabaseURL == "" {
		cfg.DatabaseURL = defaultDatabaseURL
	}
	cfg.API.ListenAddr = strings.TrimSpace(v.GetString(flagListenAddr))
	cfg.API.AllowedOrigins = httpapi.ParseAllowedOrigins(v.GetString(flagAllowedOrigins))
	cfg.API.SessionSigningKey = v.GetString(flagSessionSigningKey)
	cfg.API.SessionIssuer = strings.TrimSpace(v.GetString(flagSessionIssuer))
	cfg.API.SessionCookieName = strings.TrimSpace(v.GetString(flagSessionCookieName))
	cfg.API.WebhookSecret = v.GetString(flagWebhookSecret)
	cfg.API.GeminiAPIKey = v.GetString(flagGeminiAPIKey)
	cfg.API.MaxDocumentBytes = v.GetInt(flagMaxDocumentBytes)

	return cfg.API.Validate()
}

func runServer(ctx context.Context, cfg *runtimeConfig) error {
	logger, err := zap.NewProduction()
	if err != nil {
		return fmt.Errorf("logger init: %w", err)
	}
	defer func() { _ = logger.Sync() }()

	gormDB, cleanup, driver, err := openDatabase(ctx, cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("database open: %w", err)
	}
	defer cleanup()

	if err := prepareSchema(gormDB, driver); err != nil {
		return err
	}

	store := gormstore.New(gormDB, cfg.API.MaxDocumentBytes)
	clock := func() int64 { return time.Now().UTC().Unix() }

	ledgerService, err := ledger.NewService(store, clock, ledger.WithOperationLogger(&zapOperationLogger{logger: logger}))
	if err != nil {
		return fmt.Errorf("ledger service init: %w", err)
	}
	sessionRecorder, err := recorder.NewRecorder(store)
	if err != nil {
		return fmt.Errorf("recorder init: %w", err)
	}
	interviewService, err := interview.NewService(ledgerService, sessionRecorder, clock)
	if err != nil {
		return fmt.Errorf("interview service init: %w", err)
	}

	var grader grading.Grader
	if strings.TrimSpace(cfg.API.GeminiAPIKey) != "" {
		geminiGrader, graderErr := grading.NewGeminiGrader(ctx, cfg.API.GeminiAPIKey, cfg.API.GraderConcurrency)
		if graderErr != nil {
			return fmt.Errorf("grader init: %w", graderErr)
		}
		defer geminiGrader.Close()
		grader = geminiGrader
	} else {
		logger.Warn("gemini api key not set, grading disabled")
	}

	return httpapi.Run(ctx, cfg.API, httpapi.Dependencies{
		Logger:    logger,
		Ledger:    ledgerService,
		Interview: interviewService,
		Grader:    grader,
	})
}

// zapOperationLogger bridges ledger operation callbacks onto zap.
type zapOperationLogger struct {
	logger *zap.Logger
}

func (operationLogger *zapOperationLogger) LogOperation(ctx context.Context, entry ledger.OperationLog) {
	fields := []zap.Field{
		zap.String("operation", entry.Operation),
		zap.String("account_id", entry.AccountID.String()),
		zap.String("transaction_id", entry.TransactionID.String()),
		zap.Int64("delta", entry.Delta.Int64()),
		zap.Int64("balance", entry.Balance.Int64()),
		zap.String("status", entry.Status),
	}
	if entry.Error != nil {
		fields = append(fields, zap.Error(entry.Error))
		operationLogger.logger.Warn("ledger operation", fields...)
		return
	}
	operationLogger.logger.Info("ledger operation", fields...)
}

func openDatabase(ctx context.Context, dsn string) (*gorm.DB, func() error, string, error) {
	driver, sqlitePath, err := resolveDriver(dsn)
	if err != nil {
		return nil, nil, "", err
	}

	var db *gorm.DB
	gormCfg := &gorm.Config{}
	switch driver {
	case "postgres":
		db, err = gorm.Open(postgres.Open(dsn), gormCfg)
	case "sqlite":
		db, err = gorm.Open(sqlite.Open(sqlitePath), gormCfg)
	default:
		return nil, nil, "", fmt.Errorf("unsupported database scheme %q", driver)
	}
	if err != nil {
		return nil, nil, "", err
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, nil, "", err
	}
	cleanup := func() error { return sqlDB.Close() }
	return db.WithContext(ctx), cleanup, driver, nil
}

func resolveDriver(dsn string) (string, string, error) {
	if strings.HasPrefix(dsn, "postgres://") || strings.HasPrefix(dsn, "postgresql://") {
		return "postgres", "", nil
	}
	if strings.HasPrefix(dsn, "sqlite://") {
		u, err := url.Parse(dsn)
		if err != nil {
			return "", "", fmt.Errorf("parse sqlite url: %w", err)
		}
		path := u.Path
		if path == "" {
			path = u.Host
		}
		if path == "" || path == "/" {
			path = "admitcoach.db"
		}
		sqlitePath, err := normalizeSQLitePath(path)
		return "sqlite", sqlitePath, err
	}
	// Treat everything else as a direct sqlite path.
	sqlitePath, err := normalizeSQLitePath(dsn)
	return "sqlite", sqlitePath, err
}

func normalizeSQLitePath(path string) (string, error) {
	if path == ":memory:" {
		return path, nil
	}
	if strings.HasPrefix(path, "/") {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return "", err
		}
		return path, nil
	}
	abs := filepath.Join(".", path)
	if err := os.MkdirAll(filepath.Dir(abs), 0o755); err != nil {
		return "", err
	}
	return abs, nil
}

func prepareSchema(db *gorm.DB, driver string) error {
	if driver != "sqlite" {
		return nil
	}
	if err := db.AutoMigrate(&gormstore.Account{}, &gormstore.CreditTransaction{}, &gormstore.SessionDocument{}); err != nil {
		return fmt.Errorf("auto migrate: %w", err)
	}
	return nil
}
