package httpapi

import (
	"fmt"
	"strings"
	"time"
)

const (
	defaultListenAddr        = ":9090"
	defaultAllowedOrigin     = "http://localhost:3000"
	defaultSessionIssuer     = "admitcoach"
	defaultSessionCookie     = "app_session"
	defaultRateLimit         = 60
	defaultRateWindow        = time.Minute
	walletHistoryLimit       = 10
	interviewQuestionCount   = 2
	defaultMaxDocumentBytes  = 1 << 20
	defaultGraderConcurrency = 4
)

// Config aggregates runtime settings for the HTTP API.
type Config struct {
	ListenAddr        string
	AllowedOrigins    []string
	SessionSigningKey string
	SessionIssuer     string
	SessionCookieName string
	WebhookSecret     string
	RateLimit         int
	RateWindow        time.Duration
	MaxDocumentBytes  int
	GeminiAPIKey      string
	GraderConcurrency int
}

// Validate ensures the configuration contains sane values.
func (cfg *Config) Validate() error {
	cfg.ListenAddr = defaultIfEmpty(cfg.ListenAddr, defaultListenAddr)
	if len(cfg.AllowedOrigins) == 0 {
		cfg.AllowedOrigins = []string{defaultAllowedOrigin}
	}
	cfg.SessionIssuer = defaultIfEmpty(cfg.SessionIssuer, defaultSessionIssuer)
	cfg.SessionCookieName = defaultIfEmpty(cfg.SessionCookieName, defaultSessionCookie)
	if cfg.RateLimit <= 0 {
		cfg.RateLimit = defaultRateLimit
	}
	if cfg.RateWindow <= 0 {
		cfg.RateWindow = defaultRateWindow
	}
	if cfg.MaxDocumentBytes <= 0 {
		cfg.MaxDocumentBytes = defaultMaxDocumentBytes
	}
	if cfg.GraderConcurrency <= 0 {
		cfg.GraderConcurrency = defaultGraderConcurrency
	}
	if len(cfg.SessionSigningKey) == 0 {
		return fmt.Errorf("session signing key is required")
	}
	if strings.TrimSpace(cfg.WebhookSecret) == "" {
		return fmt.Errorf("webhook secret is required")
	}
	return nil
}

func defaultIfEmpty(value string, fallback string) string {
	if strings.TrimSpace(value) == "" {
		return fallback
	}
	return value
}

// ParseAllowedOrigins splits comma-delimited origins into a slice.
func ParseAllowedOrigins(raw string) []string {
	if strings.TrimSpace(raw) == "" {
		return []string{}
	}
	parts := strings.Split(raw, ",")
	normalized := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			normalized = append(normalized, trimmed)
		}
	}
	return normalized
}

// WalletHistoryLimit returns how many ledger entries are fetched for the UI.
func WalletHistoryLimit() int {
	return walletHistoryLimit
}

// InterviewQuestionCount returns how many questions a sitting deals.
func InterviewQuestionCount() int {
	return interviewQuestionCount
}

// DefaultMaxDocumentBytes returns the session-document size ceiling.
func DefaultMaxDocumentBytes() int {
	return defaultMaxDocumentBytes
}
