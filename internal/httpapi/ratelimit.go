package httpapi

import (
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
)

type visitor struct {
	count    int
	lastSeen time.Time
}

// RateLimiter bounds requests per client IP inside a sliding window.
type RateLimiter struct {
	mu       sync.Mutex
	visitors map[string]*visitor
	limit    int
	window   time.Duration
	nowFn    func() time.Time
}

// NewRateLimiter returns a limiter allowing limit requests per window per IP.
func NewRateLimiter(limit int, window time.Duration) *RateLimiter {
	return &RateLimiter{
		visitors: make(map[string]*visitor),
		limit:    limit,
		window:   window,
		nowFn:    time.Now,
	}
}

// Allow records one request from ip and reports whether it is within budget.
func (limiter *RateLimiter) Allow(ip string) bool {
	now := limiter.nowFn()

	limiter.mu.Lock()
	defer limiter.mu.Unlock()

	entry, exists := limiter.visitors[ip]
	if !exists || now.Sub(entry.lastSeen) > limiter.window {
		limiter.visitors[ip] = &visitor{count: 1, lastSeen: now}
		return true
	}
	entry.count++
	entry.lastSeen = now
	return entry.count <= limiter.limit
}

// Sweep drops visitors idle longer than the window. Callers run it on a
// ticker alongside the server.
func (limiter *RateLimiter) Sweep() {
	now := limiter.nowFn()
	limiter.mu.Lock()
	defer limiter.mu.Unlock()
	for ip, entry := range limiter.visitors {
		if now.Sub(entry.lastSeen) > limiter.window {
			delete(limiter.visitors, ip)
		}
	}
}

// GinMiddleware rejects over-budget clients with 429.
func (limiter *RateLimiter) GinMiddleware() gin.HandlerFunc {
	return func(ctx *gin.Context) {
		if !limiter.Allow(ctx.ClientIP()) {
			ctx.AbortWithStatusJSON(http.StatusTooManyRequests, errorResponse("rate_limited", "too many requests"))
			return
		}
		ctx.Next()
	}
}
