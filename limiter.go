package main

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

const (
	limiterIdleTTL         = 10 * time.Minute
	limiterCleanupInterval = time.Minute
)

type clientState struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// clientLimiter keeps one token bucket per client IP.
type clientLimiter struct {
	mu      sync.Mutex
	clients map[string]*clientState
	rps     rate.Limit
	burst   int
	now     func() time.Time
}

// newClientLimiter returns nil when cfg disables rate limiting.
func newClientLimiter(cfg RateLimitConfig) *clientLimiter {
	if cfg.RPS <= 0 {
		return nil
	}

	return &clientLimiter{
		clients: make(map[string]*clientState),
		rps:     rate.Limit(cfg.RPS),
		burst:   cfg.Burst,
		now:     time.Now,
	}
}

func (l *clientLimiter) allow(ip string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()

	st, ok := l.clients[ip]
	if !ok {
		st = &clientState{limiter: rate.NewLimiter(l.rps, l.burst)}
		l.clients[ip] = st
	}
	st.lastSeen = now

	return st.limiter.AllowN(now, 1)
}

// startCleanup forgets idle clients every interval until ctx is done.
func (l *clientLimiter) startCleanup(ctx context.Context, interval time.Duration, logger *zap.Logger) {
	if l == nil {
		return
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := l.cleanup(); n > 0 {
				logger.Debug("rate limiter forgot idle clients", zap.Int("removed", n))
			}
		}
	}
}

func (l *clientLimiter) cleanup() int {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	removed := 0
	for ip, st := range l.clients {
		if now.Sub(st.lastSeen) > limiterIdleTTL {
			delete(l.clients, ip)
			removed++
		}
	}

	return removed
}

func rateLimit(l *clientLimiter) gin.HandlerFunc {
	return func(c *gin.Context) {
		if l != nil && !l.allow(c.ClientIP()) {
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"error": "rate limit exceeded"})
			return
		}
		c.Next()
	}
}
