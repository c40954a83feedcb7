package middleware

import (
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/hashicorp/golang-lru/v2/expirable"
	"golang.org/x/time/rate"

	"github.com/uacr-monitor/internal/domain"
)

const (
	defaultMaxClients = 10000
	defaultClientIdle = 10 * time.Minute
)

// ClientLimiter hands out one token bucket per client IP. Buckets of clients
// idle longer than the TTL, or beyond the capacity, are evicted.
type ClientLimiter struct {
	mu       sync.Mutex
	limiters *expirable.LRU[string, *rate.Limiter]
	rps      rate.Limit
	burst    int
}

// NewClientLimiter creates a limiter allowing rps requests per second per
// client with the given burst.
func NewClientLimiter(rps float64, burst int) *ClientLimiter {
	return NewClientLimiterWithCapacity(rps, burst, defaultMaxClients, defaultClientIdle)
}

// NewClientLimiterWithCapacity bounds the number of tracked clients and how
// long an idle client's bucket is kept.
func NewClientLimiterWithCapacity(rps float64, burst, maxClients int, idle time.Duration) *ClientLimiter {
	return &ClientLimiter{
		limiters: expirable.NewLRU[string, *rate.Limiter](maxClients, nil, idle),
		rps:      rate.Limit(rps),
		burst:    burst,
	}
}

// Allow reports whether the client may make a request now.
func (l *ClientLimiter) Allow(client string) bool {
	l.mu.Lock()
	lim, ok := l.limiters.Get(client)
	if !ok {
		lim = rate.NewLimiter(l.rps, l.burst)
	}
	// Re-adding refreshes the idle TTL.
	l.limiters.Add(client, lim)
	l.mu.Unlock()
	return lim.Allow()
}

// Clients returns the number of tracked clients.
func (l *ClientLimiter) Clients() int {
	return l.limiters.Len()
}

// RateLimit rejects requests beyond the client's budget with 429.
func RateLimit(limiter *ClientLimiter) gin.HandlerFunc {
	return func(c *gin.Context) {
		if !limiter.Allow(c.ClientIP()) {
			apiErr := domain.NewAPIError(domain.ErrCodeRateLimit, "Too many requests",
				"request budget exhausted; retry shortly", c.GetString(CorrelationIDKey))
			c.AbortWithStatusJSON(http.StatusTooManyRequests, apiErr)
			return
		}
		c.Next()
	}
}
