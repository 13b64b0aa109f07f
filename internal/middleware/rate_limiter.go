package middleware

import (
	"net/http"
	"sync"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"
)

// RateLimiterConfig configures rate limiting behavior
type RateLimiterConfig struct {
	RequestsPerSecond float64
	Burst             int
}

// limiterMap holds one token bucket per client IP.
type limiterMap struct {
	mu       sync.Mutex
	limiters map[string]*rate.Limiter
	config   RateLimiterConfig
}

func (lm *limiterMap) get(ip string) *rate.Limiter {
	lm.mu.Lock()
	defer lm.mu.Unlock()

	// Bound memory under IP churn; resetting just refills buckets.
	if len(lm.limiters) > 1000 {
		lm.limiters = make(map[string]*rate.Limiter)
	}

	limiter, ok := lm.limiters[ip]
	if !ok {
		limiter = rate.NewLimiter(rate.Limit(lm.config.RequestsPerSecond), lm.config.Burst)
		lm.limiters[ip] = limiter
	}
	return limiter
}

// RateLimiterMiddleware creates a per-client-IP rate limiting middleware.
func RateLimiterMiddleware(config RateLimiterConfig) gin.HandlerFunc {
	lm := &limiterMap{
		limiters: make(map[string]*rate.Limiter),
		config:   config,
	}

	return func(c *gin.Context) {
		if !lm.get(c.ClientIP()).Allow() {
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"error": "rate limit exceeded"})
			return
		}
		c.Next()
	}
}
