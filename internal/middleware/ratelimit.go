package middleware

import (
	"fmt"
	"math"
	"net/http"
	"strconv"
	"sync"

	"github.com/gin-gonic/gin"
	lru "github.com/hashicorp/golang-lru/v2"
	"golang.org/x/time/rate"

	"github.com/drug-conflict-mcp-server/internal/domain"
)

// maxTrackedClients bounds how many per-client limiters are kept.
const maxTrackedClients = 10000

// limiterStore holds one token bucket per client key.
type limiterStore struct {
	mu       sync.Mutex
	limiters *lru.Cache[string, *rate.Limiter]
	limit    rate.Limit
	burst    int
}

func newLimiterStore(cfg domain.RateLimitConfig) *limiterStore {
	limiters, err := lru.New[string, *rate.Limiter](maxTrackedClients)
	if err != nil {
		panic(fmt.Sprintf("failed to create rate limiter cache: %v", err))
	}
	return &limiterStore{
		limiters: limiters,
		limit:    rate.Limit(cfg.RequestsPerSecond),
		burst:    cfg.Burst,
	}
}

func (s *limiterStore) get(key string) *rate.Limiter {
	s.mu.Lock()
	defer s.mu.Unlock()

	if l, ok := s.limiters.Get(key); ok {
		return l
	}
	l := rate.NewLimiter(s.limit, s.burst)
	s.limiters.Add(key, l)
	return l
}

// RateLimit returns a per-client token bucket middleware keyed by client IP.
// Disabled configs pass every request through.
func RateLimit(cfg domain.RateLimitConfig) gin.HandlerFunc {
	if !cfg.Enabled {
		return func(c *gin.Context) { c.Next() }
	}

	store := newLimiterStore(cfg)
	limitHeader := strconv.FormatFloat(cfg.RequestsPerSecond, 'f', -1, 64)

	return func(c *gin.Context) {
		limiter := store.get(c.ClientIP())
		c.Header("X-RateLimit-Limit", limitHeader)

		if !limiter.Allow() {
			retryAfter := 1
			if cfg.RequestsPerSecond > 0 {
				retryAfter = int(math.Ceil(1 / cfg.RequestsPerSecond))
			}
			c.Header("Retry-After", strconv.Itoa(retryAfter))
			c.Header("X-RateLimit-Remaining", "0")
			abortWithError(c, http.StatusTooManyRequests, domain.ErrCodeRateLimit, "Rate limit exceeded")
			return
		}

		c.Next()
	}
}
