package server

import (
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"
)

const limiterIdleTTL = 10 * time.Minute

// rateLimiter keeps one token bucket per key, allowing limit events per window.
type rateLimiter struct {
	mu       sync.Mutex
	limit    rate.Limit
	burst    int
	visitors map[string]*visitor
	lastGC   time.Time
}

type visitor struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

func newRateLimiter(limit int, window time.Duration) *rateLimiter {
	if limit <= 0 {
		limit = 1
	}
	if window <= 0 {
		window = time.Minute
	}
	return &rateLimiter{
		limit:    rate.Every(window / time.Duration(limit)),
		burst:    limit,
		visitors: make(map[string]*visitor),
		lastGC:   time.Now(),
	}
}

func (l *rateLimiter) Allow(key string) bool {
	if l == nil {
		return true
	}
	now := time.Now()

	l.mu.Lock()
	defer l.mu.Unlock()

	if now.Sub(l.lastGC) > limiterIdleTTL {
		for k, v := range l.visitors {
			if now.Sub(v.lastSeen) > limiterIdleTTL {
				delete(l.visitors, k)
			}
		}
		l.lastGC = now
	}

	v, ok := l.visitors[key]
	if !ok {
		v = &visitor{limiter: rate.NewLimiter(l.limit, l.burst)}
		l.visitors[key] = v
	}
	v.lastSeen = now
	return v.limiter.AllowN(now, 1)
}

// RateLimit rejects requests from a client IP that exceeded its budget for endpoint.
func (s *Server) RateLimit(l *rateLimiter, endpoint string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if !l.Allow(endpoint + ":" + c.ClientIP()) {
			s.obsMetrics.RecordRateLimitDenied(c.Request.Context(), endpoint)
			AbortWithError(c, ErrRateLimited)
			return
		}
		c.Next()
	}
}
