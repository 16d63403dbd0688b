package middleware

import (
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"

	"github.com/peerhaven/peerhaven/config"
)

type rateLimiter struct {
	limiter *rate.Limiter
	expires time.Time
}

var (
	limiters   = map[string]*rateLimiter{}
	limitersMu sync.Mutex
)

// RateLimitMiddleware applies a per-IP token bucket to sensitive routes.
func RateLimitMiddleware() gin.HandlerFunc {
	cfg := config.Get()
	perMinute := cfg.RateLimitPerMinute
	if perMinute < 1 {
		perMinute = 1
	}
	every := rate.Every(time.Minute / time.Duration(perMinute))

	return func(ctx *gin.Context) {
		ip := ctx.ClientIP()

		limitersMu.Lock()
		entry, ok := limiters[ip]
		if !ok || time.Now().After(entry.expires) {
			entry = &rateLimiter{limiter: rate.NewLimiter(every, perMinute)}
		}
		entry.expires = time.Now().Add(10 * time.Minute)
		limiters[ip] = entry
		// Opportunistic cleanup of stale buckets.
		if len(limiters) > 10000 {
			for k, v := range limiters {
				if time.Now().After(v.expires) {
					delete(limiters, k)
				}
			}
		}
		limitersMu.Unlock()

		if !entry.limiter.Allow() {
			ctx.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"detail": "Request was throttled."})
			return
		}
		ctx.Next()
	}
}
