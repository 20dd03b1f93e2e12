package middleware

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/wyfcoding/solarhealth/pkg/config"
	"github.com/wyfcoding/solarhealth/pkg/ratelimit"
)

// RateLimitMiddleware creates a Gin middleware for rate limiting keyed by client IP
func RateLimitMiddleware(limiter ratelimit.RateLimiter, cfg config.RateLimitConfig) gin.HandlerFunc {
	limit := ratelimit.Limit{Rate: cfg.Rate, Period: time.Second, Burst: cfg.Burst}
	return func(c *gin.Context) {
		if !cfg.Enabled {
			c.Next()
			return
		}

		res, err := limiter.Allow(c.Request.Context(), "ratelimit:"+c.ClientIP(), limit)
		if err != nil {
			// Fail open if the limiter backend is unavailable
			c.Next()
			return
		}

		c.Header("X-RateLimit-Limit", strconv.Itoa(limit.Burst))
		c.Header("X-RateLimit-Remaining", strconv.Itoa(res.Remaining))
		c.Header("X-RateLimit-Reset", strconv.FormatInt(int64(res.ResetAfter/time.Second), 10))

		if !res.Allowed {
			c.Header("Retry-After", strconv.FormatInt(int64(res.RetryAfter/time.Second), 10))
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"error":       "Too Many Requests",
				"retry_after": res.RetryAfter.String(),
			})
			return
		}
		c.Next()
	}
}
