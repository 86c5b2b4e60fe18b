package middleware

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"user-image-service/internal/adapter/ratelimit"
)

// RateLimiter returns a Gin middleware for rate limiting using the shared token bucket
func RateLimiter(limiter *ratelimit.Limiter) gin.HandlerFunc {
	return func(c *gin.Context) {
		if !limiter.Enabled() {
			c.Next()
			return
		}

		// One bucket per route and client
		scope := c.Request.Method + " " + c.FullPath()
		if c.FullPath() == "" {
			scope = c.Request.Method + " " + c.Request.URL.Path
		}

		// Redis errors fail open
		allowed, _ := limiter.Allow(c.Request.Context(), scope, c.ClientIP())
		if !allowed {
			cfg := limiter.Config()
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"error":   "rate_limit_exceeded",
				"message": fmt.Sprintf("Rate limit exceeded: %.2f requests/second (burst capacity: %d)", cfg.RequestsPerSecond, cfg.BurstCapacity),
			})
			return
		}

		c.Next()
	}
}
