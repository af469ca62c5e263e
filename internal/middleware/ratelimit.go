package middleware

import (
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
)

// RateLimitMiddleware applies a fixed-window per-user limit backed by
// Redis. Generation endpoints are not limited here; credits meter those.
func RateLimitMiddleware(client *redis.Client, limit int, window time.Duration, log *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID := c.GetString(UserIDKey)
		if userID == "" {
			userID = c.ClientIP()
		}

		key := fmt.Sprintf("ratelimit:%s:%d", userID, time.Now().Unix()/int64(window.Seconds()))
		count, err := client.Incr(c.Request.Context(), key).Result()
		if err != nil {
			// Redis being down should not take the API down with it.
			log.Warn("rate limit check failed", "error", err)
			c.Next()
			return
		}
		if count == 1 {
			client.Expire(c.Request.Context(), key, window)
		}

		if count > int64(limit) {
			c.JSON(http.StatusTooManyRequests, gin.H{"error": "Rate limit exceeded"})
			c.Abort()
			return
		}

		c.Next()
	}
}
