package middleware

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gameshub/uvlhub/logger"
	"github.com/gameshub/uvlhub/util/metrics"
	"github.com/gameshub/uvlhub/web/entity"
	"github.com/gameshub/uvlhub/web/locale"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
)

// RateLimitMiddleware allows perMinute requests per client IP and route in
// a fixed one minute window, counted in Redis. perMinute <= 0 disables it.
// Redis failures let the request through.
func RateLimitMiddleware(client *redis.Client, perMinute int) gin.HandlerFunc {
	return func(c *gin.Context) {
		if perMinute <= 0 || client == nil {
			c.Next()
			return
		}
		ctx := c.Request.Context()
		key := "ratelimit:" + c.ClientIP() + ":" + c.Request.Method + ":" + c.Request.URL.Path

		count, err := client.Incr(ctx, key).Result()
		if err != nil {
			logger.Warning("Rate limit increment failed:", err)
			c.Next()
			return
		}
		if count == 1 {
			client.Expire(ctx, key, time.Minute)
		}

		remaining := perMinute - int(count)
		if remaining < 0 {
			remaining = 0
		}
		c.Header("X-RateLimit-Limit", strconv.Itoa(perMinute))
		c.Header("X-RateLimit-Remaining", strconv.Itoa(remaining))

		if count > int64(perMinute) {
			metrics.RateLimitHits.WithLabelValues(c.FullPath()).Inc()
			logger.Warningf("Rate limit exceeded for %s on %s (count: %d)", c.ClientIP(), c.Request.URL.Path, count)
			c.AbortWithStatusJSON(http.StatusTooManyRequests, entity.Msg{
				Success: false,
				Msg:     locale.T(c, "flash.rateLimited"),
			})
			return
		}
		c.Next()
	}
}
