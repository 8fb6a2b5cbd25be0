package middleware

import (
	"strconv"
	"time"

	"github.com/gameshub/uvlhub/util/metrics"

	"github.com/gin-gonic/gin"
)

// MetricsMiddleware counts requests and their latency per route pattern.
// Unmatched paths are grouped under "unmatched" to bound label cardinality.
func MetricsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		path := c.FullPath()
		if path == "" {
			path = "unmatched"
		}
		metrics.HTTPRequestsTotal.WithLabelValues(c.Request.Method, path, strconv.Itoa(c.Writer.Status())).Inc()
		metrics.HTTPRequestDuration.WithLabelValues(c.Request.Method, path).Observe(time.Since(start).Seconds())
	}
}
