package middleware

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/clinovia/clinic-api/pkg/metrics"
)

// Metrics records request counts and latencies per route template, so
// /appointments/:id stays one series no matter how many IDs pass through.
func Metrics(m *metrics.Metrics) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		status := strconv.Itoa(c.Writer.Status())
		m.HTTPRequests.WithLabelValues(c.Request.Method, route, status).Inc()
		m.HTTPDuration.WithLabelValues(c.Request.Method, route).Observe(time.Since(start).Seconds())
	}
}
