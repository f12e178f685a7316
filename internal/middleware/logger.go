package middleware

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/clinovia/clinic-api/pkg/logger"
)

// RequestLogger writes one line per request. Bodies are never captured: they
// carry credentials and clinical content.
func RequestLogger(log *logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		if raw := c.Request.URL.RawQuery; raw != "" {
			path = path + "?" + raw
		}

		c.Next()

		status := c.Writer.Status()
		fields := []interface{}{
			"request_id", c.GetString(ContextRequestID),
			"method", c.Request.Method,
			"path", path,
			"status", status,
			"latency_ms", time.Since(start).Milliseconds(),
			"client_ip", c.ClientIP(),
			"user_agent", c.Request.UserAgent(),
		}

		switch {
		case status >= http.StatusInternalServerError:
			log.Error(nil, "request", fields...)
		case status >= http.StatusBadRequest:
			log.Warn("request", fields...)
		default:
			log.Info("request", fields...)
		}
	}
}
