package middleware

import (
	"context"
	"time"

	"github.com/gin-gonic/gin"
)

// Timeout puts a deadline on the request context. Handlers and the storage
// layer observe it through their context; the handler still owns the
// response writer, so there is no second goroutine racing to write.
func Timeout(d time.Duration) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), d)
		defer cancel()

		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}
