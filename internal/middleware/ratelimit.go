package middleware

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	gocache "github.com/patrickmn/go-cache"
	"golang.org/x/time/rate"

	"github.com/clinovia/clinic-api/internal/handler"
)

type RateLimitConfig struct {
	RequestsPerSecond float64
	Burst             int
	// TTL evicts buckets for addresses that went quiet.
	TTL time.Duration
}

func DefaultRateLimitConfig() RateLimitConfig {
	return RateLimitConfig{
		RequestsPerSecond: 20,
		Burst:             40,
		TTL:               10 * time.Minute,
	}
}

// RateLimit applies a token bucket per client address. A lost race on the
// first request from an address hands out at most one extra burst.
func RateLimit(config RateLimitConfig) gin.HandlerFunc {
	buckets := gocache.New(config.TTL, 2*config.TTL)

	return func(c *gin.Context) {
		ip := c.ClientIP()

		var limiter *rate.Limiter
		if v, ok := buckets.Get(ip); ok {
			limiter = v.(*rate.Limiter)
		} else {
			limiter = rate.NewLimiter(rate.Limit(config.RequestsPerSecond), config.Burst)
		}
		buckets.SetDefault(ip, limiter)

		if !limiter.Allow() {
			c.Header("Retry-After", "1")
			c.AbortWithStatusJSON(http.StatusTooManyRequests,
				handler.NewErrorResponse("Too many requests. Please slow down."))
			return
		}
		c.Next()
	}
}
