package middleware

import (
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/hashicorp/golang-lru/v2/expirable"
	"golang.org/x/time/rate"
)

const (
	maxTrackedClients = 10000
	limiterTTL        = 10 * time.Minute
)

// RateLimit returns a per-client-IP token bucket middleware
func RateLimit(requestsPerMinute, burst int) gin.HandlerFunc {
	if requestsPerMinute <= 0 {
		return func(c *gin.Context) { c.Next() }
	}
	limiters := expirable.NewLRU[string, *rate.Limiter](maxTrackedClients, nil, limiterTTL)
	every := rate.Every(time.Minute / time.Duration(requestsPerMinute))

	// mu makes lookup-or-create atomic so concurrent first requests share a bucket.
	var mu sync.Mutex
	limiterFor := func(ip string) *rate.Limiter {
		mu.Lock()
		defer mu.Unlock()
		limiter, ok := limiters.Get(ip)
		if !ok {
			limiter = rate.NewLimiter(every, burst)
			limiters.Add(ip, limiter)
		}
		return limiter
	}

	return func(c *gin.Context) {
		limiter := limiterFor(c.ClientIP())

		if !limiter.Allow() {
			c.Header("Retry-After", "60")
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"status":  "error",
				"error":   "rate_limited",
				"message": "too many requests",
			})
			return
		}

		c.Next()
	}
}
