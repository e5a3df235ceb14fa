package middleware

import (
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
)

type window struct {
	count int
	start time.Time
}

// RateLimit returns a middleware that limits requests per client IP using a
// fixed in-process window. State lives in memory; this server is single
// process by design.
func RateLimit(maxRequests int, windowSize time.Duration) gin.HandlerFunc {
	if maxRequests <= 0 {
		panic("maxRequests must be positive for RateLimit middleware")
	}
	if windowSize <= 0 {
		panic("window duration must be positive for RateLimit middleware")
	}

	var mu sync.Mutex
	visitors := make(map[string]*window)

	return func(c *gin.Context) {
		now := time.Now()
		ip := c.ClientIP()

		mu.Lock()
		w, ok := visitors[ip]
		if !ok || now.Sub(w.start) >= windowSize {
			// Expired windows for other IPs are pruned lazily.
			for k, v := range visitors {
				if now.Sub(v.start) >= windowSize {
					delete(visitors, k)
				}
			}
			w = &window{start: now}
			visitors[ip] = w
		}
		w.count++
		count := w.count
		mu.Unlock()

		if count > maxRequests {
			c.JSON(http.StatusTooManyRequests, gin.H{"error": "Too many requests"})
			c.Abort()
			return
		}
		c.Next()
	}
}
