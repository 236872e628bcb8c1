package middleware

import (
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"
)

type visitor struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// RateLimit applies a per-IP token bucket of r requests per second with
// burst b. The panel is open to anonymous read traffic, so limiting keys
// on client IP rather than user identity.
func RateLimit(r rate.Limit, b int) gin.HandlerFunc {
	visitors := &sync.Map{}

	// Evict idle IPs so the map does not grow with every visitor ever seen.
	go func() {
		ticker := time.NewTicker(5 * time.Minute)
		defer ticker.Stop()
		for range ticker.C {
			cutoff := time.Now().Add(-10 * time.Minute)
			visitors.Range(func(k, v interface{}) bool {
				if v.(*visitor).lastSeen.Before(cutoff) {
					visitors.Delete(k)
				}
				return true
			})
		}
	}()

	lease := func(ip string) *rate.Limiter {
		v, _ := visitors.LoadOrStore(ip, &visitor{limiter: rate.NewLimiter(r, b)})
		vis := v.(*visitor)
		vis.lastSeen = time.Now()
		return vis.limiter
	}

	return func(c *gin.Context) {
		if !lease(c.ClientIP()).Allow() {
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"error": "rate limit exceeded"})
			return
		}
		c.Next()
	}
}
