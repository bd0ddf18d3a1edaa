package handler

import (
	"context"
	"math"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"
)

// limiterIdleTTL is how long an idle client's bucket is kept.
const limiterIdleTTL = 10 * time.Minute

type clientLimiter struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// RateLimiter returns a Gin middleware enforcing a per-IP token bucket of rps
// requests per second with the given burst. Idle buckets are swept every
// few minutes until ctx is cancelled.
func RateLimiter(ctx context.Context, rps, burst int) gin.HandlerFunc {
	var mu sync.Mutex
	clients := make(map[string]*clientLimiter)

	go func() {
		ticker := time.NewTicker(limiterIdleTTL / 2)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case now := <-ticker.C:
				mu.Lock()
				for ip, cl := range clients {
					if now.Sub(cl.lastSeen) > limiterIdleTTL {
						delete(clients, ip)
					}
				}
				mu.Unlock()
			}
		}
	}()

	return func(c *gin.Context) {
		ip := c.ClientIP()

		mu.Lock()
		cl, ok := clients[ip]
		if !ok {
			cl = &clientLimiter{limiter: rate.NewLimiter(rate.Limit(rps), burst)}
			clients[ip] = cl
		}
		cl.lastSeen = time.Now()
		mu.Unlock()

		res := cl.limiter.Reserve()
		if delay := res.Delay(); delay > 0 {
			res.Cancel()
			retry := int(math.Ceil(delay.Seconds()))
			c.Header("Retry-After", strconv.Itoa(retry))
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"error": "rate limit exceeded"})
			return
		}
		c.Next()
	}
}
