package middlewares

import (
	"math"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/lightningnetwork/lnd/clock"

	"github.com/hxuan190/swap-engine/internal/metrics"
)

// RateLimiter is a per-IP token bucket.
type RateLimiter struct {
	mu       sync.Mutex
	clock    clock.Clock
	rate     int
	burst    int
	tokens   map[string]float64
	lastTime map[string]time.Time
}

func NewRateLimiter(rate, burst int) *RateLimiter {
	return NewRateLimiterWithClock(rate, burst, clock.NewDefaultClock())
}

func NewRateLimiterWithClock(rate, burst int, clk clock.Clock) *RateLimiter {
	return &RateLimiter{
		clock:    clk,
		rate:     rate,
		burst:    burst,
		tokens:   make(map[string]float64),
		lastTime: make(map[string]time.Time),
	}
}

// take consumes a token for key. When the bucket is empty it returns false
// and the whole seconds until the next token is available.
func (rl *RateLimiter) take(key string) (bool, int) {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.clock.Now()
	if _, exists := rl.tokens[key]; !exists {
		rl.tokens[key] = float64(rl.burst)
		rl.lastTime[key] = now
	}

	elapsed := now.Sub(rl.lastTime[key])
	rl.lastTime[key] = now

	rl.tokens[key] = math.Min(float64(rl.burst), rl.tokens[key]+elapsed.Seconds()*float64(rl.rate))

	if rl.tokens[key] < 1 {
		missing := 1 - rl.tokens[key]
		return false, int(math.Ceil(missing / float64(rl.rate)))
	}

	rl.tokens[key]--
	return true, 0
}

func (rl *RateLimiter) RateLimitMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		ok, retryAfter := rl.take(c.ClientIP())
		if !ok {
			metrics.RateLimited.Inc()
			c.Header("Retry-After", strconv.Itoa(retryAfter))
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"error":      "rate limit exceeded",
				"retryAfter": retryAfter,
			})
			return
		}

		c.Next()
	}
}
