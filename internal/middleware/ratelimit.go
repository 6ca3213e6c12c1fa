// ratelimit.go provides per-client token-bucket rate limiting for gin routes,
// returning 429 once a client exhausts its bucket.
package middleware

import (
	"math"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"

	"github.com/recordstore/recordstore/internal/config"
)

// RateLimitConfig holds configuration for rate limiting
type RateLimitConfig struct {
	// RequestsPerMinute is the sustained refill rate
	RequestsPerMinute int
	// BurstSize is the bucket capacity
	BurstSize int
	// CleanupInterval is how often idle clients are forgotten
	CleanupInterval time.Duration
	// IdleTimeout is how long a client may be silent before it is forgotten
	IdleTimeout time.Duration
}

// DefaultRateLimitConfig applies to every API route.
func DefaultRateLimitConfig() RateLimitConfig {
	return RateLimitConfig{
		RequestsPerMinute: 300,
		BurstSize:         50,
		CleanupInterval:   5 * time.Minute,
		IdleTimeout:       10 * time.Minute,
	}
}

// LoginRateLimitConfig is the stricter limit for key-login.
func LoginRateLimitConfig() RateLimitConfig {
	return RateLimitConfig{
		RequestsPerMinute: 10,
		BurstSize:         5,
		CleanupInterval:   5 * time.Minute,
		IdleTimeout:       10 * time.Minute,
	}
}

// AdminRateLimitConfig bounds admin token attempts per client.
func AdminRateLimitConfig() RateLimitConfig {
	return RateLimitConfig{
		RequestsPerMinute: 60,
		BurstSize:         10,
		CleanupInterval:   5 * time.Minute,
		IdleTimeout:       10 * time.Minute,
	}
}

// RateLimitConfigsFrom derives the general and login limits from cfg,
// falling back to the defaults for unset values.
func RateLimitConfigsFrom(cfg *config.RateLimitingConfig) (general, login RateLimitConfig) {
	general, login = DefaultRateLimitConfig(), LoginRateLimitConfig()
	if cfg.RequestsPerMinute > 0 {
		general.RequestsPerMinute = cfg.RequestsPerMinute
	}
	if cfg.Burst > 0 {
		general.BurstSize = cfg.Burst
	}
	if cfg.LoginRequestsPerMinute > 0 {
		login.RequestsPerMinute = cfg.LoginRequestsPerMinute
	}
	if cfg.LoginBurst > 0 {
		login.BurstSize = cfg.LoginBurst
	}
	return general, login
}

type clientLimiter struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// RateLimiter keeps one token bucket per client key.
type RateLimiter struct {
	config   RateLimitConfig
	limit    rate.Limit
	clients  map[string]*clientLimiter
	mu       sync.Mutex
	stopCh   chan struct{}
	stopOnce sync.Once
}

// NewRateLimiter starts a limiter and its cleanup loop. Call Stop to end the loop.
func NewRateLimiter(config RateLimitConfig) *RateLimiter {
	if config.CleanupInterval <= 0 {
		config.CleanupInterval = 5 * time.Minute
	}
	if config.IdleTimeout <= 0 {
		config.IdleTimeout = 10 * time.Minute
	}
	rl := &RateLimiter{
		config:  config,
		limit:   rate.Limit(float64(config.RequestsPerMinute) / 60.0),
		clients: make(map[string]*clientLimiter),
		stopCh:  make(chan struct{}),
	}
	go rl.cleanup()
	return rl
}

func (rl *RateLimiter) cleanup() {
	ticker := time.NewTicker(rl.config.CleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			rl.evictIdle(time.Now())
		case <-rl.stopCh:
			return
		}
	}
}

func (rl *RateLimiter) evictIdle(now time.Time) {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	for key, c := range rl.clients {
		if now.Sub(c.lastSeen) > rl.config.IdleTimeout {
			delete(rl.clients, key)
		}
	}
}

// Stop ends the cleanup loop. It is safe to call more than once.
func (rl *RateLimiter) Stop() {
	rl.stopOnce.Do(func() { close(rl.stopCh) })
}

func (rl *RateLimiter) get(key string, now time.Time) *rate.Limiter {
	c, ok := rl.clients[key]
	if !ok {
		c = &clientLimiter{limiter: rate.NewLimiter(rl.limit, rl.config.BurstSize)}
		rl.clients[key] = c
	}
	c.lastSeen = now
	return c.limiter
}

// Allow consumes a token for key and reports whether one was available.
func (rl *RateLimiter) Allow(key string) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	now := time.Now()
	return rl.get(key, now).AllowN(now, 1)
}

// RemainingTokens returns the whole tokens currently left for key.
func (rl *RateLimiter) RemainingTokens(key string) int {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	c, ok := rl.clients[key]
	if !ok {
		return rl.config.BurstSize
	}
	tokens := c.limiter.TokensAt(time.Now())
	if tokens < 0 {
		return 0
	}
	return int(math.Floor(tokens))
}

// retryAfter is the whole seconds until one token refills, at least 1.
func (rl *RateLimiter) retryAfter() int {
	if rl.config.RequestsPerMinute <= 0 {
		return 60
	}
	return max(1, int(math.Ceil(60.0/float64(rl.config.RequestsPerMinute))))
}

// RateLimitMiddleware rejects requests over the client's budget with 429.
// Clients are keyed by IP.
func RateLimitMiddleware(limiter *RateLimiter) gin.HandlerFunc {
	return func(c *gin.Context) {
		key := "ip:" + c.ClientIP()

		if !limiter.Allow(key) {
			retry := limiter.retryAfter()
			c.Header("X-RateLimit-Remaining", "0")
			c.Header("Retry-After", strconv.Itoa(retry))
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"error":       "Rate limit exceeded",
				"retry_after": retry,
			})
			return
		}

		c.Header("X-RateLimit-Limit", strconv.Itoa(limiter.config.RequestsPerMinute))
		c.Header("X-RateLimit-Remaining", strconv.Itoa(limiter.RemainingTokens(key)))
		c.Next()
	}
}
