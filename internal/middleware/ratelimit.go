// ratelimit.go provides Gin middleware that enforces per-client rate limits, returning 429
// responses when the configured requests-per-minute threshold is exceeded. Two backends
// exist: an in-process token bucket, and Redis (GCRA via redis_rate) so limits hold across
// replicas.
package middleware

import (
	"context"
	"log/slog"
	"math"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis_rate/v10"

	"github.com/mailnow/mailnow-admin/internal/api/response"
	"github.com/mailnow/mailnow-admin/internal/auth"
	"github.com/mailnow/mailnow-admin/internal/config"
	"github.com/mailnow/mailnow-admin/internal/telemetry"
)

// RateLimitConfig holds configuration for rate limiting
type RateLimitConfig struct {
	// RequestsPerMinute is the sustained rate allowed per client
	RequestsPerMinute int
	// BurstSize is the maximum burst of requests allowed
	BurstSize int
	// CleanupInterval is how often the memory backend drops idle clients
	CleanupInterval time.Duration
}

// DefaultRateLimitConfig returns the limits for the authenticated admin and public APIs.
func DefaultRateLimitConfig() RateLimitConfig {
	return RateLimitConfig{
		RequestsPerMinute: 120,
		BurstSize:         30,
		CleanupInterval:   5 * time.Minute,
	}
}

// AuthRateLimitConfig returns stricter limits for signup, login and invite acceptance.
func AuthRateLimitConfig() RateLimitConfig {
	return RateLimitConfig{
		RequestsPerMinute: 10,
		BurstSize:         5,
		CleanupInterval:   5 * time.Minute,
	}
}

// RateLimitConfigFrom builds the default limits from security.rate_limiting, keeping the
// built-in values for unset fields.
func RateLimitConfigFrom(cfg config.RateLimitingConfig) RateLimitConfig {
	rl := DefaultRateLimitConfig()
	if cfg.RequestsPerMinute > 0 {
		rl.RequestsPerMinute = cfg.RequestsPerMinute
	}
	if cfg.Burst > 0 {
		rl.BurstSize = cfg.Burst
	}
	return rl
}

// LimitResult is the outcome of one rate-limit check.
type LimitResult struct {
	Allowed    bool
	Remaining  int
	RetryAfter time.Duration
}

// Limiter decides whether a client identified by key may make another request.
type Limiter interface {
	Allow(ctx context.Context, key string) (LimitResult, error)
	// Limit is the advertised requests per minute.
	Limit() int
	// Backend names the implementation in metrics.
	Backend() string
}

// ---- memory ----------------------------------------------------------------

// rateLimitEntry tracks the bucket of a single client
type rateLimitEntry struct {
	tokens     float64
	lastUpdate time.Time
}

// RateLimiter implements an in-process token bucket rate limiter
type RateLimiter struct {
	config   RateLimitConfig
	entries  map[string]*rateLimitEntry
	mu       sync.Mutex
	stopCh   chan struct{}
	stopOnce sync.Once
	now      func() time.Time
}

// NewRateLimiter creates a new rate limiter with the given config
func NewRateLimiter(config RateLimitConfig) *RateLimiter {
	if config.CleanupInterval <= 0 {
		config.CleanupInterval = 5 * time.Minute
	}
	rl := &RateLimiter{
		config:  config,
		entries: make(map[string]*rateLimitEntry),
		stopCh:  make(chan struct{}),
		now:     time.Now,
	}

	go rl.cleanup()

	return rl
}

// cleanup periodically removes clients idle for more than 10 minutes
func (rl *RateLimiter) cleanup() {
	ticker := time.NewTicker(rl.config.CleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			rl.evictIdle()
		case <-rl.stopCh:
			return
		}
	}
}

func (rl *RateLimiter) evictIdle() {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	now := rl.now()
	for key, entry := range rl.entries {
		if now.Sub(entry.lastUpdate) > 10*time.Minute {
			delete(rl.entries, key)
		}
	}
}

// Stop stops the cleanup goroutine. Calling it more than once is safe.
func (rl *RateLimiter) Stop() {
	rl.stopOnce.Do(func() { close(rl.stopCh) })
}

// Limit implements Limiter.
func (rl *RateLimiter) Limit() int { return rl.config.RequestsPerMinute }

// Backend implements Limiter.
func (rl *RateLimiter) Backend() string { return "memory" }

// Allow implements Limiter. It never fails.
func (rl *RateLimiter) Allow(_ context.Context, key string) (LimitResult, error) {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	perSecond := float64(rl.config.RequestsPerMinute) / 60.0
	entry, exists := rl.entries[key]

	if !exists {
		// New client starts with a full bucket
		entry = &rateLimitEntry{tokens: float64(rl.config.BurstSize), lastUpdate: now}
		rl.entries[key] = entry
	} else {
		elapsed := now.Sub(entry.lastUpdate).Seconds()
		entry.tokens = math.Min(float64(rl.config.BurstSize), entry.tokens+elapsed*perSecond)
		entry.lastUpdate = now
	}

	if entry.tokens >= 1 {
		entry.tokens--
		return LimitResult{Allowed: true, Remaining: int(entry.tokens)}, nil
	}

	var retry time.Duration
	if perSecond > 0 {
		retry = time.Duration((1 - entry.tokens) / perSecond * float64(time.Second))
	}
	return LimitResult{Allowed: false, Remaining: 0, RetryAfter: retry}, nil
}

// ---- redis -----------------------------------------------------------------

// RedisLimiter enforces limits shared by every replica through Redis.
type RedisLimiter struct {
	limiter *redis_rate.Limiter
	limit   redis_rate.Limit
	prefix  string
}

// NewRedisLimiter creates a RedisLimiter. prefix namespaces the keys so separate limits
// (for example auth endpoints) do not share buckets.
func NewRedisLimiter(limiter *redis_rate.Limiter, config RateLimitConfig, prefix string) *RedisLimiter {
	limit := redis_rate.PerMinute(config.RequestsPerMinute)
	if config.BurstSize > 0 {
		limit.Burst = config.BurstSize
	}
	return &RedisLimiter{limiter: limiter, limit: limit, prefix: prefix}
}

// Limit implements Limiter.
func (rl *RedisLimiter) Limit() int { return rl.limit.Rate }

// Backend implements Limiter.
func (rl *RedisLimiter) Backend() string { return "redis" }

// Allow implements Limiter.
func (rl *RedisLimiter) Allow(ctx context.Context, key string) (LimitResult, error) {
	res, err := rl.limiter.Allow(ctx, rl.prefix+key, rl.limit)
	if err != nil {
		return LimitResult{}, err
	}
	return LimitResult{
		Allowed:    res.Allowed > 0,
		Remaining:  res.Remaining,
		RetryAfter: res.RetryAfter,
	}, nil
}

// ---- middleware ------------------------------------------------------------

// RateLimitMiddleware creates a Gin middleware that rate limits requests. When the backend
// fails (Redis unreachable) the request is let through and the failure logged.
func RateLimitMiddleware(limiter Limiter) gin.HandlerFunc {
	return func(c *gin.Context) {
		key := getRateLimitKey(c)

		res, err := limiter.Allow(c.Request.Context(), key)
		if err != nil {
			slog.Warn("rate limiter unavailable, allowing request",
				"backend", limiter.Backend(), "error", err)
			c.Next()
			return
		}

		c.Header("X-RateLimit-Limit", strconv.Itoa(limiter.Limit()))
		c.Header("X-RateLimit-Remaining", strconv.Itoa(res.Remaining))

		if !res.Allowed {
			retry := int(math.Ceil(res.RetryAfter.Seconds()))
			if retry < 1 {
				retry = 1
			}
			telemetry.RateLimitRejectionsTotal.WithLabelValues(limiter.Backend()).Inc()
			c.Header("Retry-After", strconv.Itoa(retry))
			response.Abort(c, http.StatusTooManyRequests, "Rate limit exceeded")
			return
		}

		c.Next()
	}
}

// getRateLimitKey determines the key to use for rate limiting.
// Priority: authenticated user > API key (context, then presented token prefix) > client IP
func getRateLimitKey(c *gin.Context) string {
	if id, ok := c.Get(UserIDKey); ok {
		if v, ok := id.(int64); ok && v > 0 {
			return "user:" + strconv.FormatInt(v, 10)
		}
	}
	if id, ok := c.Get(APIKeyIDKey); ok {
		if v, ok := id.(int64); ok && v > 0 {
			return "apikey:" + strconv.FormatInt(v, 10)
		}
	}
	if token, err := auth.ExtractAPIKey(c.GetHeader(auth.APIKeyHeader), c.GetHeader("Authorization")); err == nil {
		return "apikey:" + auth.DisplayPrefix(token)
	}

	ip := c.ClientIP()
	if ip == "" {
		ip = c.Request.RemoteAddr
	}
	return "ip:" + ip
}
