package middleware

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-redis/redis/v8"

	"github.com/chordme/chordme/pkg/config"
	"github.com/chordme/chordme/pkg/contextkeys"
	"github.com/chordme/chordme/pkg/httputil"
	"github.com/chordme/chordme/pkg/observability"
)

// RateLimiter implements a fixed-window rate limiter backed by Redis so
// limits hold across multiple API instances.
type RateLimiter struct {
	redis  *redis.Client
	limit  int
	window time.Duration
	prefix string
}

// NewRateLimiter creates a Redis-backed rate limiter.
func NewRateLimiter(redisClient *redis.Client, cfg config.RateLimitConfig, prefix string) *RateLimiter {
	if prefix == "" {
		prefix = "ratelimit"
	}
	return &RateLimiter{
		redis:  redisClient,
		limit:  cfg.RequestsPerWindow,
		window: cfg.Window,
		prefix: prefix,
	}
}

// Allow reports whether a request under key fits in the current window.
// Redis errors fail open: throttling is a protection layer, not an
// authorization decision.
func (rl *RateLimiter) Allow(ctx context.Context, key string) (bool, error) {
	redisKey := fmt.Sprintf("%s:%s", rl.prefix, key)

	pipe := rl.redis.Pipeline()
	incr := pipe.Incr(ctx, redisKey)
	pipe.Expire(ctx, redisKey, rl.window)
	if _, err := pipe.Exec(ctx); err != nil {
		return true, fmt.Errorf("redis error: %w", err)
	}

	return incr.Val() <= int64(rl.limit), nil
}

// Remaining returns the unused quota in the current window.
func (rl *RateLimiter) Remaining(ctx context.Context, key string) (int, error) {
	redisKey := fmt.Sprintf("%s:%s", rl.prefix, key)

	count, err := rl.redis.Get(ctx, redisKey).Int()
	if err == redis.Nil {
		return rl.limit, nil
	} else if err != nil {
		return 0, err
	}

	remaining := rl.limit - count
	if remaining < 0 {
		remaining = 0
	}
	return remaining, nil
}

// TTL returns the time until the window for key resets.
func (rl *RateLimiter) TTL(ctx context.Context, key string) (time.Duration, error) {
	return rl.redis.TTL(ctx, fmt.Sprintf("%s:%s", rl.prefix, key)).Result()
}

// Reset clears the window for key.
func (rl *RateLimiter) Reset(ctx context.Context, key string) error {
	return rl.redis.Del(ctx, fmt.Sprintf("%s:%s", rl.prefix, key)).Err()
}

// RateLimitMiddleware throttles requests per caller. Authenticated
// callers are keyed by user id, anonymous callers by client IP.
type RateLimitMiddleware struct {
	limiter *RateLimiter
	metrics *observability.Metrics
	enabled bool
}

// NewRateLimitMiddleware creates the HTTP rate limiting middleware.
// metrics may be nil.
func NewRateLimitMiddleware(redisClient *redis.Client, cfg config.RateLimitConfig, metrics *observability.Metrics) *RateLimitMiddleware {
	return &RateLimitMiddleware{
		limiter: NewRateLimiter(redisClient, cfg, "ratelimit"),
		metrics: metrics,
		enabled: cfg.Enabled,
	}
}

// Handler wraps an HTTP handler with rate limiting.
func (m *RateLimitMiddleware) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !m.enabled {
			next.ServeHTTP(w, r)
			return
		}

		scope, key := callerKey(r)
		allowed, err := m.limiter.Allow(r.Context(), key)
		if err != nil {
			// Fail open on Redis outage.
			next.ServeHTTP(w, r)
			return
		}
		if !allowed {
			if m.metrics != nil {
				m.metrics.RateLimitRejectionsTotal.WithLabelValues(scope).Inc()
			}
			if ttl, err := m.limiter.TTL(r.Context(), key); err == nil && ttl > 0 {
				w.Header().Set("Retry-After", strconv.Itoa(int(ttl.Seconds())+1))
			}
			httputil.WriteTooManyRequests(w, "rate limit exceeded")
			return
		}

		next.ServeHTTP(w, r)
	})
}

func callerKey(r *http.Request) (scope, key string) {
	if authCtx := AuthFromRequest(r); authCtx != nil && authCtx.User != nil {
		return "user", fmt.Sprintf("user:%d", authCtx.User.ID)
	}
	ip := contextkeys.ClientIPFromContext(r.Context())
	if ip == "" {
		ip = clientIP(r)
	}
	return "anonymous", "ip:" + ip
}
