// Package ratelimit provides request rate limiting backed by Redis, with an in-process fallback.
package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/npcchatter/backend/internal/domain/service"
	"github.com/npcchatter/backend/pkg/errors"
	"github.com/npcchatter/backend/pkg/logger"
)

// Config holds rate limiter configuration.
type Config struct {
	// Limit is the number of requests allowed per Window.
	Limit int
	// Window is the period Limit applies to.
	Window time.Duration
	// Burst is the bucket capacity. Defaults to Limit.
	Burst int
	// KeyPrefix prefixes every Redis key.
	KeyPrefix string
	// EnableLocalFallback serves requests from in-process buckets while Redis is failing.
	EnableLocalFallback bool
}

func (c Config) withDefaults() Config {
	if c.Limit <= 0 {
		c.Limit = 120
	}
	if c.Window <= 0 {
		c.Window = time.Minute
	}
	if c.Burst <= 0 {
		c.Burst = c.Limit
	}
	if c.KeyPrefix == "" {
		c.KeyPrefix = "npcchatter:ratelimit"
	}
	return c
}

// tokenBucketScript refills and takes from a bucket atomically. Times are in milliseconds.
const tokenBucketScript = `
local key = KEYS[1]
local capacity = tonumber(ARGV[1])
local rate = tonumber(ARGV[2])
local now = tonumber(ARGV[3])

local bucket = redis.call('HMGET', key, 'tokens', 'last_refill')
local tokens = tonumber(bucket[1]) or capacity
local last_refill = tonumber(bucket[2]) or now

local elapsed = math.max(0, now - last_refill)
tokens = math.min(tokens + elapsed * rate / 1000, capacity)

local allowed = 0
if tokens >= 1 then
    tokens = tokens - 1
    allowed = 1
end

local reset_ms = 0
if tokens < capacity then
    reset_ms = math.ceil((capacity - tokens) / rate * 1000)
end

redis.call('HSET', key, 'tokens', tokens, 'last_refill', now)
redis.call('PEXPIRE', key, reset_ms + 60000)

return {allowed, math.floor(tokens), reset_ms}
`

// RedisRateLimiter shares token buckets between instances through Redis.
type RedisRateLimiter struct {
	client  redis.UniversalClient
	script  *redis.Script
	config  Config
	local   *LocalRateLimiter
	metrics service.Metrics
	logger  logger.Logger
	now     func() time.Time
}

// NewRedisRateLimiter creates a Redis-backed limiter.
func NewRedisRateLimiter(client redis.UniversalClient, cfg Config, metrics service.Metrics, log logger.Logger) (*RedisRateLimiter, error) {
	if client == nil {
		return nil, errors.ErrInvalidRequest("redis client is required")
	}
	cfg = cfg.withDefaults()

	rl := &RedisRateLimiter{
		client:  client,
		script:  redis.NewScript(tokenBucketScript),
		config:  cfg,
		metrics: metrics,
		logger:  log.WithComponent("RedisRateLimiter"),
		now:     time.Now,
	}
	if cfg.EnableLocalFallback {
		rl.local = NewLocalRateLimiter(cfg)
		rl.local.onDenied = rl.denied
	}

	rl.logger.Info(context.Background(), "Redis rate limiter initialized",
		logger.Int("limit", cfg.Limit),
		logger.Duration("window_ms", cfg.Window),
		logger.Bool("local_fallback", cfg.EnableLocalFallback),
	)
	return rl, nil
}

// Allow takes one token from the bucket of identifier in scope.
func (rl *RedisRateLimiter) Allow(ctx context.Context, scope service.RateLimitScope, identifier string) (bool, int, time.Time, error) {
	now := rl.now()
	key := buildKey(rl.config.KeyPrefix, scope, identifier)
	ratePerSec := float64(rl.config.Limit) / rl.config.Window.Seconds()

	res, err := rl.script.Run(ctx, rl.client, []string{key}, rl.config.Burst, ratePerSec, now.UnixMilli()).Int64Slice()
	if err == nil && len(res) < 3 {
		err = fmt.Errorf("unexpected script result %v", res)
	}
	if err != nil {
		rl.logger.Warn(ctx, "Rate limit check against Redis failed",
			logger.String("scope", string(scope)),
			logger.String("error", err.Error()),
		)
		if rl.local != nil {
			return rl.local.Allow(ctx, scope, identifier)
		}
		return false, 0, time.Time{}, errors.ErrInternal("rate limiter unavailable").WithCause(err)
	}

	allowed := res[0] == 1
	if !allowed {
		rl.denied(scope)
	}
	return allowed, int(res[1]), now.Add(time.Duration(res[2]) * time.Millisecond), nil
}

// Reset clears the bucket of identifier in scope.
func (rl *RedisRateLimiter) Reset(ctx context.Context, scope service.RateLimitScope, identifier string) error {
	key := buildKey(rl.config.KeyPrefix, scope, identifier)
	if err := rl.client.Del(ctx, key).Err(); err != nil && err != redis.Nil {
		return errors.ErrInternal("rate limiter unavailable").WithCause(err)
	}
	return nil
}

func (rl *RedisRateLimiter) denied(scope service.RateLimitScope) {
	rl.metrics.RecordRateLimitHit(string(scope))
}

func buildKey(prefix string, scope service.RateLimitScope, identifier string) string {
	return fmt.Sprintf("%s:%s:%s", prefix, scope, identifier)
}

var _ service.RateLimitService = (*RedisRateLimiter)(nil)
