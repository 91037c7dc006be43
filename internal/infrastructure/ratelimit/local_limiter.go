package ratelimit

import (
	"context"
	"sync"
	"time"

	"github.com/patrickmn/go-cache"
	"golang.org/x/time/rate"

	"github.com/npcchatter/backend/internal/domain/service"
)

// LocalRateLimiter keeps one token bucket per identifier in process memory. It serves single
// instance deployments and stands in for Redis when Redis is unreachable.
type LocalRateLimiter struct {
	mu       sync.Mutex
	buckets  *cache.Cache
	perSec   rate.Limit
	burst    int
	now      func() time.Time
	onDenied func(scope service.RateLimitScope)
}

// NewLocalRateLimiter creates a limiter that allows cfg.Limit requests per cfg.Window with
// bursts of up to cfg.Burst. Idle buckets are evicted after a few windows.
func NewLocalRateLimiter(cfg Config) *LocalRateLimiter {
	cfg = cfg.withDefaults()
	idle := 5 * cfg.Window
	return &LocalRateLimiter{
		buckets: cache.New(idle, idle),
		perSec:  rate.Limit(float64(cfg.Limit) / cfg.Window.Seconds()),
		burst:   cfg.Burst,
		now:     time.Now,
	}
}

func (l *LocalRateLimiter) Allow(_ context.Context, scope service.RateLimitScope, identifier string) (bool, int, time.Time, error) {
	now := l.now()
	limiter := l.bucket(buildKey("local", scope, identifier))

	allowed := limiter.AllowN(now, 1)
	tokens := limiter.TokensAt(now)
	remaining := int(tokens)
	if remaining < 0 {
		remaining = 0
	}
	resetAt := now
	if missing := float64(l.burst) - tokens; missing > 0 {
		resetAt = now.Add(time.Duration(missing / float64(l.perSec) * float64(time.Second)))
	}
	if !allowed && l.onDenied != nil {
		l.onDenied(scope)
	}
	return allowed, remaining, resetAt, nil
}

func (l *LocalRateLimiter) bucket(key string) *rate.Limiter {
	l.mu.Lock()
	defer l.mu.Unlock()

	if v, ok := l.buckets.Get(key); ok {
		limiter := v.(*rate.Limiter)
		// touch to extend the idle expiry
		l.buckets.SetDefault(key, limiter)
		return limiter
	}
	limiter := rate.NewLimiter(l.perSec, l.burst)
	l.buckets.SetDefault(key, limiter)
	return limiter
}

// Len returns the number of live buckets.
func (l *LocalRateLimiter) Len() int {
	return l.buckets.ItemCount()
}

var _ service.RateLimitService = (*LocalRateLimiter)(nil)
