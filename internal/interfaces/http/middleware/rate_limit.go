package middleware

import (
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/npcchatter/backend/internal/config"
	"github.com/npcchatter/backend/internal/domain/service"
	"github.com/npcchatter/backend/pkg/errors"
	"github.com/npcchatter/backend/pkg/logger"
)

// RateLimitMiddleware limits requests per client IP. A limiter failure lets the request through.
func RateLimitMiddleware(rateLimiter service.RateLimitService, cfg *config.RateLimitConfig, log logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		if !cfg.Enabled {
			c.Next()
			return
		}

		ctx := c.Request.Context()
		ip := c.ClientIP()
		allowed, remaining, resetAt, err := rateLimiter.Allow(ctx, service.RateLimitScopeIP, ip)
		if err != nil {
			log.Error(ctx, "Rate limiter failed", err, logger.String("client_ip", ip))
			c.Next() // fail open
			return
		}

		c.Header("X-RateLimit-Remaining", strconv.Itoa(remaining))
		c.Header("X-RateLimit-Reset", strconv.FormatInt(resetAt.Unix(), 10))

		if !allowed {
			log.Warn(ctx, "Rate limit exceeded", logger.String("client_ip", ip), logger.String("route", c.FullPath()))
			status, body := errors.ToErrorResponse(errors.ErrRateLimitExceeded(string(service.RateLimitScopeIP)))
			c.AbortWithStatusJSON(status, body)
			return
		}

		c.Next()
	}
}
