package middleware

import (
	"context"
	"time"

	"github.com/gin-contrib/requestid"
	"github.com/gin-gonic/gin"

	"github.com/npcchatter/backend/pkg/constants"
	"github.com/npcchatter/backend/pkg/logger"
)

// LoggingMiddleware logs every request once it has been served. The request id is put on the
// request context so that every log line written while serving it carries the id.
func LoggingMiddleware(log logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		if id := requestid.Get(c); id != "" {
			c.Request = c.Request.WithContext(context.WithValue(c.Request.Context(), constants.ContextKeyRequestID, id))
		}
		c.Next()

		fields := logger.Fields{
			"method":     c.Request.Method,
			"route":      routeOf(c),
			"status":     c.Writer.Status(),
			"latency_ms": time.Since(start).Milliseconds(),
			"client_ip":  c.ClientIP(),
		}
		switch {
		case c.Writer.Status() >= 500:
			log.Warn(c.Request.Context(), "Request failed", fields)
		case c.Request.URL.Path == "/metrics" || c.Request.URL.Path == "/live":
			log.Debug(c.Request.Context(), "Request processed", fields)
		default:
			log.Info(c.Request.Context(), "Request processed", fields)
		}
	}
}
