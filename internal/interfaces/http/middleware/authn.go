package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/npcchatter/backend/internal/domain/models"
	"github.com/npcchatter/backend/internal/domain/service"
	"github.com/npcchatter/backend/pkg/constants"
	"github.com/npcchatter/backend/pkg/errors"
	"github.com/npcchatter/backend/pkg/logger"
)

// ExtractBearer returns the credential from an Authorization header value. Anything without
// the exact "Bearer " prefix counts as no credential.
func ExtractBearer(authHeader string) string {
	if !strings.HasPrefix(authHeader, constants.BearerPrefix) {
		return ""
	}
	return strings.TrimSpace(authHeader[len(constants.BearerPrefix):])
}

// RequireUser verifies the bearer credential and stores the principal on the context.
func RequireUser(authenticator service.Authenticator, log logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := c.Request.Context()
		principal, err := authenticator.Verify(ctx, ExtractBearer(c.GetHeader("Authorization")))
		if err != nil {
			log.Debug(ctx, "Request not authenticated",
				logger.String("code", string(errors.CodeOf(err))),
				logger.String("route", c.FullPath()),
			)
			status, body := errors.ToErrorResponse(err)
			c.AbortWithStatusJSON(status, body)
			return
		}

		c.Set(string(constants.ContextKeyPrincipal), principal)
		c.Next()
	}
}

// PrincipalFrom returns the principal stored by RequireUser.
func PrincipalFrom(c *gin.Context) (*models.AuthenticatedPrincipal, bool) {
	v, ok := c.Get(string(constants.ContextKeyPrincipal))
	if !ok {
		return nil, false
	}
	p, ok := v.(*models.AuthenticatedPrincipal)
	return p, ok && p != nil
}
