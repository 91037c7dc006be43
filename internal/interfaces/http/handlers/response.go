package handlers

import (
	"context"
	stderrors "errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/npcchatter/backend/internal/domain/models"
	"github.com/npcchatter/backend/internal/interfaces/http/middleware"
	"github.com/npcchatter/backend/pkg/errors"
)

// sendError writes the status and public message for err. Nothing is written when the
// caller has already gone away.
func sendError(c *gin.Context, err error) {
	if stderrors.Is(err, context.Canceled) {
		c.Abort()
		return
	}
	status, body := errors.ToErrorResponse(err)
	c.AbortWithStatusJSON(status, body)
}

func sendBindError(c *gin.Context, err error) {
	sendError(c, errors.ErrInvalidRequest("invalid request body").WithCause(err))
}

// principal returns the caller proven by middleware.RequireUser.
func principal(c *gin.Context) (*models.AuthenticatedPrincipal, bool) {
	p, ok := middleware.PrincipalFrom(c)
	if !ok {
		c.AbortWithStatusJSON(http.StatusUnauthorized, &errors.ErrorResponse{Error: errors.MsgMissingBearer})
		return nil, false
	}
	return p, true
}
