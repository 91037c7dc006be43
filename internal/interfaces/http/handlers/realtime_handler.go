package handlers

import (
	"net/http"

	"github.com/gin-contrib/requestid"
	"github.com/gin-gonic/gin"

	"github.com/npcchatter/backend/internal/application/dto"
	"github.com/npcchatter/backend/internal/application/service"
	"github.com/npcchatter/backend/internal/interfaces/http/middleware"
)

// RealtimeHandler serves realtime transport token requests.
type RealtimeHandler struct {
	tokens service.RealtimeTokenService
}

// NewRealtimeHandler creates a new RealtimeHandler.
func NewRealtimeHandler(tokens service.RealtimeTokenService) *RealtimeHandler {
	return &RealtimeHandler{tokens: tokens}
}

// IssueToken handles GET /realtime/token?channel=<channel>.
//
// The body on success is the signed token request exactly as the transport produced it.
func (h *RealtimeHandler) IssueToken(c *gin.Context) {
	req := &dto.RealtimeTokenRequest{
		Bearer:    middleware.ExtractBearer(c.GetHeader("Authorization")),
		Channel:   c.Query("channel"),
		RequestID: requestid.Get(c),
		ClientIP:  c.ClientIP(),
	}

	resp, err := h.tokens.IssueToken(c.Request.Context(), req)
	if err != nil {
		sendError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}
