package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/npcchatter/backend/internal/application/dto"
	"github.com/npcchatter/backend/internal/application/service"
)

// CampaignHandler handles the campaign and settings API. Every route sits behind RequireUser.
type CampaignHandler struct {
	campaigns service.CampaignAppService
}

// NewCampaignHandler creates a new CampaignHandler.
func NewCampaignHandler(campaigns service.CampaignAppService) *CampaignHandler {
	return &CampaignHandler{campaigns: campaigns}
}

// List handles GET /api/campaigns.
func (h *CampaignHandler) List(c *gin.Context) {
	out, err := h.campaigns.List(c.Request.Context())
	if err != nil {
		sendError(c, err)
		return
	}
	c.JSON(http.StatusOK, out)
}

// Create handles POST /api/campaigns.
func (h *CampaignHandler) Create(c *gin.Context) {
	p, ok := principal(c)
	if !ok {
		return
	}
	var req dto.CreateCampaignRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		sendBindError(c, err)
		return
	}

	out, err := h.campaigns.Create(c.Request.Context(), p.SubjectID, &req)
	if err != nil {
		sendError(c, err)
		return
	}
	c.JSON(http.StatusCreated, out)
}

// Update handles PATCH /api/campaigns/:id.
func (h *CampaignHandler) Update(c *gin.Context) {
	p, ok := principal(c)
	if !ok {
		return
	}
	var req dto.UpdateCampaignRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		sendBindError(c, err)
		return
	}

	out, err := h.campaigns.Update(c.Request.Context(), p.SubjectID, c.Param("id"), &req)
	if err != nil {
		sendError(c, err)
		return
	}
	c.JSON(http.StatusOK, out)
}

// Members handles GET /api/campaigns/:id/members.
func (h *CampaignHandler) Members(c *gin.Context) {
	p, ok := principal(c)
	if !ok {
		return
	}
	out, err := h.campaigns.ListMembers(c.Request.Context(), p.SubjectID, c.Param("id"))
	if err != nil {
		sendError(c, err)
		return
	}
	c.JSON(http.StatusOK, out)
}

// Join handles POST /api/campaigns/:id/join.
func (h *CampaignHandler) Join(c *gin.Context) {
	p, ok := principal(c)
	if !ok {
		return
	}
	out, err := h.campaigns.Join(c.Request.Context(), p.SubjectID, c.Param("id"))
	if err != nil {
		sendError(c, err)
		return
	}
	c.JSON(http.StatusOK, out)
}

// Leave handles POST /api/campaigns/:id/leave.
func (h *CampaignHandler) Leave(c *gin.Context) {
	p, ok := principal(c)
	if !ok {
		return
	}
	out, err := h.campaigns.Leave(c.Request.Context(), p.SubjectID, c.Param("id"))
	if err != nil {
		sendError(c, err)
		return
	}
	c.JSON(http.StatusOK, out)
}

// GetActiveCampaign handles GET /api/settings/active-campaign.
func (h *CampaignHandler) GetActiveCampaign(c *gin.Context) {
	p, ok := principal(c)
	if !ok {
		return
	}
	out, err := h.campaigns.GetActiveCampaign(c.Request.Context(), p.SubjectID)
	if err != nil {
		sendError(c, err)
		return
	}
	c.JSON(http.StatusOK, out)
}

// SetActiveCampaign handles PUT /api/settings/active-campaign.
func (h *CampaignHandler) SetActiveCampaign(c *gin.Context) {
	p, ok := principal(c)
	if !ok {
		return
	}
	var req dto.ActiveCampaignRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		sendBindError(c, err)
		return
	}

	out, err := h.campaigns.SetActiveCampaign(c.Request.Context(), p.SubjectID, &req)
	if err != nil {
		sendError(c, err)
		return
	}
	c.JSON(http.StatusOK, out)
}
