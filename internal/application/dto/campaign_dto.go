// Package dto holds the request and response shapes of the HTTP API.
package dto

import (
	"time"

	"github.com/npcchatter/backend/internal/domain/models"
)

// CreateCampaignRequest is the body of POST /api/campaigns.
type CreateCampaignRequest struct {
	ID          string `json:"id"`
	Name        string `json:"name" binding:"required"`
	Description string `json:"description"`
	Avatar      string `json:"avatar"`
}

// UpdateCampaignRequest is the body of PATCH /api/campaigns/:id. Absent fields are unchanged.
type UpdateCampaignRequest struct {
	Name        *string `json:"name"`
	Description *string `json:"description"`
	Avatar      *string `json:"avatar"`
}

// ToUpdate converts the request to a domain update.
func (r *UpdateCampaignRequest) ToUpdate() models.CampaignUpdate {
	return models.CampaignUpdate{Name: r.Name, Description: r.Description, Avatar: r.Avatar}
}

// CampaignResponse is a campaign as returned by the API.
type CampaignResponse struct {
	ID          string     `json:"id"`
	Name        string     `json:"name"`
	Description string     `json:"description"`
	Avatar      string     `json:"avatar"`
	OwnerID     *string    `json:"owner_id"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   *time.Time `json:"updated_at,omitempty"`
}

// NewCampaignResponse builds the response for c.
func NewCampaignResponse(c *models.Campaign) *CampaignResponse {
	return &CampaignResponse{
		ID:          c.ID,
		Name:        c.Name,
		Description: c.Description,
		Avatar:      c.Avatar,
		OwnerID:     c.OwnerID,
		CreatedAt:   c.CreatedAt,
		UpdatedAt:   c.UpdatedAt,
	}
}

// MembershipResponse answers join.
type MembershipResponse struct {
	OK       bool   `json:"ok"`
	Campaign string `json:"campaign"`
	Member   string `json:"member"`
}

// LeaveResponse answers leave. Active is the caller's active campaign afterwards.
type LeaveResponse struct {
	MembershipResponse
	Active *string `json:"active"`
}

// ActiveCampaignRequest is the body of PUT /api/settings/active-campaign. A null id clears it.
type ActiveCampaignRequest struct {
	CampaignID *string `json:"campaign_id"`
}

// ActiveCampaignResponse reports the caller's active campaign.
type ActiveCampaignResponse struct {
	CampaignID *string `json:"campaign_id"`
}
