package repository

import (
	"context"

	"github.com/npcchatter/backend/internal/domain/models"
)

// CampaignRepository defines the interface for campaign persistence.
type CampaignRepository interface {
	List(ctx context.Context) ([]*models.Campaign, error)
	FindByID(ctx context.Context, id string) (*models.Campaign, error)

	// CreateWithOwner inserts the campaign and the owner's membership in one transaction.
	CreateWithOwner(ctx context.Context, campaign *models.Campaign, ownerRole string) error

	// Update applies a partial update and returns the fresh row.
	Update(ctx context.Context, id string, update models.CampaignUpdate) (*models.Campaign, error)
}

// MembershipRepository defines the interface for campaign membership persistence.
type MembershipRepository interface {
	// Exists reports whether the membership row exists. A failed query is an error, never false.
	Exists(ctx context.Context, campaignID, userID string) (bool, error)

	// OwnerOf returns the owner of a campaign, or nil when none is recorded.
	OwnerOf(ctx context.Context, campaignID string) (*string, error)

	// Add inserts the membership if missing and reports whether a row was created.
	Add(ctx context.Context, member *models.CampaignMember) (bool, error)

	// Remove deletes the membership and reports whether a row was deleted.
	Remove(ctx context.Context, campaignID, userID string) (bool, error)

	ListByCampaign(ctx context.Context, campaignID string) ([]*models.CampaignMember, error)
}

// UserSettingsRepository defines the interface for per-user settings.
type UserSettingsRepository interface {
	GetActiveCampaign(ctx context.Context, userID string) (*string, error)
	SetActiveCampaign(ctx context.Context, userID string, campaignID *string) error

	// ClearActiveCampaignIf clears the active campaign only when it equals campaignID.
	ClearActiveCampaignIf(ctx context.Context, userID, campaignID string) error
}
