package models

import (
	"time"

	"github.com/npcchatter/backend/pkg/constants"
)

// Campaign is a tabletop gaming group.
type Campaign struct {
	ID          string     `json:"id" gorm:"primaryKey;type:text"`
	Name        string     `json:"name" gorm:"type:text;not null"`
	Description string     `json:"description" gorm:"type:text"`
	Avatar      string     `json:"avatar" gorm:"type:text"`
	OwnerID     *string    `json:"owner_id,omitempty" gorm:"type:text"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   *time.Time `json:"updated_at,omitempty"`
}

func (Campaign) TableName() string { return "campaigns" }

// IsOwnedBy reports whether userID is the recorded owner.
func (c *Campaign) IsOwnedBy(userID string) bool {
	return c.OwnerID != nil && *c.OwnerID == userID
}

// CampaignMember is a membership fact: its existence lets the user access the campaign channel.
type CampaignMember struct {
	CampaignID string               `json:"campaign_id" gorm:"primaryKey;type:text"`
	UserID     string               `json:"user_id" gorm:"primaryKey;type:text;index:ix_campaign_members_user_id"`
	Role       constants.MemberRole `json:"role" gorm:"type:text;default:player"`
}

func (CampaignMember) TableName() string { return "campaign_members" }

// UserSettings holds per-user preferences.
type UserSettings struct {
	UserID           string  `json:"user_id" gorm:"primaryKey;type:text"`
	ActiveCampaignID *string `json:"active_campaign_id" gorm:"type:text"`
}

func (UserSettings) TableName() string { return "user_settings" }

// CampaignUpdate carries a partial update. Nil fields are left unchanged.
type CampaignUpdate struct {
	Name        *string
	Description *string
	Avatar      *string
}

// Empty reports whether the update changes nothing.
func (u CampaignUpdate) Empty() bool {
	return u.Name == nil && u.Description == nil && u.Avatar == nil
}
