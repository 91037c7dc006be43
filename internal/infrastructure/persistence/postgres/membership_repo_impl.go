package postgres

import (
	"context"
	stderrors "errors"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/npcchatter/backend/internal/domain/models"
	"github.com/npcchatter/backend/internal/domain/repository"
	"github.com/npcchatter/backend/internal/domain/service"
	"github.com/npcchatter/backend/pkg/constants"
	"github.com/npcchatter/backend/pkg/logger"
)

// MembershipRepoImpl stores campaign membership and answers the membership oracle's questions.
type MembershipRepoImpl struct {
	db      *gorm.DB
	metrics service.Metrics
	logger  logger.Logger
}

// NewMembershipRepository creates a gorm-backed membership repository.
func NewMembershipRepository(db *gorm.DB, metrics service.Metrics, log logger.Logger) *MembershipRepoImpl {
	return &MembershipRepoImpl{
		db:      db,
		metrics: metrics,
		logger:  log.WithComponent("MembershipRepository"),
	}
}

// Exists reports whether the membership row exists. A failed query is returned as an error so
// callers never mistake it for a missing row.
func (r *MembershipRepoImpl) Exists(ctx context.Context, campaignID, userID string) (bool, error) {
	defer r.observe("membership_exists", time.Now())

	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.CampaignMember{}).
		Where("campaign_id = ? AND user_id = ?", campaignID, userID).
		Count(&count).Error
	if err != nil {
		return false, fmt.Errorf("membership query: %w", err)
	}
	return count > 0, nil
}

// OwnerOf returns the recorded owner, or nil when the campaign has none or does not exist.
func (r *MembershipRepoImpl) OwnerOf(ctx context.Context, campaignID string) (*string, error) {
	defer r.observe("campaign_owner", time.Now())

	var campaign models.Campaign
	err := r.db.WithContext(ctx).Select("id", "owner_id").Where("id = ?", campaignID).First(&campaign).Error
	if err != nil {
		if stderrors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("owner query: %w", err)
	}
	return campaign.OwnerID, nil
}

// Add inserts the membership unless it already exists.
func (r *MembershipRepoImpl) Add(ctx context.Context, member *models.CampaignMember) (bool, error) {
	defer r.observe("membership_add", time.Now())

	if member.Role == "" {
		member.Role = constants.RolePlayer
	}
	result := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(member)
	if result.Error != nil {
		r.logger.Error(ctx, "Failed to add campaign member", result.Error,
			logger.String("campaign_id", member.CampaignID),
			logger.String("user_id", member.UserID),
		)
		return false, mapPgErr(result.Error, "membership")
	}
	return result.RowsAffected > 0, nil
}

func (r *MembershipRepoImpl) Remove(ctx context.Context, campaignID, userID string) (bool, error) {
	defer r.observe("membership_remove", time.Now())

	result := r.db.WithContext(ctx).
		Where("campaign_id = ? AND user_id = ?", campaignID, userID).
		Delete(&models.CampaignMember{})
	if result.Error != nil {
		return false, fmt.Errorf("remove membership: %w", result.Error)
	}
	return result.RowsAffected > 0, nil
}

func (r *MembershipRepoImpl) ListByCampaign(ctx context.Context, campaignID string) ([]*models.CampaignMember, error) {
	defer r.observe("membership_list", time.Now())

	var members []*models.CampaignMember
	err := r.db.WithContext(ctx).Where("campaign_id = ?", campaignID).Order("user_id").Find(&members).Error
	if err != nil {
		return nil, fmt.Errorf("list members: %w", err)
	}
	return members, nil
}

func (r *MembershipRepoImpl) observe(op string, start time.Time) {
	r.metrics.RecordDBQuery(op, time.Since(start))
}

var (
	_ repository.MembershipRepository = (*MembershipRepoImpl)(nil)
	_ service.MembershipOracle        = (*MembershipRepoImpl)(nil)
)
