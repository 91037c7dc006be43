package postgres

import (
	"context"
	stderrors "errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/npcchatter/backend/internal/domain/models"
	"github.com/npcchatter/backend/internal/domain/repository"
	"github.com/npcchatter/backend/internal/domain/service"
	"github.com/npcchatter/backend/pkg/constants"
	"github.com/npcchatter/backend/pkg/errors"
	"github.com/npcchatter/backend/pkg/logger"
)

// CampaignRepoImpl implements CampaignRepository with gorm.
type CampaignRepoImpl struct {
	db      *gorm.DB
	metrics service.Metrics
	logger  logger.Logger
}

// NewCampaignRepository creates a gorm-backed campaign repository.
func NewCampaignRepository(db *gorm.DB, metrics service.Metrics, log logger.Logger) repository.CampaignRepository {
	return &CampaignRepoImpl{
		db:      db,
		metrics: metrics,
		logger:  log.WithComponent("CampaignRepository"),
	}
}

func (r *CampaignRepoImpl) List(ctx context.Context) ([]*models.Campaign, error) {
	defer r.observe("campaign_list", time.Now())

	var campaigns []*models.Campaign
	if err := r.db.WithContext(ctx).Order("created_at, id").Find(&campaigns).Error; err != nil {
		r.logger.Error(ctx, "Failed to list campaigns", err)
		return nil, fmt.Errorf("list campaigns: %w", err)
	}
	return campaigns, nil
}

func (r *CampaignRepoImpl) FindByID(ctx context.Context, id string) (*models.Campaign, error) {
	defer r.observe("campaign_find", time.Now())

	var campaign models.Campaign
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&campaign).Error
	if err != nil {
		if stderrors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errors.ErrNotFound("campaign", id)
		}
		r.logger.Error(ctx, "Failed to retrieve campaign", err, logger.String("campaign_id", id))
		return nil, fmt.Errorf("find campaign: %w", err)
	}
	return &campaign, nil
}

// CreateWithOwner inserts the campaign and the owner's membership atomically.
func (r *CampaignRepoImpl) CreateWithOwner(ctx context.Context, campaign *models.Campaign, ownerRole string) error {
	defer r.observe("campaign_create", time.Now())

	if campaign.CreatedAt.IsZero() {
		campaign.CreatedAt = time.Now().UTC()
	}
	if ownerRole == "" {
		ownerRole = string(constants.RoleDM)
	}

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(campaign).Error; err != nil {
			return err
		}
		if campaign.OwnerID == nil {
			return nil
		}
		return tx.Create(&models.CampaignMember{
			CampaignID: campaign.ID,
			UserID:     *campaign.OwnerID,
			Role:       constants.MemberRole(ownerRole),
		}).Error
	})
	if err != nil {
		r.logger.Error(ctx, "Failed to create campaign", err, logger.String("campaign_id", campaign.ID))
		return mapPgErr(err, "campaign")
	}

	r.logger.Info(ctx, "Campaign created", logger.String("campaign_id", campaign.ID))
	return nil
}

func (r *CampaignRepoImpl) Update(ctx context.Context, id string, update models.CampaignUpdate) (*models.Campaign, error) {
	defer r.observe("campaign_update", time.Now())

	values := map[string]interface{}{"updated_at": time.Now().UTC()}
	if update.Name != nil {
		values["name"] = *update.Name
	}
	if update.Description != nil {
		values["description"] = *update.Description
	}
	if update.Avatar != nil {
		values["avatar"] = *update.Avatar
	}

	result := r.db.WithContext(ctx).Model(&models.Campaign{}).Where("id = ?", id).Updates(values)
	if result.Error != nil {
		r.logger.Error(ctx, "Failed to update campaign", result.Error, logger.String("campaign_id", id))
		return nil, fmt.Errorf("update campaign: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return nil, errors.ErrNotFound("campaign", id)
	}
	return r.FindByID(ctx, id)
}

func (r *CampaignRepoImpl) observe(op string, start time.Time) {
	r.metrics.RecordDBQuery(op, time.Since(start))
}
