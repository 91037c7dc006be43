package postgres

import (
	"context"
	stderrors "errors"
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/npcchatter/backend/internal/domain/models"
	"github.com/npcchatter/backend/internal/domain/repository"
	"github.com/npcchatter/backend/pkg/logger"
)

// UserSettingsRepoImpl implements UserSettingsRepository with gorm.
type UserSettingsRepoImpl struct {
	db     *gorm.DB
	logger logger.Logger
}

// NewUserSettingsRepository creates a gorm-backed settings repository.
func NewUserSettingsRepository(db *gorm.DB, log logger.Logger) repository.UserSettingsRepository {
	return &UserSettingsRepoImpl{db: db, logger: log.WithComponent("UserSettingsRepository")}
}

func (r *UserSettingsRepoImpl) GetActiveCampaign(ctx context.Context, userID string) (*string, error) {
	var settings models.UserSettings
	err := r.db.WithContext(ctx).Where("user_id = ?", userID).First(&settings).Error
	if err != nil {
		if stderrors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("get user settings: %w", err)
	}
	return settings.ActiveCampaignID, nil
}

func (r *UserSettingsRepoImpl) SetActiveCampaign(ctx context.Context, userID string, campaignID *string) error {
	err := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "user_id"}},
			DoUpdates: clause.AssignmentColumns([]string{"active_campaign_id"}),
		}).
		Create(&models.UserSettings{UserID: userID, ActiveCampaignID: campaignID}).Error
	if err != nil {
		r.logger.Error(ctx, "Failed to set active campaign", err, logger.String("user_id", userID))
		return fmt.Errorf("set active campaign: %w", err)
	}
	return nil
}

func (r *UserSettingsRepoImpl) ClearActiveCampaignIf(ctx context.Context, userID, campaignID string) error {
	err := r.db.WithContext(ctx).
		Model(&models.UserSettings{}).
		Where("user_id = ? AND active_campaign_id = ?", userID, campaignID).
		Update("active_campaign_id", nil).Error
	if err != nil {
		return fmt.Errorf("clear active campaign: %w", err)
	}
	return nil
}
