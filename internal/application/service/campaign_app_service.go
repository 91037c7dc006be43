package service

import (
	"context"
	"strings"

	"github.com/google/uuid"

	"github.com/npcchatter/backend/internal/application/dto"
	"github.com/npcchatter/backend/internal/domain/models"
	"github.com/npcchatter/backend/internal/domain/repository"
	"github.com/npcchatter/backend/pkg/constants"
	"github.com/npcchatter/backend/pkg/errors"
	"github.com/npcchatter/backend/pkg/logger"
)

// CampaignAppService defines the campaign management use cases. Every method acts on behalf of
// an authenticated caller identified by userID.
type CampaignAppService interface {
	List(ctx context.Context) ([]*dto.CampaignResponse, error)
	Create(ctx context.Context, userID string, req *dto.CreateCampaignRequest) (*dto.CampaignResponse, error)
	Update(ctx context.Context, userID, campaignID string, req *dto.UpdateCampaignRequest) (*dto.CampaignResponse, error)
	ListMembers(ctx context.Context, userID, campaignID string) ([]string, error)
	Join(ctx context.Context, userID, campaignID string) (*dto.MembershipResponse, error)
	Leave(ctx context.Context, userID, campaignID string) (*dto.LeaveResponse, error)
	GetActiveCampaign(ctx context.Context, userID string) (*dto.ActiveCampaignResponse, error)
	SetActiveCampaign(ctx context.Context, userID string, req *dto.ActiveCampaignRequest) (*dto.ActiveCampaignResponse, error)
}

type campaignAppServiceImpl struct {
	campaigns repository.CampaignRepository
	members   repository.MembershipRepository
	settings  repository.UserSettingsRepository
	logger    logger.Logger
}

// NewCampaignAppService creates a new instance of CampaignAppService
func NewCampaignAppService(
	campaigns repository.CampaignRepository,
	members repository.MembershipRepository,
	settings repository.UserSettingsRepository,
	log logger.Logger,
) CampaignAppService {
	return &campaignAppServiceImpl{
		campaigns: campaigns,
		members:   members,
		settings:  settings,
		logger:    log.WithComponent("CampaignAppService"),
	}
}

func (s *campaignAppServiceImpl) List(ctx context.Context) ([]*dto.CampaignResponse, error) {
	campaigns, err := s.campaigns.List(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]*dto.CampaignResponse, 0, len(campaigns))
	for _, c := range campaigns {
		out = append(out, dto.NewCampaignResponse(c))
	}
	return out, nil
}

// Create stores a new campaign owned by the caller, who joins it as dm.
func (s *campaignAppServiceImpl) Create(ctx context.Context, userID string, req *dto.CreateCampaignRequest) (*dto.CampaignResponse, error) {
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return nil, errors.ErrInvalidRequest("name required")
	}

	id := strings.TrimSpace(req.ID)
	if id == "" {
		var err error
		if id, err = newCampaignID(); err != nil {
			return nil, errors.ErrInternal("failed to generate campaign id").WithCause(err)
		}
	}

	campaign := &models.Campaign{
		ID:          id,
		Name:        name,
		Description: strings.TrimSpace(req.Description),
		Avatar:      strings.TrimSpace(req.Avatar),
		OwnerID:     &userID,
	}
	if err := s.campaigns.CreateWithOwner(ctx, campaign, string(constants.RoleDM)); err != nil {
		return nil, err
	}

	s.logger.Info(ctx, "Campaign created", logger.String("campaign_id", id), logger.String("owner_id", userID))
	return dto.NewCampaignResponse(campaign), nil
}

// Update applies a partial update. When the campaign has a recorded owner only the owner may
// change it.
func (s *campaignAppServiceImpl) Update(ctx context.Context, userID, campaignID string, req *dto.UpdateCampaignRequest) (*dto.CampaignResponse, error) {
	update := req.ToUpdate()
	if update.Empty() {
		return nil, errors.ErrInvalidRequest("No fields to update.")
	}
	if update.Name != nil && strings.TrimSpace(*update.Name) == "" {
		return nil, errors.ErrInvalidRequest("Field 'name' cannot be empty.")
	}

	current, err := s.campaigns.FindByID(ctx, campaignID)
	if err != nil {
		return nil, err
	}
	if current.OwnerID != nil && !current.IsOwnedBy(userID) {
		s.logger.Warn(ctx, "Campaign update by non-owner rejected",
			logger.String("campaign_id", campaignID),
			logger.String("user_id", userID),
		)
		return nil, errors.ErrForbidden("only the campaign owner can update it")
	}

	updated, err := s.campaigns.Update(ctx, campaignID, update)
	if err != nil {
		return nil, err
	}
	return dto.NewCampaignResponse(updated), nil
}

// ListMembers returns the user ids of the campaign's members. The caller must be a member.
func (s *campaignAppServiceImpl) ListMembers(ctx context.Context, userID, campaignID string) ([]string, error) {
	ok, err := s.members.Exists(ctx, campaignID, userID)
	if err != nil {
		s.logger.Error(ctx, "Membership check failed", err, logger.String("campaign_id", campaignID))
		return nil, errors.ErrNotAMember(campaignID).WithCause(err)
	}
	if !ok {
		return nil, errors.ErrNotAMember(campaignID)
	}

	members, err := s.members.ListByCampaign(ctx, campaignID)
	if err != nil {
		return nil, err
	}
	ids := make([]string, 0, len(members))
	for _, m := range members {
		ids = append(ids, m.UserID)
	}
	return ids, nil
}

// Join adds the caller to the campaign. Joining twice is not an error.
func (s *campaignAppServiceImpl) Join(ctx context.Context, userID, campaignID string) (*dto.MembershipResponse, error) {
	if _, err := s.campaigns.FindByID(ctx, campaignID); err != nil {
		return nil, err
	}

	created, err := s.members.Add(ctx, &models.CampaignMember{
		CampaignID: campaignID,
		UserID:     userID,
		Role:       constants.RolePlayer,
	})
	if err != nil {
		return nil, err
	}
	if created {
		s.logger.Info(ctx, "User joined campaign", logger.String("campaign_id", campaignID), logger.String("user_id", userID))
	}
	return &dto.MembershipResponse{OK: true, Campaign: campaignID, Member: userID}, nil
}

// Leave removes the caller from the campaign and clears their active campaign if it was this one.
func (s *campaignAppServiceImpl) Leave(ctx context.Context, userID, campaignID string) (*dto.LeaveResponse, error) {
	if _, err := s.members.Remove(ctx, campaignID, userID); err != nil {
		return nil, err
	}
	if err := s.settings.ClearActiveCampaignIf(ctx, userID, campaignID); err != nil {
		return nil, err
	}
	active, err := s.settings.GetActiveCampaign(ctx, userID)
	if err != nil {
		return nil, err
	}

	s.logger.Info(ctx, "User left campaign", logger.String("campaign_id", campaignID), logger.String("user_id", userID))
	return &dto.LeaveResponse{
		MembershipResponse: dto.MembershipResponse{OK: true, Campaign: campaignID, Member: userID},
		Active:             active,
	}, nil
}

func (s *campaignAppServiceImpl) GetActiveCampaign(ctx context.Context, userID string) (*dto.ActiveCampaignResponse, error) {
	active, err := s.settings.GetActiveCampaign(ctx, userID)
	if err != nil {
		return nil, err
	}
	return &dto.ActiveCampaignResponse{CampaignID: active}, nil
}

// SetActiveCampaign points the caller at a campaign they belong to, or clears it.
func (s *campaignAppServiceImpl) SetActiveCampaign(ctx context.Context, userID string, req *dto.ActiveCampaignRequest) (*dto.ActiveCampaignResponse, error) {
	if req.CampaignID != nil {
		ok, err := s.members.Exists(ctx, *req.CampaignID, userID)
		if err != nil {
			return nil, errors.ErrNotAMember(*req.CampaignID).WithCause(err)
		}
		if !ok {
			return nil, errors.ErrNotAMember(*req.CampaignID)
		}
	}
	if err := s.settings.SetActiveCampaign(ctx, userID, req.CampaignID); err != nil {
		return nil, err
	}
	return &dto.ActiveCampaignResponse{CampaignID: req.CampaignID}, nil
}

// newCampaignID returns "c" followed by 12 hex characters.
func newCampaignID() (string, error) {
	u, err := uuid.NewRandom()
	if err != nil {
		return "", err
	}
	return "c" + strings.ReplaceAll(u.String(), "-", "")[:12], nil
}
