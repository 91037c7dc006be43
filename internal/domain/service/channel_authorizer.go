package service

import (
	"context"
	"time"

	"github.com/npcchatter/backend/internal/domain/models"
	"github.com/npcchatter/backend/pkg/constants"
	"github.com/npcchatter/backend/pkg/errors"
	"github.com/npcchatter/backend/pkg/logger"
)

// ChannelAuthorizer decides whether a principal may use a realtime channel and derives the grant.
// Access is all-or-nothing per channel and denied unless membership is positively confirmed.
type ChannelAuthorizer struct {
	oracle  MembershipOracle
	timeout time.Duration
	logger  logger.Logger
}

// NewChannelAuthorizer creates a ChannelAuthorizer. A non-positive timeout uses the default.
func NewChannelAuthorizer(oracle MembershipOracle, timeout time.Duration, log logger.Logger) *ChannelAuthorizer {
	if timeout <= 0 {
		timeout = constants.MembershipQueryTimeout
	}
	return &ChannelAuthorizer{
		oracle:  oracle,
		timeout: timeout,
		logger:  log.WithComponent("ChannelAuthorizer"),
	}
}

// Authorize parses channel and grants the full operation set when principal is a member of the
// named campaign. Namespace and syntax checks happen before the oracle is consulted.
func (a *ChannelAuthorizer) Authorize(ctx context.Context, principal *models.AuthenticatedPrincipal, channel string) (*models.CapabilityGrant, error) {
	if principal == nil || principal.SubjectID == "" {
		return nil, errors.ErrMissingCredential()
	}

	name, err := models.ParseChannelName(channel)
	if err != nil {
		return nil, err
	}
	campaignID := name.CampaignID()

	queryCtx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()

	member, err := a.oracle.Exists(queryCtx, campaignID, principal.SubjectID)
	if err != nil {
		a.logger.Warn(ctx, "Membership oracle failed, denying access",
			logger.String("campaign_id", campaignID),
			logger.String("error", err.Error()),
		)
		return nil, errors.ErrOracleUnavailable(campaignID).WithCause(err)
	}
	if !member {
		return nil, errors.ErrNotAMember(campaignID)
	}

	return models.NewFullGrant(name), nil
}
