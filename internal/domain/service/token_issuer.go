package service

import (
	"context"
	stderrors "errors"
	"time"

	"github.com/npcchatter/backend/internal/domain/models"
	"github.com/npcchatter/backend/pkg/constants"
	"github.com/npcchatter/backend/pkg/errors"
	"github.com/npcchatter/backend/pkg/logger"
)

// TokenIssuer turns a principal and an optional grant into a transport token request.
// Minting is never retried.
type TokenIssuer struct {
	minter  TokenMinter
	ttl     time.Duration
	timeout time.Duration
	logger  logger.Logger
}

// NewTokenIssuer creates a TokenIssuer. Non-positive durations use the defaults.
func NewTokenIssuer(minter TokenMinter, ttl, timeout time.Duration, log logger.Logger) *TokenIssuer {
	if ttl <= 0 {
		ttl = constants.RealtimeTokenTTL
	}
	if timeout <= 0 {
		timeout = constants.MintingTimeout
	}
	return &TokenIssuer{
		minter:  minter,
		ttl:     ttl,
		timeout: timeout,
		logger:  log.WithComponent("TokenIssuer"),
	}
}

// Issue mints a token bound to principal. A nil grant yields an unscoped token.
func (i *TokenIssuer) Issue(ctx context.Context, principal *models.AuthenticatedPrincipal, grant *models.CapabilityGrant) (*models.TokenResponse, error) {
	if principal == nil || principal.SubjectID == "" {
		return nil, errors.ErrMissingCredential()
	}

	req := &models.TokenRequest{
		ClientID:   principal.SubjectID,
		Capability: grant.CapabilityMap(),
		TTL:        i.ttl,
	}

	mintCtx, cancel := context.WithTimeout(ctx, i.timeout)
	defer cancel()

	resp, err := i.minter.Mint(mintCtx, req)
	if err != nil {
		return nil, classifyMintError(err)
	}
	if resp == nil {
		return nil, errors.ErrMintingFailed("empty token request")
	}
	return resp, nil
}

func classifyMintError(err error) error {
	if appErr, ok := errors.AsAppError(err); ok {
		switch appErr.Kind() {
		case errors.KindMisconfigured, errors.KindUpstreamUnavailable:
			return appErr
		}
	}
	if stderrors.Is(err, context.DeadlineExceeded) {
		return errors.ErrMintingFailed("timed out").WithCause(err)
	}
	return errors.ErrMintingFailed(err.Error()).WithCause(err)
}
