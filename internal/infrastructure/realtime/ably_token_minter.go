// Package realtime mints token requests for the Ably publish/subscribe transport.
package realtime

import (
	"context"
	"encoding/json"
	"strings"
	"sync"

	"github.com/ably/ably-go/ably"

	"github.com/npcchatter/backend/internal/domain/models"
	"github.com/npcchatter/backend/internal/domain/service"
	"github.com/npcchatter/backend/pkg/errors"
	"github.com/npcchatter/backend/pkg/logger"
)

// AblyTokenMinter creates signed Ably token requests. The request is signed locally with the
// API key secret; the caller exchanges it with Ably for a token.
type AblyTokenMinter struct {
	creds  service.CredentialsProvider
	logger logger.Logger

	mu        sync.Mutex
	clientKey string
	client    *ably.REST
}

// NewAblyTokenMinter creates a minter that reads its API key from creds on every call.
func NewAblyTokenMinter(creds service.CredentialsProvider, log logger.Logger) *AblyTokenMinter {
	return &AblyTokenMinter{
		creds:  creds,
		logger: log.WithComponent("AblyTokenMinter"),
	}
}

// Mint builds a token request bound to req.ClientID. A nil capability leaves the token unscoped.
func (m *AblyTokenMinter) Mint(ctx context.Context, req *models.TokenRequest) (*models.TokenResponse, error) {
	if err := ctx.Err(); err != nil {
		return nil, errors.ErrMintingFailed("request cancelled").WithCause(err)
	}

	key, err := m.creds.APIKey(ctx)
	if err != nil {
		if _, ok := errors.AsAppError(err); ok {
			return nil, err
		}
		return nil, errors.ErrMisconfiguredCredentials("credentials unavailable").WithCause(err)
	}
	if err := ValidateAPIKey(key); err != nil {
		return nil, err
	}

	client, err := m.clientFor(key)
	if err != nil {
		return nil, errors.ErrMisconfiguredCredentials("invalid api key").WithCause(err)
	}

	params := &ably.TokenParams{
		ClientID: req.ClientID,
		TTL:      req.TTL.Milliseconds(),
	}
	if req.Capability != nil {
		capability, err := json.Marshal(req.Capability)
		if err != nil {
			return nil, errors.ErrMintingFailed("encode capability").WithCause(err)
		}
		params.Capability = string(capability)
	}

	tokenRequest, err := client.Auth.CreateTokenRequest(params)
	if err != nil {
		m.logger.Error(ctx, "Failed to create token request", err, logger.String("client_id", req.ClientID))
		return nil, errors.ErrMintingFailed(err.Error()).WithCause(err)
	}

	return &models.TokenResponse{
		KeyName:    tokenRequest.KeyName,
		ClientID:   tokenRequest.ClientID,
		Capability: tokenRequest.Capability,
		TTL:        tokenRequest.TTL,
		Timestamp:  tokenRequest.Timestamp,
		Nonce:      tokenRequest.Nonce,
		MAC:        tokenRequest.MAC,
	}, nil
}

// clientFor reuses the REST client while the key is unchanged.
func (m *AblyTokenMinter) clientFor(key string) (*ably.REST, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.client != nil && m.clientKey == key {
		return m.client, nil
	}
	client, err := ably.NewREST(ably.WithKey(key))
	if err != nil {
		return nil, err
	}
	m.client, m.clientKey = client, key
	return client, nil
}

// ValidateAPIKey checks the <app>.<key>:<secret> shape without revealing the key in the error.
func ValidateAPIKey(key string) error {
	if strings.TrimSpace(key) == "" {
		return errors.ErrMisconfiguredCredentials("empty api key")
	}
	name, secret, found := strings.Cut(key, ":")
	if !found || secret == "" {
		return errors.ErrMisconfiguredCredentials("api key has no secret")
	}
	app, keyID, found := strings.Cut(name, ".")
	if !found || app == "" || keyID == "" {
		return errors.ErrMisconfiguredCredentials("api key name is not <app>.<key>")
	}
	return nil
}

var _ service.TokenMinter = (*AblyTokenMinter)(nil)
