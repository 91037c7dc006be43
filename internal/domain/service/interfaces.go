// Package service defines the domain services of the realtime token path and the
// interfaces of the collaborators they depend on.
package service

import (
	"context"
	"time"

	"github.com/npcchatter/backend/internal/domain/models"
)

//go:generate mockery --name KeyResolver --output mocks --outpkg mocks
// KeyResolver resolves a key id to a verification key from the identity provider's key directory.
type KeyResolver interface {
	// Resolve returns the key for keyID. It refreshes the directory at most once per call and
	// fails with a key_lookup_failure error carrying the key id.
	Resolve(ctx context.Context, keyID string) (models.SigningKey, error)
}

//go:generate mockery --name Authenticator --output mocks --outpkg mocks
// Authenticator verifies a bearer credential and returns the principal it proves.
type Authenticator interface {
	Verify(ctx context.Context, credential string) (*models.AuthenticatedPrincipal, error)
}

//go:generate mockery --name MembershipOracle --output mocks --outpkg mocks
// MembershipOracle answers campaign membership questions against the persisted membership relation.
// It is read-only from the point of view of the token path.
type MembershipOracle interface {
	Exists(ctx context.Context, campaignID, userID string) (bool, error)
	OwnerOf(ctx context.Context, campaignID string) (*string, error)
}

//go:generate mockery --name TokenMinter --output mocks --outpkg mocks
// TokenMinter produces a signed token request for the realtime transport.
type TokenMinter interface {
	Mint(ctx context.Context, req *models.TokenRequest) (*models.TokenResponse, error)
}

//go:generate mockery --name CredentialsProvider --output mocks --outpkg mocks
// CredentialsProvider supplies the service's own credentials for the realtime transport.
type CredentialsProvider interface {
	APIKey(ctx context.Context) (string, error)
}

// AuditService defines the interface for logging security-sensitive audit events.
type AuditService interface {
	LogEvent(ctx context.Context, event models.AuditEvent) error
}

// RateLimitScope names what a rate limit counts.
type RateLimitScope string

const (
	RateLimitScopeIP   RateLimitScope = "ip"
	RateLimitScopeUser RateLimitScope = "user"
)

// RateLimitService defines the interface for rate limiting operations.
type RateLimitService interface {
	// Allow checks whether one more request is allowed for identifier in scope.
	// It returns the remaining budget and the time when the window resets.
	Allow(ctx context.Context, scope RateLimitScope, identifier string) (allowed bool, remaining int, resetAt time.Time, err error)
}
