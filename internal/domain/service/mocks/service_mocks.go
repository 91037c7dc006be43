package mocks

import (
	"context"
	"time"

	"github.com/stretchr/testify/mock"

	"github.com/npcchatter/backend/internal/domain/models"
	"github.com/npcchatter/backend/internal/domain/service"
)

type MockKeyResolver struct {
	mock.Mock
}

func (m *MockKeyResolver) Resolve(ctx context.Context, keyID string) (models.SigningKey, error) {
	args := m.Called(ctx, keyID)
	return args.Get(0).(models.SigningKey), args.Error(1)
}

type MockAuthenticator struct {
	mock.Mock
}

func (m *MockAuthenticator) Verify(ctx context.Context, credential string) (*models.AuthenticatedPrincipal, error) {
	args := m.Called(ctx, credential)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.AuthenticatedPrincipal), args.Error(1)
}

type MockMembershipOracle struct {
	mock.Mock
}

func (m *MockMembershipOracle) Exists(ctx context.Context, campaignID, userID string) (bool, error) {
	args := m.Called(ctx, campaignID, userID)
	return args.Bool(0), args.Error(1)
}

func (m *MockMembershipOracle) OwnerOf(ctx context.Context, campaignID string) (*string, error) {
	args := m.Called(ctx, campaignID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*string), args.Error(1)
}

type MockTokenMinter struct {
	mock.Mock
}

func (m *MockTokenMinter) Mint(ctx context.Context, req *models.TokenRequest) (*models.TokenResponse, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.TokenResponse), args.Error(1)
}

type MockCredentialsProvider struct {
	mock.Mock
}

func (m *MockCredentialsProvider) APIKey(ctx context.Context) (string, error) {
	args := m.Called(ctx)
	return args.String(0), args.Error(1)
}

type MockAuditService struct {
	mock.Mock
}

func (m *MockAuditService) LogEvent(ctx context.Context, event models.AuditEvent) error {
	args := m.Called(ctx, event)
	return args.Error(0)
}

type MockRateLimitService struct {
	mock.Mock
}

func (m *MockRateLimitService) Allow(ctx context.Context, scope service.RateLimitScope, identifier string) (bool, int, time.Time, error) {
	args := m.Called(ctx, scope, identifier)
	return args.Bool(0), args.Int(1), args.Get(2).(time.Time), args.Error(3)
}
