package service_test

import (
	"context"
	stderrors "errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/npcchatter/backend/internal/domain/models"
	"github.com/npcchatter/backend/internal/domain/service"
	"github.com/npcchatter/backend/internal/domain/service/mocks"
	"github.com/npcchatter/backend/pkg/errors"
	"github.com/npcchatter/backend/pkg/logger"
)

func TestTokenIssuer_ScopedToken(t *testing.T) {
	minter := new(mocks.MockTokenMinter)
	expected := &models.TokenResponse{KeyName: "app.key", ClientID: "u1", Nonce: "n", MAC: "m"}
	minter.On("Mint", mock.Anything, &models.TokenRequest{
		ClientID: "u1",
		Capability: map[string][]string{
			"campaign:c1": {"publish", "subscribe", "presence", "history"},
		},
		TTL: time.Hour,
	}).Return(expected, nil)
	issuer := service.NewTokenIssuer(minter, time.Hour, time.Second, logger.NewNoopLogger())

	ch, err := models.ParseChannelName("campaign:c1")
	require.NoError(t, err)
	resp, err := issuer.Issue(context.Background(), principal("u1"), models.NewFullGrant(ch))

	require.NoError(t, err)
	assert.Same(t, expected, resp)
	minter.AssertExpectations(t)
}

func TestTokenIssuer_UnscopedToken(t *testing.T) {
	minter := new(mocks.MockTokenMinter)
	minter.On("Mint", mock.Anything, mock.MatchedBy(func(req *models.TokenRequest) bool {
		return req.ClientID == "u1" && req.Capability == nil && req.TTL == 3600*time.Second
	})).Return(&models.TokenResponse{KeyName: "app.key"}, nil)
	issuer := service.NewTokenIssuer(minter, 0, 0, logger.NewNoopLogger())

	_, err := issuer.Issue(context.Background(), principal("u1"), nil)

	require.NoError(t, err)
	minter.AssertExpectations(t)
}

func TestTokenIssuer_Failures(t *testing.T) {
	tests := []struct {
		name    string
		mintErr error
		code    errors.Code
		kind    errors.Kind
	}{
		{"upstream error", stderrors.New("503 from transport"), errors.CodeMintingFailed, errors.KindUpstreamUnavailable},
		{"timeout", context.DeadlineExceeded, errors.CodeMintingFailed, errors.KindUpstreamUnavailable},
		{"misconfigured", errors.ErrMisconfiguredCredentials("empty key"), errors.CodeMisconfiguredCredentials, errors.KindMisconfigured},
		{"already classified", errors.ErrMintingFailed("boom"), errors.CodeMintingFailed, errors.KindUpstreamUnavailable},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			minter := new(mocks.MockTokenMinter)
			minter.On("Mint", mock.Anything, mock.Anything).Return(nil, tt.mintErr).Once()
			issuer := service.NewTokenIssuer(minter, time.Hour, time.Second, logger.NewNoopLogger())

			resp, err := issuer.Issue(context.Background(), principal("u1"), nil)

			assert.Nil(t, resp)
			assert.Equal(t, tt.code, errors.CodeOf(err))
			assert.Equal(t, tt.kind, errors.KindOf(err))
			status, body := errors.ToErrorResponse(err)
			assert.Equal(t, 500, status)
			assert.Equal(t, errors.MsgTokenRequest, body.Error)
			// never retried
			minter.AssertNumberOfCalls(t, "Mint", 1)
		})
	}
}

func TestTokenIssuer_RequiresPrincipal(t *testing.T) {
	minter := new(mocks.MockTokenMinter)
	issuer := service.NewTokenIssuer(minter, time.Hour, time.Second, logger.NewNoopLogger())

	_, err := issuer.Issue(context.Background(), nil, nil)

	assert.Equal(t, errors.KindUnauthenticated, errors.KindOf(err))
	minter.AssertNotCalled(t, "Mint", mock.Anything, mock.Anything)
}
