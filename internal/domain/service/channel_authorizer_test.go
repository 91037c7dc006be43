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

func principal(sub string) *models.AuthenticatedPrincipal {
	return &models.AuthenticatedPrincipal{SubjectID: sub, Issuer: "https://idp.example.com"}
}

func TestChannelAuthorizer_MemberGetsFullGrant(t *testing.T) {
	oracle := new(mocks.MockMembershipOracle)
	oracle.On("Exists", mock.Anything, "c1", "u1").Return(true, nil)
	a := service.NewChannelAuthorizer(oracle, time.Second, logger.NewNoopLogger())

	grant, err := a.Authorize(context.Background(), principal("u1"), "campaign:c1")

	require.NoError(t, err)
	assert.Equal(t, map[string][]string{
		"campaign:c1": {"publish", "subscribe", "presence", "history"},
	}, grant.CapabilityMap())
	oracle.AssertExpectations(t)
}

func TestChannelAuthorizer_NonMemberDenied(t *testing.T) {
	oracle := new(mocks.MockMembershipOracle)
	oracle.On("Exists", mock.Anything, "c1", "u2").Return(false, nil)
	a := service.NewChannelAuthorizer(oracle, time.Second, logger.NewNoopLogger())

	grant, err := a.Authorize(context.Background(), principal("u2"), "campaign:c1")

	assert.Nil(t, grant)
	assert.Equal(t, errors.CodeNotAMember, errors.CodeOf(err))
	assert.Equal(t, errors.KindForbidden, errors.KindOf(err))
}

func TestChannelAuthorizer_OracleFailureFailsClosed(t *testing.T) {
	oracle := new(mocks.MockMembershipOracle)
	oracle.On("Exists", mock.Anything, "c1", "u1").Return(false, stderrors.New("connection refused"))
	a := service.NewChannelAuthorizer(oracle, time.Second, logger.NewNoopLogger())

	grant, err := a.Authorize(context.Background(), principal("u1"), "campaign:c1")
	require.Error(t, err)
	assert.Nil(t, grant)
	assert.Equal(t, errors.CodeOracleUnavailable, errors.CodeOf(err))

	// Externally indistinguishable from a missing membership.
	status, body := errors.ToErrorResponse(err)
	notMemberStatus, notMemberBody := errors.ToErrorResponse(errors.ErrNotAMember("c1"))
	assert.Equal(t, notMemberStatus, status)
	assert.Equal(t, notMemberBody, body)
}

// A membership query that returns true alongside an error is still a denial.
func TestChannelAuthorizer_ErrorWinsOverPositiveAnswer(t *testing.T) {
	oracle := new(mocks.MockMembershipOracle)
	oracle.On("Exists", mock.Anything, "c1", "u1").Return(true, context.DeadlineExceeded)
	a := service.NewChannelAuthorizer(oracle, time.Second, logger.NewNoopLogger())

	grant, err := a.Authorize(context.Background(), principal("u1"), "campaign:c1")

	assert.Nil(t, grant)
	assert.Equal(t, errors.CodeOracleUnavailable, errors.CodeOf(err))
}

func TestChannelAuthorizer_DenyByDefaultWithoutQueryingOracle(t *testing.T) {
	channels := map[string]errors.Code{
		"foo:bar":      errors.CodeUnsupportedNamespace,
		"campaigns:c1": errors.CodeUnsupportedNamespace,
		"c1":           errors.CodeUnsupportedNamespace,
		"":             errors.CodeUnsupportedNamespace,
		"private:c1:x": errors.CodeUnsupportedNamespace,
		"campaign:":    errors.CodeMalformedChannel,
		"CAMPAIGN:c1":  errors.CodeUnsupportedNamespace,
		" campaign:c1": errors.CodeUnsupportedNamespace,
	}
	for _, sub := range []string{"u1", "u2", "admin"} {
		for ch, code := range channels {
			oracle := new(mocks.MockMembershipOracle)
			a := service.NewChannelAuthorizer(oracle, time.Second, logger.NewNoopLogger())

			grant, err := a.Authorize(context.Background(), principal(sub), ch)

			assert.Nil(t, grant, "channel %q", ch)
			assert.Equal(t, code, errors.CodeOf(err), "channel %q", ch)
			assert.Equal(t, errors.KindForbidden, errors.KindOf(err), "channel %q", ch)
			oracle.AssertNotCalled(t, "Exists", mock.Anything, mock.Anything, mock.Anything)
		}
	}
}

func TestChannelAuthorizer_MultiSeparatorChannelUsesRemainder(t *testing.T) {
	oracle := new(mocks.MockMembershipOracle)
	oracle.On("Exists", mock.Anything, "c1:extra", "u1").Return(false, nil)
	a := service.NewChannelAuthorizer(oracle, time.Second, logger.NewNoopLogger())

	_, err := a.Authorize(context.Background(), principal("u1"), "campaign:c1:extra")

	assert.Equal(t, errors.CodeNotAMember, errors.CodeOf(err))
	oracle.AssertExpectations(t)
}

func TestChannelAuthorizer_IdempotentRead(t *testing.T) {
	oracle := new(mocks.MockMembershipOracle)
	oracle.On("Exists", mock.Anything, "c1", "u1").Return(true, nil).Twice()
	a := service.NewChannelAuthorizer(oracle, time.Second, logger.NewNoopLogger())

	first, err := a.Authorize(context.Background(), principal("u1"), "campaign:c1")
	require.NoError(t, err)
	second, err := a.Authorize(context.Background(), principal("u1"), "campaign:c1")
	require.NoError(t, err)

	assert.Equal(t, first, second)
	oracle.AssertExpectations(t)
}

func TestChannelAuthorizer_QueryCarriesDeadline(t *testing.T) {
	oracle := new(mocks.MockMembershipOracle)
	oracle.On("Exists", mock.MatchedBy(func(ctx context.Context) bool {
		deadline, ok := ctx.Deadline()
		return ok && time.Until(deadline) <= 50*time.Millisecond
	}), "c1", "u1").Return(true, nil)
	a := service.NewChannelAuthorizer(oracle, 50*time.Millisecond, logger.NewNoopLogger())

	_, err := a.Authorize(context.Background(), principal("u1"), "campaign:c1")

	require.NoError(t, err)
	oracle.AssertExpectations(t)
}

// Membership gates capability: a grant exists iff the membership fact exists.
func TestChannelAuthorizer_MembershipGatesCapability(t *testing.T) {
	facts := map[[2]string]bool{
		{"c1", "u1"}: true,
		{"c2", "u2"}: true,
	}
	oracle := new(mocks.MockMembershipOracle)
	for _, cid := range []string{"c1", "c2", "c3"} {
		for _, uid := range []string{"u1", "u2", "u3"} {
			oracle.On("Exists", mock.Anything, cid, uid).Return(facts[[2]string{cid, uid}], nil)
		}
	}
	a := service.NewChannelAuthorizer(oracle, time.Second, logger.NewNoopLogger())

	for _, cid := range []string{"c1", "c2", "c3"} {
		for _, uid := range []string{"u1", "u2", "u3"} {
			grant, err := a.Authorize(context.Background(), principal(uid), "campaign:"+cid)
			if facts[[2]string{cid, uid}] {
				require.NoError(t, err)
				require.NotNil(t, grant)
				assert.Len(t, grant.Operations, 4)
			} else {
				assert.Nil(t, grant)
				assert.Equal(t, errors.CodeNotAMember, errors.CodeOf(err))
			}
		}
	}
}
