package errors

import (
	stderrors "errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKind_HTTPStatus(t *testing.T) {
	tests := []struct {
		kind Kind
		want int
	}{
		{KindUnauthenticated, http.StatusUnauthorized},
		{KindForbidden, http.StatusForbidden},
		{KindUpstreamUnavailable, http.StatusInternalServerError},
		{KindMisconfigured, http.StatusInternalServerError},
		{KindInvalidRequest, http.StatusBadRequest},
		{KindNotFound, http.StatusNotFound},
		{KindConflict, http.StatusConflict},
		{KindRateLimited, http.StatusTooManyRequests},
		{KindInternal, http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.kind.String(), func(t *testing.T) {
			assert.Equal(t, tt.want, tt.kind.HTTPStatus())
		})
	}
}

func TestOracleUnavailable_IndistinguishableFromNotAMember(t *testing.T) {
	status1, body1 := ToErrorResponse(ErrNotAMember("c1"))
	status2, body2 := ToErrorResponse(ErrOracleUnavailable("c1").WithCause(stderrors.New("connection refused")))

	assert.Equal(t, status1, status2)
	assert.Equal(t, body1, body2)
	assert.Equal(t, http.StatusForbidden, status1)
	assert.Equal(t, MsgNotAMember, body1.Error)
}

func TestUnauthenticatedMessages(t *testing.T) {
	_, body := ToErrorResponse(ErrMissingCredential())
	assert.Equal(t, MsgMissingBearer, body.Error)

	for _, err := range []AppError{
		ErrMalformedCredential("bad header"),
		ErrKeyLookupFailure("kid-1"),
		ErrSignatureInvalid(),
		ErrIssuerMismatch("https://a", "https://b"),
		ErrExpired(),
		ErrNotYetValid(),
	} {
		status, body := ToErrorResponse(err)
		assert.Equal(t, http.StatusUnauthorized, status, err.Code())
		assert.Equal(t, MsgInvalidToken, body.Error, err.Code())
	}
}

func TestAsAppError_ThroughWrapping(t *testing.T) {
	wrapped := fmt.Errorf("verify: %w", ErrKeyLookupFailure("kid-9"))

	appErr, ok := AsAppError(wrapped)
	assert.True(t, ok)
	assert.Equal(t, CodeKeyLookupFailure, appErr.Code())
	assert.Equal(t, "kid-9", appErr.Metadata()["key_id"])
	assert.True(t, stderrors.Is(wrapped, ErrKeyLookupFailure("")))
	assert.False(t, stderrors.Is(wrapped, ErrExpired()))
}

func TestToErrorResponse_Unclassified(t *testing.T) {
	status, body := ToErrorResponse(stderrors.New("boom"))
	assert.Equal(t, http.StatusInternalServerError, status)
	assert.Equal(t, MsgInternal, body.Error)
	assert.Equal(t, KindInternal, KindOf(stderrors.New("boom")))
	assert.Equal(t, CodeInternal, CodeOf(nil))
}
