// Package errors defines the classified error values used across the npcchatter backend.
// Every failure is classified at its origin with a Kind, which maps to exactly one HTTP
// status, and a stable Code that is safe to log and count but never returned to callers.
package errors

import (
	stderrors "errors"
	"fmt"
	"net/http"
)

// ================================================================================
// Kind
// ================================================================================

// Kind is the closed set of failure classes.
type Kind int

const (
	KindInternal Kind = iota
	KindUnauthenticated
	KindForbidden
	KindUpstreamUnavailable
	KindMisconfigured
	KindInvalidRequest
	KindNotFound
	KindConflict
	KindRateLimited
)

func (k Kind) String() string {
	switch k {
	case KindUnauthenticated:
		return "unauthenticated"
	case KindForbidden:
		return "forbidden"
	case KindUpstreamUnavailable:
		return "upstream_unavailable"
	case KindMisconfigured:
		return "misconfigured"
	case KindInvalidRequest:
		return "invalid_request"
	case KindNotFound:
		return "not_found"
	case KindConflict:
		return "conflict"
	case KindRateLimited:
		return "rate_limited"
	default:
		return "internal"
	}
}

// HTTPStatus maps a kind to its response status.
func (k Kind) HTTPStatus() int {
	switch k {
	case KindUnauthenticated:
		return http.StatusUnauthorized
	case KindForbidden:
		return http.StatusForbidden
	case KindInvalidRequest:
		return http.StatusBadRequest
	case KindNotFound:
		return http.StatusNotFound
	case KindConflict:
		return http.StatusConflict
	case KindRateLimited:
		return http.StatusTooManyRequests
	case KindUpstreamUnavailable, KindMisconfigured:
		return http.StatusInternalServerError
	default:
		return http.StatusInternalServerError
	}
}

// ================================================================================
// Codes
// ================================================================================

// Code identifies a specific failure inside a Kind.
type Code string

const (
	CodeMissingCredential        Code = "missing_credential"
	CodeMalformedCredential      Code = "malformed_credential"
	CodeKeyLookupFailure         Code = "key_lookup_failure"
	CodeSignatureInvalid         Code = "signature_invalid"
	CodeIssuerMismatch           Code = "issuer_mismatch"
	CodeExpired                  Code = "expired"
	CodeNotYetValid              Code = "not_yet_valid"
	CodeUnsupportedNamespace     Code = "unsupported_namespace"
	CodeMalformedChannel         Code = "malformed_channel"
	CodeNotAMember               Code = "not_a_member"
	CodeOracleUnavailable        Code = "oracle_unavailable"
	CodeMintingFailed            Code = "minting_failed"
	CodeMisconfiguredCredentials Code = "misconfigured_credentials"
	CodeInvalidRequest           Code = "invalid_request"
	CodeForbidden                Code = "forbidden"
	CodeNotFound                 Code = "not_found"
	CodeConflict                 Code = "conflict"
	CodeRateLimitExceeded        Code = "rate_limit_exceeded"
	CodeInternal                 Code = "internal_error"
)

// Public messages. Callers only ever see one of these.
const (
	MsgMissingBearer     = "Missing bearer token"
	MsgInvalidToken      = "Invalid token"
	MsgNotAMember        = "Not a member of that campaign"
	MsgChannelNotAllowed = "Not allowed for this channel"
	MsgTokenRequest      = "failed to create token request"
	MsgRateLimited       = "rate limit exceeded"
	MsgInternal          = "internal server error"
)

// ================================================================================
// AppError
// ================================================================================

// AppError is a classified error with additional metadata.
type AppError interface {
	error

	// Code returns the stable failure code
	Code() Code

	// Kind returns the failure class
	Kind() Kind

	// HTTPStatus returns the HTTP status code for the kind
	HTTPStatus() int

	// PublicMessage returns the non-sensitive message for response bodies
	PublicMessage() string

	// Unwrap returns the underlying error for error chain support
	Unwrap() error

	// WithCause adds a cause error to the error chain
	WithCause(cause error) AppError

	// WithMetadata adds additional context metadata
	WithMetadata(key string, value interface{}) AppError

	// Metadata returns all metadata
	Metadata() map[string]interface{}
}

type baseError struct {
	kind     Kind
	code     Code
	public   string
	message  string
	cause    error
	metadata map[string]interface{}
}

func (e *baseError) Error() string {
	msg := e.message
	if msg == "" {
		msg = string(e.code)
	}
	if e.cause != nil {
		return fmt.Sprintf("%s: %v", msg, e.cause)
	}
	return msg
}

func (e *baseError) Code() Code            { return e.code }
func (e *baseError) Kind() Kind            { return e.kind }
func (e *baseError) HTTPStatus() int       { return e.kind.HTTPStatus() }
func (e *baseError) PublicMessage() string { return e.public }
func (e *baseError) Unwrap() error         { return e.cause }

func (e *baseError) WithCause(cause error) AppError {
	e.cause = cause
	return e
}

func (e *baseError) WithMetadata(key string, value interface{}) AppError {
	if e.metadata == nil {
		e.metadata = make(map[string]interface{})
	}
	e.metadata[key] = value
	return e
}

func (e *baseError) Metadata() map[string]interface{} {
	return e.metadata
}

// Is matches two AppErrors by code, so errors.Is(err, ErrNotAMember("")) works.
func (e *baseError) Is(target error) bool {
	t, ok := target.(*baseError)
	if !ok {
		return false
	}
	return t.code == e.code
}

// NewError creates a new AppError.
func NewError(kind Kind, code Code, public string, message string) AppError {
	return &baseError{
		kind:    kind,
		code:    code,
		public:  public,
		message: message,
	}
}

// ================================================================================
// Identity failures
// ================================================================================

// ErrMissingCredential is returned when no bearer credential was presented.
func ErrMissingCredential() AppError {
	return NewError(KindUnauthenticated, CodeMissingCredential, MsgMissingBearer, "no bearer credential presented")
}

// ErrMalformedCredential is returned when the header or claims cannot be parsed.
func ErrMalformedCredential(reason string) AppError {
	return NewError(KindUnauthenticated, CodeMalformedCredential, MsgInvalidToken,
		fmt.Sprintf("malformed credential: %s", reason)).
		WithMetadata("reason", reason)
}

// ErrKeyLookupFailure carries the unresolved key id for diagnostics.
func ErrKeyLookupFailure(keyID string) AppError {
	return NewError(KindUnauthenticated, CodeKeyLookupFailure, MsgInvalidToken,
		fmt.Sprintf("signing key %q could not be resolved", keyID)).
		WithMetadata("key_id", keyID)
}

// ErrSignatureInvalid is returned when cryptographic verification fails.
func ErrSignatureInvalid() AppError {
	return NewError(KindUnauthenticated, CodeSignatureInvalid, MsgInvalidToken, "credential signature verification failed")
}

// ErrIssuerMismatch is returned when the configured issuer differs from the claim.
func ErrIssuerMismatch(expected, actual string) AppError {
	return NewError(KindUnauthenticated, CodeIssuerMismatch, MsgInvalidToken,
		fmt.Sprintf("issuer mismatch: expected %q, got %q", expected, actual)).
		WithMetadata("expected", expected).
		WithMetadata("actual", actual)
}

// ErrExpired is returned when exp is outside the leeway window.
func ErrExpired() AppError {
	return NewError(KindUnauthenticated, CodeExpired, MsgInvalidToken, "credential has expired")
}

// ErrNotYetValid is returned when nbf/iat lie in the future beyond the leeway.
func ErrNotYetValid() AppError {
	return NewError(KindUnauthenticated, CodeNotYetValid, MsgInvalidToken, "credential is not yet valid")
}

// ================================================================================
// Authorization failures
// ================================================================================

// ErrUnsupportedNamespace is returned for channels outside the campaign namespace.
func ErrUnsupportedNamespace(namespace string) AppError {
	return NewError(KindForbidden, CodeUnsupportedNamespace, MsgChannelNotAllowed,
		fmt.Sprintf("unsupported channel namespace %q", namespace)).
		WithMetadata("namespace", namespace)
}

// ErrMalformedChannel is returned for channel names that cannot be parsed.
func ErrMalformedChannel(channel string) AppError {
	return NewError(KindForbidden, CodeMalformedChannel, MsgChannelNotAllowed,
		fmt.Sprintf("malformed channel name %q", channel)).
		WithMetadata("channel", channel)
}

// ErrNotAMember is returned when the principal has no membership fact.
func ErrNotAMember(campaignID string) AppError {
	return NewError(KindForbidden, CodeNotAMember, MsgNotAMember,
		fmt.Sprintf("principal is not a member of campaign %q", campaignID)).
		WithMetadata("campaign_id", campaignID)
}

// ErrOracleUnavailable collapses a store failure into Forbidden. Its public message and
// status are identical to ErrNotAMember.
func ErrOracleUnavailable(campaignID string) AppError {
	return NewError(KindForbidden, CodeOracleUnavailable, MsgNotAMember,
		fmt.Sprintf("membership oracle unavailable for campaign %q", campaignID)).
		WithMetadata("campaign_id", campaignID)
}

// ================================================================================
// Minting failures
// ================================================================================

// ErrMintingFailed wraps an upstream transport error.
func ErrMintingFailed(reason string) AppError {
	return NewError(KindUpstreamUnavailable, CodeMintingFailed, MsgTokenRequest,
		fmt.Sprintf("token minting failed: %s", reason))
}

// ErrMisconfiguredCredentials is returned when the minting credentials are absent or malformed.
func ErrMisconfiguredCredentials(reason string) AppError {
	return NewError(KindMisconfigured, CodeMisconfiguredCredentials, MsgTokenRequest,
		fmt.Sprintf("minting credentials misconfigured: %s", reason))
}

// ================================================================================
// Ambient failures
// ================================================================================

// ErrInvalidRequest creates an invalid_request error whose message is shown to the caller.
func ErrInvalidRequest(message string) AppError {
	return NewError(KindInvalidRequest, CodeInvalidRequest, message, message)
}

// ErrNotFound creates a not_found error for a resource.
func ErrNotFound(resource, id string) AppError {
	return NewError(KindNotFound, CodeNotFound, fmt.Sprintf("%s not found", resource),
		fmt.Sprintf("%s %q not found", resource, id)).
		WithMetadata("resource", resource).
		WithMetadata("id", id)
}

// ErrForbidden creates a generic forbidden error.
func ErrForbidden(message string) AppError {
	return NewError(KindForbidden, CodeForbidden, message, message)
}

// ErrConflict creates a conflict error.
func ErrConflict(message string) AppError {
	return NewError(KindConflict, CodeConflict, message, message)
}

// ErrRateLimitExceeded creates a rate limit error for a scope.
func ErrRateLimitExceeded(scope string) AppError {
	return NewError(KindRateLimited, CodeRateLimitExceeded, MsgRateLimited,
		fmt.Sprintf("rate limit exceeded for %s", scope)).
		WithMetadata("scope", scope)
}

// ErrInternal creates an internal error.
func ErrInternal(message string) AppError {
	return NewError(KindInternal, CodeInternal, MsgInternal, message)
}

// ================================================================================
// Utilities
// ================================================================================

// AsAppError finds the first AppError in err's chain.
func AsAppError(err error) (AppError, bool) {
	var appErr AppError
	if stderrors.As(err, &appErr) {
		return appErr, true
	}
	return nil, false
}

// KindOf returns the kind of err, KindInternal for unclassified errors.
func KindOf(err error) Kind {
	if appErr, ok := AsAppError(err); ok {
		return appErr.Kind()
	}
	return KindInternal
}

// CodeOf returns the code of err, CodeInternal for unclassified errors.
func CodeOf(err error) Code {
	if appErr, ok := AsAppError(err); ok {
		return appErr.Code()
	}
	return CodeInternal
}

// ErrorResponse is the JSON body written for every failure.
type ErrorResponse struct {
	Error string `json:"error"`
}

// ToErrorResponse converts any error to a status and a non-sensitive body.
func ToErrorResponse(err error) (int, *ErrorResponse) {
	if appErr, ok := AsAppError(err); ok {
		return appErr.HTTPStatus(), &ErrorResponse{Error: appErr.PublicMessage()}
	}
	return http.StatusInternalServerError, &ErrorResponse{Error: MsgInternal}
}
