// Package crypto verifies bearer credentials issued by the identity provider.
package crypto

import (
	"context"
	stderrors "errors"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/npcchatter/backend/internal/domain/models"
	"github.com/npcchatter/backend/internal/domain/service"
	"github.com/npcchatter/backend/pkg/constants"
	"github.com/npcchatter/backend/pkg/errors"
	"github.com/npcchatter/backend/pkg/logger"
)

// VerifierConfig configures an IdentityVerifier.
type VerifierConfig struct {
	// Issuer is the expected iss claim. Empty disables the check.
	Issuer string

	// Leeway is the tolerated clock skew on exp, nbf and iat
	Leeway time.Duration
}

// IdentityVerifier validates RS256 bearer credentials against the key directory.
type IdentityVerifier struct {
	keys   service.KeyResolver
	issuer string
	leeway time.Duration
	now    func() time.Time
	logger logger.Logger
}

// VerifierOption customizes an IdentityVerifier.
type VerifierOption func(*IdentityVerifier)

// WithVerifierClock replaces the time source used for temporal checks.
func WithVerifierClock(now func() time.Time) VerifierOption {
	return func(v *IdentityVerifier) { v.now = now }
}

// NewIdentityVerifier creates an IdentityVerifier. A negative leeway uses the default.
func NewIdentityVerifier(keys service.KeyResolver, cfg VerifierConfig, log logger.Logger, opts ...VerifierOption) *IdentityVerifier {
	leeway := cfg.Leeway
	if leeway < 0 {
		leeway = constants.TokenLeeway
	}
	v := &IdentityVerifier{
		keys:   keys,
		issuer: strings.TrimSpace(cfg.Issuer),
		leeway: leeway,
		now:    time.Now,
		logger: log.WithComponent("IdentityVerifier"),
	}
	for _, opt := range opts {
		opt(v)
	}
	return v
}

// Verify checks the credential and returns the principal it proves. The raw credential is never logged.
func (v *IdentityVerifier) Verify(ctx context.Context, credential string) (*models.AuthenticatedPrincipal, error) {
	credential = strings.TrimSpace(credential)
	if credential == "" {
		return nil, errors.ErrMissingCredential()
	}

	unverified, _, err := jwt.NewParser().ParseUnverified(credential, jwt.MapClaims{})
	if err != nil {
		return nil, errors.ErrMalformedCredential("unparseable token").WithCause(err)
	}
	if alg, _ := unverified.Header["alg"].(string); alg != constants.AllowedSigningAlgorithm {
		v.logger.Debug(ctx, "Rejected credential signing algorithm", logger.String("alg", alg))
		return nil, errors.ErrSignatureInvalid().WithMetadata("alg", alg)
	}
	kid, _ := unverified.Header["kid"].(string)
	if kid == "" {
		return nil, errors.ErrMalformedCredential("missing kid header")
	}

	key, err := v.keys.Resolve(ctx, kid)
	if err != nil {
		v.logger.Warn(ctx, "Signing key lookup failed", logger.String("key_id", kid))
		if _, ok := errors.AsAppError(err); ok {
			return nil, err
		}
		return nil, errors.ErrKeyLookupFailure(kid).WithCause(err)
	}

	parser := jwt.NewParser(v.parserOptions()...)
	claims := jwt.MapClaims{}
	if _, err := parser.ParseWithClaims(credential, claims, func(*jwt.Token) (interface{}, error) {
		return key.PublicKey, nil
	}); err != nil {
		return nil, v.classify(err, unverified)
	}

	subject := stringClaim(claims, "sub")
	if subject == "" {
		subject = stringClaim(claims, "user_id")
	}
	if subject == "" {
		return nil, errors.ErrMalformedCredential("missing subject")
	}

	return &models.AuthenticatedPrincipal{
		SubjectID: subject,
		Issuer:    stringClaim(claims, "iss"),
		RawClaims: claims,
	}, nil
}

func (v *IdentityVerifier) parserOptions() []jwt.ParserOption {
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{constants.AllowedSigningAlgorithm}),
		jwt.WithLeeway(v.leeway),
		jwt.WithTimeFunc(v.now),
		jwt.WithExpirationRequired(),
		jwt.WithIssuedAt(),
	}
	if v.issuer != "" {
		opts = append(opts, jwt.WithIssuer(v.issuer))
	}
	return opts
}

// classify maps a parser error to exactly one failure code.
func (v *IdentityVerifier) classify(err error, unverified *jwt.Token) error {
	switch {
	case stderrors.Is(err, jwt.ErrTokenMalformed):
		return errors.ErrMalformedCredential("malformed token").WithCause(err)
	case stderrors.Is(err, jwt.ErrTokenSignatureInvalid), stderrors.Is(err, jwt.ErrTokenUnverifiable):
		return errors.ErrSignatureInvalid().WithCause(err)
	case stderrors.Is(err, jwt.ErrTokenInvalidIssuer):
		actual := ""
		if claims, ok := unverified.Claims.(jwt.MapClaims); ok {
			actual = stringClaim(claims, "iss")
		}
		return errors.ErrIssuerMismatch(v.issuer, actual)
	case stderrors.Is(err, jwt.ErrTokenExpired):
		return errors.ErrExpired()
	case stderrors.Is(err, jwt.ErrTokenNotValidYet), stderrors.Is(err, jwt.ErrTokenUsedBeforeIssued):
		return errors.ErrNotYetValid()
	case stderrors.Is(err, jwt.ErrTokenRequiredClaimMissing):
		return errors.ErrMalformedCredential("missing required claim").WithCause(err)
	default:
		return errors.ErrMalformedCredential("invalid claims").WithCause(err)
	}
}

func stringClaim(claims jwt.MapClaims, name string) string {
	s, _ := claims[name].(string)
	return s
}

var _ service.Authenticator = (*IdentityVerifier)(nil)
