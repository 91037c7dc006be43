package models

// AuthenticatedPrincipal is the identity proven by a verified bearer credential.
// It is created per request and never cached.
type AuthenticatedPrincipal struct {
	// SubjectID is the identity provider's user id (the sub claim)
	SubjectID string `json:"subject_id"`

	// Issuer is the iss claim of the credential
	Issuer string `json:"issuer"`

	// RawClaims holds every decoded claim
	RawClaims map[string]interface{} `json:"-"`
}

// Claim returns a raw claim as a string, or "" when absent or not a string.
func (p *AuthenticatedPrincipal) Claim(name string) string {
	if p == nil || p.RawClaims == nil {
		return ""
	}
	s, _ := p.RawClaims[name].(string)
	return s
}
