package models

import "time"

// TokenRequest is what the Token Issuer asks the minting service for.
type TokenRequest struct {
	// ClientID binds the token to the principal's subject id
	ClientID string

	// Capability maps channel names to operations; nil means unscoped
	Capability map[string][]string

	// TTL is the lifetime of the minted token
	TTL time.Duration
}

// TokenResponse is the signed token request returned by the minting service. It is forwarded
// verbatim to the caller, who exchanges it with the transport for a token.
type TokenResponse struct {
	KeyName    string `json:"keyName"`
	ClientID   string `json:"clientId,omitempty"`
	Capability string `json:"capability,omitempty"`
	TTL        int64  `json:"ttl,omitempty"`
	Timestamp  int64  `json:"timestamp"`
	Nonce      string `json:"nonce"`
	MAC        string `json:"mac"`
}
