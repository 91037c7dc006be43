// Package constants defines system-wide constants for the npcchatter backend.
package constants

import "time"

// ================================================================================
// Realtime Channel Constants
// ================================================================================

// ChannelNamespace is the namespace half of a realtime channel name.
type ChannelNamespace string

const (
	// NamespaceCampaign is the only namespace the gateway grants access to
	NamespaceCampaign ChannelNamespace = "campaign"

	// ChannelSeparator separates namespace and resource id in a channel name
	ChannelSeparator = ":"
)

// Operation is a single capability on a realtime channel.
type Operation string

const (
	OperationPublish   Operation = "publish"
	OperationSubscribe Operation = "subscribe"
	OperationPresence  Operation = "presence"
	OperationHistory   Operation = "history"
)

// FullOperationSet is granted to every campaign member. There are no partial grants.
var FullOperationSet = []Operation{
	OperationPublish,
	OperationSubscribe,
	OperationPresence,
	OperationHistory,
}

// ================================================================================
// Identity Constants
// ================================================================================

const (
	// AllowedSigningAlgorithm is the only algorithm accepted on bearer credentials
	AllowedSigningAlgorithm = "RS256"

	// TokenLeeway is the clock skew tolerated on exp/nbf/iat
	TokenLeeway = 10 * time.Second

	// BearerPrefix prefixes the credential in the Authorization header
	BearerPrefix = "Bearer "
)

// ================================================================================
// Cache TTL / Timeout Constants
// ================================================================================

const (
	// KeyDirectoryCacheTTL is how long a fetched key set is considered fresh
	KeyDirectoryCacheTTL = 3600 * time.Second

	// KeyDirectoryMinRefreshInterval floors forced refreshes
	KeyDirectoryMinRefreshInterval = 5 * time.Second

	// KeyDirectoryFetchTimeout bounds a single key-set fetch
	KeyDirectoryFetchTimeout = 5 * time.Second

	// MembershipQueryTimeout bounds a single Membership Oracle query
	MembershipQueryTimeout = 3 * time.Second

	// MintingTimeout bounds a single call to the Token Minting Service
	MintingTimeout = 5 * time.Second

	// RealtimeTokenTTL is the lifetime of minted transport tokens
	RealtimeTokenTTL = 3600 * time.Second

	// CredentialsCacheTTL is the L1 lifetime of minting credentials read from Vault
	CredentialsCacheTTL = 5 * time.Minute

	// VaultReadTimeout bounds a single credentials read from Vault
	VaultReadTimeout = 5 * time.Second
)

// ================================================================================
// Membership Roles
// ================================================================================

// MemberRole is the role column of campaign_members.
type MemberRole string

const (
	RolePlayer MemberRole = "player"
	RoleDM     MemberRole = "dm"
)

// ================================================================================
// Context Keys
// ================================================================================

// ContextKey is used for request-scoped values.
type ContextKey string

const (
	ContextKeyRequestID ContextKey = "request_id"
	ContextKeyLogger    ContextKey = "logger"
	ContextKeyPrincipal ContextKey = "principal"
)

// ================================================================================
// Log Levels
// ================================================================================

const (
	LogLevelDebug = "debug"
	LogLevelInfo  = "info"
	LogLevelWarn  = "warn"
	LogLevelError = "error"
)

// ServiceName is reported in logs, traces and the root endpoint.
const ServiceName = "npcchatter-backend"
