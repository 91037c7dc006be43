package dto

// RealtimeTokenRequest is one inbound token request as seen by the pipeline.
type RealtimeTokenRequest struct {
	// Bearer is the credential without the "Bearer " prefix; empty when absent
	Bearer string

	// Channel is the requested channel; empty asks for an unscoped token
	Channel string

	RequestID string
	ClientIP  string
}
