package models

import "time"

// AuditOutcome is the terminal state of a token request.
type AuditOutcome string

const (
	AuditOutcomeIssued    AuditOutcome = "issued"
	AuditOutcomeDenied    AuditOutcome = "denied"
	AuditOutcomeFailed    AuditOutcome = "failed"
	AuditOutcomeCancelled AuditOutcome = "cancelled"
)

// AuditEvent records one realtime token decision. It never carries credential material.
type AuditEvent struct {
	EventID   string       `json:"event_id"`
	SubjectID string       `json:"subject_id,omitempty"`
	Channel   string       `json:"channel,omitempty"`
	Outcome   AuditOutcome `json:"outcome"`
	Code      string       `json:"code,omitempty"`
	RequestID string       `json:"request_id,omitempty"`
	ClientIP  string       `json:"client_ip,omitempty"`
	Timestamp time.Time    `json:"timestamp"`
}
