// Package logger defines the structured logging interface used across the npcchatter backend.
// The production implementation lives in internal/infrastructure/monitoring and is backed by zap.
package logger

import (
	"context"
	"time"
)

// Logger defines the interface for structured logging
type Logger interface {
	// Debug logs a debug message
	Debug(ctx context.Context, msg string, fields ...Fields)

	// Info logs an informational message
	Info(ctx context.Context, msg string, fields ...Fields)

	// Warn logs a warning message
	Warn(ctx context.Context, msg string, fields ...Fields)

	// Error logs an error message
	Error(ctx context.Context, msg string, err error, fields ...Fields)

	// Fatal logs a fatal message and exits the application
	Fatal(ctx context.Context, msg string, err error, fields ...Fields)

	// WithFields creates a new logger with additional fields
	WithFields(fields Fields) Logger

	// WithComponent creates a new logger for a specific component
	WithComponent(component string) Logger

	// ForContext returns the request-scoped logger stored in ctx, if any
	ForContext(ctx context.Context) Logger
}

// Fields is a set of key-value pairs attached to a log line.
type Fields map[string]interface{}

// String creates a single string field
func String(key string, value string) Fields {
	return Fields{key: value}
}

// Int creates a single integer field
func Int(key string, value int) Fields {
	return Fields{key: value}
}

// Int64 creates a single int64 field
func Int64(key string, value int64) Fields {
	return Fields{key: value}
}

// Bool creates a single boolean field
func Bool(key string, value bool) Fields {
	return Fields{key: value}
}

// Duration creates a single duration field, rendered in milliseconds
func Duration(key string, value time.Duration) Fields {
	return Fields{key: value.Milliseconds()}
}

// Any creates a single field with any value
func Any(key string, value interface{}) Fields {
	return Fields{key: value}
}
