package service

import "time"

// Metrics defines the interface for collecting gateway metrics.
// This abstraction allows the application layer to remain independent of Prometheus.
type Metrics interface {
	// RecordTokenIssue records the terminal outcome of one realtime token request.
	RecordTokenIssue(outcome, code string, duration time.Duration)

	// RecordPipelineStage records the duration of one pipeline stage.
	RecordPipelineStage(stage string, success bool, duration time.Duration)

	// RecordKeyRefresh records one fetch of a key directory source.
	RecordKeyRefresh(source string, success bool, duration time.Duration)

	// RecordKeyLookup records whether a key id was found without a forced refresh.
	RecordKeyLookup(hit bool)

	// RecordRateLimitHit records an event when a rate limit is triggered.
	RecordRateLimitHit(scope string)

	// RecordCacheAccess records a cache hit or miss.
	RecordCacheAccess(cacheType string, hit bool)

	// RecordDBQuery records the duration of a database query.
	RecordDBQuery(operation string, duration time.Duration)

	// RecordVaultAPI records the latency and error status of a Vault API call.
	RecordVaultAPI(operation string, success bool, duration time.Duration)
}
