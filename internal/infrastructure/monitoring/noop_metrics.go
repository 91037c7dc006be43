package monitoring

import (
	"time"

	"github.com/npcchatter/backend/internal/domain/service"
)

type noopMetrics struct{}

// NewNoopMetrics returns a service.Metrics that records nothing.
func NewNoopMetrics() service.Metrics { return noopMetrics{} }

func (noopMetrics) RecordTokenIssue(string, string, time.Duration) {}
func (noopMetrics) RecordPipelineStage(string, bool, time.Duration) {}
func (noopMetrics) RecordKeyRefresh(string, bool, time.Duration) {}
func (noopMetrics) RecordKeyLookup(bool) {}
func (noopMetrics) RecordRateLimitHit(string) {}
func (noopMetrics) RecordCacheAccess(string, bool) {}
func (noopMetrics) RecordDBQuery(string, time.Duration) {}
func (noopMetrics) RecordVaultAPI(string, bool, time.Duration) {}
