package mocks

import (
	"time"

	"github.com/stretchr/testify/mock"
)

// MockMetrics is a testify mock of service.Metrics.
type MockMetrics struct {
	mock.Mock
}

func (m *MockMetrics) RecordTokenIssue(outcome, code string, duration time.Duration) {
	m.Called(outcome, code, duration)
}

func (m *MockMetrics) RecordPipelineStage(stage string, success bool, duration time.Duration) {
	m.Called(stage, success, duration)
}

func (m *MockMetrics) RecordKeyRefresh(source string, success bool, duration time.Duration) {
	m.Called(source, success, duration)
}

func (m *MockMetrics) RecordKeyLookup(hit bool) {
	m.Called(hit)
}

func (m *MockMetrics) RecordRateLimitHit(scope string) {
	m.Called(scope)
}

func (m *MockMetrics) RecordCacheAccess(cacheType string, hit bool) {
	m.Called(cacheType, hit)
}

func (m *MockMetrics) RecordDBQuery(operation string, duration time.Duration) {
	m.Called(operation, duration)
}

func (m *MockMetrics) RecordVaultAPI(operation string, success bool, duration time.Duration) {
	m.Called(operation, success, duration)
}
