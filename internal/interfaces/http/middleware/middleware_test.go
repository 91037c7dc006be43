package middleware

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/npcchatter/backend/internal/config"
	"github.com/npcchatter/backend/internal/domain/models"
	"github.com/npcchatter/backend/internal/domain/service"
	"github.com/npcchatter/backend/internal/domain/service/mocks"
	"github.com/npcchatter/backend/internal/infrastructure/monitoring"
	"github.com/npcchatter/backend/internal/infrastructure/ratelimit"
	apperrors "github.com/npcchatter/backend/pkg/errors"
	"github.com/npcchatter/backend/pkg/logger"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func serve(r http.Handler, method, path string, header http.Header) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	req := httptest.NewRequest(method, path, nil)
	for k, v := range header {
		req.Header[k] = v
	}
	r.ServeHTTP(w, req)
	return w
}

func errorBody(t *testing.T, w *httptest.ResponseRecorder) string {
	t.Helper()
	var body apperrors.ErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	return body.Error
}

func TestExtractBearer(t *testing.T) {
	tests := []struct {
		header string
		want   string
	}{
		{"", ""},
		{"Bearer abc.def.ghi", "abc.def.ghi"},
		{"Bearer   abc ", "abc"},
		{"bearer abc", ""},
		{"Basic dXNlcjpwYXNz", ""},
		{"Bearer", ""},
	}
	for _, tt := range tests {
		t.Run(tt.header, func(t *testing.T) {
			assert.Equal(t, tt.want, ExtractBearer(tt.header))
		})
	}
}

func TestRequireUser(t *testing.T) {
	auth := new(mocks.MockAuthenticator)
	auth.On("Verify", mock.Anything, "good").Return(&models.AuthenticatedPrincipal{SubjectID: "u1"}, nil)
	auth.On("Verify", mock.Anything, "").Return(nil, apperrors.ErrMissingCredential())
	auth.On("Verify", mock.Anything, "expired").Return(nil, apperrors.ErrExpired())

	r := gin.New()
	r.GET("/me", RequireUser(auth, logger.NewNoopLogger()), func(c *gin.Context) {
		p, ok := PrincipalFrom(c)
		require.True(t, ok)
		c.String(http.StatusOK, p.SubjectID)
	})

	w := serve(r, http.MethodGet, "/me", http.Header{"Authorization": {"Bearer good"}})
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "u1", w.Body.String())

	w = serve(r, http.MethodGet, "/me", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, "Missing bearer token", errorBody(t, w))

	w = serve(r, http.MethodGet, "/me", http.Header{"Authorization": {"Bearer expired"}})
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, "Invalid token", errorBody(t, w))
}

func TestPrincipalFrom_Absent(t *testing.T) {
	c, _ := gin.CreateTestContext(httptest.NewRecorder())
	_, ok := PrincipalFrom(c)
	assert.False(t, ok)
}

func TestRateLimitMiddleware(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	limiter, err := ratelimit.NewRedisRateLimiter(client, ratelimit.Config{Limit: 1, Window: time.Minute},
		monitoring.NewNoopMetrics(), logger.NewNoopLogger())
	require.NoError(t, err)

	newRouter := func(cfg *config.RateLimitConfig) *gin.Engine {
		r := gin.New()
		r.Use(RateLimitMiddleware(limiter, cfg, logger.NewNoopLogger()))
		r.GET("/", func(c *gin.Context) { c.Status(http.StatusOK) })
		return r
	}

	t.Run("denies once the budget is spent", func(t *testing.T) {
		mr.FlushAll()
		r := newRouter(&config.RateLimitConfig{Enabled: true})

		w := serve(r, http.MethodGet, "/", nil)
		assert.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "0", w.Header().Get("X-RateLimit-Remaining"))

		w = serve(r, http.MethodGet, "/", nil)
		assert.Equal(t, http.StatusTooManyRequests, w.Code)
		assert.Equal(t, "rate limit exceeded", errorBody(t, w))
	})

	t.Run("disabled", func(t *testing.T) {
		mr.FlushAll()
		r := newRouter(&config.RateLimitConfig{Enabled: false})
		for i := 0; i < 3; i++ {
			assert.Equal(t, http.StatusOK, serve(r, http.MethodGet, "/", nil).Code)
		}
	})
}

func TestRateLimitMiddleware_FailsOpen(t *testing.T) {
	rl := new(mocks.MockRateLimitService)
	rl.On("Allow", mock.Anything, service.RateLimitScopeIP, mock.Anything).
		Return(false, 0, time.Time{}, errors.New("redis down"))

	r := gin.New()
	r.Use(RateLimitMiddleware(rl, &config.RateLimitConfig{Enabled: true}, logger.NewNoopLogger()))
	r.GET("/", func(c *gin.Context) { c.Status(http.StatusOK) })

	assert.Equal(t, http.StatusOK, serve(r, http.MethodGet, "/", nil).Code)
	rl.AssertExpectations(t)
}

func TestObservabilityMiddleware(t *testing.T) {
	reg := prometheus.NewRegistry()
	metrics := monitoring.NewMetrics(reg)
	recorder := tracetest.NewSpanRecorder()
	tracing := monitoring.NewTracingManagerWithProvider(
		sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder)), logger.NewNoopLogger())

	r := gin.New()
	r.Use(ObservabilityMiddleware(tracing, metrics))
	r.GET("/api/campaigns/:id", func(c *gin.Context) { c.Status(http.StatusOK) })

	serve(r, http.MethodGet, "/api/campaigns/c1", nil)
	serve(r, http.MethodGet, "/nowhere", nil)

	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.HTTPRequests.WithLabelValues("GET", "/api/campaigns/:id", "200")))
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.HTTPRequests.WithLabelValues("GET", "not_found", "404")))

	spans := recorder.Ended()
	require.Len(t, spans, 2)
	assert.Equal(t, "GET /api/campaigns/:id", spans[0].Name())
}

func TestObservabilityMiddleware_ContinuesPropagatedTrace(t *testing.T) {
	previous := otel.GetTextMapPropagator()
	otel.SetTextMapPropagator(propagation.TraceContext{})
	t.Cleanup(func() { otel.SetTextMapPropagator(previous) })

	recorder := tracetest.NewSpanRecorder()
	tracing := monitoring.NewTracingManagerWithProvider(
		sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder)), logger.NewNoopLogger())

	var traceID string
	r := gin.New()
	r.Use(ObservabilityMiddleware(tracing, monitoring.NewMetrics(prometheus.NewRegistry())))
	r.GET("/live", func(c *gin.Context) {
		traceID = monitoring.GetTraceID(c.Request.Context())
		c.Status(http.StatusOK)
	})

	serve(r, http.MethodGet, "/live", http.Header{
		"Traceparent": {"00-4bf92f3577b34da6a3ce929d0e0e4736-00f067aa0ba902b7-01"},
	})

	assert.Equal(t, "4bf92f3577b34da6a3ce929d0e0e4736", traceID)
	spans := recorder.Ended()
	require.Len(t, spans, 1)
	assert.Equal(t, "00f067aa0ba902b7", spans[0].Parent().SpanID().String())
}
