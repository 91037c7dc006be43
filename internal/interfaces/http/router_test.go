package http

import (
	"bytes"
	"context"
	"crypto/rand"
	"crypto/rsa"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/npcchatter/backend/internal/application/dto"
	appservice "github.com/npcchatter/backend/internal/application/service"
	"github.com/npcchatter/backend/internal/config"
	"github.com/npcchatter/backend/internal/domain/models"
	"github.com/npcchatter/backend/internal/domain/service"
	"github.com/npcchatter/backend/internal/infrastructure/audit"
	"github.com/npcchatter/backend/internal/infrastructure/crypto"
	"github.com/npcchatter/backend/internal/infrastructure/jwks"
	"github.com/npcchatter/backend/internal/infrastructure/kms"
	"github.com/npcchatter/backend/internal/infrastructure/monitoring"
	"github.com/npcchatter/backend/internal/infrastructure/persistence/postgres"
	"github.com/npcchatter/backend/internal/infrastructure/ratelimit"
	"github.com/npcchatter/backend/internal/infrastructure/realtime"
	"github.com/npcchatter/backend/internal/interfaces/http/handlers"
	"github.com/npcchatter/backend/pkg/logger"
)

const (
	testIssuer = "https://clerk.example.com"
	testAPIKey = "appid.keyid:c2VjcmV0c2VjcmV0"
)

func init() {
	gin.SetMode(gin.TestMode)
}

// gateway is the whole server wired against in-memory and httptest collaborators.
type gateway struct {
	router    *Router
	priv      *rsa.PrivateKey
	jwksHits  *atomic.Int32
	campaigns appservice.CampaignAppService
}

func newGateway(t *testing.T, rateLimit config.RateLimitConfig, limiter ratelimit.Config) *gateway {
	t.Helper()
	ctx := context.Background()
	log := logger.NewNoopLogger()

	priv, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	doc, err := jwks.EncodeKeySet(map[string]models.SigningKey{
		"k1": {KeyID: "k1", PublicKey: &priv.PublicKey, Algorithm: "RS256"},
	})
	require.NoError(t, err)

	hits := new(atomic.Int32)
	idp := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		hits.Add(1)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write(doc)
	}))
	t.Cleanup(idp.Close)

	conn, err := postgres.NewDBConnection(ctx, &config.DatabaseConfig{Driver: "sqlite", Database: ":memory:"}, log)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	require.NoError(t, conn.AutoMigrate(ctx))

	reg := prometheus.NewRegistry()
	metrics := monitoring.NewMetrics(reg)
	tracing := monitoring.NewNoopTracingManager()

	directory, err := jwks.NewDirectory(jwks.Config{URLs: []string{idp.URL}, FetchTimeout: time.Second}, nil, metrics, log)
	require.NoError(t, err)
	verifier := crypto.NewIdentityVerifier(directory, crypto.VerifierConfig{Issuer: testIssuer, Leeway: 10 * time.Second}, log)

	members := postgres.NewMembershipRepository(conn.DB(), metrics, log)
	campaigns := appservice.NewCampaignAppService(
		postgres.NewCampaignRepository(conn.DB(), metrics, log),
		members,
		postgres.NewUserSettingsRepository(conn.DB(), log),
		log,
	)
	tokens := appservice.NewRealtimeTokenService(
		verifier,
		service.NewChannelAuthorizer(members, time.Second, log),
		service.NewTokenIssuer(realtime.NewAblyTokenMinter(kms.NewStaticCredentials(testAPIKey), log), time.Hour, time.Second, log),
		audit.NewLogAuditService(log),
		metrics,
		tracing.Tracer(),
		log,
	)

	cfg := &config.Config{
		Server:    config.ServerConfig{Environment: "test", AllowedOrigins: []string{"https://www.npcchatter.com"}},
		RateLimit: rateLimit,
	}
	router := NewRouter(cfg, log, Deps{
		HealthHandler:   handlers.NewHealthHandler(map[string]handlers.Pinger{"database": conn}, log),
		RealtimeHandler: handlers.NewRealtimeHandler(tokens),
		CampaignHandler: handlers.NewCampaignHandler(campaigns),
		Authenticator:   verifier,
		RateLimiter:     ratelimit.NewLocalRateLimiter(limiter),
		Recorder:        metrics,
		Tracing:         tracing,
		Gatherer:        reg,
	})
	return &gateway{router: router, priv: priv, jwksHits: hits, campaigns: campaigns}
}

func (g *gateway) bearer(t *testing.T, sub string) string {
	t.Helper()
	now := time.Now()
	token := jwt.NewWithClaims(jwt.SigningMethodRS256, jwt.MapClaims{
		"sub": sub,
		"iss": testIssuer,
		"iat": now.Unix(),
		"exp": now.Add(time.Hour).Unix(),
	})
	token.Header["kid"] = "k1"
	s, err := token.SignedString(g.priv)
	require.NoError(t, err)
	return "Bearer " + s
}

func (g *gateway) do(method, path, auth string, body interface{}) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		_ = json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, path, &buf)
	if auth != "" {
		req.Header.Set("Authorization", auth)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	g.router.Engine().ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder, v interface{}) {
	t.Helper()
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), v), w.Body.String())
}

func errorOf(t *testing.T, w *httptest.ResponseRecorder) string {
	t.Helper()
	var body struct {
		Error string `json:"error"`
	}
	decode(t, w, &body)
	return body.Error
}

func defaultGateway(t *testing.T) *gateway {
	return newGateway(t, config.RateLimitConfig{Enabled: true}, ratelimit.Config{Limit: 1000, Window: time.Minute})
}

func TestRealtimeToken_MemberGetsScopedToken(t *testing.T) {
	g := defaultGateway(t)
	_, err := g.campaigns.Create(context.Background(), "u1", &dto.CreateCampaignRequest{ID: "c1", Name: "One"})
	require.NoError(t, err)

	w := g.do(http.MethodGet, "/realtime/token?channel=campaign:c1", g.bearer(t, "u1"), nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var resp models.TokenResponse
	decode(t, w, &resp)
	assert.Equal(t, "u1", resp.ClientID)
	assert.Equal(t, "appid.keyid", resp.KeyName)
	assert.Equal(t, int64(3600000), resp.TTL)
	assert.NotEmpty(t, resp.MAC)

	var capability map[string][]string
	require.NoError(t, json.Unmarshal([]byte(resp.Capability), &capability))
	assert.ElementsMatch(t, []string{"publish", "subscribe", "presence", "history"}, capability["campaign:c1"])
	assert.Len(t, capability, 1)
}

func TestRealtimeToken_NonMemberForbidden(t *testing.T) {
	g := defaultGateway(t)
	_, err := g.campaigns.Create(context.Background(), "u1", &dto.CreateCampaignRequest{ID: "c1", Name: "One"})
	require.NoError(t, err)

	w := g.do(http.MethodGet, "/api/realtime/token?channel=campaign:c1", g.bearer(t, "u2"), nil)
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Equal(t, "Not a member of that campaign", errorOf(t, w))
}

func TestRealtimeToken_MissingCredentialMakesNoUpstreamCalls(t *testing.T) {
	g := defaultGateway(t)

	for _, auth := range []string{"", "Token abc"} {
		w := g.do(http.MethodGet, "/realtime/token?channel=campaign:c1", auth, nil)
		assert.Equal(t, http.StatusUnauthorized, w.Code)
		assert.Equal(t, "Missing bearer token", errorOf(t, w))
	}
	assert.Zero(t, g.jwksHits.Load())
}

func TestRealtimeToken_InvalidCredential(t *testing.T) {
	g := defaultGateway(t)

	w := g.do(http.MethodGet, "/realtime/token", "Bearer not-a-jwt", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, "Invalid token", errorOf(t, w))
}

func TestRealtimeToken_UnsupportedNamespace(t *testing.T) {
	g := defaultGateway(t)

	w := g.do(http.MethodGet, "/realtime/token?channel=foo:bar", g.bearer(t, "u1"), nil)
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Equal(t, "Not allowed for this channel", errorOf(t, w))
}

func TestRealtimeToken_NoChannelIsUnscoped(t *testing.T) {
	g := defaultGateway(t)

	w := g.do(http.MethodGet, "/realtime/token", g.bearer(t, "u9"), nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var resp models.TokenResponse
	decode(t, w, &resp)
	assert.Equal(t, "u9", resp.ClientID)
	assert.Empty(t, resp.Capability)
}

func TestRealtimeToken_RateLimited(t *testing.T) {
	g := newGateway(t, config.RateLimitConfig{Enabled: true}, ratelimit.Config{Limit: 1, Window: time.Hour})

	assert.Equal(t, http.StatusUnauthorized, g.do(http.MethodGet, "/realtime/token", "", nil).Code)
	w := g.do(http.MethodGet, "/realtime/token", "", nil)
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Equal(t, "rate limit exceeded", errorOf(t, w))

	// campaign routes are not limited
	assert.Equal(t, http.StatusUnauthorized, g.do(http.MethodGet, "/api/campaigns", "", nil).Code)
}

func TestCampaignAPI_Flow(t *testing.T) {
	g := defaultGateway(t)
	owner, player := g.bearer(t, "owner"), g.bearer(t, "player")

	w := g.do(http.MethodPost, "/api/campaigns", owner, map[string]string{"name": "Lost Mine"})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var created dto.CampaignResponse
	decode(t, w, &created)
	id := created.ID

	w = g.do(http.MethodGet, "/api/campaigns", player, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var list []dto.CampaignResponse
	decode(t, w, &list)
	require.Len(t, list, 1)

	w = g.do(http.MethodPatch, "/api/campaigns/"+id, player, map[string]string{"name": "Mine"})
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = g.do(http.MethodPatch, "/api/campaigns/"+id, owner, map[string]string{})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "No fields to update.", errorOf(t, w))

	w = g.do(http.MethodPatch, "/api/campaigns/nope", owner, map[string]string{"name": "x"})
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = g.do(http.MethodGet, "/api/campaigns/"+id+"/members", player, nil)
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = g.do(http.MethodPost, "/api/campaigns/"+id+"/join", player, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var joined dto.MembershipResponse
	decode(t, w, &joined)
	assert.Equal(t, dto.MembershipResponse{OK: true, Campaign: id, Member: "player"}, joined)

	// the new member can now use the campaign channel
	w = g.do(http.MethodGet, "/realtime/token?channel=campaign:"+id, player, nil)
	assert.Equal(t, http.StatusOK, w.Code)

	w = g.do(http.MethodPut, "/api/settings/active-campaign", player, map[string]string{"campaign_id": id})
	require.Equal(t, http.StatusOK, w.Code)

	w = g.do(http.MethodPost, "/api/campaigns/"+id+"/leave", player, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var left map[string]interface{}
	decode(t, w, &left)
	assert.Equal(t, true, left["ok"])
	assert.Contains(t, left, "active")
	assert.Nil(t, left["active"])

	w = g.do(http.MethodGet, "/realtime/token?channel=campaign:"+id, player, nil)
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = g.do(http.MethodGet, "/api/settings/active-campaign", player, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var active dto.ActiveCampaignResponse
	decode(t, w, &active)
	assert.Nil(t, active.CampaignID)
}

func TestCampaignAPI_RequiresAuthentication(t *testing.T) {
	g := defaultGateway(t)

	w := g.do(http.MethodPost, "/api/campaigns", "", map[string]string{"name": "x"})
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, "Missing bearer token", errorOf(t, w))
}

func TestOperationalRoutes(t *testing.T) {
	g := defaultGateway(t)

	w := g.do(http.MethodGet, "/", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var root map[string]interface{}
	decode(t, w, &root)
	assert.Equal(t, map[string]interface{}{"ok": true, "service": "npcchatter-backend"}, root)

	assert.Equal(t, http.StatusOK, g.do(http.MethodGet, "/live", "", nil).Code)

	w = g.do(http.MethodGet, "/health", "", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var health struct {
		Status string            `json:"status"`
		Checks map[string]string `json:"checks"`
	}
	decode(t, w, &health)
	assert.Equal(t, "healthy", health.Status)
	assert.Equal(t, map[string]string{"database": "ok"}, health.Checks)

	w = g.do(http.MethodGet, "/metrics", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "npcchatter_http_requests_total")

	w = g.do(http.MethodGet, "/does-not-exist", "", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "not found", errorOf(t, w))
}

func TestCORS_EchoesAllowedOrigin(t *testing.T) {
	g := defaultGateway(t)

	req := httptest.NewRequest(http.MethodOptions, "/realtime/token", nil)
	req.Header.Set("Origin", "https://www.npcchatter.com")
	req.Header.Set("Access-Control-Request-Method", "GET")
	req.Header.Set("Access-Control-Request-Headers", "Authorization")
	w := httptest.NewRecorder()
	g.router.Engine().ServeHTTP(w, req)

	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "https://www.npcchatter.com", w.Header().Get("Access-Control-Allow-Origin"))
	assert.Equal(t, "true", w.Header().Get("Access-Control-Allow-Credentials"))

	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Origin", "https://evil.example.com")
	w = httptest.NewRecorder()
	g.router.Engine().ServeHTTP(w, req)
	assert.Empty(t, w.Header().Get("Access-Control-Allow-Origin"))
}
