package http

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-contrib/pprof"
	"github.com/gin-contrib/requestid"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/npcchatter/backend/internal/config"
	"github.com/npcchatter/backend/internal/domain/service"
	"github.com/npcchatter/backend/internal/infrastructure/monitoring"
	"github.com/npcchatter/backend/internal/interfaces/http/handlers"
	"github.com/npcchatter/backend/internal/interfaces/http/middleware"
	"github.com/npcchatter/backend/pkg/errors"
	"github.com/npcchatter/backend/pkg/logger"
)

// Deps are the collaborators the router wires into routes.
type Deps struct {
	HealthHandler   *handlers.HealthHandler
	RealtimeHandler *handlers.RealtimeHandler
	CampaignHandler *handlers.CampaignHandler
	Authenticator   service.Authenticator
	RateLimiter     service.RateLimitService
	Recorder        middleware.HTTPRecorder
	Tracing         *monitoring.TracingManager
	Gatherer        prometheus.Gatherer
}

// Router is the HTTP router of the gateway.
type Router struct {
	engine *gin.Engine
	config *config.Config
	logger logger.Logger
	deps   Deps
	server *http.Server
}

// NewRouter creates the router and registers every route.
func NewRouter(cfg *config.Config, log logger.Logger, deps Deps) *Router {
	if cfg.Server.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	r := &Router{
		engine: gin.New(),
		config: cfg,
		logger: log.WithComponent("HTTPRouter"),
		deps:   deps,
	}
	r.setupRoutes()
	return r
}

func (r *Router) setupRoutes() {
	r.engine.Use(gin.Recovery())
	r.engine.Use(requestid.New())
	r.engine.Use(middleware.ObservabilityMiddleware(r.deps.Tracing, r.deps.Recorder))
	r.engine.Use(middleware.LoggingMiddleware(r.logger))

	// Credentialed CORS must echo an allowed origin, never "*".
	r.engine.Use(cors.New(cors.Config{
		AllowOrigins:     r.config.Server.AllowedOrigins,
		AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization", "X-Request-ID"},
		ExposeHeaders:    []string{"X-Request-ID", "X-RateLimit-Remaining", "X-RateLimit-Reset"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	r.engine.GET("/", r.deps.HealthHandler.Root)
	r.engine.GET("/health", r.deps.HealthHandler.HealthCheck)
	r.engine.GET("/ready", r.deps.HealthHandler.ReadinessCheck)
	r.engine.GET("/live", r.deps.HealthHandler.LivenessCheck)

	r.engine.GET("/metrics", gin.WrapH(promhttp.HandlerFor(r.deps.Gatherer, promhttp.HandlerOpts{})))

	if r.config.Server.Environment != "production" {
		pprof.Register(r.engine)
	}

	limited := middleware.RateLimitMiddleware(r.deps.RateLimiter, &r.config.RateLimit, r.logger)
	r.engine.GET("/realtime/token", limited, r.deps.RealtimeHandler.IssueToken)

	api := r.engine.Group("/api")
	api.GET("/realtime/token", limited, r.deps.RealtimeHandler.IssueToken)

	authed := api.Group("", middleware.RequireUser(r.deps.Authenticator, r.logger))
	{
		campaigns := authed.Group("/campaigns")
		campaigns.GET("", r.deps.CampaignHandler.List)
		campaigns.POST("", r.deps.CampaignHandler.Create)
		campaigns.PATCH("/:id", r.deps.CampaignHandler.Update)
		campaigns.GET("/:id/members", r.deps.CampaignHandler.Members)
		campaigns.POST("/:id/join", r.deps.CampaignHandler.Join)
		campaigns.POST("/:id/leave", r.deps.CampaignHandler.Leave)

		settings := authed.Group("/settings")
		settings.GET("/active-campaign", r.deps.CampaignHandler.GetActiveCampaign)
		settings.PUT("/active-campaign", r.deps.CampaignHandler.SetActiveCampaign)
	}

	r.engine.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, &errors.ErrorResponse{Error: "not found"})
	})
}

// Engine exposes the gin engine, mainly for tests.
func (r *Router) Engine() *gin.Engine {
	return r.engine
}

// Start serves until the listener fails or a termination signal arrives.
func (r *Router) Start() error {
	addr := r.config.Server.Address()
	r.server = &http.Server{
		Addr:           addr,
		Handler:        r.engine,
		ReadTimeout:    time.Duration(r.config.Server.ReadTimeout) * time.Second,
		WriteTimeout:   time.Duration(r.config.Server.WriteTimeout) * time.Second,
		IdleTimeout:    time.Duration(r.config.Server.IdleTimeout) * time.Second,
		MaxHeaderBytes: 1 << 20, // 1MB
	}

	r.logger.Info(context.Background(), "Starting HTTP server", logger.String("address", addr))

	go r.gracefulShutdown()

	if err := r.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

func (r *Router) gracefulShutdown() {
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	r.logger.Info(context.Background(), "Shutting down HTTP server")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := r.server.Shutdown(ctx); err != nil {
		r.logger.Error(ctx, "Server forced to shutdown", err)
	}
	r.logger.Info(ctx, "HTTP server stopped")
}

// Stop shuts the server down.
func (r *Router) Stop(ctx context.Context) error {
	if r.server == nil {
		return nil
	}
	r.logger.Info(ctx, "Stopping HTTP server")
	return r.server.Shutdown(ctx)
}
