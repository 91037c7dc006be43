package main

import (
	"context"
	"log"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	goredis "github.com/redis/go-redis/v9"

	appservice "github.com/npcchatter/backend/internal/application/service"
	"github.com/npcchatter/backend/internal/config"
	domainservice "github.com/npcchatter/backend/internal/domain/service"
	"github.com/npcchatter/backend/internal/infrastructure/audit"
	"github.com/npcchatter/backend/internal/infrastructure/crypto"
	"github.com/npcchatter/backend/internal/infrastructure/jwks"
	"github.com/npcchatter/backend/internal/infrastructure/kms"
	"github.com/npcchatter/backend/internal/infrastructure/monitoring"
	"github.com/npcchatter/backend/internal/infrastructure/persistence/postgres"
	"github.com/npcchatter/backend/internal/infrastructure/persistence/redis"
	"github.com/npcchatter/backend/internal/infrastructure/ratelimit"
	"github.com/npcchatter/backend/internal/infrastructure/realtime"
	"github.com/npcchatter/backend/internal/interfaces/http"
	"github.com/npcchatter/backend/internal/interfaces/http/handlers"
	"github.com/npcchatter/backend/pkg/logger"
)

func main() {
	// Logger for startup
	startupLogger, _, err := monitoring.NewZapLogger(&config.LogConfig{Level: "info"})
	if err != nil {
		log.Fatalf("Failed to create logger: %v", err)
	}

	cfg, err := config.LoadConfig(startupLogger)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	appLogger, setLevel, err := monitoring.NewZapLogger(&cfg.Log)
	if err != nil {
		log.Fatalf("Failed to create logger: %v", err)
	}

	if err := run(cfg, appLogger, setLevel); err != nil {
		appLogger.Fatal(context.Background(), "Server exited with error", err)
	}
}

func run(cfg *config.Config, appLogger logger.Logger, setLevel monitoring.LevelSetter) error {
	ctx := context.Background()

	// Only the log level is applied on reload; everything else needs a restart.
	if err := config.Watch(appLogger, func(c *config.Config) { setLevel(c.Log.Level) }); err != nil {
		appLogger.Warn(ctx, "Config watching disabled", logger.String("error", err.Error()))
	}

	tracing, err := monitoring.NewTracingManager(cfg, appLogger)
	if err != nil {
		return err
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = tracing.Shutdown(shutdownCtx)
	}()

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	metrics := monitoring.NewMetrics(registry)

	// Database
	db, err := postgres.NewDBConnection(ctx, &cfg.Database, appLogger)
	if err != nil {
		return err
	}
	defer db.Close()
	if cfg.Database.AutoMigrate {
		if err := db.AutoMigrate(ctx); err != nil {
			return err
		}
	}
	checks := map[string]handlers.Pinger{"database": db}

	// Redis is optional: it shares the key directory and rate limit buckets between instances.
	var redisClient goredis.UniversalClient
	if cfg.Redis.Enabled {
		redisConn := redis.NewRedisConnection(cfg.Redis, appLogger)
		if err := redisConn.Connect(ctx); err != nil {
			return err
		}
		defer redisConn.Close()
		redisClient = redisConn.GetClient()
		checks["redis"] = redisConn
	}

	// Identity
	directory, err := jwks.NewDirectory(jwks.Config{
		URLs:               cfg.Identity.JWKSURLs,
		CacheTTL:           cfg.Identity.CacheTTL,
		FetchTimeout:       cfg.Identity.FetchTimeout,
		MinRefreshInterval: cfg.Identity.MinRefreshInterval,
	}, redisClient, metrics, appLogger)
	if err != nil {
		return err
	}
	directory.Init(ctx)
	verifier := crypto.NewIdentityVerifier(directory, crypto.VerifierConfig{
		Issuer: cfg.Identity.Issuer,
		Leeway: cfg.Identity.Leeway,
	}, appLogger)

	// Transport credentials
	var creds domainservice.CredentialsProvider
	if cfg.Vault.Enabled {
		vaultClient, err := kms.NewVaultClient(cfg.Vault)
		if err != nil {
			return err
		}
		creds = kms.NewVaultCredentials(cfg.Vault, vaultClient, metrics, appLogger)
	} else {
		if err := realtime.ValidateAPIKey(cfg.Realtime.AblyAPIKey); err != nil {
			// token requests will fail with 500 until the key is fixed
			appLogger.Error(ctx, "Realtime API key is not usable", err)
		}
		creds = kms.NewStaticCredentials(cfg.Realtime.AblyAPIKey)
	}

	// Audit
	var auditSvc domainservice.AuditService = audit.NewLogAuditService(appLogger)
	if cfg.Kafka.Enabled {
		producer := audit.NewKafkaProducer(cfg.Kafka, appLogger)
		defer producer.Close()
		auditSvc = producer
	}

	// Rate limiting
	limiterCfg := ratelimit.Config{
		Limit:               cfg.RateLimit.DefaultRPM,
		Window:              time.Minute,
		Burst:               cfg.RateLimit.BurstSize,
		EnableLocalFallback: true,
	}
	var limiter domainservice.RateLimitService = ratelimit.NewLocalRateLimiter(limiterCfg)
	if redisClient != nil {
		rl, err := ratelimit.NewRedisRateLimiter(redisClient, limiterCfg, metrics, appLogger)
		if err != nil {
			return err
		}
		limiter = rl
	}

	// Repositories and services
	members := postgres.NewMembershipRepository(db.DB(), metrics, appLogger)
	campaignSvc := appservice.NewCampaignAppService(
		postgres.NewCampaignRepository(db.DB(), metrics, appLogger),
		members,
		postgres.NewUserSettingsRepository(db.DB(), appLogger),
		appLogger,
	)
	tokenSvc := appservice.NewRealtimeTokenService(
		verifier,
		domainservice.NewChannelAuthorizer(members, cfg.Realtime.MembershipTimeout, appLogger),
		domainservice.NewTokenIssuer(
			realtime.NewAblyTokenMinter(creds, appLogger),
			cfg.Realtime.TokenTTL,
			cfg.Realtime.MintingTimeout,
			appLogger,
		),
		auditSvc,
		metrics,
		tracing.Tracer(),
		appLogger,
	)

	router := http.NewRouter(cfg, appLogger, http.Deps{
		HealthHandler:   handlers.NewHealthHandler(checks, appLogger),
		RealtimeHandler: handlers.NewRealtimeHandler(tokenSvc),
		CampaignHandler: handlers.NewCampaignHandler(campaignSvc),
		Authenticator:   verifier,
		RateLimiter:     limiter,
		Recorder:        metrics,
		Tracing:         tracing,
		Gatherer:        registry,
	})
	return router.Start()
}
