package config

import (
	"context"
	"strings"

	"github.com/fsnotify/fsnotify"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/npcchatter/backend/pkg/constants"
	"github.com/npcchatter/backend/pkg/logger"
)

// legacyEnv binds the variable names used by earlier deployments.
var legacyEnv = map[string]string{
	"identity.issuer":       "CLERK_ISSUER",
	"realtime.ably_api_key": "ABLY_API_KEY",
	"database.url":          "DATABASE_URL",
	"server.port":           "PORT",
}

// LoadConfig loads the configuration from .env, file, and environment variables.
func LoadConfig(log logger.Logger) (*Config, error) {
	v, err := newViper(log)
	if err != nil {
		return nil, err
	}
	return unmarshal(v)
}

// Watch reloads the file on change and hands the new config to apply. Only settings that are
// safe to change at runtime should be read by apply.
func Watch(log logger.Logger, apply func(*Config)) error {
	v, err := newViper(log)
	if err != nil {
		return err
	}
	v.OnConfigChange(func(e fsnotify.Event) {
		cfg, err := unmarshal(v)
		if err != nil {
			log.Error(context.Background(), "Ignoring invalid config change", err, logger.String("file", e.Name))
			return
		}
		log.Info(context.Background(), "Config file changed", logger.String("file", e.Name))
		apply(cfg)
	})
	v.WatchConfig()
	return nil
}

func newViper(log logger.Logger) (*viper.Viper, error) {
	if err := godotenv.Load(); err == nil {
		log.Debug(context.Background(), "Loaded environment from .env")
	}

	v := viper.New()
	setDefaults(v)

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath("/etc/npcchatter/")
	v.AddConfigPath(".")
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, err
		}
	}

	v.SetEnvPrefix("NPCCHATTER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	for key, env := range legacyEnv {
		_ = v.BindEnv(key, "NPCCHATTER_"+strings.ToUpper(strings.ReplaceAll(key, ".", "_")), env)
	}
	return v, nil
}

func unmarshal(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	// The identity provider URLs arrive either as a list or as the two legacy variables.
	if primary := v.GetString("identity.jwks_url"); primary != "" {
		cfg.Identity.JWKSURLs = append([]string{primary}, cfg.Identity.JWKSURLs...)
	}
	if alt := v.GetString("identity.jwks_url_alt"); alt != "" {
		cfg.Identity.JWKSURLs = append(cfg.Identity.JWKSURLs, alt)
	}
	cfg.Identity.JWKSURLs = dedupe(cfg.Identity.JWKSURLs)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 5000)
	v.SetDefault("server.environment", "development")
	v.SetDefault("server.read_timeout", 15)
	v.SetDefault("server.write_timeout", 15)
	v.SetDefault("server.idle_timeout", 60)
	v.SetDefault("server.allowed_origins", []string{"https://www.npcchatter.com", "http://localhost:5173"})

	v.SetDefault("database.driver", "postgres")
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.ssl_mode", "disable")
	v.SetDefault("database.max_conns", 10)
	v.SetDefault("database.min_conns", 1)
	v.SetDefault("database.max_conn_lifetime", 30)
	v.SetDefault("database.auto_migrate", true)

	v.SetDefault("redis.enabled", false)
	v.SetDefault("redis.host", "localhost")
	v.SetDefault("redis.port", 6379)
	v.SetDefault("redis.pool_size", 10)
	v.SetDefault("redis.min_idle_conns", 2)

	v.SetDefault("vault.mount_path", "secret")
	v.SetDefault("vault.field", "api_key")
	v.SetDefault("vault.timeout", constants.VaultReadTimeout)

	v.SetDefault("identity.cache_ttl", constants.KeyDirectoryCacheTTL)
	v.SetDefault("identity.fetch_timeout", constants.KeyDirectoryFetchTimeout)
	v.SetDefault("identity.min_refresh_interval", constants.KeyDirectoryMinRefreshInterval)
	v.SetDefault("identity.leeway", constants.TokenLeeway)
	_ = v.BindEnv("identity.jwks_url", "NPCCHATTER_IDENTITY_JWKS_URL", "CLERK_JWKS_URL")
	_ = v.BindEnv("identity.jwks_url_alt", "NPCCHATTER_IDENTITY_JWKS_URL_ALT", "CLERK_JWKS_URL_ALT")

	v.SetDefault("realtime.token_ttl", constants.RealtimeTokenTTL)
	v.SetDefault("realtime.minting_timeout", constants.MintingTimeout)
	v.SetDefault("realtime.membership_timeout", constants.MembershipQueryTimeout)

	v.SetDefault("rate_limit.enabled", true)
	v.SetDefault("rate_limit.default_rpm", 120)
	v.SetDefault("rate_limit.burst_size", 20)

	v.SetDefault("kafka.audit_topic", "npcchatter.realtime.audit")
	v.SetDefault("kafka.write_timeout", "5s")
	v.SetDefault("kafka.batch_timeout", "50ms")

	v.SetDefault("log.level", constants.LogLevelInfo)
	v.SetDefault("log.format", "json")

	v.SetDefault("tracing.service_name", constants.ServiceName)
	v.SetDefault("tracing.sampling_rate", 0.1)
}

func dedupe(in []string) []string {
	seen := make(map[string]struct{}, len(in))
	out := make([]string, 0, len(in))
	for _, s := range in {
		s = strings.TrimSpace(s)
		if s == "" {
			continue
		}
		if _, ok := seen[s]; ok {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	return out
}
