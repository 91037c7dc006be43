package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/npcchatter/backend/pkg/logger"
)

func TestLoadConfig_LegacyEnvironment(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("CLERK_ISSUER", "https://clerk.example.com")
	t.Setenv("CLERK_JWKS_URL", "https://clerk.example.com/.well-known/jwks.json")
	t.Setenv("CLERK_JWKS_URL_ALT", "https://backup.example.com/jwks.json")
	t.Setenv("ABLY_API_KEY", "app.key:secret")
	t.Setenv("DATABASE_URL", "postgres://u:p@db:5432/npc")

	cfg, err := LoadConfig(logger.NewNoopLogger())
	require.NoError(t, err)

	assert.Equal(t, "https://clerk.example.com", cfg.Identity.Issuer)
	assert.Equal(t, []string{
		"https://clerk.example.com/.well-known/jwks.json",
		"https://backup.example.com/jwks.json",
	}, cfg.Identity.JWKSURLs)
	assert.Equal(t, "app.key:secret", cfg.Realtime.AblyAPIKey)
	assert.Equal(t, "postgres://u:p@db:5432/npc", cfg.Database.GetDSN())
	assert.Equal(t, time.Hour, cfg.Identity.CacheTTL)
	assert.Equal(t, 10*time.Second, cfg.Identity.Leeway)
	assert.Equal(t, time.Hour, cfg.Realtime.TokenTTL)
	assert.Equal(t, 5000, cfg.Server.Port)
}

func TestLoadConfig_FileAndPrefixedEnvironment(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)
	yaml := []byte(`
server:
  port: 8081
identity:
  jwks_urls:
    - https://idp.example.com/jwks
  cache_ttl: 30m
database:
  driver: sqlite
  database: ":memory:"
log:
  level: debug
`)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), yaml, 0o600))
	t.Setenv("NPCCHATTER_SERVER_PORT", "9090")

	cfg, err := LoadConfig(logger.NewNoopLogger())
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, []string{"https://idp.example.com/jwks"}, cfg.Identity.JWKSURLs)
	assert.Equal(t, 30*time.Minute, cfg.Identity.CacheTTL)
	assert.Equal(t, "sqlite", cfg.Database.Driver)
	assert.Equal(t, ":memory:", cfg.Database.GetDSN())
	assert.Equal(t, "debug", cfg.Log.Level)
}

func TestLoadConfig_RequiresKeyDirectory(t *testing.T) {
	t.Chdir(t.TempDir())

	_, err := LoadConfig(logger.NewNoopLogger())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "jwks_urls")
}

func TestValidate(t *testing.T) {
	valid := func() *Config {
		return &Config{
			Identity: IdentityConfig{
				JWKSURLs:     []string{"https://idp.example.com/jwks"},
				CacheTTL:     time.Hour,
				FetchTimeout: time.Second,
			},
			Realtime: RealtimeConfig{TokenTTL: time.Hour},
			Database: DatabaseConfig{Driver: "postgres"},
		}
	}

	tests := []struct {
		name   string
		mutate func(*Config)
		errMsg string
	}{
		{"valid", func(*Config) {}, ""},
		{"relative url", func(c *Config) { c.Identity.JWKSURLs = []string{"/jwks"} }, "invalid URL"},
		{"zero ttl", func(c *Config) { c.Identity.CacheTTL = 0 }, "cache_ttl"},
		{"zero fetch timeout", func(c *Config) { c.Identity.FetchTimeout = 0 }, "fetch_timeout"},
		{"zero token ttl", func(c *Config) { c.Realtime.TokenTTL = 0 }, "token_ttl"},
		{"unknown driver", func(c *Config) { c.Database.Driver = "mysql" }, "unsupported driver"},
		{"kafka without brokers", func(c *Config) { c.Kafka.Enabled = true }, "kafka"},
		{"vault without path", func(c *Config) { c.Vault.Enabled = true; c.Vault.Address = "http://vault:8200" }, "vault"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.errMsg == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.errMsg)
		})
	}
}
