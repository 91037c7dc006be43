package config

import (
	"fmt"
	"net/url"
	"time"
)

// Config holds the application's configuration.
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Redis     RedisConfig     `mapstructure:"redis"`
	Vault     VaultConfig     `mapstructure:"vault"`
	Identity  IdentityConfig  `mapstructure:"identity"`
	Realtime  RealtimeConfig  `mapstructure:"realtime"`
	RateLimit RateLimitConfig `mapstructure:"rate_limit"`
	Kafka     KafkaConfig     `mapstructure:"kafka"`
	Log       LogConfig       `mapstructure:"log"`
	Tracing   TracingConfig   `mapstructure:"tracing"`
}

type ServerConfig struct {
	Host           string   `mapstructure:"host"`
	Port           int      `mapstructure:"port"`
	Environment    string   `mapstructure:"environment"`
	ReadTimeout    int      `mapstructure:"read_timeout"`  // in seconds
	WriteTimeout   int      `mapstructure:"write_timeout"` // in seconds
	IdleTimeout    int      `mapstructure:"idle_timeout"`  // in seconds
	AllowedOrigins []string `mapstructure:"allowed_origins"`
}

// Address returns the listen address.
func (c *ServerConfig) Address() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

type DatabaseConfig struct {
	Driver          string `mapstructure:"driver"` // postgres | sqlite
	URL             string `mapstructure:"url"`
	Host            string `mapstructure:"host"`
	Port            int    `mapstructure:"port"`
	User            string `mapstructure:"user"`
	Password        string `mapstructure:"password"`
	Database        string `mapstructure:"database"`
	SSLMode         string `mapstructure:"ssl_mode"`
	MaxConns        int    `mapstructure:"max_conns"`
	MinConns        int    `mapstructure:"min_conns"`
	MaxConnLifetime int    `mapstructure:"max_conn_lifetime"` // in minutes
	AutoMigrate     bool   `mapstructure:"auto_migrate"`
}

// GetDSN returns the connection string, preferring an explicit URL.
func (c *DatabaseConfig) GetDSN() string {
	if c.URL != "" {
		return c.URL
	}
	if c.Driver == "sqlite" {
		return c.Database
	}
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Database, c.SSLMode)
}

type RedisConfig struct {
	Enabled      bool   `mapstructure:"enabled"`
	Host         string `mapstructure:"host"`
	Port         int    `mapstructure:"port"`
	Password     string `mapstructure:"password"`
	DB           int    `mapstructure:"db"`
	PoolSize     int    `mapstructure:"pool_size"`
	MinIdleConns int    `mapstructure:"min_idle_conns"`
}

type VaultConfig struct {
	Enabled    bool          `mapstructure:"enabled"`
	Address    string        `mapstructure:"address"`
	Token      string        `mapstructure:"token"`
	MountPath  string        `mapstructure:"mount_path"`
	SecretPath string        `mapstructure:"secret_path"`
	Field      string        `mapstructure:"field"`
	Timeout    time.Duration `mapstructure:"timeout"`
}

// IdentityConfig configures bearer verification against the identity provider.
type IdentityConfig struct {
	Issuer             string        `mapstructure:"issuer"`
	JWKSURLs           []string      `mapstructure:"jwks_urls"`
	CacheTTL           time.Duration `mapstructure:"cache_ttl"`
	FetchTimeout       time.Duration `mapstructure:"fetch_timeout"`
	MinRefreshInterval time.Duration `mapstructure:"min_refresh_interval"`
	Leeway             time.Duration `mapstructure:"leeway"`
}

// RealtimeConfig configures token minting for the pub/sub transport.
type RealtimeConfig struct {
	AblyAPIKey        string        `mapstructure:"ably_api_key"`
	TokenTTL          time.Duration `mapstructure:"token_ttl"`
	MintingTimeout    time.Duration `mapstructure:"minting_timeout"`
	MembershipTimeout time.Duration `mapstructure:"membership_timeout"`
}

type RateLimitConfig struct {
	Enabled    bool `mapstructure:"enabled"`
	DefaultRPM int  `mapstructure:"default_rpm"`
	BurstSize  int  `mapstructure:"burst_size"`
}

type KafkaConfig struct {
	Enabled       bool          `mapstructure:"enabled"`
	Brokers       []string      `mapstructure:"brokers"`
	AuditTopic    string        `mapstructure:"audit_topic"`
	WriteTimeout  time.Duration `mapstructure:"write_timeout"`
	BatchTimeout  time.Duration `mapstructure:"batch_timeout"`
	SigningSecret string        `mapstructure:"signing_secret"` // HMAC key for audit records, optional
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

type TracingConfig struct {
	Enabled        bool    `mapstructure:"enabled"`
	JaegerEndpoint string  `mapstructure:"jaeger_endpoint"`
	ServiceName    string  `mapstructure:"service_name"`
	SamplingRate   float64 `mapstructure:"sampling_rate"`
}

// Validate checks for essential configuration values.
func (c *Config) Validate() error {
	if len(c.Identity.JWKSURLs) == 0 {
		return fmt.Errorf("identity.jwks_urls: at least one key directory URL is required")
	}
	for _, raw := range c.Identity.JWKSURLs {
		u, err := url.Parse(raw)
		if err != nil || u.Scheme == "" || u.Host == "" {
			return fmt.Errorf("identity.jwks_urls: invalid URL %q", raw)
		}
	}
	if c.Identity.CacheTTL <= 0 {
		return fmt.Errorf("identity.cache_ttl must be positive")
	}
	if c.Identity.FetchTimeout <= 0 {
		return fmt.Errorf("identity.fetch_timeout must be positive")
	}
	if c.Realtime.TokenTTL <= 0 {
		return fmt.Errorf("realtime.token_ttl must be positive")
	}
	switch c.Database.Driver {
	case "postgres", "sqlite":
	default:
		return fmt.Errorf("database.driver: unsupported driver %q", c.Database.Driver)
	}
	if c.Kafka.Enabled && (len(c.Kafka.Brokers) == 0 || c.Kafka.AuditTopic == "") {
		return fmt.Errorf("kafka: brokers and audit_topic are required when enabled")
	}
	if c.Vault.Enabled && (c.Vault.Address == "" || c.Vault.SecretPath == "") {
		return fmt.Errorf("vault: address and secret_path are required when enabled")
	}
	return nil
}
