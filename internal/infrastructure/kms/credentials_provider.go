// Package kms supplies the service's own transport credentials, either from configuration or
// from HashiCorp Vault.
package kms

import (
	"context"
	stderrors "errors"
	"fmt"
	"strings"
	"time"

	vault "github.com/hashicorp/vault/api"
	"github.com/patrickmn/go-cache"
	"golang.org/x/sync/singleflight"

	"github.com/npcchatter/backend/internal/config"
	"github.com/npcchatter/backend/internal/domain/service"
	"github.com/npcchatter/backend/pkg/constants"
	"github.com/npcchatter/backend/pkg/errors"
	"github.com/npcchatter/backend/pkg/logger"
)

// StaticCredentials serves a key taken from configuration.
type StaticCredentials struct {
	key string
}

// NewStaticCredentials creates a provider for a fixed key.
func NewStaticCredentials(key string) *StaticCredentials {
	return &StaticCredentials{key: strings.TrimSpace(key)}
}

// APIKey returns the configured key, or a misconfiguration error when none is set.
func (s *StaticCredentials) APIKey(context.Context) (string, error) {
	if s.key == "" {
		return "", errors.ErrMisconfiguredCredentials("no api key configured")
	}
	return s.key, nil
}

const credentialsCacheKey = "transport-api-key"

// VaultCredentials reads the key from a Vault KV v2 secret and keeps it in memory for a short time.
type VaultCredentials struct {
	vaultClient *vault.Client
	cfg         config.VaultConfig
	l1Cache     *cache.Cache
	sf          singleflight.Group
	metrics     service.Metrics
	logger      logger.Logger
}

// NewVaultCredentials creates a Vault-backed provider.
func NewVaultCredentials(cfg config.VaultConfig, vaultClient *vault.Client, metrics service.Metrics, log logger.Logger) *VaultCredentials {
	if cfg.Timeout <= 0 {
		cfg.Timeout = constants.VaultReadTimeout
	}
	return &VaultCredentials{
		vaultClient: vaultClient,
		cfg:         cfg,
		l1Cache:     cache.New(constants.CredentialsCacheTTL, 2*constants.CredentialsCacheTTL),
		metrics:     metrics,
		logger:      log.WithComponent("VaultCredentials"),
	}
}

// NewVaultClient creates a Vault API client from configuration.
func NewVaultClient(cfg config.VaultConfig) (*vault.Client, error) {
	vaultConfig := vault.DefaultConfig()
	vaultConfig.Address = cfg.Address
	vaultConfig.MaxRetries = 0
	client, err := vault.NewClient(vaultConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create vault client: %w", err)
	}
	if cfg.Token != "" {
		client.SetToken(cfg.Token)
	}
	return client, nil
}

// APIKey returns the cached key or reads it from Vault. A missing secret or field is a
// misconfiguration; an unreachable Vault is an upstream failure.
//
// Concurrent callers share one read, which runs detached from any single caller's cancellation
// and is bounded by the configured timeout.
func (v *VaultCredentials) APIKey(ctx context.Context) (string, error) {
	if key, found := v.l1Cache.Get(credentialsCacheKey); found {
		v.metrics.RecordCacheAccess("credentials", true)
		return key.(string), nil
	}
	v.metrics.RecordCacheAccess("credentials", false)

	readCtx := context.WithoutCancel(ctx)
	ch := v.sf.DoChan(credentialsCacheKey, func() (interface{}, error) {
		ctx, cancel := context.WithTimeout(readCtx, v.cfg.Timeout)
		defer cancel()
		return v.read(ctx)
	})

	select {
	case <-ctx.Done():
		return "", errors.ErrMintingFailed("request cancelled").WithCause(ctx.Err())
	case res := <-ch:
		if res.Err != nil {
			return "", res.Err
		}
		return res.Val.(string), nil
	}
}

func (v *VaultCredentials) read(ctx context.Context) (string, error) {
	start := time.Now()
	secret, err := v.vaultClient.KVv2(v.cfg.MountPath).Get(ctx, v.cfg.SecretPath)
	v.metrics.RecordVaultAPI("kv_get", err == nil, time.Since(start))
	if err != nil {
		v.logger.Error(ctx, "Failed to read transport credentials from Vault", err,
			logger.String("secret_path", v.cfg.SecretPath),
		)
		if stderrors.Is(err, vault.ErrSecretNotFound) {
			return "", errors.ErrMisconfiguredCredentials("secret not found").WithCause(err)
		}
		return "", errors.ErrMintingFailed("credentials store unavailable").WithCause(err)
	}

	field := v.cfg.Field
	if field == "" {
		field = "api_key"
	}
	key, _ := secret.Data[field].(string)
	key = strings.TrimSpace(key)
	if key == "" {
		return "", errors.ErrMisconfiguredCredentials(fmt.Sprintf("field %q missing from secret", field))
	}

	v.l1Cache.Set(credentialsCacheKey, key, cache.DefaultExpiration)
	return key, nil
}

// Invalidate drops the cached key so the next call reads Vault again.
func (v *VaultCredentials) Invalidate() {
	v.l1Cache.Delete(credentialsCacheKey)
}

var (
	_ service.CredentialsProvider = (*StaticCredentials)(nil)
	_ service.CredentialsProvider = (*VaultCredentials)(nil)
)
