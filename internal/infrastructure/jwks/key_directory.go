// Package jwks implements the client side of the identity provider's key directory.
package jwks

import (
	"context"
	"crypto/rsa"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"io"
	"net/http"
	"sync/atomic"
	"time"

	jose "github.com/go-jose/go-jose/v4"
	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"github.com/npcchatter/backend/internal/domain/models"
	"github.com/npcchatter/backend/internal/domain/service"
	"github.com/npcchatter/backend/pkg/constants"
	"github.com/npcchatter/backend/pkg/errors"
	"github.com/npcchatter/backend/pkg/logger"
)

const (
	defaultRedisKey = "npcchatter:jwks"
	maxDocumentSize = 1 << 20

	// every refresh shares one flight, so at most one fetch is in flight
	flightKey = "refresh"
)

var errNoUsableKeys = stderrors.New("no usable RS256 signing keys")

// Config configures a Directory.
type Config struct {
	URLs               []string
	CacheTTL           time.Duration
	FetchTimeout       time.Duration
	MinRefreshInterval time.Duration
	RedisKey           string
}

// Option customizes a Directory.
type Option func(*Directory)

// WithHTTPClient replaces the HTTP client used for fetches.
func WithHTTPClient(c *http.Client) Option {
	return func(d *Directory) { d.httpClient = c }
}

// WithClock replaces the time source.
func WithClock(now func() time.Time) Option {
	return func(d *Directory) { d.now = now }
}

// Directory caches the identity provider's signing keys. Readers always observe a complete
// snapshot; refreshes replace the snapshot wholesale and at most one is in flight.
type Directory struct {
	cfg         Config
	httpClient  *http.Client
	redisClient redis.UniversalClient
	metrics     service.Metrics
	logger      logger.Logger
	now         func() time.Time

	current   atomic.Pointer[models.KeySet]
	lastFetch atomic.Int64
	sf        singleflight.Group
}

// NewDirectory creates a Directory. redisClient may be nil, which disables the shared cache.
func NewDirectory(cfg Config, redisClient redis.UniversalClient, metrics service.Metrics, log logger.Logger, opts ...Option) (*Directory, error) {
	if len(cfg.URLs) == 0 {
		return nil, fmt.Errorf("jwks: at least one source URL is required")
	}
	if cfg.CacheTTL <= 0 {
		cfg.CacheTTL = constants.KeyDirectoryCacheTTL
	}
	if cfg.FetchTimeout <= 0 {
		cfg.FetchTimeout = constants.KeyDirectoryFetchTimeout
	}
	if cfg.MinRefreshInterval < 0 {
		cfg.MinRefreshInterval = 0
	}
	if cfg.RedisKey == "" {
		cfg.RedisKey = defaultRedisKey
	}

	d := &Directory{
		cfg:         cfg,
		httpClient:  &http.Client{},
		redisClient: redisClient,
		metrics:     metrics,
		logger:      log.WithComponent("KeyDirectory"),
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d, nil
}

// Init warms the cache. A failure is logged and the next Resolve retries.
func (d *Directory) Init(ctx context.Context) {
	set, _, err := d.refresh(ctx, false)
	if err != nil {
		d.logger.Warn(ctx, "Key directory warm-up failed", logger.String("error", err.Error()))
		return
	}
	d.logger.Info(ctx, "Key directory loaded", logger.Int("keys", len(set.Keys)))
}

// Refresh forces a network fetch, ignoring the TTL and the refresh floor.
func (d *Directory) Refresh(ctx context.Context) (*models.KeySet, error) {
	d.lastFetch.Store(0)
	set, _, err := d.refresh(ctx, true)
	return set, err
}

// Snapshot returns the current key set, fetching it first if the cache is cold or stale.
func (d *Directory) Snapshot(ctx context.Context) (*models.KeySet, error) {
	set := d.current.Load()
	if set != nil && !d.stale(set) {
		return set, nil
	}
	set, _, err := d.refresh(ctx, false)
	return set, err
}

// Resolve returns the signing key for keyID. A cold or stale cache is refreshed first. A miss
// triggers one forced refresh unless this call already fetched from the provider; a set loaded
// from the shared cache may predate a rotation and does not count. A second miss is final.
func (d *Directory) Resolve(ctx context.Context, keyID string) (models.SigningKey, error) {
	fetched := false
	set := d.current.Load()
	if set == nil || d.stale(set) {
		fresh, didFetch, err := d.refresh(ctx, false)
		if err != nil {
			return models.SigningKey{}, errors.ErrKeyLookupFailure(keyID).WithCause(err)
		}
		set, fetched = fresh, didFetch
	}

	if key, ok := set.Lookup(keyID); ok {
		d.metrics.RecordKeyLookup(true)
		return key, nil
	}
	d.metrics.RecordKeyLookup(false)

	if fetched {
		return models.SigningKey{}, errors.ErrKeyLookupFailure(keyID)
	}

	fresh, _, err := d.refresh(ctx, true)
	if err != nil {
		return models.SigningKey{}, errors.ErrKeyLookupFailure(keyID).WithCause(err)
	}
	if key, ok := fresh.Lookup(keyID); ok {
		return key, nil
	}

	d.logger.Warn(ctx, "Signing key not found after refresh", logger.String("key_id", keyID))
	return models.SigningKey{}, errors.ErrKeyLookupFailure(keyID)
}

func (d *Directory) stale(set *models.KeySet) bool {
	return d.now().Sub(set.FetchedAt) > d.cfg.CacheTTL
}

// flightResult is what one refresh flight produced.
type flightResult struct {
	set *models.KeySet
	// fetched is set when the provider was contacted successfully during the flight.
	fetched bool
	// forced is set when the flight was a forced refresh, including one skipped by the floor.
	forced bool
}

// refresh runs one deduplicated refresh and reports whether the returned set was fetched from
// the provider by it. The flight is detached from the caller's cancellation so joiners still get
// its result; a caller that goes away stops waiting but the fetch completes.
//
// A forced caller that joins a TTL flight served from memory or Redis has not seen the provider,
// so it waits for that flight to finish and starts its own.
func (d *Directory) refresh(ctx context.Context, forced bool) (*models.KeySet, bool, error) {
	flightCtx := context.WithoutCancel(ctx)
	for {
		ch := d.sf.DoChan(flightKey, func() (interface{}, error) {
			fetchCtx, cancel := context.WithTimeout(flightCtx, d.cfg.FetchTimeout)
			defer cancel()
			if forced {
				return d.forcedRefresh(fetchCtx)
			}
			return d.ttlRefresh(fetchCtx)
		})

		select {
		case <-ctx.Done():
			return nil, false, ctx.Err()
		case res := <-ch:
			if res.Err != nil {
				return nil, false, res.Err
			}
			r := res.Val.(flightResult)
			if forced && !r.forced && !r.fetched {
				continue
			}
			return r.set, r.fetched, nil
		}
	}
}

func (d *Directory) ttlRefresh(ctx context.Context) (flightResult, error) {
	if set := d.current.Load(); set != nil && !d.stale(set) {
		return flightResult{set: set}, nil
	}
	if set := d.loadShared(ctx); set != nil {
		d.current.Store(set)
		return flightResult{set: set}, nil
	}
	set, err := d.fetch(ctx)
	return flightResult{set: set, fetched: err == nil}, err
}

// forcedRefresh fetches unless a fetch started less than MinRefreshInterval ago, in which case
// the current snapshot is returned as is.
func (d *Directory) forcedRefresh(ctx context.Context) (flightResult, error) {
	last := d.lastFetch.Load()
	if last != 0 && d.now().Sub(time.Unix(0, last)) < d.cfg.MinRefreshInterval {
		if set := d.current.Load(); set != nil {
			d.logger.Debug(ctx, "Forced key refresh skipped, refreshed recently")
			return flightResult{set: set, forced: true}, nil
		}
	}
	set, err := d.fetch(ctx)
	return flightResult{set: set, fetched: err == nil, forced: true}, err
}

type sourceResult struct {
	keys map[string]models.SigningKey
	err  error
}

// fetch queries every source in parallel and merges the results in source order. It succeeds
// when at least one source does.
func (d *Directory) fetch(ctx context.Context) (*models.KeySet, error) {
	d.lastFetch.Store(d.now().UnixNano())

	results := make([]sourceResult, len(d.cfg.URLs))
	var g errgroup.Group
	for i, u := range d.cfg.URLs {
		g.Go(func() error {
			start := time.Now()
			keys, err := d.fetchSource(ctx, u)
			d.metrics.RecordKeyRefresh(u, err == nil, time.Since(start))
			if err != nil {
				d.logger.Warn(ctx, "Key directory source failed",
					logger.String("source", u),
					logger.String("error", err.Error()),
				)
			}
			results[i] = sourceResult{keys: keys, err: err}
			return nil
		})
	}
	_ = g.Wait()

	merged := make(map[string]models.SigningKey)
	var errs []error
	for _, r := range results {
		if r.err != nil {
			errs = append(errs, r.err)
			continue
		}
		for kid, k := range r.keys {
			if _, dup := merged[kid]; !dup {
				merged[kid] = k
			}
		}
	}
	if len(errs) == len(results) {
		return nil, fmt.Errorf("all key directory sources failed: %w", stderrors.Join(errs...))
	}

	set := &models.KeySet{Keys: merged, FetchedAt: d.now()}
	d.current.Store(set)
	d.storeShared(ctx, set)
	return set, nil
}

func (d *Directory) fetchSource(ctx context.Context, url string) (map[string]models.SigningKey, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := d.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetch %s: status code %d", url, resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxDocumentSize))
	if err != nil {
		return nil, err
	}
	return ParseKeySet(body)
}

// ParseKeySet decodes a JWKS document, keeping RSA signature keys usable with RS256.
// Individual keys that fail to decode are skipped.
func ParseKeySet(data []byte) (map[string]models.SigningKey, error) {
	var doc struct {
		Keys []json.RawMessage `json:"keys"`
	}
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("decode jwks: %w", err)
	}

	keys := make(map[string]models.SigningKey, len(doc.Keys))
	for _, raw := range doc.Keys {
		var jwk jose.JSONWebKey
		if err := jwk.UnmarshalJSON(raw); err != nil {
			continue
		}
		if jwk.KeyID == "" {
			continue
		}
		if jwk.Use != "" && jwk.Use != "sig" {
			continue
		}
		if jwk.Algorithm != "" && jwk.Algorithm != constants.AllowedSigningAlgorithm {
			continue
		}
		pub, ok := jwk.Key.(*rsa.PublicKey)
		if !ok {
			continue
		}
		keys[jwk.KeyID] = models.SigningKey{
			KeyID:     jwk.KeyID,
			PublicKey: pub,
			Algorithm: constants.AllowedSigningAlgorithm,
		}
	}
	if len(keys) == 0 {
		return nil, errNoUsableKeys
	}
	return keys, nil
}

// EncodeKeySet renders keys as a JWKS document.
func EncodeKeySet(keys map[string]models.SigningKey) ([]byte, error) {
	set := jose.JSONWebKeySet{Keys: make([]jose.JSONWebKey, 0, len(keys))}
	for _, k := range keys {
		set.Keys = append(set.Keys, jose.JSONWebKey{
			Key:       k.PublicKey,
			KeyID:     k.KeyID,
			Algorithm: k.Algorithm,
			Use:       "sig",
		})
	}
	return json.Marshal(set)
}

type sharedEntry struct {
	FetchedAt time.Time       `json:"fetched_at"`
	JWKS      json.RawMessage `json:"jwks"`
}

func (d *Directory) loadShared(ctx context.Context) *models.KeySet {
	if d.redisClient == nil {
		return nil
	}
	data, err := d.redisClient.Get(ctx, d.cfg.RedisKey).Bytes()
	if err != nil {
		if err != redis.Nil {
			d.logger.Warn(ctx, "Shared key cache read failed", logger.String("error", err.Error()))
		}
		d.metrics.RecordCacheAccess("jwks_redis", false)
		return nil
	}

	var entry sharedEntry
	if err := json.Unmarshal(data, &entry); err != nil {
		d.metrics.RecordCacheAccess("jwks_redis", false)
		return nil
	}
	if d.now().Sub(entry.FetchedAt) > d.cfg.CacheTTL {
		d.metrics.RecordCacheAccess("jwks_redis", false)
		return nil
	}
	keys, err := ParseKeySet(entry.JWKS)
	if err != nil {
		d.metrics.RecordCacheAccess("jwks_redis", false)
		return nil
	}
	d.metrics.RecordCacheAccess("jwks_redis", true)
	return &models.KeySet{Keys: keys, FetchedAt: entry.FetchedAt}
}

func (d *Directory) storeShared(ctx context.Context, set *models.KeySet) {
	if d.redisClient == nil {
		return
	}
	doc, err := EncodeKeySet(set.Keys)
	if err != nil {
		return
	}
	data, err := json.Marshal(sharedEntry{FetchedAt: set.FetchedAt, JWKS: doc})
	if err != nil {
		return
	}
	if err := d.redisClient.Set(ctx, d.cfg.RedisKey, data, d.cfg.CacheTTL).Err(); err != nil {
		d.logger.Warn(ctx, "Shared key cache write failed", logger.String("error", err.Error()))
	}
}

var _ service.KeyResolver = (*Directory)(nil)
