package auth

import (
	"context"
	"crypto/rsa"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"math/big"
	"net/http"
	"sync"
	"time"

	"go.uber.org/zap"
)

const (
	// DefaultJWKSCacheTTL is how long fetched keys are trusted before refetching.
	DefaultJWKSCacheTTL = time.Hour
	// DefaultJWKSMinRefresh is the shortest gap between two fetches caused
	// by unknown kids.
	DefaultJWKSMinRefresh = time.Minute
)

type jwk struct {
	Kid string `json:"kid"`
	Kty string `json:"kty"`
	Alg string `json:"alg"`
	Use string `json:"use"`
	N   string `json:"n"`
	E   string `json:"e"`
}

type jwkSet struct {
	Keys []jwk `json:"keys"`
}

// KeyCache fetches and caches the RSA signing keys published at a JWKS URL.
type KeyCache struct {
	url        string
	ttl        time.Duration
	minRefresh time.Duration
	client     *http.Client
	logger     *zap.Logger
	now        func() time.Time

	// refreshMu serialises fetches so concurrent misses share one request.
	refreshMu sync.Mutex

	mu        sync.RWMutex
	keys      map[string]*rsa.PublicKey
	fetchedAt time.Time
}

// KeyCacheOption customises a KeyCache.
type KeyCacheOption func(*KeyCache)

// WithMinRefresh sets the shortest gap between fetches caused by unknown
// kids.
func WithMinRefresh(d time.Duration) KeyCacheOption {
	return func(c *KeyCache) { c.minRefresh = d }
}

// WithKeyLogger sets the logger used for skipped keys.
func WithKeyLogger(logger *zap.Logger) KeyCacheOption {
	return func(c *KeyCache) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// NewKeyCache creates a cache for url. ttl <= 0 means DefaultJWKSCacheTTL.
func NewKeyCache(url string, ttl time.Duration, client *http.Client, opts ...KeyCacheOption) *KeyCache {
	if ttl <= 0 {
		ttl = DefaultJWKSCacheTTL
	}
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	c := &KeyCache{
		url:        url,
		ttl:        ttl,
		minRefresh: DefaultJWKSMinRefresh,
		client:     client,
		logger:     zap.NewNop(),
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Key returns the key with the given kid. An unknown kid triggers a refetch,
// at most once per minRefresh, so rotated keys are picked up before the TTL
// expires.
func (c *KeyCache) Key(ctx context.Context, kid string) (*rsa.PublicKey, error) {
	if key, fresh := c.lookup(kid); key != nil && fresh {
		return key, nil
	}

	c.refreshMu.Lock()
	defer c.refreshMu.Unlock()

	// Another caller may have refreshed while this one waited.
	key, fresh := c.lookup(kid)
	if key != nil && fresh {
		return key, nil
	}
	if fresh && c.now().Sub(c.lastFetch()) < c.minRefresh {
		return nil, fmt.Errorf("no signing key with kid %q", kid)
	}

	if err := c.refresh(ctx); err != nil {
		return nil, err
	}
	key, _ = c.lookup(kid)
	if key == nil {
		return nil, fmt.Errorf("no signing key with kid %q", kid)
	}
	return key, nil
}

// Invalidate drops the cached keys.
func (c *KeyCache) Invalidate() {
	c.mu.Lock()
	c.keys = nil
	c.fetchedAt = time.Time{}
	c.mu.Unlock()
}

func (c *KeyCache) lookup(kid string) (*rsa.PublicKey, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	fresh := c.keys != nil && c.now().Sub(c.fetchedAt) < c.ttl
	return c.keys[kid], fresh
}

func (c *KeyCache) lastFetch() time.Time {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.fetchedAt
}

func (c *KeyCache) refresh(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.url, nil)
	if err != nil {
		return err
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("fetch jwks: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("fetch jwks: unexpected status %d", resp.StatusCode)
	}

	var set jwkSet
	if err := json.NewDecoder(resp.Body).Decode(&set); err != nil {
		return fmt.Errorf("decode jwks: %w", err)
	}

	keys := make(map[string]*rsa.PublicKey, len(set.Keys))
	for _, k := range set.Keys {
		if k.Kty != "RSA" {
			continue
		}
		pub, err := k.publicKey()
		if err != nil {
			c.logger.Warn("Skipping malformed jwk", zap.String("kid", k.Kid), zap.Error(err))
			continue
		}
		keys[k.Kid] = pub
	}
	if len(keys) == 0 {
		return fmt.Errorf("jwks at %s contains no usable keys", c.url)
	}

	c.mu.Lock()
	c.keys = keys
	c.fetchedAt = c.now()
	c.mu.Unlock()
	return nil
}

func (k jwk) publicKey() (*rsa.PublicKey, error) {
	n, err := base64.RawURLEncoding.DecodeString(k.N)
	if err != nil {
		return nil, fmt.Errorf("modulus: %w", err)
	}
	e, err := base64.RawURLEncoding.DecodeString(k.E)
	if err != nil {
		return nil, fmt.Errorf("exponent: %w", err)
	}
	if len(n) == 0 || len(e) == 0 {
		return nil, errors.New("empty modulus or exponent")
	}
	exp := new(big.Int).SetBytes(e)
	if !exp.IsInt64() || exp.Int64() < 2 || exp.Int64() > 1<<31-1 {
		return nil, errors.New("exponent out of range")
	}
	return &rsa.PublicKey{
		N: new(big.Int).SetBytes(n),
		E: int(exp.Int64()),
	}, nil
}
