package application

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/efisher/payadmin/internal/domain/model"
)

// DefaultCacheTTL matches the backend's documented minimum re-read interval
// for rate-limited read methods.
const DefaultCacheTTL = 5 * time.Minute

// CacheKey identifies one cached read: method, environment, and the
// canonical form of the call parameters.
type CacheKey struct {
	Method string
	Env    model.Environment
	params string
}

// NewCacheKey canonicalizes params so logically identical parameter sets
// collide on the same key regardless of property insertion order.
func NewCacheKey(method string, env model.Environment, params json.RawMessage) (CacheKey, error) {
	canonical, err := canonicalJSON(params)
	if err != nil {
		return CacheKey{}, err
	}
	return CacheKey{Method: method, Env: env, params: canonical}, nil
}

// String renders the full cache key. The layout puts method and environment
// first so mutations can invalidate by prefix.
func (k CacheKey) String() string {
	return methodPrefix(k.Method, k.Env) + k.params
}

// methodPrefix is the environment-scoped key prefix shared by every
// parameter variant of one read method.
func methodPrefix(method string, env model.Environment) string {
	return method + "|" + string(env) + "|"
}

// canonicalJSON re-marshals params through a map so object keys come out
// sorted at every nesting level (encoding/json sorts map keys).
func canonicalJSON(params json.RawMessage) (string, error) {
	if len(params) == 0 {
		params = json.RawMessage(`{}`)
	}
	var v any
	if err := json.Unmarshal(params, &v); err != nil {
		return "", fmt.Errorf("canonicalize params: %w", err)
	}
	out, err := json.Marshal(v)
	if err != nil {
		return "", fmt.Errorf("canonicalize params: %w", err)
	}
	return string(out), nil
}

// CacheInfo describes the freshness of one cache entry for display.
type CacheInfo struct {
	Cached        bool          `json:"cached"`
	Age           time.Duration `json:"age"`
	NextAllowedAt time.Time     `json:"nextAllowedAt"`
}

// cacheEntry is a completed response held until its expiry.
type cacheEntry struct {
	payload   json.RawMessage
	createdAt time.Time
	expiresAt time.Time
}

// FetchFunc performs the underlying backend read on a cache miss.
type FetchFunc func(ctx context.Context) (*model.RPCResult, error)

// ReadCache is the rate-limit-aware response cache for the allow-listed read
// methods. Concurrent fetches of the same key coalesce into one backend
// round trip; all coalesced callers observe the same outcome. Failed fetches
// leave nothing behind, so the next attempt is not blocked by a failure.
type ReadCache struct {
	mu      sync.RWMutex
	entries map[string]cacheEntry
	group   singleflight.Group
	ttl     time.Duration
	now     func() time.Time
}

// NewReadCache creates a cache with the given default TTL; zero means
// DefaultCacheTTL.
func NewReadCache(ttl time.Duration) *ReadCache {
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}
	return &ReadCache{
		entries: make(map[string]cacheEntry),
		ttl:     ttl,
		now:     time.Now,
	}
}

// Fetch returns the cached payload for key, or runs fetch to populate it.
// The bool result reports whether the payload was served from a previously
// completed entry.
func (c *ReadCache) Fetch(ctx context.Context, key CacheKey, fetch FetchFunc) (json.RawMessage, bool, error) {
	if payload, ok := c.lookup(key.String()); ok {
		return payload, true, nil
	}

	v, err, _ := c.group.Do(key.String(), func() (any, error) {
		// A concurrent flight may have stored the entry between our lookup
		// and joining the group.
		if payload, ok := c.lookup(key.String()); ok {
			return payload, nil
		}

		result, err := fetch(ctx)
		if err != nil {
			return nil, err
		}
		c.store(key.String(), result)
		return result.Payload, nil
	})
	if err != nil {
		return nil, false, err
	}
	return v.(json.RawMessage), false, nil
}

// Info reports the freshness of the entry for key.
func (c *ReadCache) Info(key CacheKey) CacheInfo {
	c.mu.RLock()
	entry, ok := c.entries[key.String()]
	c.mu.RUnlock()

	now := c.now()
	if !ok || !now.Before(entry.expiresAt) {
		return CacheInfo{}
	}
	return CacheInfo{
		Cached:        true,
		Age:           now.Sub(entry.createdAt),
		NextAllowedAt: entry.expiresAt,
	}
}

// InvalidateMethod removes every entry for the read method in the
// environment, across all parameter variants.
func (c *ReadCache) InvalidateMethod(method string, env model.Environment) int {
	return c.invalidatePrefix(methodPrefix(method, env))
}

// invalidatePrefix removes all entries whose key starts with prefix and
// returns how many were dropped.
func (c *ReadCache) invalidatePrefix(prefix string) int {
	c.mu.Lock()
	defer c.mu.Unlock()

	removed := 0
	for k := range c.entries {
		if strings.HasPrefix(k, prefix) {
			delete(c.entries, k)
			removed++
		}
	}
	return removed
}

// lookup returns a fresh entry's payload; expired entries are evicted lazily.
func (c *ReadCache) lookup(key string) (json.RawMessage, bool) {
	c.mu.RLock()
	entry, ok := c.entries[key]
	c.mu.RUnlock()

	if !ok {
		return nil, false
	}
	if !c.now().Before(entry.expiresAt) {
		c.mu.Lock()
		// Re-check: a concurrent store may have refreshed the entry.
		if cur, still := c.entries[key]; still && !c.now().Before(cur.expiresAt) {
			delete(c.entries, key)
		}
		c.mu.Unlock()
		return nil, false
	}
	return entry.payload, true
}

// store records a completed response. Expiry defaults to now+TTL but is
// clamped to the backend's advertised next-allowed-retry time when present,
// whether that is earlier or later; the cache never claims freshness the
// backend disavows.
func (c *ReadCache) store(key string, result *model.RPCResult) {
	now := c.now()
	expiresAt := now.Add(c.ttl)
	if result.NextAllowedAt != nil {
		expiresAt = *result.NextAllowedAt
	}

	c.mu.Lock()
	c.entries[key] = cacheEntry{
		payload:   result.Payload,
		createdAt: now,
		expiresAt: expiresAt,
	}
	c.mu.Unlock()
}
