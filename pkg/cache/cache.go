package cache

import (
	"context"
	"encoding/json"
	"time"

	"go.uber.org/zap"

	"github.com/ekaya-inc/discograph/pkg/metrics"
)

// DefaultTTL is how long a cached network or search result stays valid.
const DefaultTTL = 24 * time.Hour

// Cache is a fail-open JSON cache over a Backend. Entries are never
// invalidated explicitly; expiry is the only removal mechanism.
type Cache struct {
	backend Backend
	ttl     time.Duration
	logger  *zap.Logger
}

// New creates a cache over backend. A non-positive ttl falls back to DefaultTTL.
func New(backend Backend, ttl time.Duration, logger *zap.Logger) *Cache {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Cache{
		backend: backend,
		ttl:     ttl,
		logger:  logger.Named("cache").With(zap.String("backend", backend.Name())),
	}
}

// Get decodes the entry under key into dest and reports whether it was found.
// Backend and decoding failures count as misses.
func (c *Cache) Get(ctx context.Context, key string, dest any) bool {
	raw, ok, err := c.backend.Get(ctx, key)
	if err != nil {
		metrics.CacheRequests.WithLabelValues(c.backend.Name(), metrics.CacheError).Inc()
		c.logger.Warn("Cache read failed, treating as miss", zap.String("key", key), zap.Error(err))
		return false
	}
	if !ok {
		metrics.CacheRequests.WithLabelValues(c.backend.Name(), metrics.CacheMiss).Inc()
		c.logger.Debug("Cache miss", zap.String("key", key))
		return false
	}

	if err := json.Unmarshal(raw, dest); err != nil {
		metrics.CacheRequests.WithLabelValues(c.backend.Name(), metrics.CacheError).Inc()
		c.logger.Warn("Discarding undecodable cache entry", zap.String("key", key), zap.Error(err))
		return false
	}

	metrics.CacheRequests.WithLabelValues(c.backend.Name(), metrics.CacheHit).Inc()
	c.logger.Debug("Cache hit", zap.String("key", key))
	return true
}

// Set stores value under key for the cache TTL. Failures are logged and dropped.
func (c *Cache) Set(ctx context.Context, key string, value any) {
	raw, err := json.Marshal(value)
	if err != nil {
		c.logger.Error("Failed to encode cache entry", zap.String("key", key), zap.Error(err))
		return
	}
	if err := c.backend.Set(ctx, key, raw, c.ttl); err != nil {
		metrics.CacheWriteErrors.WithLabelValues(c.backend.Name()).Inc()
		c.logger.Warn("Cache write failed", zap.String("key", key), zap.Error(err))
	}
}

// BackendName returns the name of the underlying backend.
func (c *Cache) BackendName() string {
	return c.backend.Name()
}

// Close releases the backend.
func (c *Cache) Close() error {
	return c.backend.Close()
}
