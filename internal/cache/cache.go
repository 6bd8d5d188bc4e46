// ABOUTME: Generic fetch-through-cache wrapping any source with key-scoped,
// ABOUTME: TTL-bounded storage in an optional key-value backend.

package cache

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/imageintel/imageintel/internal/errdefs"
	"github.com/imageintel/imageintel/internal/metrics"
	"github.com/imageintel/imageintel/internal/types"
)

// Backend is the key-value capability the cache is built on. A backend must
// support concurrent use; the cache only performs independent key-scoped
// operations against it.
type Backend interface {
	Exists(ctx context.Context, key string) (bool, error)
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key, value string) error
	Expire(ctx context.Context, key string, ttl time.Duration) error
}

// Source produces one cacheable value and names the key it lives under.
// Keys take the form "<source>:<canonical-image-reference>".
type Source[T any] interface {
	Key() string
	Fetch(ctx context.Context) (T, error)
}

// Cache decorates sources with fetch-through caching. A nil backend makes
// every read a direct passthrough to the source.
type Cache struct {
	backend   Backend
	namespace string
	ttl       time.Duration
	logger    *logrus.Logger
}

// New creates a cache over backend. Keys are prefixed with namespace; every
// stored value expires after ttl.
func New(backend Backend, namespace string, ttl time.Duration, logger *logrus.Logger) *Cache {
	return &Cache{
		backend:   backend,
		namespace: namespace,
		ttl:       ttl,
		logger:    logger,
	}
}

// TTL is the uniform expiry applied to every stored entry.
func (c *Cache) TTL() time.Duration {
	return c.ttl
}

// Enabled reports whether a backend is configured.
func (c *Cache) Enabled() bool {
	return c.backend != nil
}

// FetchThrough returns the cached entry for src's key, or fetches, stores,
// and returns a fresh one. Failed fetches are never cached, so a transient
// error cannot poison the key for the TTL window. Cache writes are
// best-effort: a write failure after a successful fetch is logged and the
// fresh value is still returned.
//
// Two concurrent misses on the same key may both fetch and both write; the
// overwrite is idempotent and accepted.
func FetchThrough[T any](ctx context.Context, c *Cache, src Source[T]) (types.CachedEntry[T], error) {
	var zero types.CachedEntry[T]

	if c.backend == nil {
		value, err := src.Fetch(ctx)
		if err != nil {
			return zero, err
		}
		return types.NewCachedEntry(value), nil
	}

	key := c.namespace + ":" + src.Key()
	source := sourceOf(src.Key())
	log := c.logger.WithField("cache_key", key)

	exists, err := c.backend.Exists(ctx, key)
	if err != nil {
		return zero, errdefs.CacheFailure("checking cache key "+key, err)
	}

	if exists {
		raw, err := c.backend.Get(ctx, key)
		if err != nil {
			return zero, errdefs.CacheFailure("reading cache key "+key, err)
		}

		var entry types.CachedEntry[T]
		if err := json.Unmarshal([]byte(raw), &entry); err != nil {
			return zero, errdefs.ParseFailure("decoding cached value for "+key, err)
		}

		metrics.CacheHits.WithLabelValues(source).Inc()
		log.Debug("Cache hit")
		return entry, nil
	}

	metrics.CacheMisses.WithLabelValues(source).Inc()
	log.Debug("Cache miss, fetching from source")

	value, err := src.Fetch(ctx)
	if err != nil {
		return zero, err
	}

	entry := types.NewCachedEntry(value)

	raw, err := json.Marshal(entry)
	if err != nil {
		log.WithError(err).Warn("Failed to encode value for cache")
		return entry, nil
	}
	if err := c.backend.Set(ctx, key, string(raw)); err != nil {
		log.WithError(err).Warn("Failed to store value in cache")
		return entry, nil
	}
	if err := c.backend.Expire(ctx, key, c.ttl); err != nil {
		log.WithError(err).Warn("Failed to set cache expiry")
	}

	return entry, nil
}

// sourceOf extracts the source name from a "<source>:<image>" key for
// metric labels.
func sourceOf(key string) string {
	if i := strings.Index(key, ":"); i > 0 {
		return key[:i]
	}
	return key
}
