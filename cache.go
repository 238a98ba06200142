package advisor

import (
	"context"
	"fmt"
	"time"

	"github.com/vmihailenco/msgpack/v5"

	"github.com/janiece-23/BetterAdvisor/schema"
)

// Cache is the interface for caching fetch results. Implement it with
// your preferred backend (Redis, Memcached, in-memory). The engine stores
// scanned rows, not materialized entities, so cached entries stay valid
// across factory changes.
type Cache interface {
	// Get retrieves a value. Returns nil, nil if the key doesn't exist.
	Get(ctx context.Context, key string) ([]byte, error)

	// Set stores a value with an optional TTL. A zero ttl means the
	// value does not expire.
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error

	// Delete removes a value.
	Delete(ctx context.Context, key string) error

	// DeletePrefix removes all values with the given prefix.
	DeletePrefix(ctx context.Context, prefix string) error

	// Clear removes all values.
	Clear(ctx context.Context) error
}

// fetchKey builds the cache key for a fetch. Keys start with the leaf
// table name, so writes can invalidate by table prefix.
func fetchKey(table, op, column string, value any) string {
	return fmt.Sprintf("%s:%s:%s:%v", table, op, column, value)
}

// cacheGet loads and decodes scanned rows for key. Cache failures are
// logged and treated as misses; the database stays the source of truth.
func (e *Engine) cacheGet(ctx context.Context, key string) ([]map[string]any, bool) {
	b, err := e.cache.Get(ctx, key)
	if err != nil {
		e.log.Warn("cache get failed", "key", key, "err", err)
		return nil, false
	}
	if b == nil {
		return nil, false
	}
	var vals []map[string]any
	if err := msgpack.Unmarshal(b, &vals); err != nil {
		e.log.Warn("cache decode failed", "key", key, "err", err)
		return nil, false
	}
	return vals, true
}

// cacheSet encodes and stores scanned rows under key.
func (e *Engine) cacheSet(ctx context.Context, key string, vals []map[string]any) {
	b, err := msgpack.Marshal(vals)
	if err != nil {
		e.log.Warn("cache encode failed", "key", key, "err", err)
		return
	}
	if err := e.cache.Set(ctx, key, b, e.cacheTTL); err != nil {
		e.log.Warn("cache set failed", "key", key, "err", err)
	}
}

// invalidate drops cached fetches for every table in the hierarchy.
func (e *Engine) invalidate(ctx context.Context, hier []*schema.Type) {
	if e.cache == nil {
		return
	}
	for _, level := range hier {
		if err := e.cache.DeletePrefix(ctx, level.Table+":"); err != nil {
			e.log.Warn("cache invalidation failed", "table", level.Table, "err", err)
		}
	}
}
