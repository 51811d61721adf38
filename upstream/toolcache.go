package upstream

import (
	"context"
	"encoding/json"
	"time"

	"github.com/mediabridge/gatewayd/cache"
)

// CachedListToolsTTL is the TTL for a cached ListTools() result: tool
// vocabularies are version-gated and change only on upstream upgrade, not
// per call, so this is safe to cache aggressively.
const CachedListToolsTTL = 5 * time.Minute

// ToolCache wraps an Adapter's ListTools with the shared cache middleware,
// keyed by upstream kind so every caller observes the same vocabulary within
// the TTL. ListTools is read-only and carries no tags, so it is never routed
// through DefaultSkipRule's unsafe-tag exclusion and is always eligible for
// caching under the policy.
type ToolCache struct {
	mw *cache.CacheMiddleware
}

// NewToolCache builds a ToolCache over the given backing store (typically
// an in-memory cache.MemoryCache, one instance shared by every adapter).
func NewToolCache(store cache.Cache) *ToolCache {
	policy := cache.Policy{DefaultTTL: CachedListToolsTTL, MaxTTL: CachedListToolsTTL}
	return &ToolCache{mw: cache.NewCacheMiddleware(store, cache.NewDefaultKeyer(), policy, nil)}
}

// ListTools returns adapter.ListTools(ctx), serving from cache when fresh.
func (c *ToolCache) ListTools(ctx context.Context, adapter Adapter) ([]string, error) {
	toolID := "listtools:" + adapter.Kind().String()

	raw, err := c.mw.Execute(ctx, toolID, nil, nil, func(ctx context.Context, _ string, _ any) ([]byte, error) {
		names, err := adapter.ListTools(ctx)
		if err != nil {
			return nil, err
		}
		return json.Marshal(names)
	})
	if err != nil {
		return nil, err
	}

	var names []string
	if err := json.Unmarshal(raw, &names); err != nil {
		return nil, err
	}
	return names, nil
}
