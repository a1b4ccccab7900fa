package redis

import (
	"context"
	"encoding/json"
	"time"

	"mobilemoney-subscription/internal/domain/ports/adapter"
)

const catalogKey = "correspondents:catalog"

// CatalogCache keeps the correspondent catalog warm so provider discovery
// outages never slow down initiation screens.
type CatalogCache struct {
	client RedisClient
	ttl    time.Duration
}

func NewCatalogCache(client RedisClient, ttl time.Duration) *CatalogCache {
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &CatalogCache{client: client, ttl: ttl}
}

func (c *CatalogCache) Get(ctx context.Context) ([]adapter.Correspondent, bool) {
	raw, err := c.client.Get(ctx, catalogKey)
	if err != nil {
		return nil, false
	}
	var out []adapter.Correspondent
	if err := json.Unmarshal([]byte(raw), &out); err != nil {
		return nil, false
	}
	return out, len(out) > 0
}

func (c *CatalogCache) Put(ctx context.Context, cs []adapter.Correspondent) {
	b, err := json.Marshal(cs)
	if err != nil {
		return
	}
	// best effort; a failed cache write is not an error path
	_ = c.client.Set(ctx, catalogKey, string(b), c.ttl)
}
