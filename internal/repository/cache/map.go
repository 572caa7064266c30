package cache

import (
	"context"
	"sync"
)

// MapCache keeps tiles in process memory. It follows the same duplicate and
// batch atomicity rules as SQLiteCache, which makes it usable for dry runs.
type MapCache struct {
	mu sync.RWMutex
	m  map[TileCacheKey]TileCacheValue
}

func NewMapCache() *MapCache {
	return &MapCache{
		m: make(map[TileCacheKey]TileCacheValue),
	}
}

var _ TileCache = (*MapCache)(nil)

func (c *MapCache) Get(_ context.Context, k TileCacheKey) (TileCacheValue, bool, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	v, exists := c.m[k]
	return v, exists, nil
}

func (c *MapCache) InsertOne(ctx context.Context, k TileCacheKey, v TileCacheValue) error {
	return c.InsertBatch(ctx, []Row{{Key: k, Data: v}})
}

func (c *MapCache) InsertBatch(ctx context.Context, rows []Row) error {
	if err := ctx.Err(); err != nil {
		return newStoreError("insert_batch", nil, err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	seen := make(map[TileCacheKey]struct{}, len(rows))
	for _, r := range rows {
		if err := validateKey(r.Key); err != nil {
			return err
		}
		_, inBatch := seen[r.Key]
		_, stored := c.m[r.Key]
		if inBatch || stored {
			return newStoreError("insert_batch", &r.Key, ErrDuplicateTile)
		}
		seen[r.Key] = struct{}{}
	}

	for _, r := range rows {
		c.m[r.Key] = r.Data
	}

	return nil
}

func (c *MapCache) Count(_ context.Context, tileset string) (int, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	n := 0
	for k := range c.m {
		if k.Tileset == tileset {
			n++
		}
	}
	return n, nil
}

func (c *MapCache) Close() error {
	return nil
}
