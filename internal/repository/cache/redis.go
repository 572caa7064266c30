package cache

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jaennil/guide_helper/backend/tilebuilder/pkg/logger"
	"github.com/jaennil/guide_helper/backend/tilebuilder/pkg/metrics"
	"github.com/redis/go-redis/v9"
)

// insertScript sets every key in KEYS to the matching ARGV value unless one
// of them exists already, in which case it writes nothing and returns the
// 1-based index of the first existing key.
var insertScript = redis.NewScript(`
for i, key in ipairs(KEYS) do
	if redis.call('EXISTS', key) == 1 then
		return i
	end
end
for i, key in ipairs(KEYS) do
	redis.call('SET', key, ARGV[i])
end
return 0
`)

const redisScanCount = 1000

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// RedisCache keeps tiles as plain string keys. Batches are written by a Lua
// script, which Redis runs atomically, so a duplicate anywhere in a batch
// leaves the store untouched.
type RedisCache struct {
	client *redis.Client
	logger logger.Logger
}

func NewRedisCache(cfg RedisConfig, l logger.Logger) (*RedisCache, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, newStoreError("open", nil, fmt.Errorf("failed to connect to redis: %w", err))
	}

	l.Info("redis cache connected", "addr", cfg.Addr, "db", cfg.DB)

	return &RedisCache{
		client: client,
		logger: l,
	}, nil
}

var _ TileCache = (*RedisCache)(nil)

// keyFor wraps the tileset in a hash tag so all keys of a tileset land in
// the same cluster slot, which the multi-key insert script needs.
func (c *RedisCache) keyFor(k TileCacheKey) string {
	return fmt.Sprintf("%s{%s}:%d:%d:%d", c.prefix(), k.Tileset, k.Z, k.X, k.Y)
}

func (c *RedisCache) prefix() string {
	return "tile:"
}

func (c *RedisCache) Get(ctx context.Context, k TileCacheKey) (TileCacheValue, bool, error) {
	start := time.Now()
	defer observe("redis_get", start)

	data, err := c.client.Get(ctx, c.keyFor(k)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, false, nil
		}
		metrics.StoreErrors.WithLabelValues("redis_get").Inc()
		return nil, false, newStoreError("get", &k, err)
	}

	return data, true, nil
}

func (c *RedisCache) InsertOne(ctx context.Context, k TileCacheKey, v TileCacheValue) error {
	if err := validateKey(k); err != nil {
		return err
	}

	start := time.Now()
	defer observe("redis_insert", start)

	ok, err := c.client.SetNX(ctx, c.keyFor(k), []byte(v), 0).Result()
	if err != nil {
		metrics.StoreErrors.WithLabelValues("redis_insert").Inc()
		return newStoreError("insert", &k, err)
	}
	if !ok {
		return newStoreError("insert", &k, ErrDuplicateTile)
	}

	return nil
}

func (c *RedisCache) InsertBatch(ctx context.Context, rows []Row) error {
	if len(rows) == 0 {
		return nil
	}

	keys := make([]string, len(rows))
	args := make([]any, len(rows))
	seen := make(map[TileCacheKey]struct{}, len(rows))
	for i, r := range rows {
		if err := validateKey(r.Key); err != nil {
			return err
		}
		if _, dup := seen[r.Key]; dup {
			return newStoreError("insert_batch", &r.Key, ErrDuplicateTile)
		}
		seen[r.Key] = struct{}{}
		keys[i] = c.keyFor(r.Key)
		args[i] = []byte(r.Data)
	}

	start := time.Now()
	defer observe("redis_insert_batch", start)

	existing, err := insertScript.Run(ctx, c.client, keys, args...).Int()
	if err != nil {
		metrics.StoreErrors.WithLabelValues("redis_insert_batch").Inc()
		return newStoreError("insert_batch", nil, err)
	}
	if existing > 0 {
		k := rows[existing-1].Key
		return newStoreError("insert_batch", &k, ErrDuplicateTile)
	}

	c.logger.Debug("redis cache batch committed", "rows", len(rows), "duration", time.Since(start))

	return nil
}

func (c *RedisCache) Count(ctx context.Context, tileset string) (int, error) {
	match := c.prefix() + "{" + escapeGlob(tileset) + "}:*"

	n := 0
	iter := c.client.Scan(ctx, 0, match, redisScanCount).Iterator()
	for iter.Next(ctx) {
		n++
	}
	if err := iter.Err(); err != nil {
		return 0, newStoreError("count", nil, err)
	}
	return n, nil
}

// Clear deletes every tile key. The Redis counterpart of Purge.
func (c *RedisCache) Clear(ctx context.Context) error {
	iter := c.client.Scan(ctx, 0, c.prefix()+"*", redisScanCount).Iterator()

	var batch []string
	for iter.Next(ctx) {
		batch = append(batch, iter.Val())
		if len(batch) == redisScanCount {
			if err := c.client.Unlink(ctx, batch...).Err(); err != nil {
				return newStoreError("clear", nil, err)
			}
			batch = batch[:0]
		}
	}
	if err := iter.Err(); err != nil {
		return newStoreError("clear", nil, err)
	}
	if len(batch) > 0 {
		if err := c.client.Unlink(ctx, batch...).Err(); err != nil {
			return newStoreError("clear", nil, err)
		}
	}
	return nil
}

func (c *RedisCache) Close() error {
	return c.client.Close()
}

var globReplacer = strings.NewReplacer(`\`, `\\`, `*`, `\*`, `?`, `\?`, `[`, `\[`, `]`, `\]`)

func escapeGlob(s string) string {
	return globReplacer.Replace(s)
}
