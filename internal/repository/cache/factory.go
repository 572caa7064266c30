package cache

import (
	"context"
	"fmt"

	"github.com/jaennil/guide_helper/backend/tilebuilder/pkg/logger"
)

const (
	TypeSQLite     = "sqlite"
	TypeMemory     = "memory"
	TypeFilesystem = "filesystem"
	TypeRedis      = "redis"
)

type Config struct {
	Type  string
	Dir   string
	Redis RedisConfig
}

// Clearer is implemented by stores that do not live in the cache directory
// and so are not reached by Purge.
type Clearer interface {
	Clear(ctx context.Context) error
}

// NewTileCache creates the cache backend named by cfg.Type.
func NewTileCache(cfg Config, l logger.Logger) (TileCache, error) {
	switch cfg.Type {
	case TypeSQLite, "":
		return NewSQLiteCache(cfg.Dir, l)
	case TypeMemory:
		l.Info("using memory cache, nothing will be persisted")
		return NewMapCache(), nil
	case TypeFilesystem:
		return NewFilesystemCache(cfg.Dir, l)
	case TypeRedis:
		return NewRedisCache(cfg.Redis, l)
	default:
		return nil, fmt.Errorf("unknown cache type: %s (supported: sqlite, memory, filesystem, redis)", cfg.Type)
	}
}
