package cache

import (
	"context"

	"github.com/jaennil/guide_helper/backend/tilebuilder/internal/tile"
)

// FilePrefix names every file or directory a cache backend creates inside
// the cache directory. Purge removes everything matching FilePrefix + "*".
const FilePrefix = "cache."

type TileCacheKey = tile.Coord

type TileCacheValue []byte

// Row is one rendered tile ready to be written.
type Row struct {
	Key  TileCacheKey
	Data TileCacheValue
}

// TileCache is the tile store shared by all build workers. Implementations
// serialize writers internally; InsertOne and InsertBatch fail with
// ErrDuplicateTile instead of overwriting an existing key.
type TileCache interface {
	Get(context.Context, TileCacheKey) (TileCacheValue, bool, error)
	InsertOne(context.Context, TileCacheKey, TileCacheValue) error
	InsertBatch(context.Context, []Row) error
	Count(ctx context.Context, tileset string) (int, error)
	Close() error
}
