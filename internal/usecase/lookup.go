package usecase

import (
	"context"

	lru "github.com/hashicorp/golang-lru"
	"github.com/jaennil/guide_helper/backend/tilebuilder/internal/tile"
)

// TileSource reads single tiles, usually from the store a build writes to.
type TileSource interface {
	Tile(ctx context.Context, c tile.Coord) ([]byte, bool, error)
}

// TileLookup answers single-tile reads for the status server. Stored tiles
// are never overwritten, so hits are kept in an ARC cache; misses are not,
// since the tile may still be written later in the build.
type TileLookup struct {
	source TileSource
	hits   *lru.ARCCache
}

func NewTileLookup(source TileSource, size int) (*TileLookup, error) {
	hits, err := lru.NewARC(size)
	if err != nil {
		return nil, err
	}

	return &TileLookup{
		source: source,
		hits:   hits,
	}, nil
}

func (l *TileLookup) Tile(ctx context.Context, c tile.Coord) ([]byte, bool, error) {
	if v, ok := l.hits.Get(c); ok {
		return v.([]byte), true, nil
	}

	data, found, err := l.source.Tile(ctx, c)
	if err != nil || !found {
		return nil, found, err
	}

	l.hits.Add(c, data)
	return data, true, nil
}
