// Package renderer holds the TileRenderer contract the build pipeline
// consumes, plus the implementations the build job can be configured with.
package renderer

import (
	"context"

	"github.com/jaennil/guide_helper/backend/tilebuilder/internal/tile"
)

// TileRenderer produces the payload stored for one tile. hasContent=false
// means the tile is empty, and so is every tile below it.
type TileRenderer interface {
	Render(ctx context.Context, c tile.Coord) (data []byte, hasContent bool, err error)
}

// Func adapts a plain function to TileRenderer.
type Func func(ctx context.Context, c tile.Coord) ([]byte, bool, error)

func (f Func) Render(ctx context.Context, c tile.Coord) ([]byte, bool, error) {
	return f(ctx, c)
}
