package usecase

import (
	"errors"
	"fmt"

	"github.com/jaennil/guide_helper/backend/tilebuilder/internal/tile"
)

var ErrInvalidSeed = errors.New("invalid seed tile")

// RenderError is a failed render of a single tile. The tile and everything
// below it are missing from the build.
type RenderError struct {
	Coord tile.Coord
	Err   error
}

func (e *RenderError) Error() string {
	return fmt.Sprintf("render %s: %v", e.Coord, e.Err)
}

func (e *RenderError) Unwrap() error {
	return e.Err
}

// ErrStoreNotReady is returned by tile lookups made before the build has
// opened its store or after it was closed.
var ErrStoreNotReady = errors.New("tile store not ready")
