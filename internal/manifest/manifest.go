// Package manifest describes the tilesets a build covers and loads them
// from a YAML manifest file.
package manifest

import (
	"context"
	"errors"

	"github.com/paulmach/orb"
)

var ErrInvalidTileset = errors.New("invalid tileset")

// Tileset is one independently configured source of tiles. A tileset with
// neither Bounds nor Geometry has no data and is skipped by the build.
type Tileset struct {
	Name     string
	Bounds   *orb.Bound
	Geometry orb.Geometry
	MinZoom  uint32
	MaxZoom  uint32
}

// Empty reports whether the tileset has no geometry at all.
func (t Tileset) Empty() bool {
	return t.Geometry == nil && t.Bounds == nil
}

// Coverage is the geometry seeding starts from: the explicit geometry when
// present, else the bounding box.
func (t Tileset) Coverage() orb.Geometry {
	if t.Geometry != nil {
		return t.Geometry
	}
	if t.Bounds != nil {
		return *t.Bounds
	}
	return nil
}

type Provider interface {
	Tilesets(ctx context.Context) ([]Tileset, error)
}

// Static serves a fixed list of tilesets.
type Static []Tileset

func (s Static) Tilesets(context.Context) ([]Tileset, error) {
	return s, nil
}
