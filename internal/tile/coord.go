// Package tile defines the XYZ tile coordinate shared by the seeder, the
// expander and the cache store.
package tile

import (
	"fmt"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/maptile"
)

// MaxZoom is the deepest zoom level a coordinate may address.
const MaxZoom = 24

// Coord addresses one tile of one tileset in the XYZ (slippy map) scheme,
// origin at the top-left of the Web Mercator world.
type Coord struct {
	Tileset string
	Z       uint32
	X       uint32
	Y       uint32
}

func New(tileset string, z, x, y uint32) Coord {
	return Coord{Tileset: tileset, Z: z, X: x, Y: y}
}

// FromMaptile lifts an orb maptile into a tileset-scoped coordinate.
func FromMaptile(tileset string, t maptile.Tile) Coord {
	return Coord{Tileset: tileset, Z: uint32(t.Z), X: t.X, Y: t.Y}
}

// Maptile drops the tileset name.
func (c Coord) Maptile() maptile.Tile {
	return maptile.New(c.X, c.Y, maptile.Zoom(c.Z))
}

// Valid reports whether x and y lie inside [0, 2^z).
func (c Coord) Valid() bool {
	if c.Z > MaxZoom {
		return false
	}
	n := uint32(1) << c.Z
	return c.X < n && c.Y < n
}

// Children returns the four tiles one zoom level below c.
func (c Coord) Children() [4]Coord {
	x, y, z := c.X<<1, c.Y<<1, c.Z+1
	return [4]Coord{
		{Tileset: c.Tileset, Z: z, X: x, Y: y},
		{Tileset: c.Tileset, Z: z, X: x + 1, Y: y},
		{Tileset: c.Tileset, Z: z, X: x, Y: y + 1},
		{Tileset: c.Tileset, Z: z, X: x + 1, Y: y + 1},
	}
}

// Parent returns the tile one level up. The parent of a zoom 0 tile is itself.
func (c Coord) Parent() Coord {
	if c.Z == 0 {
		return c
	}
	return Coord{Tileset: c.Tileset, Z: c.Z - 1, X: c.X >> 1, Y: c.Y >> 1}
}

// Bound is the geographic (lon/lat) extent of the tile.
func (c Coord) Bound() orb.Bound {
	return c.Maptile().Bound()
}

func (c Coord) String() string {
	return fmt.Sprintf("%s/%d/%d/%d", c.Tileset, c.Z, c.X, c.Y)
}
