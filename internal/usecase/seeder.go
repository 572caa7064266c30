package usecase

import (
	"math"
	"sort"

	"github.com/jaennil/guide_helper/backend/tilebuilder/internal/tile"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/clip"
	"github.com/paulmach/orb/planar"
)

// maxMercatorLat is where the square Web Mercator world ends.
const maxMercatorLat = 85.05112877980659

// minAreaRatio scales the clipped area below which a tile counts as only
// touching the geometry. It is taken relative to the smaller of the tile and
// the geometry, so it only absorbs floating point slivers on shared edges.
const minAreaRatio = 1e-9

// BBoxSeeder burns a tileset's coverage geometry into the tile grid at the
// tileset's minimum zoom. The resulting seed tiles are the roots of the
// quadtree expansion.
type BBoxSeeder struct{}

func NewBBoxSeeder() *BBoxSeeder {
	return &BBoxSeeder{}
}

// Seed returns every tile at zoom whose extent shares a non-zero area with
// g. Tiles that only touch g along an edge are left out. A nil or empty
// geometry yields no seeds. Zero-area inputs (points, lines, flat boxes) get
// the tiles containing them so they still have an entry point.
func (s *BBoxSeeder) Seed(tileset string, g orb.Geometry, zoom uint32) []tile.Coord {
	if g == nil || zoom > tile.MaxZoom {
		return nil
	}

	var seeds []tile.Coord
	switch geom := g.(type) {
	case orb.Bound:
		if geom.IsEmpty() {
			return nil
		}
		seeds = seedBound(tileset, geom, zoom)
	case orb.Ring:
		seeds = seedPolygonal(tileset, orb.Polygon{geom}, zoom)
	case orb.Polygon:
		seeds = seedPolygonal(tileset, geom, zoom)
	case orb.MultiPolygon:
		seeds = seedPolygonal(tileset, geom, zoom)
	case orb.Collection:
		seen := make(map[tile.Coord]struct{})
		for _, member := range geom {
			for _, c := range s.Seed(tileset, member, zoom) {
				if _, ok := seen[c]; !ok {
					seen[c] = struct{}{}
					seeds = append(seeds, c)
				}
			}
		}
		sortCoords(seeds)
	default:
		if isEmptyGeometry(g) {
			return nil
		}
		seeds = seedBound(tileset, g.Bound(), zoom)
	}

	return seeds
}

func seedBound(tileset string, b orb.Bound, zoom uint32) []tile.Coord {
	minX, minY, maxX, maxY := tileRange(b, zoom)

	seeds := make([]tile.Coord, 0, int(maxX-minX+1)*int(maxY-minY+1))
	for y := minY; y <= maxY; y++ {
		for x := minX; x <= maxX; x++ {
			seeds = append(seeds, tile.New(tileset, zoom, x, y))
		}
	}
	return seeds
}

// seedPolygonal clips the geometry against every candidate tile of its
// bounding box and keeps the tiles with a positive clipped area.
func seedPolygonal(tileset string, g orb.Geometry, zoom uint32) []tile.Coord {
	if isEmptyGeometry(g) {
		return nil
	}
	area := math.Abs(planar.Area(g))
	if area == 0 {
		return seedBound(tileset, g.Bound(), zoom)
	}

	candidates := seedBound(tileset, g.Bound(), zoom)
	seeds := candidates[:0]
	for _, c := range candidates {
		tb := c.Bound()
		tileArea := (tb.Max[0] - tb.Min[0]) * (tb.Max[1] - tb.Min[1])

		var clipped orb.Geometry
		switch geom := g.(type) {
		case orb.Polygon:
			clipped = clip.Polygon(tb, geom.Clone())
		case orb.MultiPolygon:
			clipped = clip.MultiPolygon(tb, geom.Clone())
		}
		if clipped == nil || isEmptyGeometry(clipped) {
			continue
		}
		if math.Abs(planar.Area(clipped)) > math.Min(tileArea, area)*minAreaRatio {
			seeds = append(seeds, c)
		}
	}
	return seeds
}

// tileRange returns the inclusive x/y tile span covering b at zoom. Upper
// edges are exclusive, so a box ending exactly on a tile boundary does not
// reach into the next tile.
func tileRange(b orb.Bound, zoom uint32) (minX, minY, maxX, maxY uint32) {
	n := float64(uint64(1) << zoom)

	// y grows southwards, so the north edge gives the smallest row
	minX, maxX = span(lonToX(b.Min[0], n), lonToX(b.Max[0], n), n)
	minY, maxY = span(latToY(b.Max[1], n), latToY(b.Min[1], n), n)
	return minX, minY, maxX, maxY
}

func span(lo, hi, n float64) (uint32, uint32) {
	first := math.Floor(lo)
	last := math.Ceil(hi) - 1
	if last < first {
		last = first
	}
	return clampIndex(first, n), clampIndex(last, n)
}

func clampIndex(v, n float64) uint32 {
	if v < 0 {
		return 0
	}
	if v > n-1 {
		return uint32(n - 1)
	}
	return uint32(v)
}

func lonToX(lon, n float64) float64 {
	return (lon + 180) / 360 * n
}

func latToY(lat, n float64) float64 {
	lat = math.Max(-maxMercatorLat, math.Min(maxMercatorLat, lat))
	rad := lat * math.Pi / 180
	return (1 - math.Log(math.Tan(rad)+1/math.Cos(rad))/math.Pi) / 2 * n
}

func isEmptyGeometry(g orb.Geometry) bool {
	switch geom := g.(type) {
	case orb.Polygon:
		return len(geom) == 0 || len(geom[0]) == 0
	case orb.MultiPolygon:
		for _, p := range geom {
			if len(p) > 0 && len(p[0]) > 0 {
				return false
			}
		}
		return true
	case orb.LineString:
		return len(geom) == 0
	case orb.MultiPoint:
		return len(geom) == 0
	case orb.MultiLineString:
		return len(geom) == 0
	}
	return false
}

func sortCoords(cs []tile.Coord) {
	sort.Slice(cs, func(i, j int) bool {
		if cs[i].Y != cs[j].Y {
			return cs[i].Y < cs[j].Y
		}
		return cs[i].X < cs[j].X
	})
}
