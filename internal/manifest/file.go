package manifest

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/go-playground/validator/v10"
	"github.com/jaennil/guide_helper/backend/tilebuilder/internal/tile"
	"github.com/jaennil/guide_helper/backend/tilebuilder/pkg/logger"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
	"gopkg.in/yaml.v3"
)

// MaxLatitude is the Web Mercator latitude limit.
const MaxLatitude = 85.05112877980659

type (
	document struct {
		Tilesets []entry `yaml:"tilesets" validate:"dive"`
	}

	entry struct {
		Name    string    `yaml:"name" validate:"required,excludesall=/\\"`
		Bounds  []float64 `yaml:"bounds" validate:"omitempty,len=4"`
		GeoJSON string    `yaml:"geojson"`
		MinZoom uint32    `yaml:"minzoom" validate:"lte=24"`
		MaxZoom uint32    `yaml:"maxzoom" validate:"lte=24,gtefield=MinZoom"`
	}
)

// FileProvider reads tilesets from a YAML manifest. GeoJSON paths are
// resolved relative to the manifest's directory.
type FileProvider struct {
	path     string
	validate *validator.Validate
	logger   logger.Logger
}

func NewFileProvider(path string, l logger.Logger) *FileProvider {
	return &FileProvider{
		path:     path,
		validate: validator.New(),
		logger:   l,
	}
}

var _ Provider = (*FileProvider)(nil)

func (p *FileProvider) Tilesets(ctx context.Context) ([]Tileset, error) {
	raw, err := os.ReadFile(p.path)
	if err != nil {
		return nil, fmt.Errorf("failed to read manifest: %w", err)
	}

	var doc document
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("failed to parse manifest %s: %w", p.path, err)
	}

	if err := p.validate.StructCtx(ctx, doc); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidTileset, err)
	}

	seen := make(map[string]struct{}, len(doc.Tilesets))
	tilesets := make([]Tileset, 0, len(doc.Tilesets))
	for _, e := range doc.Tilesets {
		if _, dup := seen[e.Name]; dup {
			return nil, fmt.Errorf("%w: duplicate tileset %q", ErrInvalidTileset, e.Name)
		}
		seen[e.Name] = struct{}{}

		ts, err := p.toTileset(e)
		if err != nil {
			return nil, err
		}
		tilesets = append(tilesets, ts)
	}

	p.logger.Info("manifest loaded", "path", p.path, "tilesets", len(tilesets))

	return tilesets, nil
}

func (p *FileProvider) toTileset(e entry) (Tileset, error) {
	ts := Tileset{
		Name:    e.Name,
		MinZoom: e.MinZoom,
		MaxZoom: e.MaxZoom,
	}

	if len(e.Bounds) == 4 {
		b, err := NewBounds(e.Bounds[0], e.Bounds[1], e.Bounds[2], e.Bounds[3])
		if err != nil {
			return Tileset{}, fmt.Errorf("tileset %q: %w", e.Name, err)
		}
		ts.Bounds = &b
	}

	if e.GeoJSON != "" {
		path := e.GeoJSON
		if !filepath.IsAbs(path) {
			path = filepath.Join(filepath.Dir(p.path), path)
		}
		g, err := loadGeometry(path)
		if err != nil {
			return Tileset{}, fmt.Errorf("tileset %q: %w", e.Name, err)
		}
		ts.Geometry = g
		if g != nil && ts.Bounds == nil {
			b := clampBound(g.Bound())
			ts.Bounds = &b
		}
	}

	if ts.MaxZoom > tile.MaxZoom {
		return Tileset{}, fmt.Errorf("%w: tileset %q maxzoom %d above %d", ErrInvalidTileset, e.Name, ts.MaxZoom, tile.MaxZoom)
	}

	return ts, nil
}

// NewBounds builds a lon/lat bounding box, clamping latitude to the Web
// Mercator range. Boxes crossing the antimeridian are rejected.
func NewBounds(minLon, minLat, maxLon, maxLat float64) (orb.Bound, error) {
	if minLon > maxLon || minLat > maxLat {
		return orb.Bound{}, fmt.Errorf("%w: bounds [%g,%g,%g,%g] are inverted", ErrInvalidTileset, minLon, minLat, maxLon, maxLat)
	}
	if minLon < -180 || maxLon > 180 {
		return orb.Bound{}, fmt.Errorf("%w: longitude outside [-180,180]", ErrInvalidTileset)
	}
	if minLat < -90 || maxLat > 90 {
		return orb.Bound{}, fmt.Errorf("%w: latitude outside [-90,90]", ErrInvalidTileset)
	}

	return clampBound(orb.Bound{
		Min: orb.Point{minLon, minLat},
		Max: orb.Point{maxLon, maxLat},
	}), nil
}

func clampBound(b orb.Bound) orb.Bound {
	clamp := func(v, lo, hi float64) float64 {
		if v < lo {
			return lo
		}
		if v > hi {
			return hi
		}
		return v
	}
	b.Min[0] = clamp(b.Min[0], -180, 180)
	b.Max[0] = clamp(b.Max[0], -180, 180)
	b.Min[1] = clamp(b.Min[1], -MaxLatitude, MaxLatitude)
	b.Max[1] = clamp(b.Max[1], -MaxLatitude, MaxLatitude)
	return b
}

func loadGeometry(path string) (orb.Geometry, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read geojson: %w", err)
	}

	fc, err := geojson.UnmarshalFeatureCollection(raw)
	if err != nil {
		return nil, fmt.Errorf("failed to parse geojson %s: %w", path, err)
	}

	var geoms orb.Collection
	for _, f := range fc.Features {
		if f.Geometry != nil {
			geoms = append(geoms, f.Geometry)
		}
	}

	switch len(geoms) {
	case 0:
		return nil, nil
	case 1:
		return geoms[0], nil
	default:
		return geoms, nil
	}
}
