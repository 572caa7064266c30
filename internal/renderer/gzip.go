package renderer

import (
	"bytes"
	"context"
	"fmt"

	"github.com/jaennil/guide_helper/backend/tilebuilder/internal/tile"
	"github.com/klauspost/compress/gzip"
)

// GzipRenderer compresses the payload of the wrapped renderer, the usual
// encoding for vector tiles in mbtiles files. Empty tiles pass through.
type GzipRenderer struct {
	next TileRenderer
}

func NewGzipRenderer(next TileRenderer) *GzipRenderer {
	return &GzipRenderer{next: next}
}

var _ TileRenderer = (*GzipRenderer)(nil)

func (r *GzipRenderer) Render(ctx context.Context, c tile.Coord) ([]byte, bool, error) {
	data, ok, err := r.next.Render(ctx, c)
	if err != nil || !ok {
		return data, ok, err
	}

	if isGzip(data) {
		return data, true, nil
	}

	var buf bytes.Buffer
	zw, err := gzip.NewWriterLevel(&buf, gzip.BestCompression)
	if err != nil {
		return nil, false, err
	}
	if _, err := zw.Write(data); err != nil {
		return nil, false, fmt.Errorf("failed to gzip tile %s: %w", c, err)
	}
	if err := zw.Close(); err != nil {
		return nil, false, fmt.Errorf("failed to gzip tile %s: %w", c, err)
	}

	return buf.Bytes(), true, nil
}

func isGzip(data []byte) bool {
	return len(data) >= 2 && data[0] == 0x1f && data[1] == 0x8b
}
