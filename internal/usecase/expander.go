package usecase

import (
	"context"
	"errors"
	"fmt"

	"github.com/jaennil/guide_helper/backend/tilebuilder/internal/renderer"
	"github.com/jaennil/guide_helper/backend/tilebuilder/internal/repository/cache"
	"github.com/jaennil/guide_helper/backend/tilebuilder/internal/tile"
	"github.com/jaennil/guide_helper/backend/tilebuilder/pkg/logger"
	"github.com/jaennil/guide_helper/backend/tilebuilder/pkg/metrics"
)

// ExpandResult holds everything one seed produced.
type ExpandResult struct {
	Rows     []cache.Row
	Warnings []error
	Visited  int
	Pruned   int
}

// Expander walks the quadtree below a seed tile, rendering every visited
// tile. A tile without content ends its branch.
type Expander struct {
	renderer renderer.TileRenderer
	progress *Progress
	failFast bool
	logger   logger.Logger
}

func NewExpander(r renderer.TileRenderer, progress *Progress, failFast bool, l logger.Logger) *Expander {
	return &Expander{
		renderer: r,
		progress: progress,
		failFast: failFast,
		logger:   l,
	}
}

// Expand renders seed and its descendants down to maxZoom inclusive. The
// returned error is non-nil only on cancellation, an invalid seed, or a
// render failure in fail-fast mode; the partial result is returned with it.
// Rows come in no particular order.
func (e *Expander) Expand(ctx context.Context, seed tile.Coord, maxZoom uint32) (ExpandResult, error) {
	var res ExpandResult

	if !seed.Valid() {
		return res, fmt.Errorf("%w: %s", ErrInvalidSeed, seed)
	}
	if seed.Z > maxZoom {
		return res, nil
	}

	stack := []tile.Coord{seed}
	for len(stack) > 0 {
		if err := ctx.Err(); err != nil {
			return res, err
		}

		t := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		res.Visited++

		data, hasContent, err := e.renderer.Render(ctx, t)
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil && errors.Is(err, ctxErr) {
				return res, ctxErr
			}

			metrics.RenderErrors.WithLabelValues(t.Tileset).Inc()
			renderErr := &RenderError{Coord: t, Err: err}
			if e.failFast {
				return res, renderErr
			}
			e.logger.Warn("render failed, pruning branch", "tile", t.String(), "error", err)
			res.Warnings = append(res.Warnings, renderErr)
			continue
		}

		if !hasContent {
			metrics.TilesPruned.WithLabelValues(t.Tileset).Inc()
			res.Pruned++
			continue
		}

		res.Rows = append(res.Rows, cache.Row{Key: t, Data: data})
		metrics.TilesRendered.WithLabelValues(t.Tileset).Inc()
		e.progress.AddRows(1)

		if t.Z < maxZoom {
			children := t.Children()
			stack = append(stack, children[:]...)
		}
	}

	e.logger.Debug("seed expanded",
		"seed", seed.String(),
		"rows", len(res.Rows),
		"visited", res.Visited,
		"pruned", res.Pruned,
		"warnings", len(res.Warnings),
	)

	return res, nil
}
