package usecase

import (
	"context"
	"runtime"
	"time"

	"github.com/jaennil/guide_helper/backend/tilebuilder/internal/manifest"
	"github.com/jaennil/guide_helper/backend/tilebuilder/internal/renderer"
	"github.com/jaennil/guide_helper/backend/tilebuilder/internal/repository/cache"
	"github.com/jaennil/guide_helper/backend/tilebuilder/pkg/logger"
	"github.com/jaennil/guide_helper/backend/tilebuilder/pkg/metrics"
	"github.com/jaennil/guide_helper/backend/tilebuilder/pkg/telemetry"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"
)

const (
	outcomeCommitted  = "committed"
	outcomeSkipped    = "skipped"
	outcomeIncomplete = "incomplete"
	outcomeFailed     = "failed"
)

type ProcessorOptions struct {
	// Concurrency caps how many tilesets are built at once. Zero means one
	// per CPU.
	Concurrency int
	// FailFast aborts a tileset on its first render error instead of
	// pruning the failing branch.
	FailFast bool
	Progress *Progress
}

// Processor runs the seed, expand and insert pipeline for many tilesets on
// a bounded pool. Work is handed out one tileset at a time so every tileset
// is written with a single InsertBatch.
type Processor struct {
	seeder   *BBoxSeeder
	expander *Expander
	store    cache.TileCache
	progress *Progress
	workers  int
	logger   logger.Logger
}

func NewProcessor(store cache.TileCache, r renderer.TileRenderer, opts ProcessorOptions, l logger.Logger) *Processor {
	workers := opts.Concurrency
	if workers <= 0 {
		workers = runtime.NumCPU()
	}

	return &Processor{
		seeder:   NewBBoxSeeder(),
		expander: NewExpander(r, opts.Progress, opts.FailFast, l),
		store:    store,
		progress: opts.Progress,
		workers:  workers,
		logger:   l,
	}
}

// Run builds every tileset and returns the finished report.
func (p *Processor) Run(ctx context.Context, tilesets []manifest.Tileset) *BuildReport {
	report := NewBuildReport(tilesets)
	p.Execute(ctx, report, tilesets)
	return report
}

// Execute builds every tileset, recording outcomes into report as they
// happen. It returns once all tilesets are done or have observed
// cancellation; it never fails as a whole.
func (p *Processor) Execute(ctx context.Context, report *BuildReport, tilesets []manifest.Tileset) {
	p.progress.SetTotal(len(tilesets))

	p.logger.Info("build started",
		"build_id", report.BuildID,
		"tilesets", len(tilesets),
		"workers", p.workers,
	)

	// workers never return an error, the group is only a bounded pool
	g := new(errgroup.Group)
	g.SetLimit(p.workers)

	for _, ts := range tilesets {
		g.Go(func() error {
			p.processTileset(ctx, report, ts)
			p.progress.TilesetDone()
			return nil
		})
	}

	_ = g.Wait()
	report.finish()

	s := report.Summary()
	p.logger.Info("build finished",
		"build_id", report.BuildID,
		"committed", s.Committed,
		"skipped", s.Skipped,
		"incomplete", s.Incomplete,
		"failed", s.Failed,
		"rows", s.Rows,
		"errors", s.Errors,
	)
}

func (p *Processor) processTileset(ctx context.Context, report *BuildReport, ts manifest.Tileset) {
	start := time.Now()

	ctx, span := telemetry.Tracer().Start(ctx, "tileset "+ts.Name,
		trace.WithAttributes(
			attribute.String("tile.tileset", ts.Name),
			attribute.Int("tile.minzoom", int(ts.MinZoom)),
			attribute.Int("tile.maxzoom", int(ts.MaxZoom)),
		),
	)
	defer span.End()

	metrics.TilesetsInFlight.Inc()
	defer metrics.TilesetsInFlight.Dec()

	outcome := p.buildTileset(ctx, report, ts)

	report.update(ts.Name, func(r *TilesetReport) {
		r.Duration = time.Since(start)
		r.Done = true
	})
	metrics.TilesetsProcessed.WithLabelValues(outcome).Inc()

	span.SetAttributes(attribute.String("tile.outcome", outcome))
	if outcome == outcomeFailed {
		span.SetStatus(codes.Error, "tileset failed")
	}
}

func (p *Processor) buildTileset(ctx context.Context, report *BuildReport, ts manifest.Tileset) string {
	if ts.Empty() {
		p.logger.Info("tileset has no geometry, skipping", "tileset", ts.Name)
		report.update(ts.Name, func(r *TilesetReport) { r.Skipped = true })
		return outcomeSkipped
	}

	if ctx.Err() != nil {
		return p.markIncomplete(report, ts.Name, 0)
	}

	seeds := p.seeder.Seed(ts.Name, ts.Coverage(), ts.MinZoom)
	report.update(ts.Name, func(r *TilesetReport) { r.Seeds = len(seeds) })

	p.logger.Info("tileset seeded",
		"tileset", ts.Name,
		"seeds", len(seeds),
		"minzoom", ts.MinZoom,
		"maxzoom", ts.MaxZoom,
	)

	var rows []cache.Row
	for _, seed := range seeds {
		res, err := p.expander.Expand(ctx, seed, ts.MaxZoom)

		if len(res.Warnings) > 0 {
			report.update(ts.Name, func(r *TilesetReport) {
				r.Errors = append(r.Errors, res.Warnings...)
			})
		}

		if err != nil {
			if ctx.Err() != nil {
				return p.markIncomplete(report, ts.Name, len(rows)+len(res.Rows))
			}
			p.logger.Error("tileset expansion aborted", "tileset", ts.Name, "seed", seed.String(), "error", err)
			report.update(ts.Name, func(r *TilesetReport) {
				r.Errors = append(r.Errors, err)
			})
			return outcomeFailed
		}

		rows = append(rows, res.Rows...)
	}

	if ctx.Err() != nil {
		return p.markIncomplete(report, ts.Name, len(rows))
	}

	if err := p.store.InsertBatch(ctx, rows); err != nil {
		if ctx.Err() != nil {
			return p.markIncomplete(report, ts.Name, len(rows))
		}
		p.logger.Error("failed to write tileset", "tileset", ts.Name, "rows", len(rows), "error", err)
		report.update(ts.Name, func(r *TilesetReport) {
			r.Errors = append(r.Errors, err)
		})
		return outcomeFailed
	}

	metrics.RowsCommitted.WithLabelValues(ts.Name).Add(float64(len(rows)))
	report.update(ts.Name, func(r *TilesetReport) {
		r.RowCount = len(rows)
		r.Committed = true
	})

	p.logger.Info("tileset committed", "tileset", ts.Name, "rows", len(rows))

	return outcomeCommitted
}

func (p *Processor) markIncomplete(report *BuildReport, name string, pending int) string {
	p.logger.Warn("build cancelled, tileset not written", "tileset", name, "rows_discarded", pending)
	report.update(name, func(r *TilesetReport) { r.Incomplete = true })
	return outcomeIncomplete
}
