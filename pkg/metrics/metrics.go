package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	TilesRendered = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "tilebuilder_tiles_rendered_total",
		Help: "Total number of tiles rendered with content",
	}, []string{"tileset"})

	TilesPruned = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "tilebuilder_tiles_pruned_total",
		Help: "Total number of empty tiles that terminated a quadtree branch",
	}, []string{"tileset"})

	RenderErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "tilebuilder_render_errors_total",
		Help: "Total number of tiles whose render call failed",
	}, []string{"tileset"})

	RowsCommitted = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "tilebuilder_rows_committed_total",
		Help: "Total number of cache rows committed to the store",
	}, []string{"tileset"})

	TilesetsProcessed = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "tilebuilder_tilesets_processed_total",
		Help: "Total number of tilesets processed, by outcome",
	}, []string{"outcome"})

	TilesetsInFlight = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "tilebuilder_tilesets_in_flight",
		Help: "Number of tilesets currently being processed",
	})

	RowsGenerated = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "tilebuilder_rows_generated",
		Help: "Rows generated so far by the current build",
	})

	// Store metrics
	StoreOperationDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "tilebuilder_store_operation_duration_seconds",
		Help:    "Duration of cache store operations in seconds",
		Buckets: []float64{.0001, .0005, .001, .005, .01, .025, .05, .1, .25, .5, 1, 5, 10, 30},
	}, []string{"operation"})

	StoreErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "tilebuilder_store_errors_total",
		Help: "Total number of cache store errors",
	}, []string{"operation"})
)
