package app

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	v1 "github.com/jaennil/guide_helper/backend/tilebuilder/internal/infrastructure/http/v1"
	"github.com/jaennil/guide_helper/backend/tilebuilder/internal/infrastructure/http/v1/handler"
	"github.com/jaennil/guide_helper/backend/tilebuilder/internal/manifest"
	"github.com/jaennil/guide_helper/backend/tilebuilder/internal/renderer"
	"github.com/jaennil/guide_helper/backend/tilebuilder/internal/usecase"
	"github.com/jaennil/guide_helper/backend/tilebuilder/pkg/config"
	"github.com/jaennil/guide_helper/backend/tilebuilder/pkg/http_server"
	"github.com/jaennil/guide_helper/backend/tilebuilder/pkg/logger"
	"github.com/jaennil/guide_helper/backend/tilebuilder/pkg/telemetry"
)

const shutdownTimeout = 30 * time.Second

func Run(cfg *config.Config) {
	l := logger.NewZapLogger(cfg.Logger)
	defer l.Sync()

	l.Info("starting tile cache build", "config", cfg.Redacted())

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	ctx = logger.WithLogger(ctx, l)

	if err := run(ctx, cfg, l); err != nil {
		l.Fatal("tile cache build failed", "error", err)
	}

	l.Info("application shutdown completed")
}

func run(ctx context.Context, cfg *config.Config, l logger.Logger) error {
	if cfg.Telemetry.Enabled {
		shutdownTelemetry, err := telemetry.InitTracer(telemetry.Config{
			ServiceName:    cfg.Telemetry.ServiceName,
			ServiceVersion: cfg.Telemetry.ServiceVersion,
			Environment:    cfg.Telemetry.Environment,
			OTLPEndpoint:   cfg.Telemetry.OTLPEndpoint,
		}, l)
		if err != nil {
			return err
		}
		defer func() {
			if err := shutdownTelemetry(context.Background()); err != nil {
				l.Error("failed to shutdown telemetry", "error", err)
			}
		}()
		l.Info("telemetry initialized", "service", cfg.Telemetry.ServiceName)
	}

	if cfg.Build.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, cfg.Build.Timeout)
		defer cancel()
	}

	job := NewJob(cfg, manifest.NewFileProvider(cfg.Build.Manifest, l), newRenderer(cfg.Renderer, l), l)
	defer func() {
		if err := job.Close(); err != nil {
			l.Error("failed to close cache store", "error", err)
		}
	}()

	if cfg.HTTP.Server.Port != "" {
		server, err := startStatusServer(ctx, cfg, job, l)
		if err != nil {
			return err
		}
		defer shutdownStatusServer(server, l)
	}

	progressCtx, stopProgress := context.WithCancel(ctx)
	go job.Progress().Log(progressCtx, cfg.Build.ProgressInterval, l)

	report, err := job.Run(ctx)
	stopProgress()
	if err != nil {
		return err
	}

	logReport(report, l)

	return nil
}

func newRenderer(cfg config.Renderer, l logger.Logger) renderer.TileRenderer {
	var r renderer.TileRenderer = renderer.NewUpstreamRenderer(renderer.UpstreamConfig{
		BaseURL:     cfg.UpstreamURL,
		PathPattern: cfg.PathPattern,
		UserAgent:   cfg.UserAgent,
		Timeout:     cfg.Timeout,
	}, l)

	if cfg.Gzip {
		r = renderer.NewGzipRenderer(r)
	}

	return r
}

func startStatusServer(ctx context.Context, cfg *config.Config, job *Job, l logger.Logger) (*http.Server, error) {
	tiles, err := usecase.NewTileLookup(job, cfg.HTTP.Server.TileCacheSize)
	if err != nil {
		return nil, err
	}

	router := v1.NewRouter(handler.NewHandler(job, tiles), l, cfg.Telemetry.Enabled)
	server := http_server.NewServer(ctx, cfg.HTTP.Server, router)

	go func() {
		l.Info("starting status server", "address", server.Addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			l.Error("status server failed", "error", err)
		}
	}()

	return server, nil
}

func shutdownStatusServer(server *http.Server, l logger.Logger) {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	l.Info("shutting down status server...", "address", server.Addr)
	if err := server.Shutdown(ctx); err != nil {
		l.Error("status server shutdown failed", "error", err)
		return
	}
	l.Info("status server stopped")
}

func logReport(report *usecase.BuildReport, l logger.Logger) {
	snapshot := report.Snapshot()

	for _, tr := range snapshot.Tilesets {
		kv := []any{
			"tileset", tr.Name,
			"rows", tr.RowCount,
			"seeds", tr.Seeds,
			"duration", tr.Duration,
		}

		switch {
		case tr.Committed && len(tr.Errors) > 0:
			l.Warn("tileset committed with render errors", append(kv, "errors", tr.Messages)...)
		case tr.Committed:
			l.Info("tileset committed", kv...)
		case tr.Skipped:
			l.Info("tileset skipped, no geometry", kv...)
		case tr.Incomplete:
			l.Warn("tileset incomplete, build was cancelled", kv...)
		default:
			l.Error("tileset failed", append(kv, "errors", tr.Messages)...)
		}
	}

	l.Info("build report",
		"build_id", snapshot.BuildID,
		"summary", snapshot.Summary,
		"elapsed", time.Since(snapshot.StartedAt),
	)
}
