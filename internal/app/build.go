package app

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"

	"github.com/jaennil/guide_helper/backend/tilebuilder/internal/manifest"
	"github.com/jaennil/guide_helper/backend/tilebuilder/internal/renderer"
	"github.com/jaennil/guide_helper/backend/tilebuilder/internal/repository/cache"
	"github.com/jaennil/guide_helper/backend/tilebuilder/internal/tile"
	"github.com/jaennil/guide_helper/backend/tilebuilder/internal/usecase"
	"github.com/jaennil/guide_helper/backend/tilebuilder/pkg/config"
	"github.com/jaennil/guide_helper/backend/tilebuilder/pkg/logger"
)

// ErrConfig marks problems found before any tileset work started. Nothing
// in the cache directory has been touched when it is returned.
var ErrConfig = errors.New("invalid build configuration")

// Job is one cache build: prepare the cache directory, load the manifest,
// purge the old cache, then run every tileset through the processor.
type Job struct {
	cacheDir string
	storeCfg cache.Config
	opts     usecase.ProcessorOptions

	provider manifest.Provider
	renderer renderer.TileRenderer
	progress *usecase.Progress
	logger   logger.Logger

	mu     sync.RWMutex
	phase  string
	err    error
	report *usecase.BuildReport
	store  cache.TileCache
}

func NewJob(cfg *config.Config, provider manifest.Provider, r renderer.TileRenderer, l logger.Logger) *Job {
	progress := usecase.NewProgress()

	return &Job{
		cacheDir: cfg.Cache.Dir,
		storeCfg: cache.Config{
			Type: cfg.Cache.Type,
			Dir:  cfg.Cache.Dir,
			Redis: cache.RedisConfig{
				Addr:     cfg.Cache.Redis.Addr,
				Password: cfg.Cache.Redis.Password,
				DB:       cfg.Cache.Redis.DB,
			},
		},
		opts: usecase.ProcessorOptions{
			Concurrency: cfg.Build.Workers(),
			FailFast:    cfg.Build.FailFast,
			Progress:    progress,
		},
		provider: provider,
		renderer: r,
		progress: progress,
		logger:   l,
		phase:    usecase.PhasePending,
	}
}

// Run performs the build. A returned error means the build never started
// or could not open its store; otherwise the report describes every
// tileset, including cancelled ones. The store stays open for lookups
// until Close.
func (j *Job) Run(ctx context.Context) (*usecase.BuildReport, error) {
	j.setPhase(usecase.PhasePreparing, nil)

	if err := prepareCacheDir(j.cacheDir); err != nil {
		return nil, j.fail(fmt.Errorf("%w: %w", ErrConfig, err))
	}

	// the manifest is loaded before purging so a broken manifest leaves
	// the previous cache in place
	tilesets, err := j.provider.Tilesets(ctx)
	if err != nil {
		return nil, j.fail(fmt.Errorf("%w: %w", ErrConfig, err))
	}

	report := usecase.NewBuildReport(tilesets)
	j.mu.Lock()
	j.report = report
	j.mu.Unlock()

	j.logger.Info("purging cache", "dir", j.cacheDir)
	if err := cache.Purge(j.cacheDir); err != nil {
		return nil, j.fail(fmt.Errorf("failed to purge cache: %w", err))
	}

	store, err := cache.NewTileCache(j.storeCfg, j.logger)
	if err != nil {
		return nil, j.fail(fmt.Errorf("failed to open cache store: %w", err))
	}

	if clearer, ok := store.(cache.Clearer); ok {
		if err := clearer.Clear(ctx); err != nil {
			store.Close()
			return nil, j.fail(fmt.Errorf("failed to clear cache store: %w", err))
		}
	}

	j.mu.Lock()
	j.store = store
	j.phase = usecase.PhaseBuilding
	j.mu.Unlock()

	processor := usecase.NewProcessor(store, j.renderer, j.opts, j.logger)
	processor.Execute(ctx, report, tilesets)

	if ctx.Err() != nil {
		j.setPhase(usecase.PhaseCancelled, nil)
	} else {
		j.setPhase(usecase.PhaseDone, nil)
	}

	return report, nil
}

func (j *Job) Progress() *usecase.Progress {
	return j.progress
}

func (j *Job) Status() usecase.BuildStatus {
	j.mu.RLock()
	defer j.mu.RUnlock()

	s := usecase.BuildStatus{
		Phase:    j.phase,
		Progress: j.progress.Snapshot(),
	}
	if j.report != nil {
		snapshot := j.report.Snapshot()
		s.Report = &snapshot
	}
	if j.err != nil {
		s.Error = j.err.Error()
	}
	return s
}

// Tile reads one tile from the store the build writes to.
func (j *Job) Tile(ctx context.Context, c tile.Coord) ([]byte, bool, error) {
	j.mu.RLock()
	store := j.store
	j.mu.RUnlock()

	if store == nil {
		return nil, false, usecase.ErrStoreNotReady
	}
	return store.Get(ctx, c)
}

func (j *Job) Close() error {
	j.mu.Lock()
	store := j.store
	j.store = nil
	j.mu.Unlock()

	if store == nil {
		return nil
	}
	return store.Close()
}

func (j *Job) setPhase(phase string, err error) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.phase = phase
	j.err = err
}

func (j *Job) fail(err error) error {
	j.setPhase(usecase.PhaseFailed, err)
	return err
}

// prepareCacheDir creates the cache directory when missing and checks that
// it is writable.
func prepareCacheDir(dir string) error {
	if dir == "" {
		return errors.New("cache directory is not set")
	}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("cannot create cache directory: %w", err)
	}

	probe, err := os.CreateTemp(dir, ".write-probe-*")
	if err != nil {
		return fmt.Errorf("cache directory is not writable: %w", err)
	}
	probe.Close()

	return os.Remove(probe.Name())
}
