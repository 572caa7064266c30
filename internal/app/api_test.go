package app

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/jaennil/guide_helper/backend/tilebuilder/internal/repository/cache"
	"github.com/jaennil/guide_helper/backend/tilebuilder/internal/tile"
	"github.com/jaennil/guide_helper/backend/tilebuilder/pkg/config"
	"github.com/jaennil/guide_helper/backend/tilebuilder/pkg/logger"
	"github.com/klauspost/compress/gzip"
)

const testManifest = `
tilesets:
  - name: parks
    bounds: [-80, 10, -10, 60]
    minzoom: 2
    maxzoom: 3
  - name: empty
    minzoom: 0
    maxzoom: 3
`

func newUpstream(t *testing.T) *httptest.Server {
	t.Helper()

	tiles := map[string]string{
		"/parks/2/1/1": "tile 2/1/1",
		"/parks/3/2/2": "tile 3/2/2",
	}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, ok := tiles[r.URL.Path]
		if !ok {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func runConfig(t *testing.T, upstreamURL string) *config.Config {
	t.Helper()

	dir := t.TempDir()
	manifestPath := filepath.Join(dir, "tilesets.yaml")
	if err := os.WriteFile(manifestPath, []byte(testManifest), 0o644); err != nil {
		t.Fatal(err)
	}

	return &config.Config{
		Cache: config.Cache{Dir: filepath.Join(dir, "cache"), Type: cache.TypeSQLite},
		Build: config.Build{
			Manifest:         manifestPath,
			Concurrency:      2,
			ProgressInterval: time.Hour,
		},
		Renderer: config.Renderer{
			UpstreamURL: upstreamURL,
			PathPattern: "/{tileset}/{z}/{x}/{y}",
			Timeout:     5 * time.Second,
			Gzip:        true,
		},
	}
}

func TestRunBuildsCacheFromUpstream(t *testing.T) {
	cfg := runConfig(t, newUpstream(t).URL)

	if err := run(context.Background(), cfg, logger.NewNop()); err != nil {
		t.Fatalf("run: %v", err)
	}

	store, err := cache.NewSQLiteCache(cfg.Cache.Dir, logger.NewNop())
	if err != nil {
		t.Fatalf("NewSQLiteCache: %v", err)
	}
	defer store.Close()

	ctx := context.Background()
	if n, _ := store.Count(ctx, "parks"); n != 2 {
		t.Errorf("parks rows = %d, want 2", n)
	}

	data, found, err := store.Get(ctx, tile.New("parks", 3, 2, 2))
	if err != nil || !found {
		t.Fatalf("Get = (%v, %v)", found, err)
	}
	zr, err := gzip.NewReader(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("stored tile is not gzipped: %v", err)
	}
	plain, _ := io.ReadAll(zr)
	if string(plain) != "tile 3/2/2" {
		t.Errorf("tile = %q, want %q", plain, "tile 3/2/2")
	}
}

func TestRunMissingManifest(t *testing.T) {
	cfg := runConfig(t, newUpstream(t).URL)
	cfg.Build.Manifest = filepath.Join(t.TempDir(), "missing.yaml")

	if err := run(context.Background(), cfg, logger.NewNop()); !errors.Is(err, ErrConfig) {
		t.Errorf("err = %v, want ErrConfig", err)
	}
}
