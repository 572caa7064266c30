package cache

import (
	"context"
	"errors"
	"os"
	"testing"

	"github.com/jaennil/guide_helper/backend/tilebuilder/internal/tile"
	"github.com/jaennil/guide_helper/backend/tilebuilder/pkg/logger"
)

// testBackends lists every backend the contract runs against. Redis joins
// when TEST_REDIS_ADDR points at a server whose db 15 may be wiped.
func testBackends(t *testing.T) []Config {
	backends := []Config{
		{Type: TypeSQLite},
		{Type: TypeMemory},
		{Type: TypeFilesystem},
	}
	if addr := os.Getenv("TEST_REDIS_ADDR"); addr != "" {
		backends = append(backends, Config{Type: TypeRedis, Redis: RedisConfig{Addr: addr, DB: 15}})
	} else {
		t.Log("TEST_REDIS_ADDR not set, skipping redis backend")
	}
	return backends
}

func TestBackendsShareContract(t *testing.T) {
	for _, cfg := range testBackends(t) {
		t.Run(cfg.Type, func(t *testing.T) {
			ctx := context.Background()
			cfg.Dir = t.TempDir()
			c, err := NewTileCache(cfg, logger.NewNop())
			if err != nil {
				t.Fatalf("NewTileCache(%s): %v", cfg.Type, err)
			}
			defer c.Close()

			if clearer, ok := c.(Clearer); ok {
				if err := clearer.Clear(ctx); err != nil {
					t.Fatalf("Clear: %v", err)
				}
			}

			rows := []Row{
				{Key: tile.New("parks", 2, 1, 1), Data: []byte("a")},
				{Key: tile.New("parks", 3, 2, 2), Data: []byte("b")},
			}
			if err := c.InsertBatch(ctx, rows); err != nil {
				t.Fatalf("InsertBatch: %v", err)
			}

			data, found, err := c.Get(ctx, rows[1].Key)
			if err != nil || !found || string(data) != "b" {
				t.Errorf("Get = (%q, %v, %v), want (b, true, nil)", data, found, err)
			}

			_, found, err = c.Get(ctx, tile.New("parks", 3, 3, 3))
			if err != nil || found {
				t.Errorf("Get(missing) = (%v, %v), want (false, nil)", found, err)
			}

			err = c.InsertBatch(ctx, []Row{
				{Key: tile.New("parks", 3, 3, 3), Data: []byte("c")},
				{Key: rows[0].Key, Data: []byte("dup")},
			})
			if !errors.Is(err, ErrDuplicateTile) {
				t.Fatalf("InsertBatch duplicate: err = %v, want ErrDuplicateTile", err)
			}
			if n, _ := c.Count(ctx, "parks"); n != 2 {
				t.Errorf("Count = %d, want 2", n)
			}

			if err := c.InsertOne(ctx, rows[0].Key, []byte("again")); !errors.Is(err, ErrDuplicateTile) {
				t.Errorf("InsertOne duplicate: err = %v, want ErrDuplicateTile", err)
			}
		})
	}
}

func TestNewTileCacheUnknownType(t *testing.T) {
	if _, err := NewTileCache(Config{Type: "postgres", Dir: t.TempDir()}, logger.NewNop()); err == nil {
		t.Error("NewTileCache(postgres): expected error")
	}
}

func TestFilesystemCacheRejectsPathTileset(t *testing.T) {
	c, err := NewFilesystemCache(t.TempDir(), logger.NewNop())
	if err != nil {
		t.Fatalf("NewFilesystemCache: %v", err)
	}

	err = c.InsertOne(context.Background(), tile.New("../escape", 0, 0, 0), []byte("x"))
	if !errors.Is(err, ErrInvalidKey) {
		t.Errorf("InsertOne: err = %v, want ErrInvalidKey", err)
	}
}

func TestEscapeGlob(t *testing.T) {
	tests := map[string]string{
		"parks":      "parks",
		"a*b":        `a\*b`,
		"[x]?":       `\[x\]\?`,
		`back\slash`: `back\\slash`,
	}
	for in, want := range tests {
		if got := escapeGlob(in); got != want {
			t.Errorf("escapeGlob(%q) = %q, want %q", in, got, want)
		}
	}
}
