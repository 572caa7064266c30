package cache

import (
	"context"
	"math/rand"
	"testing"

	"github.com/jaennil/guide_helper/backend/tilebuilder/internal/tile"
	"github.com/jaennil/guide_helper/backend/tilebuilder/pkg/logger"
)

const (
	smallTileSize = 1024      // 1KB
	largeTileSize = 50 * 1024 // 50KB
	batchSize     = 1000
)

func generateTileData(size int) []byte {
	data := make([]byte, size)
	rand.Read(data)
	return data
}

// batchKey spreads i over zoom 16 so keys stay valid and unique.
func batchKey(i int) TileCacheKey {
	return tile.New("bench", 16, uint32(i%65536), uint32(i/65536%65536))
}

func setupBenchCache(b *testing.B, cacheType string) TileCache {
	b.Helper()
	c, err := NewTileCache(Config{Type: cacheType, Dir: b.TempDir()}, logger.NewNop())
	if err != nil {
		b.Fatalf("Failed to create %s cache: %v", cacheType, err)
	}
	b.Cleanup(func() { c.Close() })
	return c
}

func benchmarkInsertBatch(b *testing.B, cacheType string, size int) {
	c := setupBenchCache(b, cacheType)
	data := generateTileData(size)
	ctx := context.Background()

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		rows := make([]Row, batchSize)
		for j := range rows {
			rows[j] = Row{Key: batchKey(i*batchSize + j), Data: data}
		}
		b.StartTimer()
		if err := c.InsertBatch(ctx, rows); err != nil {
			b.Fatalf("InsertBatch failed: %v", err)
		}
		b.StopTimer()
	}
}

func BenchmarkInsertBatch_SQLite_Small(b *testing.B) { benchmarkInsertBatch(b, TypeSQLite, smallTileSize) }
func BenchmarkInsertBatch_SQLite_Large(b *testing.B) { benchmarkInsertBatch(b, TypeSQLite, largeTileSize) }
func BenchmarkInsertBatch_Map_Small(b *testing.B)    { benchmarkInsertBatch(b, TypeMemory, smallTileSize) }

func benchmarkGet(b *testing.B, cacheType string) {
	c := setupBenchCache(b, cacheType)
	data := generateTileData(smallTileSize)
	ctx := context.Background()

	rows := make([]Row, 100)
	for i := range rows {
		rows[i] = Row{Key: batchKey(i), Data: data}
	}
	if err := c.InsertBatch(ctx, rows); err != nil {
		b.Fatalf("InsertBatch failed: %v", err)
	}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, _, err := c.Get(ctx, batchKey(i%100)); err != nil {
			b.Fatalf("Get failed: %v", err)
		}
	}
}

func BenchmarkGet_SQLite(b *testing.B)     { benchmarkGet(b, TypeSQLite) }
func BenchmarkGet_Map(b *testing.B)        { benchmarkGet(b, TypeMemory) }
func BenchmarkGet_Filesystem(b *testing.B) { benchmarkGet(b, TypeFilesystem) }

func BenchmarkConcurrentGet_SQLite(b *testing.B) {
	c := setupBenchCache(b, TypeSQLite)
	data := generateTileData(smallTileSize)
	ctx := context.Background()

	rows := make([]Row, 100)
	for i := range rows {
		rows[i] = Row{Key: batchKey(i), Data: data}
	}
	if err := c.InsertBatch(ctx, rows); err != nil {
		b.Fatalf("InsertBatch failed: %v", err)
	}

	b.RunParallel(func(pb *testing.PB) {
		i := 0
		for pb.Next() {
			c.Get(ctx, batchKey(i%100))
			i++
		}
	})
}
