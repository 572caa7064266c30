package usecase

import (
	"context"
	"errors"
	"hash/fnv"
	"sync"
	"testing"

	"github.com/jaennil/guide_helper/backend/tilebuilder/internal/renderer"
	"github.com/jaennil/guide_helper/backend/tilebuilder/internal/tile"
	"github.com/jaennil/guide_helper/backend/tilebuilder/pkg/logger"
)

// recordingRenderer serves content for the tiles in full, fails the tiles in
// failing, and reports every other tile as empty.
type recordingRenderer struct {
	mu      sync.Mutex
	full    map[tile.Coord]bool
	failing map[tile.Coord]error
	visited []tile.Coord
}

func newRecordingRenderer(full ...tile.Coord) *recordingRenderer {
	r := &recordingRenderer{
		full:    make(map[tile.Coord]bool),
		failing: make(map[tile.Coord]error),
	}
	for _, c := range full {
		r.full[c] = true
	}
	return r
}

func (r *recordingRenderer) Render(_ context.Context, c tile.Coord) ([]byte, bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.visited = append(r.visited, c)
	if err, ok := r.failing[c]; ok {
		return nil, false, err
	}
	if r.full[c] {
		return []byte(c.String()), true, nil
	}
	return nil, false, nil
}

func rowKeys(res ExpandResult) map[tile.Coord]bool {
	m := make(map[tile.Coord]bool, len(res.Rows))
	for _, r := range res.Rows {
		m[r.Key] = true
	}
	return m
}

func TestExpandPrunesEmptyBranches(t *testing.T) {
	seed := tile.New("parks", 2, 1, 1)
	child := tile.New("parks", 3, 2, 2)
	r := newRecordingRenderer(seed, child)

	res, err := NewExpander(r, nil, false, logger.NewNop()).Expand(context.Background(), seed, 3)
	if err != nil {
		t.Fatalf("Expand: %v", err)
	}

	got := rowKeys(res)
	if len(res.Rows) != 2 || !got[seed] || !got[child] {
		t.Errorf("rows = %v, want exactly {%s, %s}", res.Rows, seed, child)
	}
	if res.Visited != 5 {
		t.Errorf("Visited = %d, want 5", res.Visited)
	}
	if res.Pruned != 3 {
		t.Errorf("Pruned = %d, want 3", res.Pruned)
	}
	for _, v := range r.visited {
		if v.Z > 3 {
			t.Errorf("visited %s beyond maxzoom", v)
		}
	}
	if string(res.Rows[0].Data) == "" {
		t.Error("row payload is empty")
	}
}

func TestExpandStopsAtMaxZoom(t *testing.T) {
	seed := tile.New("full", 1, 0, 0)
	r := renderer.Func(func(_ context.Context, c tile.Coord) ([]byte, bool, error) {
		return []byte{1}, true, nil
	})

	res, err := NewExpander(r, nil, false, logger.NewNop()).Expand(context.Background(), seed, 3)
	if err != nil {
		t.Fatalf("Expand: %v", err)
	}
	// 1 + 4 + 16 tiles from z1 down to z3
	if len(res.Rows) != 21 {
		t.Errorf("len(rows) = %d, want 21", len(res.Rows))
	}
}

func TestExpandSeedBelowMaxZoom(t *testing.T) {
	r := newRecordingRenderer()

	res, err := NewExpander(r, nil, false, logger.NewNop()).Expand(context.Background(), tile.New("a", 5, 0, 0), 4)
	if err != nil {
		t.Fatalf("Expand: %v", err)
	}
	if len(res.Rows) != 0 || len(r.visited) != 0 {
		t.Errorf("rows = %v, visited = %v, want nothing", res.Rows, r.visited)
	}
}

func TestExpandInvalidSeed(t *testing.T) {
	_, err := NewExpander(newRecordingRenderer(), nil, false, logger.NewNop()).
		Expand(context.Background(), tile.New("a", 1, 2, 0), 3)
	if !errors.Is(err, ErrInvalidSeed) {
		t.Errorf("err = %v, want ErrInvalidSeed", err)
	}
}

func TestExpandRenderErrorIsWarning(t *testing.T) {
	seed := tile.New("parks", 1, 0, 0)
	broken := tile.New("parks", 2, 0, 0)
	ok := tile.New("parks", 2, 1, 1)

	r := newRecordingRenderer(seed, broken, ok, tile.New("parks", 3, 0, 0))
	renderErr := errors.New("upstream timeout")
	r.failing[broken] = renderErr

	res, err := NewExpander(r, nil, false, logger.NewNop()).Expand(context.Background(), seed, 3)
	if err != nil {
		t.Fatalf("Expand: %v", err)
	}

	got := rowKeys(res)
	if !got[seed] || !got[ok] {
		t.Errorf("rows = %v, want seed and %s", res.Rows, ok)
	}
	if got[broken] || got[tile.New("parks", 3, 0, 0)] {
		t.Errorf("rows = %v, failed branch must be omitted", res.Rows)
	}

	if len(res.Warnings) != 1 {
		t.Fatalf("warnings = %v, want 1", res.Warnings)
	}
	var re *RenderError
	if !errors.As(res.Warnings[0], &re) || re.Coord != broken || !errors.Is(re, renderErr) {
		t.Errorf("warning = %v, want RenderError for %s", res.Warnings[0], broken)
	}
}

func TestExpandFailFast(t *testing.T) {
	seed := tile.New("parks", 1, 0, 0)
	broken := tile.New("parks", 2, 1, 0)

	r := newRecordingRenderer(seed)
	r.failing[broken] = errors.New("boom")

	_, err := NewExpander(r, nil, true, logger.NewNop()).Expand(context.Background(), seed, 3)

	var re *RenderError
	if !errors.As(err, &re) || re.Coord != broken {
		t.Errorf("err = %v, want RenderError for %s", err, broken)
	}
}

func TestExpandCancelledBetweenTiles(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	rendered := 0
	r := renderer.Func(func(_ context.Context, c tile.Coord) ([]byte, bool, error) {
		rendered++
		if rendered == 3 {
			cancel()
		}
		return []byte{1}, true, nil
	})

	res, err := NewExpander(r, nil, false, logger.NewNop()).Expand(ctx, tile.New("deep", 0, 0, 0), 10)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v, want context.Canceled", err)
	}
	if rendered != 3 {
		t.Errorf("rendered %d tiles after cancel, want 3", rendered)
	}
	if len(res.Rows) != 3 {
		t.Errorf("len(rows) = %d, want 3", len(res.Rows))
	}
}

func TestExpandRendererObservesCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())

	r := renderer.Func(func(ctx context.Context, c tile.Coord) ([]byte, bool, error) {
		cancel()
		return nil, false, ctx.Err()
	})

	res, err := NewExpander(r, nil, false, logger.NewNop()).Expand(ctx, tile.New("a", 0, 0, 0), 2)
	if !errors.Is(err, context.Canceled) {
		t.Errorf("err = %v, want context.Canceled", err)
	}
	if len(res.Warnings) != 0 {
		t.Errorf("warnings = %v, cancellation is not a render error", res.Warnings)
	}
}

// pseudoRandomRenderer decides content by hashing the tile so the tree
// shape is irregular but reproducible.
func pseudoRandomRenderer(_ context.Context, c tile.Coord) ([]byte, bool, error) {
	h := fnv.New32a()
	h.Write([]byte(c.String()))
	if h.Sum32()%3 == 0 {
		return nil, false, nil
	}
	return []byte(c.String()), true, nil
}

func TestExpandContainmentAndPruning(t *testing.T) {
	var mu sync.Mutex
	empty := make(map[tile.Coord]bool)
	r := renderer.Func(func(ctx context.Context, c tile.Coord) ([]byte, bool, error) {
		data, ok, err := pseudoRandomRenderer(ctx, c)
		if !ok {
			mu.Lock()
			empty[c] = true
			mu.Unlock()
		}
		return data, ok, err
	})

	seed := tile.New("irregular", 2, 1, 2)
	const maxZoom = 7

	res, err := NewExpander(r, nil, false, logger.NewNop()).Expand(context.Background(), seed, maxZoom)
	if err != nil {
		t.Fatalf("Expand: %v", err)
	}
	if len(res.Rows) == 0 {
		t.Fatal("expected some rows")
	}

	got := rowKeys(res)
	if len(got) != len(res.Rows) {
		t.Errorf("duplicate rows: %d rows, %d unique", len(res.Rows), len(got))
	}

	for k := range got {
		if k.Z < seed.Z || k.Z > maxZoom {
			t.Errorf("row %s outside zoom range [%d, %d]", k, seed.Z, maxZoom)
		}
		if k == seed {
			continue
		}
		if !got[k.Parent()] {
			t.Errorf("row %s has no parent row %s", k, k.Parent())
		}
		for a := k.Parent(); a.Z >= seed.Z; a = a.Parent() {
			if empty[a] {
				t.Errorf("row %s descends from empty tile %s", k, a)
			}
		}
	}
}

func TestExpandReportsProgress(t *testing.T) {
	p := NewProgress()
	r := renderer.Func(func(_ context.Context, c tile.Coord) ([]byte, bool, error) {
		return []byte{1}, true, nil
	})

	res, err := NewExpander(r, p, false, logger.NewNop()).Expand(context.Background(), tile.New("a", 0, 0, 0), 2)
	if err != nil {
		t.Fatalf("Expand: %v", err)
	}
	if got := p.Snapshot().Rows; got != int64(len(res.Rows)) || got != 21 {
		t.Errorf("progress rows = %d, want 21", got)
	}
}
