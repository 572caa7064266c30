package renderer

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/jaennil/guide_helper/backend/tilebuilder/internal/tile"
	"github.com/jaennil/guide_helper/backend/tilebuilder/pkg/logger"
	"github.com/klauspost/compress/gzip"
)

func TestUpstreamRendererStatusMapping(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/parks/2/1/1.pbf":
			if r.Header.Get("User-Agent") != "test-agent" {
				w.WriteHeader(http.StatusForbidden)
				return
			}
			w.Write([]byte("tile"))
		case "/parks/3/3/3.pbf":
			w.WriteHeader(http.StatusNoContent)
		case "/parks/3/2/3.pbf":
			w.WriteHeader(http.StatusInternalServerError)
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	r := NewUpstreamRenderer(UpstreamConfig{
		BaseURL:     srv.URL + "/",
		PathPattern: "/{tileset}/{z}/{x}/{y}.pbf",
		UserAgent:   "test-agent",
	}, logger.NewNop())

	tests := []struct {
		name    string
		coord   tile.Coord
		data    string
		content bool
		wantErr bool
	}{
		{"ok", tile.New("parks", 2, 1, 1), "tile", true, false},
		{"no content", tile.New("parks", 3, 3, 3), "", false, false},
		{"not found", tile.New("parks", 3, 2, 2), "", false, false},
		{"server error", tile.New("parks", 3, 2, 3), "", false, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data, ok, err := r.Render(context.Background(), tt.coord)
			if (err != nil) != tt.wantErr {
				t.Fatalf("Render err = %v, wantErr %v", err, tt.wantErr)
			}
			if ok != tt.content {
				t.Errorf("hasContent = %v, want %v", ok, tt.content)
			}
			if string(data) != tt.data {
				t.Errorf("data = %q, want %q", data, tt.data)
			}
		})
	}
}

func TestUpstreamRendererHonoursContext(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("tile"))
	}))
	defer srv.Close()

	r := NewUpstreamRenderer(UpstreamConfig{BaseURL: srv.URL}, logger.NewNop())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, _, err := r.Render(ctx, tile.New("parks", 0, 0, 0)); err == nil {
		t.Error("Render with cancelled context: expected error")
	}
}

func TestGzipRenderer(t *testing.T) {
	inner := Func(func(_ context.Context, c tile.Coord) ([]byte, bool, error) {
		if c.Z > 0 {
			return nil, false, nil
		}
		return []byte("vector tile"), true, nil
	})
	r := NewGzipRenderer(inner)

	data, ok, err := r.Render(context.Background(), tile.New("parks", 0, 0, 0))
	if err != nil || !ok {
		t.Fatalf("Render = (%v, %v), want content", ok, err)
	}

	zr, err := gzip.NewReader(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("gzip.NewReader: %v", err)
	}
	plain, err := io.ReadAll(zr)
	if err != nil {
		t.Fatalf("ReadAll: %v", err)
	}
	if string(plain) != "vector tile" {
		t.Errorf("decompressed = %q, want %q", plain, "vector tile")
	}

	again, _, _ := NewGzipRenderer(Func(func(context.Context, tile.Coord) ([]byte, bool, error) {
		return data, true, nil
	})).Render(context.Background(), tile.New("parks", 0, 0, 0))
	if !bytes.Equal(again, data) {
		t.Error("already compressed payload was compressed twice")
	}

	_, ok, err = r.Render(context.Background(), tile.New("parks", 1, 0, 0))
	if ok || err != nil {
		t.Errorf("empty tile = (%v, %v), want (false, nil)", ok, err)
	}
}
