package usecase

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/jaennil/guide_helper/backend/tilebuilder/pkg/logger"
	"github.com/jaennil/guide_helper/backend/tilebuilder/pkg/metrics"
)

// Progress counts build work across all workers without locking. A nil
// *Progress is valid and counts nothing.
type Progress struct {
	rows          atomic.Int64
	tilesetsDone  atomic.Int64
	tilesetsTotal atomic.Int64
}

type ProgressSnapshot struct {
	Rows          int64 `json:"rows"`
	TilesetsDone  int64 `json:"tilesets_done"`
	TilesetsTotal int64 `json:"tilesets_total"`
}

func NewProgress() *Progress {
	return &Progress{}
}

func (p *Progress) AddRows(n int) {
	if p == nil {
		return
	}
	rows := p.rows.Add(int64(n))
	metrics.RowsGenerated.Set(float64(rows))
}

func (p *Progress) SetTotal(n int) {
	if p == nil {
		return
	}
	p.tilesetsTotal.Store(int64(n))
}

func (p *Progress) TilesetDone() {
	if p == nil {
		return
	}
	p.tilesetsDone.Add(1)
}

func (p *Progress) Snapshot() ProgressSnapshot {
	if p == nil {
		return ProgressSnapshot{}
	}
	return ProgressSnapshot{
		Rows:          p.rows.Load(),
		TilesetsDone:  p.tilesetsDone.Load(),
		TilesetsTotal: p.tilesetsTotal.Load(),
	}
}

// Log writes a progress line every interval until ctx is done.
func (p *Progress) Log(ctx context.Context, interval time.Duration, l logger.Logger) {
	if p == nil || interval <= 0 {
		return
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s := p.Snapshot()
			l.Info("build progress",
				"rows", s.Rows,
				"tilesets_done", s.TilesetsDone,
				"tilesets_total", s.TilesetsTotal,
			)
		}
	}
}
