package usecase

import (
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jaennil/guide_helper/backend/tilebuilder/internal/manifest"
)

// TilesetReport is the outcome of one tileset. Skipped tilesets had no
// geometry; incomplete ones were interrupted by cancellation before their
// rows were committed.
type TilesetReport struct {
	Name       string        `json:"name"`
	RowCount   int           `json:"row_count"`
	Seeds      int           `json:"seeds"`
	Skipped    bool          `json:"skipped"`
	Incomplete bool          `json:"incomplete"`
	Committed  bool          `json:"committed"`
	Done       bool          `json:"done"`
	Errors     []error       `json:"-"`
	Messages   []string      `json:"errors,omitempty"`
	Duration   time.Duration `json:"duration"`
}

// Failed reports whether the tileset ended without a commit for a reason
// other than being empty or cancelled.
func (r *TilesetReport) Failed() bool {
	return r.Done && !r.Committed && !r.Skipped && !r.Incomplete
}

type Summary struct {
	Tilesets   int `json:"tilesets"`
	Committed  int `json:"committed"`
	Skipped    int `json:"skipped"`
	Incomplete int `json:"incomplete"`
	Failed     int `json:"failed"`
	Pending    int `json:"pending"`
	Rows       int `json:"rows"`
	Errors     int `json:"errors"`
}

// BuildReport collects per-tileset outcomes. It is safe for concurrent use;
// readers should work on a Snapshot.
type BuildReport struct {
	mu         sync.Mutex
	BuildID    string                    `json:"build_id"`
	StartedAt  time.Time                 `json:"started_at"`
	FinishedAt time.Time                 `json:"finished_at"`
	Tilesets   map[string]*TilesetReport `json:"tilesets"`
}

func NewBuildReport(tilesets []manifest.Tileset) *BuildReport {
	r := &BuildReport{
		BuildID:   uuid.NewString(),
		StartedAt: time.Now(),
		Tilesets:  make(map[string]*TilesetReport, len(tilesets)),
	}
	for _, ts := range tilesets {
		r.Tilesets[ts.Name] = &TilesetReport{Name: ts.Name}
	}
	return r
}

func (r *BuildReport) update(name string, fn func(*TilesetReport)) {
	r.mu.Lock()
	defer r.mu.Unlock()

	tr, ok := r.Tilesets[name]
	if !ok {
		tr = &TilesetReport{Name: name}
		r.Tilesets[name] = tr
	}
	fn(tr)
}

func (r *BuildReport) finish() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.FinishedAt = time.Now()
}

// Tileset returns a copy of one tileset's report.
func (r *BuildReport) Tileset(name string) (TilesetReport, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	tr, ok := r.Tilesets[name]
	if !ok {
		return TilesetReport{}, false
	}
	return copyTilesetReport(tr), true
}

func (r *BuildReport) Summary() Summary {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.summaryLocked()
}

func (r *BuildReport) summaryLocked() Summary {
	s := Summary{Tilesets: len(r.Tilesets)}
	for _, tr := range r.Tilesets {
		switch {
		case !tr.Done:
			s.Pending++
		case tr.Committed:
			s.Committed++
		case tr.Skipped:
			s.Skipped++
		case tr.Incomplete:
			s.Incomplete++
		default:
			s.Failed++
		}
		if tr.Committed {
			s.Rows += tr.RowCount
		}
		s.Errors += len(tr.Errors)
	}
	return s
}

type ReportSnapshot struct {
	BuildID    string          `json:"build_id"`
	StartedAt  time.Time       `json:"started_at"`
	FinishedAt *time.Time      `json:"finished_at,omitempty"`
	Summary    Summary         `json:"summary"`
	Tilesets   []TilesetReport `json:"tilesets"`
}

// Snapshot copies the report for serialization, tilesets sorted by name.
// The summary always agrees with the copied tilesets.
func (r *BuildReport) Snapshot() ReportSnapshot {
	r.mu.Lock()
	defer r.mu.Unlock()

	s := ReportSnapshot{
		BuildID:   r.BuildID,
		StartedAt: r.StartedAt,
		Summary:   r.summaryLocked(),
		Tilesets:  make([]TilesetReport, 0, len(r.Tilesets)),
	}
	if !r.FinishedAt.IsZero() {
		finished := r.FinishedAt
		s.FinishedAt = &finished
	}
	for _, tr := range r.Tilesets {
		s.Tilesets = append(s.Tilesets, copyTilesetReport(tr))
	}
	sort.Slice(s.Tilesets, func(i, j int) bool {
		return s.Tilesets[i].Name < s.Tilesets[j].Name
	})
	return s
}

func copyTilesetReport(tr *TilesetReport) TilesetReport {
	c := *tr
	c.Errors = append([]error(nil), tr.Errors...)
	c.Messages = make([]string, 0, len(tr.Errors))
	for _, err := range tr.Errors {
		c.Messages = append(c.Messages, err.Error())
	}
	return c
}
