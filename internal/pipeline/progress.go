package pipeline

import (
	"log"
	"sync"
	"time"

	"github.com/codesweep/codesweep/internal/model"
	"github.com/codesweep/codesweep/internal/store"
)

// Span is one phase's slice of the 0-100 progress scale.
type Span struct {
	Start int
	End   int
}

// width of the span in progress points.
func (s Span) width() int { return s.End - s.Start }

// Spans fixes how the overall scale is divided between phases. The defaults
// leave room below Security.Start for scan startup and reserve 100 for the
// terminal COMPLETED update.
type Spans struct {
	Starting    int
	Security    Span
	Quality     Span
	Performance Span
	Dependency  Span
	Report      Span
}

func DefaultSpans() Spans {
	return Spans{
		Starting:    5,
		Security:    Span{10, 40},
		Quality:     Span{40, 60},
		Performance: Span{60, 80},
		Dependency:  Span{80, 90},
		Report:      Span{90, 95},
	}
}

// ProgressFunc receives live progress for a subscribed scan.
type ProgressFunc func(scanID uint, progress int, status model.ScanStatus, message string)

// SnapshotCache is the optional fast path the tracker writes progress to so
// the polling API can skip the database. Writes are best-effort.
type SnapshotCache interface {
	SetProgress(scanID uint, progress int, status model.ScanStatus) error
}

// Tracker persists scan progress and fans it out to at most one in-process
// subscriber per scan. It is an explicit object, not process-global state;
// the orchestrator clears a scan's subscription once the scan is terminal.
// Persistence and cache failures are logged, never propagated: progress
// reporting must not abort a pipeline.
type Tracker struct {
	store store.Store
	cache SnapshotCache

	mu   sync.Mutex
	subs map[uint]ProgressFunc
}

func NewTracker(st store.Store, cache SnapshotCache) *Tracker {
	return &Tracker{
		store: st,
		cache: cache,
		subs:  make(map[uint]ProgressFunc),
	}
}

// Subscribe registers the callback for a scan, replacing any previous one.
func (t *Tracker) Subscribe(scanID uint, fn ProgressFunc) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.subs[scanID] = fn
}

func (t *Tracker) Unsubscribe(scanID uint) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.subs, scanID)
}

// Update records a new progress value for the scan. Callers feed values from
// increasing, non-overlapping spans, so the persisted sequence is
// non-decreasing while the scan runs.
func (t *Tracker) Update(scanID uint, progress int, status model.ScanStatus, message string) {
	if progress < 0 {
		progress = 0
	}
	if progress > 100 {
		progress = 100
	}

	err := t.store.UpdateScan(scanID, map[string]interface{}{"progress": progress})
	if err != nil {
		log.Printf("[progress] scan %d: persist %d%% failed: %v", scanID, progress, err)
	}

	if t.cache != nil {
		if err := t.cache.SetProgress(scanID, progress, status); err != nil {
			log.Printf("[progress] scan %d: cache write failed: %v", scanID, err)
		}
	}

	t.Notify(scanID, progress, status, message)
}

// Notify invokes the scan's subscriber, if any, without touching
// persistence.
func (t *Tracker) Notify(scanID uint, progress int, status model.ScanStatus, message string) {
	t.mu.Lock()
	fn := t.subs[scanID]
	t.mu.Unlock()
	if fn != nil {
		fn(scanID, progress, status, message)
	}
}

// interpolate maps file index i of n onto the span. The value for the last
// file is the span's upper bound, so a phase that finishes always reaches
// its declared end.
func interpolate(s Span, i, n int) int {
	if n <= 0 {
		return s.End
	}
	return s.Start + (i+1)*s.width()/n
}

// sleepDelay is the tunable inter-file pause that makes progress visibly
// increment for a polling UI. Not load-bearing.
func sleepDelay(d time.Duration) {
	if d > 0 {
		time.Sleep(d)
	}
}
