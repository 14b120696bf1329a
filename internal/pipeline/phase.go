package pipeline

import (
	"context"
	"errors"
	"log"
	"time"

	"github.com/codesweep/codesweep/internal/detector"
	"github.com/codesweep/codesweep/internal/model"
	"github.com/codesweep/codesweep/internal/store"
)

// ErrCancelled is returned by a phase when cancellation is observed at a
// file boundary. Findings buffered up to that point are flushed first.
var ErrCancelled = errors.New("scan cancelled")

// DefaultBatchSize is how many findings go into one persistence write.
const DefaultBatchSize = 10

// MaxFileBytes is the content ceiling above which a file is skipped rather
// than analyzed. Skipping is logged so it is never silently inconsistent.
const MaxFileBytes = 1 << 20

// Phase is a named detector group with its slice of the progress scale.
// Exactly one of Detectors and ProjectDetectors is set: per-file phases
// iterate files, project phases see the file set whole.
type Phase struct {
	Name             string
	Span             Span
	Detectors        []detector.Detector
	ProjectDetectors []detector.ProjectDetector
}

// Runner executes phases for one scan. Files are processed strictly in
// order; findings are buffered and flushed in fixed-size batches.
type Runner struct {
	store     store.Store
	tracker   *Tracker
	batchSize int
	fileDelay time.Duration
}

func NewRunner(st store.Store, tracker *Tracker, batchSize int, fileDelay time.Duration) *Runner {
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}
	return &Runner{store: st, tracker: tracker, batchSize: batchSize, fileDelay: fileDelay}
}

// RunPhase evaluates every detector of the phase against every file, updates
// progress per file, and persists accumulated findings in batches. A
// detector failure on one file is logged and the loop continues; only
// cancellation stops the phase early, and even then the buffer is flushed.
// Returns the number of findings handed to the store.
func (r *Runner) RunPhase(ctx context.Context, scan *model.Scan, files []model.ProjectFile, ph Phase) (int, error) {
	var buffer []model.Finding

	if len(ph.ProjectDetectors) > 0 {
		buffer = r.runProjectDetectors(scan, files, ph)
	} else {
		for i, pf := range files {
			if err := r.checkCancelled(ctx, scan.ID); err != nil {
				r.flush(scan.ID, buffer)
				return len(buffer), err
			}

			buffer = append(buffer, r.inspectFile(scan, ph, pf)...)
			r.tracker.Update(scan.ID, interpolate(ph.Span, i, len(files)), model.ScanStatusRunning, ph.Name)
			sleepDelay(r.fileDelay)
		}
	}

	r.tracker.Update(scan.ID, ph.Span.End, model.ScanStatusRunning, ph.Name)
	r.flush(scan.ID, buffer)
	return len(buffer), nil
}

func (r *Runner) inspectFile(scan *model.Scan, ph Phase, pf model.ProjectFile) []model.Finding {
	if pf.Content == "" {
		return nil
	}
	if int64(len(pf.Content)) > MaxFileBytes {
		log.Printf("[%s] scan %d: skipping %s (%d bytes over limit)", ph.Name, scan.ID, pf.Path, len(pf.Content))
		return nil
	}

	file := detector.File{Path: pf.Path, Language: pf.Language, Content: pf.Content}
	var out []model.Finding
	for _, d := range ph.Detectors {
		for _, f := range detector.SafeInspect(d, file) {
			f.ScanID = scan.ID
			f.ProjectID = scan.ProjectID
			out = append(out, f)
		}
	}
	return out
}

func (r *Runner) runProjectDetectors(scan *model.Scan, files []model.ProjectFile, ph Phase) []model.Finding {
	dfiles := make([]detector.File, 0, len(files))
	for _, pf := range files {
		dfiles = append(dfiles, detector.File{Path: pf.Path, Language: pf.Language, Content: pf.Content})
	}

	var out []model.Finding
	for _, d := range ph.ProjectDetectors {
		for _, f := range detector.SafeInspectProject(d, dfiles) {
			f.ScanID = scan.ID
			f.ProjectID = scan.ProjectID
			out = append(out, f)
		}
	}
	return out
}

// flush writes the buffered findings in batches. A failed batch is logged
// and dropped; later batches are still attempted.
func (r *Runner) flush(scanID uint, findings []model.Finding) {
	for start := 0; start < len(findings); start += r.batchSize {
		end := start + r.batchSize
		if end > len(findings) {
			end = len(findings)
		}
		if err := r.store.CreateFindings(findings[start:end]); err != nil {
			log.Printf("[findings] scan %d: batch %d-%d dropped: %v", scanID, start, end, err)
		}
	}
}

// checkCancelled looks for cooperative cancellation: either the worker's
// context is done or the scan row was flipped to CANCELLED from outside.
func (r *Runner) checkCancelled(ctx context.Context, scanID uint) error {
	select {
	case <-ctx.Done():
		return ErrCancelled
	default:
	}
	status, err := r.store.GetScanStatus(scanID)
	if err != nil {
		// Status poll is advisory; a read failure must not kill the scan.
		log.Printf("[phase] scan %d: status poll failed: %v", scanID, err)
		return nil
	}
	if status == model.ScanStatusCancelled {
		return ErrCancelled
	}
	return nil
}
