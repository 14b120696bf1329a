package pipeline

import (
	"context"
	"errors"
	"log"
	"math/rand"
	"time"

	"github.com/codesweep/codesweep/internal/detector"
	"github.com/codesweep/codesweep/internal/model"
	"github.com/codesweep/codesweep/internal/store"
)

// Orchestrator drives one scan through the PENDING -> RUNNING ->
// {COMPLETED|FAILED|CANCELLED} state machine: load inputs, run the phases in
// fixed order, aggregate the report, record the terminal state. Its entry
// point never panics or returns an error; every failure ends up in the scan
// row instead.
type Orchestrator struct {
	store      store.Store
	tracker    *Tracker
	runner     *Runner
	aggregator *Aggregator
	spans      Spans

	// newRand seeds the dependency sampler. One generator per scan keeps
	// concurrent scans from sharing rand state.
	newRand func() *rand.Rand
}

func NewOrchestrator(st store.Store, tracker *Tracker, runner *Runner, agg *Aggregator, spans Spans) *Orchestrator {
	return &Orchestrator{
		store:      st,
		tracker:    tracker,
		runner:     runner,
		aggregator: agg,
		spans:      spans,
		newRand: func() *rand.Rand {
			return rand.New(rand.NewSource(time.Now().UnixNano()))
		},
	}
}

// SetRandFactory replaces the dependency sampler's randomness source. Tests
// pin a fixed seed through this.
func (o *Orchestrator) SetRandFactory(f func() *rand.Rand) {
	o.newRand = f
}

// Run executes the scan end to end. It is the async entry point behind
// startAnalysis: callers fire it in its own goroutine per scan.
func (o *Orchestrator) Run(ctx context.Context, scanID uint) {
	defer o.tracker.Unsubscribe(scanID)

	scan, err := o.store.GetScan(scanID)
	if err != nil {
		log.Printf("[orchestrator] scan %d: not loadable: %v", scanID, err)
		return
	}
	if scan.Status.Terminal() {
		log.Printf("[orchestrator] scan %d: already %s, skipping", scanID, scan.Status)
		return
	}

	files, err := o.store.ListProjectFiles(scan.ProjectID)
	if err != nil {
		o.fail(scan, err)
		return
	}

	// Terminal shortcut: nothing to analyze means the scan is already done.
	// No phase runs and no detector is ever invoked.
	if len(files) == 0 {
		o.complete(scan, "no files to analyze")
		return
	}

	o.start(scan)

	for _, ph := range o.phasesFor(scan) {
		if cancelled := o.cancelRequested(ctx, scan.ID); cancelled {
			o.cancel(scan)
			return
		}
		count, err := o.runner.RunPhase(ctx, scan, files, ph)
		if errors.Is(err, ErrCancelled) {
			o.cancel(scan)
			return
		}
		if err != nil {
			o.fail(scan, err)
			return
		}
		log.Printf("[orchestrator] scan %d: phase %s produced %d findings", scan.ID, ph.Name, count)
	}

	o.tracker.Update(scan.ID, o.spans.Report.Start, model.ScanStatusRunning, "report")
	if _, err := o.aggregator.Persist(scan); err != nil {
		o.fail(scan, err)
		return
	}
	o.tracker.Update(scan.ID, o.spans.Report.End, model.ScanStatusRunning, "report")

	o.complete(scan, "completed")
}

// phasesFor maps the scan type onto the fixed phase order. Single-purpose
// scan types run just their phase; COMPREHENSIVE and CUSTOM run all four.
func (o *Orchestrator) phasesFor(scan *model.Scan) []Phase {
	security := Phase{Name: "security", Span: o.spans.Security, Detectors: detector.SecurityDetectors()}
	quality := Phase{Name: "quality", Span: o.spans.Quality, Detectors: detector.QualityDetectors()}
	performance := Phase{Name: "performance", Span: o.spans.Performance, ProjectDetectors: detector.PerformanceDetectors()}
	dependency := Phase{Name: "dependency", Span: o.spans.Dependency, ProjectDetectors: detector.DependencyDetectors(o.newRand())}

	switch scan.Type {
	case model.ScanTypeSecurity:
		return []Phase{security}
	case model.ScanTypeQuality:
		return []Phase{quality}
	case model.ScanTypePerformance:
		return []Phase{performance}
	default:
		return []Phase{security, quality, performance, dependency}
	}
}

func (o *Orchestrator) start(scan *model.Scan) {
	now := time.Now()
	scan.StartedAt = &now
	err := o.store.UpdateScan(scan.ID, map[string]interface{}{
		"status":     model.ScanStatusRunning,
		"progress":   o.spans.Starting,
		"started_at": now,
		"error":      "",
	})
	if err != nil {
		log.Printf("[orchestrator] scan %d: mark RUNNING failed: %v", scan.ID, err)
	}
	if err := o.store.UpdateProjectStatus(scan.ProjectID, model.ProjectStatusAnalyzing); err != nil {
		log.Printf("[orchestrator] scan %d: project status update failed: %v", scan.ID, err)
	}
	o.tracker.Update(scan.ID, o.spans.Starting, model.ScanStatusRunning, "starting")
}

func (o *Orchestrator) complete(scan *model.Scan, message string) {
	now := time.Now()
	scan.CompletedAt = &now
	err := o.store.UpdateScan(scan.ID, map[string]interface{}{
		"status":       model.ScanStatusCompleted,
		"progress":     100,
		"completed_at": now,
	})
	if err != nil {
		log.Printf("[orchestrator] scan %d: mark COMPLETED failed: %v", scan.ID, err)
	}
	if err := o.store.UpdateProjectStatus(scan.ProjectID, model.ProjectStatusCompleted); err != nil {
		log.Printf("[orchestrator] scan %d: project status update failed: %v", scan.ID, err)
	}
	o.tracker.Update(scan.ID, 100, model.ScanStatusCompleted, message)
}

// fail records the terminal failure. The scan keeps the progress it reached;
// only the status and error message change. Failures to record the failure
// are themselves only logged: this method is the bottom of the error chain.
func (o *Orchestrator) fail(scan *model.Scan, cause error) {
	log.Printf("[orchestrator] scan %d failed: %v", scan.ID, cause)
	err := o.store.UpdateScan(scan.ID, map[string]interface{}{
		"status":       model.ScanStatusFailed,
		"error":        cause.Error(),
		"completed_at": time.Now(),
	})
	if err != nil {
		log.Printf("[orchestrator] scan %d: mark FAILED failed: %v", scan.ID, err)
	}
	if err := o.store.UpdateProjectStatus(scan.ProjectID, model.ProjectStatusFailed); err != nil {
		log.Printf("[orchestrator] scan %d: project status update failed: %v", scan.ID, err)
	}

	if cur, err := o.store.GetScan(scan.ID); err == nil {
		scan.Progress = cur.Progress
	}
	o.tracker.Notify(scan.ID, scan.Progress, model.ScanStatusFailed, cause.Error())
}

// cancel finalizes a cooperatively cancelled scan. Buffered findings were
// already flushed by the phase runner; status may have been set to CANCELLED
// externally, in which case it is left as is.
func (o *Orchestrator) cancel(scan *model.Scan) {
	log.Printf("[orchestrator] scan %d cancelled", scan.ID)
	status, err := o.store.GetScanStatus(scan.ID)
	if err != nil || status != model.ScanStatusCancelled {
		err := o.store.UpdateScan(scan.ID, map[string]interface{}{
			"status":       model.ScanStatusCancelled,
			"completed_at": time.Now(),
		})
		if err != nil {
			log.Printf("[orchestrator] scan %d: mark CANCELLED failed: %v", scan.ID, err)
		}
	}
}

// cancelRequested is the phase-boundary cancellation check.
func (o *Orchestrator) cancelRequested(ctx context.Context, scanID uint) bool {
	select {
	case <-ctx.Done():
		return true
	default:
	}
	status, err := o.store.GetScanStatus(scanID)
	if err != nil {
		return false
	}
	return status == model.ScanStatusCancelled
}
