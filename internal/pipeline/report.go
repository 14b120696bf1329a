package pipeline

import (
	"encoding/json"
	"errors"
	"fmt"
	"sort"

	"gorm.io/gorm"

	"github.com/codesweep/codesweep/internal/model"
	"github.com/codesweep/codesweep/internal/store"
)

// Aggregator turns a scan's persisted findings into one Report record. It
// never re-runs detectors; given a fixed finding set the summary it builds
// is identical on every run.
type Aggregator struct {
	store store.Store
}

func NewAggregator(st store.Store) *Aggregator {
	return &Aggregator{store: st}
}

// Summarize computes the report content from the persisted findings.
// Recommendations are deduplicated and sorted so the encoding is stable.
func (a *Aggregator) Summarize(scan *model.Scan) (*model.ReportContent, error) {
	findings, err := a.store.FindingsByScan(scan.ID)
	if err != nil {
		return nil, fmt.Errorf("summarize scan %d: %w", scan.ID, err)
	}

	content := &model.ReportContent{
		TotalFindings: len(findings),
		BySeverity:    make(map[model.Severity]int),
		ByCategory:    make(map[model.Category]int),
		ScanType:      scan.Type,
		StartedAt:     scan.StartedAt,
		CompletedAt:   scan.CompletedAt,
	}

	recs := make(map[string]struct{})
	for _, f := range findings {
		content.BySeverity[f.Severity]++
		content.ByCategory[f.Category]++
		if f.Recommendation != "" {
			recs[f.Recommendation] = struct{}{}
		}
	}
	for rec := range recs {
		content.Recommendations = append(content.Recommendations, rec)
	}
	sort.Strings(content.Recommendations)

	return content, nil
}

// Persist writes the report for the scan. If a report already exists the
// existing row is returned untouched, so calling Persist twice for the same
// scan leaves exactly one report.
func (a *Aggregator) Persist(scan *model.Scan) (*model.Report, error) {
	if existing, err := a.store.ReportByScan(scan.ID); err == nil {
		return existing, nil
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	content, err := a.Summarize(scan)
	if err != nil {
		return nil, err
	}
	raw, err := json.Marshal(content)
	if err != nil {
		return nil, fmt.Errorf("encode report for scan %d: %w", scan.ID, err)
	}

	report := &model.Report{
		ScanID:    scan.ID,
		ProjectID: scan.ProjectID,
		Name:      fmt.Sprintf("Scan %d report", scan.ID),
		Type:      scan.Type,
		Status:    model.ReportStatusCompleted,
		Content:   string(raw),
	}
	if err := a.store.CreateReport(report); err != nil {
		return nil, fmt.Errorf("persist report for scan %d: %w", scan.ID, err)
	}
	return report, nil
}
