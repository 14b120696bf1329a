package model

import "time"

type ReportStatus string

const (
	ReportStatusCompleted ReportStatus = "COMPLETED"
)

// Report is the persisted summary produced once per scan after all phases
// finish. Content is the JSON encoding of ReportContent.
type Report struct {
	ID        uint         `gorm:"primaryKey" json:"id"`
	ScanID    uint         `gorm:"uniqueIndex;not null" json:"scan_id"`
	ProjectID uint         `gorm:"index;not null" json:"project_id"`
	Name      string       `gorm:"size:255;not null" json:"name"`
	Type      ScanType     `gorm:"size:32;not null" json:"type"`
	Status    ReportStatus `gorm:"size:32;not null" json:"status"`
	Content   string       `gorm:"type:json" json:"content"`

	CreatedAt time.Time `json:"created_at"`
}

func (Report) TableName() string {
	return "reports"
}

// ReportContent is the structured summary serialized into Report.Content.
// Recommendations are deduplicated; their order carries no meaning.
type ReportContent struct {
	TotalFindings   int              `json:"total_findings"`
	BySeverity      map[Severity]int `json:"by_severity"`
	ByCategory      map[Category]int `json:"by_category"`
	Recommendations []string         `json:"recommendations"`
	ScanType        ScanType         `json:"scan_type"`
	StartedAt       *time.Time       `json:"started_at,omitempty"`
	CompletedAt     *time.Time       `json:"completed_at,omitempty"`
}

// VulnerabilitySummary is the derived finding rollup exposed by the scan
// snapshot endpoint. Open/Resolved exist for API compatibility with
// remediation tracking; the pipeline itself never resolves findings.
type VulnerabilitySummary struct {
	Total    int `json:"total"`
	Critical int `json:"critical"`
	High     int `json:"high"`
	Medium   int `json:"medium"`
	Low      int `json:"low"`
	Info     int `json:"info"`
	Open     int `json:"open"`
	Resolved int `json:"resolved"`
}
