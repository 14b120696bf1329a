package model

import "time"

type Severity string

const (
	SeverityCritical Severity = "CRITICAL"
	SeverityHigh     Severity = "HIGH"
	SeverityMedium   Severity = "MEDIUM"
	SeverityLow      Severity = "LOW"
	SeverityInfo     Severity = "INFO"
)

type Category string

const (
	CategoryInjection      Category = "INJECTION"
	CategoryCryptography   Category = "CRYPTOGRAPHY"
	CategoryDataValidation Category = "DATA_VALIDATION"
	CategoryCodeQuality    Category = "CODE_QUALITY"
	CategoryDependency     Category = "DEPENDENCY"
	CategoryConfiguration  Category = "CONFIGURATION"
	CategoryAuthentication Category = "AUTHENTICATION"
	CategoryAuthorization  Category = "AUTHORIZATION"
	CategoryPerformance    Category = "PERFORMANCE"
)

// Finding is a single reported issue. Findings are written once by a phase
// runner and never mutated; remediation tracking lives outside the pipeline.
// Every finding's ProjectID matches the ProjectID of the scan it belongs to.
type Finding struct {
	ID        uint `gorm:"primaryKey" json:"id"`
	ScanID    uint `gorm:"index;not null" json:"scan_id"`
	ProjectID uint `gorm:"index;not null" json:"project_id"`

	Title          string   `gorm:"size:255;not null" json:"title"`
	Description    string   `gorm:"type:text" json:"description"`
	Severity       Severity `gorm:"size:16;index;not null" json:"severity"`
	Category       Category `gorm:"size:32;index;not null" json:"category"`
	FilePath       string   `gorm:"size:1024" json:"file_path"`
	Line           int      `json:"line,omitempty"`
	Column         int      `json:"column,omitempty"`
	Code           string   `gorm:"type:text" json:"code,omitempty"`
	Recommendation string   `gorm:"type:text" json:"recommendation"`
	CWE            string   `gorm:"size:16" json:"cwe,omitempty"`
	CVSS           float64  `json:"cvss,omitempty"`

	CreatedAt time.Time `json:"created_at"`
}

func (Finding) TableName() string {
	return "findings"
}
