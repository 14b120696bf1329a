package model

import (
	"time"

	"gorm.io/gorm"
)

type ScanType string

const (
	ScanTypeSecurity      ScanType = "SECURITY"
	ScanTypeQuality       ScanType = "QUALITY"
	ScanTypePerformance   ScanType = "PERFORMANCE"
	ScanTypeComprehensive ScanType = "COMPREHENSIVE"
	ScanTypeCustom        ScanType = "CUSTOM"
)

type ScanStatus string

const (
	ScanStatusPending   ScanStatus = "PENDING"
	ScanStatusRunning   ScanStatus = "RUNNING"
	ScanStatusCompleted ScanStatus = "COMPLETED"
	ScanStatusFailed    ScanStatus = "FAILED"
	ScanStatusCancelled ScanStatus = "CANCELLED"
)

// Terminal reports whether the status is a final state. Terminal scans are
// never picked up by a worker again.
func (s ScanStatus) Terminal() bool {
	return s == ScanStatusCompleted || s == ScanStatusFailed || s == ScanStatusCancelled
}

// Scan is one execution of the analysis pipeline against a project's files.
// Progress is 0-100 and non-decreasing while the scan is RUNNING; it reaches
// 100 only on COMPLETED. A FAILED scan keeps the progress it had when it
// failed.
type Scan struct {
	ID        uint       `gorm:"primaryKey" json:"id"`
	ProjectID uint       `gorm:"index;not null" json:"project_id"`
	Type      ScanType   `gorm:"size:32;not null" json:"type"`
	Status    ScanStatus `gorm:"size:32;not null;default:'PENDING'" json:"status"`
	Progress  int        `gorm:"not null;default:0" json:"progress"`
	Config    string     `gorm:"type:json" json:"config,omitempty"`
	Error     string     `gorm:"type:text" json:"error,omitempty"`

	StartedAt   *time.Time `json:"started_at,omitempty"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`

	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`
}

func (Scan) TableName() string {
	return "scans"
}
