package model

import (
	"time"

	"gorm.io/gorm"
)

type ProjectStatus string

const (
	ProjectStatusPending   ProjectStatus = "PENDING"
	ProjectStatusAnalyzing ProjectStatus = "ANALYZING"
	ProjectStatusCompleted ProjectStatus = "COMPLETED"
	ProjectStatusFailed    ProjectStatus = "FAILED"
)

// Project is the container a scan runs against. File ingestion happens
// outside the pipeline; by the time a scan starts the project's files are
// already persisted.
type Project struct {
	ID          uint          `gorm:"primaryKey" json:"id"`
	UserID      uint          `gorm:"index" json:"user_id"`
	Name        string        `gorm:"size:255;not null" json:"name"`
	Description string        `gorm:"type:text" json:"description,omitempty"`
	Status      ProjectStatus `gorm:"size:32;not null;default:'PENDING'" json:"status"`

	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`
}

func (Project) TableName() string {
	return "projects"
}

// ProjectFile is one file of a project, immutable input to the pipeline.
// Content may be empty when the ingester skipped the body (binary or
// oversized files); such files yield no findings.
type ProjectFile struct {
	ID        uint   `gorm:"primaryKey" json:"id"`
	ProjectID uint   `gorm:"index;not null" json:"project_id"`
	Path      string `gorm:"size:1024;not null" json:"path"`
	Filename  string `gorm:"size:255;not null" json:"filename"`
	Language  string `gorm:"size:64" json:"language,omitempty"`
	Size      int64  `json:"size"`
	Content   string `gorm:"type:longtext" json:"-"`

	CreatedAt time.Time `json:"created_at"`
}

func (ProjectFile) TableName() string {
	return "project_files"
}
