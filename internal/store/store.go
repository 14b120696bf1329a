package store

import "github.com/codesweep/codesweep/internal/model"

// Store is the persistence surface the pipeline and the HTTP API share.
// Implementations scope every mutation to a single scan's or project's rows,
// so concurrent scans need no application-level locking.
type Store interface {
	CreateProject(p *model.Project) error
	// CreateProjectWithFiles persists a project and its files atomically:
	// a file-write failure leaves no orphaned project row.
	CreateProjectWithFiles(p *model.Project, files []model.ProjectFile) error
	GetProject(id uint) (*model.Project, error)
	UpdateProjectStatus(id uint, status model.ProjectStatus) error

	CreateFiles(files []model.ProjectFile) error
	ListProjectFiles(projectID uint) ([]model.ProjectFile, error)

	CreateScan(s *model.Scan) error
	GetScan(id uint) (*model.Scan, error)
	GetScanStatus(id uint) (model.ScanStatus, error)
	UpdateScan(id uint, fields map[string]interface{}) error
	DeleteScan(id uint) error

	// CreateFindings persists one batch of findings in a single write.
	CreateFindings(findings []model.Finding) error
	FindingsByScan(scanID uint) ([]model.Finding, error)

	CreateReport(r *model.Report) error
	ReportByScan(scanID uint) (*model.Report, error)
}
