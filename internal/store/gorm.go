package store

import (
	"errors"
	"fmt"

	"gorm.io/gorm"

	"github.com/codesweep/codesweep/internal/model"
)

// GormStore implements Store on top of a gorm connection.
type GormStore struct {
	db *gorm.DB
}

var _ Store = (*GormStore)(nil)

func NewGormStore(db *gorm.DB) *GormStore {
	return &GormStore{db: db}
}

func (s *GormStore) CreateProject(p *model.Project) error {
	return s.db.Create(p).Error
}

func (s *GormStore) CreateProjectWithFiles(p *model.Project, files []model.ProjectFile) error {
	return s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(p).Error; err != nil {
			return err
		}
		if len(files) == 0 {
			return nil
		}
		for i := range files {
			files[i].ProjectID = p.ID
		}
		return tx.Create(&files).Error
	})
}

func (s *GormStore) GetProject(id uint) (*model.Project, error) {
	var p model.Project
	if err := s.db.First(&p, id).Error; err != nil {
		return nil, fmt.Errorf("load project %d: %w", id, err)
	}
	return &p, nil
}

func (s *GormStore) UpdateProjectStatus(id uint, status model.ProjectStatus) error {
	return s.db.Model(&model.Project{}).Where("id = ?", id).
		Update("status", status).Error
}

func (s *GormStore) CreateFiles(files []model.ProjectFile) error {
	if len(files) == 0 {
		return nil
	}
	return s.db.Create(&files).Error
}

func (s *GormStore) ListProjectFiles(projectID uint) ([]model.ProjectFile, error) {
	var files []model.ProjectFile
	err := s.db.Where("project_id = ?", projectID).Order("id").Find(&files).Error
	if err != nil {
		return nil, fmt.Errorf("list files for project %d: %w", projectID, err)
	}
	return files, nil
}

func (s *GormStore) CreateScan(sc *model.Scan) error {
	return s.db.Create(sc).Error
}

func (s *GormStore) GetScan(id uint) (*model.Scan, error) {
	var sc model.Scan
	if err := s.db.First(&sc, id).Error; err != nil {
		return nil, fmt.Errorf("load scan %d: %w", id, err)
	}
	return &sc, nil
}

func (s *GormStore) GetScanStatus(id uint) (model.ScanStatus, error) {
	var sc model.Scan
	err := s.db.Select("status").First(&sc, id).Error
	if err != nil {
		return "", err
	}
	return sc.Status, nil
}

func (s *GormStore) UpdateScan(id uint, fields map[string]interface{}) error {
	return s.db.Model(&model.Scan{}).Where("id = ?", id).Updates(fields).Error
}

// DeleteScan removes a terminal scan together with its findings and report.
func (s *GormStore) DeleteScan(id uint) error {
	return s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("scan_id = ?", id).Delete(&model.Finding{}).Error; err != nil {
			return err
		}
		if err := tx.Where("scan_id = ?", id).Delete(&model.Report{}).Error; err != nil {
			return err
		}
		return tx.Delete(&model.Scan{}, id).Error
	})
}

func (s *GormStore) CreateFindings(findings []model.Finding) error {
	if len(findings) == 0 {
		return nil
	}
	return s.db.Create(&findings).Error
}

func (s *GormStore) FindingsByScan(scanID uint) ([]model.Finding, error) {
	var findings []model.Finding
	err := s.db.Where("scan_id = ?", scanID).Find(&findings).Error
	if err != nil {
		return nil, fmt.Errorf("list findings for scan %d: %w", scanID, err)
	}
	return findings, nil
}

func (s *GormStore) CreateReport(r *model.Report) error {
	return s.db.Create(r).Error
}

func (s *GormStore) ReportByScan(scanID uint) (*model.Report, error) {
	var r model.Report
	err := s.db.Where("scan_id = ?", scanID).First(&r).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}
	if err != nil {
		return nil, fmt.Errorf("load report for scan %d: %w", scanID, err)
	}
	return &r, nil
}
