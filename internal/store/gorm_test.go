package store

import (
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/codesweep/codesweep/internal/model"
	"github.com/codesweep/codesweep/pkg/db"
)

func newTestStore(t *testing.T) *GormStore {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared",
		strings.ReplaceAll(t.Name(), "/", "_"))
	conn, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, db.Migrate(conn))
	return NewGormStore(conn)
}

func seedProject(t *testing.T, s *GormStore) *model.Project {
	t.Helper()
	p := &model.Project{Name: "demo", Status: model.ProjectStatusPending}
	require.NoError(t, s.CreateProject(p))
	return p
}

func TestCreateProjectWithFiles(t *testing.T) {
	s := newTestStore(t)

	p := &model.Project{Name: "atomic", Status: model.ProjectStatusPending}
	err := s.CreateProjectWithFiles(p, []model.ProjectFile{
		{Path: "a.js", Filename: "a.js", Content: "1"},
		{Path: "b.js", Filename: "b.js", Content: "2"},
	})
	require.NoError(t, err)

	files, err := s.ListProjectFiles(p.ID)
	require.NoError(t, err)
	require.Len(t, files, 2)
	for _, f := range files {
		assert.Equal(t, p.ID, f.ProjectID)
	}
}

func TestCreateProjectWithFiles_RollbackOnFileFailure(t *testing.T) {
	s := newTestStore(t)

	// Duplicate primary keys make the file insert fail after the project
	// insert succeeded; the transaction must roll both back.
	p := &model.Project{Name: "atomic", Status: model.ProjectStatusPending}
	err := s.CreateProjectWithFiles(p, []model.ProjectFile{
		{ID: 7, Path: "a.js", Filename: "a.js"},
		{ID: 7, Path: "b.js", Filename: "b.js"},
	})
	require.Error(t, err)

	_, err = s.GetProject(p.ID)
	assert.Error(t, err, "project row should not survive the failed file write")
}

func TestScanLifecycle(t *testing.T) {
	s := newTestStore(t)
	p := seedProject(t, s)

	scan := &model.Scan{ProjectID: p.ID, Type: model.ScanTypeSecurity, Status: model.ScanStatusPending}
	require.NoError(t, s.CreateScan(scan))

	require.NoError(t, s.UpdateScan(scan.ID, map[string]interface{}{
		"status":   model.ScanStatusRunning,
		"progress": 15,
	}))

	got, err := s.GetScan(scan.ID)
	require.NoError(t, err)
	assert.Equal(t, model.ScanStatusRunning, got.Status)
	assert.Equal(t, 15, got.Progress)

	status, err := s.GetScanStatus(scan.ID)
	require.NoError(t, err)
	assert.Equal(t, model.ScanStatusRunning, status)
}

func TestListProjectFiles_Ordered(t *testing.T) {
	s := newTestStore(t)
	p := seedProject(t, s)

	require.NoError(t, s.CreateFiles([]model.ProjectFile{
		{ProjectID: p.ID, Path: "a.js", Filename: "a.js", Content: "1"},
		{ProjectID: p.ID, Path: "b.js", Filename: "b.js", Content: "2"},
		{ProjectID: p.ID, Path: "c.js", Filename: "c.js", Content: "3"},
	}))

	files, err := s.ListProjectFiles(p.ID)
	require.NoError(t, err)
	require.Len(t, files, 3)
	assert.Equal(t, "a.js", files[0].Path)
	assert.Equal(t, "c.js", files[2].Path)
}

func TestCreateFindings_EmptyBatch(t *testing.T) {
	s := newTestStore(t)
	assert.NoError(t, s.CreateFindings(nil))
}

func TestFindingsByScan(t *testing.T) {
	s := newTestStore(t)
	p := seedProject(t, s)
	scan := &model.Scan{ProjectID: p.ID, Type: model.ScanTypeComprehensive}
	require.NoError(t, s.CreateScan(scan))

	batch := []model.Finding{
		{ScanID: scan.ID, ProjectID: p.ID, Title: "a", Severity: model.SeverityHigh, Category: model.CategoryInjection},
		{ScanID: scan.ID, ProjectID: p.ID, Title: "b", Severity: model.SeverityLow, Category: model.CategoryCodeQuality},
	}
	require.NoError(t, s.CreateFindings(batch))

	findings, err := s.FindingsByScan(scan.ID)
	require.NoError(t, err)
	require.Len(t, findings, 2)
	for _, f := range findings {
		assert.Equal(t, p.ID, f.ProjectID)
	}
}

func TestDeleteScan_RemovesFindingsAndReport(t *testing.T) {
	s := newTestStore(t)
	p := seedProject(t, s)
	scan := &model.Scan{ProjectID: p.ID, Type: model.ScanTypeSecurity, Status: model.ScanStatusCompleted}
	require.NoError(t, s.CreateScan(scan))
	require.NoError(t, s.CreateFindings([]model.Finding{
		{ScanID: scan.ID, ProjectID: p.ID, Title: "x", Severity: model.SeverityInfo, Category: model.CategoryConfiguration},
	}))
	require.NoError(t, s.CreateReport(&model.Report{
		ScanID: scan.ID, ProjectID: p.ID, Name: "r", Type: scan.Type, Status: model.ReportStatusCompleted, Content: "{}",
	}))

	require.NoError(t, s.DeleteScan(scan.ID))

	_, err := s.GetScan(scan.ID)
	assert.Error(t, err)

	findings, err := s.FindingsByScan(scan.ID)
	require.NoError(t, err)
	assert.Empty(t, findings)

	_, err = s.ReportByScan(scan.ID)
	assert.ErrorIs(t, err, gorm.ErrRecordNotFound)
}

func TestReportByScan_Missing(t *testing.T) {
	s := newTestStore(t)
	_, err := s.ReportByScan(999)
	assert.ErrorIs(t, err, gorm.ErrRecordNotFound)
}
