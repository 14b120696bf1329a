package server

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/codesweep/codesweep/internal/model"
	"github.com/codesweep/codesweep/internal/store"
	"github.com/codesweep/codesweep/pkg/cache"
	"github.com/codesweep/codesweep/pkg/db"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type recordingPublisher struct {
	published []uint
	fail      bool
}

func (p *recordingPublisher) PublishScan(scanID uint) error {
	if p.fail {
		return fmt.Errorf("queue unavailable")
	}
	p.published = append(p.published, scanID)
	return nil
}

func newTestServer(t *testing.T) (*Server, store.Store, *recordingPublisher) {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared",
		strings.ReplaceAll(t.Name(), "/", "_"))
	conn, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, db.Migrate(conn))

	st := store.NewGormStore(conn)
	pub := &recordingPublisher{}
	return New(st, pub, nil), st, pub
}

func doJSON(t *testing.T, srv *Server, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	rr := httptest.NewRecorder()
	srv.Router().ServeHTTP(rr, req)
	return rr
}

func seedScan(t *testing.T, st store.Store, status model.ScanStatus) *model.Scan {
	t.Helper()
	p := &model.Project{Name: "demo"}
	require.NoError(t, st.CreateProject(p))
	scan := &model.Scan{ProjectID: p.ID, Type: model.ScanTypeComprehensive, Status: status}
	require.NoError(t, st.CreateScan(scan))
	return scan
}

func TestCreateProject(t *testing.T) {
	srv, st, _ := newTestServer(t)

	rr := doJSON(t, srv, http.MethodPost, "/api/projects", gin.H{
		"name": "web-shop",
		"files": []gin.H{
			{"path": "src/app.js", "language": "javascript", "content": "const x = 1;"},
			{"path": "src/db.js", "language": "javascript", "content": "query(a);"},
		},
	})

	require.Equal(t, http.StatusCreated, rr.Code)

	files, err := st.ListProjectFiles(1)
	require.NoError(t, err)
	require.Len(t, files, 2)
	assert.Equal(t, "src/app.js", files[0].Path)
	assert.Equal(t, int64(len("const x = 1;")), files[0].Size)
}

func TestCreateProject_MissingName(t *testing.T) {
	srv, _, _ := newTestServer(t)
	rr := doJSON(t, srv, http.MethodPost, "/api/projects", gin.H{"files": []gin.H{}})
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestCreateScan(t *testing.T) {
	srv, st, _ := newTestServer(t)
	p := &model.Project{Name: "demo"}
	require.NoError(t, st.CreateProject(p))

	rr := doJSON(t, srv, http.MethodPost, "/api/scans", gin.H{
		"project_id": p.ID,
		"type":       "SECURITY",
	})

	require.Equal(t, http.StatusCreated, rr.Code)

	scan, err := st.GetScan(1)
	require.NoError(t, err)
	assert.Equal(t, model.ScanStatusPending, scan.Status)
	assert.Equal(t, model.ScanTypeSecurity, scan.Type)
	assert.Zero(t, scan.Progress)
}

func TestCreateScan_UnknownProject(t *testing.T) {
	srv, _, _ := newTestServer(t)
	rr := doJSON(t, srv, http.MethodPost, "/api/scans", gin.H{"project_id": 99})
	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestStartScan(t *testing.T) {
	srv, st, pub := newTestServer(t)
	scan := seedScan(t, st, model.ScanStatusPending)

	rr := doJSON(t, srv, http.MethodPost, fmt.Sprintf("/api/scans/%d/start", scan.ID), nil)

	require.Equal(t, http.StatusAccepted, rr.Code)
	assert.Equal(t, []uint{scan.ID}, pub.published)
}

func TestStartScan_NotPending(t *testing.T) {
	srv, st, pub := newTestServer(t)
	scan := seedScan(t, st, model.ScanStatusRunning)

	rr := doJSON(t, srv, http.MethodPost, fmt.Sprintf("/api/scans/%d/start", scan.ID), nil)

	assert.Equal(t, http.StatusConflict, rr.Code)
	assert.Empty(t, pub.published)
}

func TestStartScan_QueueDown(t *testing.T) {
	srv, st, pub := newTestServer(t)
	pub.fail = true
	scan := seedScan(t, st, model.ScanStatusPending)

	rr := doJSON(t, srv, http.MethodPost, fmt.Sprintf("/api/scans/%d/start", scan.ID), nil)
	assert.Equal(t, http.StatusInternalServerError, rr.Code)
}

func TestGetScan_Snapshot(t *testing.T) {
	srv, st, _ := newTestServer(t)
	scan := seedScan(t, st, model.ScanStatusRunning)
	require.NoError(t, st.UpdateScan(scan.ID, map[string]interface{}{"progress": 42}))
	require.NoError(t, st.CreateFindings([]model.Finding{
		{ScanID: scan.ID, ProjectID: scan.ProjectID, Title: "a", Severity: model.SeverityCritical, Category: model.CategoryInjection},
		{ScanID: scan.ID, ProjectID: scan.ProjectID, Title: "b", Severity: model.SeverityHigh, Category: model.CategoryCryptography},
		{ScanID: scan.ID, ProjectID: scan.ProjectID, Title: "c", Severity: model.SeverityHigh, Category: model.CategoryCryptography},
	}))

	rr := doJSON(t, srv, http.MethodGet, fmt.Sprintf("/api/scans/%d", scan.ID), nil)
	require.Equal(t, http.StatusOK, rr.Code)

	var resp struct {
		Data struct {
			Status   string `json:"status"`
			Progress int    `json:"progress"`
			Summary  struct {
				Total    int `json:"total"`
				Critical int `json:"critical"`
				High     int `json:"high"`
				Open     int `json:"open"`
			} `json:"summary"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	assert.Equal(t, "RUNNING", resp.Data.Status)
	assert.Equal(t, 42, resp.Data.Progress)
	assert.Equal(t, 3, resp.Data.Summary.Total)
	assert.Equal(t, 1, resp.Data.Summary.Critical)
	assert.Equal(t, 2, resp.Data.Summary.High)
	assert.Equal(t, 3, resp.Data.Summary.Open)
}

// staticCache always serves the same snapshot.
type staticCache struct {
	snap *cache.Snapshot
}

func (c staticCache) GetProgress(uint) (*cache.Snapshot, error) { return c.snap, nil }
func (c staticCache) Invalidate(uint)                           {}

func scanSnapshot(t *testing.T, srv *Server, scanID uint) (string, int) {
	t.Helper()
	rr := doJSON(t, srv, http.MethodGet, fmt.Sprintf("/api/scans/%d", scanID), nil)
	require.Equal(t, http.StatusOK, rr.Code)
	var resp struct {
		Data struct {
			Status   string `json:"status"`
			Progress int    `json:"progress"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	return resp.Data.Status, resp.Data.Progress
}

func TestGetScan_TerminalIgnoresStaleCache(t *testing.T) {
	srv, st, _ := newTestServer(t)
	scan := seedScan(t, st, model.ScanStatusCancelled)
	require.NoError(t, st.UpdateScan(scan.ID, map[string]interface{}{"progress": 42}))

	// A snapshot left over from before the cancellation: higher progress,
	// still RUNNING. The terminal row must win.
	srv.Cache = staticCache{snap: &cache.Snapshot{Progress: 80, Status: model.ScanStatusRunning}}

	status, progress := scanSnapshot(t, srv, scan.ID)
	assert.Equal(t, "CANCELLED", status)
	assert.Equal(t, 42, progress)
}

func TestGetScan_RunningPrefersFresherCache(t *testing.T) {
	srv, st, _ := newTestServer(t)
	scan := seedScan(t, st, model.ScanStatusRunning)
	require.NoError(t, st.UpdateScan(scan.ID, map[string]interface{}{"progress": 10}))

	srv.Cache = staticCache{snap: &cache.Snapshot{Progress: 55, Status: model.ScanStatusRunning}}

	status, progress := scanSnapshot(t, srv, scan.ID)
	assert.Equal(t, "RUNNING", status)
	assert.Equal(t, 55, progress)
}

func TestGetScan_NotFound(t *testing.T) {
	srv, _, _ := newTestServer(t)
	rr := doJSON(t, srv, http.MethodGet, "/api/scans/777", nil)
	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestListFindings(t *testing.T) {
	srv, st, _ := newTestServer(t)
	scan := seedScan(t, st, model.ScanStatusCompleted)
	require.NoError(t, st.CreateFindings([]model.Finding{
		{ScanID: scan.ID, ProjectID: scan.ProjectID, Title: "x", Severity: model.SeverityLow, Category: model.CategoryCodeQuality},
	}))

	rr := doJSON(t, srv, http.MethodGet, fmt.Sprintf("/api/scans/%d/findings", scan.ID), nil)
	require.Equal(t, http.StatusOK, rr.Code)

	var resp struct {
		Data []model.Finding `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	require.Len(t, resp.Data, 1)
	assert.Equal(t, "x", resp.Data[0].Title)
}

func TestDeleteScan_CancelsRunning(t *testing.T) {
	srv, st, _ := newTestServer(t)
	scan := seedScan(t, st, model.ScanStatusRunning)

	rr := doJSON(t, srv, http.MethodDelete, fmt.Sprintf("/api/scans/%d", scan.ID), nil)
	require.Equal(t, http.StatusOK, rr.Code)

	got, err := st.GetScan(scan.ID)
	require.NoError(t, err)
	assert.Equal(t, model.ScanStatusCancelled, got.Status)
	assert.Equal(t, CancelledMessage, got.Error)
}

func TestDeleteScan_RemovesTerminal(t *testing.T) {
	srv, st, _ := newTestServer(t)
	scan := seedScan(t, st, model.ScanStatusCompleted)

	rr := doJSON(t, srv, http.MethodDelete, fmt.Sprintf("/api/scans/%d", scan.ID), nil)
	require.Equal(t, http.StatusOK, rr.Code)

	_, err := st.GetScan(scan.ID)
	assert.Error(t, err)
}

func timeMustParse(t *testing.T, s string) time.Time {
	t.Helper()
	tm, err := time.Parse(time.RFC3339, s)
	require.NoError(t, err)
	return tm
}

func TestEstimateCompletion(t *testing.T) {
	now := timeMustParse(t, "2026-08-23T10:10:00Z")
	started := timeMustParse(t, "2026-08-23T10:00:00Z")

	scan := &model.Scan{Status: model.ScanStatusRunning, Progress: 50, StartedAt: &started}
	eta := estimateCompletion(scan, now)

	// 50% in 10 minutes extrapolates to 20 minutes total.
	require.NotNil(t, eta)
	assert.Equal(t, timeMustParse(t, "2026-08-23T10:20:00Z"), *eta)

	scan.Status = model.ScanStatusCompleted
	assert.Nil(t, estimateCompletion(scan, now))

	scan.Status = model.ScanStatusRunning
	scan.Progress = 0
	assert.Nil(t, estimateCompletion(scan, now))
}
