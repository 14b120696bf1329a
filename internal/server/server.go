package server

import (
	"errors"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/codesweep/codesweep/internal/model"
	"github.com/codesweep/codesweep/internal/store"
	"github.com/codesweep/codesweep/pkg/cache"
)

// CancelledMessage is the fixed error text recorded when a live scan is
// cancelled through the API.
const CancelledMessage = "Scan cancelled by user"

// Publisher enqueues a scan for a worker.
type Publisher interface {
	PublishScan(scanID uint) error
}

// ProgressReader is the optional cache fast path for snapshot requests.
type ProgressReader interface {
	GetProgress(scanID uint) (*cache.Snapshot, error)
	Invalidate(scanID uint)
}

// Server wires the HTTP API: project seeding, scan creation and start,
// snapshot polling, findings listing, cancel/delete.
type Server struct {
	DB    store.Store
	Queue Publisher
	Cache ProgressReader
}

func New(db store.Store, queue Publisher, progressCache ProgressReader) *Server {
	return &Server{DB: db, Queue: queue, Cache: progressCache}
}

// Router builds the gin engine with all routes registered.
func (s *Server) Router() *gin.Engine {
	r := gin.Default()

	api := r.Group("/api")
	api.POST("/projects", s.createProject)
	api.POST("/scans", s.createScan)
	api.POST("/scans/:id/start", s.startScan)
	api.GET("/scans/:id", s.getScan)
	api.GET("/scans/:id/findings", s.listFindings)
	api.DELETE("/scans/:id", s.deleteScan)

	return r
}

type fileRequest struct {
	Path     string `json:"path" binding:"required"`
	Filename string `json:"filename"`
	Language string `json:"language"`
	Content  string `json:"content"`
}

type projectRequest struct {
	Name        string        `json:"name" binding:"required"`
	Description string        `json:"description"`
	UserID      uint          `json:"user_id"`
	Files       []fileRequest `json:"files"`
}

func (s *Server) createProject(c *gin.Context) {
	var req projectRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	project := model.Project{
		UserID:      req.UserID,
		Name:        req.Name,
		Description: req.Description,
		Status:      model.ProjectStatusPending,
	}
	files := make([]model.ProjectFile, 0, len(req.Files))
	for _, f := range req.Files {
		filename := f.Filename
		if filename == "" {
			filename = f.Path
		}
		files = append(files, model.ProjectFile{
			Path:     f.Path,
			Filename: filename,
			Language: f.Language,
			Size:     int64(len(f.Content)),
			Content:  f.Content,
		})
	}
	if err := s.DB.CreateProjectWithFiles(&project, files); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not create project"})
		return
	}

	c.JSON(http.StatusCreated, gin.H{"code": http.StatusCreated, "data": project, "files": len(files)})
}

type scanRequest struct {
	ProjectID uint           `json:"project_id" binding:"required"`
	Type      model.ScanType `json:"type"`
	Config    string         `json:"config"`
}

func (s *Server) createScan(c *gin.Context) {
	var req scanRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if req.Type == "" {
		req.Type = model.ScanTypeComprehensive
	}

	if _, err := s.DB.GetProject(req.ProjectID); err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "project not found"})
		return
	}

	scan := model.Scan{
		ProjectID: req.ProjectID,
		Type:      req.Type,
		Status:    model.ScanStatusPending,
		Config:    req.Config,
	}
	if err := s.DB.CreateScan(&scan); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not create scan"})
		return
	}

	c.JSON(http.StatusCreated, gin.H{"code": http.StatusCreated, "data": scan})
}

func (s *Server) startScan(c *gin.Context) {
	scan, ok := s.loadScan(c)
	if !ok {
		return
	}
	if scan.Status != model.ScanStatusPending {
		c.JSON(http.StatusConflict, gin.H{"error": "scan is not pending"})
		return
	}

	if err := s.Queue.PublishScan(scan.ID); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not enqueue scan"})
		return
	}

	c.JSON(http.StatusAccepted, gin.H{"code": http.StatusAccepted, "message": "scan queued", "scan_id": scan.ID})
}

func (s *Server) getScan(c *gin.Context) {
	scan, ok := s.loadScan(c)
	if !ok {
		return
	}

	// The cache may be fresher than the row we just read: the worker writes
	// progress there on every file. Once the row is terminal the database is
	// authoritative; a leftover RUNNING snapshot must not resurrect the scan.
	if s.Cache != nil && !scan.Status.Terminal() {
		if snap, err := s.Cache.GetProgress(scan.ID); err == nil && snap != nil {
			if snap.Progress > scan.Progress {
				scan.Progress = snap.Progress
				scan.Status = snap.Status
			}
		}
	}

	findings, err := s.DB.FindingsByScan(scan.ID)
	if err != nil {
		log.Printf("[api] scan %d: findings load failed: %v", scan.ID, err)
	}

	c.JSON(http.StatusOK, gin.H{
		"code": http.StatusOK,
		"data": gin.H{
			"id":                   scan.ID,
			"type":                 scan.Type,
			"status":               scan.Status,
			"progress":             scan.Progress,
			"started_at":           scan.StartedAt,
			"completed_at":         scan.CompletedAt,
			"error":                scan.Error,
			"estimated_completion": estimateCompletion(scan, time.Now()),
			"summary":              summarize(findings),
		},
	})
}

func (s *Server) listFindings(c *gin.Context) {
	scan, ok := s.loadScan(c)
	if !ok {
		return
	}
	findings, err := s.DB.FindingsByScan(scan.ID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not load findings"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"code": http.StatusOK, "data": findings})
}

// deleteScan cancels a live scan or deletes a terminal one. The running
// pipeline observes the CANCELLED status at its next file boundary.
func (s *Server) deleteScan(c *gin.Context) {
	scan, ok := s.loadScan(c)
	if !ok {
		return
	}

	if !scan.Status.Terminal() {
		err := s.DB.UpdateScan(scan.ID, map[string]interface{}{
			"status": model.ScanStatusCancelled,
			"error":  CancelledMessage,
		})
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "could not cancel scan"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"code": http.StatusOK, "message": "scan cancelled"})
		return
	}

	if err := s.DB.DeleteScan(scan.ID); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not delete scan"})
		return
	}
	if s.Cache != nil {
		s.Cache.Invalidate(scan.ID)
	}
	c.JSON(http.StatusOK, gin.H{"code": http.StatusOK, "message": "scan deleted"})
}

func (s *Server) loadScan(c *gin.Context) (*model.Scan, bool) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid scan id"})
		return nil, false
	}
	scan, err := s.DB.GetScan(uint(id))
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "scan not found"})
		} else {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "could not load scan"})
		}
		return nil, false
	}
	return scan, true
}

// estimateCompletion extrapolates linearly from elapsed time and current
// progress. It is an estimate for the polling UI, nothing more.
func estimateCompletion(scan *model.Scan, now time.Time) *time.Time {
	if scan.Status != model.ScanStatusRunning || scan.StartedAt == nil || scan.Progress <= 0 {
		return nil
	}
	elapsed := now.Sub(*scan.StartedAt)
	total := time.Duration(float64(elapsed) * 100.0 / float64(scan.Progress))
	eta := scan.StartedAt.Add(total)
	return &eta
}

func summarize(findings []model.Finding) model.VulnerabilitySummary {
	sum := model.VulnerabilitySummary{Total: len(findings)}
	for _, f := range findings {
		switch f.Severity {
		case model.SeverityCritical:
			sum.Critical++
		case model.SeverityHigh:
			sum.High++
		case model.SeverityMedium:
			sum.Medium++
		case model.SeverityLow:
			sum.Low++
		case model.SeverityInfo:
			sum.Info++
		}
	}
	// The pipeline never resolves findings; everything it reports is open.
	sum.Open = sum.Total
	return sum
}
