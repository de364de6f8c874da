package admin

import (
	"context"

	"github.com/gin-gonic/gin"

	"github.com/mailnow/mailnow-admin/internal/api/params"
	"github.com/mailnow/mailnow-admin/internal/api/response"
	"github.com/mailnow/mailnow-admin/internal/db/models"
	"github.com/mailnow/mailnow-admin/internal/db/repositories"
	"github.com/mailnow/mailnow-admin/internal/services"
)

// LogReader is implemented by *services.EmailLogService.
type LogReader interface {
	Get(ctx context.Context, companyID, id int64) (*models.EmailLog, error)
	Query(ctx context.Context, companyID int64, f repositories.EmailLogFilter) (*services.LogPage, error)
	Stats(ctx context.Context, companyID int64, f repositories.EmailLogFilter) (*models.EmailLogStats, error)
	Distribution(ctx context.Context, companyID int64, f repositories.EmailLogFilter) ([]models.StatusCount, error)
}

// LogArchiver is implemented by *services.LogExporter.
type LogArchiver interface {
	Export(ctx context.Context, companyID int64, f repositories.EmailLogFilter) (*services.ExportResult, error)
}

// LogHandlers serves the email log views and archive export. All of them accept the
// filters read by params.LogFilter.
type LogHandlers struct {
	logs     LogReader
	exporter LogArchiver
}

// NewLogHandlers creates LogHandlers.
func NewLogHandlers(logs LogReader, exporter LogArchiver) *LogHandlers {
	return &LogHandlers{logs: logs, exporter: exporter}
}

// logFilter parses the query, aborting with the validation error on failure.
func logFilter(c *gin.Context) (repositories.EmailLogFilter, bool) {
	f, err := params.LogFilter(c)
	if err != nil {
		response.Error(c, err)
		return f, false
	}
	return f, true
}

// List handles GET .../logs.
func (h *LogHandlers) List(c *gin.Context) {
	f, ok := logFilter(c)
	if !ok {
		return
	}
	page, err := h.logs.Query(c.Request.Context(), companyID(c), f)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, "Email logs retrieved successfully", page)
}

// Get handles GET .../logs/:id.
func (h *LogHandlers) Get(c *gin.Context) {
	id, ok := params.ID(c, "id")
	if !ok {
		return
	}
	entry, err := h.logs.Get(c.Request.Context(), companyID(c), id)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, "Email log retrieved successfully", entry)
}

// Stats handles GET .../logs/stats.
func (h *LogHandlers) Stats(c *gin.Context) {
	f, ok := logFilter(c)
	if !ok {
		return
	}
	stats, err := h.logs.Stats(c.Request.Context(), companyID(c), f)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, "Log stats retrieved successfully", stats)
}

// Distribution handles GET .../logs/distribution.
func (h *LogHandlers) Distribution(c *gin.Context) {
	f, ok := logFilter(c)
	if !ok {
		return
	}
	buckets, err := h.logs.Distribution(c.Request.Context(), companyID(c), f)
	if err != nil {
		response.Error(c, err)
		return
	}
	if buckets == nil {
		buckets = []models.StatusCount{}
	}
	response.OK(c, "Event distribution retrieved successfully", buckets)
}

// Export handles POST .../logs/export. The archive is written to the storage backend and
// the response carries a time-limited download URL.
func (h *LogHandlers) Export(c *gin.Context) {
	f, ok := logFilter(c)
	if !ok {
		return
	}
	result, err := h.exporter.Export(c.Request.Context(), companyID(c), f)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, "Log export created successfully", result)
}
