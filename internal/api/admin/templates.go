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

// TemplateManager is implemented by *services.TemplateService.
type TemplateManager interface {
	Create(ctx context.Context, companyID int64, in services.TemplateInput) (*models.Template, error)
	Get(ctx context.Context, companyID, id int64) (*models.Template, error)
	List(ctx context.Context, companyID int64, opts repositories.ListOptions, templateType string) ([]models.Template, error)
	Update(ctx context.Context, companyID, id int64, in services.TemplateInput) (*models.Template, error)
	Delete(ctx context.Context, companyID, id int64) error
	Stats(ctx context.Context, companyID int64) (*services.TemplateStats, error)
}

// TemplateHandlers serves /api/v1/companies/:company_id/templates.
type TemplateHandlers struct {
	templates TemplateManager
}

// NewTemplateHandlers creates TemplateHandlers.
func NewTemplateHandlers(templates TemplateManager) *TemplateHandlers {
	return &TemplateHandlers{templates: templates}
}

// List handles GET .../templates?search=&type=.
func (h *TemplateHandlers) List(c *gin.Context) {
	templates, err := h.templates.List(c.Request.Context(), companyID(c), params.List(c), c.Query("type"))
	if err != nil {
		response.Error(c, err)
		return
	}
	if templates == nil {
		templates = []models.Template{}
	}
	response.OK(c, "Templates retrieved successfully", templates)
}

// Stats handles GET .../templates/stats.
func (h *TemplateHandlers) Stats(c *gin.Context) {
	stats, err := h.templates.Stats(c.Request.Context(), companyID(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, "Template stats retrieved successfully", stats)
}

// Create handles POST .../templates.
func (h *TemplateHandlers) Create(c *gin.Context) {
	var req services.TemplateInput
	if !params.BindJSON(c, &req) {
		return
	}
	tmpl, err := h.templates.Create(c.Request.Context(), companyID(c), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, "Template created successfully", tmpl)
}

// Get handles GET .../templates/:id.
func (h *TemplateHandlers) Get(c *gin.Context) {
	id, ok := params.ID(c, "id")
	if !ok {
		return
	}
	tmpl, err := h.templates.Get(c.Request.Context(), companyID(c), id)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, "Template retrieved successfully", tmpl)
}

// Update handles PUT .../templates/:id.
func (h *TemplateHandlers) Update(c *gin.Context) {
	id, ok := params.ID(c, "id")
	if !ok {
		return
	}
	var req services.TemplateInput
	if !params.BindJSON(c, &req) {
		return
	}
	tmpl, err := h.templates.Update(c.Request.Context(), companyID(c), id, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, "Template updated successfully", tmpl)
}

// Delete handles DELETE .../templates/:id.
func (h *TemplateHandlers) Delete(c *gin.Context) {
	id, ok := params.ID(c, "id")
	if !ok {
		return
	}
	if err := h.templates.Delete(c.Request.Context(), companyID(c), id); err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, "Template deleted successfully", nil)
}
