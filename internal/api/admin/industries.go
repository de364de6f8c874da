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

// IndustryManager is implemented by *services.AccountService.
type IndustryManager interface {
	CreateIndustry(ctx context.Context, in services.IndustryInput) (*models.Industry, error)
	Industry(ctx context.Context, id int64) (*models.Industry, error)
	ListIndustries(ctx context.Context, opts repositories.ListOptions) ([]models.Industry, error)
	UpdateIndustry(ctx context.Context, id int64, in services.IndustryInput) (*models.Industry, error)
	DeleteIndustry(ctx context.Context, id int64) error
}

// IndustryHandlers serves the industry catalogue. Reads are open to any signed-in user
// (the signup form lists industries); writes are staff only.
type IndustryHandlers struct {
	industries IndustryManager
}

// NewIndustryHandlers creates IndustryHandlers.
func NewIndustryHandlers(industries IndustryManager) *IndustryHandlers {
	return &IndustryHandlers{industries: industries}
}

// List handles GET /api/v1/industries.
func (h *IndustryHandlers) List(c *gin.Context) {
	industries, err := h.industries.ListIndustries(c.Request.Context(), params.List(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	if industries == nil {
		industries = []models.Industry{}
	}
	response.OK(c, "Industries retrieved successfully", industries)
}

// Get handles GET /api/v1/industries/:id.
func (h *IndustryHandlers) Get(c *gin.Context) {
	id, ok := params.ID(c, "id")
	if !ok {
		return
	}
	industry, err := h.industries.Industry(c.Request.Context(), id)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, "Industry retrieved successfully", industry)
}

// Create handles POST /api/v1/industries.
func (h *IndustryHandlers) Create(c *gin.Context) {
	var req services.IndustryInput
	if !params.BindJSON(c, &req) {
		return
	}
	industry, err := h.industries.CreateIndustry(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, "Industry created successfully", industry)
}

// Update handles PUT /api/v1/industries/:id.
func (h *IndustryHandlers) Update(c *gin.Context) {
	id, ok := params.ID(c, "id")
	if !ok {
		return
	}
	var req services.IndustryInput
	if !params.BindJSON(c, &req) {
		return
	}
	industry, err := h.industries.UpdateIndustry(c.Request.Context(), id, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, "Industry updated successfully", industry)
}

// Delete handles DELETE /api/v1/industries/:id. Companies in the industry keep existing
// with no industry.
func (h *IndustryHandlers) Delete(c *gin.Context) {
	id, ok := params.ID(c, "id")
	if !ok {
		return
	}
	if err := h.industries.DeleteIndustry(c.Request.Context(), id); err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, "Industry deleted successfully", nil)
}
