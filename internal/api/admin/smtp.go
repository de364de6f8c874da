package admin

import (
	"context"

	"github.com/gin-gonic/gin"

	"github.com/mailnow/mailnow-admin/internal/api/params"
	"github.com/mailnow/mailnow-admin/internal/api/response"
	"github.com/mailnow/mailnow-admin/internal/db/models"
	"github.com/mailnow/mailnow-admin/internal/services"
)

// SMTPProfileManager is implemented by *services.SMTPService.
type SMTPProfileManager interface {
	Create(ctx context.Context, companyID int64, in services.SMTPProfileInput) (*models.SMTPProfile, error)
	Get(ctx context.Context, companyID, id int64) (*models.SMTPProfile, error)
	List(ctx context.Context, companyID int64) ([]models.SMTPProfile, error)
	Update(ctx context.Context, companyID, id int64, in services.SMTPProfileInput) (*models.SMTPProfile, error)
	SetDefault(ctx context.Context, companyID, id int64) (*models.SMTPProfile, error)
	Delete(ctx context.Context, companyID, id int64) error
}

// SMTPHandlers serves /api/v1/companies/:company_id/smtp-profiles. Passwords are write-only.
type SMTPHandlers struct {
	profiles SMTPProfileManager
}

// NewSMTPHandlers creates SMTPHandlers.
func NewSMTPHandlers(profiles SMTPProfileManager) *SMTPHandlers {
	return &SMTPHandlers{profiles: profiles}
}

// List handles GET .../smtp-profiles.
func (h *SMTPHandlers) List(c *gin.Context) {
	profiles, err := h.profiles.List(c.Request.Context(), companyID(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	if profiles == nil {
		profiles = []models.SMTPProfile{}
	}
	response.OK(c, "SMTP profiles retrieved successfully", profiles)
}

// Create handles POST .../smtp-profiles. A profile created with is_default replaces the
// current default.
func (h *SMTPHandlers) Create(c *gin.Context) {
	var req services.SMTPProfileInput
	if !params.BindJSON(c, &req) {
		return
	}
	profile, err := h.profiles.Create(c.Request.Context(), companyID(c), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, "SMTP profile created successfully", profile)
}

// Get handles GET .../smtp-profiles/:id.
func (h *SMTPHandlers) Get(c *gin.Context) {
	id, ok := params.ID(c, "id")
	if !ok {
		return
	}
	profile, err := h.profiles.Get(c.Request.Context(), companyID(c), id)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, "SMTP profile retrieved successfully", profile)
}

// Update handles PUT .../smtp-profiles/:id. An omitted password keeps the stored one.
func (h *SMTPHandlers) Update(c *gin.Context) {
	id, ok := params.ID(c, "id")
	if !ok {
		return
	}
	var req services.SMTPProfileInput
	if !params.BindJSON(c, &req) {
		return
	}
	profile, err := h.profiles.Update(c.Request.Context(), companyID(c), id, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, "SMTP profile updated successfully", profile)
}

// SetDefault handles PATCH .../smtp-profiles/:id/set-default.
func (h *SMTPHandlers) SetDefault(c *gin.Context) {
	id, ok := params.ID(c, "id")
	if !ok {
		return
	}
	profile, err := h.profiles.SetDefault(c.Request.Context(), companyID(c), id)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, "Default SMTP profile set successfully", profile)
}

// Delete handles DELETE .../smtp-profiles/:id.
func (h *SMTPHandlers) Delete(c *gin.Context) {
	id, ok := params.ID(c, "id")
	if !ok {
		return
	}
	if err := h.profiles.Delete(c.Request.Context(), companyID(c), id); err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, "SMTP profile deleted successfully", nil)
}
