package admin

import (
	"context"

	"github.com/gin-gonic/gin"

	"github.com/mailnow/mailnow-admin/internal/api/params"
	"github.com/mailnow/mailnow-admin/internal/api/response"
	"github.com/mailnow/mailnow-admin/internal/db/models"
	"github.com/mailnow/mailnow-admin/internal/services"
)

// WebhookManager is implemented by *services.WebhookService.
type WebhookManager interface {
	Create(ctx context.Context, companyID int64, in services.WebhookInput) (*models.Webhook, error)
	Get(ctx context.Context, companyID, id int64) (*models.Webhook, error)
	List(ctx context.Context, companyID int64, status string) ([]models.Webhook, error)
	Update(ctx context.Context, companyID, id int64, in services.WebhookInput) (*models.Webhook, error)
	Delete(ctx context.Context, companyID, id int64) error
}

// WebhookHandlers serves /api/v1/companies/:company_id/webhooks. Only configuration is
// stored; nothing here delivers events.
type WebhookHandlers struct {
	webhooks WebhookManager
}

// NewWebhookHandlers creates WebhookHandlers.
func NewWebhookHandlers(webhooks WebhookManager) *WebhookHandlers {
	return &WebhookHandlers{webhooks: webhooks}
}

// List handles GET .../webhooks?status=.
func (h *WebhookHandlers) List(c *gin.Context) {
	webhooks, err := h.webhooks.List(c.Request.Context(), companyID(c), c.Query("status"))
	if err != nil {
		response.Error(c, err)
		return
	}
	if webhooks == nil {
		webhooks = []models.Webhook{}
	}
	response.OK(c, "Webhooks retrieved successfully", webhooks)
}

// Create handles POST .../webhooks.
func (h *WebhookHandlers) Create(c *gin.Context) {
	var req services.WebhookInput
	if !params.BindJSON(c, &req) {
		return
	}
	webhook, err := h.webhooks.Create(c.Request.Context(), companyID(c), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, "Webhook created successfully", webhook)
}

// Get handles GET .../webhooks/:id.
func (h *WebhookHandlers) Get(c *gin.Context) {
	id, ok := params.ID(c, "id")
	if !ok {
		return
	}
	webhook, err := h.webhooks.Get(c.Request.Context(), companyID(c), id)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, "Webhook retrieved successfully", webhook)
}

// Update handles PUT .../webhooks/:id.
func (h *WebhookHandlers) Update(c *gin.Context) {
	id, ok := params.ID(c, "id")
	if !ok {
		return
	}
	var req services.WebhookInput
	if !params.BindJSON(c, &req) {
		return
	}
	webhook, err := h.webhooks.Update(c.Request.Context(), companyID(c), id, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, "Webhook updated successfully", webhook)
}

// Delete handles DELETE .../webhooks/:id.
func (h *WebhookHandlers) Delete(c *gin.Context) {
	id, ok := params.ID(c, "id")
	if !ok {
		return
	}
	if err := h.webhooks.Delete(c.Request.Context(), companyID(c), id); err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, "Webhook deleted successfully", nil)
}
