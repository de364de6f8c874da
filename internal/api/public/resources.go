// resources.go exposes read access to a company's logs and webhook management to API keys.
package public

import (
	"context"

	"github.com/gin-gonic/gin"

	"github.com/mailnow/mailnow-admin/internal/api/params"
	"github.com/mailnow/mailnow-admin/internal/api/response"
	"github.com/mailnow/mailnow-admin/internal/db/models"
	"github.com/mailnow/mailnow-admin/internal/db/repositories"
	"github.com/mailnow/mailnow-admin/internal/services"
)

// LogQuerier is implemented by *services.EmailLogService.
type LogQuerier interface {
	Query(ctx context.Context, companyID int64, f repositories.EmailLogFilter) (*services.LogPage, error)
}

// Webhooks is implemented by *services.WebhookService.
type Webhooks interface {
	List(ctx context.Context, companyID int64, status string) ([]models.Webhook, error)
	Update(ctx context.Context, companyID, id int64, in services.WebhookInput) (*models.Webhook, error)
}

// ResourceHandlers serves GET /v1/logs and the /v1/webhooks endpoints.
type ResourceHandlers struct {
	logs     LogQuerier
	webhooks Webhooks
}

// NewResourceHandlers creates ResourceHandlers.
func NewResourceHandlers(logs LogQuerier, webhooks Webhooks) *ResourceHandlers {
	return &ResourceHandlers{logs: logs, webhooks: webhooks}
}

// ListLogs handles GET /v1/logs. It accepts the same filters as the admin log view.
func (h *ResourceHandlers) ListLogs(c *gin.Context) {
	f, err := params.LogFilter(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	page, err := h.logs.Query(c.Request.Context(), companyID(c), f)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, "Email logs retrieved successfully", page)
}

// ListWebhooks handles GET /v1/webhooks.
func (h *ResourceHandlers) ListWebhooks(c *gin.Context) {
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

// UpdateWebhook handles PUT /v1/webhooks/:id.
func (h *ResourceHandlers) UpdateWebhook(c *gin.Context) {
	id, ok := params.ID(c, "id")
	if !ok {
		return
	}
	var in services.WebhookInput
	if !params.BindJSON(c, &in) {
		return
	}
	webhook, err := h.webhooks.Update(c.Request.Context(), companyID(c), id, in)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, "Webhook updated successfully", webhook)
}
