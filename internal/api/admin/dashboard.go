package admin

import (
	"context"

	"github.com/gin-gonic/gin"

	"github.com/mailnow/mailnow-admin/internal/api/response"
	"github.com/mailnow/mailnow-admin/internal/enums"
	"github.com/mailnow/mailnow-admin/internal/services"
)

// DashboardReader is implemented by *services.DashboardService.
type DashboardReader interface {
	Stats(ctx context.Context, companyID int64) (*services.DashboardStats, error)
}

// DashboardHandlers serves the dashboard summary and the enum choices the UI renders.
type DashboardHandlers struct {
	dashboard DashboardReader
}

// NewDashboardHandlers creates DashboardHandlers.
func NewDashboardHandlers(dashboard DashboardReader) *DashboardHandlers {
	return &DashboardHandlers{dashboard: dashboard}
}

// StatsHandler returns the dashboard summary.
// GET /api/v1/companies/:company_id/dashboard/stats
func (h *DashboardHandlers) StatsHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		stats, err := h.dashboard.Stats(c.Request.Context(), companyID(c))
		if err != nil {
			response.Error(c, err)
			return
		}
		response.OK(c, "Dashboard stats retrieved successfully", stats)
	}
}

// ChoicesHandler returns every enumerated value with its display label.
// GET /api/v1/choices
func ChoicesHandler() gin.HandlerFunc {
	choices := gin.H{
		"permissions":    enums.PermissionChoices(),
		"statuses":       enums.StatusChoices(),
		"roles":          enums.RoleChoices(),
		"email_statuses": enums.EmailStatusChoices(),
		"pricing_tiers":  enums.PricingTierChoices(),
	}
	return func(c *gin.Context) {
		response.OK(c, "Choices retrieved successfully", choices)
	}
}
