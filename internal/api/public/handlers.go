// Package public serves the API-key authenticated /v1 API that customers call from their own
// systems. Every handler runs after middleware.APIKeyAuthMiddleware, so the company is taken
// from the key rather than from the path.
package public

import (
	"github.com/gin-gonic/gin"

	"github.com/mailnow/mailnow-admin/internal/middleware"
)

// companyID returns the company that owns the calling API key.
func companyID(c *gin.Context) int64 {
	id, _ := middleware.CompanyID(c)
	return id
}
