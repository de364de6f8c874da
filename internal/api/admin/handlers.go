// Package admin implements the /api/v1 handlers behind the MailNow dashboard.
// Every route except signup, login and invite acceptance runs behind JWTAuthMiddleware.
// Company-scoped routes also run behind RequireCompanyRole, which resolves :company_id
// into the context; handlers read the tenant from there and never from the body.
package admin

import (
	"github.com/gin-gonic/gin"

	"github.com/mailnow/mailnow-admin/internal/middleware"
)

// companyID returns the tenant resolved by RequireCompanyRole.
func companyID(c *gin.Context) int64 {
	id, _ := middleware.CompanyID(c)
	return id
}
