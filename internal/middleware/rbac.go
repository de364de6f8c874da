// Package middleware (rbac.go) implements company-role authorization for the admin API.
//
// Roles are resolved per request from the companies and team_members tables rather than
// carried in the JWT, so a role change or removal applies on the caller's next request.

package middleware

import (
	"context"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/mailnow/mailnow-admin/internal/api/response"
	"github.com/mailnow/mailnow-admin/internal/enums"
)

// CompanyRoleKey is the gin.Context key holding the caller's enums.Role in the company.
const CompanyRoleKey = "company_role"

// RoleResolver is implemented by *services.TeamService.
type RoleResolver interface {
	EffectiveRole(ctx context.Context, companyID, userID int64) (enums.Role, bool, error)
}

// RequireCompanyRole checks that the authenticated user holds at least min in the company
// named by the :company_id path parameter. Owners always pass. A user with no relation to
// the company gets 404 so company ids cannot be probed. Must run after JWTAuthMiddleware.
func RequireCompanyRole(roles RoleResolver, min enums.Role) gin.HandlerFunc {
	return func(c *gin.Context) {
		user := CurrentUser(c)
		if user == nil {
			response.Abort(c, http.StatusUnauthorized, "Authentication required")
			return
		}

		companyID, err := strconv.ParseInt(c.Param("company_id"), 10, 64)
		if err != nil || companyID <= 0 {
			response.BadRequest(c, "Invalid company id")
			return
		}

		role, ok, err := roles.EffectiveRole(c.Request.Context(), companyID, user.ID)
		if err != nil {
			response.Error(c, err)
			return
		}
		if !ok {
			response.Abort(c, http.StatusNotFound, "Company not found")
			return
		}
		if !role.AtLeast(min) {
			response.Abort(c, http.StatusForbidden, "Requires the "+min.Label()+" role or higher")
			return
		}

		c.Set(CompanyIDKey, companyID)
		c.Set(CompanyRoleKey, role)
		c.Next()
	}
}

// RequireStaff admits only users with is_staff or is_superuser.
func RequireStaff() gin.HandlerFunc {
	return func(c *gin.Context) {
		user := CurrentUser(c)
		if user == nil {
			response.Abort(c, http.StatusUnauthorized, "Authentication required")
			return
		}
		if !user.IsStaff && !user.IsSuperuser {
			response.Abort(c, http.StatusForbidden, "Staff access required")
			return
		}
		c.Next()
	}
}

// CompanyRole returns the role set by RequireCompanyRole.
func CompanyRole(c *gin.Context) enums.Role {
	v, _ := c.Get(CompanyRoleKey)
	r, _ := v.(enums.Role)
	return r
}
