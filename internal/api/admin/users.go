package admin

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/mailnow/mailnow-admin/internal/api/params"
	"github.com/mailnow/mailnow-admin/internal/api/response"
	"github.com/mailnow/mailnow-admin/internal/db/models"
	"github.com/mailnow/mailnow-admin/internal/db/repositories"
	"github.com/mailnow/mailnow-admin/internal/middleware"
	"github.com/mailnow/mailnow-admin/internal/services"
)

// UserAccounts is implemented by *services.AccountService.
type UserAccounts interface {
	UpdateProfile(ctx context.Context, userID int64, in services.UserProfileInput) (*models.User, error)
	ChangePassword(ctx context.Context, userID int64, current, next string) error
	CompaniesForUser(ctx context.Context, userID int64) ([]repositories.UserCompany, error)
	ListUsers(ctx context.Context, opts repositories.ListOptions) ([]models.User, error)
	DeleteUser(ctx context.Context, userID int64) error
}

// UserHandlers serves the signed-in user's own account, plus the staff user listing.
type UserHandlers struct {
	accounts UserAccounts
}

// NewUserHandlers creates UserHandlers.
func NewUserHandlers(accounts UserAccounts) *UserHandlers {
	return &UserHandlers{accounts: accounts}
}

// ProfileResponse is returned by GET /api/v1/user/profile.
type ProfileResponse struct {
	*models.User
	FullName  string                     `json:"full_name"`
	Companies []repositories.UserCompany `json:"companies"`
}

// ChangePasswordRequest is the body of PUT /api/v1/user/password.
type ChangePasswordRequest struct {
	CurrentPassword string `json:"current_password"`
	NewPassword     string `json:"new_password"`
}

// GetProfileHandler returns the current user and every company they can act in.
// GET /api/v1/user/profile
func (h *UserHandlers) GetProfileHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		user := middleware.CurrentUser(c)
		companies, err := h.accounts.CompaniesForUser(c.Request.Context(), user.ID)
		if err != nil {
			response.Error(c, err)
			return
		}
		if companies == nil {
			companies = []repositories.UserCompany{}
		}
		response.OK(c, "Profile retrieved successfully", ProfileResponse{
			User:      user,
			FullName:  user.FullName(),
			Companies: companies,
		})
	}
}

// UpdateProfileHandler changes the current user's name or MFA flag.
// PUT /api/v1/user/profile
func (h *UserHandlers) UpdateProfileHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req services.UserProfileInput
		if !params.BindJSON(c, &req) {
			return
		}
		user, err := h.accounts.UpdateProfile(c.Request.Context(), middleware.CurrentUser(c).ID, req)
		if err != nil {
			response.Error(c, err)
			return
		}
		response.OK(c, "Profile updated successfully", user)
	}
}

// ChangePasswordHandler replaces the current user's password.
// PUT /api/v1/user/password
func (h *UserHandlers) ChangePasswordHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req ChangePasswordRequest
		if !params.BindJSON(c, &req) {
			return
		}
		if err := h.accounts.ChangePassword(c.Request.Context(), middleware.CurrentUser(c).ID, req.CurrentPassword, req.NewPassword); err != nil {
			response.Error(c, err)
			return
		}
		response.OK(c, "Password updated successfully", nil)
	}
}

// DeleteAccountHandler deletes the current user. Their company and its data go with them.
// DELETE /api/v1/user
func (h *UserHandlers) DeleteAccountHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		if err := h.accounts.DeleteUser(c.Request.Context(), middleware.CurrentUser(c).ID); err != nil {
			response.Error(c, err)
			return
		}
		response.OK(c, "Account deleted successfully", nil)
	}
}

// ListCompaniesHandler lists the companies the current user owns or belongs to.
// GET /api/v1/companies
func (h *UserHandlers) ListCompaniesHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		companies, err := h.accounts.CompaniesForUser(c.Request.Context(), middleware.CurrentUser(c).ID)
		if err != nil {
			response.Error(c, err)
			return
		}
		if companies == nil {
			companies = []repositories.UserCompany{}
		}
		response.OK(c, "Companies retrieved successfully", companies)
	}
}

// ListUsersHandler lists platform users. Staff only.
// GET /api/v1/admin/users
func (h *UserHandlers) ListUsersHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		users, err := h.accounts.ListUsers(c.Request.Context(), params.List(c))
		if err != nil {
			response.Error(c, err)
			return
		}
		if users == nil {
			users = []models.User{}
		}
		response.JSON(c, http.StatusOK, "Users retrieved successfully", users)
	}
}
