package admin

import (
	"context"
	"errors"
	"net/http"
	"testing"

	"github.com/mailnow/mailnow-admin/internal/apperr"
	"github.com/mailnow/mailnow-admin/internal/db/models"
	"github.com/mailnow/mailnow-admin/internal/db/repositories"
	"github.com/mailnow/mailnow-admin/internal/enums"
	"github.com/mailnow/mailnow-admin/internal/services"
)

type fakeUserAccounts struct {
	companies   []repositories.UserCompany
	err         error
	passwordFor int64
	deleted     int64
	listOpts    repositories.ListOptions
}

func (f *fakeUserAccounts) UpdateProfile(_ context.Context, userID int64, in services.UserProfileInput) (*models.User, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &models.User{ID: userID, Firstname: in.Firstname, Lastname: in.Lastname}, nil
}

func (f *fakeUserAccounts) ChangePassword(_ context.Context, userID int64, current, next string) error {
	if current != "old-password" {
		return apperr.ErrInvalidPassword
	}
	if len(next) < 8 {
		return apperr.Invalid("new_password", "must be at least 8 characters")
	}
	f.passwordFor = userID
	return nil
}

func (f *fakeUserAccounts) CompaniesForUser(_ context.Context, _ int64) ([]repositories.UserCompany, error) {
	return f.companies, f.err
}

func (f *fakeUserAccounts) ListUsers(_ context.Context, opts repositories.ListOptions) ([]models.User, error) {
	f.listOpts = opts
	return nil, f.err
}

func (f *fakeUserAccounts) DeleteUser(_ context.Context, userID int64) error {
	f.deleted = userID
	return f.err
}

// ---------------------------------------------------------------------------
// Profile
// ---------------------------------------------------------------------------

func TestGetProfileHandler(t *testing.T) {
	first, last := "Ada", "Lovelace"
	user := &models.User{ID: 1, Email: "ada@acme.io", Firstname: &first, Lastname: &last}
	f := &fakeUserAccounts{companies: []repositories.UserCompany{
		{Company: models.Company{ID: 10, CompanyName: "Acme"}, Role: enums.RoleOwner},
		{Company: models.Company{ID: 20, CompanyName: "Globex"}, Role: enums.RoleMember},
	}}
	r := newTestRouter(user, 0)
	r.GET("/user/profile", NewUserHandlers(f).GetProfileHandler())

	w, env := doJSON(t, r, http.MethodGet, "/user/profile", nil)
	expectStatus(t, w, http.StatusOK)

	var data struct {
		ID        int64  `json:"id"`
		Email     string `json:"email"`
		FullName  string `json:"full_name"`
		Companies []struct {
			ID   int64      `json:"id"`
			Role enums.Role `json:"role"`
		} `json:"companies"`
	}
	decodeData(t, env, &data)
	if data.ID != 1 || data.Email != "ada@acme.io" || data.FullName != "Ada Lovelace" {
		t.Errorf("profile = %+v", data)
	}
	if len(data.Companies) != 2 || data.Companies[1].Role != enums.RoleMember {
		t.Errorf("companies = %+v", data.Companies)
	}
}

func TestGetProfileHandler_NoCompaniesIsEmptyList(t *testing.T) {
	r := newTestRouter(owner, 0)
	r.GET("/user/profile", NewUserHandlers(&fakeUserAccounts{}).GetProfileHandler())

	_, env := doJSON(t, r, http.MethodGet, "/user/profile", nil)
	var data struct {
		Companies []any `json:"companies"`
	}
	decodeData(t, env, &data)
	if data.Companies == nil {
		t.Error("companies = null, want []")
	}
}

func TestUpdateProfileHandler(t *testing.T) {
	r := newTestRouter(owner, 0)
	r.PUT("/user/profile", NewUserHandlers(&fakeUserAccounts{}).UpdateProfileHandler())

	w, env := doJSON(t, r, http.MethodPut, "/user/profile", map[string]string{"firstname": "Grace"})
	expectStatus(t, w, http.StatusOK)
	var u models.User
	decodeData(t, env, &u)
	if u.ID != owner.ID || u.Firstname == nil || *u.Firstname != "Grace" {
		t.Errorf("user = %+v", u)
	}
}

// ---------------------------------------------------------------------------
// Password and account deletion
// ---------------------------------------------------------------------------

func TestChangePasswordHandler(t *testing.T) {
	tests := []struct {
		name       string
		req        ChangePasswordRequest
		wantStatus int
	}{
		{"ok", ChangePasswordRequest{CurrentPassword: "old-password", NewPassword: "n3w-password"}, http.StatusOK},
		{"wrong current", ChangePasswordRequest{CurrentPassword: "guess", NewPassword: "n3w-password"}, http.StatusUnauthorized},
		{"weak new", ChangePasswordRequest{CurrentPassword: "old-password", NewPassword: "short"}, http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := &fakeUserAccounts{}
			r := newTestRouter(owner, 0)
			r.PUT("/user/password", NewUserHandlers(f).ChangePasswordHandler())

			w, _ := doJSON(t, r, http.MethodPut, "/user/password", tt.req)
			expectStatus(t, w, tt.wantStatus)
			if tt.wantStatus == http.StatusOK && f.passwordFor != owner.ID {
				t.Errorf("password changed for user %d, want %d", f.passwordFor, owner.ID)
			}
		})
	}
}

func TestDeleteAccountHandler(t *testing.T) {
	f := &fakeUserAccounts{}
	r := newTestRouter(owner, 0)
	r.DELETE("/user", NewUserHandlers(f).DeleteAccountHandler())

	w, _ := doJSON(t, r, http.MethodDelete, "/user", nil)
	expectStatus(t, w, http.StatusOK)
	if f.deleted != owner.ID {
		t.Errorf("deleted user %d, want %d", f.deleted, owner.ID)
	}
}

// ---------------------------------------------------------------------------
// Listings
// ---------------------------------------------------------------------------

func TestListCompaniesHandler_StoreError(t *testing.T) {
	r := newTestRouter(owner, 0)
	r.GET("/companies", NewUserHandlers(&fakeUserAccounts{err: errors.New("pq: connection reset")}).ListCompaniesHandler())

	w, env := doJSON(t, r, http.MethodGet, "/companies", nil)
	expectStatus(t, w, http.StatusInternalServerError)
	if env.Message != "Internal server error" {
		t.Errorf("message = %q, driver error leaked", env.Message)
	}
}

func TestListUsersHandler(t *testing.T) {
	f := &fakeUserAccounts{}
	r := newTestRouter(&models.User{ID: 2, IsStaff: true}, 0)
	r.GET("/admin/users", NewUserHandlers(f).ListUsersHandler())

	w, env := doJSON(t, r, http.MethodGet, "/admin/users?search=acme&limit=10&offset=20", nil)
	expectStatus(t, w, http.StatusOK)
	if string(env.Data) != "[]" {
		t.Errorf("data = %s, want []", env.Data)
	}
	if f.listOpts.Search != "acme" || f.listOpts.Limit != 10 || f.listOpts.Offset != 20 {
		t.Errorf("list options = %+v", f.listOpts)
	}
}
