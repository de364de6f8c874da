package admin

import (
	"context"
	"net/http"
	"testing"

	"github.com/gin-gonic/gin"

	"github.com/mailnow/mailnow-admin/internal/apperr"
	"github.com/mailnow/mailnow-admin/internal/db/models"
	"github.com/mailnow/mailnow-admin/internal/enums"
	"github.com/mailnow/mailnow-admin/internal/invites"
	"github.com/mailnow/mailnow-admin/internal/middleware"
	"github.com/mailnow/mailnow-admin/internal/services"
)

type fakeTeam struct {
	members  map[int64]*models.TeamMember
	users    map[string]int64
	invited  *invites.Invite
	tokens   map[string]invites.Invite
	removed  int64
	accepted services.AcceptInviteInput
	grantor  enums.Role
}

// grant mirrors the service's rank rule so handler tests see the same outcomes.
func (f *fakeTeam) grant(role, grantor enums.Role) error {
	f.grantor = grantor
	if role == enums.RoleOwner {
		return apperr.Invalid("role", "ownership cannot be assigned to a team member")
	}
	if role.Rank() > grantor.Rank() {
		return apperr.ErrForbidden
	}
	return nil
}

func newFakeTeam() *fakeTeam {
	return &fakeTeam{
		members: map[int64]*models.TeamMember{
			11: {ID: 11, UserID: 2, CompanyID: 9, Role: enums.RoleAdmin},
		},
		users:  map[string]int64{"dev@acme.io": 3},
		tokens: map[string]invites.Invite{},
	}
}

func (f *fakeTeam) ListMembers(_ context.Context, companyID int64) ([]models.TeamMemberWithUser, error) {
	var out []models.TeamMemberWithUser
	for _, m := range f.members {
		if m.CompanyID == companyID {
			out = append(out, models.TeamMemberWithUser{TeamMember: *m})
		}
	}
	return out, nil
}

func (f *fakeTeam) AddMemberByEmail(_ context.Context, companyID int64, email string, role, grantor enums.Role) (*models.TeamMember, error) {
	if err := f.grant(role, grantor); err != nil {
		return nil, err
	}
	userID, ok := f.users[email]
	if !ok {
		return nil, apperr.ErrNotFound
	}
	for _, m := range f.members {
		if m.UserID == userID && m.CompanyID == companyID {
			return nil, apperr.ErrDuplicateMembership
		}
	}
	m := &models.TeamMember{ID: int64(len(f.members) + 11), UserID: userID, CompanyID: companyID, Role: role}
	f.members[m.ID] = m
	return m, nil
}

func (f *fakeTeam) ChangeRole(_ context.Context, companyID, memberID int64, role, grantor enums.Role) (*models.TeamMember, error) {
	if err := f.grant(role, grantor); err != nil {
		return nil, err
	}
	m, ok := f.members[memberID]
	if !ok || m.CompanyID != companyID {
		return nil, apperr.ErrNotFound
	}
	if err := f.grant(m.Role, grantor); err != nil {
		return nil, err
	}
	m.Role = role
	return m, nil
}

func (f *fakeTeam) RemoveMember(_ context.Context, companyID, memberID int64) error {
	m, ok := f.members[memberID]
	if !ok || m.CompanyID != companyID {
		return apperr.ErrNotFound
	}
	delete(f.members, memberID)
	f.removed = memberID
	return nil
}

func (f *fakeTeam) Invite(_ context.Context, companyID, invitedBy int64, email string, role, grantor enums.Role) (*services.Invitation, error) {
	if email == "" {
		return nil, apperr.Invalid("email", "is required")
	}
	if err := f.grant(role, grantor); err != nil {
		return nil, err
	}
	inv := invites.Invite{CompanyID: companyID, Role: role, Email: email, InvitedBy: invitedBy}
	f.invited = &inv
	f.tokens["tok-1"] = inv
	return &services.Invitation{Invite: inv, Token: "tok-1"}, nil
}

func (f *fakeTeam) AcceptInvite(_ context.Context, in services.AcceptInviteInput) (*models.User, *models.TeamMember, error) {
	f.accepted = in
	inv, ok := f.tokens[in.Token]
	if !ok {
		return nil, nil, apperr.ErrNotFound
	}
	delete(f.tokens, in.Token)
	user := &models.User{ID: 4, Email: inv.Email, IsActive: true}
	return user, &models.TeamMember{ID: 20, UserID: user.ID, CompanyID: inv.CompanyID, Role: inv.Role}, nil
}

func teamRoutes(f *fakeTeam) http.Handler {
	return teamRoutesAs(f, enums.RoleOwner)
}

// teamRoutesAs serves the team routes to a caller holding role in company 9.
func teamRoutesAs(f *fakeTeam, role enums.Role) http.Handler {
	h := NewTeamHandlers(f)
	r := newTestRouter(owner, 9)
	r.Use(func(c *gin.Context) {
		c.Set(middleware.CompanyRoleKey, role)
		c.Next()
	})
	g := r.Group("/companies/:company_id/team")
	g.GET("/members", h.ListMembersHandler())
	g.POST("/members", h.AddMemberHandler())
	g.PATCH("/members/:id", h.ChangeRoleHandler())
	g.DELETE("/members/:id", h.RemoveMemberHandler())
	g.POST("/invite", h.InviteHandler())
	r.POST("/team/accept-invite", h.AcceptInviteHandler())
	return r
}

// ---------------------------------------------------------------------------
// Members
// ---------------------------------------------------------------------------

func TestListMembersHandler(t *testing.T) {
	w, env := doJSON(t, teamRoutes(newFakeTeam()), http.MethodGet, "/companies/9/team/members", nil)
	expectStatus(t, w, http.StatusOK)
	var members []models.TeamMemberWithUser
	decodeData(t, env, &members)
	if len(members) != 1 || members[0].Role != enums.RoleAdmin {
		t.Errorf("members = %+v", members)
	}
}

func TestAddMemberHandler(t *testing.T) {
	tests := []struct {
		name       string
		body       any
		wantStatus int
		wantRole   enums.Role
	}{
		{"default role", map[string]string{"email": "dev@acme.io"}, http.StatusCreated, enums.RoleMember},
		{"explicit admin", map[string]string{"email": "dev@acme.io", "role": "admin"}, http.StatusCreated, enums.RoleAdmin},
		{"unknown user", map[string]string{"email": "ghost@acme.io"}, http.StatusNotFound, ""},
		{"bad role", map[string]string{"email": "dev@acme.io", "role": "superhero"}, http.StatusBadRequest, ""},
		{"owner rejected", map[string]string{"email": "dev@acme.io", "role": "owner"}, http.StatusBadRequest, ""},
		{"malformed", "{", http.StatusBadRequest, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w, env := doJSON(t, teamRoutes(newFakeTeam()), http.MethodPost, "/companies/9/team/members", tt.body)
			expectStatus(t, w, tt.wantStatus)
			if tt.wantStatus != http.StatusCreated {
				return
			}
			var m models.TeamMember
			decodeData(t, env, &m)
			if m.Role != tt.wantRole || m.CompanyID != 9 || m.UserID != 3 {
				t.Errorf("member = %+v", m)
			}
		})
	}
}

func TestAddMemberHandler_AlreadyMember(t *testing.T) {
	f := newFakeTeam()
	r := teamRoutes(f)
	doJSON(t, r, http.MethodPost, "/companies/9/team/members", map[string]string{"email": "dev@acme.io"})
	w, _ := doJSON(t, r, http.MethodPost, "/companies/9/team/members", map[string]string{"email": "dev@acme.io"})
	expectStatus(t, w, http.StatusConflict)
}

func TestChangeRoleHandler(t *testing.T) {
	tests := []struct {
		name       string
		path       string
		body       any
		wantStatus int
	}{
		{"demote", "/companies/9/team/members/11", map[string]string{"role": "member"}, http.StatusOK},
		{"owner rejected", "/companies/9/team/members/11", map[string]string{"role": "owner"}, http.StatusBadRequest},
		{"missing role", "/companies/9/team/members/11", map[string]string{}, http.StatusBadRequest},
		{"unknown member", "/companies/9/team/members/99", map[string]string{"role": "member"}, http.StatusNotFound},
		{"bad id", "/companies/9/team/members/x", map[string]string{"role": "member"}, http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w, _ := doJSON(t, teamRoutes(newFakeTeam()), http.MethodPatch, tt.path, tt.body)
			expectStatus(t, w, tt.wantStatus)
		})
	}
}

func TestTeamHandlers_GrantLimitedByCallerRole(t *testing.T) {
	tests := []struct {
		name       string
		caller     enums.Role
		method     string
		path       string
		body       any
		wantStatus int
	}{
		{"admin adds admin", enums.RoleAdmin, http.MethodPost, "/companies/9/team/members", map[string]string{"email": "dev@acme.io", "role": "admin"}, http.StatusCreated},
		{"admin grants owner", enums.RoleAdmin, http.MethodPatch, "/companies/9/team/members/11", map[string]string{"role": "owner"}, http.StatusBadRequest},
		{"admin invites owner", enums.RoleAdmin, http.MethodPost, "/companies/9/team/invite", map[string]string{"email": "new@acme.io", "role": "owner"}, http.StatusBadRequest},
		{"member adds admin", enums.RoleMember, http.MethodPost, "/companies/9/team/members", map[string]string{"email": "dev@acme.io", "role": "admin"}, http.StatusForbidden},
		{"member demotes admin", enums.RoleMember, http.MethodPatch, "/companies/9/team/members/11", map[string]string{"role": "member"}, http.StatusForbidden},
		{"member invites admin", enums.RoleMember, http.MethodPost, "/companies/9/team/invite", map[string]string{"email": "new@acme.io", "role": "admin"}, http.StatusForbidden},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFakeTeam()
			w, _ := doJSON(t, teamRoutesAs(f, tt.caller), tt.method, tt.path, tt.body)
			expectStatus(t, w, tt.wantStatus)
			if tt.wantStatus != http.StatusBadRequest && f.grantor != tt.caller {
				t.Errorf("service saw grantor %q, want %q", f.grantor, tt.caller)
			}
			if tt.wantStatus == http.StatusBadRequest && f.grantor != "" {
				t.Errorf("owner grant reached the service")
			}
			if m := f.members[11]; m.Role != enums.RoleAdmin {
				t.Errorf("member 11 role changed to %q", m.Role)
			}
		})
	}
}

func TestRemoveMemberHandler(t *testing.T) {
	f := newFakeTeam()
	w, env := doJSON(t, teamRoutes(f), http.MethodDelete, "/companies/9/team/members/11", nil)
	expectStatus(t, w, http.StatusOK)
	if f.removed != 11 {
		t.Errorf("removed = %d", f.removed)
	}
	if env.Message != "Team member removed successfully" {
		t.Errorf("message = %q", env.Message)
	}
}

// ---------------------------------------------------------------------------
// Invitations
// ---------------------------------------------------------------------------

func TestInviteHandler(t *testing.T) {
	f := newFakeTeam()
	w, env := doJSON(t, teamRoutes(f), http.MethodPost, "/companies/9/team/invite",
		map[string]string{"email": "new@acme.io", "role": "admin"})
	expectStatus(t, w, http.StatusCreated)
	if env.Message != "Invitation sent successfully" {
		t.Errorf("message = %q", env.Message)
	}
	var inv services.Invitation
	decodeData(t, env, &inv)
	if inv.Token != "tok-1" || inv.Email != "new@acme.io" || inv.Role != enums.RoleAdmin {
		t.Errorf("invitation = %+v", inv)
	}
	if f.invited == nil || f.invited.InvitedBy != owner.ID || f.invited.CompanyID != 9 {
		t.Errorf("invite recorded as %+v", f.invited)
	}
}

func TestInviteHandler_MissingEmail(t *testing.T) {
	w, env := doJSON(t, teamRoutes(newFakeTeam()), http.MethodPost, "/companies/9/team/invite", map[string]string{})
	expectStatus(t, w, http.StatusBadRequest)
	if string(env.Data) != `{"field":"email"}` {
		t.Errorf("data = %s", env.Data)
	}
}

func TestAcceptInviteHandler(t *testing.T) {
	f := newFakeTeam()
	r := teamRoutes(f)
	doJSON(t, r, http.MethodPost, "/companies/9/team/invite", map[string]string{"email": "new@acme.io"})

	body := services.AcceptInviteInput{Token: "tok-1", Firstname: "Nia", Password: "s3cret-pass!"}
	w, env := doJSON(t, r, http.MethodPost, "/team/accept-invite", body)
	expectStatus(t, w, http.StatusOK)
	if f.accepted != body {
		t.Errorf("service got %+v", f.accepted)
	}
	var got AcceptInviteResponse
	decodeData(t, env, &got)
	if got.User == nil || got.User.Email != "new@acme.io" {
		t.Errorf("user = %+v", got.User)
	}
	if got.Member == nil || got.Member.CompanyID != 9 || got.Member.Role != enums.RoleMember {
		t.Errorf("member = %+v", got.Member)
	}

	// Tokens are single use.
	w, _ = doJSON(t, r, http.MethodPost, "/team/accept-invite", body)
	expectStatus(t, w, http.StatusNotFound)
}
