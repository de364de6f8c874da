package admin

import (
	"context"

	"github.com/gin-gonic/gin"

	"github.com/mailnow/mailnow-admin/internal/api/params"
	"github.com/mailnow/mailnow-admin/internal/api/response"
	"github.com/mailnow/mailnow-admin/internal/apperr"
	"github.com/mailnow/mailnow-admin/internal/db/models"
	"github.com/mailnow/mailnow-admin/internal/enums"
	"github.com/mailnow/mailnow-admin/internal/middleware"
	"github.com/mailnow/mailnow-admin/internal/services"
)

// TeamManager is implemented by *services.TeamService.
type TeamManager interface {
	ListMembers(ctx context.Context, companyID int64) ([]models.TeamMemberWithUser, error)
	AddMemberByEmail(ctx context.Context, companyID int64, email string, role, grantor enums.Role) (*models.TeamMember, error)
	ChangeRole(ctx context.Context, companyID, memberID int64, role, grantor enums.Role) (*models.TeamMember, error)
	RemoveMember(ctx context.Context, companyID, memberID int64) error
	Invite(ctx context.Context, companyID, invitedBy int64, email string, role, grantor enums.Role) (*services.Invitation, error)
	AcceptInvite(ctx context.Context, in services.AcceptInviteInput) (*models.User, *models.TeamMember, error)
}

// TeamHandlers serves team membership and invitations.
type TeamHandlers struct {
	team TeamManager
}

// NewTeamHandlers creates TeamHandlers.
func NewTeamHandlers(team TeamManager) *TeamHandlers {
	return &TeamHandlers{team: team}
}

// MemberRequest is the body of the add-member and invite endpoints.
type MemberRequest struct {
	Email string `json:"email"`
	// Role defaults to member.
	Role string `json:"role"`
}

// RoleRequest is the body of PATCH .../team/members/:id.
type RoleRequest struct {
	Role string `json:"role"`
}

// AcceptInviteResponse is returned by POST /api/v1/team/accept-invite.
type AcceptInviteResponse struct {
	User   *models.User       `json:"user"`
	Member *models.TeamMember `json:"member"`
}

// parseMemberRole parses a role a team member may hold. Empty means member; owner is
// refused since ownership belongs to the company record.
func parseMemberRole(raw string) (enums.Role, error) {
	if raw == "" {
		return enums.RoleMember, nil
	}
	role, err := enums.ParseRole(raw)
	if err != nil {
		return "", err
	}
	if role == enums.RoleOwner {
		return "", apperr.Invalid("role", "ownership cannot be assigned to a team member")
	}
	return role, nil
}

// ListMembersHandler lists the company's team.
// GET /api/v1/companies/:company_id/team/members
func (h *TeamHandlers) ListMembersHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		members, err := h.team.ListMembers(c.Request.Context(), companyID(c))
		if err != nil {
			response.Error(c, err)
			return
		}
		if members == nil {
			members = []models.TeamMemberWithUser{}
		}
		response.OK(c, "Team members retrieved successfully", members)
	}
}

// AddMemberHandler adds an existing user to the team by email.
// POST /api/v1/companies/:company_id/team/members
func (h *TeamHandlers) AddMemberHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req MemberRequest
		if !params.BindJSON(c, &req) {
			return
		}
		role, err := parseMemberRole(req.Role)
		if err != nil {
			response.Error(c, err)
			return
		}
		member, err := h.team.AddMemberByEmail(c.Request.Context(), companyID(c), req.Email, role, middleware.CompanyRole(c))
		if err != nil {
			response.Error(c, err)
			return
		}
		response.Created(c, "Team member added successfully", member)
	}
}

// ChangeRoleHandler changes a member's role.
// PATCH /api/v1/companies/:company_id/team/members/:id
func (h *TeamHandlers) ChangeRoleHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := params.ID(c, "id")
		if !ok {
			return
		}
		var req RoleRequest
		if !params.BindJSON(c, &req) {
			return
		}
		if req.Role == "" {
			response.Error(c, apperr.Invalid("role", "is required"))
			return
		}
		role, err := parseMemberRole(req.Role)
		if err != nil {
			response.Error(c, err)
			return
		}
		member, err := h.team.ChangeRole(c.Request.Context(), companyID(c), id, role, middleware.CompanyRole(c))
		if err != nil {
			response.Error(c, err)
			return
		}
		response.OK(c, "Team member updated successfully", member)
	}
}

// RemoveMemberHandler removes a member from the team.
// DELETE /api/v1/companies/:company_id/team/members/:id
func (h *TeamHandlers) RemoveMemberHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := params.ID(c, "id")
		if !ok {
			return
		}
		if err := h.team.RemoveMember(c.Request.Context(), companyID(c), id); err != nil {
			response.Error(c, err)
			return
		}
		response.OK(c, "Team member removed successfully", nil)
	}
}

// InviteHandler issues an invitation token. Delivering it to the invitee is left to the
// caller; no email is sent from here.
// POST /api/v1/companies/:company_id/team/invite
func (h *TeamHandlers) InviteHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req MemberRequest
		if !params.BindJSON(c, &req) {
			return
		}
		role, err := parseMemberRole(req.Role)
		if err != nil {
			response.Error(c, err)
			return
		}
		inv, err := h.team.Invite(c.Request.Context(), companyID(c), middleware.CurrentUser(c).ID, req.Email, role, middleware.CompanyRole(c))
		if err != nil {
			response.Error(c, err)
			return
		}
		response.Created(c, "Invitation sent successfully", inv)
	}
}

// AcceptInviteHandler redeems an invitation token. Unauthenticated: the token is the
// credential.
// POST /api/v1/team/accept-invite
func (h *TeamHandlers) AcceptInviteHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req services.AcceptInviteInput
		if !params.BindJSON(c, &req) {
			return
		}
		user, member, err := h.team.AcceptInvite(c.Request.Context(), req)
		if err != nil {
			response.Error(c, err)
			return
		}
		response.OK(c, "Invitation accepted successfully", AcceptInviteResponse{User: user, Member: member})
	}
}
