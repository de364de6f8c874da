// team.go manages company membership: direct adds, role changes, removal, invitations and the
// effective role used to authorize tenant routes.
package services

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/mailnow/mailnow-admin/internal/apperr"
	"github.com/mailnow/mailnow-admin/internal/auth"
	"github.com/mailnow/mailnow-admin/internal/db/models"
	"github.com/mailnow/mailnow-admin/internal/enums"
	"github.com/mailnow/mailnow-admin/internal/invites"
	"github.com/mailnow/mailnow-admin/internal/validation"
)

// TeamMemberStore is implemented by *repositories.TeamMemberRepository.
type TeamMemberStore interface {
	Create(ctx context.Context, m *models.TeamMember) error
	GetByID(ctx context.Context, id int64) (*models.TeamMember, error)
	GetByUserAndCompany(ctx context.Context, userID, companyID int64) (*models.TeamMember, error)
	ListByCompany(ctx context.Context, companyID int64) ([]models.TeamMemberWithUser, error)
	UpdateRole(ctx context.Context, companyID, id int64, role enums.Role) error
	Delete(ctx context.Context, companyID, id int64) error
}

// CompanyLookup loads companies by id.
type CompanyLookup interface {
	GetByID(ctx context.Context, id int64) (*models.Company, error)
}

// MemberUserStore is the part of the user store membership needs.
type MemberUserStore interface {
	GetByID(ctx context.Context, id int64) (*models.User, error)
	GetByEmail(ctx context.Context, email string) (*models.User, error)
	CreateWithMembership(ctx context.Context, u *models.User, m *models.TeamMember) error
}

// Invitation is an issued invite. Token is what the invitee presents to accept.
type Invitation struct {
	invites.Invite
	Token string `json:"token"`
}

// AcceptInviteInput carries the invitee's account details. Names and password are only used
// when no account exists for the invited email yet.
type AcceptInviteInput struct {
	Token     string `json:"token"`
	Firstname string `json:"firstname"`
	Lastname  string `json:"lastname"`
	Password  string `json:"password"`
}

// TeamService manages team membership.
type TeamService struct {
	members   TeamMemberStore
	companies CompanyLookup
	users     MemberUserStore
	invites   invites.Store
}

// NewTeamService creates a TeamService.
func NewTeamService(members TeamMemberStore, companies CompanyLookup, users MemberUserStore, store invites.Store) *TeamService {
	return &TeamService{members: members, companies: companies, users: users, invites: store}
}

// validateMemberRole accepts the roles a team_members row may hold. Ownership is the
// company's owner_id and is never stored as a membership.
func validateMemberRole(role enums.Role) error {
	if !role.Valid() {
		return apperr.Invalid("role", "%q is not a valid role", role)
	}
	if role == enums.RoleOwner {
		return apperr.Invalid("role", "ownership cannot be assigned to a team member")
	}
	return nil
}

// checkGrant rejects assigning role when grantor ranks below it.
func checkGrant(grantor, role enums.Role) error {
	if role.Rank() > grantor.Rank() {
		return fmt.Errorf("granting the %s role requires at least that role: %w", role, apperr.ErrForbidden)
	}
	return nil
}

func (s *TeamService) company(ctx context.Context, companyID int64) (*models.Company, error) {
	c, err := s.companies.GetByID(ctx, companyID)
	if err != nil {
		return nil, err
	}
	if c == nil {
		return nil, fmt.Errorf("company: %w", apperr.ErrNotFound)
	}
	return c, nil
}

// AddMember makes userID a member of companyID. An existing membership yields
// apperr.ErrDuplicateMembership and is left untouched. The owner cannot be added.
func (s *TeamService) AddMember(ctx context.Context, companyID, userID int64, role enums.Role) (*models.TeamMember, error) {
	if err := validateMemberRole(role); err != nil {
		return nil, err
	}
	c, err := s.company(ctx, companyID)
	if err != nil {
		return nil, err
	}
	if c.OwnerID == userID {
		return nil, apperr.Invalid("user_id", "the company owner cannot be added as a team member")
	}
	u, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if u == nil {
		return nil, fmt.Errorf("user: %w", apperr.ErrNotFound)
	}

	existing, err := s.members.GetByUserAndCompany(ctx, userID, companyID)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, apperr.ErrDuplicateMembership
	}

	m := &models.TeamMember{UserID: userID, CompanyID: companyID, Role: role}
	if err := s.members.Create(ctx, m); err != nil {
		return nil, err
	}
	return m, nil
}

// AddMemberByEmail resolves email to an existing user and adds them. grantor is the
// caller's effective role and must rank at least as high as role.
func (s *TeamService) AddMemberByEmail(ctx context.Context, companyID int64, email string, role, grantor enums.Role) (*models.TeamMember, error) {
	email = validation.NormalizeEmail(email)
	if err := validation.First(
		validation.ValidateEmail("email", email),
		validateMemberRole(role),
	); err != nil {
		return nil, err
	}
	if err := checkGrant(grantor, role); err != nil {
		return nil, err
	}
	u, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		return nil, err
	}
	if u == nil {
		return nil, fmt.Errorf("user %q: %w", email, apperr.ErrNotFound)
	}
	return s.AddMember(ctx, companyID, u.ID, role)
}

func (s *TeamService) member(ctx context.Context, companyID, memberID int64) (*models.TeamMember, error) {
	m, err := s.members.GetByID(ctx, memberID)
	if err != nil {
		return nil, err
	}
	var owner int64
	if m != nil {
		owner = m.CompanyID
	}
	if err := checkTenant("team member", m != nil, owner, companyID); err != nil {
		return nil, err
	}
	return m, nil
}

// ChangeRole sets a member's role. grantor must rank at least as high as both the member's
// current role and the new one.
func (s *TeamService) ChangeRole(ctx context.Context, companyID, memberID int64, role, grantor enums.Role) (*models.TeamMember, error) {
	if err := validateMemberRole(role); err != nil {
		return nil, err
	}
	if err := checkGrant(grantor, role); err != nil {
		return nil, err
	}
	m, err := s.member(ctx, companyID, memberID)
	if err != nil {
		return nil, err
	}
	if err := checkGrant(grantor, m.Role); err != nil {
		return nil, err
	}
	if err := s.members.UpdateRole(ctx, companyID, memberID, role); err != nil {
		return nil, err
	}
	m.Role = role
	return m, nil
}

// RemoveMember deletes a membership. The user account is kept.
func (s *TeamService) RemoveMember(ctx context.Context, companyID, memberID int64) error {
	if _, err := s.member(ctx, companyID, memberID); err != nil {
		return err
	}
	return s.members.Delete(ctx, companyID, memberID)
}

// ListMembers returns the company's members with user details.
func (s *TeamService) ListMembers(ctx context.Context, companyID int64) ([]models.TeamMemberWithUser, error) {
	return s.members.ListByCompany(ctx, companyID)
}

// EffectiveRole returns the role userID holds in companyID. The owner is always
// enums.RoleOwner regardless of any membership row. ok is false when the user has no access.
func (s *TeamService) EffectiveRole(ctx context.Context, companyID, userID int64) (role enums.Role, ok bool, err error) {
	c, err := s.company(ctx, companyID)
	if err != nil {
		return "", false, err
	}
	if c.OwnerID == userID {
		return enums.RoleOwner, true, nil
	}
	m, err := s.members.GetByUserAndCompany(ctx, userID, companyID)
	if err != nil {
		return "", false, err
	}
	if m == nil {
		return "", false, nil
	}
	// Only owner_id confers ownership.
	if m.Role == enums.RoleOwner {
		return enums.RoleAdmin, true, nil
	}
	return m.Role, true, nil
}

// Invite issues an invitation for email to join companyID with role. grantor is the
// inviter's effective role.
func (s *TeamService) Invite(ctx context.Context, companyID, invitedBy int64, email string, role, grantor enums.Role) (*Invitation, error) {
	email = validation.NormalizeEmail(email)
	if err := validation.First(
		validation.ValidateEmail("email", email),
		validateMemberRole(role),
	); err != nil {
		return nil, err
	}
	if err := checkGrant(grantor, role); err != nil {
		return nil, err
	}
	c, err := s.company(ctx, companyID)
	if err != nil {
		return nil, err
	}

	u, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		return nil, err
	}
	if u != nil {
		if u.ID == c.OwnerID {
			return nil, apperr.Invalid("email", "the company owner cannot be invited")
		}
		m, err := s.members.GetByUserAndCompany(ctx, u.ID, companyID)
		if err != nil {
			return nil, err
		}
		if m != nil {
			return nil, apperr.ErrDuplicateMembership
		}
	}

	inv := invites.Invite{CompanyID: companyID, Role: role, Email: email, InvitedBy: invitedBy}
	token, err := s.invites.Save(ctx, inv)
	if err != nil {
		return nil, err
	}
	slog.Info("team invite issued", "company_id", companyID, "role", role, "invited_by", invitedBy)
	return &Invitation{Invite: inv, Token: token}, nil
}

// AcceptInvite consumes an invitation. A new account is created for the invited email with
// the email marked verified; an existing account just gains the membership. The token is
// deleted only once the membership exists.
func (s *TeamService) AcceptInvite(ctx context.Context, in AcceptInviteInput) (*models.User, *models.TeamMember, error) {
	token := strings.TrimSpace(in.Token)
	if err := validation.Required("token", token); err != nil {
		return nil, nil, err
	}
	inv, err := s.invites.Load(ctx, token)
	if err != nil {
		return nil, nil, err
	}
	if inv == nil {
		return nil, nil, fmt.Errorf("invitation: %w", apperr.ErrNotFound)
	}

	u, err := s.users.GetByEmail(ctx, inv.Email)
	if err != nil {
		return nil, nil, err
	}

	var m *models.TeamMember
	if u != nil {
		m, err = s.AddMember(ctx, inv.CompanyID, u.ID, inv.Role)
		if err != nil {
			return nil, nil, err
		}
	} else {
		u, m, err = s.createInvitedUser(ctx, inv, in)
		if err != nil {
			return nil, nil, err
		}
	}

	if err := s.invites.Delete(ctx, token); err != nil {
		slog.Warn("failed to delete accepted invite", "company_id", inv.CompanyID, "error", err)
	}
	return u, m, nil
}

func (s *TeamService) createInvitedUser(ctx context.Context, inv *invites.Invite, in AcceptInviteInput) (*models.User, *models.TeamMember, error) {
	if err := validation.ValidatePassword("password", in.Password); err != nil {
		return nil, nil, err
	}
	if _, err := s.company(ctx, inv.CompanyID); err != nil {
		return nil, nil, err
	}
	hash, err := auth.HashPassword(in.Password)
	if err != nil {
		return nil, nil, err
	}

	u := &models.User{
		Email:         inv.Email,
		PasswordHash:  hash,
		Firstname:     optionalString(in.Firstname),
		Lastname:      optionalString(in.Lastname),
		IsActive:      true,
		EmailVerified: true,
	}
	m := &models.TeamMember{CompanyID: inv.CompanyID, Role: inv.Role}
	if err := s.users.CreateWithMembership(ctx, u, m); err != nil {
		return nil, nil, err
	}
	return u, m, nil
}
