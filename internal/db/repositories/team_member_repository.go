// team_member_repository.go implements TeamMemberRepository: membership rows linking users to
// companies they do not own, with their role.
package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/mailnow/mailnow-admin/internal/apperr"
	"github.com/mailnow/mailnow-admin/internal/db/models"
	"github.com/mailnow/mailnow-admin/internal/enums"
)

const teamMemberColumns = `id, user_id, company_id, role, created_at, updated_at`

// TeamMemberRepository handles team membership database operations
type TeamMemberRepository struct {
	db *sqlx.DB
}

// NewTeamMemberRepository creates a new TeamMemberRepository
func NewTeamMemberRepository(db *sqlx.DB) *TeamMemberRepository {
	return &TeamMemberRepository{db: db}
}

// Create inserts a membership. An existing (user, company) pair yields
// apperr.ErrDuplicateMembership and leaves the existing row untouched.
func (r *TeamMemberRepository) Create(ctx context.Context, m *models.TeamMember) error {
	err := r.db.QueryRowxContext(ctx, `
		INSERT INTO team_members (user_id, company_id, role)
		VALUES ($1, $2, $3)
		RETURNING id, created_at, updated_at
	`, m.UserID, m.CompanyID, m.Role).Scan(&m.ID, &m.CreatedAt, &m.UpdatedAt)
	if isUniqueViolation(err) {
		return apperr.ErrDuplicateMembership
	}
	return translateWriteError(err, "team member")
}

// GetByID retrieves a membership. Returns nil, nil when absent.
func (r *TeamMemberRepository) GetByID(ctx context.Context, id int64) (*models.TeamMember, error) {
	var m models.TeamMember
	err := r.db.GetContext(ctx, &m, `SELECT `+teamMemberColumns+` FROM team_members WHERE id = $1`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get team member: %w", err)
	}
	return &m, nil
}

// GetByUserAndCompany retrieves the membership of userID in companyID. Returns nil, nil when absent.
func (r *TeamMemberRepository) GetByUserAndCompany(ctx context.Context, userID, companyID int64) (*models.TeamMember, error) {
	var m models.TeamMember
	err := r.db.GetContext(ctx, &m,
		`SELECT `+teamMemberColumns+` FROM team_members WHERE user_id = $1 AND company_id = $2`,
		userID, companyID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get team member: %w", err)
	}
	return &m, nil
}

// ListByCompany returns a company's members with their user details.
func (r *TeamMemberRepository) ListByCompany(ctx context.Context, companyID int64) ([]models.TeamMemberWithUser, error) {
	out := make([]models.TeamMemberWithUser, 0)
	err := r.db.SelectContext(ctx, &out, `
		SELECT tm.id, tm.user_id, tm.company_id, tm.role, tm.created_at, tm.updated_at,
		       u.email, u.firstname, u.lastname
		FROM team_members tm
		JOIN users u ON u.id = tm.user_id
		WHERE tm.company_id = $1
		ORDER BY tm.created_at
	`, companyID)
	if err != nil {
		return nil, fmt.Errorf("failed to list team members: %w", err)
	}
	return out, nil
}

// UpdateRole changes a member's role within companyID.
func (r *TeamMemberRepository) UpdateRole(ctx context.Context, companyID, id int64, role enums.Role) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE team_members SET role = $3, updated_at = NOW() WHERE id = $1 AND company_id = $2`,
		id, companyID, role)
	return expectOneRow(res, err, "team member")
}

// Delete removes a membership within companyID.
func (r *TeamMemberRepository) Delete(ctx context.Context, companyID, id int64) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM team_members WHERE id = $1 AND company_id = $2`, id, companyID)
	return expectOneRow(res, err, "team member")
}
