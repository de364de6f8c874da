// user_repository.go implements UserRepository: account lookup by id and email, registration of a
// user together with the company they own, password changes and cascading account deletion.
package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/mailnow/mailnow-admin/internal/db/models"
)

const userColumns = `id, email, password_hash, firstname, lastname, is_active, is_staff,
	is_superuser, email_verified, mfa_enabled, date_joined`

// UserRepository handles user database operations
type UserRepository struct {
	db *sqlx.DB
}

// NewUserRepository creates a new UserRepository
func NewUserRepository(db *sqlx.DB) *UserRepository {
	return &UserRepository{db: db}
}

const insertUserQuery = `
	INSERT INTO users (email, password_hash, firstname, lastname, is_active, is_staff,
	                   is_superuser, email_verified, mfa_enabled)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	RETURNING id, date_joined
`

func insertUser(ctx context.Context, q sqlx.QueryerContext, u *models.User) error {
	err := q.QueryRowxContext(ctx, insertUserQuery,
		u.Email, u.PasswordHash, u.Firstname, u.Lastname, u.IsActive, u.IsStaff,
		u.IsSuperuser, u.EmailVerified, u.MFAEnabled,
	).Scan(&u.ID, &u.DateJoined)
	return translateWriteError(err, "user with this email")
}

// Create inserts a standalone user (invited team members have no company of their own yet).
func (r *UserRepository) Create(ctx context.Context, u *models.User) error {
	return insertUser(ctx, r.db, u)
}

// CreateWithCompany inserts the user and the company they own in one transaction.
// Either both rows exist afterwards or neither does.
func (r *UserRepository) CreateWithCompany(ctx context.Context, u *models.User, c *models.Company) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback() // nolint:errcheck

	if err := insertUser(ctx, tx, u); err != nil {
		return err
	}

	c.OwnerID = u.ID
	err = tx.QueryRowxContext(ctx, `
		INSERT INTO companies (owner_id, company_name, address, website, sending_domain,
		                       default_from_name, default_from_email, industry_id,
		                       pricing_tier, api_credits)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING id, credits_reset_date, created_at, updated_at
	`,
		c.OwnerID, c.CompanyName, c.Address, c.Website, c.SendingDomain,
		c.DefaultFromName, c.DefaultFromEmail, c.IndustryID, c.PricingTier, c.APICredits,
	).Scan(&c.ID, &c.CreditsResetDate, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		return translateWriteError(err, "company")
	}

	return tx.Commit()
}

// CreateWithMembership inserts an invited user and their membership of m.CompanyID in one
// transaction.
func (r *UserRepository) CreateWithMembership(ctx context.Context, u *models.User, m *models.TeamMember) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback() // nolint:errcheck

	if err := insertUser(ctx, tx, u); err != nil {
		return err
	}

	m.UserID = u.ID
	err = tx.QueryRowxContext(ctx, `
		INSERT INTO team_members (user_id, company_id, role)
		VALUES ($1, $2, $3)
		RETURNING id, created_at, updated_at
	`, m.UserID, m.CompanyID, m.Role).Scan(&m.ID, &m.CreatedAt, &m.UpdatedAt)
	if err != nil {
		return translateWriteError(err, "team member")
	}

	return tx.Commit()
}

// GetByID retrieves a user by ID. Returns nil, nil when absent.
func (r *UserRepository) GetByID(ctx context.Context, id int64) (*models.User, error) {
	var u models.User
	err := r.db.GetContext(ctx, &u, `SELECT `+userColumns+` FROM users WHERE id = $1`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return &u, nil
}

// GetByEmail retrieves a user by case-insensitive email. Returns nil, nil when absent.
func (r *UserRepository) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	var u models.User
	err := r.db.GetContext(ctx, &u, `SELECT `+userColumns+` FROM users WHERE LOWER(email) = LOWER($1)`, email)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get user by email: %w", err)
	}
	return &u, nil
}

// List returns users matching the search on email or name, newest first.
func (r *UserRepository) List(ctx context.Context, opts ListOptions) ([]models.User, error) {
	opts = opts.Normalize()
	var c conditions
	if opts.Search != "" {
		c.add(`(email ILIKE ? OR firstname ILIKE ? OR lastname ILIKE ?)`, searchPattern(opts.Search))
	}
	query := `SELECT ` + userColumns + ` FROM users` + c.where() + ` ORDER BY date_joined DESC` + c.page(opts.Limit, opts.Offset)

	users := make([]models.User, 0)
	if err := r.db.SelectContext(ctx, &users, query, c.args...); err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}
	return users, nil
}

// UpdateProfile writes the mutable profile fields.
func (r *UserRepository) UpdateProfile(ctx context.Context, u *models.User) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE users SET firstname = $2, lastname = $3, mfa_enabled = $4 WHERE id = $1`,
		u.ID, u.Firstname, u.Lastname, u.MFAEnabled,
	)
	return expectOneRow(res, err, "user")
}

// UpdatePassword replaces the stored password hash.
func (r *UserRepository) UpdatePassword(ctx context.Context, id int64, passwordHash string) error {
	res, err := r.db.ExecContext(ctx, `UPDATE users SET password_hash = $2 WHERE id = $1`, id, passwordHash)
	return expectOneRow(res, err, "user")
}

// MarkEmailVerified sets email_verified on the user, provided their address is still email.
// A user whose address changed since the token was issued is reported as not found.
func (r *UserRepository) MarkEmailVerified(ctx context.Context, id int64, email string) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE users SET email_verified = TRUE WHERE id = $1 AND LOWER(email) = LOWER($2)`, id, email)
	return expectOneRow(res, err, "user")
}

// Delete removes the user. Their company, its resources and their memberships cascade.
func (r *UserRepository) Delete(ctx context.Context, id int64) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM users WHERE id = $1`, id)
	return expectOneRow(res, err, "user")
}

// expectOneRow turns a zero-row UPDATE/DELETE into ErrNotFound.
func expectOneRow(res sql.Result, err error, what string) error {
	if err != nil {
		return translateWriteError(err, what)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read affected rows: %w", err)
	}
	if n == 0 {
		return notFound(what)
	}
	return nil
}
