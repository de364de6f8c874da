// company_repository.go implements CompanyRepository: tenant lookup, profile updates, the
// per-user company listing with effective role, and API credit accounting.
package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/mailnow/mailnow-admin/internal/db/models"
	"github.com/mailnow/mailnow-admin/internal/enums"
)

const companyColumns = `id, owner_id, company_name, address, website, sending_domain,
	default_from_name, default_from_email, industry_id, pricing_tier, api_credits,
	credits_reset_date, created_at, updated_at`

// CompanyRepository handles company database operations
type CompanyRepository struct {
	db *sqlx.DB
}

// NewCompanyRepository creates a new CompanyRepository
func NewCompanyRepository(db *sqlx.DB) *CompanyRepository {
	return &CompanyRepository{db: db}
}

// CompanyFilters narrows List beyond the free-text search.
type CompanyFilters struct {
	IndustryID  *int64
	PricingTier *enums.PricingTier
}

// UserCompany is a company visible to a user together with the role they hold in it.
type UserCompany struct {
	models.Company
	Role enums.Role `json:"role" db:"role"`
}

// GetByID retrieves a company by ID. Returns nil, nil when absent.
func (r *CompanyRepository) GetByID(ctx context.Context, id int64) (*models.Company, error) {
	var c models.Company
	err := r.db.GetContext(ctx, &c, `SELECT `+companyColumns+` FROM companies WHERE id = $1`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get company: %w", err)
	}
	return &c, nil
}

// GetByOwnerID retrieves the company owned by userID. Returns nil, nil when absent.
func (r *CompanyRepository) GetByOwnerID(ctx context.Context, userID int64) (*models.Company, error) {
	var c models.Company
	err := r.db.GetContext(ctx, &c, `SELECT `+companyColumns+` FROM companies WHERE owner_id = $1`, userID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get company by owner: %w", err)
	}
	return &c, nil
}

// List returns companies matching the search on name or sending domain.
func (r *CompanyRepository) List(ctx context.Context, opts ListOptions, filters CompanyFilters) ([]models.Company, error) {
	opts = opts.Normalize()
	var c conditions
	if opts.Search != "" {
		c.add(`(company_name ILIKE ? OR sending_domain ILIKE ?)`, searchPattern(opts.Search))
	}
	if filters.IndustryID != nil {
		c.add(`industry_id = ?`, *filters.IndustryID)
	}
	if filters.PricingTier != nil {
		c.add(`pricing_tier = ?`, *filters.PricingTier)
	}
	query := `SELECT ` + companyColumns + ` FROM companies` + c.where() + ` ORDER BY id` + c.page(opts.Limit, opts.Offset)

	companies := make([]models.Company, 0)
	if err := r.db.SelectContext(ctx, &companies, query, c.args...); err != nil {
		return nil, fmt.Errorf("failed to list companies: %w", err)
	}
	return companies, nil
}

// ListForUser returns every company the user owns or is a member of. Ownership wins over
// any membership row for the same company.
func (r *CompanyRepository) ListForUser(ctx context.Context, userID int64) ([]UserCompany, error) {
	query := `
		SELECT ` + companyColumns + `, 'owner' AS role
		FROM companies WHERE owner_id = $1
		UNION ALL
		SELECT c.id, c.owner_id, c.company_name, c.address, c.website, c.sending_domain,
		       c.default_from_name, c.default_from_email, c.industry_id, c.pricing_tier,
		       c.api_credits, c.credits_reset_date, c.created_at, c.updated_at, tm.role
		FROM companies c
		JOIN team_members tm ON tm.company_id = c.id
		WHERE tm.user_id = $1 AND c.owner_id <> $1
		ORDER BY id
	`
	out := make([]UserCompany, 0)
	if err := r.db.SelectContext(ctx, &out, query, userID); err != nil {
		return nil, fmt.Errorf("failed to list companies for user: %w", err)
	}
	return out, nil
}

// UpdateProfile writes the editable profile fields.
func (r *CompanyRepository) UpdateProfile(ctx context.Context, c *models.Company) error {
	err := r.db.QueryRowxContext(ctx, `
		UPDATE companies
		SET company_name = $2, address = $3, website = $4, sending_domain = $5,
		    default_from_name = $6, default_from_email = $7, industry_id = $8, updated_at = NOW()
		WHERE id = $1
		RETURNING updated_at
	`,
		c.ID, c.CompanyName, c.Address, c.Website, c.SendingDomain,
		c.DefaultFromName, c.DefaultFromEmail, c.IndustryID,
	).Scan(&c.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return notFound("company")
	}
	return translateWriteError(err, "company")
}

// SetPricingTier changes the plan and grants the new tier's allowance immediately.
func (r *CompanyRepository) SetPricingTier(ctx context.Context, id int64, tier enums.PricingTier, now time.Time) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE companies
		SET pricing_tier = $2, api_credits = $3, credits_reset_date = $4, updated_at = NOW()
		WHERE id = $1
	`, id, tier, tier.MonthlyCredits(), now)
	return expectOneRow(res, err, "company")
}

// Delete removes the company; every owned resource cascades.
func (r *CompanyRepository) Delete(ctx context.Context, id int64) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM companies WHERE id = $1`, id)
	return expectOneRow(res, err, "company")
}

// DeductCredit atomically spends one credit. It reports false when the balance is already zero.
// Callers skip it for unlimited tiers.
func (r *CompanyRepository) DeductCredit(ctx context.Context, id int64) (bool, error) {
	res, err := r.db.ExecContext(ctx,
		`UPDATE companies SET api_credits = api_credits - 1 WHERE id = $1 AND api_credits > 0`, id)
	if err != nil {
		return false, fmt.Errorf("failed to deduct credit: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to read affected rows: %w", err)
	}
	return n == 1, nil
}

// ResetCreditsIfDue restores one company's monthly allowance when its reset month has passed.
// It reports whether a reset happened. Enterprise companies are never touched.
func (r *CompanyRepository) ResetCreditsIfDue(ctx context.Context, id int64, now time.Time) (bool, error) {
	res, err := r.db.ExecContext(ctx, resetCreditsQuery+` AND id = $4`,
		now, enums.PricingTierFree.MonthlyCredits(), enums.PricingTierDeveloper.MonthlyCredits(), id)
	if err != nil {
		return false, fmt.Errorf("failed to reset credits: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to read affected rows: %w", err)
	}
	return n > 0, nil
}

// ResetAllDueCredits restores the allowance of every company whose reset month has passed
// and returns how many were reset.
func (r *CompanyRepository) ResetAllDueCredits(ctx context.Context, now time.Time) (int64, error) {
	res, err := r.db.ExecContext(ctx, resetCreditsQuery,
		now, enums.PricingTierFree.MonthlyCredits(), enums.PricingTierDeveloper.MonthlyCredits())
	if err != nil {
		return 0, fmt.Errorf("failed to reset credits: %w", err)
	}
	return res.RowsAffected()
}

const resetCreditsQuery = `
	UPDATE companies
	SET api_credits = CASE pricing_tier WHEN 'developer' THEN $3 ELSE $2 END,
	    credits_reset_date = $1
	WHERE pricing_tier <> 'enterprise'
	  AND credits_reset_date < date_trunc('month', $1::timestamptz)`
