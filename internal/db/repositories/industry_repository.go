// industry_repository.go implements IndustryRepository for the industry lookup table.
package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/mailnow/mailnow-admin/internal/db/models"
)

// IndustryRepository handles industry database operations
type IndustryRepository struct {
	db *sqlx.DB
}

// NewIndustryRepository creates a new IndustryRepository
func NewIndustryRepository(db *sqlx.DB) *IndustryRepository {
	return &IndustryRepository{db: db}
}

// Create inserts an industry. A duplicate name yields apperr.ErrDuplicate.
func (r *IndustryRepository) Create(ctx context.Context, ind *models.Industry) error {
	err := r.db.QueryRowxContext(ctx,
		`INSERT INTO industries (name, description) VALUES ($1, $2) RETURNING id`,
		ind.Name, ind.Description,
	).Scan(&ind.ID)
	return translateWriteError(err, "industry")
}

// GetByID retrieves an industry. Returns nil, nil when absent.
func (r *IndustryRepository) GetByID(ctx context.Context, id int64) (*models.Industry, error) {
	var ind models.Industry
	err := r.db.GetContext(ctx, &ind, `SELECT id, name, description FROM industries WHERE id = $1`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get industry: %w", err)
	}
	return &ind, nil
}

// List returns industries ordered by name, optionally filtered by a name search.
func (r *IndustryRepository) List(ctx context.Context, opts ListOptions) ([]models.Industry, error) {
	opts = opts.Normalize()
	var c conditions
	if opts.Search != "" {
		c.add(`name ILIKE ?`, searchPattern(opts.Search))
	}
	query := `SELECT id, name, description FROM industries` + c.where() + ` ORDER BY name` + c.page(opts.Limit, opts.Offset)

	out := make([]models.Industry, 0)
	if err := r.db.SelectContext(ctx, &out, query, c.args...); err != nil {
		return nil, fmt.Errorf("failed to list industries: %w", err)
	}
	return out, nil
}

// Update renames or re-describes an industry.
func (r *IndustryRepository) Update(ctx context.Context, ind *models.Industry) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE industries SET name = $2, description = $3 WHERE id = $1`,
		ind.ID, ind.Name, ind.Description,
	)
	return expectOneRow(res, err, "industry")
}

// Delete removes an industry; companies referencing it keep existing with a NULL industry.
func (r *IndustryRepository) Delete(ctx context.Context, id int64) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM industries WHERE id = $1`, id)
	return expectOneRow(res, err, "industry")
}
