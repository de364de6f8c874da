// template_repository.go implements TemplateRepository for company email templates.
package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/mailnow/mailnow-admin/internal/db/models"
)

const templateColumns = `id, company_id, name, subject, content, template_type, created_at, updated_at`

// TemplateRepository handles template database operations
type TemplateRepository struct {
	db *sqlx.DB
}

// NewTemplateRepository creates a new TemplateRepository
func NewTemplateRepository(db *sqlx.DB) *TemplateRepository {
	return &TemplateRepository{db: db}
}

// Create inserts a template.
func (r *TemplateRepository) Create(ctx context.Context, t *models.Template) error {
	err := r.db.QueryRowxContext(ctx, `
		INSERT INTO templates (company_id, name, subject, content, template_type)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, created_at, updated_at
	`, t.CompanyID, t.Name, t.Subject, t.Content, t.TemplateType).Scan(&t.ID, &t.CreatedAt, &t.UpdatedAt)
	return translateWriteError(err, "template")
}

// GetByID retrieves a template regardless of company. Returns nil, nil when absent.
func (r *TemplateRepository) GetByID(ctx context.Context, id int64) (*models.Template, error) {
	var t models.Template
	err := r.db.GetContext(ctx, &t, `SELECT `+templateColumns+` FROM templates WHERE id = $1`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get template: %w", err)
	}
	return &t, nil
}

// ListByCompany returns templates matching the name/subject search and optional type, newest first.
func (r *TemplateRepository) ListByCompany(ctx context.Context, companyID int64, opts ListOptions, templateType string) ([]models.Template, error) {
	opts = opts.Normalize()
	var c conditions
	c.add(`company_id = ?`, companyID)
	if opts.Search != "" {
		c.add(`(name ILIKE ? OR subject ILIKE ?)`, searchPattern(opts.Search))
	}
	if templateType != "" {
		c.add(`template_type = ?`, templateType)
	}
	query := `SELECT ` + templateColumns + ` FROM templates` + c.where() + ` ORDER BY updated_at DESC` + c.page(opts.Limit, opts.Offset)

	out := make([]models.Template, 0)
	if err := r.db.SelectContext(ctx, &out, query, c.args...); err != nil {
		return nil, fmt.Errorf("failed to list templates: %w", err)
	}
	return out, nil
}

// CountByType returns the company's template count per template_type.
func (r *TemplateRepository) CountByType(ctx context.Context, companyID int64) ([]models.TemplateTypeCount, error) {
	out := make([]models.TemplateTypeCount, 0)
	err := r.db.SelectContext(ctx, &out, `
		SELECT template_type, COUNT(*) AS count
		FROM templates WHERE company_id = $1
		GROUP BY template_type ORDER BY template_type
	`, companyID)
	if err != nil {
		return nil, fmt.Errorf("failed to count templates: %w", err)
	}
	return out, nil
}

// Update writes name, subject, content and type, scoped to t.CompanyID.
func (r *TemplateRepository) Update(ctx context.Context, t *models.Template) error {
	err := r.db.QueryRowxContext(ctx, `
		UPDATE templates
		SET name = $3, subject = $4, content = $5, template_type = $6, updated_at = NOW()
		WHERE id = $1 AND company_id = $2
		RETURNING updated_at
	`, t.ID, t.CompanyID, t.Name, t.Subject, t.Content, t.TemplateType).Scan(&t.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return notFound("template")
	}
	return translateWriteError(err, "template")
}

// Delete removes a template within companyID.
func (r *TemplateRepository) Delete(ctx context.Context, companyID, id int64) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM templates WHERE id = $1 AND company_id = $2`, id, companyID)
	return expectOneRow(res, err, "template")
}
