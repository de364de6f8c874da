// webhook_repository.go implements WebhookRepository for company webhook subscriptions.
// The events list is stored as JSONB through models.StringList.
package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/mailnow/mailnow-admin/internal/db/models"
	"github.com/mailnow/mailnow-admin/internal/enums"
)

const webhookColumns = `id, company_id, name, url, events, status, is_active, last_delivered,
	success_rate, created_at, updated_at`

// WebhookRepository handles webhook database operations
type WebhookRepository struct {
	db *sqlx.DB
}

// NewWebhookRepository creates a new WebhookRepository
func NewWebhookRepository(db *sqlx.DB) *WebhookRepository {
	return &WebhookRepository{db: db}
}

// Create inserts a webhook.
func (r *WebhookRepository) Create(ctx context.Context, w *models.Webhook) error {
	err := r.db.QueryRowxContext(ctx, `
		INSERT INTO webhooks (company_id, name, url, events, status, is_active)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, success_rate, created_at, updated_at
	`, w.CompanyID, w.Name, w.URL, w.Events, w.Status, w.IsActive,
	).Scan(&w.ID, &w.SuccessRate, &w.CreatedAt, &w.UpdatedAt)
	return translateWriteError(err, "webhook")
}

// GetByID retrieves a webhook regardless of company. Returns nil, nil when absent.
func (r *WebhookRepository) GetByID(ctx context.Context, id int64) (*models.Webhook, error) {
	var w models.Webhook
	err := r.db.GetContext(ctx, &w, `SELECT `+webhookColumns+` FROM webhooks WHERE id = $1`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get webhook: %w", err)
	}
	return &w, nil
}

// ListByCompany returns the company's webhooks, optionally filtered by status.
func (r *WebhookRepository) ListByCompany(ctx context.Context, companyID int64, status *enums.Status) ([]models.Webhook, error) {
	var c conditions
	c.add(`company_id = ?`, companyID)
	if status != nil {
		c.add(`status = ?`, *status)
	}
	out := make([]models.Webhook, 0)
	query := `SELECT ` + webhookColumns + ` FROM webhooks` + c.where() + ` ORDER BY id`
	if err := r.db.SelectContext(ctx, &out, query, c.args...); err != nil {
		return nil, fmt.Errorf("failed to list webhooks: %w", err)
	}
	return out, nil
}

// Update writes the tenant-editable fields, scoped to w.CompanyID. Delivery statistics are
// left untouched.
func (r *WebhookRepository) Update(ctx context.Context, w *models.Webhook) error {
	err := r.db.QueryRowxContext(ctx, `
		UPDATE webhooks
		SET name = $3, url = $4, events = $5, status = $6, is_active = $7, updated_at = NOW()
		WHERE id = $1 AND company_id = $2
		RETURNING updated_at
	`, w.ID, w.CompanyID, w.Name, w.URL, w.Events, w.Status, w.IsActive).Scan(&w.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return notFound("webhook")
	}
	return translateWriteError(err, "webhook")
}

// Delete removes a webhook within companyID.
func (r *WebhookRepository) Delete(ctx context.Context, companyID, id int64) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM webhooks WHERE id = $1 AND company_id = $2`, id, companyID)
	return expectOneRow(res, err, "webhook")
}
