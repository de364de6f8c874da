// email_log_repository.go implements EmailLogRepository. The log is append-only: the repository
// exposes an insert and read queries, and the schema rejects UPDATE on email_logs.
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

const emailLogColumns = `id, company_id, message_id, from_email, to_email, subject, body, status, created_at`

// EmailLogRepository handles email log database operations
type EmailLogRepository struct {
	db *sqlx.DB
}

// NewEmailLogRepository creates a new EmailLogRepository
func NewEmailLogRepository(db *sqlx.DB) *EmailLogRepository {
	return &EmailLogRepository{db: db}
}

// EmailLogFilter selects log rows. Zero-valued fields do not constrain the query.
type EmailLogFilter struct {
	Status *enums.EmailStatus
	Since  *time.Time // inclusive
	Until  *time.Time // exclusive
	Search string     // matches recipient, sender or subject
	Limit  int
	Offset int
}

func (f EmailLogFilter) conditions(companyID int64) *conditions {
	c := &conditions{}
	c.add(`company_id = ?`, companyID)
	if f.Status != nil {
		c.add(`status = ?`, *f.Status)
	}
	if f.Since != nil {
		c.add(`created_at >= ?`, *f.Since)
	}
	if f.Until != nil {
		c.add(`created_at < ?`, *f.Until)
	}
	if f.Search != "" {
		c.add(`(to_email ILIKE ? OR from_email ILIKE ? OR subject ILIKE ?)`, searchPattern(f.Search))
	}
	return c
}

// Create appends a log row; ID and CreatedAt are assigned by the database.
func (r *EmailLogRepository) Create(ctx context.Context, l *models.EmailLog) error {
	err := r.db.QueryRowxContext(ctx, `
		INSERT INTO email_logs (company_id, message_id, from_email, to_email, subject, body, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id, created_at
	`, l.CompanyID, l.MessageID, l.FromEmail, l.ToEmail, l.Subject, l.Body, l.Status).Scan(&l.ID, &l.CreatedAt)
	return translateWriteError(err, "email log")
}

// GetByID retrieves a log row regardless of company. Returns nil, nil when absent.
func (r *EmailLogRepository) GetByID(ctx context.Context, id int64) (*models.EmailLog, error) {
	var l models.EmailLog
	err := r.db.GetContext(ctx, &l, `SELECT `+emailLogColumns+` FROM email_logs WHERE id = $1`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get email log: %w", err)
	}
	return &l, nil
}

// GetByMessageID retrieves the company's row carrying messageID. Returns nil, nil when
// absent or owned by another company.
func (r *EmailLogRepository) GetByMessageID(ctx context.Context, companyID int64, messageID string) (*models.EmailLog, error) {
	var l models.EmailLog
	err := r.db.GetContext(ctx, &l,
		`SELECT `+emailLogColumns+` FROM email_logs WHERE company_id = $1 AND message_id = $2`, companyID, messageID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get email log by message id: %w", err)
	}
	return &l, nil
}

// List returns the company's rows matching f, newest first, and the total match count.
func (r *EmailLogRepository) List(ctx context.Context, companyID int64, f EmailLogFilter) ([]models.EmailLog, int64, error) {
	paging := ListOptions{Limit: f.Limit, Offset: f.Offset}.Normalize()
	c := f.conditions(companyID)

	var total int64
	if err := r.db.GetContext(ctx, &total, `SELECT COUNT(*) FROM email_logs`+c.where(), c.args...); err != nil {
		return nil, 0, fmt.Errorf("failed to count email logs: %w", err)
	}

	query := `SELECT ` + emailLogColumns + ` FROM email_logs` + c.where() +
		` ORDER BY created_at DESC, id DESC` + c.page(paging.Limit, paging.Offset)
	out := make([]models.EmailLog, 0)
	if err := r.db.SelectContext(ctx, &out, query, c.args...); err != nil {
		return nil, 0, fmt.Errorf("failed to list email logs: %w", err)
	}
	return out, total, nil
}

// Each streams every row matching f (ignoring paging) to fn in creation order.
func (r *EmailLogRepository) Each(ctx context.Context, companyID int64, f EmailLogFilter, fn func(*models.EmailLog) error) error {
	c := f.conditions(companyID)
	rows, err := r.db.QueryxContext(ctx,
		`SELECT `+emailLogColumns+` FROM email_logs`+c.where()+` ORDER BY created_at, id`, c.args...)
	if err != nil {
		return fmt.Errorf("failed to query email logs: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var l models.EmailLog
		if err := rows.StructScan(&l); err != nil {
			return fmt.Errorf("failed to scan email log: %w", err)
		}
		if err := fn(&l); err != nil {
			return err
		}
	}
	return rows.Err()
}

// Stats aggregates the company's rows matching f's status-independent window.
func (r *EmailLogRepository) Stats(ctx context.Context, companyID int64, f EmailLogFilter) (*models.EmailLogStats, error) {
	f.Status = nil
	c := f.conditions(companyID)
	var s models.EmailLogStats
	err := r.db.GetContext(ctx, &s, `
		SELECT COUNT(*) AS total,
		       COUNT(*) FILTER (WHERE status = 'success') AS succeeded,
		       COUNT(*) FILTER (WHERE status = 'failed') AS failed,
		       COUNT(*) FILTER (WHERE status IN ('pending', 'queued')) AS pending
		FROM email_logs`+c.where(), c.args...)
	if err != nil {
		return nil, fmt.Errorf("failed to aggregate email logs: %w", err)
	}
	if s.Total > 0 {
		s.SuccessRate = percentage(s.Succeeded, s.Total)
	}
	return &s, nil
}

// Distribution counts the company's rows per status within f's window. Every status is
// present in the result, including those with zero rows.
func (r *EmailLogRepository) Distribution(ctx context.Context, companyID int64, f EmailLogFilter) ([]models.StatusCount, error) {
	f.Status = nil
	c := f.conditions(companyID)
	var counted []models.StatusCount
	err := r.db.SelectContext(ctx, &counted,
		`SELECT status, COUNT(*) AS count FROM email_logs`+c.where()+` GROUP BY status`, c.args...)
	if err != nil {
		return nil, fmt.Errorf("failed to count email logs by status: %w", err)
	}

	byStatus := make(map[enums.EmailStatus]int64, len(counted))
	var total int64
	for _, sc := range counted {
		byStatus[sc.Status] = sc.Count
		total += sc.Count
	}

	out := make([]models.StatusCount, 0, len(enums.EmailStatusValues()))
	for _, st := range enums.EmailStatusValues() {
		sc := models.StatusCount{Status: st, Count: byStatus[st]}
		if total > 0 {
			sc.Percentage = percentage(sc.Count, total)
		}
		out = append(out, sc)
	}
	return out, nil
}

// percentage returns part/total*100 rounded to one decimal place.
func percentage(part, total int64) float64 {
	return float64(part*1000/total) / 10
}
