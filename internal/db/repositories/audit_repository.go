// audit_repository.go implements AuditRepository, providing database queries for writing
// and retrieving audit log entries filtered by company, actor, action and time window.
package repositories

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/mailnow/mailnow-admin/internal/db/models"
)

const auditColumns = `id, user_id, company_id, action, resource_type, resource_id, metadata, ip_address, created_at`

// AuditRepository handles audit log database operations
type AuditRepository struct {
	db *sqlx.DB
}

// NewAuditRepository creates a new AuditRepository
func NewAuditRepository(db *sqlx.DB) *AuditRepository {
	return &AuditRepository{db: db}
}

// AuditFilters contains filters for querying audit logs
type AuditFilters struct {
	UserID       *int64
	CompanyID    *int64
	Action       *string
	ResourceType *string
	StartDate    *time.Time
	EndDate      *time.Time
}

// CreateAuditLog creates a new audit log entry
func (r *AuditRepository) CreateAuditLog(ctx context.Context, log *models.AuditLog) error {
	var metadataJSON []byte
	if log.Metadata != nil {
		var err error
		if metadataJSON, err = json.Marshal(log.Metadata); err != nil {
			return fmt.Errorf("failed to encode audit metadata: %w", err)
		}
	}

	err := r.db.QueryRowxContext(ctx, `
		INSERT INTO audit_logs (user_id, company_id, action, resource_type, resource_id, metadata, ip_address)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id, created_at
	`, log.UserID, log.CompanyID, log.Action, log.ResourceType, log.ResourceID, metadataJSON, log.IPAddress,
	).Scan(&log.ID, &log.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to create audit log: %w", err)
	}
	return nil
}

// ListAuditLogs retrieves audit logs with optional filters and pagination
func (r *AuditRepository) ListAuditLogs(ctx context.Context, filters AuditFilters, limit, offset int) ([]*models.AuditLog, int, error) {
	var c conditions
	if filters.UserID != nil {
		c.add(`user_id = ?`, *filters.UserID)
	}
	if filters.CompanyID != nil {
		c.add(`company_id = ?`, *filters.CompanyID)
	}
	if filters.Action != nil {
		c.add(`action = ?`, *filters.Action)
	}
	if filters.ResourceType != nil {
		c.add(`resource_type = ?`, *filters.ResourceType)
	}
	if filters.StartDate != nil {
		c.add(`created_at >= ?`, *filters.StartDate)
	}
	if filters.EndDate != nil {
		c.add(`created_at <= ?`, *filters.EndDate)
	}

	var total int
	if err := r.db.GetContext(ctx, &total, `SELECT COUNT(*) FROM audit_logs`+c.where(), c.args...); err != nil {
		return nil, 0, fmt.Errorf("failed to count audit logs: %w", err)
	}

	query := `SELECT ` + auditColumns + ` FROM audit_logs` + c.where() + ` ORDER BY created_at DESC` + c.page(limit, offset)
	rows, err := r.db.QueryxContext(ctx, query, c.args...)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list audit logs: %w", err)
	}
	defer rows.Close()

	logs := make([]*models.AuditLog, 0)
	for rows.Next() {
		log, err := scanAuditLog(rows)
		if err != nil {
			return nil, 0, err
		}
		logs = append(logs, log)
	}

	return logs, total, rows.Err()
}

// GetAuditLog retrieves a single audit log entry by ID. Returns nil, nil when absent.
func (r *AuditRepository) GetAuditLog(ctx context.Context, id int64) (*models.AuditLog, error) {
	log, err := scanAuditLog(r.db.QueryRowxContext(ctx, `SELECT `+auditColumns+` FROM audit_logs WHERE id = $1`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return log, err
}

// rowScanner is satisfied by *sqlx.Row and *sqlx.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanAuditLog(s rowScanner) (*models.AuditLog, error) {
	log := &models.AuditLog{}
	var metadataJSON []byte
	err := s.Scan(
		&log.ID,
		&log.UserID,
		&log.CompanyID,
		&log.Action,
		&log.ResourceType,
		&log.ResourceID,
		&metadataJSON,
		&log.IPAddress,
		&log.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	if metadataJSON != nil {
		if err := json.Unmarshal(metadataJSON, &log.Metadata); err != nil {
			return nil, fmt.Errorf("failed to decode audit metadata: %w", err)
		}
	}
	return log, nil
}
