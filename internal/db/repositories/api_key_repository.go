// api_key_repository.go implements APIKeyRepository, providing database queries for API key
// lookup by token digest, creation, revocation, deletion and last-used timestamp updates.
package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/mailnow/mailnow-admin/internal/apperr"
	"github.com/mailnow/mailnow-admin/internal/db/models"
)

const apiKeyColumns = `id, company_id, name, key_hash, key_prefix, permission, is_active,
	created_at, last_used, expires_at`

// APIKeyRepository handles API key database operations
type APIKeyRepository struct {
	db *sqlx.DB
}

// NewAPIKeyRepository creates a new APIKeyRepository
func NewAPIKeyRepository(db *sqlx.DB) *APIKeyRepository {
	return &APIKeyRepository{db: db}
}

// Create inserts the key inside a serializable transaction. A digest collision with an existing
// key rolls back and returns apperr.ErrDuplicate so the caller can retry with a fresh token.
func (r *APIKeyRepository) Create(ctx context.Context, key *models.APIKey) error {
	tx, err := r.db.BeginTxx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback() // nolint:errcheck

	err = tx.QueryRowxContext(ctx, `
		INSERT INTO api_keys (company_id, name, key_hash, key_prefix, permission, is_active, expires_at)
		VALUES ($1, $2, $3, $4, $5, TRUE, $6)
		RETURNING id, is_active, created_at
	`,
		key.CompanyID, key.Name, key.KeyHash, key.KeyPrefix, key.Permission, key.ExpiresAt,
	).Scan(&key.ID, &key.IsActive, &key.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("api key token collision: %w", apperr.ErrDuplicate)
		}
		return translateWriteError(err, "api key")
	}

	return tx.Commit()
}

// GetByHash retrieves an API key by its token digest (for authentication). Returns nil, nil when absent.
func (r *APIKeyRepository) GetByHash(ctx context.Context, keyHash string) (*models.APIKey, error) {
	return r.getOne(ctx, `SELECT `+apiKeyColumns+` FROM api_keys WHERE key_hash = $1`, keyHash)
}

// GetByID retrieves an API key by ID. Returns nil, nil when absent.
func (r *APIKeyRepository) GetByID(ctx context.Context, id int64) (*models.APIKey, error) {
	return r.getOne(ctx, `SELECT `+apiKeyColumns+` FROM api_keys WHERE id = $1`, id)
}

func (r *APIKeyRepository) getOne(ctx context.Context, query string, arg any) (*models.APIKey, error) {
	var k models.APIKey
	err := r.db.GetContext(ctx, &k, query, arg)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get api key: %w", err)
	}
	return &k, nil
}

// ListByCompany returns a company's keys, newest first.
func (r *APIKeyRepository) ListByCompany(ctx context.Context, companyID int64) ([]models.APIKey, error) {
	keys := make([]models.APIKey, 0)
	err := r.db.SelectContext(ctx, &keys,
		`SELECT `+apiKeyColumns+` FROM api_keys WHERE company_id = $1 ORDER BY created_at DESC`, companyID)
	if err != nil {
		return nil, fmt.Errorf("failed to list api keys: %w", err)
	}
	return keys, nil
}

// Stats counts a company's keys.
func (r *APIKeyRepository) Stats(ctx context.Context, companyID int64) (*models.APIKeyStats, error) {
	var s models.APIKeyStats
	err := r.db.GetContext(ctx, &s, `
		SELECT COUNT(*) AS total_keys,
		       COUNT(*) FILTER (WHERE is_active AND (expires_at IS NULL OR expires_at > NOW())) AS active_keys
		FROM api_keys WHERE company_id = $1
	`, companyID)
	if err != nil {
		return nil, fmt.Errorf("failed to count api keys: %w", err)
	}
	return &s, nil
}

// Deactivate sets is_active = false. Deactivating an inactive key succeeds.
func (r *APIKeyRepository) Deactivate(ctx context.Context, companyID, id int64) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE api_keys SET is_active = FALSE WHERE id = $1 AND company_id = $2`, id, companyID)
	return expectOneRow(res, err, "api key")
}

// Delete removes a key.
func (r *APIKeyRepository) Delete(ctx context.Context, companyID, id int64) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM api_keys WHERE id = $1 AND company_id = $2`, id, companyID)
	return expectOneRow(res, err, "api key")
}

// UpdateLastUsed records the time of the latest successful authentication.
func (r *APIKeyRepository) UpdateLastUsed(ctx context.Context, id int64, at time.Time) error {
	_, err := r.db.ExecContext(ctx, `UPDATE api_keys SET last_used = $2 WHERE id = $1`, id, at)
	if err != nil {
		return fmt.Errorf("failed to update last used: %w", err)
	}
	return nil
}
