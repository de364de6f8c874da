// smtp_profile_repository.go implements SMTPProfileRepository. Every write that sets is_default
// clears the flag on the company's other profiles inside the same serializable transaction, so
// no reader ever sees two defaults.
package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/mailnow/mailnow-admin/internal/db/models"
)

const smtpProfileColumns = `id, company_id, smtp_username, smtp_password, smtp_server, smtp_port,
	is_default, created_at, updated_at`

// SMTPProfileRepository handles SMTP profile database operations
type SMTPProfileRepository struct {
	db *sqlx.DB
}

// NewSMTPProfileRepository creates a new SMTPProfileRepository
func NewSMTPProfileRepository(db *sqlx.DB) *SMTPProfileRepository {
	return &SMTPProfileRepository{db: db}
}

func (r *SMTPProfileRepository) beginSerializable(ctx context.Context) (*sqlx.Tx, error) {
	tx, err := r.db.BeginTxx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	return tx, nil
}

// clearDefault locks the company's profiles and clears is_default on all except keepID.
func clearDefault(ctx context.Context, tx *sqlx.Tx, companyID, keepID int64) error {
	if _, err := tx.ExecContext(ctx,
		`SELECT id FROM smtp_profiles WHERE company_id = $1 FOR UPDATE`, companyID); err != nil {
		return fmt.Errorf("failed to lock smtp profiles: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `
		UPDATE smtp_profiles SET is_default = FALSE, updated_at = NOW()
		WHERE company_id = $1 AND is_default AND id <> $2
	`, companyID, keepID); err != nil {
		return fmt.Errorf("failed to clear default smtp profile: %w", err)
	}
	return nil
}

// Create inserts a profile. When p.IsDefault is set the previous default is cleared atomically.
func (r *SMTPProfileRepository) Create(ctx context.Context, p *models.SMTPProfile) error {
	tx, err := r.beginSerializable(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback() // nolint:errcheck

	if p.IsDefault {
		if err := clearDefault(ctx, tx, p.CompanyID, 0); err != nil {
			return err
		}
	}

	err = tx.QueryRowxContext(ctx, `
		INSERT INTO smtp_profiles (company_id, smtp_username, smtp_password, smtp_server, smtp_port, is_default)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, created_at, updated_at
	`, p.CompanyID, p.SMTPUsername, p.SMTPPassword, p.SMTPServer, p.SMTPPort, p.IsDefault,
	).Scan(&p.ID, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return translateWriteError(err, "smtp profile")
	}

	return tx.Commit()
}

// Update writes every mutable field of p, scoped to p.CompanyID. Setting IsDefault clears the
// flag on the company's other profiles in the same transaction.
func (r *SMTPProfileRepository) Update(ctx context.Context, p *models.SMTPProfile) error {
	tx, err := r.beginSerializable(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback() // nolint:errcheck

	if p.IsDefault {
		if err := clearDefault(ctx, tx, p.CompanyID, p.ID); err != nil {
			return err
		}
	}

	err = tx.QueryRowxContext(ctx, `
		UPDATE smtp_profiles
		SET smtp_username = $3, smtp_password = $4, smtp_server = $5, smtp_port = $6,
		    is_default = $7, updated_at = NOW()
		WHERE id = $1 AND company_id = $2
		RETURNING updated_at
	`, p.ID, p.CompanyID, p.SMTPUsername, p.SMTPPassword, p.SMTPServer, p.SMTPPort, p.IsDefault,
	).Scan(&p.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return notFound("smtp profile")
	}
	if err != nil {
		return translateWriteError(err, "smtp profile")
	}

	return tx.Commit()
}

// SetDefault makes profile id the company's only default.
func (r *SMTPProfileRepository) SetDefault(ctx context.Context, companyID, id int64) error {
	tx, err := r.beginSerializable(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback() // nolint:errcheck

	if err := clearDefault(ctx, tx, companyID, id); err != nil {
		return err
	}

	res, err := tx.ExecContext(ctx, `
		UPDATE smtp_profiles SET is_default = TRUE, updated_at = NOW()
		WHERE id = $1 AND company_id = $2
	`, id, companyID)
	if err := expectOneRow(res, err, "smtp profile"); err != nil {
		return err
	}

	return tx.Commit()
}

// GetByID retrieves a profile regardless of company. Returns nil, nil when absent.
func (r *SMTPProfileRepository) GetByID(ctx context.Context, id int64) (*models.SMTPProfile, error) {
	var p models.SMTPProfile
	err := r.db.GetContext(ctx, &p, `SELECT `+smtpProfileColumns+` FROM smtp_profiles WHERE id = $1`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get smtp profile: %w", err)
	}
	return &p, nil
}

// GetDefault returns the company's default profile. Returns nil, nil when none is set.
func (r *SMTPProfileRepository) GetDefault(ctx context.Context, companyID int64) (*models.SMTPProfile, error) {
	var p models.SMTPProfile
	err := r.db.GetContext(ctx, &p,
		`SELECT `+smtpProfileColumns+` FROM smtp_profiles WHERE company_id = $1 AND is_default`, companyID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get default smtp profile: %w", err)
	}
	return &p, nil
}

// ListByCompany returns the company's profiles, default first.
func (r *SMTPProfileRepository) ListByCompany(ctx context.Context, companyID int64) ([]models.SMTPProfile, error) {
	out := make([]models.SMTPProfile, 0)
	err := r.db.SelectContext(ctx, &out,
		`SELECT `+smtpProfileColumns+` FROM smtp_profiles WHERE company_id = $1 ORDER BY is_default DESC, id`,
		companyID)
	if err != nil {
		return nil, fmt.Errorf("failed to list smtp profiles: %w", err)
	}
	return out, nil
}

// Delete removes a profile within companyID.
func (r *SMTPProfileRepository) Delete(ctx context.Context, companyID, id int64) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM smtp_profiles WHERE id = $1 AND company_id = $2`, id, companyID)
	return expectOneRow(res, err, "smtp profile")
}
