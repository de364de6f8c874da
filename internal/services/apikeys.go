// apikeys.go implements the API key registry: issuance with collision retry, authentication
// by token digest, capability checks and revocation.
package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/mailnow/mailnow-admin/internal/apperr"
	"github.com/mailnow/mailnow-admin/internal/auth"
	"github.com/mailnow/mailnow-admin/internal/db/models"
	"github.com/mailnow/mailnow-admin/internal/enums"
	"github.com/mailnow/mailnow-admin/internal/safego"
	"github.com/mailnow/mailnow-admin/internal/telemetry"
	"github.com/mailnow/mailnow-admin/internal/validation"
)

// APIKeyStore is the persistence the registry needs. *repositories.APIKeyRepository implements it.
type APIKeyStore interface {
	Create(ctx context.Context, key *models.APIKey) error
	GetByHash(ctx context.Context, keyHash string) (*models.APIKey, error)
	GetByID(ctx context.Context, id int64) (*models.APIKey, error)
	ListByCompany(ctx context.Context, companyID int64) ([]models.APIKey, error)
	Stats(ctx context.Context, companyID int64) (*models.APIKeyStats, error)
	Deactivate(ctx context.Context, companyID, id int64) error
	Delete(ctx context.Context, companyID, id int64) error
	UpdateLastUsed(ctx context.Context, id int64, at time.Time) error
}

// IssuedKey is a freshly created key. Key holds the plaintext token and is only ever
// returned from Issue.
type IssuedKey struct {
	models.APIKey
	Key string `json:"key"`
}

// APIKeyOptions tunes the registry.
type APIKeyOptions struct {
	MaxGenerationAttempts int
	LastUsedTimeout       time.Duration
}

// APIKeyService manages API keys.
type APIKeyService struct {
	keys     APIKeyStore
	opts     APIKeyOptions
	now      Clock
	generate func() (key, digest, prefix string, err error)
}

// NewAPIKeyService creates the registry.
func NewAPIKeyService(keys APIKeyStore, opts APIKeyOptions) *APIKeyService {
	if opts.MaxGenerationAttempts < 1 {
		opts.MaxGenerationAttempts = 5
	}
	if opts.LastUsedTimeout <= 0 {
		opts.LastUsedTimeout = 5 * time.Second
	}
	return &APIKeyService{keys: keys, opts: opts, now: systemClock, generate: auth.GenerateAPIKey}
}

// Issue creates a key for companyID and returns it with its plaintext token. An empty
// permission means full access. A digest collision is retried with a fresh token up to
// MaxGenerationAttempts times before failing with apperr.ErrGenerationFailed.
func (s *APIKeyService) Issue(ctx context.Context, companyID int64, name string, permission enums.Permission, expiresAt *time.Time) (*IssuedKey, error) {
	name = strings.TrimSpace(name)
	if permission == "" {
		permission = enums.PermissionFullAccess
	}
	if err := validation.First(
		validation.Required("name", name),
		validation.MaxLength("name", name, 100),
	); err != nil {
		return nil, err
	}
	if !permission.Valid() {
		return nil, apperr.Invalid("permission", "%q is not a valid permission", permission)
	}
	if expiresAt != nil && !expiresAt.After(s.now()) {
		return nil, apperr.Invalid("expires_at", "must be in the future")
	}

	for attempt := 1; attempt <= s.opts.MaxGenerationAttempts; attempt++ {
		token, digest, prefix, err := s.generate()
		if err != nil {
			return nil, err
		}
		key := models.APIKey{
			CompanyID:  companyID,
			Name:       name,
			KeyHash:    digest,
			KeyPrefix:  prefix,
			Permission: permission,
			ExpiresAt:  expiresAt,
		}
		err = s.keys.Create(ctx, &key)
		if errors.Is(err, apperr.ErrDuplicate) {
			slog.Warn("api key digest collision, regenerating", "company_id", companyID, "attempt", attempt)
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("failed to create api key: %w", err)
		}
		return &IssuedKey{APIKey: key, Key: token}, nil
	}
	return nil, apperr.ErrGenerationFailed
}

// Authenticate resolves a presented token. Checks run in order: existence (ErrNotFound),
// active flag (ErrInactiveKey), expiry (ErrExpiredKey). On success last_used is updated
// in the background; failures there are logged and never reach the caller.
func (s *APIKeyService) Authenticate(ctx context.Context, token string) (*models.APIKey, error) {
	key, err := s.keys.GetByHash(ctx, auth.HashAPIKey(token))
	if err != nil {
		telemetry.APIKeyAuthTotal.WithLabelValues("error").Inc()
		return nil, err
	}

	now := s.now()
	switch {
	case key == nil:
		telemetry.APIKeyAuthTotal.WithLabelValues("not_found").Inc()
		return nil, fmt.Errorf("api key: %w", apperr.ErrNotFound)
	case !key.IsActive:
		telemetry.APIKeyAuthTotal.WithLabelValues("inactive").Inc()
		return nil, apperr.ErrInactiveKey
	case key.IsExpired(now):
		telemetry.APIKeyAuthTotal.WithLabelValues("expired").Inc()
		return nil, apperr.ErrExpiredKey
	}

	telemetry.APIKeyAuthTotal.WithLabelValues("ok").Inc()
	s.touch(key.ID, now)
	return key, nil
}

func (s *APIKeyService) touch(id int64, at time.Time) {
	safego.Go("api_key_last_used", func() {
		ctx, cancel := context.WithTimeout(context.Background(), s.opts.LastUsedTimeout)
		defer cancel()
		if err := s.keys.UpdateLastUsed(ctx, id, at); err != nil {
			slog.Warn("failed to update api key last_used", "api_key_id", id, "error", err)
		}
	})
}

// Authorize reports whether key may perform capability.
func (s *APIKeyService) Authorize(key *models.APIKey, capability auth.Capability) bool {
	return key != nil && auth.Authorize(key.Permission, capability)
}

// Revoke deactivates a key. Revoking an inactive key succeeds.
func (s *APIKeyService) Revoke(ctx context.Context, companyID, keyID int64) error {
	if err := s.owned(ctx, companyID, keyID); err != nil {
		return err
	}
	return s.keys.Deactivate(ctx, companyID, keyID)
}

// Delete removes a key.
func (s *APIKeyService) Delete(ctx context.Context, companyID, keyID int64) error {
	if err := s.owned(ctx, companyID, keyID); err != nil {
		return err
	}
	return s.keys.Delete(ctx, companyID, keyID)
}

func (s *APIKeyService) owned(ctx context.Context, companyID, keyID int64) error {
	key, err := s.keys.GetByID(ctx, keyID)
	if err != nil {
		return err
	}
	var owner int64
	if key != nil {
		owner = key.CompanyID
	}
	return checkTenant("api key", key != nil, owner, companyID)
}

// List returns the company's keys, newest first.
func (s *APIKeyService) List(ctx context.Context, companyID int64) ([]models.APIKey, error) {
	return s.keys.ListByCompany(ctx, companyID)
}

// Stats counts the company's keys.
func (s *APIKeyService) Stats(ctx context.Context, companyID int64) (*models.APIKeyStats, error) {
	return s.keys.Stats(ctx, companyID)
}
