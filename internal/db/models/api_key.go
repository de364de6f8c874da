// Package models - api_key.go defines the APIKey model used by programmatic callers in place of a user session.
package models

import (
	"time"

	"github.com/mailnow/mailnow-admin/internal/enums"
)

// APIKey is a company-scoped credential. Only the SHA-256 digest of the token is stored;
// the plaintext is returned once at issuance.
type APIKey struct {
	ID         int64            `json:"id" db:"id"`
	CompanyID  int64            `json:"company_id" db:"company_id"`
	Name       string           `json:"name" db:"name"`
	KeyHash    string           `json:"-" db:"key_hash"`
	KeyPrefix  string           `json:"key_prefix" db:"key_prefix"` // e.g. "mk_live_3f9a"
	Permission enums.Permission `json:"permission" db:"permission"`
	IsActive   bool             `json:"is_active" db:"is_active"`
	CreatedAt  time.Time        `json:"created_at" db:"created_at"`
	LastUsed   *time.Time       `json:"last_used,omitempty" db:"last_used"`
	ExpiresAt  *time.Time       `json:"expires_at,omitempty" db:"expires_at"`
}

// IsExpired reports whether the key has an expiry at or before now.
func (k *APIKey) IsExpired(now time.Time) bool {
	return k.ExpiresAt != nil && !k.ExpiresAt.After(now)
}

// APIKeyStats summarizes a company's keys.
type APIKeyStats struct {
	Total  int64 `json:"total_keys" db:"total_keys"`
	Active int64 `json:"active_keys" db:"active_keys"`
}
