// Package models - audit_log.go defines the AuditLog model for recording mutating admin actions,
// capturing actor, tenant, action, affected resource, client IP and arbitrary metadata.
package models

import "time"

// AuditLog represents an audit log entry for tracking user actions
type AuditLog struct {
	ID           int64          `json:"id"`
	UserID       *int64         `json:"user_id,omitempty"` // nil for API key callers
	CompanyID    *int64         `json:"company_id,omitempty"`
	Action       string         `json:"action"` // "POST /api/v1/companies/:company_id/api-keys"
	ResourceType *string        `json:"resource_type,omitempty"`
	ResourceID   *string        `json:"resource_id,omitempty"`
	Metadata     map[string]any `json:"metadata,omitempty"` // JSONB
	IPAddress    *string        `json:"ip_address,omitempty"`
	CreatedAt    time.Time      `json:"created_at"`
}
