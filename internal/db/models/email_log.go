// Package models - email_log.go defines the append-only email send log and its read-side aggregates.
package models

import (
	"time"

	"github.com/mailnow/mailnow-admin/internal/enums"
)

// EmailLog is one send attempt. Rows are inserted once and never updated or deleted by tenants.
type EmailLog struct {
	ID        int64             `json:"id" db:"id"`
	CompanyID int64             `json:"company_id" db:"company_id"`
	MessageID string            `json:"message_id" db:"message_id"`
	FromEmail string            `json:"from_email" db:"from_email"`
	ToEmail   string            `json:"to_email" db:"to_email"`
	Subject   string            `json:"subject" db:"subject"`
	Body      string            `json:"body" db:"body"`
	Status    enums.EmailStatus `json:"status" db:"status"`
	CreatedAt time.Time         `json:"created_at" db:"created_at"`
}

// EmailLogStats summarizes a company's log within a window.
type EmailLogStats struct {
	Total       int64   `json:"total_events" db:"total"`
	Succeeded   int64   `json:"successful_events" db:"succeeded"`
	Failed      int64   `json:"failed_events" db:"failed"`
	Pending     int64   `json:"pending_events" db:"pending"`
	SuccessRate float64 `json:"success_rate"` // percentage, computed
}

// StatusCount is one bucket of the status distribution.
type StatusCount struct {
	Status     enums.EmailStatus `json:"status" db:"status"`
	Count      int64             `json:"count" db:"count"`
	Percentage float64           `json:"percentage"`
}
