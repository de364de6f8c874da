// Package models - smtp_profile.go defines stored SMTP credentials for a company.
package models

import "time"

// DefaultSMTPPort is used when a profile is created without a port.
const DefaultSMTPPort = 587

// SMTPProfile holds the outbound server credentials a company sends through.
// SMTPPassword is ciphertext at rest and is never serialized.
// At most one profile per company has IsDefault set.
type SMTPProfile struct {
	ID           int64     `json:"id" db:"id"`
	CompanyID    int64     `json:"company_id" db:"company_id"`
	SMTPUsername string    `json:"smtp_username" db:"smtp_username"`
	SMTPPassword string    `json:"-" db:"smtp_password"`
	SMTPServer   string    `json:"smtp_server" db:"smtp_server"`
	SMTPPort     int       `json:"smtp_port" db:"smtp_port"`
	IsDefault    bool      `json:"is_default" db:"is_default"`
	CreatedAt    time.Time `json:"created_at" db:"created_at"`
	UpdatedAt    time.Time `json:"updated_at" db:"updated_at"`
}
