// Package models - template.go defines stored email templates. Rendering happens elsewhere.
package models

import "time"

// DefaultTemplateType is applied when a template is created without a type.
const DefaultTemplateType = "email"

// Template is a named subject/content pair owned by a company.
type Template struct {
	ID           int64     `json:"id" db:"id"`
	CompanyID    int64     `json:"company_id" db:"company_id"`
	Name         string    `json:"name" db:"name"`
	Subject      string    `json:"subject" db:"subject"`
	Content      string    `json:"content" db:"content"`
	TemplateType string    `json:"template_type" db:"template_type"`
	CreatedAt    time.Time `json:"created_at" db:"created_at"`
	UpdatedAt    time.Time `json:"updated_at" db:"updated_at"`
}

// TemplateTypeCount is one row of the per-type template breakdown.
type TemplateTypeCount struct {
	TemplateType string `json:"template_type" db:"template_type"`
	Count        int64  `json:"count" db:"count"`
}
