// Package models - company.go defines the tenant root (Company) and the Industry lookup it references.
package models

import (
	"time"

	"github.com/mailnow/mailnow-admin/internal/enums"
)

// Industry is a lookup row companies may reference. Deleting one nulls the reference.
type Industry struct {
	ID          int64   `json:"id" db:"id"`
	Name        string  `json:"name" db:"name"`
	Description *string `json:"description,omitempty" db:"description"`
}

// Company is a tenant. It has exactly one owner and owns every tenant resource.
type Company struct {
	ID               int64             `json:"id" db:"id"`
	OwnerID          int64             `json:"owner_id" db:"owner_id"`
	CompanyName      string            `json:"company_name" db:"company_name"`
	Address          *string           `json:"address,omitempty" db:"address"`
	Website          *string           `json:"website,omitempty" db:"website"`
	SendingDomain    *string           `json:"sending_domain,omitempty" db:"sending_domain"`
	DefaultFromName  *string           `json:"default_from_name,omitempty" db:"default_from_name"`
	DefaultFromEmail *string           `json:"default_from_email,omitempty" db:"default_from_email"`
	IndustryID       *int64            `json:"industry_id,omitempty" db:"industry_id"`
	PricingTier      enums.PricingTier `json:"pricing_tier" db:"pricing_tier"`
	APICredits       int64             `json:"api_credits" db:"api_credits"`
	CreditsResetDate time.Time         `json:"credits_reset_date" db:"credits_reset_date"`
	CreatedAt        time.Time         `json:"created_at" db:"created_at"`
	UpdatedAt        time.Time         `json:"updated_at" db:"updated_at"`
}

// CreditsDue reports whether the monthly allowance should be restored: true once the calendar
// month (UTC) of the last reset has passed.
func (c *Company) CreditsDue(now time.Time) bool {
	last := c.CreditsResetDate.UTC()
	now = now.UTC()
	return now.Year() > last.Year() || (now.Year() == last.Year() && now.Month() > last.Month())
}

// HasCredits reports whether the company may spend one more API credit.
func (c *Company) HasCredits() bool {
	return c.PricingTier.Unlimited() || c.APICredits > 0
}
