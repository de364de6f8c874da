// Package services implements the business rules of the admin backend on top of the repositories:
// API key issuance and authentication, tenant-scoped resource management, team membership,
// accounts, credits and log export.
//
// Every tenant-scoped operation takes the caller's company id. Rows are loaded by primary key
// and their company_id compared with the caller's: a row of another tenant yields
// apperr.ErrForbidden, an absent row apperr.ErrNotFound. Writes are additionally constrained
// to the caller's company at the SQL level.
package services

import (
	"fmt"
	"strings"
	"time"

	"github.com/mailnow/mailnow-admin/internal/apperr"
)

// Clock returns the current time. Services take one so tests can pin it.
type Clock func() time.Time

func systemClock() time.Time { return time.Now().UTC() }

// checkTenant enforces tenant isolation for a row loaded by id. found is false when the
// repository returned no row.
func checkTenant(what string, found bool, rowCompanyID, companyID int64) error {
	if !found {
		return fmt.Errorf("%s: %w", what, apperr.ErrNotFound)
	}
	if rowCompanyID != companyID {
		return fmt.Errorf("%s belongs to another company: %w", what, apperr.ErrForbidden)
	}
	return nil
}

// optionalString trims s and maps blank to nil.
func optionalString(s string) *string {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	return &s
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
