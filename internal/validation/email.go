// email.go validates mailbox addresses used for user accounts, sender defaults and email log
// entries. Display names are rejected: fields must hold a bare addr-spec.
package validation

import (
	"net/mail"
	"strings"

	"github.com/mailnow/mailnow-admin/internal/apperr"
)

// MaxEmailLength is the longest address accepted (RFC 5321 path limit).
const MaxEmailLength = 254

// ValidateEmail checks that address is a syntactically valid bare email address.
// field names the input for the returned ValidationError.
func ValidateEmail(field, address string) error {
	if address == "" {
		return apperr.Invalid(field, "is required")
	}
	if len(address) > MaxEmailLength {
		return apperr.Invalid(field, "must be at most %d characters", MaxEmailLength)
	}

	parsed, err := mail.ParseAddress(address)
	if err != nil || parsed.Address != address || parsed.Name != "" {
		return apperr.Invalid(field, "%q is not a valid email address", address)
	}

	at := strings.LastIndex(address, "@")
	if err := ValidateDomain(field, address[at+1:]); err != nil {
		return apperr.Invalid(field, "%q is not a valid email address", address)
	}
	return nil
}

// NormalizeEmail lower-cases and trims an address so uniqueness checks are case-insensitive.
func NormalizeEmail(address string) string {
	return strings.ToLower(strings.TrimSpace(address))
}
