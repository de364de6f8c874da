// url.go validates user-supplied URLs: webhook endpoints and company websites.
package validation

import (
	"net/url"

	"github.com/mailnow/mailnow-admin/internal/apperr"
)

// ValidateHTTPURL checks that raw is an absolute http or https URL with a host.
func ValidateHTTPURL(field, raw string) error {
	if raw == "" {
		return apperr.Invalid(field, "is required")
	}
	u, err := url.Parse(raw)
	if err != nil {
		return apperr.Invalid(field, "%q is not a valid URL", raw)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return apperr.Invalid(field, "scheme must be http or https")
	}
	if u.Host == "" {
		return apperr.Invalid(field, "host is required")
	}
	return nil
}

// ValidateOptionalHTTPURL is ValidateHTTPURL for fields that may be left blank.
func ValidateOptionalHTTPURL(field string, raw *string) error {
	if raw == nil || *raw == "" {
		return nil
	}
	return ValidateHTTPURL(field, *raw)
}
