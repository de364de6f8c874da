// domain.go validates DNS names: company sending domains, SMTP server hosts and the domain
// part of email addresses.
package validation

import (
	"net"
	"regexp"
	"strings"

	"github.com/mailnow/mailnow-admin/internal/apperr"
)

var labelPattern = regexp.MustCompile(`^[a-zA-Z0-9]([a-zA-Z0-9-]{0,61}[a-zA-Z0-9])?$`)

// ValidateDomain checks that name is a fully qualified domain name with at least two labels.
func ValidateDomain(field, name string) error {
	if name == "" {
		return apperr.Invalid(field, "is required")
	}
	if len(name) > 253 {
		return apperr.Invalid(field, "domain is too long")
	}

	labels := strings.Split(strings.TrimSuffix(name, "."), ".")
	if len(labels) < 2 {
		return apperr.Invalid(field, "%q is not a fully qualified domain", name)
	}
	for _, label := range labels {
		if !labelPattern.MatchString(label) {
			return apperr.Invalid(field, "%q is not a valid domain", name)
		}
	}
	return nil
}

// ValidateHost accepts a domain name, "localhost" or an IP literal. Used for SMTP servers.
func ValidateHost(field, host string) error {
	if host == "" {
		return apperr.Invalid(field, "is required")
	}
	if host == "localhost" || net.ParseIP(host) != nil {
		return nil
	}
	return ValidateDomain(field, host)
}

// ValidatePort checks the TCP port range.
func ValidatePort(field string, port int) error {
	if port < 1 || port > 65535 {
		return apperr.Invalid(field, "must be between 1 and 65535, got %d", port)
	}
	return nil
}
