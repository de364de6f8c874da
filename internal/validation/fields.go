// fields.go holds small field-level checks shared by the services: required strings, length
// bounds, password policy and webhook event names.
package validation

import (
	"strings"
	"unicode/utf8"

	"github.com/mailnow/mailnow-admin/internal/apperr"
)

// MinPasswordLength is the shortest password accepted at signup or password change.
const MinPasswordLength = 8

// WebhookEvents is the set of event names a webhook may subscribe to.
var WebhookEvents = map[string]bool{
	"email.sent":       true,
	"email.delivered":  true,
	"email.opened":     true,
	"email.clicked":    true,
	"email.bounced":    true,
	"email.failed":     true,
	"email.complained": true,
}

// Required rejects blank (whitespace-only) values.
func Required(field, value string) error {
	if strings.TrimSpace(value) == "" {
		return apperr.Invalid(field, "is required")
	}
	return nil
}

// MaxLength rejects values longer than max runes.
func MaxLength(field, value string, max int) error {
	if utf8.RuneCountInString(value) > max {
		return apperr.Invalid(field, "must be at most %d characters", max)
	}
	return nil
}

// ValidatePassword enforces the minimum password policy.
func ValidatePassword(field, password string) error {
	if utf8.RuneCountInString(password) < MinPasswordLength {
		return apperr.Invalid(field, "must be at least %d characters", MinPasswordLength)
	}
	return nil
}

// ValidateWebhookEvents checks every entry against WebhookEvents. An empty list is rejected.
func ValidateWebhookEvents(field string, events []string) error {
	if len(events) == 0 {
		return apperr.Invalid(field, "at least one event is required")
	}
	for _, e := range events {
		if !WebhookEvents[e] {
			return apperr.Invalid(field, "unknown event %q", e)
		}
	}
	return nil
}

// First returns the first non-nil error. Services use it to chain field checks.
func First(errs ...error) error {
	for _, err := range errs {
		if err != nil {
			return err
		}
	}
	return nil
}
