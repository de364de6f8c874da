// Package enums defines the closed value sets used across the platform: API key permissions,
// webhook status, team roles, email delivery status and pricing tiers.
//
// Every type is a string whose value is what gets stored and serialized. Each exposes its
// full value set, a presentation label and a membership check; Parse* constructors reject
// anything outside the set with apperr.ErrInvalidEnumValue.
package enums

import (
	"fmt"

	"github.com/mailnow/mailnow-admin/internal/apperr"
)

// Choice is a value/label pair for presentation layers.
type Choice struct {
	Value string `json:"value"`
	Label string `json:"label"`
}

func parse[T ~string](kind, s string, values []T) (T, error) {
	for _, v := range values {
		if string(v) == s {
			return v, nil
		}
	}
	var zero T
	return zero, fmt.Errorf("%s %q: %w", kind, s, apperr.ErrInvalidEnumValue)
}

func contains[T ~string](v T, values []T) bool {
	for _, candidate := range values {
		if candidate == v {
			return true
		}
	}
	return false
}

func choices[T interface {
	~string
	Label() string
}](values []T) []Choice {
	out := make([]Choice, 0, len(values))
	for _, v := range values {
		out = append(out, Choice{Value: string(v), Label: v.Label()})
	}
	return out
}

// ---- Permission ------------------------------------------------------------

// Permission is the access level carried by an API key.
type Permission string

const (
	PermissionFullAccess  Permission = "full_access"
	PermissionSendOnly    Permission = "send_only"
	PermissionReadOnly    Permission = "read_only"
	PermissionWebhookOnly Permission = "webhook_only"
)

// PermissionValues returns every valid permission.
func PermissionValues() []Permission {
	return []Permission{PermissionFullAccess, PermissionSendOnly, PermissionReadOnly, PermissionWebhookOnly}
}

// ParsePermission converts s into a Permission.
func ParsePermission(s string) (Permission, error) {
	return parse("permission", s, PermissionValues())
}

// Valid reports whether p is in the permission set.
func (p Permission) Valid() bool { return contains(p, PermissionValues()) }

// Label returns the display name.
func (p Permission) Label() string {
	switch p {
	case PermissionFullAccess:
		return "Full Access"
	case PermissionSendOnly:
		return "Send Only"
	case PermissionReadOnly:
		return "Read Only"
	case PermissionWebhookOnly:
		return "Webhook Only"
	}
	return string(p)
}

// PermissionChoices returns value/label pairs for every permission.
func PermissionChoices() []Choice { return choices(PermissionValues()) }

// ---- Status ----------------------------------------------------------------

// Status is the activation state of a webhook.
type Status string

const (
	StatusActive   Status = "active"
	StatusInactive Status = "inactive"
)

// StatusValues returns every valid status.
func StatusValues() []Status { return []Status{StatusActive, StatusInactive} }

// ParseStatus converts s into a Status.
func ParseStatus(s string) (Status, error) { return parse("status", s, StatusValues()) }

// Valid reports whether s is in the status set.
func (s Status) Valid() bool { return contains(s, StatusValues()) }

// Label returns the display name.
func (s Status) Label() string {
	switch s {
	case StatusActive:
		return "Active"
	case StatusInactive:
		return "Inactive"
	}
	return string(s)
}

// StatusChoices returns value/label pairs for every status.
func StatusChoices() []Choice { return choices(StatusValues()) }

// ---- Role ------------------------------------------------------------------

// Role is a team member's role within a company.
type Role string

const (
	RoleOwner  Role = "owner"
	RoleAdmin  Role = "admin"
	RoleMember Role = "member"
)

// RoleValues returns every valid role.
func RoleValues() []Role { return []Role{RoleOwner, RoleAdmin, RoleMember} }

// ParseRole converts s into a Role.
func ParseRole(s string) (Role, error) { return parse("role", s, RoleValues()) }

// Valid reports whether r is in the role set.
func (r Role) Valid() bool { return contains(r, RoleValues()) }

// Label returns the display name.
func (r Role) Label() string {
	switch r {
	case RoleOwner:
		return "Owner"
	case RoleAdmin:
		return "Admin"
	case RoleMember:
		return "Member"
	}
	return string(r)
}

// Rank orders roles for authorization checks: owner > admin > member. Unknown roles rank 0.
func (r Role) Rank() int {
	switch r {
	case RoleOwner:
		return 3
	case RoleAdmin:
		return 2
	case RoleMember:
		return 1
	}
	return 0
}

// AtLeast reports whether r grants at least the privileges of min.
func (r Role) AtLeast(min Role) bool { return r.Rank() > 0 && r.Rank() >= min.Rank() }

// RoleChoices returns value/label pairs for every role.
func RoleChoices() []Choice { return choices(RoleValues()) }

// ---- EmailStatus -----------------------------------------------------------

// EmailStatus is the delivery state recorded on an email log entry.
type EmailStatus string

const (
	EmailStatusFailed  EmailStatus = "failed"
	EmailStatusSuccess EmailStatus = "success"
	EmailStatusPending EmailStatus = "pending"
	EmailStatusQueued  EmailStatus = "queued"
)

// EmailStatusValues returns every valid email status.
func EmailStatusValues() []EmailStatus {
	return []EmailStatus{EmailStatusFailed, EmailStatusSuccess, EmailStatusPending, EmailStatusQueued}
}

// ParseEmailStatus converts s into an EmailStatus.
func ParseEmailStatus(s string) (EmailStatus, error) {
	return parse("email status", s, EmailStatusValues())
}

// Valid reports whether s is in the email status set.
func (s EmailStatus) Valid() bool { return contains(s, EmailStatusValues()) }

// Label returns the display name.
func (s EmailStatus) Label() string {
	switch s {
	case EmailStatusFailed:
		return "Failed"
	case EmailStatusSuccess:
		return "Success"
	case EmailStatusPending:
		return "Pending"
	case EmailStatusQueued:
		return "Queued"
	}
	return string(s)
}

// EmailStatusChoices returns value/label pairs for every email status.
func EmailStatusChoices() []Choice { return choices(EmailStatusValues()) }

// ---- PricingTier -----------------------------------------------------------

// PricingTier is a company's billing plan. It determines the monthly API credit allowance.
type PricingTier string

const (
	PricingTierFree       PricingTier = "free"
	PricingTierDeveloper  PricingTier = "developer"
	PricingTierEnterprise PricingTier = "enterprise"
)

// UnlimitedCredits is the allowance sentinel for tiers without a monthly cap.
const UnlimitedCredits int64 = -1

// PricingTierValues returns every valid pricing tier.
func PricingTierValues() []PricingTier {
	return []PricingTier{PricingTierFree, PricingTierDeveloper, PricingTierEnterprise}
}

// ParsePricingTier converts s into a PricingTier.
func ParsePricingTier(s string) (PricingTier, error) {
	return parse("pricing tier", s, PricingTierValues())
}

// Valid reports whether t is in the pricing tier set.
func (t PricingTier) Valid() bool { return contains(t, PricingTierValues()) }

// Label returns the display name.
func (t PricingTier) Label() string {
	switch t {
	case PricingTierFree:
		return "Free"
	case PricingTierDeveloper:
		return "Developer"
	case PricingTierEnterprise:
		return "Enterprise"
	}
	return string(t)
}

// MonthlyCredits returns the credit allowance granted at each monthly reset.
func (t PricingTier) MonthlyCredits() int64 {
	switch t {
	case PricingTierDeveloper:
		return 10_000
	case PricingTierEnterprise:
		return UnlimitedCredits
	default:
		return 1_000
	}
}

// Unlimited reports whether the tier has no credit cap.
func (t PricingTier) Unlimited() bool { return t.MonthlyCredits() == UnlimitedCredits }

// PricingTierChoices returns value/label pairs for every pricing tier.
func PricingTierChoices() []Choice { return choices(PricingTierValues()) }
