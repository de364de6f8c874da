package enums

import (
	"errors"
	"testing"

	"github.com/mailnow/mailnow-admin/internal/apperr"
)

func TestParsePermission(t *testing.T) {
	tests := []struct {
		in      string
		want    Permission
		wantErr bool
	}{
		{"full_access", PermissionFullAccess, false},
		{"send_only", PermissionSendOnly, false},
		{"read_only", PermissionReadOnly, false},
		{"webhook_only", PermissionWebhookOnly, false},
		{"Full Access", "", true},
		{"", "", true},
		{"admin", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParsePermission(tt.in)
			if tt.wantErr {
				if !errors.Is(err, apperr.ErrInvalidEnumValue) {
					t.Fatalf("ParsePermission(%q) error = %v, want ErrInvalidEnumValue", tt.in, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParsePermission(%q) unexpected error: %v", tt.in, err)
			}
			if got != tt.want {
				t.Errorf("ParsePermission(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestPermissionLabels(t *testing.T) {
	want := map[Permission]string{
		PermissionFullAccess:  "Full Access",
		PermissionSendOnly:    "Send Only",
		PermissionReadOnly:    "Read Only",
		PermissionWebhookOnly: "Webhook Only",
	}
	for p, label := range want {
		if p.Label() != label {
			t.Errorf("%s.Label() = %q, want %q", p, p.Label(), label)
		}
	}
	if len(PermissionChoices()) != 4 {
		t.Errorf("len(PermissionChoices()) = %d, want 4", len(PermissionChoices()))
	}
}

func TestValid(t *testing.T) {
	if !StatusActive.Valid() || Status("paused").Valid() {
		t.Error("Status.Valid mismatch")
	}
	if !RoleMember.Valid() || Role("guest").Valid() {
		t.Error("Role.Valid mismatch")
	}
	if !EmailStatusQueued.Valid() || EmailStatus("bounced").Valid() {
		t.Error("EmailStatus.Valid mismatch")
	}
	if !PricingTierDeveloper.Valid() || PricingTier("gold").Valid() {
		t.Error("PricingTier.Valid mismatch")
	}
}

func TestParseErrorsNameTheKind(t *testing.T) {
	_, err := ParseRole("boss")
	if err == nil || err.Error() != `role "boss": invalid enum value` {
		t.Errorf("ParseRole error = %v", err)
	}
	_, err = ParseEmailStatus("bounced")
	if !errors.Is(err, apperr.ErrInvalidEnumValue) {
		t.Errorf("ParseEmailStatus error = %v", err)
	}
	_, err = ParseStatus("ACTIVE")
	if !errors.Is(err, apperr.ErrInvalidEnumValue) {
		t.Errorf("ParseStatus error = %v", err)
	}
}

func TestRoleRanking(t *testing.T) {
	tests := []struct {
		role Role
		min  Role
		want bool
	}{
		{RoleOwner, RoleAdmin, true},
		{RoleAdmin, RoleAdmin, true},
		{RoleMember, RoleAdmin, false},
		{RoleMember, RoleMember, true},
		{Role(""), RoleMember, false},
	}
	for _, tt := range tests {
		if got := tt.role.AtLeast(tt.min); got != tt.want {
			t.Errorf("%q.AtLeast(%q) = %v, want %v", tt.role, tt.min, got, tt.want)
		}
	}
}

func TestChoicesPreserveOrder(t *testing.T) {
	got := EmailStatusChoices()
	want := []Choice{
		{"failed", "Failed"},
		{"success", "Success"},
		{"pending", "Pending"},
		{"queued", "Queued"},
	}
	if len(got) != len(want) {
		t.Fatalf("len = %d, want %d", len(got), len(want))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("choice[%d] = %+v, want %+v", i, got[i], want[i])
		}
	}
}

func TestPricingTierCredits(t *testing.T) {
	if PricingTierFree.MonthlyCredits() != 1000 {
		t.Errorf("free = %d", PricingTierFree.MonthlyCredits())
	}
	if PricingTierDeveloper.MonthlyCredits() != 10000 {
		t.Errorf("developer = %d", PricingTierDeveloper.MonthlyCredits())
	}
	if !PricingTierEnterprise.Unlimited() {
		t.Error("enterprise should be unlimited")
	}
	if PricingTierFree.Unlimited() {
		t.Error("free should not be unlimited")
	}
}
