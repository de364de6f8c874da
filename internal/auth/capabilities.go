// Package auth - capabilities.go maps API key permissions to the operations they unlock.
package auth

import "github.com/mailnow/mailnow-admin/internal/enums"

// Capability names an operation an API key may perform.
type Capability string

const (
	CapSendEmail         Capability = "send_email"
	CapReadLogs          Capability = "read_logs"
	CapReadTemplates     Capability = "read_templates"
	CapReadSMTPProfiles  Capability = "read_smtp_profiles"
	CapReadWebhooks      Capability = "read_webhooks"
	CapReadStats         Capability = "read_stats"
	CapConfigureWebhooks Capability = "configure_webhooks"
)

// AllCapabilities returns every known capability
func AllCapabilities() []Capability {
	return []Capability{
		CapSendEmail,
		CapReadLogs,
		CapReadTemplates,
		CapReadSMTPProfiles,
		CapReadWebhooks,
		CapReadStats,
		CapConfigureWebhooks,
	}
}

var readCapabilities = []Capability{
	CapReadLogs,
	CapReadTemplates,
	CapReadSMTPProfiles,
	CapReadWebhooks,
	CapReadStats,
}

var permissionCapabilities = map[enums.Permission]map[Capability]bool{
	enums.PermissionFullAccess:  set(AllCapabilities()...),
	enums.PermissionSendOnly:    set(CapSendEmail),
	enums.PermissionReadOnly:    set(readCapabilities...),
	enums.PermissionWebhookOnly: set(CapConfigureWebhooks, CapReadWebhooks),
}

func set(caps ...Capability) map[Capability]bool {
	m := make(map[Capability]bool, len(caps))
	for _, c := range caps {
		m[c] = true
	}
	return m
}

// Authorize reports whether permission grants capability.
// Unknown permissions and unknown capabilities are denied.
func Authorize(permission enums.Permission, capability Capability) bool {
	return permissionCapabilities[permission][capability]
}

// CapabilitiesFor lists the capabilities granted by permission, in AllCapabilities order.
func CapabilitiesFor(permission enums.Permission) []Capability {
	out := make([]Capability, 0)
	for _, c := range AllCapabilities() {
		if Authorize(permission, c) {
			out = append(out, c)
		}
	}
	return out
}
