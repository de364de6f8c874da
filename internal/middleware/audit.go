// audit.go provides Gin middleware that records authenticated write operations to the
// audit_logs table.
package middleware

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/mailnow/mailnow-admin/internal/config"
	"github.com/mailnow/mailnow-admin/internal/db/models"
	"github.com/mailnow/mailnow-admin/internal/safego"
)

// AuditWriter is implemented by *repositories.AuditRepository.
type AuditWriter interface {
	CreateAuditLog(ctx context.Context, log *models.AuditLog) error
}

const auditWriteTimeout = 5 * time.Second

// resourceTypes maps the path segment that names a collection to the audited resource type.
var resourceTypes = map[string]string{
	"api-keys":      "api_key",
	"smtp-profiles": "smtp_profile",
	"templates":     "template",
	"webhooks":      "webhook",
	"team":          "team_member",
	"logs":          "email_log",
	"industries":    "industry",
	"user":          "user",
	"auth":          "user",
	"email":         "email_log",
	"companies":     "company",
}

// AuditMiddleware records requests once the handler has run. By default only successful
// writes are kept; auditCfg can add reads and failed requests. The insert runs in the
// background and never affects the response.
func AuditMiddleware(writer AuditWriter, auditCfg *config.AuditConfig) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if !shouldAudit(c, auditCfg) {
			return
		}

		entry := buildAuditLog(c)
		safego.Go("audit_log", func() {
			ctx, cancel := context.WithTimeout(context.Background(), auditWriteTimeout)
			defer cancel()
			if err := writer.CreateAuditLog(ctx, entry); err != nil {
				slog.Warn("failed to write audit log", "action", entry.Action, "error", err)
			}
		})
	}
}

func shouldAudit(c *gin.Context, auditCfg *config.AuditConfig) bool {
	method := c.Request.Method
	if method == http.MethodOptions || method == http.MethodHead {
		return false
	}
	isRead := method == http.MethodGet
	isFailed := c.Writer.Status() >= http.StatusBadRequest

	if auditCfg == nil {
		return !isRead && !isFailed
	}
	if !auditCfg.Enabled {
		return false
	}
	if isRead && !auditCfg.LogReadOperations {
		return false
	}
	if isFailed && !auditCfg.LogFailedRequests {
		return false
	}
	return true
}

// buildAuditLog captures everything from the request context up front; the gin.Context
// must not be touched from the background writer.
func buildAuditLog(c *gin.Context) *models.AuditLog {
	route := c.FullPath()
	if route == "" {
		route = c.Request.URL.Path
	}
	ip := c.ClientIP()

	entry := &models.AuditLog{
		Action:    c.Request.Method + " " + route,
		IPAddress: &ip,
		CreatedAt: time.Now().UTC(),
		Metadata: map[string]any{
			"status_code": c.Writer.Status(),
		},
	}
	if rid := c.GetString(RequestIDKey); rid != "" {
		entry.Metadata["request_id"] = rid
	}
	if method := c.GetString(AuthMethodKey); method != "" {
		entry.Metadata["auth_method"] = method
	}
	if u := CurrentUser(c); u != nil {
		id := u.ID
		entry.UserID = &id
	}
	if key := CurrentAPIKey(c); key != nil {
		entry.Metadata["api_key_prefix"] = key.KeyPrefix
	}
	if companyID, ok := CompanyID(c); ok {
		entry.CompanyID = &companyID
	}
	if rt := resourceType(route); rt != "" {
		entry.ResourceType = &rt
	}
	if id := c.Param("id"); id != "" {
		entry.ResourceID = &id
	}
	return entry
}

// resourceType picks the deepest known collection segment of route, so
// /companies/:company_id/api-keys/:id is an api_key rather than a company.
func resourceType(route string) string {
	segments := strings.Split(strings.Trim(route, "/"), "/")
	for i := len(segments) - 1; i >= 0; i-- {
		if rt, ok := resourceTypes[segments[i]]; ok {
			return rt
		}
	}
	return ""
}
