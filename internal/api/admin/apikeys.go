package admin

import (
	"context"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/mailnow/mailnow-admin/internal/api/params"
	"github.com/mailnow/mailnow-admin/internal/api/response"
	"github.com/mailnow/mailnow-admin/internal/db/models"
	"github.com/mailnow/mailnow-admin/internal/enums"
	"github.com/mailnow/mailnow-admin/internal/services"
)

// APIKeyManager is implemented by *services.APIKeyService.
type APIKeyManager interface {
	Issue(ctx context.Context, companyID int64, name string, permission enums.Permission, expiresAt *time.Time) (*services.IssuedKey, error)
	List(ctx context.Context, companyID int64) ([]models.APIKey, error)
	Stats(ctx context.Context, companyID int64) (*models.APIKeyStats, error)
	Revoke(ctx context.Context, companyID, keyID int64) error
	Delete(ctx context.Context, companyID, keyID int64) error
}

// APIKeyHandlers handles API key management endpoints
type APIKeyHandlers struct {
	keys      APIKeyManager
	rateLimit int
}

// NewAPIKeyHandlers creates a new APIKeyHandlers instance. rateLimit is the per-key
// requests-per-minute reported by the stats endpoint.
func NewAPIKeyHandlers(keys APIKeyManager, rateLimit int) *APIKeyHandlers {
	return &APIKeyHandlers{keys: keys, rateLimit: rateLimit}
}

// CreateAPIKeyRequest represents the request to create a new API key
type CreateAPIKeyRequest struct {
	Name string `json:"name"`
	// Permission defaults to full_access.
	Permission string     `json:"permission"`
	ExpiresAt  *time.Time `json:"expires_at"` // RFC3339
}

// APIKeyStatsResponse is returned by the stats endpoint.
type APIKeyStatsResponse struct {
	models.APIKeyStats
	RateLimitPerMinute int `json:"rate_limit_per_minute"`
}

// @Summary      List API keys
// @Description  Lists the company's API keys, newest first. Only display prefixes are returned.
// @Tags         API Keys
// @Security     Bearer
// @Produce      json
// @Param        company_id  path  int  true  "Company ID"
// @Success      200  {object}  response.Envelope  "API keys retrieved successfully"
// @Failure      404  {object}  response.Envelope  "Company not found"
// @Router       /api/v1/companies/{company_id}/api-keys [get]
// ListAPIKeysHandler lists a company's API keys
func (h *APIKeyHandlers) ListAPIKeysHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		keys, err := h.keys.List(c.Request.Context(), companyID(c))
		if err != nil {
			response.Error(c, err)
			return
		}
		if keys == nil {
			keys = []models.APIKey{}
		}
		response.OK(c, "API keys retrieved successfully", keys)
	}
}

// @Summary      Create API key
// @Description  Issues a new API key. The full key is only returned once, in this response.
// @Tags         API Keys
// @Security     Bearer
// @Accept       json
// @Produce      json
// @Param        company_id  path  int                  true  "Company ID"
// @Param        body        body  CreateAPIKeyRequest  true  "API key creation request"
// @Success      201  {object}  response.Envelope  "API key created successfully (full key returned once)"
// @Failure      400  {object}  response.Envelope  "Invalid name, permission or expiry"
// @Failure      403  {object}  response.Envelope  "Requires the Admin role"
// @Router       /api/v1/companies/{company_id}/api-keys [post]
// CreateAPIKeyHandler issues a new API key
func (h *APIKeyHandlers) CreateAPIKeyHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req CreateAPIKeyRequest
		if !params.BindJSON(c, &req) {
			return
		}

		permission := enums.PermissionFullAccess
		if req.Permission != "" {
			p, err := enums.ParsePermission(req.Permission)
			if err != nil {
				response.Error(c, err)
				return
			}
			permission = p
		}

		issued, err := h.keys.Issue(c.Request.Context(), companyID(c), req.Name, permission, req.ExpiresAt)
		if err != nil {
			response.Error(c, err)
			return
		}
		response.Created(c, "API key created successfully", issued)
	}
}

// GetAPIKeyStatsHandler returns total and active key counts.
// GET /api/v1/companies/:company_id/api-keys/stats
func (h *APIKeyHandlers) GetAPIKeyStatsHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		stats, err := h.keys.Stats(c.Request.Context(), companyID(c))
		if err != nil {
			response.Error(c, err)
			return
		}
		response.OK(c, "API key stats retrieved successfully", APIKeyStatsResponse{
			APIKeyStats:        *stats,
			RateLimitPerMinute: h.rateLimit,
		})
	}
}

// RevokeAPIKeyHandler deactivates a key without deleting it.
// POST /api/v1/companies/:company_id/api-keys/:id/revoke
func (h *APIKeyHandlers) RevokeAPIKeyHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := params.ID(c, "id")
		if !ok {
			return
		}
		if err := h.keys.Revoke(c.Request.Context(), companyID(c), id); err != nil {
			response.Error(c, err)
			return
		}
		response.OK(c, "API key revoked successfully", nil)
	}
}

// DeleteAPIKeyHandler deletes a key.
// DELETE /api/v1/companies/:company_id/api-keys/:id
func (h *APIKeyHandlers) DeleteAPIKeyHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := params.ID(c, "id")
		if !ok {
			return
		}
		if err := h.keys.Delete(c.Request.Context(), companyID(c), id); err != nil {
			response.Error(c, err)
			return
		}
		response.OK(c, "API key deleted successfully", nil)
	}
}
