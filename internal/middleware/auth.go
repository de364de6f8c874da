// Package middleware provides Gin HTTP middleware for authentication, authorization,
// rate limiting, security headers, and audit logging.
//
// Middleware ordering matters and is enforced in router.go:
//
//	Security → RateLimit → Auth → CompanyRole/Capability → Audit → Handler
//
// Security headers run first so they appear on all responses including errors.
// Rate limiting runs before auth to block brute-force attacks before any DB work.
// The admin API authenticates users by JWT; the public API authenticates companies by
// API key. Role and capability checks read the identity that auth placed in the context.
package middleware

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/mailnow/mailnow-admin/internal/api/response"
	"github.com/mailnow/mailnow-admin/internal/apperr"
	"github.com/mailnow/mailnow-admin/internal/auth"
	"github.com/mailnow/mailnow-admin/internal/db/models"
)

// gin.Context keys set by the auth middleware.
const (
	UserKey       = "user"
	UserIDKey     = "user_id"
	APIKeyKey     = "api_key"
	APIKeyIDKey   = "api_key_id"
	CompanyIDKey  = "company_id"
	AuthMethodKey = "auth_method"
)

// TokenValidator is implemented by *auth.JWTManager.
type TokenValidator interface {
	Validate(token string) (*auth.Claims, error)
}

// UserLoader is implemented by *services.AccountService.
type UserLoader interface {
	User(ctx context.Context, id int64) (*models.User, error)
}

// KeyAuthenticator is implemented by *services.APIKeyService.
type KeyAuthenticator interface {
	Authenticate(ctx context.Context, token string) (*models.APIKey, error)
	Authorize(key *models.APIKey, capability auth.Capability) bool
}

// JWTAuthMiddleware requires "Authorization: Bearer <jwt>" and loads the active user it
// names into the context.
func JWTAuthMiddleware(tokens TokenValidator, users UserLoader) gin.HandlerFunc {
	return func(c *gin.Context) {
		token, err := auth.ExtractBearerToken(c.GetHeader("Authorization"))
		if err != nil {
			response.Abort(c, http.StatusUnauthorized, "Authentication credentials were not provided")
			return
		}

		claims, err := tokens.Validate(token)
		if err != nil {
			response.Abort(c, http.StatusUnauthorized, "Invalid or expired token")
			return
		}

		user, err := users.User(c.Request.Context(), claims.UserID)
		if errors.Is(err, apperr.ErrNotFound) {
			response.Abort(c, http.StatusUnauthorized, "User not found")
			return
		}
		if err != nil {
			response.Error(c, err)
			return
		}
		if !user.IsActive {
			response.Abort(c, http.StatusUnauthorized, "User account is disabled")
			return
		}

		c.Set(UserKey, user)
		c.Set(UserIDKey, user.ID)
		c.Set(AuthMethodKey, "jwt")
		c.Next()
	}
}

// APIKeyAuthMiddleware requires an API key in X-API-Key or "Authorization: Bearer mk_live_...".
// The key's company becomes the request's tenant.
func APIKeyAuthMiddleware(keys KeyAuthenticator) gin.HandlerFunc {
	return func(c *gin.Context) {
		token, err := auth.ExtractAPIKey(c.GetHeader(auth.APIKeyHeader), c.GetHeader("Authorization"))
		if err != nil {
			response.Abort(c, http.StatusUnauthorized, "API key required")
			return
		}

		key, err := keys.Authenticate(c.Request.Context(), token)
		switch {
		case errors.Is(err, apperr.ErrNotFound):
			response.Abort(c, http.StatusUnauthorized, "Invalid API key")
			return
		case errors.Is(err, apperr.ErrInactiveKey), errors.Is(err, apperr.ErrExpiredKey):
			response.Abort(c, http.StatusUnauthorized, err.Error())
			return
		case err != nil:
			response.Error(c, err)
			return
		}

		c.Set(APIKeyKey, key)
		c.Set(APIKeyIDKey, key.ID)
		c.Set(CompanyIDKey, key.CompanyID)
		c.Set(AuthMethodKey, "api_key")
		c.Next()
	}
}

// RequireCapability rejects API key requests whose permission does not grant capability.
// Must run after APIKeyAuthMiddleware.
func RequireCapability(keys KeyAuthenticator, capability auth.Capability) gin.HandlerFunc {
	return func(c *gin.Context) {
		key := CurrentAPIKey(c)
		if key == nil || !keys.Authorize(key, capability) {
			response.Abort(c, http.StatusForbidden, "API key lacks the "+string(capability)+" capability")
			return
		}
		c.Next()
	}
}

// CurrentUser returns the authenticated user, or nil.
func CurrentUser(c *gin.Context) *models.User {
	v, ok := c.Get(UserKey)
	if !ok {
		return nil
	}
	u, _ := v.(*models.User)
	return u
}

// CurrentAPIKey returns the authenticated API key, or nil.
func CurrentAPIKey(c *gin.Context) *models.APIKey {
	v, ok := c.Get(APIKeyKey)
	if !ok {
		return nil
	}
	k, _ := v.(*models.APIKey)
	return k
}

// CompanyID returns the tenant resolved by APIKeyAuthMiddleware or RequireCompanyRole.
func CompanyID(c *gin.Context) (int64, bool) {
	v, ok := c.Get(CompanyIDKey)
	if !ok {
		return 0, false
	}
	id, ok := v.(int64)
	return id, ok
}
