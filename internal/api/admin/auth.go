package admin

import (
	"context"

	"github.com/gin-gonic/gin"

	"github.com/mailnow/mailnow-admin/internal/api/params"
	"github.com/mailnow/mailnow-admin/internal/api/response"
	"github.com/mailnow/mailnow-admin/internal/db/models"
	"github.com/mailnow/mailnow-admin/internal/middleware"
	"github.com/mailnow/mailnow-admin/internal/services"
)

// Authenticator is implemented by *services.AccountService.
type Authenticator interface {
	Register(ctx context.Context, in services.RegisterInput) (*models.User, *models.Company, error)
	Login(ctx context.Context, email, password string) (*services.Session, error)
	RequestVerification(ctx context.Context, userID int64) (*services.EmailVerification, error)
	VerifyEmail(ctx context.Context, token string) (*models.User, error)
}

// AuthHandlers serves signup, login and email verification. Apart from requesting a
// verification token the routes are unauthenticated and sit behind the stricter auth rate
// limiter.
type AuthHandlers struct {
	accounts Authenticator
}

// NewAuthHandlers creates AuthHandlers.
func NewAuthHandlers(accounts Authenticator) *AuthHandlers {
	return &AuthHandlers{accounts: accounts}
}

// LoginRequest is the body of POST /api/v1/auth/login.
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// SignupResponse is returned by POST /api/v1/auth/signup.
type SignupResponse struct {
	User    *models.User    `json:"user"`
	Company *models.Company `json:"company"`
}

// @Summary      Sign up
// @Description  Creates a user and the company they own. The company starts on the free tier.
// @Tags         Auth
// @Accept       json
// @Produce      json
// @Param        body  body  services.RegisterInput  true  "Account and company details"
// @Success      201  {object}  response.Envelope  "User created successfully"
// @Failure      400  {object}  response.Envelope  "Validation error"
// @Failure      409  {object}  response.Envelope  "Email already registered"
// @Router       /api/v1/auth/signup [post]
// SignupHandler registers a new account.
func (h *AuthHandlers) SignupHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req services.RegisterInput
		if !params.BindJSON(c, &req) {
			return
		}

		user, company, err := h.accounts.Register(c.Request.Context(), req)
		if err != nil {
			response.Error(c, err)
			return
		}

		response.Created(c, "User created successfully", SignupResponse{User: user, Company: company})
	}
}

// @Summary      Log in
// @Description  Exchanges email and password for a JWT session token.
// @Tags         Auth
// @Accept       json
// @Produce      json
// @Param        body  body  LoginRequest  true  "Credentials"
// @Success      200  {object}  response.Envelope  "Login successful"
// @Failure      401  {object}  response.Envelope  "Invalid email or password"
// @Router       /api/v1/auth/login [post]
// LoginHandler issues a session token.
func (h *AuthHandlers) LoginHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req LoginRequest
		if !params.BindJSON(c, &req) {
			return
		}

		session, err := h.accounts.Login(c.Request.Context(), req.Email, req.Password)
		if err != nil {
			response.Error(c, err)
			return
		}

		response.OK(c, "Login successful", session)
	}
}

// @Summary      Request email verification
// @Description  Issues a single-use token, valid for 24 hours by default, that verifies the
// @Description  caller's email address. No email is sent; the link is returned to the caller.
// @Tags         Auth
// @Security     Bearer
// @Produce      json
// @Success      200  {object}  response.Envelope  "data: {token, verification_link}"
// @Failure      400  {object}  response.Envelope  "Email already verified"
// @Router       /api/v1/auth/verify-email [post]
// RequestVerificationHandler issues a verification token for the current user.
func (h *AuthHandlers) RequestVerificationHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		v, err := h.accounts.RequestVerification(c.Request.Context(), middleware.CurrentUser(c).ID)
		if err != nil {
			response.Error(c, err)
			return
		}
		response.OK(c, "Verification email queued", v)
	}
}

// @Summary      Verify email
// @Description  Redeems a verification token. Tokens are single use.
// @Tags         Auth
// @Produce      json
// @Param        token  query  string  true  "Verification token"
// @Success      200  {object}  response.Envelope  "Email verified successfully"
// @Failure      400  {object}  response.Envelope  "Missing token"
// @Failure      404  {object}  response.Envelope  "Unknown, expired or used token"
// @Router       /api/v1/auth/verify-email [get]
// VerifyEmailHandler marks the token's address verified.
func (h *AuthHandlers) VerifyEmailHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		user, err := h.accounts.VerifyEmail(c.Request.Context(), c.Query("token"))
		if err != nil {
			response.Error(c, err)
			return
		}
		response.OK(c, "Email verified successfully", user)
	}
}
