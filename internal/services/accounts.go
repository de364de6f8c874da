// accounts.go covers identity and tenancy: registration of a user with the company they own,
// password login, email verification, profile and password changes, company profiles and the
// industry lookup.
package services

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/mailnow/mailnow-admin/internal/apperr"
	"github.com/mailnow/mailnow-admin/internal/auth"
	"github.com/mailnow/mailnow-admin/internal/db/models"
	"github.com/mailnow/mailnow-admin/internal/db/repositories"
	"github.com/mailnow/mailnow-admin/internal/enums"
	"github.com/mailnow/mailnow-admin/internal/invites"
	"github.com/mailnow/mailnow-admin/internal/validation"
)

// UserStore is implemented by *repositories.UserRepository.
type UserStore interface {
	CreateWithCompany(ctx context.Context, u *models.User, c *models.Company) error
	GetByID(ctx context.Context, id int64) (*models.User, error)
	GetByEmail(ctx context.Context, email string) (*models.User, error)
	List(ctx context.Context, opts repositories.ListOptions) ([]models.User, error)
	UpdateProfile(ctx context.Context, u *models.User) error
	UpdatePassword(ctx context.Context, id int64, passwordHash string) error
	MarkEmailVerified(ctx context.Context, id int64, email string) error
	Delete(ctx context.Context, id int64) error
}

// CompanyStore is implemented by *repositories.CompanyRepository.
type CompanyStore interface {
	GetByID(ctx context.Context, id int64) (*models.Company, error)
	GetByOwnerID(ctx context.Context, userID int64) (*models.Company, error)
	List(ctx context.Context, opts repositories.ListOptions, filters repositories.CompanyFilters) ([]models.Company, error)
	ListForUser(ctx context.Context, userID int64) ([]repositories.UserCompany, error)
	UpdateProfile(ctx context.Context, c *models.Company) error
	Delete(ctx context.Context, id int64) error
}

// IndustryStore is implemented by *repositories.IndustryRepository.
type IndustryStore interface {
	Create(ctx context.Context, ind *models.Industry) error
	GetByID(ctx context.Context, id int64) (*models.Industry, error)
	List(ctx context.Context, opts repositories.ListOptions) ([]models.Industry, error)
	Update(ctx context.Context, ind *models.Industry) error
	Delete(ctx context.Context, id int64) error
}

// TokenIssuer signs session tokens. *auth.JWTManager implements it.
type TokenIssuer interface {
	Generate(userID int64, email string) (string, error)
}

// RegisterInput is a signup request. The company is created alongside the user.
type RegisterInput struct {
	Email            string  `json:"email"`
	Password         string  `json:"password"`
	Firstname        string  `json:"firstname"`
	Lastname         string  `json:"lastname"`
	CompanyName      string  `json:"company_name"`
	Address          *string `json:"company_address"`
	Website          *string `json:"website"`
	SendingDomain    *string `json:"sending_domain"`
	DefaultFromName  *string `json:"default_from_name"`
	DefaultFromEmail *string `json:"default_from_email"`
	IndustryID       *int64  `json:"industry_id"`
}

// CompanyProfileInput carries editable company fields. Nil fields are left unchanged; an
// empty string clears an optional field.
type CompanyProfileInput struct {
	CompanyName      *string `json:"company_name"`
	Address          *string `json:"company_address"`
	Website          *string `json:"website"`
	SendingDomain    *string `json:"sending_domain"`
	DefaultFromName  *string `json:"default_from_name"`
	DefaultFromEmail *string `json:"default_from_email"`
	IndustryID       *int64  `json:"industry_id"`
}

// UserProfileInput carries editable user fields. Nil fields are left unchanged.
type UserProfileInput struct {
	Firstname  *string `json:"firstname"`
	Lastname   *string `json:"lastname"`
	MFAEnabled *bool   `json:"mfa_enabled"`
}

// Session is the result of a successful login.
type Session struct {
	Token     string       `json:"token"`
	ExpiresIn int64        `json:"expires_in"`
	User      *models.User `json:"user"`
}

// EmailVerification is an issued verification token. No email is sent; the caller delivers
// the link.
type EmailVerification struct {
	Token            string `json:"token"`
	VerificationLink string `json:"verification_link,omitempty"`
}

// AccountService manages users, companies and industries.
type AccountService struct {
	users         UserStore
	companies     CompanyStore
	industries    IndustryStore
	tokens        TokenIssuer
	expiresIn     int64
	verifications invites.VerificationStore
	verifyURL     string
}

// NewAccountService creates an AccountService. tokenTTLSeconds is reported to clients
// alongside issued tokens. Verification tokens live in memory until UseVerificationStore
// says otherwise.
func NewAccountService(users UserStore, companies CompanyStore, industries IndustryStore, tokens TokenIssuer, tokenTTLSeconds int64) *AccountService {
	return &AccountService{
		users:         users,
		companies:     companies,
		industries:    industries,
		tokens:        tokens,
		expiresIn:     tokenTTLSeconds,
		verifications: invites.NewMemoryVerificationStore(0),
	}
}

// UseVerificationStore sets where verification tokens are kept and the URL verification
// links point at. An empty verifyURL leaves links out of issued verifications.
func (s *AccountService) UseVerificationStore(store invites.VerificationStore, verifyURL string) {
	s.verifications = store
	s.verifyURL = verifyURL
}

// ---- Registration and login -------------------------------------------------

// Register creates a user and the company they own in one transaction. The company starts
// on the free tier with its full monthly allowance.
func (s *AccountService) Register(ctx context.Context, in RegisterInput) (*models.User, *models.Company, error) {
	email := validation.NormalizeEmail(in.Email)
	c := &models.Company{
		CompanyName: strings.TrimSpace(in.CompanyName),
		PricingTier: enums.PricingTierFree,
		APICredits:  enums.PricingTierFree.MonthlyCredits(),
	}
	applyCompanyProfile(c, CompanyProfileInput{
		Address:          in.Address,
		Website:          in.Website,
		SendingDomain:    in.SendingDomain,
		DefaultFromName:  in.DefaultFromName,
		DefaultFromEmail: in.DefaultFromEmail,
		IndustryID:       in.IndustryID,
	})

	if err := validation.First(
		validation.ValidateEmail("email", email),
		validation.ValidatePassword("password", in.Password),
		validation.MaxLength("firstname", in.Firstname, 150),
		validation.MaxLength("lastname", in.Lastname, 150),
		validateCompany(c),
	); err != nil {
		return nil, nil, err
	}
	if err := s.checkIndustry(ctx, c.IndustryID); err != nil {
		return nil, nil, err
	}

	existing, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		return nil, nil, err
	}
	if existing != nil {
		return nil, nil, fmt.Errorf("user with this email: %w", apperr.ErrDuplicate)
	}

	hash, err := auth.HashPassword(in.Password)
	if err != nil {
		return nil, nil, err
	}
	u := &models.User{
		Email:        email,
		PasswordHash: hash,
		Firstname:    optionalString(in.Firstname),
		Lastname:     optionalString(in.Lastname),
		IsActive:     true,
	}
	if err := s.users.CreateWithCompany(ctx, u, c); err != nil {
		return nil, nil, err
	}
	return u, c, nil
}

// Login verifies credentials and issues a session token. Unknown emails, wrong passwords
// and inactive accounts all yield apperr.ErrInvalidPassword.
func (s *AccountService) Login(ctx context.Context, email, password string) (*Session, error) {
	email = validation.NormalizeEmail(email)
	if err := validation.First(
		validation.Required("email", email),
		validation.Required("password", password),
	); err != nil {
		return nil, err
	}

	u, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		return nil, err
	}
	if u == nil || !u.IsActive || !auth.CheckPassword(u.PasswordHash, password) {
		return nil, apperr.ErrInvalidPassword
	}

	token, err := s.tokens.Generate(u.ID, u.Email)
	if err != nil {
		return nil, fmt.Errorf("failed to issue token: %w", err)
	}
	return &Session{Token: token, ExpiresIn: s.expiresIn, User: u}, nil
}

// ---- Email verification -----------------------------------------------------

// RequestVerification issues a single-use token that confirms the user's current address.
func (s *AccountService) RequestVerification(ctx context.Context, userID int64) (*EmailVerification, error) {
	u, err := s.User(ctx, userID)
	if err != nil {
		return nil, err
	}
	if u.EmailVerified {
		return nil, apperr.Invalid("email", "is already verified")
	}
	token, err := s.verifications.Issue(ctx, invites.Verification{UserID: u.ID, Email: u.Email})
	if err != nil {
		return nil, err
	}
	out := &EmailVerification{Token: token}
	if s.verifyURL != "" {
		out.VerificationLink = s.verifyURL + "?token=" + url.QueryEscape(token)
	}
	return out, nil
}

// VerifyEmail redeems a verification token and marks the address verified. Unknown, expired
// and used tokens are apperr.ErrNotFound.
func (s *AccountService) VerifyEmail(ctx context.Context, token string) (*models.User, error) {
	token = strings.TrimSpace(token)
	if err := validation.Required("token", token); err != nil {
		return nil, err
	}
	v, err := s.verifications.Consume(ctx, token)
	if err != nil {
		return nil, err
	}
	if v == nil {
		return nil, fmt.Errorf("verification token: %w", apperr.ErrNotFound)
	}
	if err := s.users.MarkEmailVerified(ctx, v.UserID, v.Email); err != nil {
		return nil, err
	}
	return s.User(ctx, v.UserID)
}

// ---- Users ------------------------------------------------------------------

// User returns a user by id.
func (s *AccountService) User(ctx context.Context, userID int64) (*models.User, error) {
	u, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if u == nil {
		return nil, fmt.Errorf("user: %w", apperr.ErrNotFound)
	}
	return u, nil
}

// ListUsers returns users matching opts.
func (s *AccountService) ListUsers(ctx context.Context, opts repositories.ListOptions) ([]models.User, error) {
	return s.users.List(ctx, opts)
}

// UpdateProfile applies in to the user's profile.
func (s *AccountService) UpdateProfile(ctx context.Context, userID int64, in UserProfileInput) (*models.User, error) {
	u, err := s.User(ctx, userID)
	if err != nil {
		return nil, err
	}
	if in.Firstname != nil {
		u.Firstname = optionalString(*in.Firstname)
	}
	if in.Lastname != nil {
		u.Lastname = optionalString(*in.Lastname)
	}
	if in.MFAEnabled != nil {
		u.MFAEnabled = *in.MFAEnabled
	}
	if err := validation.First(
		validation.MaxLength("firstname", deref(u.Firstname), 150),
		validation.MaxLength("lastname", deref(u.Lastname), 150),
	); err != nil {
		return nil, err
	}
	if err := s.users.UpdateProfile(ctx, u); err != nil {
		return nil, err
	}
	return u, nil
}

// ChangePassword replaces the user's password after verifying the current one.
func (s *AccountService) ChangePassword(ctx context.Context, userID int64, current, next string) error {
	u, err := s.User(ctx, userID)
	if err != nil {
		return err
	}
	if !auth.CheckPassword(u.PasswordHash, current) {
		return fmt.Errorf("current password: %w", apperr.ErrInvalidPassword)
	}
	if err := validation.ValidatePassword("new_password", next); err != nil {
		return err
	}
	hash, err := auth.HashPassword(next)
	if err != nil {
		return err
	}
	return s.users.UpdatePassword(ctx, userID, hash)
}

// DeleteUser removes a user. Their company, its resources and their memberships cascade.
func (s *AccountService) DeleteUser(ctx context.Context, userID int64) error {
	return s.users.Delete(ctx, userID)
}

// ---- Companies --------------------------------------------------------------

// Company returns a company by id.
func (s *AccountService) Company(ctx context.Context, companyID int64) (*models.Company, error) {
	c, err := s.companies.GetByID(ctx, companyID)
	if err != nil {
		return nil, err
	}
	if c == nil {
		return nil, fmt.Errorf("company: %w", apperr.ErrNotFound)
	}
	return c, nil
}

// CompaniesForUser returns the companies the user owns or belongs to, with their role.
func (s *AccountService) CompaniesForUser(ctx context.Context, userID int64) ([]repositories.UserCompany, error) {
	return s.companies.ListForUser(ctx, userID)
}

// ListCompanies returns companies matching opts and filters.
func (s *AccountService) ListCompanies(ctx context.Context, opts repositories.ListOptions, filters repositories.CompanyFilters) ([]models.Company, error) {
	return s.companies.List(ctx, opts, filters)
}

// UpdateCompanyProfile applies in to the company profile.
func (s *AccountService) UpdateCompanyProfile(ctx context.Context, companyID int64, in CompanyProfileInput) (*models.Company, error) {
	c, err := s.Company(ctx, companyID)
	if err != nil {
		return nil, err
	}
	if in.CompanyName != nil {
		c.CompanyName = strings.TrimSpace(*in.CompanyName)
	}
	applyCompanyProfile(c, in)
	if err := validateCompany(c); err != nil {
		return nil, err
	}
	if in.IndustryID != nil {
		if err := s.checkIndustry(ctx, c.IndustryID); err != nil {
			return nil, err
		}
	}
	if err := s.companies.UpdateProfile(ctx, c); err != nil {
		return nil, err
	}
	return c, nil
}

// DeleteCompany removes a company and everything it owns. The owner account is kept.
func (s *AccountService) DeleteCompany(ctx context.Context, companyID int64) error {
	return s.companies.Delete(ctx, companyID)
}

func (s *AccountService) checkIndustry(ctx context.Context, id *int64) error {
	if id == nil {
		return nil
	}
	ind, err := s.industries.GetByID(ctx, *id)
	if err != nil {
		return err
	}
	if ind == nil {
		return apperr.Invalid("industry_id", "industry %d does not exist", *id)
	}
	return nil
}

// applyCompanyProfile copies the optional profile fields. IndustryID 0 clears the industry.
func applyCompanyProfile(c *models.Company, in CompanyProfileInput) {
	if in.Address != nil {
		c.Address = optionalString(*in.Address)
	}
	if in.Website != nil {
		c.Website = optionalString(*in.Website)
	}
	if in.SendingDomain != nil {
		c.SendingDomain = optionalString(strings.ToLower(*in.SendingDomain))
	}
	if in.DefaultFromName != nil {
		c.DefaultFromName = optionalString(*in.DefaultFromName)
	}
	if in.DefaultFromEmail != nil {
		c.DefaultFromEmail = optionalString(validation.NormalizeEmail(*in.DefaultFromEmail))
	}
	if in.IndustryID != nil {
		if *in.IndustryID == 0 {
			c.IndustryID = nil
		} else {
			id := *in.IndustryID
			c.IndustryID = &id
		}
	}
}

func validateCompany(c *models.Company) error {
	errs := []error{
		validation.Required("company_name", c.CompanyName),
		validation.MaxLength("company_name", c.CompanyName, 255),
		validation.MaxLength("company_address", deref(c.Address), 500),
		validation.ValidateOptionalHTTPURL("website", c.Website),
		validation.MaxLength("default_from_name", deref(c.DefaultFromName), 255),
	}
	if c.SendingDomain != nil {
		errs = append(errs, validation.ValidateDomain("sending_domain", *c.SendingDomain))
	}
	if c.DefaultFromEmail != nil {
		errs = append(errs, validation.ValidateEmail("default_from_email", *c.DefaultFromEmail))
	}
	return validation.First(errs...)
}

// ---- Industries -------------------------------------------------------------

// IndustryInput carries industry fields.
type IndustryInput struct {
	Name        string  `json:"name"`
	Description *string `json:"description"`
}

func validateIndustry(ind *models.Industry) error {
	return validation.First(
		validation.Required("name", ind.Name),
		validation.MaxLength("name", ind.Name, 100),
	)
}

// CreateIndustry adds an industry. Names are unique.
func (s *AccountService) CreateIndustry(ctx context.Context, in IndustryInput) (*models.Industry, error) {
	ind := &models.Industry{Name: strings.TrimSpace(in.Name), Description: in.Description}
	if err := validateIndustry(ind); err != nil {
		return nil, err
	}
	if err := s.industries.Create(ctx, ind); err != nil {
		return nil, err
	}
	return ind, nil
}

// Industry returns an industry by id.
func (s *AccountService) Industry(ctx context.Context, id int64) (*models.Industry, error) {
	ind, err := s.industries.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if ind == nil {
		return nil, fmt.Errorf("industry: %w", apperr.ErrNotFound)
	}
	return ind, nil
}

// ListIndustries returns industries ordered by name.
func (s *AccountService) ListIndustries(ctx context.Context, opts repositories.ListOptions) ([]models.Industry, error) {
	return s.industries.List(ctx, opts)
}

// UpdateIndustry replaces an industry's name and description.
func (s *AccountService) UpdateIndustry(ctx context.Context, id int64, in IndustryInput) (*models.Industry, error) {
	ind, err := s.Industry(ctx, id)
	if err != nil {
		return nil, err
	}
	ind.Name = strings.TrimSpace(in.Name)
	ind.Description = in.Description
	if err := validateIndustry(ind); err != nil {
		return nil, err
	}
	if err := s.industries.Update(ctx, ind); err != nil {
		return nil, err
	}
	return ind, nil
}

// DeleteIndustry removes an industry. Companies referencing it keep existing with no industry.
func (s *AccountService) DeleteIndustry(ctx context.Context, id int64) error {
	return s.industries.Delete(ctx, id)
}
