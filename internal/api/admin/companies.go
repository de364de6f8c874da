package admin

import (
	"context"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/mailnow/mailnow-admin/internal/api/params"
	"github.com/mailnow/mailnow-admin/internal/api/response"
	"github.com/mailnow/mailnow-admin/internal/apperr"
	"github.com/mailnow/mailnow-admin/internal/db/models"
	"github.com/mailnow/mailnow-admin/internal/db/repositories"
	"github.com/mailnow/mailnow-admin/internal/enums"
	"github.com/mailnow/mailnow-admin/internal/services"
)

// CompanyAccounts is implemented by *services.AccountService.
type CompanyAccounts interface {
	Company(ctx context.Context, companyID int64) (*models.Company, error)
	UpdateCompanyProfile(ctx context.Context, companyID int64, in services.CompanyProfileInput) (*models.Company, error)
	DeleteCompany(ctx context.Context, companyID int64) error
	ListCompanies(ctx context.Context, opts repositories.ListOptions, filters repositories.CompanyFilters) ([]models.Company, error)
}

// CreditManager is implemented by *services.CreditService.
type CreditManager interface {
	Balance(ctx context.Context, companyID int64) (*services.CreditBalance, error)
	SetPricingTier(ctx context.Context, companyID int64, tier enums.PricingTier) (*services.CreditBalance, error)
}

// CompanyHandlers serves the company profile, credit balance and pricing tier.
type CompanyHandlers struct {
	accounts CompanyAccounts
	credits  CreditManager
}

// NewCompanyHandlers creates CompanyHandlers.
func NewCompanyHandlers(accounts CompanyAccounts, credits CreditManager) *CompanyHandlers {
	return &CompanyHandlers{accounts: accounts, credits: credits}
}

// PricingTierRequest is the body of PUT /api/v1/companies/:company_id/pricing-tier.
type PricingTierRequest struct {
	PricingTier string `json:"pricing_tier"`
}

// GetCompanyHandler returns the company profile.
// GET /api/v1/companies/:company_id
func (h *CompanyHandlers) GetCompanyHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		company, err := h.accounts.Company(c.Request.Context(), companyID(c))
		if err != nil {
			response.Error(c, err)
			return
		}
		response.OK(c, "Company profile retrieved successfully", company)
	}
}

// UpdateCompanyHandler applies a partial profile update.
// PUT /api/v1/companies/:company_id
func (h *CompanyHandlers) UpdateCompanyHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req services.CompanyProfileInput
		if !params.BindJSON(c, &req) {
			return
		}
		company, err := h.accounts.UpdateCompanyProfile(c.Request.Context(), companyID(c), req)
		if err != nil {
			response.Error(c, err)
			return
		}
		response.OK(c, "Company profile updated successfully", company)
	}
}

// DeleteCompanyHandler deletes the company and everything it owns. Owner only.
// DELETE /api/v1/companies/:company_id
func (h *CompanyHandlers) DeleteCompanyHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		if err := h.accounts.DeleteCompany(c.Request.Context(), companyID(c)); err != nil {
			response.Error(c, err)
			return
		}
		response.OK(c, "Company deleted successfully", nil)
	}
}

// GetCreditsHandler returns the credit balance, applying a due monthly reset first.
// GET /api/v1/companies/:company_id/credits
func (h *CompanyHandlers) GetCreditsHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		balance, err := h.credits.Balance(c.Request.Context(), companyID(c))
		if err != nil {
			response.Error(c, err)
			return
		}
		response.OK(c, "Credit balance retrieved successfully", balance)
	}
}

// SetPricingTierHandler moves the company to another tier. Owner only.
// PUT /api/v1/companies/:company_id/pricing-tier
func (h *CompanyHandlers) SetPricingTierHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req PricingTierRequest
		if !params.BindJSON(c, &req) {
			return
		}
		tier, err := enums.ParsePricingTier(req.PricingTier)
		if err != nil {
			response.Error(c, err)
			return
		}
		balance, err := h.credits.SetPricingTier(c.Request.Context(), companyID(c), tier)
		if err != nil {
			response.Error(c, err)
			return
		}
		response.OK(c, "Pricing tier updated successfully", balance)
	}
}

// ListAllCompaniesHandler lists every company with optional ?industry_id= and
// ?pricing_tier= filters. Staff only.
// GET /api/v1/admin/companies
func (h *CompanyHandlers) ListAllCompaniesHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var filters repositories.CompanyFilters
		if s := c.Query("industry_id"); s != "" {
			id, err := strconv.ParseInt(s, 10, 64)
			if err != nil {
				response.Error(c, apperr.Invalid("industry_id", "must be an integer"))
				return
			}
			filters.IndustryID = &id
		}
		if s := c.Query("pricing_tier"); s != "" {
			tier, err := enums.ParsePricingTier(s)
			if err != nil {
				response.Error(c, err)
				return
			}
			filters.PricingTier = &tier
		}

		companies, err := h.accounts.ListCompanies(c.Request.Context(), params.List(c), filters)
		if err != nil {
			response.Error(c, err)
			return
		}
		if companies == nil {
			companies = []models.Company{}
		}
		response.OK(c, "Companies retrieved successfully", companies)
	}
}
