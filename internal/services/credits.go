// credits.go meters the public API: each send spends one credit from the company's monthly
// allowance. Allowances are restored lazily on access once the reset month has passed, and in
// bulk by the credit reset job.
package services

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/mailnow/mailnow-admin/internal/apperr"
	"github.com/mailnow/mailnow-admin/internal/db/models"
	"github.com/mailnow/mailnow-admin/internal/enums"
	"github.com/mailnow/mailnow-admin/internal/telemetry"
)

// CreditStore is implemented by *repositories.CompanyRepository.
type CreditStore interface {
	GetByID(ctx context.Context, id int64) (*models.Company, error)
	DeductCredit(ctx context.Context, id int64) (bool, error)
	ResetCreditsIfDue(ctx context.Context, id int64, now time.Time) (bool, error)
	ResetAllDueCredits(ctx context.Context, now time.Time) (int64, error)
	SetPricingTier(ctx context.Context, id int64, tier enums.PricingTier, now time.Time) error
}

// CreditBalance is a company's current allowance. Remaining is enums.UnlimitedCredits for
// unlimited tiers.
type CreditBalance struct {
	PricingTier    enums.PricingTier `json:"pricing_tier"`
	Remaining      int64             `json:"api_credits_remaining"`
	MonthlyCredits int64             `json:"monthly_credits"`
	LastReset      time.Time         `json:"credits_reset_date"`
	NextReset      time.Time         `json:"next_reset_date"`
}

// CreditService manages API credits.
type CreditService struct {
	companies CreditStore
	now       Clock
}

// NewCreditService creates a CreditService.
func NewCreditService(companies CreditStore) *CreditService {
	return &CreditService{companies: companies, now: systemClock}
}

// NextResetDate is the first instant of the month after t, in UTC.
func NextResetDate(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month()+1, 1, 0, 0, 0, 0, time.UTC)
}

// load returns the company after applying a due reset.
func (s *CreditService) load(ctx context.Context, companyID int64) (*models.Company, error) {
	c, err := s.companies.GetByID(ctx, companyID)
	if err != nil {
		return nil, err
	}
	if c == nil {
		return nil, fmt.Errorf("company: %w", apperr.ErrNotFound)
	}
	now := s.now()
	if c.PricingTier.Unlimited() || !c.CreditsDue(now) {
		return c, nil
	}

	reset, err := s.companies.ResetCreditsIfDue(ctx, companyID, now)
	if err != nil {
		return nil, err
	}
	if reset {
		telemetry.CreditResetsTotal.WithLabelValues("lazy").Inc()
		slog.Info("api credits reset", "company_id", companyID, "pricing_tier", c.PricingTier)
		c.APICredits = c.PricingTier.MonthlyCredits()
		c.CreditsResetDate = now
	}
	return c, nil
}

// Balance returns the company's allowance, resetting it first when due.
func (s *CreditService) Balance(ctx context.Context, companyID int64) (*CreditBalance, error) {
	c, err := s.load(ctx, companyID)
	if err != nil {
		return nil, err
	}
	return balanceOf(c), nil
}

func balanceOf(c *models.Company) *CreditBalance {
	b := &CreditBalance{
		PricingTier:    c.PricingTier,
		Remaining:      c.APICredits,
		MonthlyCredits: c.PricingTier.MonthlyCredits(),
		LastReset:      c.CreditsResetDate,
		NextReset:      NextResetDate(c.CreditsResetDate),
	}
	if c.PricingTier.Unlimited() {
		b.Remaining = enums.UnlimitedCredits
	}
	return b
}

// Spend consumes one credit. Unlimited tiers never run out; otherwise an exhausted allowance
// yields apperr.ErrInsufficientCredits.
func (s *CreditService) Spend(ctx context.Context, companyID int64) error {
	c, err := s.load(ctx, companyID)
	if err != nil {
		return err
	}
	if c.PricingTier.Unlimited() {
		telemetry.CreditDeductionsTotal.WithLabelValues("unlimited").Inc()
		return nil
	}

	ok, err := s.companies.DeductCredit(ctx, companyID)
	if err != nil {
		telemetry.CreditDeductionsTotal.WithLabelValues("error").Inc()
		return err
	}
	if !ok {
		telemetry.CreditDeductionsTotal.WithLabelValues("insufficient").Inc()
		return apperr.ErrInsufficientCredits
	}
	telemetry.CreditDeductionsTotal.WithLabelValues("ok").Inc()
	return nil
}

// SetPricingTier moves the company to tier and grants its allowance immediately.
func (s *CreditService) SetPricingTier(ctx context.Context, companyID int64, tier enums.PricingTier) (*CreditBalance, error) {
	if !tier.Valid() {
		return nil, apperr.Invalid("pricing_tier", "%q is not a valid pricing tier", tier)
	}
	if err := s.companies.SetPricingTier(ctx, companyID, tier, s.now()); err != nil {
		return nil, err
	}
	return s.Balance(ctx, companyID)
}

// ResetDue restores the allowance of every company whose reset month has passed.
func (s *CreditService) ResetDue(ctx context.Context) (int64, error) {
	start := time.Now()
	n, err := s.companies.ResetAllDueCredits(ctx, s.now())
	telemetry.CreditResetRunDuration.Observe(time.Since(start).Seconds())
	if err != nil {
		return 0, err
	}
	if n > 0 {
		telemetry.CreditResetsTotal.WithLabelValues("scheduled").Add(float64(n))
	}
	return n, nil
}
