package services

import (
	"context"
	"time"

	"github.com/mailnow/mailnow-admin/internal/db/repositories"
	"github.com/mailnow/mailnow-admin/internal/enums"
)

// DashboardWindow is how far back the dashboard's email figures reach.
const DashboardWindow = 30 * 24 * time.Hour

const recentActivityLimit = 5

// DashboardStats is the company overview shown after login.
type DashboardStats struct {
	EmailsSent          int64             `json:"emails_sent"`
	DeliveryRate        float64           `json:"delivery_rate"`
	ActiveAPIKeys       int64             `json:"active_api_keys"`
	TeamMembers         int               `json:"active_users"`
	APICreditsRemaining int64             `json:"api_credits_remaining"`
	PricingTier         enums.PricingTier `json:"pricing_tier"`
	CreditsResetDate    string            `json:"credits_reset_date"`
	RecentActivity      []RecentActivity  `json:"recent_activity"`
}

// RecentActivity is one of the latest log entries.
type RecentActivity struct {
	Status enums.EmailStatus `json:"status"`
	Email  string            `json:"email"`
	Time   time.Time         `json:"time"`
}

// DashboardService aggregates figures from the other services.
type DashboardService struct {
	credits *CreditService
	logs    *EmailLogService
	keys    *APIKeyService
	team    *TeamService
	now     Clock
}

// NewDashboardService creates a DashboardService.
func NewDashboardService(credits *CreditService, logs *EmailLogService, keys *APIKeyService, team *TeamService) *DashboardService {
	return &DashboardService{credits: credits, logs: logs, keys: keys, team: team, now: systemClock}
}

// Stats returns the overview for companyID. Reading the balance applies a due credit reset.
func (s *DashboardService) Stats(ctx context.Context, companyID int64) (*DashboardStats, error) {
	balance, err := s.credits.Balance(ctx, companyID)
	if err != nil {
		return nil, err
	}

	since := s.now().Add(-DashboardWindow)
	window := repositories.EmailLogFilter{Since: &since}
	logStats, err := s.logs.Stats(ctx, companyID, window)
	if err != nil {
		return nil, err
	}
	keyStats, err := s.keys.Stats(ctx, companyID)
	if err != nil {
		return nil, err
	}
	members, err := s.team.ListMembers(ctx, companyID)
	if err != nil {
		return nil, err
	}
	recent, err := s.logs.Query(ctx, companyID, repositories.EmailLogFilter{Limit: recentActivityLimit})
	if err != nil {
		return nil, err
	}

	activity := make([]RecentActivity, 0, len(recent.Logs))
	for _, l := range recent.Logs {
		activity = append(activity, RecentActivity{Status: l.Status, Email: l.ToEmail, Time: l.CreatedAt})
	}

	return &DashboardStats{
		EmailsSent:          logStats.Total,
		DeliveryRate:        logStats.SuccessRate,
		ActiveAPIKeys:       keyStats.Active,
		TeamMembers:         len(members) + 1, // the owner has no team_members row
		APICreditsRemaining: balance.Remaining,
		PricingTier:         balance.PricingTier,
		CreditsResetDate:    balance.LastReset.Format(time.DateOnly),
		RecentActivity:      activity,
	}, nil
}
