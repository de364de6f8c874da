// webhooks.go manages webhook endpoint configuration. Delivery and its statistics are owned by
// another system; tenants only edit name, URL, events and status.
package services

import (
	"context"
	"strings"

	"github.com/mailnow/mailnow-admin/internal/apperr"
	"github.com/mailnow/mailnow-admin/internal/db/models"
	"github.com/mailnow/mailnow-admin/internal/enums"
	"github.com/mailnow/mailnow-admin/internal/validation"
)

// WebhookStore is implemented by *repositories.WebhookRepository.
type WebhookStore interface {
	Create(ctx context.Context, w *models.Webhook) error
	GetByID(ctx context.Context, id int64) (*models.Webhook, error)
	ListByCompany(ctx context.Context, companyID int64, status *enums.Status) ([]models.Webhook, error)
	Update(ctx context.Context, w *models.Webhook) error
	Delete(ctx context.Context, companyID, id int64) error
}

// WebhookInput carries the fields of a create or update. On update, nil fields are left unchanged.
type WebhookInput struct {
	Name   *string   `json:"name"`
	URL    *string   `json:"url"`
	Events *[]string `json:"events"`
	Status *string   `json:"status"`
}

// WebhookService manages webhooks.
type WebhookService struct {
	webhooks WebhookStore
}

// NewWebhookService creates a WebhookService.
func NewWebhookService(webhooks WebhookStore) *WebhookService {
	return &WebhookService{webhooks: webhooks}
}

func applyWebhookInput(w *models.Webhook, in WebhookInput) error {
	if in.Name != nil {
		w.Name = strings.TrimSpace(*in.Name)
	}
	if in.URL != nil {
		w.URL = strings.TrimSpace(*in.URL)
	}
	if in.Events != nil {
		w.Events = models.StringList(*in.Events)
	}
	if in.Status != nil {
		status, err := enums.ParseStatus(*in.Status)
		if err != nil {
			return err
		}
		w.Status = status
	}
	// is_active mirrors status; the column is kept for the delivery pipeline.
	w.IsActive = w.Status == enums.StatusActive

	return validation.First(
		validation.Required("name", w.Name),
		validation.MaxLength("name", w.Name, 255),
		validation.ValidateHTTPURL("url", w.URL),
		validation.ValidateWebhookEvents("events", w.Events),
	)
}

// Create stores a webhook. Status defaults to active.
func (s *WebhookService) Create(ctx context.Context, companyID int64, in WebhookInput) (*models.Webhook, error) {
	w := &models.Webhook{CompanyID: companyID, Status: enums.StatusActive}
	if err := applyWebhookInput(w, in); err != nil {
		return nil, err
	}
	if err := s.webhooks.Create(ctx, w); err != nil {
		return nil, err
	}
	return w, nil
}

// Get returns one of the company's webhooks.
func (s *WebhookService) Get(ctx context.Context, companyID, id int64) (*models.Webhook, error) {
	w, err := s.webhooks.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	var owner int64
	if w != nil {
		owner = w.CompanyID
	}
	if err := checkTenant("webhook", w != nil, owner, companyID); err != nil {
		return nil, err
	}
	return w, nil
}

// List returns the company's webhooks. status, when non-empty, must be a valid Status.
func (s *WebhookService) List(ctx context.Context, companyID int64, status string) ([]models.Webhook, error) {
	var filter *enums.Status
	if status != "" {
		st, err := enums.ParseStatus(status)
		if err != nil {
			return nil, apperr.Invalid("status", "%q is not a valid status", status)
		}
		filter = &st
	}
	return s.webhooks.ListByCompany(ctx, companyID, filter)
}

// Update applies in to an existing webhook.
func (s *WebhookService) Update(ctx context.Context, companyID, id int64, in WebhookInput) (*models.Webhook, error) {
	w, err := s.Get(ctx, companyID, id)
	if err != nil {
		return nil, err
	}
	if err := applyWebhookInput(w, in); err != nil {
		return nil, err
	}
	if err := s.webhooks.Update(ctx, w); err != nil {
		return nil, err
	}
	return w, nil
}

// Delete removes a webhook.
func (s *WebhookService) Delete(ctx context.Context, companyID, id int64) error {
	if _, err := s.Get(ctx, companyID, id); err != nil {
		return err
	}
	return s.webhooks.Delete(ctx, companyID, id)
}
