// templates.go manages stored email templates. Content is opaque: nothing here renders it.
package services

import (
	"context"
	"strings"

	"github.com/mailnow/mailnow-admin/internal/db/models"
	"github.com/mailnow/mailnow-admin/internal/db/repositories"
	"github.com/mailnow/mailnow-admin/internal/validation"
)

// TemplateStore is implemented by *repositories.TemplateRepository.
type TemplateStore interface {
	Create(ctx context.Context, t *models.Template) error
	GetByID(ctx context.Context, id int64) (*models.Template, error)
	ListByCompany(ctx context.Context, companyID int64, opts repositories.ListOptions, templateType string) ([]models.Template, error)
	CountByType(ctx context.Context, companyID int64) ([]models.TemplateTypeCount, error)
	Update(ctx context.Context, t *models.Template) error
	Delete(ctx context.Context, companyID, id int64) error
}

// TemplateInput carries the fields of a create or update. On update, nil fields are left unchanged.
type TemplateInput struct {
	Name         *string `json:"name"`
	Subject      *string `json:"subject"`
	Content      *string `json:"content"`
	TemplateType *string `json:"template_type"`
}

// TemplateService manages templates.
type TemplateService struct {
	templates TemplateStore
}

// NewTemplateService creates a TemplateService.
func NewTemplateService(templates TemplateStore) *TemplateService {
	return &TemplateService{templates: templates}
}

func validateTemplate(t *models.Template) error {
	return validation.First(
		validation.Required("name", t.Name),
		validation.MaxLength("name", t.Name, 255),
		validation.MaxLength("subject", t.Subject, MaxSubjectLength),
		validation.Required("template_type", t.TemplateType),
		validation.MaxLength("template_type", t.TemplateType, 50),
	)
}

func applyTemplateInput(t *models.Template, in TemplateInput) {
	if in.Name != nil {
		t.Name = strings.TrimSpace(*in.Name)
	}
	if in.Subject != nil {
		t.Subject = *in.Subject
	}
	if in.Content != nil {
		t.Content = *in.Content
	}
	if in.TemplateType != nil {
		t.TemplateType = strings.TrimSpace(*in.TemplateType)
	}
}

// Create stores a template. A missing type defaults to "email".
func (s *TemplateService) Create(ctx context.Context, companyID int64, in TemplateInput) (*models.Template, error) {
	t := &models.Template{CompanyID: companyID, TemplateType: models.DefaultTemplateType}
	applyTemplateInput(t, in)
	if t.TemplateType == "" {
		t.TemplateType = models.DefaultTemplateType
	}
	if err := validateTemplate(t); err != nil {
		return nil, err
	}
	if err := s.templates.Create(ctx, t); err != nil {
		return nil, err
	}
	return t, nil
}

// Get returns one of the company's templates.
func (s *TemplateService) Get(ctx context.Context, companyID, id int64) (*models.Template, error) {
	t, err := s.templates.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	var owner int64
	if t != nil {
		owner = t.CompanyID
	}
	if err := checkTenant("template", t != nil, owner, companyID); err != nil {
		return nil, err
	}
	return t, nil
}

// List returns the company's templates, optionally filtered by type.
func (s *TemplateService) List(ctx context.Context, companyID int64, opts repositories.ListOptions, templateType string) ([]models.Template, error) {
	return s.templates.ListByCompany(ctx, companyID, opts, templateType)
}

// Update applies in to an existing template.
func (s *TemplateService) Update(ctx context.Context, companyID, id int64, in TemplateInput) (*models.Template, error) {
	t, err := s.Get(ctx, companyID, id)
	if err != nil {
		return nil, err
	}
	applyTemplateInput(t, in)
	if err := validateTemplate(t); err != nil {
		return nil, err
	}
	if err := s.templates.Update(ctx, t); err != nil {
		return nil, err
	}
	return t, nil
}

// Delete removes a template.
func (s *TemplateService) Delete(ctx context.Context, companyID, id int64) error {
	if _, err := s.Get(ctx, companyID, id); err != nil {
		return err
	}
	return s.templates.Delete(ctx, companyID, id)
}

// TemplateStats is the per-type breakdown shown on the templates page.
type TemplateStats struct {
	Total  int64                      `json:"total_templates"`
	ByType []models.TemplateTypeCount `json:"by_type"`
}

// Stats counts the company's templates by type.
func (s *TemplateService) Stats(ctx context.Context, companyID int64) (*TemplateStats, error) {
	counts, err := s.templates.CountByType(ctx, companyID)
	if err != nil {
		return nil, err
	}
	stats := &TemplateStats{ByType: counts}
	for _, c := range counts {
		stats.Total += c.Count
	}
	return stats, nil
}
