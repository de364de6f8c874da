// smtp.go manages SMTP profiles: credential storage with the password sealed at rest and the
// one-default-per-company rule.
package services

import (
	"context"
	"fmt"
	"strings"

	"github.com/mailnow/mailnow-admin/internal/apperr"
	"github.com/mailnow/mailnow-admin/internal/db/models"
	"github.com/mailnow/mailnow-admin/internal/validation"
)

// SMTPProfileStore is implemented by *repositories.SMTPProfileRepository.
type SMTPProfileStore interface {
	Create(ctx context.Context, p *models.SMTPProfile) error
	Update(ctx context.Context, p *models.SMTPProfile) error
	SetDefault(ctx context.Context, companyID, id int64) error
	GetByID(ctx context.Context, id int64) (*models.SMTPProfile, error)
	GetDefault(ctx context.Context, companyID int64) (*models.SMTPProfile, error)
	ListByCompany(ctx context.Context, companyID int64) ([]models.SMTPProfile, error)
	Delete(ctx context.Context, companyID, id int64) error
}

// SecretSealer encrypts secrets for storage. *crypto.SecretCipher implements it.
type SecretSealer interface {
	Seal(plaintext string) (string, error)
	Open(ciphertext string) (string, error)
}

// SMTPProfileInput carries the fields of a create or update. On update, nil fields are left
// unchanged and an empty password keeps the stored one.
type SMTPProfileInput struct {
	SMTPUsername *string `json:"smtp_username"`
	SMTPPassword *string `json:"smtp_password"`
	SMTPServer   *string `json:"smtp_server"`
	SMTPPort     *int    `json:"smtp_port"`
	IsDefault    *bool   `json:"is_default"`
}

// SMTPCredentials is a decrypted profile, handed to the sending pipeline only.
type SMTPCredentials struct {
	ProfileID int64
	Username  string
	Password  string
	Server    string
	Port      int
}

// SMTPService manages SMTP profiles.
type SMTPService struct {
	profiles SMTPProfileStore
	cipher   SecretSealer
}

// NewSMTPService creates an SMTPService.
func NewSMTPService(profiles SMTPProfileStore, cipher SecretSealer) *SMTPService {
	return &SMTPService{profiles: profiles, cipher: cipher}
}

func validateSMTPProfile(p *models.SMTPProfile, password string) error {
	return validation.First(
		validation.Required("smtp_username", p.SMTPUsername),
		validation.MaxLength("smtp_username", p.SMTPUsername, 255),
		validation.ValidateHost("smtp_server", p.SMTPServer),
		validation.ValidatePort("smtp_port", p.SMTPPort),
		validation.MaxLength("smtp_password", password, 255),
	)
}

// Create stores a new profile for companyID.
func (s *SMTPService) Create(ctx context.Context, companyID int64, in SMTPProfileInput) (*models.SMTPProfile, error) {
	p := &models.SMTPProfile{CompanyID: companyID, SMTPPort: models.DefaultSMTPPort}
	applySMTPInput(p, in)

	var password string
	if in.SMTPPassword != nil {
		password = *in.SMTPPassword
	}
	if err := validation.First(
		validateSMTPProfile(p, password),
		validation.Required("smtp_password", password),
	); err != nil {
		return nil, err
	}

	sealed, err := s.cipher.Seal(password)
	if err != nil {
		return nil, fmt.Errorf("failed to encrypt smtp password: %w", err)
	}
	p.SMTPPassword = sealed

	if err := s.profiles.Create(ctx, p); err != nil {
		return nil, err
	}
	return p, nil
}

// Get returns one of the company's profiles.
func (s *SMTPService) Get(ctx context.Context, companyID, id int64) (*models.SMTPProfile, error) {
	p, err := s.profiles.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	var owner int64
	if p != nil {
		owner = p.CompanyID
	}
	if err := checkTenant("smtp profile", p != nil, owner, companyID); err != nil {
		return nil, err
	}
	return p, nil
}

// List returns the company's profiles, default first.
func (s *SMTPService) List(ctx context.Context, companyID int64) ([]models.SMTPProfile, error) {
	return s.profiles.ListByCompany(ctx, companyID)
}

// Update applies in to an existing profile.
func (s *SMTPService) Update(ctx context.Context, companyID, id int64, in SMTPProfileInput) (*models.SMTPProfile, error) {
	p, err := s.Get(ctx, companyID, id)
	if err != nil {
		return nil, err
	}
	applySMTPInput(p, in)

	var password string
	if in.SMTPPassword != nil {
		password = *in.SMTPPassword
	}
	if err := validateSMTPProfile(p, password); err != nil {
		return nil, err
	}
	if password != "" {
		sealed, err := s.cipher.Seal(password)
		if err != nil {
			return nil, fmt.Errorf("failed to encrypt smtp password: %w", err)
		}
		p.SMTPPassword = sealed
	}

	if err := s.profiles.Update(ctx, p); err != nil {
		return nil, err
	}
	return p, nil
}

// SetDefault makes id the company's default profile.
func (s *SMTPService) SetDefault(ctx context.Context, companyID, id int64) (*models.SMTPProfile, error) {
	p, err := s.Get(ctx, companyID, id)
	if err != nil {
		return nil, err
	}
	if err := s.profiles.SetDefault(ctx, companyID, id); err != nil {
		return nil, err
	}
	p.IsDefault = true
	return p, nil
}

// Delete removes a profile.
func (s *SMTPService) Delete(ctx context.Context, companyID, id int64) error {
	if _, err := s.Get(ctx, companyID, id); err != nil {
		return err
	}
	return s.profiles.Delete(ctx, companyID, id)
}

// DefaultCredentials decrypts the company's default profile. It fails with ErrValidation when
// no default is configured.
func (s *SMTPService) DefaultCredentials(ctx context.Context, companyID int64) (*SMTPCredentials, error) {
	p, err := s.profiles.GetDefault(ctx, companyID)
	if err != nil {
		return nil, err
	}
	if p == nil {
		return nil, apperr.Invalid("smtp_profile", "no default SMTP profile is configured")
	}
	password, err := s.cipher.Open(p.SMTPPassword)
	if err != nil {
		return nil, fmt.Errorf("failed to decrypt smtp password for profile %d: %w", p.ID, err)
	}
	return &SMTPCredentials{
		ProfileID: p.ID,
		Username:  p.SMTPUsername,
		Password:  password,
		Server:    p.SMTPServer,
		Port:      p.SMTPPort,
	}, nil
}

func applySMTPInput(p *models.SMTPProfile, in SMTPProfileInput) {
	if in.SMTPUsername != nil {
		p.SMTPUsername = strings.TrimSpace(*in.SMTPUsername)
	}
	if in.SMTPServer != nil {
		p.SMTPServer = strings.TrimSpace(*in.SMTPServer)
	}
	if in.SMTPPort != nil {
		p.SMTPPort = *in.SMTPPort
	}
	if in.IsDefault != nil {
		p.IsDefault = *in.IsDefault
	}
}
