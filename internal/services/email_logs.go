// email_logs.go records and queries the append-only email send log.
package services

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/mailnow/mailnow-admin/internal/apperr"
	"github.com/mailnow/mailnow-admin/internal/db/models"
	"github.com/mailnow/mailnow-admin/internal/db/repositories"
	"github.com/mailnow/mailnow-admin/internal/enums"
	"github.com/mailnow/mailnow-admin/internal/telemetry"
	"github.com/mailnow/mailnow-admin/internal/validation"
)

// EmailLogStore is implemented by *repositories.EmailLogRepository.
type EmailLogStore interface {
	Create(ctx context.Context, l *models.EmailLog) error
	GetByID(ctx context.Context, id int64) (*models.EmailLog, error)
	GetByMessageID(ctx context.Context, companyID int64, messageID string) (*models.EmailLog, error)
	List(ctx context.Context, companyID int64, f repositories.EmailLogFilter) ([]models.EmailLog, int64, error)
	Each(ctx context.Context, companyID int64, f repositories.EmailLogFilter, fn func(*models.EmailLog) error) error
	Stats(ctx context.Context, companyID int64, f repositories.EmailLogFilter) (*models.EmailLogStats, error)
	Distribution(ctx context.Context, companyID int64, f repositories.EmailLogFilter) ([]models.StatusCount, error)
}

// MaxSubjectLength bounds email and template subjects; it matches the subject columns.
const MaxSubjectLength = 255

// NewMessageID returns a public message identifier: "msg_" and 32 hex digits.
func NewMessageID() string {
	return "msg_" + strings.ReplaceAll(uuid.NewString(), "-", "")
}

// EmailMessage is one send attempt to record.
type EmailMessage struct {
	From    string
	To      string
	Subject string
	Body    string
	Status  enums.EmailStatus
}

// EmailLogService records and reads email logs. There is no update or delete.
type EmailLogService struct {
	logs EmailLogStore
}

// NewEmailLogService creates an EmailLogService.
func NewEmailLogService(logs EmailLogStore) *EmailLogService {
	return &EmailLogService{logs: logs}
}

// Record validates msg and appends it to the company's log under a fresh message id. An
// empty status records success.
func (s *EmailLogService) Record(ctx context.Context, companyID int64, msg EmailMessage) (*models.EmailLog, error) {
	if msg.Status == "" {
		msg.Status = enums.EmailStatusSuccess
	}
	l := &models.EmailLog{
		CompanyID: companyID,
		MessageID: NewMessageID(),
		FromEmail: strings.TrimSpace(msg.From),
		ToEmail:   strings.TrimSpace(msg.To),
		Subject:   msg.Subject,
		Body:      msg.Body,
		Status:    msg.Status,
	}
	if err := validation.First(
		validation.ValidateEmail("from_email", l.FromEmail),
		validation.ValidateEmail("to_email", l.ToEmail),
		validation.MaxLength("subject", l.Subject, MaxSubjectLength),
	); err != nil {
		return nil, err
	}
	if !l.Status.Valid() {
		return nil, apperr.Invalid("status", "%q is not a valid email status", l.Status)
	}

	if err := s.logs.Create(ctx, l); err != nil {
		return nil, err
	}
	telemetry.EmailsRecordedTotal.WithLabelValues(string(l.Status)).Inc()
	return l, nil
}

// Get returns one of the company's log entries.
func (s *EmailLogService) Get(ctx context.Context, companyID, id int64) (*models.EmailLog, error) {
	l, err := s.logs.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	var owner int64
	if l != nil {
		owner = l.CompanyID
	}
	if err := checkTenant("email log", l != nil, owner, companyID); err != nil {
		return nil, err
	}
	return l, nil
}

// GetByMessageID returns the company's entry for a message id handed out by the send API.
func (s *EmailLogService) GetByMessageID(ctx context.Context, companyID int64, messageID string) (*models.EmailLog, error) {
	messageID = strings.TrimSpace(messageID)
	if messageID == "" {
		return nil, apperr.Invalid("message_id", "is required")
	}
	l, err := s.logs.GetByMessageID(ctx, companyID, messageID)
	if err != nil {
		return nil, err
	}
	if l == nil {
		return nil, fmt.Errorf("message %s: %w", messageID, apperr.ErrNotFound)
	}
	return l, nil
}

// LogPage is one page of a log query.
type LogPage struct {
	Logs   []models.EmailLog `json:"logs"`
	Total  int64             `json:"total"`
	Limit  int               `json:"limit"`
	Offset int               `json:"offset"`
}

// Query returns the company's log entries matching f, newest first.
func (s *EmailLogService) Query(ctx context.Context, companyID int64, f repositories.EmailLogFilter) (*LogPage, error) {
	if err := validateWindow(f); err != nil {
		return nil, err
	}
	opts := repositories.ListOptions{Limit: f.Limit, Offset: f.Offset}.Normalize()
	f.Limit, f.Offset = opts.Limit, opts.Offset

	logs, total, err := s.logs.List(ctx, companyID, f)
	if err != nil {
		return nil, err
	}
	return &LogPage{Logs: logs, Total: total, Limit: f.Limit, Offset: f.Offset}, nil
}

// Stats summarizes the company's log within f's window. The status filter is ignored.
func (s *EmailLogService) Stats(ctx context.Context, companyID int64, f repositories.EmailLogFilter) (*models.EmailLogStats, error) {
	if err := validateWindow(f); err != nil {
		return nil, err
	}
	return s.logs.Stats(ctx, companyID, f)
}

// Distribution returns count and percentage per status within f's window.
func (s *EmailLogService) Distribution(ctx context.Context, companyID int64, f repositories.EmailLogFilter) ([]models.StatusCount, error) {
	if err := validateWindow(f); err != nil {
		return nil, err
	}
	return s.logs.Distribution(ctx, companyID, f)
}

func validateWindow(f repositories.EmailLogFilter) error {
	if f.Status != nil && !f.Status.Valid() {
		return apperr.Invalid("status", "%q is not a valid email status", *f.Status)
	}
	if f.Since != nil && f.Until != nil && !f.Until.After(*f.Since) {
		return apperr.Invalid("end_date", "must be after start_date")
	}
	return nil
}
