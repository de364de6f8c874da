// email.go implements POST /v1/email/send and the message status lookup.
package public

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/mailnow/mailnow-admin/internal/api/params"
	"github.com/mailnow/mailnow-admin/internal/api/response"
	"github.com/mailnow/mailnow-admin/internal/apperr"
	"github.com/mailnow/mailnow-admin/internal/db/models"
	"github.com/mailnow/mailnow-admin/internal/enums"
	"github.com/mailnow/mailnow-admin/internal/services"
	"github.com/mailnow/mailnow-admin/internal/validation"
)

// Credits is implemented by *services.CreditService.
type Credits interface {
	Balance(ctx context.Context, companyID int64) (*services.CreditBalance, error)
	Spend(ctx context.Context, companyID int64) error
}

// SMTPResolver is implemented by *services.SMTPService.
type SMTPResolver interface {
	DefaultCredentials(ctx context.Context, companyID int64) (*services.SMTPCredentials, error)
}

// TemplateLookup is implemented by *services.TemplateService.
type TemplateLookup interface {
	Get(ctx context.Context, companyID, id int64) (*models.Template, error)
}

// MessageLog is implemented by *services.EmailLogService.
type MessageLog interface {
	Record(ctx context.Context, companyID int64, msg services.EmailMessage) (*models.EmailLog, error)
	GetByMessageID(ctx context.Context, companyID int64, messageID string) (*models.EmailLog, error)
}

// SendEmailRequest is the body of POST /v1/email/send. When TemplateID is set the template's
// subject and content replace Subject and the body fields.
type SendEmailRequest struct {
	From       string `json:"from"`
	To         string `json:"to"`
	Subject    string `json:"subject"`
	HTML       string `json:"html"`
	Text       string `json:"text"`
	TemplateID *int64 `json:"template_id"`
}

// SendEmailResponse acknowledges a queued message.
type SendEmailResponse struct {
	MessageID string `json:"message_id"`
	Status    string `json:"status"`
}

// EmailStatusResponse reports where a message is.
type EmailStatusResponse struct {
	MessageID string            `json:"message_id"`
	Status    enums.EmailStatus `json:"status"`
	To        string            `json:"to"`
	Subject   string            `json:"subject"`
	CreatedAt time.Time         `json:"created_at"`
}

// EmailHandlers serves the send endpoint.
type EmailHandlers struct {
	credits   Credits
	smtp      SMTPResolver
	templates TemplateLookup
	logs      MessageLog
}

// NewEmailHandlers creates EmailHandlers.
func NewEmailHandlers(credits Credits, smtp SMTPResolver, templates TemplateLookup, logs MessageLog) *EmailHandlers {
	return &EmailHandlers{credits: credits, smtp: smtp, templates: templates, logs: logs}
}

func (r SendEmailRequest) validate() error {
	err := validation.First(
		validation.ValidateEmail("from", strings.TrimSpace(r.From)),
		validation.ValidateEmail("to", strings.TrimSpace(r.To)),
	)
	if err != nil {
		return err
	}
	if r.TemplateID == nil {
		return validation.First(
			validation.Required("subject", r.Subject),
			validation.MaxLength("subject", r.Subject, services.MaxSubjectLength),
		)
	}
	return nil
}

// @Summary      Send an email
// @Description  Queues one message through the company's default SMTP profile and spends one
// @Description  API credit. Requires an API key with the send_email capability.
// @Tags         Public
// @Accept       json
// @Produce      json
// @Param        body  body  SendEmailRequest  true  "Message"
// @Success      200  {object}  response.Envelope  "data: {message_id, status}"
// @Failure      400  {object}  response.Envelope  "Invalid message or no default SMTP profile"
// @Failure      402  {object}  response.Envelope  "No API credits left"
// @Failure      404  {object}  response.Envelope  "Template not found"
// @Router       /v1/email/send [post]
// SendHandler queues a message. The steps run in a fixed order: validate, check the
// balance, resolve the default SMTP profile, resolve the template, spend one credit, then
// record the log entry as queued. Nothing is charged unless the message can be queued.
// POST /v1/email/send
func (h *EmailHandlers) SendHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req SendEmailRequest
		if !params.BindJSON(c, &req) {
			return
		}
		if err := req.validate(); err != nil {
			response.Error(c, err)
			return
		}
		ctx := c.Request.Context()
		company := companyID(c)

		balance, err := h.credits.Balance(ctx, company)
		if err != nil {
			response.Error(c, err)
			return
		}
		if balance.Remaining != enums.UnlimitedCredits && balance.Remaining <= 0 {
			response.Error(c, apperr.ErrInsufficientCredits)
			return
		}

		creds, err := h.smtp.DefaultCredentials(ctx, company)
		if err != nil {
			if errors.Is(err, apperr.ErrValidation) {
				response.BadRequest(c, "No default SMTP profile configured")
				return
			}
			response.Error(c, err)
			return
		}

		subject, body := req.Subject, req.HTML
		if body == "" {
			body = req.Text
		}
		if req.TemplateID != nil {
			tmpl, err := h.templates.Get(ctx, company, *req.TemplateID)
			if err != nil {
				if errors.Is(err, apperr.ErrNotFound) {
					response.Abort(c, http.StatusNotFound, "Template not found")
					return
				}
				response.Error(c, err)
				return
			}
			subject, body = tmpl.Subject, tmpl.Content
			// Templates saved before the subject limit existed can still be too long.
			if err := validation.MaxLength("subject", subject, services.MaxSubjectLength); err != nil {
				response.Error(c, err)
				return
			}
		}

		if err := h.credits.Spend(ctx, company); err != nil {
			response.Error(c, err)
			return
		}

		entry, err := h.logs.Record(ctx, company, services.EmailMessage{
			From:    req.From,
			To:      req.To,
			Subject: subject,
			Body:    body,
			Status:  enums.EmailStatusQueued,
		})
		if err != nil {
			response.Error(c, err)
			return
		}

		slog.Info("email queued",
			"message_id", entry.MessageID,
			"company_id", company,
			"log_id", entry.ID,
			"smtp_profile_id", creds.ProfileID)

		response.OK(c, "Email queued successfully", SendEmailResponse{
			MessageID: entry.MessageID,
			Status:    string(entry.Status),
		})
	}
}

// @Summary      Get message status
// @Description  Returns the log status of a message sent through POST /v1/email/send. Requires
// @Description  an API key with the read_logs capability.
// @Tags         Public
// @Produce      json
// @Param        message_id  path  string  true  "Message ID returned by the send endpoint"
// @Success      200  {object}  response.Envelope  "data: EmailStatusResponse"
// @Failure      404  {object}  response.Envelope  "Unknown message"
// @Router       /v1/email/status/{message_id} [get]
// StatusHandler looks a message up by the id the send endpoint returned. Messages of other
// companies are reported as not found.
// GET /v1/email/status/:message_id
func (h *EmailHandlers) StatusHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		entry, err := h.logs.GetByMessageID(c.Request.Context(), companyID(c), c.Param("message_id"))
		if err != nil {
			response.Error(c, err)
			return
		}
		response.OK(c, "Email status retrieved successfully", EmailStatusResponse{
			MessageID: entry.MessageID,
			Status:    entry.Status,
			To:        entry.ToEmail,
			Subject:   entry.Subject,
			CreatedAt: entry.CreatedAt,
		})
	}
}
