package email

import (
	"context"
	"errors"
	"fmt"

	"raccordement_backend/platform/logger"
	"raccordement_backend/platform/metrics"
	"raccordement_backend/platform/money"
)

// Sender is the set of transactional emails the application sends.
type Sender interface {
	SendPasswordReset(ctx context.Context, toEmail, resetURL string) error
	SendUserInvite(ctx context.Context, toEmail, firstName, role, setupURL string) error
	SendLeadReminder(ctx context.Context, toEmail, firstName, resumeURL string) error
	SendRequestConfirmation(ctx context.Context, toEmail string, data RequestData) error
	SendRequestStatus(ctx context.Context, toEmail string, data RequestData) error
	SendPaymentConfirmation(ctx context.Context, toEmail string, data PaymentData, attachments ...Attachment) error
	SendPaymentFailed(ctx context.Context, toEmail string, data PaymentData) error
	SendContactReply(ctx context.Context, toEmail, name, subject, message string) error
	SendStaffAlert(ctx context.Context, toEmails []string, title, message, link string) error
	SendTaskAssigned(ctx context.Context, toEmail, title, dueDate, link string) error
	// SendTemplate renders any template key with caller supplied variables.
	SendTemplate(ctx context.Context, toEmails []string, key string, vars map[string]any, attachments ...Attachment) error
}

// RequestData feeds the request templates.
type RequestData struct {
	FirstName   string
	LastName    string
	Reference   string
	Status      string
	StatusLabel string
	AmountCents int64
	ScheduledAt string
	TrackingURL string
	PaymentURL  string
}

// PaymentData feeds the payment templates.
type PaymentData struct {
	FirstName   string
	Reference   string
	AmountCents int64
	PaidAt      string
	Reason      string
	PaymentURL  string
}

// CompanyNamer supplies the brand name shown in the layout.
type CompanyNamer interface {
	CompanyName(ctx context.Context) string
}

// Mailer renders templates from a TemplateSource and hands the result to a
// Transport.
type Mailer struct {
	templates TemplateSource
	company   CompanyNamer
	transport Transport
	log       *logger.Logger
}

func NewMailer(templates TemplateSource, company CompanyNamer, transport Transport, log *logger.Logger) *Mailer {
	return &Mailer{templates: templates, company: company, transport: transport, log: log}
}

func (m *Mailer) SendPasswordReset(ctx context.Context, toEmail, resetURL string) error {
	return m.SendTemplate(ctx, []string{toEmail}, TemplatePasswordReset, map[string]any{
		"resetUrl": resetURL,
	})
}

func (m *Mailer) SendUserInvite(ctx context.Context, toEmail, firstName, role, setupURL string) error {
	return m.SendTemplate(ctx, []string{toEmail}, TemplateUserInvite, map[string]any{
		"firstName": firstName,
		"role":      role,
		"setupUrl":  setupURL,
	})
}

func (m *Mailer) SendLeadReminder(ctx context.Context, toEmail, firstName, resumeURL string) error {
	return m.SendTemplate(ctx, []string{toEmail}, TemplateLeadReminder, map[string]any{
		"firstName": firstName,
		"resumeUrl": resumeURL,
	})
}

func (m *Mailer) SendRequestConfirmation(ctx context.Context, toEmail string, data RequestData) error {
	return m.SendTemplate(ctx, []string{toEmail}, TemplateRequestConfirmation, data.vars())
}

func (m *Mailer) SendRequestStatus(ctx context.Context, toEmail string, data RequestData) error {
	return m.SendTemplate(ctx, []string{toEmail}, TemplateRequestStatus, data.vars())
}

func (m *Mailer) SendPaymentConfirmation(ctx context.Context, toEmail string, data PaymentData, attachments ...Attachment) error {
	return m.SendTemplate(ctx, []string{toEmail}, TemplatePaymentConfirmation, data.vars(), attachments...)
}

func (m *Mailer) SendPaymentFailed(ctx context.Context, toEmail string, data PaymentData) error {
	return m.SendTemplate(ctx, []string{toEmail}, TemplatePaymentFailed, data.vars())
}

func (m *Mailer) SendContactReply(ctx context.Context, toEmail, name, subject, message string) error {
	return m.SendTemplate(ctx, []string{toEmail}, TemplateContactReply, map[string]any{
		"name":    name,
		"subject": subject,
		"message": message,
	})
}

func (m *Mailer) SendStaffAlert(ctx context.Context, toEmails []string, title, message, link string) error {
	if len(toEmails) == 0 {
		return nil
	}
	return m.SendTemplate(ctx, toEmails, TemplateStaffAlert, map[string]any{
		"title":   title,
		"message": message,
		"link":    link,
	})
}

func (m *Mailer) SendTaskAssigned(ctx context.Context, toEmail, title, dueDate, link string) error {
	return m.SendTemplate(ctx, []string{toEmail}, TemplateTaskAssigned, map[string]any{
		"title":   title,
		"dueDate": dueDate,
		"link":    link,
	})
}

func (m *Mailer) SendTemplate(ctx context.Context, toEmails []string, key string, vars map[string]any, attachments ...Attachment) error {
	tpl, err := m.templates.EmailTemplate(ctx, key)
	if err != nil {
		metrics.EmailSent(key, err)
		return fmt.Errorf("load template %s: %w", key, err)
	}
	if !tpl.Active {
		m.log.WithContext(ctx).Info("email skipped, template disabled", "template", key)
		return ErrTemplateDisabled
	}

	companyName := ""
	if m.company != nil {
		companyName = m.company.CompanyName(ctx)
	}
	if vars == nil {
		vars = map[string]any{}
	}
	if _, ok := vars["companyName"]; !ok {
		vars["companyName"] = companyName
	}

	rendered, err := Render(tpl, companyName, vars)
	if err != nil {
		metrics.EmailSent(key, err)
		return err
	}

	err = m.transport.Send(ctx, Message{
		To:          toEmails,
		Subject:     rendered.Subject,
		HTML:        rendered.HTML,
		Text:        rendered.Text,
		Attachments: attachments,
	})
	metrics.EmailSent(key, err)
	if err != nil {
		return fmt.Errorf("send %s: %w", key, err)
	}
	return nil
}

// IsDisabled reports whether err only means the template is switched off.
func IsDisabled(err error) bool {
	return errors.Is(err, ErrTemplateDisabled)
}

func (d RequestData) vars() map[string]any {
	return map[string]any{
		"firstName":   d.FirstName,
		"lastName":    d.LastName,
		"reference":   d.Reference,
		"status":      d.Status,
		"statusLabel": d.StatusLabel,
		"amount":      money.Euros(d.AmountCents),
		"scheduledAt": d.ScheduledAt,
		"trackingUrl": d.TrackingURL,
		"paymentUrl":  d.PaymentURL,
	}
}

func (d PaymentData) vars() map[string]any {
	return map[string]any{
		"firstName":  d.FirstName,
		"reference":  d.Reference,
		"amount":     money.Euros(d.AmountCents),
		"paidAt":     d.PaidAt,
		"reason":     d.Reason,
		"paymentUrl": d.PaymentURL,
	}
}

var _ Sender = (*Mailer)(nil)
