package notification

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"raccordement_backend/internal/email"
	"raccordement_backend/internal/notification/outbox"

	"github.com/google/uuid"
)

const (
	outboxKindEmail        = "email"
	maxOutboxRetryAttempts = 5
	outboxRetryBaseDelay   = time.Minute
	outboxRetryMaxDelay    = time.Hour
)

var errUnsupportedTemplate = errors.New("unsupported outbox template")

var paris = loadParis()

func loadParis() *time.Location {
	loc, err := time.LoadLocation("Europe/Paris")
	if err != nil {
		return time.FixedZone("CET", 3600)
	}
	return loc
}

// emailPayload is stored as JSON in the outbox. Which fields are set
// depends on the template.
type emailPayload struct {
	To        []string           `json:"to"`
	FirstName string             `json:"firstName,omitempty"`
	Role      string             `json:"role,omitempty"`
	URL       string             `json:"url,omitempty"`
	Title     string             `json:"title,omitempty"`
	Message   string             `json:"message,omitempty"`
	DueDate   string             `json:"dueDate,omitempty"`
	Request   *email.RequestData `json:"request,omitempty"`
	Payment   *email.PaymentData `json:"payment,omitempty"`
	PaymentID *uuid.UUID         `json:"paymentId,omitempty"`
}

// enqueue stores an email for the scheduler to deliver.
func (m *Module) enqueue(ctx context.Context, template string, payload emailPayload) error {
	if len(payload.To) == 0 {
		return nil
	}
	id, err := m.outbox.Insert(ctx, outbox.InsertParams{
		Kind:     outboxKindEmail,
		Template: template,
		Payload:  payload,
	})
	if err != nil {
		m.log.Error("enqueue email failed", "template", template, "error", err)
		return err
	}
	m.log.Debug("email enqueued", "outboxId", id, "template", template)
	return nil
}

// Deliver sends one outbox record. Failed sends are retried with
// exponential backoff until maxOutboxRetryAttempts.
func (m *Module) Deliver(ctx context.Context, id uuid.UUID) error {
	rec, err := m.outbox.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if rec.Status == outbox.StatusSucceeded || rec.Status == outbox.StatusFailed {
		m.log.Debug("outbox record already settled", "outboxId", id, "status", rec.Status)
		return nil
	}
	claimed, err := m.outbox.MarkProcessing(ctx, id)
	if err != nil {
		return err
	}
	if !claimed {
		return nil
	}

	var payload emailPayload
	if rec.Kind != outboxKindEmail {
		_ = m.outbox.MarkFailed(ctx, id, "unsupported kind "+rec.Kind)
		return nil
	}
	if err := json.Unmarshal(rec.Payload, &payload); err != nil || len(payload.To) == 0 {
		_ = m.outbox.MarkFailed(ctx, id, "invalid payload")
		return nil
	}

	sendErr := m.send(ctx, rec.Template, payload)
	switch {
	case sendErr == nil, email.IsDisabled(sendErr):
		if err := m.outbox.MarkSucceeded(ctx, id); err != nil {
			m.log.Error("mark outbox succeeded failed", "outboxId", id, "error", err)
		}
		m.log.Info("outbox email delivered", "outboxId", id, "template", rec.Template)
		return nil
	case errors.Is(sendErr, errUnsupportedTemplate):
		_ = m.outbox.MarkFailed(ctx, id, sendErr.Error())
		return nil
	}

	m.handleDeliveryError(ctx, rec, sendErr)
	return sendErr
}

func (m *Module) send(ctx context.Context, template string, p emailPayload) error {
	to := p.To[0]
	switch template {
	case email.TemplatePasswordReset:
		return m.sender.SendPasswordReset(ctx, to, p.URL)
	case email.TemplateUserInvite:
		return m.sender.SendUserInvite(ctx, to, p.FirstName, p.Role, p.URL)
	case email.TemplateLeadReminder:
		return m.sender.SendLeadReminder(ctx, to, p.FirstName, p.URL)
	case email.TemplateRequestConfirmation:
		if p.Request == nil {
			return errUnsupportedTemplate
		}
		return m.sender.SendRequestConfirmation(ctx, to, *p.Request)
	case email.TemplateRequestStatus:
		if p.Request == nil {
			return errUnsupportedTemplate
		}
		return m.sender.SendRequestStatus(ctx, to, *p.Request)
	case email.TemplatePaymentConfirmation:
		if p.Payment == nil {
			return errUnsupportedTemplate
		}
		return m.sender.SendPaymentConfirmation(ctx, to, *p.Payment, m.receiptAttachment(ctx, p.PaymentID)...)
	case email.TemplatePaymentFailed:
		if p.Payment == nil {
			return errUnsupportedTemplate
		}
		return m.sender.SendPaymentFailed(ctx, to, *p.Payment)
	case email.TemplateStaffAlert:
		return m.sender.SendStaffAlert(ctx, p.To, p.Title, p.Message, p.URL)
	case email.TemplateTaskAssigned:
		return m.sender.SendTaskAssigned(ctx, to, p.Title, p.DueDate, p.URL)
	}
	return errUnsupportedTemplate
}

// receiptAttachment renders the receipt. The confirmation still goes out
// without it when rendering fails.
func (m *Module) receiptAttachment(ctx context.Context, paymentID *uuid.UUID) []email.Attachment {
	if paymentID == nil || m.receipts == nil {
		return nil
	}
	content, name, err := m.receipts.Receipt(ctx, *paymentID)
	if err != nil {
		m.log.Warn("receipt generation failed, sending without attachment", "paymentId", *paymentID, "error", err)
		return nil
	}
	return []email.Attachment{{Content: content, FileName: name, MIMEType: "application/pdf"}}
}

func (m *Module) handleDeliveryError(ctx context.Context, rec outbox.Record, deliveryErr error) {
	attempt := rec.Attempts + 1
	if attempt >= maxOutboxRetryAttempts {
		_ = m.outbox.MarkFailed(ctx, rec.ID, deliveryErr.Error())
		m.log.Warn("notification outbox exhausted retries",
			"outboxId", rec.ID,
			"template", rec.Template,
			"attempt", attempt,
			"error", deliveryErr,
		)
		return
	}

	retryAt := time.Now().UTC().Add(computeOutboxRetryDelay(attempt))
	if err := m.outbox.ScheduleRetry(ctx, rec.ID, retryAt, deliveryErr.Error()); err != nil {
		_ = m.outbox.MarkFailed(ctx, rec.ID, deliveryErr.Error())
		m.log.Error("notification outbox retry scheduling failed; marked failed", "outboxId", rec.ID, "error", err)
		return
	}
	m.log.Warn("notification outbox scheduled retry",
		"outboxId", rec.ID,
		"template", rec.Template,
		"attempt", attempt,
		"retryAt", retryAt,
		"error", deliveryErr,
	)
}

func computeOutboxRetryDelay(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	delay := outboxRetryBaseDelay << (attempt - 1)
	if delay > outboxRetryMaxDelay {
		return outboxRetryMaxDelay
	}
	return delay
}
