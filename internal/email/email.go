// Package email renders and delivers transactional mail.
package email

import (
	"context"
	"errors"
)

// Template keys. Each one has a default in the settings seed file and can be
// edited by admins.
const (
	TemplatePasswordReset       = "password_reset"
	TemplateUserInvite          = "user_invite"
	TemplateLeadReminder        = "lead_reminder"
	TemplateRequestConfirmation = "request_confirmation"
	TemplateRequestStatus       = "request_status"
	TemplatePaymentConfirmation = "payment_confirmation"
	TemplatePaymentFailed       = "payment_failed"
	TemplateContactReply        = "contact_reply"
	TemplateStaffAlert          = "staff_alert"
	TemplateTaskAssigned        = "task_assigned"
)

// ErrTemplateDisabled is returned when an admin switched a template off.
var ErrTemplateDisabled = errors.New("email template disabled")

type Attachment struct {
	Content  []byte
	FileName string
	MIMEType string
}

// Message is a fully rendered email.
type Message struct {
	To          []string
	ReplyTo     string
	Subject     string
	HTML        string
	Text        string
	Attachments []Attachment
}

// Transport delivers rendered messages.
type Transport interface {
	Send(ctx context.Context, msg Message) error
}

// Template is an editable subject and body pair.
type Template struct {
	Key      string
	Subject  string
	HTMLBody string
	Active   bool
}

// TemplateSource resolves templates by key.
type TemplateSource interface {
	EmailTemplate(ctx context.Context, key string) (Template, error)
}
