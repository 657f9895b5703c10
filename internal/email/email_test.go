package email

import (
	"context"
	"errors"
	"strings"
	"testing"

	"raccordement_backend/platform/logger"
)

type staticTemplates map[string]Template

func (s staticTemplates) EmailTemplate(_ context.Context, key string) (Template, error) {
	tpl, ok := s[key]
	if !ok {
		return Template{}, errors.New("missing template")
	}
	return tpl, nil
}

type fixedCompany string

func (f fixedCompany) CompanyName(context.Context) string { return string(f) }

type captureTransport struct {
	sent []Message
	err  error
}

func (c *captureTransport) Send(_ context.Context, msg Message) error {
	c.sent = append(c.sent, msg)
	return c.err
}

func TestRenderEscapesVariablesAndBuildsText(t *testing.T) {
	out, err := Render(Template{
		Key:      "x",
		Subject:  "Demande {{.reference}}",
		HTMLBody: `<p>Bonjour {{.firstName}},</p><p><a href="{{.trackingUrl}}">Suivre</a></p>`,
	}, "Raccord Pro", map[string]any{
		"reference":   "RAC-2026-ABC123",
		"firstName":   "<b>Zoé</b>",
		"trackingUrl": "https://example.fr/suivi",
	})
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	if out.Subject != "Demande RAC-2026-ABC123" {
		t.Fatalf("unexpected subject %q", out.Subject)
	}
	if strings.Contains(out.HTML, "<b>Zoé</b>") {
		t.Fatal("variables must be HTML escaped")
	}
	if !strings.Contains(out.HTML, "Raccord Pro") {
		t.Fatal("layout should show the company name")
	}
	if !strings.Contains(out.Text, "Bonjour <b>Zoé</b>,") {
		t.Fatalf("unexpected text part %q", out.Text)
	}
	if !strings.Contains(out.Text, "Suivre [https://example.fr/suivi]") {
		t.Fatalf("links should keep their target, got %q", out.Text)
	}
}

func TestRenderMissingVariablesAreEmpty(t *testing.T) {
	out, err := Render(Template{Key: "x", Subject: "Bonjour {{.firstName}}", HTMLBody: "<p>Ref {{.reference}}</p>"}, "", nil)
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	if strings.Contains(out.HTML, "no value") || strings.Contains(out.Subject, "no value") {
		t.Fatalf("missing variables leaked: %q / %q", out.Subject, out.HTML)
	}
}

func TestRenderRejectsBrokenTemplate(t *testing.T) {
	if _, err := Render(Template{Key: "x", Subject: "{{.oops", HTMLBody: ""}, "", nil); err == nil {
		t.Fatal("expected parse error")
	}
}

func TestMailerSendsRenderedTemplate(t *testing.T) {
	transport := &captureTransport{}
	m := NewMailer(staticTemplates{
		TemplatePaymentConfirmation: {Key: TemplatePaymentConfirmation, Subject: "Paiement reçu {{.reference}}", HTMLBody: "<p>{{.amount}}</p>", Active: true},
	}, fixedCompany("Raccord Pro"), transport, logger.Discard())

	err := m.SendPaymentConfirmation(context.Background(), "client@example.fr", PaymentData{Reference: "RAC-2026-ABC123", AmountCents: 12900},
		Attachment{FileName: "recu.pdf", Content: []byte("%PDF"), MIMEType: "application/pdf"})
	if err != nil {
		t.Fatalf("send: %v", err)
	}
	if len(transport.sent) != 1 {
		t.Fatalf("expected one message, got %d", len(transport.sent))
	}
	msg := transport.sent[0]
	if msg.Subject != "Paiement reçu RAC-2026-ABC123" || msg.To[0] != "client@example.fr" {
		t.Fatalf("unexpected message %+v", msg)
	}
	if !strings.Contains(msg.HTML, "129,00 €") || len(msg.Attachments) != 1 {
		t.Fatal("amount or attachment missing")
	}
}

func TestMailerSkipsDisabledTemplate(t *testing.T) {
	transport := &captureTransport{}
	m := NewMailer(staticTemplates{
		TemplateLeadReminder: {Key: TemplateLeadReminder, Subject: "x", HTMLBody: "y", Active: false},
	}, nil, transport, logger.Discard())

	err := m.SendLeadReminder(context.Background(), "client@example.fr", "Zoé", "https://example.fr/reprendre")
	if !IsDisabled(err) {
		t.Fatalf("expected disabled error, got %v", err)
	}
	if len(transport.sent) != 0 {
		t.Fatal("nothing should be sent")
	}
}

func TestStaffAlertWithoutRecipientsIsNoop(t *testing.T) {
	transport := &captureTransport{}
	m := NewMailer(staticTemplates{}, nil, transport, logger.Discard())
	if err := m.SendStaffAlert(context.Background(), nil, "t", "m", "l"); err != nil {
		t.Fatalf("unexpected error %v", err)
	}
}

func TestVariablesInOrderOfUse(t *testing.T) {
	got := Variables("Demande {{.reference}}", "<p>{{ .firstName }} {{.reference}} {{- .amount}}</p>")
	want := []string{"reference", "firstName", "amount"}
	if strings.Join(got, ",") != strings.Join(want, ",") {
		t.Fatalf("got %v, want %v", got, want)
	}
}
