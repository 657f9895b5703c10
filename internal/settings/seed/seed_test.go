package seed

import (
	"testing"

	"raccordement_backend/internal/email"
)

func TestDefaultsCoverEveryTemplateKey(t *testing.T) {
	d, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}

	keys := []string{
		email.TemplatePasswordReset, email.TemplateUserInvite, email.TemplateLeadReminder,
		email.TemplateRequestConfirmation, email.TemplateRequestStatus, email.TemplatePaymentConfirmation,
		email.TemplatePaymentFailed, email.TemplateContactReply, email.TemplateStaffAlert, email.TemplateTaskAssigned,
	}
	for _, key := range keys {
		tpl, ok := d.Template(key)
		if !ok {
			t.Errorf("no default for %s", key)
			continue
		}
		if _, err := email.Render(email.Template{Key: key, Subject: tpl.Subject, HTMLBody: tpl.HTMLBody}, "", nil); err != nil {
			t.Errorf("default %s does not render: %v", key, err)
		}
	}
}

func TestDefaultAnimations(t *testing.T) {
	d, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(d.Animations) == 0 {
		t.Fatal("expected default animations")
	}
	for _, a := range d.Animations {
		if a.Key == "" || a.Type == "" || a.Config == nil {
			t.Errorf("incomplete animation %+v", a)
		}
	}
}
