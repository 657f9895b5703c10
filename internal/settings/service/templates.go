package service

import (
	"context"
	"fmt"

	"raccordement_backend/internal/activity/audit"
	"raccordement_backend/internal/email"
	"raccordement_backend/internal/settings/repository"
	"raccordement_backend/internal/settings/transport"
	"raccordement_backend/platform/apperr"
	"raccordement_backend/platform/money"

	"github.com/google/uuid"
)

// sampleValues fill previews for the variables used by the default templates.
var sampleValues = map[string]any{
	"firstName":   "Camille",
	"lastName":    "Martin",
	"name":        "Camille Martin",
	"reference":   "RAC-2026-7K3Q9P",
	"amount":      money.Euros(DefaultServicePriceCents),
	"status":      "scheduled",
	"statusLabel": "Intervention planifiée",
	"scheduledAt": "12/03/2026 à 09:00",
	"paidAt":      "05/03/2026",
	"reason":      "carte refusée",
	"role":        "agent",
	"title":       "Nouvelle demande payée",
	"message":     "Merci pour votre message, un conseiller revient vers vous rapidement.",
	"subject":     "Question sur mon raccordement",
	"dueDate":     "15/03/2026",
	"resetUrl":    "https://app.example.fr/reset-password?token=exemple",
	"setupUrl":    "https://app.example.fr/accept-invite?token=exemple",
	"resumeUrl":   "https://www.example.fr/demande?session=exemple",
	"trackingUrl": "https://www.example.fr/suivi/RAC-2026-7K3Q9P",
	"paymentUrl":  "https://www.example.fr/paiement/RAC-2026-7K3Q9P",
	"link":        "https://app.example.fr/dashboard",
}

func toTemplateResponse(t repository.EmailTemplate) transport.TemplateResponse {
	vars := t.Variables
	if vars == nil {
		vars = []string{}
	}
	return transport.TemplateResponse{
		ID:        t.ID,
		Key:       t.Key,
		Name:      t.Name,
		Subject:   t.Subject,
		HTMLBody:  t.HTMLBody,
		Variables: vars,
		IsActive:  t.IsActive,
		CreatedAt: t.CreatedAt,
		UpdatedAt: t.UpdatedAt,
	}
}

func checkTemplate(key, subject, body string) error {
	if _, err := email.Render(email.Template{Key: key, Subject: subject, HTMLBody: body}, "", nil); err != nil {
		return apperr.Validation(err.Error())
	}
	return nil
}

func (s *Service) ListTemplates(ctx context.Context) ([]transport.TemplateResponse, error) {
	templates, err := s.store.ListTemplates(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]transport.TemplateResponse, 0, len(templates))
	for _, t := range templates {
		out = append(out, toTemplateResponse(t))
	}
	return out, nil
}

func (s *Service) GetTemplate(ctx context.Context, id uuid.UUID) (transport.TemplateResponse, error) {
	t, err := s.store.GetTemplate(ctx, id)
	if err != nil {
		return transport.TemplateResponse{}, err
	}
	return toTemplateResponse(t), nil
}

func (s *Service) CreateTemplate(ctx context.Context, req transport.CreateTemplateRequest) (transport.TemplateResponse, error) {
	if err := checkTemplate(req.Key, req.Subject, req.HTMLBody); err != nil {
		return transport.TemplateResponse{}, err
	}
	vars := req.Variables
	if len(vars) == 0 {
		vars = email.Variables(req.Subject, req.HTMLBody)
	}

	t, err := s.store.CreateTemplate(ctx, repository.TemplateParams{
		Key:       &req.Key,
		Name:      &req.Name,
		Subject:   &req.Subject,
		HTMLBody:  &req.HTMLBody,
		Variables: vars,
		IsActive:  req.IsActive,
	})
	if err != nil {
		return transport.TemplateResponse{}, err
	}
	s.record(ctx, "email_template.created", audit.EntityTemplate, t.ID.String(), map[string]any{"key": t.Key})
	return toTemplateResponse(t), nil
}

func (s *Service) UpdateTemplate(ctx context.Context, id uuid.UUID, req transport.UpdateTemplateRequest) (transport.TemplateResponse, error) {
	current, err := s.store.GetTemplate(ctx, id)
	if err != nil {
		return transport.TemplateResponse{}, err
	}
	subject, body := current.Subject, current.HTMLBody
	if req.Subject != nil {
		subject = *req.Subject
	}
	if req.HTMLBody != nil {
		body = *req.HTMLBody
	}
	if err := checkTemplate(current.Key, subject, body); err != nil {
		return transport.TemplateResponse{}, err
	}

	vars := req.Variables
	if len(vars) == 0 && (req.Subject != nil || req.HTMLBody != nil) {
		vars = email.Variables(subject, body)
	}

	t, err := s.store.UpdateTemplate(ctx, id, repository.TemplateParams{
		Name:      req.Name,
		Subject:   req.Subject,
		HTMLBody:  req.HTMLBody,
		Variables: vars,
		IsActive:  req.IsActive,
	})
	if err != nil {
		return transport.TemplateResponse{}, err
	}
	s.record(ctx, "email_template.updated", audit.EntityTemplate, id.String(), map[string]any{"key": t.Key})
	return toTemplateResponse(t), nil
}

// DeleteTemplate removes a template. Built-in keys fall back to their
// default afterwards, so deleting one resets it.
func (s *Service) DeleteTemplate(ctx context.Context, id uuid.UUID) error {
	if err := s.store.DeleteTemplate(ctx, id); err != nil {
		return err
	}
	s.record(ctx, "email_template.deleted", audit.EntityTemplate, id.String(), nil)
	return nil
}

func (s *Service) render(ctx context.Context, t repository.EmailTemplate, overrides map[string]string) (email.Rendered, error) {
	vars := make(map[string]any, len(sampleValues)+len(overrides))
	for k, v := range sampleValues {
		vars[k] = v
	}
	vars["companyName"] = s.CompanyName(ctx)
	for k, v := range overrides {
		vars[k] = v
	}
	return email.Render(email.Template{Key: t.Key, Subject: t.Subject, HTMLBody: t.HTMLBody}, s.CompanyName(ctx), vars)
}

// PreviewTemplate renders a template with sample data.
func (s *Service) PreviewTemplate(ctx context.Context, id uuid.UUID, overrides map[string]string) (transport.PreviewResponse, error) {
	t, err := s.store.GetTemplate(ctx, id)
	if err != nil {
		return transport.PreviewResponse{}, err
	}
	out, err := s.render(ctx, t, overrides)
	if err != nil {
		return transport.PreviewResponse{}, apperr.Validation(err.Error())
	}
	return transport.PreviewResponse{Subject: out.Subject, HTML: out.HTML, Text: out.Text}, nil
}

// SendTestTemplate sends the sample rendering to the requesting user.
func (s *Service) SendTestTemplate(ctx context.Context, userID, id uuid.UUID) (string, error) {
	t, err := s.store.GetTemplate(ctx, id)
	if err != nil {
		return "", err
	}
	to, err := s.users.EmailOf(ctx, userID)
	if err != nil {
		return "", err
	}
	out, err := s.render(ctx, t, nil)
	if err != nil {
		return "", apperr.Validation(err.Error())
	}

	err = s.transport.Send(ctx, email.Message{
		To:      []string{to},
		Subject: "[TEST] " + out.Subject,
		HTML:    out.HTML,
		Text:    out.Text,
	})
	if err != nil {
		return "", apperr.Unavailable("test email could not be sent", err)
	}
	return to, nil
}

// EmailTemplate resolves key for the mailer: the stored row when present,
// the seeded default otherwise.
func (s *Service) EmailTemplate(ctx context.Context, key string) (email.Template, error) {
	t, err := s.store.GetTemplateByKey(ctx, key)
	if err == nil {
		return email.Template{Key: t.Key, Subject: t.Subject, HTMLBody: t.HTMLBody, Active: t.IsActive}, nil
	}
	if !apperr.Is(err, apperr.KindNotFound) {
		s.log.Warn("email template read failed, using default", "key", key, "error", err)
	}

	def, ok := s.defaults.Template(key)
	if !ok {
		return email.Template{}, fmt.Errorf("unknown email template %q", key)
	}
	return email.Template{Key: def.Key, Subject: def.Subject, HTMLBody: def.HTMLBody, Active: true}, nil
}

var (
	_ email.TemplateSource = (*Service)(nil)
	_ email.CompanyNamer   = (*Service)(nil)
)
