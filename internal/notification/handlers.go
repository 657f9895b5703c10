package notification

import (
	"context"
	"fmt"

	"raccordement_backend/internal/auth/roles"
	"raccordement_backend/internal/email"
	"raccordement_backend/internal/events"
	"raccordement_backend/internal/notification/inapp"
	requestsservice "raccordement_backend/internal/requests/service"
	"raccordement_backend/platform/money"

	"github.com/google/uuid"
)

const dateLayout = "02/01/2006"

func (m *Module) handlePasswordReset(ctx context.Context, e events.PasswordResetRequested) error {
	return m.enqueue(ctx, email.TemplatePasswordReset, emailPayload{
		To:  []string{e.Email},
		URL: m.appURL("/reset-password?token=" + e.ResetToken),
	})
}

func (m *Module) handleUserInvited(ctx context.Context, e events.UserInvited) error {
	return m.enqueue(ctx, email.TemplateUserInvite, emailPayload{
		To:        []string{e.Email},
		FirstName: e.FirstName,
		Role:      e.Role,
		URL:       m.appURL("/accept-invite?token=" + e.SetupToken),
	})
}

func (m *Module) handleLeadAssigned(ctx context.Context, e events.LeadAssigned) error {
	m.broadcast("lead.assigned", e)
	if e.AssigneeID == nil || *e.AssigneeID == e.AssignedBy {
		return nil
	}
	return m.notifyUser(ctx, *e.AssigneeID, inapp.SendParams{
		Kind:         "lead_assigned",
		Title:        "Lead attribué",
		Content:      "Un lead vous a été attribué.",
		ResourceType: "lead",
		ResourceID:   e.LeadID.String(),
	})
}

func (m *Module) handleLeadAbandoned(ctx context.Context, e events.LeadAbandoned) error {
	if e.Email == "" {
		return nil
	}
	return m.enqueue(ctx, email.TemplateLeadReminder, emailPayload{
		To:        []string{e.Email},
		FirstName: e.FirstName,
		URL:       m.publicURL("/demande?session=" + e.SessionToken),
	})
}

func (m *Module) handleRequestCreated(ctx context.Context, e events.RequestCreated) error {
	m.broadcast("request.created", e)

	if e.Email != "" {
		data := email.RequestData{
			FirstName:   e.FirstName,
			LastName:    e.LastName,
			Reference:   e.Reference,
			AmountCents: e.AmountCents,
			TrackingURL: m.publicURL("/suivi/" + e.Reference),
			PaymentURL:  m.publicURL("/paiement/" + e.Reference),
		}
		if err := m.enqueue(ctx, email.TemplateRequestConfirmation, emailPayload{To: []string{e.Email}, Request: &data}); err != nil {
			return err
		}
	}

	title := "Nouvelle demande " + e.Reference
	message := fmt.Sprintf("%s %s a déposé une demande (%s).", e.FirstName, e.LastName, e.Source)
	m.notifyManagers(ctx, inapp.SendParams{
		Kind:         "request_created",
		Title:        title,
		Content:      message,
		ResourceType: "service_request",
		ResourceID:   e.RequestID.String(),
	})
	return m.enqueueStaffAlert(ctx, title, message, m.appURL("/requests/"+e.RequestID.String()))
}

func (m *Module) handleRequestStatusChanged(ctx context.Context, e events.RequestStatusChanged) error {
	m.broadcast("request.status_changed", e)
	if e.Email == "" {
		return nil
	}
	data := email.RequestData{
		FirstName:   e.FirstName,
		Reference:   e.Reference,
		Status:      e.NewStatus,
		StatusLabel: requestsservice.StatusLabel(e.NewStatus),
		TrackingURL: m.publicURL("/suivi/" + e.Reference),
	}
	if e.ScheduledAt != nil {
		data.ScheduledAt = e.ScheduledAt.In(paris).Format("02/01/2006 à 15:04")
	}
	return m.enqueue(ctx, email.TemplateRequestStatus, emailPayload{To: []string{e.Email}, Request: &data})
}

func (m *Module) handleRequestAssigned(ctx context.Context, e events.RequestAssigned) error {
	m.broadcast("request.assigned", e)
	if e.AssigneeID == nil || *e.AssigneeID == e.AssignedBy {
		return nil
	}
	return m.notifyUser(ctx, *e.AssigneeID, inapp.SendParams{
		Kind:         "request_assigned",
		Title:        "Dossier attribué",
		Content:      "Le dossier " + e.Reference + " vous a été attribué.",
		ResourceType: "service_request",
		ResourceID:   e.RequestID.String(),
	})
}

func (m *Module) handlePaymentStatusChanged(ctx context.Context, e events.PaymentStatusChanged) error {
	if m.live != nil {
		m.live.BroadcastToRole(roles.Manager, "payment.status_changed", e)
	}

	switch e.NewStatus {
	case requestsservice.PaymentPaid:
		paymentID := e.PaymentID
		if e.Email != "" {
			err := m.enqueue(ctx, email.TemplatePaymentConfirmation, emailPayload{
				To: []string{e.Email},
				Payment: &email.PaymentData{
					FirstName:   e.FirstName,
					Reference:   e.Reference,
					AmountCents: e.AmountCents,
					PaidAt:      e.OccurredAt().In(paris).Format(dateLayout),
				},
				PaymentID: &paymentID,
			})
			if err != nil {
				return err
			}
		}
		title := "Paiement reçu " + e.Reference
		message := "Le paiement de " + money.Euros(e.AmountCents) + " a été encaissé."
		m.notifyManagers(ctx, inapp.SendParams{
			Kind:         "payment_paid",
			Title:        title,
			Content:      message,
			ResourceType: "payment",
			ResourceID:   e.PaymentID.String(),
		})
		return m.enqueueStaffAlert(ctx, title, message, m.appURL("/payments/"+e.PaymentID.String()))

	case requestsservice.PaymentFailed:
		if e.Email == "" {
			return nil
		}
		return m.enqueue(ctx, email.TemplatePaymentFailed, emailPayload{
			To: []string{e.Email},
			Payment: &email.PaymentData{
				FirstName:   e.FirstName,
				Reference:   e.Reference,
				AmountCents: e.AmountCents,
				Reason:      e.Reason,
				PaymentURL:  m.publicURL("/paiement/" + e.Reference),
			},
		})
	}
	return nil
}

func (m *Module) handleContactReceived(ctx context.Context, e events.ContactReceived) error {
	m.broadcast("contact.received", e)
	title := "Nouveau message de " + e.Name
	m.notifyManagers(ctx, inapp.SendParams{
		Kind:         "contact_received",
		Title:        title,
		Content:      e.Subject,
		ResourceType: "contact",
		ResourceID:   e.ContactID.String(),
	})
	return m.enqueueStaffAlert(ctx, title, e.Subject+" ("+e.Email+")", m.appURL("/contacts/"+e.ContactID.String()))
}

func (m *Module) handleTaskAssigned(ctx context.Context, e events.TaskAssigned) error {
	link := m.appURL("/tasks/" + e.TaskID.String())
	if err := m.notifyUser(ctx, e.AssigneeID, inapp.SendParams{
		Kind:         "task_assigned",
		Title:        "Nouvelle tâche",
		Content:      e.Title,
		ResourceType: "task",
		ResourceID:   e.TaskID.String(),
	}); err != nil {
		return err
	}

	to, err := m.staff.EmailOf(ctx, e.AssigneeID)
	if err != nil {
		m.log.Warn("task assignee email lookup failed", "taskId", e.TaskID, "error", err)
		return nil
	}
	dueDate := ""
	if e.DueAt != nil {
		dueDate = e.DueAt.In(paris).Format(dateLayout)
	}
	return m.enqueue(ctx, email.TemplateTaskAssigned, emailPayload{
		To:      []string{to},
		Title:   e.Title,
		DueDate: dueDate,
		URL:     link,
	})
}

func (m *Module) handleTaskOverdue(ctx context.Context, e events.TaskOverdue) error {
	return m.notifyUser(ctx, e.AssigneeID, inapp.SendParams{
		Kind:         "task_overdue",
		Title:        "Tâche en retard",
		Content:      e.Title + " (échéance " + e.DueAt.In(paris).Format(dateLayout) + ")",
		ResourceType: "task",
		ResourceID:   e.TaskID.String(),
	})
}

func (m *Module) notifyUser(ctx context.Context, userID uuid.UUID, p inapp.SendParams) error {
	p.UserID = userID
	return m.inApp.Send(ctx, p)
}

// notifyManagers fans out to every active manager and admin. Failures are
// logged per recipient.
func (m *Module) notifyManagers(ctx context.Context, p inapp.SendParams) {
	staff, err := m.staff.StaffByRoles(ctx, roles.Admin, roles.Manager)
	if err != nil {
		m.log.Error("list managers failed", "error", err)
		return
	}
	for _, u := range staff {
		p.UserID = u.ID
		if err := m.inApp.Send(ctx, p); err != nil {
			m.log.Warn("in-app notification failed", "userId", u.ID, "error", err)
		}
	}
}

// alertRecipients merges the addresses stored in settings with the ones
// from the environment.
func (m *Module) alertRecipients(ctx context.Context) []string {
	var out []string
	seen := map[string]bool{}
	add := func(list []string) {
		for _, addr := range list {
			if addr != "" && !seen[addr] {
				seen[addr] = true
				out = append(out, addr)
			}
		}
	}
	if m.alerts != nil {
		add(m.alerts.NotificationEmails(ctx))
	}
	add(m.cfg.GetStaffAlertEmails())
	return out
}

func (m *Module) enqueueStaffAlert(ctx context.Context, title, message, link string) error {
	to := m.alertRecipients(ctx)
	if len(to) == 0 {
		return nil
	}
	return m.enqueue(ctx, email.TemplateStaffAlert, emailPayload{To: to, Title: title, Message: message, URL: link})
}
