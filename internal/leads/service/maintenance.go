package service

import (
	"context"
	"time"

	"raccordement_backend/internal/events"
)

// MarkAbandoned flags funnels idle for longer than after and sends one
// reminder per lead that left an email. It returns how many leads were
// flagged.
func (s *Service) MarkAbandoned(ctx context.Context, after time.Duration) (int, error) {
	abandoned, err := s.store.MarkAbandoned(ctx, s.now().Add(-after))
	if err != nil {
		return 0, err
	}
	for _, a := range abandoned {
		if a.Email == nil || *a.Email == "" || a.ReminderSentAt != nil {
			continue
		}
		claimed, err := s.store.MarkReminderSent(ctx, a.ID)
		if err != nil {
			s.log.Error("mark reminder sent failed", "leadId", a.ID, "error", err)
			continue
		}
		if !claimed {
			continue
		}
		firstName := ""
		if a.FirstName != nil {
			firstName = *a.FirstName
		}
		s.eventBus.Publish(ctx, events.LeadAbandoned{
			BaseEvent:    events.NewBaseEvent(),
			LeadID:       a.ID,
			Email:        *a.Email,
			FirstName:    firstName,
			SessionToken: a.SessionToken,
		})
	}
	if len(abandoned) > 0 {
		s.log.Info("leads marked abandoned", "count", len(abandoned))
	}
	return len(abandoned), nil
}
