package service

import (
	"context"

	"raccordement_backend/internal/activity/audit"
	"raccordement_backend/internal/contacts/repository"
	"raccordement_backend/internal/contacts/transport"
	"raccordement_backend/internal/events"
	"raccordement_backend/platform/apperr"
	"raccordement_backend/platform/logger"
	"raccordement_backend/platform/phone"
	"raccordement_backend/platform/sanitize"

	"github.com/google/uuid"
)

const (
	StatusNew      = "new"
	StatusRead     = "read"
	StatusReplied  = "replied"
	StatusArchived = "archived"
)

type Store interface {
	Create(ctx context.Context, p repository.CreateParams) (repository.Contact, error)
	GetByID(ctx context.Context, id uuid.UUID) (repository.Contact, error)
	SetStatus(ctx context.Context, id uuid.UUID, status string) (repository.Contact, error)
	MarkReplied(ctx context.Context, id, by uuid.UUID) (repository.Contact, error)
	Delete(ctx context.Context, id uuid.UUID) error
	List(ctx context.Context, p repository.ListParams) ([]repository.Contact, int, error)
}

// Replier sends a staff answer to the person who wrote in.
type Replier interface {
	SendContactReply(ctx context.Context, toEmail, name, subject, message string) error
}

type Service struct {
	store    Store
	replier  Replier
	eventBus events.Bus
	audit    audit.Recorder
	log      *logger.Logger
}

func New(store Store, replier Replier, eventBus events.Bus, recorder audit.Recorder, log *logger.Logger) *Service {
	return &Service{store: store, replier: replier, eventBus: eventBus, audit: recorder, log: log}
}

// Submit stores a message from the public contact form. Bots that fill the
// honeypot get the same answer but nothing is stored.
func (s *Service) Submit(ctx context.Context, req transport.CreateContactRequest) (transport.AcceptedResponse, error) {
	if req.Website != "" {
		s.log.Info("contact honeypot triggered")
		return transport.AcceptedResponse{Received: true}, nil
	}

	params := repository.CreateParams{
		Name:    sanitize.Line(req.Name),
		Email:   sanitize.Email(req.Email),
		Subject: sanitize.Line(req.Subject),
		Message: sanitize.Text(req.Message),
	}
	if params.Message == "" {
		return transport.AcceptedResponse{}, apperr.Validation("message is empty")
	}
	if req.Phone != nil && *req.Phone != "" {
		if !phone.IsValid(*req.Phone) {
			return transport.AcceptedResponse{}, apperr.Validation("invalid phone number")
		}
		normalized := phone.NormalizeE164(*req.Phone)
		params.Phone = &normalized
	}

	c, err := s.store.Create(ctx, params)
	if err != nil {
		return transport.AcceptedResponse{}, err
	}
	s.eventBus.Publish(ctx, events.ContactReceived{
		BaseEvent: events.NewBaseEvent(),
		ContactID: c.ID,
		Name:      c.Name,
		Email:     c.Email,
		Subject:   c.Subject,
	})
	return transport.AcceptedResponse{Received: true}, nil
}

func (s *Service) List(ctx context.Context, req transport.ListRequest) (transport.ListResponse, error) {
	page, pageSize := req.Page, req.PageSize
	if page < 1 {
		page = 1
	}
	if pageSize < 1 {
		pageSize = 20
	}
	if pageSize > 100 {
		pageSize = 100
	}
	params := repository.ListParams{
		Search: sanitize.SearchPattern(req.Search),
		Offset: (page - 1) * pageSize,
		Limit:  pageSize,
	}
	if req.Status != "" {
		params.Status = &req.Status
	}

	contacts, total, err := s.store.List(ctx, params)
	if err != nil {
		return transport.ListResponse{}, err
	}
	items := make([]transport.ContactResponse, 0, len(contacts))
	for _, c := range contacts {
		items = append(items, toResponse(c))
	}
	return transport.ListResponse{
		Items:      items,
		Total:      total,
		Page:       page,
		PageSize:   pageSize,
		TotalPages: (total + pageSize - 1) / pageSize,
	}, nil
}

// Get returns a message and marks new ones as read.
func (s *Service) Get(ctx context.Context, id uuid.UUID) (transport.ContactResponse, error) {
	c, err := s.store.GetByID(ctx, id)
	if err != nil {
		return transport.ContactResponse{}, err
	}
	if c.Status == StatusNew {
		if read, err := s.store.SetStatus(ctx, id, StatusRead); err == nil {
			c = read
		} else {
			s.log.Warn("mark contact read failed", "contactId", id, "error", err)
		}
	}
	return toResponse(c), nil
}

func (s *Service) SetStatus(ctx context.Context, actorID, id uuid.UUID, status string) (transport.ContactResponse, error) {
	c, err := s.store.SetStatus(ctx, id, status)
	if err != nil {
		return transport.ContactResponse{}, err
	}
	s.record(ctx, actorID, "contact.status_changed", id, map[string]any{"status": status})
	return toResponse(c), nil
}

// Reply emails the answer and marks the message replied. Nothing changes
// when the email cannot be sent.
func (s *Service) Reply(ctx context.Context, actorID, id uuid.UUID, req transport.ReplyRequest) (transport.ContactResponse, error) {
	c, err := s.store.GetByID(ctx, id)
	if err != nil {
		return transport.ContactResponse{}, err
	}
	message := sanitize.Text(req.Message)
	if message == "" {
		return transport.ContactResponse{}, apperr.Validation("reply is empty")
	}
	if err := s.replier.SendContactReply(ctx, c.Email, c.Name, "Re: "+c.Subject, message); err != nil {
		s.log.Error("contact reply failed", "contactId", id, "error", err)
		return transport.ContactResponse{}, apperr.Unavailable("the reply could not be sent", err)
	}

	replied, err := s.store.MarkReplied(ctx, id, actorID)
	if err != nil {
		return transport.ContactResponse{}, err
	}
	s.record(ctx, actorID, "contact.replied", id, nil)
	return toResponse(replied), nil
}

func (s *Service) Delete(ctx context.Context, actorID, id uuid.UUID) error {
	if err := s.store.Delete(ctx, id); err != nil {
		return err
	}
	s.record(ctx, actorID, "contact.deleted", id, nil)
	return nil
}

func (s *Service) record(ctx context.Context, actorID uuid.UUID, action string, id uuid.UUID, details map[string]any) {
	s.audit.Record(ctx, audit.Entry{
		ActorID:    &actorID,
		Action:     action,
		EntityType: audit.EntityContact,
		EntityID:   id.String(),
		Details:    details,
	})
}

func toResponse(c repository.Contact) transport.ContactResponse {
	return transport.ContactResponse{
		ID:        c.ID,
		Name:      c.Name,
		Email:     c.Email,
		Phone:     c.Phone,
		Subject:   c.Subject,
		Message:   c.Message,
		Status:    c.Status,
		RepliedAt: c.RepliedAt,
		RepliedBy: c.RepliedBy,
		CreatedAt: c.CreatedAt,
		UpdatedAt: c.UpdatedAt,
	}
}
