package service

import (
	"context"
	"time"

	"raccordement_backend/internal/activity/audit"
	"raccordement_backend/internal/adapters/storage"
	"raccordement_backend/internal/events"
	"raccordement_backend/internal/leads/repository"
	"raccordement_backend/internal/leads/transport"
	requestsservice "raccordement_backend/internal/requests/service"
	requeststransport "raccordement_backend/internal/requests/transport"
	"raccordement_backend/platform/apperr"
	"raccordement_backend/platform/logger"
	"raccordement_backend/platform/sanitize"

	"github.com/google/uuid"
)

const (
	StatusNew        = "new"
	StatusInProgress = "in_progress"
	StatusCompleted  = "completed"
	StatusConverted  = "converted"
	StatusAbandoned  = "abandoned"
)

// Store is the persistence the leads service needs.
type Store interface {
	Create(ctx context.Context, p repository.CreateParams) (repository.Lead, error)
	GetByID(ctx context.Context, id uuid.UUID) (repository.Lead, error)
	GetBySessionToken(ctx context.Context, token string) (repository.Lead, error)
	SaveStep(ctx context.Context, id uuid.UUID, step int, f repository.FieldParams) (repository.Lead, error)
	MarkConverted(ctx context.Context, id, requestID uuid.UUID) (repository.Lead, error)
	UpdateStaff(ctx context.Context, id uuid.UUID, status, notes *string) (repository.Lead, error)
	Assign(ctx context.Context, id uuid.UUID, assignee *uuid.UUID) (repository.Lead, error)
	Delete(ctx context.Context, id uuid.UUID) error
	List(ctx context.Context, p repository.ListParams) ([]repository.Lead, int, error)
	MarkAbandoned(ctx context.Context, cutoff time.Time) ([]repository.Abandoned, error)
	MarkReminderSent(ctx context.Context, id uuid.UUID) (bool, error)
	CreateDocument(ctx context.Context, p repository.CreateDocumentParams) (repository.Document, error)
	ListDocuments(ctx context.Context, leadID uuid.UUID) ([]repository.Document, error)
}

// Requests creates the service request a completed funnel turns into.
type Requests interface {
	Create(ctx context.Context, actorID *uuid.UUID, in requestsservice.NewRequest) (requeststransport.RequestResponse, error)
	Get(ctx context.Context, id uuid.UUID) (requeststransport.RequestResponse, error)
}

type Staff interface {
	EnsureAssignable(ctx context.Context, id uuid.UUID) error
}

// Summarizer writes a short summary of a lead for staff.
type Summarizer interface {
	SummarizeLead(ctx context.Context, facts map[string]string) (text string, generated bool)
}

// Documents configures where funnel uploads go.
type Documents struct {
	Store       storage.Store
	Bucket      string
	MaxFileSize int64
}

type Service struct {
	store      Store
	requests   Requests
	staff      Staff
	summarizer Summarizer
	docs       Documents
	eventBus   events.Bus
	audit      audit.Recorder
	log        *logger.Logger
	locks      *keyedMutex
	now        func() time.Time
}

func New(store Store, requests Requests, staff Staff, summarizer Summarizer, docs Documents, eventBus events.Bus, recorder audit.Recorder, log *logger.Logger) *Service {
	return &Service{
		store:      store,
		requests:   requests,
		staff:      staff,
		summarizer: summarizer,
		docs:       docs,
		eventBus:   eventBus,
		audit:      recorder,
		log:        log,
		locks:      newKeyedMutex(),
		now:        time.Now,
	}
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
		Search:   sanitize.SearchPattern(req.Search),
		SortBy:   req.SortBy,
		SortDesc: req.SortOrder != "asc",
		Offset:   (page - 1) * pageSize,
		Limit:    pageSize,
	}
	if req.Status != "" {
		params.Status = &req.Status
	}
	if req.AssignedTo != "" {
		id, err := uuid.Parse(req.AssignedTo)
		if err != nil {
			return transport.ListResponse{}, apperr.Validation("invalid assignedTo")
		}
		params.AssignedTo = &id
	}
	if req.DateFrom != "" {
		from, err := time.Parse("2006-01-02", req.DateFrom)
		if err != nil {
			return transport.ListResponse{}, apperr.Validation("invalid dateFrom")
		}
		params.From = &from
	}
	if req.DateTo != "" {
		to, err := time.Parse("2006-01-02", req.DateTo)
		if err != nil {
			return transport.ListResponse{}, apperr.Validation("invalid dateTo")
		}
		to = to.AddDate(0, 0, 1)
		params.To = &to
	}

	leads, total, err := s.store.List(ctx, params)
	if err != nil {
		return transport.ListResponse{}, err
	}
	items := make([]transport.LeadResponse, 0, len(leads))
	for _, l := range leads {
		items = append(items, ToResponse(l))
	}
	return transport.ListResponse{
		Items:      items,
		Total:      total,
		Page:       page,
		PageSize:   pageSize,
		TotalPages: (total + pageSize - 1) / pageSize,
	}, nil
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (transport.LeadResponse, error) {
	l, err := s.store.GetByID(ctx, id)
	if err != nil {
		return transport.LeadResponse{}, err
	}
	return ToResponse(l), nil
}

// Update lets staff annotate a lead or change its status. Conversion only
// happens through the funnel.
func (s *Service) Update(ctx context.Context, actorID, id uuid.UUID, req transport.UpdateLeadRequest) (transport.LeadResponse, error) {
	current, err := s.store.GetByID(ctx, id)
	if err != nil {
		return transport.LeadResponse{}, err
	}
	if req.Status != nil && current.Status == StatusConverted && *req.Status != StatusConverted {
		return transport.LeadResponse{}, apperr.Conflict("a converted lead keeps its status")
	}

	l, err := s.store.UpdateStaff(ctx, id, req.Status, sanitize.TextPtr(req.Notes))
	if err != nil {
		return transport.LeadResponse{}, err
	}
	details := map[string]any{}
	if req.Status != nil && *req.Status != current.Status {
		details["status"] = map[string]string{"from": current.Status, "to": *req.Status}
	}
	if req.Notes != nil {
		details["notes"] = true
	}
	s.record(ctx, &actorID, "lead.updated", id, details)
	return ToResponse(l), nil
}

func (s *Service) Assign(ctx context.Context, actorID, id uuid.UUID, assignee *uuid.UUID) (transport.LeadResponse, error) {
	if assignee != nil {
		if err := s.staff.EnsureAssignable(ctx, *assignee); err != nil {
			return transport.LeadResponse{}, err
		}
	}
	l, err := s.store.Assign(ctx, id, assignee)
	if err != nil {
		return transport.LeadResponse{}, err
	}
	s.eventBus.Publish(ctx, events.LeadAssigned{
		BaseEvent:  events.NewBaseEvent(),
		LeadID:     id,
		AssigneeID: assignee,
		AssignedBy: actorID,
	})
	s.record(ctx, &actorID, "lead.assigned", id, map[string]any{"assigneeId": assignee})
	return ToResponse(l), nil
}

func (s *Service) Delete(ctx context.Context, actorID, id uuid.UUID) error {
	if err := s.store.Delete(ctx, id); err != nil {
		return err
	}
	s.record(ctx, &actorID, "lead.deleted", id, nil)
	return nil
}

// Summary asks the assistant for a short staff-facing summary.
func (s *Service) Summary(ctx context.Context, actorID, id uuid.UUID) (transport.SummaryResponse, error) {
	l, err := s.store.GetByID(ctx, id)
	if err != nil {
		return transport.SummaryResponse{}, err
	}
	text, generated := s.summarizer.SummarizeLead(ctx, leadFacts(l))
	s.record(ctx, &actorID, "lead.summary_generated", id, map[string]any{"generated": generated})
	return transport.SummaryResponse{Summary: text, Generated: generated}, nil
}

func leadFacts(l repository.Lead) map[string]string {
	facts := map[string]string{
		"status":      l.Status,
		"currentStep": itoa(l.CurrentStep),
		"source":      l.Source,
	}
	put := func(key string, v *string) {
		if v != nil && *v != "" {
			facts[key] = *v
		}
	}
	put("clientType", l.ClientType)
	put("connectionType", l.ConnectionType)
	put("firstName", l.FirstName)
	put("lastName", l.LastName)
	put("companyName", l.CompanyName)
	put("city", l.AddressCity)
	put("postalCode", l.AddressPostalCode)
	put("phase", l.Phase)
	put("comments", l.Comments)
	put("notes", l.Notes)
	if l.PowerKVA != nil {
		facts["powerKva"] = formatFloat(*l.PowerKVA)
	}
	if l.DesiredDate != nil {
		facts["desiredDate"] = l.DesiredDate.Format("02/01/2006")
	}
	return facts
}

func (s *Service) record(ctx context.Context, actorID *uuid.UUID, action string, id uuid.UUID, details map[string]any) {
	s.audit.Record(ctx, audit.Entry{
		ActorID:    actorID,
		Action:     action,
		EntityType: audit.EntityLead,
		EntityID:   id.String(),
		Details:    details,
	})
}

func ToResponse(l repository.Lead) transport.LeadResponse {
	return transport.LeadResponse{
		ID:               l.ID,
		CurrentStep:      l.CurrentStep,
		Status:           l.Status,
		ClientType:       l.ClientType,
		ConnectionType:   l.ConnectionType,
		Civility:         l.Civility,
		FirstName:        l.FirstName,
		LastName:         l.LastName,
		Email:            l.Email,
		Phone:            l.Phone,
		CompanyName:      l.CompanyName,
		Siret:            l.Siret,
		Street:           l.AddressStreet,
		PostalCode:       l.AddressPostalCode,
		City:             l.AddressCity,
		PowerKVA:         l.PowerKVA,
		Phase:            l.Phase,
		DesiredDate:      formatDate(l.DesiredDate),
		Comments:         l.Comments,
		Consent:          l.Consent,
		ConsentAt:        l.ConsentAt,
		Source:           l.Source,
		UTMSource:        l.UTMSource,
		UTMMedium:        l.UTMMedium,
		UTMCampaign:      l.UTMCampaign,
		Gclid:            l.Gclid,
		AssignedTo:       l.AssignedTo,
		ServiceRequestID: l.ServiceRequestID,
		Notes:            l.Notes,
		ReminderSentAt:   l.ReminderSentAt,
		LastActivityAt:   l.LastActivityAt,
		CompletedAt:      l.CompletedAt,
		CreatedAt:        l.CreatedAt,
		UpdatedAt:        l.UpdatedAt,
	}
}
