package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"raccordement_backend/internal/activity/audit"
	"raccordement_backend/internal/events"
	"raccordement_backend/internal/requests/repository"
	"raccordement_backend/internal/requests/transport"
	"raccordement_backend/platform/apperr"
	"raccordement_backend/platform/logger"
	"raccordement_backend/platform/phone"
	"raccordement_backend/platform/sanitize"

	"github.com/google/uuid"
)

const referenceAttempts = 5

// Store is the persistence the requests service needs.
type Store interface {
	Create(ctx context.Context, p repository.CreateParams) (repository.Request, error)
	GetByID(ctx context.Context, id uuid.UUID) (repository.Request, error)
	GetByReference(ctx context.Context, reference string) (repository.Request, error)
	Update(ctx context.Context, id uuid.UUID, p repository.UpdateParams) (repository.Request, error)
	SetStatus(ctx context.Context, id uuid.UUID, p repository.StatusParams) (repository.Request, error)
	Assign(ctx context.Context, id uuid.UUID, assignee *uuid.UUID) (repository.Request, error)
	SetPaymentStatus(ctx context.Context, id uuid.UUID, status string) (repository.Request, error)
	Delete(ctx context.Context, id uuid.UUID) error
	List(ctx context.Context, p repository.ListParams) ([]repository.Request, int, error)
}

// Pricing provides the current price of a request.
type Pricing interface {
	ServicePriceCents(ctx context.Context) int64
}

// Staff validates assignees.
type Staff interface {
	EnsureAssignable(ctx context.Context, id uuid.UUID) error
}

// NewRequest is a request creation coming from the funnel, a partner or a
// staff member.
type NewRequest struct {
	transport.CreateRequest
	LeadID       *uuid.UUID
	Source       string
	Gclid        *string
	PartnerKeyID *uuid.UUID
}

type Service struct {
	store    Store
	pricing  Pricing
	staff    Staff
	eventBus events.Bus
	audit    audit.Recorder
	log      *logger.Logger
	now      func() time.Time
}

func New(store Store, pricing Pricing, staff Staff, eventBus events.Bus, recorder audit.Recorder, log *logger.Logger) *Service {
	return &Service{
		store:    store,
		pricing:  pricing,
		staff:    staff,
		eventBus: eventBus,
		audit:    recorder,
		log:      log,
		now:      time.Now,
	}
}

// Create stores a new request priced at the configured amount and assigns
// it a unique reference.
func (s *Service) Create(ctx context.Context, actorID *uuid.UUID, in NewRequest) (transport.RequestResponse, error) {
	if in.ClientType == "professionnel" && (in.CompanyName == nil || strings.TrimSpace(*in.CompanyName) == "") {
		return transport.RequestResponse{}, apperr.Validation("companyName is required for professional clients")
	}
	if !phone.IsValid(in.Phone) {
		return transport.RequestResponse{}, apperr.Validation("invalid phone number")
	}
	if in.AssignedTo != nil {
		if err := s.staff.EnsureAssignable(ctx, *in.AssignedTo); err != nil {
			return transport.RequestResponse{}, err
		}
	}
	desired, err := parseDate(in.Project.DesiredDate)
	if err != nil {
		return transport.RequestResponse{}, err
	}
	source := in.Source
	if source == "" {
		source = SourceWebsite
	}

	params := repository.CreateParams{
		LeadID:            in.LeadID,
		ClientType:        in.ClientType,
		Civility:          in.Civility,
		FirstName:         sanitize.Line(in.FirstName),
		LastName:          sanitize.Line(in.LastName),
		Email:             sanitize.Email(in.Email),
		Phone:             phone.NormalizeE164(in.Phone),
		CompanyName:       sanitize.TextPtr(in.CompanyName),
		Siret:             compactDigits(in.Siret),
		AddressStreet:     sanitize.Line(in.Address.Street),
		AddressPostalCode: strings.TrimSpace(in.Address.PostalCode),
		AddressCity:       sanitize.Line(in.Address.City),
		ConnectionType:    in.ConnectionType,
		PowerKVA:          in.Project.PowerKVA,
		Phase:             in.Project.Phase,
		DesiredDate:       desired,
		Comments:          sanitize.TextPtr(in.Project.Comments),
		AmountCents:       s.pricing.ServicePriceCents(ctx),
		AssignedTo:        in.AssignedTo,
		Notes:             sanitize.TextPtr(in.Notes),
		Source:            source,
		Gclid:             in.Gclid,
		PartnerKeyID:      in.PartnerKeyID,
	}

	var req repository.Request
	for attempt := 0; ; attempt++ {
		params.Reference, err = NewReference(s.now())
		if err != nil {
			return transport.RequestResponse{}, err
		}
		req, err = s.store.Create(ctx, params)
		if !errors.Is(err, repository.ErrReferenceTaken) {
			break
		}
		if attempt+1 == referenceAttempts {
			return transport.RequestResponse{}, apperr.Internal("could not allocate a reference")
		}
	}
	if err != nil {
		return transport.RequestResponse{}, err
	}

	s.eventBus.Publish(ctx, events.RequestCreated{
		BaseEvent:   events.NewBaseEvent(),
		RequestID:   req.ID,
		Reference:   req.Reference,
		Email:       req.Email,
		FirstName:   req.FirstName,
		LastName:    req.LastName,
		AmountCents: req.AmountCents,
		Source:      req.Source,
	})
	s.record(ctx, actorID, "request.created", req.ID, map[string]any{"reference": req.Reference, "source": req.Source})
	return ToResponse(req), nil
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
		Search:        sanitize.SearchPattern(req.Search),
		Status:        optional(req.Status),
		PaymentStatus: optional(req.PaymentStatus),
		SortBy:        req.SortBy,
		SortDesc:      req.SortOrder != "asc",
		Offset:        (page - 1) * pageSize,
		Limit:         pageSize,
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

	items, total, err := s.store.List(ctx, params)
	if err != nil {
		return transport.ListResponse{}, err
	}
	out := make([]transport.RequestResponse, 0, len(items))
	for _, r := range items {
		out = append(out, ToResponse(r))
	}
	return transport.ListResponse{
		Items:      out,
		Total:      total,
		Page:       page,
		PageSize:   pageSize,
		TotalPages: (total + pageSize - 1) / pageSize,
	}, nil
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (transport.RequestResponse, error) {
	r, err := s.store.GetByID(ctx, id)
	if err != nil {
		return transport.RequestResponse{}, err
	}
	return ToResponse(r), nil
}

func (s *Service) GetByReference(ctx context.Context, reference string) (transport.RequestResponse, error) {
	r, err := s.store.GetByReference(ctx, strings.TrimSpace(reference))
	if err != nil {
		return transport.RequestResponse{}, err
	}
	return ToResponse(r), nil
}

// Track returns the public view of a request when email matches the
// customer's address. A mismatch looks exactly like an unknown reference.
func (s *Service) Track(ctx context.Context, reference, email string) (transport.TrackingResponse, error) {
	r, err := s.store.GetByReference(ctx, strings.TrimSpace(reference))
	if err != nil {
		return transport.TrackingResponse{}, err
	}
	if !strings.EqualFold(r.Email, sanitize.Email(email)) {
		return transport.TrackingResponse{}, apperr.NotFound("service request not found")
	}
	return transport.TrackingResponse{
		Reference:      r.Reference,
		Status:         r.Status,
		StatusLabel:    StatusLabel(r.Status),
		PaymentStatus:  r.PaymentStatus,
		ConnectionType: r.ConnectionType,
		AmountCents:    r.AmountCents,
		Currency:       r.Currency,
		ScheduledAt:    r.ScheduledAt,
		CompletedAt:    r.CompletedAt,
		CreatedAt:      r.CreatedAt,
	}, nil
}

func (s *Service) Update(ctx context.Context, actorID, id uuid.UUID, req transport.UpdateRequest) (transport.RequestResponse, error) {
	current, err := s.store.GetByID(ctx, id)
	if err != nil {
		return transport.RequestResponse{}, err
	}
	if req.AmountCents != nil && current.PaymentStatus == PaymentPaid {
		return transport.RequestResponse{}, apperr.Conflict("the amount of a paid request cannot change")
	}

	params := repository.UpdateParams{
		Civility:          req.Civility,
		FirstName:         linePtr(req.FirstName),
		LastName:          linePtr(req.LastName),
		CompanyName:       sanitize.TextPtr(req.CompanyName),
		Siret:             compactDigits(req.Siret),
		AddressStreet:     linePtr(req.Street),
		AddressPostalCode: req.PostalCode,
		AddressCity:       linePtr(req.City),
		ConnectionType:    req.ConnectionType,
		Notes:             sanitize.TextPtr(req.Notes),
		AmountCents:       req.AmountCents,
	}
	if req.Email != nil {
		e := sanitize.Email(*req.Email)
		params.Email = &e
	}
	if req.Phone != nil {
		if !phone.IsValid(*req.Phone) {
			return transport.RequestResponse{}, apperr.Validation("invalid phone number")
		}
		p := phone.NormalizeE164(*req.Phone)
		params.Phone = &p
	}
	if req.Project != nil {
		params.PowerKVA = req.Project.PowerKVA
		params.Phase = req.Project.Phase
		params.Comments = sanitize.TextPtr(req.Project.Comments)
		if params.DesiredDate, err = parseDate(req.Project.DesiredDate); err != nil {
			return transport.RequestResponse{}, err
		}
	}

	r, err := s.store.Update(ctx, id, params)
	if err != nil {
		return transport.RequestResponse{}, err
	}
	details := map[string]any{}
	if req.AmountCents != nil {
		details["amountCents"] = map[string]int64{"from": current.AmountCents, "to": *req.AmountCents}
	}
	s.record(ctx, &actorID, "request.updated", id, details)
	return ToResponse(r), nil
}

// ChangeStatus applies a staff status change. Moving to the current status
// is a no-op, except for scheduled where a new date reschedules.
func (s *Service) ChangeStatus(ctx context.Context, actorID, id uuid.UUID, req transport.StatusRequest) (transport.RequestResponse, error) {
	current, err := s.store.GetByID(ctx, id)
	if err != nil {
		return transport.RequestResponse{}, err
	}

	reschedule := current.Status == StatusScheduled && req.Status == StatusScheduled && req.ScheduledAt != nil
	if current.Status == req.Status && !reschedule {
		return ToResponse(current), nil
	}
	if !reschedule && !CanTransition(current.Status, req.Status) {
		return transport.RequestResponse{}, apperr.Conflict("cannot move a request from " + current.Status + " to " + req.Status)
	}
	if req.Status == StatusScheduled && req.ScheduledAt == nil {
		return transport.RequestResponse{}, apperr.Validation("scheduledAt is required to schedule an intervention")
	}

	now := s.now()
	params := repository.StatusParams{Status: req.Status, ScheduledAt: req.ScheduledAt}
	switch req.Status {
	case StatusCompleted:
		params.CompletedAt = &now
	case StatusCanceled:
		params.CanceledAt = &now
	}

	r, err := s.store.SetStatus(ctx, id, params)
	if err != nil {
		return transport.RequestResponse{}, err
	}
	s.statusChanged(ctx, &actorID, current.Status, r, req.Comment)
	return ToResponse(r), nil
}

// Assign sets or clears the assignee. A new request becomes assigned.
func (s *Service) Assign(ctx context.Context, actorID, id uuid.UUID, assignee *uuid.UUID) (transport.RequestResponse, error) {
	if assignee != nil {
		if err := s.staff.EnsureAssignable(ctx, *assignee); err != nil {
			return transport.RequestResponse{}, err
		}
	}
	current, err := s.store.GetByID(ctx, id)
	if err != nil {
		return transport.RequestResponse{}, err
	}
	if IsTerminal(current.Status) {
		return transport.RequestResponse{}, apperr.Conflict("a closed request cannot be reassigned")
	}

	r, err := s.store.Assign(ctx, id, assignee)
	if err != nil {
		return transport.RequestResponse{}, err
	}
	s.eventBus.Publish(ctx, events.RequestAssigned{
		BaseEvent:  events.NewBaseEvent(),
		RequestID:  r.ID,
		Reference:  r.Reference,
		AssigneeID: assignee,
		AssignedBy: actorID,
	})
	s.record(ctx, &actorID, "request.assigned", id, map[string]any{"assigneeId": assignee})

	if assignee != nil && r.Status == StatusNew {
		previous := r.Status
		if r, err = s.store.SetStatus(ctx, id, repository.StatusParams{Status: StatusAssigned}); err != nil {
			return transport.RequestResponse{}, err
		}
		s.statusChanged(ctx, &actorID, previous, r, nil)
	}
	return ToResponse(r), nil
}

// SetPaymentStatus mirrors the payment ledger on the request.
func (s *Service) SetPaymentStatus(ctx context.Context, id uuid.UUID, status string) (transport.RequestResponse, error) {
	current, err := s.store.GetByID(ctx, id)
	if err != nil {
		return transport.RequestResponse{}, err
	}
	if current.PaymentStatus == status {
		return ToResponse(current), nil
	}
	r, err := s.store.SetPaymentStatus(ctx, id, status)
	if err != nil {
		return transport.RequestResponse{}, err
	}
	s.record(ctx, nil, "request.payment_status_changed", id, map[string]any{"from": current.PaymentStatus, "to": status})
	return ToResponse(r), nil
}

// Delete removes a request. Paid requests must be refunded first, and the
// store refuses any request that still has payment rows.
func (s *Service) Delete(ctx context.Context, actorID, id uuid.UUID) error {
	current, err := s.store.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if current.PaymentStatus == PaymentPaid {
		return apperr.Conflict("refund the payment before deleting a paid request")
	}
	if err := s.store.Delete(ctx, id); err != nil {
		return err
	}
	s.record(ctx, &actorID, "request.deleted", id, map[string]any{"reference": current.Reference})
	return nil
}

func (s *Service) statusChanged(ctx context.Context, actorID *uuid.UUID, from string, r repository.Request, comment *string) {
	s.eventBus.Publish(ctx, events.RequestStatusChanged{
		BaseEvent:   events.NewBaseEvent(),
		RequestID:   r.ID,
		Reference:   r.Reference,
		OldStatus:   from,
		NewStatus:   r.Status,
		ActorID:     actorID,
		Email:       r.Email,
		FirstName:   r.FirstName,
		ScheduledAt: r.ScheduledAt,
	})
	details := map[string]any{"from": from, "to": r.Status}
	if r.Status == StatusScheduled && r.ScheduledAt != nil {
		details["scheduledAt"] = r.ScheduledAt
	}
	if comment != nil && *comment != "" {
		details["comment"] = sanitize.Text(*comment)
	}
	s.record(ctx, actorID, "request.status_changed", r.ID, details)
}

func (s *Service) record(ctx context.Context, actorID *uuid.UUID, action string, id uuid.UUID, details map[string]any) {
	s.audit.Record(ctx, audit.Entry{
		ActorID:    actorID,
		Action:     action,
		EntityType: audit.EntityRequest,
		EntityID:   id.String(),
		Details:    details,
	})
}

func ToResponse(r repository.Request) transport.RequestResponse {
	var desired *string
	if r.DesiredDate != nil {
		d := r.DesiredDate.Format("2006-01-02")
		desired = &d
	}
	return transport.RequestResponse{
		ID:          r.ID,
		Reference:   r.Reference,
		LeadID:      r.LeadID,
		ClientType:  r.ClientType,
		Civility:    r.Civility,
		FirstName:   r.FirstName,
		LastName:    r.LastName,
		Email:       r.Email,
		Phone:       r.Phone,
		CompanyName: r.CompanyName,
		Siret:       r.Siret,
		Address: transport.AddressResponse{
			Street:     r.AddressStreet,
			PostalCode: r.AddressPostalCode,
			City:       r.AddressCity,
		},
		ConnectionType: r.ConnectionType,
		Project: transport.ProjectResponse{
			PowerKVA:    r.PowerKVA,
			Phase:       r.Phase,
			DesiredDate: desired,
			Comments:    r.Comments,
		},
		AmountCents:   r.AmountCents,
		Currency:      r.Currency,
		Status:        r.Status,
		StatusLabel:   StatusLabel(r.Status),
		PaymentStatus: r.PaymentStatus,
		AssignedTo:    r.AssignedTo,
		ScheduledAt:   r.ScheduledAt,
		CompletedAt:   r.CompletedAt,
		CanceledAt:    r.CanceledAt,
		Notes:         r.Notes,
		Source:        r.Source,
		Gclid:         r.Gclid,
		PartnerKeyID:  r.PartnerKeyID,
		CreatedAt:     r.CreatedAt,
		UpdatedAt:     r.UpdatedAt,
	}
}

func optional(v string) *string {
	if v == "" {
		return nil
	}
	return &v
}

func linePtr(v *string) *string {
	if v == nil {
		return nil
	}
	l := sanitize.Line(*v)
	return &l
}

func compactDigits(v *string) *string {
	if v == nil {
		return nil
	}
	d := strings.ReplaceAll(strings.TrimSpace(*v), " ", "")
	if d == "" {
		return nil
	}
	return &d
}

func parseDate(v *string) (*time.Time, error) {
	if v == nil || *v == "" {
		return nil, nil
	}
	t, err := time.Parse("2006-01-02", *v)
	if err != nil {
		return nil, apperr.Validation("dates use the YYYY-MM-DD format")
	}
	return &t, nil
}
