package service

import (
	"context"
	"strconv"
	"strings"
	"sync"
	"time"

	"raccordement_backend/internal/events"
	"raccordement_backend/internal/leads/repository"
	"raccordement_backend/internal/leads/transport"
	requestsservice "raccordement_backend/internal/requests/service"
	requeststransport "raccordement_backend/internal/requests/transport"
	"raccordement_backend/platform/apperr"
	"raccordement_backend/platform/metrics"
	"raccordement_backend/platform/phone"
	"raccordement_backend/platform/sanitize"
	"raccordement_backend/platform/token"

	"github.com/google/uuid"
)

const (
	FirstStep = 1
	LastStep  = 5

	sessionTokenBytes = 32
	defaultSource     = "website"
)

var errConverted = apperr.Conflict("this request has already been submitted")

// Start opens a new anonymous funnel. Any first-step data is stored as well.
func (s *Service) Start(ctx context.Context, req transport.StartRequest) (transport.StartResponse, error) {
	if err := checkStart(req.StepData); err != nil {
		return transport.StartResponse{}, err
	}
	fields, err := fieldParams(req.StepData)
	if err != nil {
		return transport.StartResponse{}, err
	}
	sessionToken, err := token.Random(sessionTokenBytes)
	if err != nil {
		return transport.StartResponse{}, err
	}
	source := sanitize.Line(req.Source)
	if source == "" {
		source = defaultSource
	}

	l, err := s.store.Create(ctx, repository.CreateParams{
		SessionToken: sessionToken,
		Source:       source,
		UTMSource:    sanitize.TextPtr(req.UTMSource),
		UTMMedium:    sanitize.TextPtr(req.UTMMedium),
		UTMCampaign:  sanitize.TextPtr(req.UTMCampaign),
		Gclid:        sanitize.TextPtr(req.Gclid),
		Fields:       fields,
	})
	if err != nil {
		return transport.StartResponse{}, err
	}

	metrics.LeadCreated(source)
	s.eventBus.Publish(ctx, events.LeadCreated{BaseEvent: events.NewBaseEvent(), LeadID: l.ID, Source: source})
	s.record(ctx, nil, "lead.created", l.ID, map[string]any{"source": source})
	return transport.StartResponse{SessionToken: sessionToken, Lead: s.funnelView(ctx, l)}, nil
}

// Resume returns the funnel state for a session token.
func (s *Service) Resume(ctx context.Context, sessionToken string) (transport.FunnelLead, error) {
	l, err := s.store.GetBySessionToken(ctx, sessionToken)
	if err != nil {
		return transport.FunnelLead{}, err
	}
	return s.funnelView(ctx, l), nil
}

// SaveStep merges the data of one step after checking what that step
// requires.
func (s *Service) SaveStep(ctx context.Context, sessionToken string, step int, data transport.StepData) (transport.FunnelLead, error) {
	if step < FirstStep || step > LastStep {
		return transport.FunnelLead{}, apperr.Validation("unknown funnel step")
	}
	l, err := s.store.GetBySessionToken(ctx, sessionToken)
	if err != nil {
		return transport.FunnelLead{}, err
	}
	if l.Status == StatusConverted {
		return transport.FunnelLead{}, errConverted
	}
	if err := checkStep(step, data, l); err != nil {
		return transport.FunnelLead{}, err
	}
	fields, err := fieldParams(data)
	if err != nil {
		return transport.FunnelLead{}, err
	}

	updated, err := s.store.SaveStep(ctx, l.ID, step, fields)
	if apperr.Is(err, apperr.KindNotFound) {
		// Converted between the read and the write.
		return transport.FunnelLead{}, errConverted
	}
	if err != nil {
		return transport.FunnelLead{}, err
	}

	s.eventBus.Publish(ctx, events.LeadUpdated{
		BaseEvent:   events.NewBaseEvent(),
		LeadID:      l.ID,
		Step:        step,
		CurrentStep: updated.CurrentStep,
		Status:      updated.Status,
	})
	return s.funnelView(ctx, updated), nil
}

// Complete converts a finished funnel into a service request. Calling it
// again on a converted lead returns the existing request.
func (s *Service) Complete(ctx context.Context, sessionToken string) (transport.CompleteResponse, error) {
	return s.complete(ctx, sessionToken, nil)
}

// CompleteForPartner converts a lead submitted through the partner API and
// ties the request to the partner key.
func (s *Service) CompleteForPartner(ctx context.Context, sessionToken string, partnerKeyID uuid.UUID) (transport.CompleteResponse, error) {
	return s.complete(ctx, sessionToken, func(in *requestsservice.NewRequest) {
		in.Source = requestsservice.SourcePartner
		in.PartnerKeyID = &partnerKeyID
	})
}

func (s *Service) complete(ctx context.Context, sessionToken string, adjust func(*requestsservice.NewRequest)) (transport.CompleteResponse, error) {
	unlock := s.locks.Lock(sessionToken)
	defer unlock()

	l, err := s.store.GetBySessionToken(ctx, sessionToken)
	if err != nil {
		return transport.CompleteResponse{}, err
	}
	if l.Status == StatusConverted && l.ServiceRequestID != nil {
		req, err := s.requests.Get(ctx, *l.ServiceRequestID)
		if err != nil {
			return transport.CompleteResponse{}, err
		}
		return completeResponse(req), nil
	}

	input, err := conversionInput(l)
	if err != nil {
		return transport.CompleteResponse{}, err
	}
	if adjust != nil {
		adjust(&input)
	}
	req, err := s.requests.Create(ctx, nil, input)
	if err != nil {
		return transport.CompleteResponse{}, err
	}
	if _, err := s.store.MarkConverted(ctx, l.ID, req.ID); err != nil {
		return transport.CompleteResponse{}, err
	}

	metrics.LeadConverted()
	s.eventBus.Publish(ctx, events.LeadConverted{
		BaseEvent: events.NewBaseEvent(),
		LeadID:    l.ID,
		RequestID: req.ID,
		Reference: req.Reference,
	})
	s.record(ctx, nil, "lead.converted", l.ID, map[string]any{"reference": req.Reference})
	return completeResponse(req), nil
}

func completeResponse(req requeststransport.RequestResponse) transport.CompleteResponse {
	return transport.CompleteResponse{
		RequestID:   req.ID,
		Reference:   req.Reference,
		AmountCents: req.AmountCents,
		Currency:    req.Currency,
	}
}

// conversionInput checks the lead carries everything a request needs.
func conversionInput(l repository.Lead) (requestsservice.NewRequest, error) {
	var missing []string
	need := func(name string, v *string) string {
		if v == nil || strings.TrimSpace(*v) == "" {
			missing = append(missing, name)
			return ""
		}
		return *v
	}
	in := requestsservice.NewRequest{
		CreateRequest: requeststransport.CreateRequest{
			ClientType:     need("clientType", l.ClientType),
			ConnectionType: need("connectionType", l.ConnectionType),
			FirstName:      need("firstName", l.FirstName),
			LastName:       need("lastName", l.LastName),
			Email:          need("email", l.Email),
			Phone:          need("phone", l.Phone),
			Civility:       l.Civility,
			CompanyName:    l.CompanyName,
			Siret:          l.Siret,
			Address: requeststransport.Address{
				Street:     need("street", l.AddressStreet),
				PostalCode: need("postalCode", l.AddressPostalCode),
				City:       need("city", l.AddressCity),
			},
			Project: requeststransport.Project{
				PowerKVA:    l.PowerKVA,
				Phase:       l.Phase,
				DesiredDate: formatDate(l.DesiredDate),
				Comments:    l.Comments,
			},
		},
		LeadID: &l.ID,
		Source: requestsservice.SourceWebsite,
		Gclid:  l.Gclid,
	}
	if !l.Consent {
		missing = append(missing, "consent")
	}
	if len(missing) > 0 {
		return requestsservice.NewRequest{}, apperr.Validation("the request is incomplete").WithDetails(map[string]any{"missing": missing})
	}
	return in, nil
}

// checkStep enforces the required fields of each step. Values already
// stored on the lead count.
func checkStep(step int, d transport.StepData, l repository.Lead) error {
	var missing []string
	require := func(name string, v, stored *string) {
		if (v == nil || strings.TrimSpace(*v) == "") && (stored == nil || *stored == "") {
			missing = append(missing, name)
		}
	}

	switch step {
	case 1:
		require("clientType", d.ClientType, l.ClientType)
		require("connectionType", d.ConnectionType, l.ConnectionType)
	case 3:
		require("street", d.Street, l.AddressStreet)
		require("postalCode", d.PostalCode, l.AddressPostalCode)
		require("city", d.City, l.AddressCity)
	case 4:
		require("firstName", d.FirstName, l.FirstName)
		require("lastName", d.LastName, l.LastName)
		require("email", d.Email, l.Email)
		require("phone", d.Phone, l.Phone)
		clientType := d.ClientType
		if clientType == nil {
			clientType = l.ClientType
		}
		if clientType != nil && *clientType == "professionnel" {
			require("companyName", d.CompanyName, l.CompanyName)
		}
	case 5:
		if d.Consent == nil || !*d.Consent {
			return apperr.Validation("consent is required to submit the request")
		}
	}
	if len(missing) > 0 {
		return apperr.Validation("missing fields for this step").WithDetails(map[string]any{"missing": missing})
	}
	return checkPhone(d.Phone)
}

// checkStart validates data sent with a new funnel. Step one rules apply
// once either of its fields is present.
func checkStart(d transport.StepData) error {
	if d.ClientType != nil || d.ConnectionType != nil {
		return checkStep(FirstStep, d, repository.Lead{})
	}
	return checkPhone(d.Phone)
}

func checkPhone(v *string) error {
	if v != nil && *v != "" && !phone.IsValid(*v) {
		return apperr.Validation("invalid phone number")
	}
	return nil
}

func fieldParams(d transport.StepData) (repository.FieldParams, error) {
	f := repository.FieldParams{
		ClientType:        d.ClientType,
		ConnectionType:    d.ConnectionType,
		Civility:          d.Civility,
		FirstName:         linePtr(d.FirstName),
		LastName:          linePtr(d.LastName),
		CompanyName:       linePtr(d.CompanyName),
		AddressStreet:     linePtr(d.Street),
		AddressPostalCode: trimPtr(d.PostalCode),
		AddressCity:       linePtr(d.City),
		PowerKVA:          d.PowerKVA,
		Phase:             d.Phase,
		Comments:          sanitize.TextPtr(d.Comments),
		Consent:           d.Consent,
	}
	if d.Email != nil {
		e := sanitize.Email(*d.Email)
		f.Email = &e
	}
	if d.Phone != nil {
		p := phone.NormalizeE164(*d.Phone)
		f.Phone = &p
	}
	if d.Siret != nil {
		siret := strings.ReplaceAll(strings.TrimSpace(*d.Siret), " ", "")
		f.Siret = &siret
	}
	if d.DesiredDate != nil && *d.DesiredDate != "" {
		t, err := time.Parse("2006-01-02", *d.DesiredDate)
		if err != nil {
			return repository.FieldParams{}, apperr.Validation("desiredDate uses the YYYY-MM-DD format")
		}
		f.DesiredDate = &t
	}
	return f, nil
}

func (s *Service) funnelView(ctx context.Context, l repository.Lead) transport.FunnelLead {
	view := transport.FunnelLead{
		CurrentStep:    l.CurrentStep,
		Status:         l.Status,
		ClientType:     l.ClientType,
		ConnectionType: l.ConnectionType,
		Civility:       l.Civility,
		FirstName:      l.FirstName,
		LastName:       l.LastName,
		Email:          l.Email,
		Phone:          l.Phone,
		CompanyName:    l.CompanyName,
		Siret:          l.Siret,
		Street:         l.AddressStreet,
		PostalCode:     l.AddressPostalCode,
		City:           l.AddressCity,
		PowerKVA:       l.PowerKVA,
		Phase:          l.Phase,
		DesiredDate:    formatDate(l.DesiredDate),
		Comments:       l.Comments,
		Consent:        l.Consent,
		UpdatedAt:      l.UpdatedAt,
	}
	if l.ServiceRequestID != nil {
		if req, err := s.requests.Get(ctx, *l.ServiceRequestID); err == nil {
			view.Reference = &req.Reference
		}
	}
	return view
}

// keyedMutex serialises work per key within this process.
type keyedMutex struct {
	mu    sync.Mutex
	locks map[string]*keyedLock
}

type keyedLock struct {
	mu   sync.Mutex
	refs int
}

func newKeyedMutex() *keyedMutex {
	return &keyedMutex{locks: map[string]*keyedLock{}}
}

func (k *keyedMutex) Lock(key string) (unlock func()) {
	k.mu.Lock()
	l, ok := k.locks[key]
	if !ok {
		l = &keyedLock{}
		k.locks[key] = l
	}
	l.refs++
	k.mu.Unlock()

	l.mu.Lock()
	return func() {
		l.mu.Unlock()
		k.mu.Lock()
		l.refs--
		if l.refs == 0 {
			delete(k.locks, key)
		}
		k.mu.Unlock()
	}
}

func linePtr(v *string) *string {
	if v == nil {
		return nil
	}
	l := sanitize.Line(*v)
	return &l
}

func trimPtr(v *string) *string {
	if v == nil {
		return nil
	}
	t := strings.TrimSpace(*v)
	return &t
}

func formatDate(t *time.Time) *string {
	if t == nil {
		return nil
	}
	d := t.Format("2006-01-02")
	return &d
}

func formatFloat(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}

func itoa(n int) string { return strconv.Itoa(n) }
