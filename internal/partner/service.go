package partner

import (
	"context"

	leadstransport "raccordement_backend/internal/leads/transport"
	paymentstransport "raccordement_backend/internal/payments/transport"
	requeststransport "raccordement_backend/internal/requests/transport"
	"raccordement_backend/platform/apperr"
	"raccordement_backend/platform/logger"

	"github.com/google/uuid"
)

const sourcePartner = "partner"

type Leads interface {
	Start(ctx context.Context, req leadstransport.StartRequest) (leadstransport.StartResponse, error)
	CompleteForPartner(ctx context.Context, sessionToken string, partnerKeyID uuid.UUID) (leadstransport.CompleteResponse, error)
}

type Requests interface {
	GetByReference(ctx context.Context, reference string) (requeststransport.RequestResponse, error)
}

type Payments interface {
	PaymentLink(ctx context.Context, reference string) (paymentstransport.PaymentLinkResponse, error)
}

// Service runs partner submissions through the same funnel as the public
// site, tagging what they create with the calling key.
type Service struct {
	leads    Leads
	requests Requests
	payments Payments
	log      *logger.Logger
}

func NewService(leads Leads, requests Requests, payments Payments, log *logger.Logger) *Service {
	return &Service{leads: leads, requests: requests, payments: payments, log: log}
}

func (s *Service) SubmitLead(ctx context.Context, keyID uuid.UUID, req SubmitLeadRequest) (LeadResponse, error) {
	started, err := s.leads.Start(ctx, leadstransport.StartRequest{
		StepData:    req.StepData,
		Source:      sourcePartner,
		UTMSource:   req.UTMSource,
		UTMCampaign: req.UTMCampaign,
	})
	if err != nil {
		return LeadResponse{}, err
	}
	s.log.Info("partner lead submitted", "keyId", keyID)
	return LeadResponse{
		SessionToken: started.SessionToken,
		CurrentStep:  started.Lead.CurrentStep,
		Status:       started.Lead.Status,
	}, nil
}

// SubmitRequest creates the lead and converts it in one call.
func (s *Service) SubmitRequest(ctx context.Context, keyID uuid.UUID, req SubmitRequest) (RequestView, error) {
	started, err := s.leads.Start(ctx, leadstransport.StartRequest{
		StepData:    req.stepData(),
		Source:      sourcePartner,
		UTMSource:   req.UTMSource,
		UTMCampaign: req.UTMCampaign,
	})
	if err != nil {
		return RequestView{}, err
	}
	done, err := s.leads.CompleteForPartner(ctx, started.SessionToken, keyID)
	if err != nil {
		return RequestView{}, err
	}
	s.log.Info("partner request submitted", "keyId", keyID, "reference", done.Reference)

	created, err := s.requests.GetByReference(ctx, done.Reference)
	if err != nil {
		return RequestView{}, err
	}
	return toRequestView(created), nil
}

func (s *Service) GetRequest(ctx context.Context, keyID uuid.UUID, reference string) (RequestView, error) {
	req, err := s.owned(ctx, keyID, reference)
	if err != nil {
		return RequestView{}, err
	}
	return toRequestView(req), nil
}

func (s *Service) PaymentLink(ctx context.Context, keyID uuid.UUID, reference string) (paymentstransport.PaymentLinkResponse, error) {
	if _, err := s.owned(ctx, keyID, reference); err != nil {
		return paymentstransport.PaymentLinkResponse{}, err
	}
	return s.payments.PaymentLink(ctx, reference)
}

// owned hides requests submitted by other keys or through the site.
func (s *Service) owned(ctx context.Context, keyID uuid.UUID, reference string) (requeststransport.RequestResponse, error) {
	req, err := s.requests.GetByReference(ctx, reference)
	if err != nil {
		return requeststransport.RequestResponse{}, err
	}
	if req.PartnerKeyID == nil || *req.PartnerKeyID != keyID {
		return requeststransport.RequestResponse{}, apperr.NotFound("request not found")
	}
	return req, nil
}

func toRequestView(r requeststransport.RequestResponse) RequestView {
	return RequestView{
		Reference:     r.Reference,
		Status:        r.Status,
		StatusLabel:   r.StatusLabel,
		PaymentStatus: r.PaymentStatus,
		AmountCents:   r.AmountCents,
		Currency:      r.Currency,
		ScheduledAt:   r.ScheduledAt,
		CompletedAt:   r.CompletedAt,
		CreatedAt:     r.CreatedAt,
		UpdatedAt:     r.UpdatedAt,
	}
}
