package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"raccordement_backend/internal/activity/audit"
	"raccordement_backend/internal/events"
	"raccordement_backend/internal/payments/processor"
	"raccordement_backend/internal/payments/repository"
	"raccordement_backend/internal/payments/transport"
	requestsservice "raccordement_backend/internal/requests/service"
	requeststransport "raccordement_backend/internal/requests/transport"
	"raccordement_backend/platform/apperr"
	"raccordement_backend/platform/logger"
	"raccordement_backend/platform/metrics"
	"raccordement_backend/platform/sanitize"

	"github.com/google/uuid"
)

// Payment statuses. They match the payment status mirrored on requests.
const (
	StatusPending  = requestsservice.PaymentPending
	StatusPaid     = requestsservice.PaymentPaid
	StatusFailed   = requestsservice.PaymentFailed
	StatusCanceled = requestsservice.PaymentCanceled
	StatusRefunded = requestsservice.PaymentRefunded
)

type Store interface {
	Create(ctx context.Context, p repository.CreateParams) (repository.Payment, error)
	GetByID(ctx context.Context, id uuid.UUID) (repository.Payment, error)
	GetByProcessorID(ctx context.Context, processorID string) (repository.Payment, error)
	LatestPending(ctx context.Context, requestID uuid.UUID) (repository.Payment, error)
	TransitionStatus(ctx context.Context, id uuid.UUID, p repository.StatusParams) (repository.Payment, bool, error)
	List(ctx context.Context, p repository.ListParams) ([]repository.Payment, int, error)
	StalePending(ctx context.Context, cutoff time.Time, limit int) ([]repository.Payment, error)
}

// Requests is the part of the requests service payments depend on.
type Requests interface {
	Get(ctx context.Context, id uuid.UUID) (requeststransport.RequestResponse, error)
	GetByReference(ctx context.Context, reference string) (requeststransport.RequestResponse, error)
	SetPaymentStatus(ctx context.Context, id uuid.UUID, status string) (requeststransport.RequestResponse, error)
}

// Deduper drops webhook events that were already handled.
type Deduper interface {
	Claim(ctx context.Context, eventID string) (bool, error)
	Release(ctx context.Context, eventID string) error
}

type Branding interface {
	CompanyName(ctx context.Context) string
}

type Service struct {
	store         Store
	processor     processor.Processor
	requests      Requests
	dedup         Deduper
	branding      Branding
	publicSiteURL string
	eventBus      events.Bus
	audit         audit.Recorder
	log           *logger.Logger
	now           func() time.Time
}

func New(store Store, proc processor.Processor, requests Requests, dedup Deduper, branding Branding, publicSiteURL string, eventBus events.Bus, recorder audit.Recorder, log *logger.Logger) *Service {
	return &Service{
		store:         store,
		processor:     proc,
		requests:      requests,
		dedup:         dedup,
		branding:      branding,
		publicSiteURL: strings.TrimRight(publicSiteURL, "/"),
		eventBus:      eventBus,
		audit:         recorder,
		log:           log,
		now:           time.Now,
	}
}

// CreateIntent starts (or resumes) the card payment of a request.
func (s *Service) CreateIntent(ctx context.Context, reference string) (transport.IntentResponse, error) {
	req, err := s.requests.GetByReference(ctx, reference)
	if err != nil {
		return transport.IntentResponse{}, err
	}
	if err := payable(req); err != nil {
		return transport.IntentResponse{}, err
	}

	if existing, err := s.store.LatestPending(ctx, req.ID); err == nil && existing.AmountCents == req.AmountCents {
		intent, err := s.processor.GetIntent(ctx, existing.ProcessorPaymentID)
		switch {
		case err != nil:
			s.log.Warn("retrieve pending intent failed", "paymentId", existing.ID, "error", err)
		case processor.Reusable(intent.Status):
			return s.intentResponse(existing, intent), nil
		default:
			if _, err := s.reconcile(ctx, existing, intent); err != nil {
				return transport.IntentResponse{}, err
			}
			if intent.Status == "succeeded" || intent.Status == "processing" {
				return transport.IntentResponse{}, apperr.Conflict("this request is already being paid")
			}
		}
	} else if err != nil && !apperr.Is(err, apperr.KindNotFound) {
		return transport.IntentResponse{}, err
	}

	intent, err := s.processor.CreateIntent(ctx, processor.IntentParams{
		Reference:      req.Reference,
		RequestID:      req.ID.String(),
		AmountCents:    req.AmountCents,
		Currency:       req.Currency,
		Email:          req.Email,
		Description:    "Accompagnement raccordement " + req.Reference,
		IdempotencyKey: fmt.Sprintf("%s-%d-%d", req.ID, req.AmountCents, s.now().Unix()/60),
	})
	if err != nil {
		return transport.IntentResponse{}, processorError(err)
	}
	email := req.Email
	p, err := s.store.Create(ctx, repository.CreateParams{
		RequestID:          req.ID,
		Reference:          req.Reference,
		ProcessorPaymentID: intent.ID,
		AmountCents:        intent.AmountCents,
		Currency:           req.Currency,
		ReceiptEmail:       &email,
	})
	if err != nil {
		return transport.IntentResponse{}, err
	}
	s.log.PaymentEvent(p.Reference, p.ProcessorPaymentID, p.Status, p.AmountCents)
	return s.intentResponse(p, intent), nil
}

// PaymentLink makes sure an intent exists and returns the hosted payment
// page partners send to their customers.
func (s *Service) PaymentLink(ctx context.Context, reference string) (transport.PaymentLinkResponse, error) {
	intent, err := s.CreateIntent(ctx, reference)
	if err != nil {
		return transport.PaymentLinkResponse{}, err
	}
	return transport.PaymentLinkResponse{
		Reference:   intent.Reference,
		URL:         s.publicSiteURL + "/paiement/" + intent.Reference,
		AmountCents: intent.AmountCents,
		Currency:    intent.Currency,
	}, nil
}

// Status reconciles a payment with the processor and returns the result.
// id is either our payment id or the processor's.
func (s *Service) Status(ctx context.Context, id string) (transport.StatusResponse, error) {
	var (
		p   repository.Payment
		err error
	)
	if parsed, parseErr := uuid.Parse(id); parseErr == nil {
		p, err = s.store.GetByID(ctx, parsed)
	} else {
		p, err = s.store.GetByProcessorID(ctx, id)
	}
	if err != nil {
		return transport.StatusResponse{}, err
	}

	if p.Status == StatusPending {
		intent, err := s.processor.GetIntent(ctx, p.ProcessorPaymentID)
		if err != nil {
			s.log.Warn("payment status reconciliation failed", "paymentId", p.ID, "error", err)
		} else if p, err = s.reconcile(ctx, p, intent); err != nil {
			return transport.StatusResponse{}, err
		}
	}
	return transport.StatusResponse{
		PaymentID:   p.ID,
		Reference:   p.Reference,
		Status:      p.Status,
		AmountCents: p.AmountCents,
		Currency:    p.Currency,
		PaidAt:      p.PaidAt,
	}, nil
}

var webhookStatus = map[string]string{
	processor.EventIntentSucceeded: StatusPaid,
	processor.EventIntentFailed:    StatusFailed,
	processor.EventIntentCanceled:  StatusCanceled,
	processor.EventChargeRefunded:  StatusRefunded,
}

// HandleWebhook verifies and applies one processor notification. Event ids
// already handled are ignored.
func (s *Service) HandleWebhook(ctx context.Context, payload []byte, signature string) error {
	evt, err := s.processor.ParseWebhook(payload, signature)
	if errors.Is(err, processor.ErrDisabled) {
		return apperr.Unavailable("payments are not configured", err)
	}
	if err != nil {
		metrics.Webhook("unknown", "invalid_signature")
		return apperr.BadRequest("invalid webhook signature")
	}

	status, known := webhookStatus[evt.Type]
	if !known {
		metrics.Webhook(evt.Type, "ignored")
		s.log.WebhookEvent("stripe", evt.ID, evt.Type, false)
		return nil
	}

	first, err := s.dedup.Claim(ctx, evt.ID)
	if err != nil {
		// Without Redis the idempotent status update still protects us.
		s.log.Warn("webhook dedup unavailable", "eventId", evt.ID, "error", err)
		first = true
	}
	if !first {
		metrics.Webhook(evt.Type, "duplicate")
		s.log.WebhookEvent("stripe", evt.ID, evt.Type, false)
		return nil
	}

	if err := s.applyWebhook(ctx, evt, status); err != nil {
		if relErr := s.dedup.Release(ctx, evt.ID); relErr != nil {
			s.log.Warn("release webhook event failed", "eventId", evt.ID, "error", relErr)
		}
		metrics.Webhook(evt.Type, "error")
		return err
	}
	metrics.Webhook(evt.Type, "handled")
	s.log.WebhookEvent("stripe", evt.ID, evt.Type, true)
	return nil
}

func (s *Service) applyWebhook(ctx context.Context, evt processor.Event, status string) error {
	p, err := s.store.GetByProcessorID(ctx, evt.PaymentIntentID)
	if apperr.Is(err, apperr.KindNotFound) {
		s.log.Warn("webhook for unknown payment", "eventId", evt.ID, "intentId", evt.PaymentIntentID, "reference", evt.Reference)
		return nil
	}
	if err != nil {
		return err
	}
	_, err = s.applyStatus(ctx, nil, p, status, statusDetails{reason: evt.FailureReason})
	return err
}

// ReconcilePending re-reads payments stuck in pending, for missed webhooks.
func (s *Service) ReconcilePending(ctx context.Context, olderThan time.Duration, limit int) (int, error) {
	stale, err := s.store.StalePending(ctx, s.now().Add(-olderThan), limit)
	if err != nil {
		return 0, err
	}
	changed := 0
	for _, p := range stale {
		intent, err := s.processor.GetIntent(ctx, p.ProcessorPaymentID)
		if err != nil {
			s.log.Warn("reconcile payment failed", "paymentId", p.ID, "error", err)
			continue
		}
		updated, err := s.reconcile(ctx, p, intent)
		if err != nil {
			return changed, err
		}
		if updated.Status != p.Status {
			changed++
		}
	}
	return changed, nil
}

// reconcile maps a processor intent onto the ledger.
func (s *Service) reconcile(ctx context.Context, p repository.Payment, intent processor.Intent) (repository.Payment, error) {
	status := intentStatus(intent)
	if status == "" {
		return p, nil
	}
	return s.applyStatus(ctx, nil, p, status, statusDetails{reason: intent.FailureReason})
}

func intentStatus(intent processor.Intent) string {
	switch intent.Status {
	case "succeeded":
		return StatusPaid
	case "canceled":
		return StatusCanceled
	case "requires_payment_method":
		if intent.FailureReason != "" {
			return StatusFailed
		}
	}
	return ""
}

// CanTransition reports whether a payment may move from one status to
// another. Paid only moves to refunded; refunded is final.
func CanTransition(from, to string) bool {
	if from == to {
		return false
	}
	switch from {
	case StatusRefunded:
		return false
	case StatusPaid:
		return to == StatusRefunded
	}
	return to == StatusPaid || to == StatusFailed || to == StatusCanceled
}

type statusDetails struct {
	reason         string
	refundedAmount *int64
}

// applyStatus is the single place a payment status changes. Repeated or
// stale updates are no-ops and publish nothing.
func (s *Service) applyStatus(ctx context.Context, actorID *uuid.UUID, p repository.Payment, status string, d statusDetails) (repository.Payment, error) {
	if !CanTransition(p.Status, status) {
		return p, nil
	}
	var reason *string
	if d.reason != "" {
		r := sanitize.Line(d.reason)
		reason = &r
	}
	updated, changed, err := s.store.TransitionStatus(ctx, p.ID, repository.StatusParams{
		From:                p.Status,
		To:                  status,
		FailureReason:       reason,
		At:                  s.now(),
		RefundedAmountCents: d.refundedAmount,
	})
	if err != nil {
		return repository.Payment{}, err
	}
	if !changed {
		return updated, nil
	}

	req, err := s.requests.Get(ctx, p.RequestID)
	if err != nil {
		return updated, err
	}
	// A failed retry must not hide an earlier successful payment.
	if req.PaymentStatus != StatusPaid || status == StatusRefunded {
		if _, err := s.requests.SetPaymentStatus(ctx, p.RequestID, status); err != nil {
			return updated, err
		}
	}

	metrics.PaymentStatus(status)
	s.log.PaymentEvent(updated.Reference, updated.ProcessorPaymentID, status, updated.AmountCents)
	s.eventBus.Publish(ctx, events.PaymentStatusChanged{
		BaseEvent:   events.NewBaseEvent(),
		PaymentID:   updated.ID,
		RequestID:   updated.RequestID,
		Reference:   updated.Reference,
		OldStatus:   p.Status,
		NewStatus:   status,
		AmountCents: updated.AmountCents,
		Email:       req.Email,
		FirstName:   req.FirstName,
		Reason:      d.reason,
	})
	s.audit.Record(ctx, audit.Entry{
		ActorID:    actorID,
		Action:     "payment.status_changed",
		EntityType: audit.EntityPayment,
		EntityID:   updated.ID.String(),
		Details:    map[string]any{"from": p.Status, "to": status, "reference": updated.Reference},
	})
	return updated, nil
}

func payable(req requeststransport.RequestResponse) error {
	switch {
	case req.PaymentStatus == StatusPaid:
		return apperr.Conflict("this request has already been paid")
	case req.PaymentStatus == StatusRefunded:
		return apperr.Conflict("this request has been refunded")
	case req.Status == requestsservice.StatusCanceled:
		return apperr.Conflict("this request has been canceled")
	case req.AmountCents <= 0:
		return apperr.Validation("this request has no amount to pay")
	}
	return nil
}

func (s *Service) intentResponse(p repository.Payment, intent processor.Intent) transport.IntentResponse {
	return transport.IntentResponse{
		PaymentID:      p.ID,
		ProcessorID:    p.ProcessorPaymentID,
		ClientSecret:   intent.ClientSecret,
		PublishableKey: s.processor.PublishableKey(),
		Reference:      p.Reference,
		AmountCents:    p.AmountCents,
		Currency:       p.Currency,
	}
}

func processorError(err error) error {
	if errors.Is(err, processor.ErrDisabled) {
		return apperr.Unavailable("online payment is not available", err)
	}
	return apperr.Unavailable("the payment processor is unreachable", err)
}
