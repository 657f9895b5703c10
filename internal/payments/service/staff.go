package service

import (
	"context"
	"fmt"
	"time"

	"raccordement_backend/internal/payments/repository"
	"raccordement_backend/internal/payments/transport"
	"raccordement_backend/internal/pdf"
	requestsservice "raccordement_backend/internal/requests/service"
	"raccordement_backend/platform/apperr"
	"raccordement_backend/platform/sanitize"

	"github.com/google/uuid"
)

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
	if req.RequestID != "" {
		id, err := uuid.Parse(req.RequestID)
		if err != nil {
			return transport.ListResponse{}, apperr.Validation("invalid requestId")
		}
		params.RequestID = &id
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

	payments, total, err := s.store.List(ctx, params)
	if err != nil {
		return transport.ListResponse{}, err
	}
	items := make([]transport.PaymentResponse, 0, len(payments))
	for _, p := range payments {
		items = append(items, ToResponse(p))
	}
	return transport.ListResponse{
		Items:      items,
		Total:      total,
		Page:       page,
		PageSize:   pageSize,
		TotalPages: (total + pageSize - 1) / pageSize,
	}, nil
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (transport.PaymentResponse, error) {
	p, err := s.store.GetByID(ctx, id)
	if err != nil {
		return transport.PaymentResponse{}, err
	}
	return ToResponse(p), nil
}

// Refund returns money to the customer. Without an amount the whole
// payment is refunded.
func (s *Service) Refund(ctx context.Context, actorID, id uuid.UUID, req transport.RefundRequest) (transport.PaymentResponse, error) {
	p, err := s.store.GetByID(ctx, id)
	if err != nil {
		return transport.PaymentResponse{}, err
	}
	if p.Status != StatusPaid {
		return transport.PaymentResponse{}, apperr.Conflict("only paid payments can be refunded")
	}
	amount := p.AmountCents
	if req.AmountCents != nil {
		if *req.AmountCents > p.AmountCents {
			return transport.PaymentResponse{}, apperr.Validation("refund exceeds the paid amount")
		}
		amount = *req.AmountCents
	}

	if err := s.processor.Refund(ctx, p.ProcessorPaymentID, amount); err != nil {
		return transport.PaymentResponse{}, processorError(err)
	}
	reason := ""
	if req.Reason != nil {
		reason = *req.Reason
	}
	updated, err := s.applyStatus(ctx, &actorID, p, StatusRefunded, statusDetails{reason: reason, refundedAmount: &amount})
	if err != nil {
		return transport.PaymentResponse{}, err
	}
	return ToResponse(updated), nil
}

// Receipt renders the PDF receipt of a payment and its file name.
func (s *Service) Receipt(ctx context.Context, id uuid.UUID) ([]byte, string, error) {
	p, err := s.store.GetByID(ctx, id)
	if err != nil {
		return nil, "", err
	}
	if p.Status != StatusPaid && p.Status != StatusRefunded {
		return nil, "", apperr.Conflict("a receipt is only available once the payment is received")
	}
	req, err := s.requests.Get(ctx, p.RequestID)
	if err != nil {
		return nil, "", err
	}

	data := pdf.ReceiptData{
		CompanyName:     s.branding.CompanyName(ctx),
		Reference:       p.Reference,
		CustomerName:    req.FirstName + " " + req.LastName,
		CustomerEmail:   req.Email,
		AddressLine:     req.Address.Street,
		PostalCity:      req.Address.PostalCode + " " + req.Address.City,
		ConnectionLabel: requestsservice.ConnectionLabel(req.ConnectionType),
		AmountCents:     p.AmountCents,
		Currency:        p.Currency,
		Status:          p.Status,
		PaidAt:          p.PaidAt,
		RefundedAt:      p.RefundedAt,
		ProcessorID:     p.ProcessorPaymentID,
		IssuedAt:        s.now(),
	}
	if req.CompanyName != nil {
		data.CompanyClient = *req.CompanyName
	}
	if s.publicSiteURL != "" {
		data.TrackingURL = s.publicSiteURL + "/suivi/" + p.Reference
	}

	out, err := pdf.GenerateReceipt(data)
	if err != nil {
		return nil, "", fmt.Errorf("render receipt %s: %w", p.Reference, err)
	}
	return out, "recu-" + p.Reference + ".pdf", nil
}

func ToResponse(p repository.Payment) transport.PaymentResponse {
	return transport.PaymentResponse{
		ID:                  p.ID,
		RequestID:           p.RequestID,
		Reference:           p.Reference,
		ProcessorPaymentID:  p.ProcessorPaymentID,
		AmountCents:         p.AmountCents,
		Currency:            p.Currency,
		Status:              p.Status,
		FailureReason:       p.FailureReason,
		ReceiptEmail:        p.ReceiptEmail,
		PaidAt:              p.PaidAt,
		RefundedAt:          p.RefundedAt,
		RefundedAmountCents: p.RefundedAmountCents,
		CreatedAt:           p.CreatedAt,
		UpdatedAt:           p.UpdatedAt,
	}
}
