package transport

import (
	"time"

	"github.com/google/uuid"
)

type IntentResponse struct {
	PaymentID      uuid.UUID `json:"paymentId"`
	ProcessorID    string    `json:"processorPaymentId"`
	ClientSecret   string    `json:"clientSecret"`
	PublishableKey string    `json:"publishableKey"`
	Reference      string    `json:"reference"`
	AmountCents    int64     `json:"amountCents"`
	Currency       string    `json:"currency"`
}

type StatusResponse struct {
	PaymentID   uuid.UUID  `json:"paymentId"`
	Reference   string     `json:"reference"`
	Status      string     `json:"status"`
	AmountCents int64      `json:"amountCents"`
	Currency    string     `json:"currency"`
	PaidAt      *time.Time `json:"paidAt,omitempty"`
}

// PaymentLinkResponse is returned to partners.
type PaymentLinkResponse struct {
	Reference   string `json:"reference"`
	URL         string `json:"url"`
	AmountCents int64  `json:"amountCents"`
	Currency    string `json:"currency"`
}

type ListRequest struct {
	Search    string `form:"search" validate:"max=100"`
	Status    string `form:"status" validate:"omitempty,oneof=pending paid failed canceled refunded"`
	RequestID string `form:"requestId" validate:"omitempty,uuid"`
	DateFrom  string `form:"dateFrom" validate:"omitempty,datetime=2006-01-02"`
	DateTo    string `form:"dateTo" validate:"omitempty,datetime=2006-01-02"`
	SortBy    string `form:"sortBy" validate:"omitempty,oneof=createdAt paidAt amount status reference"`
	SortOrder string `form:"sortOrder" validate:"omitempty,oneof=asc desc"`
	Page      int    `form:"page"`
	PageSize  int    `form:"pageSize"`
}

type RefundRequest struct {
	AmountCents *int64  `json:"amountCents" validate:"omitempty,gt=0"`
	Reason      *string `json:"reason" validate:"omitempty,max=500"`
}

type PaymentResponse struct {
	ID                  uuid.UUID  `json:"id"`
	RequestID           uuid.UUID  `json:"requestId"`
	Reference           string     `json:"reference"`
	ProcessorPaymentID  string     `json:"processorPaymentId"`
	AmountCents         int64      `json:"amountCents"`
	Currency            string     `json:"currency"`
	Status              string     `json:"status"`
	FailureReason       *string    `json:"failureReason,omitempty"`
	ReceiptEmail        *string    `json:"receiptEmail,omitempty"`
	PaidAt              *time.Time `json:"paidAt,omitempty"`
	RefundedAt          *time.Time `json:"refundedAt,omitempty"`
	RefundedAmountCents int64      `json:"refundedAmountCents"`
	CreatedAt           time.Time  `json:"createdAt"`
	UpdatedAt           time.Time  `json:"updatedAt"`
}

type ListResponse struct {
	Items      []PaymentResponse `json:"items"`
	Total      int               `json:"total"`
	Page       int               `json:"page"`
	PageSize   int               `json:"pageSize"`
	TotalPages int               `json:"totalPages"`
}
