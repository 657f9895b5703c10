// Package processor talks to the card payment processor.
package processor

import (
	"context"
	"errors"
)

// Webhook event types the payments service reacts to.
const (
	EventIntentSucceeded = "payment_intent.succeeded"
	EventIntentFailed    = "payment_intent.payment_failed"
	EventIntentCanceled  = "payment_intent.canceled"
	EventChargeRefunded  = "charge.refunded"
)

// ErrDisabled is returned when no processor key is configured.
var ErrDisabled = errors.New("payments are not configured")

// ErrInvalidSignature is returned for webhook payloads that fail the
// signature check.
var ErrInvalidSignature = errors.New("invalid webhook signature")

type IntentParams struct {
	Reference   string
	RequestID   string
	AmountCents int64
	Currency    string
	Email       string
	Description string
	// IdempotencyKey makes retried creations return the same intent.
	IdempotencyKey string
}

// Intent is the processor-side state of a payment.
type Intent struct {
	ID            string
	ClientSecret  string
	Status        string
	AmountCents   int64
	Currency      string
	FailureReason string
}

// Event is a verified webhook notification.
type Event struct {
	ID              string
	Type            string
	PaymentIntentID string
	FailureReason   string
	Reference       string
}

type Processor interface {
	CreateIntent(ctx context.Context, p IntentParams) (Intent, error)
	GetIntent(ctx context.Context, id string) (Intent, error)
	Refund(ctx context.Context, intentID string, amountCents int64) error
	ParseWebhook(payload []byte, signature string) (Event, error)
	PublishableKey() string
}

// Disabled is used when payments are not configured.
type Disabled struct{}

func (Disabled) CreateIntent(context.Context, IntentParams) (Intent, error) {
	return Intent{}, ErrDisabled
}

func (Disabled) GetIntent(context.Context, string) (Intent, error) { return Intent{}, ErrDisabled }

func (Disabled) Refund(context.Context, string, int64) error { return ErrDisabled }

func (Disabled) ParseWebhook([]byte, string) (Event, error) { return Event{}, ErrDisabled }

func (Disabled) PublishableKey() string { return "" }

// Reusable reports whether an intent can still be confirmed by the customer.
func Reusable(status string) bool {
	switch status {
	case "requires_payment_method", "requires_confirmation", "requires_action":
		return true
	}
	return false
}
