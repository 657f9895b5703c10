package processor

import (
	"context"
	"fmt"

	"github.com/stripe/stripe-go/v82"
	"github.com/stripe/stripe-go/v82/client"
	"github.com/stripe/stripe-go/v82/webhook"
	"github.com/tidwall/gjson"
)

type Config interface {
	GetStripeSecretKey() string
	GetStripePublishableKey() string
	GetStripeWebhookSecret() string
	IsPaymentsEnabled() bool
}

// Stripe implements Processor with payment intents.
type Stripe struct {
	api            *client.API
	publishableKey string
	webhookSecret  string
}

// New returns a Stripe processor, or Disabled when no secret key is set.
func New(cfg Config) Processor {
	if !cfg.IsPaymentsEnabled() {
		return Disabled{}
	}
	return &Stripe{
		api:            client.New(cfg.GetStripeSecretKey(), nil),
		publishableKey: cfg.GetStripePublishableKey(),
		webhookSecret:  cfg.GetStripeWebhookSecret(),
	}
}

func (s *Stripe) PublishableKey() string { return s.publishableKey }

func (s *Stripe) CreateIntent(ctx context.Context, p IntentParams) (Intent, error) {
	params := &stripe.PaymentIntentParams{
		Amount:       stripe.Int64(p.AmountCents),
		Currency:     stripe.String(p.Currency),
		Description:  stripe.String(p.Description),
		ReceiptEmail: stripe.String(p.Email),
		AutomaticPaymentMethods: &stripe.PaymentIntentAutomaticPaymentMethodsParams{
			Enabled: stripe.Bool(true),
		},
	}
	params.Context = ctx
	params.AddMetadata("reference", p.Reference)
	params.AddMetadata("request_id", p.RequestID)
	if p.IdempotencyKey != "" {
		params.SetIdempotencyKey(p.IdempotencyKey)
	}

	pi, err := s.api.PaymentIntents.New(params)
	if err != nil {
		return Intent{}, fmt.Errorf("create payment intent: %w", err)
	}
	return toIntent(pi), nil
}

func (s *Stripe) GetIntent(ctx context.Context, id string) (Intent, error) {
	params := &stripe.PaymentIntentParams{}
	params.Context = ctx
	pi, err := s.api.PaymentIntents.Get(id, params)
	if err != nil {
		return Intent{}, fmt.Errorf("retrieve payment intent %s: %w", id, err)
	}
	return toIntent(pi), nil
}

func (s *Stripe) Refund(ctx context.Context, intentID string, amountCents int64) error {
	params := &stripe.RefundParams{PaymentIntent: stripe.String(intentID)}
	params.Context = ctx
	if amountCents > 0 {
		params.Amount = stripe.Int64(amountCents)
	}
	if _, err := s.api.Refunds.New(params); err != nil {
		return fmt.Errorf("refund %s: %w", intentID, err)
	}
	return nil
}

// ParseWebhook verifies the Stripe-Signature header and extracts the
// payment intent the event is about.
func (s *Stripe) ParseWebhook(payload []byte, signature string) (Event, error) {
	evt, err := webhook.ConstructEventWithOptions(payload, signature, s.webhookSecret, webhook.ConstructEventOptions{
		IgnoreAPIVersionMismatch: true,
	})
	if err != nil {
		return Event{}, fmt.Errorf("%w: %v", ErrInvalidSignature, err)
	}
	return eventFromPayload(evt.ID, string(evt.Type), evt.Data.Raw), nil
}

// eventFromPayload reads the fields we need from the event object. For
// charges the intent id sits in payment_intent, for intents in id.
func eventFromPayload(id, eventType string, object []byte) Event {
	obj := gjson.ParseBytes(object)
	e := Event{ID: id, Type: eventType}
	switch obj.Get("object").String() {
	case "charge":
		e.PaymentIntentID = obj.Get("payment_intent").String()
		e.FailureReason = obj.Get("failure_message").String()
	default:
		e.PaymentIntentID = obj.Get("id").String()
		e.FailureReason = obj.Get("last_payment_error.message").String()
	}
	e.Reference = obj.Get("metadata.reference").String()
	return e
}

func toIntent(pi *stripe.PaymentIntent) Intent {
	in := Intent{
		ID:           pi.ID,
		ClientSecret: pi.ClientSecret,
		Status:       string(pi.Status),
		AmountCents:  pi.Amount,
		Currency:     string(pi.Currency),
	}
	if pi.LastPaymentError != nil {
		in.FailureReason = pi.LastPaymentError.Msg
	}
	return in
}
