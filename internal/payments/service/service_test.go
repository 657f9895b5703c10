package service

import (
	"bytes"
	"context"
	"errors"
	"sync"
	"testing"
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

	"github.com/google/uuid"
)

type fakeStore struct {
	mu       sync.Mutex
	payments map[uuid.UUID]repository.Payment
}

func newFakeStore() *fakeStore {
	return &fakeStore{payments: map[uuid.UUID]repository.Payment{}}
}

func (f *fakeStore) Create(_ context.Context, p repository.CreateParams) (repository.Payment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	pay := repository.Payment{
		ID: uuid.New(), RequestID: p.RequestID, Reference: p.Reference, ProcessorPaymentID: p.ProcessorPaymentID,
		AmountCents: p.AmountCents, Currency: p.Currency, Status: StatusPending, ReceiptEmail: p.ReceiptEmail,
		CreatedAt: time.Now(), UpdatedAt: time.Now(),
	}
	f.payments[pay.ID] = pay
	return pay, nil
}

func (f *fakeStore) GetByID(_ context.Context, id uuid.UUID) (repository.Payment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.payments[id]
	if !ok {
		return repository.Payment{}, apperr.NotFound("payment not found")
	}
	return p, nil
}

func (f *fakeStore) GetByProcessorID(_ context.Context, processorID string) (repository.Payment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, p := range f.payments {
		if p.ProcessorPaymentID == processorID {
			return p, nil
		}
	}
	return repository.Payment{}, apperr.NotFound("payment not found")
}

func (f *fakeStore) LatestPending(_ context.Context, requestID uuid.UUID) (repository.Payment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var latest *repository.Payment
	for _, p := range f.payments {
		if p.RequestID == requestID && p.Status == StatusPending {
			if latest == nil || p.CreatedAt.After(latest.CreatedAt) {
				cp := p
				latest = &cp
			}
		}
	}
	if latest == nil {
		return repository.Payment{}, apperr.NotFound("payment not found")
	}
	return *latest, nil
}

func (f *fakeStore) TransitionStatus(_ context.Context, id uuid.UUID, p repository.StatusParams) (repository.Payment, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	pay := f.payments[id]
	if pay.Status != p.From {
		return pay, false, nil
	}
	pay.Status = p.To
	switch p.To {
	case StatusPaid:
		at := p.At
		pay.PaidAt = &at
	case StatusRefunded:
		at := p.At
		pay.RefundedAt = &at
		pay.RefundedAmountCents = pay.AmountCents
		if p.RefundedAmountCents != nil {
			pay.RefundedAmountCents = *p.RefundedAmountCents
		}
	case StatusFailed, StatusCanceled:
		pay.FailureReason = p.FailureReason
	}
	f.payments[id] = pay
	return pay, true, nil
}

func (f *fakeStore) List(context.Context, repository.ListParams) ([]repository.Payment, int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]repository.Payment, 0, len(f.payments))
	for _, p := range f.payments {
		out = append(out, p)
	}
	return out, len(out), nil
}

func (f *fakeStore) StalePending(_ context.Context, cutoff time.Time, _ int) ([]repository.Payment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []repository.Payment
	for _, p := range f.payments {
		if p.Status == StatusPending && p.CreatedAt.Before(cutoff) {
			out = append(out, p)
		}
	}
	return out, nil
}

type fakeProcessor struct {
	mu       sync.Mutex
	intents  map[string]processor.Intent
	created  int
	refunds  []int64
	event    processor.Event
	parseErr error
}

func newFakeProcessor() *fakeProcessor {
	return &fakeProcessor{intents: map[string]processor.Intent{}}
}

func (p *fakeProcessor) CreateIntent(_ context.Context, in processor.IntentParams) (processor.Intent, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.created++
	intent := processor.Intent{
		ID: "pi_" + uuid.NewString()[:8], ClientSecret: "secret", Status: "requires_payment_method",
		AmountCents: in.AmountCents, Currency: in.Currency,
	}
	p.intents[intent.ID] = intent
	return intent, nil
}

func (p *fakeProcessor) GetIntent(_ context.Context, id string) (processor.Intent, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	intent, ok := p.intents[id]
	if !ok {
		return processor.Intent{}, errors.New("no such intent")
	}
	return intent, nil
}

func (p *fakeProcessor) setStatus(id, status, reason string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	intent := p.intents[id]
	intent.Status = status
	intent.FailureReason = reason
	p.intents[id] = intent
}

func (p *fakeProcessor) Refund(_ context.Context, _ string, amount int64) error {
	p.refunds = append(p.refunds, amount)
	return nil
}

func (p *fakeProcessor) ParseWebhook([]byte, string) (processor.Event, error) {
	return p.event, p.parseErr
}

func (p *fakeProcessor) PublishableKey() string { return "pk_test" }

type fakeRequests struct {
	mu   sync.Mutex
	reqs map[uuid.UUID]requeststransport.RequestResponse
	sets []string
}

func (r *fakeRequests) Get(_ context.Context, id uuid.UUID) (requeststransport.RequestResponse, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	req, ok := r.reqs[id]
	if !ok {
		return req, apperr.NotFound("service request not found")
	}
	return req, nil
}

func (r *fakeRequests) GetByReference(_ context.Context, reference string) (requeststransport.RequestResponse, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, req := range r.reqs {
		if req.Reference == reference {
			return req, nil
		}
	}
	return requeststransport.RequestResponse{}, apperr.NotFound("service request not found")
}

func (r *fakeRequests) SetPaymentStatus(_ context.Context, id uuid.UUID, status string) (requeststransport.RequestResponse, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	req := r.reqs[id]
	req.PaymentStatus = status
	r.reqs[id] = req
	r.sets = append(r.sets, status)
	return req, nil
}

type memoryDedup struct {
	mu   sync.Mutex
	seen map[string]bool
}

func (d *memoryDedup) Claim(_ context.Context, id string) (bool, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.seen[id] {
		return false, nil
	}
	d.seen[id] = true
	return true, nil
}

func (d *memoryDedup) Release(_ context.Context, id string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.seen, id)
	return nil
}

type brand string

func (b brand) CompanyName(context.Context) string { return string(b) }

type recordingBus struct {
	mu     sync.Mutex
	events []events.PaymentStatusChanged
}

func (b *recordingBus) Publish(_ context.Context, e events.Event) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if pc, ok := e.(events.PaymentStatusChanged); ok {
		b.events = append(b.events, pc)
	}
}

func (b *recordingBus) PublishSync(ctx context.Context, e events.Event) error {
	b.Publish(ctx, e)
	return nil
}

func (b *recordingBus) Subscribe(string, events.Handler) {}

type fixture struct {
	svc   *Service
	store *fakeStore
	proc  *fakeProcessor
	reqs  *fakeRequests
	bus   *recordingBus
	req   requeststransport.RequestResponse
}

func newFixture() fixture {
	req := requeststransport.RequestResponse{
		ID: uuid.New(), Reference: "RAC-2026-ABCDEF", FirstName: "Camille", LastName: "Martin",
		Email: "camille@example.fr", AmountCents: 12900, Currency: "eur",
		Status: requestsservice.StatusNew, PaymentStatus: StatusPending, ConnectionType: "nouveau_raccordement",
		Address: requeststransport.AddressResponse{Street: "3 place Bellecour", PostalCode: "69002", City: "Lyon"},
	}
	f := fixture{
		store: newFakeStore(),
		proc:  newFakeProcessor(),
		reqs:  &fakeRequests{reqs: map[uuid.UUID]requeststransport.RequestResponse{req.ID: req}},
		bus:   &recordingBus{},
		req:   req,
	}
	f.svc = New(f.store, f.proc, f.reqs, &memoryDedup{seen: map[string]bool{}}, brand("Raccordement Électrique"),
		"https://example.fr/", f.bus, audit.Nop{}, logger.Discard())
	return f
}

func TestCreateIntentReusesPendingIntent(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	first, err := f.svc.CreateIntent(ctx, f.req.Reference)
	if err != nil {
		t.Fatalf("create intent: %v", err)
	}
	if first.PublishableKey != "pk_test" || first.ClientSecret == "" || first.AmountCents != 12900 {
		t.Fatalf("unexpected response %+v", first)
	}
	second, err := f.svc.CreateIntent(ctx, f.req.Reference)
	if err != nil {
		t.Fatalf("create intent again: %v", err)
	}
	if second.PaymentID != first.PaymentID || f.proc.created != 1 {
		t.Fatalf("expected the pending intent to be reused, created=%d", f.proc.created)
	}
}

func TestCreateIntentAfterFailureStartsNewIntent(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	first, _ := f.svc.CreateIntent(ctx, f.req.Reference)
	f.proc.setStatus(first.ProcessorID, "canceled", "")

	second, err := f.svc.CreateIntent(ctx, f.req.Reference)
	if err != nil {
		t.Fatalf("create intent: %v", err)
	}
	if second.PaymentID == first.PaymentID || f.proc.created != 2 {
		t.Fatal("expected a fresh intent after cancellation")
	}
	old, _ := f.store.GetByID(ctx, first.PaymentID)
	if old.Status != StatusCanceled {
		t.Fatalf("old payment should be canceled, got %s", old.Status)
	}
}

func TestCreateIntentOnPaidRequestConflicts(t *testing.T) {
	f := newFixture()
	req := f.req
	req.PaymentStatus = StatusPaid
	f.reqs.reqs[req.ID] = req

	_, err := f.svc.CreateIntent(context.Background(), req.Reference)
	if !apperr.Is(err, apperr.KindConflict) {
		t.Fatalf("expected conflict, got %v", err)
	}
}

func TestWebhookAppliesOnceAndDropsDuplicates(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	intent, _ := f.svc.CreateIntent(ctx, f.req.Reference)

	f.proc.event = processor.Event{ID: "evt_1", Type: processor.EventIntentSucceeded, PaymentIntentID: intent.ProcessorID}
	for i := 0; i < 3; i++ {
		if err := f.svc.HandleWebhook(ctx, []byte("{}"), "sig"); err != nil {
			t.Fatalf("webhook %d: %v", i, err)
		}
	}
	// A different event id for the same transition is also a no-op.
	f.proc.event.ID = "evt_2"
	if err := f.svc.HandleWebhook(ctx, []byte("{}"), "sig"); err != nil {
		t.Fatalf("webhook: %v", err)
	}

	if len(f.bus.events) != 1 {
		t.Fatalf("expected one status change event, got %d", len(f.bus.events))
	}
	got := f.bus.events[0]
	if got.OldStatus != StatusPending || got.NewStatus != StatusPaid || got.Email != "camille@example.fr" {
		t.Fatalf("unexpected event %+v", got)
	}
	if len(f.reqs.sets) != 1 || f.reqs.sets[0] != StatusPaid {
		t.Fatalf("request payment status updates: %v", f.reqs.sets)
	}
}

func TestWebhookInvalidSignature(t *testing.T) {
	f := newFixture()
	f.proc.parseErr = processor.ErrInvalidSignature
	err := f.svc.HandleWebhook(context.Background(), []byte("{}"), "bad")
	if !apperr.Is(err, apperr.KindBadRequest) {
		t.Fatalf("expected bad request, got %v", err)
	}
}

func TestWebhookUnknownPaymentIsAcknowledged(t *testing.T) {
	f := newFixture()
	f.proc.event = processor.Event{ID: "evt_9", Type: processor.EventIntentFailed, PaymentIntentID: "pi_missing"}
	if err := f.svc.HandleWebhook(context.Background(), []byte("{}"), "sig"); err != nil {
		t.Fatalf("unknown payment should be acknowledged, got %v", err)
	}
}

func TestFailedRetryDoesNotHidePaidRequest(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	intent, _ := f.svc.CreateIntent(ctx, f.req.Reference)
	p, _ := f.store.GetByID(ctx, intent.PaymentID)

	if _, err := f.svc.applyStatus(ctx, nil, p, StatusPaid, statusDetails{}); err != nil {
		t.Fatalf("apply paid: %v", err)
	}
	paid, _ := f.store.GetByID(ctx, intent.PaymentID)
	if _, err := f.svc.applyStatus(ctx, nil, paid, StatusFailed, statusDetails{reason: "late decline"}); err != nil {
		t.Fatalf("apply failed: %v", err)
	}
	after, _ := f.store.GetByID(ctx, intent.PaymentID)
	if after.Status != StatusPaid {
		t.Fatalf("paid payment must not become failed, got %s", after.Status)
	}
	if f.reqs.reqs[f.req.ID].PaymentStatus != StatusPaid {
		t.Fatal("request should stay paid")
	}
}

func TestTransitionTable(t *testing.T) {
	cases := []struct {
		from, to string
		want     bool
	}{
		{StatusPending, StatusPaid, true},
		{StatusPending, StatusFailed, true},
		{StatusFailed, StatusPaid, true},
		{StatusPending, StatusRefunded, false},
		{StatusPaid, StatusRefunded, true},
		{StatusPaid, StatusFailed, false},
		{StatusPaid, StatusPaid, false},
		{StatusRefunded, StatusPaid, false},
	}
	for _, tc := range cases {
		if got := CanTransition(tc.from, tc.to); got != tc.want {
			t.Errorf("CanTransition(%s, %s) = %v, want %v", tc.from, tc.to, got, tc.want)
		}
	}
}

func TestStatusReconcilesWithProcessor(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	intent, _ := f.svc.CreateIntent(ctx, f.req.Reference)
	f.proc.setStatus(intent.ProcessorID, "succeeded", "")

	resp, err := f.svc.Status(ctx, intent.ProcessorID)
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	if resp.Status != StatusPaid || resp.PaidAt == nil {
		t.Fatalf("unexpected status %+v", resp)
	}
	byID, err := f.svc.Status(ctx, intent.PaymentID.String())
	if err != nil || byID.Status != StatusPaid {
		t.Fatalf("status by id: %+v %v", byID, err)
	}
}

func TestRefund(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	intent, _ := f.svc.CreateIntent(ctx, f.req.Reference)

	if _, err := f.svc.Refund(ctx, uuid.New(), intent.PaymentID, transport.RefundRequest{}); !apperr.Is(err, apperr.KindConflict) {
		t.Fatalf("refunding a pending payment should conflict, got %v", err)
	}

	f.proc.setStatus(intent.ProcessorID, "succeeded", "")
	if _, err := f.svc.Status(ctx, intent.ProcessorID); err != nil {
		t.Fatalf("status: %v", err)
	}
	tooMuch := int64(50000)
	if _, err := f.svc.Refund(ctx, uuid.New(), intent.PaymentID, transport.RefundRequest{AmountCents: &tooMuch}); !apperr.Is(err, apperr.KindValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}

	resp, err := f.svc.Refund(ctx, uuid.New(), intent.PaymentID, transport.RefundRequest{})
	if err != nil {
		t.Fatalf("refund: %v", err)
	}
	if resp.Status != StatusRefunded || resp.RefundedAmountCents != 12900 || len(f.proc.refunds) != 1 {
		t.Fatalf("unexpected refund %+v, processor refunds %v", resp, f.proc.refunds)
	}
	if f.reqs.reqs[f.req.ID].PaymentStatus != StatusRefunded {
		t.Fatal("request should be marked refunded")
	}
}

func TestReceiptOnlyForReceivedPayments(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	intent, _ := f.svc.CreateIntent(ctx, f.req.Reference)

	if _, _, err := f.svc.Receipt(ctx, intent.PaymentID); !apperr.Is(err, apperr.KindConflict) {
		t.Fatalf("expected conflict for pending payment, got %v", err)
	}

	f.proc.setStatus(intent.ProcessorID, "succeeded", "")
	if _, err := f.svc.Status(ctx, intent.ProcessorID); err != nil {
		t.Fatalf("status: %v", err)
	}
	out, name, err := f.svc.Receipt(ctx, intent.PaymentID)
	if err != nil {
		t.Fatalf("receipt: %v", err)
	}
	if name != "recu-RAC-2026-ABCDEF.pdf" || !bytes.HasPrefix(out, []byte("%PDF")) {
		t.Fatalf("unexpected receipt %q", name)
	}
}

func TestPaymentLinkPointsAtPublicSite(t *testing.T) {
	f := newFixture()
	link, err := f.svc.PaymentLink(context.Background(), f.req.Reference)
	if err != nil {
		t.Fatalf("payment link: %v", err)
	}
	if link.URL != "https://example.fr/paiement/RAC-2026-ABCDEF" {
		t.Fatalf("unexpected url %q", link.URL)
	}
}

func TestReconcilePending(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	intent, _ := f.svc.CreateIntent(ctx, f.req.Reference)
	f.proc.setStatus(intent.ProcessorID, "requires_payment_method", "card_declined")
	f.svc.now = func() time.Time { return time.Now().Add(time.Hour) }

	changed, err := f.svc.ReconcilePending(ctx, 30*time.Minute, 50)
	if err != nil || changed != 1 {
		t.Fatalf("reconcile: %d %v", changed, err)
	}
	p, _ := f.store.GetByID(ctx, intent.PaymentID)
	if p.Status != StatusFailed || p.FailureReason == nil || *p.FailureReason != "card_declined" {
		t.Fatalf("unexpected payment %+v", p)
	}
}
