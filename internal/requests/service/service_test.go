package service

import (
	"context"
	"regexp"
	"sync"
	"testing"
	"time"

	"raccordement_backend/internal/activity/audit"
	"raccordement_backend/internal/events"
	"raccordement_backend/internal/requests/repository"
	"raccordement_backend/internal/requests/transport"
	"raccordement_backend/platform/apperr"
	"raccordement_backend/platform/logger"

	"github.com/google/uuid"
)

type fakeStore struct {
	byID       map[uuid.UUID]repository.Request
	collisions int
	creates    int
}

func newFakeStore(reqs ...repository.Request) *fakeStore {
	f := &fakeStore{byID: map[uuid.UUID]repository.Request{}}
	for _, r := range reqs {
		f.byID[r.ID] = r
	}
	return f
}

func (f *fakeStore) Create(_ context.Context, p repository.CreateParams) (repository.Request, error) {
	f.creates++
	if f.collisions > 0 {
		f.collisions--
		return repository.Request{}, repository.ErrReferenceTaken
	}
	status := StatusNew
	if p.AssignedTo != nil {
		status = StatusAssigned
	}
	r := repository.Request{
		ID: uuid.New(), Reference: p.Reference, LeadID: p.LeadID, ClientType: p.ClientType,
		FirstName: p.FirstName, LastName: p.LastName, Email: p.Email, Phone: p.Phone,
		AddressStreet: p.AddressStreet, AddressPostalCode: p.AddressPostalCode, AddressCity: p.AddressCity,
		ConnectionType: p.ConnectionType, AmountCents: p.AmountCents, Currency: "eur",
		Status: status, PaymentStatus: PaymentPending, AssignedTo: p.AssignedTo, Source: p.Source,
		CreatedAt: time.Now(), UpdatedAt: time.Now(),
	}
	f.byID[r.ID] = r
	return r, nil
}

func (f *fakeStore) GetByID(_ context.Context, id uuid.UUID) (repository.Request, error) {
	r, ok := f.byID[id]
	if !ok {
		return repository.Request{}, apperr.NotFound("service request not found")
	}
	return r, nil
}

func (f *fakeStore) GetByReference(_ context.Context, reference string) (repository.Request, error) {
	for _, r := range f.byID {
		if r.Reference == reference {
			return r, nil
		}
	}
	return repository.Request{}, apperr.NotFound("service request not found")
}

func (f *fakeStore) Update(_ context.Context, id uuid.UUID, p repository.UpdateParams) (repository.Request, error) {
	r := f.byID[id]
	if p.AmountCents != nil {
		r.AmountCents = *p.AmountCents
	}
	if p.Phone != nil {
		r.Phone = *p.Phone
	}
	f.byID[id] = r
	return r, nil
}

func (f *fakeStore) SetStatus(_ context.Context, id uuid.UUID, p repository.StatusParams) (repository.Request, error) {
	r := f.byID[id]
	r.Status = p.Status
	if p.ScheduledAt != nil {
		r.ScheduledAt = p.ScheduledAt
	}
	r.CompletedAt, r.CanceledAt = p.CompletedAt, p.CanceledAt
	f.byID[id] = r
	return r, nil
}

func (f *fakeStore) Assign(_ context.Context, id uuid.UUID, assignee *uuid.UUID) (repository.Request, error) {
	r := f.byID[id]
	r.AssignedTo = assignee
	f.byID[id] = r
	return r, nil
}

func (f *fakeStore) SetPaymentStatus(_ context.Context, id uuid.UUID, status string) (repository.Request, error) {
	r := f.byID[id]
	r.PaymentStatus = status
	f.byID[id] = r
	return r, nil
}

func (f *fakeStore) Delete(_ context.Context, id uuid.UUID) error {
	delete(f.byID, id)
	return nil
}

func (f *fakeStore) List(context.Context, repository.ListParams) ([]repository.Request, int, error) {
	out := make([]repository.Request, 0, len(f.byID))
	for _, r := range f.byID {
		out = append(out, r)
	}
	return out, len(out), nil
}

type fixedPrice int64

func (p fixedPrice) ServicePriceCents(context.Context) int64 { return int64(p) }

type staffDirectory map[uuid.UUID]bool

func (s staffDirectory) EnsureAssignable(_ context.Context, id uuid.UUID) error {
	active, ok := s[id]
	if !ok || !active {
		return apperr.Validation("assignee is not assignable")
	}
	return nil
}

type recordingBus struct {
	mu     sync.Mutex
	events []events.Event
}

func (b *recordingBus) Publish(_ context.Context, e events.Event) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.events = append(b.events, e)
}

func (b *recordingBus) PublishSync(ctx context.Context, e events.Event) error {
	b.Publish(ctx, e)
	return nil
}

func (b *recordingBus) Subscribe(string, events.Handler) {}

func (b *recordingBus) statusChanges() []events.RequestStatusChanged {
	b.mu.Lock()
	defer b.mu.Unlock()
	var out []events.RequestStatusChanged
	for _, e := range b.events {
		if sc, ok := e.(events.RequestStatusChanged); ok {
			out = append(out, sc)
		}
	}
	return out
}

type recordingAudit struct{ entries []audit.Entry }

func (r *recordingAudit) Record(_ context.Context, e audit.Entry) { r.entries = append(r.entries, e) }

func validInput() NewRequest {
	return NewRequest{CreateRequest: transport.CreateRequest{
		ClientType:     "particulier",
		FirstName:      " Camille ",
		LastName:       "Martin",
		Email:          "Camille.Martin@Example.fr",
		Phone:          "06 12 34 56 78",
		Address:        transport.Address{Street: "12 rue des Lilas", PostalCode: "69003", City: "Lyon"},
		ConnectionType: "nouveau_raccordement",
	}}
}

func newTestService(store *fakeStore, staff staffDirectory) (*Service, *recordingBus, *recordingAudit) {
	bus := &recordingBus{}
	rec := &recordingAudit{}
	return New(store, fixedPrice(14900), staff, bus, rec, logger.Discard()), bus, rec
}

func TestCreateAssignsReferenceAndPrice(t *testing.T) {
	store := newFakeStore()
	svc, bus, _ := newTestService(store, nil)

	resp, err := svc.Create(context.Background(), nil, validInput())
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if !regexp.MustCompile(`^RAC-\d{4}-[A-HJ-NP-Z2-9]{6}$`).MatchString(resp.Reference) {
		t.Fatalf("unexpected reference %q", resp.Reference)
	}
	if resp.AmountCents != 14900 || resp.Status != StatusNew || resp.PaymentStatus != PaymentPending {
		t.Fatalf("unexpected request %+v", resp)
	}
	if resp.Email != "camille.martin@example.fr" || resp.Phone != "+33612345678" || resp.FirstName != "Camille" {
		t.Fatalf("customer data not normalised: %+v", resp)
	}
	if resp.Source != SourceWebsite {
		t.Fatalf("expected default source, got %q", resp.Source)
	}
	if len(bus.events) != 1 || bus.events[0].EventName() != "requests.request.created" {
		t.Fatalf("expected a created event, got %v", bus.events)
	}
}

func TestCreateRetriesReferenceCollisions(t *testing.T) {
	store := newFakeStore()
	store.collisions = 2
	svc, _, _ := newTestService(store, nil)

	if _, err := svc.Create(context.Background(), nil, validInput()); err != nil {
		t.Fatalf("create: %v", err)
	}
	if store.creates != 3 {
		t.Fatalf("expected 3 attempts, got %d", store.creates)
	}

	store.collisions = referenceAttempts
	if _, err := svc.Create(context.Background(), nil, validInput()); !apperr.Is(err, apperr.KindInternal) {
		t.Fatalf("expected internal error after exhausting attempts, got %v", err)
	}
}

func TestCreateValidatesProfessionalAndPhone(t *testing.T) {
	svc, _, _ := newTestService(newFakeStore(), nil)

	pro := validInput()
	pro.ClientType = "professionnel"
	if _, err := svc.Create(context.Background(), nil, pro); !apperr.Is(err, apperr.KindValidation) {
		t.Fatalf("expected company name to be required, got %v", err)
	}

	badPhone := validInput()
	badPhone.Phone = "12"
	if _, err := svc.Create(context.Background(), nil, badPhone); !apperr.Is(err, apperr.KindValidation) {
		t.Fatalf("expected phone validation, got %v", err)
	}
}

func TestTransitionTable(t *testing.T) {
	cases := []struct {
		from, to string
		ok       bool
	}{
		{StatusNew, StatusAssigned, true},
		{StatusNew, StatusValidated, true},
		{StatusNew, StatusInProgress, false},
		{StatusAssigned, StatusInProgress, true},
		{StatusValidated, StatusInProgress, true},
		{StatusInProgress, StatusScheduled, true},
		{StatusInProgress, StatusCompleted, false},
		{StatusScheduled, StatusCompleted, true},
		{StatusScheduled, StatusCanceled, true},
		{StatusCompleted, StatusCanceled, false},
		{StatusCanceled, StatusNew, false},
	}
	for _, tc := range cases {
		if got := CanTransition(tc.from, tc.to); got != tc.ok {
			t.Errorf("%s -> %s: expected %v", tc.from, tc.to, tc.ok)
		}
	}
}

func TestChangeStatusEnforcesRules(t *testing.T) {
	id := uuid.New()
	store := newFakeStore(repository.Request{ID: id, Reference: "RAC-2026-AAAAAA", Status: StatusInProgress, PaymentStatus: PaymentPaid})
	svc, bus, rec := newTestService(store, nil)
	actor := uuid.New()
	ctx := context.Background()

	if _, err := svc.ChangeStatus(ctx, actor, id, transport.StatusRequest{Status: StatusCompleted}); !apperr.Is(err, apperr.KindConflict) {
		t.Fatalf("expected conflict, got %v", err)
	}
	if _, err := svc.ChangeStatus(ctx, actor, id, transport.StatusRequest{Status: StatusScheduled}); !apperr.Is(err, apperr.KindValidation) {
		t.Fatalf("scheduling without a date must fail, got %v", err)
	}

	when := time.Date(2026, 3, 12, 9, 0, 0, 0, time.UTC)
	resp, err := svc.ChangeStatus(ctx, actor, id, transport.StatusRequest{Status: StatusScheduled, ScheduledAt: &when})
	if err != nil {
		t.Fatalf("schedule: %v", err)
	}
	if resp.Status != StatusScheduled || resp.ScheduledAt == nil || !resp.ScheduledAt.Equal(when) {
		t.Fatalf("unexpected response %+v", resp)
	}

	later := when.Add(48 * time.Hour)
	if _, err := svc.ChangeStatus(ctx, actor, id, transport.StatusRequest{Status: StatusScheduled, ScheduledAt: &later}); err != nil {
		t.Fatalf("reschedule: %v", err)
	}

	resp, err = svc.ChangeStatus(ctx, actor, id, transport.StatusRequest{Status: StatusCompleted})
	if err != nil || resp.CompletedAt == nil {
		t.Fatalf("complete: %+v %v", resp, err)
	}
	if _, err := svc.ChangeStatus(ctx, actor, id, transport.StatusRequest{Status: StatusCompleted}); err != nil {
		t.Fatalf("same status must be a no-op, got %v", err)
	}

	changes := bus.statusChanges()
	if len(changes) != 3 {
		t.Fatalf("expected 3 status events, got %d", len(changes))
	}
	if changes[0].OldStatus != StatusInProgress || changes[0].NewStatus != StatusScheduled {
		t.Fatalf("unexpected first event %+v", changes[0])
	}
	logged := 0
	for _, e := range rec.entries {
		if e.Action == "request.status_changed" {
			logged++
		}
	}
	if logged != 3 {
		t.Fatalf("expected 3 status audit entries, got %d", logged)
	}
}

func TestAssignMovesNewRequestToAssigned(t *testing.T) {
	id, agent := uuid.New(), uuid.New()
	store := newFakeStore(repository.Request{ID: id, Status: StatusNew})
	svc, bus, _ := newTestService(store, staffDirectory{agent: true})

	resp, err := svc.Assign(context.Background(), uuid.New(), id, &agent)
	if err != nil {
		t.Fatalf("assign: %v", err)
	}
	if resp.Status != StatusAssigned || resp.AssignedTo == nil || *resp.AssignedTo != agent {
		t.Fatalf("unexpected response %+v", resp)
	}
	if len(bus.statusChanges()) != 1 {
		t.Fatal("expected a status change event")
	}

	inactive := uuid.New()
	if _, err := svc.Assign(context.Background(), uuid.New(), id, &inactive); !apperr.Is(err, apperr.KindValidation) {
		t.Fatalf("unknown assignee must be rejected, got %v", err)
	}
}

func TestTrackRequiresMatchingEmail(t *testing.T) {
	store := newFakeStore(repository.Request{ID: uuid.New(), Reference: "RAC-2026-7K3Q9P", Email: "client@example.fr", Status: StatusScheduled})
	svc, _, _ := newTestService(store, nil)

	resp, err := svc.Track(context.Background(), "RAC-2026-7K3Q9P", " Client@Example.fr")
	if err != nil {
		t.Fatalf("track: %v", err)
	}
	if resp.StatusLabel != "Intervention planifiée" {
		t.Fatalf("unexpected label %q", resp.StatusLabel)
	}
	if _, err := svc.Track(context.Background(), "RAC-2026-7K3Q9P", "other@example.fr"); !apperr.Is(err, apperr.KindNotFound) {
		t.Fatalf("expected not found on mismatch, got %v", err)
	}
}

func TestPaidRequestGuards(t *testing.T) {
	id := uuid.New()
	store := newFakeStore(repository.Request{ID: id, Status: StatusNew, PaymentStatus: PaymentPaid, AmountCents: 12900})
	svc, _, _ := newTestService(store, nil)

	amount := int64(9900)
	if _, err := svc.Update(context.Background(), uuid.New(), id, transport.UpdateRequest{AmountCents: &amount}); !apperr.Is(err, apperr.KindConflict) {
		t.Fatalf("expected conflict on paid amount change, got %v", err)
	}
	if err := svc.Delete(context.Background(), uuid.New(), id); !apperr.Is(err, apperr.KindConflict) {
		t.Fatalf("expected conflict deleting a paid request, got %v", err)
	}

	resp, err := svc.SetPaymentStatus(context.Background(), id, PaymentRefunded)
	if err != nil || resp.PaymentStatus != PaymentRefunded {
		t.Fatalf("set payment status: %+v %v", resp, err)
	}
	if err := svc.Delete(context.Background(), uuid.New(), id); err != nil {
		t.Fatalf("delete after refund: %v", err)
	}
}
