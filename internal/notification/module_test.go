package notification

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"raccordement_backend/internal/email"
	"raccordement_backend/internal/events"
	"raccordement_backend/internal/notification/inapp"
	"raccordement_backend/internal/notification/outbox"
	"raccordement_backend/internal/notification/ws"
	usersrepo "raccordement_backend/internal/users/repository"
	"raccordement_backend/platform/logger"

	"github.com/google/uuid"
)

type testConfig struct{ alerts []string }

func (testConfig) GetAppBaseURL() string           { return "https://app.example.fr/" }
func (testConfig) GetPublicSiteURL() string        { return "https://www.example.fr" }
func (c testConfig) GetStaffAlertEmails() []string { return c.alerts }

type memoryOutbox struct {
	records map[uuid.UUID]*outbox.Record
	order   []uuid.UUID
	retries int
}

func newMemoryOutbox() *memoryOutbox {
	return &memoryOutbox{records: map[uuid.UUID]*outbox.Record{}}
}

func (o *memoryOutbox) Insert(_ context.Context, p outbox.InsertParams) (uuid.UUID, error) {
	payload, err := json.Marshal(p.Payload)
	if err != nil {
		return uuid.Nil, err
	}
	rec := &outbox.Record{ID: uuid.New(), Kind: p.Kind, Template: p.Template, Payload: payload, Status: outbox.StatusPending}
	o.records[rec.ID] = rec
	o.order = append(o.order, rec.ID)
	return rec.ID, nil
}

func (o *memoryOutbox) GetByID(_ context.Context, id uuid.UUID) (outbox.Record, error) {
	rec, ok := o.records[id]
	if !ok {
		return outbox.Record{}, errors.New("missing")
	}
	return *rec, nil
}

func (o *memoryOutbox) MarkProcessing(_ context.Context, id uuid.UUID) (bool, error) {
	rec := o.records[id]
	if rec.Status != outbox.StatusPending && rec.Status != outbox.StatusEnqueued {
		return false, nil
	}
	rec.Status = outbox.StatusProcessing
	rec.Attempts++
	return true, nil
}

func (o *memoryOutbox) MarkSucceeded(_ context.Context, id uuid.UUID) error {
	o.records[id].Status = outbox.StatusSucceeded
	return nil
}

func (o *memoryOutbox) MarkFailed(_ context.Context, id uuid.UUID, _ string) error {
	o.records[id].Status = outbox.StatusFailed
	return nil
}

func (o *memoryOutbox) ScheduleRetry(_ context.Context, id uuid.UUID, _ time.Time, _ string) error {
	o.records[id].Status = outbox.StatusPending
	o.retries++
	return nil
}

func (o *memoryOutbox) templates() []string {
	var out []string
	for _, id := range o.order {
		out = append(out, o.records[id].Template)
	}
	return out
}

type sentMail struct {
	template    string
	to          []string
	attachments int
	url         string
}

type fakeSender struct {
	err  error
	sent []sentMail
}

func (s *fakeSender) record(m sentMail) error {
	if s.err != nil {
		return s.err
	}
	s.sent = append(s.sent, m)
	return nil
}

func (s *fakeSender) SendPasswordReset(_ context.Context, to, url string) error {
	return s.record(sentMail{template: email.TemplatePasswordReset, to: []string{to}, url: url})
}
func (s *fakeSender) SendUserInvite(_ context.Context, to, _, _, url string) error {
	return s.record(sentMail{template: email.TemplateUserInvite, to: []string{to}, url: url})
}
func (s *fakeSender) SendLeadReminder(_ context.Context, to, _, url string) error {
	return s.record(sentMail{template: email.TemplateLeadReminder, to: []string{to}, url: url})
}
func (s *fakeSender) SendRequestConfirmation(_ context.Context, to string, d email.RequestData) error {
	return s.record(sentMail{template: email.TemplateRequestConfirmation, to: []string{to}, url: d.TrackingURL})
}
func (s *fakeSender) SendRequestStatus(_ context.Context, to string, d email.RequestData) error {
	return s.record(sentMail{template: email.TemplateRequestStatus, to: []string{to}, url: d.TrackingURL})
}
func (s *fakeSender) SendPaymentConfirmation(_ context.Context, to string, _ email.PaymentData, a ...email.Attachment) error {
	return s.record(sentMail{template: email.TemplatePaymentConfirmation, to: []string{to}, attachments: len(a)})
}
func (s *fakeSender) SendPaymentFailed(_ context.Context, to string, d email.PaymentData) error {
	return s.record(sentMail{template: email.TemplatePaymentFailed, to: []string{to}, url: d.PaymentURL})
}
func (s *fakeSender) SendContactReply(_ context.Context, to, _, _, _ string) error {
	return s.record(sentMail{template: email.TemplateContactReply, to: []string{to}})
}
func (s *fakeSender) SendStaffAlert(_ context.Context, to []string, _, _, link string) error {
	return s.record(sentMail{template: email.TemplateStaffAlert, to: to, url: link})
}
func (s *fakeSender) SendTaskAssigned(_ context.Context, to, _, _, link string) error {
	return s.record(sentMail{template: email.TemplateTaskAssigned, to: []string{to}, url: link})
}
func (s *fakeSender) SendTemplate(_ context.Context, to []string, key string, _ map[string]any, a ...email.Attachment) error {
	return s.record(sentMail{template: key, to: to, attachments: len(a)})
}

type recordingInApp struct{ sent []inapp.SendParams }

func (r *recordingInApp) Send(_ context.Context, p inapp.SendParams) error {
	r.sent = append(r.sent, p)
	return nil
}

type recordingLive struct{ types []string }

func (l *recordingLive) SendToUser(_ uuid.UUID, t string, _ any)   { l.types = append(l.types, t) }
func (l *recordingLive) Broadcast(t string, _ any)                 { l.types = append(l.types, t) }
func (l *recordingLive) BroadcastToRole(_ string, t string, _ any) { l.types = append(l.types, t) }

type staffDirectory struct {
	managers []usersrepo.User
	emails   map[uuid.UUID]string
}

func (s staffDirectory) StaffByRoles(context.Context, ...string) ([]usersrepo.User, error) {
	return s.managers, nil
}

func (s staffDirectory) EmailOf(_ context.Context, id uuid.UUID) (string, error) {
	addr, ok := s.emails[id]
	if !ok {
		return "", errors.New("unknown user")
	}
	return addr, nil
}

type settingsAlerts []string

func (s settingsAlerts) NotificationEmails(context.Context) []string { return s }

type fakeReceipts struct{ err error }

func (r fakeReceipts) Receipt(context.Context, uuid.UUID) ([]byte, string, error) {
	if r.err != nil {
		return nil, "", r.err
	}
	return []byte("%PDF-1.4"), "recu.pdf", nil
}

type fixture struct {
	m      *Module
	outbox *memoryOutbox
	sender *fakeSender
	inApp  *recordingInApp
	live   *recordingLive
}

var (
	managerID = uuid.New()
	agentID   = uuid.New()
)

func newFixture() fixture {
	f := fixture{
		outbox: newMemoryOutbox(),
		sender: &fakeSender{},
		inApp:  &recordingInApp{},
		live:   &recordingLive{},
	}
	f.m = &Module{
		sender: f.sender,
		outbox: f.outbox,
		inApp:  f.inApp,
		live:   f.live,
		staff: staffDirectory{
			managers: []usersrepo.User{{ID: managerID, Email: "manager@example.fr"}},
			emails:   map[uuid.UUID]string{agentID: "agent@example.fr"},
		},
		alerts:   settingsAlerts{"alertes@example.fr", "ops@example.fr"},
		receipts: fakeReceipts{},
		cfg:      testConfig{alerts: []string{"ops@example.fr", "direction@example.fr"}},
		log:      logger.Discard(),
	}
	return f
}

func (f fixture) deliverAll(t *testing.T) {
	t.Helper()
	for _, id := range f.outbox.order {
		_ = f.m.Deliver(context.Background(), id)
	}
}

func TestPaidPaymentQueuesReceiptAndStaffAlert(t *testing.T) {
	f := newFixture()
	err := f.m.Handle(context.Background(), events.PaymentStatusChanged{
		BaseEvent:   events.NewBaseEvent(),
		PaymentID:   uuid.New(),
		Reference:   "RAC-2026-7K3Q9P",
		OldStatus:   "pending",
		NewStatus:   "paid",
		AmountCents: 12900,
		Email:       "client@example.fr",
		FirstName:   "Camille",
	})
	if err != nil {
		t.Fatalf("handle: %v", err)
	}
	got := f.outbox.templates()
	if len(got) != 2 || got[0] != email.TemplatePaymentConfirmation || got[1] != email.TemplateStaffAlert {
		t.Fatalf("unexpected outbox %v", got)
	}
	if len(f.inApp.sent) != 1 || f.inApp.sent[0].UserID != managerID {
		t.Fatalf("managers should be notified in-app, got %+v", f.inApp.sent)
	}

	f.deliverAll(t)
	if len(f.sender.sent) != 2 {
		t.Fatalf("expected two emails, got %d", len(f.sender.sent))
	}
	if f.sender.sent[0].attachments != 1 {
		t.Fatal("payment confirmation should carry the receipt")
	}
	alert := f.sender.sent[1]
	if len(alert.to) != 3 {
		t.Fatalf("alert recipients should be merged without duplicates, got %v", alert.to)
	}
}

func TestReceiptFailureStillSendsConfirmation(t *testing.T) {
	f := newFixture()
	f.m.receipts = fakeReceipts{err: errors.New("render failed")}
	_ = f.m.Handle(context.Background(), events.PaymentStatusChanged{
		BaseEvent: events.NewBaseEvent(), PaymentID: uuid.New(), NewStatus: "paid", Email: "client@example.fr",
	})
	f.deliverAll(t)
	if len(f.sender.sent) == 0 || f.sender.sent[0].attachments != 0 {
		t.Fatalf("confirmation should go out without attachment, got %+v", f.sender.sent)
	}
}

func TestFailedPaymentLinksBackToCheckout(t *testing.T) {
	f := newFixture()
	_ = f.m.Handle(context.Background(), events.PaymentStatusChanged{
		BaseEvent: events.NewBaseEvent(), PaymentID: uuid.New(), Reference: "RAC-2026-AAAAAA",
		NewStatus: "failed", Email: "client@example.fr", Reason: "carte refusée",
	})
	f.deliverAll(t)
	if len(f.sender.sent) != 1 || f.sender.sent[0].url != "https://www.example.fr/paiement/RAC-2026-AAAAAA" {
		t.Fatalf("unexpected emails %+v", f.sender.sent)
	}
	if len(f.inApp.sent) != 0 {
		t.Fatal("failed payments do not notify staff")
	}
}

func TestDeliveryFailureSchedulesRetryThenFails(t *testing.T) {
	f := newFixture()
	f.sender.err = errors.New("smtp down")
	_ = f.m.Handle(context.Background(), events.LeadAbandoned{
		BaseEvent: events.NewBaseEvent(), LeadID: uuid.New(), Email: "x@example.fr", SessionToken: "tok",
	})
	id := f.outbox.order[0]

	for i := 1; i < maxOutboxRetryAttempts; i++ {
		if err := f.m.Deliver(context.Background(), id); err == nil {
			t.Fatalf("attempt %d should report the send error", i)
		}
		if f.outbox.records[id].Status != outbox.StatusPending {
			t.Fatalf("attempt %d should reschedule", i)
		}
	}
	_ = f.m.Deliver(context.Background(), id)
	if f.outbox.records[id].Status != outbox.StatusFailed {
		t.Fatalf("expected failed after %d attempts, got %s", maxOutboxRetryAttempts, f.outbox.records[id].Status)
	}
	if f.outbox.retries != maxOutboxRetryAttempts-1 {
		t.Fatalf("expected %d retries, got %d", maxOutboxRetryAttempts-1, f.outbox.retries)
	}
}

func TestDisabledTemplateCountsAsDelivered(t *testing.T) {
	f := newFixture()
	f.sender.err = email.ErrTemplateDisabled
	_ = f.m.Handle(context.Background(), events.PasswordResetRequested{
		BaseEvent: events.NewBaseEvent(), UserID: uuid.New(), Email: "agent@example.fr", ResetToken: "t",
	})
	id := f.outbox.order[0]
	if err := f.m.Deliver(context.Background(), id); err != nil {
		t.Fatalf("deliver: %v", err)
	}
	if f.outbox.records[id].Status != outbox.StatusSucceeded {
		t.Fatalf("expected succeeded, got %s", f.outbox.records[id].Status)
	}
}

func TestDeliverIgnoresSettledRecords(t *testing.T) {
	f := newFixture()
	_ = f.m.Handle(context.Background(), events.LeadAbandoned{
		BaseEvent: events.NewBaseEvent(), Email: "x@example.fr", SessionToken: "tok",
	})
	f.deliverAll(t)
	f.deliverAll(t)
	if len(f.sender.sent) != 1 {
		t.Fatalf("expected a single send, got %d", len(f.sender.sent))
	}
	if f.sender.sent[0].url != "https://www.example.fr/demande?session=tok" {
		t.Fatalf("unexpected resume url %q", f.sender.sent[0].url)
	}
}

func TestTaskAssignedNotifiesAssignee(t *testing.T) {
	f := newFixture()
	taskID := uuid.New()
	due := time.Date(2026, 3, 15, 10, 0, 0, 0, time.UTC)
	err := f.m.Handle(context.Background(), events.TaskAssigned{
		BaseEvent: events.NewBaseEvent(), TaskID: taskID, Title: "Relance Enedis",
		AssigneeID: agentID, AssignedBy: managerID, DueAt: &due,
	})
	if err != nil {
		t.Fatalf("handle: %v", err)
	}
	if len(f.inApp.sent) != 1 || f.inApp.sent[0].UserID != agentID {
		t.Fatalf("unexpected in-app %+v", f.inApp.sent)
	}
	f.deliverAll(t)
	if len(f.sender.sent) != 1 || f.sender.sent[0].to[0] != "agent@example.fr" ||
		f.sender.sent[0].url != "https://app.example.fr/tasks/"+taskID.String() {
		t.Fatalf("unexpected email %+v", f.sender.sent)
	}
}

func TestSelfAssignmentIsSilent(t *testing.T) {
	f := newFixture()
	_ = f.m.Handle(context.Background(), events.LeadAssigned{
		BaseEvent: events.NewBaseEvent(), LeadID: uuid.New(), AssigneeID: &agentID, AssignedBy: agentID,
	})
	if len(f.inApp.sent) != 0 {
		t.Fatal("assigning to oneself should not notify")
	}
	if len(f.live.types) != 1 || f.live.types[0] != "lead.assigned" {
		t.Fatalf("dashboards should still be refreshed, got %v", f.live.types)
	}
}

func TestRequestCreatedConfirmsToCustomer(t *testing.T) {
	f := newFixture()
	_ = f.m.Handle(context.Background(), events.RequestCreated{
		BaseEvent: events.NewBaseEvent(), RequestID: uuid.New(), Reference: "RAC-2026-BBBBBB",
		Email: "client@example.fr", FirstName: "Camille", LastName: "Martin", AmountCents: 12900, Source: "website",
	})
	got := f.outbox.templates()
	if len(got) != 2 || got[0] != email.TemplateRequestConfirmation {
		t.Fatalf("unexpected outbox %v", got)
	}
	f.deliverAll(t)
	if f.sender.sent[0].url != "https://www.example.fr/suivi/RAC-2026-BBBBBB" {
		t.Fatalf("unexpected tracking url %q", f.sender.sent[0].url)
	}
}

func TestFunnelStepIsPushedLive(t *testing.T) {
	f := newFixture()
	bus := events.NewInMemoryBus(logger.Discard())
	f.m.RegisterHandlers(bus)

	bus.Publish(context.Background(), events.LeadUpdated{
		BaseEvent: events.NewBaseEvent(), LeadID: uuid.New(), Step: 3, CurrentStep: 3, Status: "in_progress",
	})
	bus.Wait()

	if len(f.live.types) != 1 || f.live.types[0] != "lead.updated" {
		t.Fatalf("unexpected live pushes %v", f.live.types)
	}
	if len(f.outbox.templates()) != 0 {
		t.Fatal("a funnel step must not queue email")
	}
}

func TestRelayStandsInForMissingHub(t *testing.T) {
	m := New(Deps{Relay: ws.NewPublisher(nil, logger.Discard()), Logger: logger.Discard()})
	if m.live == nil {
		t.Fatal("relay should carry live pushes when no hub is attached")
	}
	if m.hub != nil {
		t.Fatal("no websocket route should be mounted without a hub")
	}
}

func TestComputeOutboxRetryDelay(t *testing.T) {
	cases := map[int]time.Duration{0: time.Minute, 1: time.Minute, 2: 2 * time.Minute, 4: 8 * time.Minute, 10: time.Hour}
	for attempt, want := range cases {
		if got := computeOutboxRetryDelay(attempt); got != want {
			t.Errorf("attempt %d: got %v want %v", attempt, got, want)
		}
	}
}
