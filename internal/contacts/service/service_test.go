package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"raccordement_backend/internal/activity/audit"
	"raccordement_backend/internal/contacts/repository"
	"raccordement_backend/internal/contacts/transport"
	"raccordement_backend/internal/events"
	"raccordement_backend/platform/apperr"
	"raccordement_backend/platform/logger"

	"github.com/google/uuid"
)

type fakeStore struct {
	contacts map[uuid.UUID]repository.Contact
}

func (f *fakeStore) Create(_ context.Context, p repository.CreateParams) (repository.Contact, error) {
	c := repository.Contact{ID: uuid.New(), Name: p.Name, Email: p.Email, Phone: p.Phone, Subject: p.Subject,
		Message: p.Message, Status: StatusNew, CreatedAt: time.Now(), UpdatedAt: time.Now()}
	f.contacts[c.ID] = c
	return c, nil
}

func (f *fakeStore) GetByID(_ context.Context, id uuid.UUID) (repository.Contact, error) {
	c, ok := f.contacts[id]
	if !ok {
		return repository.Contact{}, apperr.NotFound("contact message not found")
	}
	return c, nil
}

func (f *fakeStore) SetStatus(_ context.Context, id uuid.UUID, status string) (repository.Contact, error) {
	c, ok := f.contacts[id]
	if !ok {
		return repository.Contact{}, apperr.NotFound("contact message not found")
	}
	c.Status = status
	f.contacts[id] = c
	return c, nil
}

func (f *fakeStore) MarkReplied(_ context.Context, id, by uuid.UUID) (repository.Contact, error) {
	c := f.contacts[id]
	now := time.Now()
	c.Status, c.RepliedAt, c.RepliedBy = StatusReplied, &now, &by
	f.contacts[id] = c
	return c, nil
}

func (f *fakeStore) Delete(_ context.Context, id uuid.UUID) error {
	delete(f.contacts, id)
	return nil
}

func (f *fakeStore) List(context.Context, repository.ListParams) ([]repository.Contact, int, error) {
	out := make([]repository.Contact, 0, len(f.contacts))
	for _, c := range f.contacts {
		out = append(out, c)
	}
	return out, len(out), nil
}

type replier struct {
	err  error
	sent []string
}

func (r *replier) SendContactReply(_ context.Context, to, _, subject, _ string) error {
	if r.err != nil {
		return r.err
	}
	r.sent = append(r.sent, to+"|"+subject)
	return nil
}

type countingBus struct{ n int }

func (b *countingBus) Publish(context.Context, events.Event)           { b.n++ }
func (b *countingBus) PublishSync(context.Context, events.Event) error { b.n++; return nil }
func (b *countingBus) Subscribe(string, events.Handler)                {}

func newService(r *replier) (*Service, *fakeStore, *countingBus) {
	store := &fakeStore{contacts: map[uuid.UUID]repository.Contact{}}
	bus := &countingBus{}
	return New(store, r, bus, audit.Nop{}, logger.Discard()), store, bus
}

func validRequest() transport.CreateContactRequest {
	return transport.CreateContactRequest{
		Name:    " Jeanne  Dupont ",
		Email:   "Jeanne@Example.FR",
		Phone:   ptr("06 11 22 33 44"),
		Subject: "Délai de raccordement",
		Message: "<b>Bonjour</b>, quel est le délai moyen ?",
	}
}

func ptr[T any](v T) *T { return &v }

func TestSubmitStoresSanitisedMessage(t *testing.T) {
	svc, store, bus := newService(&replier{})
	if _, err := svc.Submit(context.Background(), validRequest()); err != nil {
		t.Fatalf("submit: %v", err)
	}
	if len(store.contacts) != 1 || bus.n != 1 {
		t.Fatalf("expected one stored contact and one event, got %d/%d", len(store.contacts), bus.n)
	}
	for _, c := range store.contacts {
		if c.Email != "jeanne@example.fr" || c.Phone == nil || *c.Phone != "+33611223344" {
			t.Fatalf("unexpected contact %+v", c)
		}
		if c.Message != "Bonjour, quel est le délai moyen ?" {
			t.Fatalf("html not stripped: %q", c.Message)
		}
	}
}

func TestSubmitHoneypotStoresNothing(t *testing.T) {
	svc, store, bus := newService(&replier{})
	req := validRequest()
	req.Website = "http://spam.example"
	resp, err := svc.Submit(context.Background(), req)
	if err != nil || !resp.Received {
		t.Fatalf("honeypot should look accepted: %+v %v", resp, err)
	}
	if len(store.contacts) != 0 || bus.n != 0 {
		t.Fatal("honeypot submission must not be stored")
	}
}

func TestGetMarksNewAsRead(t *testing.T) {
	svc, store, _ := newService(&replier{})
	_, _ = svc.Submit(context.Background(), validRequest())
	var id uuid.UUID
	for k := range store.contacts {
		id = k
	}
	got, err := svc.Get(context.Background(), id)
	if err != nil || got.Status != StatusRead {
		t.Fatalf("get: %+v %v", got, err)
	}
}

func TestReplyFailureKeepsStatus(t *testing.T) {
	r := &replier{err: errors.New("smtp down")}
	svc, store, _ := newService(r)
	_, _ = svc.Submit(context.Background(), validRequest())
	var id uuid.UUID
	for k := range store.contacts {
		id = k
	}

	_, err := svc.Reply(context.Background(), uuid.New(), id, transport.ReplyRequest{Message: "Bonjour, environ 6 semaines."})
	if !apperr.Is(err, apperr.KindUnavailable) {
		t.Fatalf("expected unavailable, got %v", err)
	}
	if store.contacts[id].Status != StatusNew {
		t.Fatal("status must not change when the reply fails")
	}

	r.err = nil
	got, err := svc.Reply(context.Background(), uuid.New(), id, transport.ReplyRequest{Message: "Bonjour, environ 6 semaines."})
	if err != nil || got.Status != StatusReplied || got.RepliedAt == nil {
		t.Fatalf("reply: %+v %v", got, err)
	}
	if len(r.sent) != 1 || r.sent[0] != "jeanne@example.fr|Re: Délai de raccordement" {
		t.Fatalf("unexpected sent mail %v", r.sent)
	}
}
