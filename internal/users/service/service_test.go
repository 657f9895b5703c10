package service

import (
	"context"
	"testing"

	"raccordement_backend/internal/activity/audit"
	"raccordement_backend/internal/events"
	"raccordement_backend/internal/users/repository"
	"raccordement_backend/internal/users/transport"
	"raccordement_backend/platform/apperr"
	"raccordement_backend/platform/logger"

	"github.com/google/uuid"
)

type fakeStore struct {
	users map[uuid.UUID]repository.User
}

func newFakeStore(users ...repository.User) *fakeStore {
	s := &fakeStore{users: map[uuid.UUID]repository.User{}}
	for _, u := range users {
		s.users[u.ID] = u
	}
	return s
}

func (s *fakeStore) Create(_ context.Context, p repository.CreateParams) (repository.User, error) {
	for _, u := range s.users {
		if u.Email == p.Email {
			return repository.User{}, apperr.Conflict("email already in use")
		}
	}
	u := repository.User{ID: uuid.New(), Email: p.Email, FirstName: p.FirstName, Phone: p.Phone, Role: p.Role, IsActive: true}
	s.users[u.ID] = u
	return u, nil
}

func (s *fakeStore) GetByID(_ context.Context, id uuid.UUID) (repository.User, error) {
	u, ok := s.users[id]
	if !ok {
		return repository.User{}, apperr.NotFound("user not found")
	}
	return u, nil
}

func (s *fakeStore) Update(_ context.Context, id uuid.UUID, p repository.UpdateParams) (repository.User, error) {
	u := s.users[id]
	if p.FirstName != nil {
		u.FirstName = p.FirstName
	}
	s.users[id] = u
	return u, nil
}

func (s *fakeStore) SetRole(_ context.Context, id uuid.UUID, role string) (repository.User, error) {
	u := s.users[id]
	u.Role = role
	s.users[id] = u
	return u, nil
}

func (s *fakeStore) SetActive(_ context.Context, id uuid.UUID, active bool) (repository.User, error) {
	u, ok := s.users[id]
	if !ok {
		return repository.User{}, apperr.NotFound("user not found")
	}
	u.IsActive = active
	s.users[id] = u
	return u, nil
}

func (s *fakeStore) Delete(_ context.Context, id uuid.UUID) error {
	delete(s.users, id)
	return nil
}

func (s *fakeStore) CountActiveAdmins(context.Context) (int, error) {
	n := 0
	for _, u := range s.users {
		if u.Role == "admin" && u.IsActive {
			n++
		}
	}
	return n, nil
}

func (s *fakeStore) List(context.Context, repository.ListParams) ([]repository.User, int, error) {
	out := make([]repository.User, 0, len(s.users))
	for _, u := range s.users {
		out = append(out, u)
	}
	return out, len(out), nil
}

func (s *fakeStore) ListActiveByRoles(_ context.Context, roles []string) ([]repository.User, error) {
	var out []repository.User
	for _, u := range s.users {
		for _, r := range roles {
			if u.IsActive && u.Role == r {
				out = append(out, u)
			}
		}
	}
	return out, nil
}

type fakeAccounts struct {
	issued  []uuid.UUID
	revoked []uuid.UUID
}

func (a *fakeAccounts) IssueSetupToken(_ context.Context, id uuid.UUID) (string, error) {
	a.issued = append(a.issued, id)
	return "setup-token", nil
}

func (a *fakeAccounts) RevokeSessions(_ context.Context, id uuid.UUID) error {
	a.revoked = append(a.revoked, id)
	return nil
}

type recordingBus struct{ events []events.Event }

func (b *recordingBus) Publish(_ context.Context, e events.Event) { b.events = append(b.events, e) }
func (b *recordingBus) PublishSync(ctx context.Context, e events.Event) error {
	b.Publish(ctx, e)
	return nil
}
func (b *recordingBus) Subscribe(string, events.Handler) {}

type recorder struct{ entries []audit.Entry }

func (r *recorder) Record(_ context.Context, e audit.Entry) { r.entries = append(r.entries, e) }

func setup(users ...repository.User) (*Service, *fakeStore, *fakeAccounts, *recordingBus, *recorder) {
	store := newFakeStore(users...)
	accounts := &fakeAccounts{}
	bus := &recordingBus{}
	rec := &recorder{}
	return New(store, accounts, bus, rec, logger.Discard()), store, accounts, bus, rec
}

func user(role string) repository.User {
	return repository.User{ID: uuid.New(), Email: uuid.NewString() + "@example.fr", Role: role, IsActive: true}
}

func TestInvitePublishesSetupToken(t *testing.T) {
	admin := user("admin")
	svc, _, accounts, bus, rec := setup(admin)
	phone := "06 12 34 56 78"

	resp, err := svc.Invite(context.Background(), admin.ID, transport.CreateUserRequest{
		Email: " Agent@Example.FR ",
		Phone: &phone,
		Role:  "agent",
	})
	if err != nil {
		t.Fatalf("invite: %v", err)
	}
	if resp.Email != "agent@example.fr" {
		t.Fatalf("email not normalised: %q", resp.Email)
	}
	if resp.Phone == nil || *resp.Phone != "+33612345678" {
		t.Fatalf("phone not normalised: %v", resp.Phone)
	}
	if len(accounts.issued) != 1 || accounts.issued[0] != resp.ID {
		t.Fatal("setup token not issued")
	}
	invited, ok := bus.events[0].(events.UserInvited)
	if !ok || invited.SetupToken != "setup-token" || invited.Role != "agent" {
		t.Fatalf("unexpected event %#v", bus.events[0])
	}
	if len(rec.entries) != 1 || rec.entries[0].Action != "user.invited" {
		t.Fatalf("unexpected audit trail %#v", rec.entries)
	}
}

func TestCannotChangeOwnRole(t *testing.T) {
	admin := user("admin")
	svc, _, _, _, _ := setup(admin)

	_, err := svc.SetRole(context.Background(), admin.ID, admin.ID, "agent")
	if !apperr.Is(err, apperr.KindForbidden) {
		t.Fatalf("expected forbidden, got %v", err)
	}
}

func TestLastAdminIsProtected(t *testing.T) {
	admin := user("admin")
	other := user("admin")
	other.IsActive = false
	svc, _, _, _, _ := setup(admin, other)
	actor := uuid.New()

	if _, err := svc.SetRole(context.Background(), actor, admin.ID, "manager"); !apperr.Is(err, apperr.KindConflict) {
		t.Fatalf("demoting the last admin must conflict, got %v", err)
	}
	if _, err := svc.Deactivate(context.Background(), actor, admin.ID); !apperr.Is(err, apperr.KindConflict) {
		t.Fatalf("deactivating the last admin must conflict, got %v", err)
	}
	if err := svc.Delete(context.Background(), actor, admin.ID); !apperr.Is(err, apperr.KindConflict) {
		t.Fatalf("deleting the last admin must conflict, got %v", err)
	}
}

func TestDemoteAdminWhenAnotherExists(t *testing.T) {
	first := user("admin")
	second := user("admin")
	svc, store, accounts, _, rec := setup(first, second)

	resp, err := svc.SetRole(context.Background(), first.ID, second.ID, "manager")
	if err != nil {
		t.Fatalf("set role: %v", err)
	}
	if resp.Role != "manager" || store.users[second.ID].Role != "manager" {
		t.Fatal("role not updated")
	}
	if len(accounts.revoked) != 1 {
		t.Fatal("sessions should be revoked after a role change")
	}
	if rec.entries[0].Details["from"] != "admin" {
		t.Fatalf("unexpected details %#v", rec.entries[0].Details)
	}
}

func TestDeactivateRevokesSessions(t *testing.T) {
	admin := user("admin")
	agent := user("agent")
	svc, store, accounts, _, _ := setup(admin, agent)

	if _, err := svc.Deactivate(context.Background(), admin.ID, agent.ID); err != nil {
		t.Fatalf("deactivate: %v", err)
	}
	if store.users[agent.ID].IsActive {
		t.Fatal("user still active")
	}
	if len(accounts.revoked) != 1 || accounts.revoked[0] != agent.ID {
		t.Fatal("sessions not revoked")
	}
	if _, err := svc.Activate(context.Background(), admin.ID, agent.ID); err != nil || !store.users[agent.ID].IsActive {
		t.Fatalf("activate: %v", err)
	}
}

func TestEnsureBootstrapAdmin(t *testing.T) {
	svc, store, _, _, _ := setup()

	if err := svc.EnsureBootstrapAdmin(context.Background(), "", ""); err != nil || len(store.users) != 0 {
		t.Fatal("no admin expected without configuration")
	}
	if err := svc.EnsureBootstrapAdmin(context.Background(), "Root@Example.fr", "Raccord2024x"); err != nil {
		t.Fatalf("bootstrap: %v", err)
	}
	if err := svc.EnsureBootstrapAdmin(context.Background(), "other@example.fr", "Raccord2024x"); err != nil {
		t.Fatalf("second bootstrap: %v", err)
	}
	if len(store.users) != 1 {
		t.Fatalf("expected exactly one admin, got %d", len(store.users))
	}
	for _, u := range store.users {
		if u.Role != "admin" || u.Email != "root@example.fr" {
			t.Fatalf("unexpected user %#v", u)
		}
	}
}
