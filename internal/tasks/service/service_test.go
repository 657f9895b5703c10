package service

import (
	"context"
	"testing"
	"time"

	"raccordement_backend/internal/activity/audit"
	"raccordement_backend/internal/events"
	"raccordement_backend/internal/tasks/repository"
	"raccordement_backend/internal/tasks/transport"
	"raccordement_backend/platform/apperr"
	"raccordement_backend/platform/httpkit"
	"raccordement_backend/platform/logger"

	"github.com/google/uuid"
)

type fakeStore struct {
	tasks    map[uuid.UUID]repository.Task
	notified map[uuid.UUID]bool
	lastList repository.ListParams
}

func newFakeStore() *fakeStore {
	return &fakeStore{tasks: map[uuid.UUID]repository.Task{}, notified: map[uuid.UUID]bool{}}
}

func (f *fakeStore) Create(_ context.Context, p repository.CreateParams) (repository.Task, error) {
	creator := p.CreatedBy
	t := repository.Task{ID: uuid.New(), Title: p.Title, Description: p.Description, Priority: p.Priority,
		Status: StatusTodo, DueAt: p.DueAt, AssignedTo: p.AssignedTo, CreatedBy: &creator,
		LeadID: p.LeadID, RequestID: p.RequestID, CreatedAt: time.Now(), UpdatedAt: time.Now()}
	f.tasks[t.ID] = t
	return t, nil
}

func (f *fakeStore) GetByID(_ context.Context, id uuid.UUID) (repository.Task, error) {
	t, ok := f.tasks[id]
	if !ok {
		return repository.Task{}, apperr.NotFound("task not found")
	}
	return t, nil
}

func (f *fakeStore) Update(_ context.Context, id uuid.UUID, p repository.UpdateParams) (repository.Task, error) {
	t, ok := f.tasks[id]
	if !ok {
		return repository.Task{}, apperr.NotFound("task not found")
	}
	if p.Title != nil {
		t.Title = *p.Title
	}
	if p.Status != nil {
		if *p.Status == StatusDone && t.Status != StatusDone {
			now := time.Now()
			t.CompletedAt = &now
		}
		t.Status = *p.Status
	}
	if p.AssignedTo != nil {
		t.AssignedTo = p.AssignedTo
	}
	if p.Unassign {
		t.AssignedTo = nil
	}
	if p.DueAt != nil {
		t.DueAt = p.DueAt
	}
	f.tasks[id] = t
	return t, nil
}

func (f *fakeStore) Delete(_ context.Context, id uuid.UUID) error {
	delete(f.tasks, id)
	return nil
}

func (f *fakeStore) List(_ context.Context, p repository.ListParams) ([]repository.Task, int, error) {
	f.lastList = p
	var out []repository.Task
	for _, t := range f.tasks {
		if p.Member != nil && !(t.AssignedTo != nil && *t.AssignedTo == *p.Member) && !(t.CreatedBy != nil && *t.CreatedBy == *p.Member) {
			continue
		}
		out = append(out, t)
	}
	return out, len(out), nil
}

func (f *fakeStore) ClaimOverdue(_ context.Context, now time.Time, _ int) ([]repository.Overdue, error) {
	var out []repository.Overdue
	for _, t := range f.tasks {
		if t.Status == StatusDone || t.AssignedTo == nil || t.DueAt == nil || !t.DueAt.Before(now) || f.notified[t.ID] {
			continue
		}
		f.notified[t.ID] = true
		out = append(out, repository.Overdue{ID: t.ID, Title: t.Title, AssigneeID: *t.AssignedTo, DueAt: *t.DueAt})
	}
	return out, nil
}

type staffDirectory map[uuid.UUID]bool

func (s staffDirectory) EnsureAssignable(_ context.Context, id uuid.UUID) error {
	if !s[id] {
		return apperr.Validation("assignee is not an active staff member")
	}
	return nil
}

type recordingBus struct{ published []events.Event }

func (b *recordingBus) Publish(_ context.Context, e events.Event) {
	b.published = append(b.published, e)
}
func (b *recordingBus) PublishSync(_ context.Context, e events.Event) error {
	b.published = append(b.published, e)
	return nil
}
func (b *recordingBus) Subscribe(string, events.Handler) {}

var (
	agentA  = uuid.New()
	agentB  = uuid.New()
	manager = uuid.New()
)

func fixture() (*Service, *fakeStore, *recordingBus) {
	store := newFakeStore()
	bus := &recordingBus{}
	staff := staffDirectory{agentA: true, agentB: true, manager: true}
	return New(store, staff, bus, audit.Nop{}, logger.Discard()), store, bus
}

func agent(id uuid.UUID) httpkit.Identity {
	return httpkit.NewIdentity(id, []string{"agent"})
}

func managerIdentity() httpkit.Identity {
	return httpkit.NewIdentity(manager, []string{"manager", "agent"})
}

func TestCreateDefaultsToSelfWithoutEvent(t *testing.T) {
	svc, _, bus := fixture()
	task, err := svc.Create(context.Background(), agent(agentA), transport.CreateTaskRequest{Title: "  Rappeler  le client "})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if task.AssignedTo == nil || *task.AssignedTo != agentA || task.Priority != "normal" || task.Title != "Rappeler le client" {
		t.Fatalf("unexpected task %+v", task)
	}
	if len(bus.published) != 0 {
		t.Fatalf("self-assignment should not notify, got %d events", len(bus.published))
	}
}

func TestCreateForColleaguePublishesAssignment(t *testing.T) {
	svc, _, bus := fixture()
	due := time.Now().Add(48 * time.Hour)
	_, err := svc.Create(context.Background(), agent(agentA), transport.CreateTaskRequest{
		Title: "Vérifier le Kbis", AssignedTo: &agentB, DueAt: &due,
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if len(bus.published) != 1 {
		t.Fatalf("expected one event, got %d", len(bus.published))
	}
	e, ok := bus.published[0].(events.TaskAssigned)
	if !ok || e.AssigneeID != agentB || e.AssignedBy != agentA || e.DueAt == nil {
		t.Fatalf("unexpected event %+v", bus.published[0])
	}
}

func TestCreateRejectsUnknownAssignee(t *testing.T) {
	svc, _, _ := fixture()
	stranger := uuid.New()
	_, err := svc.Create(context.Background(), agent(agentA), transport.CreateTaskRequest{Title: "Relance", AssignedTo: &stranger})
	if !apperr.Is(err, apperr.KindValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestListScopeAllNeedsManager(t *testing.T) {
	svc, store, _ := fixture()
	if _, err := svc.List(context.Background(), agent(agentA), transport.ListRequest{Scope: "all"}); !apperr.Is(err, apperr.KindForbidden) {
		t.Fatalf("expected forbidden, got %v", err)
	}
	if _, err := svc.List(context.Background(), managerIdentity(), transport.ListRequest{Scope: "all"}); err != nil {
		t.Fatalf("manager list: %v", err)
	}
	if store.lastList.Member != nil {
		t.Fatal("scope=all must not filter by member")
	}
	if _, err := svc.List(context.Background(), agent(agentA), transport.ListRequest{PageSize: 500}); err != nil {
		t.Fatalf("own list: %v", err)
	}
	if store.lastList.Member == nil || *store.lastList.Member != agentA || store.lastList.Limit != 100 {
		t.Fatalf("unexpected list params %+v", store.lastList)
	}
}

func TestOtherAgentsTasksLookMissing(t *testing.T) {
	svc, _, _ := fixture()
	task, _ := svc.Create(context.Background(), agent(agentA), transport.CreateTaskRequest{Title: "Dossier perso"})

	if _, err := svc.Get(context.Background(), agent(agentB), task.ID); !apperr.Is(err, apperr.KindNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
	if _, err := svc.Get(context.Background(), managerIdentity(), task.ID); err != nil {
		t.Fatalf("manager should see the task: %v", err)
	}
}

func TestReassignPublishesOnlyOnChange(t *testing.T) {
	svc, _, bus := fixture()
	task, _ := svc.Create(context.Background(), agent(agentA), transport.CreateTaskRequest{Title: "Relance Enedis"})

	if _, err := svc.Update(context.Background(), agent(agentA), task.ID, transport.UpdateTaskRequest{AssignedTo: &agentB}); err != nil {
		t.Fatalf("reassign: %v", err)
	}
	if _, err := svc.Update(context.Background(), agent(agentA), task.ID, transport.UpdateTaskRequest{AssignedTo: &agentB}); err != nil {
		t.Fatalf("same assignee: %v", err)
	}
	if len(bus.published) != 1 {
		t.Fatalf("expected a single assignment event, got %d", len(bus.published))
	}
}

func TestUpdateRejectsConflictingFlags(t *testing.T) {
	svc, _, _ := fixture()
	task, _ := svc.Create(context.Background(), agent(agentA), transport.CreateTaskRequest{Title: "Relance"})
	_, err := svc.Update(context.Background(), agent(agentA), task.ID, transport.UpdateTaskRequest{AssignedTo: &agentB, Unassign: true})
	if !apperr.Is(err, apperr.KindValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestCompleteIsIdempotent(t *testing.T) {
	svc, _, _ := fixture()
	task, _ := svc.Create(context.Background(), agent(agentA), transport.CreateTaskRequest{Title: "Envoyer devis"})

	first, err := svc.Complete(context.Background(), agent(agentA), task.ID)
	if err != nil || first.Status != StatusDone || first.CompletedAt == nil {
		t.Fatalf("complete: %+v %v", first, err)
	}
	second, err := svc.Complete(context.Background(), agent(agentA), task.ID)
	if err != nil || !second.CompletedAt.Equal(*first.CompletedAt) {
		t.Fatalf("second complete changed the task: %+v %v", second, err)
	}
}

func TestDeleteRestrictedToCreatorOrManager(t *testing.T) {
	svc, _, _ := fixture()
	task, _ := svc.Create(context.Background(), agent(agentA), transport.CreateTaskRequest{Title: "Archiver", AssignedTo: &agentB})

	if err := svc.Delete(context.Background(), agent(agentB), task.ID); !apperr.Is(err, apperr.KindForbidden) {
		t.Fatalf("assignee delete: expected forbidden, got %v", err)
	}
	if err := svc.Delete(context.Background(), agent(agentA), task.ID); err != nil {
		t.Fatalf("creator delete: %v", err)
	}
}

func TestNotifyOverdueOncePerTask(t *testing.T) {
	svc, _, bus := fixture()
	past := time.Now().Add(-time.Hour)
	future := time.Now().Add(time.Hour)
	_, _ = svc.Create(context.Background(), agent(agentA), transport.CreateTaskRequest{Title: "En retard", DueAt: &past})
	_, _ = svc.Create(context.Background(), agent(agentA), transport.CreateTaskRequest{Title: "A venir", DueAt: &future})

	n, err := svc.NotifyOverdue(context.Background())
	if err != nil || n != 1 {
		t.Fatalf("first sweep: %d %v", n, err)
	}
	n, _ = svc.NotifyOverdue(context.Background())
	if n != 0 {
		t.Fatalf("second sweep should find nothing, got %d", n)
	}
	if _, ok := bus.published[len(bus.published)-1].(events.TaskOverdue); !ok {
		t.Fatalf("expected TaskOverdue, got %T", bus.published[len(bus.published)-1])
	}
}

func TestOverdueFlagInResponse(t *testing.T) {
	svc, _, _ := fixture()
	past := time.Now().Add(-time.Minute)
	task, _ := svc.Create(context.Background(), agent(agentA), transport.CreateTaskRequest{Title: "Rappel", DueAt: &past})
	if !task.Overdue {
		t.Fatal("open task past due should be overdue")
	}
	done, _ := svc.Complete(context.Background(), agent(agentA), task.ID)
	if done.Overdue {
		t.Fatal("completed task is never overdue")
	}
}
