package service

import (
	"context"
	"time"

	"raccordement_backend/internal/activity/audit"
	"raccordement_backend/internal/auth/roles"
	"raccordement_backend/internal/events"
	"raccordement_backend/internal/tasks/repository"
	"raccordement_backend/internal/tasks/transport"
	"raccordement_backend/platform/apperr"
	"raccordement_backend/platform/httpkit"
	"raccordement_backend/platform/logger"
	"raccordement_backend/platform/sanitize"

	"github.com/google/uuid"
)

const (
	StatusTodo       = "todo"
	StatusInProgress = "in_progress"
	StatusDone       = "done"

	defaultPriority = "normal"
	overdueBatch    = 100
)

type Store interface {
	Create(ctx context.Context, p repository.CreateParams) (repository.Task, error)
	GetByID(ctx context.Context, id uuid.UUID) (repository.Task, error)
	Update(ctx context.Context, id uuid.UUID, p repository.UpdateParams) (repository.Task, error)
	Delete(ctx context.Context, id uuid.UUID) error
	List(ctx context.Context, p repository.ListParams) ([]repository.Task, int, error)
	ClaimOverdue(ctx context.Context, now time.Time, limit int) ([]repository.Overdue, error)
}

// Staff checks that a user can receive work.
type Staff interface {
	EnsureAssignable(ctx context.Context, id uuid.UUID) error
}

type Service struct {
	store    Store
	staff    Staff
	eventBus events.Bus
	audit    audit.Recorder
	log      *logger.Logger
	now      func() time.Time
}

func New(store Store, staff Staff, eventBus events.Bus, recorder audit.Recorder, log *logger.Logger) *Service {
	return &Service{store: store, staff: staff, eventBus: eventBus, audit: recorder, log: log, now: time.Now}
}

func (s *Service) Create(ctx context.Context, actor httpkit.Identity, req transport.CreateTaskRequest) (transport.TaskResponse, error) {
	params := repository.CreateParams{
		Title:       sanitize.Line(req.Title),
		Description: trimPtr(req.Description),
		Priority:    req.Priority,
		DueAt:       req.DueAt,
		AssignedTo:  req.AssignedTo,
		CreatedBy:   actor.UserID(),
		LeadID:      req.LeadID,
		RequestID:   req.RequestID,
	}
	if params.Title == "" {
		return transport.TaskResponse{}, apperr.Validation("title is empty")
	}
	if params.Priority == "" {
		params.Priority = defaultPriority
	}
	if params.AssignedTo == nil {
		self := actor.UserID()
		params.AssignedTo = &self
	} else if err := s.staff.EnsureAssignable(ctx, *params.AssignedTo); err != nil {
		return transport.TaskResponse{}, err
	}

	t, err := s.store.Create(ctx, params)
	if err != nil {
		return transport.TaskResponse{}, err
	}
	s.notifyAssignee(ctx, actor.UserID(), t)
	s.record(ctx, actor.UserID(), "task.created", t.ID, map[string]any{"title": t.Title})
	return s.toResponse(t), nil
}

// List returns the caller's tasks. Managers may ask for everyone's with
// scope=all.
func (s *Service) List(ctx context.Context, actor httpkit.Identity, req transport.ListRequest) (transport.ListResponse, error) {
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
		Search:  sanitize.SearchPattern(req.Search),
		Overdue: req.Overdue,
		Now:     s.now(),
		Offset:  (page - 1) * pageSize,
		Limit:   pageSize,
	}
	if req.Scope == "all" {
		if !actor.HasRole(roles.Manager) {
			return transport.ListResponse{}, apperr.Forbidden("only managers can list every task")
		}
	} else {
		me := actor.UserID()
		params.Member = &me
	}
	if req.Status != "" {
		params.Status = &req.Status
	}
	if req.Priority != "" {
		params.Priority = &req.Priority
	}
	if req.LeadID != "" {
		id, err := uuid.Parse(req.LeadID)
		if err != nil {
			return transport.ListResponse{}, apperr.BadRequest("invalid leadId")
		}
		params.LeadID = &id
	}
	if req.RequestID != "" {
		id, err := uuid.Parse(req.RequestID)
		if err != nil {
			return transport.ListResponse{}, apperr.BadRequest("invalid requestId")
		}
		params.RequestID = &id
	}

	tasks, total, err := s.store.List(ctx, params)
	if err != nil {
		return transport.ListResponse{}, err
	}
	items := make([]transport.TaskResponse, 0, len(tasks))
	for _, t := range tasks {
		items = append(items, s.toResponse(t))
	}
	return transport.ListResponse{
		Items:      items,
		Total:      total,
		Page:       page,
		PageSize:   pageSize,
		TotalPages: (total + pageSize - 1) / pageSize,
	}, nil
}

func (s *Service) Get(ctx context.Context, actor httpkit.Identity, id uuid.UUID) (transport.TaskResponse, error) {
	t, err := s.visible(ctx, actor, id)
	if err != nil {
		return transport.TaskResponse{}, err
	}
	return s.toResponse(t), nil
}

func (s *Service) Update(ctx context.Context, actor httpkit.Identity, id uuid.UUID, req transport.UpdateTaskRequest) (transport.TaskResponse, error) {
	current, err := s.visible(ctx, actor, id)
	if err != nil {
		return transport.TaskResponse{}, err
	}
	if req.AssignedTo != nil && req.Unassign {
		return transport.TaskResponse{}, apperr.Validation("assignedTo and unassign are exclusive")
	}
	if req.DueAt != nil && req.ClearDueAt {
		return transport.TaskResponse{}, apperr.Validation("dueAt and clearDueAt are exclusive")
	}

	params := repository.UpdateParams{
		Description: trimPtr(req.Description),
		Priority:    req.Priority,
		Status:      req.Status,
		DueAt:       req.DueAt,
		ClearDueAt:  req.ClearDueAt,
		AssignedTo:  req.AssignedTo,
		Unassign:    req.Unassign,
	}
	if req.Title != nil {
		title := sanitize.Line(*req.Title)
		if title == "" {
			return transport.TaskResponse{}, apperr.Validation("title is empty")
		}
		params.Title = &title
	}
	reassigned := req.AssignedTo != nil && (current.AssignedTo == nil || *current.AssignedTo != *req.AssignedTo)
	if reassigned {
		if err := s.staff.EnsureAssignable(ctx, *req.AssignedTo); err != nil {
			return transport.TaskResponse{}, err
		}
	}

	t, err := s.store.Update(ctx, id, params)
	if err != nil {
		return transport.TaskResponse{}, err
	}
	if reassigned {
		s.notifyAssignee(ctx, actor.UserID(), t)
	}
	details := map[string]any{}
	if req.Status != nil && *req.Status != current.Status {
		details["status"] = *req.Status
	}
	if reassigned {
		details["assignedTo"] = req.AssignedTo.String()
	}
	s.record(ctx, actor.UserID(), "task.updated", id, details)
	return s.toResponse(t), nil
}

// Complete marks a task done. Completing a done task changes nothing.
func (s *Service) Complete(ctx context.Context, actor httpkit.Identity, id uuid.UUID) (transport.TaskResponse, error) {
	current, err := s.visible(ctx, actor, id)
	if err != nil {
		return transport.TaskResponse{}, err
	}
	if current.Status == StatusDone {
		return s.toResponse(current), nil
	}
	done := StatusDone
	t, err := s.store.Update(ctx, id, repository.UpdateParams{Status: &done})
	if err != nil {
		return transport.TaskResponse{}, err
	}
	s.record(ctx, actor.UserID(), "task.completed", id, nil)
	return s.toResponse(t), nil
}

// Delete is allowed to the creator and to managers.
func (s *Service) Delete(ctx context.Context, actor httpkit.Identity, id uuid.UUID) error {
	t, err := s.visible(ctx, actor, id)
	if err != nil {
		return err
	}
	if !actor.HasRole(roles.Manager) && (t.CreatedBy == nil || *t.CreatedBy != actor.UserID()) {
		return apperr.Forbidden("only the creator or a manager can delete this task")
	}
	if err := s.store.Delete(ctx, id); err != nil {
		return err
	}
	s.record(ctx, actor.UserID(), "task.deleted", id, map[string]any{"title": t.Title})
	return nil
}

// NotifyOverdue publishes TaskOverdue once for each assigned task past its
// due date and returns how many were found.
func (s *Service) NotifyOverdue(ctx context.Context) (int, error) {
	overdue, err := s.store.ClaimOverdue(ctx, s.now(), overdueBatch)
	if err != nil {
		return 0, err
	}
	for _, o := range overdue {
		s.eventBus.Publish(ctx, events.TaskOverdue{
			BaseEvent:  events.NewBaseEvent(),
			TaskID:     o.ID,
			Title:      o.Title,
			AssigneeID: o.AssigneeID,
			DueAt:      o.DueAt,
		})
	}
	if len(overdue) > 0 {
		s.log.Info("overdue tasks notified", "count", len(overdue))
	}
	return len(overdue), nil
}

// visible loads a task the actor may see. Other people's tasks look
// missing to non-managers.
func (s *Service) visible(ctx context.Context, actor httpkit.Identity, id uuid.UUID) (repository.Task, error) {
	t, err := s.store.GetByID(ctx, id)
	if err != nil {
		return repository.Task{}, err
	}
	if actor.HasRole(roles.Manager) {
		return t, nil
	}
	me := actor.UserID()
	if (t.AssignedTo != nil && *t.AssignedTo == me) || (t.CreatedBy != nil && *t.CreatedBy == me) {
		return t, nil
	}
	return repository.Task{}, apperr.NotFound("task not found")
}

func (s *Service) notifyAssignee(ctx context.Context, actorID uuid.UUID, t repository.Task) {
	if t.AssignedTo == nil || *t.AssignedTo == actorID {
		return
	}
	s.eventBus.Publish(ctx, events.TaskAssigned{
		BaseEvent:  events.NewBaseEvent(),
		TaskID:     t.ID,
		Title:      t.Title,
		AssigneeID: *t.AssignedTo,
		AssignedBy: actorID,
		DueAt:      t.DueAt,
	})
}

func (s *Service) record(ctx context.Context, actorID uuid.UUID, action string, id uuid.UUID, details map[string]any) {
	s.audit.Record(ctx, audit.Entry{
		ActorID:    &actorID,
		Action:     action,
		EntityType: audit.EntityTask,
		EntityID:   id.String(),
		Details:    details,
	})
}

func (s *Service) toResponse(t repository.Task) transport.TaskResponse {
	return transport.TaskResponse{
		ID:          t.ID,
		Title:       t.Title,
		Description: t.Description,
		Priority:    t.Priority,
		Status:      t.Status,
		DueAt:       t.DueAt,
		Overdue:     t.Status != StatusDone && t.DueAt != nil && t.DueAt.Before(s.now()),
		AssignedTo:  t.AssignedTo,
		CreatedBy:   t.CreatedBy,
		LeadID:      t.LeadID,
		RequestID:   t.RequestID,
		CompletedAt: t.CompletedAt,
		CreatedAt:   t.CreatedAt,
		UpdatedAt:   t.UpdatedAt,
	}
}

func trimPtr(v *string) *string {
	if v == nil {
		return nil
	}
	out := sanitize.Text(*v)
	if out == "" {
		return nil
	}
	return &out
}
