package service

import (
	"context"

	"raccordement_backend/internal/activity/audit"
	"raccordement_backend/internal/auth/password"
	"raccordement_backend/internal/auth/roles"
	"raccordement_backend/internal/events"
	"raccordement_backend/internal/users/repository"
	"raccordement_backend/internal/users/transport"
	"raccordement_backend/platform/apperr"
	"raccordement_backend/platform/logger"
	"raccordement_backend/platform/phone"
	"raccordement_backend/platform/sanitize"
	"raccordement_backend/platform/token"

	"github.com/google/uuid"
)

// Store is the persistence the users service needs.
type Store interface {
	Create(ctx context.Context, p repository.CreateParams) (repository.User, error)
	GetByID(ctx context.Context, id uuid.UUID) (repository.User, error)
	Update(ctx context.Context, id uuid.UUID, p repository.UpdateParams) (repository.User, error)
	SetRole(ctx context.Context, id uuid.UUID, role string) (repository.User, error)
	SetActive(ctx context.Context, id uuid.UUID, active bool) (repository.User, error)
	Delete(ctx context.Context, id uuid.UUID) error
	CountActiveAdmins(ctx context.Context) (int, error)
	List(ctx context.Context, p repository.ListParams) ([]repository.User, int, error)
	ListActiveByRoles(ctx context.Context, roles []string) ([]repository.User, error)
}

// Accounts is the slice of the auth service used for invitations and
// revoking sessions of disabled users.
type Accounts interface {
	IssueSetupToken(ctx context.Context, userID uuid.UUID) (string, error)
	RevokeSessions(ctx context.Context, userID uuid.UUID) error
}

var (
	errSelfAction = apperr.Forbidden("you cannot change your own role or status")
	errLastAdmin  = apperr.Conflict("the last active admin cannot be removed")
)

type Service struct {
	store    Store
	accounts Accounts
	eventBus events.Bus
	audit    audit.Recorder
	log      *logger.Logger
}

func New(store Store, accounts Accounts, eventBus events.Bus, recorder audit.Recorder, log *logger.Logger) *Service {
	return &Service{store: store, accounts: accounts, eventBus: eventBus, audit: recorder, log: log}
}

func (s *Service) List(ctx context.Context, req transport.ListRequest) (transport.ListResponse, error) {
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

	var role *string
	if req.Role != "" {
		role = &req.Role
	}
	users, total, err := s.store.List(ctx, repository.ListParams{
		Search:   sanitize.SearchPattern(req.Search),
		Role:     role,
		IsActive: req.IsActive,
		Offset:   (page - 1) * pageSize,
		Limit:    pageSize,
	})
	if err != nil {
		return transport.ListResponse{}, err
	}

	items := make([]transport.UserResponse, 0, len(users))
	for _, u := range users {
		items = append(items, ToResponse(u))
	}
	return transport.ListResponse{
		Items:      items,
		Total:      total,
		Page:       page,
		PageSize:   pageSize,
		TotalPages: (total + pageSize - 1) / pageSize,
	}, nil
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (transport.UserResponse, error) {
	u, err := s.store.GetByID(ctx, id)
	if err != nil {
		return transport.UserResponse{}, err
	}
	return ToResponse(u), nil
}

// Invite creates an account with an unusable password and sends a setup
// link so the user picks their own.
func (s *Service) Invite(ctx context.Context, actorID uuid.UUID, req transport.CreateUserRequest) (transport.UserResponse, error) {
	placeholder, err := token.Random(32)
	if err != nil {
		return transport.UserResponse{}, err
	}
	hash, err := password.Hash(placeholder)
	if err != nil {
		return transport.UserResponse{}, err
	}

	u, err := s.store.Create(ctx, repository.CreateParams{
		Email:        sanitize.Email(req.Email),
		PasswordHash: hash,
		FirstName:    sanitize.TextPtr(req.FirstName),
		LastName:     sanitize.TextPtr(req.LastName),
		Phone:        normalizePhone(req.Phone),
		Role:         req.Role,
	})
	if err != nil {
		return transport.UserResponse{}, err
	}

	setupToken, err := s.accounts.IssueSetupToken(ctx, u.ID)
	if err != nil {
		return transport.UserResponse{}, err
	}

	firstName := ""
	if u.FirstName != nil {
		firstName = *u.FirstName
	}
	s.eventBus.Publish(ctx, events.UserInvited{
		BaseEvent:  events.NewBaseEvent(),
		UserID:     u.ID,
		Email:      u.Email,
		FirstName:  firstName,
		Role:       u.Role,
		SetupToken: setupToken,
	})
	s.record(ctx, actorID, "user.invited", u.ID, map[string]any{"email": u.Email, "role": u.Role})
	return ToResponse(u), nil
}

func (s *Service) Update(ctx context.Context, actorID, id uuid.UUID, req transport.UpdateUserRequest) (transport.UserResponse, error) {
	u, err := s.store.Update(ctx, id, repository.UpdateParams{
		FirstName: sanitize.TextPtr(req.FirstName),
		LastName:  sanitize.TextPtr(req.LastName),
		Phone:     normalizePhone(req.Phone),
	})
	if err != nil {
		return transport.UserResponse{}, err
	}
	s.record(ctx, actorID, "user.updated", id, nil)
	return ToResponse(u), nil
}

func (s *Service) SetRole(ctx context.Context, actorID, id uuid.UUID, role string) (transport.UserResponse, error) {
	if !roles.Valid(role) {
		return transport.UserResponse{}, apperr.Validation("unknown role")
	}
	if actorID == id {
		return transport.UserResponse{}, errSelfAction
	}

	current, err := s.store.GetByID(ctx, id)
	if err != nil {
		return transport.UserResponse{}, err
	}
	if current.Role == role {
		return ToResponse(current), nil
	}
	if current.Role == roles.Admin && current.IsActive {
		if err := s.ensureAnotherAdmin(ctx); err != nil {
			return transport.UserResponse{}, err
		}
	}

	u, err := s.store.SetRole(ctx, id, role)
	if err != nil {
		return transport.UserResponse{}, err
	}
	// Existing access tokens carry the old role until they expire; refresh
	// tokens are revoked so the change applies at the next refresh.
	if err := s.accounts.RevokeSessions(ctx, id); err != nil {
		s.log.Warn("failed to revoke sessions after role change", "userId", id, "error", err)
	}
	s.record(ctx, actorID, "user.role_changed", id, map[string]any{"from": current.Role, "to": role})
	return ToResponse(u), nil
}

func (s *Service) Deactivate(ctx context.Context, actorID, id uuid.UUID) (transport.UserResponse, error) {
	if actorID == id {
		return transport.UserResponse{}, errSelfAction
	}
	current, err := s.store.GetByID(ctx, id)
	if err != nil {
		return transport.UserResponse{}, err
	}
	if !current.IsActive {
		return ToResponse(current), nil
	}
	if current.Role == roles.Admin {
		if err := s.ensureAnotherAdmin(ctx); err != nil {
			return transport.UserResponse{}, err
		}
	}

	u, err := s.store.SetActive(ctx, id, false)
	if err != nil {
		return transport.UserResponse{}, err
	}
	if err := s.accounts.RevokeSessions(ctx, id); err != nil {
		s.log.Warn("failed to revoke sessions of disabled user", "userId", id, "error", err)
	}
	s.record(ctx, actorID, "user.deactivated", id, nil)
	return ToResponse(u), nil
}

func (s *Service) Activate(ctx context.Context, actorID, id uuid.UUID) (transport.UserResponse, error) {
	u, err := s.store.SetActive(ctx, id, true)
	if err != nil {
		return transport.UserResponse{}, err
	}
	s.record(ctx, actorID, "user.activated", id, nil)
	return ToResponse(u), nil
}

func (s *Service) Delete(ctx context.Context, actorID, id uuid.UUID) error {
	if actorID == id {
		return apperr.Forbidden("you cannot delete your own account")
	}
	current, err := s.store.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if current.Role == roles.Admin && current.IsActive {
		if err := s.ensureAnotherAdmin(ctx); err != nil {
			return err
		}
	}
	if err := s.store.Delete(ctx, id); err != nil {
		return err
	}
	s.record(ctx, actorID, "user.deleted", id, map[string]any{"email": current.Email})
	return nil
}

// StaffByRoles lists active staff holding any of the given roles.
func (s *Service) StaffByRoles(ctx context.Context, roleList ...string) ([]repository.User, error) {
	return s.store.ListActiveByRoles(ctx, roleList)
}

// EmailOf returns a staff member's email address.
func (s *Service) EmailOf(ctx context.Context, id uuid.UUID) (string, error) {
	u, err := s.store.GetByID(ctx, id)
	if err != nil {
		return "", err
	}
	return u.Email, nil
}

// EnsureAssignable checks that id is an active staff member work can be
// assigned to.
func (s *Service) EnsureAssignable(ctx context.Context, id uuid.UUID) error {
	u, err := s.store.GetByID(ctx, id)
	if apperr.Is(err, apperr.KindNotFound) {
		return apperr.Validation("assignee does not exist")
	}
	if err != nil {
		return err
	}
	if !u.IsActive {
		return apperr.Validation("assignee account is disabled")
	}
	return nil
}

// EnsureBootstrapAdmin creates the first admin when no active admin exists.
func (s *Service) EnsureBootstrapAdmin(ctx context.Context, email, plainPassword string) error {
	if email == "" || plainPassword == "" {
		return nil
	}
	n, err := s.store.CountActiveAdmins(ctx)
	if err != nil {
		return err
	}
	if n > 0 {
		return nil
	}

	hash, err := password.Hash(plainPassword)
	if err != nil {
		return err
	}
	u, err := s.store.Create(ctx, repository.CreateParams{
		Email:        sanitize.Email(email),
		PasswordHash: hash,
		Role:         roles.Admin,
	})
	if err != nil {
		return err
	}
	s.log.Info("bootstrap admin created", "userId", u.ID, "email", u.Email)
	return nil
}

// ensureAnotherAdmin fails when removing one admin would leave none.
func (s *Service) ensureAnotherAdmin(ctx context.Context) error {
	n, err := s.store.CountActiveAdmins(ctx)
	if err != nil {
		return err
	}
	if n <= 1 {
		return errLastAdmin
	}
	return nil
}

func (s *Service) record(ctx context.Context, actorID uuid.UUID, action string, id uuid.UUID, details map[string]any) {
	s.audit.Record(ctx, audit.Entry{
		ActorID:    &actorID,
		Action:     action,
		EntityType: audit.EntityUser,
		EntityID:   id.String(),
		Details:    details,
	})
}

func normalizePhone(p *string) *string {
	p = sanitize.TextPtr(p)
	if p == nil || *p == "" {
		return p
	}
	n := phone.NormalizeE164(*p)
	return &n
}

func ToResponse(u repository.User) transport.UserResponse {
	return transport.UserResponse{
		ID:          u.ID,
		Email:       u.Email,
		FirstName:   u.FirstName,
		LastName:    u.LastName,
		Phone:       u.Phone,
		Role:        u.Role,
		Permissions: roles.Permissions(u.Role),
		IsActive:    u.IsActive,
		LastLoginAt: u.LastLoginAt,
		CreatedAt:   u.CreatedAt,
		UpdatedAt:   u.UpdatedAt,
	}
}
