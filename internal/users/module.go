// Package users is the admin-facing staff directory: invitations, roles and
// account status.
package users

import (
	"context"

	"raccordement_backend/internal/activity/audit"
	"raccordement_backend/internal/events"
	apphttp "raccordement_backend/internal/http"
	"raccordement_backend/internal/users/handler"
	"raccordement_backend/internal/users/repository"
	"raccordement_backend/internal/users/service"
	"raccordement_backend/platform/logger"
	"raccordement_backend/platform/validator"

	"github.com/jackc/pgx/v5/pgxpool"
)

type Module struct {
	handler *handler.Handler
	service *service.Service
}

func NewModule(pool *pgxpool.Pool, accounts service.Accounts, eventBus events.Bus, recorder audit.Recorder, val *validator.Validator, log *logger.Logger) *Module {
	svc := service.New(repository.New(pool), accounts, eventBus, recorder, log)
	return &Module{handler: handler.New(svc, val), service: svc}
}

func (m *Module) Name() string { return "users" }

func (m *Module) Service() *service.Service { return m.service }

// Bootstrap creates the first admin from configuration when needed.
func (m *Module) Bootstrap(ctx context.Context, email, password string) error {
	return m.service.EnsureBootstrapAdmin(ctx, email, password)
}

func (m *Module) RegisterRoutes(ctx *apphttp.RouterContext) {
	m.handler.RegisterRoutes(ctx.Admin.Group("/users"))
}

var _ apphttp.Module = (*Module)(nil)
