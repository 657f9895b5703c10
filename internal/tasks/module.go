// Package tasks is the staff to-do list: tasks tied to leads or requests,
// assignment alerts and overdue reminders.
package tasks

import (
	"raccordement_backend/internal/activity/audit"
	"raccordement_backend/internal/events"
	apphttp "raccordement_backend/internal/http"
	"raccordement_backend/internal/tasks/handler"
	"raccordement_backend/internal/tasks/repository"
	"raccordement_backend/internal/tasks/service"
	"raccordement_backend/platform/logger"
	"raccordement_backend/platform/validator"

	"github.com/jackc/pgx/v5/pgxpool"
)

type Module struct {
	handler *handler.Handler
	service *service.Service
}

func NewModule(pool *pgxpool.Pool, staff service.Staff, eventBus events.Bus, recorder audit.Recorder, val *validator.Validator, log *logger.Logger) *Module {
	svc := service.New(repository.New(pool), staff, eventBus, recorder, log)
	return &Module{handler: handler.New(svc, val), service: svc}
}

func (m *Module) Name() string { return "tasks" }

// Service is used by the scheduler for the overdue sweep.
func (m *Module) Service() *service.Service { return m.service }

func (m *Module) RegisterRoutes(ctx *apphttp.RouterContext) {
	g := ctx.Protected.Group("/tasks")
	g.GET("", m.handler.List)
	g.POST("", m.handler.Create)
	g.GET("/:id", m.handler.Get)
	g.PATCH("/:id", m.handler.Update)
	g.POST("/:id/complete", m.handler.Complete)
	g.DELETE("/:id", m.handler.Delete)
}

var _ apphttp.Module = (*Module)(nil)
