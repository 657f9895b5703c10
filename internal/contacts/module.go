// Package contacts stores messages from the public contact form and lets
// staff answer them.
package contacts

import (
	"raccordement_backend/internal/activity/audit"
	"raccordement_backend/internal/contacts/handler"
	"raccordement_backend/internal/contacts/repository"
	"raccordement_backend/internal/contacts/service"
	"raccordement_backend/internal/events"
	apphttp "raccordement_backend/internal/http"
	"raccordement_backend/platform/logger"
	"raccordement_backend/platform/validator"

	"github.com/jackc/pgx/v5/pgxpool"
)

type Module struct {
	handler *handler.Handler
}

func NewModule(pool *pgxpool.Pool, replier service.Replier, eventBus events.Bus, recorder audit.Recorder, val *validator.Validator, log *logger.Logger) *Module {
	svc := service.New(repository.New(pool), replier, eventBus, recorder, log)
	return &Module{handler: handler.New(svc, val)}
}

func (m *Module) Name() string { return "contacts" }

func (m *Module) RegisterRoutes(ctx *apphttp.RouterContext) {
	ctx.Public.POST("/contact", m.handler.Submit)

	staff := ctx.Protected.Group("/contacts")
	staff.GET("", m.handler.List)
	staff.GET("/:id", m.handler.Get)
	staff.PATCH("/:id/status", m.handler.SetStatus)
	staff.POST("/:id/reply", m.handler.Reply)

	ctx.Manager.DELETE("/contacts/:id", m.handler.Delete)
}

var _ apphttp.Module = (*Module)(nil)
