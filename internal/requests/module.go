// Package requests manages paid connection requests from creation to the
// completed intervention.
package requests

import (
	"raccordement_backend/internal/activity/audit"
	"raccordement_backend/internal/events"
	apphttp "raccordement_backend/internal/http"
	"raccordement_backend/internal/requests/handler"
	"raccordement_backend/internal/requests/repository"
	"raccordement_backend/internal/requests/service"
	"raccordement_backend/platform/httpkit"
	"raccordement_backend/platform/logger"
	"raccordement_backend/platform/validator"

	"github.com/jackc/pgx/v5/pgxpool"
)

type Module struct {
	handler *handler.Handler
	service *service.Service
}

func NewModule(pool *pgxpool.Pool, pricing service.Pricing, staff service.Staff, eventBus events.Bus, recorder audit.Recorder, val *validator.Validator, log *logger.Logger) *Module {
	svc := service.New(repository.New(pool), pricing, staff, eventBus, recorder, log)
	return &Module{handler: handler.New(svc, val), service: svc}
}

func (m *Module) Name() string { return "requests" }

// Service is used by leads, payments and the partner API.
func (m *Module) Service() *service.Service { return m.service }

func (m *Module) RegisterRoutes(ctx *apphttp.RouterContext) {
	ctx.Public.GET("/requests/:reference", m.handler.Track)

	staff := ctx.Protected.Group("/requests")
	staff.GET("", m.handler.List)
	staff.GET("/by-reference/:reference", m.handler.GetByReference)
	staff.GET("/:id", m.handler.Get)
	staff.PATCH("/:id", m.handler.Update)
	staff.POST("/:id/status", m.handler.ChangeStatus)
	staff.POST("/:id/assign", m.handler.Assign)

	ctx.Manager.POST("/requests", m.handler.Create)
	ctx.Protected.DELETE("/requests/:id", httpkit.RequireRole("admin"), m.handler.Delete)
}

var _ apphttp.Module = (*Module)(nil)
