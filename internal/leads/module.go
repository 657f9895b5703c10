// Package leads runs the public multi-step funnel and the staff view of the
// resulting leads.
package leads

import (
	"raccordement_backend/internal/activity/audit"
	"raccordement_backend/internal/events"
	apphttp "raccordement_backend/internal/http"
	"raccordement_backend/internal/leads/handler"
	"raccordement_backend/internal/leads/repository"
	"raccordement_backend/internal/leads/service"
	"raccordement_backend/platform/logger"
	"raccordement_backend/platform/validator"

	"github.com/jackc/pgx/v5/pgxpool"
)

type Module struct {
	handler *handler.Handler
	service *service.Service
}

func NewModule(
	pool *pgxpool.Pool,
	requests service.Requests,
	staff service.Staff,
	summarizer service.Summarizer,
	docs service.Documents,
	eventBus events.Bus,
	recorder audit.Recorder,
	val *validator.Validator,
	log *logger.Logger,
) *Module {
	svc := service.New(repository.New(pool), requests, staff, summarizer, docs, eventBus, recorder, log)
	return &Module{handler: handler.New(svc, val), service: svc}
}

func (m *Module) Name() string { return "leads" }

// Service is used by the scheduler for the abandonment sweep.
func (m *Module) Service() *service.Service { return m.service }

func (m *Module) RegisterRoutes(ctx *apphttp.RouterContext) {
	funnel := ctx.Public.Group("/leads")
	funnel.POST("", m.handler.Start)
	funnel.GET("/:token", m.handler.Resume)
	funnel.PATCH("/:token/steps/:step", m.handler.SaveStep)
	funnel.POST("/:token/complete", m.handler.Complete)
	funnel.POST("/:token/documents/presign", m.handler.PresignDocument)
	funnel.POST("/:token/documents", m.handler.AddDocument)

	staff := ctx.Protected.Group("/leads")
	staff.GET("", m.handler.List)
	staff.GET("/:id", m.handler.Get)
	staff.PATCH("/:id", m.handler.Update)
	staff.POST("/:id/assign", m.handler.Assign)
	staff.GET("/:id/documents", m.handler.ListDocuments)
	staff.POST("/:id/summary", m.handler.Summary)

	ctx.Manager.DELETE("/leads/:id", m.handler.Delete)
}

var _ apphttp.Module = (*Module)(nil)
