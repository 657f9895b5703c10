// Package payments keeps the card payment ledger of service requests.
package payments

import (
	"raccordement_backend/internal/activity/audit"
	"raccordement_backend/internal/events"
	apphttp "raccordement_backend/internal/http"
	"raccordement_backend/internal/payments/handler"
	"raccordement_backend/internal/payments/processor"
	"raccordement_backend/internal/payments/repository"
	"raccordement_backend/internal/payments/service"
	"raccordement_backend/platform/httpkit"
	"raccordement_backend/platform/logger"
	"raccordement_backend/platform/validator"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
)

type Module struct {
	handler *handler.Handler
	service *service.Service
}

type Deps struct {
	Pool          *pgxpool.Pool
	Redis         *redis.Client
	Processor     processor.Processor
	Requests      service.Requests
	Branding      service.Branding
	PublicSiteURL string
	EventBus      events.Bus
	Audit         audit.Recorder
	Validator     *validator.Validator
	Logger        *logger.Logger
}

func NewModule(d Deps) *Module {
	var dedup service.Deduper = repository.NoDedup{}
	if d.Redis != nil {
		dedup = repository.NewRedisDeduper(d.Redis)
	}
	svc := service.New(
		repository.New(d.Pool),
		d.Processor,
		d.Requests,
		dedup,
		d.Branding,
		d.PublicSiteURL,
		d.EventBus,
		d.Audit,
		d.Logger,
	)
	return &Module{handler: handler.New(svc, d.Validator), service: svc}
}

func (m *Module) Name() string { return "payments" }

// Service is used by the partner API, notifications and the scheduler.
func (m *Module) Service() *service.Service { return m.service }

func (m *Module) RegisterRoutes(ctx *apphttp.RouterContext) {
	ctx.Public.POST("/requests/:reference/payment-intent", m.handler.CreateIntent)
	ctx.Public.GET("/payments/:paymentId/status", m.handler.Status)
	ctx.V1.POST("/webhooks/stripe", m.handler.Webhook)

	staff := ctx.Protected.Group("/payments")
	staff.GET("", m.handler.List)
	staff.GET("/:id", m.handler.Get)
	staff.GET("/:id/receipt", m.handler.Receipt)
	staff.POST("/:id/refund", httpkit.RequireRole("admin"), m.handler.Refund)
}

var _ apphttp.Module = (*Module)(nil)
