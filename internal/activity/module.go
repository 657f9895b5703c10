// Package activity serves the audit trail to managers and purges old entries.
package activity

import (
	"raccordement_backend/internal/activity/audit"
	"raccordement_backend/internal/activity/handler"
	"raccordement_backend/internal/activity/repository"
	"raccordement_backend/internal/activity/service"
	apphttp "raccordement_backend/internal/http"
	"raccordement_backend/platform/logger"
	"raccordement_backend/platform/validator"

	"github.com/jackc/pgx/v5/pgxpool"
)

type Module struct {
	handler *handler.Handler
	service *service.Service
}

func NewModule(pool *pgxpool.Pool, val *validator.Validator, log *logger.Logger) *Module {
	svc := service.New(repository.New(pool), log)
	return &Module{handler: handler.New(svc, val), service: svc}
}

func (m *Module) Name() string { return "activity" }

// Recorder is handed to every module that writes audit entries.
func (m *Module) Recorder() audit.Recorder { return m.service }

func (m *Module) Service() *service.Service { return m.service }

func (m *Module) RegisterRoutes(ctx *apphttp.RouterContext) {
	ctx.Manager.GET("/activity", m.handler.List)
}

var _ apphttp.Module = (*Module)(nil)
