// Package company looks up French companies by SIREN or SIRET so that
// professional customers do not retype their details.
package company

import (
	"raccordement_backend/internal/company/client"
	"raccordement_backend/internal/company/handler"
	"raccordement_backend/internal/company/service"
	apphttp "raccordement_backend/internal/http"
	"raccordement_backend/platform/config"
	"raccordement_backend/platform/logger"
)

type Module struct {
	handler *handler.Handler
	service *service.Service
}

func NewModule(cfg config.CompanyLookupConfig, log *logger.Logger) *Module {
	registry := client.New(cfg.GetCompanyLookupBaseURL(), cfg.GetCompanyLookupTimeout(), log)
	svc := service.New(registry, log)
	return &Module{handler: handler.New(svc), service: svc}
}

func (m *Module) Name() string { return "company" }

func (m *Module) Service() *service.Service { return m.service }

func (m *Module) RegisterRoutes(ctx *apphttp.RouterContext) {
	ctx.Public.GET("/company/:identifier", m.handler.Lookup)
}

var _ apphttp.Module = (*Module)(nil)
