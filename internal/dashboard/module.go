// Package dashboard serves the figures on the staff home page.
package dashboard

import (
	"raccordement_backend/internal/dashboard/handler"
	"raccordement_backend/internal/dashboard/repository"
	"raccordement_backend/internal/dashboard/service"
	apphttp "raccordement_backend/internal/http"

	"github.com/jackc/pgx/v5/pgxpool"
)

type Module struct {
	handler *handler.Handler
}

func NewModule(pool *pgxpool.Pool) *Module {
	return &Module{handler: handler.New(service.New(repository.New(pool)))}
}

func (m *Module) Name() string { return "dashboard" }

func (m *Module) RegisterRoutes(ctx *apphttp.RouterContext) {
	ctx.Protected.GET("/dashboard/stats", m.handler.Stats)
}

var _ apphttp.Module = (*Module)(nil)
