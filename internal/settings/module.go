// Package settings manages admin-editable configuration: system values,
// email templates and the animations of the public site.
package settings

import (
	"context"

	"raccordement_backend/internal/activity/audit"
	"raccordement_backend/internal/email"
	apphttp "raccordement_backend/internal/http"
	"raccordement_backend/internal/settings/handler"
	"raccordement_backend/internal/settings/repository"
	"raccordement_backend/internal/settings/seed"
	"raccordement_backend/internal/settings/service"
	"raccordement_backend/platform/httpkit"
	"raccordement_backend/platform/logger"
	"raccordement_backend/platform/validator"

	"github.com/jackc/pgx/v5/pgxpool"
)

type Module struct {
	handler *handler.Handler
	service *service.Service
}

func NewModule(pool *pgxpool.Pool, transport email.Transport, users service.UserEmails, recorder audit.Recorder, val *validator.Validator, log *logger.Logger) (*Module, error) {
	defaults, err := seed.Load()
	if err != nil {
		return nil, err
	}
	svc := service.New(repository.New(pool), defaults, transport, users, recorder, val, log)
	return &Module{handler: handler.New(svc, val), service: svc}, nil
}

func (m *Module) Name() string { return "settings" }

// Service is the typed config reader and email template source used by
// other modules.
func (m *Module) Service() *service.Service { return m.service }

// Seed inserts missing default templates and animations.
func (m *Module) Seed(ctx context.Context) error { return m.service.Seed(ctx) }

func (m *Module) RegisterRoutes(ctx *apphttp.RouterContext) {
	ctx.Public.GET("/animations", m.handler.PublicAnimations)

	manager := ctx.Manager.Group("/settings")
	manager.GET("/configs", m.handler.ListConfigs)
	manager.GET("/animations", m.handler.ListAnimations)
	manager.GET("/animations/:id", m.handler.GetAnimation)
	manager.POST("/animations", m.handler.CreateAnimation)
	manager.PATCH("/animations/:id", m.handler.UpdateAnimation)
	manager.DELETE("/animations/:id", m.handler.DeleteAnimation)

	admin := ctx.Protected.Group("/settings", httpkit.RequireRole("admin"))
	admin.PUT("/configs/:key", m.handler.SetConfig)
	admin.GET("/email-templates", m.handler.ListTemplates)
	admin.POST("/email-templates", m.handler.CreateTemplate)
	admin.GET("/email-templates/:id", m.handler.GetTemplate)
	admin.PUT("/email-templates/:id", m.handler.UpdateTemplate)
	admin.DELETE("/email-templates/:id", m.handler.DeleteTemplate)
	admin.POST("/email-templates/:id/preview", m.handler.PreviewTemplate)
	admin.POST("/email-templates/:id/test", m.handler.TestTemplate)
}

var _ apphttp.Module = (*Module)(nil)
