// Package exports produces offline conversion files for ad platforms.
package exports

import (
	apphttp "raccordement_backend/internal/http"
	"raccordement_backend/platform/logger"
	"raccordement_backend/platform/validator"

	"github.com/jackc/pgx/v5/pgxpool"
)

type Module struct {
	handler *Handler
	repo    *Repository
}

func NewModule(pool *pgxpool.Pool, val *validator.Validator, log *logger.Logger) *Module {
	repo := NewRepository(pool)
	return &Module{
		handler: NewHandler(repo, val, log),
		repo:    repo,
	}
}

func (m *Module) Name() string {
	return "exports"
}

func (m *Module) RegisterRoutes(ctx *apphttp.RouterContext) {
	publicGroup := ctx.V1.Group("/exports")
	publicGroup.Use(APIKeyAuthMiddleware(m.repo))
	publicGroup.GET("/google-ads/conversions.csv", m.handler.ExportGoogleAdsCSV)

	adminGroup := ctx.Admin.Group("/exports/credentials")
	adminGroup.POST("", m.handler.HandleCreateAPIKey)
	adminGroup.GET("", m.handler.HandleListAPIKeys)
	adminGroup.DELETE("/:id", m.handler.HandleRevokeAPIKey)
}

var _ apphttp.Module = (*Module)(nil)
